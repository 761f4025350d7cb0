package metrics

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"

	"github.com/imrishuroy/storefront-orderflow/internal/aws"
	"github.com/imrishuroy/storefront-orderflow/internal/logging"
	"github.com/imrishuroy/storefront-orderflow/internal/orders"
)

// CloudWatch publishes order metrics with PutMetricData. Failures are logged.
type CloudWatch struct {
	client    aws.CloudWatchAPI
	namespace string
	clock     func() time.Time
	logger    *zap.Logger
}

var _ orders.Recorder = (*CloudWatch)(nil)

func NewCloudWatch(client aws.CloudWatchAPI, namespace string, logger *zap.Logger) *CloudWatch {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CloudWatch{client: client, namespace: namespace, clock: time.Now, logger: logger}
}

func (c *CloudWatch) OrderPlaced(ctx context.Context, o orders.Order) {
	total, _ := o.Total.Float64()
	c.put(ctx,
		datum("OrdersPlaced", 1, cwtypes.StandardUnitCount, c.clock()),
		datum("OrderTotal", total, cwtypes.StandardUnitNone, c.clock()),
	)
}

func (c *CloudWatch) OrderRefunded(ctx context.Context, _ orders.Order) {
	c.put(ctx, datum("OrdersRefunded", 1, cwtypes.StandardUnitCount, c.clock()))
}

func (c *CloudWatch) StockSkipped(ctx context.Context, orderID string) {
	c.put(ctx, datum("OrderStockSkipped", 1, cwtypes.StandardUnitCount, c.clock()))
}

func datum(name string, value float64, unit cwtypes.StandardUnit, at time.Time) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  &at,
	}
}

func (c *CloudWatch) put(ctx context.Context, data ...cwtypes.MetricDatum) {
	_, err := c.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(c.namespace),
		MetricData: data,
	})
	if err != nil {
		logging.FromContextOr(ctx, c.logger).Warn("put metric data failed", zap.String("namespace", c.namespace), zap.Error(err))
	}
}

// Multi fans out to several recorders.
type Multi []orders.Recorder

func (m Multi) OrderPlaced(ctx context.Context, o orders.Order) {
	for _, r := range m {
		r.OrderPlaced(ctx, o)
	}
}

func (m Multi) OrderRefunded(ctx context.Context, o orders.Order) {
	for _, r := range m {
		r.OrderRefunded(ctx, o)
	}
}

func (m Multi) StockSkipped(ctx context.Context, orderID string) {
	for _, r := range m {
		r.StockSkipped(ctx, orderID)
	}
}
