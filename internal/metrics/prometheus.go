package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imrishuroy/storefront-orderflow/internal/orders"
)

// Registry holds the service's Prometheus collectors on a private registry.
type Registry struct {
	reg          *prometheus.Registry
	Placed       prometheus.Counter
	Refunded     prometheus.Counter
	Skipped      prometheus.Counter
	OrderValue   prometheus.Histogram
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
}

var _ orders.Recorder = (*Registry)(nil)

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	placed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_placed_total",
		Help: "Orders created.",
	})
	refunded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_refunded_total",
		Help: "Orders refunded.",
	})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_order_stock_skipped_total",
		Help: "Orders persisted without stock effects.",
	})
	value := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_order_total_amount",
		Help:    "Order totals in store currency.",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	r.MustRegister(placed, refunded, skipped, value, requests, latency)
	return &Registry{
		reg:          r,
		Placed:       placed,
		Refunded:     refunded,
		Skipped:      skipped,
		OrderValue:   value,
		HTTPRequests: requests,
		HTTPLatency:  latency,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

func (r *Registry) OrderPlaced(_ context.Context, o orders.Order) {
	r.Placed.Inc()
	total, _ := o.Total.Float64()
	r.OrderValue.Observe(total)
}

func (r *Registry) OrderRefunded(context.Context, orders.Order) { r.Refunded.Inc() }

func (r *Registry) StockSkipped(context.Context, string) { r.Skipped.Inc() }

// Middleware records request counts and latency by route template.
func (r *Registry) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		r.HTTPRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		r.HTTPLatency.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
