package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/storefront-orderflow/internal/aws"
	"github.com/imrishuroy/storefront-orderflow/internal/catalog"
	"github.com/imrishuroy/storefront-orderflow/internal/checkout"
	"github.com/imrishuroy/storefront-orderflow/internal/config"
	"github.com/imrishuroy/storefront-orderflow/internal/coupons"
	"github.com/imrishuroy/storefront-orderflow/internal/handlers"
	"github.com/imrishuroy/storefront-orderflow/internal/idempotency"
	"github.com/imrishuroy/storefront-orderflow/internal/inventory"
	"github.com/imrishuroy/storefront-orderflow/internal/logging"
	"github.com/imrishuroy/storefront-orderflow/internal/metrics"
	"github.com/imrishuroy/storefront-orderflow/internal/notify"
	"github.com/imrishuroy/storefront-orderflow/internal/orders"
	"github.com/imrishuroy/storefront-orderflow/internal/pricing"
	"github.com/imrishuroy/storefront-orderflow/internal/storage/dynamo"
	"github.com/imrishuroy/storefront-orderflow/internal/storage/memory"
)

// backend is the set of repositories one storage choice provides.
type backend struct {
	orders        orders.Repository
	products      catalog.Repository
	coupons       coupons.Repository
	notifications notify.Repository
	idempotency   idempotency.Keeper
	sink          notify.Sink
	recorders     []orders.Recorder
}

func memoryBackend(cfg config.Config) backend {
	store := memory.New()
	return backend{
		orders:        store.Orders(),
		products:      store.Products(),
		coupons:       store.Coupons(),
		notifications: store.Notifications(),
		idempotency:   idempotency.NewMemoryStore(cfg.Idempotency.TTL),
		sink:          notify.NewRepositorySink(store.Notifications()),
	}
}

func dynamoBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (backend, error) {
	clients, err := aws.NewClients(ctx)
	if err != nil {
		return backend{}, err
	}
	tables := cfg.DynamoDB
	b := backend{
		orders:        dynamo.NewOrderStore(clients.DynamoDB, tables.OrdersTable, tables.ProductsTable),
		products:      dynamo.NewProductStore(clients.DynamoDB, tables.ProductsTable),
		coupons:       dynamo.NewCouponStore(clients.DynamoDB, tables.CouponsTable),
		notifications: dynamo.NewNotificationStore(clients.DynamoDB, tables.NotificationsTable),
		idempotency:   idempotency.NewStore(clients.DynamoDB, tables.IdempotencyTable, cfg.Idempotency.TTL),
	}
	if url := cfg.SQS.NotificationsQueueURL; url != "" {
		b.sink = notify.NewQueueSink(aws.NewPublisher(clients.SQS, url))
	} else {
		b.sink = notify.NewRepositorySink(b.notifications)
	}
	if ns := cfg.Metrics.CloudWatchNamespace; ns != "" {
		b.recorders = append(b.recorders, metrics.NewCloudWatch(clients.CloudWatch, ns, logger))
	}
	return b, nil
}

func setupRouter(cfg config.Config, b backend, logger *zap.Logger) (*gin.Engine, error) {
	shipping, err := cfg.DefaultShippingCost()
	if err != nil {
		return nil, err
	}
	taxRate, err := cfg.DefaultTaxRate()
	if err != nil {
		return nil, err
	}

	registry := metrics.NewRegistry()
	recorder := append(metrics.Multi{registry}, b.recorders...)

	orderStore, err := orders.NewStore(orders.StoreDeps{
		Orders: b.orders,
		Stock:  inventory.NewLedger(b.products, logger.Named("inventory")),
		Notifier: notify.NewOrderNotifier(notify.NotifierDeps{
			Sink:           b.sink,
			OperatorUserID: cfg.Store.OperatorUserID,
			Logger:         logger.Named("notify"),
		}),
		Metrics: recorder,
		Logger:  logger.Named("orders"),
	})
	if err != nil {
		return nil, fmt.Errorf("order store: %w", err)
	}
	couponSvc, err := coupons.NewService(coupons.ServiceDeps{Coupons: b.coupons, Logger: logger.Named("coupons")})
	if err != nil {
		return nil, fmt.Errorf("coupon service: %w", err)
	}
	checkoutSvc, err := checkout.NewService(checkout.ServiceDeps{
		Catalog:  b.products,
		Coupons:  couponSvc,
		Orders:   orderStore,
		Settings: pricing.Settings{DefaultShippingCost: shipping, DefaultTaxRate: taxRate},
		Logger:   logger.Named("checkout"),
	})
	if err != nil {
		return nil, fmt.Errorf("checkout service: %w", err)
	}

	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(logger), registry.Middleware())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(registry.Handler()))

	handlers.RegisterRoutes(r, handlers.Deps{
		Checkout:       checkoutSvc,
		Orders:         orderStore,
		Coupons:        couponSvc,
		Products:       b.products,
		Notifications:  b.notifications,
		Idempotency:    b.idempotency,
		OperatorUserID: cfg.Store.OperatorUserID,
	})

	return r, nil
}

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.App.Name, cfg.Log.Level)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	var b backend
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		b = memoryBackend(cfg)
	default:
		b, err = dynamoBackend(ctx, cfg, logger)
		if err != nil {
			logger.Fatal("failed to init aws clients", zap.Error(err))
		}
	}

	r, err := setupRouter(cfg, b, logger)
	if err != nil {
		logger.Fatal("failed to build router", zap.Error(err))
	}

	// if environment variable RUN_LOCAL is set to "true", run local HTTP server for development.
	if os.Getenv("RUN_LOCAL") == "true" {
		logger.Info("running local server", zap.String("addr", cfg.App.HTTPAddr), zap.String("backend", cfg.Storage.Backend))
		if err := r.Run(cfg.App.HTTPAddr); err != nil {
			logger.Fatal("failed to run local server", zap.Error(err))
		}
		return
	}

	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
