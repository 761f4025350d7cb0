package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// EnvPrefix namespaces environment overrides, e.g. STOREFRONT_DYNAMODB__ORDERS_TABLE.
const EnvPrefix = "STOREFRONT_"

const (
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
)

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		HTTPAddr string `koanf:"http_addr"`
	} `koanf:"app"`

	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`

	Storage struct {
		Backend string `koanf:"backend"`
	} `koanf:"storage"`

	DynamoDB struct {
		OrdersTable        string `koanf:"orders_table"`
		ProductsTable      string `koanf:"products_table"`
		CouponsTable       string `koanf:"coupons_table"`
		NotificationsTable string `koanf:"notifications_table"`
		IdempotencyTable   string `koanf:"idempotency_table"`
	} `koanf:"dynamodb"`

	Idempotency struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"idempotency"`

	SQS struct {
		NotificationsQueueURL string `koanf:"notifications_queue_url"`
	} `koanf:"sqs"`

	Store struct {
		DefaultShippingCost string `koanf:"default_shipping_cost"`
		DefaultTaxRate      string `koanf:"default_tax_rate"`
		OperatorUserID      string `koanf:"operator_user_id"`
	} `koanf:"store"`

	Metrics struct {
		CloudWatchNamespace string `koanf:"cloudwatch_namespace"`
	} `koanf:"metrics"`
}

func defaults() map[string]any {
	return map[string]any{
		"app.name":                     "storefront-orderflow",
		"app.http_addr":                ":8080",
		"log.level":                    "info",
		"storage.backend":              BackendDynamoDB,
		"dynamodb.orders_table":        "orders",
		"dynamodb.products_table":      "products",
		"dynamodb.coupons_table":       "coupons",
		"dynamodb.notifications_table": "notifications",
		"dynamodb.idempotency_table":   "idempotency",
		"idempotency.ttl":              "48h",
		"store.default_shipping_cost":  "0",
		"store.default_tax_rate":       "0",
		"store.operator_user_id":       "admin",
	}
}

// Load layers defaults, an optional YAML file and STOREFRONT_ env vars, in that order.
// An empty path skips the file layer.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	for key, val := range defaults() {
		if err := k.Set(key, val); err != nil {
			return Config{}, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	switch c.Storage.Backend {
	case BackendDynamoDB:
		if c.DynamoDB.OrdersTable == "" || c.DynamoDB.ProductsTable == "" || c.DynamoDB.CouponsTable == "" {
			return fmt.Errorf("dynamodb orders/products/coupons tables required")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("storage.backend %q unsupported", c.Storage.Backend)
	}
	if _, err := c.DefaultShippingCost(); err != nil {
		return err
	}
	rate, err := c.DefaultTaxRate()
	if err != nil {
		return err
	}
	if rate.IsNegative() {
		return fmt.Errorf("store.default_tax_rate must not be negative")
	}
	return nil
}

// DefaultShippingCost parses store.default_shipping_cost.
func (c Config) DefaultShippingCost() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(c.Store.DefaultShippingCost))
	if err != nil {
		return decimal.Zero, fmt.Errorf("store.default_shipping_cost: %w", err)
	}
	return d, nil
}

// DefaultTaxRate parses store.default_tax_rate as a fraction (0.1 = 10%).
func (c Config) DefaultTaxRate() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(c.Store.DefaultTaxRate))
	if err != nil {
		return decimal.Zero, fmt.Errorf("store.default_tax_rate: %w", err)
	}
	return d, nil
}
