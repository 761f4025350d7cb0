package validation

import (
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/storefront-orderflow/internal/orders"
)

var hundred = decimal.NewFromInt(100)

// New returns a validator with the custom tags and struct-level rules registered.
// Field errors are keyed by JSON name.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	// decimals compare numerically under gt/gte/lte
	v.RegisterCustomTypeFunc(func(f reflect.Value) interface{} {
		d, ok := f.Interface().(decimal.Decimal)
		if !ok {
			return nil
		}
		return d.InexactFloat64()
	}, decimal.Decimal{})

	_ = v.RegisterValidation("order_status", func(fl validatorv10.FieldLevel) bool {
		_, err := orders.ParseStatus(fl.Field().String())
		return err == nil
	})

	v.RegisterStructValidation(couponStructValidation, CouponRequest{})
	v.RegisterStructValidation(productStructValidation, ProductRequest{})
	v.RegisterStructValidation(updateOrderStructValidation, UpdateOrderRequest{})

	return v
}

// couponStructValidation caps percentages at 100 and orders the activation window.
func couponStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CouponRequest)

	if req.Type == "percentage" && req.Value.GreaterThan(hundred) {
		sl.ReportError(req.Value, "value", "Value", "percentage_max", "100")
	}
	if req.StartsAt != nil && req.EndsAt != nil && !req.EndsAt.After(*req.StartsAt) {
		sl.ReportError(req.EndsAt, "endsAt", "EndsAt", "after_start", "")
	}
}

func productStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(ProductRequest)

	if req.LaunchAt != nil && req.EndAt != nil && !req.EndAt.After(*req.LaunchAt) {
		sl.ReportError(req.EndAt, "endAt", "EndAt", "after_launch", "")
	}
	seen := make(map[string]bool, len(req.Variants))
	for _, variant := range req.Variants {
		if seen[variant.Name] {
			sl.ReportError(req.Variants, "variants", "Variants", "unique_names", variant.Name)
			return
		}
		seen[variant.Name] = true
	}
}

// updateOrderStructValidation rejects patches that change nothing.
func updateOrderStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(UpdateOrderRequest)

	empty := req.Status == nil && req.Carrier == nil && req.TrackingNumber == nil &&
		req.PaymentMethod == nil && len(req.Fulfillment) == 0 && req.UserID == nil && len(req.Items) == 0
	if empty {
		sl.ReportError(req.Status, "status", "Status", "non_empty_patch", "")
	}
}
