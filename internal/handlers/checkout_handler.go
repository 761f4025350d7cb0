package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imrishuroy/storefront-orderflow/internal/cart"
	"github.com/imrishuroy/storefront-orderflow/internal/catalog"
	"github.com/imrishuroy/storefront-orderflow/internal/checkout"
	"github.com/imrishuroy/storefront-orderflow/internal/coupons"
	"github.com/imrishuroy/storefront-orderflow/internal/idempotency"
	"github.com/imrishuroy/storefront-orderflow/internal/orders"
	"github.com/imrishuroy/storefront-orderflow/internal/validation"
)

// IdempotencyKeyHeader must accompany every order placement.
const IdempotencyKeyHeader = "Idempotency-Key"

func (h *handler) quote(c *gin.Context) {
	var req validation.QuoteRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	q, err := h.Checkout.Quote(c.Request.Context(), checkout.Request{
		Lines:      toLineRequests(req.Lines),
		CouponCode: req.CouponCode,
	})
	if err != nil {
		h.writeCheckoutError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// placeOrder claims the idempotency key before doing any work, so a retried
// request replays the stored response instead of placing a second order.
func (h *handler) placeOrder(c *gin.Context) {
	ctx := c.Request.Context()

	var req validation.CheckoutRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	idempKey := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	if idempKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_idempotency_key"})
		return
	}
	uid := userID(c)
	key := idempotency.ScopedKey(uid, idempKey)
	orderID := uuid.NewString()
	log := h.logger(c).With(zap.String("idempotency_key", idempKey))

	claimed, err := h.Idempotency.CreateIfNotExists(ctx, key, orderID)
	if err != nil {
		log.Error("idempotency claim failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency_check_failed"})
		return
	}
	if !claimed {
		h.replay(c, key)
		return
	}

	order, err := h.Checkout.PlaceOrder(ctx, checkout.Request{
		OrderID:         orderID,
		UserID:          uid,
		Lines:           toLineRequests(req.Lines),
		CouponCode:      req.CouponCode,
		ShippingAddress: toAddress(req.ShippingAddress),
		BillingAddress:  toAddress(req.BillingAddress),
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		// failed records are taken over by the next attempt with the same key
		if markErr := h.Idempotency.MarkFailed(ctx, key, err.Error()); markErr != nil {
			log.Warn("mark idempotency failed", zap.Error(markErr))
		}
		h.writeCheckoutError(c, err)
		return
	}

	body, err := json.Marshal(order)
	if err != nil {
		h.writeError(c, fmt.Errorf("encode order: %w", err))
		return
	}
	if err := h.Idempotency.MarkDone(ctx, key, string(body), http.StatusCreated); err != nil {
		log.Warn("mark idempotency done failed", zap.String("order_id", order.ID), zap.Error(err))
	}

	c.Header("Location", fmt.Sprintf("/me/orders/%s", order.ID))
	c.Data(http.StatusCreated, "application/json; charset=utf-8", body)
}

// replay answers a request whose key is already held by an earlier attempt.
func (h *handler) replay(c *gin.Context, key string) {
	ctx := c.Request.Context()
	rec, err := h.Idempotency.Get(ctx, key)
	if errors.Is(err, idempotency.ErrNotFound) {
		// expired between claim and read; the client may retry
		c.JSON(http.StatusConflict, gin.H{"error": "idempotency_key_expired"})
		return
	}
	if err != nil {
		h.logger(c).Error("idempotency lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency_check_failed"})
		return
	}

	switch rec.Status {
	case idempotency.StatusDone:
		if rec.ResponseBody != "" {
			c.Data(rec.ResponseStatus, "application/json; charset=utf-8", []byte(rec.ResponseBody))
			return
		}
		c.JSON(http.StatusOK, gin.H{"orderId": rec.OrderID})
	case idempotency.StatusInProgress:
		// the first attempt may have persisted the order and died before MarkDone
		o, ok, err := h.Orders.FindOne(ctx, rec.OrderID)
		if err == nil && ok {
			c.JSON(http.StatusOK, o)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"message": "request already in progress", "orderId": rec.OrderID})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unknown_idempotency_status"})
	}
}

// writeCheckoutError reports cart, catalog and coupon problems as 422.
func (h *handler) writeCheckoutError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, coupons.ErrMinimumNotMet):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "coupon_minimum_not_met", "msg": err.Error()})
	case errors.Is(err, coupons.ErrInvalid):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "coupon_invalid", "msg": err.Error()})
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, catalog.ErrUnavailable):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "product_unavailable", "msg": err.Error()})
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrInvalidVariant),
		errors.Is(err, cart.ErrMissingCustomField),
		errors.Is(err, checkout.ErrInvalidRequest):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid_cart", "msg": err.Error()})
	default:
		h.writeError(c, err)
	}
}

func toLineRequests(in []validation.LineRequest) []checkout.LineRequest {
	out := make([]checkout.LineRequest, 0, len(in))
	for _, l := range in {
		out = append(out, checkout.LineRequest{
			ProductID:    strings.TrimSpace(l.ProductID),
			Quantity:     l.Quantity,
			Variants:     l.Variants,
			CustomFields: l.CustomFields,
		})
	}
	return out
}

func toAddress(a *validation.AddressRequest) *orders.Address {
	if a == nil {
		return nil
	}
	return &orders.Address{
		Name:       strings.TrimSpace(a.Name),
		Line1:      strings.TrimSpace(a.Line1),
		Line2:      strings.TrimSpace(a.Line2),
		City:       strings.TrimSpace(a.City),
		Region:     strings.TrimSpace(a.Region),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(a.Country)),
	}
}
