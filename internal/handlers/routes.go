package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/imrishuroy/storefront-orderflow/internal/catalog"
	"github.com/imrishuroy/storefront-orderflow/internal/checkout"
	"github.com/imrishuroy/storefront-orderflow/internal/coupons"
	"github.com/imrishuroy/storefront-orderflow/internal/idempotency"
	"github.com/imrishuroy/storefront-orderflow/internal/logging"
	"github.com/imrishuroy/storefront-orderflow/internal/notify"
	"github.com/imrishuroy/storefront-orderflow/internal/orders"
	"github.com/imrishuroy/storefront-orderflow/internal/validation"
)

const (
	// UserIDHeader identifies the caller. Authentication happens upstream.
	UserIDHeader = "X-User-Id"
	// RoleHeader grants admin access when set to "admin".
	RoleHeader = "X-User-Role"

	userKey = "user_id"
)

// CheckoutService prices carts and places orders.
type CheckoutService interface {
	Quote(ctx context.Context, req checkout.Request) (checkout.Quote, error)
	PlaceOrder(ctx context.Context, req checkout.Request) (orders.Order, error)
}

// OrderService is the order store as seen by HTTP handlers.
type OrderService interface {
	FindAll(ctx context.Context, userID string) ([]orders.Order, error)
	FindOne(ctx context.Context, id string) (orders.Order, bool, error)
	Update(ctx context.Context, id string, p orders.Patch) (orders.Order, error)
	Refund(ctx context.Context, id string) (orders.Order, error)
	AddHistoryNote(ctx context.Context, id string, in orders.NoteInput) (orders.Order, error)
	Delete(ctx context.Context, id string) error
}

type CouponService interface {
	Get(ctx context.Context, code string) (coupons.Coupon, error)
	List(ctx context.Context) ([]coupons.Coupon, error)
	Create(ctx context.Context, c coupons.Coupon) (coupons.Coupon, error)
	Update(ctx context.Context, c coupons.Coupon) (coupons.Coupon, error)
	Delete(ctx context.Context, code string) error
}

// Deps groups dependencies for the HTTP handlers.
type Deps struct {
	Checkout       CheckoutService
	Orders         OrderService
	Coupons        CouponService
	Products       catalog.Repository
	Notifications  notify.Repository
	Idempotency    idempotency.Keeper
	OperatorUserID string
}

type handler struct {
	Deps
	validate *validatorv10.Validate
}

// RegisterRoutes wires every storefront route onto r.
func RegisterRoutes(r gin.IRouter, deps Deps) {
	h := &handler{Deps: deps, validate: validation.New()}

	r.GET("/products", h.listProducts)
	r.GET("/products/:id", h.getProduct)
	r.POST("/checkout/quote", h.quote)

	user := r.Group("/", requireUser)
	user.POST("/checkout/orders", h.placeOrder)
	user.GET("/me/orders", h.listMyOrders)
	user.GET("/me/orders/:id", h.getMyOrder)
	user.GET("/notifications", h.listNotifications)
	user.POST("/notifications/:id/read", h.markNotificationRead)

	admin := r.Group("/admin", requireUser, requireAdmin(deps.OperatorUserID))
	admin.GET("/orders", h.listOrders)
	admin.GET("/orders/:id", h.getOrder)
	admin.PATCH("/orders/:id", h.updateOrder)
	admin.DELETE("/orders/:id", h.deleteOrder)
	admin.POST("/orders/:id/refund", h.refundOrder)
	admin.POST("/orders/:id/notes", h.addNote)

	admin.GET("/coupons", h.listCoupons)
	admin.POST("/coupons", h.createCoupon)
	admin.GET("/coupons/:code", h.getCoupon)
	admin.PUT("/coupons/:code", h.updateCoupon)
	admin.DELETE("/coupons/:code", h.deleteCoupon)

	admin.PUT("/products/:id", h.putProduct)
}

func requireUser(c *gin.Context) {
	uid := strings.TrimSpace(c.GetHeader(UserIDHeader))
	if uid == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_user"})
		return
	}
	c.Set(userKey, uid)
	c.Next()
}

func requireAdmin(operatorID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		isOperator := operatorID != "" && c.GetString(userKey) == operatorID
		if !isOperator && !strings.EqualFold(c.GetHeader(RoleHeader), "admin") {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin_only"})
			return
		}
		c.Next()
	}
}

func userID(c *gin.Context) string { return c.GetString(userKey) }

// statusFor maps domain errors onto HTTP status codes and a stable error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, orders.ErrNotFound),
		errors.Is(err, coupons.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, notify.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, orders.ErrAlreadyCancelled):
		return http.StatusConflict, "already_cancelled"
	case errors.Is(err, orders.ErrConflict),
		errors.Is(err, coupons.ErrCodeConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, orders.ErrImmutableField):
		return http.StatusUnprocessableEntity, "immutable_field"
	case errors.Is(err, orders.ErrInvalidInput),
		errors.Is(err, coupons.ErrInvalidDefinition):
		return http.StatusUnprocessableEntity, "invalid_input"
	}
	return http.StatusInternalServerError, "internal_error"
}

func (h *handler) writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger(c).Error("request failed", zap.Error(err))
		c.JSON(status, gin.H{"error": code})
		return
	}
	c.JSON(status, gin.H{"error": code, "msg": err.Error()})
}

func (h *handler) logger(c *gin.Context) *zap.Logger { return logging.From(c) }
