package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/storefront-orderflow/internal/catalog"
	"github.com/imrishuroy/storefront-orderflow/internal/coupons"
	"github.com/imrishuroy/storefront-orderflow/internal/validation"
)

func (h *handler) listProducts(c *gin.Context) {
	list, err := h.Products.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": list})
}

func (h *handler) getProduct(c *gin.Context) {
	p, err := h.Products.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// putProduct upserts a catalog entry. Stock set here bypasses the ledger.
func (h *handler) putProduct(c *gin.Context) {
	var req validation.ProductRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	p := catalog.Product{
		ID:             strings.TrimSpace(c.Param("id")),
		Title:          strings.TrimSpace(req.Title),
		Price:          req.Price,
		ShippingCost:   req.ShippingCost,
		TaxRate:        req.TaxRate,
		Stock:          req.Stock,
		Digital:        req.Digital,
		RequiredFields: req.RequiredFields,
		LaunchAt:       req.LaunchAt,
		EndAt:          req.EndAt,
	}
	for _, v := range req.Variants {
		p.Variants = append(p.Variants, catalog.Variant{Name: v.Name, Options: v.Options})
	}
	if err := h.Products.Put(c.Request.Context(), p); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handler) listCoupons(c *gin.Context) {
	list, err := h.Coupons.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"coupons": list})
}

func (h *handler) getCoupon(c *gin.Context) {
	cp, err := h.Coupons.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cp)
}

func (h *handler) createCoupon(c *gin.Context) {
	var req validation.CouponRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	cp, err := h.Coupons.Create(c.Request.Context(), toCoupon(req))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Location", "/admin/coupons/"+cp.Code)
	c.JSON(http.StatusCreated, cp)
}

// updateCoupon replaces the coupon named in the path; a differing body code is ignored.
func (h *handler) updateCoupon(c *gin.Context) {
	var req validation.CouponRequest
	req.Code = c.Param("code")
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	in := toCoupon(req)
	in.Code = c.Param("code")
	cp, err := h.Coupons.Update(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cp)
}

func (h *handler) deleteCoupon(c *gin.Context) {
	if err := h.Coupons.Delete(c.Request.Context(), c.Param("code")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func toCoupon(req validation.CouponRequest) coupons.Coupon {
	return coupons.Coupon{
		Code:     req.Code,
		Type:     coupons.DiscountType(req.Type),
		Value:    req.Value,
		MinOrder: req.MinOrder,
		StartsAt: req.StartsAt,
		EndsAt:   req.EndsAt,
	}
}
