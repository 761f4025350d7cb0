package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/storefront-orderflow/internal/orders"
	"github.com/imrishuroy/storefront-orderflow/internal/validation"
)

func (h *handler) listMyOrders(c *gin.Context) {
	list, err := h.Orders.FindAll(c.Request.Context(), userID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list})
}

// getMyOrder answers 404 for orders owned by someone else.
func (h *handler) getMyOrder(c *gin.Context) {
	o, ok, err := h.Orders.FindOne(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !ok || o.UserID != userID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *handler) listOrders(c *gin.Context) {
	list, err := h.Orders.FindAll(c.Request.Context(), strings.TrimSpace(c.Query("userId")))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list})
}

func (h *handler) getOrder(c *gin.Context) {
	o, ok, err := h.Orders.FindOne(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *handler) updateOrder(c *gin.Context) {
	var req validation.UpdateOrderRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	o, err := h.Orders.Update(c.Request.Context(), c.Param("id"), toPatch(req))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *handler) refundOrder(c *gin.Context) {
	o, err := h.Orders.Refund(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *handler) addNote(c *gin.Context) {
	var req validation.NoteRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	o, err := h.Orders.AddHistoryNote(c.Request.Context(), c.Param("id"), orders.NoteInput{
		Note:             req.Note,
		IsTrackingUpdate: req.IsTrackingUpdate,
		Location:         req.Location,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *handler) deleteOrder(c *gin.Context) {
	if err := h.Orders.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func toPatch(req validation.UpdateOrderRequest) orders.Patch {
	p := orders.Patch{
		Note:           req.Note,
		Carrier:        req.Carrier,
		TrackingNumber: req.TrackingNumber,
		PaymentMethod:  req.PaymentMethod,
		UserID:         req.UserID,
	}
	if req.Status != nil {
		s := orders.Status(*req.Status)
		p.Status = &s
	}
	if len(req.Items) > 0 && string(req.Items) != "null" {
		// any attempt to send items is rejected by the store
		p.Items = []orders.LineItem{}
	}
	for _, f := range req.Fulfillment {
		p.Fulfillment = append(p.Fulfillment, orders.FulfillmentPatch{
			Index:            f.Index,
			DeliveredKey:     f.DeliveredKey,
			DeliveredContent: f.DeliveredContent,
			ProofImageURL:    f.ProofImageURL,
		})
	}
	return p
}
