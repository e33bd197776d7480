package handler

import (
	"marketplace-payouts/internal/adapter/http/dto"
	"marketplace-payouts/internal/core/ports"
	"marketplace-payouts/pkg/apperror"
	"marketplace-payouts/pkg/response"

	"github.com/gin-gonic/gin"
)

// PaymentMethodHandler serves vendor payout destinations and their review.
type PaymentMethodHandler struct {
	methodSvc ports.PaymentMethodService
}

func NewPaymentMethodHandler(methodSvc ports.PaymentMethodService) *PaymentMethodHandler {
	return &PaymentMethodHandler{methodSvc: methodSvc}
}

// Add handles POST /api/v1/vendor/payment-methods. Account fields are not
// HTML-escaped; the service validates their format.
func (h *PaymentMethodHandler) Add(c *gin.Context) {
	vendor, ok := actor(c)
	if !ok {
		return
	}

	var req dto.AddPaymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	method, err := h.methodSvc.Add(c.Request.Context(), vendor.ID, req.ToInput())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, method)
}

func (h *PaymentMethodHandler) List(c *gin.Context) {
	vendor, ok := actor(c)
	if !ok {
		return
	}
	methods, err := h.methodSvc.List(c.Request.Context(), vendor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, methods)
}

func (h *PaymentMethodHandler) SetDefault(c *gin.Context) {
	vendor, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	method, err := h.methodSvc.SetDefault(c.Request.Context(), vendor.ID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, method)
}

func (h *PaymentMethodHandler) Remove(c *gin.Context) {
	vendor, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.methodSvc.Remove(c.Request.Context(), vendor.ID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"id": id, "removed": true})
}

// Verify handles POST /api/v1/admin/payment-methods/:id/verify.
func (h *PaymentMethodHandler) Verify(c *gin.Context) {
	admin, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	method, err := h.methodSvc.Verify(c.Request.Context(), admin, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, method)
}

func (h *PaymentMethodHandler) Reject(c *gin.Context) {
	admin, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req dto.RejectPaymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	method, err := h.methodSvc.Reject(c.Request.Context(), admin, id, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, method)
}
