package handler

import (
	"marketplace-payouts/internal/adapter/http/dto"
	"marketplace-payouts/internal/core/ports"
	"marketplace-payouts/pkg/apperror"
	"marketplace-payouts/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HeaderIdempotencyKey deduplicates payout requests per vendor.
const HeaderIdempotencyKey = "Idempotency-Key"

// PayoutHandler serves vendor and admin payout endpoints.
type PayoutHandler struct {
	payoutSvc    ports.PayoutService
	reportingSvc ports.ReportingService
}

func NewPayoutHandler(payoutSvc ports.PayoutService, reportingSvc ports.ReportingService) *PayoutHandler {
	return &PayoutHandler{payoutSvc: payoutSvc, reportingSvc: reportingSvc}
}

// RequestPayout handles POST /api/v1/vendor/payouts.
func (h *PayoutHandler) RequestPayout(c *gin.Context) {
	vendor, ok := actor(c)
	if !ok {
		return
	}

	var req dto.RequestPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	key := c.GetHeader(HeaderIdempotencyKey)
	if len(key) > 255 {
		response.Error(c, apperror.Validation("Idempotency-Key must be at most 255 characters"))
		return
	}

	amount, err := dto.ParseMoney(req.Amount)
	if err != nil {
		response.Error(c, apperror.Validation("amount is invalid"))
		return
	}

	payout, err := h.payoutSvc.RequestPayout(c.Request.Context(), ports.RequestPayoutInput{
		VendorID:        vendor.ID,
		PaymentMethodID: uuid.MustParse(req.PaymentMethodID),
		Amount:          amount,
		VendorNotes:     req.VendorNotes,
		IdempotencyKey:  key,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payout)
}

// ListPayouts handles GET /api/v1/vendor/payouts and /api/v1/admin/payouts.
// Vendors only ever see their own.
func (h *PayoutHandler) ListPayouts(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	filter, err := payoutFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !a.IsAdmin() {
		filter.VendorID = &a.ID
	}

	page := pageQuery(c)
	payouts, total, err := h.reportingSvc.ListPayouts(c.Request.Context(), filter, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, payouts, total, page.Page, page.PageSize)
}

// Stats handles GET /api/v1/admin/payouts/stats.
func (h *PayoutHandler) Stats(c *gin.Context) {
	filter, err := payoutFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	stats, err := h.reportingSvc.PayoutStats(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

func (h *PayoutHandler) GetPayout(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	payout, err := h.reportingSvc.GetPayout(c.Request.Context(), a, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, payout)
}

func (h *PayoutHandler) Audit(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	entries, err := h.reportingSvc.PayoutAudit(c.Request.Context(), a, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, entries)
}

// Approve handles POST /api/v1/admin/payouts/:id/approve.
func (h *PayoutHandler) Approve(c *gin.Context) {
	admin, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req dto.ApprovePayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	var approved *decimal.Decimal
	if req.ApprovedAmount != nil {
		amount, err := dto.ParseMoney(*req.ApprovedAmount)
		if err != nil {
			response.Error(c, apperror.Validation("approved_amount is invalid"))
			return
		}
		approved = &amount
	}

	payout, err := h.payoutSvc.Approve(c.Request.Context(), admin, id, approved, req.AdminNotes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, payout)
}

func (h *PayoutHandler) Reject(c *gin.Context) {
	admin, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req dto.RejectPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	payout, err := h.payoutSvc.Reject(c.Request.Context(), admin, id, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, payout)
}

func (h *PayoutHandler) MarkProcessing(c *gin.Context) {
	admin, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req dto.MarkProcessingRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, apperror.Validation(err.Error()))
			return
		}
		dto.SanitizeStruct(&req)
	}

	payout, err := h.payoutSvc.MarkProcessing(c.Request.Context(), admin, id, req.AdminNotes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, payout)
}

// MarkPaid handles POST /api/v1/admin/payouts/:id/paid. Repeating the call
// with the same transaction_id returns the paid payout unchanged.
func (h *PayoutHandler) MarkPaid(c *gin.Context) {
	admin, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req dto.MarkPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	payout, err := h.payoutSvc.MarkPaid(c.Request.Context(), admin, id, req.ToInput())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, payout)
}
