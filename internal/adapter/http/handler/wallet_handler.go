package handler

import (
	"marketplace-payouts/internal/adapter/http/dto"
	"marketplace-payouts/internal/core/domain"
	"marketplace-payouts/internal/core/ports"
	"marketplace-payouts/pkg/apperror"
	"marketplace-payouts/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler serves balances, ledger history, credits and reconciliation.
type WalletHandler struct {
	walletSvc    ports.WalletService
	reportingSvc ports.ReportingService
}

func NewWalletHandler(walletSvc ports.WalletService, reportingSvc ports.ReportingService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc, reportingSvc: reportingSvc}
}

// GetWallet handles GET /api/v1/vendor/wallet.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	vendor, ok := actor(c)
	if !ok {
		return
	}
	h.writeWallet(c, vendor.ID)
}

// GetVendorWallet handles GET /api/v1/admin/vendors/:vendor_id/wallet.
func (h *WalletHandler) GetVendorWallet(c *gin.Context) {
	vendorID, ok := uuidParam(c, "vendor_id")
	if !ok {
		return
	}
	h.writeWallet(c, vendorID)
}

func (h *WalletHandler) writeWallet(c *gin.Context, vendorID uuid.UUID) {
	wallet, err := h.reportingSvc.GetWallet(c.Request.Context(), vendorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWalletResponse(wallet))
}

// Transactions handles GET /api/v1/vendor/wallet/transactions.
func (h *WalletHandler) Transactions(c *gin.Context) {
	vendor, ok := actor(c)
	if !ok {
		return
	}
	page := pageQuery(c)
	txns, total, err := h.reportingSvc.ListWalletTransactions(c.Request.Context(), vendor.ID, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, txns, total, page.Page, page.PageSize)
}

// Credit handles POST /api/v1/admin/vendors/:vendor_id/wallet/credit.
func (h *WalletHandler) Credit(c *gin.Context) {
	admin, ok := actor(c)
	if !ok {
		return
	}
	vendorID, ok := uuidParam(c, "vendor_id")
	if !ok {
		return
	}

	var req dto.CreditWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	amount, err := dto.ParseMoney(req.Amount)
	if err != nil {
		response.Error(c, apperror.Validation("amount is invalid"))
		return
	}

	entry, err := h.walletSvc.Credit(c.Request.Context(), admin, ports.CreditInput{
		VendorID:      vendorID,
		Amount:        amount,
		Category:      domain.TransactionCategory(req.Category),
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		Description:   req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Reconcile handles GET /api/v1/admin/vendors/:vendor_id/wallet/reconcile.
func (h *WalletHandler) Reconcile(c *gin.Context) {
	vendorID, ok := uuidParam(c, "vendor_id")
	if !ok {
		return
	}
	report, err := h.walletSvc.Reconcile(c.Request.Context(), vendorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}

// VendorAudit handles GET /api/v1/admin/vendors/:vendor_id/audit.
func (h *WalletHandler) VendorAudit(c *gin.Context) {
	vendorID, ok := uuidParam(c, "vendor_id")
	if !ok {
		return
	}
	page := pageQuery(c)
	entries, total, err := h.reportingSvc.VendorAudit(c.Request.Context(), vendorID, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, entries, total, page.Page, page.PageSize)
}
