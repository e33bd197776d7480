package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketplace-payouts/internal/core/domain"
	"marketplace-payouts/internal/core/ports"
	"marketplace-payouts/internal/core/ports/mocks"
	"marketplace-payouts/internal/service"
	"marketplace-payouts/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testAPI struct {
	router    *gin.Engine
	tokens    *service.JWTTokenService
	payouts   *mocks.MockPayoutService
	methods   *mocks.MockPaymentMethodService
	wallets   *mocks.MockWalletService
	configs   *mocks.MockConfigService
	reporting *mocks.MockReportingService
	feed      *mocks.MockNotificationFeed
	health    *mocks.MockHealthChecker

	vendor domain.Actor
	admin  domain.Actor
}

func newTestAPI(t *testing.T) *testAPI {
	ctrl := gomock.NewController(t)
	api := &testAPI{
		tokens:    service.NewJWTTokenService("handler-test-secret", time.Hour, "marketplace-payouts"),
		payouts:   mocks.NewMockPayoutService(ctrl),
		methods:   mocks.NewMockPaymentMethodService(ctrl),
		wallets:   mocks.NewMockWalletService(ctrl),
		configs:   mocks.NewMockConfigService(ctrl),
		reporting: mocks.NewMockReportingService(ctrl),
		feed:      mocks.NewMockNotificationFeed(ctrl),
		health:    mocks.NewMockHealthChecker(ctrl),
		vendor:    domain.Actor{ID: uuid.New(), Type: domain.ActorVendor},
		admin:     domain.Actor{ID: uuid.New(), Type: domain.ActorAdmin},
	}
	api.router = SetupRouter(RouterDeps{
		PayoutSvc:        api.payouts,
		PaymentMethodSvc: api.methods,
		WalletSvc:        api.wallets,
		ConfigSvc:        api.configs,
		ReportingSvc:     api.reporting,
		NotificationFeed: api.feed,
		TokenSvc:         api.tokens,
		HealthCheckers:   []ports.HealthChecker{api.health},
		Logger:           zerolog.Nop(),
	})
	return api
}

func (api *testAPI) token(t *testing.T, a domain.Actor) string {
	t.Helper()
	tok, _, err := api.tokens.Generate(a)
	require.NoError(t, err)
	return tok
}

func (api *testAPI) do(t *testing.T, method, path string, as *domain.Actor, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+api.token(t, *as))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// --- Auth ---

func TestRoutes_RequireToken(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/api/v1/vendor/wallet", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_001", decode(t, w)["error_code"])
}

func TestRoutes_RoleSeparation(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/v1/admin/payouts/"+uuid.NewString()+"/approve", &api.vendor, map[string]string{})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/vendor/wallet", &api.admin, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// --- Payouts ---

func TestRequestPayout_Success(t *testing.T) {
	api := newTestAPI(t)
	methodID := uuid.New()

	api.payouts.EXPECT().RequestPayout(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in ports.RequestPayoutInput) (*domain.PayoutRequest, error) {
			assert.Equal(t, api.vendor.ID, in.VendorID)
			assert.Equal(t, methodID, in.PaymentMethodID)
			assert.True(t, in.Amount.Equal(decimal.RequireFromString("1500.50")))
			assert.Equal(t, "order-batch-7", in.IdempotencyKey)
			assert.Equal(t, "weekly", in.VendorNotes)
			return &domain.PayoutRequest{
				ID:              uuid.New(),
				RequestNumber:   "PO-01HZX",
				VendorID:        in.VendorID,
				RequestedAmount: in.Amount,
				Status:          domain.PayoutPending,
			}, nil
		})

	w := api.do(t, http.MethodPost, "/api/v1/vendor/payouts", &api.vendor, map[string]string{
		"payment_method_id": methodID.String(),
		"amount":            "1500.50",
		"vendor_notes":      "weekly",
	}, HeaderIdempotencyKey, "order-batch-7")

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "PO-01HZX", data["request_number"])
	assert.Equal(t, "1500.5", data["requested_amount"])
	assert.Equal(t, "pending", data["status"])
}

func TestRequestPayout_ValidationError(t *testing.T) {
	api := newTestAPI(t)

	bodies := []interface{}{
		"{}",
		"not json",
		map[string]string{"payment_method_id": "nope", "amount": "10"},
		map[string]string{"payment_method_id": uuid.NewString(), "amount": "10.005"},
		map[string]string{"payment_method_id": uuid.NewString(), "amount": "-1"},
	}
	for _, body := range bodies {
		w := api.do(t, http.MethodPost, "/api/v1/vendor/payouts", &api.vendor, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %v", body)
		assert.Equal(t, "VAL_001", decode(t, w)["error_code"])
	}
}

func TestRequestPayout_ServiceErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		code      string
		retryable bool
	}{
		{"insufficient", apperror.ErrInsufficientBalance(), http.StatusUnprocessableEntity, "PAY_001", false},
		{"daily limit", apperror.ErrDailyLimitExceeded("10000.00"), http.StatusUnprocessableEntity, "PAY_002", false},
		{"no config", apperror.ErrConfigurationMissing(), http.StatusServiceUnavailable, "CFG_001", false},
		{"lock timeout", apperror.ErrConflict(errors.New("55P03")), http.StatusConflict, "SYS_002", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t)
			api.payouts.EXPECT().RequestPayout(gomock.Any(), gomock.Any()).Return(nil, tt.err)

			w := api.do(t, http.MethodPost, "/api/v1/vendor/payouts", &api.vendor, map[string]string{
				"payment_method_id": uuid.NewString(),
				"amount":            "500",
			})
			assert.Equal(t, tt.status, w.Code)
			resp := decode(t, w)
			assert.Equal(t, tt.code, resp["error_code"])
			assert.Equal(t, tt.retryable, resp["retryable"] == true)
			assert.NotContains(t, w.Body.String(), "55P03")
		})
	}
}

func TestListPayouts_VendorScopedToSelf(t *testing.T) {
	api := newTestAPI(t)
	other := uuid.New()

	api.reporting.EXPECT().ListPayouts(gomock.Any(), gomock.Any(), domain.Page{Page: 2, PageSize: 5}).
		DoAndReturn(func(_ context.Context, f domain.PayoutFilter, _ domain.Page) ([]domain.PayoutRequest, int64, error) {
			require.NotNil(t, f.VendorID)
			assert.Equal(t, api.vendor.ID, *f.VendorID)
			assert.Equal(t, domain.PayoutPaid, f.Status)
			require.NotNil(t, f.To)
			assert.Equal(t, 23, f.To.Hour())
			return []domain.PayoutRequest{{ID: uuid.New()}}, 6, nil
		})

	w := api.do(t, http.MethodGet,
		"/api/v1/vendor/payouts?status=paid&to=2026-03-31&page=2&page_size=5&vendor_id="+other.String(), &api.vendor, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	meta := decode(t, w)["meta"].(map[string]interface{})
	assert.Equal(t, float64(6), meta["total"])
	assert.Equal(t, float64(2), meta["page"])
}

func TestListPayouts_AdminFilters(t *testing.T) {
	api := newTestAPI(t)
	vendorID := uuid.New()

	api.reporting.EXPECT().ListPayouts(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, f domain.PayoutFilter, _ domain.Page) ([]domain.PayoutRequest, int64, error) {
			require.NotNil(t, f.VendorID)
			assert.Equal(t, vendorID, *f.VendorID)
			return nil, 0, nil
		})

	w := api.do(t, http.MethodGet, "/api/v1/admin/payouts?vendor_id="+vendorID.String(), &api.admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/admin/payouts?from=yesterday", &api.admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetPayout_BadID(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, http.MethodGet, "/api/v1/vendor/payouts/not-a-uuid", &api.vendor, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApprove_PartialAmount(t *testing.T) {
	api := newTestAPI(t)
	payoutID := uuid.New()

	api.payouts.EXPECT().Approve(gomock.Any(), api.admin, payoutID, gomock.Any(), "checked").
		DoAndReturn(func(_ context.Context, _ domain.Actor, _ uuid.UUID, amount *decimal.Decimal, _ string) (*domain.PayoutRequest, error) {
			require.NotNil(t, amount)
			assert.Equal(t, "800", amount.String())
			return &domain.PayoutRequest{ID: payoutID, Status: domain.PayoutApproved}, nil
		})

	w := api.do(t, http.MethodPost, "/api/v1/admin/payouts/"+payoutID.String()+"/approve", &api.admin,
		map[string]string{"approved_amount": "800", "admin_notes": "checked"})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestApprove_InvalidTransition(t *testing.T) {
	api := newTestAPI(t)
	payoutID := uuid.New()

	api.payouts.EXPECT().Approve(gomock.Any(), api.admin, payoutID, nil, "").
		Return(&domain.PayoutRequest{ID: payoutID, Status: domain.PayoutPaid}, apperror.ErrInvalidTransition("paid", "approve"))

	w := api.do(t, http.MethodPost, "/api/v1/admin/payouts/"+payoutID.String()+"/approve", &api.admin, map[string]string{})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "PAY_006", decode(t, w)["error_code"])
}

func TestReject_RequiresReason(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, http.MethodPost, "/api/v1/admin/payouts/"+uuid.NewString()+"/reject", &api.admin, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReject_ReasonStoredVerbatim(t *testing.T) {
	api := newTestAPI(t)
	payoutID := uuid.New()
	reason := `R&D <ops> flagged "duplicate"`

	api.payouts.EXPECT().Reject(gomock.Any(), api.admin, payoutID, reason).
		Return(&domain.PayoutRequest{ID: payoutID, Status: domain.PayoutRejected, RejectionReason: &reason}, nil)

	w := api.do(t, http.MethodPost, "/api/v1/admin/payouts/"+payoutID.String()+"/reject", &api.admin,
		map[string]string{"reason": "  " + reason + " "})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMarkProcessing_EmptyBody(t *testing.T) {
	api := newTestAPI(t)
	payoutID := uuid.New()

	api.payouts.EXPECT().MarkProcessing(gomock.Any(), api.admin, payoutID, "").
		Return(&domain.PayoutRequest{ID: payoutID, Status: domain.PayoutProcessing}, nil)

	w := api.do(t, http.MethodPost, "/api/v1/admin/payouts/"+payoutID.String()+"/processing", &api.admin, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestMarkPaid(t *testing.T) {
	api := newTestAPI(t)
	payoutID := uuid.New()

	api.payouts.EXPECT().MarkPaid(gomock.Any(), api.admin, payoutID, ports.MarkPaidInput{
		TransactionID:   "UTR-998877",
		ReferenceNumber: "NEFT-1",
	}).Return(&domain.PayoutRequest{ID: payoutID, Status: domain.PayoutPaid}, nil)

	w := api.do(t, http.MethodPost, "/api/v1/admin/payouts/"+payoutID.String()+"/paid", &api.admin,
		map[string]string{"transaction_id": "UTR-998877", "reference_number": "NEFT-1"})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(t, http.MethodPost, "/api/v1/admin/payouts/"+payoutID.String()+"/paid", &api.admin,
		map[string]string{"transaction_id": "UTR 99; drop"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Wallet ---

func TestGetWallet(t *testing.T) {
	api := newTestAPI(t)
	api.reporting.EXPECT().GetWallet(gomock.Any(), api.vendor.ID).Return(&domain.WalletBalance{
		VendorID:         api.vendor.ID,
		AvailableBalance: decimal.RequireFromString("900"),
		PendingBalance:   decimal.RequireFromString("100.5"),
	}, nil)

	w := api.do(t, http.MethodGet, "/api/v1/vendor/wallet", &api.vendor, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "900.00", data["available_balance"])
	assert.Equal(t, "100.50", data["pending_balance"])
	assert.Equal(t, "1000.50", data["total_balance"])
}

func TestCreditWallet(t *testing.T) {
	api := newTestAPI(t)
	vendorID := uuid.New()

	api.wallets.EXPECT().Credit(gomock.Any(), api.admin, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ domain.Actor, in ports.CreditInput) (*domain.WalletTransaction, error) {
			assert.Equal(t, vendorID, in.VendorID)
			assert.Equal(t, domain.CategoryOrderSettlement, in.Category)
			assert.Equal(t, "ord-42", in.ReferenceID)
			return &domain.WalletTransaction{ID: uuid.New(), Amount: in.Amount}, nil
		})

	w := api.do(t, http.MethodPost, "/api/v1/admin/vendors/"+vendorID.String()+"/wallet/credit", &api.admin,
		map[string]string{"amount": "250", "category": "order_settlement", "reference_type": "order", "reference_id": "ord-42"})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do(t, http.MethodPost, "/api/v1/admin/vendors/"+vendorID.String()+"/wallet/credit", &api.admin,
		map[string]string{"amount": "250", "category": "payout"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReconcile(t *testing.T) {
	api := newTestAPI(t)
	vendorID := uuid.New()
	api.wallets.EXPECT().Reconcile(gomock.Any(), vendorID).Return(&ports.ReconcileReport{VendorID: vendorID, Consistent: true}, nil)

	w := api.do(t, http.MethodGet, "/api/v1/admin/vendors/"+vendorID.String()+"/wallet/reconcile", &api.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["data"].(map[string]interface{})["consistent"])
}

// --- Payment methods ---

func TestAddPaymentMethod(t *testing.T) {
	api := newTestAPI(t)

	api.methods.EXPECT().Add(gomock.Any(), api.vendor.ID, ports.AddPaymentMethodInput{
		MethodType:        domain.MethodUPI,
		AccountHolderName: "Asha",
		UPIID:             "asha@okbank",
	}).Return(&domain.PaymentMethod{ID: uuid.New(), MaskedAccount: "****bank", AccountNumberEnc: "ciphertext"}, nil)

	w := api.do(t, http.MethodPost, "/api/v1/vendor/payment-methods", &api.vendor,
		map[string]string{"method_type": "upi", "account_holder_name": "Asha", "upi_id": "asha@okbank"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "ciphertext")
}

func TestPaymentMethod_DuplicateAndDefault(t *testing.T) {
	api := newTestAPI(t)
	methodID := uuid.New()

	api.methods.EXPECT().Add(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, apperror.ErrDuplicatePaymentMethod())
	w := api.do(t, http.MethodPost, "/api/v1/vendor/payment-methods", &api.vendor,
		map[string]string{"method_type": "upi", "account_holder_name": "Asha", "upi_id": "asha@okbank"})
	assert.Equal(t, http.StatusConflict, w.Code)

	api.methods.EXPECT().SetDefault(gomock.Any(), api.vendor.ID, methodID).Return(&domain.PaymentMethod{ID: methodID, IsDefault: true}, nil)
	w = api.do(t, http.MethodPut, "/api/v1/vendor/payment-methods/"+methodID.String()+"/default", &api.vendor, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	api.methods.EXPECT().Remove(gomock.Any(), api.vendor.ID, methodID).Return(nil)
	w = api.do(t, http.MethodDelete, "/api/v1/vendor/payment-methods/"+methodID.String(), &api.vendor, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPaymentMethodReview(t *testing.T) {
	api := newTestAPI(t)
	methodID := uuid.New()

	api.methods.EXPECT().Verify(gomock.Any(), api.admin, methodID).
		Return(&domain.PaymentMethod{ID: methodID, VerificationStatus: domain.VerificationVerified}, nil)
	w := api.do(t, http.MethodPost, "/api/v1/admin/payment-methods/"+methodID.String()+"/verify", &api.admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	api.methods.EXPECT().Reject(gomock.Any(), api.admin, methodID, "name mismatch").
		Return(&domain.PaymentMethod{ID: methodID, VerificationStatus: domain.VerificationRejected}, nil)
	w = api.do(t, http.MethodPost, "/api/v1/admin/payment-methods/"+methodID.String()+"/reject", &api.admin,
		map[string]string{"reason": "name mismatch"})
	assert.Equal(t, http.StatusOK, w.Code)
}

// --- Config ---

func TestUpdatePayoutConfig(t *testing.T) {
	api := newTestAPI(t)

	api.configs.EXPECT().Update(gomock.Any(), api.admin, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ domain.Actor, cfg *domain.PayoutConfiguration) (*domain.PayoutConfiguration, error) {
			assert.Equal(t, "0.005", cfg.ProcessingFeePercentage.String())
			cfg.ID = uuid.New()
			cfg.IsActive = true
			return cfg, nil
		})

	w := api.do(t, http.MethodPut, "/api/v1/admin/payout-config", &api.admin, map[string]string{
		"min_payout_amount":         "100",
		"max_payout_amount":         "100000",
		"daily_payout_limit":        "10000",
		"monthly_payout_limit":      "50000",
		"processing_fee_percentage": "0.005",
		"processing_fee_fixed":      "5",
		"tds_percentage":            "0.01",
		"auto_approval_limit":       "1000",
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestGetPayoutConfig_Missing(t *testing.T) {
	api := newTestAPI(t)
	api.configs.EXPECT().GetActive(gomock.Any()).Return(nil, apperror.ErrConfigurationMissing())

	w := api.do(t, http.MethodGet, "/api/v1/admin/payout-config", &api.admin, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// --- Notifications ---

func TestNotifications(t *testing.T) {
	api := newTestAPI(t)
	eventID := uuid.New()

	api.feed.EXPECT().List(gomock.Any(), api.vendor.ID, true, domain.Page{Page: 1, PageSize: domain.DefaultPageSize}).
		Return([]domain.NotificationEvent{{ID: eventID, Type: domain.NotifyPayoutPaid}}, int64(1), nil)
	w := api.do(t, http.MethodGet, "/api/v1/vendor/notifications?unread=true", &api.vendor, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	api.feed.EXPECT().MarkRead(gomock.Any(), api.vendor.ID, eventID).Return(apperror.ErrNotFound("Notification"))
	w = api.do(t, http.MethodPost, "/api/v1/vendor/notifications/"+eventID.String()+"/read", &api.vendor, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// --- Health & docs ---

func TestHealthCheck(t *testing.T) {
	api := newTestAPI(t)
	api.health.EXPECT().Name().Return("postgresql").AnyTimes()

	api.health.EXPECT().Ping(gomock.Any()).Return(nil)
	w := api.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])

	api.health.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))
	w = api.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", decode(t, w)["status"])
}

func TestSwagger(t *testing.T) {
	api := newTestAPI(t)

	SetSwaggerSpec([]byte("openapi: '3.0.0'\ninfo:\n  title: Test"))
	t.Cleanup(func() { SetSwaggerSpec(nil) })

	w := api.do(t, http.MethodGet, "/swagger/spec", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi")

	w = api.do(t, http.MethodGet, "/swagger", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "swagger-ui")
}
