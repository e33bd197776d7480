package handler

import (
	"marketplace-payouts/internal/adapter/http/middleware"
	"marketplace-payouts/internal/core/domain"
	"marketplace-payouts/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	PayoutSvc        ports.PayoutService
	PaymentMethodSvc ports.PaymentMethodService
	WalletSvc        ports.WalletService
	ConfigSvc        ports.ConfigService
	ReportingSvc     ports.ReportingService
	NotificationFeed ports.NotificationFeed // nil = feed routes disabled
	TokenSvc         ports.TokenService
	RateLimiter      middleware.Limiter // nil = rate limiting disabled
	HealthCheckers   []ports.HealthChecker
	Logger           zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20))

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimiter, group, rule, deps.Logger)
	}

	payouts := NewPayoutHandler(deps.PayoutSvc, deps.ReportingSvc)
	wallets := NewWalletHandler(deps.WalletSvc, deps.ReportingSvc)
	methods := NewPaymentMethodHandler(deps.PaymentMethodSvc)
	configs := NewConfigHandler(deps.ConfigSvc)

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	v1 := r.Group("/api/v1")

	vendor := v1.Group("/vendor", jwtAuth, middleware.RequireRole(domain.ActorVendor))
	{
		read := rl("vendor_read")
		vendor.GET("/wallet", read, wallets.GetWallet)
		vendor.GET("/wallet/transactions", read, wallets.Transactions)

		vendor.POST("/payouts", rl("payout_request"), payouts.RequestPayout)
		vendor.GET("/payouts", read, payouts.ListPayouts)
		vendor.GET("/payouts/:id", read, payouts.GetPayout)
		vendor.GET("/payouts/:id/audit", read, payouts.Audit)

		pm := rl("payment_methods")
		vendor.POST("/payment-methods", pm, methods.Add)
		vendor.GET("/payment-methods", read, methods.List)
		vendor.PUT("/payment-methods/:id/default", pm, methods.SetDefault)
		vendor.DELETE("/payment-methods/:id", pm, methods.Remove)

		if deps.NotificationFeed != nil {
			feed := NewNotificationHandler(deps.NotificationFeed)
			vendor.GET("/notifications", read, feed.List)
			vendor.POST("/notifications/:id/read", read, feed.MarkRead)
		}
	}

	admin := v1.Group("/admin", jwtAuth, middleware.RequireRole(domain.ActorAdmin), rl("admin"))
	{
		admin.GET("/payouts", payouts.ListPayouts)
		admin.GET("/payouts/stats", payouts.Stats)
		admin.GET("/payouts/:id", payouts.GetPayout)
		admin.GET("/payouts/:id/audit", payouts.Audit)
		admin.POST("/payouts/:id/approve", payouts.Approve)
		admin.POST("/payouts/:id/reject", payouts.Reject)
		admin.POST("/payouts/:id/processing", payouts.MarkProcessing)
		admin.POST("/payouts/:id/paid", payouts.MarkPaid)

		admin.GET("/vendors/:vendor_id/audit", wallets.VendorAudit)
		admin.GET("/vendors/:vendor_id/wallet", wallets.GetVendorWallet)
		admin.POST("/vendors/:vendor_id/wallet/credit", wallets.Credit)
		admin.GET("/vendors/:vendor_id/wallet/reconcile", wallets.Reconcile)

		admin.POST("/payment-methods/:id/verify", methods.Verify)
		admin.POST("/payment-methods/:id/reject", methods.Reject)

		admin.GET("/payout-config", configs.Get)
		admin.PUT("/payout-config", configs.Update)
	}

	return r
}
