package ports

//go:generate mockgen -source=health.go -destination=mocks/mock_health.go -package=mocks

import "context"

// HealthChecker is a dependency reported by GET /health.
type HealthChecker interface {
	// Ping returns nil when the dependency can serve payouts.
	Ping(ctx context.Context) error
	Name() string
}
