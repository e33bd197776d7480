package postgres

import (
	"context"
	"errors"
	"fmt"
)

var errNoActiveConfig = errors.New("no active payout configuration")

// HealthCheck reports PostgreSQL as unhealthy when it is unreachable or when
// payouts cannot be served because no payout configuration is active.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	var active bool
	err := h.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payout_configurations WHERE is_active)`).Scan(&active)
	if err != nil {
		return fmt.Errorf("query payout configuration: %w", err)
	}
	if !active {
		return errNoActiveConfig
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "postgresql"
}
