package memory

import (
	"context"

	"marketplace-payouts/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// PayoutConfigRepo implements ports.PayoutConfigRepository. Past
// configurations are kept, inactive.
type PayoutConfigRepo struct{ s *Store }

func NewPayoutConfigRepo(s *Store) *PayoutConfigRepo { return &PayoutConfigRepo{s: s} }

func (r *PayoutConfigRepo) GetActive(ctx context.Context) (*domain.PayoutConfiguration, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, c := range r.s.committed().configs {
		if c.IsActive {
			return &c, nil
		}
	}
	return nil, nil
}

func (r *PayoutConfigRepo) Activate(ctx context.Context, tx pgx.Tx, c *domain.PayoutConfiguration) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.configs {
		r.s.configs[i].IsActive = false
	}
	c.IsActive = true
	r.s.configs = append(r.s.configs, *c)
	return nil
}
