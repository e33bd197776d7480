// Package memory is a process-local storage driver. Transactions are
// serialized and roll back by restoring a snapshot, which gives the same
// isolation as row locks on a single node.
//
// Methods that take a pgx.Tx read the live tables, including writes of the
// running transaction. Methods without one read the state as of the last
// commit, like a pool query under READ COMMITTED.
package memory

import (
	"context"
	"sync"
	"time"

	"marketplace-payouts/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Store holds every table. Notifications are written outside transactions
// and are not part of the snapshot.
type Store struct {
	mu sync.RWMutex

	wallets   map[uuid.UUID]domain.WalletBalance
	walletTxs []domain.WalletTransaction
	payouts   map[uuid.UUID]*domain.PayoutRequest
	methods   map[uuid.UUID]domain.PaymentMethod
	audit     []domain.AuditLogEntry
	configs   []domain.PayoutConfiguration

	notifications []domain.NotificationEvent

	// open is the committed state while a transaction runs.
	open *snapshot
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		wallets: make(map[uuid.UUID]domain.WalletBalance),
		payouts: make(map[uuid.UUID]*domain.PayoutRequest),
		methods: make(map[uuid.UUID]domain.PaymentMethod),
	}
}

type snapshot struct {
	wallets   map[uuid.UUID]domain.WalletBalance
	walletTxs []domain.WalletTransaction
	payouts   map[uuid.UUID]*domain.PayoutRequest
	methods   map[uuid.UUID]domain.PaymentMethod
	audit     []domain.AuditLogEntry
	configs   []domain.PayoutConfiguration
}

// begin copies the tables and serves them to readers outside the
// transaction until end.
func (s *Store) begin() *snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &snapshot{
		wallets:   make(map[uuid.UUID]domain.WalletBalance, len(s.wallets)),
		walletTxs: append([]domain.WalletTransaction(nil), s.walletTxs...),
		payouts:   make(map[uuid.UUID]*domain.PayoutRequest, len(s.payouts)),
		methods:   make(map[uuid.UUID]domain.PaymentMethod, len(s.methods)),
		audit:     append([]domain.AuditLogEntry(nil), s.audit...),
		configs:   append([]domain.PayoutConfiguration(nil), s.configs...),
	}
	for k, v := range s.wallets {
		snap.wallets[k] = v
	}
	for k, v := range s.payouts {
		snap.payouts[k] = v.Clone()
	}
	for k, v := range s.methods {
		snap.methods[k] = v
	}
	s.open = snap
	return snap
}

// end publishes the live tables, or puts snap back when restore is set.
func (s *Store) end(snap *snapshot, restore bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if restore {
		s.wallets = snap.wallets
		s.walletTxs = snap.walletTxs
		s.payouts = snap.payouts
		s.methods = snap.methods
		s.audit = snap.audit
		s.configs = snap.configs
	}
	s.open = nil
}

// live returns the current tables. Callers hold s.mu.
func (s *Store) live() *snapshot {
	return &snapshot{
		wallets:   s.wallets,
		walletTxs: s.walletTxs,
		payouts:   s.payouts,
		methods:   s.methods,
		audit:     s.audit,
		configs:   s.configs,
	}
}

// committed returns the tables as of the last commit. Callers hold s.mu.
func (s *Store) committed() *snapshot {
	if s.open != nil {
		return s.open
	}
	return s.live()
}

// lockNotAvailable mirrors PostgreSQL's lock_timeout error so callers
// classify it the same way.
var lockNotAvailable = &pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint", ConstraintName: constraint}
}

// Transactor implements ports.DBTransactor. One transaction runs at a time.
type Transactor struct {
	store       *Store
	sem         chan struct{}
	lockTimeout time.Duration
}

// NewTransactor creates a Transactor over store. A zero lockTimeout waits
// until the context is done.
func NewTransactor(store *Store, lockTimeout time.Duration) *Transactor {
	return &Transactor{store: store, sem: make(chan struct{}, 1), lockTimeout: lockTimeout}
}

// Begin waits for the running transaction to finish and snapshots the store.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	var timeout <-chan time.Time
	if t.lockTimeout > 0 {
		timer := time.NewTimer(t.lockTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case t.sem <- struct{}{}:
	case <-timeout:
		return nil, lockNotAvailable
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &tx{owner: t, snap: t.store.begin()}, nil
}

// tx satisfies pgx.Tx for the repositories in this package, which ignore it.
// Only Commit and Rollback are implemented.
type tx struct {
	pgx.Tx
	owner *Transactor
	snap  *snapshot
	once  sync.Once
}

func (x *tx) finish(restore bool) bool {
	done := false
	x.once.Do(func() {
		x.owner.store.end(x.snap, restore)
		<-x.owner.sem
		done = true
	})
	return done
}

func (x *tx) Commit(ctx context.Context) error {
	if !x.finish(false) {
		return pgx.ErrTxClosed
	}
	return nil
}

// Rollback after Commit leaves the store alone and reports pgx.ErrTxClosed, as pgx does.
func (x *tx) Rollback(ctx context.Context) error {
	if !x.finish(true) {
		return pgx.ErrTxClosed
	}
	return nil
}
