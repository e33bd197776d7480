package main

import (
	"context"
	"testing"
	"time"

	"marketplace-payouts/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStorage_Memory(t *testing.T) {
	cfg := &config.Config{
		Storage:  config.StorageConfig{Driver: "memory"},
		Database: config.DatabaseConfig{LockTimeout: time.Second},
	}

	repos, err := openStorage(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer repos.close()

	assert.NotNil(t, repos.transactor)
	assert.NotNil(t, repos.wallets)
	assert.NotNil(t, repos.notifications)
	assert.Empty(t, repos.health)

	tx, err := repos.transactor.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Commit(context.Background()))
}

func TestOpenStorage_UnknownDriver(t *testing.T) {
	_, err := openStorage(context.Background(), &config.Config{Storage: config.StorageConfig{Driver: "sqlite"}}, zerolog.Nop())
	assert.ErrorContains(t, err, "sqlite")
}
