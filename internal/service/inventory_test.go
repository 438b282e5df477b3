package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/gamersmart/internal/domain"
)

func TestInventoryLedger_CheckAvailable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ledger := NewInventoryLedger(env.store, discardLogger())
	game := env.addGame("halo", "60.00", 3)

	got, err := ledger.CheckAvailable(ctx, game.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, game.ID, got.ID)

	_, err = ledger.CheckAvailable(ctx, game.ID, 4)
	assert.Equal(t, domain.ESTOCK, domain.ErrorCode(err))

	_, err = ledger.CheckAvailable(ctx, uuid.New(), 1)
	assert.ErrorIs(t, err, ErrGameNotFound)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestInventoryLedger_Decrement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ledger := NewInventoryLedger(env.store, discardLogger())
	game := env.addGame("halo", "60.00", 3)

	left, err := ledger.Decrement(ctx, game.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, left.Stock.Quantity)
	assert.Equal(t, domain.AvailabilityAvailable, left.Availability)

	left, err = ledger.Decrement(ctx, game.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, left.Stock.Quantity)
	assert.Equal(t, domain.AvailabilityOutOfStock, left.Availability)
	assert.False(t, left.IsActive)

	_, err = ledger.CheckAvailable(ctx, game.ID, 1)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))

	_, err = ledger.Decrement(ctx, uuid.New(), 1)
	assert.ErrorIs(t, err, ErrGameNotFound)
}
