package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/gamersmart/internal/domain"
)

func TestCartService_GetOrCreateActiveCart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()

	first, err := env.carts.GetOrCreateActiveCart(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, domain.CartStatusActive, first.Status)
	assert.True(t, first.TotalAmount.IsZero())

	second, err := env.carts.GetOrCreateActiveCart(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestCartService_GetOrCreateActiveCart_Concurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()

	var wg sync.WaitGroup
	ids := make([]uuid.UUID, 10)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cart, err := env.carts.GetOrCreateActiveCart(ctx, userID)
			if assert.NoError(t, err) {
				ids[i] = cart.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestCartService_AddItem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	game := env.addGame("halo", "60.00", 5)

	added, err := env.carts.AddItem(ctx, userID, game.ID, 2)
	require.NoError(t, err)
	assert.True(t, added.Inserted)
	assert.Equal(t, 2, added.Item.Quantity)
	assert.True(t, decimal.RequireFromString("60").Equal(added.Item.Price))
	assert.True(t, decimal.RequireFromString("120").Equal(added.Cart.TotalAmount))
	assert.Equal(t, 2, added.Cart.TotalItems)

	merged, err := env.carts.AddItem(ctx, userID, game.ID, 1)
	require.NoError(t, err)
	assert.False(t, merged.Inserted)
	assert.Equal(t, added.Item.ID, merged.Item.ID)
	assert.Equal(t, 3, merged.Item.Quantity)
	assert.True(t, decimal.RequireFromString("180").Equal(merged.Cart.TotalAmount))

	detail, err := env.carts.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, detail.Items, 1)
}

func TestCartService_AddItem_UsesDiscountPrice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	game := domain.Game{
		ID:           uuid.New(),
		Name:         "fifa",
		Price:        decimal.RequireFromString("50.00"),
		Discount:     decimal.NewFromInt(10),
		Stock:        domain.Stock{Unlimited: true},
		Availability: domain.AvailabilityAvailable,
		IsActive:     true,
	}
	env.store.AddGame(game)

	added, err := env.carts.AddItem(ctx, uuid.New(), game.ID, 2)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("45").Equal(added.Item.Price))
	assert.True(t, decimal.RequireFromString("90").Equal(added.Cart.TotalAmount))
}

func TestCartService_AddItem_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	game := env.addGame("halo", "60.00", 3)

	inactive := env.addGame("retired", "10.00", 10)
	inactive.IsActive = false
	env.store.AddGame(inactive)

	preorder := env.addGame("upcoming", "70.00", 10)
	preorder.Availability = domain.AvailabilityPreOrder
	env.store.AddGame(preorder)

	tests := []struct {
		name     string
		gameID   uuid.UUID
		quantity int
		code     string
	}{
		{"zero quantity", game.ID, 0, domain.EINVALID},
		{"quantity above limit", game.ID, domain.MaxItemQuantity + 1, domain.EINVALID},
		{"unknown game", uuid.New(), 1, domain.ENOTFOUND},
		{"inactive game", inactive.ID, 1, domain.ENOTFOUND},
		{"pre-order game", preorder.ID, 1, domain.ENOTFOUND},
		{"more than stock", game.ID, 4, domain.ESTOCK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.carts.AddItem(ctx, userID, tt.gameID, tt.quantity)
			require.Error(t, err)
			assert.Equal(t, tt.code, domain.ErrorCode(err))
		})
	}
}

func TestCartService_AddItem_MergeExceedingStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	game := env.addGame("halo", "60.00", 3)

	_, err := env.carts.AddItem(ctx, userID, game.ID, 2)
	require.NoError(t, err)

	_, err = env.carts.AddItem(ctx, userID, game.ID, 2)
	require.Error(t, err)
	assert.Equal(t, domain.ESTOCK, domain.ErrorCode(err))

	detail, err := env.carts.GetCart(ctx, userID)
	require.NoError(t, err)
	require.Len(t, detail.Items, 1)
	assert.Equal(t, 2, detail.Items[0].Quantity)
}

func TestCartService_AddItem_MergeUnlimitedStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()

	game := domain.Game{
		ID:           uuid.New(),
		Name:         "minecraft",
		Price:        decimal.RequireFromString("20.00"),
		Stock:        domain.Stock{Unlimited: true},
		Availability: domain.AvailabilityAvailable,
		IsActive:     true,
	}
	env.store.AddGame(game)

	_, err := env.carts.AddItem(ctx, userID, game.ID, 600)
	require.NoError(t, err)
	merged, err := env.carts.AddItem(ctx, userID, game.ID, 600)
	require.NoError(t, err)

	assert.False(t, merged.Inserted)
	assert.Equal(t, 1200, merged.Item.Quantity)
	assert.Equal(t, 1200, merged.Cart.TotalItems)
}

func TestCartService_AddItem_ConcurrentMergeRespectsStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	game := env.addGame("halo", "60.00", 5)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.carts.AddItem(ctx, userID, game.ID, 1)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.Equal(t, domain.ESTOCK, domain.ErrorCode(err))
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)

	detail, err := env.carts.GetCart(ctx, userID)
	require.NoError(t, err)
	require.Len(t, detail.Items, 1)
	assert.Equal(t, 5, detail.Items[0].Quantity)
}

func TestCartService_AddItem_ZeroStockMarksOutOfStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	game := env.addGame("sold-out", "30.00", 0)

	_, err := env.carts.AddItem(ctx, uuid.New(), game.ID, 1)
	require.Error(t, err)
	assert.Equal(t, domain.ESTOCK, domain.ErrorCode(err))

	stored := env.game(t, game.ID)
	assert.Equal(t, domain.AvailabilityOutOfStock, stored.Availability)
	assert.False(t, stored.IsActive)
}

func TestCartService_UpdateItemQuantity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	game := env.addGame("halo", "60.00", 5)

	added, err := env.carts.AddItem(ctx, userID, game.ID, 1)
	require.NoError(t, err)

	// A price change is picked up when the line is updated.
	game.Price = decimal.RequireFromString("50.00")
	env.store.AddGame(game)

	updated, err := env.carts.UpdateItemQuantity(ctx, userID, added.Item.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Item.Quantity)
	assert.True(t, decimal.RequireFromString("50").Equal(updated.Item.Price))
	assert.True(t, decimal.RequireFromString("200").Equal(updated.Cart.TotalAmount))
	assert.Equal(t, 4, updated.Cart.TotalItems)

	t.Run("exceeds stock", func(t *testing.T) {
		_, err := env.carts.UpdateItemQuantity(ctx, userID, added.Item.ID, 6)
		assert.Equal(t, domain.ESTOCK, domain.ErrorCode(err))
	})

	t.Run("invalid quantity", func(t *testing.T) {
		_, err := env.carts.UpdateItemQuantity(ctx, userID, added.Item.ID, 0)
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	})

	t.Run("unknown item", func(t *testing.T) {
		_, err := env.carts.UpdateItemQuantity(ctx, userID, uuid.New(), 1)
		assert.ErrorIs(t, err, domain.ErrCartItemNotFound)
	})

	t.Run("other user's item", func(t *testing.T) {
		_, err := env.carts.UpdateItemQuantity(ctx, uuid.New(), added.Item.ID, 1)
		assert.ErrorIs(t, err, domain.ErrCartItemNotFound)
	})
}

func TestCartService_RemoveItem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	halo := env.addGame("halo", "60.00", 5)
	fifa := env.addGame("fifa", "40.00", 5)

	first, err := env.carts.AddItem(ctx, userID, halo.ID, 1)
	require.NoError(t, err)
	_, err = env.carts.AddItem(ctx, userID, fifa.ID, 2)
	require.NoError(t, err)

	removed, err := env.carts.RemoveItem(ctx, userID, first.Item.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Item.ID, removed.Item.ID)
	assert.True(t, decimal.RequireFromString("80").Equal(removed.Cart.TotalAmount))
	assert.Equal(t, 2, removed.Cart.TotalItems)

	_, err = env.carts.RemoveItem(ctx, userID, first.Item.ID)
	assert.ErrorIs(t, err, domain.ErrCartItemNotFound)
}

func TestCartService_Clear(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	game := env.addGame("halo", "60.00", 5)

	_, err := env.carts.Clear(ctx, userID)
	assert.ErrorIs(t, err, domain.ErrCartNotFound)

	_, err = env.carts.AddItem(ctx, userID, game.ID, 3)
	require.NoError(t, err)

	cleared, err := env.carts.Clear(ctx, userID)
	require.NoError(t, err)
	assert.True(t, cleared.TotalAmount.IsZero())
	assert.Equal(t, 0, cleared.TotalItems)

	detail, err := env.carts.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, cleared.ID, detail.Cart.ID)
	assert.Empty(t, detail.Items)
}
