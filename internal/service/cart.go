package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dukerupert/gamersmart/internal/domain"
	"github.com/dukerupert/gamersmart/internal/repository"
	"github.com/dukerupert/gamersmart/internal/telemetry"
)

type cartService struct {
	repo      repository.Store
	inventory domain.InventoryLedger
	logger    *slog.Logger
}

// NewCartService creates a new CartService instance
func NewCartService(repo repository.Store, logger *slog.Logger) domain.CartService {
	return &cartService{
		repo:      repo,
		inventory: NewInventoryLedger(repo, logger),
		logger:    logger.With("service", "cart"),
	}
}

// GetOrCreateActiveCart returns the user's active cart, creating it on first use.
// The store enforces one active cart per user, so concurrent first calls
// converge on the same cart.
func (s *cartService) GetOrCreateActiveCart(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	const op = "cart.get_or_create"

	cart, err := s.repo.GetActiveCart(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, repository.ErrNoRows) {
		return nil, domain.Internal(err, op, "failed to load cart")
	}

	cart, err = s.repo.CreateActiveCart(ctx, userID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create cart")
	}

	if telemetry.Business != nil {
		telemetry.Business.CartCreated.Inc()
	}
	return cart, nil
}

// GetCart returns the active cart with its items.
func (s *cartService) GetCart(ctx context.Context, userID uuid.UUID) (*domain.CartDetail, error) {
	cart, err := s.GetOrCreateActiveCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListCartItems(ctx, cart.ID)
	if err != nil {
		return nil, domain.Internal(err, "cart.get", "failed to load cart items")
	}

	return &domain.CartDetail{Cart: *cart, Items: items}, nil
}

// AddItem adds quantity units of a game. An existing line for the same game
// is merged in one atomic upsert that refuses to exceed current stock.
func (s *cartService) AddItem(ctx context.Context, userID, gameID uuid.UUID, quantity int) (*domain.CartMutation, error) {
	const op = "cart.add_item"

	if !domain.ValidQuantity(quantity) {
		return nil, domain.ErrInvalidQuantity
	}

	game, err := s.inventory.CheckAvailable(ctx, gameID, quantity)
	if err != nil {
		s.countRejection(err)
		return nil, err
	}

	cart, err := s.GetOrCreateActiveCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Only the requested quantity is bounded; a merged line is limited by
	// stock alone.
	var maxQuantity int
	if !game.Stock.Unlimited {
		maxQuantity = game.Stock.Quantity
	}

	item, inserted, err := s.repo.UpsertCartItem(ctx, repository.UpsertCartItemParams{
		CartID:      cart.ID,
		GameID:      gameID,
		Quantity:    quantity,
		Price:       game.DiscountPrice(),
		MaxQuantity: maxQuantity,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNoRows) {
			stockErr := domain.InsufficientStock(op,
				fmt.Sprintf("Insufficient stock for %s: %d available", game.Name, game.Stock.Quantity))
			s.countRejection(stockErr)
			return nil, stockErr
		}
		return nil, domain.Internal(err, op, "failed to add cart item")
	}

	cart, err = s.recomputeTotals(ctx, op, cart.ID)
	if err != nil {
		return nil, err
	}

	if telemetry.Business != nil {
		result := "merged"
		if inserted {
			result = "inserted"
		}
		telemetry.Business.CartItemsAdd.WithLabelValues(result).Inc()
	}

	s.logger.DebugContext(ctx, "cart item added",
		"cart_id", cart.ID,
		"game_id", gameID,
		"quantity", item.Quantity,
		"inserted", inserted,
	)

	return &domain.CartMutation{Cart: *cart, Item: *item, Inserted: inserted}, nil
}

// UpdateItemQuantity overwrites a line's quantity and refreshes its price.
func (s *cartService) UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*domain.CartMutation, error) {
	const op = "cart.update_item"

	if !domain.ValidQuantity(quantity) {
		return nil, domain.ErrInvalidQuantity
	}

	cart, item, err := s.findItem(ctx, op, userID, itemID)
	if err != nil {
		return nil, err
	}

	game, err := s.inventory.CheckAvailable(ctx, item.GameID, quantity)
	if err != nil {
		s.countRejection(err)
		return nil, err
	}

	updated, err := s.repo.UpdateCartItem(ctx, repository.UpdateCartItemParams{
		CartID:   cart.ID,
		ItemID:   itemID,
		Quantity: quantity,
		Price:    game.DiscountPrice(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrNoRows) {
			return nil, domain.ErrCartItemNotFound
		}
		return nil, domain.Internal(err, op, "failed to update cart item")
	}

	cart, err = s.recomputeTotals(ctx, op, cart.ID)
	if err != nil {
		return nil, err
	}

	if telemetry.Business != nil {
		telemetry.Business.CartUpdated.WithLabelValues("update").Inc()
	}

	return &domain.CartMutation{Cart: *cart, Item: *updated}, nil
}

// RemoveItem deletes a line from the active cart and returns it.
func (s *cartService) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*domain.CartMutation, error) {
	const op = "cart.remove_item"

	cart, err := s.repo.GetActiveCart(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNoRows) {
			return nil, domain.ErrCartItemNotFound
		}
		return nil, domain.Internal(err, op, "failed to load cart")
	}

	removed, err := s.repo.DeleteCartItem(ctx, cart.ID, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrNoRows) {
			return nil, domain.ErrCartItemNotFound
		}
		return nil, domain.Internal(err, op, "failed to remove cart item")
	}

	cart, err = s.recomputeTotals(ctx, op, cart.ID)
	if err != nil {
		return nil, err
	}

	if telemetry.Business != nil {
		telemetry.Business.CartUpdated.WithLabelValues("remove").Inc()
	}

	return &domain.CartMutation{Cart: *cart, Item: *removed}, nil
}

// Clear deletes every line of the active cart and zeroes its totals.
func (s *cartService) Clear(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	const op = "cart.clear"

	var cleared *domain.Cart
	err := s.repo.ExecTx(ctx, func(q repository.Querier) error {
		cart, err := q.GetActiveCart(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNoRows) {
				return domain.ErrCartNotFound
			}
			return domain.Internal(err, op, "failed to load cart")
		}

		if err := q.DeleteCartItems(ctx, cart.ID); err != nil {
			return domain.Internal(err, op, "failed to delete cart items")
		}

		cleared, err = q.UpdateCartTotals(ctx, cart.ID, domain.ComputeCartTotals(nil))
		if err != nil {
			return domain.Internal(err, op, "failed to reset cart totals")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if telemetry.Business != nil {
		telemetry.Business.CartCleared.Inc()
	}

	return cleared, nil
}

func (s *cartService) findItem(ctx context.Context, op string, userID, itemID uuid.UUID) (*domain.Cart, *domain.CartItem, error) {
	cart, err := s.repo.GetActiveCart(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNoRows) {
			return nil, nil, domain.ErrCartItemNotFound
		}
		return nil, nil, domain.Internal(err, op, "failed to load cart")
	}

	item, err := s.repo.GetCartItem(ctx, cart.ID, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrNoRows) {
			return nil, nil, domain.ErrCartItemNotFound
		}
		return nil, nil, domain.Internal(err, op, "failed to load cart item")
	}

	return cart, item, nil
}

// recomputeTotals folds the current item set into the cart and persists it.
func (s *cartService) recomputeTotals(ctx context.Context, op string, cartID uuid.UUID) (*domain.Cart, error) {
	items, err := s.repo.ListCartItems(ctx, cartID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load cart items")
	}

	totals := domain.ComputeCartTotals(items)
	cart, err := s.repo.UpdateCartTotals(ctx, cartID, totals)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to update cart totals")
	}

	if telemetry.Business != nil {
		value, _ := totals.Amount.Float64()
		telemetry.Business.CartValue.Observe(value)
	}
	return cart, nil
}

func (s *cartService) countRejection(err error) {
	if telemetry.Business == nil {
		return
	}
	if domain.IsCode(err, domain.ESTOCK) || domain.IsCode(err, domain.ENOTFOUND) {
		telemetry.Business.StockRejections.WithLabelValues("cart").Inc()
	}
}
