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

// inventoryLedger implements domain.InventoryLedger over a Querier. Services
// build one over the store, or over the transaction they are running in.
type inventoryLedger struct {
	repo   repository.Querier
	logger *slog.Logger
}

// NewInventoryLedger creates a new InventoryLedger instance.
func NewInventoryLedger(repo repository.Querier, logger *slog.Logger) domain.InventoryLedger {
	return &inventoryLedger{
		repo:   repo,
		logger: logger.With("service", "inventory"),
	}
}

// CheckAvailable reports whether quantity units of a game can be sold. A
// limited game found at zero stock is flipped to out-of-stock.
func (l *inventoryLedger) CheckAvailable(ctx context.Context, gameID uuid.UUID, quantity int) (*domain.Game, error) {
	const op = "inventory.check_available"

	game, err := l.repo.GetGame(ctx, gameID)
	if err != nil {
		if errors.Is(err, repository.ErrNoRows) {
			return nil, domain.WrapError(ErrGameNotFound, domain.ENOTFOUND, op, "Game not found")
		}
		return nil, domain.Internal(err, op, "failed to load game")
	}

	if !game.Purchasable() {
		return nil, domain.WrapError(ErrGameUnavailable, domain.ENOTFOUND, op,
			fmt.Sprintf("%s is not available for purchase", game.Name))
	}

	if !game.Stock.Unlimited && game.Stock.Quantity == 0 {
		if err := l.repo.MarkGameOutOfStock(ctx, gameID); err != nil {
			return nil, domain.Internal(err, op, "failed to update game availability")
		}
		l.logger.InfoContext(ctx, "game sold out", "game_id", gameID)
	}

	if !game.HasStockFor(quantity) {
		return nil, domain.InsufficientStock(op,
			fmt.Sprintf("Insufficient stock for %s: %d available, %d requested", game.Name, game.Stock.Quantity, quantity))
	}

	return game, nil
}

// Decrement removes quantity units from stock, floored at zero.
func (l *inventoryLedger) Decrement(ctx context.Context, gameID uuid.UUID, quantity int) (*domain.Game, error) {
	const op = "inventory.decrement"

	game, err := l.repo.DecrementGameStock(ctx, gameID, quantity)
	if err != nil {
		if errors.Is(err, repository.ErrNoRows) {
			return nil, domain.WrapError(ErrGameNotFound, domain.ENOTFOUND, op, "Game not found")
		}
		return nil, domain.Internal(err, op, "failed to decrement stock")
	}
	if telemetry.Business != nil && !game.Stock.Unlimited {
		telemetry.Business.StockDecrements.WithLabelValues(gameID.String()).Add(float64(quantity))
	}
	l.logger.DebugContext(ctx, "stock decremented",
		"game_id", gameID,
		"quantity", quantity,
		"remaining", game.Stock.Quantity,
	)
	return game, nil
}
