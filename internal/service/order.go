package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/gamersmart/internal/domain"
	"github.com/dukerupert/gamersmart/internal/events"
	"github.com/dukerupert/gamersmart/internal/repository"
	"github.com/dukerupert/gamersmart/internal/telemetry"
)

// Pagination bounds for ListOrders.
const (
	DefaultOrderPageSize = 10
	MaxOrderPageSize     = 100
)

type orderService struct {
	repo      repository.Store
	publisher events.Publisher
	logger    *slog.Logger
}

// NewOrderService creates a new OrderService instance
func NewOrderService(repo repository.Store, publisher events.Publisher, logger *slog.Logger) domain.OrderService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &orderService{
		repo:      repo,
		publisher: publisher,
		logger:    logger.With("service", "order"),
	}
}

// CreateOrder snapshots the active cart into a pending order.
//
// Every line is re-checked against the catalog inside the transaction, so a
// game that went unavailable since it was added fails the whole checkout.
// The cart leaves the active state through a conditional update; a second
// concurrent checkout of the same cart loses that update and rolls back.
func (s *orderService) CreateOrder(ctx context.Context, userID uuid.UUID, params domain.CreateOrderParams) (*domain.Order, error) {
	const op = "order.create"

	if !params.PaymentMethod.Valid() {
		return nil, ErrInvalidPaymentMethod
	}
	if params.ShippingAddress.Country == "" {
		params.ShippingAddress.Country = domain.DefaultCountry
	}

	var (
		order   *domain.Order
		shortOf uuid.UUID
	)
	err := s.repo.ExecTx(ctx, func(q repository.Querier) error {
		inventory := NewInventoryLedger(q, s.logger)

		cart, err := q.GetActiveCart(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNoRows) {
				return domain.ErrEmptyCart
			}
			return domain.Internal(err, op, "failed to load cart")
		}

		cartItems, err := q.ListCartItems(ctx, cart.ID)
		if err != nil {
			return domain.Internal(err, op, "failed to load cart items")
		}
		if len(cartItems) == 0 {
			return domain.ErrEmptyCart
		}

		items := make([]domain.OrderItem, 0, len(cartItems))
		for _, ci := range cartItems {
			game, err := inventory.CheckAvailable(ctx, ci.GameID, ci.Quantity)
			if err != nil {
				if domain.IsCode(err, domain.ESTOCK) {
					shortOf = ci.GameID
				}
				return err
			}
			items = append(items, domain.NewOrderItem(game, ci.Quantity, ci.Price))
		}

		amount, count := domain.ComputeOrderTotals(items)
		order = &domain.Order{
			ID:              uuid.New(),
			UserID:          userID,
			OrderNumber:     newOrderNumber(time.Now()),
			Items:           items,
			TotalAmount:     amount,
			TotalItems:      count,
			Status:          domain.OrderStatusPending,
			PaymentStatus:   domain.OrderPaymentPending,
			PaymentMethod:   params.PaymentMethod,
			ShippingAddress: params.ShippingAddress,
			IsActive:        true,
		}
		if err := q.CreateOrder(ctx, order); err != nil {
			return domain.Internal(err, op, "failed to create order")
		}

		moved, err := q.TransitionCartStatus(ctx, cart.ID, domain.CartStatusActive, domain.CartStatusCheckout)
		if err != nil {
			return domain.Internal(err, op, "failed to check out cart")
		}
		if !moved {
			return domain.ErrCartAlreadyConverted
		}
		return nil
	})
	if err != nil {
		if shortOf != uuid.Nil {
			s.recheckStock(ctx, shortOf)
		}
		if telemetry.Business != nil && (domain.IsCode(err, domain.ESTOCK) || domain.IsCode(err, domain.ENOTFOUND)) {
			telemetry.Business.StockRejections.WithLabelValues("order").Inc()
		}
		return nil, err
	}

	if telemetry.Business != nil {
		value, _ := order.TotalAmount.Float64()
		telemetry.Business.OrdersCreated.Inc()
		telemetry.Business.OrderValue.Observe(value)
		telemetry.Business.OrderItemCount.Observe(float64(order.TotalItems))
	}

	s.logger.InfoContext(ctx, "order created",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"user_id", userID,
		"total", order.TotalAmount.StringFixed(2),
		"items", order.TotalItems,
	)

	ev := events.New(events.OrderCreated, userID, order.ID)
	ev.Amount = order.TotalAmount
	s.publish(ctx, ev)

	return order, nil
}

// GetOrder returns one of the user's orders. Orders of other users are
// reported as not found.
func (s *orderService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error) {
	return loadOwnedOrder(ctx, s.repo, "order.get", userID, orderID)
}

// ListOrders returns a page of the user's orders, newest first.
func (s *orderService) ListOrders(ctx context.Context, userID uuid.UUID, params domain.ListOrdersParams) (*domain.OrderPage, error) {
	const op = "order.list"

	if params.Status != "" && !params.Status.Valid() {
		return nil, domain.Invalid(op, fmt.Sprintf("Unknown order status %q", params.Status))
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	limit := params.Limit
	if limit < 1 {
		limit = DefaultOrderPageSize
	}
	if limit > MaxOrderPageSize {
		limit = MaxOrderPageSize
	}

	orders, total, err := s.repo.ListOrders(ctx, repository.ListOrdersParams{
		UserID: userID,
		Status: params.Status,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list orders")
	}
	if orders == nil {
		orders = []domain.Order{}
	}

	return &domain.OrderPage{
		Orders:     orders,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

// recheckStock repeats a failed stock check outside the rolled-back checkout
// so a game found sold out still gets flagged in the catalog.
func (s *orderService) recheckStock(ctx context.Context, gameID uuid.UUID) {
	_, err := NewInventoryLedger(s.repo, s.logger).CheckAvailable(ctx, gameID, 1)
	if err != nil && domain.IsCode(err, domain.EINTERNAL) {
		s.logger.WarnContext(ctx, "failed to recheck stock", "game_id", gameID, "error", err)
	}
}

// CancelOrder cancels a pending order. Stock is untouched because nothing
// was decremented before payment, and the cart is not reactivated.
func (s *orderService) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error) {
	const op = "order.cancel"

	order, err := s.repo.CancelPendingOrder(ctx, userID, orderID)
	if err != nil {
		if !errors.Is(err, repository.ErrNoRows) {
			return nil, domain.Internal(err, op, "failed to cancel order")
		}
		// Tell a missing order apart from one that has moved past pending.
		if _, err := loadOwnedOrder(ctx, s.repo, op, userID, orderID); err != nil {
			return nil, err
		}
		return nil, domain.ErrOrderNotCancellable
	}

	if telemetry.Business != nil {
		telemetry.Business.OrdersCancelled.Inc()
	}

	s.logger.InfoContext(ctx, "order cancelled",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"user_id", userID,
	)

	ev := events.New(events.OrderCancelled, userID, order.ID)
	ev.Amount = order.TotalAmount
	s.publish(ctx, ev)

	return order, nil
}

func (s *orderService) publish(ctx context.Context, ev events.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "failed to publish event",
			"event", ev.Type,
			"order_id", ev.OrderID,
			"error", err,
		)
	}
}

func loadOwnedOrder(ctx context.Context, q repository.Querier, op string, userID, orderID uuid.UUID) (*domain.Order, error) {
	order, err := q.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, domain.Internal(err, op, "failed to load order")
	}
	if order.UserID != userID {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

// newOrderNumber returns ORD-<unix millis>-<6 random uppercase hex chars>.
func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), suffix)
}
