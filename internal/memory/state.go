package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/gamersmart/internal/domain"
	"github.com/dukerupert/gamersmart/internal/repository"
)

// state holds the tables. Its methods assume the caller holds Store.mu.
type state struct {
	sessions  map[string]domain.User
	games     map[uuid.UUID]domain.Game
	carts     map[uuid.UUID]domain.Cart
	cartItems map[uuid.UUID]domain.CartItem
	orders    map[uuid.UUID]domain.Order
	payments  map[uuid.UUID]domain.Payment
	last      time.Time
}

func newState() *state {
	return &state{
		sessions:  map[string]domain.User{},
		games:     map[uuid.UUID]domain.Game{},
		carts:     map[uuid.UUID]domain.Cart{},
		cartItems: map[uuid.UUID]domain.CartItem{},
		orders:    map[uuid.UUID]domain.Order{},
		payments:  map[uuid.UUID]domain.Payment{},
	}
}

// clone copies every table. Values are replaced, never mutated in place,
// so shallow copies are enough.
func (st *state) clone() *state {
	return &state{
		sessions:  maps.Clone(st.sessions),
		games:     maps.Clone(st.games),
		carts:     maps.Clone(st.carts),
		cartItems: maps.Clone(st.cartItems),
		orders:    maps.Clone(st.orders),
		payments:  maps.Clone(st.payments),
		last:      st.last,
	}
}

// now returns a strictly increasing timestamp so created_at ordering is stable.
func (st *state) now() time.Time {
	t := time.Now().UTC()
	if !t.After(st.last) {
		t = st.last.Add(time.Microsecond)
	}
	st.last = t
	return t
}

func (st *state) GetUserBySessionToken(_ context.Context, tokenHash string) (*domain.User, error) {
	u, ok := st.sessions[tokenHash]
	if !ok {
		return nil, repository.ErrNoRows
	}
	return &u, nil
}

// --- games ---

func (st *state) GetGame(_ context.Context, id uuid.UUID) (*domain.Game, error) {
	g, ok := st.games[id]
	if !ok {
		return nil, repository.ErrNoRows
	}
	return &g, nil
}

func (st *state) MarkGameOutOfStock(_ context.Context, id uuid.UUID) error {
	g, ok := st.games[id]
	if !ok || g.Stock.Unlimited || g.Stock.Quantity != 0 {
		return nil
	}
	g.Availability = domain.AvailabilityOutOfStock
	g.IsActive = false
	g.UpdatedAt = st.now()
	st.games[id] = g
	return nil
}

func (st *state) DecrementGameStock(_ context.Context, id uuid.UUID, qty int) (*domain.Game, error) {
	g, ok := st.games[id]
	if !ok {
		return nil, repository.ErrNoRows
	}
	if g.Stock.Unlimited {
		return &g, nil
	}
	remaining := g.Stock.Quantity - qty
	if remaining <= 0 {
		remaining = 0
		g.Availability = domain.AvailabilityOutOfStock
		g.IsActive = false
	}
	g.Stock.Quantity = remaining
	g.UpdatedAt = st.now()
	st.games[id] = g
	return &g, nil
}

// --- carts ---

func (st *state) GetActiveCart(_ context.Context, userID uuid.UUID) (*domain.Cart, error) {
	for _, c := range st.carts {
		if c.UserID == userID && c.Status == domain.CartStatusActive {
			return &c, nil
		}
	}
	return nil, repository.ErrNoRows
}

func (st *state) CreateActiveCart(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	if c, err := st.GetActiveCart(ctx, userID); err == nil {
		return c, nil
	}
	now := st.now()
	c := domain.Cart{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    domain.CartStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	st.carts[c.ID] = c
	return &c, nil
}

func (st *state) UpdateCartTotals(_ context.Context, cartID uuid.UUID, totals domain.CartTotals) (*domain.Cart, error) {
	c, ok := st.carts[cartID]
	if !ok {
		return nil, repository.ErrNoRows
	}
	c.TotalAmount = totals.Amount
	c.TotalItems = totals.Items
	c.UpdatedAt = st.now()
	st.carts[cartID] = c
	return &c, nil
}

func (st *state) TransitionCartStatus(_ context.Context, cartID uuid.UUID, from, to domain.CartStatus) (bool, error) {
	c, ok := st.carts[cartID]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	c.UpdatedAt = st.now()
	st.carts[cartID] = c
	return true, nil
}

// --- cart items ---

func (st *state) ListCartItems(_ context.Context, cartID uuid.UUID) ([]domain.CartItem, error) {
	items := []domain.CartItem{}
	for _, item := range st.cartItems {
		if item.CartID == cartID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (st *state) GetCartItem(_ context.Context, cartID, itemID uuid.UUID) (*domain.CartItem, error) {
	item, ok := st.cartItems[itemID]
	if !ok || item.CartID != cartID {
		return nil, repository.ErrNoRows
	}
	return &item, nil
}

func (st *state) UpsertCartItem(_ context.Context, arg repository.UpsertCartItemParams) (*domain.CartItem, bool, error) {
	for id, item := range st.cartItems {
		if item.CartID != arg.CartID || item.GameID != arg.GameID {
			continue
		}
		if arg.MaxQuantity > 0 && item.Quantity+arg.Quantity > arg.MaxQuantity {
			return nil, false, repository.ErrNoRows
		}
		item.Quantity += arg.Quantity
		item.Price = arg.Price
		item.UpdatedAt = st.now()
		st.cartItems[id] = item
		return &item, false, nil
	}

	now := st.now()
	item := domain.CartItem{
		ID:        uuid.New(),
		CartID:    arg.CartID,
		GameID:    arg.GameID,
		Quantity:  arg.Quantity,
		Price:     arg.Price,
		CreatedAt: now,
		UpdatedAt: now,
	}
	st.cartItems[item.ID] = item
	return &item, true, nil
}

func (st *state) UpdateCartItem(_ context.Context, arg repository.UpdateCartItemParams) (*domain.CartItem, error) {
	item, ok := st.cartItems[arg.ItemID]
	if !ok || item.CartID != arg.CartID {
		return nil, repository.ErrNoRows
	}
	item.Quantity = arg.Quantity
	item.Price = arg.Price
	item.UpdatedAt = st.now()
	st.cartItems[item.ID] = item
	return &item, nil
}

func (st *state) DeleteCartItem(_ context.Context, cartID, itemID uuid.UUID) (*domain.CartItem, error) {
	item, ok := st.cartItems[itemID]
	if !ok || item.CartID != cartID {
		return nil, repository.ErrNoRows
	}
	delete(st.cartItems, itemID)
	return &item, nil
}

func (st *state) DeleteCartItems(_ context.Context, cartID uuid.UUID) error {
	for id, item := range st.cartItems {
		if item.CartID == cartID {
			delete(st.cartItems, id)
		}
	}
	return nil
}

// --- orders ---

func copyOrder(o domain.Order) *domain.Order {
	o.Items = slices.Clone(o.Items)
	if o.Items == nil {
		o.Items = []domain.OrderItem{}
	}
	return &o
}

func (st *state) CreateOrder(_ context.Context, order *domain.Order) error {
	for _, existing := range st.orders {
		if existing.OrderNumber == order.OrderNumber {
			return fmt.Errorf("duplicate order number %q", order.OrderNumber)
		}
	}
	now := st.now()
	order.CreatedAt = now
	order.UpdatedAt = now
	st.orders[order.ID] = *copyOrder(*order)
	return nil
}

func (st *state) GetOrder(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	o, ok := st.orders[id]
	if !ok {
		return nil, repository.ErrNoRows
	}
	return copyOrder(o), nil
}

func (st *state) ListOrders(_ context.Context, arg repository.ListOrdersParams) ([]domain.Order, int, error) {
	matched := []domain.Order{}
	for _, o := range st.orders {
		if o.UserID != arg.UserID {
			continue
		}
		if arg.Status != "" && o.Status != arg.Status {
			continue
		}
		matched = append(matched, *copyOrder(o))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := min(arg.Offset, total)
	end := min(start+arg.Limit, total)
	return matched[start:end], total, nil
}

func (st *state) CancelPendingOrder(_ context.Context, userID, orderID uuid.UUID) (*domain.Order, error) {
	o, ok := st.orders[orderID]
	if !ok || o.UserID != userID || o.Status != domain.OrderStatusPending {
		return nil, repository.ErrNoRows
	}
	o.Status = domain.OrderStatusCancelled
	o.IsActive = false
	o.UpdatedAt = st.now()
	st.orders[orderID] = o
	return copyOrder(o), nil
}

func (st *state) MarkOrderPaid(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	o, ok := st.orders[id]
	if !ok {
		return nil, repository.ErrNoRows
	}
	o.PaymentStatus = domain.OrderPaymentPaid
	if o.Status == domain.OrderStatusPending {
		o.Status = domain.OrderStatusProcessing
	}
	o.UpdatedAt = st.now()
	st.orders[id] = o
	return copyOrder(o), nil
}

func (st *state) MarkOrderPaymentFailed(_ context.Context, id uuid.UUID) error {
	o, ok := st.orders[id]
	if !ok || o.PaymentStatus == domain.OrderPaymentPaid {
		return nil
	}
	o.PaymentStatus = domain.OrderPaymentFailed
	o.UpdatedAt = st.now()
	st.orders[id] = o
	return nil
}

// --- payments ---

func (st *state) CreatePendingPayment(_ context.Context, p *domain.Payment) (bool, error) {
	for _, existing := range st.payments {
		if existing.OrderID == p.OrderID && existing.Status == domain.PaymentStatusPending {
			return false, nil
		}
		if existing.Reference == p.Reference {
			return false, nil
		}
	}
	now := st.now()
	p.Status = domain.PaymentStatusPending
	p.CreatedAt = now
	p.UpdatedAt = now
	st.payments[p.ID] = *p
	return true, nil
}

func (st *state) GetPendingPaymentForOrder(_ context.Context, orderID uuid.UUID) (*domain.Payment, error) {
	for _, p := range st.payments {
		if p.OrderID == orderID && p.Status == domain.PaymentStatusPending {
			return &p, nil
		}
	}
	return nil, repository.ErrNoRows
}

func (st *state) GetPayment(_ context.Context, id uuid.UUID) (*domain.Payment, error) {
	p, ok := st.payments[id]
	if !ok {
		return nil, repository.ErrNoRows
	}
	return &p, nil
}

func (st *state) GetPaymentByReference(_ context.Context, reference string) (*domain.Payment, error) {
	for _, p := range st.payments {
		if p.Reference == reference {
			return &p, nil
		}
	}
	return nil, repository.ErrNoRows
}

func (st *state) CompletePayment(_ context.Context, arg repository.CompletePaymentParams) (bool, error) {
	p, ok := st.payments[arg.ID]
	if !ok || p.Status != domain.PaymentStatusPending {
		return false, nil
	}
	if arg.TransactionID != "" {
		for id, other := range st.payments {
			if id != arg.ID && other.TransactionID == arg.TransactionID {
				return false, fmt.Errorf("duplicate transaction id %q", arg.TransactionID)
			}
		}
	}
	paidAt := arg.PaidAt
	p.Status = domain.PaymentStatusSuccessful
	p.TransactionID = arg.TransactionID
	p.PaidAt = &paidAt
	p.GatewayResponse = arg.GatewayResponse
	p.FailureReason = ""
	p.UpdatedAt = st.now()
	st.payments[arg.ID] = p
	return true, nil
}

func (st *state) FailPayment(_ context.Context, arg repository.FailPaymentParams) (bool, error) {
	p, ok := st.payments[arg.ID]
	if !ok || p.Status != domain.PaymentStatusPending {
		return false, nil
	}
	p.Status = domain.PaymentStatusFailed
	p.FailureReason = arg.Reason
	p.GatewayResponse = arg.GatewayResponse
	p.UpdatedAt = st.now()
	st.payments[arg.ID] = p
	return true, nil
}

func (st *state) CancelPendingPaymentsBefore(_ context.Context, cutoff time.Time, reason string) ([]domain.Payment, error) {
	cancelled := []domain.Payment{}
	for id, p := range st.payments {
		if p.Status != domain.PaymentStatusPending || !p.CreatedAt.Before(cutoff) {
			continue
		}
		p.Status = domain.PaymentStatusCancelled
		p.FailureReason = reason
		p.UpdatedAt = st.now()
		st.payments[id] = p
		cancelled = append(cancelled, p)
	}
	return cancelled, nil
}

func (st *state) ListPaymentsByUser(_ context.Context, userID uuid.UUID) ([]domain.Payment, error) {
	payments := []domain.Payment{}
	for _, p := range st.payments {
		if p.UserID == userID {
			payments = append(payments, p)
		}
	}
	sort.Slice(payments, func(i, j int) bool {
		return payments[i].CreatedAt.After(payments[j].CreatedAt)
	})
	return payments, nil
}
