// Package memory is an in-process implementation of repository.Store.
//
// A single mutex serializes every query, and ExecTx holds it for the whole
// transaction, so conditional writes behave like their Postgres
// counterparts. It backs the service tests and local runs without a database.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/gamersmart/internal/domain"
	"github.com/dukerupert/gamersmart/internal/repository"
)

// Store implements repository.Store in memory.
type Store struct {
	mu sync.Mutex
	st *state
}

var _ repository.Store = (*Store)(nil)

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{st: newState()}
}

// ExecTx runs fn with the store locked. Writes are discarded if fn fails.
func (s *Store) ExecTx(ctx context.Context, fn func(q repository.Querier) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(s.st); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// AddGame seeds or replaces a catalog item.
func (s *Store) AddGame(g domain.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = s.st.now()
		g.UpdatedAt = g.CreatedAt
	}
	s.st.games[g.ID] = g
}

// AddSession registers a user reachable through a hashed session token.
func (s *Store) AddSession(tokenHash string, u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.sessions[tokenHash] = u
}

func (s *Store) GetUserBySessionToken(ctx context.Context, tokenHash string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetUserBySessionToken(ctx, tokenHash)
}

func (s *Store) GetGame(ctx context.Context, id uuid.UUID) (*domain.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetGame(ctx, id)
}

func (s *Store) MarkGameOutOfStock(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.MarkGameOutOfStock(ctx, id)
}

func (s *Store) DecrementGameStock(ctx context.Context, id uuid.UUID, qty int) (*domain.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.DecrementGameStock(ctx, id, qty)
}

func (s *Store) GetActiveCart(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetActiveCart(ctx, userID)
}

func (s *Store) CreateActiveCart(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CreateActiveCart(ctx, userID)
}

func (s *Store) UpdateCartTotals(ctx context.Context, cartID uuid.UUID, totals domain.CartTotals) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.UpdateCartTotals(ctx, cartID, totals)
}

func (s *Store) TransitionCartStatus(ctx context.Context, cartID uuid.UUID, from, to domain.CartStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.TransitionCartStatus(ctx, cartID, from, to)
}

func (s *Store) ListCartItems(ctx context.Context, cartID uuid.UUID) ([]domain.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ListCartItems(ctx, cartID)
}

func (s *Store) GetCartItem(ctx context.Context, cartID, itemID uuid.UUID) (*domain.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetCartItem(ctx, cartID, itemID)
}

func (s *Store) UpsertCartItem(ctx context.Context, arg repository.UpsertCartItemParams) (*domain.CartItem, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.UpsertCartItem(ctx, arg)
}

func (s *Store) UpdateCartItem(ctx context.Context, arg repository.UpdateCartItemParams) (*domain.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.UpdateCartItem(ctx, arg)
}

func (s *Store) DeleteCartItem(ctx context.Context, cartID, itemID uuid.UUID) (*domain.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.DeleteCartItem(ctx, cartID, itemID)
}

func (s *Store) DeleteCartItems(ctx context.Context, cartID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.DeleteCartItems(ctx, cartID)
}

func (s *Store) CreateOrder(ctx context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CreateOrder(ctx, order)
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetOrder(ctx, id)
}

func (s *Store) ListOrders(ctx context.Context, arg repository.ListOrdersParams) ([]domain.Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ListOrders(ctx, arg)
}

func (s *Store) CancelPendingOrder(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CancelPendingOrder(ctx, userID, orderID)
}

func (s *Store) MarkOrderPaid(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.MarkOrderPaid(ctx, id)
}

func (s *Store) MarkOrderPaymentFailed(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.MarkOrderPaymentFailed(ctx, id)
}

func (s *Store) CreatePendingPayment(ctx context.Context, payment *domain.Payment) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CreatePendingPayment(ctx, payment)
}

func (s *Store) GetPendingPaymentForOrder(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetPendingPaymentForOrder(ctx, orderID)
}

func (s *Store) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetPayment(ctx, id)
}

func (s *Store) GetPaymentByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetPaymentByReference(ctx, reference)
}

func (s *Store) CompletePayment(ctx context.Context, arg repository.CompletePaymentParams) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CompletePayment(ctx, arg)
}

func (s *Store) FailPayment(ctx context.Context, arg repository.FailPaymentParams) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.FailPayment(ctx, arg)
}

func (s *Store) CancelPendingPaymentsBefore(ctx context.Context, cutoff time.Time, reason string) ([]domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CancelPendingPaymentsBefore(ctx, cutoff, reason)
}

func (s *Store) ListPaymentsByUser(ctx context.Context, userID uuid.UUID) ([]domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ListPaymentsByUser(ctx, userID)
}
