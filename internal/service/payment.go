package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dukerupert/gamersmart/internal/domain"
	"github.com/dukerupert/gamersmart/internal/events"
	"github.com/dukerupert/gamersmart/internal/gateway"
	"github.com/dukerupert/gamersmart/internal/repository"
	"github.com/dukerupert/gamersmart/internal/telemetry"
)

// Completion signal sources.
const (
	sourceCallback = "callback"
	sourceWebhook  = "webhook"
)

// PaymentConfig holds settings for the payment orchestrator.
type PaymentConfig struct {
	// Currency for new payments (ISO 4217). Default: NGN
	Currency string

	// RedirectURL is where the gateway sends the shopper after paying.
	RedirectURL string
}

type paymentService struct {
	repo      repository.Store
	gateway   gateway.Provider
	publisher events.Publisher
	config    PaymentConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewPaymentService creates a new PaymentService instance
func NewPaymentService(
	repo repository.Store,
	provider gateway.Provider,
	publisher events.Publisher,
	config PaymentConfig,
	logger *slog.Logger,
) domain.PaymentService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if config.Currency == "" {
		config.Currency = "NGN"
	}
	return &paymentService{
		repo:      repo,
		gateway:   provider,
		publisher: publisher,
		config:    config,
		logger:    logger.With("service", "payment", "gateway", provider.Name()),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Initialize reuses the order's pending payment or creates one, then asks the
// gateway for a redirect link. A failed gateway call leaves the pending
// payment in place so a retry picks it up again.
func (s *paymentService) Initialize(ctx context.Context, user *domain.User, orderID uuid.UUID) (_ *domain.PaymentInitialization, err error) {
	const op = "payment.initialize"

	ctx, span := telemetry.StartTrace(ctx, "PaymentService.Initialize",
		attribute.String("order.id", orderID.String()),
		attribute.String("gateway", s.gateway.Name()),
	)
	defer func() { telemetry.EndTrace(span, err) }()

	order, err := loadOwnedOrder(ctx, s.repo, op, user.ID, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == domain.OrderPaymentPaid {
		return nil, domain.ErrOrderAlreadyPaid
	}
	if order.Status != domain.OrderStatusPending {
		return nil, domain.ErrOrderNotPayable
	}

	payment, reused, err := s.pendingPayment(ctx, op, user, order)
	if err != nil {
		return nil, err
	}

	charge, err := s.gateway.InitializeCharge(ctx, gateway.ChargeParams{
		Reference:   payment.Reference,
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		RedirectURL: s.config.RedirectURL,
		Customer: gateway.Customer{
			Email: user.Email,
			Name:  user.FullName(),
		},
		Metadata: map[string]string{
			"orderId":     order.ID.String(),
			"orderNumber": order.OrderNumber,
			"paymentId":   payment.ID.String(),
			"userId":      user.ID.String(),
		},
		Description: "Payment for order " + order.OrderNumber,
	})
	if err != nil {
		s.countAttempt("error")
		s.logger.ErrorContext(ctx, "gateway initialization failed",
			"order_id", order.ID,
			"reference", payment.Reference,
			"error", err,
		)
		return nil, domain.Gateway(err, op, "Payment initialization failed")
	}

	if reused {
		s.countAttempt("reused")
	} else {
		s.countAttempt("created")
	}

	s.logger.InfoContext(ctx, "payment initialized",
		"order_id", order.ID,
		"payment_id", payment.ID,
		"reference", payment.Reference,
		"reused", reused,
	)

	return &domain.PaymentInitialization{
		PaymentID:   payment.ID,
		Reference:   payment.Reference,
		RedirectURL: charge.RedirectURL,
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		Reused:      reused,
	}, nil
}

// pendingPayment returns the order's pending payment, creating it if needed.
// The store allows one pending payment per order; losing the insert race
// means another request created it, so that one is reused.
func (s *paymentService) pendingPayment(ctx context.Context, op string, user *domain.User, order *domain.Order) (*domain.Payment, bool, error) {
	existing, err := s.repo.GetPendingPaymentForOrder(ctx, order.ID)
	if err == nil {
		return existing, true, nil
	}
	if !errors.Is(err, repository.ErrNoRows) {
		return nil, false, domain.Internal(err, op, "failed to load pending payment")
	}

	payment := &domain.Payment{
		ID:            uuid.New(),
		OrderID:       order.ID,
		UserID:        user.ID,
		Reference:     newPaymentReference(s.now()),
		Amount:        order.TotalAmount,
		Currency:      s.config.Currency,
		PaymentMethod: order.PaymentMethod,
		Gateway:       s.gateway.Name(),
	}
	created, err := s.repo.CreatePendingPayment(ctx, payment)
	if err != nil {
		return nil, false, domain.Internal(err, op, "failed to create payment")
	}
	if created {
		return payment, false, nil
	}

	existing, err = s.repo.GetPendingPaymentForOrder(ctx, order.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNoRows) {
			return nil, false, ErrPaymentInProgress
		}
		return nil, false, domain.Internal(err, op, "failed to load pending payment")
	}
	return existing, true, nil
}

// VerifyCallback reconciles the shopper's redirect back from the gateway.
func (s *paymentService) VerifyCallback(ctx context.Context, user *domain.User, params domain.CallbackParams) (_ *domain.Payment, err error) {
	const op = "payment.verify"

	ctx, span := telemetry.StartTrace(ctx, "PaymentService.VerifyCallback",
		attribute.String("payment.reference", params.Reference),
		attribute.String("gateway", s.gateway.Name()),
	)
	defer func() { telemetry.EndTrace(span, err) }()

	if params.Status != gateway.StatusSuccessful {
		return nil, domain.ErrPaymentNotSuccessful
	}
	if params.Reference == "" {
		return nil, ErrMissingReference
	}
	if params.TransactionID == "" {
		return nil, ErrMissingTransactionID
	}

	payment, err := s.repo.GetPaymentByReference(ctx, params.Reference)
	if err != nil {
		if errors.Is(err, repository.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, domain.Internal(err, op, "failed to load payment")
	}
	if payment.UserID != user.ID {
		return nil, domain.ErrPaymentNotFound
	}

	switch payment.Status {
	case domain.PaymentStatusSuccessful:
		s.countDuplicate(sourceCallback)
		return payment, nil
	case domain.PaymentStatusFailed, domain.PaymentStatusCancelled:
		return nil, domain.ErrPaymentClosed
	}

	tx, err := s.gateway.VerifyTransaction(ctx, params.TransactionID)
	if err != nil {
		s.logger.ErrorContext(ctx, "gateway verification failed",
			"reference", payment.Reference,
			"transaction_id", params.TransactionID,
			"error", err,
		)
		return nil, domain.Gateway(err, op, "Payment verification failed")
	}

	return s.reconcile(ctx, sourceCallback, payment, tx)
}

// HandleWebhook authenticates a gateway delivery and reconciles completed
// charges. The body is never trusted on its own: the transaction is always
// re-fetched from the gateway first.
func (s *paymentService) HandleWebhook(ctx context.Context, payload []byte, header http.Header) (_ *domain.WebhookOutcome, err error) {
	const op = "payment.webhook"

	start := time.Now()
	ctx, span := telemetry.StartTrace(ctx, "PaymentService.HandleWebhook",
		attribute.String("gateway", s.gateway.Name()),
	)
	defer func() {
		telemetry.EndTrace(span, err)
		if telemetry.Business != nil {
			telemetry.Business.WebhookLatency.WithLabelValues(s.gateway.Name()).Observe(time.Since(start).Seconds())
		}
	}()

	ev, err := s.gateway.ParseWebhook(payload, header)
	if err != nil {
		s.countWebhookFailure("parse")
		if errors.Is(err, gateway.ErrInvalidWebhookSignature) {
			return nil, domain.ErrInvalidSignature
		}
		return nil, domain.WrapError(err, domain.EINVALID, op, "Malformed webhook payload")
	}

	if telemetry.Business != nil {
		telemetry.Business.WebhookReceived.WithLabelValues(s.gateway.Name(), ev.Event).Inc()
	}
	span.SetAttributes(
		attribute.String("webhook.event", ev.Event),
		attribute.String("payment.reference", ev.Reference),
	)

	outcome := &domain.WebhookOutcome{Event: ev.Event, Reference: ev.Reference}
	ignore := func(reason string) (*domain.WebhookOutcome, error) {
		outcome.Ignored = true
		outcome.Reason = reason
		s.countWebhookProcessed(ev.Event, "ignored")
		s.logger.InfoContext(ctx, "webhook ignored",
			"event", ev.Event,
			"reference", ev.Reference,
			"reason", reason,
		)
		return outcome, nil
	}

	if ev.Event != gateway.EventChargeCompleted {
		return ignore("unhandled event type")
	}
	if ev.Status != gateway.StatusSuccessful {
		return ignore("charge not successful")
	}

	payment, err := s.repo.GetPaymentByReference(ctx, ev.Reference)
	if err != nil {
		if errors.Is(err, repository.ErrNoRows) {
			s.logger.WarnContext(ctx, "webhook for unknown payment reference", "reference", ev.Reference)
			return ignore("unknown payment reference")
		}
		return nil, domain.Internal(err, op, "failed to load payment")
	}
	outcome.Payment = payment

	switch payment.Status {
	case domain.PaymentStatusSuccessful:
		s.countDuplicate(sourceWebhook)
		return ignore("payment already processed")
	case domain.PaymentStatusFailed, domain.PaymentStatusCancelled:
		settled, err := s.checkSettledAfterClose(ctx, payment, ev.TransactionID)
		if err != nil {
			s.countWebhookFailure("verify")
			return nil, err
		}
		if settled {
			return ignore("charge settled after payment closed")
		}
		return ignore("payment no longer pending")
	}

	if ev.TransactionID == "" {
		s.countWebhookFailure("missing_transaction")
		return nil, ErrMissingTransactionID
	}

	tx, err := s.gateway.VerifyTransaction(ctx, ev.TransactionID)
	if err != nil {
		s.countWebhookFailure("verify")
		s.logger.ErrorContext(ctx, "gateway verification failed",
			"reference", payment.Reference,
			"transaction_id", ev.TransactionID,
			"error", err,
		)
		return nil, domain.Gateway(err, op, "Payment verification failed")
	}

	if !ev.Amount.Equal(tx.Amount) {
		s.countWebhookFailure("amount_mismatch")
		s.logger.WarnContext(ctx, "webhook amount differs from verified transaction",
			"reference", payment.Reference,
			"webhook_amount", ev.Amount.String(),
			"verified_amount", tx.Amount.String(),
		)
		return nil, domain.Invalid(op, "Webhook amount does not match the verified transaction")
	}

	reconciled, err := s.reconcile(ctx, sourceWebhook, payment, tx)
	if err != nil {
		s.countWebhookFailure("reconcile")
		return nil, err
	}

	outcome.Payment = reconciled
	s.countWebhookProcessed(ev.Event, "applied")
	return outcome, nil
}

// reconcile is the single completion path shared by the redirect callback and
// the webhook. The pending→successful compare-and-swap decides which caller
// applies the side effects; every other caller only reads the result.
func (s *paymentService) reconcile(ctx context.Context, source string, payment *domain.Payment, tx *gateway.Transaction) (_ *domain.Payment, err error) {
	const op = "payment.reconcile"

	ctx, span := telemetry.StartTrace(ctx, "PaymentService.reconcile",
		attribute.String("payment.id", payment.ID.String()),
		attribute.String("source", source),
	)
	defer func() { telemetry.EndTrace(span, err) }()

	// A transaction carrying another reference says nothing about this
	// payment, so it must not close it.
	if tx.Reference != "" && tx.Reference != payment.Reference {
		s.logger.WarnContext(ctx, "transaction belongs to another payment",
			"reference", payment.Reference,
			"transaction_id", tx.ID,
			"transaction_reference", tx.Reference,
			"source", source,
		)
		return nil, ErrForeignTransaction
	}

	if reason := verificationFailure(payment, tx); reason != "" {
		return nil, s.failPayment(ctx, source, payment, tx, reason)
	}

	var (
		applied bool
		order   *domain.Order
	)
	err = s.repo.ExecTx(ctx, func(q repository.Querier) error {
		won, err := q.CompletePayment(ctx, repository.CompletePaymentParams{
			ID:              payment.ID,
			TransactionID:   tx.ID,
			PaidAt:          s.now(),
			GatewayResponse: tx.Raw,
		})
		if err != nil {
			return domain.Internal(err, op, "failed to complete payment")
		}
		if !won {
			return nil
		}
		applied = true

		order, err = q.MarkOrderPaid(ctx, payment.OrderID)
		if err != nil {
			return domain.Internal(err, op, "failed to mark order paid")
		}
		if order.Status == domain.OrderStatusCancelled {
			return nil
		}

		inventory := NewInventoryLedger(q, s.logger)
		for _, item := range order.Items {
			if _, err := inventory.Decrement(ctx, item.GameID, item.Quantity); err != nil {
				if domain.IsCode(err, domain.ENOTFOUND) {
					s.logger.WarnContext(ctx, "paid item no longer in catalog",
						"order_id", order.ID,
						"game_id", item.GameID,
					)
					continue
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	current, err := s.repo.GetPayment(ctx, payment.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to reload payment")
	}

	if !applied {
		s.countDuplicate(source)
		s.logger.InfoContext(ctx, "payment already reconciled",
			"payment_id", payment.ID,
			"source", source,
			"status", current.Status,
		)
		if current.Status != domain.PaymentStatusSuccessful {
			return nil, domain.ErrPaymentClosed
		}
		return current, nil
	}

	if telemetry.Business != nil {
		amount, _ := current.Amount.Float64()
		telemetry.Business.PaymentSucceeded.WithLabelValues(s.gateway.Name(), source).Inc()
		telemetry.Business.RevenueCollected.WithLabelValues(current.Currency).Add(amount)
	}

	if order.Status == domain.OrderStatusCancelled {
		s.logger.ErrorContext(ctx, "payment settled for cancelled order, refund required",
			"order_id", order.ID,
			"payment_id", current.ID,
			"transaction_id", current.TransactionID,
		)
		if telemetry.Business != nil {
			telemetry.Business.PaymentAfterCancel.Inc()
		}
		telemetry.CaptureError(fmt.Errorf("payment %s settled for cancelled order %s", current.ID, order.ID), map[string]interface{}{
			"order_number":   order.OrderNumber,
			"transaction_id": current.TransactionID,
			"amount":         current.Amount.String(),
		})
	}

	s.logger.InfoContext(ctx, "payment successful",
		"payment_id", current.ID,
		"order_id", current.OrderID,
		"transaction_id", current.TransactionID,
		"source", source,
	)

	ev := events.New(events.PaymentSucceeded, current.UserID, current.OrderID)
	ev.PaymentID = &current.ID
	ev.Reference = current.Reference
	ev.Amount = current.Amount
	ev.Currency = current.Currency
	s.publish(ctx, ev)

	return current, nil
}

// failPayment moves a pending payment to failed after a verification
// mismatch. Side effects run only for the caller that performed the transition.
func (s *paymentService) failPayment(ctx context.Context, source string, payment *domain.Payment, tx *gateway.Transaction, reason string) error {
	const op = "payment.reconcile"

	var failed bool
	err := s.repo.ExecTx(ctx, func(q repository.Querier) error {
		won, err := q.FailPayment(ctx, repository.FailPaymentParams{
			ID:              payment.ID,
			Reason:          reason,
			GatewayResponse: tx.Raw,
		})
		if err != nil {
			return domain.Internal(err, op, "failed to record payment failure")
		}
		if !won {
			return nil
		}
		failed = true
		if err := q.MarkOrderPaymentFailed(ctx, payment.OrderID); err != nil {
			return domain.Internal(err, op, "failed to mark order payment failed")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if failed {
		if telemetry.Business != nil {
			telemetry.Business.PaymentFailed.WithLabelValues(s.gateway.Name(), failureLabel(reason)).Inc()
		}
		s.logger.WarnContext(ctx, "payment verification failed",
			"payment_id", payment.ID,
			"reference", payment.Reference,
			"source", source,
			"reason", reason,
		)

		ev := events.New(events.PaymentFailed, payment.UserID, payment.OrderID)
		ev.PaymentID = &payment.ID
		ev.Reference = payment.Reference
		ev.Amount = payment.Amount
		ev.Currency = payment.Currency
		ev.Reason = reason
		s.publish(ctx, ev)
	}

	return domain.Invalid(op, "Payment verification failed: "+reason)
}

// checkSettledAfterClose asks the gateway whether a charge reported for a
// failed or cancelled payment really went through. A settled charge cannot be
// applied any more, so it is raised for a manual refund or re-open.
func (s *paymentService) checkSettledAfterClose(ctx context.Context, payment *domain.Payment, transactionID string) (bool, error) {
	const op = "payment.webhook"

	if transactionID == "" {
		return false, nil
	}
	tx, err := s.gateway.VerifyTransaction(ctx, transactionID)
	if err != nil {
		s.logger.ErrorContext(ctx, "gateway verification failed",
			"reference", payment.Reference,
			"transaction_id", transactionID,
			"error", err,
		)
		return false, domain.Gateway(err, op, "Payment verification failed")
	}
	if !tx.Successful() || (tx.Reference != "" && tx.Reference != payment.Reference) {
		return false, nil
	}

	s.logger.ErrorContext(ctx, "charge settled for closed payment, manual action required",
		"payment_id", payment.ID,
		"order_id", payment.OrderID,
		"status", payment.Status,
		"transaction_id", tx.ID,
		"amount", tx.Amount.String(),
	)
	if telemetry.Business != nil {
		telemetry.Business.SettledAfterClose.WithLabelValues(string(payment.Status)).Inc()
	}
	telemetry.CaptureError(fmt.Errorf("charge %s settled for %s payment %s", tx.ID, payment.Status, payment.ID), map[string]interface{}{
		"reference":      payment.Reference,
		"order_id":       payment.OrderID.String(),
		"transaction_id": tx.ID,
		"amount":         tx.Amount.String(),
		"failure_reason": payment.FailureReason,
	})
	return true, nil
}

// GetPaymentHistory lists the user's payments newest first with their orders.
func (s *paymentService) GetPaymentHistory(ctx context.Context, userID uuid.UUID) ([]domain.PaymentHistoryEntry, error) {
	const op = "payment.history"

	payments, err := s.repo.ListPaymentsByUser(ctx, userID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list payments")
	}

	orders := make(map[uuid.UUID]*domain.Order)
	history := make([]domain.PaymentHistoryEntry, 0, len(payments))
	for _, p := range payments {
		order, seen := orders[p.OrderID]
		if !seen {
			order, err = s.repo.GetOrder(ctx, p.OrderID)
			if err != nil && !errors.Is(err, repository.ErrNoRows) {
				return nil, domain.Internal(err, op, "failed to load order")
			}
			orders[p.OrderID] = order
		}
		history = append(history, domain.PaymentHistoryEntry{Payment: p, Order: order})
	}
	return history, nil
}

// ExpireStalePayments cancels pending payments created more than olderThan ago.
func (s *paymentService) ExpireStalePayments(ctx context.Context, olderThan time.Duration) (int, error) {
	const op = "payment.expire"

	cancelled, err := s.repo.CancelPendingPaymentsBefore(ctx, s.now().Add(-olderThan), "expired")
	if err != nil {
		return 0, domain.Internal(err, op, "failed to expire payments")
	}

	for _, p := range cancelled {
		ev := events.New(events.PaymentExpired, p.UserID, p.OrderID)
		ev.PaymentID = &p.ID
		ev.Reference = p.Reference
		ev.Amount = p.Amount
		ev.Currency = p.Currency
		ev.Reason = "expired"
		s.publish(ctx, ev)
	}

	if telemetry.Business != nil {
		telemetry.Business.PaymentsExpired.Add(float64(len(cancelled)))
	}
	if len(cancelled) > 0 {
		s.logger.InfoContext(ctx, "expired stale payments", "count", len(cancelled))
	}
	return len(cancelled), nil
}

// verificationFailure compares the gateway's record with the stored payment
// and returns a reason when they disagree.
func verificationFailure(payment *domain.Payment, tx *gateway.Transaction) string {
	if !tx.Successful() {
		return fmt.Sprintf("gateway reported status %q", tx.Status)
	}
	if !tx.Amount.Equal(payment.Amount) {
		return fmt.Sprintf("amount mismatch: expected %s, got %s", payment.Amount.StringFixed(2), tx.Amount.StringFixed(2))
	}
	if tx.Currency != "" && !strings.EqualFold(tx.Currency, payment.Currency) {
		return fmt.Sprintf("currency mismatch: expected %s, got %s", payment.Currency, tx.Currency)
	}
	return ""
}

func failureLabel(reason string) string {
	switch {
	case strings.HasPrefix(reason, "gateway reported"):
		return "status"
	case strings.HasPrefix(reason, "amount"):
		return "amount"
	case strings.HasPrefix(reason, "currency"):
		return "currency"
	}
	return "other"
}

func (s *paymentService) publish(ctx context.Context, ev events.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "failed to publish event",
			"event", ev.Type,
			"order_id", ev.OrderID,
			"error", err,
		)
	}
}

func (s *paymentService) countAttempt(result string) {
	if telemetry.Business != nil {
		telemetry.Business.PaymentAttempts.WithLabelValues(s.gateway.Name(), result).Inc()
	}
}

func (s *paymentService) countDuplicate(source string) {
	if telemetry.Business != nil {
		telemetry.Business.PaymentDuplicates.WithLabelValues(source).Inc()
	}
}

func (s *paymentService) countWebhookProcessed(event, outcome string) {
	if telemetry.Business != nil {
		telemetry.Business.WebhookProcessed.WithLabelValues(s.gateway.Name(), event, outcome).Inc()
	}
}

func (s *paymentService) countWebhookFailure(reason string) {
	if telemetry.Business != nil {
		telemetry.Business.WebhookFailed.WithLabelValues(s.gateway.Name(), reason).Inc()
	}
}

// newPaymentReference returns tx_<unix millis>_<12 random hex chars>.
func newPaymentReference(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("tx_%d_%s", now.UnixMilli(), random)
}
