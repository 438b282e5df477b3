package webhook

import (
	"errors"
	"io"
	"net/http"

	"github.com/dukerupert/gamersmart/internal/domain"
	"github.com/dukerupert/gamersmart/internal/handler"
	"github.com/dukerupert/gamersmart/internal/middleware"
)

// GatewayHandler receives payment gateway webhooks. The gateway retries on
// non-2xx responses, so only failures a retry could fix are reported as
// errors; everything else is acknowledged.
type GatewayHandler struct {
	paymentService domain.PaymentService
}

// NewGatewayHandler creates a new gateway webhook handler
//
// Flutterwave dashboard: set the webhook URL to {BASE_URL}/payment/webhook
// and the secret hash to FLUTTERWAVE_WEBHOOK_HASH.
func NewGatewayHandler(paymentService domain.PaymentService) *GatewayHandler {
	return &GatewayHandler{paymentService: paymentService}
}

// HandleWebhook handles POST /payment/webhook
func (h *GatewayHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			handler.ErrorResponse(w, r, domain.Errorf(domain.ETOOLARGE, "webhook.read", "Webhook body must not exceed %d bytes", maxBytes.Limit))
			return
		}
		handler.ErrorResponse(w, r, domain.WrapError(err, domain.EINVALID, "webhook.read", "Error reading request body"))
		return
	}

	outcome, err := h.paymentService.HandleWebhook(r.Context(), payload, r.Header)
	if err != nil {
		switch domain.ErrorCode(err) {
		case domain.EUNAUTHORIZED, domain.ETOOLARGE, domain.EGATEWAY, domain.EINTERNAL:
			handler.ErrorResponse(w, r, err)
			return
		}

		// Retrying cannot change the outcome.
		logger.Warn("webhook rejected",
			"code", domain.ErrorCode(err),
			"error", err,
		)
		handler.OK(w, r, domain.ErrorMessage(err), &domain.WebhookOutcome{
			Ignored: true,
			Reason:  domain.ErrorMessage(err),
		})
		return
	}

	message := "Webhook processed"
	if outcome.Ignored {
		message = "Webhook ignored"
	}
	handler.OK(w, r, message, outcome)
}
