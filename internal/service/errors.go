package service

import (
	"github.com/dukerupert/gamersmart/internal/domain"
)

// Catalog errors - use domain.ENOTFOUND
var (
	ErrGameNotFound    = domain.Errorf(domain.ENOTFOUND, "", "Game not found")
	ErrGameUnavailable = domain.Errorf(domain.ENOTFOUND, "", "Game is not available for purchase")
)

// Validation errors - use domain.EINVALID
var (
	ErrInvalidPaymentMethod = domain.Errorf(domain.EINVALID, "", "Payment method must be one of card, paypal, bank_transfer")
	ErrMissingReference     = domain.Errorf(domain.EINVALID, "", "Payment reference is required")
	ErrMissingTransactionID = domain.Errorf(domain.EINVALID, "", "Transaction ID is required")
	ErrForeignTransaction   = domain.Errorf(domain.EINVALID, "", "Transaction does not belong to this payment")
)

// Payment errors
var (
	ErrPaymentInProgress = domain.Errorf(domain.ECONFLICT, "", "Another payment for this order is being initialized")
)
