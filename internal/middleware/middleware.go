package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/dukerupert/gamersmart/internal/domain"
)

var codeStatus = map[string]int{
	domain.EINVALID:      http.StatusBadRequest,
	domain.ESTOCK:        http.StatusBadRequest,
	domain.EUNAUTHORIZED: http.StatusUnauthorized,
	domain.EUNVERIFIED:   http.StatusUnauthorized,
	domain.EFORBIDDEN:    http.StatusForbidden,
	domain.ENOTFOUND:     http.StatusNotFound,
	domain.EMETHOD:       http.StatusMethodNotAllowed,
	domain.ECONFLICT:     http.StatusConflict,
	domain.ETOOLARGE:     http.StatusRequestEntityTooLarge,
	domain.ERATELIMIT:    http.StatusTooManyRequests,
	domain.EGATEWAY:      http.StatusBadGateway,
	domain.EINTERNAL:     http.StatusInternalServerError,
}

// StatusForCode maps a domain error code to its HTTP status. Unknown codes
// are 500.
func StatusForCode(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondWithError writes the API error body for failures raised before a
// handler runs. handler.ErrorResponse covers the rest.
func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	status := StatusForCode(code)

	logger := GetLogger(r.Context())
	attrs := []any{"error", err.Error(), "code", code, "status", status}
	if status >= http.StatusInternalServerError {
		logger.Error("request blocked", attrs...)
	} else {
		logger.Info("request blocked", attrs...)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]map[string]string{
		"error": {"code": code, "message": domain.ErrorMessage(err)},
	})
}

func respondUnauthorized(w http.ResponseWriter, r *http.Request) {
	respondWithError(w, r, domain.Unauthorized("", "Authentication required"))
}

func respondTooManyRequests(w http.ResponseWriter, r *http.Request) {
	respondWithError(w, r, domain.Errorf(domain.ERATELIMIT, "", "Too many requests"))
}

func respondTooLarge(w http.ResponseWriter, r *http.Request, message string) {
	respondWithError(w, r, domain.Errorf(domain.ETOOLARGE, "", "%s", message))
}

// NotFound answers requests that matched no route.
func NotFound() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, r, domain.Errorf(domain.ENOTFOUND, "", "The requested resource was not found"))
	})
}

// MethodNotAllowed answers requests for a known path with the wrong method.
func MethodNotAllowed() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, r, domain.Errorf(domain.EMETHOD, "", "Method %s is not allowed here", r.Method))
	})
}
