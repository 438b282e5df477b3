// Package handler holds the HTTP response helpers shared by the API and
// webhook handlers: the success envelope, error mapping and request decoding.
package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/gamersmart/internal/domain"
	"github.com/dukerupert/gamersmart/internal/middleware"
	"github.com/dukerupert/gamersmart/internal/telemetry"
)

// Envelope is the body of every successful response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// JSON writes a success envelope with the given status.
func JSON(w http.ResponseWriter, r *http.Request, status int, message string, data any) {
	writeJSON(w, r, status, Envelope{Success: true, Message: message, Data: data})
}

// OK writes a 200 success envelope.
func OK(w http.ResponseWriter, r *http.Request, message string, data any) {
	JSON(w, r, http.StatusOK, message, data)
}

// Created writes a 201 success envelope.
func Created(w http.ResponseWriter, r *http.Request, message string, data any) {
	JSON(w, r, http.StatusCreated, message, data)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		middleware.GetLogger(r.Context()).Error("failed to encode response", "error", err)
	}
}

// errorBody is the body of every error response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ErrorResponse maps err to a status code and writes the error body.
// Internal errors are logged with their cause and reported to Sentry; the
// client only sees a generic message.
func ErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	if domain.IsValidationError(err) {
		ValidationErrorResponse(w, r, err)
		return
	}

	code := domain.ErrorCode(err)
	message := domain.ErrorMessage(err)
	status := ErrorCodeToHTTPStatus(code)

	logError(r, err, code, status)

	if !wantsJSON(r) {
		http.Error(w, message, status)
		return
	}
	writeJSON(w, r, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// ValidationErrorResponse writes a 400 with per-field messages. Errors that
// are not validation errors fall back to ErrorResponse.
func ValidationErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	fields := domain.GetValidationFields(err)
	if fields == nil {
		ErrorResponse(w, r, err)
		return
	}

	logError(r, err, domain.EINVALID, http.StatusBadRequest)

	writeJSON(w, r, http.StatusBadRequest, errorBody{Error: errorDetail{
		Code:    domain.EINVALID,
		Message: domain.ErrorMessage(err),
		Fields:  fields,
	}})
}

func logError(r *http.Request, err error, code string, status int) {
	logger := middleware.GetLogger(r.Context())
	attrs := []any{
		"error", err.Error(),
		"code", code,
		"op", domain.ErrorOp(err),
		"status", status,
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed", attrs...)
		telemetry.CaptureErrorFromContext(r.Context(), err, map[string]interface{}{
			"code":   code,
			"op":     domain.ErrorOp(err),
			"path":   r.URL.Path,
			"method": r.Method,
		})
		return
	}
	logger.Warn("request rejected", attrs...)
}

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	return middleware.StatusForCode(code)
}

// wantsJSON reports whether the error should be rendered as JSON. The API
// speaks JSON unless the client explicitly asks for HTML.
func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return !strings.Contains(accept, "text/html") || strings.Contains(accept, "application/json")
}
