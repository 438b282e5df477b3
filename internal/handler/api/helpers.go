package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/dukerupert/gamersmart/internal/domain"
)

// pathID parses a UUID path value.
func pathID(r *http.Request, name, op string) (uuid.UUID, error) {
	raw := r.PathValue(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(op, name, name+" must be a valid UUID")
	}
	return id, nil
}

// queryInt parses an optional positive integer query parameter.
func queryInt(r *http.Request, name, op string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, domain.NewValidationError(op, name, name+" must be a positive integer")
	}
	return n, nil
}
