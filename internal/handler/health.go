package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/dukerupert/gamersmart/internal/domain"
)

// Pinger checks a backing dependency.
type Pinger func(ctx context.Context) error

// Health handles GET /healthz. A nil pinger reports healthy.
func Health(ping Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := ping(ctx); err != nil {
				ErrorResponse(w, r, domain.Internal(err, "health.ping", "database unreachable"))
				return
			}
		}
		OK(w, r, "ok", map[string]string{"status": "ok"})
	}
}
