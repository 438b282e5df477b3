package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
)

const flushTimeout = 2 * time.Second

// SentryConfig configures error reporting. Reporting stays off unless Enabled
// is set and a DSN is present.
type SentryConfig struct {
	DSN         string
	Enabled     bool
	Environment string
	Release     string

	// SampleRate is the share of errors sent. Zero means 1.0.
	SampleRate float64

	// TracesSampleRate is the share of requests traced. Zero disables tracing.
	TracesSampleRate float64

	Debug bool
}

var sentryEnabled atomic.Bool

// InitSentry configures the global Sentry client and returns a flush func to
// defer until shutdown.
func InitSentry(cfg SentryConfig, logger *slog.Logger) (func(), error) {
	sentryEnabled.Store(false)
	noop := func() {}

	switch {
	case !cfg.Enabled:
		logger.Info("Sentry disabled")
		return noop, nil
	case cfg.DSN == "":
		logger.Warn("Sentry enabled without SENTRY_DSN, error reporting is off")
		return noop, nil
	}

	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		TracesSampleRate: cfg.TracesSampleRate,
		EnableTracing:    cfg.TracesSampleRate > 0,
		Debug:            cfg.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Sentry: %w", err)
	}
	sentryEnabled.Store(true)

	logger.Info("Sentry initialized",
		"environment", cfg.Environment,
		"release", cfg.Release,
		"sample_rate", sampleRate,
	)

	return func() { sentry.Flush(flushTimeout) }, nil
}

// IsEnabled reports whether errors are being sent to Sentry.
func IsEnabled() bool {
	return sentryEnabled.Load()
}

// CaptureError reports err with extras attached. No-op when disabled.
func CaptureError(err error, extras ...map[string]interface{}) {
	if !IsEnabled() || err == nil {
		return
	}
	captureWithHub(sentry.CurrentHub(), err, extras...)
}

// CaptureErrorFromContext reports err through the request's hub so user and
// request details set by the middleware are attached.
func CaptureErrorFromContext(ctx context.Context, err error, extras map[string]interface{}) {
	if !IsEnabled() || err == nil {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	captureWithHub(hub, err, extras)
}

func captureWithHub(hub *sentry.Hub, err error, extras ...map[string]interface{}) {
	hub.WithScope(func(scope *sentry.Scope) {
		for _, m := range extras {
			for k, v := range m {
				scope.SetExtra(k, v)
			}
		}
		hub.CaptureException(err)
	})
}

// RecoverWithSentry reports a panic and re-panics. Defer it at the top of
// background goroutines.
func RecoverWithSentry() {
	if r := recover(); r != nil {
		if IsEnabled() {
			sentry.CurrentHub().Recover(r)
			sentry.Flush(flushTimeout)
		}
		panic(r)
	}
}

// SentryMiddleware gives each request its own hub and reports panics before
// passing them on to the outer recovery middleware.
func SentryMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsEnabled() {
				next.ServeHTTP(w, r)
				return
			}

			hub := requestHub(r.Context())
			hub.Scope().SetRequest(r)
			ctx := sentry.SetHubOnContext(r.Context(), hub)

			defer func() {
				if rec := recover(); rec != nil {
					hub.RecoverWithContext(ctx, rec)
					sentry.Flush(flushTimeout)
					panic(rec)
				}
			}()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserInfo identifies the shopper on reported errors.
type UserInfo struct {
	ID    string
	Email string
}

// UserContextExtractor pulls the authenticated user out of a request context.
type UserContextExtractor func(ctx context.Context) *UserInfo

// SentryContextMiddleware tags the request hub with the route and the
// authenticated user. It must run after authentication.
func SentryContextMiddleware(userExtractor UserContextExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsEnabled() {
				next.ServeHTTP(w, r)
				return
			}

			hub := requestHub(r.Context())
			hub.ConfigureScope(func(scope *sentry.Scope) {
				scope.SetTag("http.method", r.Method)
				scope.SetTag("http.path", r.URL.Path)
				if userExtractor == nil {
					return
				}
				if user := userExtractor(r.Context()); user != nil {
					scope.SetUser(sentry.User{ID: user.ID, Email: user.Email})
				}
			})

			next.ServeHTTP(w, r.WithContext(sentry.SetHubOnContext(r.Context(), hub)))
		})
	}
}

func requestHub(ctx context.Context) *sentry.Hub {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		return hub
	}
	return sentry.CurrentHub().Clone()
}

// HTTPTransport records an http.client span around each outbound gateway
// call. A nil Transport means http.DefaultTransport.
type HTTPTransport struct {
	Transport http.RoundTripper
}

func (t *HTTPTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	if !IsEnabled() {
		return base.RoundTrip(req)
	}

	span := sentry.StartSpan(req.Context(), "http.client")
	span.Description = req.Method + " " + req.URL.Host + req.URL.Path
	defer span.Finish()

	resp, err := base.RoundTrip(req)
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, err
	}
	span.SetData("http.status_code", resp.StatusCode)
	span.Status = sentry.HTTPtoSpanStatus(resp.StatusCode)
	return resp, nil
}
