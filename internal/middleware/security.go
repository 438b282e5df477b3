package middleware

import (
	"net/http"
	"strconv"
)

// SecurityHeadersConfig lists the response headers set on every API
// response. Empty values are skipped.
type SecurityHeadersConfig struct {
	ContentSecurityPolicy string
	FrameOptions          string
	ContentTypeNosniff    bool
	ReferrerPolicy        string
	PermissionsPolicy     string

	// CacheControl keeps cart, order and payment data out of shared caches.
	CacheControl string

	// HSTSMaxAge is the Strict-Transport-Security max-age in seconds. Zero
	// disables the header.
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
}

// DefaultSecurityHeadersConfig returns headers for a JSON API. Responses are
// never rendered as documents, so the CSP denies everything.
func DefaultSecurityHeadersConfig() SecurityHeadersConfig {
	return SecurityHeadersConfig{
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		FrameOptions:          "DENY",
		ContentTypeNosniff:    true,
		ReferrerPolicy:        "no-referrer",
		PermissionsPolicy:     "camera=(), microphone=(), geolocation=()",
		CacheControl:          "no-store",
		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,
	}
}

// SecurityHeaders sets the configured headers before the handler runs.
func SecurityHeaders(config SecurityHeadersConfig) func(http.Handler) http.Handler {
	headers := config.headers()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, kv := range headers {
				h.Set(kv[0], kv[1])
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (c SecurityHeadersConfig) headers() [][2]string {
	var out [][2]string
	add := func(name, value string) {
		if value != "" {
			out = append(out, [2]string{name, value})
		}
	}

	add("Content-Security-Policy", c.ContentSecurityPolicy)
	add("X-Frame-Options", c.FrameOptions)
	if c.ContentTypeNosniff {
		add("X-Content-Type-Options", "nosniff")
	}
	add("Referrer-Policy", c.ReferrerPolicy)
	add("Permissions-Policy", c.PermissionsPolicy)
	add("Cache-Control", c.CacheControl)

	if c.HSTSMaxAge > 0 {
		hsts := "max-age=" + strconv.Itoa(c.HSTSMaxAge)
		if c.HSTSIncludeSubdomains {
			hsts += "; includeSubDomains"
		}
		add("Strict-Transport-Security", hsts)
	}
	return out
}
