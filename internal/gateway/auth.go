package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/echomate/echomate/internal/security"
)

// authMiddleware returns a chi-compatible middleware that validates Bearer token
// or Basic auth credentials using constant-time comparison. Attempts are
// rate-limited per client and recorded in the audit log when one is set.
func authMiddleware(cfg AuthConfig, audit *security.AuditLogger, limiter *security.ClientLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := remoteIP(r)
			if limiter != nil {
				if err := limiter.Allow(client); err != nil {
					emitAuthEvent(audit, security.EventRateLimit, r, client, "auth attempts")
					writeError(w, http.StatusTooManyRequests, "too many requests", "rate_limited")
					return
				}
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				emitAuthEvent(audit, security.EventAuthFailure, r, client, "missing authorization header")
				writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
				return
			}

			if cfg.BearerToken != "" {
				if token, ok := strings.CutPrefix(auth, "Bearer "); ok && constantTimeEqual(token, cfg.BearerToken) {
					emitAuthEvent(audit, security.EventAuthSuccess, r, client, "bearer")
					next.ServeHTTP(w, r)
					return
				}
			}

			if cfg.BasicUser != "" && cfg.BasicPass != "" {
				user, pass, ok := r.BasicAuth()
				if ok && constantTimeEqual(user, cfg.BasicUser) && constantTimeEqual(pass, cfg.BasicPass) {
					emitAuthEvent(audit, security.EventAuthSuccess, r, client, "basic")
					next.ServeHTTP(w, r)
					return
				}
			}

			emitAuthEvent(audit, security.EventAuthFailure, r, client, "invalid credentials")
			writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		})
	}
}

func emitAuthEvent(audit *security.AuditLogger, eventType security.EventType, r *http.Request, client, detail string) {
	audit.Log(security.AuditEvent{
		Type:   eventType,
		Client: client,
		Detail: detail,
		Metadata: map[string]string{
			"method": r.Method,
			"path":   r.URL.Path,
		},
	})
}

// constantTimeEqual compares two strings in constant time.
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
