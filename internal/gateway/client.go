package gateway

import (
	"net"
	"net/http"

	"github.com/echomate/echomate/internal/security"
)

// deviceHeader carries the embedded client's stable device id.
const deviceHeader = "X-Device-ID"

// remoteIP returns the host part of the request's remote address.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// clientKey identifies a client for rate limiting before the body is read.
func clientKey(r *http.Request) string {
	if id := r.Header.Get(deviceHeader); id != "" {
		return id
	}
	return remoteIP(r)
}

// sessionID picks the conversation a request belongs to: an explicit
// session_id value, then the device header, then the client address.
func sessionID(explicit string, r *http.Request) (string, error) {
	id := explicit
	if id == "" {
		id = r.Header.Get(deviceHeader)
	}
	if id == "" {
		id = remoteIP(r)
	}
	if err := security.ValidateSessionID(id); err != nil {
		return "", err
	}
	return id, nil
}

// rateLimit rejects clients that exceed their turn budget.
func (g *Gateway) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if err := g.limiter.Allow(key); err != nil {
			g.audit.Log(security.AuditEvent{
				Type:     security.EventRateLimit,
				Client:   key,
				Metadata: map[string]string{"path": r.URL.Path},
			})
			w.Header().Set("Retry-After", "5")
			writeError(w, http.StatusTooManyRequests, "too many requests", "rate_limited")
			return
		}
		next.ServeHTTP(w, r)
	})
}
