package mw

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/Urzzard/Operador-IA/pkg/core"
	"github.com/Urzzard/Operador-IA/pkg/gateway/ratelimit"
)

// DialLimit spends one dial token per POST, keyed by client address.
func DialLimit(limiter *ratelimit.Limiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}
		dec := limiter.AllowDial(clientKey(r), time.Now())
		if !dec.Allowed {
			rejectRateLimited(w, r, dec.RetryAfter, "dial rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func rejectRateLimited(w http.ResponseWriter, r *http.Request, retryAfter int, msg string) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}
	writeJSONError(w, r, http.StatusTooManyRequests, &core.Error{
		Type:    core.ErrRateLimit,
		Message: msg,
	})
}

func clientKey(r *http.Request) string {
	if token, ok := parseBearer(r); ok {
		sum := sha256.Sum256([]byte(token))
		return "k_" + hex.EncodeToString(sum[:16])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
