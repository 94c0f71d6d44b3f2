package mw

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/Urzzard/Operador-IA/pkg/core"
)

// APIKey requires a bearer token from keys. An empty key set disables the check.
func APIKey(keys map[string]struct{}, next http.Handler) http.Handler {
	if len(keys) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := parseBearer(r)
		if !ok {
			writeJSONError(w, r, http.StatusUnauthorized, &core.Error{
				Type:    core.ErrAuthentication,
				Message: "missing bearer token",
				Code:    "missing_token",
			})
			return
		}
		if !knownKey(keys, token) {
			writeJSONError(w, r, http.StatusUnauthorized, &core.Error{
				Type:    core.ErrAuthentication,
				Message: "invalid api key",
				Code:    "invalid_token",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func knownKey(keys map[string]struct{}, token string) bool {
	found := false
	for k := range keys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(token)) == 1 {
			found = true
		}
	}
	return found
}

func parseBearer(r *http.Request) (string, bool) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz == "" {
		return "", false
	}
	const prefix = "Bearer "
	if len(authz) < len(prefix) || !strings.EqualFold(authz[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(authz[len(prefix):])
	if token == "" {
		return "", false
	}
	return token, true
}
