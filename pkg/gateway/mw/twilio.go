package mw

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/Urzzard/Operador-IA/pkg/core"
)

const twilioSignatureHeader = "X-Twilio-Signature"

// TwilioSignature rejects requests whose X-Twilio-Signature does not match
// the auth token. baseURL is the public origin Twilio was given
// (WEBHOOK_BASE_URL); the request path and query are appended to it.
// Websocket upgrades pass through: Twilio signs the media stream handshake
// differently and the stream carries no caller-controlled parameters.
func TwilioSignature(authToken, baseURL string, next http.Handler) http.Handler {
	if authToken == "" {
		return next
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isWebSocketUpgrade(r) {
			next.ServeHTTP(w, r)
			return
		}
		got := r.Header.Get(twilioSignatureHeader)
		if got == "" {
			writeJSONError(w, r, http.StatusForbidden, &core.Error{
				Type:    core.ErrAuthentication,
				Message: "missing twilio signature",
				Code:    "missing_signature",
			})
			return
		}
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, r, http.StatusBadRequest, &core.Error{
				Type:    core.ErrInvalidRequest,
				Message: "invalid form body",
			})
			return
		}
		var params url.Values
		if r.Method == http.MethodPost {
			params = r.PostForm
		}
		want := TwilioSign(authToken, baseURL+r.URL.RequestURI(), params)
		if !hmac.Equal([]byte(got), []byte(want)) {
			writeJSONError(w, r, http.StatusForbidden, &core.Error{
				Type:    core.ErrAuthentication,
				Message: "invalid twilio signature",
				Code:    "invalid_signature",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// TwilioSign computes the X-Twilio-Signature for a request to fullURL with
// form params: base64(HMAC-SHA1(token, url + sorted key/value pairs)).
func TwilioSign(authToken, fullURL string, params url.Values) string {
	var b strings.Builder
	b.WriteString(fullURL)
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		for _, v := range params[k] {
			b.WriteString(k)
			b.WriteString(v)
		}
	}
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
