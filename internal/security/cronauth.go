package security

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/noah-isme/donkicalc-api/internal/common"
)

// CronAuth guards scheduler-only endpoints with a shared bearer secret.
// An empty secret closes the route entirely.
type CronAuth struct {
	Secret string
}

// Middleware rejects requests whose Authorization header does not carry the secret.
func (c CronAuth) Middleware(next http.Handler) http.Handler {
	secret := strings.TrimSpace(c.Secret)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if secret == "" {
			common.JSONError(w, http.StatusServiceUnavailable, "CRON_DISABLED", "cron secret not configured", nil)
			return
		}
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="cron"`)
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorised", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
