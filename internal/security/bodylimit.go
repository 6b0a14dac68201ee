package security

import (
	"net/http"

	"github.com/noah-isme/donkicalc-api/internal/common"
)

// BodyLimit caps request payloads. Declared lengths over Max are refused up
// front; streamed bodies are cut off by http.MaxBytesReader and surface as a
// 413 through common.DecodeJSON.
type BodyLimit struct {
	Max int64
}

// Middleware enforces the limit.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	if b.Max <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > b.Max {
			common.WriteError(w, common.PayloadTooLarge(b.Max))
			return
		}
		if r.Body != nil && r.Body != http.NoBody {
			r.Body = http.MaxBytesReader(w, r.Body, b.Max)
		}
		next.ServeHTTP(w, r)
	})
}
