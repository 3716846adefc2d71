package auth

import (
	"bytes"
	"io"
	"net/http"
)

const maxSignedBodySize = 1 << 20

// Skipper allows callers to bypass verification for specific requests.
type Skipper func(r *http.Request) bool

// Middleware rejects requests whose body is not covered by a valid queue signature.
type Middleware struct {
	verifier *SignatureVerifier
	skipper  Skipper
}

// NewMiddleware constructs Middleware with an optional skipper.
func NewMiddleware(verifier *SignatureVerifier, skipper Skipper) Middleware {
	return Middleware{verifier: verifier, skipper: skipper}
}

// Wrap attaches signature verification to an http.Handler. The body is restored for next.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipper != nil && m.skipper(r) {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBodySize))
		if err != nil {
			http.Error(w, "unable to read body", http.StatusBadRequest)
			return
		}
		_ = r.Body.Close()

		claims, err := m.verifier.Verify(r.Header.Get(SignatureHeader), body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}
