package auth

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	currentKey = "sig_current_4f1c"
	nextKey    = "sig_next_9a7e"
)

var taskBody = []byte(`{"object_type":"activity","object_id":1,"aspect_type":"create","owner_id":2,"subscription_id":3}`)

func sign(t *testing.T, key string, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return token
}

func validClaims(body []byte) Claims {
	now := time.Now()
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   "https://sync.example.com/tasks/activities",
			ID:        "msg_123",
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
		},
		Body: BodyHash(body) + "=",
	}
}

func TestNewSignatureVerifierRequiresAKey(t *testing.T) {
	_, err := NewSignatureVerifier("", "", 0)
	require.ErrorIs(t, err, ErrNoSigningKeys)
}

func TestVerifyAcceptsCurrentAndNextKeys(t *testing.T) {
	verifier, err := NewSignatureVerifier(currentKey, nextKey, time.Second)
	require.NoError(t, err)

	for _, key := range []string{currentKey, nextKey} {
		claims, err := verifier.Verify(sign(t, key, validClaims(taskBody)), taskBody)
		require.NoError(t, err)
		require.Equal(t, "msg_123", claims.ID)
	}
}

func TestVerifyRejections(t *testing.T) {
	verifier, err := NewSignatureVerifier(currentKey, nextKey, 0)
	require.NoError(t, err)

	expired := validClaims(taskBody)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	wrongIssuer := validClaims(taskBody)
	wrongIssuer.Issuer = "someone-else"

	cases := []struct {
		name      string
		signature string
		body      []byte
		target    error
	}{
		{name: "missing", signature: "", body: taskBody, target: ErrMissingSignature},
		{name: "unknown key", signature: sign(t, "other", validClaims(taskBody)), body: taskBody, target: ErrInvalidSignature},
		{name: "tampered body", signature: sign(t, currentKey, validClaims(taskBody)), body: []byte(`{"object_id":2}`), target: ErrInvalidSignature},
		{name: "expired", signature: sign(t, currentKey, expired), body: taskBody, target: ErrInvalidSignature},
		{name: "wrong issuer", signature: sign(t, currentKey, wrongIssuer), body: taskBody, target: ErrInvalidSignature},
		{name: "garbage", signature: "not.a.jwt", body: taskBody, target: ErrInvalidSignature},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := verifier.Verify(tc.signature, tc.body)
			require.ErrorIs(t, err, tc.target)
		})
	}
}

func TestMiddlewareRestoresBodyAndStoresClaims(t *testing.T) {
	verifier, err := NewSignatureVerifier(currentKey, "", 0)
	require.NoError(t, err)

	var gotBody []byte
	var gotClaims *Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotClaims, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := NewMiddleware(verifier, nil).Wrap(next)

	req := httptest.NewRequest(http.MethodPost, "/tasks/activities", bytes.NewReader(taskBody))
	req.Header.Set(SignatureHeader, sign(t, currentKey, validClaims(taskBody)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, taskBody, gotBody)
	require.NotNil(t, gotClaims)
	require.Equal(t, Issuer, gotClaims.Issuer)
}

func TestMiddlewareRejectsUnsignedRequests(t *testing.T) {
	verifier, err := NewSignatureVerifier(currentKey, "", 0)
	require.NoError(t, err)

	called := false
	handler := NewMiddleware(verifier, func(r *http.Request) bool {
		return r.URL.Path == "/healthz"
	}).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tasks/activities", bytes.NewReader(taskBody)))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.False(t, called)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.True(t, called)
}
