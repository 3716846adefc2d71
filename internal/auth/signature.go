// Package auth verifies that task callbacks were signed by the message queue.
package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is the iss claim of every queue signature.
const Issuer = "Upstash"

// SignatureHeader carries the signature JWT on callbacks.
const SignatureHeader = "Upstash-Signature"

var (
	// ErrMissingSignature is returned when the signature header is absent.
	ErrMissingSignature = errors.New("missing signature")
	// ErrInvalidSignature wraps parsing and claim validation errors.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrNoSigningKeys is returned when a verifier is built without keys.
	ErrNoSigningKeys = errors.New("no signing keys configured")
)

// Claims are the verified claims of a queue signature.
type Claims struct {
	jwt.RegisteredClaims
	Body string `json:"body"`
}

// SignatureVerifier checks HS256 signatures against the current key and falls back to the
// next key during rotation.
type SignatureVerifier struct {
	keys   []string
	leeway time.Duration
}

// NewSignatureVerifier constructs a verifier. Empty keys are ignored.
func NewSignatureVerifier(currentKey, nextKey string, leeway time.Duration) (*SignatureVerifier, error) {
	var keys []string
	for _, k := range []string{currentKey, nextKey} {
		if k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, ErrNoSigningKeys
	}
	return &SignatureVerifier{keys: keys, leeway: leeway}, nil
}

// Verify validates signature for body and returns its claims.
func (v *SignatureVerifier) Verify(signature string, body []byte) (*Claims, error) {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return nil, ErrMissingSignature
	}

	var errs []error
	for _, key := range v.keys {
		claims, err := v.verifyWithKey(signature, body, key)
		if err == nil {
			return claims, nil
		}
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, errors.Join(errs...))
}

func (v *SignatureVerifier) verifyWithKey(signature string, body []byte, key string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(signature, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(key), nil
	},
		jwt.WithIssuer(Issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		return nil, err
	}

	if strings.TrimRight(claims.Body, "=") != BodyHash(body) {
		return nil, errors.New("body hash does not match")
	}
	return claims, nil
}

// BodyHash is the unpadded base64url SHA-256 digest carried in the body claim.
func BodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
