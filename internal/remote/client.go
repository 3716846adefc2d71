// Package remote performs outbound HTTP calls whose responses must be successful, JSON, and
// match a schema contract.
package remote

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"example.com/stravasync/internal/schema"
)

// MaxErrorBodySize caps how much of a failed response body is kept on the error.
const MaxErrorBodySize = 500

const maxBodySize = 32 << 20

var (
	// ErrUnsuccessfulResponse marks responses outside the 2xx range.
	ErrUnsuccessfulResponse = errors.New("unsuccessful response")
	// ErrNonJSONBody marks 2xx responses whose body is not JSON.
	ErrNonJSONBody = errors.New("not a JSON body")
	// ErrSchemaMismatch marks JSON bodies that fail the expected contract.
	ErrSchemaMismatch = errors.New("unexpected response schema")
)

// Error is the single failure type returned for a completed call that could not be accepted.
// Kind is one of ErrUnsuccessfulResponse, ErrNonJSONBody or ErrSchemaMismatch.
type Error struct {
	Kind   error
	Method string
	URL    string
	Status int
	Body   string
	Cause  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("error fetching %s %s %d: %v", e.Method, e.URL, e.Status, e.Kind)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Is matches the failure kind sentinel.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Unwrap exposes the underlying cause, e.g. the *schema.ValidationFailure of a mismatch.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client wraps an HTTP doer. It never retries.
type Client struct {
	http Doer
}

// NewClient constructs a Client. A nil doer falls back to a client with the given timeout.
func NewClient(doer Doer, timeout time.Duration) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: timeout}
	}
	return &Client{http: doer}
}

// Call performs req and decodes the response into T after validating it against contract.
func Call[T any](c *Client, contract *schema.Schema, req *http.Request) (T, error) {
	var out T
	start := time.Now()
	target := req.URL.Host

	resp, err := c.http.Do(req)
	if err != nil {
		recordCall(target, "transport_error", start)
		return out, fmt.Errorf("%s %s: %w", req.Method, redact(req), err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		recordCall(target, "unsuccessful_response", start)
		return out, newError(ErrUnsuccessfulResponse, req, resp.StatusCode, truncate(string(body), MaxErrorBodySize), nil)
	}
	if readErr != nil {
		recordCall(target, "non_json_body", start)
		return out, newError(ErrNonJSONBody, req, resp.StatusCode, "", readErr)
	}

	if err := contract.Decode(body, &out); err != nil {
		var failure *schema.ValidationFailure
		if errors.As(err, &failure) && failure.Malformed {
			recordCall(target, "non_json_body", start)
			return out, newError(ErrNonJSONBody, req, resp.StatusCode, "", err)
		}
		recordCall(target, "schema_mismatch", start)
		return out, newError(ErrSchemaMismatch, req, resp.StatusCode, "", err)
	}

	recordCall(target, "ok", start)
	return out, nil
}

func newError(kind error, req *http.Request, status int, body string, cause error) *Error {
	return &Error{
		Kind:   kind,
		Method: req.Method,
		URL:    redact(req),
		Status: status,
		Body:   body,
		Cause:  cause,
	}
}

// redact drops the query string, which may carry credentials.
func redact(req *http.Request) string {
	u := *req.URL
	u.RawQuery = ""
	u.User = nil
	return u.String()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
