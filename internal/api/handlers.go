// Package api exposes the webhook and task callback endpoints of the strava sync service.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"example.com/stravasync/internal/auth"
	"example.com/stravasync/internal/domain"
	"example.com/stravasync/internal/logger"
	"example.com/stravasync/internal/queue"
	"example.com/stravasync/internal/schema"
)

const (
	maxBodySize = 1 << 20

	codeMissingParameters = "MISSING_PARAMETERS"
	codeInvalidParameters = "INVALID_PARAMETERS"
	subscribeMode         = "subscribe"
)

// TaskProcessor runs a validated task. Failures are *domain.TaskError values.
type TaskProcessor interface {
	Process(ctx context.Context, task domain.QueuedTask) error
}

// Deduplicator filters redelivered webhook events.
type Deduplicator interface {
	FirstDelivery(ctx context.Context, key string) bool
	Forget(ctx context.Context, key string)
}

// Wrapper decorates the task callback, e.g. with signature verification.
type Wrapper interface {
	Wrap(http.Handler) http.Handler
}

// Handler coordinates HTTP requests with the queue and the domain service.
type Handler struct {
	verifyToken  string
	enqueuer     queue.Enqueuer
	dedupe       Deduplicator
	processor    TaskProcessor
	taskContract *schema.Schema
	logger       *slog.Logger
}

// Option customises a Handler.
type Option func(*Handler)

// WithDeduplicator enables duplicate webhook filtering.
func WithDeduplicator(d Deduplicator) Option {
	return func(h *Handler) {
		h.dedupe = d
	}
}

// WithLogger overrides the handler logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler builds a Handler. taskContract validates task callback bodies.
func NewHandler(verifyToken string, enqueuer queue.Enqueuer, processor TaskProcessor, taskContract *schema.Schema, opts ...Option) *Handler {
	h := &Handler{
		verifyToken:  verifyToken,
		enqueuer:     enqueuer,
		processor:    processor,
		taskContract: taskContract,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux. taskAuth may be nil.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, taskAuth Wrapper) {
	var task http.Handler = http.HandlerFunc(h.processTask)
	if taskAuth != nil {
		task = taskAuth.Wrap(task)
	}

	mux.HandleFunc("GET /webhook", h.verifySubscription)
	mux.HandleFunc("POST /webhook", h.receiveEvent)
	mux.Handle("POST /tasks/activities", task)
	mux.HandleFunc("GET /healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// verifySubscription answers the push subscription handshake.
func (h *Handler) verifySubscription(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode == "" || token == "" || challenge == "" {
		recordHandshake(codeMissingParameters)
		writeError(w, http.StatusForbidden, codeMissingParameters)
		return
	}
	if mode != subscribeMode || subtle.ConstantTimeCompare([]byte(token), []byte(h.verifyToken)) != 1 {
		recordHandshake(codeInvalidParameters)
		writeError(w, http.StatusForbidden, codeInvalidParameters)
		return
	}

	recordHandshake("OK")
	writeJSON(w, http.StatusOK, map[string]string{"hub.challenge": challenge})
}

// receiveEvent validates a webhook event and relays it to the task queue.
func (h *Handler) receiveEvent(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithLogFields(r.Context(), logger.LogFields{Component: "webhook"})

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		recordWebhookEvent(domain.CodeInvalidRequestBody)
		writeMessage(w, http.StatusBadRequest, domain.CodeInvalidRequestBody)
		return
	}

	var event domain.WebhookEvent
	if err := schema.WebhookEvent.Decode(body, &event); err != nil {
		h.logger.InfoContext(ctx, "rejected webhook event", "error", err)
		recordWebhookEvent(domain.CodeInvalidRequestBody)
		writeMessage(w, http.StatusBadRequest, domain.CodeInvalidRequestBody)
		return
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		StravaID:   logger.Ptr(event.ObjectID),
		AspectType: logger.Ptr(event.AspectType),
	})

	key := event.DedupeKey()
	if h.dedupe != nil && !h.dedupe.FirstDelivery(ctx, key) {
		h.logger.InfoContext(ctx, "duplicate webhook event acknowledged", "dedupe_key", key)
		recordWebhookEvent("DUPLICATE")
		writeMessage(w, http.StatusOK, domain.CodeEventReceived)
		return
	}

	id, err := h.enqueuer.Enqueue(ctx, event.Task())
	if err != nil || id == "" {
		if h.dedupe != nil {
			h.dedupe.Forget(ctx, key)
		}
		h.logger.WarnContext(ctx, "webhook event not delivered", "error", err)
		recordWebhookEvent(domain.CodeDeliveryFailed)
		writeMessage(w, http.StatusBadRequest, domain.CodeDeliveryFailed)
		return
	}

	h.logger.InfoContext(logger.WithLogFields(ctx, logger.LogFields{MessageID: logger.Ptr(id)}), "webhook event queued")
	recordWebhookEvent(domain.CodeEventReceived)
	writeMessage(w, http.StatusOK, domain.CodeEventReceived)
}

// processTask runs a queued task delivered by the queue callback.
func (h *Handler) processTask(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithLogFields(r.Context(), logger.LogFields{Component: "tasks"})
	if claims, ok := auth.FromContext(ctx); ok && claims.ID != "" {
		ctx = logger.WithLogFields(ctx, logger.LogFields{MessageID: logger.Ptr(claims.ID)})
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		recordTask(domain.CodeInvalidRequestBody)
		writeError(w, http.StatusBadRequest, domain.CodeInvalidRequestBody)
		return
	}

	var task domain.QueuedTask
	if err := h.taskContract.Decode(body, &task); err != nil {
		h.logger.InfoContext(ctx, "rejected task", "error", err)
		recordTask(domain.CodeInvalidRequestBody)
		writeError(w, http.StatusBadRequest, domain.CodeInvalidRequestBody)
		return
	}

	if err := h.processor.Process(ctx, task); err != nil {
		code := domain.CodeInternalError
		var taskErr *domain.TaskError
		if errors.As(err, &taskErr) {
			code = taskErr.Code
		}
		recordTask(code)
		writeError(w, statusForCode(code), code)
		return
	}

	recordTask(domain.CodeActivitySaved)
	writeMessage(w, http.StatusOK, domain.CodeActivitySaved)
}

func statusForCode(code string) int {
	switch code {
	case domain.CodeInvalidRequestBody, domain.CodeInvalidObjectType:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
