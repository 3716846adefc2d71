package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"example.com/stravasync/internal/config"
	"example.com/stravasync/internal/domain"
	"example.com/stravasync/internal/remote"
	"example.com/stravasync/internal/schema"
)

var receiptContract = schema.MustCompile(schema.Document{Name: "queue_receipt.json", Source: `{
  "type": "object",
  "title": "QueueReceipt",
  "properties": {"messageId": {"type": "string"}},
  "required": ["messageId"]
}`})

type receipt struct {
	MessageID string `json:"messageId"`
}

// HTTPRelay publishes tasks to an HTTP message queue that forwards them to the task callback.
type HTTPRelay struct {
	client   *remote.Client
	endpoint string
	token    string
	logger   *slog.Logger
}

// NewHTTPRelay constructs an HTTPRelay. The publish endpoint is the queue's publish URL with
// the callback URL appended.
func NewHTTPRelay(client *remote.Client, cfg config.QueueConfig, log *slog.Logger) *HTTPRelay {
	if log == nil {
		log = slog.Default()
	}
	return &HTTPRelay{
		client:   client,
		endpoint: cfg.PublishURL + cfg.CallbackURL,
		token:    cfg.Token,
		logger:   log,
	}
}

// Enqueue publishes task and returns the queue's message id.
func (r *HTTPRelay) Enqueue(ctx context.Context, task domain.QueuedTask) (id string, err error) {
	defer func() { recordEnqueue(config.QueueBackendHTTP, err) }()

	body, err := json.Marshal(task)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build publish request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := remote.Call[receipt](r.client, receiptContract, req)
	if err != nil {
		r.logger.WarnContext(ctx, "task publish failed", "error", err)
		return "", err
	}
	if resp.MessageID == "" {
		return "", ErrEmptyReceipt
	}

	r.logger.DebugContext(ctx, "task published", "message_id", resp.MessageID)
	return resp.MessageID, nil
}
