package consumer

import (
	"context"
	"log/slog"

	"example.com/stravasync/internal/domain"
	"example.com/stravasync/internal/logger"
)

// TaskProcessor is satisfied by *domain.Service.
type TaskProcessor interface {
	Process(ctx context.Context, task domain.QueuedTask) error
}

// TaskHandler runs consumed tasks through the sync service.
type TaskHandler struct {
	processor TaskProcessor
	logger    *slog.Logger
}

// NewTaskHandler constructs a handler backed by the provided processor.
func NewTaskHandler(processor TaskProcessor, log *slog.Logger) *TaskHandler {
	if log == nil {
		log = slog.Default()
	}
	return &TaskHandler{processor: processor, logger: log}
}

// Handle processes msg.Task with the message id attached to the context's log fields.
func (h *TaskHandler) Handle(ctx context.Context, msg Message) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID: logger.Ptr(msg.MessageID),
		Component: "consumer",
	})

	if err := h.processor.Process(ctx, msg.Task); err != nil {
		return err
	}
	h.logger.InfoContext(ctx, "task processed", "topic", msg.Topic, "offset", msg.Offset)
	return nil
}
