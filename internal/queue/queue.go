// Package queue relays webhook tasks to the asynchronous task consumer and filters duplicate
// webhook deliveries.
package queue

import (
	"context"
	"errors"

	"example.com/stravasync/internal/domain"
)

// ErrEmptyReceipt is returned when the queue accepted a publish but handed back no receipt.
var ErrEmptyReceipt = errors.New("queue returned an empty receipt")

// Enqueuer hands a task to the queue and returns the queue's receipt id.
type Enqueuer interface {
	Enqueue(ctx context.Context, task domain.QueuedTask) (string, error)
}
