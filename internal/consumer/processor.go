// Package consumer runs queued tasks delivered through Kafka.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/stravasync/internal/domain"
	"example.com/stravasync/internal/queue"
	"example.com/stravasync/internal/schema"
)

// DefaultMaxAttempts bounds how often one record is handled before it is committed as abandoned.
const DefaultMaxAttempts = 5

// ErrRedeliver is returned by Run when a task failed transiently and was left uncommitted.
var ErrRedeliver = errors.New("task left uncommitted for redelivery")

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler runs a decoded task.
type Handler interface {
	Handle(context.Context, Message) error
}

// Message is the decoded representation of a task record written by the Kafka relay.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	MessageID string
	Task      domain.QueuedTask
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMaxAttempts sets how many transient failures a record may see before it is abandoned.
func WithMaxAttempts(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

func withAttemptLog(log *attemptLog) Option {
	return func(p *Processor) {
		p.attempts = log
	}
}

// Processor pulls task records from Kafka, validates them, and dispatches to a Handler.
// Records are committed after success or a permanent failure. A record that fails transiently
// maxAttempts times is committed as abandoned.
type Processor struct {
	reader      Reader
	contract    *schema.Schema
	handler     Handler
	logger      *slog.Logger
	maxAttempts int
	attempts    *attemptLog
}

// NewProcessor constructs a Processor. contract validates every record value.
func NewProcessor(reader Reader, contract *schema.Schema, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:   reader,
		contract: contract,
		handler:  handler,
		logger:   slog.Default().With("component", "consumer"),

		maxAttempts: DefaultMaxAttempts,
		attempts:    newAttemptLog(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes records until the context is cancelled or a task fails transiently, in which
// case the returned error wraps ErrRedeliver and the record stays uncommitted.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			p.logger.ErrorContext(ctx, "fetch error", "error", err)
			continue
		}

		task, decodeErr := p.decodeMessage(msg)
		if decodeErr != nil {
			p.logger.WarnContext(ctx, "decode error", "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", decodeErr)
			recordDecodeError(msg.Topic)
			// Commit malformed records to avoid poison-pill loops.
			p.commit(ctx, msg)
			continue
		}

		key := recordKey(msg)
		if handleErr := p.handler.Handle(ctx, task); handleErr != nil {
			code := domain.CodeInternalError
			var taskErr *domain.TaskError
			if errors.As(handleErr, &taskErr) {
				code = taskErr.Code
			}
			recordHandlerError(task, code)

			if taskErr != nil && taskErr.Permanent() {
				p.logger.WarnContext(ctx, "task rejected", "message_id", task.MessageID, "code", code)
				p.attempts.clear(key)
				p.commit(ctx, msg)
				continue
			}

			attempt := p.attempts.fail(key)
			if attempt >= p.maxAttempts {
				p.logger.ErrorContext(ctx, "task abandoned", "message_id", task.MessageID, "code", code, "attempts", attempt, "error", handleErr)
				recordAbandoned(task, code)
				p.attempts.clear(key)
				p.commit(ctx, msg)
				continue
			}
			return fmt.Errorf("%w: offset %d attempt %d: %v", ErrRedeliver, msg.Offset, attempt, handleErr)
		}

		p.attempts.clear(key)
		if p.commit(ctx, msg) {
			recordProcessed(task)
		}
	}
}

func (p *Processor) commit(ctx context.Context, msg kafka.Message) bool {
	if err := p.reader.CommitMessages(ctx, msg); err != nil {
		p.logger.ErrorContext(ctx, "commit error", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		return false
	}
	return true
}

func (p *Processor) decodeMessage(msg kafka.Message) (Message, error) {
	var task domain.QueuedTask
	if err := p.contract.Decode(msg.Value, &task); err != nil {
		return Message{}, err
	}

	id, ok := headerValue(msg, queue.HeaderMessageID)
	if !ok || len(id) == 0 {
		id = []byte(recordKey(msg))
	}

	return Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		MessageID: string(id),
		Task:      task,
	}, nil
}

func recordKey(msg kafka.Message) string {
	return fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
}

// attemptLog counts transient failures per record. It outlives a single Processor so the count
// survives reader restarts.
type attemptLog struct {
	mu     sync.Mutex
	counts map[string]int
}

func newAttemptLog() *attemptLog {
	return &attemptLog{counts: make(map[string]int)}
}

func (a *attemptLog) fail(key string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counts[key]++
	return a.counts[key]
}

func (a *attemptLog) clear(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.counts, key)
}

func headerValue(msg kafka.Message, key string) ([]byte, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return header.Value, true
		}
	}
	return nil, false
}
