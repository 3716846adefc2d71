package consumer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"example.com/stravasync/internal/schema"
)

// ReaderFactory opens a reader positioned at the group's committed offset.
type ReaderFactory func() Reader

// Supervisor reopens the reader after a transient task failure so the uncommitted record is
// fetched again. Failure counts are shared across restarts, so a record that keeps failing is
// eventually abandoned instead of blocking its partition.
type Supervisor struct {
	newReader ReaderFactory
	contract  *schema.Schema
	handler   Handler
	backoff   time.Duration
	logger    *slog.Logger
	opts      []Option
}

// NewSupervisor constructs a Supervisor. opts are applied to every Processor it starts.
func NewSupervisor(newReader ReaderFactory, contract *schema.Schema, handler Handler, backoff time.Duration, log *slog.Logger, opts ...Option) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	shared := append([]Option{WithLogger(log)}, opts...)
	shared = append(shared, withAttemptLog(newAttemptLog()))
	return &Supervisor{newReader: newReader, contract: contract, handler: handler, backoff: backoff, logger: log, opts: shared}
}

// Run blocks until ctx is cancelled or the processor fails for a reason other than redelivery.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		reader := s.newReader()
		err := NewProcessor(reader, s.contract, s.handler, s.opts...).Run(ctx)
		if closeErr := reader.Close(); closeErr != nil {
			s.logger.WarnContext(ctx, "reader close error", "error", closeErr)
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !errors.Is(err, ErrRedeliver) {
			return err
		}

		recordRestart()
		s.logger.WarnContext(ctx, "restarting reader for redelivery", "error", err, "backoff", s.backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.backoff):
		}
	}
}
