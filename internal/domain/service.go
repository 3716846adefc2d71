// Package domain defines the business logic for the strava sync service.
package domain

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"example.com/stravasync/internal/logger"
	"example.com/stravasync/internal/strava"
)

// ErrActivityNotFound is wrapped by TaskError when Strava did not return the activity.
var ErrActivityNotFound = errors.New("activity not found")

// ActivityFetcher retrieves a detailed activity. Absence covers every failure.
type ActivityFetcher interface {
	FetchActivity(ctx context.Context, id int64) (*strava.Activity, bool)
}

// ActivityStore captures persistence operations.
type ActivityStore interface {
	Upsert(ctx context.Context, record ActivityRecord) (string, error)
	Remove(ctx context.Context, stravaID int64) (RemoveResult, error)
}

// Service orchestrates activity sync workflows.
type Service struct {
	fetcher ActivityFetcher
	store   ActivityStore
	logger  *slog.Logger
}

// NewService constructs a Service.
func NewService(fetcher ActivityFetcher, store ActivityStore, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{fetcher: fetcher, store: store, logger: log}
}

// SyncActivity fetches, normalizes and upserts one activity.
func (s *Service) SyncActivity(ctx context.Context, stravaID int64) error {
	sc := logger.StartSpan(ctx, "activity.sync")
	defer sc.End()
	sc.Span().SetAttributes(attribute.Int64("strava.activity_id", stravaID))
	ctx = sc.Context()

	activity, ok := s.fetcher.FetchActivity(ctx, stravaID)
	if !ok {
		err := &TaskError{Code: CodeActivityNotFound, Err: ErrActivityNotFound}
		sc.RecordError(err)
		return err
	}

	record := Normalize(activity)
	id, err := s.store.Upsert(ctx, record)
	if err != nil || id == "" {
		s.logger.ErrorContext(ctx, "failed to create or update activity", "strava_id", stravaID, "error", err)
		taskErr := &TaskError{Code: CodeActivityNotCreated, Err: err}
		sc.RecordError(taskErr)
		return taskErr
	}

	s.logger.InfoContext(ctx, "activity synced", "strava_id", stravaID, "activity_id", id)
	return nil
}

// RemoveActivity deletes an activity and its children.
func (s *Service) RemoveActivity(ctx context.Context, stravaID int64) error {
	sc := logger.StartSpan(ctx, "activity.remove")
	defer sc.End()
	sc.Span().SetAttributes(attribute.Int64("strava.activity_id", stravaID))
	ctx = sc.Context()

	result, err := s.store.Remove(ctx, stravaID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to delete activity", "strava_id", stravaID, "error", err)
		taskErr := &TaskError{Code: CodeActivityNotDeleted, Err: err}
		sc.RecordError(taskErr)
		return taskErr
	}
	if !result.OK {
		s.logger.WarnContext(ctx, "failed to delete activity", "strava_id", stravaID, "reason", result.Message)
		taskErr := &TaskError{Code: CodeActivityNotDeleted, Err: errors.New(result.Message)}
		sc.RecordError(taskErr)
		return taskErr
	}

	s.logger.InfoContext(ctx, "activity deleted", "strava_id", stravaID)
	return nil
}

// Process dispatches a validated task. Failures are *TaskError values.
func (s *Service) Process(ctx context.Context, task QueuedTask) error {
	if task.ObjectType != ObjectTypeActivity {
		return &TaskError{Code: CodeInvalidObjectType}
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		StravaID:   logger.Ptr(task.ObjectID),
		AspectType: logger.Ptr(task.AspectType),
	})

	switch task.AspectType {
	case AspectCreate, AspectUpdate:
		return s.SyncActivity(ctx, task.ObjectID)
	case AspectDelete:
		return s.RemoveActivity(ctx, task.ObjectID)
	default:
		return &TaskError{Code: CodeInvalidAspectType}
	}
}
