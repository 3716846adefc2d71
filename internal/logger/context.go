package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields are added to every record logged with a context that carries them.
type LogFields struct {
	StravaID   *int64  // Strava activity id being processed
	AspectType *string // create, update or delete
	MessageID  *string // queue receipt or Kafka message id
	Component  string
}

// WithLogFields merges fields into ctx; non-empty values win.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	merged := GetLogFields(ctx)
	if fields.StravaID != nil {
		merged.StravaID = fields.StravaID
	}
	if fields.AspectType != nil {
		merged.AspectType = fields.AspectType
	}
	if fields.MessageID != nil {
		merged.MessageID = fields.MessageID
	}
	if fields.Component != "" {
		merged.Component = fields.Component
	}
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields returns the fields in ctx, or the zero value.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
