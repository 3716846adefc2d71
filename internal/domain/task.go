package domain

import "fmt"

// Object types carried by webhook events.
const (
	ObjectTypeActivity = "activity"
	ObjectTypeAthlete  = "athlete"
)

// Aspect types carried by webhook events.
const (
	AspectCreate = "create"
	AspectUpdate = "update"
	AspectDelete = "delete"
)

// EventUpdates lists the fields changed by an update event. It is accepted but not relayed.
type EventUpdates struct {
	Title      *string `json:"title,omitempty"`
	Type       *string `json:"type,omitempty"`
	Private    any     `json:"private,omitempty"`
	Authorized *string `json:"authorized,omitempty"`
}

// WebhookEvent is a Strava push subscription event.
type WebhookEvent struct {
	ObjectType     string        `json:"object_type"`
	ObjectID       int64         `json:"object_id"`
	AspectType     string        `json:"aspect_type"`
	Updates        *EventUpdates `json:"updates,omitempty"`
	OwnerID        int64         `json:"owner_id"`
	SubscriptionID int64         `json:"subscription_id"`
	EventTime      int64         `json:"event_time"`
}

// Task reduces the event to the fields relayed to the task queue.
func (e WebhookEvent) Task() QueuedTask {
	return QueuedTask{
		ObjectType:     e.ObjectType,
		ObjectID:       e.ObjectID,
		AspectType:     e.AspectType,
		OwnerID:        e.OwnerID,
		SubscriptionID: e.SubscriptionID,
	}
}

// DedupeKey identifies a delivery of this event.
func (e WebhookEvent) DedupeKey() string {
	return fmt.Sprintf("%s:%d:%s:%d", e.ObjectType, e.ObjectID, e.AspectType, e.EventTime)
}

// QueuedTask is the unit of work handed to the task consumer.
type QueuedTask struct {
	ObjectType     string `json:"object_type"`
	ObjectID       int64  `json:"object_id"`
	AspectType     string `json:"aspect_type"`
	OwnerID        int64  `json:"owner_id"`
	SubscriptionID int64  `json:"subscription_id"`
}

// Response codes returned by the webhook and task endpoints.
const (
	CodeInvalidRequestBody = "INVALID_REQUEST_BODY"
	CodeDeliveryFailed     = "DELIVERY_FAILED"
	CodeEventReceived      = "EVENT_RECEIVED"
	CodeInvalidObjectType  = "INVALID_OBJECT_TYPE"
	CodeInvalidAspectType  = "INVALID_ASPECT_TYPE"
	CodeActivityNotFound   = "ACTIVITY_NOT_FOUND"
	CodeActivityNotCreated = "ACTIVITY_NOT_CREATED"
	CodeActivityNotDeleted = "ACTIVITY_NOT_DELETED"
	CodeActivitySaved      = "ACTIVITY_SAVED"
	CodeInternalError      = "INTERNAL_ERROR"
)

// TaskError is a coded task processing failure.
type TaskError struct {
	Code string
	Err  error
}

func (e *TaskError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// Permanent reports whether redelivering the task cannot change the outcome.
func (e *TaskError) Permanent() bool {
	switch e.Code {
	case CodeInvalidRequestBody, CodeInvalidObjectType:
		return true
	default:
		return false
	}
}
