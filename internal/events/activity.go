// Package events defines the domain event payloads published through the outbox.
package events

import "time"

// Event types written to the outbox.
const (
	TypeStravaActivitySynced  = "strava_activity.synced"
	TypeStravaActivityDeleted = "strava_activity.deleted"
)

// Topics the dispatcher publishes to.
const (
	TopicStravaActivities = "strava_activity_events"
)

// StravaActivitySynced is emitted after an activity is created or replaced.
type StravaActivitySynced struct {
	ActivityID  string    `json:"activity_id"`
	StravaID    int64     `json:"strava_id"`
	Name        string    `json:"name"`
	SportType   string    `json:"sport_type"`
	StartDate   string    `json:"start_date"`
	Distance    float64   `json:"distance"`
	MovingTime  int64     `json:"moving_time"`
	SplitCount  int       `json:"split_count"`
	LapCount    int       `json:"lap_count"`
	EffortCount int       `json:"best_effort_count"`
	SyncedAt    time.Time `json:"synced_at"`
}

// StravaActivityDeleted is emitted after an activity and its children are removed.
type StravaActivityDeleted struct {
	ActivityID string    `json:"activity_id"`
	StravaID   int64     `json:"strava_id"`
	DeletedAt  time.Time `json:"deleted_at"`
}
