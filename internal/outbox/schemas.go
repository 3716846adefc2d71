package outbox

import (
	"example.com/stravasync/internal/events"
	"example.com/stravasync/internal/schema"
)

const stravaActivitySyncedSchema = `{
  "type": "object",
  "title": "StravaActivitySynced",
  "properties": {
    "activity_id": {"type": "string"},
    "strava_id": {"type": "integer"},
    "name": {"type": "string"},
    "sport_type": {"type": "string"},
    "start_date": {"type": "string", "format": "date-time"},
    "distance": {"type": "number"},
    "moving_time": {"type": "integer"},
    "split_count": {"type": "integer"},
    "lap_count": {"type": "integer"},
    "best_effort_count": {"type": "integer"},
    "synced_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "strava_id", "name", "sport_type", "start_date", "distance", "moving_time", "split_count", "lap_count", "best_effort_count", "synced_at"],
  "additionalProperties": false
}`

const stravaActivityDeletedSchema = `{
  "type": "object",
  "title": "StravaActivityDeleted",
  "properties": {
    "activity_id": {"type": "string"},
    "strava_id": {"type": "integer"},
    "deleted_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "strava_id", "deleted_at"],
  "additionalProperties": false
}`

// SchemaCatalogEntry maps event type to schema definition. Contract validates payloads
// before they are framed for Kafka.
type SchemaCatalogEntry struct {
	Schema   string
	Contract *schema.Schema
}

var schemaCatalog = map[string]SchemaCatalogEntry{
	events.TypeStravaActivitySynced: {
		Schema:   stravaActivitySyncedSchema,
		Contract: schema.MustCompile(schema.Document{Name: "strava_activity_synced.json", Source: stravaActivitySyncedSchema}),
	},
	events.TypeStravaActivityDeleted: {
		Schema:   stravaActivityDeletedSchema,
		Contract: schema.MustCompile(schema.Document{Name: "strava_activity_deleted.json", Source: stravaActivityDeletedSchema}),
	},
}
