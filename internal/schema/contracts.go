package schema

import "fmt"

// WebhookEventDocument is the contract for Strava push subscription events.
var WebhookEventDocument = Document{Name: "webhook_event.json", Source: `{
  "type": "object",
  "title": "WebhookEvent",
  "properties": {
    "object_type": {"enum": ["activity", "athlete"]},
    "object_id": {"type": "integer"},
    "aspect_type": {"enum": ["create", "update", "delete"]},
    "updates": {
      "type": "object",
      "properties": {
        "title": {"type": "string"},
        "type": {"type": "string"},
        "private": {"type": ["boolean", "string"]},
        "authorized": {"type": "string"}
      }
    },
    "owner_id": {"type": "integer"},
    "subscription_id": {"type": "integer"},
    "event_time": {"type": "integer"}
  },
  "required": ["object_type", "object_id", "aspect_type", "owner_id", "subscription_id", "event_time"]
}`}

// QueuedTaskDocument is the contract for the subset of a webhook event relayed to the task queue.
var QueuedTaskDocument = Document{Name: "queued_task.json", Source: `{
  "type": "object",
  "title": "QueuedTask",
  "properties": {
    "object_type": {"enum": ["activity", "athlete"]},
    "object_id": {"type": "integer"},
    "aspect_type": {"enum": ["create", "update", "delete"]},
    "owner_id": {"type": "integer"},
    "subscription_id": {"type": "integer"}
  },
  "required": ["object_type", "object_id", "aspect_type", "owner_id", "subscription_id"]
}`}

var (
	// WebhookEvent validates inbound webhook bodies.
	WebhookEvent = MustCompile(WebhookEventDocument)
	// QueuedTask validates relayed tasks without account pinning.
	QueuedTask = MustCompile(QueuedTaskDocument)
)

// StrictQueuedTask returns the task contract with owner_id and subscription_id pinned to the
// configured athlete and subscription.
func StrictQueuedTask(ownerID, subscriptionID int64) (*Schema, error) {
	doc := Document{
		Name: "queued_task_strict.json",
		Source: fmt.Sprintf(`{
  "$ref": %q,
  "properties": {
    "owner_id": {"const": %d},
    "subscription_id": {"const": %d}
  }
}`, QueuedTaskDocument.URL(), ownerID, subscriptionID),
	}
	return Compile(doc, QueuedTaskDocument)
}
