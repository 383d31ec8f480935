package outbox

import "example.com/activitydirectory/internal/events"

const participantChangedSchema = `{
  "type": "object",
  "title": "ParticipantChanged",
  "properties": {
    "event_id": {"type": "string"},
    "activity": {"type": "string"},
    "email": {"type": "string"},
    "action": {"type": "string", "enum": ["signed_up", "removed"]},
    "roster_size": {"type": "integer"},
    "sequence": {"type": "integer", "minimum": 1},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["event_id", "activity", "email", "action", "roster_size", "sequence", "occurred_at"],
  "additionalProperties": false
}`

// Route describes where an event type is published.
type Route struct {
	Topic         string
	SchemaSubject string
	Schema        string
}

// Both roster transitions share a topic so consumers see them in order per activity.
var routes = map[string]Route{
	events.TypeParticipantSignedUp: {
		Topic:         "activity_enrollments",
		SchemaSubject: "activity_enrollments-value",
		Schema:        participantChangedSchema,
	},
	events.TypeParticipantRemoved: {
		Topic:         "activity_enrollments",
		SchemaSubject: "activity_enrollments-value",
		Schema:        participantChangedSchema,
	},
}

// RouteFor returns the routing metadata for eventType.
func RouteFor(eventType string) (Route, bool) {
	r, ok := routes[eventType]
	return r, ok
}
