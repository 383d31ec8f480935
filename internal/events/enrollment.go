// Package events defines the payloads published when a roster changes.
package events

import "time"

// Event types carried in the event_type header.
const (
	TypeParticipantSignedUp = "activity.participant_signed_up"
	TypeParticipantRemoved  = "activity.participant_removed"
)

// ParticipantChanged is emitted after a student is added to or removed from a roster.
// Sequence increases by one per change of the same activity.
type ParticipantChanged struct {
	EventID    string    `json:"event_id"`
	Activity   string    `json:"activity"`
	Email      string    `json:"email"`
	Action     string    `json:"action"`
	RosterSize int       `json:"roster_size"`
	Sequence   uint64    `json:"sequence"`
	OccurredAt time.Time `json:"occurred_at"`
}
