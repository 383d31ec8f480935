package domain

// Activity is a named extracurricular offering and its roster of enrolled student emails.
type Activity struct {
	Name            string
	Description     string
	Schedule        string
	MaxParticipants int
	// Participants is ordered by signup time and never holds the same email twice.
	Participants []string
	// Revision is bumped by every roster change, so it orders the changes of one activity.
	Revision uint64
}

// Clone returns a deep copy so callers cannot mutate the roster they were handed.
func (a Activity) Clone() Activity {
	out := a
	out.Participants = make([]string, len(a.Participants))
	copy(out.Participants, a.Participants)
	return out
}

// HasParticipant reports whether email is on the roster.
func (a Activity) HasParticipant(email string) bool {
	for _, p := range a.Participants {
		if p == email {
			return true
		}
	}
	return false
}

// OverCapacity reports whether the roster is larger than the advertised capacity.
func (a Activity) OverCapacity() bool {
	return a.MaxParticipants > 0 && len(a.Participants) > a.MaxParticipants
}
