package domain

import "time"

// WaitlistEntry is a party waiting for capacity. Position is a per-event
// insertion sequence; promotion order is (priority desc, position asc), which
// keeps ties stable without depending on wall-clock timestamps.
type WaitlistEntry struct {
	ID            string
	EventID       string
	ParticipantID string
	Position      int
	Priority      int // higher is served first
	JoinedAt      time.Time
	Promoted      bool
}
