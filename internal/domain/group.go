package domain

import "time"

type GroupStatus string

const (
	GroupForming   GroupStatus = "forming"
	GroupReserved  GroupStatus = "reserved"
	GroupConfirmed GroupStatus = "confirmed"
	GroupFailed    GroupStatus = "failed"
	GroupCancelled GroupStatus = "cancelled"
)

// Active reports whether the group still holds its block of seats.
func (s GroupStatus) Active() bool {
	return s == GroupForming || s == GroupReserved || s == GroupConfirmed
}

// GroupBooking holds a block of PartySize seats reserved as one unit. The
// seat counter moves by PartySize in a single call on reserve and on cancel,
// never seat by seat.
type GroupBooking struct {
	ID          string
	EventID     string
	LeaderID    string
	PartySize   int
	MemberCount int // filled member registrations, PartySize once complete
	Status      GroupStatus
	CreatedAt   time.Time
	CancelledAt *time.Time
}
