package domain

import "time"

type RegistrationStatus string

const (
	RegistrationReserved  RegistrationStatus = "reserved"
	RegistrationConfirmed RegistrationStatus = "confirmed"
	RegistrationCancelled RegistrationStatus = "cancelled"
	RegistrationExpired   RegistrationStatus = "expired"
)

// Active reports whether the status still holds a committed seat.
func (s RegistrationStatus) Active() bool {
	return s == RegistrationReserved || s == RegistrationConfirmed
}

// Registration is one participant's admission record for one event. At most
// one active record may exist per (event, participant) pair.
type Registration struct {
	ID            string
	EventID       string
	ParticipantID string
	GroupID       string // set when the seat belongs to a group booking
	Status        RegistrationStatus
	ReservedAt    time.Time
	ConfirmedAt   *time.Time
	CancelledAt   *time.Time
}

// Transition validates a status change without touching storage. Storage
// applies the change as a compare-and-set on the current status, so a caller
// racing an expiry sweep gets ErrReservationExpired rather than a double
// transition.
func Transition(from, to RegistrationStatus) error {
	switch from {
	case RegistrationReserved:
		switch to {
		case RegistrationConfirmed, RegistrationCancelled, RegistrationExpired:
			return nil
		}
	case RegistrationConfirmed:
		if to == RegistrationCancelled {
			return nil
		}
	case RegistrationExpired:
		if to == RegistrationConfirmed {
			return ErrReservationExpired
		}
	}
	return ErrInvalidTransition
}
