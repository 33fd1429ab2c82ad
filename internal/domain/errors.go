package domain

import "errors"

var (
	ErrInvalidPolicy             = errors.New("invalid capacity policy")
	ErrPolicyExists              = errors.New("capacity policy already exists")
	ErrPolicyNotFound            = errors.New("capacity policy not found")
	ErrCapacityExceeded          = errors.New("capacity exceeded")
	ErrDuplicateRegistration     = errors.New("duplicate registration")
	ErrRegistrationNotFound      = errors.New("registration not found")
	ErrInvalidTransition         = errors.New("invalid registration transition")
	ErrReservationExpired        = errors.New("reservation expired")
	ErrAlreadyWaitlisted         = errors.New("already waitlisted")
	ErrNotWaitlisted             = errors.New("not waitlisted")
	ErrInsufficientGroupCapacity = errors.New("insufficient capacity for group")
	ErrGroupNotFound             = errors.New("group booking not found")
	ErrGroupFull                 = errors.New("group booking already filled")
	ErrInvalidPartySize          = errors.New("invalid party size")
	ErrTransientConflict         = errors.New("transient counter conflict")
	ErrInvalidID                 = errors.New("invalid id")
)
