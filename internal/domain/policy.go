package domain

import "time"

// CapacityPolicy is the per-event admission configuration. It is created once
// by an organizer and mutated only by atomic capacity increases.
type CapacityPolicy struct {
	EventID            string
	MaxCapacity        int
	WarningThreshold   int // percent of capacity, 0-100
	AllowReservations  bool
	ReservationTimeout time.Duration
	CreatedAt          time.Time
}

func (p CapacityPolicy) Validate() error {
	if p.EventID == "" {
		return ErrInvalidID
	}
	if p.MaxCapacity < 1 {
		return ErrInvalidPolicy
	}
	if p.WarningThreshold < 0 || p.WarningThreshold > 100 {
		return ErrInvalidPolicy
	}
	if p.ReservationTimeout < 0 {
		return ErrInvalidPolicy
	}
	return nil
}

// NearCapacity reports whether committed has reached the warning threshold.
func (p CapacityPolicy) NearCapacity(committed int) bool {
	return committed*100 >= p.WarningThreshold*p.MaxCapacity
}

// AtCapacity reports whether no further seats can be committed.
func (p CapacityPolicy) AtCapacity(committed int) bool {
	return committed >= p.MaxCapacity
}
