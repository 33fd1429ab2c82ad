package domain

import "time"

// CapacitySnapshot is a derived, cacheable view of one event's admission
// state. It is rebuilt from the ledger and waitlist, never written back.
type CapacitySnapshot struct {
	EventID            string
	MaxCapacity        int
	Reserved           int
	Confirmed          int
	Cancelled          int
	Expired            int
	Waitlisted         int
	PromotedCount      int
	UtilizationPercent float64
	GeneratedAt        time.Time
}
