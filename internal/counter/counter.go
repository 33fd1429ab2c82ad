// Package counter defines the atomic seat counter every admission guarantee
// reduces to. Implementations must be linearizable: under concurrent callers
// the committed count behaves as if all calls ran in some serial order, with
// no lost updates and no transient over-commitment.
package counter

import "context"

// Counter tracks seats currently committed (confirmed plus active holds) per
// event. TryReserve and Release are the only mutations; clients never set the
// count directly.
type Counter interface {
	// TryReserve increments the committed count by n only if the result stays
	// within the event's maximum capacity. Fails with domain.ErrCapacityExceeded
	// without changing the count, or domain.ErrTransientConflict when bounded
	// retries under contention are exhausted.
	TryReserve(ctx context.Context, eventID string, n int) error

	// Release decrements the committed count by n, floored at zero. Single
	// release per freed seat is the ledger's job, not the counter's.
	Release(ctx context.Context, eventID string, n int) error

	// Committed returns the current committed count.
	Committed(ctx context.Context, eventID string) (int, error)
}

// CapacityLookup resolves the bound TryReserve enforces. A capacity increase
// applied through the policy store is visible to the next lookup.
type CapacityLookup interface {
	MaxCapacity(ctx context.Context, eventID string) (int, error)
}
