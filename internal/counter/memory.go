package counter

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/openvenue/admission/internal/domain"
)

const (
	defaultMaxRetries = 32
	retryBackoffStep  = 50 * time.Microsecond
)

// Memory is an in-process Counter built on compare-and-swap. It backs tests
// and single-node deployments; the Postgres implementation covers everything
// that needs durability.
type Memory struct {
	limits     CapacityLookup
	counts     *xsync.MapOf[string, *atomic.Int64]
	maxRetries int
}

func NewMemory(limits CapacityLookup) *Memory {
	return &Memory{
		limits:     limits,
		counts:     xsync.NewMapOf[string, *atomic.Int64](),
		maxRetries: defaultMaxRetries,
	}
}

func (m *Memory) TryReserve(ctx context.Context, eventID string, n int) error {
	max, err := m.limits.MaxCapacity(ctx, eventID)
	if err != nil {
		return err
	}

	c := m.count(eventID)
	for attempt := 0; attempt < m.maxRetries; attempt++ {
		cur := c.Load()
		next := cur + int64(n)
		if next > int64(max) {
			return domain.ErrCapacityExceeded
		}
		if c.CompareAndSwap(cur, next) {
			return nil
		}
		backoff(attempt)
	}
	return domain.ErrTransientConflict
}

func (m *Memory) Release(ctx context.Context, eventID string, n int) error {
	c := m.count(eventID)
	for attempt := 0; attempt < m.maxRetries; attempt++ {
		cur := c.Load()
		next := cur - int64(n)
		if next < 0 {
			next = 0
		}
		if c.CompareAndSwap(cur, next) {
			return nil
		}
		backoff(attempt)
	}
	return domain.ErrTransientConflict
}

func (m *Memory) Committed(ctx context.Context, eventID string) (int, error) {
	return int(m.count(eventID).Load()), nil
}

func (m *Memory) count(eventID string) *atomic.Int64 {
	c, _ := m.counts.LoadOrCompute(eventID, func() *atomic.Int64 {
		return &atomic.Int64{}
	})
	return c
}

func backoff(attempt int) {
	time.Sleep(time.Duration(attempt+1) * retryBackoffStep)
}
