package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/openvenue/admission/internal/domain"
)

// fakePolicies backs PolicySource and counter.CapacityLookup in tests.
type fakePolicies struct {
	mu       sync.Mutex
	policies map[string]domain.CapacityPolicy
}

func newFakePolicies(policies ...domain.CapacityPolicy) *fakePolicies {
	m := make(map[string]domain.CapacityPolicy, len(policies))
	for _, p := range policies {
		m[p.EventID] = p
	}
	return &fakePolicies{policies: m}
}

func (f *fakePolicies) GetPolicy(_ context.Context, eventID string) (domain.CapacityPolicy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.policies[eventID]
	if !ok {
		return domain.CapacityPolicy{}, domain.ErrPolicyNotFound
	}
	return p, nil
}

func (f *fakePolicies) MaxCapacity(ctx context.Context, eventID string) (int, error) {
	p, err := f.GetPolicy(ctx, eventID)
	if err != nil {
		return 0, err
	}
	return p.MaxCapacity, nil
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(string) {}

// recordingTrigger captures promotion triggers for assertions.
type recordingTrigger struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingTrigger) Trigger(eventID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventID)
}

func (r *recordingTrigger) triggered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.events...)
}

// fakeRegistrationRepo is an in-memory ledger honoring the same constraints
// as the Postgres schema: one active record per (event, participant) and
// compare-and-set status transitions.
type fakeRegistrationRepo struct {
	mu       sync.Mutex
	policies *fakePolicies
	regs     map[string]*domain.Registration
}

func newFakeRegistrationRepo(policies *fakePolicies) *fakeRegistrationRepo {
	return &fakeRegistrationRepo{
		policies: policies,
		regs:     make(map[string]*domain.Registration),
	}
}

// WithTx snapshots the ledger and restores it when fn fails, mirroring a
// database rollback.
func (f *fakeRegistrationRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	snapshot := make(map[string]domain.Registration, len(f.regs))
	for id, reg := range f.regs {
		snapshot[id] = *reg
	}
	f.mu.Unlock()

	if err := fn(ctx); err != nil {
		f.mu.Lock()
		f.regs = make(map[string]*domain.Registration, len(snapshot))
		for id := range snapshot {
			reg := snapshot[id]
			f.regs[id] = &reg
		}
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeRegistrationRepo) CreateRegistration(_ context.Context, reg domain.Registration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.regs {
		if existing.EventID == reg.EventID && existing.ParticipantID == reg.ParticipantID && existing.Status.Active() {
			return domain.ErrDuplicateRegistration
		}
	}
	copied := reg
	f.regs[reg.ID] = &copied
	return nil
}

func (f *fakeRegistrationRepo) GetRegistration(_ context.Context, id string) (domain.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.regs[id]
	if !ok {
		return domain.Registration{}, domain.ErrRegistrationNotFound
	}
	return *reg, nil
}

func (f *fakeRegistrationRepo) FindActiveRegistration(_ context.Context, eventID, participantID string) (*domain.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, reg := range f.regs {
		if reg.EventID == eventID && reg.ParticipantID == participantID && reg.Status.Active() {
			copied := *reg
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeRegistrationRepo) TransitionStatus(_ context.Context, id string, from []domain.RegistrationStatus, to domain.RegistrationStatus, at time.Time) (*domain.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.regs[id]
	if !ok {
		return nil, nil
	}
	matched := false
	for _, s := range from {
		if reg.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		return nil, nil
	}
	reg.Status = to
	switch to {
	case domain.RegistrationConfirmed:
		t := at
		reg.ConfirmedAt = &t
	case domain.RegistrationCancelled, domain.RegistrationExpired:
		t := at
		reg.CancelledAt = &t
	}
	copied := *reg
	return &copied, nil
}

func (f *fakeRegistrationRepo) EventsWithOverdue(_ context.Context, now time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]bool)
	var eventIDs []string
	for _, reg := range f.regs {
		if !f.overdueLocked(reg, now) || seen[reg.EventID] {
			continue
		}
		seen[reg.EventID] = true
		eventIDs = append(eventIDs, reg.EventID)
	}
	sort.Strings(eventIDs)
	return eventIDs, nil
}

func (f *fakeRegistrationRepo) ExpireOverdue(_ context.Context, eventID string, now time.Time) ([]domain.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var expired []domain.Registration
	for _, reg := range f.regs {
		if reg.EventID != eventID || !f.overdueLocked(reg, now) {
			continue
		}
		reg.Status = domain.RegistrationExpired
		t := now
		reg.CancelledAt = &t
		expired = append(expired, *reg)
	}
	return expired, nil
}

func (f *fakeRegistrationRepo) overdueLocked(reg *domain.Registration, now time.Time) bool {
	if reg.Status != domain.RegistrationReserved || reg.GroupID != "" {
		return false
	}
	policy, ok := f.policies.policies[reg.EventID]
	if !ok || policy.ReservationTimeout <= 0 {
		return false
	}
	return !reg.ReservedAt.Add(policy.ReservationTimeout).After(now)
}

// fakeWaitlistRepo keeps entries ordered the way the schema does: a dense
// per-event insertion sequence with live rank computed over (priority desc,
// position asc). Promoted rows stay in the slice, like the retained rows in
// Postgres.
type fakeWaitlistRepo struct {
	mu       sync.Mutex
	policies *fakePolicies
	entries  []*domain.WaitlistEntry
}

func newFakeWaitlistRepo(policies *fakePolicies) *fakeWaitlistRepo {
	return &fakeWaitlistRepo{policies: policies}
}

func (f *fakeWaitlistRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeWaitlistRepo) GetPolicyForUpdate(ctx context.Context, eventID string) (domain.CapacityPolicy, error) {
	return f.policies.GetPolicy(ctx, eventID)
}

func (f *fakeWaitlistRepo) FindEntry(_ context.Context, eventID, participantID string) (*domain.WaitlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.EventID == eventID && e.ParticipantID == participantID && !e.Promoted {
			copied := *e
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeWaitlistRepo) NextPosition(_ context.Context, eventID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	max := 0
	for _, e := range f.entries {
		if e.EventID == eventID && e.Position > max {
			max = e.Position
		}
	}
	return max + 1, nil
}

func (f *fakeWaitlistRepo) CreateEntry(_ context.Context, entry domain.WaitlistEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.EventID == entry.EventID && e.ParticipantID == entry.ParticipantID && !e.Promoted {
			return domain.ErrAlreadyWaitlisted
		}
	}
	copied := entry
	f.entries = append(f.entries, &copied)
	return nil
}

func (f *fakeWaitlistRepo) DeleteEntry(_ context.Context, eventID, participantID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.entries {
		if e.EventID == eventID && e.ParticipantID == participantID && !e.Promoted {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeWaitlistRepo) Rank(_ context.Context, eventID, participantID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var me *domain.WaitlistEntry
	for _, e := range f.entries {
		if e.EventID == eventID && e.ParticipantID == participantID && !e.Promoted {
			me = e
			break
		}
	}
	if me == nil {
		return 0, domain.ErrNotWaitlisted
	}
	rank := 1
	for _, e := range f.entries {
		if e.EventID != eventID || e.Promoted || e == me {
			continue
		}
		if e.Priority > me.Priority || (e.Priority == me.Priority && e.Position < me.Position) {
			rank++
		}
	}
	return rank, nil
}

func (f *fakeWaitlistRepo) NextCandidates(_ context.Context, eventID string, limit int) ([]domain.WaitlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var waiting []domain.WaitlistEntry
	for _, e := range f.entries {
		if e.EventID == eventID && !e.Promoted {
			waiting = append(waiting, *e)
		}
	}
	sort.Slice(waiting, func(i, j int) bool {
		if waiting[i].Priority != waiting[j].Priority {
			return waiting[i].Priority > waiting[j].Priority
		}
		return waiting[i].Position < waiting[j].Position
	})
	if len(waiting) > limit {
		waiting = waiting[:limit]
	}
	return waiting, nil
}

func (f *fakeWaitlistRepo) MarkPromoted(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.ID == id && !e.Promoted {
			e.Promoted = true
			return nil
		}
	}
	return domain.ErrNotWaitlisted
}

func (f *fakeWaitlistRepo) EventsWithWaiters(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]bool)
	var eventIDs []string
	for _, e := range f.entries {
		if !e.Promoted && !seen[e.EventID] {
			seen[e.EventID] = true
			eventIDs = append(eventIDs, e.EventID)
		}
	}
	return eventIDs, nil
}

func (f *fakeRegistrationRepo) activeCount(eventID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, reg := range f.regs {
		if reg.EventID == eventID && reg.Status.Active() {
			n++
		}
	}
	return n
}
