package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog/log"

	"github.com/openvenue/admission/internal/counter"
	"github.com/openvenue/admission/internal/domain"
	"github.com/openvenue/admission/internal/telemetry"
)

// PromotionTrigger wakes the promotion engine for one event. Triggers are
// coalesced; callers never block.
type PromotionTrigger interface {
	Trigger(eventID string)
}

// PromotionNotifier is the trigger side of the engine, split out so the
// services that fire it need no reference to the engine itself.
type PromotionNotifier struct {
	pending *xsync.MapOf[string, struct{}]
	wake    chan struct{}
}

func NewPromotionNotifier() *PromotionNotifier {
	return &PromotionNotifier{
		pending: xsync.NewMapOf[string, struct{}](),
		wake:    make(chan struct{}, 1),
	}
}

func (n *PromotionNotifier) Trigger(eventID string) {
	n.pending.Store(eventID, struct{}{})
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *PromotionNotifier) drain() []string {
	var eventIDs []string
	n.pending.Range(func(key string, _ struct{}) bool {
		eventIDs = append(eventIDs, key)
		n.pending.Delete(key)
		return true
	})
	return eventIDs
}

// NoopTrigger satisfies PromotionTrigger for tests and for services whose
// operations never free capacity.
type NoopTrigger struct{}

func (NoopTrigger) Trigger(string) {}

// Registrar is the slice of the registration service the engine drives.
type Registrar interface {
	Register(ctx context.Context, eventID, participantID string) (domain.Registration, error)
}

type PromotionWaitlist interface {
	NextCandidates(ctx context.Context, eventID string, limit int) ([]domain.WaitlistEntry, error)
	MarkPromoted(ctx context.Context, id string) error
	EventsWithWaiters(ctx context.Context) ([]string, error)
}

// PromotionEngine moves front-of-queue waitlist parties into reservations
// whenever capacity frees. It is best-effort per invocation: a candidate that
// loses the seat to a concurrent direct registration stays at the front, and
// overlapping invocations fail harmlessly against the already-filled counter.
type PromotionEngine struct {
	notifier  *PromotionNotifier
	registrar Registrar
	waitlist  PromotionWaitlist
	policies  PolicySource
	seats     counter.Counter
	interval  time.Duration
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

func NewPromotionEngine(
	notifier *PromotionNotifier,
	registrar Registrar,
	waitlist PromotionWaitlist,
	policies PolicySource,
	seats counter.Counter,
	interval time.Duration,
) *PromotionEngine {
	return &PromotionEngine{
		notifier:  notifier,
		registrar: registrar,
		waitlist:  waitlist,
		policies:  policies,
		seats:     seats,
		interval:  interval,
		stopCh:    make(chan struct{}),
	}
}

func (e *PromotionEngine) Start() {
	e.wg.Add(1)
	go e.run()
}

func (e *PromotionEngine) Stop() {
	close(e.stopCh)
	e.wg.Wait()
}

func (e *PromotionEngine) run() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.notifier.wake:
			for _, eventID := range e.notifier.drain() {
				e.promoteEvent(eventID)
			}
		case <-ticker.C:
			e.safetyNet()
		case <-e.stopCh:
			return
		}
	}
}

// safetyNet promotes for every event with waiters, catching triggers lost to
// crashes or missed releases.
func (e *PromotionEngine) safetyNet() {
	ctx, cancel := context.WithTimeout(context.Background(), e.interval)
	defer cancel()

	eventIDs, err := e.waitlist.EventsWithWaiters(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Promotion safety net failed to list events")
		return
	}
	for _, eventID := range eventIDs {
		e.promoteEvent(eventID)
	}
}

func (e *PromotionEngine) promoteEvent(eventID string) {
	ctx, cancel := context.WithTimeout(context.Background(), e.interval)
	defer cancel()

	if n, err := e.Promote(ctx, eventID); err != nil {
		log.Error().Err(err).Str("event_id", eventID).Msg("Promotion pass failed")
	} else if n > 0 {
		log.Info().Str("event_id", eventID).Int("promoted", n).Msg("Promoted waitlisted parties")
	}
}

// Promote runs promotion passes until no capacity or no candidates remain.
// Each pass recomputes free capacity, so any pass that moved the queue —
// admitted a waiter or dropped an already-admitted one — is followed by one
// more look at it.
func (e *PromotionEngine) Promote(ctx context.Context, eventID string) (int, error) {
	total := 0
	for {
		promoted, dropped, err := e.promoteOnce(ctx, eventID)
		total += promoted
		if err != nil || promoted+dropped == 0 {
			return total, err
		}
	}
}

func (e *PromotionEngine) promoteOnce(ctx context.Context, eventID string) (promoted, dropped int, err error) {
	policy, err := e.policies.GetPolicy(ctx, eventID)
	if err != nil {
		return 0, 0, err
	}
	committed, err := e.seats.Committed(ctx, eventID)
	if err != nil {
		return 0, 0, err
	}

	free := policy.MaxCapacity - committed
	if free <= 0 {
		return 0, 0, nil
	}

	candidates, err := e.waitlist.NextCandidates(ctx, eventID, free)
	if err != nil {
		return 0, 0, err
	}

	for _, candidate := range candidates {
		_, err := e.registrar.Register(ctx, eventID, candidate.ParticipantID)
		switch {
		case err == nil:
			promoted++
		case errors.Is(err, domain.ErrDuplicateRegistration):
			// Already admitted directly; drop from the queue without a seat.
			// Counts as progress: the seat is still free for whoever is next.
			dropped++
		case errors.Is(err, domain.ErrCapacityExceeded), errors.Is(err, domain.ErrTransientConflict):
			// Seat went to a concurrent direct registration. The candidate
			// keeps its place at the front.
			continue
		default:
			return promoted, dropped, err
		}

		if err := e.waitlist.MarkPromoted(ctx, candidate.ID); err != nil && !errors.Is(err, domain.ErrNotWaitlisted) {
			return promoted, dropped, err
		}
	}

	telemetry.PromotionsTotal.Add(float64(promoted))
	return promoted, dropped, nil
}
