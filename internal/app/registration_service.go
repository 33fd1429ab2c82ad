package app

import (
	"context"
	"errors"
	"time"

	"github.com/openvenue/admission/internal/clock"
	"github.com/openvenue/admission/internal/counter"
	"github.com/openvenue/admission/internal/domain"
	"github.com/openvenue/admission/internal/telemetry"
)

type RegistrationRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateRegistration(ctx context.Context, reg domain.Registration) error
	GetRegistration(ctx context.Context, id string) (domain.Registration, error)
	FindActiveRegistration(ctx context.Context, eventID, participantID string) (*domain.Registration, error)
	TransitionStatus(ctx context.Context, id string, from []domain.RegistrationStatus, to domain.RegistrationStatus, at time.Time) (*domain.Registration, error)
	EventsWithOverdue(ctx context.Context, now time.Time) ([]string, error)
	ExpireOverdue(ctx context.Context, eventID string, now time.Time) ([]domain.Registration, error)
}

// RegistrationService owns the admission state machine. The seat counter is
// the only shared-write primitive it relies on: a registration holds a seat
// exactly between a successful TryReserve and the single Release performed by
// its terminal transition.
type RegistrationService struct {
	repo       RegistrationRepository
	policies   PolicySource
	seats      counter.Counter
	clock      clock.Clock
	promotions PromotionTrigger
	snapshots  SnapshotInvalidator
}

func NewRegistrationService(
	repo RegistrationRepository,
	policies PolicySource,
	seats counter.Counter,
	clk clock.Clock,
	promotions PromotionTrigger,
	snapshots SnapshotInvalidator,
) *RegistrationService {
	return &RegistrationService{
		repo:       repo,
		policies:   policies,
		seats:      seats,
		clock:      clk,
		promotions: promotions,
		snapshots:  snapshots,
	}
}

// Register admits one participant. Fast path: duplicate guard, then one
// atomic TryReserve, then a conditional insert. A concurrent duplicate that
// slips past the guard loses on the insert and gives its seat straight back.
func (s *RegistrationService) Register(ctx context.Context, eventID, participantID string) (domain.Registration, error) {
	if eventID == "" || participantID == "" {
		return domain.Registration{}, domain.ErrInvalidID
	}

	policy, err := s.policies.GetPolicy(ctx, eventID)
	if err != nil {
		return domain.Registration{}, err
	}

	if existing, err := s.repo.FindActiveRegistration(ctx, eventID, participantID); err != nil {
		return domain.Registration{}, err
	} else if existing != nil {
		telemetry.RegistrationsTotal.WithLabelValues("duplicate").Inc()
		return domain.Registration{}, domain.ErrDuplicateRegistration
	}

	if err := s.seats.TryReserve(ctx, eventID, 1); err != nil {
		if errors.Is(err, domain.ErrCapacityExceeded) {
			telemetry.RegistrationsTotal.WithLabelValues("capacity_exceeded").Inc()
		}
		return domain.Registration{}, err
	}

	now := s.clock.Now()
	reg := domain.Registration{
		ID:            newID(),
		EventID:       eventID,
		ParticipantID: participantID,
		Status:        domain.RegistrationReserved,
		ReservedAt:    now,
	}
	if !policy.AllowReservations {
		reg.Status = domain.RegistrationConfirmed
		reg.ConfirmedAt = &now
	}

	if err := s.repo.CreateRegistration(ctx, reg); err != nil {
		// Seat was committed above; give it back before reporting.
		if relErr := s.seats.Release(ctx, eventID, 1); relErr != nil {
			return domain.Registration{}, relErr
		}
		if errors.Is(err, domain.ErrDuplicateRegistration) {
			telemetry.RegistrationsTotal.WithLabelValues("duplicate").Inc()
		}
		return domain.Registration{}, err
	}

	telemetry.RegistrationsTotal.WithLabelValues("admitted").Inc()
	s.observeCommitted(ctx, eventID)
	s.snapshots.Invalidate(eventID)
	return reg, nil
}

// Confirm moves a reservation to confirmed. The seat was already committed at
// reservation time, so the counter does not move.
func (s *RegistrationService) Confirm(ctx context.Context, registrationID string) (domain.Registration, error) {
	reg, err := s.repo.TransitionStatus(ctx, registrationID,
		[]domain.RegistrationStatus{domain.RegistrationReserved},
		domain.RegistrationConfirmed, s.clock.Now())
	if err != nil {
		return domain.Registration{}, err
	}
	if reg == nil {
		return domain.Registration{}, s.transitionFailure(ctx, registrationID, domain.RegistrationConfirmed)
	}
	s.snapshots.Invalidate(reg.EventID)
	return *reg, nil
}

// Cancel releases the seat exactly once and wakes the promotion engine.
func (s *RegistrationService) Cancel(ctx context.Context, registrationID string) (domain.Registration, error) {
	reg, err := s.repo.TransitionStatus(ctx, registrationID,
		[]domain.RegistrationStatus{domain.RegistrationReserved, domain.RegistrationConfirmed},
		domain.RegistrationCancelled, s.clock.Now())
	if err != nil {
		return domain.Registration{}, err
	}
	if reg == nil {
		return domain.Registration{}, s.transitionFailure(ctx, registrationID, domain.RegistrationCancelled)
	}

	if err := s.seats.Release(ctx, reg.EventID, 1); err != nil {
		return domain.Registration{}, err
	}
	s.observeCommitted(ctx, reg.EventID)
	s.snapshots.Invalidate(reg.EventID)
	s.promotions.Trigger(reg.EventID)
	return *reg, nil
}

// transitionFailure maps a missed compare-and-set to the error the current
// state dictates.
func (s *RegistrationService) transitionFailure(ctx context.Context, registrationID string, wanted domain.RegistrationStatus) error {
	reg, err := s.repo.GetRegistration(ctx, registrationID)
	if err != nil {
		return err
	}
	if err := domain.Transition(reg.Status, wanted); err != nil {
		return err
	}
	// State moved again between the CAS and this read; report a conflict
	// rather than pretending success.
	return domain.ErrInvalidTransition
}

// ExpireReservations sweeps overdue reservations into expired and frees
// their seats, one event per transaction: a failed release rolls that
// event's expiry back so the next sweep picks the rows up again, and the
// remaining events still get swept. A confirm racing the sweep is decided
// by the status compare-and-set in storage: whichever write observes
// reserved wins.
func (s *RegistrationService) ExpireReservations(ctx context.Context) (int, error) {
	now := s.clock.Now()
	eventIDs, err := s.repo.EventsWithOverdue(ctx, now)
	if err != nil {
		return 0, err
	}

	total := 0
	var firstErr error
	for _, eventID := range eventIDs {
		n, err := s.expireEvent(ctx, eventID, now)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		total += n
	}
	return total, firstErr
}

func (s *RegistrationService) expireEvent(ctx context.Context, eventID string, now time.Time) (int, error) {
	expired := 0
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		regs, err := s.repo.ExpireOverdue(txCtx, eventID, now)
		if err != nil {
			return err
		}
		expired = len(regs)
		if expired == 0 {
			return nil
		}
		return s.seats.Release(txCtx, eventID, expired)
	})
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		telemetry.ExpiredReservationsTotal.Add(float64(expired))
		s.observeCommitted(ctx, eventID)
		s.snapshots.Invalidate(eventID)
		s.promotions.Trigger(eventID)
	}
	return expired, nil
}

func (s *RegistrationService) observeCommitted(ctx context.Context, eventID string) {
	if committed, err := s.seats.Committed(ctx, eventID); err == nil {
		telemetry.SeatsCommitted.WithLabelValues(eventID).Set(float64(committed))
	}
}
