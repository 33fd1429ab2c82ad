package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper periodically expires overdue reservations. A failed cycle is
// logged and retried on the next tick; a missed cycle delays fairness but
// never breaks the capacity invariant.
type Sweeper struct {
	registrations *RegistrationService
	interval      time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
}

func NewSweeper(registrations *RegistrationService, interval time.Duration) *Sweeper {
	return &Sweeper{
		registrations: registrations,
		interval:      interval,
		stopCh:        make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	s.wg.Add(1)
	go s.run()
}

func (s *Sweeper) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	n, err := s.registrations.ExpireReservations(ctx)
	if err != nil {
		// Partial results are fine: unexpired events are retried next tick.
		log.Error().Err(err).Int("expired", n).Msg("Reservation expiry sweep incomplete")
	}
	if n > 0 {
		log.Info().Int("expired", n).Msg("Expired overdue reservations")
	}
}
