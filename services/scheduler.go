package services

import (
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StalledComputations returns the in-flight computations submitted more than
// staleAfter before now.
func (s *MatchSessionService) StalledComputations(now time.Time, staleAfter time.Duration) []InFlightComputation {
	var stalled []InFlightComputation
	for _, c := range s.InFlight() {
		if now.Sub(c.SubmittedAt) > staleAfter {
			stalled = append(stalled, c)
		}
	}
	return stalled
}

func (s *MatchSessionService) reportStalled(staleAfter time.Duration) int {
	stalled := s.StalledComputations(s.now(), staleAfter)
	for _, c := range stalled {
		log.Printf("⏳ Computation %s (%s) on session %s has waited %s for its callback",
			c.ComputationID, c.Opcode, c.SessionKey, s.now().Sub(c.SubmittedAt).Round(time.Second))
	}
	return len(stalled)
}

// StartComputationMonitor logs computations that are still waiting for the
// engine after staleAfter, every interval. The caller shuts the returned
// scheduler down.
func (s *MatchSessionService) StartComputationMonitor(interval, staleAfter time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			s.reportStalled(staleAfter)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("failed to schedule computation monitor: %w", err)
	}

	sched.Start()
	log.Printf("⏱️ Computation monitor running every %s", interval)
	return sched, nil
}
