package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/DevRickLin/feishu-poll-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-poll-bot/internal/biz/repo"
)

// FinalizeTrigger is called when a poll is due. It must not block.
type FinalizeTrigger func(pollID string)

// PollScheduler fires a finalize trigger when polls expire.
// The timer map is a cache of the store and is rebuilt by Recover.
type PollScheduler struct {
	pollRepo repo.PollRepo
	trigger  FinalizeTrigger
	now      func() time.Time

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// NewPollScheduler creates a new poll scheduler
func NewPollScheduler(pollRepo repo.PollRepo, trigger FinalizeTrigger) *PollScheduler {
	return &PollScheduler{
		pollRepo: pollRepo,
		trigger:  trigger,
		now:      time.Now,
		timers:   make(map[string]*time.Timer),
	}
}

// Schedule arranges for poll to be finalized at its end time.
// Open-ended polls are ignored; an elapsed end time triggers right away.
func (s *PollScheduler) Schedule(poll *domain.Poll) {
	if poll.IsOpenEnded() {
		return
	}
	s.scheduleIn(poll.ID, poll.Remaining(s.now()))
}

func (s *PollScheduler) scheduleIn(pollID string, remaining time.Duration) bool {
	s.mu.Lock()
	if old, ok := s.timers[pollID]; ok {
		old.Stop()
		delete(s.timers, pollID)
	}
	if s.stopped {
		s.mu.Unlock()
		return false
	}

	if remaining <= 0 {
		s.mu.Unlock()
		fmt.Printf("[Scheduler] Poll %s is overdue, finalizing now\n", pollID)
		s.trigger(pollID)
		return false
	}

	var timer *time.Timer
	timer = time.AfterFunc(remaining, func() {
		s.mu.Lock()
		// A replaced or cancelled timer may still fire once
		if s.timers[pollID] != timer {
			s.mu.Unlock()
			return
		}
		delete(s.timers, pollID)
		s.mu.Unlock()

		s.trigger(pollID)
	})
	s.timers[pollID] = timer
	s.mu.Unlock()

	fmt.Printf("[Scheduler] Poll %s scheduled in %s\n", pollID, domain.FormatDuration(remaining))
	return true
}

// Recover rebuilds the timer map from the store. Expired polls are triggered
// immediately instead of being dropped.
func (s *PollScheduler) Recover(ctx context.Context) (rescheduled, triggered int, err error) {
	polls, err := s.pollRepo.ListAll(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list polls: %w", err)
	}

	now := s.now()
	open := 0
	for _, poll := range polls {
		if poll.IsOpenEnded() {
			open++
			continue
		}
		if s.scheduleIn(poll.ID, poll.Remaining(now)) {
			rescheduled++
		} else {
			triggered++
		}
	}

	fmt.Printf("[Scheduler] Recovered %d polls: %d rescheduled, %d overdue, %d open-ended\n",
		len(polls), rescheduled, triggered, open)
	return rescheduled, triggered, nil
}

// Cancel stops and forgets the timer of a poll, if any
func (s *PollScheduler) Cancel(pollID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[pollID]; ok {
		timer.Stop()
		delete(s.timers, pollID)
	}
}

// Pending returns the number of registered timers
func (s *PollScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop stops all timers; later Schedule calls are ignored
func (s *PollScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.stopped = true
	fmt.Println("[Scheduler] Stopped")
}
