package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/DevRickLin/feishu-poll-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-poll-bot/internal/biz/repo"
	"github.com/DevRickLin/feishu-poll-bot/internal/biz/usecase"
)

const taskQueueSize = 256

type taskKind int

const (
	taskVote taskKind = iota
	taskFinalize
)

type pollTask struct {
	kind   taskKind
	pollID string
	vote   domain.VoteEvent
}

// PollService runs the poll lifecycle. Vote reconciliation and finalization
// share one queue and run one at a time, in arrival order.
type PollService struct {
	pollUC    *usecase.PollUsecase
	voteUC    *usecase.VoteUsecase
	resultUC  *usecase.ResultUsecase
	scheduler *PollScheduler

	tasks    chan pollTask
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPollService creates a new poll service
func NewPollService(
	pollRepo repo.PollRepo,
	pollUC *usecase.PollUsecase,
	voteUC *usecase.VoteUsecase,
	resultUC *usecase.ResultUsecase,
) *PollService {
	s := &PollService{
		pollUC:   pollUC,
		voteUC:   voteUC,
		resultUC: resultUC,
		tasks:    make(chan pollTask, taskQueueSize),
		done:     make(chan struct{}),
	}
	s.scheduler = NewPollScheduler(pollRepo, s.enqueueFinalize)
	return s
}

// Scheduler returns the poll scheduler
func (s *PollService) Scheduler() *PollScheduler {
	return s.scheduler
}

// Start starts the event loop and recovers persisted polls
func (s *PollService) Start(ctx context.Context) error {
	s.wg.Add(1)
	go s.eventLoop(ctx)

	if _, _, err := s.scheduler.Recover(ctx); err != nil {
		return fmt.Errorf("failed to recover polls: %w", err)
	}

	fmt.Println("[PollService] Started")
	return nil
}

// Stop stops timers and the event loop. Queued tasks are dropped; the store
// keeps every unfinished poll for the next start.
func (s *PollService) Stop() {
	s.stopOnce.Do(func() {
		s.scheduler.Stop()
		close(s.done)
	})
	s.wg.Wait()
	fmt.Println("[PollService] Stopped")
}

// CreatePoll creates a poll and schedules its finalization
func (s *PollService) CreatePoll(ctx context.Context, req *domain.PollRequest) (*domain.Poll, error) {
	poll, err := s.pollUC.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	s.scheduler.Schedule(poll)
	return poll, nil
}

// GetPoll returns a stored poll, nil if absent
func (s *PollService) GetPoll(ctx context.Context, id string) (*domain.Poll, error) {
	return s.pollUC.Get(ctx, id)
}

// ListPolls returns all stored polls
func (s *PollService) ListPolls(ctx context.Context) ([]*domain.Poll, error) {
	return s.pollUC.List(ctx)
}

// Symbols returns the vote symbols
func (s *PollService) Symbols() domain.SymbolSet {
	return s.pollUC.Symbols()
}

// SubmitVote queues a reaction event. Returns false once the service is stopped.
func (s *PollService) SubmitVote(ev domain.VoteEvent) bool {
	return s.enqueue(pollTask{kind: taskVote, pollID: ev.PollID, vote: ev})
}

// enqueueFinalize is the scheduler trigger
func (s *PollService) enqueueFinalize(pollID string) {
	if !s.enqueue(pollTask{kind: taskFinalize, pollID: pollID}) {
		fmt.Printf("[PollService] Dropped finalize of %s, service stopped\n", pollID)
	}
}

func (s *PollService) enqueue(t pollTask) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.tasks <- t:
		return true
	case <-s.done:
		return false
	}
}

// eventLoop processes tasks one at a time
func (s *PollService) eventLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case t := <-s.tasks:
			s.process(ctx, t)
		}
	}
}

func (s *PollService) process(ctx context.Context, t pollTask) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("[PollService] Task for %s panicked: %v\n", t.pollID, r)
		}
	}()

	switch t.kind {
	case taskVote:
		s.voteUC.Reconcile(ctx, t.vote)
	case taskFinalize:
		s.finalize(ctx, t.pollID)
	}
}

// finalize cancels any pending timer, then tallies and announces
func (s *PollService) finalize(ctx context.Context, pollID string) {
	s.scheduler.Cancel(pollID)

	outcome, err := s.resultUC.Finalize(ctx, pollID)
	if err != nil {
		fmt.Printf("[PollService] Finalize %s: %v\n", pollID, err)
	}
	if outcome == usecase.FinalizeDeferred {
		fmt.Printf("[PollService] Poll %s kept for the next recovery\n", pollID)
	}
}
