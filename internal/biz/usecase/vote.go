package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/DevRickLin/feishu-poll-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-poll-bot/internal/biz/repo"
)

// VoteUsecase keeps at most one vote symbol per user on each poll
type VoteUsecase struct {
	pollRepo    repo.PollRepo
	messageRepo repo.MessageRepo
	symbols     domain.SymbolSet
}

// NewVoteUsecase creates a new vote usecase
func NewVoteUsecase(pollRepo repo.PollRepo, messageRepo repo.MessageRepo, symbols domain.SymbolSet) *VoteUsecase {
	return &VoteUsecase{
		pollRepo:    pollRepo,
		messageRepo: messageRepo,
		symbols:     symbols,
	}
}

// Reconcile handles one reaction-added event: when it is a vote, the user's
// reactions with the poll's other symbols are removed. The store is only read.
//
// Only reactions not newer than the event's own reaction are removed, so when a
// user's reactions land before their events are processed the latest one still
// survives. Returns the number of reactions removed.
func (uc *VoteUsecase) Reconcile(ctx context.Context, ev domain.VoteEvent) int {
	if ev.FromApp || ev.UserID == "" {
		return 0
	}

	poll, err := uc.pollRepo.Get(ctx, ev.PollID)
	if err != nil {
		fmt.Printf("[Vote] Failed to look up poll %s: %v\n", ev.PollID, err)
		return 0
	}
	if poll == nil {
		return 0
	}

	kind := uc.symbols.Classify(poll, ev.Symbol)
	if !kind.IsVote() {
		return 0
	}

	cutoff := ev.At
	var others []domain.Reaction
	for i, sym := range uc.symbols.ForPoll(poll) {
		if i == kind.OptionIndex && !cutoff.IsZero() {
			continue
		}

		reactions, err := uc.messageRepo.ListReactions(ctx, poll.ID, sym.Type)
		if err != nil {
			fmt.Printf("[Vote] Failed to list %s on %s: %v\n", sym.Type, poll.ID, err)
			continue
		}

		for _, r := range reactions {
			if r.FromApp || r.UserID != ev.UserID {
				continue
			}
			if i == kind.OptionIndex {
				// Event carried no time: fall back to when the reaction was added
				cutoff = r.At
				continue
			}
			others = append(others, r)
		}
	}

	removed := 0
	for _, r := range others {
		if !cutoff.IsZero() && r.At.After(cutoff) {
			// Newer vote; its own event settles it
			continue
		}
		if err := uc.messageRepo.RemoveReaction(ctx, poll.ID, r.ID); err != nil {
			if errors.Is(err, domain.ErrPermission) {
				fmt.Printf("[Vote] Not allowed to remove %s of %s on %s\n", r.Type, ev.UserID, poll.ID)
			} else {
				fmt.Printf("[Vote] Failed to remove %s of %s on %s: %v\n", r.Type, ev.UserID, poll.ID, err)
			}
			continue
		}
		removed++
	}

	if removed > 0 {
		fmt.Printf("[Vote] %s voted %q on %s, removed %d other reaction(s)\n",
			ev.UserID, poll.Options[kind.OptionIndex], poll.ID, removed)
	}
	return removed
}
