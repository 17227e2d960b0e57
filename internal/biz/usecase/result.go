package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/DevRickLin/feishu-poll-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-poll-bot/internal/biz/repo"
)

// FinalizeOutcome tells what a finalize attempt did
type FinalizeOutcome int

const (
	// FinalizeSkipped: no record, nothing done
	FinalizeSkipped FinalizeOutcome = iota
	// FinalizeAnnounced: results sent (or attempted) and record deleted
	FinalizeAnnounced
	// FinalizeUnresolved: chat or message is gone, record deleted without results
	FinalizeUnresolved
	// FinalizeDeferred: transient resolution failure, record kept for the next recovery
	FinalizeDeferred
)

// ResultUsecase tallies, announces and retires expired polls
type ResultUsecase struct {
	pollRepo    repo.PollRepo
	messageRepo repo.MessageRepo
	symbols     domain.SymbolSet
	messages    PollMessages
}

// NewResultUsecase creates a new result usecase
func NewResultUsecase(
	pollRepo repo.PollRepo,
	messageRepo repo.MessageRepo,
	symbols domain.SymbolSet,
	messages PollMessages,
) *ResultUsecase {
	return &ResultUsecase{
		pollRepo:    pollRepo,
		messageRepo: messageRepo,
		symbols:     symbols,
		messages:    messages.withDefaults(),
	}
}

// Finalize announces the results of a poll and deletes its record.
// Calling it again for the same poll is a no-op.
func (uc *ResultUsecase) Finalize(ctx context.Context, pollID string) (FinalizeOutcome, error) {
	poll, err := uc.pollRepo.Get(ctx, pollID)
	if err != nil {
		return FinalizeDeferred, fmt.Errorf("failed to load poll %s: %w", pollID, err)
	}
	if poll == nil {
		fmt.Printf("[Result] Poll %s not found, already finalized?\n", pollID)
		return FinalizeSkipped, nil
	}

	if outcome, err := uc.resolve(ctx, poll); outcome != FinalizeAnnounced {
		return outcome, err
	}

	votes := uc.countVotes(ctx, poll)
	result := domain.Tally(poll, uc.symbols, votes)

	card := &domain.Card{
		Title: uc.messages.ResultTitle,
		Body:  domain.FormatResults(result),
		Color: uc.messages.ResultColor,
	}
	if poll.AuthorTag != "" {
		card.Note = render(uc.messages.CreatorNote, "author", poll.AuthorTag)
	}

	var sendErr error
	if _, err := uc.messageRepo.SendCard(ctx, poll.ChatID, card); err != nil {
		sendErr = fmt.Errorf("failed to announce results of %s: %w", poll.ID, err)
		fmt.Printf("[Result] %v\n", sendErr)
	} else {
		fmt.Printf("[Result] Announced %s: %d votes\n", poll.ID, result.Total)
	}

	// Retire whether or not the announcement went out
	uc.retire(ctx, poll.ID)
	return FinalizeAnnounced, sendErr
}

// resolve checks the chat and announcement message still exist.
// Returns FinalizeAnnounced when finalizing may proceed.
func (uc *ResultUsecase) resolve(ctx context.Context, poll *domain.Poll) (FinalizeOutcome, error) {
	chatErr := uc.resolveChat(ctx, poll.ChatID)
	var msgErr error
	if chatErr == nil {
		msgErr = uc.resolveMessage(ctx, poll.ID)
	}

	err := chatErr
	if err == nil {
		err = msgErr
	}
	if err == nil {
		return FinalizeAnnounced, nil
	}

	if !errors.Is(err, domain.ErrNotFound) {
		fmt.Printf("[Result] Could not resolve poll %s, keeping it for retry: %v\n", poll.ID, err)
		return FinalizeDeferred, err
	}

	fmt.Printf("[Result] Poll %s can no longer be announced: %v\n", poll.ID, err)
	if chatErr == nil {
		notice := render(uc.messages.NotFoundNotice, "question", poll.Question)
		if err := uc.messageRepo.SendText(ctx, poll.ChatID, notice); err != nil {
			fmt.Printf("[Result] Failed to send not-found notice: %v\n", err)
		}
	}
	uc.retire(ctx, poll.ID)
	return FinalizeUnresolved, nil
}

func (uc *ResultUsecase) resolveChat(ctx context.Context, chatID string) error {
	_, err := uc.messageRepo.GetChat(ctx, chatID)
	return err
}

func (uc *ResultUsecase) resolveMessage(ctx context.Context, msgID string) error {
	_, err := uc.messageRepo.GetMessage(ctx, msgID)
	return err
}

// countVotes counts each bound symbol's reactions minus the bot's seed
func (uc *ResultUsecase) countVotes(ctx context.Context, poll *domain.Poll) []int {
	bound := uc.symbols.ForPoll(poll)
	votes := make([]int, len(poll.Options))
	for i, sym := range bound {
		reactions, err := uc.messageRepo.ListReactions(ctx, poll.ID, sym.Type)
		if err != nil {
			fmt.Printf("[Result] Failed to list %s on %s, counting 0: %v\n", sym.Type, poll.ID, err)
			continue
		}
		if n := len(reactions) - 1; n > 0 {
			votes[i] = n
		}
	}
	return votes
}

func (uc *ResultUsecase) retire(ctx context.Context, pollID string) {
	if err := uc.pollRepo.Delete(ctx, pollID); err != nil {
		fmt.Printf("[Result] Failed to delete poll %s: %v\n", pollID, err)
	}
}
