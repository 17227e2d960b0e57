package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/DevRickLin/feishu-poll-bot/internal/biz/domain"
)

func setupResultPoll(t *testing.T, options ...string) (*mockPollRepo, *mockMessageRepo, *domain.Poll) {
	t.Helper()
	polls, msgs, poll := setupVotePoll(t, options...)
	poll.AuthorTag = "alice"
	past := time.Now().Add(-time.Second)
	poll.EndTime = &past
	return polls, msgs, poll
}

func TestResultUsecase_Finalize(t *testing.T) {
	polls, msgs, poll := setupResultPoll(t, "Red", "Blue")
	poll.Question = "Favorite color?"
	uc := NewResultUsecase(polls, msgs, testSymbols(), DefaultPollMessages)

	// Red=3 (incl. seed), Blue=2 (incl. seed)
	msgs.react(poll.ID, "THUMBSUP", "ou_a")
	msgs.react(poll.ID, "THUMBSUP", "ou_b")
	msgs.react(poll.ID, "DONE", "ou_c")

	outcome, err := uc.Finalize(context.Background(), poll.ID)
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if outcome != FinalizeAnnounced {
		t.Errorf("outcome = %v, want announced", outcome)
	}

	if len(msgs.cards) != 1 {
		t.Fatalf("expected 1 results card, got %d", len(msgs.cards))
	}
	card := msgs.cards[0].card
	if card.Title != "📊 Poll Results" || card.Note != "Poll created by alice" {
		t.Errorf("unexpected card: %+v", card)
	}

	body := card.Body
	red := strings.Index(body, "👍 Red: **2** votes (66.7%)")
	blue := strings.Index(body, "✅ Blue: **1** votes (33.3%)")
	if red < 0 || blue < 0 || red > blue {
		t.Errorf("unexpected results body:\n%s", body)
	}
	if !strings.Contains(body, "Total votes: 3") {
		t.Errorf("missing total:\n%s", body)
	}

	if polls.polls[poll.ID] != nil {
		t.Error("record should be deleted")
	}
}

func TestResultUsecase_FinalizeIdempotent(t *testing.T) {
	polls, msgs, poll := setupResultPoll(t, "A", "B")
	uc := NewResultUsecase(polls, msgs, testSymbols(), DefaultPollMessages)
	ctx := context.Background()

	if _, err := uc.Finalize(ctx, poll.ID); err != nil {
		t.Fatalf("first Finalize failed: %v", err)
	}
	outcome, err := uc.Finalize(ctx, poll.ID)
	if err != nil {
		t.Fatalf("second Finalize failed: %v", err)
	}
	if outcome != FinalizeSkipped {
		t.Errorf("second outcome = %v, want skipped", outcome)
	}
	if len(msgs.cards) != 1 {
		t.Errorf("results announced %d times, want 1", len(msgs.cards))
	}
}

func TestResultUsecase_NoVotes(t *testing.T) {
	polls, msgs, poll := setupResultPoll(t, "A", "B")
	uc := NewResultUsecase(polls, msgs, testSymbols(), DefaultPollMessages)

	if _, err := uc.Finalize(context.Background(), poll.ID); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if !strings.Contains(msgs.cards[0].card.Body, domain.NoVotesText) {
		t.Errorf("expected no-votes text, got:\n%s", msgs.cards[0].card.Body)
	}
}

func TestResultUsecase_ListErrorCountsZero(t *testing.T) {
	polls, msgs, poll := setupResultPoll(t, "A", "B")
	msgs.react(poll.ID, "THUMBSUP", "ou_a")
	msgs.react(poll.ID, "DONE", "ou_b")
	msgs.listErr["THUMBSUP"] = errors.New("timeout")
	uc := NewResultUsecase(polls, msgs, testSymbols(), DefaultPollMessages)

	if _, err := uc.Finalize(context.Background(), poll.ID); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	body := msgs.cards[0].card.Body
	if !strings.Contains(body, "B: **1** votes (100.0%)") || !strings.Contains(body, "A: **0** votes (0.0%)") {
		t.Errorf("unexpected body:\n%s", body)
	}
}

func TestResultUsecase_MessageNotFound(t *testing.T) {
	polls, msgs, poll := setupResultPoll(t, "A", "B")
	poll.Question = "Lunch?"
	msgs.msgErr = fmt.Errorf("get message: %w", domain.ErrNotFound)
	uc := NewResultUsecase(polls, msgs, testSymbols(), DefaultPollMessages)

	outcome, err := uc.Finalize(context.Background(), poll.ID)
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if outcome != FinalizeUnresolved {
		t.Errorf("outcome = %v, want unresolved", outcome)
	}
	if polls.polls[poll.ID] != nil {
		t.Error("record should be deleted when the message is gone")
	}
	if len(msgs.cards) != 0 {
		t.Error("no results should be announced")
	}
	if len(msgs.texts) != 1 || msgs.texts[0] != `Poll message for "Lunch?" was not found (maybe deleted?). Cannot announce results.` {
		t.Errorf("unexpected notice: %v", msgs.texts)
	}
}

func TestResultUsecase_ChatNotFound(t *testing.T) {
	polls, msgs, poll := setupResultPoll(t, "A", "B")
	msgs.chatErr = fmt.Errorf("get chat: %w", domain.ErrNotFound)
	uc := NewResultUsecase(polls, msgs, testSymbols(), DefaultPollMessages)

	outcome, _ := uc.Finalize(context.Background(), poll.ID)
	if outcome != FinalizeUnresolved {
		t.Errorf("outcome = %v, want unresolved", outcome)
	}
	if polls.polls[poll.ID] != nil {
		t.Error("record should be deleted when the chat is gone")
	}
	if len(msgs.texts) != 0 {
		t.Error("no notice can be sent without a chat")
	}
}

func TestResultUsecase_TransientResolutionKeepsRecord(t *testing.T) {
	polls, msgs, poll := setupResultPoll(t, "A", "B")
	msgs.chatErr = errors.New("connection reset")
	uc := NewResultUsecase(polls, msgs, testSymbols(), DefaultPollMessages)

	outcome, err := uc.Finalize(context.Background(), poll.ID)
	if err == nil {
		t.Error("expected error for transient failure")
	}
	if outcome != FinalizeDeferred {
		t.Errorf("outcome = %v, want deferred", outcome)
	}
	if polls.polls[poll.ID] == nil {
		t.Error("record must be kept for a later retry")
	}
}

func TestResultUsecase_SendFailureStillDeletes(t *testing.T) {
	polls, msgs, poll := setupResultPoll(t, "A", "B")
	msgs.sendErr = errors.New("forbidden")
	uc := NewResultUsecase(polls, msgs, testSymbols(), DefaultPollMessages)

	outcome, err := uc.Finalize(context.Background(), poll.ID)
	if err == nil {
		t.Error("expected send error to be returned")
	}
	if outcome != FinalizeAnnounced {
		t.Errorf("outcome = %v, want announced", outcome)
	}
	if polls.polls[poll.ID] != nil {
		t.Error("record must be deleted even when the announcement fails")
	}
}
