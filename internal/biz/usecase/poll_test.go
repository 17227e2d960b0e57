package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DevRickLin/feishu-poll-bot/internal/biz/domain"
)

func newTestPollUsecase(polls *mockPollRepo, msgs *mockMessageRepo, now time.Time) *PollUsecase {
	uc := NewPollUsecase(polls, msgs, testSymbols(), DefaultPollMessages)
	uc.now = func() time.Time { return now }
	return uc
}

func TestPollUsecase_Create(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	polls := newMockPollRepo()
	msgs := newMockMessageRepo()
	uc := newTestPollUsecase(polls, msgs, now)

	poll, err := uc.Create(context.Background(), &domain.PollRequest{
		ChatID:    "oc_1",
		Question:  "Favorite color?",
		Options:   []string{"Red", "Blue"},
		Duration:  10 * time.Second,
		AuthorTag: "alice",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if len(poll.Options) != 2 || poll.Options[0] != "Red" || poll.Options[1] != "Blue" {
		t.Errorf("options = %v", poll.Options)
	}
	if poll.EndTime == nil || poll.EndTime.Sub(now) != 10*time.Second {
		t.Errorf("EndTime = %v, want now+10s", poll.EndTime)
	}
	if stored := polls.polls[poll.ID]; stored == nil {
		t.Error("expected poll to be stored")
	}

	// Card content
	if len(msgs.cards) != 1 {
		t.Fatalf("expected 1 card, got %d", len(msgs.cards))
	}
	card := msgs.cards[0].card
	if card.Title != "React to vote in the poll." || card.Note != "Author alice" {
		t.Errorf("unexpected card: %+v", card)
	}
	if !strings.Contains(card.Body, "👍 Red") || !strings.Contains(card.Body, "✅ Blue") {
		t.Errorf("body missing options: %q", card.Body)
	}
	if !strings.Contains(card.Body, "Poll closes in 10s.") {
		t.Errorf("body missing duration: %q", card.Body)
	}

	// Exactly the two bound symbols are seeded
	if !msgs.has(poll.ID, "THUMBSUP", "cli_bot") || !msgs.has(poll.ID, "DONE", "cli_bot") {
		t.Error("expected seeds for THUMBSUP and DONE")
	}
	if msgs.has(poll.ID, "HEART", "cli_bot") {
		t.Error("third symbol must not be seeded for a two-option poll")
	}
}

func TestPollUsecase_Create_ThreeOptionsNinetyMinutes(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	msgs := newMockMessageRepo()
	uc := newTestPollUsecase(newMockPollRepo(), msgs, now)

	d, ok := domain.ParseDuration("1h30m")
	if !ok {
		t.Fatal("1h30m should parse")
	}
	poll, err := uc.Create(context.Background(), &domain.PollRequest{
		ChatID: "oc_1", Question: "Pick", Options: []string{"A", "B", "C"}, Duration: d,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if got := poll.EndTime.Sub(now).Milliseconds(); got != 5400000 {
		t.Errorf("duration = %dms, want 5400000", got)
	}
	bound := uc.Symbols().ForPoll(poll)
	if len(bound) != 3 || bound[2].Type != "HEART" {
		t.Errorf("bound symbols = %+v", bound)
	}
	for _, sym := range bound {
		if !msgs.has(poll.ID, sym.Type, "cli_bot") {
			t.Errorf("missing seed %s", sym.Type)
		}
	}
}

func TestPollUsecase_Create_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     domain.PollRequest
		message string
	}{
		{
			name:    "one option",
			req:     domain.PollRequest{ChatID: "oc_1", Question: "OnlyOneOption", Options: nil},
			message: "at least two options",
		},
		{
			name:    "too many options",
			req:     domain.PollRequest{ChatID: "oc_1", Question: "Q", Options: []string{"a", "b", "c", "d", "e"}},
			message: "maximum number of options in a poll is 4",
		},
		{
			name:    "blank question",
			req:     domain.PollRequest{ChatID: "oc_1", Question: "  ", Options: []string{"a", "b"}},
			message: "question must not be blank",
		},
		{
			name:    "blank option",
			req:     domain.PollRequest{ChatID: "oc_1", Question: "Q", Options: []string{"a", " "}},
			message: "Option 2 must not be blank",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			polls := newMockPollRepo()
			msgs := newMockMessageRepo()
			uc := newTestPollUsecase(polls, msgs, time.Now())

			req := tt.req
			_, err := uc.Create(context.Background(), &req)
			if !domain.IsValidationError(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Errorf("message %q does not contain %q", err.Error(), tt.message)
			}
			if len(polls.polls) != 0 || len(msgs.cards) != 0 {
				t.Error("nothing should be sent or stored")
			}
		})
	}
}

func TestPollUsecase_Create_SendFailure(t *testing.T) {
	polls := newMockPollRepo()
	msgs := newMockMessageRepo()
	msgs.sendErr = errors.New("no permission to send")
	uc := newTestPollUsecase(polls, msgs, time.Now())

	_, err := uc.Create(context.Background(), &domain.PollRequest{
		ChatID: "oc_1", Question: "Q", Options: []string{"a", "b"},
	})
	if err == nil || domain.IsValidationError(err) {
		t.Fatalf("expected send error, got %v", err)
	}
	if len(polls.polls) != 0 {
		t.Error("no record should be stored when sending fails")
	}
}

func TestPollUsecase_Create_OpenEnded(t *testing.T) {
	polls := newMockPollRepo()
	uc := newTestPollUsecase(polls, newMockMessageRepo(), time.Now())

	poll, err := uc.Create(context.Background(), &domain.PollRequest{
		ChatID: "oc_1", Question: "Q", Options: []string{"a", "b"},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !poll.IsOpenEnded() {
		t.Error("poll without duration should be open-ended")
	}
	if polls.polls[poll.ID] == nil {
		t.Error("open-ended polls are stored too")
	}
}

func TestPollUsecase_Create_StoreFailureStillReturnsPoll(t *testing.T) {
	polls := newMockPollRepo()
	polls.putErr = errors.New("disk full")
	uc := newTestPollUsecase(polls, newMockMessageRepo(), time.Now())

	poll, err := uc.Create(context.Background(), &domain.PollRequest{
		ChatID: "oc_1", Question: "Q", Options: []string{"a", "b"}, Duration: time.Minute,
	})
	if err != nil {
		t.Fatalf("store failure should only be logged, got %v", err)
	}
	if poll == nil {
		t.Fatal("expected poll")
	}
}

func TestPollUsecase_BlankMessagesUseDefaults(t *testing.T) {
	polls := newMockPollRepo()
	msgs := newMockMessageRepo()
	uc := NewPollUsecase(polls, msgs, testSymbols(), PollMessages{PollColor: "blue"})

	_, err := uc.Create(context.Background(), &domain.PollRequest{
		ChatID:    "oc_1",
		Question:  "Q",
		Options:   []string{"a", "b"},
		AuthorTag: "alice",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	card := msgs.cards[0].card
	if card.Title != DefaultPollMessages.PollTitle || card.Note != "Author alice" {
		t.Errorf("blank texts should fall back to defaults: %+v", card)
	}
	if card.Color != "blue" {
		t.Errorf("configured color should be kept, got %q", card.Color)
	}
}
