package server

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DevRickLin/feishu-poll-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-poll-bot/internal/conf"
	"github.com/DevRickLin/feishu-poll-bot/internal/infra/feishu"
)

// MockMessageRepo implements repo.MessageRepo for testing
type MockMessageRepo struct {
	admin   bool
	replies []string
	cards   []*domain.Card
	deleted []string
}

func (m *MockMessageRepo) GetChat(ctx context.Context, chatID string) (*domain.Chat, error) {
	return &domain.Chat{ChatID: chatID}, nil
}

func (m *MockMessageRepo) GetMessage(ctx context.Context, msgID string) (*domain.Message, error) {
	return &domain.Message{ID: msgID}, nil
}

func (m *MockMessageRepo) SendText(ctx context.Context, chatID, text string) error { return nil }

func (m *MockMessageRepo) ReplyText(ctx context.Context, msgID, text string) error {
	m.replies = append(m.replies, text)
	return nil
}

func (m *MockMessageRepo) SendCard(ctx context.Context, chatID string, card *domain.Card) (string, error) {
	m.cards = append(m.cards, card)
	return "om_card", nil
}

func (m *MockMessageRepo) DeleteMessage(ctx context.Context, msgID string) error {
	m.deleted = append(m.deleted, msgID)
	return nil
}

func (m *MockMessageRepo) AddReaction(ctx context.Context, msgID, reactionType string) error {
	return nil
}

func (m *MockMessageRepo) ListReactions(ctx context.Context, msgID, reactionType string) ([]domain.Reaction, error) {
	return nil, nil
}

func (m *MockMessageRepo) RemoveReaction(ctx context.Context, msgID, reactionID string) error {
	return nil
}

func (m *MockMessageRepo) IsChatAdmin(ctx context.Context, chatID, userID string) (bool, error) {
	return m.admin, nil
}

// MockPollService records what the server asks of the poll lifecycle
type MockPollService struct {
	requests  []*domain.PollRequest
	votes     []domain.VoteEvent
	createErr error
	stopped   bool
}

func (m *MockPollService) CreatePoll(ctx context.Context, req *domain.PollRequest) (*domain.Poll, error) {
	m.requests = append(m.requests, req)
	if m.createErr != nil {
		return nil, m.createErr
	}
	if err := req.Validate(len(m.Symbols())); err != nil {
		return nil, err
	}
	return domain.NewPoll("om_poll", req, time.Now()), nil
}

func (m *MockPollService) SubmitVote(ev domain.VoteEvent) bool {
	if m.stopped {
		return false
	}
	m.votes = append(m.votes, ev)
	return true
}

func (m *MockPollService) Symbols() domain.SymbolSet {
	return domain.SymbolSet{{Type: "THUMBSUP"}, {Type: "DONE"}, {Type: "HEART"}}
}

func newTestServer(admin bool) (*FeishuServer, *MockMessageRepo, *MockPollService) {
	msgs := &MockMessageRepo{admin: admin}
	polls := &MockPollService{}
	s := NewFeishuServer(nil, msgs, polls, conf.DefaultMessagesConfig(), "!")
	s.botID = func() string { return "ou_bot" }
	return s, msgs, polls
}

func command(id, text string) *feishu.Message {
	return &feishu.Message{
		ChatID:  "oc_1",
		MsgID:   id,
		MsgType: "text",
		Content: text,
		Sender:  &feishu.Sender{SenderID: "ou_admin", SenderType: "user"},
	}
}

func TestHandleMessage_CreatesPoll(t *testing.T) {
	s, msgs, polls := newTestServer(true)

	s.handleMessage(command("om_cmd", `!poll 10s "Favorite color?" Red Blue`))

	if len(polls.requests) != 1 {
		t.Fatalf("expected one poll request, got %d", len(polls.requests))
	}
	req := polls.requests[0]
	if req.ChatID != "oc_1" || req.Question != "Favorite color?" || req.Duration != 10*time.Second {
		t.Errorf("unexpected request: %+v", req)
	}
	if req.AuthorTag != "<at id=ou_admin></at>" {
		t.Errorf("AuthorTag = %q", req.AuthorTag)
	}
	if len(msgs.deleted) != 1 || msgs.deleted[0] != "om_cmd" {
		t.Errorf("command message should be deleted, got %v", msgs.deleted)
	}
	if len(msgs.replies) != 0 {
		t.Errorf("unexpected replies: %v", msgs.replies)
	}
}

func TestHandleMessage_Deduplicates(t *testing.T) {
	s, _, polls := newTestServer(true)

	s.handleMessage(command("om_cmd", "!poll Q a b"))
	s.handleMessage(command("om_cmd", "!poll Q a b"))

	if len(polls.requests) != 1 {
		t.Errorf("redelivered message should be ignored, got %d requests", len(polls.requests))
	}
}

func TestCheckAndMarkSeen_ConcurrentRedelivery(t *testing.T) {
	s, _, _ := newTestServer(true)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		fresh int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !s.checkAndMarkSeen("om_cmd") {
				mu.Lock()
				fresh++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if fresh != 1 {
		t.Errorf("message handled %d times, want 1", fresh)
	}
}

func TestHandleMessage_NoPermission(t *testing.T) {
	s, msgs, polls := newTestServer(false)

	s.handleMessage(command("om_cmd", "!poll Q a b"))

	if len(polls.requests) != 0 {
		t.Error("poll should not be created without permission")
	}
	if len(msgs.replies) != 1 || msgs.replies[0] != conf.DefaultMessagesConfig().Replies.NoPermission {
		t.Errorf("unexpected replies: %v", msgs.replies)
	}
}

func TestHandleMessage_ValidationReplies(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"!poll", "Usage: !poll"},
		{"!poll OnlyOneOption", "at least two options"},
		{"!poll Q a b c d", "maximum number of options in a poll is 3"},
		{"!poll 0m Q a b", `Invalid duration "0m"`},
	}

	for i, tt := range tests {
		s, msgs, _ := newTestServer(true)
		s.handleMessage(command("om_"+string(rune('a'+i)), tt.text))

		if len(msgs.replies) != 1 || !strings.Contains(msgs.replies[0], tt.want) {
			t.Errorf("%q: replies = %v, want %q", tt.text, msgs.replies, tt.want)
		}
		if len(msgs.deleted) != 0 {
			t.Errorf("%q: command should be kept on failure", tt.text)
		}
	}
}

func TestHandleMessage_CreateFailed(t *testing.T) {
	s, msgs, polls := newTestServer(true)
	polls.createErr = errors.New("feishu down")

	s.handleMessage(command("om_cmd", "!poll Q a b"))

	if len(msgs.replies) != 1 || msgs.replies[0] != conf.DefaultMessagesConfig().Replies.CreateFailed {
		t.Errorf("unexpected replies: %v", msgs.replies)
	}
}

func TestHandleMessage_PingAndHelp(t *testing.T) {
	s, msgs, _ := newTestServer(false)

	s.handleMessage(command("om_1", "!ping"))
	if len(msgs.replies) != 1 || msgs.replies[0] != "Pong!" {
		t.Errorf("unexpected replies: %v", msgs.replies)
	}

	s.handleMessage(command("om_2", "!HELP"))
	if len(msgs.cards) != 1 {
		t.Fatalf("expected help card, got %d cards", len(msgs.cards))
	}
	body := msgs.cards[0].Body
	if !strings.Contains(body, "!poll") || !strings.Contains(body, "up to 3 options") {
		t.Errorf("unexpected help body:\n%s", body)
	}
}

func TestHandleMessage_IgnoresNonCommands(t *testing.T) {
	s, msgs, polls := newTestServer(true)

	for i, text := range []string{"hello", "poll Q a b", "!unknown", ""} {
		s.handleMessage(command("om_"+string(rune('a'+i)), text))
	}

	if len(polls.requests) != 0 || len(msgs.replies) != 0 || len(msgs.cards) != 0 {
		t.Error("non-commands should be ignored")
	}
}

func TestHandleReaction(t *testing.T) {
	s, _, polls := newTestServer(true)

	s.handleReaction(&feishu.ReactionEvent{MessageID: "om_poll", EmojiType: "DONE", OperatorID: "ou_u", OperatorType: "user", ActionTime: 1714564800123})
	s.handleReaction(&feishu.ReactionEvent{MessageID: "om_poll", EmojiType: "DONE", OperatorID: "cli_x", OperatorType: "app"})
	s.handleReaction(&feishu.ReactionEvent{MessageID: "om_poll", EmojiType: "DONE", OperatorID: "ou_bot", OperatorType: "user"})
	s.handleReaction(&feishu.ReactionEvent{MessageID: "", EmojiType: "DONE", OperatorID: "ou_u"})

	if len(polls.votes) != 3 {
		t.Fatalf("expected 3 votes, got %d", len(polls.votes))
	}
	want := domain.VoteEvent{PollID: "om_poll", UserID: "ou_u", Symbol: "DONE", At: time.UnixMilli(1714564800123)}
	if got := polls.votes[0]; got.PollID != want.PollID || got.UserID != want.UserID || got.Symbol != want.Symbol || got.FromApp || !got.At.Equal(want.At) {
		t.Errorf("vote = %+v, want %+v", polls.votes[0], want)
	}
	if !polls.votes[1].At.IsZero() {
		t.Error("missing action time should stay zero")
	}
	if !polls.votes[1].FromApp || !polls.votes[2].FromApp {
		t.Error("app and bot reactions should be marked FromApp")
	}
}

func TestHandleReaction_ServiceStopped(t *testing.T) {
	s, _, polls := newTestServer(true)
	polls.stopped = true

	s.handleReaction(&feishu.ReactionEvent{MessageID: "om_poll", EmojiType: "DONE", OperatorID: "ou_u"})

	if len(polls.votes) != 0 {
		t.Error("vote should be dropped")
	}
}
