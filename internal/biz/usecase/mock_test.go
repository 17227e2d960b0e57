package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/DevRickLin/feishu-poll-bot/internal/biz/domain"
)

// Mock implementations

type mockPollRepo struct {
	mu      sync.Mutex
	polls   map[string]*domain.Poll
	getErr  error
	putErr  error
	deletes int
}

func newMockPollRepo() *mockPollRepo {
	return &mockPollRepo{polls: make(map[string]*domain.Poll)}
}

func (m *mockPollRepo) Put(ctx context.Context, poll *domain.Poll) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.polls[poll.ID] = poll
	return nil
}

func (m *mockPollRepo) Get(ctx context.Context, id string) (*domain.Poll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.polls[id], nil
}

func (m *mockPollRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.polls, id)
	m.deletes++
	return nil
}

func (m *mockPollRepo) ListAll(ctx context.Context) ([]*domain.Poll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.Poll
	for _, p := range m.polls {
		result = append(result, p)
	}
	return result, nil
}

func (m *mockPollRepo) Close() error {
	return nil
}

// reactionEpoch is the base of the increasing action times given to mock reactions
var reactionEpoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type sentCard struct {
	chatID string
	card   *domain.Card
}

type mockMessageRepo struct {
	mu        sync.Mutex
	nextID    int
	reactions map[string]map[string][]domain.Reaction // msgID -> type -> reactions
	cards     []sentCard
	texts     []string
	deleted   []string

	chatErr   error
	msgErr    error
	sendErr   error
	listErr   map[string]error // by reaction type
	removeErr error
}

func newMockMessageRepo() *mockMessageRepo {
	return &mockMessageRepo{
		reactions: make(map[string]map[string][]domain.Reaction),
		listErr:   make(map[string]error),
	}
}

// react adds a reaction as a user would
func (m *mockMessageRepo) react(msgID, typ, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addLocked(msgID, typ, userID, false)
}

func (m *mockMessageRepo) addLocked(msgID, typ, userID string, fromApp bool) {
	if m.reactions[msgID] == nil {
		m.reactions[msgID] = make(map[string][]domain.Reaction)
	}
	m.nextID++
	m.reactions[msgID][typ] = append(m.reactions[msgID][typ], domain.Reaction{
		ID:      fmt.Sprintf("r%d", m.nextID),
		Type:    typ,
		UserID:  userID,
		FromApp: fromApp,
		At:      reactionEpoch.Add(time.Duration(m.nextID) * time.Millisecond),
	})
}

// has reports whether userID currently has a reaction of typ on msgID
func (m *mockMessageRepo) has(msgID, typ, userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reactions[msgID][typ] {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// at returns when userID's reaction of typ was added
func (m *mockMessageRepo) at(msgID, typ, userID string) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reactions[msgID][typ] {
		if r.UserID == userID {
			return r.At
		}
	}
	return time.Time{}
}

func (m *mockMessageRepo) GetChat(ctx context.Context, chatID string) (*domain.Chat, error) {
	if m.chatErr != nil {
		return nil, m.chatErr
	}
	return &domain.Chat{ChatID: chatID, OwnerID: "ou_owner"}, nil
}

func (m *mockMessageRepo) GetMessage(ctx context.Context, msgID string) (*domain.Message, error) {
	if m.msgErr != nil {
		return nil, m.msgErr
	}
	return &domain.Message{ID: msgID}, nil
}

func (m *mockMessageRepo) SendText(ctx context.Context, chatID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	return nil
}

func (m *mockMessageRepo) ReplyText(ctx context.Context, msgID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	return nil
}

func (m *mockMessageRepo) SendCard(ctx context.Context, chatID string, card *domain.Card) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.nextID++
	m.cards = append(m.cards, sentCard{chatID: chatID, card: card})
	return fmt.Sprintf("om_%d", m.nextID), nil
}

func (m *mockMessageRepo) DeleteMessage(ctx context.Context, msgID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, msgID)
	return nil
}

func (m *mockMessageRepo) AddReaction(ctx context.Context, msgID, reactionType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addLocked(msgID, reactionType, "cli_bot", true)
	return nil
}

func (m *mockMessageRepo) ListReactions(ctx context.Context, msgID, reactionType string) ([]domain.Reaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.listErr[reactionType]; err != nil {
		return nil, err
	}
	return append([]domain.Reaction(nil), m.reactions[msgID][reactionType]...), nil
}

func (m *mockMessageRepo) RemoveReaction(ctx context.Context, msgID, reactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removeErr != nil {
		return m.removeErr
	}
	for typ, list := range m.reactions[msgID] {
		for i, r := range list {
			if r.ID == reactionID {
				m.reactions[msgID][typ] = append(list[:i], list[i+1:]...)
				return nil
			}
		}
	}
	return domain.ErrNotFound
}

func (m *mockMessageRepo) IsChatAdmin(ctx context.Context, chatID, userID string) (bool, error) {
	return userID == "ou_owner", nil
}

func testSymbols() domain.SymbolSet {
	set, _ := domain.NewSymbolSet([]domain.Symbol{
		{Type: "THUMBSUP", Label: "👍"},
		{Type: "DONE", Label: "✅"},
		{Type: "HEART", Label: "❤️"},
		{Type: "LAUGH", Label: "😄"},
	})
	return set
}
