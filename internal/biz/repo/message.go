package repo

import (
	"context"

	"github.com/DevRickLin/feishu-poll-bot/internal/biz/domain"
)

// MessageRepo is the messaging transport interface.
// Implementations wrap domain.ErrNotFound / domain.ErrPermission where the platform reports them.
type MessageRepo interface {
	// GetChat resolves a chat by ID
	GetChat(ctx context.Context, chatID string) (*domain.Chat, error)

	// GetMessage resolves a message by ID
	GetMessage(ctx context.Context, msgID string) (*domain.Message, error)

	// SendText sends a text message
	SendText(ctx context.Context, chatID, text string) error

	// ReplyText replies to a message with text
	ReplyText(ctx context.Context, msgID, text string) error

	// SendCard sends a card message and returns the new message ID
	SendCard(ctx context.Context, chatID string, card *domain.Card) (string, error)

	// DeleteMessage recalls a message
	DeleteMessage(ctx context.Context, msgID string) error

	// AddReaction adds an emoji reaction as the bot
	AddReaction(ctx context.Context, msgID, reactionType string) error

	// ListReactions lists every reaction of one type on a message
	ListReactions(ctx context.Context, msgID, reactionType string) ([]domain.Reaction, error)

	// RemoveReaction removes a reaction by its ID
	RemoveReaction(ctx context.Context, msgID, reactionID string) error

	// IsChatAdmin checks whether a user has elevated permission in a chat
	IsChatAdmin(ctx context.Context, chatID, userID string) (bool, error)
}
