package data

import (
	"context"
	"fmt"
	"time"

	"github.com/DevRickLin/feishu-poll-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-poll-bot/internal/biz/repo"
	"github.com/DevRickLin/feishu-poll-bot/internal/infra/feishu"
)

// feishuAPI is the part of *feishu.Client the repository uses
type feishuAPI interface {
	GetChatInfo(ctx context.Context, chatID string) (*feishu.ChatInfo, error)
	GetMessage(ctx context.Context, messageID string) (*feishu.MessageInfo, error)
	SendText(ctx context.Context, chatID, text string) error
	ReplyText(ctx context.Context, messageID, text string) error
	SendCard(ctx context.Context, chatID string, card *feishu.CardMessage) (string, error)
	DeleteMessage(ctx context.Context, messageID string) error
	AddReaction(ctx context.Context, messageID, emojiType string) error
	ListReactions(ctx context.Context, messageID, emojiType string) ([]*feishu.ReactionInfo, error)
	RemoveReaction(ctx context.Context, messageID, reactionID string) error
}

// feishuRepo implements the message repository on the Feishu Open API
type feishuRepo struct {
	client feishuAPI
	admins map[string]bool
}

// NewFeishuRepo creates a new Feishu repository.
// admins are open_ids with elevated permission in every chat, besides each chat's owner.
func NewFeishuRepo(client *feishu.Client, admins []string) repo.MessageRepo {
	return newFeishuRepo(client, admins)
}

func newFeishuRepo(client feishuAPI, admins []string) *feishuRepo {
	set := make(map[string]bool, len(admins))
	for _, id := range admins {
		set[id] = true
	}
	return &feishuRepo{client: client, admins: set}
}

// GetChat resolves a chat
func (r *feishuRepo) GetChat(ctx context.Context, chatID string) (*domain.Chat, error) {
	info, err := r.client.GetChatInfo(ctx, chatID)
	if err != nil {
		return nil, mapFeishuError(err)
	}
	return &domain.Chat{
		ChatID:  info.ChatID,
		Name:    info.Name,
		OwnerID: info.OwnerID,
	}, nil
}

// GetMessage resolves a message
func (r *feishuRepo) GetMessage(ctx context.Context, msgID string) (*domain.Message, error) {
	info, err := r.client.GetMessage(ctx, msgID)
	if err != nil {
		return nil, mapFeishuError(err)
	}

	return &domain.Message{
		ID:     info.MsgID,
		ChatID: info.ChatID,
	}, nil
}

// SendText sends a text message
func (r *feishuRepo) SendText(ctx context.Context, chatID, text string) error {
	return mapFeishuError(r.client.SendText(ctx, chatID, text))
}

// ReplyText replies to a message
func (r *feishuRepo) ReplyText(ctx context.Context, msgID, text string) error {
	return mapFeishuError(r.client.ReplyText(ctx, msgID, text))
}

// SendCard sends a card and returns its message ID
func (r *feishuRepo) SendCard(ctx context.Context, chatID string, card *domain.Card) (string, error) {
	msgID, err := r.client.SendCard(ctx, chatID, &feishu.CardMessage{
		Title: card.Title,
		Body:  card.Body,
		Note:  card.Note,
		Color: card.Color,
	})
	if err != nil {
		return "", mapFeishuError(err)
	}
	return msgID, nil
}

// DeleteMessage recalls a message
func (r *feishuRepo) DeleteMessage(ctx context.Context, msgID string) error {
	return mapFeishuError(r.client.DeleteMessage(ctx, msgID))
}

// AddReaction adds an emoji reaction
func (r *feishuRepo) AddReaction(ctx context.Context, msgID, reactionType string) error {
	return mapFeishuError(r.client.AddReaction(ctx, msgID, reactionType))
}

// ListReactions lists reactions of one type
func (r *feishuRepo) ListReactions(ctx context.Context, msgID, reactionType string) ([]domain.Reaction, error) {
	items, err := r.client.ListReactions(ctx, msgID, reactionType)
	if err != nil {
		return nil, mapFeishuError(err)
	}

	result := make([]domain.Reaction, 0, len(items))
	for _, item := range items {
		typ := item.EmojiType
		if typ == "" {
			typ = reactionType
		}
		reaction := domain.Reaction{
			ID:      item.ReactionID,
			Type:    typ,
			UserID:  item.OperatorID,
			FromApp: item.OperatorType == "app",
		}
		if item.ActionTime > 0 {
			reaction.At = time.UnixMilli(item.ActionTime)
		}
		result = append(result, reaction)
	}
	return result, nil
}

// RemoveReaction removes a reaction.
// Feishu only lets an operator remove reactions it added, so removing a user's
// reaction usually ends in domain.ErrPermission.
func (r *feishuRepo) RemoveReaction(ctx context.Context, msgID, reactionID string) error {
	return mapFeishuError(r.client.RemoveReaction(ctx, msgID, reactionID))
}

// IsChatAdmin reports whether userID owns the chat or is a configured admin
func (r *feishuRepo) IsChatAdmin(ctx context.Context, chatID, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	if r.admins[userID] {
		return true, nil
	}

	chat, err := r.GetChat(ctx, chatID)
	if err != nil {
		return false, err
	}
	return chat.OwnerID == userID, nil
}

// mapFeishuError wraps recognizable API failures in the domain sentinels
func mapFeishuError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case feishu.IsNotFound(err):
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	case feishu.IsForbidden(err):
		return fmt.Errorf("%w: %v", domain.ErrPermission, err)
	}
	return err
}
