package repo

import (
	"context"

	"github.com/DevRickLin/feishu-poll-bot/internal/biz/domain"
)

// PollRepo is the poll store interface.
// It is the only source of truth for active polls and must survive restarts.
// Implementations serialize all mutations.
type PollRepo interface {
	// Put creates or replaces a poll record
	Put(ctx context.Context, poll *domain.Poll) error

	// Get gets a poll by ID, returns nil if absent
	Get(ctx context.Context, id string) (*domain.Poll, error)

	// Delete deletes a poll; deleting an absent poll is not an error
	Delete(ctx context.Context, id string) error

	// ListAll lists all stored polls
	ListAll(ctx context.Context) ([]*domain.Poll, error)

	Close() error
}
