package data

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/DevRickLin/feishu-poll-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-poll-bot/internal/biz/repo"
	"github.com/redis/go-redis/v9"
)

// redisPollRepo stores polls in one Redis hash: field = poll ID, value = JSON entry
type redisPollRepo struct {
	client *redis.Client
	key    string
	mu     sync.Mutex // serializes writers
}

// NewRedisPollRepo creates a Redis-backed poll repository
func NewRedisPollRepo(redisURL, prefix string) (repo.PollRepo, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	fmt.Printf("[Store] Redis poll store at %s (key %spolls)\n", opts.Addr, prefix)
	return NewRedisPollRepoWithClient(client, prefix), nil
}

// NewRedisPollRepoWithClient creates a repository from an existing Redis client
func NewRedisPollRepoWithClient(client *redis.Client, prefix string) repo.PollRepo {
	return &redisPollRepo{
		client: client,
		key:    prefix + "polls",
	}
}

// Put creates or replaces a poll
func (r *redisPollRepo) Put(ctx context.Context, poll *domain.Poll) error {
	data, err := json.Marshal(toPollEntry(poll))
	if err != nil {
		return fmt.Errorf("marshal poll: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.client.HSet(ctx, r.key, poll.ID, data).Err(); err != nil {
		return fmt.Errorf("save poll: %w", err)
	}
	return nil
}

// Get gets a poll by ID
func (r *redisPollRepo) Get(ctx context.Context, id string) (*domain.Poll, error) {
	data, err := r.client.HGet(ctx, r.key, id).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup poll: %w", err)
	}

	var entry pollEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, fmt.Errorf("unmarshal poll %s: %w", id, err)
	}
	return entry.toPoll(id), nil
}

// Delete deletes a poll
func (r *redisPollRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.client.HDel(ctx, r.key, id).Err(); err != nil {
		return fmt.Errorf("delete poll: %w", err)
	}
	return nil
}

// ListAll lists all polls ordered by ID
func (r *redisPollRepo) ListAll(ctx context.Context) ([]*domain.Poll, error) {
	all, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("list polls: %w", err)
	}

	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	polls := make([]*domain.Poll, 0, len(ids))
	for _, id := range ids {
		var entry pollEntry
		if err := json.Unmarshal([]byte(all[id]), &entry); err != nil {
			fmt.Printf("[Store] Skipping unreadable poll %s: %v\n", id, err)
			continue
		}
		polls = append(polls, entry.toPoll(id))
	}
	return polls, nil
}

// Close closes the Redis connection
func (r *redisPollRepo) Close() error {
	return r.client.Close()
}
