package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/DevRickLin/feishu-poll-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-poll-bot/internal/biz/repo"
)

var errStoreClosed = errors.New("poll store closed")

// jsonPollRepo keeps all polls in one JSON document keyed by message ID.
// A single goroutine owns the document; every operation is a request to it.
type jsonPollRepo struct {
	path string
	reqs chan jsonRequest
	done chan struct{}
}

type jsonRequest struct {
	op    func(polls map[string]pollEntry) (map[string]pollEntry, any)
	reply chan jsonReply
}

type jsonReply struct {
	value any
	err   error
}

// NewJSONPollRepo creates a poll repository backed by a JSON file
func NewJSONPollRepo(path string) (repo.PollRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	polls, err := readPollFile(path)
	if err != nil {
		return nil, err
	}

	r := &jsonPollRepo{
		path: path,
		reqs: make(chan jsonRequest),
		done: make(chan struct{}),
	}
	go r.run(polls)

	fmt.Printf("[Store] JSON poll store at %s (%d polls)\n", path, len(polls))
	return r, nil
}

// run is the single writer. A mutation returns a new map; it is committed only
// after the file has been replaced.
func (r *jsonPollRepo) run(polls map[string]pollEntry) {
	for {
		select {
		case <-r.done:
			return
		case req := <-r.reqs:
			next, value := req.op(polls)
			if next == nil {
				req.reply <- jsonReply{value: value}
				continue
			}
			if err := writePollFile(r.path, next); err != nil {
				fmt.Printf("[Store] Failed to write %s: %v\n", r.path, err)
				req.reply <- jsonReply{err: err}
				continue
			}
			polls = next
			req.reply <- jsonReply{value: value}
		}
	}
}

func (r *jsonPollRepo) do(ctx context.Context, op func(map[string]pollEntry) (map[string]pollEntry, any)) (any, error) {
	req := jsonRequest{op: op, reply: make(chan jsonReply, 1)}
	select {
	case r.reqs <- req:
	case <-r.done:
		return nil, errStoreClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	// Once accepted the request always completes; wait for it even if ctx ends
	rep := <-req.reply
	return rep.value, rep.err
}

// Put creates or replaces a poll
func (r *jsonPollRepo) Put(ctx context.Context, poll *domain.Poll) error {
	entry := toPollEntry(poll)
	_, err := r.do(ctx, func(polls map[string]pollEntry) (map[string]pollEntry, any) {
		next := copyEntries(polls)
		next[poll.ID] = entry
		return next, nil
	})
	if err != nil {
		return fmt.Errorf("failed to save poll: %w", err)
	}
	return nil
}

// Get gets a poll by ID
func (r *jsonPollRepo) Get(ctx context.Context, id string) (*domain.Poll, error) {
	v, err := r.do(ctx, func(polls map[string]pollEntry) (map[string]pollEntry, any) {
		entry, ok := polls[id]
		if !ok {
			return nil, nil
		}
		return nil, entry.toPoll(id)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query poll: %w", err)
	}
	poll, _ := v.(*domain.Poll)
	return poll, nil
}

// Delete deletes a poll
func (r *jsonPollRepo) Delete(ctx context.Context, id string) error {
	_, err := r.do(ctx, func(polls map[string]pollEntry) (map[string]pollEntry, any) {
		if _, ok := polls[id]; !ok {
			return nil, nil
		}
		next := copyEntries(polls)
		delete(next, id)
		return next, nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete poll: %w", err)
	}
	return nil
}

// ListAll lists all polls ordered by ID
func (r *jsonPollRepo) ListAll(ctx context.Context) ([]*domain.Poll, error) {
	v, err := r.do(ctx, func(polls map[string]pollEntry) (map[string]pollEntry, any) {
		ids := make([]string, 0, len(polls))
		for id := range polls {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		result := make([]*domain.Poll, 0, len(ids))
		for _, id := range ids {
			result = append(result, polls[id].toPoll(id))
		}
		return nil, result
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list polls: %w", err)
	}
	polls, _ := v.([]*domain.Poll)
	return polls, nil
}

// Close stops the writer goroutine
func (r *jsonPollRepo) Close() error {
	select {
	case <-r.done:
	default:
		close(r.done)
	}
	return nil
}

func copyEntries(polls map[string]pollEntry) map[string]pollEntry {
	next := make(map[string]pollEntry, len(polls)+1)
	for k, v := range polls {
		next[k] = v
	}
	return next
}

// readPollFile loads the document; a missing file is an empty store
func readPollFile(path string) (map[string]pollEntry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]pollEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	polls := map[string]pollEntry{}
	if len(data) == 0 {
		return polls, nil
	}
	if err := json.Unmarshal(data, &polls); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return polls, nil
}

// writePollFile replaces the document atomically (temp file + rename)
func writePollFile(path string, polls map[string]pollEntry) error {
	data, err := json.MarshalIndent(polls, "", "  ")
	if err != nil {
		return fmt.Errorf("encode polls: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
