package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/DevRickLin/feishu-poll-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-poll-bot/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// sqlitePollRepo implements the poll repository on SQLite
type sqlitePollRepo struct {
	db *sql.DB
	mu sync.Mutex // serializes writers
}

// NewSQLitePollRepo creates a new SQLite poll repository
func NewSQLitePollRepo(dbPath string) (repo.PollRepo, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite has a single writer anyway
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS polls (
			id TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL,
			question TEXT NOT NULL,
			options TEXT NOT NULL,
			end_time INTEGER,
			author_tag TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_polls_end_time ON polls(end_time)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	fmt.Printf("[Store] SQLite poll store at %s\n", dbPath)
	return &sqlitePollRepo{db: db}, nil
}

// Put creates or replaces a poll
func (r *sqlitePollRepo) Put(ctx context.Context, poll *domain.Poll) error {
	options, err := json.Marshal(poll.Options)
	if err != nil {
		return fmt.Errorf("failed to encode options: %w", err)
	}

	var endTime sql.NullInt64
	if poll.EndTime != nil {
		endTime = sql.NullInt64{Int64: poll.EndTime.UnixMilli(), Valid: true}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, err = r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO polls (id, chat_id, question, options, end_time, author_tag, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		poll.ID,
		poll.ChatID,
		poll.Question,
		string(options),
		endTime,
		poll.AuthorTag,
		poll.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save poll: %w", err)
	}
	return nil
}

// Get gets a poll by ID
func (r *sqlitePollRepo) Get(ctx context.Context, id string) (*domain.Poll, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, chat_id, question, options, end_time, author_tag, created_at
		FROM polls
		WHERE id = ?
	`, id)

	poll, err := scanPoll(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query poll: %w", err)
	}
	return poll, nil
}

// Delete deletes a poll
func (r *sqlitePollRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `DELETE FROM polls WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete poll: %w", err)
	}
	return nil
}

// ListAll lists all polls, soonest end time first
func (r *sqlitePollRepo) ListAll(ctx context.Context) ([]*domain.Poll, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, chat_id, question, options, end_time, author_tag, created_at
		FROM polls
		ORDER BY end_time IS NULL, end_time ASC, created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list polls: %w", err)
	}
	defer rows.Close()

	var polls []*domain.Poll
	for rows.Next() {
		poll, err := scanPoll(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan poll: %w", err)
		}
		polls = append(polls, poll)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list polls: %w", err)
	}

	return polls, nil
}

// Close closes the database connection
func (r *sqlitePollRepo) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPoll(row rowScanner) (*domain.Poll, error) {
	var poll domain.Poll
	var options string
	var endTime sql.NullInt64
	var createdAt int64
	if err := row.Scan(&poll.ID, &poll.ChatID, &poll.Question, &options, &endTime, &poll.AuthorTag, &createdAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(options), &poll.Options); err != nil {
		return nil, fmt.Errorf("decode options of poll %s: %w", poll.ID, err)
	}
	if endTime.Valid {
		end := time.UnixMilli(endTime.Int64)
		poll.EndTime = &end
	}
	poll.CreatedAt = time.UnixMilli(createdAt)
	return &poll, nil
}
