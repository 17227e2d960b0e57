package domain

import (
	"fmt"
	"strings"
	"time"
)

// MinOptions is the smallest number of options a poll may have
const MinOptions = 2

// Poll represents a poll record, keyed by the id of its announcement message
type Poll struct {
	ID        string // Announcement message ID
	ChatID    string // Chat where results are announced
	Question  string
	Options   []string   // options[i] is bound to symbols[i]
	EndTime   *time.Time // nil for open-ended polls
	AuthorTag string     // Display name of the creator, for attribution only
	CreatedAt time.Time
}

// PollRequest is a validated-on-demand poll creation request
type PollRequest struct {
	ChatID    string
	Question  string
	Options   []string
	Duration  time.Duration // 0 means no automatic close
	AuthorTag string
}

// Validate checks the request against the option limits.
// Question and options are trimmed in place.
func (r *PollRequest) Validate(maxOptions int) error {
	r.Question = strings.TrimSpace(r.Question)
	if r.Question == "" {
		return &ValidationError{Message: "The question must not be blank."}
	}

	if len(r.Options) < MinOptions {
		return &ValidationError{Message: "A poll must have at least two options."}
	}
	if len(r.Options) > maxOptions {
		return &ValidationError{Message: fmt.Sprintf("The maximum number of options in a poll is %d.", maxOptions)}
	}

	for i, opt := range r.Options {
		r.Options[i] = strings.TrimSpace(opt)
		if r.Options[i] == "" {
			return &ValidationError{Message: fmt.Sprintf("Option %d must not be blank.", i+1)}
		}
	}

	if r.Duration < 0 {
		return &ValidationError{Message: "The poll duration must be positive."}
	}
	return nil
}

// NewPoll builds the record for a request once its announcement message exists
func NewPoll(msgID string, req *PollRequest, now time.Time) *Poll {
	p := &Poll{
		ID:        msgID,
		ChatID:    req.ChatID,
		Question:  req.Question,
		Options:   append([]string(nil), req.Options...),
		AuthorTag: req.AuthorTag,
		CreatedAt: now,
	}
	if req.Duration > 0 {
		end := now.Add(req.Duration)
		p.EndTime = &end
	}
	return p
}

// IsOpenEnded reports whether the poll has no automatic close
func (p *Poll) IsOpenEnded() bool {
	return p.EndTime == nil
}

// Remaining returns the time left until EndTime (negative once elapsed)
func (p *Poll) Remaining(now time.Time) time.Duration {
	if p.EndTime == nil {
		return 0
	}
	return p.EndTime.Sub(now)
}

// IsExpired checks if the poll's end time has been reached
func (p *Poll) IsExpired(now time.Time) bool {
	return p.EndTime != nil && !p.EndTime.After(now)
}
