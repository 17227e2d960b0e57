package domain

import (
	"fmt"
	"time"
)

// Symbol is a reaction type usable as a vote marker
type Symbol struct {
	Type  string // Platform reaction key, e.g. THUMBSUP
	Label string // How the symbol is shown in message text
}

// Display returns the label, falling back to the reaction key
func (s Symbol) Display() string {
	if s.Label != "" {
		return s.Label
	}
	return "[" + s.Type + "]"
}

// SymbolSet is the fixed ordered sequence of vote symbols.
// Option i of any poll is bound to symbol i; the binding is never stored.
type SymbolSet []Symbol

// NewSymbolSet validates that symbols are non-empty and distinct
func NewSymbolSet(symbols []Symbol) (SymbolSet, error) {
	if len(symbols) < MinOptions {
		return nil, fmt.Errorf("need at least %d vote symbols, got %d", MinOptions, len(symbols))
	}
	seen := make(map[string]bool, len(symbols))
	for i, s := range symbols {
		if s.Type == "" {
			return nil, fmt.Errorf("vote symbol %d has no type", i+1)
		}
		if seen[s.Type] {
			return nil, fmt.Errorf("duplicate vote symbol %s", s.Type)
		}
		seen[s.Type] = true
	}
	return SymbolSet(append([]Symbol(nil), symbols...)), nil
}

// MaxOptions is the largest number of options a poll may have
func (s SymbolSet) MaxOptions() int {
	return len(s)
}

// Bind returns the symbols bound to a poll with n options
func (s SymbolSet) Bind(n int) []Symbol {
	if n > len(s) {
		n = len(s)
	}
	if n < 0 {
		n = 0
	}
	return s[:n]
}

// ForPoll returns the symbols bound to p's options
func (s SymbolSet) ForPoll(p *Poll) []Symbol {
	return s.Bind(len(p.Options))
}

// Classify turns a raw reaction on p into a vote for an option, or Unrelated
func (s SymbolSet) Classify(p *Poll, symbolType string) VoteKind {
	for i, sym := range s.ForPoll(p) {
		if sym.Type == symbolType {
			return VoteKind{OptionIndex: i, valid: true}
		}
	}
	return Unrelated
}

// VoteKind is the meaning of a reaction on a tracked poll:
// either a vote for OptionIndex or Unrelated.
type VoteKind struct {
	OptionIndex int
	valid       bool
}

// Unrelated is a reaction that does not vote on the poll
var Unrelated = VoteKind{OptionIndex: -1}

// IsVote reports whether the reaction is a vote
func (k VoteKind) IsVote() bool {
	return k.valid
}

// VoteEvent is a reaction-added event from the platform
type VoteEvent struct {
	PollID  string    // Message the reaction was added to
	UserID  string
	Symbol  string    // Reaction type
	FromApp bool      // Reaction was added by an app (e.g. the bot's own seeding)
	At      time.Time // When the reaction was added; zero if the platform did not say
}

// Reaction is one user's reaction of one type on a message
type Reaction struct {
	ID      string
	Type    string
	UserID  string
	FromApp bool
	At      time.Time // zero if unknown
}
