package domain

import (
	"fmt"
	"sort"
	"strings"
)

// OptionResult is the tally of one option
type OptionResult struct {
	Index   int
	Option  string
	Symbol  Symbol
	Votes   int
	Percent float64
}

// PollResult is the tally of a finished poll, ordered by votes descending
type PollResult struct {
	Question string
	Entries  []OptionResult
	Total    int
}

// Tally builds the result of p from per-option vote counts.
// Negative counts are floored at 0; ties keep option order.
func Tally(p *Poll, symbols SymbolSet, votes []int) *PollResult {
	bound := symbols.ForPoll(p)
	res := &PollResult{Question: p.Question}

	for i, opt := range p.Options {
		v := 0
		if i < len(votes) && votes[i] > 0 {
			v = votes[i]
		}
		entry := OptionResult{Index: i, Option: opt, Votes: v}
		if i < len(bound) {
			entry.Symbol = bound[i]
		}
		res.Entries = append(res.Entries, entry)
		res.Total += v
	}

	if res.Total > 0 {
		for i := range res.Entries {
			res.Entries[i].Percent = float64(res.Entries[i].Votes) / float64(res.Total) * 100
		}
	}

	sort.SliceStable(res.Entries, func(a, b int) bool {
		return res.Entries[a].Votes > res.Entries[b].Votes
	})
	return res
}

// NoVotesText is rendered when nobody voted
const NoVotesText = "No votes were cast."

// FormatResults renders the result body as lark_md text
func FormatResults(r *PollResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**Results for: %s**\n\n", r.Question))

	if r.Total == 0 {
		sb.WriteString(NoVotesText + "\n")
	} else {
		for _, e := range r.Entries {
			sb.WriteString(fmt.Sprintf("%s %s: **%d** votes (%.1f%%)\n", e.Symbol.Display(), e.Option, e.Votes, e.Percent))
		}
	}

	sb.WriteString(fmt.Sprintf("\nTotal votes: %d", r.Total))
	return sb.String()
}

// FormatPollBody renders the poll announcement body as lark_md text
func FormatPollBody(req *PollRequest, symbols SymbolSet) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**%s**\n\n", req.Question))
	for i, sym := range symbols.Bind(len(req.Options)) {
		sb.WriteString(fmt.Sprintf("%s %s\n", sym.Display(), req.Options[i]))
	}
	if req.Duration > 0 {
		sb.WriteString(fmt.Sprintf("\nPoll closes in %s.", FormatDuration(req.Duration)))
	}
	return strings.TrimRight(sb.String(), "\n")
}
