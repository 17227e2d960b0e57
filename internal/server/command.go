package server

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/DevRickLin/feishu-poll-bot/internal/biz/domain"
)

// Quoted strings or runs of non-space characters
var tokenRegex = regexp.MustCompile(`"[^"]+"|'[^']+'|\S+`)

// Command is a parsed chat command
type Command struct {
	Name string   // lower-cased, without prefix
	Args []string // quotes stripped
}

// Tokenize splits text into arguments. "double" and 'single' quoted runs are
// one token with the quotes removed.
func Tokenize(text string) []string {
	raw := tokenRegex.FindAllString(text, -1)
	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		if len(tok) >= 2 {
			first, last := tok[0], tok[len(tok)-1]
			if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
				tok = tok[1 : len(tok)-1]
			}
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// ParseCommand parses a message starting with prefix. Returns false when the
// message is not a command.
func ParseCommand(text, prefix string) (*Command, bool) {
	text = strings.TrimSpace(text)
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return nil, false
	}

	tokens := Tokenize(strings.TrimPrefix(text, prefix))
	if len(tokens) == 0 {
		return nil, false
	}
	// "! poll" is not a command; the name must follow the prefix directly
	if strings.HasPrefix(strings.TrimPrefix(text, prefix), " ") {
		return nil, false
	}

	return &Command{
		Name: strings.ToLower(tokens[0]),
		Args: tokens[1:],
	}, true
}

// PollArgs are the arguments of the poll command
type PollArgs struct {
	Duration time.Duration // 0 when not given
	Question string
	Options  []string
}

// ParsePollArgs reads "[duration] question option1 option2 ...".
// A duration is only recognized as the first argument. Option count limits
// are checked later by domain.PollRequest.Validate.
func ParsePollArgs(args []string, usage string) (*PollArgs, error) {
	if len(args) == 0 {
		return nil, &domain.ValidationError{Message: usage}
	}

	var d time.Duration
	if domain.IsDurationToken(args[0]) {
		parsed, ok := domain.ParseDuration(args[0])
		if !ok {
			return nil, &domain.ValidationError{
				Message: fmt.Sprintf("Invalid duration %q. Use e.g. 10s, 5m, 1h30m, 2d.", args[0]),
			}
		}
		d = parsed
		args = args[1:]
	}

	if len(args) == 0 {
		return nil, &domain.ValidationError{Message: usage}
	}

	return &PollArgs{
		Duration: d,
		Question: args[0],
		Options:  append([]string(nil), args[1:]...),
	}, nil
}
