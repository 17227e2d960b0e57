package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/DevRickLin/feishu-poll-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-poll-bot/internal/biz/repo"
)

// PollMessages are the card texts used by the poll usecases.
// {{author}} and {{question}} are replaced where noted.
type PollMessages struct {
	PollTitle      string
	PollColor      string
	AuthorNote     string // {{author}}
	ResultTitle    string
	ResultColor    string
	CreatorNote    string // {{author}}
	NotFoundNotice string // {{question}}
}

// DefaultPollMessages are used when no messages are configured
var DefaultPollMessages = PollMessages{
	PollTitle:      "React to vote in the poll.",
	PollColor:      "purple",
	AuthorNote:     "Author {{author}}",
	ResultTitle:    "📊 Poll Results",
	ResultColor:    "green",
	CreatorNote:    "Poll created by {{author}}",
	NotFoundNotice: `Poll message for "{{question}}" was not found (maybe deleted?). Cannot announce results.`,
}

// withDefaults fills blank texts from DefaultPollMessages
func (m PollMessages) withDefaults() PollMessages {
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&m.PollTitle, DefaultPollMessages.PollTitle)
	fill(&m.PollColor, DefaultPollMessages.PollColor)
	fill(&m.AuthorNote, DefaultPollMessages.AuthorNote)
	fill(&m.ResultTitle, DefaultPollMessages.ResultTitle)
	fill(&m.ResultColor, DefaultPollMessages.ResultColor)
	fill(&m.CreatorNote, DefaultPollMessages.CreatorNote)
	fill(&m.NotFoundNotice, DefaultPollMessages.NotFoundNotice)
	return m
}

// PollUsecase creates polls
type PollUsecase struct {
	pollRepo    repo.PollRepo
	messageRepo repo.MessageRepo
	symbols     domain.SymbolSet
	messages    PollMessages
	now         func() time.Time
}

// NewPollUsecase creates a new poll usecase. Blank messages fall back to DefaultPollMessages.
func NewPollUsecase(
	pollRepo repo.PollRepo,
	messageRepo repo.MessageRepo,
	symbols domain.SymbolSet,
	messages PollMessages,
) *PollUsecase {
	return &PollUsecase{
		pollRepo:    pollRepo,
		messageRepo: messageRepo,
		symbols:     symbols,
		messages:    messages.withDefaults(),
		now:         time.Now,
	}
}

// Symbols returns the configured vote symbols
func (uc *PollUsecase) Symbols() domain.SymbolSet {
	return uc.symbols
}

// Create validates req, announces the poll, seeds one reaction per option and
// stores the record. Scheduling is left to the caller.
//
// A *domain.ValidationError means nothing was sent. A send failure is returned
// wrapped; seeding and store failures are only logged, as the poll is already visible.
func (uc *PollUsecase) Create(ctx context.Context, req *domain.PollRequest) (*domain.Poll, error) {
	if err := req.Validate(uc.symbols.MaxOptions()); err != nil {
		return nil, err
	}

	card := &domain.Card{
		Title: uc.messages.PollTitle,
		Body:  domain.FormatPollBody(req, uc.symbols),
		Color: uc.messages.PollColor,
	}
	if req.AuthorTag != "" {
		card.Note = render(uc.messages.AuthorNote, "author", req.AuthorTag)
	}

	msgID, err := uc.messageRepo.SendCard(ctx, req.ChatID, card)
	if err != nil {
		return nil, fmt.Errorf("failed to send poll: %w", err)
	}

	for _, sym := range uc.symbols.Bind(len(req.Options)) {
		if err := uc.messageRepo.AddReaction(ctx, msgID, sym.Type); err != nil {
			fmt.Printf("[Poll] Failed to seed %s on %s: %v\n", sym.Type, msgID, err)
		}
	}

	poll := domain.NewPoll(msgID, req, uc.now())
	if err := uc.pollRepo.Put(ctx, poll); err != nil {
		fmt.Printf("[Poll] Failed to store poll %s: %v\n", msgID, err)
	}

	ends := "never"
	if poll.EndTime != nil {
		ends = poll.EndTime.Format(time.RFC3339)
	}
	fmt.Printf("[Poll] Created %s in %s: %q, %d options, ends %s\n",
		poll.ID, poll.ChatID, poll.Question, len(poll.Options), ends)
	return poll, nil
}

// Get returns a stored poll, nil if absent
func (uc *PollUsecase) Get(ctx context.Context, id string) (*domain.Poll, error) {
	return uc.pollRepo.Get(ctx, id)
}

// List returns all stored polls
func (uc *PollUsecase) List(ctx context.Context) ([]*domain.Poll, error) {
	return uc.pollRepo.ListAll(ctx)
}

func render(tmpl, key, value string) string {
	return strings.ReplaceAll(tmpl, "{{"+key+"}}", value)
}
