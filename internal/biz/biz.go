package biz

import (
	"github.com/DevRickLin/feishu-poll-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-poll-bot/internal/biz/repo"
	"github.com/DevRickLin/feishu-poll-bot/internal/biz/usecase"
)

// Usecases contains all usecases
type Usecases struct {
	Poll   *usecase.PollUsecase
	Vote   *usecase.VoteUsecase
	Result *usecase.ResultUsecase
}

// NewUsecases creates all usecases over the same store, transport and symbols
func NewUsecases(
	pollRepo repo.PollRepo,
	messageRepo repo.MessageRepo,
	symbols domain.SymbolSet,
	messages usecase.PollMessages,
) *Usecases {
	return &Usecases{
		Poll:   usecase.NewPollUsecase(pollRepo, messageRepo, symbols, messages),
		Vote:   usecase.NewVoteUsecase(pollRepo, messageRepo, symbols),
		Result: usecase.NewResultUsecase(pollRepo, messageRepo, symbols, messages),
	}
}
