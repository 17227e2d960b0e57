package data

import (
	"fmt"

	"github.com/DevRickLin/feishu-poll-bot/internal/biz/repo"
	"github.com/DevRickLin/feishu-poll-bot/internal/conf"
	"github.com/DevRickLin/feishu-poll-bot/internal/infra/feishu"
)

// Repositories contains all repositories
type Repositories struct {
	Message repo.MessageRepo
	Poll    repo.PollRepo
}

// NewRepositories creates all repositories
func NewRepositories(feishuClient *feishu.Client, cfg *conf.Config) (*Repositories, error) {
	pollRepo, err := NewPollRepo(cfg.Store)
	if err != nil {
		return nil, err
	}

	return &Repositories{
		Message: NewFeishuRepo(feishuClient, cfg.Command.Admins),
		Poll:    pollRepo,
	}, nil
}

// Close releases the poll store
func (r *Repositories) Close() error {
	return r.Poll.Close()
}

// NewPollRepo opens the configured poll store backend
func NewPollRepo(cfg conf.StoreConfig) (repo.PollRepo, error) {
	switch cfg.Backend {
	case conf.StoreSQLite, "":
		return NewSQLitePollRepo(cfg.DBPath)
	case conf.StoreJSON:
		return NewJSONPollRepo(cfg.JSONPath)
	case conf.StoreRedis:
		return NewRedisPollRepo(cfg.RedisURL, cfg.RedisKeyPrefix)
	default:
		return nil, fmt.Errorf("unknown poll store %q", cfg.Backend)
	}
}
