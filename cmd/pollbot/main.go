package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/DevRickLin/feishu-poll-bot/internal/api"
	"github.com/DevRickLin/feishu-poll-bot/internal/biz"
	"github.com/DevRickLin/feishu-poll-bot/internal/biz/usecase"
	"github.com/DevRickLin/feishu-poll-bot/internal/conf"
	"github.com/DevRickLin/feishu-poll-bot/internal/data"
	"github.com/DevRickLin/feishu-poll-bot/internal/infra/feishu"
	"github.com/DevRickLin/feishu-poll-bot/internal/server"
	"github.com/DevRickLin/feishu-poll-bot/internal/service"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	var envFile, messagesPath, store string

	flagSet := pflag.NewFlagSet("pollbot", pflag.ContinueOnError)
	flagSet.StringVar(&envFile, "env-file", ".env", "environment file to load before reading configuration")
	flagSet.StringVar(&messagesPath, "messages", "", "messages.yaml with vote symbols and texts (overrides MESSAGES_CONFIG_PATH)")
	flagSet.StringVar(&store, "store", "", "poll store backend: sqlite, json or redis (overrides POLL_STORE)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("Invalid flags: %v", err)
	}

	// Load .env file
	if err := godotenv.Load(envFile); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := conf.LoadFromEnv()
	if messagesPath != "" {
		messages, err := conf.LoadMessagesConfig(messagesPath)
		if err != nil {
			log.Fatalf("Failed to load messages: %v", err)
		}
		cfg.Messages = messages
	}
	if store != "" {
		cfg.Store.Backend = store
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	symbols, err := cfg.Messages.SymbolSet()
	if err != nil {
		log.Fatalf("Invalid vote symbols: %v", err)
	}

	// Initialize clients
	feishuClient := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret, cfg.Debug)

	// Initialize repository layer
	repos, err := data.NewRepositories(feishuClient, cfg)
	if err != nil {
		log.Fatalf("Failed to create repositories: %v", err)
	}
	fmt.Printf("[PollBot] Poll store: %s\n", cfg.Store.Backend)

	// Initialize usecase layer
	ucs := biz.NewUsecases(repos.Poll, repos.Message, symbols, pollMessages(cfg.Messages))

	// Initialize service layer; recovery reschedules or finalizes persisted polls
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pollSvc := service.NewPollService(repos.Poll, ucs.Poll, ucs.Vote, ucs.Result)
	if err := pollSvc.Start(ctx); err != nil {
		log.Fatalf("Failed to start poll service: %v", err)
	}

	// Initialize HTTP API server for pollctl and poll-mcp
	var apiServer *api.Server
	if cfg.API.Port > 0 {
		apiServer = api.NewServer(pollSvc, cfg.API.Port)
		go func() {
			if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fmt.Printf("[PollBot] API server error: %v\n", err)
			}
		}()
	}

	// Initialize server
	srv := server.NewFeishuServer(feishuClient, repos.Message, pollSvc, cfg.Messages, cfg.Command.Prefix)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		srv.Stop()
		if apiServer != nil {
			apiServer.Stop()
		}
		pollSvc.Stop()
		cancel()
		if err := repos.Close(); err != nil {
			fmt.Printf("[PollBot] Failed to close poll store: %v\n", err)
		}
		os.Exit(0)
	}()

	fmt.Printf("Starting Feishu poll bot (prefix %q, %d vote symbols)...\n", cfg.Command.Prefix, symbols.MaxOptions())
	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// pollMessages maps the configured card texts onto the poll usecases
func pollMessages(m *conf.MessagesConfig) usecase.PollMessages {
	return usecase.PollMessages{
		PollTitle:      m.Poll.Title,
		PollColor:      m.Poll.Color,
		AuthorNote:     m.Poll.AuthorNote,
		ResultTitle:    m.Results.Title,
		ResultColor:    m.Results.Color,
		CreatorNote:    m.Results.CreatorNote,
		NotFoundNotice: m.Results.NotFoundNotice,
	}
}
