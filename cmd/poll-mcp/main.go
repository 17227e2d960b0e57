package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/DevRickLin/feishu-poll-bot/internal/api"
	"github.com/DevRickLin/feishu-poll-bot/internal/mcp"
	"github.com/spf13/pflag"
)

// poll-mcp serves the pollbot admin API to MCP clients over stdio.
// Logs go to stderr; stdout carries the protocol.

func main() {
	apiURL := os.Getenv("POLLBOT_API_URL")

	flagSet := pflag.NewFlagSet("poll-mcp", pflag.ContinueOnError)
	flagSet.StringVar(&apiURL, "api-url", apiURL, "pollbot admin API base URL (default "+api.DefaultAPIURL+")")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "[MCP] Invalid flags: %v\n", err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	server := mcp.NewServer(api.NewClient(apiURL))
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "[MCP] Server error: %v\n", err)
		os.Exit(1)
	}
}
