package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/DevRickLin/feishu-poll-bot/internal/api"
	"github.com/spf13/pflag"
)

const usage = `pollctl - manage polls through the pollbot admin API

Usage:
  pollctl [--api-url URL] list
  pollctl [--api-url URL] get <poll-id>
  pollctl [--api-url URL] create --chat <chat-id> [--duration 1h] [--author NAME] <question> <option> <option>...
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	apiURL := os.Getenv("POLLBOT_API_URL")

	flagSet := pflag.NewFlagSet("pollctl", pflag.ContinueOnError)
	flagSet.StringVar(&apiURL, "api-url", apiURL, "pollbot admin API base URL")
	flagSet.SetInterspersed(false)
	flagSet.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("missing command")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client := api.NewClient(apiURL)

	switch rest[0] {
	case "list":
		return runList(ctx, client)
	case "get":
		if len(rest) != 2 {
			return fmt.Errorf("usage: pollctl get <poll-id>")
		}
		view, err := client.GetPoll(ctx, rest[1])
		if err != nil {
			return err
		}
		printPoll(view)
		return nil
	case "create":
		return runCreate(ctx, client, rest[1:])
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", rest[0])
	}
}

func runList(ctx context.Context, client *api.Client) error {
	polls, err := client.ListPolls(ctx)
	if err != nil {
		return err
	}
	if len(polls) == 0 {
		fmt.Println("No active polls.")
		return nil
	}
	for i := range polls {
		p := &polls[i]
		fmt.Printf("%s  %-40s  %d options  ends %s\n", p.ID, truncate(p.Question, 40), len(p.Options), p.Ends)
	}
	return nil
}

func runCreate(ctx context.Context, client *api.Client, args []string) error {
	var req api.CreatePollRequest

	flagSet := pflag.NewFlagSet("create", pflag.ContinueOnError)
	flagSet.StringVar(&req.ChatID, "chat", "", "chat to post the poll in (required)")
	flagSet.StringVar(&req.Duration, "duration", "", "time until results are announced, e.g. 10m, 1h30m, 2d")
	flagSet.StringVar(&req.Author, "author", "", "creator shown on the poll")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	rest := flagSet.Args()
	if req.ChatID == "" || len(rest) < 1 {
		return fmt.Errorf("usage: pollctl create --chat <chat-id> [--duration 1h] <question> <option> <option>...")
	}
	req.Question = rest[0]
	req.Options = rest[1:]

	view, err := client.CreatePoll(ctx, &req)
	if err != nil {
		return err
	}
	fmt.Println("Poll created.")
	printPoll(view)
	return nil
}

func printPoll(p *api.PollView) {
	fmt.Printf("ID:       %s\n", p.ID)
	fmt.Printf("Chat:     %s\n", p.ChatID)
	fmt.Printf("Question: %s\n", p.Question)
	for _, opt := range p.Options {
		fmt.Printf("  %s %s\n", opt.Label, opt.Text)
	}
	if p.Overdue {
		fmt.Printf("Ends:     %s (results pending)\n", p.Ends)
	} else {
		fmt.Printf("Ends:     %s\n", p.Ends)
	}
	if p.AuthorTag != "" {
		fmt.Printf("Author:   %s\n", p.AuthorTag)
	}
}

func truncate(s string, n int) string {
	r := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-3]) + "..."
}
