package server

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/DevRickLin/feishu-poll-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-poll-bot/internal/biz/repo"
	"github.com/DevRickLin/feishu-poll-bot/internal/conf"
	"github.com/DevRickLin/feishu-poll-bot/internal/infra/feishu"
)

// PollService is what the server needs from the poll lifecycle
type PollService interface {
	CreatePoll(ctx context.Context, req *domain.PollRequest) (*domain.Poll, error)
	SubmitVote(ev domain.VoteEvent) bool
	Symbols() domain.SymbolSet
}

// FeishuServer turns Feishu events into poll commands and votes
type FeishuServer struct {
	feishuClient *feishu.Client
	messageRepo  repo.MessageRepo
	pollSvc      PollService
	messages     *conf.MessagesConfig
	prefix       string
	botID        func() string

	// Message deduplication cache
	seenMsgsMu sync.Mutex
	seenMsgs   map[string]time.Time // msgID -> timestamp
}

// NewFeishuServer creates a new Feishu server
func NewFeishuServer(
	feishuClient *feishu.Client,
	messageRepo repo.MessageRepo,
	pollSvc PollService,
	messages *conf.MessagesConfig,
	prefix string,
) *FeishuServer {
	s := &FeishuServer{
		feishuClient: feishuClient,
		messageRepo:  messageRepo,
		pollSvc:      pollSvc,
		messages:     messages,
		prefix:       prefix,
		seenMsgs:     make(map[string]time.Time),
		botID:        func() string { return "" },
	}
	if feishuClient != nil {
		s.botID = feishuClient.BotOpenID
	}
	return s
}

// Start starts listening for Feishu events (blocking)
func (s *FeishuServer) Start() error {
	s.feishuClient.OnMessage(s.handleMessage)
	s.feishuClient.OnReaction(s.handleReaction)
	return s.feishuClient.Start()
}

// Stop stops the server
func (s *FeishuServer) Stop() {
	s.feishuClient.Stop()
}

// handleMessage dispatches chat commands
func (s *FeishuServer) handleMessage(msg *feishu.Message) {
	cmd, ok := ParseCommand(msg.Content, s.prefix)
	if !ok {
		return
	}

	if s.checkAndMarkSeen(msg.MsgID) {
		fmt.Printf("[Server] Duplicate message ignored: %s\n", msg.MsgID)
		return
	}

	fmt.Printf("[Server] Command %q from chat %s\n", cmd.Name, msg.ChatID)

	ctx := context.Background()
	switch cmd.Name {
	case "poll":
		s.handlePoll(ctx, msg, cmd.Args)
	case "ping":
		s.reply(ctx, msg, s.messages.Replies.Pong)
	case "help":
		s.handleHelp(ctx, msg)
	}
}

// handlePoll creates a poll from "poll [duration] question options..."
func (s *FeishuServer) handlePoll(ctx context.Context, msg *feishu.Message, args []string) {
	senderID := ""
	if msg.Sender != nil {
		senderID = msg.Sender.SenderID
	}

	isAdmin, err := s.messageRepo.IsChatAdmin(ctx, msg.ChatID, senderID)
	if err != nil {
		fmt.Printf("[Server] Permission check failed for %s: %v\n", senderID, err)
	}
	if !isAdmin {
		s.reply(ctx, msg, s.messages.Replies.NoPermission)
		return
	}

	usage := conf.Render(s.messages.Replies.Usage, map[string]string{"prefix": s.prefix})
	parsed, err := ParsePollArgs(args, usage)
	if err != nil {
		s.reply(ctx, msg, err.Error())
		return
	}

	req := &domain.PollRequest{
		ChatID:    msg.ChatID,
		Question:  parsed.Question,
		Options:   parsed.Options,
		Duration:  parsed.Duration,
		AuthorTag: authorTag(senderID),
	}

	poll, err := s.pollSvc.CreatePoll(ctx, req)
	if err != nil {
		if domain.IsValidationError(err) {
			s.reply(ctx, msg, err.Error())
			return
		}
		fmt.Printf("[Server] Failed to create poll: %v\n", err)
		s.reply(ctx, msg, s.messages.Replies.CreateFailed)
		return
	}

	fmt.Printf("[Server] Poll %s created by %s\n", poll.ID, senderID)

	// Remove the invoking command, best effort
	if err := s.messageRepo.DeleteMessage(ctx, msg.MsgID); err != nil {
		fmt.Printf("[Server] Could not delete command message %s: %v\n", msg.MsgID, err)
	}
}

func (s *FeishuServer) handleHelp(ctx context.Context, msg *feishu.Message) {
	body := conf.Render(s.messages.Replies.Help, map[string]string{
		"prefix":      s.prefix,
		"max_options": strconv.Itoa(s.pollSvc.Symbols().MaxOptions()),
	})
	card := &domain.Card{
		Title: s.messages.Replies.HelpTitle,
		Body:  body,
		Color: "blue",
	}
	if _, err := s.messageRepo.SendCard(ctx, msg.ChatID, card); err != nil {
		fmt.Printf("[Server] Failed to send help: %v\n", err)
	}
}

// handleReaction forwards a reaction to the poll event loop
func (s *FeishuServer) handleReaction(ev *feishu.ReactionEvent) {
	if ev.MessageID == "" || ev.EmojiType == "" {
		return
	}

	fromApp := ev.OperatorType == "app"
	if botID := s.botID(); botID != "" && ev.OperatorID == botID {
		fromApp = true
	}

	vote := domain.VoteEvent{
		PollID:  ev.MessageID,
		UserID:  ev.OperatorID,
		Symbol:  ev.EmojiType,
		FromApp: fromApp,
	}
	if ev.ActionTime > 0 {
		vote.At = time.UnixMilli(ev.ActionTime)
	}
	if !s.pollSvc.SubmitVote(vote) {
		fmt.Printf("[Server] Dropped reaction on %s, poll service stopped\n", ev.MessageID)
	}
}

func (s *FeishuServer) reply(ctx context.Context, msg *feishu.Message, text string) {
	if err := s.messageRepo.ReplyText(ctx, msg.MsgID, text); err != nil {
		fmt.Printf("[Server] Failed to reply: %v\n", err)
	}
}

// authorTag renders a user as a card mention
func authorTag(openID string) string {
	if openID == "" {
		return ""
	}
	return fmt.Sprintf("<at id=%s></at>", openID)
}

// checkAndMarkSeen records msgID as processed and reports whether it already was.
// Redeliveries may arrive on concurrent goroutines.
func (s *FeishuServer) checkAndMarkSeen(msgID string) bool {
	s.seenMsgsMu.Lock()
	defer s.seenMsgsMu.Unlock()

	now := time.Now()
	if _, exists := s.seenMsgs[msgID]; exists {
		return true
	}
	s.seenMsgs[msgID] = now

	// Drop records older than 5 minutes
	cutoff := now.Add(-5 * time.Minute)
	for id, ts := range s.seenMsgs {
		if ts.Before(cutoff) {
			delete(s.seenMsgs, id)
		}
	}
	return false
}
