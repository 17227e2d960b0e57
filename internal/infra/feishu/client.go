package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
)

// Message represents a received Feishu message
type Message struct {
	ChatID     string
	MsgID      string
	MsgType    string // text, post
	ChatType   string // p2p (private), group
	Content    string // Text content
	Sender     *Sender
	CreateTime int64 // Milliseconds Unix timestamp from Feishu
}

// Sender represents the message sender
type Sender struct {
	SenderID   string // open_id
	SenderType string // user, app
	TenantKey  string
}

// ReactionEvent is an im.message.reaction.created_v1 event
type ReactionEvent struct {
	MessageID    string
	EmojiType    string
	OperatorID   string // open_id of the user, or app_id when OperatorType is app
	OperatorType string // user, app
	ActionTime   int64
}

// ChatInfo represents information about a chat
type ChatInfo struct {
	ChatID      string `json:"chat_id"`
	Name        string `json:"name"`
	OwnerID     string `json:"owner_id"`
	MemberCount int    `json:"user_count"`
}

// MessageInfo is a message fetched by ID
type MessageInfo struct {
	MsgID   string
	ChatID  string
	Deleted bool
}

// ReactionInfo is one reaction on a message
type ReactionInfo struct {
	ReactionID   string
	EmojiType    string
	OperatorID   string
	OperatorType string // user, app
	ActionTime   int64  // Milliseconds Unix timestamp
}

// CardMessage is the content of an interactive card
type CardMessage struct {
	Title string
	Body  string // lark_md
	Note  string // lark_md, so it may hold <at id=...></at>
	Color string // header template
}

// MessageHandler is the callback for received messages
type MessageHandler func(msg *Message)

// ReactionHandler is the callback for added reactions
type ReactionHandler func(ev *ReactionEvent)

// Client is the Feishu API client
type Client struct {
	appID      string
	appSecret  string
	logLevel   larkcore.LogLevel
	larkCli    *lark.Client
	wsCli      *larkws.Client
	onMessage  MessageHandler
	onReaction ReactionHandler
	ctx        context.Context
	cancel     context.CancelFunc
	botOpenID  string
}

// NewClient creates a new Feishu client. The API client is usable right away;
// Start only opens the event stream.
func NewClient(appID, appSecret string, debug bool) *Client {
	level := larkcore.LogLevelInfo
	if debug {
		level = larkcore.LogLevelDebug
	}
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		logLevel:  level,
		larkCli:   lark.NewClient(appID, appSecret, lark.WithLogLevel(level)),
	}
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler MessageHandler) {
	c.onMessage = handler
}

// OnReaction sets the reaction handler
func (c *Client) OnReaction(handler ReactionHandler) {
	c.onReaction = handler
}

// BotOpenID returns the bot's own open_id, empty if it could not be fetched
func (c *Client) BotOpenID() string {
	return c.botOpenID
}

// Start connects to Feishu via WebSocket and starts listening for events
func (c *Client) Start() error {
	c.ctx, c.cancel = context.WithCancel(context.Background())

	if err := c.fetchBotOpenID(); err != nil {
		fmt.Printf("[Feishu] Warning: failed to fetch bot open_id: %v\n", err)
	}

	// Handlers must return quickly so the SDK can ACK, otherwise Feishu redelivers
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			go c.handleMessage(event)
			return nil
		}).
		OnP2MessageReactionCreatedV1(func(ctx context.Context, event *larkim.P2MessageReactionCreatedV1) error {
			c.handleReaction(event)
			return nil
		})

	c.wsCli = larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(c.logLevel),
	)

	fmt.Println("[Feishu] Starting WebSocket connection...")

	// Blocking
	return c.wsCli.Start(c.ctx)
}

// Stop disconnects from Feishu
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// fetchBotOpenID fetches the bot's own open_id
func (c *Client) fetchBotOpenID() error {
	tokenReq, _ := json.Marshal(map[string]string{"app_id": c.appID, "app_secret": c.appSecret})
	tokenResp, err := http.Post(
		"https://open.feishu.cn/open-apis/auth/v3/tenant_access_token/internal",
		"application/json",
		strings.NewReader(string(tokenReq)),
	)
	if err != nil {
		return fmt.Errorf("get token: %w", err)
	}
	defer tokenResp.Body.Close()

	var tokenResult struct {
		Code              int    `json:"code"`
		Msg               string `json:"msg"`
		TenantAccessToken string `json:"tenant_access_token"`
	}
	if err := json.NewDecoder(tokenResp.Body).Decode(&tokenResult); err != nil {
		return fmt.Errorf("decode token: %w", err)
	}
	if tokenResult.Code != 0 {
		return fmt.Errorf("token error: %s", tokenResult.Msg)
	}

	req, _ := http.NewRequest("GET", "https://open.feishu.cn/open-apis/bot/v3/info", nil)
	req.Header.Set("Authorization", "Bearer "+tokenResult.TenantAccessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("get bot info: %w", err)
	}
	defer resp.Body.Close()

	var botResult struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Bot  struct {
			OpenID  string `json:"open_id"`
			AppName string `json:"app_name"`
		} `json:"bot"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&botResult); err != nil {
		return fmt.Errorf("decode bot info: %w", err)
	}
	if botResult.Code != 0 {
		return fmt.Errorf("API error: %s", botResult.Msg)
	}

	c.botOpenID = botResult.Bot.OpenID
	fmt.Printf("[Feishu] Bot open_id: %s (name=%s)\n", c.botOpenID, botResult.Bot.AppName)
	return nil
}

// handleMessage converts a receive event into a Message
func (c *Client) handleMessage(event *larkim.P2MessageReceiveV1) {
	if event.Event == nil || event.Event.Message == nil {
		return
	}
	rawMsg := event.Event.Message

	// Ignore our own messages
	if event.Event.Sender != nil && event.Event.Sender.SenderType != nil && *event.Event.Sender.SenderType == "app" {
		return
	}

	msg := &Message{
		ChatID:   larkcore.StringValue(rawMsg.ChatId),
		MsgID:    larkcore.StringValue(rawMsg.MessageId),
		MsgType:  larkcore.StringValue(rawMsg.MessageType),
		ChatType: larkcore.StringValue(rawMsg.ChatType),
	}
	if rawMsg.CreateTime != nil {
		if ts, err := strconv.ParseInt(*rawMsg.CreateTime, 10, 64); err == nil {
			msg.CreateTime = ts
		}
	}

	if event.Event.Sender != nil {
		msg.Sender = &Sender{
			SenderType: larkcore.StringValue(event.Event.Sender.SenderType),
			TenantKey:  larkcore.StringValue(event.Event.Sender.TenantKey),
		}
		if event.Event.Sender.SenderId != nil {
			msg.Sender.SenderID = larkcore.StringValue(event.Event.Sender.SenderId.OpenId)
		}
	}

	content := larkcore.StringValue(rawMsg.Content)
	switch msg.MsgType {
	case "text":
		msg.Content = ParseTextContent(content)
	case "post":
		msg.Content = ParsePostContent(content)
	default:
		return
	}

	fmt.Printf("[Feishu] Received %s from %s chat %s: %s\n", msg.MsgType, msg.ChatType, msg.ChatID, truncate(msg.Content, 50))

	if c.onMessage != nil {
		c.onMessage(msg)
	}
}

// handleReaction converts a reaction event; it runs on the SDK goroutine so the
// handler must only enqueue
func (c *Client) handleReaction(event *larkim.P2MessageReactionCreatedV1) {
	if event.Event == nil {
		return
	}
	data := event.Event

	ev := &ReactionEvent{
		MessageID:    larkcore.StringValue(data.MessageId),
		OperatorType: larkcore.StringValue(data.OperatorType),
	}
	if data.ReactionType != nil {
		ev.EmojiType = larkcore.StringValue(data.ReactionType.EmojiType)
	}
	if data.UserId != nil {
		ev.OperatorID = larkcore.StringValue(data.UserId.OpenId)
	}
	if ev.OperatorType == "app" && ev.OperatorID == "" {
		ev.OperatorID = larkcore.StringValue(data.AppId)
	}
	if data.ActionTime != nil {
		if ts, err := strconv.ParseInt(*data.ActionTime, 10, 64); err == nil {
			ev.ActionTime = ts
		}
	}

	if c.onReaction != nil {
		c.onReaction(ev)
	}
}

// ParseTextContent extracts text from a text message
func ParseTextContent(content string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}
	return parsed.Text
}

// ParsePostContent extracts the plain text of a rich text message
func ParsePostContent(content string) string {
	var parsed struct {
		Title   string `json:"title"`
		Content [][]struct {
			Tag  string `json:"tag"`
			Text string `json:"text,omitempty"`
		} `json:"content"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}

	var lines []string
	for _, line := range parsed.Content {
		var parts []string
		for _, elem := range line {
			if elem.Tag == "text" && elem.Text != "" {
				parts = append(parts, elem.Text)
			}
		}
		if len(parts) > 0 {
			lines = append(lines, strings.Join(parts, ""))
		}
	}
	return strings.Join(lines, "\n")
}

// SendText sends a text message to a chat
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	contentJSON, _ := json.Marshal(map[string]string{"text": text})

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Uuid(uuid.NewString()).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return newAPIError("send message", resp.StatusCode, resp.Code, resp.Msg)
	}

	fmt.Printf("[Feishu] Message sent to %s\n", chatID)
	return nil
}

// ReplyText replies to a message with text
func (c *Client) ReplyText(ctx context.Context, messageID, text string) error {
	contentJSON, _ := json.Marshal(map[string]string{"text": text})

	req := larkim.NewReplyMessageReqBuilder().
		MessageId(messageID).
		Body(larkim.NewReplyMessageReqBodyBuilder().
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Uuid(uuid.NewString()).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Reply(ctx, req)
	if err != nil {
		return fmt.Errorf("reply message failed: %w", err)
	}
	if !resp.Success() {
		return newAPIError("reply message", resp.StatusCode, resp.Code, resp.Msg)
	}
	return nil
}

// BuildCard renders an interactive card
func BuildCard(card *CardMessage) (string, error) {
	color := card.Color
	if color == "" {
		color = "blue"
	}

	elements := []map[string]interface{}{
		{
			"tag":  "div",
			"text": map[string]string{"tag": "lark_md", "content": card.Body},
		},
	}
	if card.Note != "" {
		elements = append(elements, map[string]interface{}{
			"tag":      "note",
			"elements": []map[string]string{{"tag": "lark_md", "content": card.Note}},
		})
	}

	payload := map[string]interface{}{
		"config": map[string]bool{"wide_screen_mode": true},
		"header": map[string]interface{}{
			"title":    map[string]string{"tag": "plain_text", "content": card.Title},
			"template": color,
		},
		"elements": elements,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode card: %w", err)
	}
	return string(data), nil
}

// SendCard sends an interactive card and returns the new message ID
func (c *Client) SendCard(ctx context.Context, chatID string, card *CardMessage) (string, error) {
	content, err := BuildCard(card)
	if err != nil {
		return "", err
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(larkim.MsgTypeInteractive).
			Content(content).
			Uuid(uuid.NewString()).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("send card failed: %w", err)
	}
	if !resp.Success() {
		return "", newAPIError("send card", resp.StatusCode, resp.Code, resp.Msg)
	}
	if resp.Data == nil || resp.Data.MessageId == nil {
		return "", fmt.Errorf("send card: response has no message_id")
	}

	fmt.Printf("[Feishu] Card %q sent to %s\n", card.Title, chatID)
	return *resp.Data.MessageId, nil
}

// GetMessage fetches a message by ID
func (c *Client) GetMessage(ctx context.Context, messageID string) (*MessageInfo, error) {
	req := larkim.NewGetMessageReqBuilder().
		MessageId(messageID).
		Build()

	resp, err := c.larkCli.Im.Message.Get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("get message failed: %w", err)
	}
	if !resp.Success() {
		return nil, newAPIError("get message", resp.StatusCode, resp.Code, resp.Msg)
	}
	if resp.Data == nil || len(resp.Data.Items) == 0 {
		return nil, newAPIError("get message", http.StatusNotFound, 0, "message not found")
	}

	item := resp.Data.Items[0]
	info := &MessageInfo{
		MsgID:   larkcore.StringValue(item.MessageId),
		ChatID:  larkcore.StringValue(item.ChatId),
		Deleted: larkcore.BoolValue(item.Deleted),
	}
	if info.Deleted {
		return nil, newAPIError("get message", http.StatusNotFound, 0, "message deleted")
	}
	return info, nil
}

// DeleteMessage recalls a message
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	req := larkim.NewDeleteMessageReqBuilder().
		MessageId(messageID).
		Build()

	resp, err := c.larkCli.Im.Message.Delete(ctx, req)
	if err != nil {
		return fmt.Errorf("delete message failed: %w", err)
	}
	if !resp.Success() {
		return newAPIError("delete message", resp.StatusCode, resp.Code, resp.Msg)
	}
	return nil
}

// AddReaction adds an emoji reaction to a message
func (c *Client) AddReaction(ctx context.Context, messageID, emojiType string) error {
	req := larkim.NewCreateMessageReactionReqBuilder().
		MessageId(messageID).
		Body(larkim.NewCreateMessageReactionReqBodyBuilder().
			ReactionType(larkim.NewEmojiBuilder().EmojiType(emojiType).Build()).
			Build()).
		Build()

	resp, err := c.larkCli.Im.MessageReaction.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("add reaction failed: %w", err)
	}
	if !resp.Success() {
		return newAPIError("add reaction", resp.StatusCode, resp.Code, resp.Msg)
	}
	return nil
}

// ListReactions lists all reactions of one emoji type on a message.
// Uses pagination to get all of them.
func (c *Client) ListReactions(ctx context.Context, messageID, emojiType string) ([]*ReactionInfo, error) {
	var reactions []*ReactionInfo
	var pageToken string

	for {
		reqBuilder := larkim.NewListMessageReactionReqBuilder().
			MessageId(messageID).
			ReactionType(emojiType).
			UserIdType("open_id").
			PageSize(50)
		if pageToken != "" {
			reqBuilder = reqBuilder.PageToken(pageToken)
		}

		resp, err := c.larkCli.Im.MessageReaction.List(ctx, reqBuilder.Build())
		if err != nil {
			return nil, fmt.Errorf("list reactions failed: %w", err)
		}
		if !resp.Success() {
			return nil, newAPIError("list reactions", resp.StatusCode, resp.Code, resp.Msg)
		}
		if resp.Data == nil {
			break
		}

		for _, item := range resp.Data.Items {
			r := &ReactionInfo{
				ReactionID: larkcore.StringValue(item.ReactionId),
			}
			if item.ReactionType != nil {
				r.EmojiType = larkcore.StringValue(item.ReactionType.EmojiType)
			}
			if item.Operator != nil {
				r.OperatorID = larkcore.StringValue(item.Operator.OperatorId)
				r.OperatorType = larkcore.StringValue(item.Operator.OperatorType)
			}
			if item.ActionTime != nil {
				r.ActionTime, _ = strconv.ParseInt(*item.ActionTime, 10, 64)
			}
			reactions = append(reactions, r)
		}

		if !larkcore.BoolValue(resp.Data.HasMore) || larkcore.StringValue(resp.Data.PageToken) == "" {
			break
		}
		pageToken = *resp.Data.PageToken
	}

	return reactions, nil
}

// RemoveReaction removes an emoji reaction from a message
func (c *Client) RemoveReaction(ctx context.Context, messageID, reactionID string) error {
	req := larkim.NewDeleteMessageReactionReqBuilder().
		MessageId(messageID).
		ReactionId(reactionID).
		Build()

	resp, err := c.larkCli.Im.MessageReaction.Delete(ctx, req)
	if err != nil {
		return fmt.Errorf("remove reaction failed: %w", err)
	}
	if !resp.Success() {
		return newAPIError("remove reaction", resp.StatusCode, resp.Code, resp.Msg)
	}
	return nil
}

// GetChatInfo retrieves information about a chat
func (c *Client) GetChatInfo(ctx context.Context, chatID string) (*ChatInfo, error) {
	req := larkim.NewGetChatReqBuilder().
		ChatId(chatID).
		UserIdType("open_id").
		Build()

	resp, err := c.larkCli.Im.Chat.Get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("get chat info failed: %w", err)
	}
	if !resp.Success() {
		return nil, newAPIError("get chat info", resp.StatusCode, resp.Code, resp.Msg)
	}

	info := &ChatInfo{ChatID: chatID}
	if resp.Data != nil {
		info.Name = larkcore.StringValue(resp.Data.Name)
		info.OwnerID = larkcore.StringValue(resp.Data.OwnerId)
		if resp.Data.UserCount != nil {
			info.MemberCount, _ = strconv.Atoi(*resp.Data.UserCount)
		}
	}
	return info, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
