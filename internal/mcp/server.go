package mcp

import (
	"context"
	"fmt"

	"github.com/DevRickLin/feishu-poll-bot/internal/api"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// PollMCPServer exposes the poll admin API as MCP tools
type PollMCPServer struct {
	server *mcp.Server
	client *api.Client
}

// NewServer creates a new poll MCP server backed by client
func NewServer(client *api.Client) *PollMCPServer {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "feishu-poll",
		Version: "v1.0.0",
	}, nil)

	s := &PollMCPServer{
		server: server,
		client: client,
	}
	s.registerTools()
	return s
}

func (s *PollMCPServer) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "poll_list",
		Description: "List the active polls, with their options, vote emojis and when they close.",
	}, s.handleList)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "poll_get",
		Description: "Get one active poll by the message ID of its announcement.",
	}, s.handleGet)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "poll_create",
		Description: "Post a poll to a Feishu chat. Members vote by reacting with the emoji shown next to each option; only their latest reaction counts.",
	}, s.handleCreate)
}

// ListInput is empty - no input needed
type ListInput struct{}

func (s *PollMCPServer) handleList(ctx context.Context, req *mcp.CallToolRequest, input ListInput) (*mcp.CallToolResult, any, error) {
	polls, err := s.client.ListPolls(ctx)
	if err != nil {
		return nil, nil, err
	}
	if polls == nil {
		polls = []api.PollView{}
	}
	return nil, map[string]any{"polls": polls}, nil
}

// GetInput is the input for poll_get
type GetInput struct {
	ID string `json:"id" jsonschema:"message ID of the poll announcement, e.g. om_xxx"`
}

func (s *PollMCPServer) handleGet(ctx context.Context, req *mcp.CallToolRequest, input GetInput) (*mcp.CallToolResult, any, error) {
	if input.ID == "" {
		return nil, nil, fmt.Errorf("id is required")
	}
	view, err := s.client.GetPoll(ctx, input.ID)
	if err != nil {
		return nil, nil, err
	}
	return nil, view, nil
}

// CreateInput is the input for poll_create
type CreateInput struct {
	ChatID   string   `json:"chat_id" jsonschema:"chat to post the poll in, e.g. oc_xxx"`
	Question string   `json:"question" jsonschema:"the poll question"`
	Options  []string `json:"options" jsonschema:"two or more answer options"`
	Duration string   `json:"duration,omitempty" jsonschema:"optional time until results are announced, e.g. 10m, 1h30m, 2d"`
	Author   string   `json:"author,omitempty" jsonschema:"optional creator shown on the poll"`
}

func (s *PollMCPServer) handleCreate(ctx context.Context, req *mcp.CallToolRequest, input CreateInput) (*mcp.CallToolResult, any, error) {
	view, err := s.client.CreatePoll(ctx, &api.CreatePollRequest{
		ChatID:   input.ChatID,
		Question: input.Question,
		Options:  input.Options,
		Duration: input.Duration,
		Author:   input.Author,
	})
	if err != nil {
		return nil, nil, err
	}
	return nil, view, nil
}

// Run starts the MCP server with stdio transport
func (s *PollMCPServer) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// GetServer returns the underlying MCP server
func (s *PollMCPServer) GetServer() *mcp.Server {
	return s.server
}
