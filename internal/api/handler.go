package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/DevRickLin/feishu-poll-bot/internal/biz/domain"
	"github.com/dustin/go-humanize"
)

// PollService is the part of the poll lifecycle exposed over HTTP
type PollService interface {
	CreatePoll(ctx context.Context, req *domain.PollRequest) (*domain.Poll, error)
	GetPoll(ctx context.Context, id string) (*domain.Poll, error)
	ListPolls(ctx context.Context) ([]*domain.Poll, error)
	Symbols() domain.SymbolSet
}

// Server provides a local HTTP API for pollctl and poll-mcp
type Server struct {
	pollSvc PollService
	now     func() time.Time

	server *http.Server
	port   int
}

// PollView is the JSON shape of a stored poll
type PollView struct {
	ID        string       `json:"id"`
	ChatID    string       `json:"chat_id"`
	Question  string       `json:"question"`
	Options   []OptionView `json:"options"`
	EndTime   *time.Time   `json:"end_time,omitempty"`
	Ends      string       `json:"ends"`
	AuthorTag string       `json:"author_tag,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	OpenEnded bool         `json:"open_ended"`
	Overdue   bool         `json:"overdue"` // Ended but results not announced yet
}

// OptionView is one option with the reaction that votes for it
type OptionView struct {
	Text   string `json:"text"`
	Symbol string `json:"symbol"`
	Label  string `json:"label"`
}

// CreatePollRequest is the body of POST /api/polls
type CreatePollRequest struct {
	ChatID   string   `json:"chat_id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Duration string   `json:"duration"` // e.g. 1h30m, empty for no automatic close
	Author   string   `json:"author"`
}

// NewServer creates a new API server
func NewServer(pollSvc PollService, port int) *Server {
	return &Server{
		pollSvc: pollSvc,
		now:     time.Now,
		port:    port,
	}
}

// Handler returns the routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/polls", s.handlePolls)
	mux.HandleFunc("/api/polls/", s.handlePollItem)

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}

// Start starts the HTTP server (blocking)
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Printf("[API] Starting HTTP server on port %d\n", s.port)
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Shutdown(context.Background())
	}
	return nil
}

// GetPort returns the server port
func (s *Server) GetPort() int {
	return s.port
}

func (s *Server) handlePolls(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		polls, err := s.pollSvc.ListPolls(ctx)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		views := make([]PollView, 0, len(polls))
		for _, p := range polls {
			views = append(views, s.toView(p))
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"polls": views})

	case http.MethodPost:
		var req CreatePollRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.ChatID == "" {
			http.Error(w, "chat_id is required", http.StatusBadRequest)
			return
		}

		var d time.Duration
		if req.Duration != "" {
			parsed, ok := domain.ParseDuration(req.Duration)
			if !ok {
				s.writeError(w, http.StatusBadRequest, &domain.ValidationError{
					Message: fmt.Sprintf("Invalid duration %q. Use e.g. 10s, 5m, 1h30m, 2d.", req.Duration),
				})
				return
			}
			d = parsed
		}

		poll, err := s.pollSvc.CreatePoll(ctx, &domain.PollRequest{
			ChatID:    req.ChatID,
			Question:  req.Question,
			Options:   req.Options,
			Duration:  d,
			AuthorTag: req.Author,
		})
		if err != nil {
			if domain.IsValidationError(err) {
				s.writeError(w, http.StatusBadRequest, err)
				return
			}
			s.writeError(w, http.StatusBadGateway, err)
			return
		}
		fmt.Printf("[API] Created poll %s in %s\n", poll.ID, poll.ChatID)
		s.writeJSON(w, http.StatusCreated, s.toView(poll))

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handlePollItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/polls/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}

	poll, err := s.pollSvc.GetPoll(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if poll == nil {
		http.Error(w, "poll not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, s.toView(poll))
}

func (s *Server) toView(p *domain.Poll) PollView {
	symbols := s.pollSvc.Symbols().ForPoll(p)
	options := make([]OptionView, len(p.Options))
	for i, text := range p.Options {
		options[i] = OptionView{Text: text}
		if i < len(symbols) {
			options[i].Symbol = symbols[i].Type
			options[i].Label = symbols[i].Display()
		}
	}

	ends := "never"
	if p.EndTime != nil {
		ends = humanize.RelTime(*p.EndTime, s.now(), "ago", "from now")
	}

	return PollView{
		ID:        p.ID,
		ChatID:    p.ChatID,
		Question:  p.Question,
		Options:   options,
		EndTime:   p.EndTime,
		Ends:      ends,
		AuthorTag: p.AuthorTag,
		CreatedAt: p.CreatedAt,
		OpenEnded: p.IsOpenEnded(),
		Overdue:   p.IsExpired(s.now()),
	}
}

// ============ Helpers ============

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
