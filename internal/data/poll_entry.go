package data

import (
	"time"

	"github.com/DevRickLin/feishu-poll-bot/internal/biz/domain"
)

// pollEntry is the persisted form of a poll, shared by the json and redis stores.
// Times are Unix milliseconds.
type pollEntry struct {
	ChannelID string   `json:"channelId"`
	MessageID string   `json:"messageId"`
	Question  string   `json:"question"`
	Options   []string `json:"options"`
	EndTime   *int64   `json:"endTime,omitempty"`
	AuthorTag string   `json:"authorTag"`
	CreatedAt int64    `json:"createdAt,omitempty"`
}

func toPollEntry(p *domain.Poll) pollEntry {
	e := pollEntry{
		ChannelID: p.ChatID,
		MessageID: p.ID,
		Question:  p.Question,
		Options:   append([]string(nil), p.Options...),
		AuthorTag: p.AuthorTag,
		CreatedAt: p.CreatedAt.UnixMilli(),
	}
	if p.EndTime != nil {
		ms := p.EndTime.UnixMilli()
		e.EndTime = &ms
	}
	return e
}

func (e pollEntry) toPoll(id string) *domain.Poll {
	p := &domain.Poll{
		ID:        e.MessageID,
		ChatID:    e.ChannelID,
		Question:  e.Question,
		Options:   append([]string(nil), e.Options...),
		AuthorTag: e.AuthorTag,
	}
	if p.ID == "" {
		p.ID = id
	}
	if e.CreatedAt > 0 {
		p.CreatedAt = time.UnixMilli(e.CreatedAt)
	}
	if e.EndTime != nil {
		end := time.UnixMilli(*e.EndTime)
		p.EndTime = &end
	}
	return p
}
