package domain

// Message is a resolved message: it exists and belongs to ChatID
type Message struct {
	ID     string
	ChatID string
}

// Chat represents a chat the bot can post to
type Chat struct {
	ChatID  string
	Name    string
	OwnerID string
}

// Card is a rich message payload: a titled card with a markdown body and a footnote
type Card struct {
	Title string
	Body  string // lark_md
	Note  string // lark_md footer, optional
	Color string // header template, e.g. purple
}
