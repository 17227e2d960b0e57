package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/DevRickLin/feishu-poll-bot/internal/biz/domain"
	"gopkg.in/yaml.v3"
)

// MessagesConfig contains vote symbols and user-facing texts loaded from YAML
type MessagesConfig struct {
	Symbols []SymbolConfig `yaml:"symbols"`
	Poll    PollTexts      `yaml:"poll"`
	Results ResultTexts    `yaml:"results"`
	Replies ReplyTexts     `yaml:"replies"`
}

// SymbolConfig is one vote symbol: a Feishu emoji_type and how to show it
type SymbolConfig struct {
	Type  string `yaml:"type"`
	Label string `yaml:"label"`
}

// PollTexts configures the poll announcement card
type PollTexts struct {
	Title      string `yaml:"title"`
	Color      string `yaml:"color"`
	AuthorNote string `yaml:"author_note"` // {{author}}
}

// ResultTexts configures the results card
type ResultTexts struct {
	Title          string `yaml:"title"`
	Color          string `yaml:"color"`
	CreatorNote    string `yaml:"creator_note"`     // {{author}}
	NotFoundNotice string `yaml:"not_found_notice"` // {{question}}
}

// ReplyTexts are command replies
type ReplyTexts struct {
	NoPermission string `yaml:"no_permission"`
	CreateFailed string `yaml:"create_failed"`
	Usage        string `yaml:"usage"` // {{prefix}}
	Pong         string `yaml:"pong"`
	HelpTitle    string `yaml:"help_title"`
	Help         string `yaml:"help"` // {{prefix}} {{max_options}}
}

// DefaultMessagesConfig returns the built-in messages
func DefaultMessagesConfig() *MessagesConfig {
	return &MessagesConfig{
		Symbols: []SymbolConfig{
			{Type: "THUMBSUP", Label: "👍"},
			{Type: "DONE", Label: "✅"},
			{Type: "HEART", Label: "❤️"},
			{Type: "APPRECIATE", Label: "🙏"},
			{Type: "LAUGH", Label: "😄"},
			{Type: "JIAYI", Label: "➕"},
			{Type: "FINGERHEART", Label: "🫰"},
			{Type: "SURPRISED", Label: "😮"},
			{Type: "CRY", Label: "😢"},
			{Type: "PARTY", Label: "🎉"},
			{Type: "EMBARRASSED", Label: "😳"},
		},
		Poll: PollTexts{
			Title:      "React to vote in the poll.",
			Color:      "purple",
			AuthorNote: "Author {{author}}",
		},
		Results: ResultTexts{
			Title:          "📊 Poll Results",
			Color:          "green",
			CreatorNote:    "Poll created by {{author}}",
			NotFoundNotice: `Poll message for "{{question}}" was not found (maybe deleted?). Cannot announce results.`,
		},
		Replies: ReplyTexts{
			NoPermission: "You don't have administrator permissions to use this command.",
			CreateFailed: "An error occurred while creating the poll. Please check the bot's permissions and try again.",
			Usage:        `Usage: {{prefix}}poll [duration] "question" "option 1" "option 2" [...]`,
			Pong:         "Pong!",
			HelpTitle:    "Poll Bot Help",
			Help: "**{{prefix}}poll [duration] \"question\" \"option 1\" \"option 2\" ...**\n" +
				"Create a poll with up to {{max_options}} options. Vote by reacting with the option's emoji; " +
				"only your latest reaction counts.\n" +
				"Duration is optional, e.g. `10s`, `5m`, `1h30m`, `2d`. Without it the poll stays open.\n\n" +
				"**{{prefix}}ping**\nCheck that the bot is alive.",
		},
	}
}

// LoadMessagesConfig loads messages configuration from a YAML file
func LoadMessagesConfig(configPath string) (*MessagesConfig, error) {
	// Try multiple paths
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/messages.yaml",
			"/etc/feishu-poll-bot/messages.yaml",
		}
		// Add path relative to executable
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "messages.yaml"))
		}
	}

	var data []byte
	var loadedPath string
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err == nil {
			data, loadedPath = b, p
			break
		}
	}

	if data == nil {
		if configPath != "" {
			return nil, fmt.Errorf("failed to read %s", configPath)
		}
		fmt.Println("[Config] No messages.yaml found, using defaults")
		return DefaultMessagesConfig(), nil
	}

	fmt.Printf("[Config] Loading messages from: %s\n", loadedPath)

	var config MessagesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse messages.yaml: %w", err)
	}

	config.fillDefaults()

	return &config, nil
}

// fillDefaults fills in default values for empty fields
func (c *MessagesConfig) fillDefaults() {
	defaults := DefaultMessagesConfig()

	if len(c.Symbols) == 0 {
		c.Symbols = defaults.Symbols
	}

	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&c.Poll.Title, defaults.Poll.Title)
	fill(&c.Poll.Color, defaults.Poll.Color)
	fill(&c.Poll.AuthorNote, defaults.Poll.AuthorNote)
	fill(&c.Results.Title, defaults.Results.Title)
	fill(&c.Results.Color, defaults.Results.Color)
	fill(&c.Results.CreatorNote, defaults.Results.CreatorNote)
	fill(&c.Results.NotFoundNotice, defaults.Results.NotFoundNotice)
	fill(&c.Replies.NoPermission, defaults.Replies.NoPermission)
	fill(&c.Replies.CreateFailed, defaults.Replies.CreateFailed)
	fill(&c.Replies.Usage, defaults.Replies.Usage)
	fill(&c.Replies.Pong, defaults.Replies.Pong)
	fill(&c.Replies.HelpTitle, defaults.Replies.HelpTitle)
	fill(&c.Replies.Help, defaults.Replies.Help)
}

// SymbolSet converts the configured symbols into a validated domain.SymbolSet
func (c *MessagesConfig) SymbolSet() (domain.SymbolSet, error) {
	symbols := make([]domain.Symbol, 0, len(c.Symbols))
	for _, s := range c.Symbols {
		symbols = append(symbols, domain.Symbol{Type: strings.TrimSpace(s.Type), Label: s.Label})
	}
	return domain.NewSymbolSet(symbols)
}

// Render replaces {{key}} placeholders in a template
func Render(tmpl string, vars map[string]string) string {
	for k, v := range vars {
		tmpl = strings.ReplaceAll(tmpl, "{{"+k+"}}", v)
	}
	return tmpl
}
