package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Store backends
const (
	StoreSQLite = "sqlite"
	StoreJSON   = "json"
	StoreRedis  = "redis"
)

// Config represents application configuration
type Config struct {
	// Feishu configuration
	Feishu FeishuConfig

	// Poll store configuration
	Store StoreConfig

	// Command surface configuration
	Command CommandConfig

	// Admin API configuration
	API APIConfig

	// Messages and vote symbols (loaded from YAML)
	Messages *MessagesConfig

	// Debug mode
	Debug bool
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string
	AppSecret string
}

// StoreConfig selects and locates the poll store
type StoreConfig struct {
	Backend        string // sqlite, json, redis
	DBPath         string
	JSONPath       string
	RedisURL       string
	RedisKeyPrefix string
}

// CommandConfig contains chat command settings
type CommandConfig struct {
	Prefix string
	Admins []string // open_ids with elevated permission in every chat
}

// APIConfig contains admin API settings
type APIConfig struct {
	Port int // 0 disables the API
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".feishu-poll")

	dbPath := os.Getenv("POLL_DB_PATH")
	if dbPath == "" {
		dbPath = filepath.Join(dataDir, "polls.db")
	}

	jsonPath := os.Getenv("POLL_JSON_PATH")
	if jsonPath == "" {
		jsonPath = filepath.Join(dataDir, "activePolls.json")
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("POLL_STORE")))
	if backend == "" {
		backend = StoreSQLite
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}

	redisPrefix, ok := os.LookupEnv("REDIS_KEY_PREFIX")
	if !ok {
		redisPrefix = "pollbot:"
	}

	prefix := os.Getenv("COMMAND_PREFIX")
	if prefix == "" {
		prefix = "!"
	}

	apiPort := 9877
	if val := os.Getenv("API_PORT"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			apiPort = parsed
		}
	}

	// Load messages from YAML; a broken file falls back to defaults
	messages, err := LoadMessagesConfig(os.Getenv("MESSAGES_CONFIG_PATH"))
	if err != nil {
		fmt.Printf("[Config] %v, using default messages\n", err)
		messages = DefaultMessagesConfig()
	}

	return &Config{
		Feishu: FeishuConfig{
			AppID:     os.Getenv("FEISHU_APP_ID"),
			AppSecret: os.Getenv("FEISHU_APP_SECRET"),
		},
		Store: StoreConfig{
			Backend:        backend,
			DBPath:         dbPath,
			JSONPath:       jsonPath,
			RedisURL:       redisURL,
			RedisKeyPrefix: redisPrefix,
		},
		Command: CommandConfig{
			Prefix: prefix,
			Admins: splitList(os.Getenv("POLL_ADMINS")),
		},
		API: APIConfig{
			Port: apiPort,
		},
		Messages: messages,
		Debug:    os.Getenv("DEBUG") == "true",
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
		return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required"}
	}
	switch c.Store.Backend {
	case StoreSQLite, StoreJSON, StoreRedis:
	default:
		return &ConfigError{Field: "POLL_STORE", Message: "must be sqlite, json or redis, got " + strconv.Quote(c.Store.Backend)}
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		return &ConfigError{Field: "API_PORT", Message: "out of range"}
	}
	if c.Messages == nil {
		return &ConfigError{Field: "MESSAGES_CONFIG_PATH", Message: "messages not loaded"}
	}
	if _, err := c.Messages.SymbolSet(); err != nil {
		return &ConfigError{Field: "symbols", Message: err.Error()}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
