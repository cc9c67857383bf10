package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the communication centralizer.
type Config struct {
	Gmail     GmailConfig     `yaml:"gmail"`
	Slack     SlackConfig     `yaml:"slack"`
	Discord   DiscordConfig   `yaml:"discord"`
	LinkedIn  LinkedInConfig  `yaml:"linkedin"`
	Handshake HandshakeConfig `yaml:"handshake"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Storage   StorageConfig   `yaml:"storage"`
	LLM       LLMConfig       `yaml:"llm"`
	Calendly  CalendlyConfig  `yaml:"calendly"`
	Calendar  CalendarConfig  `yaml:"calendar"`
	Pushover  PushoverConfig  `yaml:"pushover"`
	Server    ServerConfig    `yaml:"server"`
}

type GmailConfig struct {
	Enabled         bool   `yaml:"enabled"`
	CredentialsPath string `yaml:"credentials_path"`
	TokenPath       string `yaml:"token_path"`
	MaxResults      int64  `yaml:"max_results"`
}

type SlackConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	DaysBack int    `yaml:"days_back"`
}

type DiscordConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	DaysBack int    `yaml:"days_back"`
}

type LinkedInConfig struct {
	Enabled        bool   `yaml:"enabled"`
	APIKey         string `yaml:"api_key"`
	MessageAgentID string `yaml:"message_agent_id"`
	WaitSeconds    int    `yaml:"wait_seconds"`
}

type HandshakeConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Headless   bool   `yaml:"headless"`
	MaxThreads int    `yaml:"max_threads"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	AppID    int    `yaml:"app_id"`
	AppHash  string `yaml:"app_hash"`
	Phone    string `yaml:"phone"`
	DataPath string `yaml:"data_path"`
	Dialogs  int    `yaml:"dialogs"`
	PerPeer  int    `yaml:"per_peer"`
}

type StorageConfig struct {
	Backend string       `yaml:"backend"` // "sheets" or "sqlite"
	Sheets  SheetsConfig `yaml:"sheets"`
	SQLite  SQLiteConfig `yaml:"sqlite"`
}

type SheetsConfig struct {
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	CredentialsPath string `yaml:"credentials_path"`
	TokenPath       string `yaml:"token_path"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type LLMConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

type CalendlyConfig struct {
	APIKey       string `yaml:"api_key"`
	User         string `yaml:"user"`
	DefaultLink  string `yaml:"default_link"`
	FallbackLink string `yaml:"fallback_link"`
}

type CalendarConfig struct {
	Enabled                bool   `yaml:"enabled"`
	CredentialsPath        string `yaml:"credentials_path"`
	TokenPath              string `yaml:"token_path"`
	CalendarID             string `yaml:"calendar_id"`
	DefaultDurationMinutes int    `yaml:"default_duration_minutes"`
}

type PushoverConfig struct {
	AppToken  string `yaml:"app_token"`
	UserToken string `yaml:"user_token"`
}

type ServerConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads configuration from a YAML file. Environment variable references
// in the file (${VAR}) are expanded before parsing so tokens can live outside
// the config itself.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Gmail: GmailConfig{
			Enabled:         true,
			CredentialsPath: "./credentials.json",
			TokenPath:       "./gmail-token.json",
			MaxResults:      50,
		},
		Slack: SlackConfig{
			Enabled:  true,
			DaysBack: 7,
		},
		Discord: DiscordConfig{
			Enabled:  true,
			DaysBack: 7,
		},
		LinkedIn: LinkedInConfig{
			Enabled:     false,
			WaitSeconds: 300,
		},
		Handshake: HandshakeConfig{
			Enabled:    false,
			Headless:   true,
			MaxThreads: 10,
		},
		Telegram: TelegramConfig{
			Enabled:  false,
			DataPath: "./data/telegram",
			Dialogs:  20,
			PerPeer:  20,
		},
		Storage: StorageConfig{
			Backend: "sqlite",
			SQLite: SQLiteConfig{
				Path: "./data/commhub.db",
			},
			Sheets: SheetsConfig{
				CredentialsPath: "./credentials.json",
				TokenPath:       "./sheets-token.json",
			},
		},
		Calendar: CalendarConfig{
			Enabled:                false,
			CredentialsPath:        "./credentials.json",
			TokenPath:              "./calendar-token.json",
			CalendarID:             "primary",
			DefaultDurationMinutes: 30,
		},
		Server: ServerConfig{
			Enabled: false,
			Port:    8080,
		},
	}
}
