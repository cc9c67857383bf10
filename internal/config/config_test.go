package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_SLACK_TOKEN", "xoxb-secret")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
slack:
  enabled: true
  bot_token: ${TEST_SLACK_TOKEN}
storage:
  backend: sqlite
  sqlite:
    path: /tmp/test.db
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Slack.BotToken != "xoxb-secret" {
		t.Errorf("bot token = %q, want expanded env value", cfg.Slack.BotToken)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("backend = %q", cfg.Storage.Backend)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("default backend = %q", cfg.Storage.Backend)
	}
	if cfg.Calendar.DefaultDurationMinutes != 30 {
		t.Errorf("default duration = %d", cfg.Calendar.DefaultDurationMinutes)
	}
	if cfg.Slack.DaysBack != 7 {
		t.Errorf("default days back = %d", cfg.Slack.DaysBack)
	}
}
