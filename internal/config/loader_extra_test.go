package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFromFileValid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{"logging": {"level": "debug"}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected level %q, got %q", "debug", cfg.Logging.Level)
	}
}

func TestLoadFromFileInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("{not valid json"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFromFile(path)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadOrDefault failed: %v", err)
	}
	if cfg.Lifecycle.MaxRetries != 3 {
		t.Errorf("expected defaults, got maxRetries %d", cfg.Lifecycle.MaxRetries)
	}
}

func TestLoadOrDefaultBadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("]["), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOrDefault(path); err == nil {
		t.Fatal("a present-but-broken config must not silently fall back to defaults")
	}
}

func TestEnvOverrideDataDir(t *testing.T) {
	os.Setenv("PIGEONHOLE_DATA_DIR", "/tmp/env-pigeonhole")
	defer os.Unsetenv("PIGEONHOLE_DATA_DIR")

	cfg, err := LoadFromReader(strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("LoadFromReader failed: %v", err)
	}
	if cfg.DataDir != "/tmp/env-pigeonhole" {
		t.Errorf("expected dataDir %q, got %q", "/tmp/env-pigeonhole", cfg.DataDir)
	}
}

func TestTildeExpansionInDataDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home dir")
	}

	cfg, err := LoadFromReader(strings.NewReader(`{"dataDir": "~/relay-data"}`))
	if err != nil {
		t.Fatalf("LoadFromReader failed: %v", err)
	}

	expected := filepath.Join(home, "relay-data")
	if cfg.DataDir != expected {
		t.Errorf("expected expanded dataDir %q, got %q", expected, cfg.DataDir)
	}
}

func TestNoTildeExpansionForAbsolutePath(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(`{"dataDir": "/absolute/path"}`))
	if err != nil {
		t.Fatalf("LoadFromReader failed: %v", err)
	}
	if cfg.DataDir != "/absolute/path" {
		t.Errorf("expected unchanged path %q, got %q", "/absolute/path", cfg.DataDir)
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := &Config{DataDir: "/srv/ph"}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"messages", cfg.MessagesDir(), "/srv/ph/messages"},
		{"conversations", cfg.HistoryDir(), "/srv/ph/conversations"},
		{"media", cfg.MediaDir(), "/srv/ph/media"},
		{"memory", cfg.MemoryFile(), "/srv/ph/memory/entries.jsonl"},
		{"tasks", cfg.TasksFile(), "/srv/ph/tasks.json"},
		{"jobs", cfg.JobsFile(), "/srv/ph/scheduled_jobs.json"},
		{"embeddingCache", cfg.EmbeddingCacheFile(), "/srv/ph/embedding_cache.json"},
		{"heartbeat", cfg.HeartbeatFile(), "/srv/ph/heartbeat"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, tc.got)
			}
		})
	}
}

func TestAllSecretEnvOverrides(t *testing.T) {
	envVars := map[string]string{
		"PIGEONHOLE_TELEGRAM_TOKEN":  "tg-token",
		"PIGEONHOLE_SLACK_BOT_TOKEN": "xoxb-env",
		"PIGEONHOLE_SLACK_APP_TOKEN": "xapp-env",
		"PIGEONHOLE_OPENAI_BASE_URL": "https://proxy.example/v1",
	}
	for k, v := range envVars {
		os.Setenv(k, v)
	}
	defer func() {
		for k := range envVars {
			os.Unsetenv(k)
		}
	}()

	cfg, err := LoadFromReader(strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("LoadFromReader failed: %v", err)
	}

	checks := []struct{ got, want string }{
		{cfg.Channels.Telegram.Token, "tg-token"},
		{cfg.Channels.Slack.BotToken, "xoxb-env"},
		{cfg.Channels.Slack.AppToken, "xapp-env"},
		{cfg.OpenAI.BaseURL, "https://proxy.example/v1"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("expected %q, got %q", c.want, c.got)
		}
	}
}
