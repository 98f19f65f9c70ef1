package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DefaultPath returns the default config location (~/.pigeonhole/config.json).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".pigeonhole", "config.json")
	}
	return filepath.Join(home, ".pigeonhole", "config.json")
}

// Load loads config from the default path.
func Load() (*Config, error) {
	return LoadFromFile(DefaultPath())
}

// LoadOrDefault loads config from path, or from the default path when path
// is empty. A missing file is not an error: the defaults plus environment
// overrides apply, so the tree works out of the box.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	cfg, err := LoadFromFile(path)
	if err == nil {
		return cfg, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	cfg = DefaultConfig()
	applyEnvOverrides(cfg)
	expandDataDir(cfg)
	return cfg, nil
}

// LoadFromFile loads config from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader loads config from an io.Reader, applying defaults and env overrides.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()

	if err := json.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	expandDataDir(cfg)

	return cfg, nil
}

// applyEnvOverrides applies PIGEONHOLE_-prefixed environment variable
// overrides. Log level and format are handled by the logging package so
// they work before any config is read.
func applyEnvOverrides(cfg *Config) {
	envMap := map[string]*string{
		"PIGEONHOLE_DATA_DIR":        &cfg.DataDir,
		"PIGEONHOLE_TELEGRAM_TOKEN":  &cfg.Channels.Telegram.Token,
		"PIGEONHOLE_SLACK_BOT_TOKEN": &cfg.Channels.Slack.BotToken,
		"PIGEONHOLE_SLACK_APP_TOKEN": &cfg.Channels.Slack.AppToken,
		"PIGEONHOLE_OPENAI_API_KEY":  &cfg.OpenAI.APIKey,
		"PIGEONHOLE_OPENAI_BASE_URL": &cfg.OpenAI.BaseURL,
	}

	for env, ptr := range envMap {
		if val := os.Getenv(env); val != "" {
			*ptr = val
		}
	}
}

// expandDataDir expands a leading ~ in the data directory path.
func expandDataDir(cfg *Config) {
	dir := cfg.DataDir
	if len(dir) >= 2 && dir[0] == '~' && dir[1] == '/' {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.DataDir = filepath.Join(home, dir[2:])
		}
	}
}

// MessagesDir returns the root of the message state directories.
func (c *Config) MessagesDir() string { return filepath.Join(c.DataDir, "messages") }

// HistoryDir returns the per-conversation history directory.
func (c *Config) HistoryDir() string { return filepath.Join(c.DataDir, "conversations") }

// MemoryFile returns the long-term memory entries path.
func (c *Config) MemoryFile() string { return filepath.Join(c.DataDir, "memory", "entries.jsonl") }

// MediaDir returns where adapters download attachments to.
func (c *Config) MediaDir() string { return filepath.Join(c.DataDir, "media") }

// TasksFile returns the task list path.
func (c *Config) TasksFile() string { return filepath.Join(c.DataDir, "tasks.json") }

// JobsFile returns the scheduled jobs path.
func (c *Config) JobsFile() string { return filepath.Join(c.DataDir, "scheduled_jobs.json") }

// EmbeddingCacheFile returns the memory embedding cache path.
func (c *Config) EmbeddingCacheFile() string { return filepath.Join(c.DataDir, "embedding_cache.json") }

// HeartbeatFile returns the liveness marker path.
func (c *Config) HeartbeatFile() string { return filepath.Join(c.DataDir, "heartbeat") }
