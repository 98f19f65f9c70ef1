package config

import "time"

// Config is the top-level configuration
type Config struct {
	DataDir   string          `json:"dataDir"`
	Lifecycle LifecycleConfig `json:"lifecycle"`
	Channels  ChannelsConfig  `json:"channels"`
	OpenAI    OpenAIConfig    `json:"openai"`
	Memory    MemoryConfig    `json:"memory"`
	Heartbeat HeartbeatConfig `json:"heartbeat"`
	Outbox    OutboxConfig    `json:"outbox"`
	Logging   LoggingConfig   `json:"logging"`
}

// LifecycleConfig tunes the message state machine. All intervals are in
// seconds except StaleAfterMinutes, which matches the coarser granularity
// stale claims are judged at.
type LifecycleConfig struct {
	MaxRetries              int      `json:"maxRetries"`
	CheckLimit              int      `json:"checkLimit"`
	StaleAfterMinutes       int      `json:"staleAfterMinutes"`
	SweepIntervalSeconds    int      `json:"sweepIntervalSeconds"`
	LivenessIntervalSeconds int      `json:"livenessIntervalSeconds"`
	ReplySources            []string `json:"replySources"`
}

// StaleAfter returns the claim age past which a processing entry is
// considered abandoned.
func (l LifecycleConfig) StaleAfter() time.Duration {
	return time.Duration(l.StaleAfterMinutes) * time.Minute
}

// SweepInterval returns the cadence of the recovery sweeps.
func (l LifecycleConfig) SweepInterval() time.Duration {
	return time.Duration(l.SweepIntervalSeconds) * time.Second
}

// LivenessInterval returns the liveness signal cadence for blocking waits.
func (l LifecycleConfig) LivenessInterval() time.Duration {
	return time.Duration(l.LivenessIntervalSeconds) * time.Second
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Slack    SlackConfig    `json:"slack"`
}

type TelegramConfig struct {
	Token        string   `json:"token"`
	AllowedUsers []string `json:"allowedUsers"`
}

type SlackConfig struct {
	BotToken     string   `json:"botToken"`
	AppToken     string   `json:"appToken"`
	AllowedUsers []string `json:"allowedUsers"`
}

// OpenAIConfig covers voice transcription and memory embeddings. An empty
// APIKey disables both and the rest of the system runs without them.
type OpenAIConfig struct {
	APIKey             string `json:"apiKey"`
	BaseURL            string `json:"baseUrl"`
	TranscriptionModel string `json:"transcriptionModel"`
	EmbeddingModel     string `json:"embeddingModel"`
}

// MemoryConfig weights the hybrid memory search. The weights are
// renormalized at use, so they need not sum to one.
type MemoryConfig struct {
	EmbeddingWeight float64 `json:"embeddingWeight"`
	KeywordWeight   float64 `json:"keywordWeight"`
}

type HeartbeatConfig struct {
	Enabled         bool `json:"enabled"`
	IntervalSeconds int  `json:"intervalSeconds"`
}

// Interval returns the heartbeat cadence.
func (h HeartbeatConfig) Interval() time.Duration {
	return time.Duration(h.IntervalSeconds) * time.Second
}

// OutboxConfig tunes the reply dispatcher's catch-up scan, the fallback
// for outbox files whose filesystem event was missed.
type OutboxConfig struct {
	ScanIntervalSeconds int `json:"scanIntervalSeconds"`
}

// ScanInterval returns the catch-up scan cadence.
func (o OutboxConfig) ScanInterval() time.Duration {
	return time.Duration(o.ScanIntervalSeconds) * time.Second
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// DefaultConfig returns a Config with sensible defaults applied.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "~/.pigeonhole",
		Lifecycle: LifecycleConfig{
			MaxRetries:              3,
			CheckLimit:              10,
			StaleAfterMinutes:       5,
			SweepIntervalSeconds:    30,
			LivenessIntervalSeconds: 60,
		},
		OpenAI: OpenAIConfig{
			TranscriptionModel: "whisper-1",
			EmbeddingModel:     "text-embedding-3-small",
		},
		Memory: MemoryConfig{
			EmbeddingWeight: 0.7,
			KeywordWeight:   0.3,
		},
		Heartbeat: HeartbeatConfig{
			Enabled:         true,
			IntervalSeconds: 60,
		},
		Outbox: OutboxConfig{
			ScanIntervalSeconds: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
