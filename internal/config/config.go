package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port          int              `json:"port"`
	LogConfig     logger.LogConfig `json:"log_config"`
	Database      DatabaseConfig   `json:"database"`
	Auth          AuthConfig       `json:"auth"`
	AI            AIConfig         `json:"ai"`
	Retrieval     RetrievalConfig  `json:"retrieval"`
	Chat          ChatConfig       `json:"chat"`
	Warmup        WarmupConfig     `json:"warmup"`
	EmbedCache    EmbedCacheConfig `json:"embed_cache"`
	FileStore     FileStoreConfig  `json:"file_store"`
	CORSAllowlist []string         `json:"cors_allowlist"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type AuthConfig struct {
	Enable    bool   `json:"enable"`
	JWTSecret string `json:"jwt_secret"`
	TTLHours  int    `json:"ttl_hours"`
}

type AIConfig struct {
	Provider      string      `json:"provider"`
	Model         string      `json:"model"`
	Data          interface{} `json:"data"`
	EmbedProvider string      `json:"embed_provider"`
	EmbedModel    string      `json:"embed_model"`
	EmbedData     interface{} `json:"embed_data"`
	// TimeoutSeconds bounds one synchronous generation; StreamIdleSeconds
	// bounds the gap between consecutive streamed chunks.
	TimeoutSeconds    int        `json:"timeout_seconds"`
	StreamIdleSeconds int        `json:"stream_idle_seconds"`
	Options           GenOptions `json:"options"`
}

type GenOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	NumCtx      *int     `json:"num_ctx,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

type RetrievalConfig struct {
	Collection    string    `json:"collection"`
	TopK          int       `json:"top_k"`
	CacheSize     int       `json:"cache_size"`
	CacheTTLMin   int       `json:"cache_ttl_minutes"`
	RetryAttempts int       `json:"retry_attempts"`
	RetryBaseMs   int       `json:"retry_base_ms"`
	MaxQueryChars int       `json:"max_query_chars"`
	MMR           MMRConfig `json:"mmr"`
}

type MMRConfig struct {
	Enable bool    `json:"enable"`
	Lambda float64 `json:"lambda"`
}

type ChatConfig struct {
	HistoryWindow  int    `json:"history_window"`
	MaxPromptChars int    `json:"max_prompt_chars"`
	SystemPrompt   string `json:"system_prompt"`
}

type WarmupConfig struct {
	Enable      bool     `json:"enable"`
	IntervalMin int      `json:"interval_minutes"`
	Models      []string `json:"models"`
}

type EmbedCacheConfig struct {
	Size          int  `json:"size"`
	TTLMin        int  `json:"ttl_minutes"`
	Persist       bool `json:"persist"`
	KeepDays      int  `json:"keep_days"`
	CleanupHourly bool `json:"cleanup_hourly"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.Model == "" {
		return nil, fmt.Errorf("ai.model is required")
	}
	if cfg.AI.EmbedProvider == "" {
		cfg.AI.EmbedProvider = cfg.AI.Provider
	}
	if cfg.AI.EmbedModel == "" {
		return nil, fmt.Errorf("ai.embed_model is required")
	}
	if cfg.AI.EmbedData == nil {
		cfg.AI.EmbedData = cfg.AI.Data
	}
	if cfg.Auth.Enable && cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is required when auth is enabled")
	}
	if cfg.Auth.TTLHours == 0 {
		cfg.Auth.TTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = 120
	}
	if cfg.AI.StreamIdleSeconds == 0 {
		cfg.AI.StreamIdleSeconds = 60
	}
	if cfg.Retrieval.Collection == "" {
		cfg.Retrieval.Collection = "documents"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Retrieval.CacheSize == 0 {
		cfg.Retrieval.CacheSize = 100
	}
	if cfg.Retrieval.CacheTTLMin == 0 {
		cfg.Retrieval.CacheTTLMin = 30
	}
	if cfg.Retrieval.RetryAttempts == 0 {
		cfg.Retrieval.RetryAttempts = 3
	}
	if cfg.Retrieval.RetryBaseMs == 0 {
		cfg.Retrieval.RetryBaseMs = 500
	}
	if cfg.Retrieval.MaxQueryChars == 0 {
		cfg.Retrieval.MaxQueryChars = 4000
	}
	if cfg.Retrieval.MMR.Lambda == 0 {
		cfg.Retrieval.MMR.Lambda = 0.5
	}
	if cfg.Chat.HistoryWindow == 0 {
		cfg.Chat.HistoryWindow = 10
	}
	if cfg.Chat.MaxPromptChars == 0 {
		cfg.Chat.MaxPromptChars = 24000
	}
	if cfg.Warmup.IntervalMin == 0 {
		cfg.Warmup.IntervalMin = 15
	}
	if len(cfg.Warmup.Models) == 0 {
		cfg.Warmup.Models = []string{cfg.AI.Model}
	}
	if cfg.EmbedCache.Size == 0 {
		cfg.EmbedCache.Size = 1000
	}
	if cfg.EmbedCache.TTLMin == 0 {
		cfg.EmbedCache.TTLMin = 60
	}
	if cfg.EmbedCache.KeepDays == 0 {
		cfg.EmbedCache.KeepDays = 30
	}
	return &cfg, nil
}
