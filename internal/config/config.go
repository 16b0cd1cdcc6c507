package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Database      DatabaseConfig   `json:"database"`
	Port          int              `json:"port"`
	JWTSecret     string           `json:"jwt_secret"`
	JWTTTLHours   int              `json:"jwt_ttl_hours"`
	LogConfig     logger.LogConfig `json:"log_config"`
	FileStore     FileStoreConfig  `json:"file_store"`
	AI            AIConfig         `json:"ai"`
	Worker        WorkerConfig     `json:"worker"`
	Chunker       ChunkerConfig    `json:"chunker"`
	Jobs          JobsConfig       `json:"jobs"`
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

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type AIConfig struct {
	Provider      string      `json:"provider"`
	Model         string      `json:"model"`
	Data          interface{} `json:"data"`
	TimeoutSec    int         `json:"timeout_sec"`
	CacheSize     int         `json:"cache_size"`
	CacheTTLHours int         `json:"cache_ttl_hours"`
}

type WorkerConfig struct {
	PoolSize     int `json:"pool_size"`
	QueueSize    int `json:"queue_size"`
	BatchSize    int `json:"batch_size"`
	MaxAttempts  int `json:"max_attempts"`
	RetryBaseMS  int `json:"retry_base_ms"`
	EmbedTimeout int `json:"embed_timeout_sec"`
}

type ChunkerConfig struct {
	TargetChars  int `json:"target_chars"`
	OverlapChars int `json:"overlap_chars"`
}

type JobsConfig struct {
	ResyncSpec         string `json:"resync_spec"`
	ReclaimSpec        string `json:"reclaim_spec"`
	ReclaimDeadlineSec int64  `json:"reclaim_deadline_sec"`
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
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.Model == "" {
		return nil, fmt.Errorf("ai.model is required")
	}
	if cfg.AI.TimeoutSec <= 0 {
		cfg.AI.TimeoutSec = 30
	}
	if cfg.Worker.PoolSize <= 0 {
		cfg.Worker.PoolSize = 4
	}
	if cfg.Worker.QueueSize <= 0 {
		cfg.Worker.QueueSize = 256
	}
	if cfg.Worker.BatchSize <= 0 {
		cfg.Worker.BatchSize = 16
	}
	if cfg.Worker.MaxAttempts <= 0 {
		cfg.Worker.MaxAttempts = 3
	}
	if cfg.Worker.RetryBaseMS <= 0 {
		cfg.Worker.RetryBaseMS = 500
	}
	if cfg.Worker.EmbedTimeout <= 0 {
		cfg.Worker.EmbedTimeout = cfg.AI.TimeoutSec
	}
	if cfg.Chunker.TargetChars <= 0 {
		cfg.Chunker.TargetChars = 1000
	}
	if cfg.Chunker.OverlapChars < 0 || cfg.Chunker.OverlapChars >= cfg.Chunker.TargetChars {
		cfg.Chunker.OverlapChars = 100
	}
	if cfg.Jobs.ResyncSpec == "" {
		cfg.Jobs.ResyncSpec = "*/5 * * * *"
	}
	if cfg.Jobs.ReclaimSpec == "" {
		cfg.Jobs.ReclaimSpec = "*/10 * * * *"
	}
	if cfg.Jobs.ReclaimDeadlineSec <= 0 {
		cfg.Jobs.ReclaimDeadlineSec = 1800
	}
	return &cfg, nil
}
