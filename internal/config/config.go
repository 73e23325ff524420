package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/xxxsen/common/logger"
)

const (
	envJWTSecret    = "STUDYMATE_JWT_SECRET"
	envDatabaseDSN  = "STUDYMATE_DB_DSN"
	envGeminiAPIKey = "GEMINI_API_KEY"
)

type Config struct {
	Database           DatabaseConfig   `json:"database"`
	JWTSecret          string           `json:"jwt_secret"`
	JWTTTLHours        int              `json:"jwt_ttl_hours"`
	Port               int              `json:"port"`
	LogConfig          logger.LogConfig `json:"log_config"`
	FileStore          FileStoreConfig  `json:"file_store"`
	Upload             UploadConfig     `json:"upload"`
	Ingest             IngestConfig     `json:"ingest"`
	AI                 AIConfig         `json:"ai"`
	CORSOrigins        []string         `json:"cors_origins"`
	AIRateLimitSeconds int              `json:"ai_rate_limit_seconds"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type UploadConfig struct {
	MaxBytes int64 `json:"max_bytes"`
}

type RetryConfig struct {
	MaxRetries        int `json:"max_retries"`
	InitialIntervalMs int `json:"initial_interval_ms"`
	MaxIntervalMs     int `json:"max_interval_ms"`
}

type IngestConfig struct {
	TargetSize         int         `json:"target_size"`
	Overlap            int         `json:"overlap"`
	Workers            int         `json:"workers"`
	QueueSize          int         `json:"queue_size"`
	TaskTimeoutSeconds int         `json:"task_timeout_seconds"`
	StaleAfterMinutes  int         `json:"stale_after_minutes"`
	StaleCheckSpec     string      `json:"stale_check_spec"`
	PDFToolPath        string      `json:"pdftotext_path"`
	Retry              RetryConfig `json:"retry"`
}

type AIConfig struct {
	Provider      string             `json:"provider"`
	Model         string             `json:"model"`
	Timeout       int                `json:"timeout"`
	MaxInputChars int                `json:"max_input_chars"`
	SummaryCache  SummaryCacheConfig `json:"summary_cache"`
	Data          interface{}        `json:"data"`
	Fallbacks     []AIFallbackConfig `json:"fallbacks"`
}

type AIFallbackConfig struct {
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type SummaryCacheConfig struct {
	Size       int `json:"size"`
	TTLMinutes int `json:"ttl_minutes"`
}

func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(envJWTSecret)); v != "" {
		cfg.JWTSecret = v
	}
	if v := strings.TrimSpace(os.Getenv(envDatabaseDSN)); v != "" {
		cfg.Database.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(envGeminiAPIKey)); v != "" {
		data, _ := cfg.AI.Data.(map[string]interface{})
		if data == nil {
			data = map[string]interface{}{}
		}
		if existing, _ := data["api_key"].(string); strings.TrimSpace(existing) == "" {
			data["api_key"] = v
		}
		cfg.AI.Data = data
	}
}

func applyDefaults(cfg *Config) {
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.Upload.MaxBytes <= 0 {
		cfg.Upload.MaxBytes = 10 * 1024 * 1024
	}
	if cfg.Ingest.TargetSize <= 0 {
		cfg.Ingest.TargetSize = 500
	}
	if cfg.Ingest.Overlap <= 0 {
		cfg.Ingest.Overlap = 50
	}
	if cfg.Ingest.Workers <= 0 {
		cfg.Ingest.Workers = 2
	}
	if cfg.Ingest.QueueSize <= 0 {
		cfg.Ingest.QueueSize = 64
	}
	if cfg.Ingest.StaleAfterMinutes <= 0 {
		cfg.Ingest.StaleAfterMinutes = 30
	}
	if cfg.Ingest.StaleCheckSpec == "" {
		cfg.Ingest.StaleCheckSpec = "*/5 * * * *"
	}
	if cfg.Ingest.Retry.InitialIntervalMs <= 0 {
		cfg.Ingest.Retry.InitialIntervalMs = 500
	}
	if cfg.Ingest.Retry.MaxIntervalMs <= 0 {
		cfg.Ingest.Retry.MaxIntervalMs = 10000
	}
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "gemini"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "gemini-2.5-flash-lite"
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = 60
	}
	if cfg.AI.MaxInputChars <= 0 {
		cfg.AI.MaxInputChars = 15000
	}
	if cfg.AI.SummaryCache.Size <= 0 {
		cfg.AI.SummaryCache.Size = 128
	}
	if cfg.AI.SummaryCache.TTLMinutes <= 0 {
		cfg.AI.SummaryCache.TTLMinutes = 60
	}
	if cfg.AIRateLimitSeconds < 0 {
		cfg.AIRateLimitSeconds = 0
	}
}

func (c *Config) validate() error {
	if c.Database.DSN == "" && c.Database.Host == "" {
		return fmt.Errorf("database.dsn or database.host is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if c.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if c.Ingest.Overlap >= c.Ingest.TargetSize {
		return fmt.Errorf("ingest.overlap must be smaller than ingest.target_size")
	}
	if c.Ingest.Retry.MaxRetries < 0 {
		return fmt.Errorf("ingest.retry.max_retries must not be negative")
	}
	switch c.FileStore.Type {
	case "local", "s3":
	default:
		return fmt.Errorf("file_store.type must be local or s3")
	}
	return nil
}
