package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Qdrant    QdrantConfig    `mapstructure:"qdrant"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Chunking  ChunkingConfig  `mapstructure:"chunking"`
}

type ServerConfig struct {
	Port          int           `mapstructure:"port"`
	Mode          string        `mapstructure:"mode"`
	MaxUploadMB   int64         `mapstructure:"max_upload_mb"`
	StreamPoll    time.Duration `mapstructure:"stream_poll"`
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`
	CORS          CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// AuthConfig names the header an upstream gateway uses to pass the authenticated user ID.
type AuthConfig struct {
	UserHeader string `mapstructure:"user_header"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	FileOnly   bool   `mapstructure:"file_only"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres
	Path            string        `mapstructure:"path"`   // sqlite file path
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// DSN builds the driver-specific connection string.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	}
	return c.Path
}

// StorageConfig selects where uploaded bytes live.
// Type is one of: local, s3, r2, s3compatible.
type StorageConfig struct {
	Type      string `mapstructure:"type"`
	LocalDir  string `mapstructure:"local_dir"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
}

type EmbeddingConfig struct {
	Model      string        `mapstructure:"model"`
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Dimensions int           `mapstructure:"dimensions"`
	BatchSize  int           `mapstructure:"batch_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type LLMConfig struct {
	Model     string        `mapstructure:"model"`
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type IngestConfig struct {
	Workers        int           `mapstructure:"workers"`
	QueueSize      int           `mapstructure:"queue_size"`
	JobTimeout     time.Duration `mapstructure:"job_timeout"`
	UpsertParallel int           `mapstructure:"upsert_parallel"`
	RecoverOnStart bool          `mapstructure:"recover_on_start"`
}

type ProgressConfig struct {
	Retention     time.Duration `mapstructure:"retention"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type ChunkingConfig struct {
	Size    int `mapstructure:"size"`
	Overlap int `mapstructure:"overlap"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	_ = v.BindEnv("database.password", "DATABASE_PASSWORD")
	_ = v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	_ = v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	_ = v.BindEnv("qdrant.host", "QDRANT_HOST")
	_ = v.BindEnv("qdrant.api_key", "QDRANT_API_KEY")
	_ = v.BindEnv("embedding.api_key", "JINA_API_KEY")
	_ = v.BindEnv("llm.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("llm.base_url", "OPENAI_BASE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.max_upload_mb", 50)
	v.SetDefault("server.stream_poll", time.Second)
	v.SetDefault("server.shutdown_grace", 30*time.Second)
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("auth.user_header", "X-User-ID")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/doclens.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_dir", "./uploads")
	v.SetDefault("storage.bucket", "doclens")
	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.collection", "doclens_chunks")
	v.SetDefault("embedding.model", "jina-embeddings-v3")
	v.SetDefault("embedding.base_url", "https://api.jina.ai/v1")
	v.SetDefault("embedding.dimensions", 1024)
	v.SetDefault("embedding.batch_size", 32)
	v.SetDefault("embedding.timeout", 60*time.Second)
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.timeout", 90*time.Second)
	v.SetDefault("ingest.workers", 4)
	v.SetDefault("ingest.queue_size", 64)
	v.SetDefault("ingest.job_timeout", 10*time.Minute)
	v.SetDefault("ingest.upsert_parallel", 4)
	v.SetDefault("ingest.recover_on_start", true)
	v.SetDefault("progress.retention", time.Hour)
	v.SetDefault("progress.sweep_interval", 5*time.Minute)
	v.SetDefault("chunking.size", 1200)
	v.SetDefault("chunking.overlap", 100)
}

// Validate checks ranges that would otherwise fail deep inside a component.
func (c *Config) Validate() error {
	if c.Ingest.Workers <= 0 {
		return fmt.Errorf("ingest.workers must be positive, got %d", c.Ingest.Workers)
	}
	if c.Ingest.QueueSize <= 0 {
		return fmt.Errorf("ingest.queue_size must be positive, got %d", c.Ingest.QueueSize)
	}
	if c.Ingest.JobTimeout <= 0 {
		return fmt.Errorf("ingest.job_timeout must be positive")
	}
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in [0, %d), got %d", c.Chunking.Size, c.Chunking.Overlap)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive")
	}
	switch c.Storage.Type {
	case "local", "s3", "r2", "s3compatible":
	default:
		return fmt.Errorf("storage.type %q is not one of local, s3, r2, s3compatible", c.Storage.Type)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver %q is not one of sqlite, postgres", c.Database.Driver)
	}
	return nil
}
