package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/threadchat-backend/internal/data/db"
	"github.com/yungbote/threadchat-backend/internal/observability"
	"github.com/yungbote/threadchat-backend/internal/platform/envutil"
	"github.com/yungbote/threadchat-backend/internal/upload"
)

const defaultConfigPath = "config/config.yaml"

const (
	EngineMock   = "mock"
	EngineOpenAI = "openai"
	EngineOllama = "ollama"
)

type Config struct {
	LogMode  string         `yaml:"log_mode"`
	HTTP     HTTPConfig     `yaml:"http"`
	DB       DBConfig       `yaml:"db"`
	Chat     ChatConfig     `yaml:"chat"`
	Engine   EngineConfig   `yaml:"engine"`
	Upload   UploadConfig   `yaml:"upload"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Otel     OtelConfig     `yaml:"otel"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

type DBConfig struct {
	Driver          string        `yaml:"driver"`
	URL             string        `yaml:"url"`
	SQLitePath      string        `yaml:"sqlite_path"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type ChatConfig struct {
	HistoryLimit       int    `yaml:"history_limit"`
	DefaultThreadTitle string `yaml:"default_thread_title"`
	SystemPrompt       string `yaml:"system_prompt"`
}

type EngineConfig struct {
	Kind        string  `yaml:"kind"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"-"`
	APIKeyParam string  `yaml:"api_key_param"`
	AWSRegion   string  `yaml:"aws_region"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type UploadConfig struct {
	MaxBytes   int64  `yaml:"max_bytes"`
	SampleRows int    `yaml:"sample_rows"`
	Policy     string `yaml:"validation_policy"`
}

type RealtimeConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"-"`
	RedisDB       int    `yaml:"redis_db"`
	Channel       string `yaml:"channel"`
}

type OtelConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"`
	Headers     string  `yaml:"-"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

func DefaultConfig() Config {
	return Config{
		LogMode: "development",
		HTTP: HTTPConfig{
			Addr:            ":8000",
			ShutdownTimeout: 10 * time.Second,
		},
		DB: DBConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Chat: ChatConfig{
			HistoryLimit:       20,
			DefaultThreadTitle: "Chat",
			SystemPrompt:       "You're a helpful assistant. Answer concisely and to the point.",
		},
		Engine: EngineConfig{
			Kind:        EngineMock,
			Temperature: 0.2,
		},
		Upload: UploadConfig{
			MaxBytes:   upload.DefaultMaxUploadBytes,
			SampleRows: upload.DefaultSampleRows,
			Policy:     string(upload.PolicyStrict),
		},
		Otel: OtelConfig{
			ServiceName: "threadchat",
			SampleRatio: 1,
		},
	}
}

// LoadConfig layers defaults, the optional YAML file and environment
// overrides, then validates the result.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	path, explicit := envutil.Lookup("THREADCHAT_CONFIG_PATH")
	if !explicit {
		path = defaultConfigPath
	}
	if err := loadYAML(path, &cfg); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.LogMode = envutil.String(cfg.LogMode, "LOG_MODE")

	if v, ok := envutil.Lookup("HTTP_ADDR"); ok {
		cfg.HTTP.Addr = v
	} else if v, ok := envutil.Lookup("PORT"); ok {
		cfg.HTTP.Addr = ":" + strings.TrimPrefix(v, ":")
	}
	cfg.HTTP.ShutdownTimeout = envutil.Duration("HTTP_SHUTDOWN_TIMEOUT", cfg.HTTP.ShutdownTimeout)
	if v, ok := envutil.Lookup("CORS_ALLOWED_ORIGINS"); ok {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}

	if err := applyDBEnv(&cfg.DB); err != nil {
		return err
	}

	if n, ok, err := envutil.IntStrict("AI_HISTORY_LIMIT", "HISTORY_LIMIT"); err != nil {
		return fmt.Errorf("HISTORY_LIMIT must be an integer: %w", err)
	} else if ok {
		cfg.Chat.HistoryLimit = n
	}
	cfg.Chat.DefaultThreadTitle = envutil.String(cfg.Chat.DefaultThreadTitle, "THREAD_TITLE", "DEFAULT_THREAD_TITLE")
	cfg.Chat.SystemPrompt = envutil.String(cfg.Chat.SystemPrompt, "SYSTEM_PROMPT")

	cfg.Engine.Kind = strings.ToLower(envutil.String(cfg.Engine.Kind, "MODEL_ENGINE"))
	cfg.Engine.Model = envutil.String(cfg.Engine.Model, "MODEL_NAME")
	cfg.Engine.BaseURL = envutil.String(cfg.Engine.BaseURL, "MODEL_BASE_URL")
	cfg.Engine.APIKey = envutil.String(cfg.Engine.APIKey, "OPENAI_API_KEY")
	cfg.Engine.APIKeyParam = envutil.String(cfg.Engine.APIKeyParam, "MODEL_API_KEY_PARAM")
	cfg.Engine.AWSRegion = envutil.String(cfg.Engine.AWSRegion, "AWS_REGION")
	cfg.Engine.Temperature = envutil.Float("MODEL_TEMPERATURE", cfg.Engine.Temperature)
	if n, ok, err := envutil.IntStrict("MODEL_MAX_TOKENS"); err != nil {
		return fmt.Errorf("MODEL_MAX_TOKENS must be an integer: %w", err)
	} else if ok {
		cfg.Engine.MaxTokens = n
	}

	if n, ok, err := envutil.IntStrict("UPLOAD_MAX_BYTES"); err != nil {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be an integer: %w", err)
	} else if ok {
		cfg.Upload.MaxBytes = int64(n)
	}
	if n, ok, err := envutil.IntStrict("UPLOAD_SAMPLE_ROWS"); err != nil {
		return fmt.Errorf("UPLOAD_SAMPLE_ROWS must be an integer: %w", err)
	} else if ok {
		cfg.Upload.SampleRows = n
	}
	cfg.Upload.Policy = envutil.String(cfg.Upload.Policy, "UPLOAD_VALIDATION_POLICY")

	cfg.Realtime.RedisAddr = envutil.String(cfg.Realtime.RedisAddr, "REDIS_ADDR")
	cfg.Realtime.RedisPassword = envutil.String(cfg.Realtime.RedisPassword, "REDIS_PASSWORD")
	cfg.Realtime.RedisDB = envutil.Int("REDIS_DB", cfg.Realtime.RedisDB)
	cfg.Realtime.Channel = envutil.String(cfg.Realtime.Channel, "REDIS_CHANNEL")

	cfg.Otel.Enabled = envutil.Bool("OTEL_ENABLED", cfg.Otel.Enabled)
	cfg.Otel.ServiceName = envutil.String(cfg.Otel.ServiceName, "OTEL_SERVICE_NAME")
	cfg.Otel.Endpoint = envutil.String(cfg.Otel.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.Otel.Headers = envutil.String(cfg.Otel.Headers, "OTEL_EXPORTER_OTLP_HEADERS")
	cfg.Otel.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Otel.Insecure)
	cfg.Otel.SampleRatio = envutil.Float("OTEL_SAMPLER_RATIO", cfg.Otel.SampleRatio)
	return nil
}

// applyDBEnv resolves the driver and DSN. Without an explicit driver the
// service uses postgres when any postgres setting is present and a local
// sqlite file otherwise.
func applyDBEnv(c *DBConfig) error {
	c.Driver = strings.ToLower(envutil.String(c.Driver, "DB_DRIVER"))
	c.URL = envutil.String(c.URL, "DATABASE_URL", "POSTGRES_URL", "PG_DSN")
	c.SQLitePath = envutil.String(c.SQLitePath, "SQLITE_PATH")
	c.MaxOpenConns = envutil.Int("DB_MAX_OPEN_CONNS", c.MaxOpenConns)
	c.MaxIdleConns = envutil.Int("DB_MAX_IDLE_CONNS", c.MaxIdleConns)
	c.ConnMaxLifetime = envutil.Duration("DB_CONN_MAX_LIFETIME", c.ConnMaxLifetime)

	_, hasParts := envutil.Lookup("POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_DB")
	if c.Driver == "" {
		if c.URL != "" || hasParts {
			c.Driver = db.DriverPostgres
		} else {
			c.Driver = db.DriverSQLite
		}
	}
	if c.Driver == db.DriverPostgres && c.URL == "" {
		dsn, err := db.BuildPostgresDSN(
			os.Getenv("POSTGRES_USER"),
			os.Getenv("POSTGRES_PASSWORD"),
			os.Getenv("POSTGRES_HOST"),
			os.Getenv("POSTGRES_PORT"),
			os.Getenv("POSTGRES_DB"),
		)
		if err != nil {
			return err
		}
		c.URL = dsn
	}
	if c.Driver == db.DriverSQLite && c.SQLitePath == "" {
		c.SQLitePath = "data/threadchat.db"
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		errs = append(errs, errors.New("http addr is required"))
	}
	switch c.DB.Driver {
	case db.DriverPostgres, db.DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver))
	}
	if c.DB.Driver == db.DriverPostgres {
		if err := db.ValidatePostgresDSN(c.DB.URL); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Chat.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("HISTORY_LIMIT must be >= 0, got %d", c.Chat.HistoryLimit))
	}
	if strings.TrimSpace(c.Chat.DefaultThreadTitle) == "" {
		errs = append(errs, errors.New("default thread title must not be blank"))
	}
	switch c.Engine.Kind {
	case EngineMock:
	case EngineOpenAI, EngineOllama:
		if strings.TrimSpace(c.Engine.Model) == "" {
			errs = append(errs, fmt.Errorf("MODEL_NAME is required for the %s engine", c.Engine.Kind))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported MODEL_ENGINE %q", c.Engine.Kind))
	}
	if c.Upload.MaxBytes <= 0 {
		errs = append(errs, errors.New("UPLOAD_MAX_BYTES must be positive"))
	}
	if c.Upload.SampleRows <= 0 {
		errs = append(errs, errors.New("UPLOAD_SAMPLE_ROWS must be positive"))
	}
	if _, err := upload.ParsePolicy(c.Upload.Policy); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c Config) UploadOptions() upload.Options {
	policy, _ := upload.ParsePolicy(c.Upload.Policy)
	return upload.Options{
		MaxBytes:   c.Upload.MaxBytes,
		SampleRows: c.Upload.SampleRows,
		Policy:     policy,
	}
}

func (c Config) DatabaseConfig() db.Config {
	return db.Config{
		Driver:          c.DB.Driver,
		DSN:             c.DB.URL,
		SQLitePath:      c.DB.SQLitePath,
		MaxOpenConns:    c.DB.MaxOpenConns,
		MaxIdleConns:    c.DB.MaxIdleConns,
		ConnMaxLifetime: c.DB.ConnMaxLifetime,
	}
}

func (c Config) TracingConfig() observability.OtelConfig {
	return observability.OtelConfig{
		Enabled:     c.Otel.Enabled,
		ServiceName: c.Otel.ServiceName,
		Environment: c.LogMode,
		Endpoint:    c.Otel.Endpoint,
		Headers:     observability.ParseHeaders(c.Otel.Headers),
		Insecure:    c.Otel.Insecure,
		SampleRatio: c.Otel.SampleRatio,
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
