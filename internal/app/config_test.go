package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/threadchat-backend/internal/data/db"
	"github.com/yungbote/threadchat-backend/internal/upload"
)

var configEnv = []string{
	"THREADCHAT_CONFIG_PATH", "LOG_MODE", "HTTP_ADDR", "PORT", "HTTP_SHUTDOWN_TIMEOUT", "CORS_ALLOWED_ORIGINS",
	"DB_DRIVER", "DATABASE_URL", "POSTGRES_URL", "PG_DSN", "SQLITE_PATH",
	"POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_DB",
	"AI_HISTORY_LIMIT", "HISTORY_LIMIT", "THREAD_TITLE", "DEFAULT_THREAD_TITLE", "SYSTEM_PROMPT",
	"MODEL_ENGINE", "MODEL_NAME", "MODEL_BASE_URL", "OPENAI_API_KEY", "MODEL_API_KEY_PARAM", "MODEL_MAX_TOKENS",
	"UPLOAD_MAX_BYTES", "UPLOAD_SAMPLE_ROWS", "UPLOAD_VALIDATION_POLICY",
	"REDIS_ADDR", "REDIS_CHANNEL", "OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnv {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8000", cfg.HTTP.Addr)
	require.Equal(t, db.DriverSQLite, cfg.DB.Driver)
	require.Equal(t, 20, cfg.Chat.HistoryLimit)
	require.Equal(t, "Chat", cfg.Chat.DefaultThreadTitle)
	require.Equal(t, EngineMock, cfg.Engine.Kind)
	require.Equal(t, upload.PolicyStrict, cfg.UploadOptions().Policy)
	require.EqualValues(t, 50<<20, cfg.Upload.MaxBytes)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgresql+asyncpg://u:p@db:5432/chat")
	t.Setenv("HISTORY_LIMIT", "0")
	t.Setenv("THREAD_TITLE", "Lab")
	t.Setenv("MODEL_ENGINE", "OpenAI")
	t.Setenv("MODEL_NAME", "gpt-4o-mini")
	t.Setenv("UPLOAD_VALIDATION_POLICY", "lenient")
	t.Setenv("HTTP_SHUTDOWN_TIMEOUT", "3s")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTP.Addr)
	require.Equal(t, db.DriverPostgres, cfg.DB.Driver)
	require.Equal(t, "postgresql+asyncpg://u:p@db:5432/chat", cfg.DatabaseConfig().DSN)
	require.Equal(t, 0, cfg.Chat.HistoryLimit)
	require.Equal(t, "Lab", cfg.Chat.DefaultThreadTitle)
	require.Equal(t, EngineOpenAI, cfg.Engine.Kind)
	require.Equal(t, upload.PolicyLenient, cfg.UploadOptions().Policy)
	require.Equal(t, 3*time.Second, cfg.HTTP.ShutdownTimeout)
}

func TestLoadConfigPostgresParts(t *testing.T) {
	clearEnv(t)
	t.Setenv("POSTGRES_USER", "chat")
	t.Setenv("POSTGRES_HOST", "db")

	_, err := LoadConfig()
	require.Error(t, err)
	require.ErrorContains(t, err, "POSTGRES_PASSWORD")
	require.ErrorContains(t, err, "POSTGRES_DB")

	t.Setenv("POSTGRES_PASSWORD", "pw")
	t.Setenv("POSTGRES_PORT", "5432")
	t.Setenv("POSTGRES_DB", "threads")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "postgres://chat:pw@db:5432/threads?sslmode=disable", cfg.DB.URL)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"negative history":   {"HISTORY_LIMIT": "-1"},
		"malformed history":  {"HISTORY_LIMIT": "lots"},
		"unknown engine":     {"MODEL_ENGINE": "gpt"},
		"engine needs model": {"MODEL_ENGINE": "ollama"},
		"unknown policy":     {"UPLOAD_VALIDATION_POLICY": "loose"},
		"unknown driver":     {"DB_DRIVER": "mysql"},
		"non-postgres url":   {"DATABASE_URL": "mysql://u:p@db:3306/chat"},
		"keyword dsn":        {"DB_DRIVER": "postgres", "PG_DSN": "host=db user=u"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}

func TestLoadConfigYAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":7000"
  shutdown_timeout: 2s
  allowed_origins: ["https://app.example.com"]
chat:
  history_limit: 5
  system_prompt: "be brief"
upload:
  validation_policy: lenient
`), 0o600))
	t.Setenv("THREADCHAT_CONFIG_PATH", path)
	t.Setenv("HISTORY_LIMIT", "7")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":7000", cfg.HTTP.Addr)
	require.Equal(t, 2*time.Second, cfg.HTTP.ShutdownTimeout)
	require.Equal(t, []string{"https://app.example.com"}, cfg.HTTP.AllowedOrigins)
	require.Equal(t, 7, cfg.Chat.HistoryLimit)
	require.Equal(t, "be brief", cfg.Chat.SystemPrompt)
	require.Equal(t, upload.PolicyLenient, cfg.UploadOptions().Policy)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("THREADCHAT_CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := LoadConfig()
	require.Error(t, err)
}
