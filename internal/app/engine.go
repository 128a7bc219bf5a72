package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/yungbote/threadchat-backend/internal/inference/engine"
	"github.com/yungbote/threadchat-backend/internal/inference/engine/langchain"
	"github.com/yungbote/threadchat-backend/internal/inference/engine/mock"
	"github.com/yungbote/threadchat-backend/internal/inference/engine/openai"
	"github.com/yungbote/threadchat-backend/internal/platform/logger"
	"github.com/yungbote/threadchat-backend/internal/platform/paramstore"
)

// newEngine builds the configured model engine. The OpenAI key comes from
// OPENAI_API_KEY or, failing that, from the SSM parameter MODEL_API_KEY_PARAM.
func newEngine(ctx context.Context, cfg EngineConfig, secrets paramstore.Getter, log *logger.Logger) (engine.Engine, error) {
	httpClient := &http.Client{Timeout: 5 * time.Minute}

	switch cfg.Kind {
	case EngineMock, "":
		log.Warn("Using mock model engine")
		return mock.New(), nil
	case EngineOpenAI:
		key, err := paramstore.Resolve(ctx, secrets, cfg.APIKey, cfg.APIKeyParam)
		if err != nil {
			return nil, fmt.Errorf("resolve model api key: %w", err)
		}
		if key == "" {
			log.Warn("No model API key configured; relying on an unauthenticated endpoint", "base_url", cfg.BaseURL)
		}
		return openai.NewWithHTTPClient(openai.Config{
			APIKey:      key,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		}, httpClient)
	case EngineOllama:
		return langchain.NewOllama(langchain.Config{
			Model:       cfg.Model,
			ServerURL:   cfg.BaseURL,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		}, httpClient)
	default:
		return nil, fmt.Errorf("unsupported model engine %q", cfg.Kind)
	}
}

// newSecrets returns an SSM-backed getter only when a parameter name is
// configured, so local runs never touch AWS.
func newSecrets(ctx context.Context, cfg EngineConfig) (paramstore.Getter, error) {
	if cfg.APIKeyParam == "" || cfg.APIKey != "" {
		return nil, nil
	}
	return paramstore.NewFromEnv(ctx, cfg.AWSRegion)
}
