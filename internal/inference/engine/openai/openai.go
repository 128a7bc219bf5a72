package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/yungbote/threadchat-backend/internal/inference/engine"
)

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Engine streams chat completions from an OpenAI-compatible endpoint and
// reports them as cumulative snapshots.
type Engine struct {
	client *goopenai.Client
	cfg    Config
}

func New(cfg Config) (*Engine, error) {
	return NewWithHTTPClient(cfg, nil)
}

func NewWithHTTPClient(cfg Config, httpClient *http.Client) (*Engine, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("openai engine: model is required")
	}
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}
	return &Engine{client: goopenai.NewClientWithConfig(clientCfg), cfg: cfg}, nil
}

func (e *Engine) Name() string { return "openai" }

func (e *Engine) Stream(ctx context.Context, messages []engine.Message, opts engine.GenerateOptions, onSnapshot engine.SnapshotFunc) (string, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = e.cfg.MaxTokens
	}
	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = e.cfg.Temperature
	}
	req := goopenai.ChatCompletionRequest{
		Model:       firstNonEmpty(opts.Model, e.cfg.Model),
		Messages:    toOpenAI(messages),
		Temperature: float32(temperature),
		MaxTokens:   maxTokens,
		Stream:      true,
	}

	stream, err := e.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai: create stream: %w", err)
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("openai: stream: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		sb.WriteString(delta)
		if onSnapshot != nil {
			if err := onSnapshot(sb.String()); err != nil {
				return "", err
			}
		}
	}
	if sb.Len() == 0 {
		return "", engine.ErrEmptyResponse
	}
	return sb.String(), nil
}

func toOpenAI(messages []engine.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
