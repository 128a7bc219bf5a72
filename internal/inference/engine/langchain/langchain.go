package langchain

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/yungbote/threadchat-backend/internal/inference/engine"
)

type Config struct {
	Model       string
	ServerURL   string
	Temperature float64
	MaxTokens   int
}

// Engine adapts any langchaingo model to the snapshot stream contract.
type Engine struct {
	llm  llms.Model
	name string
	cfg  Config
}

func New(name string, llm llms.Model, cfg Config) *Engine {
	return &Engine{llm: llm, name: name, cfg: cfg}
}

// NewOllama talks to a local or remote Ollama server.
func NewOllama(cfg Config, httpClient *http.Client) (*Engine, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("ollama engine: model is required")
	}
	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.ServerURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.ServerURL))
	}
	if httpClient != nil {
		opts = append(opts, ollama.WithHTTPClient(httpClient))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("ollama engine: %w", err)
	}
	return New("ollama", llm, cfg), nil
}

func (e *Engine) Name() string { return e.name }

func (e *Engine) Stream(ctx context.Context, messages []engine.Message, opts engine.GenerateOptions, onSnapshot engine.SnapshotFunc) (string, error) {
	var sb strings.Builder
	callOpts := []llms.CallOption{
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			sb.Write(chunk)
			if onSnapshot == nil {
				return nil
			}
			return onSnapshot(sb.String())
		}),
	}
	if t := pickFloat(opts.Temperature, e.cfg.Temperature); t > 0 {
		callOpts = append(callOpts, llms.WithTemperature(t))
	}
	if n := pickInt(opts.MaxTokens, e.cfg.MaxTokens); n > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(n))
	}
	if opts.Model != "" {
		callOpts = append(callOpts, llms.WithModel(opts.Model))
	}

	resp, err := e.llm.GenerateContent(ctx, toContent(messages), callOpts...)
	if err != nil {
		return "", fmt.Errorf("%s: generate: %w", e.name, err)
	}
	if sb.Len() > 0 {
		return sb.String(), nil
	}
	// Models without streaming support only return the final choice.
	if resp != nil && len(resp.Choices) > 0 && resp.Choices[0].Content != "" {
		full := resp.Choices[0].Content
		if onSnapshot != nil {
			if err := onSnapshot(full); err != nil {
				return "", err
			}
		}
		return full, nil
	}
	return "", engine.ErrEmptyResponse
}

func toContent(messages []engine.Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		out = append(out, llms.TextParts(roleType(m.Role), m.Content))
	}
	return out
}

func roleType(role string) llms.ChatMessageType {
	switch strings.ToLower(role) {
	case "system":
		return llms.ChatMessageTypeSystem
	case "assistant":
		return llms.ChatMessageTypeAI
	case "tool":
		return llms.ChatMessageTypeTool
	default:
		return llms.ChatMessageTypeHuman
	}
}

func pickFloat(a, b float64) float64 {
	if a > 0 {
		return a
	}
	return b
}

func pickInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}
