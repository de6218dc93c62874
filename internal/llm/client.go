// Package llm talks to the external text-generation service. Every
// backend exposes the same single-request/single-response Client.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Skufu/medintake/internal/config"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrBackend wraps every failure returned through Limited.
	ErrBackend = errors.New("text generation failed")

	ErrEmptyCompletion = errors.New("backend returned no completion")
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Chat(ctx context.Context, messages []Message) (string, error)
	Name() string
}

// StatusError is returned when a backend answers with a non-2xx status.
type StatusError struct {
	Backend    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Backend, e.StatusCode, e.Body)
}

// New builds the configured backend wrapped in a rate limiter.
func New(cfg config.LLMConfig) (*Limited, error) {
	var (
		client Client
		err    error
	)
	switch cfg.Backend {
	case config.BackendGemini:
		client = NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.Timeout)
	case config.BackendOllama:
		client, err = NewOllamaClient(cfg.OllamaBaseURL, cfg.OllamaModel, cfg.Timeout)
	case config.BackendOpenAI:
		client = NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
	default:
		err = fmt.Errorf("unknown llm backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return NewLimited(client, cfg.RPM), nil
}

func defaultTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 120 * time.Second
	}
	return d
}
