package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaClient calls /api/generate and /api/chat with streaming enabled
// and concatenates the NDJSON chunks.
type OllamaClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// ollamaChunk covers both endpoints: generate fills Response, chat fills
// Message.
type ollamaChunk struct {
	Response string  `json:"response"`
	Message  Message `json:"message"`
	Done     bool    `json:"done"`
	Error    string  `json:"error"`
}

func NewOllamaClient(baseURL, model string, timeout time.Duration) (*OllamaClient, error) {
	if baseURL == "" {
		return nil, errors.New("ollama base url is empty")
	}
	return &OllamaClient{
		httpClient: &http.Client{Timeout: defaultTimeout(timeout)},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
	}, nil
}

func (o *OllamaClient) Name() string { return "ollama" }

func (o *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	return o.stream(ctx, "/api/generate", ollamaGenerateRequest{Model: o.model, Prompt: prompt, Stream: true})
}

func (o *OllamaClient) Chat(ctx context.Context, messages []Message) (string, error) {
	return o.stream(ctx, "/api/chat", ollamaChatRequest{Model: o.model, Messages: messages, Stream: true})
}

func (o *OllamaClient) stream(ctx context.Context, path string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal ollama request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := doWithRetry(ctx, o.httpClient, req)
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := readLimited(resp.Body)
		if resp.StatusCode == http.StatusNotFound && strings.Contains(msg, "not found") {
			return "", fmt.Errorf("model %q not found, run 'ollama pull %s': %w", o.model, o.model,
				&StatusError{Backend: o.Name(), StatusCode: resp.StatusCode, Body: msg})
		}
		return "", &StatusError{Backend: o.Name(), StatusCode: resp.StatusCode, Body: msg}
	}
	return aggregateNDJSON(resp.Body)
}

// aggregateNDJSON joins the text of every chunk. Lines that are not valid
// JSON are skipped; a chunk carrying an error aborts the stream.
func aggregateNDJSON(r io.Reader) (string, error) {
	var sb strings.Builder
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk ollamaChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue
		}
		if chunk.Error != "" {
			return "", fmt.Errorf("ollama stream error: %s", chunk.Error)
		}
		sb.WriteString(chunk.Response)
		sb.WriteString(chunk.Message.Content)
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read ollama stream: %w", err)
	}
	if sb.Len() == 0 {
		return "", ErrEmptyCompletion
	}
	return sb.String(), nil
}
