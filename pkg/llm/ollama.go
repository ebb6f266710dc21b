// Package llm wraps a local Ollama server behind the single completion
// contract the advisory facade consumes. The service is treated as a
// best-effort black box: callers get raw text (or parsed JSON) and must
// degrade gracefully on any error.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client is the completion contract consumed by the chat service.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error)
}

// CompletionRequest carries one prompt, an optional image for vision models
// and a flag requesting a JSON-shaped reply.
type CompletionRequest struct {
	Prompt   string
	Image    []byte
	WantJSON bool
}

// CompletionResult holds the model reply. JSON is populated only when
// WantJSON was set and the reply parsed.
type CompletionResult struct {
	Text string
	JSON map[string]interface{}
}

// OllamaClient talks to the Ollama /api/chat endpoint.
type OllamaClient struct {
	host        string
	model       string
	visionModel string
	httpClient  *http.Client
}

// NewOllamaClient builds a client; the timeout bounds the whole completion
// call since Ollama streams are disabled here.
func NewOllamaClient(host, model, visionModel string, timeout time.Duration) *OllamaClient {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &OllamaClient{
		host:        strings.TrimRight(host, "/"),
		model:       model,
		visionModel: visionModel,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error,omitempty"`
}

// Complete sends a single-turn chat request and returns the reply content.
func (c *OllamaClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	msg := chatMessage{Role: "user", Content: req.Prompt}
	model := c.model
	if len(req.Image) > 0 {
		model = c.visionModel
		msg.Images = []string{base64.StdEncoding.EncodeToString(req.Image)}
	}
	if req.WantJSON {
		msg.Content = req.Prompt + "\n\nIMPORTANT: Response MUST be valid JSON only, no additional text."
	}

	payload, err := json.Marshal(chatRequest{Model: model, Messages: []chatMessage{msg}, Stream: false})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call ollama: %w", err)
	}
	defer resp.Body.Close()

	var body chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode ollama response: %w", err)
	}
	if body.Error != "" {
		return nil, fmt.Errorf("ollama: %s", body.Error)
	}

	text := strings.TrimSpace(body.Message.Content)
	if text == "" {
		return nil, fmt.Errorf("ollama returned empty content")
	}

	result := &CompletionResult{Text: text}
	if req.WantJSON {
		parsed, err := ParseJSONReply(text)
		if err != nil {
			return nil, err
		}
		result.JSON = parsed
	}
	return result, nil
}

// ParseJSONReply extracts a JSON object from a model reply, stripping a
// fenced code block when present before parsing.
func ParseJSONReply(text string) (map[string]interface{}, error) {
	stripped := text
	if idx := strings.Index(stripped, "```json"); idx >= 0 {
		stripped = stripped[idx+len("```json"):]
		if end := strings.Index(stripped, "```"); end >= 0 {
			stripped = stripped[:end]
		}
	} else if idx := strings.Index(stripped, "```"); idx >= 0 {
		stripped = stripped[idx+3:]
		if end := strings.Index(stripped, "```"); end >= 0 {
			stripped = stripped[:end]
		}
	}
	stripped = strings.TrimSpace(stripped)

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(stripped), &parsed); err != nil {
		snippet := text
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, fmt.Errorf("parse json reply: %w (response: %s)", err, snippet)
	}
	return parsed, nil
}
