// Package llm is a minimal Azure OpenAI chat-completions client.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"offer-crew/internal/common/logger"
	"offer-crew/internal/common/metrics"
)

var (
	ErrLLMTimeout       = errors.New("llm request timed out")
	ErrLLMRequestFailed = errors.New("llm request failed")
)

// Chat API types (OpenAI-compatible)

type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

type ToolFunction struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

type ResponseFormat struct {
	Type string `json:"type"`
}

var JSONObjectFormat = &ResponseFormat{Type: "json_object"}

type ChatCompletionRequest struct {
	Messages       []ChatMessage   `json:"messages"`
	Tools          []Tool          `json:"tools,omitempty"`
	ToolChoice     string          `json:"tool_choice,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature,omitempty"`
}

type Choice struct {
	Index        int         `json:"index"`
	FinishReason string      `json:"finish_reason"`
	Message      ChatMessage `json:"message"`
}

type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Config struct {
	Endpoint    string
	Deployment  string
	APIKey      string
	APIVersion  string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

type Client struct {
	config     Config
	httpClient *http.Client
	logger     logger.Logger
}

func NewClient(cfg Config, log logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	// litellm-style names such as "azure/gpt-35-turbo" carry the provider prefix
	cfg.Deployment = strings.TrimPrefix(cfg.Deployment, "azure/")
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     log,
	}
}

// CompletionsURL returns the deployment's chat-completions endpoint.
func (c *Client) CompletionsURL() string {
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		strings.TrimRight(c.config.Endpoint, "/"),
		url.PathEscape(c.config.Deployment),
		url.QueryEscape(c.config.APIVersion))
}

// CreateChatCompletion sends one request. Temperature and MaxTokens fall back
// to the client configuration when unset.
func (c *Client) CreateChatCompletion(ctx context.Context, reqBody ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if reqBody.Temperature == 0 {
		reqBody.Temperature = c.config.Temperature
	}
	if reqBody.MaxTokens == 0 {
		reqBody.MaxTokens = c.config.MaxTokens
	}

	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(reqBody); err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrLLMRequestFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.CompletionsURL(), buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLLMRequestFailed, err)
	}
	req.Header.Set("api-key", c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	defer func() {
		metrics.LLMRequestDuration.WithLabelValues(c.config.Deployment).Observe(time.Since(start).Seconds())
	}()

	res, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			metrics.LLMRequests.WithLabelValues("timeout").Inc()
			return nil, fmt.Errorf("%w: %v", ErrLLMTimeout, err)
		}
		metrics.LLMRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrLLMRequestFailed, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		metrics.LLMRequests.WithLabelValues("error").Inc()
		c.logger.Error("Chat completion rejected", map[string]interface{}{
			"status":     res.StatusCode,
			"deployment": c.config.Deployment,
		})
		return nil, fmt.Errorf("%w: status %d: %s", ErrLLMRequestFailed, res.StatusCode, strings.TrimSpace(string(b)))
	}

	var cr ChatCompletionResponse
	if err := json.NewDecoder(res.Body).Decode(&cr); err != nil {
		metrics.LLMRequests.WithLabelValues("error").Inc()
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrLLMTimeout, err)
		}
		return nil, fmt.Errorf("%w: decode response: %v", ErrLLMRequestFailed, err)
	}
	if len(cr.Choices) == 0 {
		metrics.LLMRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: response has no choices", ErrLLMRequestFailed)
	}

	metrics.LLMRequests.WithLabelValues("success").Inc()
	if cr.Usage != nil {
		c.logger.Debug("Chat completion finished", map[string]interface{}{
			"deployment":       c.config.Deployment,
			"promptTokens":     cr.Usage.PromptTokens,
			"completionTokens": cr.Usage.CompletionTokens,
		})
	}
	return &cr, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
