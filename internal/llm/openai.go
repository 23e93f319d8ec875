package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ContrejfC/ai-bookkeeper/internal/common"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 30 * time.Second

	// Flat cost per thousand tokens used for budget accounting. Coarse on
	// purpose: the budget gate needs an upper-bound trend, not an invoice.
	defaultCostPerThousandTokens = 0.002
)

// OpenAIClient implements Client using an OpenAI-compatible chat API.
type OpenAIClient struct {
	httpClient            *http.Client
	apiKey                string
	model                 string
	baseURL               string
	costPerThousandTokens float64
}

// OpenAIOption configures the client.
type OpenAIOption func(*OpenAIClient)

// WithModel overrides the model name.
func WithModel(model string) OpenAIOption {
	return func(c *OpenAIClient) { c.model = model }
}

// WithBaseURL points the client at a compatible endpoint.
func WithBaseURL(baseURL string) OpenAIOption {
	return func(c *OpenAIClient) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithTimeout bounds each classification call.
func WithTimeout(timeout time.Duration) OpenAIOption {
	return func(c *OpenAIClient) { c.httpClient.Timeout = timeout }
}

// NewOpenAIClient creates a new OpenAI-compatible client.
func NewOpenAIClient(apiKey string, opts ...OpenAIOption) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: api key", common.ErrMissingConfig)
	}

	client := &OpenAIClient{
		httpClient:            &http.Client{Timeout: defaultTimeout},
		apiKey:                apiKey,
		model:                 defaultModel,
		baseURL:               defaultBaseURL,
		costPerThousandTokens: defaultCostPerThousandTokens,
	}
	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// classifyPayload is the JSON shape the model is instructed to return.
type classifyPayload struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

const systemPrompt = `You are a bookkeeping assistant. Classify the financial record ` +
	`described by the user into a single ledger label. Respond with only a JSON object: ` +
	`{"label": string, "confidence": number between 0 and 1, "rationale": string}.`

// Classify sends one bounded classification request. Network and 5xx
// failures surface as ErrUnavailable; the caller decides what to do next.
func (c *OpenAIClient) Classify(ctx context.Context, prompt string) (ClassificationResponse, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return ClassificationResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return ClassificationResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ClassificationResponse{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return ClassificationResponse{}, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ClassificationResponse{}, fmt.Errorf("%w: %s", common.ErrRateLimit, resp.Status)
	case resp.StatusCode >= 500:
		return ClassificationResponse{}, fmt.Errorf("%w: %s", ErrUnavailable, resp.Status)
	case resp.StatusCode != http.StatusOK:
		return ClassificationResponse{}, fmt.Errorf("%w: %s: %s", ErrInvalidResponse, resp.Status, truncate(string(data), 200))
	}

	var chat chatResponse
	if err := json.Unmarshal(data, &chat); err != nil {
		return ClassificationResponse{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(chat.Choices) == 0 {
		return ClassificationResponse{}, fmt.Errorf("%w: no choices returned", ErrInvalidResponse)
	}

	parsed, err := ParseClassification(chat.Choices[0].Message.Content)
	if err != nil {
		return ClassificationResponse{}, err
	}

	parsed.Cost = float64(chat.Usage.TotalTokens) / 1000 * c.costPerThousandTokens
	return parsed, nil
}

// ParseClassification extracts the classification JSON from model output,
// tolerating surrounding prose and markdown code fences.
func ParseClassification(content string) (ClassificationResponse, error) {
	content = strings.TrimSpace(content)

	// Salvage the JSON object if the model wrapped it in anything.
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return ClassificationResponse{}, fmt.Errorf("%w: no JSON object in %q", ErrInvalidResponse, truncate(content, 100))
	}

	var payload classifyPayload
	if err := json.Unmarshal([]byte(content[start:end+1]), &payload); err != nil {
		return ClassificationResponse{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if payload.Label == "" {
		return ClassificationResponse{}, fmt.Errorf("%w: empty label", ErrInvalidResponse)
	}
	if payload.Confidence < 0 || payload.Confidence > 1 {
		return ClassificationResponse{}, fmt.Errorf("%w: confidence %v out of [0,1]", ErrInvalidResponse, payload.Confidence)
	}

	return ClassificationResponse{
		Label:      payload.Label,
		Confidence: payload.Confidence,
		Rationale:  payload.Rationale,
	}, nil
}

// IsTransient reports whether a provider error is worth retrying by an
// external caller.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, common.ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
