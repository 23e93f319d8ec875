package llm

import (
	"context"
	"strings"
	"sync"
)

// MockClient is a test implementation of the Client interface. It returns
// deterministic classifications keyed off the prompt text.
type MockClient struct {
	err   error
	calls []string
	mu    sync.Mutex
}

// NewMockClient creates a new mock client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// SetError makes subsequent calls fail with the given error.
func (m *MockClient) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the prompts seen so far.
func (m *MockClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Classify provides deterministic classifications based on prompt contents.
func (m *MockClient) Classify(_ context.Context, prompt string) (ClassificationResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, prompt)
	err := m.err
	m.mu.Unlock()

	if err != nil {
		return ClassificationResponse{}, err
	}

	promptLower := strings.ToLower(prompt)

	response := ClassificationResponse{
		Label:      "Other Expenses",
		Confidence: 0.55,
		Rationale:  "no strong signal",
		Cost:       0.01,
	}

	switch {
	case strings.Contains(promptLower, "staples") || strings.Contains(promptLower, "office depot"):
		response.Label = "Office Supplies"
		response.Confidence = 0.93
		response.Rationale = "known office supply vendor"
	case strings.Contains(promptLower, "united airlines") || strings.Contains(promptLower, "delta"):
		response.Label = "Travel"
		response.Confidence = 0.90
		response.Rationale = "airline charge"
	case strings.Contains(promptLower, "aws") || strings.Contains(promptLower, "amazon web services"):
		response.Label = "Cloud Hosting"
		response.Confidence = 0.95
		response.Rationale = "cloud infrastructure bill"
	}

	return response, nil
}
