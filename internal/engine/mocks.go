package engine

import (
	"context"
	"sync"

	"github.com/ContrejfC/ai-bookkeeper/internal/model"
)

// mockTier is the shared guts of the tier mocks: a fixed candidate or error
// and a call counter.
type mockTier struct {
	candidate *model.Candidate
	err       error
	calls     int
	mu        sync.Mutex
}

func (m *mockTier) respond(recordID string) (*model.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.candidate == nil {
		return nil, nil //nolint:nilnil // No candidate is a valid result
	}
	candidate := *m.candidate
	candidate.RecordID = recordID
	return &candidate, nil
}

// SetCandidate makes subsequent calls return a copy of the given candidate.
func (m *mockTier) SetCandidate(candidate *model.Candidate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidate = candidate
}

// SetError makes subsequent calls fail with the given error.
func (m *mockTier) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times the tier was consulted.
func (m *mockTier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockRuleProvider is a test implementation of RuleProvider.
type MockRuleProvider struct {
	mockTier
}

// NewMockRuleProvider creates a rule tier mock that matches nothing.
func NewMockRuleProvider() *MockRuleProvider {
	return &MockRuleProvider{}
}

// Lookup returns the configured candidate or error.
func (m *MockRuleProvider) Lookup(_ context.Context, record model.Record) (*model.Candidate, error) {
	return m.respond(record.ID)
}

// MockMemoryProvider is a test implementation of MemoryProvider.
type MockMemoryProvider struct {
	mockTier
}

// NewMockMemoryProvider creates a memory tier mock with no neighbors.
func NewMockMemoryProvider() *MockMemoryProvider {
	return &MockMemoryProvider{}
}

// Nearest returns the configured candidate or error.
func (m *MockMemoryProvider) Nearest(_ context.Context, record model.Record) (*model.Candidate, error) {
	return m.respond(record.ID)
}

// MockGenerativeProvider is a test implementation of GenerativeProvider.
type MockGenerativeProvider struct {
	mockTier
}

// NewMockGenerativeProvider creates a generative tier mock with no candidate.
func NewMockGenerativeProvider() *MockGenerativeProvider {
	return &MockGenerativeProvider{}
}

// Infer returns the configured candidate or error.
func (m *MockGenerativeProvider) Infer(_ context.Context, record model.Record) (*model.Candidate, error) {
	return m.respond(record.ID)
}
