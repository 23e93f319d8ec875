package sink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ContrejfC/ai-bookkeeper/internal/model"
)

// MockPoster is a test implementation of the ledger poster. It counts calls
// and can simulate latency and failures.
type MockPoster struct {
	err     error
	latency time.Duration
	calls   int
	mu      sync.Mutex
}

// NewMockPoster creates a mock poster that succeeds immediately.
func NewMockPoster() *MockPoster {
	return &MockPoster{}
}

// SetError makes subsequent submits fail with the given error.
func (m *MockPoster) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetLatency delays each submit, useful for forcing concurrent overlap.
func (m *MockPoster) SetLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency = d
}

// Calls returns how many times Submit was invoked.
func (m *MockPoster) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Submit records the call and returns a deterministic external id.
func (m *MockPoster) Submit(ctx context.Context, _ model.LedgerPayload) (string, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	err := m.err
	latency := m.latency
	m.mu.Unlock()

	if latency > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(latency):
		}
	}

	if err != nil {
		return "", err
	}

	return fmt.Sprintf("ext-%d", call), nil
}
