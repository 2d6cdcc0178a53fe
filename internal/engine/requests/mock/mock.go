package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/jon4hz/reqtag/internal/engine/requests"
	"github.com/jon4hz/reqtag/internal/media"
)

var _ requests.Requester = (*MockRequester)(nil)

// MockRequester is a mock implementation of requests.Requester for testing.
type MockRequester struct {
	mu sync.RWMutex

	requests []media.Request
	calls    int

	// Error simulation
	ListAllRequestsError error
	HealthError          error
	// Partial returns the stored requests together with ListAllRequestsError.
	Partial bool
}

func NewMockRequester() *MockRequester {
	return &MockRequester{}
}

// Reset clears all data and errors from the mock.
func (m *MockRequester) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = nil
	m.calls = 0
	m.ListAllRequestsError = nil
	m.HealthError = nil
	m.Partial = false
}

// AddRequests stores requests.
func (m *MockRequester) AddRequests(reqs ...media.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, reqs...)
}

// Calls returns the number of ListAllRequests calls.
func (m *MockRequester) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

func (m *MockRequester) ListAllRequests(ctx context.Context, filter string) ([]media.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.ListAllRequestsError != nil {
		if m.Partial {
			return slices.Clone(m.requests), m.ListAllRequestsError
		}
		return nil, m.ListAllRequestsError
	}
	return slices.Clone(m.requests), nil
}

func (m *MockRequester) Health(ctx context.Context) error {
	return m.HealthError
}
