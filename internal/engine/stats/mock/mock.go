package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/jon4hz/reqtag/internal/engine/stats"
	"github.com/jon4hz/reqtag/internal/media"
)

var _ stats.Statser = (*MockStatser)(nil)

// MockStatser is a mock implementation of stats.Statser for testing.
type MockStatser struct {
	mu sync.RWMutex

	// sessions per section
	sessions map[string][]media.WatchSession

	// Error simulation
	ListAllHistoryError error
	HealthError         error
	// PartialSections return their sessions together with ListAllHistoryError.
	PartialSections map[string]bool
}

// NewMockStatser creates a new MockStatser instance.
func NewMockStatser() *MockStatser {
	return &MockStatser{
		sessions:        make(map[string][]media.WatchSession),
		PartialSections: make(map[string]bool),
	}
}

// Reset clears all data and errors from the mock.
func (m *MockStatser) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions = make(map[string][]media.WatchSession)
	m.PartialSections = make(map[string]bool)
	m.ListAllHistoryError = nil
	m.HealthError = nil
}

// AddSessions adds watch sessions to a section.
func (m *MockStatser) AddSessions(sectionID string, sessions ...media.WatchSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sectionID] = append(m.sessions[sectionID], sessions...)
}

func (m *MockStatser) ListAllHistory(ctx context.Context, filter stats.HistoryFilter) ([]media.WatchSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ListAllHistoryError != nil {
		if m.PartialSections[filter.SectionID] {
			return slices.Clone(m.sessions[filter.SectionID]), m.ListAllHistoryError
		}
		return nil, m.ListAllHistoryError
	}
	return slices.Clone(m.sessions[filter.SectionID]), nil
}

func (m *MockStatser) Health(ctx context.Context) error {
	return m.HealthError
}
