package mock

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/jon4hz/reqtag/internal/database"
)

var _ database.DB = (*MockDB)(nil)

// MockDB is a mock implementation of database.DB for testing.
type MockDB struct {
	mu sync.RWMutex

	runs   map[string]*database.Run
	nextID uint

	// Error simulation
	CreateRunError   error
	FinishRunError   error
	GetRunsError     error
	GetRunError      error
	GetRunStatsError error
}

// NewMockDB creates a new MockDB instance.
func NewMockDB() *MockDB {
	return &MockDB{
		runs:   make(map[string]*database.Run),
		nextID: 1,
	}
}

// Reset clears all data and errors from the mock database.
func (m *MockDB) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs = make(map[string]*database.Run)
	m.nextID = 1
	m.CreateRunError = nil
	m.FinishRunError = nil
	m.GetRunsError = nil
	m.GetRunError = nil
	m.GetRunStatsError = nil
}

func (m *MockDB) CreateRun(ctx context.Context, run *database.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateRunError != nil {
		return m.CreateRunError
	}
	run.ID = m.nextID
	m.nextID++
	cp := *run
	m.runs[run.RunID] = &cp
	return nil
}

func (m *MockDB) FinishRun(ctx context.Context, run *database.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FinishRunError != nil {
		return m.FinishRunError
	}
	if _, ok := m.runs[run.RunID]; !ok {
		return fmt.Errorf("run %s was never created", run.RunID)
	}
	cp := *run
	cp.Sections = slices.Clone(run.Sections)
	m.runs[run.RunID] = &cp
	return nil
}

func (m *MockDB) GetRuns(ctx context.Context, limit int) ([]database.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetRunsError != nil {
		return nil, m.GetRunsError
	}
	out := make([]database.Run, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, *r)
	}
	slices.SortFunc(out, func(a, b database.Run) int { return b.StartedAt.Compare(a.StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockDB) GetRun(ctx context.Context, runID string) (*database.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetRunError != nil {
		return nil, m.GetRunError
	}
	r, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", database.ErrRunNotFound, runID)
	}
	cp := *r
	return &cp, nil
}

func (m *MockDB) GetRunStats(ctx context.Context) (*database.RunStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetRunStatsError != nil {
		return nil, m.GetRunStatsError
	}
	var stats database.RunStats
	var last *database.Run
	for _, r := range m.runs {
		stats.TotalRuns++
		stats.TotalMutations += int64(r.Mutations)
		switch r.Status {
		case database.RunStatusSuccess:
			stats.SuccessfulRuns++
			if last == nil || r.StartedAt.After(last.StartedAt) {
				last = r
			}
		case database.RunStatusAborted:
			stats.AbortedRuns++
		}
	}
	if last != nil {
		stats.LastSuccess = last.FinishedAt
	}
	return &stats, nil
}

func (m *MockDB) Close() error { return nil }
