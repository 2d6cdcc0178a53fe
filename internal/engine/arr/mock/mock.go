package mock

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/jon4hz/reqtag/internal/engine/arr"
	"github.com/jon4hz/reqtag/internal/media"
)

var _ arr.Arrer = (*MockArrer)(nil)

// MockArrer is an in-memory arr.Arrer for testing.
type MockArrer struct {
	mu sync.RWMutex

	kind    media.Kind
	records map[int]media.ManagedRecord
	updates []media.ManagedRecord

	// Error simulation
	HealthError    error
	ListItemsError error
	GetItemError   error
	// UpdateItemErrors are returned by consecutive UpdateItem calls, then nil.
	UpdateItemErrors []error
}

// NewMockArrer creates a new MockArrer for the given kind.
func NewMockArrer(kind media.Kind) *MockArrer {
	return &MockArrer{
		kind:    kind,
		records: make(map[int]media.ManagedRecord),
	}
}

// Reset clears all data and errors from the mock.
func (m *MockArrer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = make(map[int]media.ManagedRecord)
	m.updates = nil
	m.HealthError = nil
	m.ListItemsError = nil
	m.GetItemError = nil
	m.UpdateItemErrors = nil
}

// AddRecord stores a record.
func (m *MockArrer) AddRecord(r media.ManagedRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.Tags = slices.Clone(r.Tags)
	m.records[r.ManagerID] = r
}

// Record returns the stored record.
func (m *MockArrer) Record(id int) media.ManagedRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.records[id]
}

// Updates returns every successful UpdateItem call.
func (m *MockArrer) Updates() []media.ManagedRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.updates)
}

func (m *MockArrer) Name() string { return "mock-" + string(m.kind) }

func (m *MockArrer) Kind() media.Kind { return m.kind }

func (m *MockArrer) Health(ctx context.Context) error { return m.HealthError }

func (m *MockArrer) ListItems(ctx context.Context, externalID *media.ExternalID) ([]media.ManagedRecord, error) {
	if m.ListItemsError != nil {
		return nil, m.ListItemsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]media.ManagedRecord, 0, len(m.records))
	for _, r := range m.records {
		if externalID != nil && r.ExternalID != *externalID {
			continue
		}
		r.Tags = slices.Clone(r.Tags)
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b media.ManagedRecord) int { return a.ManagerID - b.ManagerID })
	return out, nil
}

func (m *MockArrer) GetItem(ctx context.Context, id int) (*media.ManagedRecord, error) {
	if m.GetItemError != nil {
		return nil, m.GetItemError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("record %d: %w", id, arr.ErrItemNotFound)
	}
	r.Tags = slices.Clone(r.Tags)
	return &r, nil
}

func (m *MockArrer) UpdateItem(ctx context.Context, record media.ManagedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.UpdateItemErrors) > 0 {
		err := m.UpdateItemErrors[0]
		m.UpdateItemErrors = m.UpdateItemErrors[1:]
		if err != nil {
			return err
		}
	}
	if _, ok := m.records[record.ManagerID]; !ok {
		return fmt.Errorf("record %d: %w", record.ManagerID, arr.ErrItemNotFound)
	}
	record.Tags = slices.Clone(record.Tags)
	m.records[record.ManagerID] = record
	m.updates = append(m.updates, record)
	return nil
}

func (m *MockArrer) ApplyTags(ctx context.Context, id int, add, remove []string) error {
	return arr.ApplyTags(ctx, m, id, add, remove)
}

func (m *MockArrer) ResetTags(ctx context.Context, owned func(string) bool) (int, error) {
	records, err := m.ListItems(ctx, nil)
	if err != nil {
		return 0, err
	}
	updated := 0
	for _, r := range records {
		remove := slices.DeleteFunc(slices.Clone(r.Tags), func(t string) bool { return !owned(t) })
		if len(remove) == 0 {
			continue
		}
		if err := m.ApplyTags(ctx, r.ManagerID, nil, remove); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}
