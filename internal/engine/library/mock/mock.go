package mock

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/jon4hz/reqtag/internal/engine/library"
	"github.com/jon4hz/reqtag/internal/media"
)

var _ library.Librarier = (*MockLibrarier)(nil)

// Call is a recorded mutation.
type Call struct {
	Method string
	Ref    library.Ref
	Value  string
}

// MockLibrarier is an in-memory library.Librarier for testing.
// Labels added to an item become section labels with a generated key,
// the way the server behaves.
type MockLibrarier struct {
	mu sync.RWMutex

	identity    library.ServerIdentity
	sections    []media.Section
	items       map[string][]media.Item // by section
	labels      map[string][]media.Label
	collections map[string][]media.Collection
	nextKey     int
	calls       []Call

	// Error simulation
	ServerIdentityError        error
	ListSectionsError          error
	ListItemsError             error
	PartialItems               bool
	ListLabelsError            error
	ListCollectionsError       error
	AddLabelError              error
	RemoveLabelError           error
	CreateSmartCollectionError error
	// FailItems makes label writes on the given item IDs fail.
	FailItems map[string]error
}

func NewMockLibrarier() *MockLibrarier {
	return &MockLibrarier{
		identity:    library.ServerIdentity{MachineID: "machine-1", Name: "mock"},
		items:       make(map[string][]media.Item),
		labels:      make(map[string][]media.Label),
		collections: make(map[string][]media.Collection),
		nextKey:     1000,
		FailItems:   make(map[string]error),
	}
}

// AddSection adds a section.
func (m *MockLibrarier) AddSection(s media.Section) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sections = append(m.sections, s)
}

// AddItems adds items to their section. Their labels are registered as section labels.
func (m *MockLibrarier) AddItems(items ...media.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range items {
		it.Labels = slices.Clone(it.Labels)
		m.items[it.SectionID] = append(m.items[it.SectionID], it)
		for _, l := range it.Labels {
			m.ensureLabel(it.SectionID, l)
		}
	}
}

// AddCollection adds a collection to a section.
func (m *MockLibrarier) AddCollection(sectionID string, c media.Collection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[sectionID] = append(m.collections[sectionID], c)
}

// Item returns the stored item.
func (m *MockLibrarier) Item(sectionID, id string) media.Item {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, it := range m.items[sectionID] {
		if it.LibraryID == id {
			it.Labels = slices.Clone(it.Labels)
			return it
		}
	}
	return media.Item{}
}

// Collections returns the stored collections of a section.
func (m *MockLibrarier) Collections(sectionID string) []media.Collection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.collections[sectionID])
}

// Calls returns the recorded mutations.
func (m *MockLibrarier) Calls() []Call {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.calls)
}

// ResetCalls forgets the recorded mutations.
func (m *MockLibrarier) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func (m *MockLibrarier) ensureLabel(sectionID, title string) {
	if slices.ContainsFunc(m.labels[sectionID], func(l media.Label) bool { return strings.EqualFold(l.Title, title) }) {
		return
	}
	m.nextKey++
	m.labels[sectionID] = append(m.labels[sectionID], media.Label{Key: strconv.Itoa(m.nextKey), Title: title})
}

func (m *MockLibrarier) ServerIdentity(ctx context.Context) (*library.ServerIdentity, error) {
	if m.ServerIdentityError != nil {
		return nil, m.ServerIdentityError
	}
	id := m.identity
	return &id, nil
}

func (m *MockLibrarier) ListSections(ctx context.Context) ([]media.Section, error) {
	if m.ListSectionsError != nil {
		return nil, m.ListSectionsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.sections), nil
}

func (m *MockLibrarier) ListItems(ctx context.Context, section media.Section) ([]media.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]media.Item, 0, len(m.items[section.ID]))
	for _, it := range m.items[section.ID] {
		it.Labels = slices.Clone(it.Labels)
		items = append(items, it)
	}
	if m.ListItemsError != nil {
		if m.PartialItems {
			return items[:len(items)/2], m.ListItemsError
		}
		return nil, m.ListItemsError
	}
	return items, nil
}

func (m *MockLibrarier) GetItem(ctx context.Context, section media.Section, id string) (*media.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, it := range m.items[section.ID] {
		if it.LibraryID == id {
			it.Labels = slices.Clone(it.Labels)
			return &it, nil
		}
	}
	return nil, fmt.Errorf("item %s: %w", id, library.ErrItemNotFound)
}

func (m *MockLibrarier) ListLabels(ctx context.Context, sectionID string) ([]media.Label, error) {
	if m.ListLabelsError != nil {
		return nil, m.ListLabelsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.labels[sectionID]), nil
}

func (m *MockLibrarier) ListCollections(ctx context.Context, sectionID string) ([]media.Collection, error) {
	if m.ListCollectionsError != nil {
		return nil, m.ListCollectionsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]media.Collection, 0, len(m.collections[sectionID]))
	for _, c := range m.collections[sectionID] {
		c.Labels = slices.Clone(c.Labels)
		out = append(out, c)
	}
	return out, nil
}

// labelsOf returns a pointer to the label slice of the referenced object.
func (m *MockLibrarier) labelsOf(ref library.Ref) (*[]string, error) {
	if ref.Type == library.RefCollection {
		for i := range m.collections[ref.SectionID] {
			if m.collections[ref.SectionID][i].ID == ref.ID {
				return &m.collections[ref.SectionID][i].Labels, nil
			}
		}
	} else {
		for i := range m.items[ref.SectionID] {
			if m.items[ref.SectionID][i].LibraryID == ref.ID {
				return &m.items[ref.SectionID][i].Labels, nil
			}
		}
	}
	return nil, fmt.Errorf("%s %s: %w", ref.Type, ref.ID, library.ErrItemNotFound)
}

func (m *MockLibrarier) AddLabel(ctx context.Context, ref library.Ref, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.AddLabelError != nil {
		return m.AddLabelError
	}
	if err := m.FailItems[ref.ID]; err != nil {
		return err
	}
	labels, err := m.labelsOf(ref)
	if err != nil {
		return err
	}
	m.calls = append(m.calls, Call{Method: "AddLabel", Ref: ref, Value: label})
	if !slices.ContainsFunc(*labels, func(l string) bool { return strings.EqualFold(l, label) }) {
		*labels = append(*labels, label)
	}
	m.ensureLabel(ref.SectionID, label)
	return nil
}

func (m *MockLibrarier) RemoveLabel(ctx context.Context, ref library.Ref, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.RemoveLabelError != nil {
		return m.RemoveLabelError
	}
	if err := m.FailItems[ref.ID]; err != nil {
		return err
	}
	labels, err := m.labelsOf(ref)
	if err != nil {
		return err
	}
	m.calls = append(m.calls, Call{Method: "RemoveLabel", Ref: ref, Value: label})
	*labels = slices.DeleteFunc(*labels, func(l string) bool { return strings.EqualFold(l, label) })
	return nil
}

func (m *MockLibrarier) CreateSmartCollection(ctx context.Context, sc library.SmartCollection) (*media.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateSmartCollectionError != nil {
		return nil, m.CreateSmartCollectionError
	}
	if !slices.ContainsFunc(m.labels[sc.SectionID], func(l media.Label) bool { return l.Key == sc.LabelKey }) {
		return nil, fmt.Errorf("unknown label key %q", sc.LabelKey)
	}
	m.nextKey++
	c := media.Collection{ID: "c" + strconv.Itoa(m.nextKey), Title: sc.Title}
	m.collections[sc.SectionID] = append(m.collections[sc.SectionID], c)
	m.calls = append(m.calls, Call{
		Method: "CreateSmartCollection",
		Ref:    library.Ref{SectionID: sc.SectionID, ID: c.ID, Type: library.RefCollection},
		Value:  sc.Title,
	})
	return &c, nil
}
