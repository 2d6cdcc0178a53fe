package pagination

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID   int
	Name string
}

func recordKey(r record) int { return r.ID }

// pagedSource serves records in pages whose reported size varies per call.
type pagedSource struct {
	records   []record
	pageSizes []int
	calls     int
}

func (s *pagedSource) fetch(_ context.Context, offset, limit int) (Page[record], error) {
	size := limit
	if len(s.pageSizes) > 0 {
		size = s.pageSizes[s.calls%len(s.pageSizes)]
	}
	s.calls++

	end := min(offset+size, len(s.records))
	var items []record
	if offset < len(s.records) {
		items = s.records[offset:end]
	}
	return Page[record]{
		Items:         items,
		TotalCount:    len(s.records),
		PageSize:      size,
		CurrentOffset: offset,
	}, nil
}

func makeRecords(n int) []record {
	out := make([]record, n)
	for i := range out {
		out[i] = record{ID: i + 1}
	}
	return out
}

func TestDrain_Completeness(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		pageSizes []int
	}{
		{name: "single page", total: 7, pageSizes: []int{100}},
		{name: "exact pages", total: 30, pageSizes: []int{10}},
		{name: "ragged last page", total: 25, pageSizes: []int{10}},
		{name: "fluctuating server page size", total: 53, pageSizes: []int{7, 3, 11, 5}},
		{name: "server page size of one", total: 9, pageSizes: []int{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &pagedSource{records: makeRecords(tt.total), pageSizes: tt.pageSizes}

			got, err := Drain(context.Background(), src.fetch, recordKey)
			require.NoError(t, err)
			assert.Len(t, got, tt.total)

			ids := make(map[int]struct{}, len(got))
			for _, r := range got {
				ids[r.ID] = struct{}{}
			}
			assert.Len(t, ids, tt.total, "items must be unique")
		})
	}
}

func TestDrain_DeduplicatesOverlappingPages(t *testing.T) {
	// Each page repeats the last item of the previous one.
	pages := map[int]Page[record]{
		0: {Items: []record{{ID: 1}, {ID: 2}, {ID: 3}}, TotalCount: 5, PageSize: 2, CurrentOffset: 0},
		2: {Items: []record{{ID: 3}, {ID: 4}}, TotalCount: 5, PageSize: 2, CurrentOffset: 2},
		4: {Items: []record{{ID: 4}, {ID: 5}}, TotalCount: 5, PageSize: 2, CurrentOffset: 4},
	}
	fetch := func(_ context.Context, offset, _ int) (Page[record], error) {
		return pages[offset], nil
	}

	got, err := Drain(context.Background(), fetch, recordKey)
	require.NoError(t, err)
	assert.Equal(t, []record{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 5}}, got)
}

func TestDrain_EmptyTotalStopsAfterOneCall(t *testing.T) {
	calls := 0
	fetch := func(_ context.Context, _, _ int) (Page[record], error) {
		calls++
		return Page[record]{TotalCount: 0, PageSize: 100}, nil
	}

	got, err := Drain(context.Background(), fetch, recordKey)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
	assert.Equal(t, 1, calls)
}

func TestDrain_NonAdvancingOffsetTerminates(t *testing.T) {
	calls := 0
	fetch := func(_ context.Context, _, _ int) (Page[record], error) {
		calls++
		// always claims to be the first page
		return Page[record]{Items: []record{{ID: calls}}, TotalCount: 50, PageSize: 1, CurrentOffset: 0}, nil
	}

	got, err := Drain(context.Background(), fetch, recordKey)
	require.ErrorIs(t, err, ErrPartialPagination)
	assert.Equal(t, 2, calls)
	assert.Len(t, got, 1)
}

func TestDrain_ZeroPageSizeTerminates(t *testing.T) {
	calls := 0
	fetch := func(_ context.Context, _, _ int) (Page[record], error) {
		calls++
		return Page[record]{Items: []record{{ID: 1}}, TotalCount: 10, PageSize: 0}, nil
	}

	got, err := Drain(context.Background(), fetch, recordKey)
	require.ErrorIs(t, err, ErrPartialPagination)
	assert.Equal(t, 1, calls)
	assert.Len(t, got, 1)
}

func TestDrain_DuplicatesNeverConverge(t *testing.T) {
	// The server reports 10 results but keeps returning the same item.
	fetch := func(_ context.Context, offset, _ int) (Page[record], error) {
		return Page[record]{Items: []record{{ID: 1}}, TotalCount: 10, PageSize: 1, CurrentOffset: offset}, nil
	}

	got, err := Drain(context.Background(), fetch, recordKey)
	require.ErrorIs(t, err, ErrPartialPagination)
	assert.Len(t, got, 1)
}

func TestDrain_MaxPages(t *testing.T) {
	calls := 0
	fetch := func(_ context.Context, offset, _ int) (Page[record], error) {
		calls++
		return Page[record]{Items: []record{{ID: offset}}, TotalCount: 1000, PageSize: 1, CurrentOffset: offset}, nil
	}

	got, err := Drain(context.Background(), fetch, recordKey, WithMaxPages(5))
	require.ErrorIs(t, err, ErrPartialPagination)
	assert.Equal(t, 5, calls)
	assert.Len(t, got, 5)
}

func TestDrain_FetchErrorReturnsPartial(t *testing.T) {
	boom := errors.New("connection reset")
	fetch := func(_ context.Context, offset, _ int) (Page[record], error) {
		if offset >= 4 {
			return Page[record]{}, boom
		}
		return Page[record]{
			Items:         []record{{ID: offset + 1}, {ID: offset + 2}},
			TotalCount:    8,
			PageSize:      2,
			CurrentOffset: offset,
		}, nil
	}

	got, err := Drain(context.Background(), fetch, recordKey)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, boom)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, 4, fetchErr.Offset)
	assert.Len(t, got, 4)
}

func TestDrain_FirstPageError(t *testing.T) {
	fetch := func(_ context.Context, _, _ int) (Page[record], error) {
		return Page[record]{}, errors.New("unauthorized")
	}

	got, err := Drain(context.Background(), fetch, recordKey)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Empty(t, got)
}

func TestDrain_RequestsConfiguredPageSize(t *testing.T) {
	var limits []int
	fetch := func(_ context.Context, offset, limit int) (Page[record], error) {
		limits = append(limits, limit)
		// server caps the page size at 20
		return Page[record]{
			Items:         makeRecords(60)[offset:min(offset+20, 60)],
			TotalCount:    60,
			PageSize:      20,
			CurrentOffset: offset,
		}, nil
	}

	got, err := Drain(context.Background(), fetch, recordKey, WithPageSize(50))
	require.NoError(t, err)
	assert.Len(t, got, 60)
	assert.Equal(t, []int{50, 50, 50}, limits)
}
