package memory

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"shopdesk/backend/internal/store"
)

func TestReadReturnsCopies(t *testing.T) {
	s := NewSeeded(map[string][]store.Record{
		store.SheetProducts: {{"id": 1, "name": "Case"}},
	})
	ctx := context.Background()

	rows, err := s.ReadSheet(ctx, "products")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	rows[0]["name"] = "changed"

	again, err := s.ReadSheet(ctx, store.SheetProducts)
	require.NoError(t, err)
	assert.Equal(t, "Case", again[0]["name"])
}

func TestConcurrentMutateAllocatesUniqueIDs(t *testing.T) {
	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Mutate(ctx, store.SheetOthers, func(rows []store.Record) ([]store.Record, error) {
				return append(rows, store.Record{"id": store.NextID(rows)}), nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rows, err := s.ReadSheet(ctx, store.SheetOthers)
	require.NoError(t, err)
	require.Len(t, rows, 25)
	seen := map[int]bool{}
	for _, row := range rows {
		id := store.RecordID(row)
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
}

func TestMutateErrorKeepsRows(t *testing.T) {
	s := NewSeeded(map[string][]store.Record{store.SheetRepairs: {{"id": 1}}})
	err := s.Mutate(context.Background(), store.SheetRepairs, func([]store.Record) ([]store.Record, error) {
		return nil, errors.New("nope")
	})
	require.Error(t, err)

	rows, err := s.ReadSheet(context.Background(), store.SheetRepairs)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestResetAndExport(t *testing.T) {
	s := NewSeeded(map[string][]store.Record{
		store.SheetUsers: {{"id": 1, "username": "admin"}},
		store.SheetBills: {{"id": 1, "total": 10}},
	})
	ctx := context.Background()
	require.NoError(t, s.Reset(ctx))

	bills, err := s.ReadSheet(ctx, store.SheetBills)
	require.NoError(t, err)
	assert.Empty(t, bills)

	var buf bytes.Buffer
	require.NoError(t, s.Export(ctx, &buf))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(store.SheetUsers)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "admin", rows[1][1])
}
