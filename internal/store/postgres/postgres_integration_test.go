package postgres

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopdesk/backend/internal/store"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("SHOPDESK_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set SHOPDESK_TEST_DATABASE_URL to run postgres integration test")
	}

	s, err := New(context.Background(), databaseURL)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestSheetRoundTripAndConcurrentMutate(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	sheet := fmt.Sprintf("it-sheet-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sheet_rows WHERE sheet_name = $1`, sheet)
	})

	require.NoError(t, s.WriteSheet(ctx, sheet, []store.Record{{"id": 1, "name": "Case", "price": 99.5}}))

	rows, err := s.ReadSheet(ctx, sheet)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Case", store.Text(rows[0], "name"))
	assert.InDelta(t, 99.5, store.Number(rows[0], "price"), 1e-9)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Mutate(ctx, sheet, func(rows []store.Record) ([]store.Record, error) {
				return append(rows, store.Record{"id": store.NextID(rows)}), nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	next, err := s.NextID(ctx, sheet)
	require.NoError(t, err)
	assert.Equal(t, 12, next)

	var buf bytes.Buffer
	require.NoError(t, s.Export(ctx, &buf))
	assert.NotZero(t, buf.Len())
}
