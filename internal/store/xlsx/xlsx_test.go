package xlsx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"shopdesk/backend/internal/logging"
	"shopdesk/backend/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "data.xlsx"), WithLogger(logging.Discard()))
	require.NoError(t, err)
	return s
}

func writeWorkbook(t *testing.T, path string, sheets map[string][][]any) {
	t.Helper()
	f := excelize.NewFile()
	first := true
	for name, rows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName("Sheet1", name))
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for i := range rows {
			row := rows[i]
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
}

func TestReadMissingFileReturnsEmpty(t *testing.T) {
	s := newTestStore(t)
	rows, err := s.ReadSheet(context.Background(), store.SheetProducts)
	require.NoError(t, err)
	assert.Empty(t, rows)

	id, err := s.NextID(context.Background(), store.SheetProducts)
	require.NoError(t, err)
	assert.Equal(t, 1, id)
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.WriteSheet(ctx, store.SheetProducts, []store.Record{
		{"id": 1, "name": "Charger", "category": "Accessories", "quantity": 4, "buyPrice": 150.5, "sellPrice": 250, "notes": ""},
		{"id": 2, "name": "Cable", "category": "Accessories", "quantity": 0, "buyPrice": 40, "sellPrice": 99, "customerPhone": "0987"},
	})
	require.NoError(t, err)

	rows, err := s.ReadSheet(ctx, store.SheetProducts)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Charger", store.Text(rows[0], "name"))
	assert.InDelta(t, 150.5, store.Number(rows[0], "buyPrice"), 1e-9)
	assert.Equal(t, 4, store.Int(rows[0], "quantity"))
	_, hasNotes := rows[0]["notes"]
	assert.False(t, hasNotes, "empty cells are absent")
	assert.Equal(t, "0987", store.Text(rows[1], "customerPhone"))

	id, err := s.NextID(ctx, store.SheetProducts)
	require.NoError(t, err)
	assert.Equal(t, 3, id)
}

func TestCellValueKeepsNonFiniteTextAsText(t *testing.T) {
	assert.Equal(t, 12.5, cellValue("12.5"))
	assert.Equal(t, "0987", cellValue("0987"))
	assert.Equal(t, "NaN", cellValue("NaN"))
	assert.Equal(t, "Inf", cellValue("Inf"))
	assert.Equal(t, "", cellValue(math.NaN()))
	assert.Equal(t, "", cellValue(math.Inf(-1)))
}

func TestTextNaNIsWrittenAsStringCell(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteSheet(ctx, store.SheetProducts, []store.Record{{"id": 1, "name": "NaN", "quantity": 2}}))

	f, err := excelize.OpenFile(s.Path())
	require.NoError(t, err)
	defer f.Close()
	cellType, err := f.GetCellType(store.SheetProducts, "B2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeNumber, cellType)

	rows, err := s.ReadSheet(ctx, store.SheetProducts)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "NaN", store.Text(rows[0], "name"))
}

func TestWritePreservesOtherSheets(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteSheet(ctx, store.SheetUsers, []store.Record{{"id": 1, "username": "admin"}}))
	require.NoError(t, s.WriteSheet(ctx, store.SheetOthers, []store.Record{{"id": 1, "category": "Xerox", "amount": 20}}))

	users, err := s.ReadSheet(ctx, store.SheetUsers)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "admin", store.Text(users[0], "username"))
}

func TestSheetNameNormalisation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	writeWorkbook(t, s.Path(), map[string][][]any{
		"other categories": {{"Name", "Description"}, {"Recharge", "Mobile"}},
	})

	rows, err := s.ReadSheet(ctx, store.SheetOtherCategories)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Recharge", store.Text(rows[0], "name", "Name"))

	require.NoError(t, s.WriteSheet(ctx, store.SheetOtherCategories, []store.Record{{"name": "Xerox"}}))

	f, err := excelize.OpenFile(s.Path())
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{store.SheetOtherCategories}, f.GetSheetList())
}

func TestMutateErrorLeavesSheetUntouched(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteSheet(ctx, store.SheetCategories, []store.Record{{"id": 1, "name": "Phones"}}))

	boom := errors.New("boom")
	err := s.Mutate(ctx, store.SheetCategories, func(rows []store.Record) ([]store.Record, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	rows, err := s.ReadSheet(ctx, store.SheetCategories)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestLockedWriteRetriesThenGivesUp(t *testing.T) {
	s := newTestStore(t)
	attempts := 0
	var waits []time.Duration
	s.save = func(string, *excelize.File) error {
		attempts++
		return &os.PathError{Op: "rename", Path: s.path, Err: syscall.EBUSY}
	}
	s.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	err := s.WriteSheet(context.Background(), store.SheetProducts, []store.Record{{"id": 1}})
	require.ErrorIs(t, err, store.ErrLocked)
	assert.Equal(t, 4, attempts)
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 400 * time.Millisecond, 600 * time.Millisecond}, waits)
}

func TestLockedWriteSucceedsOnRetry(t *testing.T) {
	s := newTestStore(t)
	attempts := 0
	s.save = func(path string, f *excelize.File) error {
		attempts++
		if attempts < 3 {
			return errors.New("resource busy or locked")
		}
		return saveAtomic(path, f)
	}
	s.sleep = func(context.Context, time.Duration) error { return nil }

	require.NoError(t, s.WriteSheet(context.Background(), store.SheetProducts, []store.Record{{"id": 1, "name": "Case"}}))
	assert.Equal(t, 3, attempts)

	rows, err := s.ReadSheet(context.Background(), store.SheetProducts)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestNonLockErrorIsNotRetried(t *testing.T) {
	s := newTestStore(t)
	attempts := 0
	s.save = func(string, *excelize.File) error {
		attempts++
		return fmt.Errorf("disk full")
	}

	err := s.WriteSheet(context.Background(), store.SheetProducts, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrLocked)
	assert.Equal(t, 1, attempts)
}

func TestRetryWaitHonoursCancellation(t *testing.T) {
	s := newTestStore(t)
	s.save = func(string, *excelize.File) error { return syscall.EBUSY }

	ctx, cancel := context.WithCancel(context.Background())
	s.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return sleepContext(ctx, d)
	}

	err := s.WriteSheet(ctx, store.SheetProducts, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestResetKeepsUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteSheet(ctx, store.SheetUsers, []store.Record{{"id": 1, "username": "admin"}}))
	require.NoError(t, s.WriteSheet(ctx, store.SheetBills, []store.Record{{"id": 1, "total": 100}}))
	require.NoError(t, s.WriteSheet(ctx, store.SheetProducts, []store.Record{{"id": 1, "name": "Case"}}))

	require.NoError(t, s.Reset(ctx))

	for _, sheet := range []string{store.SheetBills, store.SheetProducts} {
		rows, err := s.ReadSheet(ctx, sheet)
		require.NoError(t, err)
		assert.Empty(t, rows, sheet)
	}
	users, err := s.ReadSheet(ctx, store.SheetUsers)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestMigrateLegacy(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	legacyDir := t.TempDir()
	writeWorkbook(t, filepath.Join(legacyDir, "products.xlsx"), map[string][][]any{
		"Sheet1": {{"ID", "Name", "Stock"}, {1, "Tempered glass", 3}},
	})
	writeWorkbook(t, filepath.Join(legacyDir, "users.xlsx"), map[string][][]any{
		"Sheet1": {{"id", "username"}, {1, "legacy"}},
	})
	require.NoError(t, s.WriteSheet(ctx, store.SheetUsers, []store.Record{{"id": 1, "username": "admin"}}))

	migrated, err := s.MigrateLegacy(ctx, legacyDir)
	require.NoError(t, err)
	assert.Equal(t, []string{store.SheetProducts}, migrated)

	products, err := s.ReadSheet(ctx, store.SheetProducts)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Tempered glass", store.Text(products[0], "name", "Name"))
	assert.Equal(t, 3, store.Int(products[0], "quantity", "Quantity", "stock", "Stock"))

	users, err := s.ReadSheet(ctx, store.SheetUsers)
	require.NoError(t, err)
	assert.Equal(t, "admin", store.Text(users[0], "username"))

	again, err := s.MigrateLegacy(ctx, legacyDir)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestExport(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var buf bytes.Buffer
	require.ErrorIs(t, s.Export(ctx, &buf), store.ErrNotFound)

	require.NoError(t, s.WriteSheet(ctx, store.SheetProducts, []store.Record{{"id": 1, "name": "Case"}}))
	require.NoError(t, s.Export(ctx, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), store.SheetProducts)
}

func TestEncodeOrdersKnownSheetsFirst(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, map[string][]store.Record{
		"Notes":             {{"text": "hello"}},
		store.SheetOthers:   {{"id": 1, "amount": 10}},
		store.SheetProducts: {},
	}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{store.SheetProducts, store.SheetOthers, "Notes"}, f.GetSheetList())

	header, err := f.GetRows(store.SheetProducts)
	require.NoError(t, err)
	require.NotEmpty(t, header)
	assert.Equal(t, store.Schema[store.SheetProducts], header[0])
}

func TestIsLockError(t *testing.T) {
	assert.True(t, isLockError(syscall.EBUSY))
	assert.True(t, isLockError(errors.New("The process cannot access the file because it is being used by another process.")))
	assert.True(t, isLockError(errors.New("file is locked")))
	assert.False(t, isLockError(errors.New("permission denied")))
}
