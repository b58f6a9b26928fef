package store

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid request")
	ErrConflict = errors.New("already exists")
	ErrLocked   = errors.New("data file is locked; close data.xlsx if it is open in Excel or another program and try again")
)

const (
	SheetUsers           = "Users"
	SheetProducts        = "Products"
	SheetCategories      = "Categories"
	SheetRepairs         = "Repairs"
	SheetBills           = "Bills"
	SheetSales           = "Sales"
	SheetShopSettings    = "ShopSettings"
	SheetOthers          = "Others"
	SheetOtherCategories = "OtherCategories"
)

// Sheets lists every sheet in workbook order.
var Sheets = []string{
	SheetUsers,
	SheetProducts,
	SheetCategories,
	SheetRepairs,
	SheetBills,
	SheetSales,
	SheetShopSettings,
	SheetOthers,
	SheetOtherCategories,
}

// Record is one sheet row keyed by column header. Values read back from a
// workbook are strings; callers go through the field helpers.
type Record map[string]any

// MutateFunc receives the current rows and returns the replacement rows.
// Returning an error leaves the sheet untouched.
type MutateFunc func(rows []Record) ([]Record, error)

type Repository interface {
	ReadSheet(ctx context.Context, name string) ([]Record, error)
	WriteSheet(ctx context.Context, name string, records []Record) error
	NextID(ctx context.Context, name string) (int, error)
	Mutate(ctx context.Context, name string, fn MutateFunc) error
	// Reset empties every sheet except Users.
	Reset(ctx context.Context) error
	Export(ctx context.Context, w io.Writer) error
}

// Observer receives write outcomes from a Repository.
type Observer interface {
	SheetWritten(sheet string, err error)
	LockRetried(sheet string)
}

type NopObserver struct{}

func (NopObserver) SheetWritten(string, error) {}
func (NopObserver) LockRetried(string)         {}

// NextID returns max(id)+1 over rows with a positive numeric id, or 1.
func NextID(rows []Record) int {
	maxID := 0
	for _, row := range rows {
		if id := RecordID(row); id > maxID {
			maxID = id
		}
	}
	return maxID + 1
}

// RecordID reads the id/ID column; non-numeric ids count as 0.
func RecordID(row Record) int {
	raw, ok := Lookup(row, "id", "ID")
	if !ok {
		return 0
	}
	switch v := raw.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	id, err := strconv.Atoi(strings.TrimSpace(toString(raw)))
	if err != nil {
		f, ferr := strconv.ParseFloat(strings.TrimSpace(toString(raw)), 64)
		if ferr != nil {
			return 0
		}
		return int(f)
	}
	return id
}

// CanonicalSheet maps a workbook sheet name onto one of Sheets, ignoring case,
// spaces, underscores and dashes. ok is false for unknown sheets.
func CanonicalSheet(name string) (string, bool) {
	key := sheetKey(name)
	for _, sheet := range Sheets {
		if sheetKey(sheet) == key {
			return sheet, true
		}
	}
	return "", false
}

// SameSheet reports whether two sheet names normalise to the same key.
func SameSheet(a, b string) bool {
	return sheetKey(a) == sheetKey(b)
}

func sheetKey(name string) string {
	replacer := strings.NewReplacer(" ", "", "_", "", "-", "")
	return strings.ToLower(replacer.Replace(strings.TrimSpace(name)))
}

// CloneRecords copies the rows and their maps so callers can mutate freely.
func CloneRecords(rows []Record) []Record {
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		copied := make(Record, len(row))
		for k, v := range row {
			copied[k] = v
		}
		out = append(out, copied)
	}
	return out
}
