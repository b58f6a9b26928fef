package xlsx

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"shopdesk/backend/internal/store"
)

// table is one worksheet as raw rows; rows[0] is the header when present.
type table struct {
	name string
	rows [][]any
}

func readTables(f *excelize.File) ([]table, error) {
	names := f.GetSheetList()
	tables := make([]table, 0, len(names))
	for _, name := range names {
		raw, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", name, err)
		}
		rows := make([][]any, 0, len(raw))
		for _, r := range raw {
			row := make([]any, len(r))
			for i, cell := range r {
				row[i] = cell
			}
			rows = append(rows, row)
		}
		tables = append(tables, table{name: name, rows: rows})
	}
	return tables, nil
}

func (t table) records() []store.Record {
	if len(t.rows) == 0 {
		return []store.Record{}
	}
	header := make([]string, len(t.rows[0]))
	for i, cell := range t.rows[0] {
		header[i] = strings.TrimSpace(fmt.Sprint(cell))
	}

	records := make([]store.Record, 0, len(t.rows)-1)
	for _, row := range t.rows[1:] {
		record := store.Record{}
		for i, cell := range row {
			if i >= len(header) || header[i] == "" {
				continue
			}
			if s, ok := cell.(string); ok && s == "" {
				continue
			}
			record[header[i]] = cell
		}
		if len(record) == 0 {
			continue
		}
		records = append(records, record)
	}
	return records
}

func tableFromRecords(name string, records []store.Record) table {
	headers := store.Columns(records, store.Schema[name])
	if len(records) == 0 {
		headers = append([]string(nil), store.Schema[name]...)
	}

	rows := make([][]any, 0, len(records)+1)
	if len(headers) > 0 {
		header := make([]any, len(headers))
		for i, h := range headers {
			header[i] = h
		}
		rows = append(rows, header)
	}
	for _, record := range records {
		row := make([]any, len(headers))
		for i, h := range headers {
			row[i] = cellValue(record[h])
		}
		rows = append(rows, row)
	}
	return table{name: name, rows: rows}
}

// cellValue stores canonical numeric strings as numbers so the sheet stays
// usable in a spreadsheet program. Strings like "0987" stay text.
func cellValue(v any) any {
	switch value := v.(type) {
	case nil:
		return ""
	case float64:
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return ""
		}
		return value
	case string:
		f, err := strconv.ParseFloat(value, 64)
		if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) && strconv.FormatFloat(f, 'f', -1, 64) == value {
			return f
		}
		return value
	default:
		return value
	}
}

// replaceTable swaps in t for any sheet whose name normalises to the same key,
// keeping the position of the first match.
func replaceTable(tables []table, t table) []table {
	out := make([]table, 0, len(tables)+1)
	placed := false
	for _, existing := range tables {
		if store.SameSheet(existing.name, t.name) {
			if !placed {
				out = append(out, t)
				placed = true
			}
			continue
		}
		out = append(out, existing)
	}
	if !placed {
		out = append(out, t)
	}
	return out
}

func findTable(tables []table, name string) (table, bool) {
	for _, t := range tables {
		if t.name == name {
			return t, true
		}
	}
	for _, t := range tables {
		if store.SameSheet(t.name, name) {
			return t, true
		}
	}
	return table{}, false
}

func build(tables []table) (*excelize.File, error) {
	f := excelize.NewFile()
	const defaultSheet = "Sheet1"
	for i, t := range tables {
		if i == 0 {
			if t.name != defaultSheet {
				if err := f.SetSheetName(defaultSheet, t.name); err != nil {
					_ = f.Close()
					return nil, err
				}
			}
		} else if _, err := f.NewSheet(t.name); err != nil {
			_ = f.Close()
			return nil, err
		}
		for r := range t.rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				_ = f.Close()
				return nil, err
			}
			row := t.rows[r]
			if err := f.SetSheetRow(t.name, cell, &row); err != nil {
				_ = f.Close()
				return nil, fmt.Errorf("write sheet %s: %w", t.name, err)
			}
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

// Encode renders sheets as a workbook: known sheets in workbook order, then
// any others alphabetically.
func Encode(w io.Writer, sheets map[string][]store.Record) error {
	tables := make([]table, 0, len(sheets))
	for _, name := range store.Sheets {
		if records, ok := sheets[name]; ok {
			tables = append(tables, tableFromRecords(name, records))
		}
	}
	extra := make([]string, 0)
	for name := range sheets {
		if _, known := store.CanonicalSheet(name); !known {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		tables = append(tables, tableFromRecords(name, sheets[name]))
	}

	f, err := build(tables)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}
