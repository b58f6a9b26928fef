package store

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Lookup returns the first key holding a non-empty value. Keys are tried in
// order, so callers list camelCase first, then Title Case, then legacy aliases.
func Lookup(row Record, keys ...string) (any, bool) {
	for _, key := range keys {
		v, ok := row[key]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

func Text(row Record, keys ...string) string {
	v, ok := Lookup(row, keys...)
	if !ok {
		return ""
	}
	return toString(v)
}

// TextOr is Text with a default for absent keys.
func TextOr(row Record, fallback string, keys ...string) string {
	if s := Text(row, keys...); s != "" {
		return s
	}
	return fallback
}

// Number parses the first present key as a float. Unparseable values fall
// through to the next key; 0 when nothing parses.
func Number(row Record, keys ...string) float64 {
	n, _ := NumberOK(row, keys...)
	return n
}

func NumberOK(row Record, keys ...string) (float64, bool) {
	for _, key := range keys {
		v, ok := Lookup(row, key)
		if !ok {
			continue
		}
		if n, ok := toFloat(v); ok {
			return n, true
		}
	}
	return 0, false
}

func Int(row Record, keys ...string) int {
	return int(math.Trunc(Number(row, keys...)))
}

func Flag(row Record, keys ...string) bool {
	v, ok := Lookup(row, keys...)
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case float64:
		return b != 0
	case int:
		return b != 0
	}
	switch strings.ToLower(strings.TrimSpace(toString(v))) {
	case "true", "1", "yes", "y":
		return true
	}
	return false
}

// Columns orders headers: the preferred ones first (when present in any row),
// then every other key alphabetically.
func Columns(rows []Record, preferred []string) []string {
	seen := make(map[string]bool)
	present := make(map[string]bool)
	for _, row := range rows {
		for k := range row {
			present[k] = true
		}
	}

	headers := make([]string, 0, len(present))
	for _, col := range preferred {
		if present[col] && !seen[col] {
			headers = append(headers, col)
			seen[col] = true
		}
	}
	extra := make([]string, 0)
	for k := range present {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(headers, extra...)
}

// Schema holds the canonical column order per sheet.
var Schema = map[string][]string{
	SheetUsers:           {"id", "username", "password", "email", "role"},
	SheetProducts:        {"id", "name", "category", "quantity", "buyPrice", "sellPrice", "notes", "createdAt", "updatedAt"},
	SheetCategories:      {"id", "name", "description"},
	SheetRepairs:         {"id", "customerName", "customerPhone", "deviceName", "issue", "estimatedCost", "status", "notes", "date", "createdAt", "updatedAt"},
	SheetBills:           {"id", "billNumber", "buyerName", "buyerPhone", "buyerEmail", "buyerAddress", "items", "gstEnabled", "gstType", "cgstRate", "sgstRate", "igstRate", "paymentMethod", "notes", "showSignature", "subtotal", "cgstAmount", "sgstAmount", "igstAmount", "total", "date", "createdAt"},
	SheetSales:           {"id", "date", "amount", "notes"},
	SheetShopSettings:    {"shopName", "shopPhone", "shopEmail", "shopGstin", "shopAddress", "defaultCgstRate", "defaultSgstRate", "defaultIgstRate", "shopLogoUrl", "updatedAt"},
	SheetOthers:          {"id", "category", "description", "customerName", "amount", "notes", "date", "createdAt", "updatedAt"},
	SheetOtherCategories: {"name", "description"},
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		f := float64(n)
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case bool:
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(toString(v)), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
