package store

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextID(t *testing.T) {
	assert.Equal(t, 1, NextID(nil))
	assert.Equal(t, 6, NextID([]Record{{"id": "2"}, {"id": 5.0}, {"ID": "3"}}))
	assert.Equal(t, 1, NextID([]Record{{"id": "abc"}, {"name": "no id"}}))
	assert.Equal(t, 8, NextID([]Record{{"id": "7.0"}}))
}

func TestLookupResolutionOrder(t *testing.T) {
	row := Record{"Quantity": "4", "stock": "9"}
	assert.Equal(t, 4, Int(row, "quantity", "Quantity", "stock", "Stock"))

	row = Record{"stock": "9"}
	assert.Equal(t, 9, Int(row, "quantity", "Quantity", "stock", "Stock"))

	row = Record{"quantity": "", "Quantity": "2"}
	assert.Equal(t, 2, Int(row, "quantity", "Quantity"), "blank cells count as absent")

	assert.Equal(t, 0, Int(Record{}, "quantity", "Quantity"))
}

func TestNumberSkipsUnparseable(t *testing.T) {
	row := Record{"amount": "n/a", "Amount": "12.5"}
	assert.InDelta(t, 12.5, Number(row, "amount", "Amount"), 1e-9)

	_, ok := NumberOK(Record{"amount": "x"}, "amount")
	assert.False(t, ok)

	for _, bad := range []any{"NaN", "Infinity", "-Inf", math.Inf(1), math.NaN()} {
		_, ok := NumberOK(Record{"amount": bad}, "amount")
		assert.False(t, ok, "%v", bad)
	}
	assert.Equal(t, 7.0, Number(Record{"amount": "NaN", "Amount": "7"}, "amount", "Amount"))
}

func TestFlag(t *testing.T) {
	assert.True(t, Flag(Record{"gstEnabled": "TRUE"}, "gstEnabled"))
	assert.True(t, Flag(Record{"gstEnabled": true}, "gstEnabled"))
	assert.True(t, Flag(Record{"GST Enabled": "1"}, "gstEnabled", "GST Enabled"))
	assert.False(t, Flag(Record{"gstEnabled": "false"}, "gstEnabled"))
	assert.False(t, Flag(Record{}, "gstEnabled"))
}

func TestTextOr(t *testing.T) {
	assert.Equal(t, "Cash", TextOr(Record{}, "Cash", "paymentMethod"))
	assert.Equal(t, "UPI", TextOr(Record{"Payment Method": " UPI "}, "Cash", "paymentMethod", "Payment Method"))
	assert.Equal(t, "42", Text(Record{"id": 42.0}, "id"))
}

func TestCanonicalSheet(t *testing.T) {
	name, ok := CanonicalSheet("other categories")
	assert.True(t, ok)
	assert.Equal(t, SheetOtherCategories, name)

	name, ok = CanonicalSheet("shop_settings")
	assert.True(t, ok)
	assert.Equal(t, SheetShopSettings, name)

	_, ok = CanonicalSheet("Sheet1")
	assert.False(t, ok)
	assert.True(t, SameSheet("PRODUCTS", "Products"))
}

func TestColumnsOrdersPreferredThenAlphabetical(t *testing.T) {
	rows := []Record{
		{"name": "a", "zeta": 1, "id": 1},
		{"alpha": 2, "name": "b"},
	}
	assert.Equal(t, []string{"id", "name", "alpha", "zeta"}, Columns(rows, []string{"id", "name", "missing"}))
}

func TestCloneRecordsIsDeep(t *testing.T) {
	rows := []Record{{"id": 1}}
	cloned := CloneRecords(rows)
	cloned[0]["id"] = 2
	assert.Equal(t, 1, rows[0]["id"])
}
