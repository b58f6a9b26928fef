package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountAcceptsNumbersAndStrings(t *testing.T) {
	var req ProductRequest
	err := json.Unmarshal([]byte(`{"name":"Case","category":"Acc","quantity":"3","buyPrice":"12.50","sellPrice":20}`), &req)
	require.NoError(t, err)
	assert.Equal(t, 3.0, req.Quantity.Value())
	assert.Equal(t, 12.5, req.BuyPrice.Value())
	assert.Equal(t, 20.0, req.SellPrice.Value())

	var missing ProductRequest
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Case"}`), &missing))
	assert.Nil(t, missing.Quantity)
	assert.Equal(t, 0.0, missing.Quantity.Value())
}

func TestAmountRejectsGarbage(t *testing.T) {
	var a Amount
	assert.Error(t, json.Unmarshal([]byte(`"twelve"`), &a))
}

func TestBillItemDecodesClientPayload(t *testing.T) {
	var item BillItem
	require.NoError(t, json.Unmarshal([]byte(`{"id":4,"type":"product","name":"Cable","quantity":"2","price":99.5}`), &item))
	assert.Equal(t, Amount(2), item.Quantity)
	assert.Equal(t, Amount(99.5), item.Price)
	assert.Equal(t, 4.0, item.ID)
}

func TestAmountRejectsNonFiniteValues(t *testing.T) {
	for _, raw := range []string{`"NaN"`, `"Inf"`, `"-Infinity"`, `"+inf"`, `1e400`} {
		var a Amount
		assert.Error(t, json.Unmarshal([]byte(raw), &a), raw)
	}

	var req OtherRequest
	assert.Error(t, json.Unmarshal([]byte(`{"category":"Recharge","description":"x","amount":"Infinity"}`), &req))
}
