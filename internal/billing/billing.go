package billing

import (
	"fmt"

	"shopdesk/backend/internal/domain"
)

type TaxConfig struct {
	Enabled  bool
	Type     string
	CGSTRate float64
	SGSTRate float64
	IGSTRate float64
}

type Summary struct {
	Subtotal      float64 `json:"subtotal"`
	CGSTAmount    float64 `json:"cgstAmount"`
	SGSTAmount    float64 `json:"sgstAmount"`
	IGSTAmount    float64 `json:"igstAmount"`
	Total         float64 `json:"total"`
	TotalQuantity float64 `json:"totalQuantity"`
}

// Calculate sums lines with a positive quantity and applies GST. Intra-state
// bills get CGST and SGST; anything else gets IGST. Amounts are not rounded.
func Calculate(items []domain.BillItem, tax TaxConfig) Summary {
	var summary Summary
	for _, item := range items {
		qty := float64(item.Quantity)
		if qty <= 0 {
			continue
		}
		summary.Subtotal += qty * float64(item.Price)
		summary.TotalQuantity += qty
	}

	if !tax.Enabled || summary.Subtotal == 0 {
		summary.Total = summary.Subtotal
		return summary
	}

	if tax.Type == domain.GSTIntra {
		summary.CGSTAmount = summary.Subtotal * tax.CGSTRate / 100
		summary.SGSTAmount = summary.Subtotal * tax.SGSTRate / 100
	} else {
		summary.IGSTAmount = summary.Subtotal * tax.IGSTRate / 100
	}
	summary.Total = summary.Subtotal + summary.CGSTAmount + summary.SGSTAmount + summary.IGSTAmount
	return summary
}

func BillNumber(id int) string {
	return fmt.Sprintf("BILL-%06d", id)
}
