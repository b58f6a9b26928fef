package service

import (
	"context"
	"encoding/json"
	"strings"

	"shopdesk/backend/internal/billing"
	"shopdesk/backend/internal/domain"
	"shopdesk/backend/internal/store"
)

// decodeItems reads the items cell, which holds a JSON array. A malformed
// cell yields no items instead of failing the whole listing.
func (s *Service) decodeItems(id int, raw any) []domain.BillItem {
	items := []domain.BillItem{}
	var data []byte
	switch v := raw.(type) {
	case nil:
		return items
	case string:
		if strings.TrimSpace(v) == "" {
			return items
		}
		data = []byte(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			s.log.WithError(err).WithField("bill", id).Warn("bill items are not encodable")
			return items
		}
		data = encoded
	}
	if err := json.Unmarshal(data, &items); err != nil {
		s.log.WithError(err).WithField("bill", id).Warn("bill items cell is not valid JSON")
		return []domain.BillItem{}
	}
	return items
}

func (s *Service) billFromRecord(row store.Record) domain.Bill {
	id := store.RecordID(row)
	rawItems, _ := store.Lookup(row, "items", "Items")
	return domain.Bill{
		ID:            id,
		BillNumber:    store.Text(row, "billNumber", "Bill Number"),
		BuyerName:     store.Text(row, "buyerName", "Buyer Name"),
		BuyerPhone:    store.Text(row, "buyerPhone", "Buyer Phone"),
		BuyerEmail:    store.Text(row, "buyerEmail", "Buyer Email"),
		BuyerAddress:  store.Text(row, "buyerAddress", "Buyer Address"),
		Items:         s.decodeItems(id, rawItems),
		GSTEnabled:    store.Flag(row, "gstEnabled", "GST Enabled"),
		GSTType:       store.TextOr(row, domain.GSTIntra, "gstType", "GST Type"),
		CGSTRate:      store.Number(row, "cgstRate", "CGST Rate"),
		SGSTRate:      store.Number(row, "sgstRate", "SGST Rate"),
		IGSTRate:      store.Number(row, "igstRate", "IGST Rate"),
		PaymentMethod: store.TextOr(row, "Cash", "paymentMethod", "Payment Method"),
		Notes:         store.Text(row, "notes", "Notes"),
		ShowSignature: store.Flag(row, "showSignature", "Show Signature"),
		Subtotal:      store.Number(row, "subtotal", "Subtotal"),
		CGSTAmount:    store.Number(row, "cgstAmount", "CGST Amount"),
		SGSTAmount:    store.Number(row, "sgstAmount", "SGST Amount"),
		IGSTAmount:    store.Number(row, "igstAmount", "IGST Amount"),
		Total:         store.Number(row, "total", "Total"),
		Date:          store.Text(row, "date", "Date", "createdAt", "Created At"),
		CreatedAt:     store.Text(row, "createdAt", "Created At", "date", "Date"),
	}
}

func billRecord(b domain.Bill) (store.Record, error) {
	items := b.Items
	if items == nil {
		items = []domain.BillItem{}
	}
	encoded, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return store.Record{
		"id":            b.ID,
		"billNumber":    b.BillNumber,
		"buyerName":     b.BuyerName,
		"buyerPhone":    b.BuyerPhone,
		"buyerEmail":    b.BuyerEmail,
		"buyerAddress":  b.BuyerAddress,
		"items":         string(encoded),
		"gstEnabled":    b.GSTEnabled,
		"gstType":       b.GSTType,
		"cgstRate":      b.CGSTRate,
		"sgstRate":      b.SGSTRate,
		"igstRate":      b.IGSTRate,
		"paymentMethod": b.PaymentMethod,
		"notes":         b.Notes,
		"showSignature": b.ShowSignature,
		"subtotal":      b.Subtotal,
		"cgstAmount":    b.CGSTAmount,
		"sgstAmount":    b.SGSTAmount,
		"igstAmount":    b.IGSTAmount,
		"total":         b.Total,
		"date":          b.Date,
		"createdAt":     b.CreatedAt,
	}, nil
}

func (s *Service) billsFromRecords(rows []store.Record) []domain.Bill {
	bills := make([]domain.Bill, 0, len(rows))
	for _, row := range rows {
		bills = append(bills, s.billFromRecord(row))
	}
	return bills
}

func (s *Service) ListBills(ctx context.Context) ([]domain.Bill, error) {
	rows, err := s.repo.ReadSheet(ctx, store.SheetBills)
	if err != nil {
		return nil, err
	}
	return s.billsFromRecords(rows), nil
}

func (s *Service) GetBill(ctx context.Context, id int) (domain.Bill, error) {
	bills, err := s.ListBills(ctx)
	if err != nil {
		return domain.Bill{}, err
	}
	for _, b := range bills {
		if b.ID == id {
			return b, nil
		}
	}
	return domain.Bill{}, notFound("Bill not found")
}

// CreateBill recomputes the summary server side. Rates the client leaves out
// come from the shop defaults; rates that do not apply to the GST type are
// stored as zero.
func (s *Service) CreateBill(ctx context.Context, req domain.BillRequest) (domain.Bill, error) {
	req.BuyerName = strings.TrimSpace(req.BuyerName)
	req.GSTType = strings.ToLower(strings.TrimSpace(req.GSTType))
	if err := s.check(req, "Buyer name and at least one item are required"); err != nil {
		return domain.Bill{}, err
	}
	if req.GSTType == "" {
		req.GSTType = domain.GSTIntra
	}
	paymentMethod := strings.TrimSpace(req.PaymentMethod)
	if paymentMethod == "" {
		paymentMethod = "Cash"
	}

	shop, err := s.GetShopSettings(ctx)
	if err != nil {
		return domain.Bill{}, err
	}
	rateOr := func(v *domain.Amount, fallback float64) float64 {
		if v == nil {
			return fallback
		}
		return v.Value()
	}

	bill := domain.Bill{
		BuyerName:     req.BuyerName,
		BuyerPhone:    strings.TrimSpace(req.BuyerPhone),
		BuyerEmail:    strings.TrimSpace(req.BuyerEmail),
		BuyerAddress:  strings.TrimSpace(req.BuyerAddress),
		Items:         make([]domain.BillItem, 0, len(req.Items)),
		GSTEnabled:    req.GSTEnabled,
		GSTType:       req.GSTType,
		PaymentMethod: paymentMethod,
		Notes:         strings.TrimSpace(req.Notes),
		ShowSignature: req.ShowSignature,
	}
	for _, item := range req.Items {
		item.Name = strings.TrimSpace(item.Name)
		if item.Type == "" {
			item.Type = "custom"
		}
		bill.Items = append(bill.Items, item)
	}
	if bill.GSTEnabled && bill.GSTType == domain.GSTIntra {
		bill.CGSTRate = rateOr(req.CGSTRate, shop.DefaultCGSTRate)
		bill.SGSTRate = rateOr(req.SGSTRate, shop.DefaultSGSTRate)
	}
	if bill.GSTEnabled && bill.GSTType == domain.GSTInter {
		bill.IGSTRate = rateOr(req.IGSTRate, shop.DefaultIGSTRate)
	}

	summary := billing.Calculate(bill.Items, billing.TaxConfig{
		Enabled:  bill.GSTEnabled,
		Type:     bill.GSTType,
		CGSTRate: bill.CGSTRate,
		SGSTRate: bill.SGSTRate,
		IGSTRate: bill.IGSTRate,
	})
	bill.Subtotal = summary.Subtotal
	bill.CGSTAmount = summary.CGSTAmount
	bill.SGSTAmount = summary.SGSTAmount
	bill.IGSTAmount = summary.IGSTAmount
	bill.Total = summary.Total

	err = s.repo.Mutate(ctx, store.SheetBills, func(rows []store.Record) ([]store.Record, error) {
		bill.ID = store.NextID(rows)
		bill.BillNumber = billing.BillNumber(bill.ID)
		bill.Date = s.today()
		bill.CreatedAt = s.timestamp()
		row, err := billRecord(bill)
		if err != nil {
			return nil, err
		}
		return append(rows, row), nil
	})
	if err != nil {
		return domain.Bill{}, err
	}
	s.audit(ctx, "create", "bill", bill.ID)
	return bill, nil
}

func (s *Service) DeleteBill(ctx context.Context, id int) error {
	err := s.repo.Mutate(ctx, store.SheetBills, func(rows []store.Record) ([]store.Record, error) {
		// Rows are filtered raw so an unreadable items cell survives untouched.
		kept := make([]store.Record, 0, len(rows))
		for _, row := range rows {
			if store.RecordID(row) != id {
				kept = append(kept, row)
			}
		}
		if len(kept) == len(rows) {
			return nil, notFound("Bill not found")
		}
		return kept, nil
	})
	if err != nil {
		return err
	}
	s.audit(ctx, "delete", "bill", id)
	return nil
}

// PrintBill renders the stored bill as a printable HTML invoice.
func (s *Service) PrintBill(ctx context.Context, id int) (string, error) {
	bill, err := s.GetBill(ctx, id)
	if err != nil {
		return "", err
	}
	shop, err := s.GetShopSettings(ctx)
	if err != nil {
		return "", err
	}
	return billing.RenderInvoice(bill, shop)
}
