package billing

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"

	"shopdesk/backend/internal/domain"
)

type invoiceLine struct {
	Index    int
	Name     string
	Quantity string
	Price    string
	Amount   string
}

type invoiceView struct {
	Bill          domain.Bill
	Shop          domain.ShopSettings
	AddressLines  []string
	Lines         []invoiceLine
	Intra         bool
	Subtotal      string
	CGSTRate      string
	SGSTRate      string
	IGSTRate      string
	CGSTAmount    string
	SGSTAmount    string
	IGSTAmount    string
	Total         string
	TotalQuantity string
}

// invoiceTmpl renders a printable invoice; html/template escapes every field.
var invoiceTmpl = template.Must(template.New("invoice").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Invoice {{.Bill.BillNumber}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; color: #222; }
    table { width: 100%; border-collapse: collapse; margin-top: 12px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    td.num { text-align: right; }
    .header { display: flex; justify-content: space-between; }
    .totals td { border: none; }
    .signature { margin-top: 48px; text-align: right; }
  </style>
</head>
<body>
  <div class="header">
    <div>
      {{if .Shop.ShopLogoURL}}<img src="{{.Shop.ShopLogoURL}}" alt="logo" height="48" />{{end}}
      <h2>{{.Shop.ShopName}}</h2>
      {{range .AddressLines}}<div>{{.}}</div>{{end}}
      {{if .Shop.ShopPhone}}<div>Phone: {{.Shop.ShopPhone}}</div>{{end}}
      {{if .Shop.ShopEmail}}<div>Email: {{.Shop.ShopEmail}}</div>{{end}}
      {{if .Shop.ShopGSTIN}}<div>GSTIN: {{.Shop.ShopGSTIN}}</div>{{end}}
    </div>
    <div>
      <h3>Invoice {{.Bill.BillNumber}}</h3>
      <div>Date: {{.Bill.Date}}</div>
      <div>Payment: {{.Bill.PaymentMethod}}</div>
    </div>
  </div>

  <h4>Bill To</h4>
  <div>{{.Bill.BuyerName}}</div>
  {{if .Bill.BuyerPhone}}<div>{{.Bill.BuyerPhone}}</div>{{end}}
  {{if .Bill.BuyerEmail}}<div>{{.Bill.BuyerEmail}}</div>{{end}}
  {{if .Bill.BuyerAddress}}<div>{{.Bill.BuyerAddress}}</div>{{end}}

  <table>
    <thead><tr><th>#</th><th>Item</th><th>Qty</th><th>Price</th><th>Amount</th></tr></thead>
    <tbody>{{range .Lines}}<tr><td>{{.Index}}</td><td>{{.Name}}</td><td class="num">{{.Quantity}}</td><td class="num">{{.Price}}</td><td class="num">{{.Amount}}</td></tr>{{end}}</tbody>
  </table>

  <table class="totals">
    <tr><td>Total Quantity</td><td class="num">{{.TotalQuantity}}</td></tr>
    <tr><td>Subtotal</td><td class="num">{{.Subtotal}}</td></tr>
    {{if .Bill.GSTEnabled}}{{if .Intra}}
    <tr><td>CGST ({{.CGSTRate}}%)</td><td class="num">{{.CGSTAmount}}</td></tr>
    <tr><td>SGST ({{.SGSTRate}}%)</td><td class="num">{{.SGSTAmount}}</td></tr>
    {{else}}
    <tr><td>IGST ({{.IGSTRate}}%)</td><td class="num">{{.IGSTAmount}}</td></tr>
    {{end}}{{end}}
    <tr><td><strong>Total</strong></td><td class="num"><strong>{{.Total}}</strong></td></tr>
  </table>

  {{if .Bill.Notes}}<p>Notes: {{.Bill.Notes}}</p>{{end}}
  {{if .Bill.ShowSignature}}<div class="signature">For {{.Shop.ShopName}}<br/><br/><br/>Authorised Signatory</div>{{end}}
</body>
</html>
`))

// RenderInvoice returns the printable HTML for a bill. Money is shown with two
// decimals; the stored amounts stay unrounded.
func RenderInvoice(bill domain.Bill, shop domain.ShopSettings) (string, error) {
	view := invoiceView{
		Bill:          bill,
		Shop:          shop,
		AddressLines:  splitLines(shop.ShopAddress),
		Intra:         bill.GSTType == domain.GSTIntra,
		Subtotal:      money(bill.Subtotal),
		CGSTRate:      rate(bill.CGSTRate),
		SGSTRate:      rate(bill.SGSTRate),
		IGSTRate:      rate(bill.IGSTRate),
		CGSTAmount:    money(bill.CGSTAmount),
		SGSTAmount:    money(bill.SGSTAmount),
		IGSTAmount:    money(bill.IGSTAmount),
		Total:         money(bill.Total),
	}
	totalQty := decimal.Zero
	for _, item := range bill.Items {
		if item.Quantity <= 0 {
			continue
		}
		qty := decimal.NewFromFloat(float64(item.Quantity))
		price := decimal.NewFromFloat(float64(item.Price))
		view.Lines = append(view.Lines, invoiceLine{
			Index:    len(view.Lines) + 1,
			Name:     item.Name,
			Quantity: qty.String(),
			Price:    price.StringFixed(2),
			Amount:   qty.Mul(price).StringFixed(2),
		})
		totalQty = totalQty.Add(qty)
	}
	view.TotalQuantity = totalQty.String()

	var buf bytes.Buffer
	if err := invoiceTmpl.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func rate(v float64) string {
	return decimal.NewFromFloat(v).String()
}

func splitLines(s string) []string {
	lines := make([]string, 0)
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
