package dashboard

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"shopdesk/backend/internal/domain"
	"shopdesk/backend/internal/store"
)

const (
	View7Days  = "7days"
	View30Days = "30days"
	ViewMonth  = "month"
	ViewCustom = "custom"

	lowStockThreshold = 5
	// maxCustomSpanDays bounds a custom range to 366 weekly buckets.
	maxCustomSpanDays = 366 * 7
	isoDate           = "2006-01-02"
)

// excelEpoch is day zero for spreadsheet serial dates.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

type Aggregator struct {
	repo store.Repository
	loc  *time.Location
	now  func() time.Time
}

func New(repo store.Repository, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{repo: repo, loc: loc, now: time.Now}
}

// WithClock replaces the clock; used by tests.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

type revenue struct {
	day    time.Time
	dated  bool
	amount float64
}

func (a *Aggregator) Stats(ctx context.Context) (domain.DashboardStats, error) {
	var stats domain.DashboardStats

	entries, err := a.revenue(ctx)
	if err != nil {
		return stats, err
	}
	today := a.today()
	for _, entry := range entries {
		stats.TotalRevenue += entry.amount
		if entry.dated && entry.day.Equal(today) {
			stats.TodayRevenue += entry.amount
		}
	}

	repairs, err := a.repo.ReadSheet(ctx, store.SheetRepairs)
	if err != nil {
		return stats, err
	}
	for _, row := range repairs {
		switch strings.ToLower(store.Text(row, "status", "Status")) {
		case "pending", "in progress", "":
			stats.PendingServices++
		}
	}

	products, err := a.repo.ReadSheet(ctx, store.SheetProducts)
	if err != nil {
		return stats, err
	}
	for _, row := range products {
		stock := store.Number(row, "stock", "Stock", "quantity", "Quantity")
		if stock > 0 && stock <= lowStockThreshold {
			stats.LowStockAlerts++
		}
	}
	return stats, nil
}

// Chart buckets revenue for the given view. An empty view means 30days.
// Unknown views and custom ranges without valid dates yield no buckets.
func (a *Aggregator) Chart(ctx context.Context, viewType, startDate, endDate string) (domain.ChartData, error) {
	chart := domain.ChartData{Labels: []string{}, Data: []float64{}}

	viewType = strings.TrimSpace(viewType)
	if viewType == "" {
		viewType = View30Days
	}
	switch viewType {
	case View7Days, View30Days, ViewMonth, ViewCustom:
	default:
		return chart, nil
	}

	entries, err := a.revenue(ctx)
	if err != nil {
		return chart, err
	}
	today := a.today()

	add := func(label string, match func(day time.Time) bool) {
		total := 0.0
		for _, entry := range entries {
			if entry.dated && match(entry.day) {
				total += entry.amount
			}
		}
		chart.Labels = append(chart.Labels, label)
		chart.Data = append(chart.Data, total)
	}

	switch viewType {
	case View7Days:
		for i := 6; i >= 0; i-- {
			day := today.AddDate(0, 0, -i)
			add(day.Format("Mon 2"), sameDay(day))
		}
	case View30Days:
		for k := 4; k >= 0; k-- {
			from := today.AddDate(0, 0, -(k*7 + 6))
			to := today.AddDate(0, 0, -k*7)
			add(fmt.Sprintf("Week %d", 5-k), between(from, to))
		}
	case ViewMonth:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		for i := 11; i >= 0; i-- {
			month := first.AddDate(0, -i, 0)
			add(month.Format("Jan 2006"), func(day time.Time) bool {
				return day.Year() == month.Year() && day.Month() == month.Month()
			})
		}
	case ViewCustom:
		start, okStart := parseISODate(startDate)
		end, okEnd := parseISODate(endDate)
		if !okStart || !okEnd {
			return chart, nil
		}
		span := int((end.Unix() - start.Unix()) / 86400)
		if span > maxCustomSpanDays {
			return chart, nil
		}
		if span <= 31 {
			for i := 0; i <= span; i++ {
				day := start.AddDate(0, 0, i)
				add(day.Format("2 Jan"), sameDay(day))
			}
			return chart, nil
		}
		for from := start; !from.After(end); {
			to := from.AddDate(0, 0, 6)
			if to.After(end) {
				to = end
			}
			add(from.Format("2 Jan")+" - "+to.Format("2 Jan"), between(from, to))
			from = to.AddDate(0, 0, 1)
		}
	}
	return chart, nil
}

func (a *Aggregator) revenue(ctx context.Context) ([]revenue, error) {
	sources := []struct {
		sheet  string
		amount []string
	}{
		{store.SheetSales, []string{"amount", "Amount", "total", "Total"}},
		{store.SheetBills, []string{"total", "Total"}},
		{store.SheetOthers, []string{"amount", "Amount"}},
	}

	entries := make([]revenue, 0, 128)
	for _, source := range sources {
		rows, err := a.repo.ReadSheet(ctx, source.sheet)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			day, dated := parseDay(store.Text(row, "date", "Date", "createdAt"))
			entries = append(entries, revenue{
				day:    day,
				dated:  dated,
				amount: store.Number(row, source.amount...),
			})
		}
	}
	return entries, nil
}

func (a *Aggregator) today() time.Time {
	now := a.now().In(a.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func sameDay(day time.Time) func(time.Time) bool {
	return func(other time.Time) bool { return other.Equal(day) }
}

func between(from, to time.Time) func(time.Time) bool {
	return func(day time.Time) bool { return !day.Before(from) && !day.After(to) }
}

func parseISODate(raw string) (time.Time, bool) {
	t, err := time.Parse(isoDate, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// parseDay reads the calendar date of a stored value: an ISO date, the date
// part of an ISO timestamp, or a spreadsheet serial number.
func parseDay(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if len(raw) >= len(isoDate) {
		if day, ok := parseISODate(raw[:len(isoDate)]); ok {
			return day, true
		}
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil && serial > 0 && serial < 2958466 {
		return excelEpoch.AddDate(0, 0, int(serial)), true
	}
	return time.Time{}, false
}
