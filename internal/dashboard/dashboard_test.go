package dashboard

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopdesk/backend/internal/store"
	"shopdesk/backend/internal/store/memory"
)

// 2026-03-15 is a Sunday.
var fixedNow = time.Date(2026, time.March, 15, 10, 30, 0, 0, time.UTC)

func newAggregator(sheets map[string][]store.Record) *Aggregator {
	return New(memory.NewSeeded(sheets), time.UTC).WithClock(func() time.Time { return fixedNow })
}

func TestChart7DaysWithNoData(t *testing.T) {
	chart, err := newAggregator(nil).Chart(context.Background(), View7Days, "", "")
	require.NoError(t, err)
	require.Len(t, chart.Labels, 7)
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 0, 0}, chart.Data)
	assert.Equal(t, "Mon 9", chart.Labels[0])
	assert.Equal(t, "Sun 15", chart.Labels[6])
}

func TestChart7DaysCombinesSources(t *testing.T) {
	agg := newAggregator(map[string][]store.Record{
		store.SheetSales:  {{"Date": "2026-03-15", "Total": "100"}},
		store.SheetBills:  {{"date": "2026-03-15", "total": "295"}, {"createdAt": "2026-03-14T08:00:00Z", "total": "50"}},
		store.SheetOthers: {{"date": "2026-03-09", "amount": "20"}, {"date": "2026-03-01", "amount": "999"}},
	})

	chart, err := agg.Chart(context.Background(), View7Days, "", "")
	require.NoError(t, err)
	assert.Equal(t, []float64{20, 0, 0, 0, 0, 50, 395}, chart.Data)
}

func TestChartDefaultsTo30DayWeeks(t *testing.T) {
	agg := newAggregator(map[string][]store.Record{
		store.SheetOthers: {
			{"date": "2026-03-15", "amount": "10"},
			{"date": "2026-03-09", "amount": "5"},
			{"date": "2026-03-08", "amount": "7"},
			{"date": "2026-02-09", "amount": "3"},
			{"date": "2026-02-08", "amount": "1000"},
		},
	})

	chart, err := agg.Chart(context.Background(), "", "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Week 1", "Week 2", "Week 3", "Week 4", "Week 5"}, chart.Labels)
	assert.Equal(t, []float64{3, 0, 0, 7, 15}, chart.Data)
}

func TestChartMonth(t *testing.T) {
	agg := newAggregator(map[string][]store.Record{
		store.SheetBills: {{"date": "2026-03-01", "total": "10"}, {"date": "2025-04-30", "total": "4"}, {"date": "2025-03-31", "total": "99"}},
	})

	chart, err := agg.Chart(context.Background(), ViewMonth, "", "")
	require.NoError(t, err)
	require.Len(t, chart.Labels, 12)
	assert.Equal(t, "Apr 2025", chart.Labels[0])
	assert.Equal(t, "Mar 2026", chart.Labels[11])
	assert.Equal(t, 4.0, chart.Data[0])
	assert.Equal(t, 10.0, chart.Data[11])
}

func TestChartCustomDaily(t *testing.T) {
	agg := newAggregator(map[string][]store.Record{
		store.SheetOthers: {{"date": "2026-01-02", "amount": "12.5"}},
	})

	chart, err := agg.Chart(context.Background(), ViewCustom, "2026-01-01", "2026-01-03")
	require.NoError(t, err)
	assert.Equal(t, []string{"1 Jan", "2 Jan", "3 Jan"}, chart.Labels)
	assert.Equal(t, []float64{0, 12.5, 0}, chart.Data)
}

func TestChartCustomWeeklyClipsToEnd(t *testing.T) {
	agg := newAggregator(map[string][]store.Record{
		store.SheetOthers: {{"date": "2026-02-10", "amount": "1"}},
	})

	chart, err := agg.Chart(context.Background(), ViewCustom, "2026-01-01", "2026-02-10")
	require.NoError(t, err)
	require.Len(t, chart.Labels, 6)
	assert.Equal(t, "1 Jan - 7 Jan", chart.Labels[0])
	assert.Equal(t, "5 Feb - 10 Feb", chart.Labels[5])
	assert.Equal(t, 1.0, chart.Data[5])
}

func TestChartCustomRangeIsBounded(t *testing.T) {
	agg := newAggregator(nil)

	chart, err := agg.Chart(context.Background(), ViewCustom, "0001-01-01", "9999-12-31")
	require.NoError(t, err)
	assert.Empty(t, chart.Labels)

	chart, err = agg.Chart(context.Background(), ViewCustom, "2020-01-01", "2026-12-31")
	require.NoError(t, err)
	assert.Len(t, chart.Labels, 366)
	assert.Equal(t, "1 Jan - 7 Jan", chart.Labels[0])
}

func TestChartInvalidInputsAreEmpty(t *testing.T) {
	agg := newAggregator(nil)
	for _, tc := range []struct{ view, start, end string }{
		{ViewCustom, "", "2026-01-01"},
		{ViewCustom, "not-a-date", "2026-01-01"},
		{"year", "", ""},
	} {
		chart, err := agg.Chart(context.Background(), tc.view, tc.start, tc.end)
		require.NoError(t, err)
		assert.Empty(t, chart.Labels, tc)
		assert.NotNil(t, chart.Data)
	}
}

func TestStats(t *testing.T) {
	agg := newAggregator(map[string][]store.Record{
		store.SheetSales:  {{"date": "2026-03-15", "amount": "100"}, {"date": "2026-01-01", "amount": "1"}},
		store.SheetBills:  {{"date": "2026-03-15", "total": "295"}},
		store.SheetOthers: {{"date": "2026-03-14", "amount": "bad"}, {"date": "2026-03-14", "amount": "5"}},
		store.SheetRepairs: {
			{"status": "Pending"},
			{"Status": "In Progress"},
			{"status": ""},
			{"status": "Completed"},
			{"status": "Delivered"},
		},
		store.SheetProducts: {
			{"quantity": "0"},
			{"quantity": "5"},
			{"Stock": "2"},
			{"quantity": "6"},
		},
	})

	stats, err := agg.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 395.0, stats.TodayRevenue)
	assert.Equal(t, 401.0, stats.TotalRevenue)
	assert.Equal(t, 3, stats.PendingServices)
	assert.Equal(t, 2, stats.LowStockAlerts)
}

func TestTodayUsesConfiguredZone(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	// 20:00 UTC on the 14th is already the 15th in India.
	agg := New(memory.NewSeeded(map[string][]store.Record{
		store.SheetOthers: {{"date": "2026-03-15", "amount": "8"}},
	}), kolkata).WithClock(func() time.Time { return time.Date(2026, time.March, 14, 20, 0, 0, 0, time.UTC) })

	stats, err := agg.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8.0, stats.TodayRevenue)
}

func TestParseDay(t *testing.T) {
	day, ok := parseDay("45000")
	require.True(t, ok)
	assert.Equal(t, "2023-03-15", day.Format(isoDate))

	_, ok = parseDay("yesterday")
	assert.False(t, ok)
}
