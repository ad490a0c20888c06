package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelx/internal/cache"
	"travelx/internal/core"
)

type fakeReader struct {
	clients  int
	payments []core.PaymentRecord
	expenses []core.ExpenseRecord
	failOn   string
	calls    atomic.Int32
}

func (f *fakeReader) CountClients(context.Context) (int, error) {
	f.calls.Add(1)
	if f.failOn == "clients" {
		return 0, errors.New("connection reset")
	}
	return f.clients, nil
}

func (f *fakeReader) ListPayments(context.Context) ([]core.PaymentRecord, error) {
	if f.failOn == "payments" {
		return nil, errors.New("connection reset")
	}
	return f.payments, nil
}

func (f *fakeReader) ListExpenses(context.Context) ([]core.ExpenseRecord, error) {
	if f.failOn == "expenses" {
		return nil, errors.New("connection reset")
	}
	return f.expenses, nil
}

func nd(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

var may2024 = time.Date(2024, time.May, 20, 10, 0, 0, 0, time.UTC)

func sampleReader() *fakeReader {
	return &fakeReader{
		clients: 1,
		payments: []core.PaymentRecord{
			{ID: "p1", ServiceType: "tour", Status: "pending", Amount: nd("100"), GSTAmount: nd("5"), BookingDate: core.NewDate(2024, 3, 15)},
		},
		expenses: []core.ExpenseRecord{
			{ID: "e1", Amount: nd("40"), ExpenseDate: core.NewDate(2024, 3, 1)},
		},
	}
}

func TestDashboardService_Summary(t *testing.T) {
	svc := NewDashboardService(sampleReader(), nil)

	sum, err := svc.Summary(context.Background(), may2024)
	require.NoError(t, err)
	assert.True(t, sum.TotalRevenue.Equal(decimal.NewFromInt(100)))
	assert.True(t, sum.NetProfit.Equal(decimal.NewFromInt(60)))
	assert.Equal(t, 1, sum.TotalClients)
	assert.Equal(t, "Mar", sum.Trend[3].Label)
	assert.True(t, sum.Trend[3].Net.Equal(decimal.NewFromInt(60)))
}

func TestDashboardService_FetchFailureSkipsAggregation(t *testing.T) {
	for _, op := range []string{"clients", "payments", "expenses"} {
		t.Run(op, func(t *testing.T) {
			r := sampleReader()
			r.failOn = op
			_, err := NewDashboardService(r, nil).Summary(context.Background(), may2024)

			var ferr *core.FetchError
			require.True(t, errors.As(err, &ferr), "got %v", err)
			assert.Equal(t, op, ferr.Op)
		})
	}
}

func TestDashboardService_StrictPolicy(t *testing.T) {
	r := sampleReader()
	r.payments = append(r.payments, core.PaymentRecord{ID: "p2", ServiceType: "taxi", Status: "completed", BookingDate: core.NewDate(2024, 4, 1)})

	_, err := NewDashboardService(r, nil, WithCoercionPolicy(core.Strict)).Summary(context.Background(), may2024)
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 1, verr.Index)

	sum, err := NewDashboardService(r, nil).Summary(context.Background(), may2024)
	require.NoError(t, err)
	assert.True(t, sum.TotalRevenue.Equal(decimal.NewFromInt(100)))
}

func TestDashboardService_CacheAndInvalidate(t *testing.T) {
	r := sampleReader()
	svc := NewDashboardService(r, nil, WithSummaryCache(cache.NewLRUCache[core.DashboardSummary](4, time.Minute)))
	ctx := context.Background()

	_, err := svc.Summary(ctx, may2024)
	require.NoError(t, err)
	_, err = svc.Summary(ctx, may2024.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int32(1), r.calls.Load(), "same month served from cache")

	_, err = svc.Summary(ctx, may2024.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, int32(2), r.calls.Load(), "new month recomputes")

	svc.Invalidate()
	_, err = svc.Summary(ctx, may2024)
	require.NoError(t, err)
	assert.Equal(t, int32(3), r.calls.Load())
}

func TestDashboardService_Timezone(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	svc := NewDashboardService(&fakeReader{}, nil, WithTimezone(ist))

	sum, err := svc.Summary(context.Background(), time.Date(2024, time.May, 31, 20, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "Jun", sum.Trend[len(sum.Trend)-1].Label)
}

func TestDashboardService_ExportCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewDashboardService(sampleReader(), nil).ExportCSV(context.Background(), &buf, may2024))

	r := csv.NewReader(&buf)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)

	assert.Equal(t, []string{"Metric", "Value"}, records[0])
	assert.Equal(t, []string{"Total Revenue", "100.00"}, records[2])
	assert.Contains(t, records, []string{"Tour", "100.00"})
	assert.Contains(t, records, []string{"Mar 2024", "100.00", "40.00", "60.00"})
	assert.Equal(t, []string{"May 2024", "0.00", "0.00", "0.00"}, records[len(records)-1])
}
