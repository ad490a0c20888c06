package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"travelx/internal/cache"
	"travelx/internal/core"
	"travelx/internal/log"
	"travelx/internal/store"
)

// DashboardService fetches ledger rows and aggregates them for the
// dashboard. Results are cached per trend anchor month until the next write.
type DashboardService struct {
	reader store.DashboardReader
	cache  cache.Cache[core.DashboardSummary]
	policy core.CoercionPolicy
	loc    *time.Location
	logger *log.Logger
}

type DashboardOption func(*DashboardService)

func WithCoercionPolicy(p core.CoercionPolicy) DashboardOption {
	return func(s *DashboardService) { s.policy = p }
}

// WithTimezone sets the location used to decide the current month.
func WithTimezone(loc *time.Location) DashboardOption {
	return func(s *DashboardService) { s.loc = loc }
}

func WithSummaryCache(c cache.Cache[core.DashboardSummary]) DashboardOption {
	return func(s *DashboardService) { s.cache = c }
}

func NewDashboardService(reader store.DashboardReader, logger *log.Logger, opts ...DashboardOption) *DashboardService {
	if logger == nil {
		logger = log.Discard()
	}
	s := &DashboardService{
		reader: reader,
		policy: core.Lenient,
		loc:    time.UTC,
		logger: logger.WithComponent(log.ComponentDashboard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summary returns the dashboard summary anchored on now. All three fetches
// must succeed; the first failure is returned as a *core.FetchError and
// nothing is aggregated.
func (s *DashboardService) Summary(ctx context.Context, now time.Time) (core.DashboardSummary, error) {
	now = now.In(s.loc)
	key := s.cacheKey(now)
	if s.cache != nil {
		if sum, ok := s.cache.Get(key); ok {
			s.logger.DebugContext(ctx, "Dashboard summary served from cache", log.FieldTrendAnchor, key)
			return sum, nil
		}
	}

	var in core.AggregateInput
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.reader.CountClients(gctx)
		if err != nil {
			return &core.FetchError{Op: "clients", Err: err}
		}
		in.ClientCount = n
		return nil
	})
	g.Go(func() error {
		rows, err := s.reader.ListPayments(gctx)
		if err != nil {
			return &core.FetchError{Op: "payments", Err: err}
		}
		in.Payments = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.reader.ListExpenses(gctx)
		if err != nil {
			return &core.FetchError{Op: "expenses", Err: err}
		}
		in.Expenses = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "Dashboard fetch failed", log.FieldError, err, log.FieldOperation, log.OpList)
		return core.DashboardSummary{}, err
	}

	in.Now = now
	sum, err := core.Aggregate(in, core.AggregateOptions{Policy: s.policy})
	if err != nil {
		s.logger.WarnContext(ctx, "Dashboard aggregation rejected input",
			log.FieldError, err,
			log.FieldPolicy, s.policy.String(),
			log.FieldOperation, log.OpAggregate)
		return core.DashboardSummary{}, err
	}

	if s.cache != nil {
		s.cache.Set(key, sum)
	}
	s.logger.InfoContext(ctx, "Dashboard summary computed",
		log.FieldTrendAnchor, key,
		"payments", len(in.Payments),
		"expenses", len(in.Expenses))
	return sum, nil
}

// Invalidate drops cached summaries. LedgerService calls it after writes.
func (s *DashboardService) Invalidate() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

// ExportCSV writes the summary block, the service breakdown and the trend
// as one CSV document.
func (s *DashboardService) ExportCSV(ctx context.Context, w io.Writer, now time.Time) error {
	sum, err := s.Summary(ctx, now)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	rows := [][]string{
		{"Metric", "Value"},
		{"Total Clients", strconv.Itoa(sum.TotalClients)},
		{"Total Revenue", sum.TotalRevenue.StringFixed(2)},
		{"GST Collected", sum.GSTCollected.StringFixed(2)},
		{"Pending Payments", sum.PendingPayments.StringFixed(2)},
		{"Total Expenses", sum.TotalExpenses.StringFixed(2)},
		{"Net Profit", sum.NetProfit.StringFixed(2)},
		{},
		{"Service", "Revenue"},
	}
	for _, r := range sum.ByService {
		rows = append(rows, []string{r.Label, r.Revenue.StringFixed(2)})
	}
	rows = append(rows, []string{}, []string{"Month", "Revenue", "Expenses", "Net"})
	for _, m := range sum.Trend {
		rows = append(rows, []string{
			fmt.Sprintf("%s %d", m.Label, m.Year),
			m.Revenue.StringFixed(2),
			m.Expenses.StringFixed(2),
			m.Net.StringFixed(2),
		})
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func (s *DashboardService) cacheKey(now time.Time) string {
	return fmt.Sprintf("%04d-%02d/%s", now.Year(), int(now.Month()), s.policy)
}
