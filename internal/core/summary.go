package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TrendMonths is the length of the revenue/expense series on the dashboard.
const TrendMonths = 6

const (
	// Lenient counts missing or malformed amounts as zero.
	Lenient CoercionPolicy = iota
	// Strict rejects the whole batch on the first malformed record.
	Strict
)

type (
	// CoercionPolicy decides what happens to records whose numeric or
	// categorical fields are missing.
	CoercionPolicy int

	// PaymentRecord is a payment row as read back from the store. Fields
	// may be missing, so amounts are nullable and enums stay raw.
	PaymentRecord struct {
		ID          string
		ServiceType string
		Status      string
		Amount      decimal.NullDecimal
		GSTAmount   decimal.NullDecimal
		BookingDate Date
	}

	// ExpenseRecord carries the two expense columns the dashboard reads.
	ExpenseRecord struct {
		ID          string
		Amount      decimal.NullDecimal
		ExpenseDate Date
	}

	AggregateInput struct {
		Payments    []PaymentRecord
		Expenses    []ExpenseRecord
		ClientCount int
		// Now anchors the trend. Its location decides which calendar month
		// is "current".
		Now time.Time
	}

	AggregateOptions struct {
		Policy CoercionPolicy
	}

	// ServiceRevenue is base revenue for one service category.
	ServiceRevenue struct {
		Service ServiceCategory `json:"service"`
		Label   string          `json:"label"`
		Revenue decimal.Decimal `json:"revenue"`
	}

	// MonthPoint is one slot of the trailing trend.
	MonthPoint struct {
		Label    string          `json:"label"`
		Year     int             `json:"year"`
		Month    int             `json:"month"` // 1-12
		Revenue  decimal.Decimal `json:"revenue"`
		Expenses decimal.Decimal `json:"expenses"`
		Net      decimal.Decimal `json:"net"`
	}

	// DashboardSummary is everything the dashboard page renders.
	DashboardSummary struct {
		TotalClients    int              `json:"total_clients"`
		TotalRevenue    decimal.Decimal  `json:"total_revenue"`
		GSTCollected    decimal.Decimal  `json:"gst_collected"`
		PendingPayments decimal.Decimal  `json:"pending_payments"`
		TotalExpenses   decimal.Decimal  `json:"total_expenses"`
		NetProfit       decimal.Decimal  `json:"net_profit"`
		ByService       []ServiceRevenue `json:"by_service"`
		Trend           []MonthPoint     `json:"trend"`
	}
)

func (p CoercionPolicy) String() string {
	switch p {
	case Lenient:
		return "lenient"
	case Strict:
		return "strict"
	default:
		return fmt.Sprintf("CoercionPolicy(%d)", int(p))
	}
}

func ParseCoercionPolicy(s string) (CoercionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lenient":
		return Lenient, nil
	case "strict":
		return Strict, nil
	default:
		return Lenient, fmt.Errorf("unknown coercion policy %q", s)
	}
}

// Aggregate computes dashboard totals, the per-service breakdown and the
// trailing TrendMonths series. Each collection is walked once.
func Aggregate(in AggregateInput, opts AggregateOptions) (DashboardSummary, error) {
	trend, slot := newTrend(in.Now)

	sum := DashboardSummary{
		TotalClients:    in.ClientCount,
		TotalRevenue:    decimal.Zero,
		GSTCollected:    decimal.Zero,
		PendingPayments: decimal.Zero,
		TotalExpenses:   decimal.Zero,
		Trend:           trend,
	}
	byService := make(map[ServiceCategory]decimal.Decimal, 3)

	for i, p := range in.Payments {
		amount, err := coerce(opts.Policy, p.Amount, "payments", i, "amount")
		if err != nil {
			return DashboardSummary{}, err
		}
		gst, err := coerce(opts.Policy, p.GSTAmount, "payments", i, "gst_amount")
		if err != nil {
			return DashboardSummary{}, err
		}
		service, serviceErr := ParseServiceCategory(p.ServiceType)
		status, statusErr := ParsePaymentStatus(p.Status)
		if opts.Policy == Strict {
			switch {
			case serviceErr != nil:
				return DashboardSummary{}, &ValidationError{Record: "payments", Index: i, Field: "service_type", Reason: "unknown value " + quote(p.ServiceType)}
			case statusErr != nil:
				return DashboardSummary{}, &ValidationError{Record: "payments", Index: i, Field: "payment_status", Reason: "unknown value " + quote(p.Status)}
			case p.BookingDate.IsZero():
				return DashboardSummary{}, &ValidationError{Record: "payments", Index: i, Field: "booking_date", Reason: "missing"}
			}
		}

		sum.TotalRevenue = sum.TotalRevenue.Add(amount)
		sum.GSTCollected = sum.GSTCollected.Add(gst)
		if statusErr == nil && status == StatusPending {
			sum.PendingPayments = sum.PendingPayments.Add(amount)
		}
		if serviceErr == nil {
			byService[service] = byService[service].Add(amount)
		}
		if j, ok := slot(p.BookingDate); ok {
			trend[j].Revenue = trend[j].Revenue.Add(amount)
		}
	}

	for i, e := range in.Expenses {
		amount, err := coerce(opts.Policy, e.Amount, "expenses", i, "amount")
		if err != nil {
			return DashboardSummary{}, err
		}
		if opts.Policy == Strict && e.ExpenseDate.IsZero() {
			return DashboardSummary{}, &ValidationError{Record: "expenses", Index: i, Field: "expense_date", Reason: "missing"}
		}
		sum.TotalExpenses = sum.TotalExpenses.Add(amount)
		if j, ok := slot(e.ExpenseDate); ok {
			trend[j].Expenses = trend[j].Expenses.Add(amount)
		}
	}

	for i := range trend {
		trend[i].Net = trend[i].Revenue.Sub(trend[i].Expenses)
	}
	for _, s := range ServiceCategories() {
		rev, ok := byService[s]
		if !ok {
			rev = decimal.Zero
		}
		sum.ByService = append(sum.ByService, ServiceRevenue{Service: s, Label: s.Label(), Revenue: rev})
	}
	sum.NetProfit = sum.TotalRevenue.Sub(sum.TotalExpenses)
	return sum, nil
}

// Revenue returns the base revenue for one service, or zero.
func (s DashboardSummary) Revenue(service ServiceCategory) decimal.Decimal {
	for _, r := range s.ByService {
		if r.Service == service {
			return r.Revenue
		}
	}
	return decimal.Zero
}

// newTrend builds the zero-filled slots, oldest first, and a lookup from a
// date to its slot index.
func newTrend(now time.Time) ([]MonthPoint, func(Date) (int, bool)) {
	anchor := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	trend := make([]MonthPoint, TrendMonths)
	index := make(map[int]int, TrendMonths)
	for i := TrendMonths - 1; i >= 0; i-- {
		m := anchor.AddDate(0, -i, 0)
		j := TrendMonths - 1 - i
		trend[j] = MonthPoint{
			Label:    m.Month().String()[:3],
			Year:     m.Year(),
			Month:    int(m.Month()),
			Revenue:  decimal.Zero,
			Expenses: decimal.Zero,
			Net:      decimal.Zero,
		}
		index[monthKey(m.Year(), m.Month())] = j
	}
	return trend, func(d Date) (int, bool) {
		if d.IsZero() {
			return 0, false
		}
		j, ok := index[monthKey(d.Year(), d.Month())]
		return j, ok
	}
}

func monthKey(year int, month time.Month) int {
	return year*12 + int(month) - 1
}

func coerce(policy CoercionPolicy, v decimal.NullDecimal, record string, index int, field string) (decimal.Decimal, error) {
	if v.Valid {
		if policy == Strict && v.Decimal.IsNegative() {
			return decimal.Zero, &ValidationError{Record: record, Index: index, Field: field, Reason: "negative"}
		}
		return v.Decimal, nil
	}
	if policy == Strict {
		return decimal.Zero, &ValidationError{Record: record, Index: index, Field: field, Reason: "missing"}
	}
	return decimal.Zero, nil
}

func quote(s string) string {
	return fmt.Sprintf("%q", s)
}
