package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/comings/prepaid-api/internal/core/domain"
	"github.com/comings/prepaid-api/internal/port"
)

type PeriodType string

const (
	PeriodDaily   PeriodType = "daily"
	PeriodWeekly  PeriodType = "weekly"
	PeriodMonthly PeriodType = "monthly"
)

func (p PeriodType) Valid() bool {
	return p == PeriodDaily || p == PeriodWeekly || p == PeriodMonthly
}

type Summary struct {
	TodayCharge    int64
	TodayDeduct    int64
	TotalBalance   int64
	TotalCustomers int
}

type PeriodBucket struct {
	Period           string
	ChargeAmount     int64
	DeductAmount     int64
	TransactionCount int
}

type TopCustomer struct {
	CustomerID   string
	Name         string
	TotalCharged int64
	VisitCount   int
}

type MethodStat struct {
	Method     domain.PaymentMethod
	Count      int
	Amount     int64
	Percentage float64
}

type MenuCount struct {
	Menu  string
	Count int
}

// DateRange is an inclusive range of Seoul calendar days; nil ends are open.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

func (r DateRange) filter(types ...domain.TransactionType) domain.AnalyticsFilter {
	f := domain.AnalyticsFilter{Types: types}
	if r.Start != nil {
		f.From = domain.SeoulDayStart(*r.Start)
	}
	if r.End != nil {
		_, f.To = domain.SeoulDayRange(*r.End)
	}
	return f
}

// DashboardService aggregates the ledger for reports. Cancelled rows and
// their reversals never count.
type DashboardService struct {
	ledger    port.LedgerRepository
	customers port.CustomerRepository
	now       func() time.Time
}

func NewDashboardService(ledger port.LedgerRepository, customers port.CustomerRepository) *DashboardService {
	return &DashboardService{ledger: ledger, customers: customers, now: time.Now}
}

func (s *DashboardService) Summary(ctx context.Context, shopID string) (Summary, error) {
	from, to := domain.SeoulDayRange(s.now())
	rows, err := s.ledger.ListForAnalytics(ctx, shopID, domain.AnalyticsFilter{
		Types: []domain.TransactionType{domain.TransactionCharge, domain.TransactionDeduct},
		From:  from,
		To:    to,
	})
	if err != nil {
		return Summary{}, err
	}

	var summary Summary
	for _, t := range rows {
		switch t.Type {
		case domain.TransactionCharge:
			summary.TodayCharge += t.Amount
		case domain.TransactionDeduct:
			summary.TodayDeduct += t.Amount
		}
	}

	if summary.TotalBalance, err = s.customers.TotalBalance(ctx, shopID); err != nil {
		return Summary{}, err
	}
	if summary.TotalCustomers, err = s.customers.CountCustomers(ctx, shopID); err != nil {
		return Summary{}, err
	}
	return summary, nil
}

// Period buckets charges and deducts by day, week or month. Without dates it
// looks back 7 days, 4 weeks or 90 days from today, both ends included.
func (s *DashboardService) Period(ctx context.Context, shopID string, period PeriodType, r DateRange) ([]PeriodBucket, error) {
	if period == "" {
		period = PeriodDaily
	}
	if !period.Valid() {
		return nil, domain.Invalid("period_type", "daily, weekly, monthly 중 하나여야 합니다")
	}

	if r.End == nil {
		today := domain.SeoulDayStart(s.now())
		r.End = &today
	}
	if r.Start == nil {
		var start time.Time
		switch period {
		case PeriodDaily:
			start = r.End.AddDate(0, 0, -7)
		case PeriodWeekly:
			start = r.End.AddDate(0, 0, -28)
		default:
			start = r.End.AddDate(0, 0, -90)
		}
		r.Start = &start
	}

	rows, err := s.ledger.ListForAnalytics(ctx, shopID, r.filter(domain.TransactionCharge, domain.TransactionDeduct))
	if err != nil {
		return nil, err
	}

	buckets := map[string]*PeriodBucket{}
	for _, t := range rows {
		key := bucketKey(period, t.CreatedAt.In(domain.Seoul))
		b, ok := buckets[key]
		if !ok {
			b = &PeriodBucket{Period: key}
			buckets[key] = b
		}
		switch t.Type {
		case domain.TransactionCharge:
			b.ChargeAmount += t.Amount
		case domain.TransactionDeduct:
			b.DeductAmount += t.Amount
		}
		b.TransactionCount++
	}

	out := make([]PeriodBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out, nil
}

func bucketKey(period PeriodType, t time.Time) string {
	switch period {
	case PeriodWeekly:
		return fmt.Sprintf("%d-W%02d", t.Year(), mondayWeek(t))
	case PeriodMonthly:
		return t.Format("2006-01")
	default:
		return t.Format(domain.DateLayout)
	}
}

// mondayWeek numbers weeks from the first Monday of the year; days before
// it are week 0.
func mondayWeek(t time.Time) int {
	yday := t.YearDay() - 1
	weekday := (int(t.Weekday()) + 6) % 7
	return (yday + 7 - weekday) / 7
}

func (s *DashboardService) TopCustomers(ctx context.Context, shopID string, limit int) ([]TopCustomer, error) {
	limit = clampLimit(limit)

	rows, err := s.ledger.ListForAnalytics(ctx, shopID, domain.AnalyticsFilter{
		Types: []domain.TransactionType{domain.TransactionCharge},
	})
	if err != nil {
		return nil, err
	}

	byCustomer := map[string]*TopCustomer{}
	for _, t := range rows {
		c, ok := byCustomer[t.CustomerID]
		if !ok {
			c = &TopCustomer{CustomerID: t.CustomerID, Name: t.CustomerName}
			byCustomer[t.CustomerID] = c
		}
		c.TotalCharged += t.Amount
		c.VisitCount++
	}

	out := make([]TopCustomer, 0, len(byCustomer))
	for _, c := range byCustomer {
		if c.Name == "" {
			c.Name = "Unknown"
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalCharged != out[j].TotalCharged {
			return out[i].TotalCharged > out[j].TotalCharged
		}
		return out[i].CustomerID < out[j].CustomerID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *DashboardService) PaymentMethods(ctx context.Context, shopID string, r DateRange) ([]MethodStat, error) {
	rows, err := s.ledger.ListForAnalytics(ctx, shopID, r.filter(domain.TransactionCharge))
	if err != nil {
		return nil, err
	}

	stats := map[domain.PaymentMethod]*MethodStat{}
	var total int64
	for _, t := range rows {
		if t.PaymentMethod == "" {
			continue
		}
		st, ok := stats[t.PaymentMethod]
		if !ok {
			st = &MethodStat{Method: t.PaymentMethod}
			stats[t.PaymentMethod] = st
		}
		st.Count++
		st.Amount += t.Amount
		total += t.Amount
	}

	out := []MethodStat{}
	for _, m := range domain.PaymentMethods {
		st, ok := stats[m]
		if !ok {
			continue
		}
		if total > 0 {
			st.Percentage = math.Round(float64(st.Amount)/float64(total)*1000) / 10
		}
		out = append(out, *st)
	}
	return out, nil
}

// PopularMenus counts the comma separated items written in deduct notes.
func (s *DashboardService) PopularMenus(ctx context.Context, shopID string, limit int) ([]MenuCount, error) {
	limit = clampLimit(limit)

	rows, err := s.ledger.ListForAnalytics(ctx, shopID, domain.AnalyticsFilter{
		Types: []domain.TransactionType{domain.TransactionDeduct},
	})
	if err != nil {
		return nil, err
	}

	counts := map[string]int{}
	for _, t := range rows {
		for _, item := range strings.Split(t.Note, ",") {
			if item = strings.TrimSpace(item); item != "" {
				counts[item]++
			}
		}
	}

	out := make([]MenuCount, 0, len(counts))
	for menu, n := range counts {
		out = append(out, MenuCount{Menu: menu, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Menu < out[j].Menu
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func clampLimit(limit int) int {
	switch {
	case limit < 1:
		return 10
	case limit > 50:
		return 50
	}
	return limit
}
