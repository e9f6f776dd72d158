package revenue

import (
	"context"
	"time"

	"github.com/romana/rlog"
	"github.com/shopspring/decimal"
	"restaurant_pos/custom/app_error"
	"restaurant_pos/custom/store"
	"restaurant_pos/custom/util"
)

const (
	PERIOD_DAY   = "day"
	PERIOD_WEEK  = "week"
	PERIOD_MONTH = "month"

	UNIT_HOUR = "hour"
	UNIT_DAY  = "day"

	MAX_SPAN          = 366 * 24 * time.Hour
	HOURLY_SPAN_LIMIT = 48 * time.Hour
	DEFAULT_TOP_ITEMS = 10
)

var periodBuckets = map[string]struct {
	unit  string
	count int
}{
	PERIOD_DAY:   {UNIT_HOUR, 24},
	PERIOD_WEEK:  {UNIT_DAY, 7},
	PERIOD_MONTH: {UNIT_DAY, 30},
}

// Query selects either a named period ending now or an explicit inclusive range.
type Query struct {
	Period string
	Start  *time.Time
	End    *time.Time
}

type Bucket struct {
	Start             time.Time       `json:"start"`
	Revenue           decimal.Decimal `json:"revenue"`
	Orders            int64           `json:"orders"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
}

type Report struct {
	Start             time.Time           `json:"start"`
	End               time.Time           `json:"end"`
	Granularity       string              `json:"granularity"`
	TotalRevenue      decimal.Decimal     `json:"total_revenue"`
	OrderCount        int64               `json:"order_count"`
	AverageOrderValue decimal.Decimal     `json:"average_order_value"`
	Series            []Bucket            `json:"series"`
	TopItems          []store.ItemSales   `json:"top_items"`
	PaymentMethods    []store.MethodShare `json:"payment_methods"`
}

type Service struct {
	st   store.Store
	loc  *time.Location
	topN int
	now  func() time.Time
}

func NewService(st store.Store, timezone string, topN int, now func() time.Time) (*Service, error) {
	if timezone == "" {
		timezone = "UTC"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, app_error.Validation("unknown time zone " + timezone)
	}
	if topN <= 0 {
		topN = DEFAULT_TOP_ITEMS
	}
	if now == nil {
		now = time.Now
	}
	return &Service{st: st, loc: loc, topN: topN, now: now}, nil
}

func (s *Service) Location() *time.Location {
	return s.loc
}

func truncate(t time.Time, unit string, loc *time.Location) time.Time {
	t = t.In(loc)
	if unit == UNIT_DAY {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc)
}

func next(slot time.Time, unit string) time.Time {
	if unit == UNIT_DAY {
		return slot.AddDate(0, 0, 1)
	}
	return slot.Add(time.Hour)
}

// resolve turns a query into an inclusive window and a bucket unit.
func (s *Service) resolve(q Query) (store.Window, string, error) {
	if q.Start != nil || q.End != nil {
		if q.Period != "" {
			return store.Window{}, "", app_error.Validation("use either period or start/end")
		}
		if q.Start == nil || q.End == nil {
			return store.Window{}, "", app_error.Validation("start and end are both required")
		}
		span := q.End.Sub(*q.Start)
		if span < 0 {
			return store.Window{}, "", app_error.Validation("start must not be after end")
		}
		if span > MAX_SPAN {
			return store.Window{}, "", app_error.Validation("range must not exceed 366 days")
		}
		unit := UNIT_DAY
		if span <= HOURLY_SPAN_LIMIT {
			unit = UNIT_HOUR
		}
		return store.Window{Start: *q.Start, End: *q.End}, unit, nil
	}

	period := q.Period
	if period == "" {
		period = PERIOD_DAY
	}
	buckets, ok := periodBuckets[period]
	if !ok {
		return store.Window{}, "", app_error.Validation("period must be one of day, week, month")
	}
	end := s.now().In(s.loc)
	start := truncate(end, buckets.unit, s.loc)
	if buckets.unit == UNIT_DAY {
		start = start.AddDate(0, 0, -(buckets.count - 1))
	} else {
		start = start.Add(-time.Duration(buckets.count-1) * time.Hour)
	}
	return store.Window{Start: start, End: end}, buckets.unit, nil
}

// slotKey compares bucket starts by local wall clock. Rows from SQL carry the
// local wall clock under a UTC label.
func slotKey(t time.Time) string {
	return t.Format("2006-01-02T15")
}

// densify emits one bucket per slot of the window, zero-filled where no order landed.
func densify(w store.Window, unit string, loc *time.Location, rows []store.BucketRow) []Bucket {
	byKey := make(map[string]store.BucketRow, len(rows))
	for _, row := range rows {
		byKey[slotKey(row.Slot)] = row
	}
	last := truncate(w.End, unit, loc)
	series := make([]Bucket, 0)
	for slot := truncate(w.Start, unit, loc); !slot.After(last); slot = next(slot, unit) {
		bucket := Bucket{Start: slot, Revenue: decimal.Zero, AverageOrderValue: decimal.Zero}
		if row, ok := byKey[slotKey(slot)]; ok {
			bucket.Revenue = row.Total
			bucket.Orders = row.Orders
			if row.Orders > 0 {
				bucket.AverageOrderValue = row.Total.DivRound(decimal.NewFromInt(row.Orders), 2)
			}
		}
		series = append(series, bucket)
	}
	return series
}

// Report aggregates completed orders created inside the window.
func (s *Service) Report(ctx context.Context, q Query) (*Report, error) {
	w, unit, err := s.resolve(q)
	if err != nil {
		return nil, err
	}
	repo := s.st.Revenue()

	totals, err := repo.Totals(ctx, w)
	if err != nil {
		return nil, s.fail(err)
	}
	rows, err := repo.Buckets(ctx, w, unit, s.loc)
	if err != nil {
		return nil, s.fail(err)
	}
	top, err := repo.TopItems(ctx, w, s.topN)
	if err != nil {
		return nil, s.fail(err)
	}
	methods, err := repo.PaymentMethods(ctx, w)
	if err != nil {
		return nil, s.fail(err)
	}

	average := decimal.Zero
	if totals.Orders > 0 {
		average = totals.Total.DivRound(decimal.NewFromInt(totals.Orders), 2)
	}
	return &Report{
		Start:             w.Start.In(s.loc),
		End:               w.End.In(s.loc),
		Granularity:       unit,
		TotalRevenue:      totals.Total,
		OrderCount:        totals.Orders,
		AverageOrderValue: average,
		Series:            densify(w, unit, s.loc, rows),
		TopItems:          top,
		PaymentMethods:    methods,
	}, nil
}

func (s *Service) fail(err error) error {
	rlog.Errorf("Revenue report failed: %s", err.Error())
	return util.ToAppError(err, "")
}
