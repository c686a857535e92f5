package availability

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/voicebook/internal/observability/metrics"
	"github.com/wolfman30/voicebook/internal/timeparse"
	"github.com/wolfman30/voicebook/pkg/logging"
)

const (
	defaultLeadTime  = 15 * time.Minute
	defaultCap       = 3
	requestedTimeCap = 5
)

// searchWindows is the auto-extension ladder: a 7-day search that comes up
// empty widens to 14, then 30 days, then gives up.
var searchWindows = []int{7, 14, 30}

// Service runs availability searches.
type Service struct {
	dir     Directory
	api     SlotAPI
	logger  *logging.Logger
	tracer  trace.Tracer
	metrics *metrics.SearchMetrics

	now          func() time.Time
	leadTime     time.Duration
	windows      []int
	capDefault   int
	capRequested int
}

// Option customizes a Service.
type Option func(*Service)

// WithLeadTime overrides the minimum gap between now and the first
// offerable slot.
func WithLeadTime(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.leadTime = d
		}
	}
}

// WithResultCaps overrides how many slots a default search and a
// requested-time search return.
func WithResultCaps(defaultCap, requestedCap int) Option {
	return func(s *Service) {
		if defaultCap > 0 {
			s.capDefault = defaultCap
		}
		if requestedCap > 0 {
			s.capRequested = requestedCap
		}
	}
}

// WithInitialWindow replaces the first rung of the window ladder. Later
// rungs that no longer extend the window are dropped.
func WithInitialWindow(days int) Option {
	return func(s *Service) {
		if days <= 0 {
			return
		}
		windows := []int{days}
		for _, w := range s.windows[1:] {
			if w > days {
				windows = append(windows, w)
			}
		}
		s.windows = windows
	}
}

// NewService creates an availability search service.
func NewService(dir Directory, api SlotAPI, m *metrics.SearchMetrics, logger *logging.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	svc := &Service{
		dir:          dir,
		api:          api,
		logger:       logger.Component("availability"),
		tracer:       otel.Tracer("voicebook.internal.availability"),
		metrics:      m,
		now:          time.Now,
		leadTime:     defaultLeadTime,
		windows:      searchWindows,
		capDefault:   defaultCap,
		capRequested: requestedTimeCap,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Search returns ranked bookable slots for the request, or an empty slice
// when the full 30-day window has nothing qualifying. An empty result is a
// normal outcome, not an error.
func (s *Service) Search(ctx context.Context, req Request) ([]Slot, error) {
	ctx, span := s.tracer.Start(ctx, "availability.search")
	defer span.End()

	targets, err := s.resolveTargets(ctx, req)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveSearch("resolve_error", 0, 0)
		return nil, err
	}

	loc, lerr := time.LoadLocation(targets[0].cal.Timezone)
	if lerr != nil {
		loc = time.UTC
	}
	now := s.now().In(loc)

	var dateFilter *timeparse.DateRange
	if req.RequestedDate != "" {
		if r, ok := timeparse.ResolveDateRange(req.RequestedDate, now, loc); ok {
			dateFilter = &r
		}
		// Unparseable spoken dates mean "no constraint", never an error.
	}

	reqMinute := -1
	if req.RequestedTime != "" {
		if m, ok := timeparse.ResolveTimeOfDay(req.RequestedTime); ok {
			reqMinute = m
		}
	}

	for _, days := range s.windows {
		slots, err := s.fetchTargets(ctx, req.LocationID, targets, now, now.AddDate(0, 0, days))
		if err != nil {
			span.RecordError(err)
			s.metrics.ObserveSearch("fetch_error", days, 0)
			return nil, err
		}

		slots = s.filter(slots, req, dateFilter, loc)
		if len(slots) == 0 {
			continue
		}

		ranked := s.rank(slots, reqMinute)
		s.logger.Info("availability search succeeded",
			"location_id", req.LocationID,
			"service", req.ServiceName,
			"window_days", days,
			"results", len(ranked),
		)
		s.metrics.ObserveSearch("ok", days, len(ranked))
		return ranked, nil
	}

	s.metrics.ObserveSearch("empty", s.windows[len(s.windows)-1], 0)
	return nil, nil
}

// filter applies, in order: the chained-search lower bound, the resolved
// date window, and the part-of-day bucket. Future-slot trimming already
// happened at fetch time.
func (s *Service) filter(slots []Slot, req Request, dateFilter *timeparse.DateRange, loc *time.Location) []Slot {
	out := make([]Slot, 0, len(slots))
	for _, slot := range slots {
		if !req.StartAfter.IsZero() && slot.Start.Before(req.StartAfter) {
			continue
		}
		if dateFilter != nil {
			day := slot.Start.In(loc)
			day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
			if !dateFilter.Contains(day) {
				continue
			}
		}
		if !MatchesPreference(slot.Start, req.TimePreference) {
			continue
		}
		out = append(out, slot)
	}
	return out
}

// rank orders and caps the surviving slots. Default: earliest first, spread
// across distinct days, capped at 3. With a specific requested time: capped
// at 5, ranked by absolute proximity to that time across all matching days.
func (s *Service) rank(slots []Slot, reqMinute int) []Slot {
	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })

	if reqMinute >= 0 {
		sort.SliceStable(slots, func(i, j int) bool {
			di := absInt(minuteOfDay(slots[i].Start) - reqMinute)
			dj := absInt(minuteOfDay(slots[j].Start) - reqMinute)
			return di < dj
		})
		if len(slots) > s.capRequested {
			slots = slots[:s.capRequested]
		}
		return slots
	}

	// One slot per day first, so the caller hears a spread of days; any
	// capacity left over is filled with later slots from days already
	// offered, earliest first.
	seen := make(map[string]struct{})
	taken := make(map[int]struct{})
	out := make([]Slot, 0, s.capDefault)
	for i, slot := range slots {
		day := slot.Start.Format("2006-01-02")
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		taken[i] = struct{}{}
		out = append(out, slot)
		if len(out) == s.capDefault {
			return out
		}
	}
	for i, slot := range slots {
		if _, ok := taken[i]; ok {
			continue
		}
		out = append(out, slot)
		if len(out) == s.capDefault {
			break
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
