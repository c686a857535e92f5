package availability

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SlotAPI fetches raw free-slot data for one calendar. Satisfied by the
// highlevel client.
type SlotAPI interface {
	GetFreeSlots(ctx context.Context, locationID, calendarID string, start, end time.Time, loc *time.Location) (map[string][]time.Time, error)
}

// FilterFuture drops slots starting before now+lead. The lead exists so the
// voice agent never offers a slot the caller cannot realistically reach
// before it starts. Idempotent: re-filtering with the same now is a no-op.
func FilterFuture(slots []Slot, now time.Time, lead time.Duration) []Slot {
	cutoff := now.Add(lead)
	out := make([]Slot, 0, len(slots))
	for _, slot := range slots {
		if slot.Start.Before(cutoff) {
			continue
		}
		out = append(out, slot)
	}
	return out
}

// fetchTargets fans one fetch out per calendar and joins the results. Each
// goroutine writes only its own index; no state is shared. A failed fetch
// for one calendar among many degrades to zero slots from that calendar; a
// failure on the sole candidate propagates.
func (s *Service) fetchTargets(ctx context.Context, locationID string, targets []target, start, end time.Time) ([]Slot, error) {
	results := make([][]Slot, len(targets))
	errs := make([]error, len(targets))

	var wg sync.WaitGroup
	for i, tgt := range targets {
		wg.Add(1)
		go func(i int, tgt target) {
			defer wg.Done()
			results[i], errs[i] = s.fetchOne(ctx, locationID, tgt, start, end)
		}(i, tgt)
	}
	wg.Wait()

	var merged []Slot
	for i, err := range errs {
		if err != nil {
			if len(targets) == 1 {
				return nil, err
			}
			s.logger.Warn("calendar fetch failed, continuing without it",
				"calendar_id", targets[i].cal.ID, "error", err)
			continue
		}
		merged = append(merged, results[i]...)
	}
	return merged, nil
}

func (s *Service) fetchOne(ctx context.Context, locationID string, tgt target, start, end time.Time) ([]Slot, error) {
	loc, err := time.LoadLocation(tgt.cal.Timezone)
	if err != nil {
		return nil, fmt.Errorf("availability: calendar %s timezone %q: %w", tgt.cal.ID, tgt.cal.Timezone, err)
	}

	byDate, err := s.api.GetFreeSlots(ctx, locationID, tgt.cal.ID, start, end, loc)
	if err != nil {
		return nil, err
	}

	var slots []Slot
	for _, starts := range byDate {
		for _, st := range starts {
			slots = append(slots, Slot{
				Start:        st,
				End:          st.Add(tgt.cal.SlotDuration()),
				CalendarID:   tgt.cal.ID,
				CalendarName: tgt.cal.Name,
				StaffID:      tgt.staffID,
				StaffName:    tgt.staffName,
			})
		}
	}
	return FilterFuture(slots, s.now(), s.leadTime), nil
}
