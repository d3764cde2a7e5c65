package scheduling

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/slots"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// Searcher scans the horizon for the earliest free slot. With parallelism
// above one it probes several days at once but still answers with the
// earliest free slot in enumeration order.
type Searcher struct {
	store       Store
	cal         slots.Calendar
	parallelism int
}

func NewSearcher(store Store, cal slots.Calendar, parallelism int) *Searcher {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Searcher{store: store, cal: cal, parallelism: parallelism}
}

// SearchResult carries the found slot and how many store probes it took.
type SearchResult struct {
	Slot   time.Time
	Probes int
}

func (s *Searcher) Next(ctx context.Context, now time.Time) (SearchResult, error) {
	ctx, span := tracer.Start(ctx, "scheduling.Searcher.Next")
	defer span.End()

	days := s.cal.SearchDays(now)
	var (
		res SearchResult
		err error
	)
	if s.parallelism == 1 {
		res, err = s.sequential(ctx, days)
	} else {
		res, err = s.batched(ctx, days)
	}
	span.SetAttributes(attribute.Int("scheduling.search.probes", res.Probes))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	span.SetAttributes(attribute.String("scheduling.search.slot", res.Slot.Format(time.RFC3339)))
	return res, nil
}

func (s *Searcher) sequential(ctx context.Context, days []time.Time) (SearchResult, error) {
	var res SearchResult
	for _, day := range days {
		slot, probes, found, err := s.scanDay(ctx, day)
		res.Probes += probes
		if err != nil {
			return res, err
		}
		if found {
			res.Slot = slot
			return res, nil
		}
	}
	return res, s.exhausted()
}

// batched probes parallelism days at a time. A batch is fully resolved before
// the next one starts, so an earlier day always wins over a later one.
func (s *Searcher) batched(ctx context.Context, days []time.Time) (SearchResult, error) {
	var (
		res    SearchResult
		probes atomic.Int64
	)
	for start := 0; start < len(days); start += s.parallelism {
		end := min(start+s.parallelism, len(days))
		batch := days[start:end]

		type dayHit struct {
			slot  time.Time
			found bool
		}
		hits := make([]dayHit, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		for i, day := range batch {
			g.Go(func() error {
				slot, n, found, err := s.scanDay(gctx, day)
				probes.Add(int64(n))
				if err != nil {
					return err
				}
				hits[i] = dayHit{slot: slot, found: found}
				return nil
			})
		}
		err := g.Wait()
		res.Probes = int(probes.Load())
		if err != nil {
			return res, err
		}
		for _, hit := range hits {
			if hit.found {
				res.Slot = hit.slot
				return res, nil
			}
		}
	}
	return res, s.exhausted()
}

func (s *Searcher) scanDay(ctx context.Context, day time.Time) (time.Time, int, bool, error) {
	probes := 0
	for _, slot := range s.cal.DaySlots(day) {
		if err := ctx.Err(); err != nil {
			return time.Time{}, probes, false, transient(err)
		}
		probes++
		occupied, err := s.store.IsSlotOccupied(ctx, slot)
		if err != nil {
			return time.Time{}, probes, false, transient(err)
		}
		if !occupied {
			return slot, probes, true, nil
		}
	}
	return time.Time{}, probes, false, nil
}

func (s *Searcher) exhausted() error {
	return newError(KindNoAvailability, fmt.Sprintf("No available slots found within %d days", s.cal.HorizonDays))
}
