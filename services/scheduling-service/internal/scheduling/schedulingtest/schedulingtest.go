// Package schedulingtest provides an in-memory Store and a settable clock for
// tests of the engine and its transports.
package schedulingtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/scheduling"
)

// MemStore enforces the same active-slot uniqueness as the database index.
type MemStore struct {
	mu     sync.Mutex
	byID   map[string]model.Appointment
	active map[int64]string // unix seconds of slot -> appointment id

	// Err, when set, is returned by every operation.
	Err error
	// Probes counts IsSlotOccupied calls.
	Probes int
}

var _ scheduling.Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{byID: map[string]model.Appointment{}, active: map[int64]string{}}
}

func (s *MemStore) IsSlotOccupied(ctx context.Context, slot time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Probes++
	if err := s.fail(ctx); err != nil {
		return false, err
	}
	_, ok := s.active[slot.Unix()]
	return ok, nil
}

func (s *MemStore) Create(ctx context.Context, appt model.Appointment) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx); err != nil {
		return model.Appointment{}, err
	}
	if appt.Status.Active() {
		if _, taken := s.active[appt.Slot.Unix()]; taken {
			return model.Appointment{}, scheduling.ErrSlotConflict
		}
		s.active[appt.Slot.Unix()] = appt.ID
	}
	s.byID[appt.ID] = appt
	return appt, nil
}

func (s *MemStore) Cancel(ctx context.Context, id string, at time.Time, guard func(model.Appointment) error) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx); err != nil {
		return model.Appointment{}, err
	}
	appt, ok := s.byID[id]
	if !ok {
		return model.Appointment{}, scheduling.ErrNotFound
	}
	if err := guard(appt); err != nil {
		return model.Appointment{}, err
	}
	delete(s.active, appt.Slot.Unix())
	appt.Status = model.StatusCancelled
	appt.UpdatedAt = at
	s.byID[id] = appt
	return appt, nil
}

func (s *MemStore) ListByUser(ctx context.Context, userID string) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(ctx); err != nil {
		return nil, err
	}
	var out []model.Appointment
	for _, appt := range s.byID {
		if appt.UserID == userID {
			out = append(out, appt)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Slot.Equal(out[j].Slot) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Slot.Before(out[j].Slot)
	})
	return out, nil
}

// Seed inserts appt as-is, bypassing the uniqueness check.
func (s *MemStore) Seed(appt model.Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[appt.ID] = appt
	if appt.Status.Active() {
		s.active[appt.Slot.Unix()] = appt.ID
	}
}

func (s *MemStore) Get(id string) (model.Appointment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.byID[id]
	return appt, ok
}

func (s *MemStore) fail(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Err
}

// Clock is a settable clock safe for concurrent use.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock { return &Clock{now: now.UTC()} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now.UTC()
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
