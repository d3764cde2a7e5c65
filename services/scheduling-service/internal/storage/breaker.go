package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/scheduling"
	"github.com/sony/gobreaker/v2"
)

type BreakerConfig struct {
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenFor is how long the breaker rejects calls before probing again.
	OpenFor time.Duration
	// OnStateChange, if set, observes transitions (e.g. for metrics).
	OnStateChange func(from, to gobreaker.State)
}

// BreakerStore fails fast while the database is unreachable instead of
// letting every request wait out its own timeout. Only transient failures
// count against the breaker; business rejections are successes.
type BreakerStore struct {
	next scheduling.Store
	cb   *gobreaker.CircuitBreaker[any]
}

var _ scheduling.Store = (*BreakerStore)(nil)

func NewBreakerStore(next scheduling.Store, logger *slog.Logger, cfg BreakerConfig) *BreakerStore {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = 10 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "appointment-store",
		MaxRequests: 1,
		Timeout:     cfg.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			var e *scheduling.Error
			return errors.As(err, &e) && e.Kind != scheduling.KindTransient
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			}
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(from, to)
			}
		},
	})
	return &BreakerStore{next: next, cb: cb}
}

func (s *BreakerStore) State() gobreaker.State { return s.cb.State() }

func execute[T any](s *BreakerStore, fn func() (T, error)) (T, error) {
	res, err := s.cb.Execute(func() (any, error) { return fn() })
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, fmt.Errorf("appointment store unavailable: %w", err)
	}
	v, _ := res.(T)
	return v, err
}

func (s *BreakerStore) IsSlotOccupied(ctx context.Context, slot time.Time) (bool, error) {
	return execute(s, func() (bool, error) { return s.next.IsSlotOccupied(ctx, slot) })
}

func (s *BreakerStore) Create(ctx context.Context, appt model.Appointment) (model.Appointment, error) {
	return execute(s, func() (model.Appointment, error) { return s.next.Create(ctx, appt) })
}

func (s *BreakerStore) Cancel(ctx context.Context, id string, at time.Time, guard func(model.Appointment) error) (model.Appointment, error) {
	return execute(s, func() (model.Appointment, error) { return s.next.Cancel(ctx, id, at, guard) })
}

func (s *BreakerStore) ListByUser(ctx context.Context, userID string) ([]model.Appointment, error) {
	return execute(s, func() ([]model.Appointment, error) { return s.next.ListByUser(ctx, userID) })
}
