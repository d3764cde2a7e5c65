package scheduling

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/model"
)

// Store is the persistence boundary of the engine.
//
// Create must reject a second active appointment on the same slot with
// ErrSlotConflict even when the caller's pre-check raced. Cancel locks the row,
// runs guard against its current state and only then applies the transition;
// a guard error aborts without writing.
type Store interface {
	IsSlotOccupied(ctx context.Context, slot time.Time) (bool, error)
	Create(ctx context.Context, appt model.Appointment) (model.Appointment, error)
	Cancel(ctx context.Context, id string, at time.Time, guard func(model.Appointment) error) (model.Appointment, error)
	ListByUser(ctx context.Context, userID string) ([]model.Appointment, error)
}

// Recorder receives engine outcomes for metrics. Outcome is "ok" or an error kind.
type Recorder interface {
	ObserveBooking(outcome string, viaChat bool)
	ObserveCancellation(outcome string)
	ObserveSearch(probes int, elapsed time.Duration, found bool)
}

type nopRecorder struct{}

func (nopRecorder) ObserveBooking(string, bool)            {}
func (nopRecorder) ObserveCancellation(string)             {}
func (nopRecorder) ObserveSearch(int, time.Duration, bool) {}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(KindOf(err))
}
