// Package scheduling is the appointment engine: booking, cancellation,
// availability checks and the forward search for the next free slot.
package scheduling

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/slots"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/scheduling")

type AvailabilityType string

const (
	AvailabilityRequested     AvailabilityType = "requested"
	AvailabilityNextAvailable AvailabilityType = "next_available"
)

// Availability answers CheckAvailability. RequestedSlot is set whenever a slot
// was asked for; SuggestedSlot whenever the search ran.
type Availability struct {
	Type          AvailabilityType `json:"type"`
	Available     *bool            `json:"available,omitempty"`
	RequestedSlot *time.Time       `json:"requested_slot,omitempty"`
	SuggestedSlot *time.Time       `json:"suggested_slot,omitempty"`
}

type Manager struct {
	store    Store
	cal      slots.Calendar
	clock    Clock
	search   *Searcher
	logger   *slog.Logger
	recorder Recorder
}

type Options struct {
	Clock             Clock
	Logger            *slog.Logger
	Recorder          Recorder
	SearchParallelism int
}

func NewManager(store Store, cal slots.Calendar, opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	return &Manager{
		store:    store,
		cal:      cal,
		clock:    opts.Clock,
		search:   NewSearcher(store, cal, opts.SearchParallelism),
		logger:   opts.Logger,
		recorder: opts.Recorder,
	}
}

func (m *Manager) Calendar() slots.Calendar { return m.cal }

// validate normalizes slot and applies the booking rules in their fixed order.
func (m *Manager) validate(slot, now time.Time) (time.Time, error) {
	slot = slots.Normalize(slot)
	switch m.cal.Classify(slot, now) {
	case slots.Past:
		return slot, newError(KindInvalidSlot, "Cannot book past time")
	case slots.SameDay:
		return slot, newError(KindInvalidSlot, "Same-day booking not allowed")
	case slots.OutsideBusinessHours:
		return slot, newError(KindInvalidSlot, "Invalid time slot")
	}
	return slot, nil
}

func (m *Manager) Book(ctx context.Context, userID string, requested time.Time, viaChat bool) (appt model.Appointment, err error) {
	ctx, span := tracer.Start(ctx, "scheduling.Manager.Book", trace.WithAttributes(
		attribute.String("scheduling.user_id", userID),
		attribute.Bool("scheduling.via_chat", viaChat),
	))
	defer func() {
		m.recorder.ObserveBooking(outcome(err), viaChat)
		m.finish(ctx, span, "booking", err, "user_id", userID, "slot", requested.UTC().Format(time.RFC3339))
	}()

	if strings.TrimSpace(userID) == "" {
		return model.Appointment{}, ErrUnauthorized
	}

	now := m.clock.Now()
	slot, err := m.validate(requested, now)
	if err != nil {
		return model.Appointment{}, err
	}
	span.SetAttributes(attribute.String("scheduling.slot", slot.Format(time.RFC3339)))

	// Fast path only; the store's uniqueness guard decides races.
	occupied, err := m.store.IsSlotOccupied(ctx, slot)
	if err != nil {
		return model.Appointment{}, transient(err)
	}
	if occupied {
		return model.Appointment{}, ErrSlotConflict
	}

	created, err := m.store.Create(ctx, model.Appointment{
		ID:            uuid.NewString(),
		UserID:        userID,
		Slot:          slot,
		BookedViaChat: viaChat,
		Status:        model.StatusConfirmed,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return model.Appointment{}, transient(err)
	}
	m.logger.InfoContext(ctx, "appointment booked",
		"appointment_id", created.ID,
		"user_id", userID,
		"slot", slot.Format(time.RFC3339),
		"via_chat", viaChat,
	)
	return created, nil
}

func (m *Manager) Cancel(ctx context.Context, userID, appointmentID string) (appt model.Appointment, err error) {
	ctx, span := tracer.Start(ctx, "scheduling.Manager.Cancel", trace.WithAttributes(
		attribute.String("scheduling.user_id", userID),
		attribute.String("scheduling.appointment_id", appointmentID),
	))
	defer func() {
		m.recorder.ObserveCancellation(outcome(err))
		m.finish(ctx, span, "cancellation", err, "user_id", userID, "appointment_id", appointmentID)
	}()

	if _, perr := uuid.Parse(appointmentID); perr != nil {
		return model.Appointment{}, ErrNotFound
	}

	now := m.clock.Now()
	// Owner, then window, then state: a stale repeat cancel reports the expired window.
	cancelled, err := m.store.Cancel(ctx, appointmentID, now, func(current model.Appointment) error {
		if current.UserID != userID {
			return ErrUnauthorized
		}
		if !m.cal.WithinModificationWindow(current.CreatedAt, now) {
			return ErrCancellationWindowExpired
		}
		if !current.Status.CanTransitionTo(model.StatusCancelled) {
			return ErrInvalidState
		}
		return nil
	})
	if err != nil {
		return model.Appointment{}, transient(err)
	}
	m.logger.InfoContext(ctx, "appointment cancelled",
		"appointment_id", cancelled.ID,
		"user_id", userID,
		"slot", cancelled.Slot.Format(time.RFC3339),
	)
	return cancelled, nil
}

// CheckAvailability with a nil slot suggests the next free slot. With a slot
// it validates like Book and, if that slot is taken, falls back to the search.
func (m *Manager) CheckAvailability(ctx context.Context, requested *time.Time) (Availability, error) {
	ctx, span := tracer.Start(ctx, "scheduling.Manager.CheckAvailability")
	defer span.End()

	now := m.clock.Now()
	if requested == nil {
		next, err := m.next(ctx, now)
		if err != nil {
			recordSpanError(span, err)
			return Availability{}, err
		}
		return Availability{Type: AvailabilityNextAvailable, SuggestedSlot: &next}, nil
	}

	slot, err := m.validate(*requested, now)
	if err != nil {
		recordSpanError(span, err)
		return Availability{}, err
	}
	occupied, err := m.store.IsSlotOccupied(ctx, slot)
	if err != nil {
		err = transient(err)
		recordSpanError(span, err)
		return Availability{}, err
	}
	if !occupied {
		return Availability{Type: AvailabilityRequested, Available: boolPtr(true), RequestedSlot: &slot}, nil
	}

	next, err := m.next(ctx, now)
	if err != nil {
		recordSpanError(span, err)
		return Availability{}, err
	}
	return Availability{
		Type:          AvailabilityNextAvailable,
		Available:     boolPtr(false),
		RequestedSlot: &slot,
		SuggestedSlot: &next,
	}, nil
}

func (m *Manager) FindNextAvailableSlot(ctx context.Context) (time.Time, error) {
	return m.next(ctx, m.clock.Now())
}

func (m *Manager) next(ctx context.Context, now time.Time) (time.Time, error) {
	start := time.Now()
	res, err := m.search.Next(ctx, now)
	m.recorder.ObserveSearch(res.Probes, time.Since(start), err == nil)
	if err != nil {
		if KindOf(err) == KindTransient {
			m.logger.ErrorContext(ctx, "slot search failed", "err", err, "probes", res.Probes)
		} else {
			m.logger.InfoContext(ctx, "slot search exhausted", "probes", res.Probes, "horizon_days", m.cal.HorizonDays)
		}
		return time.Time{}, err
	}
	return res.Slot, nil
}

// ListForUser returns every appointment of the user, any status, slot ascending.
func (m *Manager) ListForUser(ctx context.Context, userID string) ([]model.Appointment, error) {
	ctx, span := tracer.Start(ctx, "scheduling.Manager.ListForUser")
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthorized
	}
	list, err := m.store.ListByUser(ctx, userID)
	if err != nil {
		err = transient(err)
		recordSpanError(span, err)
		m.logger.ErrorContext(ctx, "list appointments failed", "user_id", userID, "err", err)
		return nil, err
	}
	return list, nil
}

// finish ends span and logs the outcome: business rejections at info,
// transient failures at error.
func (m *Manager) finish(ctx context.Context, span trace.Span, op string, err error, attrs ...any) {
	defer span.End()
	if err == nil {
		return
	}
	recordSpanError(span, err)
	args := append([]any{"kind", string(KindOf(err)), "err", err}, attrs...)
	if KindOf(err) == KindTransient {
		m.logger.ErrorContext(ctx, op+" failed", args...)
		return
	}
	m.logger.InfoContext(ctx, op+" rejected", args...)
}

func recordSpanError(span trace.Span, err error) {
	span.SetAttributes(attribute.String("scheduling.error_kind", string(KindOf(err))))
	if KindOf(err) == KindTransient {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func boolPtr(v bool) *bool { return &v }
