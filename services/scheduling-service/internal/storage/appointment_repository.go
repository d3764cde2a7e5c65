package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/apptslot/libs/db"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/outbox"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/scheduling"
)

// activeSlotIndex is the partial unique index guarding one active booking per slot.
const activeSlotIndex = "appointments_active_slot_uidx"

const appointmentColumns = `id, user_id, appointment_date, booked_via_chat, status, created_at, updated_at`

type AppointmentRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

var _ scheduling.Store = (*AppointmentRepository)(nil)

func NewAppointmentRepository(pool *db.Pool, outboxRepo *outbox.Repository) *AppointmentRepository {
	return &AppointmentRepository{pool: pool, outbox: outboxRepo}
}

func (r *AppointmentRepository) IsSlotOccupied(ctx context.Context, slot time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE appointment_date = $1 AND status <> 'cancelled'
		)
	`, slot).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slot: %w", err)
	}
	return exists, nil
}

// Create inserts appt and its booked event in one transaction.
func (r *AppointmentRepository) Create(ctx context.Context, appt model.Appointment) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	created, err := scanAppointment(tx.QueryRow(ctx, `
		INSERT INTO appointments (id, user_id, appointment_date, booked_via_chat, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+appointmentColumns,
		appt.ID, appt.UserID, appt.Slot, appt.BookedViaChat, string(appt.Status), appt.CreatedAt, appt.UpdatedAt,
	))
	if err != nil {
		if db.IsUniqueViolation(err, activeSlotIndex) {
			return model.Appointment{}, scheduling.ErrSlotConflict
		}
		return model.Appointment{}, fmt.Errorf("insert appointment: %w", err)
	}

	if err := r.emit(ctx, tx, outbox.EventAppointmentBooked, created); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		if db.IsUniqueViolation(err, activeSlotIndex) {
			return model.Appointment{}, scheduling.ErrSlotConflict
		}
		return model.Appointment{}, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

// Cancel locks the row, lets guard veto, then flips the status and records
// the cancelled event.
func (r *AppointmentRepository) Cancel(ctx context.Context, id string, at time.Time, guard func(model.Appointment) error) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := scanAppointment(tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		if db.IsNotFound(err) {
			return model.Appointment{}, scheduling.ErrNotFound
		}
		return model.Appointment{}, fmt.Errorf("load appointment: %w", err)
	}
	if err := guard(current); err != nil {
		return model.Appointment{}, err
	}

	updated, err := scanAppointment(tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled', updated_at = $2
		WHERE id = $1
		RETURNING `+appointmentColumns,
		id, at,
	))
	if err != nil {
		return model.Appointment{}, fmt.Errorf("cancel appointment: %w", err)
	}
	if err := r.emit(ctx, tx, outbox.EventAppointmentCancelled, updated); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, fmt.Errorf("commit: %w", err)
	}
	return updated, nil
}

func (r *AppointmentRepository) ListByUser(ctx context.Context, userID string) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE user_id = $1
		ORDER BY appointment_date ASC, created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Appointment, error) {
		return scanAppointment(row)
	})
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return list, nil
}

func (r *AppointmentRepository) emit(ctx context.Context, tx pgx.Tx, eventType string, appt model.Appointment) error {
	evt, err := outbox.AppointmentEvent(eventType, appt)
	if err != nil {
		return fmt.Errorf("build %s event: %w", eventType, err)
	}
	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var (
		appt   model.Appointment
		status string
	)
	err := row.Scan(&appt.ID, &appt.UserID, &appt.Slot, &appt.BookedViaChat, &status, &appt.CreatedAt, &appt.UpdatedAt)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.Status = model.Status(status)
	appt.Slot = appt.Slot.UTC()
	appt.CreatedAt = appt.CreatedAt.UTC()
	appt.UpdatedAt = appt.UpdatedAt.UTC()
	return appt, nil
}
