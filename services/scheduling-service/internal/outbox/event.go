package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/model"
)

// Topic names; the Kafka topic equals the event type.
const (
	EventAppointmentBooked    = "appointment.booked.v1"
	EventAppointmentCancelled = "appointment.cancelled.v1"
)

const aggregateAppointment = "appointment"

// Event is a row waiting in outbox_events.
type Event struct {
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type AppointmentPayload struct {
	AppointmentID string       `json:"appointment_id"`
	UserID        string       `json:"user_id"`
	Slot          time.Time    `json:"appointment_date"`
	Status        model.Status `json:"status"`
	BookedViaChat bool         `json:"booked_via_chat"`
	OccurredAt    time.Time    `json:"occurred_at"`
}

func AppointmentEvent(eventType string, appt model.Appointment) (Event, error) {
	payload, err := json.Marshal(AppointmentPayload{
		AppointmentID: appt.ID,
		UserID:        appt.UserID,
		Slot:          appt.Slot.UTC(),
		Status:        appt.Status,
		BookedViaChat: appt.BookedViaChat,
		OccurredAt:    appt.UpdatedAt.UTC(),
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		EventID:       uuid.NewString(),
		AggregateType: aggregateAppointment,
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}
