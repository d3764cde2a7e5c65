package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptslot/libs/kafkax"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/model"
)

func TestAppointmentEventPayload(t *testing.T) {
	slot := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	appt := model.Appointment{
		ID:            "4b0f8c1e-4c36-4a53-8c3c-0c5b7d0f0f11",
		UserID:        "user-1",
		Slot:          slot,
		Status:        model.StatusConfirmed,
		BookedViaChat: true,
		UpdatedAt:     slot.Add(-24 * time.Hour),
	}

	evt, err := AppointmentEvent(EventAppointmentBooked, appt)
	if err != nil {
		t.Fatalf("AppointmentEvent: %v", err)
	}
	if evt.EventID == "" || evt.AggregateID != appt.ID || evt.AggregateType != "appointment" {
		t.Fatalf("unexpected event: %+v", evt)
	}

	var payload AppointmentPayload
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if !payload.Slot.Equal(slot) || payload.Status != model.StatusConfirmed || !payload.BookedViaChat {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestMessageCarriesMetaHeaders(t *testing.T) {
	rec := Record{
		ID: 7,
		Event: Event{
			EventID:     "evt-7",
			AggregateID: "appt-7",
			EventType:   EventAppointmentCancelled,
			Payload:     []byte(`{}`),
		},
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	msg := Message(context.Background(), rec)
	if msg.Topic != EventAppointmentCancelled || string(msg.Key) != "appt-7" {
		t.Fatalf("unexpected routing: topic=%s key=%s", msg.Topic, msg.Key)
	}
	meta := kafkax.ExtractEventMeta(msg)
	if meta.EventID != "evt-7" || meta.EventType != EventAppointmentCancelled || meta.AggregateID != "appt-7" {
		t.Fatalf("unexpected meta: %+v", meta)
	}
}
