package model

import "time"

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
// Cancelled is terminal.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusConfirmed && next == StatusCancelled
}

func (s Status) Active() bool {
	return s != StatusCancelled
}

type Appointment struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Slot          time.Time `json:"appointment_date"`
	BookedViaChat bool      `json:"booked_via_chat"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
