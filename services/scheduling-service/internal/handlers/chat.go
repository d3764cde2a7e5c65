package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptslot/libs/httpx"
)

// ChatHandler serves the conversational booking channel. It shares the engine
// with the REST handlers and tags bookings as made via chat.
type ChatHandler struct {
	appts *AppointmentHandler
}

func NewChatHandler(appts *AppointmentHandler) *ChatHandler {
	return &ChatHandler{appts: appts}
}

type chatAvailabilityRequest struct {
	AppointmentDate string `json:"appointment_date,omitempty"`
}

func (h *ChatHandler) Availability(w http.ResponseWriter, r *http.Request) {
	var req chatAvailabilityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, httpx.ErrEmptyBody) {
		badRequest(w, "Invalid JSON body")
		return
	}
	var requested *time.Time
	if raw := strings.TrimSpace(req.AppointmentDate); raw != "" {
		slot, err := parseSlot(raw)
		if err != nil {
			badRequest(w, "appointment_date must be an RFC 3339 timestamp")
			return
		}
		requested = &slot
	}
	h.appts.availability(w, r, requested)
}

func (h *ChatHandler) Book(w http.ResponseWriter, r *http.Request) {
	h.appts.book(w, r, true)
}
