package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptslot/libs/httpx"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/scheduling"
)

// Engine is the scheduling surface the HTTP and gRPC layers drive.
// *scheduling.Manager implements it.
type Engine interface {
	Book(ctx context.Context, userID string, requested time.Time, viaChat bool) (model.Appointment, error)
	Cancel(ctx context.Context, userID, appointmentID string) (model.Appointment, error)
	CheckAvailability(ctx context.Context, requested *time.Time) (scheduling.Availability, error)
	FindNextAvailableSlot(ctx context.Context) (time.Time, error)
	ListForUser(ctx context.Context, userID string) ([]model.Appointment, error)
}

type AppointmentHandler struct {
	engine Engine
	logger *slog.Logger
}

func NewAppointmentHandler(engine Engine, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{engine: engine, logger: logger}
}

type bookRequest struct {
	AppointmentDate string `json:"appointment_date"`
}

type nextAvailableResponse struct {
	SuggestedSlot time.Time `json:"suggested_slot"`
}

func (h *AppointmentHandler) Book(w http.ResponseWriter, r *http.Request) {
	h.book(w, r, false)
}

func (h *AppointmentHandler) book(w http.ResponseWriter, r *http.Request, viaChat bool) {
	caller, _ := CallerFromContext(r.Context())

	var req bookRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, "Invalid JSON body")
		return
	}
	slot, err := parseSlot(req.AppointmentDate)
	if err != nil {
		badRequest(w, "appointment_date must be an RFC 3339 timestamp")
		return
	}

	appt, err := h.engine.Book(r.Context(), caller.UserID, slot, viaChat)
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusCreated, appt)
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	appt, err := h.engine.Cancel(r.Context(), caller.UserID, r.PathValue("id"))
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, appt)
}

func (h *AppointmentHandler) Mine(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	appts, err := h.engine.ListForUser(r.Context(), caller.UserID)
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	if appts == nil {
		appts = []model.Appointment{}
	}
	httpx.OK(w, http.StatusOK, appts)
}

// Availability checks ?slot= when given and otherwise suggests the next slot.
func (h *AppointmentHandler) Availability(w http.ResponseWriter, r *http.Request) {
	var requested *time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("slot")); raw != "" {
		slot, err := parseSlot(raw)
		if err != nil {
			badRequest(w, "slot must be an RFC 3339 timestamp")
			return
		}
		requested = &slot
	}
	h.availability(w, r, requested)
}

func (h *AppointmentHandler) availability(w http.ResponseWriter, r *http.Request, requested *time.Time) {
	res, err := h.engine.CheckAvailability(r.Context(), requested)
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, res)
}

func (h *AppointmentHandler) NextAvailable(w http.ResponseWriter, r *http.Request) {
	slot, err := h.engine.FindNextAvailableSlot(r.Context())
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, nextAvailableResponse{SuggestedSlot: slot})
}

func parseSlot(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339, strings.TrimSpace(raw))
}
