package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/apptslot/libs/httpx"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/accounts"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/scheduling"
)

var kindStatus = map[scheduling.Kind]int{
	scheduling.KindInvalidSlot:               http.StatusUnprocessableEntity,
	scheduling.KindSlotConflict:              http.StatusConflict,
	scheduling.KindNoAvailability:            http.StatusNotFound,
	scheduling.KindNotFound:                  http.StatusNotFound,
	scheduling.KindUnauthorized:              http.StatusForbidden,
	scheduling.KindCancellationWindowExpired: http.StatusConflict,
	scheduling.KindInvalidState:              http.StatusConflict,
	scheduling.KindTransient:                 http.StatusServiceUnavailable,
}

// StatusFor maps an engine error kind to its HTTP status.
func StatusFor(kind scheduling.Kind) int {
	if s, ok := kindStatus[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func writeEngineError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	kind := scheduling.KindOf(err)
	msg := err.Error()
	var e *scheduling.Error
	if errors.As(err, &e) {
		msg = e.Msg
	}
	if kind == scheduling.KindTransient {
		logger.ErrorContext(r.Context(), "scheduling request failed",
			"request_id", httpx.RequestIDFromContext(r.Context()),
			"err", err,
		)
	}
	httpx.Fail(w, StatusFor(kind), string(kind), msg)
}

func writeAccountError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var verr *accounts.ValidationError
	switch {
	case errors.As(err, &verr):
		httpx.Fail(w, http.StatusBadRequest, "validation", verr.Error())
	case errors.Is(err, accounts.ErrEmailTaken):
		httpx.Fail(w, http.StatusConflict, "email_taken", "Email already registered")
	case errors.Is(err, accounts.ErrInvalidCredentials):
		httpx.Fail(w, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials")
	case errors.Is(err, accounts.ErrUserNotFound):
		httpx.Fail(w, http.StatusNotFound, "not_found", "User not found")
	default:
		logger.ErrorContext(r.Context(), "account request failed",
			"request_id", httpx.RequestIDFromContext(r.Context()),
			"err", err,
		)
		httpx.Fail(w, http.StatusInternalServerError, "internal", "Something went wrong")
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	httpx.Fail(w, http.StatusBadRequest, "bad_request", msg)
}
