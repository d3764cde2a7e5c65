package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/apptslot/libs/httpx"
)

// Routes carries everything Mount needs. ChatLimit throttles the chat
// endpoints per caller; nil disables throttling.
type Routes struct {
	Appointments *AppointmentHandler
	Chat         *ChatHandler
	Auth         *AuthHandler
	Verifier     TokenVerifier
	ChatLimit    httpx.Middleware
}

// Mount registers the public API on mux.
func Mount(mux *http.ServeMux, rt Routes) {
	authed := RequireCaller(rt.Verifier)
	protect := func(h http.HandlerFunc) http.Handler { return authed(h) }

	mux.HandleFunc("POST /api/v1/auth/register", rt.Auth.Register)
	mux.HandleFunc("POST /api/v1/auth/login", rt.Auth.Login)
	mux.Handle("GET /api/v1/auth/me", protect(rt.Auth.Me))
	mux.Handle("PUT /api/v1/auth/profile", protect(rt.Auth.UpdateProfile))

	mux.Handle("POST /api/v1/appointments/book", protect(rt.Appointments.Book))
	mux.Handle("PUT /api/v1/appointments/{id}/cancel", protect(rt.Appointments.Cancel))
	mux.Handle("GET /api/v1/appointments/mine", protect(rt.Appointments.Mine))
	mux.Handle("GET /api/v1/appointments/availability", protect(rt.Appointments.Availability))
	mux.Handle("GET /api/v1/appointments/next-available", protect(rt.Appointments.NextAvailable))

	chat := []httpx.Middleware{authed}
	if rt.ChatLimit != nil {
		chat = append(chat, rt.ChatLimit)
	}
	mux.Handle("POST /api/v1/chat/availability", httpx.Chain(http.HandlerFunc(rt.Chat.Availability), chat...))
	mux.Handle("POST /api/v1/chat/book", httpx.Chain(http.HandlerFunc(rt.Chat.Book), chat...))
}
