package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/apptslot/libs/httpx"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/accounts"
)

// Accounts is implemented by *accounts.Service.
type Accounts interface {
	Register(ctx context.Context, in accounts.RegisterInput) (accounts.Account, error)
	Login(ctx context.Context, email, password string) (accounts.Session, error)
	Profile(ctx context.Context, userID string) (accounts.Account, error)
	UpdateProfile(ctx context.Context, userID string, in accounts.ProfileInput) (accounts.Account, error)
}

type AuthHandler struct {
	accounts Accounts
	logger   *slog.Logger
}

func NewAuthHandler(accts Accounts, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{accounts: accts, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req accounts.RegisterInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, "Invalid JSON body")
		return
	}
	acct, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		writeAccountError(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusCreated, acct)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, "Invalid JSON body")
		return
	}
	sess, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAccountError(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, sess)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	acct, err := h.accounts.Profile(r.Context(), caller.UserID)
	if err != nil {
		writeAccountError(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, acct)
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	var req accounts.ProfileInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, "Invalid JSON body")
		return
	}
	acct, err := h.accounts.UpdateProfile(r.Context(), caller.UserID, req)
	if err != nil {
		writeAccountError(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, acct)
}
