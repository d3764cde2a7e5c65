package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/md-rashed-zaman/apptslot/libs/auth"
	"github.com/md-rashed-zaman/apptslot/libs/httpx"
)

// TokenVerifier is satisfied by *auth.Issuer.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type identityKey struct{}

// Caller is the authenticated principal of a request.
type Caller struct {
	UserID string
	Email  string
}

func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(identityKey{}).(Caller)
	return c, ok && c.UserID != ""
}

func ContextWithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, identityKey{}, c)
}

// RequireCaller rejects requests without a valid bearer token.
func RequireCaller(v TokenVerifier) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := auth.BearerToken(r)
			if err != nil {
				httpx.Fail(w, http.StatusUnauthorized, "unauthenticated", "No token provided")
				return
			}
			claims, err := v.Verify(raw)
			if err != nil {
				msg := "Invalid token"
				if errors.Is(err, auth.ErrTokenExpired) {
					msg = "Token expired"
				}
				httpx.Fail(w, http.StatusUnauthorized, "unauthenticated", msg)
				return
			}
			ctx := ContextWithCaller(r.Context(), Caller{UserID: claims.UserID, Email: claims.Email})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerKey rate-limits per authenticated user, falling back to client IP.
func CallerKey(r *http.Request) string {
	if c, ok := CallerFromContext(r.Context()); ok {
		return "user:" + c.UserID
	}
	return "ip:" + httpx.ClientIP(r)
}
