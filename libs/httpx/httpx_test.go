package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRateLimiterRejectsOverLimit(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute, func(r *http.Request) string { return r.Header.Get("X-User") })
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), rl.Middleware())

	send := func(user string) int {
		req := httptest.NewRequest(http.MethodPost, "/chat", nil)
		req.Header.Set("X-User", user)
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, req)
		return rw.Code
	}

	if code := send("a"); code != http.StatusNoContent {
		t.Fatalf("first request: %d", code)
	}
	if code := send("a"); code != http.StatusNoContent {
		t.Fatalf("second request: %d", code)
	}
	if code := send("a"); code != http.StatusTooManyRequests {
		t.Fatalf("third request should be limited, got %d", code)
	}
	if code := send("b"); code != http.StatusNoContent {
		t.Fatalf("other key should have its own bucket, got %d", code)
	}
}

func TestWithRequestIDEchoesInbound(t *testing.T) {
	var seen string
	h := WithRequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)

	if seen != "req-123" || rw.Header().Get(RequestIDHeader) != "req-123" {
		t.Fatalf("expected propagated id, got ctx=%q header=%q", seen, rw.Header().Get(RequestIDHeader))
	}

	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	if rw.Header().Get(RequestIDHeader) == "" {
		t.Fatal("expected generated request id")
	}
}

func TestFailEnvelope(t *testing.T) {
	rw := httptest.NewRecorder()
	Fail(rw, http.StatusConflict, "slot_conflict", "taken")

	var env Envelope
	if err := json.NewDecoder(rw.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Success || env.Kind != "slot_conflict" || env.Message != "taken" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if ct := rw.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var dst struct {
		Slot string `json:"slot"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"slot":"x","extra":1}`))
	if err := DecodeJSON(req, &dst); err == nil {
		t.Fatal("expected unknown field error")
	}
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"slot":"x"}`))
	if err := DecodeJSON(req, &dst); err != nil || dst.Slot != "x" {
		t.Fatalf("decode: %v (%+v)", err, dst)
	}
}

func TestDecodeJSONReportsEmptyBody(t *testing.T) {
	var dst struct{}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	if err := DecodeJSON(req, &dst); !errors.Is(err, ErrEmptyBody) {
		t.Fatalf("expected ErrEmptyBody, got %v", err)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := Chain(http.NotFoundHandler(), WithCORS(CORSPolicy{
		AllowedOrigins: []string{"https://app.example.com"},
		AllowedMethods: []string{"GET", "POST"},
	}))
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/appointments/mine", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)

	if rw.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rw.Code)
	}
	if got := rw.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
}
