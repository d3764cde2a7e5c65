package grpcserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptslot/libs/auth"
	"github.com/md-rashed-zaman/apptslot/libs/grpcx"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/scheduling"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/scheduling/schedulingtest"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/slots"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type harness struct {
	conn   *grpc.ClientConn
	issuer *auth.Issuer
	clock  *schedulingtest.Clock
}

func startServer(t *testing.T) *harness {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	issuer, err := auth.NewIssuer("grpc-secret", time.Hour)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	clock := schedulingtest.NewClock(time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC))
	mgr := scheduling.NewManager(schedulingtest.NewMemStore(), slots.DefaultCalendar(), scheduling.Options{Clock: clock})

	srv := grpcx.NewServer(slog.New(slog.DiscardHandler))
	Register(srv, mgr, issuer)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := grpcx.Dial(ctx, "bufnet", grpcx.DialOptions{},
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &harness{conn: conn, issuer: issuer, clock: clock}
}

func (h *harness) client(t *testing.T, userID string) *Client {
	t.Helper()
	tok, _, err := h.issuer.Sign(auth.Claims{UserID: userID, Email: userID + "@example.com"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return NewClient(h.conn, tok)
}

func expectKind(t *testing.T, err error, kind scheduling.Kind, code codes.Code) {
	t.Helper()
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("expected client error, got %v", err)
	}
	if cerr.Kind != kind || cerr.Status.Code() != code {
		t.Fatalf("expected %s/%s, got %s/%s", kind, code, cerr.Kind, cerr.Status.Code())
	}
}

func TestBookCancelOverGRPC(t *testing.T) {
	h := startServer(t)
	ctx := context.Background()
	alice := h.client(t, "alice")
	bob := h.client(t, "bob")

	slot := time.Date(2025, 1, 7, 9, 0, 0, 0, time.UTC)
	out, err := alice.Book(ctx, slot, true)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	fields := out.GetFields()
	if fields["status"].GetStringValue() != "confirmed" || !fields["booked_via_chat"].GetBoolValue() {
		t.Fatalf("unexpected appointment: %v", out)
	}
	id := fields["id"].GetStringValue()

	_, err = bob.Book(ctx, slot, false)
	expectKind(t, err, scheduling.KindSlotConflict, codes.AlreadyExists)

	_, err = bob.Cancel(ctx, id)
	expectKind(t, err, scheduling.KindUnauthorized, codes.PermissionDenied)

	out, err = alice.Cancel(ctx, id)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if out.GetFields()["status"].GetStringValue() != "cancelled" {
		t.Fatalf("unexpected cancel result: %v", out)
	}

	_, err = alice.Cancel(ctx, id)
	expectKind(t, err, scheduling.KindInvalidState, codes.FailedPrecondition)

	list, err := alice.ListForUser(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one appointment, got %d", len(list))
	}
}

func TestAvailabilityOverGRPC(t *testing.T) {
	h := startServer(t)
	ctx := context.Background()
	alice := h.client(t, "alice")

	next, err := alice.FindNextAvailableSlot(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if !next.Equal(time.Date(2025, 1, 7, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected next slot %s", next)
	}

	past := time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC)
	_, err = alice.CheckAvailability(ctx, &past)
	expectKind(t, err, scheduling.KindInvalidSlot, codes.InvalidArgument)

	out, err := alice.CheckAvailability(ctx, &next)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if out.GetFields()["type"].GetStringValue() != string(scheduling.AvailabilityRequested) || !out.GetFields()["available"].GetBoolValue() {
		t.Fatalf("unexpected availability: %v", out)
	}
}

func TestRejectsMissingToken(t *testing.T) {
	h := startServer(t)
	_, err := NewClient(h.conn, "").FindNextAvailableSlot(context.Background())
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("expected client error, got %v", err)
	}
	if status.Code(cerr.Status.Err()) != codes.Unauthenticated {
		t.Fatalf("expected unauthenticated, got %s", cerr.Status.Code())
	}
}
