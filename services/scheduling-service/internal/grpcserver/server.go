// Package grpcserver exposes the scheduling engine over gRPC for internal
// callers. Messages are google.protobuf.Struct so no generated code is needed.
package grpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptslot/libs/auth"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/scheduling"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "apptslot.scheduling.v1.SchedulingService"

// ErrorKindKey is the trailer carrying the engine error kind.
const ErrorKindKey = "x-error-kind"

type Engine interface {
	Book(ctx context.Context, userID string, requested time.Time, viaChat bool) (model.Appointment, error)
	Cancel(ctx context.Context, userID, appointmentID string) (model.Appointment, error)
	CheckAvailability(ctx context.Context, requested *time.Time) (scheduling.Availability, error)
	FindNextAvailableSlot(ctx context.Context) (time.Time, error)
	ListForUser(ctx context.Context, userID string) ([]model.Appointment, error)
}

type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type server struct {
	engine   Engine
	verifier TokenVerifier
}

func Register(grpcServer *grpc.Server, engine Engine, verifier TokenVerifier) {
	grpcServer.RegisterService(&serviceDesc, &server{engine: engine, verifier: verifier})
}

var kindCodes = map[scheduling.Kind]codes.Code{
	scheduling.KindInvalidSlot:               codes.InvalidArgument,
	scheduling.KindSlotConflict:              codes.AlreadyExists,
	scheduling.KindNoAvailability:            codes.NotFound,
	scheduling.KindNotFound:                  codes.NotFound,
	scheduling.KindUnauthorized:              codes.PermissionDenied,
	scheduling.KindCancellationWindowExpired: codes.FailedPrecondition,
	scheduling.KindInvalidState:              codes.FailedPrecondition,
	scheduling.KindTransient:                 codes.Unavailable,
}

func toStatus(ctx context.Context, err error) error {
	kind := scheduling.KindOf(err)
	code, ok := kindCodes[kind]
	if !ok {
		code = codes.Internal
	}
	msg := err.Error()
	var e *scheduling.Error
	if errors.As(err, &e) {
		msg = e.Msg
	}
	_ = grpc.SetTrailer(ctx, metadata.Pairs(ErrorKindKey, string(kind)))
	return status.Error(code, msg)
}

func (s *server) caller(ctx context.Context) (string, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	var raw string
	if vals := md.Get("authorization"); len(vals) > 0 {
		raw = vals[0]
	}
	token, ok := strings.CutPrefix(raw, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", status.Error(codes.Unauthenticated, "missing bearer token")
	}
	claims, err := s.verifier.Verify(strings.TrimSpace(token))
	if err != nil {
		return "", status.Error(codes.Unauthenticated, "invalid token")
	}
	return claims.UserID, nil
}

func (s *server) book(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	slot, err := timeField(in, "appointment_date")
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, status.Error(codes.InvalidArgument, "appointment_date is required")
	}
	viaChat := in.GetFields()["via_chat"].GetBoolValue()
	appt, err := s.engine.Book(ctx, userID, *slot, viaChat)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return toStruct(appt)
}

func (s *server) cancel(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	appt, err := s.engine.Cancel(ctx, userID, in.GetFields()["id"].GetStringValue())
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return toStruct(appt)
}

func (s *server) checkAvailability(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if _, err := s.caller(ctx); err != nil {
		return nil, err
	}
	slot, err := timeField(in, "slot")
	if err != nil {
		return nil, err
	}
	res, err := s.engine.CheckAvailability(ctx, slot)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return toStruct(res)
}

func (s *server) findNextAvailableSlot(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if _, err := s.caller(ctx); err != nil {
		return nil, err
	}
	slot, err := s.engine.FindNextAvailableSlot(ctx)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return structpb.NewStruct(map[string]any{"suggested_slot": slot.UTC().Format(time.RFC3339)})
}

func (s *server) listForUser(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	userID, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	appts, err := s.engine.ListForUser(ctx, userID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	if appts == nil {
		appts = []model.Appointment{}
	}
	return toStruct(map[string]any{"appointments": appts})
}

func timeField(in *structpb.Struct, name string) (*time.Time, error) {
	raw := strings.TrimSpace(in.GetFields()[name].GetStringValue())
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%s must be an RFC 3339 timestamp", name)
	}
	return &t, nil
}

// toStruct goes through the JSON encoding so field names match the HTTP API.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}

type handlerFunc func(*server, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(method string, fn handlerFunc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*server)
			if interceptor == nil {
				return fn(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fn(s, ctx, req.(*structpb.Struct))
			})
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		unary("Book", (*server).book),
		unary("Cancel", (*server).cancel),
		unary("CheckAvailability", (*server).checkAvailability),
		unary("FindNextAvailableSlot", (*server).findNextAvailableSlot),
		unary("ListForUser", (*server).listForUser),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "scheduling/v1/scheduling.proto",
}
