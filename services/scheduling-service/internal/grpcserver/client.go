package grpcserver

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/apptslot/services/scheduling-service/internal/scheduling"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the scheduling service on behalf of a bearer token holder.
type Client struct {
	conn  grpc.ClientConnInterface
	token string
}

func NewClient(conn grpc.ClientConnInterface, token string) *Client {
	return &Client{conn: conn, token: token}
}

// Error is a failed call with the engine kind recovered from the trailer.
type Error struct {
	Kind   scheduling.Kind
	Status *status.Status
}

func (e *Error) Error() string { return e.Status.Message() }

func (c *Client) call(ctx context.Context, method string, in map[string]any) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}
	out := new(structpb.Struct)
	var trailer metadata.MD
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, grpc.Trailer(&trailer)); err != nil {
		st, ok := status.FromError(err)
		if !ok {
			return nil, err
		}
		var kind scheduling.Kind
		if vals := trailer.Get(ErrorKindKey); len(vals) > 0 {
			kind = scheduling.Kind(vals[0])
		}
		return nil, &Error{Kind: kind, Status: st}
	}
	return out, nil
}

func (c *Client) Book(ctx context.Context, slot time.Time, viaChat bool) (*structpb.Struct, error) {
	return c.call(ctx, "Book", map[string]any{
		"appointment_date": slot.UTC().Format(time.RFC3339),
		"via_chat":         viaChat,
	})
}

func (c *Client) Cancel(ctx context.Context, id string) (*structpb.Struct, error) {
	return c.call(ctx, "Cancel", map[string]any{"id": id})
}

// CheckAvailability with a nil slot asks for a suggestion only.
func (c *Client) CheckAvailability(ctx context.Context, slot *time.Time) (*structpb.Struct, error) {
	in := map[string]any{}
	if slot != nil {
		in["slot"] = slot.UTC().Format(time.RFC3339)
	}
	return c.call(ctx, "CheckAvailability", in)
}

func (c *Client) FindNextAvailableSlot(ctx context.Context) (time.Time, error) {
	out, err := c.call(ctx, "FindNextAvailableSlot", nil)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, out.GetFields()["suggested_slot"].GetStringValue())
}

func (c *Client) ListForUser(ctx context.Context) ([]any, error) {
	out, err := c.call(ctx, "ListForUser", nil)
	if err != nil {
		return nil, err
	}
	return out.GetFields()["appointments"].GetListValue().AsSlice(), nil
}
