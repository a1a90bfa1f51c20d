package bridge

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/n0izn0iz/plughost/pkg/plugin"
)

// Client drives a remote session. Errors carry the host sentinel matching the status
// code, so errors.Is(err, host.ErrSessionClosed) works across the bridge.
type Client struct {
	cc     grpc.ClientConnInterface
	health healthpb.HealthClient
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc, health: healthpb.NewHealthClient(cc)}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	return fromStatus(c.cc.Invoke(ctx, method, in, out))
}

// ProcessAudio sends one block and returns the processed channels and output events.
func (c *Client) ProcessAudio(ctx context.Context, inputs [][]float32, events ...plugin.Event) ([][]float32, []plugin.Event, error) {
	in := Frame{Channels: inputs, Events: events}
	req, err := in.Message()
	if err != nil {
		return nil, nil, err
	}
	resp := newFrameMessage()
	if err := c.invoke(ctx, methodProcessAudio, req, resp); err != nil {
		return nil, nil, err
	}
	var out Frame
	if err := out.fromMessage(resp); err != nil {
		return nil, nil, err
	}
	return out.Channels, out.Events, nil
}

func (c *Client) SteadyTime(ctx context.Context) (uint64, error) {
	resp := new(wrapperspb.UInt64Value)
	err := c.invoke(ctx, methodSteadyTime, &emptypb.Empty{}, resp)
	return resp.GetValue(), err
}

func (c *Client) State(ctx context.Context) ([]byte, error) {
	resp := new(wrapperspb.BytesValue)
	err := c.invoke(ctx, methodGetState, &emptypb.Empty{}, resp)
	return resp.GetValue(), err
}

func (c *Client) SetState(ctx context.Context, data []byte) error {
	return c.invoke(ctx, methodSetState, wrapperspb.Bytes(data), new(emptypb.Empty))
}

func (c *Client) Restart(ctx context.Context) error {
	return c.invoke(ctx, methodRestart, &emptypb.Empty{}, new(emptypb.Empty))
}

func (c *Client) ParamValue(ctx context.Context, id uint32) (float64, error) {
	resp := new(wrapperspb.DoubleValue)
	err := c.invoke(ctx, methodGetParameter, wrapperspb.UInt32(id), resp)
	return resp.GetValue(), err
}

// Serving reports whether the remote session still runs.
func (c *Client) Serving(ctx context.Context) (bool, error) {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return false, fmt.Errorf("bridge: health check: %w", err)
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}
