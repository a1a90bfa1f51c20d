// Package bridge exposes a hosted plugin session over gRPC so that a process on the other
// side of a memconn, unix or tcp connection can drive it.
package bridge

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/dynamicpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/n0izn0iz/plughost/pkg/plugin"
)

// Session is the part of host.Handle served by the bridge.
type Session interface {
	ProcessAudio(inputs [][]float32, inPorts, outPorts *plugin.AudioPorts, events *plugin.EventBuffer) ([][]float32, *plugin.EventBuffer, error)
	SteadyTime() (uint64, error)
	State() ([]byte, error)
	SetState(data []byte) error
	Restart() error
	ParamValue(id uint32) (float64, error)
	Done() <-chan struct{}
}

// Server serves one session.
type Server struct {
	session Session
	logger  *zap.Logger
	health  *health.Server
}

var _ BridgeServer = (*Server)(nil)

func NewServer(session Session, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		session: session,
		logger:  logger.Named("BridgeServer"),
		health:  health.NewServer(),
	}
}

// Register registers the bridge and the health service on r. Both report SERVING until
// the session ends.
func (s *Server) Register(r grpc.ServiceRegistrar) {
	RegisterBridgeServer(r, s)
	healthpb.RegisterHealthServer(r, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
}

// Watch flips the health status to NOT_SERVING once the session is done. It returns
// when that happens or when ctx is cancelled.
func (s *Server) Watch(ctx context.Context) {
	select {
	case <-s.session.Done():
		s.logger.Info("session ended, not serving anymore")
		s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	case <-ctx.Done():
	}
}

func (s *Server) ProcessAudio(ctx context.Context, req *dynamicpb.Message) (*dynamicpb.Message, error) {
	if req == nil {
		return nil, toStatus(malformed("no frame"))
	}
	var in Frame
	if err := in.fromMessage(req); err != nil {
		return nil, toStatus(err)
	}
	outputs, events, err := s.session.ProcessAudio(in.Channels, nil, nil, plugin.NewEventBuffer(in.Events...))
	if err != nil {
		return nil, toStatus(err)
	}
	out := Frame{Channels: outputs, Events: events.Events()}
	resp, err := out.Message()
	if err != nil {
		return nil, toStatus(err)
	}
	return resp, nil
}

func (s *Server) SteadyTime(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.UInt64Value, error) {
	frames, err := s.session.SteadyTime()
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.UInt64(frames), nil
}

func (s *Server) GetState(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BytesValue, error) {
	data, err := s.session.State()
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bytes(data), nil
}

func (s *Server) SetState(ctx context.Context, req *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	s.logger.Debug("Bridge.SetState", zap.Int("size", len(req.GetValue())))
	if err := s.session.SetState(req.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) Restart(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.session.Restart(); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) GetParameter(ctx context.Context, req *wrapperspb.UInt32Value) (*wrapperspb.DoubleValue, error) {
	v, err := s.session.ParamValue(req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Double(v), nil
}
