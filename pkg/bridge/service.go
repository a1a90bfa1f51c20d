package bridge

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/dynamicpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified name of the bridge service.
const ServiceName = "plughost.bridge.v1.Bridge"

const (
	methodProcessAudio = "/" + ServiceName + "/ProcessAudio"
	methodSteadyTime   = "/" + ServiceName + "/SteadyTime"
	methodGetState     = "/" + ServiceName + "/GetState"
	methodSetState     = "/" + ServiceName + "/SetState"
	methodRestart      = "/" + ServiceName + "/Restart"
	methodGetParameter = "/" + ServiceName + "/GetParameter"
)

// BridgeServer is the server API of the bridge service. ProcessAudio exchanges
// plughost.bridge.v1.Frame messages, the other methods use well-known types.
type BridgeServer interface {
	ProcessAudio(context.Context, *dynamicpb.Message) (*dynamicpb.Message, error)
	SteadyTime(context.Context, *emptypb.Empty) (*wrapperspb.UInt64Value, error)
	GetState(context.Context, *emptypb.Empty) (*wrapperspb.BytesValue, error)
	SetState(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error)
	Restart(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	GetParameter(context.Context, *wrapperspb.UInt32Value) (*wrapperspb.DoubleValue, error)
}

func alloc[T any]() *T { return new(T) }

func unary[Req, Resp any](name, fullMethod string, newReq func() *Req, call func(BridgeServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(BridgeServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(BridgeServer), ctx, req.(*Req))
			})
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BridgeServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ProcessAudio", methodProcessAudio, newFrameMessage, BridgeServer.ProcessAudio),
		unary("SteadyTime", methodSteadyTime, alloc[emptypb.Empty], BridgeServer.SteadyTime),
		unary("GetState", methodGetState, alloc[emptypb.Empty], BridgeServer.GetState),
		unary("SetState", methodSetState, alloc[wrapperspb.BytesValue], BridgeServer.SetState),
		unary("Restart", methodRestart, alloc[emptypb.Empty], BridgeServer.Restart),
		unary("GetParameter", methodGetParameter, alloc[wrapperspb.UInt32Value], BridgeServer.GetParameter),
	},
	Metadata: "plughost/bridge/v1/bridge.proto",
}

// RegisterBridgeServer registers srv on s.
func RegisterBridgeServer(s grpc.ServiceRegistrar, srv BridgeServer) {
	s.RegisterService(&serviceDesc, srv)
}
