package bridge

import (
	"fmt"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_logging "github.com/grpc-ecosystem/go-grpc-middleware/logging"
	grpc_zap "github.com/grpc-ecosystem/go-grpc-middleware/logging/zap"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	grpc_ctxtags "github.com/grpc-ecosystem/go-grpc-middleware/tags"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// quietProcess drops the log line of successful ProcessAudio calls, which happen once per
// audio block.
var quietProcess grpc_logging.Decider = func(fullMethodName string, err error) bool {
	return err != nil || fullMethodName != methodProcessAudio
}

func recoverPanic(logger *zap.Logger) grpc_recovery.RecoveryHandlerFunc {
	return func(p interface{}) error {
		logger.Error("panic in handler", zap.Any("panic", p), zap.Stack("stack"))
		return status.Error(codes.Internal, fmt.Sprint("panic: ", p))
	}
}

// ServerOptions returns the interceptor chain of bridge servers: request tags, zap
// logging and panic recovery.
func ServerOptions(logger *zap.Logger) []grpc.ServerOption {
	opts := []grpc_zap.Option{
		grpc_zap.WithLevels(grpc_zap.DefaultCodeToLevel),
		grpc_zap.WithDecider(quietProcess),
	}
	recovery := grpc_recovery.WithRecoveryHandler(recoverPanic(logger))
	return []grpc.ServerOption{
		grpc_middleware.WithUnaryServerChain(
			grpc_ctxtags.UnaryServerInterceptor(grpc_ctxtags.WithFieldExtractor(grpc_ctxtags.CodeGenRequestFieldExtractor)),
			grpc_zap.UnaryServerInterceptor(logger, opts...),
			grpc_recovery.UnaryServerInterceptor(recovery),
		),
		grpc_middleware.WithStreamServerChain(
			grpc_ctxtags.StreamServerInterceptor(grpc_ctxtags.WithFieldExtractor(grpc_ctxtags.CodeGenRequestFieldExtractor)),
			grpc_zap.StreamServerInterceptor(logger, opts...),
			grpc_recovery.StreamServerInterceptor(recovery),
		),
	}
}

// DialOptions returns the client side logging and credentials of bridge connections.
// Transports are plain: memconn and unix sockets never leave the machine.
func DialOptions(logger *zap.Logger) []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(grpc_middleware.ChainUnaryClient(
			grpc_zap.UnaryClientInterceptor(logger,
				grpc_zap.WithLevels(grpc_zap.DefaultClientCodeToLevel),
				grpc_zap.WithDecider(quietProcess),
			),
		)),
	}
}
