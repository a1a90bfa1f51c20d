package bridge

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/n0izn0iz/plughost/pkg/host"
)

// toStatus maps a session error to a gRPC status error.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	code := codes.Internal
	switch {
	case errors.Is(err, host.ErrSessionClosed):
		code = codes.Unavailable
	case errors.Is(err, ErrMalformedFrame), errors.Is(err, host.ErrContractViolation):
		code = codes.InvalidArgument
	case errors.Is(err, host.ErrConcurrentProcess):
		code = codes.FailedPrecondition
	case errors.Is(err, host.ErrUnsupported):
		code = codes.Unimplemented
	}
	return status.Error(code, err.Error())
}

// fromStatus maps a status error back to the matching host sentinel, keeping the status
// in the chain.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok || err == nil {
		return err
	}
	var sentinel error
	switch st.Code() {
	case codes.Unavailable:
		sentinel = host.ErrSessionClosed
	case codes.InvalidArgument:
		sentinel = host.ErrContractViolation
	case codes.FailedPrecondition:
		sentinel = host.ErrConcurrentProcess
	case codes.Unimplemented:
		sentinel = host.ErrUnsupported
	default:
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
