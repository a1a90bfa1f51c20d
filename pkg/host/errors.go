package host

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionClosed is returned once the worker has terminated. It wraps the cause when
	// the session ended on a failure.
	ErrSessionClosed = errors.New("host: session closed")
	// ErrContractViolation reports malformed input, such as a block size outside the
	// configured range.
	ErrContractViolation = errors.New("host: contract violation")
	// ErrConcurrentProcess is returned when a ProcessAudio call overlaps another one.
	ErrConcurrentProcess = errors.New("host: concurrent process call")
	ErrUnknownTimer      = errors.New("host: unknown timer id")
	ErrUnsupported       = errors.New("host: extension not supported by plugin")
	ErrEmbeddedGUI       = errors.New("host: embedded gui is not supported")
	ErrPluginFailure     = errors.New("host: plugin failure")
)

// misuse panics on a host programming error. The panic value wraps ErrContractViolation
// so that the worker reports it as such.
func misuse(format string, args ...any) {
	panic(fmt.Errorf("%w: %s", ErrContractViolation, fmt.Sprintf(format, args...)))
}
