// Package host runs a single plugin instance on a dedicated worker goroutine and exposes
// it to the rest of the program through a thread-safe Handle.
//
// Every call into the plugin happens on the worker, which is locked to its OS thread.
// Callers talk to the worker through an unbounded command queue; calls that need an
// answer block until the worker replies or terminates.
package host

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/n0izn0iz/plughost/pkg/plugin"
)

// Handle is the caller side of a running session. All methods are safe for concurrent
// use, except that ProcessAudio calls must not overlap.
type Handle struct {
	q       *queue
	cfg     plugin.AudioConfiguration
	desc    plugin.Descriptor
	session string
	logger  *zap.Logger

	processing atomic.Bool
}

// Run starts a worker for the plugin in bundle and waits until the plugin is instantiated,
// activated and processing. The bundle is not closed by the session.
func Run(bundle plugin.Bundle, cfg plugin.AudioConfiguration, opts ...Option) (*Handle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContractViolation, err)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	session := uuid.NewString()
	logger := o.logger.With(zap.String("session", session), zap.String("bundle", bundle.Path()))
	var m *Metrics
	if o.registerer != nil {
		m = NewMetrics(o.registerer)
	}

	q := newQueue()
	w := newWorker(q, o, m, logger)
	ready := make(chan startResult, 1)
	go w.serve(bundle, cfg, ready)

	res := <-ready
	if res.err != nil {
		return nil, res.err
	}
	return &Handle{
		q:       q,
		cfg:     cfg,
		desc:    res.desc,
		session: session,
		logger:  logger,
	}, nil
}

func expect[T reply](r reply, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	switch r := r.(type) {
	case T:
		return r, nil
	case failedReply:
		return zero, r.err
	}
	return zero, fmt.Errorf("host: unexpected reply %T", r)
}

// ProcessAudio runs one block through the plugin and returns the output channels and
// events. inPorts and outPorts may be nil, in which case they are sized for inputs; they
// must not be the same object.
// A call overlapping another one fails with ErrConcurrentProcess.
func (h *Handle) ProcessAudio(inputs [][]float32, inPorts, outPorts *plugin.AudioPorts, events *plugin.EventBuffer) ([][]float32, *plugin.EventBuffer, error) {
	if !h.processing.CompareAndSwap(false, true) {
		return nil, nil, ErrConcurrentProcess
	}
	defer h.processing.Store(false)

	ch := make(chan reply, 1)
	r, err := expect[audioProcessedReply](h.q.call(processAudioCmd{
		inputs:   inputs,
		inPorts:  inPorts,
		outPorts: outPorts,
		events:   events,
		reply:    ch,
	}, ch))
	if err != nil {
		return nil, nil, err
	}
	return r.outputs, r.events, nil
}

// SteadyTime returns the number of frames processed since the last (re)start.
func (h *Handle) SteadyTime() (uint64, error) {
	ch := make(chan reply, 1)
	r, err := expect[steadyTimeReply](h.q.call(getSteadyTimeCmd{reply: ch}, ch))
	return r.frames, err
}

// State returns the plugin's serialized state.
func (h *Handle) State() ([]byte, error) {
	ch := make(chan reply, 1)
	r, err := expect[stateReply](h.q.call(getStateCmd{reply: ch}, ch))
	return r.data, err
}

// SetState hands data to the plugin and restarts processing. It does not wait for the
// plugin to accept the state; a rejected state is only logged.
func (h *Handle) SetState(data []byte) error {
	return h.q.push(setStateCmd{data: append([]byte(nil), data...)})
}

// Restart cycles processing and resets the steady time to zero.
func (h *Handle) Restart() error {
	ch := make(chan reply, 1)
	_, err := expect[restartedReply](h.q.call(restartCmd{reply: ch}, ch))
	return err
}

// ParamValue returns the current value of parameter id.
func (h *Handle) ParamValue(id uint32) (float64, error) {
	ch := make(chan reply, 1)
	r, err := expect[paramValueReply](h.q.call(getParamValueCmd{id: id, reply: ch}, ch))
	return r.value, err
}

// Close asks the worker to stop, waits for the plugin to be torn down and returns the
// error the session ended with, if any.
func (h *Handle) Close() error {
	if err := h.q.push(shutdownCmd{}); err != nil {
		h.logger.Debug("session already closed", zap.Error(err))
	}
	<-h.q.done
	return h.q.cause()
}

// Done is closed once the worker has terminated.
func (h *Handle) Done() <-chan struct{} { return h.q.done }

// Err returns the error the session terminated with. It is nil while the session runs
// and after a clean shutdown.
func (h *Handle) Err() error { return h.q.cause() }

func (h *Handle) Config() plugin.AudioConfiguration { return h.cfg }

func (h *Handle) Descriptor() plugin.Descriptor { return h.desc }

// Session is the unique id of this session, as found in its log lines.
func (h *Handle) Session() string { return h.session }
