package host

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/n0izn0iz/plughost/pkg/plugin"
)

// worker is the single goroutine allowed to call into the plugin. It is locked to its
// OS thread for its whole life, so that thread plays both the main-thread and the
// audio-thread role.
type worker struct {
	opts    options
	logger  *zap.Logger
	q       *queue
	metrics *Metrics

	shared *sharedHandler
	main   *mainThreadHandler
	timers *Timers

	instance  plugin.Instance
	activated bool
	audio     *AudioProcessor
	timerExt  plugin.Timer
	state     plugin.State
	params    plugin.Params
	gui       *GUI
	floating  bool
}

func newWorker(q *queue, o options, m *Metrics, logger *zap.Logger) *worker {
	timers := NewTimers(o.waitFloor)
	return &worker{
		opts:    o,
		logger:  logger,
		q:       q,
		metrics: m,
		shared:  &sharedHandler{q: q, logger: logger.Named("shared")},
		main:    &mainThreadHandler{timers: timers, logger: logger.Named("main")},
		timers:  timers,
	}
}

// serve runs the whole session. ready receives the startup result exactly once.
func (w *worker) serve(bundle plugin.Bundle, cfg plugin.AudioConfiguration, ready chan<- startResult) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := w.guard("start", func() error { return w.start(bundle, cfg) }); err != nil {
		err = multierr.Append(err, w.teardown())
		w.q.terminate(err)
		ready <- startResult{err: err}
		return
	}
	ready <- startResult{desc: w.instance.Descriptor()}
	w.metrics.sessionStarted()

	err := w.guard("run", w.run)
	if err != nil {
		w.logger.Error("session terminated", zap.Error(err))
	}
	err = multierr.Append(err, w.teardown())
	w.metrics.sessionEnded()
	w.q.terminate(err)
	w.logger.Debug("session ended")
}

type startResult struct {
	desc plugin.Descriptor
	err  error
}

func (w *worker) start(bundle plugin.Bundle, cfg plugin.AudioConfiguration) error {
	id := w.opts.pluginID
	if id == "" {
		descs := bundle.Descriptors()
		if len(descs) == 0 {
			return plugin.ErrNoDescriptor
		}
		id = descs[0].ID
	}

	inst, err := bundle.Instantiate(id, w.opts.info, hostHandler{w.shared, w.main})
	if err != nil {
		return fmt.Errorf("%w: instantiate %s: %w", ErrPluginFailure, id, err)
	}
	w.instance = inst

	proc, err := inst.Activate(cfg)
	if err != nil {
		return fmt.Errorf("%w: activate: %w", ErrPluginFailure, err)
	}
	w.activated = true

	w.audio, err = newAudioProcessor(proc, cfg, w.metrics)
	if err != nil {
		return err
	}

	w.timerExt, _ = plugin.TimerOf(inst)
	w.state, _ = plugin.StateOf(inst)
	w.params, _ = plugin.ParamsOf(inst)
	if ext, ok := plugin.GUIOf(inst); ok {
		w.gui = negotiateGUI(ext, w.opts.defaultAPI, &w.shared.guiHintsChanged, w.logger.Named("gui"))
	}

	w.logger.Info("plugin started",
		zap.String("plugin", inst.Descriptor().ID),
		zap.Float64("sampleRate", cfg.SampleRate),
		zap.Uint32("minFrames", cfg.MinFramesCount),
		zap.Uint32("maxFrames", cfg.MaxFramesCount),
		zap.Bool("timers", w.timerExt != nil),
		zap.Bool("state", w.state != nil),
		zap.Bool("gui", w.gui != nil),
	)
	return nil
}

func (w *worker) run() error {
	if w.gui == nil {
		return w.runNoGUI()
	}
	floating, ok := w.gui.NeedsFloating()
	switch {
	case !ok:
		return w.runNoGUI()
	case floating:
		return w.runFloating()
	default:
		return w.runEmbedded()
	}
}

func (w *worker) runNoGUI() error {
	return w.loop()
}

// runEmbedded would need a window handle donated by the embedding application. The
// session keeps serving audio without a window instead.
func (w *worker) runEmbedded() error {
	w.logger.Warn("plugin only offers an embedded window, running without gui", zap.Error(ErrEmbeddedGUI))
	return w.loop()
}

// runFloating opens the plugin window and serves the loop until the window is closed.
func (w *worker) runFloating() error {
	if err := w.gui.OpenFloating(); err != nil {
		return err
	}
	w.floating = true
	return w.loop()
}

func (w *worker) loop() error {
	for {
		w.q.wait(w.nextWait())
		w.tickTimers()
		if w.floating {
			pumpWindowMessages()
		}
		stop, err := w.drain()
		if stop || err != nil {
			return err
		}
	}
}

func (w *worker) nextWait() time.Duration {
	d := w.timers.NextWait()
	if d > w.opts.waitFloor {
		d = w.opts.waitFloor
	}
	return d
}

func (w *worker) tickTimers() {
	fired := w.timers.Tick(w.opts.clock())
	if w.timerExt == nil {
		return
	}
	for _, id := range fired {
		w.timerExt.OnTimer(id)
		w.metrics.timerFired()
	}
}

// drain dispatches pending commands until the queue is empty. Commands pushed while
// dispatching are picked up in the same call.
func (w *worker) drain() (bool, error) {
	for {
		cmds := w.q.drain()
		if len(cmds) == 0 {
			return false, nil
		}
		for i, c := range cmds {
			stop, err := w.dispatch(c)
			if stop || err != nil {
				w.reject(cmds[i+1:], err)
				return stop, err
			}
		}
	}
}

// reject answers commands that were taken off the queue but will never be dispatched.
func (w *worker) reject(cmds []command, cause error) {
	err := ErrSessionClosed
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrSessionClosed, cause)
	}
	for _, c := range cmds {
		if ch := replyChan(c); ch != nil {
			ch <- failedReply{err: err}
		}
	}
}

// dispatch handles one command. A non-nil error is fatal to the session.
func (w *worker) dispatch(c command) (stop bool, err error) {
	w.metrics.command(c.kind())

	switch c := c.(type) {
	case processAudioCmd:
		outputs, events, err := w.audio.Process(c.inputs, c.events, c.inPorts, c.outPorts)
		if err != nil {
			c.reply <- failedReply{err: err}
			if errors.Is(err, ErrContractViolation) {
				w.logger.Warn("rejected process call", zap.Error(err))
				return false, nil
			}
			return false, err
		}
		c.reply <- audioProcessedReply{outputs: outputs, events: events}

	case getSteadyTimeCmd:
		c.reply <- steadyTimeReply{frames: w.audio.SteadyTime()}

	case getStateCmd:
		if w.state == nil {
			c.reply <- failedReply{err: fmt.Errorf("%w: state", ErrUnsupported)}
			return false, nil
		}
		data, err := w.state.SaveState()
		if err != nil {
			c.reply <- failedReply{err: fmt.Errorf("save state: %w", err)}
			return false, nil
		}
		c.reply <- stateReply{data: data}

	case setStateCmd:
		if w.state == nil {
			w.logger.Warn("dropped state: plugin has no state extension")
			return false, nil
		}
		if err := w.state.LoadState(c.data); err != nil {
			w.logger.Error("plugin rejected state", zap.Int("bytes", len(c.data)), zap.Error(err))
			return false, nil
		}
		// a full reload invalidates the realtime context
		if err := w.audio.Restart(); err != nil {
			return false, err
		}

	case restartCmd:
		if err := w.audio.Restart(); err != nil {
			c.reply <- failedReply{err: err}
			return false, err
		}
		c.reply <- restartedReply{}

	case getParamValueCmd:
		if w.params == nil {
			c.reply <- failedReply{err: fmt.Errorf("%w: params", ErrUnsupported)}
			return false, nil
		}
		v, ok := w.params.ParamValue(c.id)
		if !ok {
			c.reply <- failedReply{err: fmt.Errorf("%w: unknown param %d", ErrContractViolation, c.id)}
			return false, nil
		}
		c.reply <- paramValueReply{value: v}

	case runMainThreadCallbackCmd:
		w.instance.OnMainThread()

	case guiClosedCmd:
		if !w.floating {
			w.logger.Debug("ignored gui closed notification without an open window")
			return false, nil
		}
		w.gui.Destroy()
		w.logger.Info("plugin window closed", zap.Bool("wasDestroyed", c.wasDestroyed))
		return true, nil

	case guiResizeRequestedCmd:
		if w.gui == nil || !w.gui.IsOpen() {
			w.logger.Debug("ignored resize request without an open window")
			return false, nil
		}
		size, err := w.gui.Resize(w.gui.ToWindowSize(c.size), 1.0)
		if err != nil {
			w.logger.Warn("gui resize failed", zap.Error(err))
			return false, nil
		}
		w.logger.Debug("gui resized", zap.Float64("width", size.Width), zap.Float64("height", size.Height))

	case shutdownCmd:
		return true, nil

	default:
		misuse("unhandled command %T", c)
	}
	return false, nil
}

// teardown releases everything start acquired, in reverse order.
func (w *worker) teardown() error {
	var err error
	if w.gui != nil {
		err = multierr.Append(err, w.guard("gui destroy", func() error { w.gui.Destroy(); return nil }))
	}
	if w.audio != nil {
		err = multierr.Append(err, w.guard("stop processing", func() error { w.audio.Stop(); return nil }))
	}
	if w.activated {
		err = multierr.Append(err, w.guard("deactivate", func() error { w.instance.Deactivate(); w.activated = false; return nil }))
	}
	if w.instance != nil {
		err = multierr.Append(err, w.guard("destroy", func() error { w.instance.Destroy(); return nil }))
		w.instance = nil
	}
	return err
}

// guard runs fn and turns a panic into a session error. Panics raised by the host
// itself carry ErrContractViolation and keep it; anything else escaped plugin code.
func (w *worker) guard(step string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("panic in worker", zap.String("step", step), zap.Any("panic", r), zap.Stack("stack"))
			if e, ok := r.(error); ok && errors.Is(e, ErrContractViolation) {
				err = fmt.Errorf("panic during %s: %w", step, e)
				return
			}
			err = fmt.Errorf("%w: panic during %s: %v", ErrPluginFailure, step, r)
		}
	}()
	return fn()
}
