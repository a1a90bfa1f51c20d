package host

import (
	"fmt"
	"time"

	"github.com/n0izn0iz/plughost/pkg/plugin"
)

// AudioProcessor drives the plugin's audio-thread handle and owns the steady clock.
// Only the worker goroutine touches it.
type AudioProcessor struct {
	proc       plugin.AudioProcessor
	cfg        plugin.AudioConfiguration
	steadyTime uint64
	started    bool
	metrics    *Metrics
}

// newAudioProcessor starts proc and wraps it.
func newAudioProcessor(proc plugin.AudioProcessor, cfg plugin.AudioConfiguration, m *Metrics) (*AudioProcessor, error) {
	if err := proc.StartProcessing(); err != nil {
		return nil, fmt.Errorf("%w: start processing: %w", ErrPluginFailure, err)
	}
	return &AudioProcessor{proc: proc, cfg: cfg, started: true, metrics: m}, nil
}

func (a *AudioProcessor) SteadyTime() uint64 { return a.steadyTime }

func (a *AudioProcessor) validate(inputs [][]float32) error {
	if len(inputs) == 0 {
		return fmt.Errorf("%w: no input channel", ErrContractViolation)
	}
	n := len(inputs[0])
	for i, ch := range inputs[1:] {
		if len(ch) != n {
			return fmt.Errorf("%w: channel %d has %d frames, channel 0 has %d", ErrContractViolation, i+1, len(ch), n)
		}
	}
	if uint64(n) <= uint64(a.cfg.MinFramesCount) || uint64(n) >= uint64(a.cfg.MaxFramesCount) {
		return fmt.Errorf("%w: %d frames outside (%d, %d)", ErrContractViolation, n, a.cfg.MinFramesCount, a.cfg.MaxFramesCount)
	}
	return nil
}

// Process renders one block. Errors wrapping ErrContractViolation leave the session
// usable; any other error is a plugin failure after which the realtime state is undefined.
func (a *AudioProcessor) Process(inputs [][]float32, events *plugin.EventBuffer, inPorts, outPorts *plugin.AudioPorts) ([][]float32, *plugin.EventBuffer, error) {
	if err := a.validate(inputs); err != nil {
		return nil, nil, err
	}
	// both views would alias the same storage
	if inPorts != nil && inPorts == outPorts {
		return nil, nil, fmt.Errorf("%w: input and output share one AudioPorts", ErrContractViolation)
	}
	if !a.started {
		return nil, nil, fmt.Errorf("%w: processing is stopped", ErrPluginFailure)
	}
	if inPorts == nil {
		inPorts = plugin.NewAudioPorts(len(inputs), 1)
	}
	if outPorts == nil {
		outPorts = plugin.NewAudioPorts(len(inputs), 1)
	}

	outputs := make([][]float32, len(inputs))
	for i, ch := range inputs {
		outputs[i] = append(make([]float32, 0, len(ch)), ch...)
	}

	in, err := inPorts.Wrap(plugin.AudioPortBuffer{Channels: inputs})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: input ports: %v", ErrContractViolation, err)
	}
	out, err := outPorts.Wrap(plugin.AudioPortBuffer{Channels: outputs})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: output ports: %v", ErrContractViolation, err)
	}
	if events == nil {
		events = plugin.NewEventBuffer()
	}
	outEvents := plugin.NewEventBuffer()

	start := time.Now()
	if _, err := a.proc.Process(in, out, events, outEvents, int64(a.steadyTime)); err != nil {
		return nil, nil, fmt.Errorf("%w: process: %w", ErrPluginFailure, err)
	}
	a.metrics.observeProcess(time.Since(start))

	// a plugin reporting no output channel advances the clock by nothing
	frames, _ := out.FramesCount()
	a.steadyTime += uint64(frames)
	a.metrics.addFrames(frames)

	return outputs, outEvents, nil
}

// Restart cycles the processing handle and resets the steady clock. The plugin instance
// itself is kept.
func (a *AudioProcessor) Restart() error {
	if a.started {
		a.proc.StopProcessing()
		a.started = false
	}
	if err := a.proc.StartProcessing(); err != nil {
		return fmt.Errorf("%w: restart: %w", ErrPluginFailure, err)
	}
	a.started = true
	a.steadyTime = 0
	a.metrics.incRestarts()
	return nil
}

// Stop ends processing. It is safe to call more than once.
func (a *AudioProcessor) Stop() {
	if a.started {
		a.proc.StopProcessing()
		a.started = false
	}
}
