// Package plugintest provides an in-memory plugin bundle for exercising hosts without a
// native module. Behaviour is programmed with Options; every call the host makes is
// recorded and can be inspected from the test goroutine.
package plugintest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/n0izn0iz/plughost/pkg/plugin"
)

const DefaultID = "dev.plughost.test.gain"

var ErrInjected = errors.New("plugintest: injected failure")

// GUIOptions describes the window extension of the fake plugin.
type GUIOptions struct {
	// Supported lists the accepted configurations.
	Supported []plugin.GUIConfiguration
	Resizable bool
	// Size is the plugin's own window size.
	Size plugin.GUISize
	// Step quantizes sizes proposed through AdjustSize.
	Step       uint32
	FailCreate bool
}

type Options struct {
	Descriptors []plugin.Descriptor
	// Gain is applied to every input sample. Zero means 1.
	Gain float32
	GUI  *GUIOptions
	// State enables the state extension; the saved blob is whatever was loaded last.
	State bool
	// TimerPeriods are registered with the host at activation.
	TimerPeriods []uint32
	Params       map[uint32]float64
	// EchoEvents copies input events to the output event buffer.
	EchoEvents bool
	// FailProcessAt makes the n-th process call (1-based) fail. Zero disables it.
	FailProcessAt int
	// FailRestart makes every StartProcessing after the first one fail.
	FailRestart  bool
	FailActivate bool
	// ReportFrames forces the output to be truncated to this many frames when > 0.
	ReportFrames int
	// Gate, when set, makes every process call rendezvous on it twice: once on entry and
	// once before returning.
	Gate chan struct{}
}

// Bundle is a fake plugin.Bundle.
type Bundle struct {
	path string
	opts Options

	mu        sync.Mutex
	instances []*Instance
	closed    bool
}

var _ plugin.Bundle = (*Bundle)(nil)

func NewBundle(path string, opts Options) *Bundle {
	if len(opts.Descriptors) == 0 {
		opts.Descriptors = []plugin.Descriptor{{ID: DefaultID, Name: "Test Gain", Vendor: "plughost"}}
	}
	if opts.Gain == 0 {
		opts.Gain = 1
	}
	return &Bundle{path: path, opts: opts}
}

func (b *Bundle) Path() string { return b.path }

func (b *Bundle) Descriptors() []plugin.Descriptor { return b.opts.Descriptors }

func (b *Bundle) Instantiate(id string, info plugin.HostInfo, host plugin.Host) (plugin.Instance, error) {
	for _, d := range b.opts.Descriptors {
		if d.ID != id {
			continue
		}
		inst := &Instance{desc: d, opts: b.opts, host: host, state: []byte{}}
		if b.opts.GUI != nil {
			inst.guiSize = b.opts.GUI.Size
		}
		b.mu.Lock()
		b.instances = append(b.instances, inst)
		b.mu.Unlock()
		return inst, nil
	}
	return nil, fmt.Errorf("%w: %s", plugin.ErrUnknownPlugin, id)
}

func (b *Bundle) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *Bundle) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Instance returns the i-th instance created from this bundle.
func (b *Bundle) Instance(i int) *Instance {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i >= len(b.instances) {
		return nil
	}
	return b.instances[i]
}

// Instance is a fake plugin.Instance implementing every extension it was configured with.
type Instance struct {
	desc plugin.Descriptor
	opts Options
	host plugin.Host

	mu              sync.Mutex
	activated       bool
	destroyed       bool
	processing      bool
	starts          int
	stops           int
	processCalls    int
	mainThreadCalls int
	timerIDs        []plugin.TimerID
	timerFires      map[plugin.TimerID]int
	state           []byte
	guiCreated      bool
	guiShown        bool
	guiConfig       plugin.GUIConfiguration
	guiSize         plugin.GUISize
	guiTitle        string
	lastSteadyTime  int64
}

var (
	_ plugin.Instance   = (*Instance)(nil)
	_ plugin.Extensible = (*Instance)(nil)
)

func (i *Instance) Descriptor() plugin.Descriptor { return i.desc }

func (i *Instance) Extension(name string) any {
	switch name {
	case plugin.ExtGUI:
		if i.opts.GUI != nil {
			return gui{i}
		}
	case plugin.ExtTimer:
		if len(i.opts.TimerPeriods) > 0 {
			return timer{i}
		}
	case plugin.ExtState:
		if i.opts.State {
			return state{i}
		}
	case plugin.ExtParams:
		if i.opts.Params != nil {
			return params{i}
		}
	}
	return nil
}

func (i *Instance) Activate(cfg plugin.AudioConfiguration) (plugin.AudioProcessor, error) {
	if i.opts.FailActivate {
		return nil, ErrInjected
	}
	if ht, ok := i.host.(plugin.HostTimer); ok {
		for _, p := range i.opts.TimerPeriods {
			id, err := ht.RegisterTimer(p)
			if err != nil {
				return nil, err
			}
			i.mu.Lock()
			i.timerIDs = append(i.timerIDs, id)
			i.mu.Unlock()
		}
	}
	i.mu.Lock()
	i.activated = true
	i.mu.Unlock()
	return &processor{inst: i}, nil
}

func (i *Instance) Deactivate() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.activated = false
}

func (i *Instance) OnMainThread() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.mainThreadCalls++
}

func (i *Instance) Destroy() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.destroyed = true
}

// Host returns the host object the instance was created with.
func (i *Instance) Host() plugin.Host { return i.host }

type Stats struct {
	Activated       bool
	Destroyed       bool
	Processing      bool
	Starts          int
	Stops           int
	ProcessCalls    int
	MainThreadCalls int
	TimerIDs        []plugin.TimerID
	TimerFires      map[plugin.TimerID]int
	GUICreated      bool
	GUIShown        bool
	GUIConfig       plugin.GUIConfiguration
	GUISize         plugin.GUISize
	GUITitle        string
	LastSteadyTime  int64
}

func (i *Instance) Stats() Stats {
	i.mu.Lock()
	defer i.mu.Unlock()
	fires := make(map[plugin.TimerID]int, len(i.timerFires))
	for k, v := range i.timerFires {
		fires[k] = v
	}
	return Stats{
		Activated:       i.activated,
		Destroyed:       i.destroyed,
		Processing:      i.processing,
		Starts:          i.starts,
		Stops:           i.stops,
		ProcessCalls:    i.processCalls,
		MainThreadCalls: i.mainThreadCalls,
		TimerIDs:        append([]plugin.TimerID(nil), i.timerIDs...),
		TimerFires:      fires,
		GUICreated:      i.guiCreated,
		GUIShown:        i.guiShown,
		GUIConfig:       i.guiConfig,
		GUISize:         i.guiSize,
		GUITitle:        i.guiTitle,
		LastSteadyTime:  i.lastSteadyTime,
	}
}

type processor struct {
	inst *Instance
}

func (p *processor) StartProcessing() error {
	i := p.inst
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.opts.FailRestart && i.starts > 0 {
		return ErrInjected
	}
	if i.processing {
		return plugin.ErrAlreadyStarted
	}
	i.processing = true
	i.starts++
	return nil
}

func (p *processor) StopProcessing() {
	i := p.inst
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.processing {
		i.processing = false
		i.stops++
	}
}

func (p *processor) Process(in, out *plugin.Audio, inEvents, outEvents *plugin.EventBuffer, steadyTime int64) (plugin.ProcessStatus, error) {
	i := p.inst
	i.mu.Lock()
	i.processCalls++
	n := i.processCalls
	i.lastSteadyTime = steadyTime
	i.mu.Unlock()

	if g := i.opts.Gate; g != nil {
		g <- struct{}{}
		<-g
	}

	if i.opts.FailProcessAt > 0 && n >= i.opts.FailProcessAt {
		return plugin.ProcessContinue, ErrInjected
	}

	for pi := range out.Ports {
		if pi >= len(in.Ports) {
			break
		}
		for ci, dst := range out.Ports[pi].Channels {
			if ci >= len(in.Ports[pi].Channels) {
				break
			}
			src := in.Ports[pi].Channels[ci]
			for s := range dst {
				if s < len(src) {
					dst[s] = src[s] * i.opts.Gain
				}
			}
			if i.opts.ReportFrames > 0 && i.opts.ReportFrames < len(dst) {
				out.Ports[pi].Channels[ci] = dst[:i.opts.ReportFrames]
			}
		}
	}

	if i.opts.EchoEvents {
		for _, e := range inEvents.Events() {
			outEvents.Push(e)
		}
	}
	return plugin.ProcessContinue, nil
}

type timer struct{ inst *Instance }

func (t timer) OnTimer(id plugin.TimerID) {
	i := t.inst
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.timerFires == nil {
		i.timerFires = map[plugin.TimerID]int{}
	}
	i.timerFires[id]++
}

type state struct{ inst *Instance }

func (s state) SaveState() ([]byte, error) {
	i := s.inst
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]byte(nil), i.state...), nil
}

func (s state) LoadState(data []byte) error {
	i := s.inst
	i.mu.Lock()
	defer i.mu.Unlock()
	i.state = append([]byte(nil), data...)
	return nil
}

type params struct{ inst *Instance }

func (p params) ParamCount() int { return len(p.inst.opts.Params) }

func (p params) ParamValue(id uint32) (float64, bool) {
	v, ok := p.inst.opts.Params[id]
	return v, ok
}
