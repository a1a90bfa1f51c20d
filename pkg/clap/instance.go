//go:build (darwin || (linux && !android)) && (amd64 || arm64)

package clap

import (
	"bytes"
	"fmt"
	"runtime"
	"unsafe"

	"go.uber.org/zap"

	"github.com/n0izn0iz/plughost/pkg/plugin"
)

type pluginFuncs struct {
	init            func(p *clapPlugin) bool
	destroy         func(p *clapPlugin)
	activate        func(p *clapPlugin, sampleRate float64, minFrames, maxFrames uint32) bool
	deactivate      func(p *clapPlugin)
	startProcessing func(p *clapPlugin) bool
	stopProcessing  func(p *clapPlugin)
	process         func(p *clapPlugin, process *clapProcess) int32
	getExtension    func(p *clapPlugin, id string) unsafe.Pointer
	onMainThread    func(p *clapPlugin)
}

// Instance is a created CLAP plugin. All methods are main-thread calls.
type Instance struct {
	desc   plugin.Descriptor
	hostID uintptr
	host   *clapHost
	// strings referenced by host
	strs   [][]byte
	pinner runtime.Pinner

	plugin *clapPlugin
	fn     pluginFuncs
	exts   map[string]any
	active *processor

	logger *zap.Logger
}

var (
	_ plugin.Instance   = (*Instance)(nil)
	_ plugin.Extensible = (*Instance)(nil)
)

func newInstance(desc plugin.Descriptor, info plugin.HostInfo, host plugin.Host, logger *zap.Logger) *Instance {
	initCallbacks()
	inst := &Instance{desc: desc, exts: map[string]any{}, logger: logger}
	inst.hostID = hosts.add(&hostContext{host: host})

	cstr := func(s string) *byte {
		b := cString(s)
		inst.strs = append(inst.strs, b)
		inst.pinner.Pin(&b[0])
		return &b[0]
	}
	inst.host = &clapHost{
		ClapVersion:     hostClapVersion,
		HostData:        inst.hostID,
		Name:            cstr(info.Name),
		Vendor:          cstr(info.Vendor),
		URL:             cstr(info.URL),
		Version:         cstr(info.Version),
		GetExtension:    callbacks.getExtension,
		RequestRestart:  callbacks.requestRestart,
		RequestProcess:  callbacks.requestProcess,
		RequestCallback: callbacks.requestCallback,
	}
	inst.pinner.Pin(inst.host)
	return inst
}

func (i *Instance) bindPlugin(p *clapPlugin) {
	i.plugin = p
	bind(&i.fn.init, p.Init)
	bind(&i.fn.destroy, p.Destroy)
	bind(&i.fn.activate, p.Activate)
	bind(&i.fn.deactivate, p.Deactivate)
	bind(&i.fn.startProcessing, p.StartProcessing)
	bind(&i.fn.stopProcessing, p.StopProcessing)
	bind(&i.fn.process, p.Process)
	bind(&i.fn.getExtension, p.GetExtension)
	bind(&i.fn.onMainThread, p.OnMainThread)
}

// release drops everything the native side could still reference.
func (i *Instance) release() {
	hosts.remove(i.hostID)
	i.pinner.Unpin()
	i.plugin = nil
}

func (i *Instance) Descriptor() plugin.Descriptor { return i.desc }

func (i *Instance) Activate(cfg plugin.AudioConfiguration) (plugin.AudioProcessor, error) {
	if i.fn.activate == nil {
		return nil, fmt.Errorf("%w: activate missing", ErrCall)
	}
	if !i.fn.activate(i.plugin, cfg.SampleRate, cfg.MinFramesCount, cfg.MaxFramesCount) {
		return nil, fmt.Errorf("%w: activate at %.0f Hz", ErrCall, cfg.SampleRate)
	}
	i.active = newProcessor(i)
	return i.active, nil
}

func (i *Instance) Deactivate() {
	if i.active == nil {
		return
	}
	i.active.release()
	i.active = nil
	if i.fn.deactivate != nil {
		i.fn.deactivate(i.plugin)
	}
}

func (i *Instance) OnMainThread() {
	if i.fn.onMainThread != nil {
		i.fn.onMainThread(i.plugin)
	}
}

func (i *Instance) Destroy() {
	if i.plugin == nil {
		return
	}
	i.Deactivate()
	if i.fn.destroy != nil {
		i.fn.destroy(i.plugin)
	}
	i.release()
}

// Extension returns the Go view of a plugin extension, or nil when the plugin does not
// provide it.
func (i *Instance) Extension(name string) any {
	if ext, ok := i.exts[name]; ok {
		return ext
	}
	var ext any
	if i.fn.getExtension != nil && i.plugin != nil {
		if ptr := i.fn.getExtension(i.plugin, name); ptr != nil {
			ext = i.wrapExtension(name, ptr)
		}
	}
	i.exts[name] = ext
	return ext
}

func (i *Instance) wrapExtension(name string, ptr unsafe.Pointer) any {
	switch name {
	case plugin.ExtTimer:
		t := (*clapPluginTimerSupport)(ptr)
		ext := &timerExt{inst: i}
		bind(&ext.onTimer, t.OnTimer)
		if ext.onTimer != nil {
			return ext
		}
	case plugin.ExtState:
		s := (*clapPluginState)(ptr)
		ext := &stateExt{inst: i}
		bind(&ext.save, s.Save)
		bind(&ext.load, s.Load)
		if ext.save != nil && ext.load != nil {
			return ext
		}
	case plugin.ExtParams:
		p := (*clapPluginParams)(ptr)
		ext := &paramsExt{inst: i}
		bind(&ext.count, p.Count)
		bind(&ext.getValue, p.GetValue)
		if ext.count != nil && ext.getValue != nil {
			return ext
		}
	case plugin.ExtGUI:
		return newGUIExt(i, (*clapPluginGUI)(ptr))
	default:
		i.logger.Debug("extension has no go binding", zap.String("extension", name))
	}
	return nil
}

type timerExt struct {
	inst    *Instance
	onTimer func(p *clapPlugin, id uint32)
}

func (t *timerExt) OnTimer(id plugin.TimerID) { t.onTimer(t.inst.plugin, uint32(id)) }

type stateExt struct {
	inst *Instance
	save func(p *clapPlugin, s *clapOStream) bool
	load func(p *clapPlugin, s *clapIStream) bool
}

func (s *stateExt) SaveState() ([]byte, error) {
	var buf bytes.Buffer
	id := writers.add(&buf)
	defer writers.remove(id)

	stream := &clapOStream{Ctx: id, Write: callbacks.write}
	var pin runtime.Pinner
	pin.Pin(stream)
	defer pin.Unpin()

	if !s.save(s.inst.plugin, stream) {
		return nil, fmt.Errorf("%w: state save", ErrCall)
	}
	return buf.Bytes(), nil
}

func (s *stateExt) LoadState(data []byte) error {
	id := readers.add(bytes.NewReader(data))
	defer readers.remove(id)

	stream := &clapIStream{Ctx: id, Read: callbacks.read}
	var pin runtime.Pinner
	pin.Pin(stream)
	defer pin.Unpin()

	if !s.load(s.inst.plugin, stream) {
		return fmt.Errorf("%w: state load of %d bytes", ErrCall, len(data))
	}
	return nil
}

type paramsExt struct {
	inst     *Instance
	count    func(p *clapPlugin) uint32
	getValue func(p *clapPlugin, id uint32, value *float64) bool
}

func (p *paramsExt) ParamCount() int { return int(p.count(p.inst.plugin)) }

func (p *paramsExt) ParamValue(id uint32) (float64, bool) {
	var v float64
	ok := p.getValue(p.inst.plugin, id, &v)
	return v, ok
}
