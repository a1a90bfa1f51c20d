//go:build (darwin || (linux && !android)) && (amd64 || arm64)

package clap

import (
	"fmt"
	"runtime"

	"github.com/n0izn0iz/plughost/pkg/plugin"
)

// processor is the audio-thread side of an activated Instance.
type processor struct {
	inst *Instance

	inID, outID uintptr
	in          inputList
	out         outputList
	inEvents    *clapInputEvents
	outEvents   *clapOutputEvents
	// pins the event tables for the lifetime of the activation
	pinner runtime.Pinner
}

var _ plugin.AudioProcessor = (*processor)(nil)

func newProcessor(inst *Instance) *processor {
	p := &processor{inst: inst}
	p.inID = inLists.add(&p.in)
	p.outID = outLists.add(&p.out)
	p.inEvents = &clapInputEvents{Ctx: p.inID, Size: callbacks.inSize, Get: callbacks.inGet}
	p.outEvents = &clapOutputEvents{Ctx: p.outID, TryPush: callbacks.outTryPush}
	p.pinner.Pin(p.inEvents)
	p.pinner.Pin(p.outEvents)
	return p
}

func (p *processor) release() {
	inLists.remove(p.inID)
	outLists.remove(p.outID)
	p.pinner.Unpin()
}

func (p *processor) StartProcessing() error {
	fn := p.inst.fn.startProcessing
	if fn == nil || !fn(p.inst.plugin) {
		return fmt.Errorf("%w: start processing", ErrCall)
	}
	return nil
}

func (p *processor) StopProcessing() {
	if fn := p.inst.fn.stopProcessing; fn != nil {
		fn(p.inst.plugin)
	}
}

// buffers lays a out as native audio buffers. Every Go allocation reachable from the
// result is pinned with pin.
func buffers(a *plugin.Audio, pin *runtime.Pinner) []clapAudioBuffer {
	if a == nil || len(a.Ports) == 0 {
		return nil
	}
	bufs := make([]clapAudioBuffer, len(a.Ports))
	for i, port := range a.Ports {
		ptrs := make([]*float32, len(port.Channels))
		for c, ch := range port.Channels {
			if len(ch) > 0 {
				ptrs[c] = &ch[0]
				pin.Pin(ptrs[c])
			}
		}
		if len(ptrs) > 0 {
			pin.Pin(&ptrs[0])
			bufs[i].Data32 = &ptrs[0]
		}
		bufs[i].ChannelCount = uint32(len(ptrs))
		bufs[i].Latency = port.Latency
		bufs[i].ConstantMask = port.ConstantMask
	}
	pin.Pin(&bufs[0])
	return bufs
}

func first(bufs []clapAudioBuffer) *clapAudioBuffer {
	if len(bufs) == 0 {
		return nil
	}
	return &bufs[0]
}

func (p *processor) Process(in, out *plugin.Audio, inEvents, outEvents *plugin.EventBuffer, steadyTime int64) (plugin.ProcessStatus, error) {
	fn := p.inst.fn.process
	if fn == nil {
		return plugin.ProcessContinue, fmt.Errorf("%w: process missing", ErrCall)
	}

	frames, ok := out.FramesCount()
	if n, inOK := in.FramesCount(); inOK && (!ok || n < frames) {
		frames, ok = n, true
	}
	if !ok {
		return plugin.ProcessContinue, nil
	}

	var pin runtime.Pinner
	defer pin.Unpin()

	inBufs := buffers(in, &pin)
	outBufs := buffers(out, &pin)
	p.in.reset(inEvents, pin.Pin)
	p.out.events = outEvents
	defer func() { p.out.events = nil }()

	proc := &clapProcess{
		SteadyTime:        steadyTime,
		FramesCount:       frames,
		AudioInputs:       first(inBufs),
		AudioOutputs:      first(outBufs),
		AudioInputsCount:  uint32(len(inBufs)),
		AudioOutputsCount: uint32(len(outBufs)),
		InEvents:          p.inEvents,
		OutEvents:         p.outEvents,
	}
	pin.Pin(proc)

	status := fn(p.inst.plugin, proc)
	for i := range outBufs {
		out.Ports[i].ConstantMask = outBufs[i].ConstantMask
	}
	if status == processError {
		return plugin.ProcessContinue, fmt.Errorf("%w: process returned an error status", ErrCall)
	}
	return plugin.ProcessStatus(status - processContinue), nil
}
