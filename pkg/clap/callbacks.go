//go:build (darwin || (linux && !android)) && (amd64 || arm64)

package clap

import (
	"bytes"
	"io"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/n0izn0iz/plughost/pkg/plugin"
)

// hostContext is what a clap_host_t's host_data id resolves to.
type hostContext struct {
	host plugin.Host
}

var (
	hosts    registry[*hostContext]
	inLists  registry[*inputList]
	outLists registry[*outputList]
	writers  registry[*bytes.Buffer]
	readers  registry[*bytes.Reader]
)

// Native callbacks are created once per process: purego can only create a bounded number
// of them and never releases them.
var callbacks struct {
	once sync.Once

	getExtension    uintptr
	requestRestart  uintptr
	requestProcess  uintptr
	requestCallback uintptr

	inSize     uintptr
	inGet      uintptr
	outTryPush uintptr
	write      uintptr
	read       uintptr

	timer      clapHostTimerSupport
	gui        clapHostGUI
	log        clapHostLog
	params     clapHostParams
	state      clapHostState
	audioPorts clapHostAudioPorts
	notePorts  clapHostNotePorts
}

func hostOf(h *clapHost) (plugin.Host, bool) {
	if h == nil {
		return nil, false
	}
	ctx, ok := hosts.get(h.HostData)
	if !ok {
		return nil, false
	}
	return ctx.host, true
}

func hostAs[T any](h *clapHost) (T, bool) {
	var zero T
	host, ok := hostOf(h)
	if !ok {
		return zero, false
	}
	t, ok := host.(T)
	return t, ok
}

func initCallbacks() {
	callbacks.once.Do(func() {
		cb := &callbacks
		cb.getExtension = purego.NewCallback(hostGetExtension)
		cb.requestRestart = purego.NewCallback(func(h *clapHost) {
			if host, ok := hostOf(h); ok {
				host.RequestRestart()
			}
		})
		cb.requestProcess = purego.NewCallback(func(h *clapHost) {
			if host, ok := hostOf(h); ok {
				host.RequestProcess()
			}
		})
		cb.requestCallback = purego.NewCallback(func(h *clapHost) {
			if host, ok := hostOf(h); ok {
				host.RequestCallback()
			}
		})

		cb.inSize = purego.NewCallback(func(l *clapInputEvents) uint32 {
			if list, ok := inLists.get(l.Ctx); ok {
				return uint32(len(list.events))
			}
			return 0
		})
		cb.inGet = purego.NewCallback(func(l *clapInputEvents, index uint32) *clapEventHeader {
			if list, ok := inLists.get(l.Ctx); ok {
				return list.at(index)
			}
			return nil
		})
		cb.outTryPush = purego.NewCallback(func(l *clapOutputEvents, e *clapEventHeader) bool {
			if list, ok := outLists.get(l.Ctx); ok {
				return list.push(e)
			}
			return false
		})
		cb.write = purego.NewCallback(func(s *clapOStream, buf unsafe.Pointer, size uint64) int64 {
			w, ok := writers.get(s.Ctx)
			if !ok || (buf == nil && size > 0) {
				return -1
			}
			if size == 0 {
				return 0
			}
			n, _ := w.Write(unsafe.Slice((*byte)(buf), size))
			return int64(n)
		})
		cb.read = purego.NewCallback(func(s *clapIStream, buf unsafe.Pointer, size uint64) int64 {
			r, ok := readers.get(s.Ctx)
			if !ok || (buf == nil && size > 0) {
				return -1
			}
			if size == 0 {
				return 0
			}
			n, err := r.Read(unsafe.Slice((*byte)(buf), size))
			if err == io.EOF {
				return 0
			}
			return int64(n)
		})

		cb.timer = clapHostTimerSupport{
			RegisterTimer: purego.NewCallback(func(h *clapHost, periodMs uint32, id *uint32) bool {
				t, ok := hostAs[plugin.HostTimer](h)
				if !ok || id == nil {
					return false
				}
				tid, err := t.RegisterTimer(periodMs)
				if err != nil {
					return false
				}
				*id = uint32(tid)
				return true
			}),
			UnregisterTimer: purego.NewCallback(func(h *clapHost, id uint32) bool {
				t, ok := hostAs[plugin.HostTimer](h)
				return ok && t.UnregisterTimer(plugin.TimerID(id)) == nil
			}),
		}
		cb.gui = clapHostGUI{
			ResizeHintsChanged: purego.NewCallback(func(h *clapHost) {
				if g, ok := hostAs[plugin.HostGUI](h); ok {
					g.GUIResizeHintsChanged()
				}
			}),
			RequestResize: purego.NewCallback(func(h *clapHost, width, height uint32) bool {
				g, ok := hostAs[plugin.HostGUI](h)
				return ok && g.GUIRequestResize(plugin.GUISize{Width: width, Height: height})
			}),
			RequestShow: purego.NewCallback(func(h *clapHost) bool {
				g, ok := hostAs[plugin.HostGUI](h)
				return ok && g.GUIRequestShow()
			}),
			RequestHide: purego.NewCallback(func(h *clapHost) bool {
				g, ok := hostAs[plugin.HostGUI](h)
				return ok && g.GUIRequestHide()
			}),
			Closed: purego.NewCallback(func(h *clapHost, wasDestroyed bool) {
				if g, ok := hostAs[plugin.HostGUI](h); ok {
					g.GUIClosed(wasDestroyed)
				}
			}),
		}
		cb.log = clapHostLog{
			Log: purego.NewCallback(func(h *clapHost, severity int32, msg *byte) {
				if l, ok := hostAs[plugin.HostLog](h); ok {
					l.Log(plugin.LogSeverity(severity), goString(msg))
				}
			}),
		}
		cb.params = clapHostParams{
			Rescan: purego.NewCallback(func(h *clapHost, flags uint32) {
				if p, ok := hostAs[plugin.HostParams](h); ok {
					p.RescanParams(plugin.ParamRescanFlags(flags))
				}
			}),
			Clear: purego.NewCallback(func(h *clapHost, id, flags uint32) {
				if p, ok := hostAs[plugin.HostParams](h); ok {
					p.ClearParams(id, plugin.ParamClearFlags(flags))
				}
			}),
			RequestFlush: purego.NewCallback(func(h *clapHost) {
				if p, ok := hostAs[plugin.HostParams](h); ok {
					p.RequestParamsFlush()
				}
			}),
		}
		cb.state = clapHostState{
			MarkDirty: purego.NewCallback(func(h *clapHost) {
				if s, ok := hostAs[plugin.HostState](h); ok {
					s.MarkStateDirty()
				}
			}),
		}
		cb.audioPorts = clapHostAudioPorts{
			IsRescanFlagSupported: purego.NewCallback(func(h *clapHost, flag uint32) bool {
				a, ok := hostAs[plugin.HostAudioPorts](h)
				return ok && a.IsAudioPortsRescanSupported(plugin.AudioPortsRescan(flag))
			}),
			Rescan: purego.NewCallback(func(h *clapHost, flags uint32) {
				if a, ok := hostAs[plugin.HostAudioPorts](h); ok {
					a.RescanAudioPorts(plugin.AudioPortsRescan(flags))
				}
			}),
		}
		cb.notePorts = clapHostNotePorts{
			SupportedDialects: purego.NewCallback(func(h *clapHost) uint32 {
				if n, ok := hostAs[plugin.HostNotePorts](h); ok {
					return uint32(n.SupportedNoteDialects())
				}
				return 0
			}),
			Rescan: purego.NewCallback(func(h *clapHost, flags uint32) {
				if n, ok := hostAs[plugin.HostNotePorts](h); ok {
					n.RescanNotePorts(plugin.NotePortsRescan(flags))
				}
			}),
		}
	})
}

// hostGetExtension answers clap_host_t.get_extension with a table only when the Go host
// implements the matching interface.
func hostGetExtension(h *clapHost, id *byte) unsafe.Pointer {
	host, ok := hostOf(h)
	if !ok {
		return nil
	}
	cb := &callbacks
	switch goString(id) {
	case plugin.ExtTimer:
		if _, ok := host.(plugin.HostTimer); ok {
			return unsafe.Pointer(&cb.timer)
		}
	case plugin.ExtGUI:
		if _, ok := host.(plugin.HostGUI); ok {
			return unsafe.Pointer(&cb.gui)
		}
	case extLog:
		if _, ok := host.(plugin.HostLog); ok {
			return unsafe.Pointer(&cb.log)
		}
	case plugin.ExtParams:
		if _, ok := host.(plugin.HostParams); ok {
			return unsafe.Pointer(&cb.params)
		}
	case plugin.ExtState:
		if _, ok := host.(plugin.HostState); ok {
			return unsafe.Pointer(&cb.state)
		}
	case extAudioPorts:
		if _, ok := host.(plugin.HostAudioPorts); ok {
			return unsafe.Pointer(&cb.audioPorts)
		}
	case extNotePorts:
		if _, ok := host.(plugin.HostNotePorts); ok {
			return unsafe.Pointer(&cb.notePorts)
		}
	}
	return nil
}
