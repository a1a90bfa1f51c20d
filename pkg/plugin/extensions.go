package plugin

import (
	"errors"
	"runtime"
)

// Plugin-side extensions. A backend's Instance implements the ones it supports, either
// directly or through Extensible when the set is only known at run time. Use GUIOf,
// TimerOf, StateOf and ParamsOf to look them up.

const (
	ExtGUI    = "clap.gui"
	ExtTimer  = "clap.timer-support"
	ExtState  = "clap.state"
	ExtParams = "clap.params"
)

// Extensible lets an instance answer extension queries by name. A nil result means the
// extension is absent.
type Extensible interface {
	Extension(name string) any
}

func lookup[T any](i Instance, name string) (T, bool) {
	if ext, ok := i.(Extensible); ok {
		if v, ok := ext.Extension(name).(T); ok {
			return v, true
		}
		var zero T
		return zero, false
	}
	v, ok := i.(T)
	return v, ok
}

func GUIOf(i Instance) (GUI, bool)       { return lookup[GUI](i, ExtGUI) }
func TimerOf(i Instance) (Timer, bool)   { return lookup[Timer](i, ExtTimer) }
func StateOf(i Instance) (State, bool)   { return lookup[State](i, ExtState) }
func ParamsOf(i Instance) (Params, bool) { return lookup[Params](i, ExtParams) }

// GUI is the plugin's window extension.
type GUI interface {
	IsAPISupported(cfg GUIConfiguration) bool
	Create(cfg GUIConfiguration) error
	SuggestTitle(title string)
	Show() error
	Hide() error
	Destroy()
	SetScale(scale float64) error
	CanResize() bool
	Size() (GUISize, error)
	// AdjustSize returns the closest size the plugin accepts.
	AdjustSize(size GUISize) (GUISize, error)
	SetSize(size GUISize) error
}

// Timer receives host-driven timer ticks registered through HostTimer.
type Timer interface {
	OnTimer(id TimerID)
}

// State persists the plugin's state as an opaque blob.
type State interface {
	SaveState() ([]byte, error)
	LoadState(data []byte) error
}

// Params exposes parameter values.
type Params interface {
	ParamCount() int
	ParamValue(id uint32) (float64, bool)
}

// Host-side extensions, implemented by the host object passed to Bundle.Instantiate.

// HostGUI may be called from any thread.
type HostGUI interface {
	GUIResizeHintsChanged()
	GUIRequestResize(size GUISize) bool
	GUIRequestShow() bool
	GUIRequestHide() bool
	GUIClosed(wasDestroyed bool)
}

// HostTimer is main-thread only.
type HostTimer interface {
	RegisterTimer(periodMs uint32) (TimerID, error)
	UnregisterTimer(id TimerID) error
}

type LogSeverity int

const (
	LogDebug LogSeverity = iota
	LogInfo
	LogWarning
	LogError
	LogFatal
	LogHostMisbehaving
	LogPluginMisbehaving
)

// HostLog may be called from any thread.
type HostLog interface {
	Log(severity LogSeverity, msg string)
}

type ParamRescanFlags uint32

const (
	ParamRescanValues ParamRescanFlags = 1 << iota
	ParamRescanText
	ParamRescanInfo
	ParamRescanAll
)

type ParamClearFlags uint32

const (
	ParamClearAll ParamClearFlags = 1 << iota
	ParamClearAutomations
	ParamClearModulations
)

// HostParams: RescanParams and ClearParams are main-thread calls, RequestParamsFlush may
// come from any thread.
type HostParams interface {
	RescanParams(flags ParamRescanFlags)
	ClearParams(id uint32, flags ParamClearFlags)
	RequestParamsFlush()
}

// HostState is main-thread only.
type HostState interface {
	MarkStateDirty()
}

type AudioPortsRescan uint32

const (
	RescanNames AudioPortsRescan = 1 << iota
	RescanFlags
	RescanChannelCount
	RescanPortType
	RescanInPlacePair
	RescanList
)

// HostAudioPorts is main-thread only.
type HostAudioPorts interface {
	IsAudioPortsRescanSupported(flag AudioPortsRescan) bool
	RescanAudioPorts(flag AudioPortsRescan)
}

type NoteDialects uint32

const (
	NoteDialectCLAP NoteDialects = 1 << iota
	NoteDialectMIDI
	NoteDialectMIDIMPE
	NoteDialectMIDI2
)

type NotePortsRescan uint32

const (
	NotePortsRescanAll NotePortsRescan = 1 << iota
	NotePortsRescanNames
)

// HostNotePorts is main-thread only.
type HostNotePorts interface {
	SupportedNoteDialects() NoteDialects
	RescanNotePorts(flags NotePortsRescan)
}

// TimerID is assigned by the host and never reused within a session.
type TimerID uint32

// GUIAPI names a windowing API.
type GUIAPI string

const (
	GUIAPIWin32   GUIAPI = "win32"
	GUIAPICocoa   GUIAPI = "cocoa"
	GUIAPIX11     GUIAPI = "x11"
	GUIAPIWayland GUIAPI = "wayland"
)

// DefaultGUIAPI returns the windowing API of the current platform.
func DefaultGUIAPI() (GUIAPI, bool) {
	switch runtime.GOOS {
	case "windows":
		return GUIAPIWin32, true
	case "darwin":
		return GUIAPICocoa, true
	case "linux", "freebsd", "openbsd", "netbsd", "dragonfly":
		return GUIAPIX11, true
	}
	return "", false
}

// UsesLogicalSize reports whether sizes exchanged with this API are in logical pixels.
func (a GUIAPI) UsesLogicalSize() bool {
	return a == GUIAPICocoa
}

type GUIConfiguration struct {
	API        GUIAPI
	IsFloating bool
}

// GUISize is expressed in the unit system of the negotiated API.
type GUISize struct {
	Width  uint32
	Height uint32
}

var ErrGUI = errors.New("plugin: gui call failed")
