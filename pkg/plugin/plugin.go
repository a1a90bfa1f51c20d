// Package plugin describes the binary interface a hosted plugin module exposes, as seen
// from Go. A backend (for example pkg/clap) implements these interfaces on top of
// the native module; the host runtime in pkg/host only ever talks to them.
//
// Thread rules carry over from the native interface: methods of Instance and of the
// extension interfaces are main-thread calls, AudioProcessor.Process is an audio-thread
// call. The host makes all of them from one locked OS thread.
package plugin

import (
	"errors"
	"fmt"
)

var (
	ErrNoDescriptor   = errors.New("plugin: bundle exposes no descriptor")
	ErrUnknownPlugin  = errors.New("plugin: unknown plugin id")
	ErrNotActivated   = errors.New("plugin: instance is not activated")
	ErrAlreadyStarted = errors.New("plugin: processing already started")
)

// Descriptor identifies one plugin inside a bundle.
type Descriptor struct {
	ID       string
	Name     string
	Vendor   string
	Version  string
	Features []string
}

func (d Descriptor) String() string {
	if d.Name == "" {
		return d.ID
	}
	return fmt.Sprintf("%s (%s)", d.Name, d.ID)
}

// HostInfo is handed to the plugin at instantiation.
type HostInfo struct {
	Name    string
	Vendor  string
	URL     string
	Version string
}

// Bundle is an opened plugin module file.
type Bundle interface {
	Path() string
	Descriptors() []Descriptor
	// Instantiate creates the plugin with the given descriptor id. host receives every
	// callback the plugin makes; the plugin discovers host extensions by type assertion.
	Instantiate(id string, info HostInfo, host Host) (Instance, error)
	Close() error
}

// Host is the base callback surface. Its methods may be called from any thread.
type Host interface {
	RequestProcess()
	RequestRestart()
	RequestCallback()
}

// Instance is a created, initialized plugin. Main-thread only.
type Instance interface {
	Descriptor() Descriptor
	// Activate prepares the plugin for processing with a fixed audio configuration and
	// returns its audio-thread processor in the stopped state.
	Activate(cfg AudioConfiguration) (AudioProcessor, error)
	Deactivate()
	// OnMainThread runs the callback the plugin asked for with Host.RequestCallback.
	OnMainThread()
	Destroy()
}

// ProcessStatus is what the plugin reports after a process call.
type ProcessStatus int

const (
	ProcessContinue ProcessStatus = iota
	ProcessContinueIfNotQuiet
	ProcessTail
	ProcessSleep
)

// AudioProcessor is the audio-thread side of an activated instance.
type AudioProcessor interface {
	StartProcessing() error
	StopProcessing()
	// Process renders one block. steadyTime is the host's sample clock, or -1 when
	// unavailable. out must be filled in place; outEvents collects produced events.
	Process(in, out *Audio, inEvents *EventBuffer, outEvents *EventBuffer, steadyTime int64) (ProcessStatus, error)
}
