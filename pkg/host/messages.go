package host

import (
	"github.com/n0izn0iz/plughost/pkg/plugin"
)

// command is sent from caller goroutines (or plugin callbacks) to the worker. Commands
// that expect an answer carry their own reply channel, buffered for exactly one reply.
type command interface {
	kind() string
}

type processAudioCmd struct {
	inputs   [][]float32
	inPorts  *plugin.AudioPorts
	outPorts *plugin.AudioPorts
	events   *plugin.EventBuffer
	reply    chan reply
}

type getSteadyTimeCmd struct{ reply chan reply }

type getStateCmd struct{ reply chan reply }

type setStateCmd struct{ data []byte }

type restartCmd struct{ reply chan reply }

type getParamValueCmd struct {
	id    uint32
	reply chan reply
}

type runMainThreadCallbackCmd struct{}

type guiClosedCmd struct{ wasDestroyed bool }

type guiResizeRequestedCmd struct{ size plugin.GUISize }

type shutdownCmd struct{}

func (processAudioCmd) kind() string          { return "process_audio" }
func (getSteadyTimeCmd) kind() string         { return "get_steady_time" }
func (getStateCmd) kind() string              { return "get_state" }
func (setStateCmd) kind() string              { return "set_state" }
func (restartCmd) kind() string               { return "restart" }
func (getParamValueCmd) kind() string         { return "get_param_value" }
func (runMainThreadCallbackCmd) kind() string { return "run_main_thread_callback" }
func (guiClosedCmd) kind() string             { return "gui_closed" }
func (guiResizeRequestedCmd) kind() string    { return "gui_resize_requested" }
func (shutdownCmd) kind() string              { return "shutdown" }

// replyChan returns the channel a command expects its answer on, or nil.
func replyChan(c command) chan reply {
	switch c := c.(type) {
	case processAudioCmd:
		return c.reply
	case getSteadyTimeCmd:
		return c.reply
	case getStateCmd:
		return c.reply
	case restartCmd:
		return c.reply
	case getParamValueCmd:
		return c.reply
	}
	return nil
}

type reply interface {
	isReply()
}

type audioProcessedReply struct {
	outputs [][]float32
	events  *plugin.EventBuffer
}

type steadyTimeReply struct{ frames uint64 }

type stateReply struct{ data []byte }

type paramValueReply struct{ value float64 }

type restartedReply struct{}

type failedReply struct{ err error }

func (audioProcessedReply) isReply() {}
func (steadyTimeReply) isReply()     {}
func (stateReply) isReply()          {}
func (paramValueReply) isReply()     {}
func (restartedReply) isReply()      {}
func (failedReply) isReply()         {}
