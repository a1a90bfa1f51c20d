package host

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/n0izn0iz/plughost/pkg/plugin"
)

// sharedHandler receives the plugin calls that may come from any thread. It never
// touches plugin state; it only turns calls into commands for the worker.
type sharedHandler struct {
	q      *queue
	logger *zap.Logger
	// guiHintsChanged is the only state written from foreign threads.
	guiHintsChanged atomic.Bool
}

// RequestProcess is a no-op: the host never idles its processing path.
func (s *sharedHandler) RequestProcess() {}

func (s *sharedHandler) RequestRestart() {
	s.logger.Warn("plugin requested a restart, which this host does not support")
}

func (s *sharedHandler) RequestCallback() {
	if err := s.q.push(runMainThreadCallbackCmd{}); err != nil {
		s.logger.Debug("dropped main thread callback request", zap.Error(err))
	}
}

func (s *sharedHandler) GUIResizeHintsChanged() {
	s.guiHintsChanged.Store(true)
}

func (s *sharedHandler) GUIRequestResize(size plugin.GUISize) bool {
	if err := s.q.push(guiResizeRequestedCmd{size: size}); err != nil {
		s.logger.Debug("dropped gui resize request", zap.Error(err))
		return false
	}
	return true
}

func (s *sharedHandler) GUIRequestShow() bool { return true }
func (s *sharedHandler) GUIRequestHide() bool { return true }

func (s *sharedHandler) GUIClosed(wasDestroyed bool) {
	if err := s.q.push(guiClosedCmd{wasDestroyed: wasDestroyed}); err != nil {
		s.logger.Debug("dropped gui closed notification", zap.Error(err))
	}
}

func (s *sharedHandler) RequestParamsFlush() {
	s.logger.Warn("plugin requested a params flush, which this host does not support")
}

func (s *sharedHandler) Log(severity plugin.LogSeverity, msg string) {
	l := s.logger.Named("plugin")
	switch severity {
	case plugin.LogDebug:
		l.Debug(msg)
	case plugin.LogInfo:
		l.Info(msg)
	case plugin.LogWarning:
		l.Warn(msg)
	default:
		l.Error(msg, zap.Int("severity", int(severity)))
	}
}

// mainThreadHandler receives the plugin calls that are only legal on the main thread,
// which here is always the worker goroutine.
type mainThreadHandler struct {
	timers     *Timers
	logger     *zap.Logger
	stateDirty bool
}

func (m *mainThreadHandler) RegisterTimer(periodMs uint32) (plugin.TimerID, error) {
	id := m.timers.Register(time.Duration(periodMs) * time.Millisecond)
	m.logger.Debug("timer registered", zap.Uint32("id", uint32(id)), zap.Uint32("periodMs", periodMs))
	return id, nil
}

func (m *mainThreadHandler) UnregisterTimer(id plugin.TimerID) error {
	if !m.timers.Unregister(id) {
		return fmt.Errorf("%w: %d", ErrUnknownTimer, id)
	}
	m.logger.Debug("timer unregistered", zap.Uint32("id", uint32(id)))
	return nil
}

func (m *mainThreadHandler) RescanParams(flags plugin.ParamRescanFlags) {
	m.logger.Warn("params rescan is not supported", zap.Uint32("flags", uint32(flags)))
}

func (m *mainThreadHandler) ClearParams(id uint32, flags plugin.ParamClearFlags) {
	m.logger.Warn("params clear is not supported", zap.Uint32("param", id), zap.Uint32("flags", uint32(flags)))
}

func (m *mainThreadHandler) MarkStateDirty() {
	m.stateDirty = true
	m.logger.Debug("plugin state marked dirty")
}

func (m *mainThreadHandler) IsAudioPortsRescanSupported(plugin.AudioPortsRescan) bool {
	return false
}

func (m *mainThreadHandler) RescanAudioPorts(flag plugin.AudioPortsRescan) {
	m.logger.Warn("audio ports rescan is not supported", zap.Uint32("flag", uint32(flag)))
}

func (m *mainThreadHandler) SupportedNoteDialects() plugin.NoteDialects {
	return plugin.NoteDialectCLAP | plugin.NoteDialectMIDI
}

func (m *mainThreadHandler) RescanNotePorts(flags plugin.NotePortsRescan) {
	m.logger.Warn("note ports rescan is not supported", zap.Uint32("flags", uint32(flags)))
}

// hostHandler is the object handed to the plugin.
type hostHandler struct {
	*sharedHandler
	*mainThreadHandler
}

var (
	_ plugin.Host           = hostHandler{}
	_ plugin.HostGUI        = hostHandler{}
	_ plugin.HostTimer      = hostHandler{}
	_ plugin.HostLog        = hostHandler{}
	_ plugin.HostParams     = hostHandler{}
	_ plugin.HostState      = hostHandler{}
	_ plugin.HostAudioPorts = hostHandler{}
	_ plugin.HostNotePorts  = hostHandler{}
)
