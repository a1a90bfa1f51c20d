package host

import (
	"fmt"
	"math"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/n0izn0iz/plughost/pkg/plugin"
)

// WindowSize is a size on the host's display side, either in logical or physical pixels.
type WindowSize struct {
	Width   float64
	Height  float64
	Logical bool
}

func LogicalSize(w, h float64) WindowSize  { return WindowSize{Width: w, Height: h, Logical: true} }
func PhysicalSize(w, h float64) WindowSize { return WindowSize{Width: w, Height: h} }

func (s WindowSize) ToLogical(scale float64) WindowSize {
	if s.Logical {
		return s
	}
	if scale <= 0 {
		scale = 1
	}
	return LogicalSize(s.Width/scale, s.Height/scale)
}

func (s WindowSize) ToPhysical(scale float64) WindowSize {
	if !s.Logical {
		return s
	}
	if scale <= 0 {
		scale = 1
	}
	return PhysicalSize(s.Width*scale, s.Height*scale)
}

// GUI negotiates and drives the plugin's window. Owned by the worker goroutine.
type GUI struct {
	ext       plugin.GUI
	config    plugin.GUIConfiguration
	supported bool

	isOpen      bool
	isResizable bool
	// hintsChanged is flipped by the cross-thread handler.
	hintsChanged *atomic.Bool

	logger *zap.Logger
}

// negotiateGUI picks the first configuration the plugin accepts: embedded first, then
// floating, both on the platform's default API.
func negotiateGUI(ext plugin.GUI, defaultAPI func() (plugin.GUIAPI, bool), hints *atomic.Bool, logger *zap.Logger) *GUI {
	g := &GUI{ext: ext, hintsChanged: hints, logger: logger}
	if hints == nil {
		g.hintsChanged = &atomic.Bool{}
	}

	api, ok := defaultAPI()
	if !ok {
		logger.Info("no windowing api on this platform")
		return g
	}
	for _, floating := range []bool{false, true} {
		cfg := plugin.GUIConfiguration{API: api, IsFloating: floating}
		if ext.IsAPISupported(cfg) {
			g.config = cfg
			g.supported = true
			logger.Debug("gui negotiated", zap.String("api", string(api)), zap.Bool("floating", floating))
			return g
		}
	}
	logger.Info("plugin supports no gui configuration for this platform", zap.String("api", string(api)))
	return g
}

// Configuration returns the negotiated configuration.
func (g *GUI) Configuration() (plugin.GUIConfiguration, bool) {
	return g.config, g.supported
}

// NeedsFloating reports whether the negotiated window is floating. ok is false when no
// configuration was agreed on.
func (g *GUI) NeedsFloating() (floating, ok bool) {
	return g.config.IsFloating, g.supported
}

func (g *GUI) IsOpen() bool      { return g.isOpen }
func (g *GUI) IsResizable() bool { return g.isResizable }

// OpenFloating creates and shows the plugin window. Calling it without a floating
// negotiation is a programming error.
func (g *GUI) OpenFloating() error {
	if !g.supported || !g.config.IsFloating {
		misuse("OpenFloating called on a plugin without floating gui")
	}
	if err := g.ext.Create(g.config); err != nil {
		return fmt.Errorf("%w: gui create: %w", ErrPluginFailure, err)
	}
	g.ext.SuggestTitle("")
	if err := g.ext.Show(); err != nil {
		g.ext.Destroy()
		return fmt.Errorf("%w: gui show: %w", ErrPluginFailure, err)
	}
	g.isOpen = true
	g.isResizable = g.ext.CanResize()
	g.hintsChanged.Store(false)
	return nil
}

// ToWindowSize converts a plugin size into the display unit of the negotiated API.
func (g *GUI) ToWindowSize(size plugin.GUISize) WindowSize {
	if !g.supported {
		misuse("ToWindowSize called on a plugin without gui")
	}
	if g.config.API.UsesLogicalSize() {
		return LogicalSize(float64(size.Width), float64(size.Height))
	}
	return PhysicalSize(float64(size.Width), float64(size.Height))
}

func (g *GUI) toPluginSize(size WindowSize, scale float64) plugin.GUISize {
	if g.config.API.UsesLogicalSize() {
		size = size.ToLogical(scale)
	} else {
		size = size.ToPhysical(scale)
	}
	return plugin.GUISize{
		Width:  uint32(math.Round(math.Max(size.Width, 0))),
		Height: uint32(math.Round(math.Max(size.Height, 0))),
	}
}

// Resize negotiates a new window size and returns the size actually realized. A plugin
// that cannot resize keeps its own size whatever is requested.
func (g *GUI) Resize(requested WindowSize, scale float64) (WindowSize, error) {
	if !g.supported {
		misuse("Resize called on a plugin without gui")
	}
	if g.hintsChanged.Swap(false) {
		g.isResizable = g.ext.CanResize()
	}
	size := g.toPluginSize(requested, scale)

	if !g.isResizable {
		forced, err := g.ext.Size()
		if err != nil {
			forced = size
		}
		return g.ToWindowSize(forced), nil
	}

	working, err := g.ext.AdjustSize(size)
	if err != nil {
		working = size
	}
	if err := g.ext.SetSize(working); err != nil {
		return WindowSize{}, fmt.Errorf("gui set size %dx%d: %w", working.Width, working.Height, err)
	}
	return g.ToWindowSize(working), nil
}

// Destroy tears the window down if it is open.
func (g *GUI) Destroy() {
	if g.isOpen {
		g.ext.Destroy()
		g.isOpen = false
	}
}
