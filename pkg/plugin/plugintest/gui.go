package plugintest

import (
	"github.com/n0izn0iz/plughost/pkg/plugin"
)

type gui struct{ inst *Instance }

var _ plugin.GUI = gui{}

func (g gui) IsAPISupported(cfg plugin.GUIConfiguration) bool {
	for _, c := range g.inst.opts.GUI.Supported {
		if c == cfg {
			return true
		}
	}
	return false
}

func (g gui) Create(cfg plugin.GUIConfiguration) error {
	i := g.inst
	if i.opts.GUI.FailCreate {
		return ErrInjected
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.guiCreated = true
	i.guiConfig = cfg
	return nil
}

func (g gui) SuggestTitle(title string) {
	g.inst.mu.Lock()
	defer g.inst.mu.Unlock()
	g.inst.guiTitle = title
}

func (g gui) Show() error {
	g.inst.mu.Lock()
	defer g.inst.mu.Unlock()
	g.inst.guiShown = true
	return nil
}

func (g gui) Hide() error {
	g.inst.mu.Lock()
	defer g.inst.mu.Unlock()
	g.inst.guiShown = false
	return nil
}

func (g gui) Destroy() {
	g.inst.mu.Lock()
	defer g.inst.mu.Unlock()
	g.inst.guiCreated = false
	g.inst.guiShown = false
}

func (g gui) SetScale(float64) error { return nil }

func (g gui) CanResize() bool { return g.inst.opts.GUI.Resizable }

func (g gui) Size() (plugin.GUISize, error) {
	g.inst.mu.Lock()
	defer g.inst.mu.Unlock()
	return g.inst.guiSize, nil
}

func (g gui) AdjustSize(size plugin.GUISize) (plugin.GUISize, error) {
	step := g.inst.opts.GUI.Step
	if step <= 1 {
		return size, nil
	}
	return plugin.GUISize{Width: size.Width / step * step, Height: size.Height / step * step}, nil
}

func (g gui) SetSize(size plugin.GUISize) error {
	if !g.inst.opts.GUI.Resizable {
		return plugin.ErrGUI
	}
	g.inst.mu.Lock()
	defer g.inst.mu.Unlock()
	g.inst.guiSize = size
	return nil
}

// CloseWindow simulates the user closing the floating window: the plugin destroys it and
// tells the host.
func (i *Instance) CloseWindow() {
	i.mu.Lock()
	i.guiCreated = false
	i.guiShown = false
	i.mu.Unlock()
	if hg, ok := i.host.(plugin.HostGUI); ok {
		hg.GUIClosed(true)
	}
}

// RequestResize simulates the plugin asking the host for a new window size.
func (i *Instance) RequestResize(size plugin.GUISize) bool {
	hg, ok := i.host.(plugin.HostGUI)
	if !ok {
		return false
	}
	return hg.GUIRequestResize(size)
}
