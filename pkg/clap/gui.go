//go:build (darwin || (linux && !android)) && (amd64 || arm64)

package clap

import (
	"fmt"

	"github.com/n0izn0iz/plughost/pkg/plugin"
)

type guiExt struct {
	inst *Instance

	isAPISupported func(p *clapPlugin, api string, floating bool) bool
	create         func(p *clapPlugin, api string, floating bool) bool
	destroy        func(p *clapPlugin)
	setScale       func(p *clapPlugin, scale float64) bool
	getSize        func(p *clapPlugin, width, height *uint32) bool
	canResize      func(p *clapPlugin) bool
	adjustSize     func(p *clapPlugin, width, height *uint32) bool
	setSize        func(p *clapPlugin, width, height uint32) bool
	suggestTitle   func(p *clapPlugin, title string)
	show           func(p *clapPlugin) bool
	hide           func(p *clapPlugin) bool
}

var _ plugin.GUI = (*guiExt)(nil)

func newGUIExt(inst *Instance, t *clapPluginGUI) plugin.GUI {
	g := &guiExt{inst: inst}
	bind(&g.isAPISupported, t.IsAPISupported)
	bind(&g.create, t.Create)
	bind(&g.destroy, t.Destroy)
	bind(&g.setScale, t.SetScale)
	bind(&g.getSize, t.GetSize)
	bind(&g.canResize, t.CanResize)
	bind(&g.adjustSize, t.AdjustSize)
	bind(&g.setSize, t.SetSize)
	bind(&g.suggestTitle, t.SuggestTitle)
	bind(&g.show, t.Show)
	bind(&g.hide, t.Hide)
	if g.isAPISupported == nil || g.create == nil || g.destroy == nil || g.show == nil {
		return nil
	}
	return g
}

func (g *guiExt) p() *clapPlugin { return g.inst.plugin }

func (g *guiExt) IsAPISupported(cfg plugin.GUIConfiguration) bool {
	return g.isAPISupported(g.p(), string(cfg.API), cfg.IsFloating)
}

func (g *guiExt) Create(cfg plugin.GUIConfiguration) error {
	if !g.create(g.p(), string(cfg.API), cfg.IsFloating) {
		return fmt.Errorf("%w: create %s floating=%t", plugin.ErrGUI, cfg.API, cfg.IsFloating)
	}
	return nil
}

func (g *guiExt) SuggestTitle(title string) {
	if g.suggestTitle != nil {
		g.suggestTitle(g.p(), title)
	}
}

func (g *guiExt) Show() error {
	if !g.show(g.p()) {
		return fmt.Errorf("%w: show", plugin.ErrGUI)
	}
	return nil
}

func (g *guiExt) Hide() error {
	if g.hide == nil || !g.hide(g.p()) {
		return fmt.Errorf("%w: hide", plugin.ErrGUI)
	}
	return nil
}

func (g *guiExt) Destroy() { g.destroy(g.p()) }

func (g *guiExt) SetScale(scale float64) error {
	if g.setScale == nil || !g.setScale(g.p(), scale) {
		return fmt.Errorf("%w: set scale %g", plugin.ErrGUI, scale)
	}
	return nil
}

func (g *guiExt) CanResize() bool {
	return g.canResize != nil && g.canResize(g.p())
}

func (g *guiExt) Size() (plugin.GUISize, error) {
	var w, h uint32
	if g.getSize == nil || !g.getSize(g.p(), &w, &h) {
		return plugin.GUISize{}, fmt.Errorf("%w: get size", plugin.ErrGUI)
	}
	return plugin.GUISize{Width: w, Height: h}, nil
}

func (g *guiExt) AdjustSize(size plugin.GUISize) (plugin.GUISize, error) {
	w, h := size.Width, size.Height
	if g.adjustSize == nil || !g.adjustSize(g.p(), &w, &h) {
		return size, fmt.Errorf("%w: adjust size", plugin.ErrGUI)
	}
	return plugin.GUISize{Width: w, Height: h}, nil
}

func (g *guiExt) SetSize(size plugin.GUISize) error {
	if g.setSize == nil || !g.setSize(g.p(), size.Width, size.Height) {
		return fmt.Errorf("%w: set size %dx%d", plugin.ErrGUI, size.Width, size.Height)
	}
	return nil
}
