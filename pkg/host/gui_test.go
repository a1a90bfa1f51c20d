package host

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/n0izn0iz/plughost/pkg/plugin"
	"github.com/n0izn0iz/plughost/pkg/plugin/plugintest"
)

func apiFunc(api plugin.GUIAPI, ok bool) func() (plugin.GUIAPI, bool) {
	return func() (plugin.GUIAPI, bool) { return api, ok }
}

func newTestGUI(t *testing.T, api plugin.GUIAPI, opts plugintest.GUIOptions) (*GUI, *plugintest.Instance, *atomic.Bool) {
	t.Helper()
	b := plugintest.NewBundle("test.clap", plugintest.Options{GUI: &opts})
	inst, err := b.Instantiate(plugintest.DefaultID, plugin.HostInfo{}, nopHost{})
	require.NoError(t, err)
	ext, ok := plugin.GUIOf(inst)
	require.True(t, ok)
	var hints atomic.Bool
	return negotiateGUI(ext, apiFunc(api, true), &hints, zaptest.NewLogger(t)), b.Instance(0), &hints
}

func TestNegotiatePrefersEmbedded(t *testing.T) {
	g, _, _ := newTestGUI(t, plugin.GUIAPIX11, plugintest.GUIOptions{Supported: []plugin.GUIConfiguration{
		{API: plugin.GUIAPIX11, IsFloating: true},
		{API: plugin.GUIAPIX11, IsFloating: false},
	}})
	floating, ok := g.NeedsFloating()
	require.True(t, ok)
	require.False(t, floating)
}

func TestNegotiateFloating(t *testing.T) {
	g, _, _ := newTestGUI(t, plugin.GUIAPIX11, plugintest.GUIOptions{Supported: []plugin.GUIConfiguration{
		{API: plugin.GUIAPIX11, IsFloating: true},
		{API: plugin.GUIAPICocoa, IsFloating: false},
	}})
	cfg, ok := g.Configuration()
	require.True(t, ok)
	require.Equal(t, plugin.GUIConfiguration{API: plugin.GUIAPIX11, IsFloating: true}, cfg)
}

func TestNegotiateUnsupported(t *testing.T) {
	g, _, _ := newTestGUI(t, plugin.GUIAPIWin32, plugintest.GUIOptions{Supported: []plugin.GUIConfiguration{
		{API: plugin.GUIAPIX11, IsFloating: true},
	}})
	_, ok := g.NeedsFloating()
	require.False(t, ok)
	require.Panics(t, func() { _ = g.OpenFloating() })
	require.Panics(t, func() { g.ToWindowSize(plugin.GUISize{Width: 1, Height: 1}) })
}

func TestNegotiateWithoutPlatformAPI(t *testing.T) {
	b := plugintest.NewBundle("test.clap", plugintest.Options{GUI: &plugintest.GUIOptions{
		Supported: []plugin.GUIConfiguration{{API: plugin.GUIAPIX11, IsFloating: true}},
	}})
	inst, err := b.Instantiate(plugintest.DefaultID, plugin.HostInfo{}, nopHost{})
	require.NoError(t, err)
	ext, _ := plugin.GUIOf(inst)
	g := negotiateGUI(ext, apiFunc("", false), nil, zaptest.NewLogger(t))
	_, ok := g.NeedsFloating()
	require.False(t, ok)
}

func recovered(f func()) (r any) {
	defer func() { r = recover() }()
	f()
	return nil
}

func TestOpenFloatingOnEmbeddedPanics(t *testing.T) {
	g, _, _ := newTestGUI(t, plugin.GUIAPIX11, plugintest.GUIOptions{Supported: []plugin.GUIConfiguration{
		{API: plugin.GUIAPIX11, IsFloating: false},
	}})
	err, _ := recovered(func() { _ = g.OpenFloating() }).(error)
	require.ErrorIs(t, err, ErrContractViolation)
}

func TestGuardKeepsContractViolations(t *testing.T) {
	w := &worker{logger: zaptest.NewLogger(t)}

	err := w.guard("run", func() error {
		misuse("bad call")
		return nil
	})
	require.ErrorIs(t, err, ErrContractViolation)
	require.NotErrorIs(t, err, ErrPluginFailure)

	err = w.guard("run", func() error { panic("plugin blew up") })
	require.ErrorIs(t, err, ErrPluginFailure)
	require.NotErrorIs(t, err, ErrContractViolation)

	require.NoError(t, w.guard("run", func() error { return nil }))
}

func TestOpenFloating(t *testing.T) {
	g, inst, _ := newTestGUI(t, plugin.GUIAPIX11, plugintest.GUIOptions{
		Supported: []plugin.GUIConfiguration{{API: plugin.GUIAPIX11, IsFloating: true}},
		Resizable: true,
	})
	require.NoError(t, g.OpenFloating())
	require.True(t, g.IsOpen())
	require.True(t, g.IsResizable())

	st := inst.Stats()
	require.True(t, st.GUICreated)
	require.True(t, st.GUIShown)
	require.Equal(t, plugin.GUIConfiguration{API: plugin.GUIAPIX11, IsFloating: true}, st.GUIConfig)

	g.Destroy()
	g.Destroy()
	require.False(t, g.IsOpen())
	require.False(t, inst.Stats().GUICreated)
}

func TestOpenFloatingCreateFailure(t *testing.T) {
	g, _, _ := newTestGUI(t, plugin.GUIAPIX11, plugintest.GUIOptions{
		Supported:  []plugin.GUIConfiguration{{API: plugin.GUIAPIX11, IsFloating: true}},
		FailCreate: true,
	})
	require.ErrorIs(t, g.OpenFloating(), ErrPluginFailure)
	require.False(t, g.IsOpen())
}

func TestResizeFixedSize(t *testing.T) {
	g, inst, _ := newTestGUI(t, plugin.GUIAPIX11, plugintest.GUIOptions{
		Supported: []plugin.GUIConfiguration{{API: plugin.GUIAPIX11, IsFloating: true}},
		Size:      plugin.GUISize{Width: 400, Height: 300},
	})
	require.NoError(t, g.OpenFloating())

	got, err := g.Resize(PhysicalSize(1000, 1000), 1)
	require.NoError(t, err)
	require.Equal(t, PhysicalSize(400, 300), got)
	require.Equal(t, plugin.GUISize{Width: 400, Height: 300}, inst.Stats().GUISize)
}

func TestResizePhysical(t *testing.T) {
	g, inst, hints := newTestGUI(t, plugin.GUIAPIX11, plugintest.GUIOptions{
		Supported: []plugin.GUIConfiguration{{API: plugin.GUIAPIX11, IsFloating: true}},
		Resizable: true,
		Step:      10,
	})
	require.NoError(t, g.OpenFloating())

	hints.Store(true)
	got, err := g.Resize(LogicalSize(402.5, 301.5), 2)
	require.NoError(t, err)
	require.False(t, hints.Load(), "pending hints are consumed by a resize")
	require.Equal(t, PhysicalSize(800, 600), got)
	require.Equal(t, plugin.GUISize{Width: 800, Height: 600}, inst.Stats().GUISize)
}

func TestResizeLogical(t *testing.T) {
	g, inst, _ := newTestGUI(t, plugin.GUIAPICocoa, plugintest.GUIOptions{
		Supported: []plugin.GUIConfiguration{{API: plugin.GUIAPICocoa, IsFloating: true}},
		Resizable: true,
	})
	require.NoError(t, g.OpenFloating())

	got, err := g.Resize(PhysicalSize(1600, 1200), 2)
	require.NoError(t, err)
	require.Equal(t, LogicalSize(800, 600), got)
	require.Equal(t, plugin.GUISize{Width: 800, Height: 600}, inst.Stats().GUISize)
	require.Equal(t, LogicalSize(800, 600), g.ToWindowSize(plugin.GUISize{Width: 800, Height: 600}))
}

func TestWindowSizeConversions(t *testing.T) {
	require.Equal(t, LogicalSize(50, 25), PhysicalSize(100, 50).ToLogical(2))
	require.Equal(t, PhysicalSize(200, 100), LogicalSize(100, 50).ToPhysical(2))
	require.Equal(t, LogicalSize(100, 50), LogicalSize(100, 50).ToLogical(2))
	require.Equal(t, PhysicalSize(100, 50), PhysicalSize(100, 50).ToLogical(0).ToPhysical(0))
}
