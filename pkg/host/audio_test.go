package host

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/n0izn0iz/plughost/pkg/plugin"
	"github.com/n0izn0iz/plughost/pkg/plugin/plugintest"
)

type nopHost struct{}

func (nopHost) RequestProcess()  {}
func (nopHost) RequestRestart()  {}
func (nopHost) RequestCallback() {}

var testConfig = plugin.AudioConfiguration{SampleRate: 48000, MinFramesCount: 1, MaxFramesCount: 4096}

func newTestProcessor(t *testing.T, opts plugintest.Options) (*AudioProcessor, *plugintest.Instance) {
	t.Helper()
	b := plugintest.NewBundle("test.clap", opts)
	inst, err := b.Instantiate(plugintest.DefaultID, plugin.HostInfo{}, nopHost{})
	require.NoError(t, err)
	proc, err := inst.Activate(testConfig)
	require.NoError(t, err)
	a, err := newAudioProcessor(proc, testConfig, nil)
	require.NoError(t, err)
	return a, b.Instance(0)
}

func stereo(n int, v float32) [][]float32 {
	l, r := make([]float32, n), make([]float32, n)
	for i := range l {
		l[i], r[i] = v, -v
	}
	return [][]float32{l, r}
}

func TestAudioProcessorSteadyTime(t *testing.T) {
	a, inst := newTestProcessor(t, plugintest.Options{Gain: 2})

	in := stereo(256, 0.25)
	out, events, err := a.Process(in, nil, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 0, events.Len())
	require.Len(t, out, 2)
	require.Equal(t, float32(0.5), out[0][10])
	require.Equal(t, float32(-0.5), out[1][255])
	require.Equal(t, float32(0.25), in[0][10], "inputs are left untouched")
	require.Equal(t, uint64(256), a.SteadyTime())

	_, _, err = a.Process(stereo(100, 1), nil, nil, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(356), a.SteadyTime())
	require.Equal(t, int64(256), inst.Stats().LastSteadyTime, "the plugin sees the time at block start")
}

func TestAudioProcessorContract(t *testing.T) {
	a, inst := newTestProcessor(t, plugintest.Options{})

	for name, in := range map[string][][]float32{
		"no channel":       {},
		"unequal channels": {make([]float32, 10), make([]float32, 11)},
		"at min":           stereo(1, 0),
		"at max":           stereo(4096, 0),
		"above max":        stereo(5000, 0),
	} {
		_, _, err := a.Process(in, nil, nil, nil)
		require.ErrorIs(t, err, ErrContractViolation, name)
	}
	require.Zero(t, a.SteadyTime())
	require.Zero(t, inst.Stats().ProcessCalls)

	_, _, err := a.Process(stereo(4095, 0), nil, nil, nil)
	require.NoError(t, err)
	_, _, err = a.Process(stereo(2, 0), nil, nil, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(4097), a.SteadyTime())
}

func TestAudioProcessorPortCapacity(t *testing.T) {
	a, _ := newTestProcessor(t, plugintest.Options{})
	_, _, err := a.Process(stereo(64, 0), nil, plugin.NewAudioPorts(1, 1), nil)
	require.ErrorIs(t, err, ErrContractViolation)
}

func TestAudioProcessorSharedPorts(t *testing.T) {
	a, inst := newTestProcessor(t, plugintest.Options{Gain: 0.5})
	ports := plugin.NewAudioPorts(2, 1)
	_, _, err := a.Process(stereo(64, 1), nil, ports, ports)
	require.ErrorIs(t, err, ErrContractViolation)
	require.Zero(t, inst.Stats().ProcessCalls)
	require.Zero(t, a.SteadyTime())

	out, _, err := a.Process(stereo(64, 1), nil, ports, plugin.NewAudioPorts(2, 1))
	require.NoError(t, err)
	require.Equal(t, float32(0.5), out[0][0])
}

func TestAudioProcessorReportedFrames(t *testing.T) {
	a, _ := newTestProcessor(t, plugintest.Options{ReportFrames: 100})
	out, _, err := a.Process(stereo(512, 1), nil, nil, nil)
	require.NoError(t, err)
	require.Len(t, out[0], 100)
	require.Equal(t, uint64(100), a.SteadyTime())
}

func TestAudioProcessorEvents(t *testing.T) {
	a, _ := newTestProcessor(t, plugintest.Options{EchoEvents: true})
	in := plugin.NewEventBuffer(
		plugin.NoteEvent{EventHeader: plugin.EventHeader{Time: 12}, Kind: plugin.NoteOff, Key: 60},
		plugin.NoteEvent{EventHeader: plugin.EventHeader{Time: 3}, Kind: plugin.NoteOn, Key: 60, Velocity: 1},
	)
	_, out, err := a.Process(stereo(64, 0), in, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	require.Equal(t, plugin.NoteOn, out.At(0).(plugin.NoteEvent).Kind)
}

func TestAudioProcessorFailure(t *testing.T) {
	a, _ := newTestProcessor(t, plugintest.Options{FailProcessAt: 2})
	_, _, err := a.Process(stereo(64, 0), nil, nil, nil)
	require.NoError(t, err)
	_, _, err = a.Process(stereo(64, 0), nil, nil, nil)
	require.ErrorIs(t, err, ErrPluginFailure)
	require.ErrorIs(t, err, plugintest.ErrInjected)
	require.Equal(t, uint64(64), a.SteadyTime())
}

func TestAudioProcessorRestart(t *testing.T) {
	a, inst := newTestProcessor(t, plugintest.Options{})
	_, _, err := a.Process(stereo(64, 0), nil, nil, nil)
	require.NoError(t, err)

	require.NoError(t, a.Restart())
	require.Zero(t, a.SteadyTime())
	st := inst.Stats()
	require.Equal(t, 2, st.Starts)
	require.Equal(t, 1, st.Stops)
	require.True(t, st.Processing)

	a.Stop()
	a.Stop()
	require.Equal(t, 2, inst.Stats().Stops)
	_, _, err = a.Process(stereo(64, 0), nil, nil, nil)
	require.ErrorIs(t, err, ErrPluginFailure)
}

func TestAudioProcessorRestartFailure(t *testing.T) {
	a, inst := newTestProcessor(t, plugintest.Options{FailRestart: true})
	err := a.Restart()
	require.ErrorIs(t, err, ErrPluginFailure)
	require.False(t, inst.Stats().Processing)
}
