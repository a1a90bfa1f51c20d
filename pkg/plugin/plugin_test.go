package plugin

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFramesCount(t *testing.T) {
	var nilAudio *Audio
	_, ok := nilAudio.FramesCount()
	require.False(t, ok)

	_, ok = (&Audio{}).FramesCount()
	require.False(t, ok)

	a := &Audio{Ports: []AudioPortBuffer{
		{Channels: [][]float32{make([]float32, 64), make([]float32, 32)}},
		{Channels: [][]float32{make([]float32, 48)}},
	}}
	n, ok := a.FramesCount()
	require.True(t, ok)
	require.Equal(t, uint32(32), n)
}

func TestAudioPortsWrap(t *testing.T) {
	ports := NewAudioPorts(2, 1)

	a, err := ports.Wrap(AudioPortBuffer{Channels: [][]float32{{1}, {2}}})
	require.NoError(t, err)
	require.Len(t, a.Ports, 1)

	_, err = ports.Wrap(AudioPortBuffer{Channels: [][]float32{{1}, {2}, {3}}})
	require.ErrorIs(t, err, ErrPortCapacity)

	_, err = ports.Wrap(AudioPortBuffer{}, AudioPortBuffer{})
	require.ErrorIs(t, err, ErrPortCapacity)
}

func TestEventBufferOrdering(t *testing.T) {
	b := NewEventBuffer(
		NoteEvent{EventHeader: EventHeader{Time: 10}, Kind: NoteOn, Key: 60},
		ParamValueEvent{EventHeader: EventHeader{Time: 0}, ParamID: 3, Value: 0.5},
		NoteEvent{EventHeader: EventHeader{Time: 10}, Kind: NoteOff, Key: 60},
		MIDIEvent{EventHeader: EventHeader{Time: 5}, Data: [3]byte{0x90, 64, 100}},
	)
	require.Equal(t, 4, b.Len())

	var times []uint32
	for _, e := range b.Events() {
		times = append(times, e.Header().Time)
	}
	require.Equal(t, []uint32{0, 5, 10, 10}, times)

	// equal timestamps keep insertion order
	require.Equal(t, NoteOn, b.At(2).(NoteEvent).Kind)
	require.Equal(t, NoteOff, b.At(3).(NoteEvent).Kind)

	b.Clear()
	require.Zero(t, b.Len())

	var nilBuf *EventBuffer
	require.Zero(t, nilBuf.Len())
	require.Nil(t, nilBuf.Events())
}

func TestAudioConfigurationValidate(t *testing.T) {
	require.NoError(t, AudioConfiguration{SampleRate: 48000, MinFramesCount: 1, MaxFramesCount: 4096}.Validate())
	require.Error(t, AudioConfiguration{SampleRate: 0, MaxFramesCount: 64}.Validate())
	require.Error(t, AudioConfiguration{SampleRate: 44100, MinFramesCount: 128, MaxFramesCount: 64}.Validate())
	require.Error(t, AudioConfiguration{SampleRate: 44100}.Validate())
}

func TestGUIAPIUnits(t *testing.T) {
	require.True(t, GUIAPICocoa.UsesLogicalSize())
	require.False(t, GUIAPIX11.UsesLogicalSize())
	require.False(t, GUIAPIWin32.UsesLogicalSize())
}
