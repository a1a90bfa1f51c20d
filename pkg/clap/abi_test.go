package clap

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestLayout(t *testing.T) {
	var entry clapPluginEntry
	require.Equal(t, uintptr(16), unsafe.Offsetof(entry.Init))
	require.Equal(t, uintptr(32), unsafe.Offsetof(entry.GetFactory))

	var desc clapPluginDescriptor
	require.Equal(t, uintptr(16), unsafe.Offsetof(desc.ID))
	require.Equal(t, uintptr(80), unsafe.Offsetof(desc.Features))
	require.Equal(t, uintptr(88), unsafe.Sizeof(desc))

	var host clapHost
	require.Equal(t, uintptr(16), unsafe.Offsetof(host.HostData))
	require.Equal(t, uintptr(56), unsafe.Offsetof(host.GetExtension))
	require.Equal(t, uintptr(88), unsafe.Sizeof(host))

	require.Equal(t, uintptr(96), unsafe.Sizeof(clapPlugin{}))
	require.Equal(t, uintptr(32), unsafe.Sizeof(clapAudioBuffer{}))

	var proc clapProcess
	require.Equal(t, uintptr(8), unsafe.Offsetof(proc.FramesCount))
	require.Equal(t, uintptr(16), unsafe.Offsetof(proc.Transport))
	require.Equal(t, uintptr(40), unsafe.Offsetof(proc.AudioInputsCount))
	require.Equal(t, uintptr(48), unsafe.Offsetof(proc.InEvents))
	require.Equal(t, uintptr(64), unsafe.Sizeof(proc))

	require.Equal(t, uintptr(16), unsafe.Sizeof(clapEventHeader{}))

	var note clapEventNote
	require.Equal(t, uintptr(24), unsafe.Offsetof(note.Key))
	require.Equal(t, uintptr(32), unsafe.Offsetof(note.Velocity))
	require.Equal(t, uintptr(40), unsafe.Sizeof(note))

	var expr clapEventNoteExpression
	require.Equal(t, uintptr(28), unsafe.Offsetof(expr.Key))
	require.Equal(t, uintptr(32), unsafe.Offsetof(expr.Value))

	var param clapEventParamValue
	require.Equal(t, uintptr(24), unsafe.Offsetof(param.Cookie))
	require.Equal(t, uintptr(32), unsafe.Offsetof(param.NoteID))
	require.Equal(t, uintptr(48), unsafe.Offsetof(param.Value))
	require.Equal(t, uintptr(56), unsafe.Sizeof(param))

	var midi clapEventMIDI
	require.Equal(t, uintptr(18), unsafe.Offsetof(midi.Data))
	require.Equal(t, uintptr(24), unsafe.Sizeof(midi))
}

func TestStrings(t *testing.T) {
	require.Equal(t, "", goString(nil))

	a, b := cString("gain"), cString("stereo")
	require.Equal(t, "gain", goString(&a[0]))

	list := []*byte{&a[0], &b[0], nil}
	require.Equal(t, []string{"gain", "stereo"}, goStrings(&list[0]))
	require.Nil(t, goStrings(nil))
}

func TestVersion(t *testing.T) {
	require.True(t, hostClapVersion.compatible())
	require.True(t, clapVersion{Major: 1, Minor: 0}.compatible())
	require.False(t, clapVersion{Major: 0, Minor: 19}.compatible())
}
