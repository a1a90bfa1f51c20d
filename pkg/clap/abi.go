package clap

import (
	"unsafe"
)

// Go mirrors of the CLAP C structures. Field order and types reproduce the C layout on
// 64-bit targets; abi_test.go pins the offsets.

type clapVersion struct {
	Major    uint32
	Minor    uint32
	Revision uint32
}

// hostClapVersion is the interface version this host implements.
var hostClapVersion = clapVersion{Major: 1, Minor: 2, Revision: 2}

func (v clapVersion) compatible() bool { return v.Major >= 1 }

type clapPluginEntry struct {
	ClapVersion clapVersion
	Init        uintptr // bool (*)(const char *plugin_path)
	Deinit      uintptr // void (*)(void)
	GetFactory  uintptr // const void *(*)(const char *factory_id)
}

type clapPluginFactory struct {
	GetPluginCount      uintptr
	GetPluginDescriptor uintptr
	CreatePlugin        uintptr
}

type clapPluginDescriptor struct {
	ClapVersion clapVersion
	ID          *byte
	Name        *byte
	Vendor      *byte
	URL         *byte
	ManualURL   *byte
	SupportURL  *byte
	Version     *byte
	Description *byte
	Features    **byte
}

type clapHost struct {
	ClapVersion     clapVersion
	HostData        uintptr
	Name            *byte
	Vendor          *byte
	URL             *byte
	Version         *byte
	GetExtension    uintptr
	RequestRestart  uintptr
	RequestProcess  uintptr
	RequestCallback uintptr
}

type clapPlugin struct {
	Desc            *clapPluginDescriptor
	PluginData      uintptr
	Init            uintptr
	Destroy         uintptr
	Activate        uintptr
	Deactivate      uintptr
	StartProcessing uintptr
	StopProcessing  uintptr
	Reset           uintptr
	Process         uintptr
	GetExtension    uintptr
	OnMainThread    uintptr
}

type clapAudioBuffer struct {
	Data32       **float32
	Data64       **float64
	ChannelCount uint32
	Latency      uint32
	ConstantMask uint64
}

type clapProcess struct {
	SteadyTime        int64
	FramesCount       uint32
	Transport         uintptr
	AudioInputs       *clapAudioBuffer
	AudioOutputs      *clapAudioBuffer
	AudioInputsCount  uint32
	AudioOutputsCount uint32
	InEvents          *clapInputEvents
	OutEvents         *clapOutputEvents
}

type clapInputEvents struct {
	Ctx  uintptr
	Size uintptr // uint32_t (*)(const clap_input_events_t *)
	Get  uintptr // const clap_event_header_t *(*)(const clap_input_events_t *, uint32_t)
}

type clapOutputEvents struct {
	Ctx     uintptr
	TryPush uintptr // bool (*)(const clap_output_events_t *, const clap_event_header_t *)
}

const (
	processError = iota
	processContinue
	processContinueIfNotQuiet
	processTail
	processSleep
)

const (
	eventNoteOn         = 0
	eventNoteOff        = 1
	eventNoteChoke      = 2
	eventNoteEnd        = 3
	eventNoteExpression = 4
	eventParamValue     = 5
	eventMIDI           = 10
)

type clapEventHeader struct {
	Size    uint32
	Time    uint32
	SpaceID uint16
	Type    uint16
	Flags   uint32
}

type clapEventNote struct {
	Header    clapEventHeader
	NoteID    int32
	PortIndex int16
	Channel   int16
	Key       int16
	Velocity  float64
}

type clapEventNoteExpression struct {
	Header       clapEventHeader
	ExpressionID int32
	NoteID       int32
	PortIndex    int16
	Channel      int16
	Key          int16
	Value        float64
}

type clapEventParamValue struct {
	Header    clapEventHeader
	ParamID   uint32
	Cookie    uintptr
	NoteID    int32
	PortIndex int16
	Channel   int16
	Key       int16
	Value     float64
}

type clapEventMIDI struct {
	Header    clapEventHeader
	PortIndex uint16
	Data      [3]uint8
}

type clapOStream struct {
	Ctx   uintptr
	Write uintptr // int64_t (*)(const clap_ostream_t *, const void *, uint64_t)
}

type clapIStream struct {
	Ctx  uintptr
	Read uintptr // int64_t (*)(const clap_istream_t *, void *, uint64_t)
}

// Plugin-side extension tables.

type clapPluginTimerSupport struct {
	OnTimer uintptr
}

type clapPluginState struct {
	Save uintptr
	Load uintptr
}

type clapPluginParams struct {
	Count       uintptr
	GetInfo     uintptr
	GetValue    uintptr
	ValueToText uintptr
	TextToValue uintptr
	Flush       uintptr
}

type clapPluginGUI struct {
	IsAPISupported  uintptr
	GetPreferredAPI uintptr
	Create          uintptr
	Destroy         uintptr
	SetScale        uintptr
	GetSize         uintptr
	CanResize       uintptr
	GetResizeHints  uintptr
	AdjustSize      uintptr
	SetSize         uintptr
	SetParent       uintptr
	SetTransient    uintptr
	SuggestTitle    uintptr
	Show            uintptr
	Hide            uintptr
}

// Host-side extension tables.

type clapHostTimerSupport struct {
	RegisterTimer   uintptr
	UnregisterTimer uintptr
}

type clapHostGUI struct {
	ResizeHintsChanged uintptr
	RequestResize      uintptr
	RequestShow        uintptr
	RequestHide        uintptr
	Closed             uintptr
}

type clapHostLog struct {
	Log uintptr
}

type clapHostParams struct {
	Rescan       uintptr
	Clear        uintptr
	RequestFlush uintptr
}

type clapHostState struct {
	MarkDirty uintptr
}

type clapHostAudioPorts struct {
	IsRescanFlagSupported uintptr
	Rescan                uintptr
}

type clapHostNotePorts struct {
	SupportedDialects uintptr
	Rescan            uintptr
}

const (
	factoryID = "clap.plugin-factory"

	extAudioPorts = "clap.audio-ports"
	extNotePorts  = "clap.note-ports"
	extLog        = "clap.log"
)

// goString copies the NUL-terminated string at p.
func goString(p *byte) string {
	if p == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return string(unsafe.Slice(p, n))
}

// goStrings copies a NULL-terminated array of C strings.
func goStrings(p **byte) []string {
	if p == nil {
		return nil
	}
	var out []string
	for i := uintptr(0); ; i++ {
		s := *(**byte)(unsafe.Add(unsafe.Pointer(p), i*unsafe.Sizeof(p)))
		if s == nil {
			return out
		}
		out = append(out, goString(s))
	}
}

func cString(s string) []byte {
	return append([]byte(s), 0)
}
