package bridge

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/n0izn0iz/plughost/pkg/plugin"
)

// ErrMalformedFrame is returned when a frame cannot be encoded or decoded.
var ErrMalformedFrame = errors.New("bridge: malformed frame")

// Frame is one block of audio and its events as exchanged by ProcessAudio. On the wire
// it is the plughost.bridge.v1.Frame message described in schema.go.
type Frame struct {
	Channels [][]float32
	Events   []plugin.Event
}

// MaxChannels bounds the channel count of a frame.
const MaxChannels = 256

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedFrame, fmt.Sprintf(format, args...))
}

func checkChannels(channels [][]float32) error {
	if len(channels) > MaxChannels {
		return malformed("%d channels", len(channels))
	}
	for i, ch := range channels {
		if len(ch) != len(channels[0]) {
			return malformed("channel %d has %d frames, channel 0 has %d", i, len(ch), len(channels[0]))
		}
	}
	return nil
}

// Message returns f as a protobuf message.
func (f *Frame) Message() (*dynamicpb.Message, error) {
	if err := checkChannels(f.Channels); err != nil {
		return nil, err
	}
	m := newFrameMessage()
	channels := mutable(m, "channels").List()
	for _, ch := range f.Channels {
		c := channels.NewElement()
		samples := mutable(c.Message(), "samples").List()
		for _, s := range ch {
			samples.Append(protoreflect.ValueOfFloat32(s))
		}
		channels.Append(c)
	}
	events := mutable(m, "events").List()
	for _, e := range f.Events {
		v := events.NewElement()
		if err := encodeEvent(v.Message(), e); err != nil {
			return nil, err
		}
		events.Append(v)
	}
	return m, nil
}

func (f *Frame) MarshalBinary() ([]byte, error) {
	m, err := f.Message()
	if err != nil {
		return nil, err
	}
	return proto.Marshal(m)
}

func (f *Frame) UnmarshalBinary(data []byte) error {
	m := newFrameMessage()
	if err := proto.Unmarshal(data, m); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	return f.fromMessage(m)
}

func setTarget(m protoreflect.Message, noteID int32, port, channel, key int16) {
	t := mutable(m, "target").Message()
	set(t, "note_id", protoreflect.ValueOfInt32(noteID))
	set(t, "port_index", protoreflect.ValueOfInt32(int32(port)))
	set(t, "channel", protoreflect.ValueOfInt32(int32(channel)))
	set(t, "key", protoreflect.ValueOfInt32(int32(key)))
}

func encodeEvent(m protoreflect.Message, e plugin.Event) error {
	h := e.Header()
	set(m, "time", protoreflect.ValueOfUint32(h.Time))
	set(m, "space_id", protoreflect.ValueOfUint32(uint32(h.SpaceID)))
	set(m, "flags", protoreflect.ValueOfUint32(h.Flags))

	switch e := e.(type) {
	case plugin.NoteEvent:
		body := mutable(m, "note").Message()
		set(body, "kind", protoreflect.ValueOfUint32(uint32(e.Kind)))
		setTarget(body, e.NoteID, e.PortIndex, e.Channel, e.Key)
		set(body, "velocity", protoreflect.ValueOfFloat64(e.Velocity))
	case plugin.NoteExpressionEvent:
		body := mutable(m, "note_expression").Message()
		set(body, "expression", protoreflect.ValueOfUint32(uint32(e.Expression)))
		setTarget(body, e.NoteID, e.PortIndex, e.Channel, e.Key)
		set(body, "value", protoreflect.ValueOfFloat64(e.Value))
	case plugin.ParamValueEvent:
		body := mutable(m, "param_value").Message()
		set(body, "param_id", protoreflect.ValueOfUint32(e.ParamID))
		setTarget(body, e.NoteID, e.PortIndex, e.Channel, e.Key)
		set(body, "value", protoreflect.ValueOfFloat64(e.Value))
	case plugin.MIDIEvent:
		body := mutable(m, "midi").Message()
		set(body, "port_index", protoreflect.ValueOfUint32(uint32(e.PortIndex)))
		set(body, "data", protoreflect.ValueOfBytes(append([]byte(nil), e.Data[:]...)))
	default:
		return malformed("unsupported event %T", e)
	}
	return nil
}

func (f *Frame) fromMessage(m protoreflect.Message) error {
	if m.Descriptor().FullName() != frameDescriptor.FullName() {
		return malformed("unexpected message %s", m.Descriptor().FullName())
	}

	channels := get(m, "channels").List()
	f.Channels = make([][]float32, channels.Len())
	for i := range f.Channels {
		samples := get(channels.Get(i).Message(), "samples").List()
		ch := make([]float32, samples.Len())
		for j := range ch {
			ch[j] = float32(samples.Get(j).Float())
		}
		f.Channels[i] = ch
	}
	if err := checkChannels(f.Channels); err != nil {
		return err
	}

	events := get(m, "events").List()
	f.Events = make([]plugin.Event, 0, events.Len())
	for i := 0; i < events.Len(); i++ {
		e, err := decodeEvent(events.Get(i).Message())
		if err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
		f.Events = append(f.Events, e)
	}
	return nil
}

func narrow16(name string, v int32) (int16, error) {
	if v < math.MinInt16 || v > math.MaxInt16 {
		return 0, malformed("%s %d out of range", name, v)
	}
	return int16(v), nil
}

func uint8Field(m protoreflect.Message, name protoreflect.Name) (uint8, error) {
	v := get(m, name).Uint()
	if v > math.MaxUint8 {
		return 0, malformed("%s %d out of range", name, v)
	}
	return uint8(v), nil
}

func decodeTarget(m protoreflect.Message) (noteID int32, port, channel, key int16, err error) {
	t := get(m, "target").Message()
	noteID = int32(get(t, "note_id").Int())
	if port, err = narrow16("port", int32(get(t, "port_index").Int())); err != nil {
		return
	}
	if channel, err = narrow16("channel", int32(get(t, "channel").Int())); err != nil {
		return
	}
	key, err = narrow16("key", int32(get(t, "key").Int()))
	return
}

func decodeEvent(m protoreflect.Message) (plugin.Event, error) {
	space := get(m, "space_id").Uint()
	if space > math.MaxUint16 {
		return nil, malformed("space %d out of range", space)
	}
	h := plugin.EventHeader{
		Time:    uint32(get(m, "time").Uint()),
		SpaceID: uint16(space),
		Flags:   uint32(get(m, "flags").Uint()),
	}

	body := m.WhichOneof(m.Descriptor().Oneofs().ByName("body"))
	if body == nil {
		return nil, malformed("event without body")
	}
	b := m.Get(body).Message()
	var err error
	switch body.Name() {
	case "note":
		e := plugin.NoteEvent{EventHeader: h, Velocity: get(b, "velocity").Float()}
		var kind uint8
		if kind, err = uint8Field(b, "kind"); err != nil {
			return nil, err
		}
		e.Kind = plugin.NoteKind(kind)
		e.NoteID, e.PortIndex, e.Channel, e.Key, err = decodeTarget(b)
		return e, err
	case "note_expression":
		e := plugin.NoteExpressionEvent{EventHeader: h, Value: get(b, "value").Float()}
		var expr uint8
		if expr, err = uint8Field(b, "expression"); err != nil {
			return nil, err
		}
		e.Expression = plugin.NoteExpression(expr)
		e.NoteID, e.PortIndex, e.Channel, e.Key, err = decodeTarget(b)
		return e, err
	case "param_value":
		e := plugin.ParamValueEvent{EventHeader: h, ParamID: uint32(get(b, "param_id").Uint()), Value: get(b, "value").Float()}
		e.NoteID, e.PortIndex, e.Channel, e.Key, err = decodeTarget(b)
		return e, err
	case "midi":
		port := get(b, "port_index").Uint()
		if port > math.MaxUint16 {
			return nil, malformed("midi port %d out of range", port)
		}
		data := get(b, "data").Bytes()
		if len(data) != 3 {
			return nil, malformed("midi message of %d bytes", len(data))
		}
		e := plugin.MIDIEvent{EventHeader: h, PortIndex: uint16(port)}
		copy(e.Data[:], data)
		return e, nil
	}
	return nil, malformed("unknown event body %s", body.Name())
}
