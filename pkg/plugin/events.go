package plugin

import "sort"

// CoreEventSpace is the namespace of the event kinds defined in this package.
const CoreEventSpace uint16 = 0

// EventHeader is common to every event. Time is the sample offset inside the block.
type EventHeader struct {
	Time    uint32
	SpaceID uint16
	Flags   uint32
}

// Event is one of NoteEvent, NoteExpressionEvent, ParamValueEvent or MIDIEvent.
type Event interface {
	Header() EventHeader
}

type NoteKind uint8

const (
	NoteOn NoteKind = iota
	NoteOff
	NoteChoke
	NoteEnd
)

func (k NoteKind) String() string {
	switch k {
	case NoteOn:
		return "note_on"
	case NoteOff:
		return "note_off"
	case NoteChoke:
		return "note_choke"
	case NoteEnd:
		return "note_end"
	}
	return "note_unknown"
}

// Wildcard matches any note id, port, channel or key.
const Wildcard int32 = -1

type NoteEvent struct {
	EventHeader
	Kind      NoteKind
	NoteID    int32
	PortIndex int16
	Channel   int16
	Key       int16
	Velocity  float64
}

func (e NoteEvent) Header() EventHeader { return e.EventHeader }

type NoteExpression uint8

const (
	ExpressionVolume NoteExpression = iota
	ExpressionPan
	ExpressionTuning
	ExpressionVibrato
	ExpressionExpression
	ExpressionBrightness
	ExpressionPressure
)

type NoteExpressionEvent struct {
	EventHeader
	Expression NoteExpression
	NoteID     int32
	PortIndex  int16
	Channel    int16
	Key        int16
	Value      float64
}

func (e NoteExpressionEvent) Header() EventHeader { return e.EventHeader }

type ParamValueEvent struct {
	EventHeader
	ParamID   uint32
	NoteID    int32
	PortIndex int16
	Channel   int16
	Key       int16
	Value     float64
}

func (e ParamValueEvent) Header() EventHeader { return e.EventHeader }

type MIDIEvent struct {
	EventHeader
	PortIndex uint16
	Data      [3]byte
}

func (e MIDIEvent) Header() EventHeader { return e.EventHeader }

// EventBuffer is an ordered list of events. Input buffers handed to the plugin are
// read-only by contract; output buffers are appended to with Push.
type EventBuffer struct {
	events []Event
}

func NewEventBuffer(events ...Event) *EventBuffer {
	b := &EventBuffer{}
	for _, e := range events {
		b.PushOrdered(e)
	}
	return b
}

func (b *EventBuffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.events)
}

func (b *EventBuffer) At(i int) Event { return b.events[i] }

// Events returns the underlying slice; callers must not modify it.
func (b *EventBuffer) Events() []Event {
	if b == nil {
		return nil
	}
	return b.events
}

// Push appends e without reordering.
func (b *EventBuffer) Push(e Event) {
	b.events = append(b.events, e)
}

// PushOrdered inserts e after every event whose time is not later than e's.
func (b *EventBuffer) PushOrdered(e Event) {
	t := e.Header().Time
	i := sort.Search(len(b.events), func(i int) bool {
		return b.events[i].Header().Time > t
	})
	b.events = append(b.events, nil)
	copy(b.events[i+1:], b.events[i:])
	b.events[i] = e
}

func (b *EventBuffer) Clear() {
	b.events = b.events[:0]
}
