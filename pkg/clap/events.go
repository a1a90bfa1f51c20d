package clap

import (
	"unsafe"

	"github.com/n0izn0iz/plughost/pkg/plugin"
)

func header(h plugin.EventHeader, typ uint16, size uintptr) clapEventHeader {
	return clapEventHeader{
		Size:    uint32(size),
		Time:    h.Time,
		SpaceID: h.SpaceID,
		Type:    typ,
		Flags:   h.Flags,
	}
}

func fromHeader(h *clapEventHeader) plugin.EventHeader {
	return plugin.EventHeader{Time: h.Time, SpaceID: h.SpaceID, Flags: h.Flags}
}

// encodeEvent returns e in its native layout. The returned pointer addresses the header
// at the start of a freshly allocated event.
func encodeEvent(e plugin.Event) (*clapEventHeader, bool) {
	switch e := e.(type) {
	case plugin.NoteEvent:
		n := &clapEventNote{
			NoteID:    e.NoteID,
			PortIndex: e.PortIndex,
			Channel:   e.Channel,
			Key:       e.Key,
			Velocity:  e.Velocity,
		}
		n.Header = header(e.EventHeader, eventNoteOn+uint16(e.Kind), unsafe.Sizeof(*n))
		return &n.Header, true
	case plugin.NoteExpressionEvent:
		n := &clapEventNoteExpression{
			ExpressionID: int32(e.Expression),
			NoteID:       e.NoteID,
			PortIndex:    e.PortIndex,
			Channel:      e.Channel,
			Key:          e.Key,
			Value:        e.Value,
		}
		n.Header = header(e.EventHeader, eventNoteExpression, unsafe.Sizeof(*n))
		return &n.Header, true
	case plugin.ParamValueEvent:
		p := &clapEventParamValue{
			ParamID:   e.ParamID,
			NoteID:    e.NoteID,
			PortIndex: e.PortIndex,
			Channel:   e.Channel,
			Key:       e.Key,
			Value:     e.Value,
		}
		p.Header = header(e.EventHeader, eventParamValue, unsafe.Sizeof(*p))
		return &p.Header, true
	case plugin.MIDIEvent:
		m := &clapEventMIDI{PortIndex: e.PortIndex, Data: e.Data}
		m.Header = header(e.EventHeader, eventMIDI, unsafe.Sizeof(*m))
		return &m.Header, true
	}
	return nil, false
}

// decodeEvent reads an event written by the plugin. Events outside the core space, of an
// unknown type or shorter than their type requires are refused.
func decodeEvent(h *clapEventHeader) (plugin.Event, bool) {
	if h == nil || h.SpaceID != plugin.CoreEventSpace {
		return nil, false
	}
	p := unsafe.Pointer(h)
	switch h.Type {
	case eventNoteOn, eventNoteOff, eventNoteChoke, eventNoteEnd:
		if uintptr(h.Size) < unsafe.Sizeof(clapEventNote{}) {
			return nil, false
		}
		n := (*clapEventNote)(p)
		return plugin.NoteEvent{
			EventHeader: fromHeader(h),
			Kind:        plugin.NoteKind(h.Type - eventNoteOn),
			NoteID:      n.NoteID,
			PortIndex:   n.PortIndex,
			Channel:     n.Channel,
			Key:         n.Key,
			Velocity:    n.Velocity,
		}, true
	case eventNoteExpression:
		if uintptr(h.Size) < unsafe.Sizeof(clapEventNoteExpression{}) {
			return nil, false
		}
		n := (*clapEventNoteExpression)(p)
		return plugin.NoteExpressionEvent{
			EventHeader: fromHeader(h),
			Expression:  plugin.NoteExpression(n.ExpressionID),
			NoteID:      n.NoteID,
			PortIndex:   n.PortIndex,
			Channel:     n.Channel,
			Key:         n.Key,
			Value:       n.Value,
		}, true
	case eventParamValue:
		if uintptr(h.Size) < unsafe.Sizeof(clapEventParamValue{}) {
			return nil, false
		}
		v := (*clapEventParamValue)(p)
		return plugin.ParamValueEvent{
			EventHeader: fromHeader(h),
			ParamID:     v.ParamID,
			NoteID:      v.NoteID,
			PortIndex:   v.PortIndex,
			Channel:     v.Channel,
			Key:         v.Key,
			Value:       v.Value,
		}, true
	case eventMIDI:
		if uintptr(h.Size) < unsafe.Sizeof(clapEventMIDI{}) {
			return nil, false
		}
		m := (*clapEventMIDI)(p)
		return plugin.MIDIEvent{EventHeader: fromHeader(h), PortIndex: m.PortIndex, Data: m.Data}, true
	}
	return nil, false
}

// inputList backs a clap_input_events_t for the duration of one process call.
type inputList struct {
	events []*clapEventHeader
}

func (l *inputList) reset(events *plugin.EventBuffer, keep func(any)) {
	l.events = l.events[:0]
	for _, e := range events.Events() {
		h, ok := encodeEvent(e)
		if !ok {
			continue
		}
		keep(h)
		l.events = append(l.events, h)
	}
}

func (l *inputList) at(i uint32) *clapEventHeader {
	if int(i) >= len(l.events) {
		return nil
	}
	return l.events[i]
}

// outputList collects the events a plugin pushes during one process call.
type outputList struct {
	events *plugin.EventBuffer
}

func (l *outputList) push(h *clapEventHeader) bool {
	if l.events == nil {
		return false
	}
	e, ok := decodeEvent(h)
	if !ok {
		return false
	}
	l.events.Push(e)
	return true
}
