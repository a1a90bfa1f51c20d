package plugin

import (
	"errors"
	"fmt"
)

var ErrPortCapacity = errors.New("plugin: audio ports capacity exceeded")

// AudioConfiguration is fixed for the lifetime of one activation.
type AudioConfiguration struct {
	SampleRate     float64
	MinFramesCount uint32
	MaxFramesCount uint32
}

func (c AudioConfiguration) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %v", c.SampleRate)
	}
	if c.MaxFramesCount == 0 || c.MinFramesCount > c.MaxFramesCount {
		return fmt.Errorf("invalid frame range [%d, %d]", c.MinFramesCount, c.MaxFramesCount)
	}
	return nil
}

// AudioPortBuffer is the view of one audio port: one slice per channel.
type AudioPortBuffer struct {
	Latency  uint32
	Channels [][]float32
	// ConstantMask marks channels whose samples are all equal to the first one.
	ConstantMask uint64
}

// Audio is the buffer view passed to Process.
type Audio struct {
	Ports []AudioPortBuffer
}

// FramesCount is the smallest channel length across all ports. ok is false when there
// is no channel at all.
func (a *Audio) FramesCount() (frames uint32, ok bool) {
	if a == nil {
		return 0, false
	}
	for _, p := range a.Ports {
		for _, ch := range p.Channels {
			n := uint32(len(ch))
			if !ok || n < frames {
				frames = n
			}
			ok = true
		}
	}
	return frames, ok
}

// AudioPorts holds reusable storage for building Audio views with a bounded shape.
// It is not safe for concurrent use.
type AudioPorts struct {
	channelCapacity int
	portCapacity    int
	ports           []AudioPortBuffer
}

func NewAudioPorts(channelCapacity, portCapacity int) *AudioPorts {
	return &AudioPorts{
		channelCapacity: channelCapacity,
		portCapacity:    portCapacity,
		ports:           make([]AudioPortBuffer, 0, portCapacity),
	}
}

func (p *AudioPorts) ChannelCapacity() int { return p.channelCapacity }
func (p *AudioPorts) PortCapacity() int    { return p.portCapacity }

// Wrap builds a view over buffers. The returned Audio aliases p's storage and is only
// valid until the next call to Wrap, so inputs and outputs need one AudioPorts each.
func (p *AudioPorts) Wrap(buffers ...AudioPortBuffer) (*Audio, error) {
	if len(buffers) > p.portCapacity {
		return nil, fmt.Errorf("%w: %d ports, capacity %d", ErrPortCapacity, len(buffers), p.portCapacity)
	}
	channels := 0
	for _, b := range buffers {
		channels += len(b.Channels)
	}
	if channels > p.channelCapacity {
		return nil, fmt.Errorf("%w: %d channels, capacity %d", ErrPortCapacity, channels, p.channelCapacity)
	}
	p.ports = append(p.ports[:0], buffers...)
	return &Audio{Ports: p.ports}, nil
}
