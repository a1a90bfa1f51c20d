package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/n0izn0iz/plughost/pkg/plugin"
)

type processor interface {
	ProcessAudio(ctx context.Context, inputs [][]float32, events ...plugin.Event) ([][]float32, []plugin.Event, error)
}

func fullScale(bitDepth int) (float32, error) {
	switch bitDepth {
	case 16, 24, 32:
		return float32(int64(1) << (bitDepth - 1)), nil
	}
	return 0, fmt.Errorf("unsupported bit depth: %d", bitDepth)
}

// render streams dec, whose header was read already, through p in blocks of block frames
// and writes the processed audio to enc. The last block is padded with silence and
// trimmed after processing. It returns the number of frames rendered.
func render(ctx context.Context, p processor, dec *wav.Decoder, enc *wav.Encoder, block int) (int, error) {
	if block <= 0 {
		return 0, errors.New("block must be positive")
	}
	chans, bitDepth := int(dec.NumChans), int(dec.BitDepth)
	scale, err := fullScale(bitDepth)
	if err != nil {
		return 0, err
	}
	format := &audio.Format{SampleRate: int(dec.SampleRate), NumChannels: chans}

	in := &audio.IntBuffer{Data: make([]int, block*chans), Format: format}
	inputs := make([][]float32, chans)
	for c := range inputs {
		inputs[c] = make([]float32, block)
	}
	out := &audio.IntBuffer{Data: make([]int, 0, block*chans), Format: format, SourceBitDepth: bitDepth}

	total := 0
	for {
		n, err := dec.PCMBuffer(in)
		if err != nil {
			return total, err
		}
		frames := n / chans
		if frames == 0 {
			return total, nil
		}

		for c, ch := range inputs {
			for i := range ch {
				ch[i] = 0
				if i < frames {
					ch[i] = float32(in.Data[i*chans+c]) / scale
				}
			}
		}
		outputs, _, err := p.ProcessAudio(ctx, inputs)
		if err != nil {
			return total, fmt.Errorf("block at frame %d: %w", total, err)
		}
		if len(outputs) < chans {
			return total, fmt.Errorf("plugin returned %d channels, %d expected", len(outputs), chans)
		}

		out.Data = out.Data[:0]
		for i := 0; i < frames; i++ {
			for c := 0; c < chans; c++ {
				s := max(-1, min(outputs[c][i], 1))
				out.Data = append(out.Data, int(s*(scale-1)))
			}
		}
		if err := enc.Write(out); err != nil {
			return total, err
		}
		total += frames
	}
}
