// Package modules implements the concrete decoder and processing modules
// wired into a core's ODT: a PCM decoder that turns bit-ripper words into
// bricks, and an audio manager that applies channel remap/mute rules to
// the brick a decoder just produced.
package modules

import (
	"github.com/haos-sim/haos/internal/core"
	"github.com/haos-sim/haos/internal/iomatrix"
	"github.com/haos-sim/haos/internal/odt"
)

// eofReporter is the slice of feeder.Feeder this decoder needs: whether
// the stream backing the bit-ripper has run dry. Declared locally so this
// package doesn't import feeder just for one method.
type eofReporter interface {
	EOF() bool
}

// PCMDecoder pulls one brick's worth of left-justified signed samples per
// channel straight off a core's active bit-ripper and hands them to the
// frame transfer step. It carries no compression state: every extracted
// word is one sample.
type PCMDecoder struct {
	sys        *core.System
	mcv        *odt.MIF
	channels   int
	sampleRate int32
	source     eofReporter
	frameSent  bool
}

// NewPCMDecoder wires a decoder that reads `channels` interleaved sample
// streams (one bit-ripper extract per channel per sample) at sampleRate.
// mif is the module's own parameter block, supplied so host-comm replay
// can still address it even though this module takes no runtime
// parameters today. source, if non-nil, is polled once per brick so the
// decoder can publish InputEOF itself rather than requiring a separate
// watcher goroutine racing the single-threaded scheduler.
func NewPCMDecoder(sys *core.System, mif *odt.MIF, channels int, sampleRate int32, source eofReporter) *PCMDecoder {
	return &PCMDecoder{sys: sys, mcv: mif, channels: channels, sampleRate: sampleRate, source: source}
}

// Hooks returns this module's entry-point table for insertion into an ODT
// entry.
func (d *PCMDecoder) Hooks() odt.Hooks {
	return odt.Hooks{
		Brick: d.onBrick,
	}
}

func (d *PCMDecoder) onBrick() {
	var bricks [iomatrix.NumChannels]iomatrix.Brick
	var ptrs [iomatrix.NumChannels]*iomatrix.Brick
	var inMask uint32

	for i := 0; i < iomatrix.BrickSize; i++ {
		for ch := 0; ch < d.channels; ch++ {
			raw := int32(d.sys.Ripper().ExtractBits(32))
			bricks[ch][i] = float64(raw) / 2147483648.0
		}
	}
	for ch := 0; ch < d.channels; ch++ {
		ptrs[ch] = &bricks[ch]
		inMask |= 1 << uint(ch)
	}

	var meta *odt.FrameMetadata
	if !d.frameSent {
		meta = &odt.FrameMetadata{
			InputChannelMask: inMask,
			SampleRate:       d.sampleRate,
			DecodeInfo:       odt.DecodePCM,
		}
		d.frameSent = true
	}

	d.sys.CopyBrickToIO(core.FramePtrs{Frame: meta, Source: ptrs})

	if d.source != nil {
		d.sys.Input.InputEOF = d.source.EOF()
	}
}
