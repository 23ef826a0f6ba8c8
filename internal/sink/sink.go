// Package sink implements the external destinations a drained tail brick
// can be written to: a WAV file, and optionally a live speaker monitor.
package sink

import (
	"fmt"

	"github.com/haos-sim/haos/internal/iomatrix"
	"github.com/haos-sim/haos/internal/wavefile"
)

// WaveSink writes drained bricks to a WAV file, picking samples from a
// fixed list of output channel indices (interleaved in that order).
type WaveSink struct {
	w           *wavefile.Writer
	outChannels []int
}

// NewWaveSink wraps w, interleaving the given channel indices on every
// WriteBrick call. len(outChannels) must match w's configured channel
// count.
func NewWaveSink(w *wavefile.Writer, outChannels []int) *WaveSink {
	return &WaveSink{w: w, outChannels: outChannels}
}

// WriteBrick implements core.Sink: for each sample slot, write one
// interleaved frame across the configured output channels. A channel
// dropped from mask is written as silence rather than skipped, so the
// file's channel count never changes mid-stream.
func (s *WaveSink) WriteBrick(mask iomatrix.ChannelMask, bricks *[iomatrix.NumChannels]iomatrix.Brick) error {
	for i := 0; i < iomatrix.BrickSize; i++ {
		for _, ch := range s.outChannels {
			var v float64
			if mask&(1<<uint(ch)) != 0 {
				v = bricks[ch][i]
			}
			if err := s.w.SendSample(sampleToInt32(v), false); err != nil {
				return fmt.Errorf("sink: write sample: %w", err)
			}
		}
	}
	return nil
}

// Flush rewrites the WAV header to reflect samples written so far.
func (s *WaveSink) Flush() error { return s.w.Flush() }

// Close flushes and releases the underlying file.
func (s *WaveSink) Close() error { return s.w.Close() }

func sampleToInt32(v float64) int32 {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int32(v * 2147483647.0)
}
