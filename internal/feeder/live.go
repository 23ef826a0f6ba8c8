package feeder

import (
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/haos-sim/haos/internal/bitripper"
)

// LiveFeeder captures from a microphone/line-in device via PortAudio and
// feeds its samples into a bit-ripper's FIFO. Unlike FileFeeder it never
// reports EOF: an underrun (no samples ready yet) is padded with silence,
// the live-capture analogue of the source's ALSA/OSS input path.
type LiveFeeder struct {
	stream     *portaudio.Stream
	sampleRate float64
	channels   int
	ring       []int32
}

// NewLiveFeeder opens the default input device at sampleRate with the
// given channel count and starts capture immediately.
func NewLiveFeeder(sampleRate float64, channels int) (*LiveFeeder, error) {
	f := &LiveFeeder{sampleRate: sampleRate, channels: channels}

	in := make([]int32, 256*channels)
	stream, err := portaudio.OpenDefaultStream(channels, 0, sampleRate, len(in)/channels, &in)
	if err != nil {
		return nil, fmt.Errorf("feeder: open input stream: %w", err)
	}
	f.stream = stream
	f.ring = in

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("feeder: start input stream: %w", err)
	}
	return f, nil
}

// FillInputFIFO implements bitripper.Refiller by pulling whatever samples
// PortAudio has buffered, left-justifying each into a 32-bit word, and
// padding the remainder of the FIFO's free space with silence.
func (f *LiveFeeder) FillInputFIFO(r *bitripper.Ripper) error {
	free := r.GetFreeSpaceInWords()
	if free == 0 {
		return nil
	}
	if err := f.stream.Read(); err != nil && err != portaudio.InputOverflowed {
		words := make([]uint32, free)
		r.WriteAt(words)
		r.AdvanceWritePtr(free)
		return nil
	}

	words := make([]uint32, free)
	for i := range words {
		if i < len(f.ring) {
			words[i] = uint32(f.ring[i]) // portaudio delivers full-scale 32-bit ints, already left-justified
		}
	}
	r.WriteAt(words)
	r.AdvanceWritePtr(free)
	return nil
}

// EOF always reports false: a live device never ends on its own.
func (f *LiveFeeder) EOF() bool { return false }

// Close stops and releases the PortAudio stream.
func (f *LiveFeeder) Close() error {
	if f.stream == nil {
		return nil
	}
	if err := f.stream.Stop(); err != nil {
		f.stream.Close()
		return err
	}
	return f.stream.Close()
}
