package core

import (
	"github.com/haos-sim/haos/internal/iomatrix"
	"github.com/haos-sim/haos/internal/odt"
)

// FramePtrs is what a decoder hands to CopyBrickToIO: an optional frame
// metadata record, and for each of the 32 channels an optional pointer to
// the source brick it decoded. Channels left nil are zero-filled.
type FramePtrs struct {
	Frame  *odt.FrameMetadata
	Source [iomatrix.NumChannels]*iomatrix.Brick
}

// CopyBrickToIO implements the decoder-to-core hand-off: copy or zero-fill
// one brick per channel into the active core's input cursor, advance it,
// and (if frame metadata arrived) publish it and flag the scheduler.
func (s *System) CopyBrickToIO(ptrs FramePtrs) {
	if ptrs.Frame != nil {
		s.frame = *ptrs.Frame
		s.frameTriggered = true
		s.decodingStarted = true
		s.Output.SampleRate = ptrs.Frame.SampleRate
	}

	m := s.activeMatrix()
	for ch := 0; ch < iomatrix.NumChannels; ch++ {
		dst := m.InputPointer(ch)
		if src := ptrs.Source[ch]; src != nil {
			for i := range dst {
				dst[i] = src[i]
			}
		} else {
			for i := range dst {
				dst[i] = 0
			}
		}
	}
	m.AdvanceWrite()
}

// CurrentFrame returns the most recently published frame metadata.
func (s *System) CurrentFrame() odt.FrameMetadata { return s.frame }

// DecodingStarted reports whether any decoder has delivered a frame yet.
func (s *System) DecodingStarted() bool { return s.decodingStarted }
