package core

import (
	"context"

	"github.com/haos-sim/haos/internal/iomatrix"
	"github.com/haos-sim/haos/internal/odt"
)

// Run drives the pre-start sequence and main tick loop. replay, if
// non-nil, is invoked once per core between that core's Postkick and
// Timer passes during the pre-start sequence (the host-comm replay hook).
//
// ctx cancellation is a harness escape hatch for tests and interactive
// runs; it is checked only between outer iterations, never mid-tick.
func (s *System) Run(ctx context.Context, replay func(core *Core)) error {
	s.runPrestart(ctx, replay)

	for s.flushDataCnt > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if s.Input.InputEOF {
			s.flushDataCnt--
		}

		for brick := 0; brick < s.Fg2BgRatio; brick++ {
			s.callHook(func(h odt.Hooks) func() { return h.AFAP })

			if s.frameTriggered {
				s.frameCounter++
				s.callHook(func(h odt.Hooks) func() { return h.Frame })
				s.frameTriggered = false
			}

			if s.memAllocRequested {
				s.callHook(func(h odt.Hooks) func() { return h.Premalloc })
				s.callHook(func(h odt.Hooks) func() { return h.Postmalloc })
				s.memAllocRequested = false
			}

			s.callHook(func(h odt.Hooks) func() { return h.Brick })

			if s.anyCoreHasPendingBrick() {
				if err := s.drainTailBrick(); err != nil {
					return err
				}
				for _, c := range s.cores {
					c.Matrix.AdvanceRead()
				}
			}
		}

		s.callHook(func(h odt.Hooks) func() { return h.Background })
		if s.Sink != nil {
			if err := s.Sink.Flush(); err != nil {
				return err
			}
		}
	}
	s.Input.EndOfProcessing = true
	return nil
}

func (s *System) anyCoreHasPendingBrick() bool {
	for _, c := range s.cores {
		if c.Matrix.HasPendingBrick() {
			return true
		}
	}
	return false
}

// drainTailBrick writes the last core's current output brick, for every
// channel, to the external sink. Other cores' bricks are not drained.
func (s *System) drainTailBrick() error {
	if s.Sink == nil || len(s.cores) == 0 {
		return nil
	}
	last := s.cores[len(s.cores)-1]
	if _, ok := last.Table.Tail(); !ok {
		return nil
	}
	var bricks [iomatrix.NumChannels]iomatrix.Brick
	for ch := 0; ch < iomatrix.NumChannels; ch++ {
		bricks[ch] = *last.Matrix.OutputPointer(ch)
	}
	return s.Sink.WriteBrick(last.Matrix.ValidChannelMask(), &bricks)
}
