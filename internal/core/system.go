package core

import (
	"context"

	"github.com/haos-sim/haos/internal/bitripper"
	"github.com/haos-sim/haos/internal/iomatrix"
	"github.com/haos-sim/haos/internal/odt"
)

// FlushFramesDefault is how many outer iterations the scheduler keeps
// running after EOF to flush in-flight state.
const FlushFramesDefault = 10

// StreamDescriptor mirrors the external input/output stream's format.
type StreamDescriptor struct {
	SampleRate      int32
	Channels        int
	BitsPerSample   int
	SamplesPerChan  int64
	Compressed      bool
	InputEOF        bool
	EndOfProcessing bool
}

// Sink is the destination a tail module's drained bricks are written to.
type Sink interface {
	WriteBrick(mask iomatrix.ChannelMask, bricks *[iomatrix.NumChannels]iomatrix.Brick) error
	Flush() error
}

// System is the root of the simulated runtime: the ordered core table,
// the active-core selector, the shared stream descriptors, and the
// scheduling flags the tick loop owns. The active core is reached only
// through System's accessor methods below, never a package global, so
// every module hook closure captures a *System rather than mutable
// package state.
type System struct {
	cores      []*Core
	activeCore *Core

	Input  StreamDescriptor
	Output StreamDescriptor
	Sink   Sink

	Fg2BgRatio int

	frameCounter      int64
	flushDataCnt      int
	frameTriggered    bool
	memAllocRequested bool
	decodingStarted   bool

	frame odt.FrameMetadata
}

// New creates a System over the given cores in index order. The active
// core defaults to cores[0] so accessor methods are usable immediately
// (wiring, priming, tests) without first running the scheduler.
func New(cores []*Core, fg2bgRatio int) *System {
	s := &System{
		cores:        cores,
		Fg2BgRatio:   fg2bgRatio,
		flushDataCnt: FlushFramesDefault,
	}
	if len(cores) > 0 {
		s.activeCore = cores[0]
	}
	return s
}

// FrameCounter is the number of frame-triggered ticks observed so far.
func (s *System) FrameCounter() int64 { return s.frameCounter }

// ----- active-core-scoped accessors, used from inside module hooks -----

func (s *System) activeMatrix() *iomatrix.Matrix { return s.activeCore.Matrix }

// InputPointer returns the active core's write-side brick for ch.
func (s *System) InputPointer(ch int) *iomatrix.Brick { return s.activeMatrix().InputPointer(ch) }

// OutputPointer returns the active core's read-side brick for ch.
func (s *System) OutputPointer(ch int) *iomatrix.Brick { return s.activeMatrix().OutputPointer(ch) }

// GetValidChannelMask reads the active core's channel validity mask.
func (s *System) GetValidChannelMask() iomatrix.ChannelMask {
	return s.activeMatrix().ValidChannelMask()
}

// SetValidChannelMask replaces the active core's channel validity mask.
func (s *System) SetValidChannelMask(mask iomatrix.ChannelMask) {
	s.activeMatrix().SetValidChannelMask(mask)
}

// IsActiveChannel reports whether ch is set in the active core's mask.
func (s *System) IsActiveChannel(ch int) bool { return s.activeMatrix().IsActiveChannel(ch) }

// Ripper returns the active core's active bit-ripper.
func (s *System) Ripper() *bitripper.Ripper { return s.activeCore.Ripper() }

// ActiveCore exposes the raw active core, for components (frame transfer,
// feeders) that need more than the per-channel accessors above.
func (s *System) ActiveCore() *Core { return s.activeCore }

// GetFrameCounter returns the number of frame-triggered ticks so far.
func (s *System) GetFrameCounter() int64 { return s.frameCounter }

// RequestMemAlloc lets a module ask for Premalloc/Postmalloc to run next
// brick.
func (s *System) RequestMemAlloc() { s.memAllocRequested = true }

// Cores exposes the ordered core list for iteration (tests, boot code).
func (s *System) Cores() []*Core { return s.cores }

// runPrestart executes the pre-start sequence: for every core, for every
// module in ODT order, Prekick -> Postkick -> [host-comm replay] ->
// Timer. Replay runs between Postkick and Timer so a module sees its
// compile-time MCV defaults in Postkick before the host overwrites them.
func (s *System) runPrestart(ctx context.Context, replay func(core *Core)) {
	for _, c := range s.cores {
		s.activeCore = c
		for _, e := range c.Table.Entries() {
			if h := e.MIF.MCT.Prekick; h != nil {
				h(e.MIF)
			}
		}
	}
	for _, c := range s.cores {
		s.activeCore = c
		for _, e := range c.Table.Entries() {
			if h := e.MIF.MCT.Postkick; h != nil {
				h()
			}
		}
		if replay != nil {
			replay(c)
		}
	}
	for _, c := range s.cores {
		s.activeCore = c
		for _, e := range c.Table.Entries() {
			if h := e.MIF.MCT.Timer; h != nil {
				h()
			}
		}
	}
}

func (s *System) callHook(pick func(odt.Hooks) func()) {
	for _, c := range s.cores {
		s.activeCore = c
		for _, e := range c.Table.Entries() {
			if h := pick(e.MIF.MCT); h != nil {
				h()
			}
		}
	}
}
