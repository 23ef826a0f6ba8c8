// Package iomatrix implements the per-core I/O buffer matrix: a fixed
// shape of channels x ring-of-bricks x samples that modules read from and
// write to in place as a brick moves through a core's module chain.
package iomatrix

const (
	// NumChannels is the channel count of every core's I/O matrix.
	NumChannels = 32
	// RingDepth is how many bricks are kept per channel.
	RingDepth = 4
	// BrickSize is the sample count of one brick.
	BrickSize = 16
)

// Sample is a normalized PCM sample in [-1, 1).
type Sample = float64

// ChannelMask names which of the 32 channels carry live data this frame.
type ChannelMask uint32

// Brick is one fixed-size block of samples for a single channel.
type Brick [BrickSize]Sample

// Matrix is the per-core ring of bricks for every channel, with one pair
// of write/read cursors shared across all channels — all channels advance
// in lockstep — and a single free-sample counter for the whole matrix.
type Matrix struct {
	channels [NumChannels][RingDepth]Brick
	writeIdx int
	readIdx  int
	ioFree   int

	validChannels ChannelMask
}

// New returns a matrix in its boot state: zeroed bricks, cursors at 0,
// IOfree at full capacity, and the given default channel mask.
func New(defaultMask ChannelMask) *Matrix {
	return &Matrix{
		ioFree:        RingDepth * BrickSize,
		validChannels: defaultMask,
	}
}

// InputPointer returns the brick a decoder should write into for ch.
func (m *Matrix) InputPointer(ch int) *Brick {
	return &m.channels[ch][m.writeIdx]
}

// OutputPointer returns the brick downstream modules read/mutate in place
// for ch.
func (m *Matrix) OutputPointer(ch int) *Brick {
	return &m.channels[ch][m.readIdx]
}

// AdvanceWrite moves the write cursor forward one brick and decrements
// IOfree by one brick's worth of samples.
func (m *Matrix) AdvanceWrite() {
	m.writeIdx = (m.writeIdx + 1) % RingDepth
	m.ioFree -= BrickSize
}

// AdvanceRead moves the read cursor forward one brick and restores the
// IOfree it freed up.
func (m *Matrix) AdvanceRead() {
	m.readIdx = (m.readIdx + 1) % RingDepth
	m.ioFree += BrickSize
}

// IOFree returns the matrix-wide free-sample counter.
func (m *Matrix) IOFree() int { return m.ioFree }

// HasPendingBrick reports whether at least one brick of live data sits in
// the matrix, i.e. IOfree is below full capacity.
func (m *Matrix) HasPendingBrick() bool {
	return m.ioFree < RingDepth*BrickSize
}

// ValidChannelMask returns the mask naming the channels a module should
// treat as carrying meaningful data this tick.
func (m *Matrix) ValidChannelMask() ChannelMask { return m.validChannels }

// SetValidChannelMask lets a module publish a recomputed mask.
func (m *Matrix) SetValidChannelMask(mask ChannelMask) { m.validChannels = mask }

// IsActiveChannel reports whether ch is set in the valid-channel mask.
func (m *Matrix) IsActiveChannel(ch int) bool {
	return m.validChannels&(1<<uint(ch)) != 0
}
