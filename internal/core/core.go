// Package core implements the Scheduler/Runtime (C4), the per-core state
// it drives, and the Frame Transfer hand-off (C5) between a decoder and a
// core's I/O matrix.
package core

import (
	"github.com/haos-sim/haos/internal/bitripper"
	"github.com/haos-sim/haos/internal/iomatrix"
	"github.com/haos-sim/haos/internal/odt"
)

// DefaultPPMChannelMask is the channel mask a fresh core's matrix starts
// with.
const DefaultPPMChannelMask = 5

// bitRippersPerCore is the FIFO/bit-ripper slot count per core. Slot 0 is
// the only one this harness wires live input through; slot 1 exists for
// parsers that need a second parked position.
const bitRippersPerCore = 2

// Core owns one DSP core's module table, I/O matrix, and bit-ripper bank.
type Core struct {
	Table           *odt.Table
	Matrix          *iomatrix.Matrix
	rippers         [bitRippersPerCore]*bitripper.Ripper
	activeRipperIdx int
}

// NewCore constructs an initialized core: a zeroed matrix at the default
// mask, and bit-ripper 0 bound to FIFO 0.
func NewCore(table *odt.Table, fifoWords int, refillers [bitRippersPerCore]bitripper.Refiller) *Core {
	c := &Core{
		Table:  table,
		Matrix: iomatrix.New(DefaultPPMChannelMask),
	}
	for i := range c.rippers {
		var ref bitripper.Refiller
		if i < len(refillers) {
			ref = refillers[i]
		}
		c.rippers[i] = bitripper.New(fifoWords, ref)
	}
	return c
}

// Ripper returns the currently active bit-ripper for this core.
func (c *Core) Ripper() *bitripper.Ripper { return c.rippers[c.activeRipperIdx] }

// RipperAt returns a specific FIFO slot's bit-ripper.
func (c *Core) RipperAt(slot int) *bitripper.Ripper { return c.rippers[slot] }

// SelectRipper changes which FIFO slot is "active" for this core.
func (c *Core) SelectRipper(slot int) { c.activeRipperIdx = slot }
