package modules

import (
	"github.com/haos-sim/haos/internal/core"
	"github.com/haos-sim/haos/internal/iomatrix"
	"github.com/haos-sim/haos/internal/odt"
)

// NoSource marks a channel remap slot as "no input routed here".
const NoSource = -1

// channelRemapBase is where the first NumChannels ints of an AudioManager's
// MCV hold each output channel's source channel (or NoSource); the next
// NumChannels ints are per-channel mute flags (non-zero silences a channel
// without clearing its remap).
const channelRemapBase = 0
const muteFlagBase = iomatrix.NumChannels

// AudioManager mutates the brick a decoder just produced in place: it
// remaps channels per its MCV-configured routing table and mutes any
// channel flagged in the mute table, then republishes the active core's
// valid-channel mask.
type AudioManager struct {
	sys *core.System
	mif *odt.MIF
}

// NewAudioManager wires an audio manager over mif, whose MCV must be at
// least 2*iomatrix.NumChannels long (remap table followed by mute flags).
// A fresh MCV of that length defaults every channel to routing from
// itself, unmuted.
func NewAudioManager(sys *core.System, mif *odt.MIF) *AudioManager {
	if len(mif.MCV) < 2*iomatrix.NumChannels {
		mif.MCV = make(odt.MCV, 2*iomatrix.NumChannels)
	}
	for ch := 0; ch < iomatrix.NumChannels; ch++ {
		mif.MCV[channelRemapBase+ch] = int32(ch)
	}
	return &AudioManager{sys: sys, mif: mif}
}

// Hooks returns this module's entry-point table.
func (a *AudioManager) Hooks() odt.Hooks {
	return odt.Hooks{
		Brick: a.onBrick,
	}
}

func (a *AudioManager) onBrick() {
	validIn := a.sys.GetValidChannelMask()

	var remapped iomatrix.ChannelMask
	var snapshot [iomatrix.NumChannels]iomatrix.Brick
	for ch := 0; ch < iomatrix.NumChannels; ch++ {
		snapshot[ch] = *a.sys.OutputPointer(ch)
	}

	for ch := 0; ch < iomatrix.NumChannels; ch++ {
		src := int(a.mif.MCV[channelRemapBase+ch])
		dst := a.sys.OutputPointer(ch)
		if src == NoSource {
			continue
		}
		remapped |= 1 << uint(ch)
		if src != ch {
			*dst = snapshot[src]
		}
		if a.mif.MCV[muteFlagBase+ch] != 0 {
			for i := range dst {
				dst[i] = 0
			}
		}
	}

	// The output mask is the union of the pre-existing valid-input mask
	// and the remap table's own coverage, not a replacement of one by the
	// other: a channel stays published if it either came in valid or has
	// a remap source routed to it.
	a.sys.SetValidChannelMask(validIn | remapped)
}
