package modules

import (
	"github.com/haos-sim/haos/internal/core"
	"github.com/haos-sim/haos/internal/iomatrix"
	"github.com/haos-sim/haos/internal/odt"
)

// Fixed-point scale for host-comm-settable effect parameters: 32768
// represents 1.0, so a parameter word holds a signed Q15 value.
const q15One = 32768

func q15ToFloat(v int32) float64 { return float64(v) / q15One }

// MaxFIRTaps bounds a FIR effect's coefficient table.
const MaxFIRTaps = 32

// FIR MCV layout: word 0 is the active tap count, words 1..MaxFIRTaps the
// Q15 coefficients. Host-comm rewrites them between Postkick and Timer.
const (
	firTapCountOffset = 0
	firCoefBase       = 1
)

// FIREffect convolves each active channel's brick with a host-configured
// coefficient table, carrying tap history across brick boundaries so the
// filter behaves identically whether a signal arrives in one brick or
// many.
type FIREffect struct {
	sys     *core.System
	mif     *odt.MIF
	history [iomatrix.NumChannels][MaxFIRTaps - 1]iomatrix.Sample
}

// NewFIREffect wires a FIR effect over mif, growing its MCV to the layout
// above if needed. A fresh MCV defaults to a single unity tap, i.e. a
// pass-through filter until host-comm programs real coefficients.
func NewFIREffect(sys *core.System, mif *odt.MIF) *FIREffect {
	if len(mif.MCV) < firCoefBase+MaxFIRTaps {
		mif.MCV = make(odt.MCV, firCoefBase+MaxFIRTaps)
	}
	mif.MCV[firTapCountOffset] = 1
	mif.MCV[firCoefBase] = q15One
	return &FIREffect{sys: sys, mif: mif}
}

// Hooks returns this module's entry-point table.
func (e *FIREffect) Hooks() odt.Hooks {
	return odt.Hooks{Brick: e.onBrick}
}

func (e *FIREffect) onBrick() {
	taps := int(e.mif.MCV[firTapCountOffset])
	if taps < 1 {
		return
	}
	if taps > MaxFIRTaps {
		taps = MaxFIRTaps
	}

	for ch := 0; ch < iomatrix.NumChannels; ch++ {
		if !e.sys.IsActiveChannel(ch) {
			continue
		}
		brick := e.sys.OutputPointer(ch)
		hist := &e.history[ch]
		var in [MaxFIRTaps - 1 + iomatrix.BrickSize]iomatrix.Sample
		copy(in[:], hist[:taps-1])
		copy(in[taps-1:], brick[:])
		for i := 0; i < iomatrix.BrickSize; i++ {
			var acc float64
			for t := 0; t < taps; t++ {
				acc += q15ToFloat(e.mif.MCV[firCoefBase+t]) * in[taps-1+i-t]
			}
			brick[i] = acc
		}
		copy(hist[:taps-1], in[iomatrix.BrickSize:iomatrix.BrickSize+taps-1])
	}
}

// MaxDelaySamples bounds a delay effect's line length.
const MaxDelaySamples = 4096

// Delay MCV layout: word 0 is the delay in samples, word 1 the Q15
// feedback gain, word 2 the Q15 wet/dry mix.
const (
	delayLenOffset      = 0
	delayFeedbackOffset = 1
	delayMixOffset      = 2
	delayMCVWords       = 3
)

// DelayEffect mixes a host-configured echo into each active channel. Its
// delay lines are not part of the module's static state: the module
// raises a memory-allocation request at kickoff and sizes the lines in
// its Postmalloc hook, after every module's Premalloc has run.
type DelayEffect struct {
	sys      *core.System
	mif      *odt.MIF
	lines    [iomatrix.NumChannels][]iomatrix.Sample
	writePos int
	lineLen  int
}

// NewDelayEffect wires a delay effect over mif. The MCV defaults to a
// zero-length, fully dry delay; host-comm programs the real parameters
// before the allocation hooks size the lines.
func NewDelayEffect(sys *core.System, mif *odt.MIF) *DelayEffect {
	if len(mif.MCV) < delayMCVWords {
		mif.MCV = make(odt.MCV, delayMCVWords)
	}
	return &DelayEffect{sys: sys, mif: mif}
}

// Hooks returns this module's entry-point table.
func (e *DelayEffect) Hooks() odt.Hooks {
	return odt.Hooks{
		Postkick:   e.onPostkick,
		Premalloc:  e.onPremalloc,
		Postmalloc: e.onPostmalloc,
		Brick:      e.onBrick,
	}
}

func (e *DelayEffect) onPostkick() {
	e.sys.RequestMemAlloc()
}

// onPremalloc clamps the host-programmed delay length to the supported
// range before any module allocates against it.
func (e *DelayEffect) onPremalloc() {
	n := int(e.mif.MCV[delayLenOffset])
	if n < 0 {
		n = 0
	}
	if n > MaxDelaySamples {
		n = MaxDelaySamples
	}
	e.lineLen = n
}

func (e *DelayEffect) onPostmalloc() {
	for ch := range e.lines {
		if e.lineLen == 0 {
			e.lines[ch] = nil
			continue
		}
		e.lines[ch] = make([]iomatrix.Sample, e.lineLen)
	}
	e.writePos = 0
}

func (e *DelayEffect) onBrick() {
	if e.lineLen == 0 {
		return
	}
	feedback := q15ToFloat(e.mif.MCV[delayFeedbackOffset])
	mix := q15ToFloat(e.mif.MCV[delayMixOffset])

	for ch := 0; ch < iomatrix.NumChannels; ch++ {
		if !e.sys.IsActiveChannel(ch) {
			continue
		}
		brick := e.sys.OutputPointer(ch)
		line := e.lines[ch]
		pos := e.writePos
		for i := 0; i < iomatrix.BrickSize; i++ {
			delayed := line[pos]
			line[pos] = brick[i] + delayed*feedback
			brick[i] = brick[i]*(1-mix) + delayed*mix
			pos = (pos + 1) % e.lineLen
		}
	}
	e.writePos = (e.writePos + iomatrix.BrickSize) % e.lineLen
}
