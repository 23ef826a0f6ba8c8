// Package bitripper implements a bit-granular reader over a circular FIFO
// of 32-bit words: extract/peek arbitrary-width fields, skip forward and
// backward, align to byte/word/dword boundaries, and checkpoint the read
// position so a parser can roam without disturbing the main decode cursor.
package bitripper

import "fmt"

// MaxBits is the largest field extractBits/peek can return in one call.
const MaxBits = 32

// Refiller supplies more words to a Ripper when its FIFO runs dry. Feeders
// implement this to hand off control cooperatively instead of blocking.
type Refiller interface {
	FillInputFIFO(r *Ripper) error
}

// state is one read cursor: the word currently being consumed (left-aligned,
// already-consumed bits shifted out the top), how many valid bits remain in
// it, and the index of the next word to load from the FIFO.
type state struct {
	currentWord   uint32
	bitsRemaining uint32
	readPtr       int
}

// Ripper is a bit-addressable reader over a fixed-size circular word FIFO.
// It is not safe for concurrent use; the scheduler drives it from a single
// goroutine under the cooperative execution model.
type Ripper struct {
	fifo     []uint32
	writePtr int
	fifoFull bool

	current    state
	mainBackup state
	inAuxState bool

	alignmentInfo uint32
	overflowCount uint32

	refiller Refiller
}

// New allocates a Ripper over a FIFO of the given word capacity. sizeWords
// must be positive; it is never resized after construction.
func New(sizeWords int, refiller Refiller) *Ripper {
	if sizeWords <= 0 {
		panic("bitripper: sizeWords must be positive")
	}
	return &Ripper{
		fifo:     make([]uint32, sizeWords),
		refiller: refiller,
	}
}

func maskLowBits(n uint32) uint32 {
	if n >= 32 {
		return 0xFFFFFFFF
	}
	return (1 << n) - 1
}

func (r *Ripper) size() int { return len(r.fifo) }

func wrapIndex(i, size int) int {
	i %= size
	if i < 0 {
		i += size
	}
	return i
}

// effectiveReadPtr is the read position used for producer-side collision
// checks and for the dipstick while in auxiliary state: the main cursor's
// true position, not the roaming aux cursor.
func (r *Ripper) effectiveReadPtr() int {
	if r.inAuxState {
		return r.mainBackup.readPtr
	}
	return r.current.readPtr
}

// loadNextWord blocks (via the refiller) until a word is available, then
// loads it into s, fully left-justified. s is normally &r.current; a
// Peek call passes a throwaway copy so the refill side effects on the
// FIFO (writePtr, fifoFull) are real but the read cursor they commit to
// is not.
func (r *Ripper) loadNextWord(s *state) {
	// A set full flag means data is available at pointer equality no
	// matter which cursor is asking; waiting on refill there would
	// deadlock, since a full FIFO has no free space to fill.
	isMain := s == &r.current && !r.inAuxState
	for s.readPtr == r.writePtr && !r.fifoFull {
		if r.refiller == nil {
			panic("bitripper: FIFO empty and no refiller installed")
		}
		if err := r.refiller.FillInputFIFO(r); err != nil {
			panic(fmt.Sprintf("bitripper: refill failed: %v", err))
		}
	}
	s.currentWord = r.fifo[wrapIndex(s.readPtr, r.size())]
	s.readPtr = wrapIndex(s.readPtr+1, r.size())
	s.bitsRemaining = 32
	if isMain && s.readPtr == r.writePtr {
		// consuming the last available word drains the FIFO to "empty"
		r.fifoFull = false
	}
}

// extractFrom performs the extract algorithm against an arbitrary state,
// mutating only that state (and, via loadNextWord, the shared FIFO read
// side only when s is r.current).
func (r *Ripper) extractFrom(s *state, n uint32) uint32 {
	if n < 1 || n > MaxBits {
		panic(fmt.Sprintf("bitripper: bitsNeeded %d out of range [1,%d]", n, MaxBits))
	}
	var result uint32
	remaining := n
	for remaining > 0 {
		if s.bitsRemaining == 0 {
			r.loadNextWord(s)
		}
		take := remaining
		if take > s.bitsRemaining {
			take = s.bitsRemaining
		}
		chunk := s.currentWord >> (32 - take)
		result = (result << take) | (chunk & maskLowBits(take))
		s.currentWord <<= take
		s.bitsRemaining -= take
		remaining -= take
	}
	return result
}

// ExtractBits returns the next n bits (MSB-first in the stream, packed
// into the low n bits of the result) and advances the cursor.
func (r *Ripper) ExtractBits(n uint32) uint32 {
	return r.extractFrom(&r.current, n)
}

// Peek returns the same value ExtractBits(n) would, without mutating the
// read cursor. A word spanning read is allowed to touch the FIFO (via the
// refiller) but never commits to r.current.
func (r *Ripper) Peek(n uint32) uint32 {
	tmp := r.current
	return r.extractFrom(&tmp, n)
}

// SkipBits advances the cursor by k bits; negative k rewinds.
func (r *Ripper) SkipBits(k int32) {
	if k >= 0 {
		r.skipForward(uint32(k))
	} else {
		r.skipBackward(uint32(-k))
	}
}

func (r *Ripper) skipForward(bits uint32) {
	wasAux := r.inAuxState
	r.inAuxState = false
	remaining := bits
	for remaining > 0 {
		if r.current.bitsRemaining == 0 {
			r.loadNextWord(&r.current)
		}
		take := remaining
		if take > r.current.bitsRemaining {
			take = r.current.bitsRemaining
		}
		r.current.currentWord <<= take
		r.current.bitsRemaining -= take
		remaining -= take
	}
	r.inAuxState = wasAux
}

func (r *Ripper) skipBackward(bits uint32) {
	size := r.size()
	consumedFromCurrentWord := int64(32 - r.current.bitsRemaining)
	target := consumedFromCurrentWord - int64(bits)
	wordsBack := 0
	for target < 0 {
		target += 32
		wordsBack++
	}
	currentWordIdx := wrapIndex(r.current.readPtr-1, size)
	newWordIdx := wrapIndex(currentWordIdx-wordsBack, size)
	if target == 0 {
		// Landing on a word boundary: park before that word with nothing
		// loaded, the same form a cursor has after consuming a whole word.
		r.current.readPtr = newWordIdx
		r.current.bitsRemaining = 0
		r.current.currentWord = 0
		if newWordIdx == r.writePtr {
			r.fifoFull = true
		}
		return
	}
	newReadPtr := wrapIndex(newWordIdx+1, size)
	newBitsRemaining := uint32(32 - target)
	newCurrentWord := r.fifo[newWordIdx] << uint32(target)

	r.current.readPtr = newReadPtr
	r.current.bitsRemaining = newBitsRemaining
	r.current.currentWord = newCurrentWord
}

// ReadDipstick returns the number of bits currently available to read.
func (r *Ripper) ReadDipstick() uint32 {
	s := &r.current
	if r.inAuxState {
		s = &r.mainBackup
	}
	size := r.size()
	words := wrapIndex(r.writePtr-s.readPtr, size)
	if words == 0 && r.fifoFull {
		words = size
	}
	return uint32(words)*32 + s.bitsRemaining
}

// WaitOnDipstick blocks, refilling as needed, until at least bitsRequired
// bits are available.
func (r *Ripper) WaitOnDipstick(bitsRequired uint32) {
	if bitsRequired > uint32(r.size())*32 {
		panic("bitripper: bitsRequired exceeds FIFO capacity")
	}
	for r.ReadDipstick() < bitsRequired {
		if r.refiller == nil {
			panic("bitripper: dipstick wait with no refiller installed")
		}
		if err := r.refiller.FillInputFIFO(r); err != nil {
			panic(fmt.Sprintf("bitripper: refill failed: %v", err))
		}
	}
}

// GetFreeSpaceInWords returns how many 32-bit word slots are free.
func (r *Ripper) GetFreeSpaceInWords() uint32 {
	return uint32(r.size()) - r.ReadDipstick()/32
}

// WriteAt writes words into the FIFO starting at the current write
// position, wrapping as needed. It does not advance the write pointer.
func (r *Ripper) WriteAt(words []uint32) {
	size := r.size()
	for i, w := range words {
		r.fifo[wrapIndex(r.writePtr+i, size)] = w
	}
}

// AdvanceWritePtr moves the write pointer forward by n words and sets the
// full flag on collision with the reader's effective position. Advancing
// an already-full FIFO clobbers unread words; that producer overrun is
// counted rather than stopped.
func (r *Ripper) AdvanceWritePtr(n uint32) {
	if r.fifoFull && n > 0 {
		r.overflowCount++
	}
	r.writePtr = wrapIndex(r.writePtr+int(n), r.size())
	if r.writePtr == r.effectiveReadPtr() {
		r.fifoFull = true
	}
}

// OverflowCount returns how many times the producer has advanced into an
// already-full FIFO.
func (r *Ripper) OverflowCount() uint32 { return r.overflowCount }

// SaveMainState freezes the main cursor into mainBackup and enters aux mode.
func (r *Ripper) SaveMainState() {
	r.mainBackup = r.current
	r.inAuxState = true
}

// RestoreMainState undoes SaveMainState, returning to the frozen position.
func (r *Ripper) RestoreMainState() {
	r.current = r.mainBackup
	r.inAuxState = false
}

// AuxState is an externally-storable snapshot of a Ripper's read cursor.
type AuxState struct {
	currentWord   uint32
	bitsRemaining uint32
	readPtr       int
}

// SaveAuxState copies the current cursor into an externally owned snapshot.
func (r *Ripper) SaveAuxState() AuxState {
	return AuxState(r.current)
}

// LoadAuxState replaces the current cursor with a previously saved snapshot
// without touching the aux-state flag.
func (r *Ripper) LoadAuxState(s AuxState) {
	r.current = state(s)
}

// LoadMainState replaces the current cursor and clears the aux flag.
func (r *Ripper) LoadMainState(s AuxState) {
	r.current = state(s)
	r.inAuxState = false
}

// GetAuxStateFlag reports whether the ripper is currently parked in
// auxiliary mode.
func (r *Ripper) GetAuxStateFlag() bool { return r.inAuxState }

// bitDistance is the distance metric shared by BitCntStates and
// BitCntMainState: word distance with mod-size wrap, plus a plain signed
// subtraction of the bits still unconsumed in each cursor's current word.
// No correction is applied beyond that subtraction: when both cursors sit
// in the same word and to has more bits remaining than from, the result
// is negative. Callers rely on that exact arithmetic.
func (r *Ripper) bitDistance(from, to AuxState) int32 {
	size := r.size()
	wordDist := int32(wrapIndex(to.readPtr-from.readPtr, size))
	return wordDist*32 + int32(from.bitsRemaining) - int32(to.bitsRemaining)
}

// BitCntStates returns the bit distance from one saved state to another.
func (r *Ripper) BitCntStates(from, to AuxState) int32 {
	return r.bitDistance(from, to)
}

// BitCntMainState returns the bit distance from the true main position
// (current, or mainBackup while in aux state) to the given state.
func (r *Ripper) BitCntMainState(to AuxState) int32 {
	from := AuxState(r.current)
	if r.inAuxState {
		from = AuxState(r.mainBackup)
	}
	return r.bitDistance(from, to)
}

// SaveAlignment records the bit-level alignment of a position offset bits
// from the current cursor, for later use by the alignTo* family.
func (r *Ripper) SaveAlignment(offset int32) {
	v := int32(r.current.bitsRemaining) - offset
	v %= 32
	if v < 0 {
		v += 32
	}
	r.alignmentInfo = uint32(v)
}

func (r *Ripper) alignTo(boundaryBits uint32) {
	skip := (r.current.bitsRemaining + 32 - r.alignmentInfo) % boundaryBits
	r.SkipBits(int32(skip))
}

// AlignToByte advances to the next 8-bit boundary relative to the saved
// alignment reference.
func (r *Ripper) AlignToByte() { r.alignTo(8) }

// AlignToWord advances to the next 16-bit boundary relative to the saved
// alignment reference.
func (r *Ripper) AlignToWord() { r.alignTo(16) }

// AlignToDWord advances to the next 32-bit boundary relative to the saved
// alignment reference.
func (r *Ripper) AlignToDWord() { r.alignTo(32) }
