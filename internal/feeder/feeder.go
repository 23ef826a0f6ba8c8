// Package feeder implements the Stream Feeder (C6): pulling words from an
// external source into a bit-ripper's FIFO, padding once the source is
// exhausted (zero for raw streams, a sentinel for compressed ones).
package feeder

import (
	"encoding/binary"
	"io"

	"github.com/haos-sim/haos/internal/bitripper"
	"github.com/haos-sim/haos/internal/wavefile"
)

// PadWord is written in place of real data once a compressed-stream
// feeder's source is exhausted. Uncompressed streams pad with zero
// instead.
const PadWord uint32 = 0xDEDACEDA

// Feeder is anything that can satisfy a bit-ripper's refill request and
// report whether its underlying source is exhausted.
type Feeder interface {
	bitripper.Refiller
	EOF() bool
}

// FileFeeder reads raw 32-bit words from a byte stream (a WAV reader's
// samples via NewWavFileFeeder, or any other byte stream) and pads forever
// once the source runs dry: zero for raw PCM, PadWord when Compressed is
// set.
type FileFeeder struct {
	src        io.Reader
	Compressed bool
	eof        bool
}

// NewFileFeeder wraps src, pulling 4 bytes at a time in big-endian word
// order to match the bit-ripper's MSB-first bit ordering.
func NewFileFeeder(src io.Reader) *FileFeeder {
	return &FileFeeder{src: src}
}

// NewWavFileFeeder adapts a wavefile.Reader's interleaved samples into the
// word stream the bit-ripper consumes: one word per sample, each a 32-bit
// left-justified signed value as returned by RecvSample.
func NewWavFileFeeder(r *wavefile.Reader) *FileFeeder {
	return &FileFeeder{src: &wavReaderAdapter{r: r}}
}

func (f *FileFeeder) padWord() uint32 {
	if f.Compressed {
		return PadWord
	}
	return 0
}

// burstWords is the most words fetched per FillInputFIFO invocation; the
// bit-ripper calls back for another burst while its FIFO is still empty
// or short of the dipstick level it is waiting for.
const burstWords = 32

// FillInputFIFO implements bitripper.Refiller: pull up to one 32-word
// burst from the source (or the exhausted-source pad word) into the
// FIFO.
func (f *FileFeeder) FillInputFIFO(r *bitripper.Ripper) error {
	free := r.GetFreeSpaceInWords()
	if free == 0 {
		return nil
	}
	n := free
	if n > burstWords {
		n = burstWords
	}
	words := make([]uint32, n)
	for i := range words {
		if f.eof {
			words[i] = f.padWord()
			continue
		}
		var buf [4]byte
		if _, err := io.ReadFull(f.src, buf[:]); err != nil {
			f.eof = true
			words[i] = f.padWord()
			continue
		}
		words[i] = binary.BigEndian.Uint32(buf[:])
	}
	r.WriteAt(words)
	r.AdvanceWritePtr(n)
	return nil
}

// EOF reports whether the underlying source has been exhausted.
func (f *FileFeeder) EOF() bool { return f.eof }

// wavReaderAdapter turns a wavefile.Reader's per-sample pull interface
// into an io.Reader of raw big-endian 32-bit words, so FileFeeder can
// treat a WAV source exactly like a raw byte stream.
type wavReaderAdapter struct {
	r   *wavefile.Reader
	buf [4]byte
	pos int
}

func (a *wavReaderAdapter) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if a.pos == 0 {
			if a.r.EOF() {
				return n, io.EOF
			}
			sample := a.r.RecvSample(false)
			binary.BigEndian.PutUint32(a.buf[:], uint32(sample))
		}
		c := copy(p[n:], a.buf[a.pos:])
		a.pos += c
		n += c
		if a.pos == 4 {
			a.pos = 0
		}
	}
	return n, nil
}
