// Package wavefile implements a minimal PCM WAV reader/writer: samples
// are always exchanged as 32-bit left-justified signed values regardless
// of the file's own bits-per-sample, matching the simulator API this is
// grounded on (original_source/sys/wave/wavefile.h).
package wavefile

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const (
	riffHeaderSize = 44
)

// Reader reads samples from a PCM WAV file, exposing its header fields
// and yielding 32-bit left-justified signed samples one at a time.
type Reader struct {
	f              *os.File
	Channels       int
	BitsPerSample  int
	SampleRate     int
	SamplesPerChan int64

	sampleCount int64
	dataEnd     int64
	eof         bool
}

// OpenReader parses a WAV header and positions the reader at the start of
// the data chunk.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wavefile: open %q: %w", path, err)
	}
	r := &Reader{f: f}
	if err := r.parseHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) parseHeader() error {
	var hdr [12]byte
	if _, err := io.ReadFull(r.f, hdr[:]); err != nil {
		return fmt.Errorf("wavefile: short RIFF header: %w", err)
	}
	if string(hdr[0:4]) != "RIFF" || string(hdr[8:12]) != "WAVE" {
		return fmt.Errorf("wavefile: not a RIFF/WAVE file")
	}

	for {
		var chunkHdr [8]byte
		if _, err := io.ReadFull(r.f, chunkHdr[:]); err != nil {
			return fmt.Errorf("wavefile: truncated chunk header: %w", err)
		}
		id := string(chunkHdr[0:4])
		size := int64(binary.LittleEndian.Uint32(chunkHdr[4:8]))

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r.f, body); err != nil {
				return fmt.Errorf("wavefile: truncated fmt chunk: %w", err)
			}
			r.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			r.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			r.BitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))
		case "data":
			pos, err := r.f.Seek(0, io.SeekCurrent)
			if err != nil {
				return err
			}
			r.dataEnd = pos + size
			bytesPerSample := r.BitsPerSample / 8
			if r.Channels > 0 && bytesPerSample > 0 {
				r.SamplesPerChan = size / int64(bytesPerSample) / int64(r.Channels)
			}
			return nil
		default:
			if _, err := r.f.Seek(size, io.SeekCurrent); err != nil {
				return fmt.Errorf("wavefile: skip chunk %q: %w", id, err)
			}
		}
	}
}

// EOF reports whether the reader has delivered its last channel sample.
func (r *Reader) EOF() bool { return r.eof }

// RecvSample returns the next 32-bit left-justified signed sample in
// interleaved channel order. compressedStream is accepted for parity with
// the source API but unused here: this reader only ever serves raw PCM.
func (r *Reader) RecvSample(compressedStream bool) int32 {
	if r.eof {
		return 0
	}
	pos, _ := r.f.Seek(0, io.SeekCurrent)
	if pos >= r.dataEnd {
		r.eof = true
		return 0
	}

	bytesPerSample := r.BitsPerSample / 8
	buf := make([]byte, bytesPerSample)
	if _, err := io.ReadFull(r.f, buf); err != nil {
		r.eof = true
		return 0
	}
	r.sampleCount++
	if pos+int64(bytesPerSample) >= r.dataEnd {
		r.eof = true
	}

	var raw int32
	switch r.BitsPerSample {
	case 8:
		raw = (int32(buf[0]) - 128) << 24
	case 16:
		raw = int32(int16(binary.LittleEndian.Uint16(buf))) << 16
	case 24:
		v := int32(buf[0]) | int32(buf[1])<<8 | int32(buf[2])<<16
		if buf[2]&0x80 != 0 {
			v |= int32(-1) << 24
		}
		raw = v << 8
	case 32:
		raw = int32(binary.LittleEndian.Uint32(buf))
	default:
		raw = 0
	}
	return raw
}

// SampleNumber returns how many samples have been read so far.
func (r *Reader) SampleNumber() int64 { return r.sampleCount }

// Close releases the underlying file.
func (r *Reader) Close() error { return r.f.Close() }

// Writer writes 32-bit left-justified signed samples to a PCM WAV file,
// rewriting the header on Flush so partial output remains a valid file.
type Writer struct {
	f             *os.File
	BitsPerSample int
	Channels      int
	SampleRate    int
	sampleCount   int64
}

// CreateWriter opens path for writing and reserves space for the header,
// to be filled in by the first Flush/Close.
func CreateWriter(path string, bitsPerSample, channels, sampleRate int) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("wavefile: create %q: %w", path, err)
	}
	w := &Writer{f: f, BitsPerSample: bitsPerSample, Channels: channels, SampleRate: sampleRate}
	if _, err := f.Write(make([]byte, riffHeaderSize)); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// SendSample writes one 32-bit left-justified signed sample, truncated to
// the writer's configured bit depth. rounding is accepted but not yet
// applied; truncation is the only write mode today.
func (w *Writer) SendSample(sample int32, rounding bool) error {
	_ = rounding
	w.sampleCount++
	switch w.BitsPerSample {
	case 8:
		return writeBytes(w.f, []byte{byte((sample >> 24) + 128)})
	case 16:
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(sample>>16))
		return writeBytes(w.f, b[:])
	case 24:
		v := sample >> 8
		b := []byte{byte(v), byte(v >> 8), byte(v >> 16)}
		return writeBytes(w.f, b)
	case 32:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(sample))
		return writeBytes(w.f, b[:])
	default:
		return fmt.Errorf("wavefile: unsupported bits-per-sample %d", w.BitsPerSample)
	}
}

func writeBytes(f *os.File, b []byte) error {
	_, err := f.Write(b)
	return err
}

// SampleNumber returns how many samples have been written so far.
func (w *Writer) SampleNumber() int64 { return w.sampleCount }

// Flush rewrites the RIFF/fmt/data header to reflect samples written so
// far, then syncs to disk, so a reader opening the file mid-run sees a
// valid partial WAV.
func (w *Writer) Flush() error {
	bytesPerSample := w.BitsPerSample / 8
	dataSize := w.sampleCount * int64(bytesPerSample)
	blockAlign := w.Channels * bytesPerSample
	byteRate := w.SampleRate * blockAlign

	var hdr [riffHeaderSize]byte
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(36+dataSize))
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(w.Channels))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(w.SampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(hdr[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(hdr[34:36], uint16(w.BitsPerSample))
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], uint32(dataSize))

	if _, err := w.f.WriteAt(hdr[:], 0); err != nil {
		return err
	}
	return w.f.Sync()
}

// Close flushes the header and releases the underlying file.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
