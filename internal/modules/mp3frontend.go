package modules

import (
	"github.com/haos-sim/haos/internal/bitripper"
	"github.com/haos-sim/haos/internal/core"
	"github.com/haos-sim/haos/internal/iomatrix"
	"github.com/haos-sim/haos/internal/odt"
)

// MPEG-1 Layer III framing constants.
const (
	MP3SamplesPerFrame = 1152
	mp3BricksPerFrame  = MP3SamplesPerFrame / iomatrix.BrickSize
	mp3MaxChannels     = 2

	// mp3SyncScanLimit bounds how many byte positions a single sync scan
	// probes before the front-end declares the stream unrecoverable.
	mp3SyncScanLimit = 8192
)

// mp3BitrateKbps maps the header's 4-bit bitrate index for MPEG-1 Layer
// III. Index 0 ("free format") and 15 are treated as invalid.
var mp3BitrateKbps = [16]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320}

// mp3SampleRate maps the header's 2-bit sample-rate index for MPEG-1.
var mp3SampleRate = [4]int32{44100, 48000, 32000, 0}

// FrameHeader holds the fields of one parsed MPEG-1 Layer III frame
// header, plus the derived total frame length.
type FrameHeader struct {
	BitrateKbps  int
	SampleRate   int32
	Padding      bool
	CRCProtected bool
	ChannelMode  int // 0 stereo, 1 joint stereo, 2 dual channel, 3 mono
	Channels     int
	FrameBytes   int
}

// parseFrameHeader decodes a candidate 32-bit header word, reporting
// whether it is a valid MPEG-1 Layer III header this front-end handles.
func parseFrameHeader(w uint32) (FrameHeader, bool) {
	if (w>>21)&0x7FF != 0x7FF {
		return FrameHeader{}, false
	}
	version := (w >> 19) & 3
	layer := (w >> 17) & 3
	if version != 3 || layer != 1 {
		return FrameHeader{}, false
	}
	bitrateIdx := (w >> 12) & 0xF
	srIdx := (w >> 10) & 3
	if bitrateIdx == 0 || bitrateIdx == 15 || srIdx == 3 {
		return FrameHeader{}, false
	}
	h := FrameHeader{
		BitrateKbps:  mp3BitrateKbps[bitrateIdx],
		SampleRate:   mp3SampleRate[srIdx],
		Padding:      (w>>9)&1 == 1,
		CRCProtected: (w>>16)&1 == 0,
		ChannelMode:  int((w >> 6) & 3),
	}
	h.Channels = 2
	if h.ChannelMode == 3 {
		h.Channels = 1
	}
	h.FrameBytes = 144 * h.BitrateKbps * 1000 / int(h.SampleRate)
	if h.Padding {
		h.FrameBytes++
	}
	return h, true
}

// FrameSynth turns one frame's compressed payload into PCM. The concrete
// subband/IMDCT math lives behind this interface; the front-end owns
// framing, sync recovery, and payload-boundary accounting regardless of
// how much of the payload the synth actually reads. The return value is
// samples produced per channel; zero means the frame could not be
// decoded and must be skipped.
type FrameSynth interface {
	DecodeFrame(br *bitripper.Ripper, hdr FrameHeader, out *[mp3MaxChannels][MP3SamplesPerFrame]iomatrix.Sample) int
}

// SilenceSynth is the placeholder synth wired when no real decode math is
// linked in: it reads nothing from the payload and yields full-length
// frames of silence, so frame cadence, metadata, and output duration all
// behave as if a real decoder were present.
type SilenceSynth struct{}

// DecodeFrame implements FrameSynth.
func (SilenceSynth) DecodeFrame(br *bitripper.Ripper, hdr FrameHeader, out *[mp3MaxChannels][MP3SamplesPerFrame]iomatrix.Sample) int {
	for ch := 0; ch < hdr.Channels; ch++ {
		for i := range out[ch] {
			out[ch][i] = 0
		}
	}
	return MP3SamplesPerFrame
}

// MP3FrontEnd is the Layer III decoder module: it scans the bit-ripper
// for frame sync, parses headers, hands payloads to a FrameSynth, and
// stages the resulting PCM in per-channel brick queues so the background
// decode of one frame can overlap the foreground drain of the previous
// one. Each frame's first brick transfer carries frame metadata, so the
// scheduler fires Frame hooks once per compressed frame.
type MP3FrontEnd struct {
	sys    *core.System
	mif    *odt.MIF
	synth  FrameSynth
	source eofReporter

	queues   [mp3MaxChannels]*brickQueue
	metaQ    []odt.FrameMetadata
	channels int
	popCount int
	done     bool
}

// NewMP3FrontEnd wires a front-end over the active core's bit-ripper.
// synth may be nil, in which case SilenceSynth stands in. source, if
// non-nil, is consulted during sync scans so a stream that ends between
// frames terminates the run instead of spinning on pad words.
func NewMP3FrontEnd(sys *core.System, mif *odt.MIF, synth FrameSynth, source eofReporter) *MP3FrontEnd {
	if synth == nil {
		synth = SilenceSynth{}
	}
	d := &MP3FrontEnd{sys: sys, mif: mif, synth: synth, source: source}
	for ch := range d.queues {
		d.queues[ch] = newBrickQueue(mp3BricksPerFrame)
	}
	return d
}

// Hooks returns this module's entry-point table: Brick drains one staged
// brick per channel into the core, Background refills the staging queues.
func (d *MP3FrontEnd) Hooks() odt.Hooks {
	return odt.Hooks{
		Brick:      d.onBrick,
		Background: d.onBackground,
	}
}

// Done reports whether the front-end has given up on finding another
// frame (source exhausted or sync unrecoverable).
func (d *MP3FrontEnd) Done() bool { return d.done }

func (d *MP3FrontEnd) onBrick() {
	if d.queues[0].len() == 0 && !d.decodeFrame() {
		d.publishEOF()
		return
	}

	var bricks [mp3MaxChannels]iomatrix.Brick
	var ptrs [iomatrix.NumChannels]*iomatrix.Brick
	for ch := 0; ch < d.channels; ch++ {
		if d.queues[ch].pop(&bricks[ch]) {
			ptrs[ch] = &bricks[ch]
		}
	}

	var meta *odt.FrameMetadata
	if d.popCount%mp3BricksPerFrame == 0 && len(d.metaQ) > 0 {
		meta = &d.metaQ[0]
		d.metaQ = d.metaQ[1:]
	}
	d.popCount++

	d.sys.CopyBrickToIO(core.FramePtrs{Frame: meta, Source: ptrs})
	d.publishEOF()
}

// onBackground tops the staging queues back up to capacity, decoding at
// most framesBuffered frames per pass so a background call never runs
// longer than the queues it fills.
func (d *MP3FrontEnd) onBackground() {
	for i := 0; i < framesBuffered; i++ {
		if d.done || d.queues[0].free() < mp3BricksPerFrame {
			return
		}
		if !d.decodeFrame() {
			return
		}
	}
}

func (d *MP3FrontEnd) publishEOF() {
	if d.done {
		d.sys.Input.InputEOF = true
	} else if d.source != nil {
		d.sys.Input.InputEOF = d.source.EOF()
	}
}

// decodeFrame syncs to the next frame header, runs the synth over the
// payload, consumes whatever payload the synth left unread, and stages
// the PCM. It returns false when no frame was staged: the stream ended or
// sync was lost (done is then set), the queues lack room for a frame, or
// the synth produced nothing and the frame was skipped.
func (d *MP3FrontEnd) decodeFrame() bool {
	if d.done {
		return false
	}
	br := d.sys.Ripper()

	hdr, ok := d.syncToFrame(br)
	if !ok {
		d.done = true
		return false
	}
	if d.queues[0].free() < mp3BricksPerFrame {
		return false
	}
	d.channels = hdr.Channels

	// Everything from here to the end of the frame is accounted against
	// the header's frame length, no matter how much the synth reads.
	mark := br.SaveAuxState()
	br.SkipBits(32)
	if hdr.CRCProtected {
		br.SkipBits(16)
	}

	var pcm [mp3MaxChannels][MP3SamplesPerFrame]iomatrix.Sample
	produced := d.synth.DecodeFrame(br, hdr, &pcm)

	consumed := br.BitCntStates(mark, br.SaveAuxState())
	if rest := int32(hdr.FrameBytes*8) - consumed; rest > 0 {
		br.SkipBits(rest)
	}

	if produced == 0 {
		// Undecodable frame: skipped, no PCM forwarded.
		return false
	}

	mask := uint32(1)<<uint(hdr.Channels) - 1
	for ch := 0; ch < hdr.Channels; ch++ {
		for b := 0; b < mp3BricksPerFrame; b++ {
			var brick iomatrix.Brick
			copy(brick[:], pcm[ch][b*iomatrix.BrickSize:(b+1)*iomatrix.BrickSize])
			d.queues[ch].push(&brick)
		}
	}
	d.metaQ = append(d.metaQ, odt.FrameMetadata{
		InputChannelMask:  mask,
		OutputChannelMask: mask,
		SampleRate:        hdr.SampleRate,
		DecodeInfo:        odt.DecodeMP3,
	})
	return true
}

// syncToFrame advances the cursor byte by byte until the next 32 bits
// parse as a valid frame header, leaving the cursor positioned on the
// header itself. The scan gives up once the source reports EOF (the
// remaining words are feeder padding, which never carries sync) or after
// probing mp3SyncScanLimit byte positions.
func (d *MP3FrontEnd) syncToFrame(br *bitripper.Ripper) (FrameHeader, bool) {
	for probes := 0; probes < mp3SyncScanLimit; probes++ {
		if hdr, ok := parseFrameHeader(br.Peek(32)); ok {
			return hdr, true
		}
		if d.source != nil && d.source.EOF() {
			return FrameHeader{}, false
		}
		br.SkipBits(8)
	}
	return FrameHeader{}, false
}
