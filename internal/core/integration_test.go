package core_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/haos-sim/haos/internal/bitripper"
	"github.com/haos-sim/haos/internal/core"
	"github.com/haos-sim/haos/internal/feeder"
	"github.com/haos-sim/haos/internal/iomatrix"
	"github.com/haos-sim/haos/internal/modules"
	"github.com/haos-sim/haos/internal/odt"
	"github.com/haos-sim/haos/internal/sink"
	"github.com/haos-sim/haos/internal/wavefile"
)

// writeTestWav creates a stereo 16-bit WAV file with nBricks*16 samples
// per channel, channel 0 holding values base..base+n-1 and channel 1
// holding their negation, so remap/mute scenarios have two distinguishable
// streams to route between.
func writeTestWav(t *testing.T, path string, nBricks, base int) {
	t.Helper()
	w, err := wavefile.CreateWriter(path, 16, 2, 48000)
	require.NoError(t, err)
	n := nBricks * 16
	for i := 0; i < n; i++ {
		left := int32(base+i) << 16
		right := -int32(base+i) << 16
		require.NoError(t, w.SendSample(left, false))
		require.NoError(t, w.SendSample(right, false))
	}
	require.NoError(t, w.Flush())
	require.NoError(t, w.Close())
}

// buildSystem wires one core with a PCM decoder feeding an audio manager,
// reading from inPath and writing to outPath, mirroring cmd/haossim's
// wiring at a much smaller scale.
func buildSystem(t *testing.T, inPath, outPath string, fg2bg int) (*core.System, *odt.MIF, func()) {
	t.Helper()
	r, err := wavefile.OpenReader(inPath)
	require.NoError(t, err)
	f := feeder.NewWavFileFeeder(r)

	var refillers [2]bitripper.Refiller
	refillers[0] = f

	table := &odt.Table{}
	mif1 := &odt.MIF{}
	mif2 := &odt.MIF{}
	require.NoError(t, table.Add(odt.Entry{MIF: mif1, ModuleID: 0}))
	require.NoError(t, table.Add(odt.Entry{MIF: mif2, ModuleID: 1}))

	c := core.NewCore(table, 256, refillers)
	sys := core.New([]*core.Core{c}, fg2bg)

	dec := modules.NewPCMDecoder(sys, mif1, r.Channels, int32(r.SampleRate), f)
	am := modules.NewAudioManager(sys, mif2)
	mif1.MCT = dec.Hooks()
	mif2.MCT = am.Hooks()

	w, err := wavefile.CreateWriter(outPath, 16, r.Channels, r.SampleRate)
	require.NoError(t, err)
	outChannels := []int{0, 1}
	sys.Sink = sink.NewWaveSink(w, outChannels)

	sys.Input.InputEOF = false
	return sys, mif2, func() {
		r.Close()
		w.Close()
	}
}

func readInt16Samples(t *testing.T, path string, channels int) [][]int16 {
	t.Helper()
	r, err := wavefile.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	out := make([][]int16, channels)
	for r.SampleNumber() < r.SamplesPerChan*int64(channels) && !r.EOF() {
		ch := int(r.SampleNumber()) % channels
		raw := r.RecvSample(false)
		out[ch] = append(out[ch], int16(raw>>16))
	}
	return out
}

// S1: a PCM stream routed straight through an unmuted, identity-remapped
// audio manager comes out within ±1 LSB of what went in.
func TestScenarioPassthrough(t *testing.T) {
	dir := t.TempDir()
	in := dir + "/in.wav"
	out := dir + "/out.wav"
	writeTestWav(t, in, 2, 100)

	sys, _, closeAll := buildSystem(t, in, out, 1)
	require.NoError(t, sys.Run(context.Background(), nil))
	closeAll()

	got := readInt16Samples(t, out, 2)
	require.GreaterOrEqual(t, len(got[0]), 32)
	for i := 0; i < 32; i++ {
		wantL := int16(100 + i)
		wantR := int16(-(100 + i))
		require.InDeltaf(t, float64(wantL), float64(got[0][i]), 1, "left sample %d", i)
		require.InDeltaf(t, float64(wantR), float64(got[1][i]), 1, "right sample %d", i)
	}
}

// S2: muting a channel through the audio manager's MCV silences it while
// leaving the other channel passing through.
func TestScenarioMute(t *testing.T) {
	dir := t.TempDir()
	in := dir + "/in.wav"
	out := dir + "/out.wav"
	writeTestWav(t, in, 1, 200)

	sys, am, closeAll := buildSystem(t, in, out, 1)
	am.MCV[iomatrix.NumChannels] = 1 // mute flag table starts right after the remap table; index 0 is channel 0
	require.NoError(t, sys.Run(context.Background(), nil))
	closeAll()

	got := readInt16Samples(t, out, 2)
	require.GreaterOrEqual(t, len(got[0]), 16)
	for i := 0; i < 16; i++ {
		require.Equal(t, int16(0), got[0][i], "muted channel must read exactly zero")
		require.InDeltaf(t, float64(-(200+i)), float64(got[1][i]), 1, "unmuted channel %d", i)
	}
}

// S3: swapping the remap table's source index for a channel routes that
// channel's samples from a different input channel.
func TestScenarioChannelRemap(t *testing.T) {
	dir := t.TempDir()
	in := dir + "/in.wav"
	out := dir + "/out.wav"
	writeTestWav(t, in, 1, 300)

	sys, am, closeAll := buildSystem(t, in, out, 1)
	am.MCV[0] = 1 // channel 0 now reads from channel 1's data
	require.NoError(t, sys.Run(context.Background(), nil))
	closeAll()

	got := readInt16Samples(t, out, 2)
	require.GreaterOrEqual(t, len(got[0]), 16)
	for i := 0; i < 16; i++ {
		require.InDeltaf(t, float64(-(300+i)), float64(got[0][i]), 1, "remapped channel 0 %d", i)
	}
}

// S4: once the input runs dry, the scheduler keeps running for its flush
// window, so the output carries more samples than the input did and the
// trailing ones are silence.
func TestScenarioEOFFlush(t *testing.T) {
	dir := t.TempDir()
	in := dir + "/in.wav"
	out := dir + "/out.wav"
	writeTestWav(t, in, 1, 400)

	sys, _, closeAll := buildSystem(t, in, out, 1)
	require.NoError(t, sys.Run(context.Background(), nil))
	closeAll()

	require.Equal(t, int64(1), sys.GetFrameCounter(), "exactly one frame is triggered, by the decoder's first brick")

	got := readInt16Samples(t, out, 2)
	require.Greater(t, len(got[0]), 16, "flush window must append trailing bricks past input EOF")
	last := got[0][len(got[0])-1]
	require.Equal(t, int16(0), last, "tail of the flush window must be silence")
}

// mp3FrameBytes builds n back-to-back MPEG-1 Layer III frames (192 kbps,
// 48 kHz, stereo, no CRC): a 4-byte header then 572 bytes of payload
// filler per frame.
func mp3FrameBytes(n int) []byte {
	var buf []byte
	for i := 0; i < n; i++ {
		buf = append(buf, 0xFF, 0xFB, 0xB4, 0x00)
		for j := 4; j < 576; j++ {
			buf = append(buf, 0x11)
		}
	}
	return buf
}

// The MP3 front-end run end to end: each compressed frame fires exactly
// one Frame pass, and every frame's 1152 samples per channel reach the
// sink through the staging queues, the audio manager, and the drain.
func TestScenarioMP3FrontEndEndToEnd(t *testing.T) {
	dir := t.TempDir()
	out := dir + "/out.wav"

	f := feeder.NewFileFeeder(bytes.NewReader(mp3FrameBytes(2)))
	f.Compressed = true

	var refillers [2]bitripper.Refiller
	refillers[0] = f

	mif1 := &odt.MIF{}
	mif2 := &odt.MIF{}
	sys, err := core.AddModules([]*core.CoreSpec{{
		Modules: []odt.Entry{
			{MIF: mif1, ModuleID: 0},
			{MIF: mif2, ModuleID: 1},
			{MIF: nil},
		},
		FIFOWords: 1024,
		Refillers: refillers,
	}}, 72)
	require.NoError(t, err)
	sys.Input.Compressed = true

	dec := modules.NewMP3FrontEnd(sys, mif1, nil, f)
	am := modules.NewAudioManager(sys, mif2)
	mif1.MCT = dec.Hooks()
	mif2.MCT = am.Hooks()

	w, err := wavefile.CreateWriter(out, 16, 2, 48000)
	require.NoError(t, err)
	sys.Sink = sink.NewWaveSink(w, []int{0, 1})

	require.NoError(t, sys.Run(context.Background(), nil))
	require.NoError(t, w.Close())

	require.Equal(t, int64(2), sys.GetFrameCounter(), "one Frame pass per compressed frame")

	got := readInt16Samples(t, out, 2)
	require.Equal(t, 2*1152, len(got[0]), "both frames' PCM must reach the sink")
	for i, v := range got[0] {
		require.Equalf(t, int16(0), v, "placeholder synth output must be silence (sample %d)", i)
	}
}
