package sink

import (
	"encoding/binary"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/haos-sim/haos/internal/iomatrix"
)

// ringCapacity is how many int16 samples (half as many interleaved stereo
// frames) MonitorSink buffers between the scheduler's WriteBrick calls and
// oto's pull.
const ringCapacity = 1 << 14

// MonitorSink wraps a WaveSink and additionally streams the same drained
// bricks to a live speaker via oto: WriteBrick pushes int16 stereo frames
// into a ring, and the player pulls them through an io.Reader that pads
// silence on underrun.
type MonitorSink struct {
	*WaveSink

	mu     sync.Mutex
	ring   []int16
	head   int
	tail   int
	filled int

	ctx    *oto.Context
	player *oto.Player
}

// NewMonitorSink wraps wave and starts a live oto player over its own
// ring, down-mixing outChannels[0:2] (or duplicating mono to stereo) for
// monitoring.
func NewMonitorSink(wave *WaveSink, sampleRate int, channels int) (*MonitorSink, error) {
	m := &MonitorSink{
		WaveSink: wave,
		ring:     make([]int16, ringCapacity),
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, err
	}
	<-ready
	m.ctx = ctx
	m.player = ctx.NewPlayer(&monitorStream{m: m})
	m.player.Play()
	return m, nil
}

// WriteBrick feeds the sample through to the WAV file exactly as before,
// and additionally pushes a stereo-downmixed copy into the live ring.
func (m *MonitorSink) WriteBrick(mask iomatrix.ChannelMask, bricks *[iomatrix.NumChannels]iomatrix.Brick) error {
	if err := m.WaveSink.WriteBrick(mask, bricks); err != nil {
		return err
	}

	outs := m.WaveSink.outChannels
	for i := 0; i < iomatrix.BrickSize; i++ {
		var l, r float64
		switch {
		case len(outs) >= 2 && mask&(1<<uint(outs[0])) != 0 && mask&(1<<uint(outs[1])) != 0:
			l, r = bricks[outs[0]][i], bricks[outs[1]][i]
		case len(outs) >= 1 && mask&(1<<uint(outs[0])) != 0:
			l = bricks[outs[0]][i]
			r = l
		}
		m.push(int16(sampleToInt32(l)>>16), int16(sampleToInt32(r)>>16))
	}
	return nil
}

func (m *MonitorSink) push(l, r int16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.filled+2 > len(m.ring) {
		return // ring full: drop rather than block the scheduler
	}
	m.ring[m.tail] = l
	m.ring[(m.tail+1)%len(m.ring)] = r
	m.tail = (m.tail + 2) % len(m.ring)
	m.filled += 2
}

// Close stops the live player in addition to closing the WAV file.
func (m *MonitorSink) Close() error {
	if m.player != nil {
		m.player.Close()
	}
	return m.WaveSink.Close()
}

// monitorStream implements io.Reader by draining MonitorSink's ring,
// padding with silence (an underrun) when nothing has been produced yet —
// the live-monitor analogue of a file feeder's post-EOF pad.
type monitorStream struct {
	m *MonitorSink
}

func (s *monitorStream) Read(p []byte) (int, error) {
	frames := len(p) / 4
	if frames == 0 {
		return 0, nil
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	n := 0
	for ; n < frames; n++ {
		if s.m.filled < 2 {
			break
		}
		l := s.m.ring[s.m.head]
		r := s.m.ring[(s.m.head+1)%len(s.m.ring)]
		s.m.head = (s.m.head + 2) % len(s.m.ring)
		s.m.filled -= 2
		binary.LittleEndian.PutUint16(p[n*4:], uint16(l))
		binary.LittleEndian.PutUint16(p[n*4+2:], uint16(r))
	}
	for ; n < frames; n++ {
		binary.LittleEndian.PutUint16(p[n*4:], 0)
		binary.LittleEndian.PutUint16(p[n*4+2:], 0)
	}
	return frames * 4, nil
}
