package sink

import (
	"path/filepath"
	"testing"

	"github.com/haos-sim/haos/internal/iomatrix"
	"github.com/haos-sim/haos/internal/wavefile"
)

func TestWaveSinkInterleavesConfiguredChannels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	w, err := wavefile.CreateWriter(path, 16, 2, 48000)
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}
	s := NewWaveSink(w, []int{0, 1})

	var bricks [iomatrix.NumChannels]iomatrix.Brick
	bricks[0][0] = 0.5
	bricks[1][0] = -0.5
	if err := s.WriteBrick(0b11, &bricks); err != nil {
		t.Fatalf("WriteBrick: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := wavefile.OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()
	left := r.RecvSample(false)
	right := r.RecvSample(false)
	if left <= 0 {
		t.Fatalf("left sample = %d, want positive", left)
	}
	if right >= 0 {
		t.Fatalf("right sample = %d, want negative", right)
	}
}

func TestWaveSinkSilencesMaskedChannel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "masked.wav")
	w, err := wavefile.CreateWriter(path, 16, 1, 48000)
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}
	s := NewWaveSink(w, []int{0})

	var bricks [iomatrix.NumChannels]iomatrix.Brick
	bricks[0][0] = 1.0
	if err := s.WriteBrick(0, &bricks); err != nil { // mask excludes channel 0
		t.Fatalf("WriteBrick: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := wavefile.OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()
	if got := r.RecvSample(false); got != 0 {
		t.Fatalf("masked channel sample = %d, want 0", got)
	}
}
