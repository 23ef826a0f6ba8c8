package iomatrix

import "testing"

func TestNewMatrixStartsFull(t *testing.T) {
	m := New(5)
	if m.IOFree() != RingDepth*BrickSize {
		t.Fatalf("IOFree() = %d, want %d", m.IOFree(), RingDepth*BrickSize)
	}
	if m.HasPendingBrick() {
		t.Fatal("freshly initialized matrix should have no pending brick")
	}
	if m.ValidChannelMask() != 5 {
		t.Fatalf("ValidChannelMask() = %d, want 5", m.ValidChannelMask())
	}
}

func TestWriteThenReadRestoresIOFree(t *testing.T) {
	m := New(0)
	before := m.IOFree()
	m.InputPointer(0)[0] = 0.5
	m.AdvanceWrite()
	if !m.HasPendingBrick() {
		t.Fatal("expected a pending brick after AdvanceWrite")
	}
	m.AdvanceRead()
	if m.IOFree() != before {
		t.Fatalf("IOFree() after write+read = %d, want %d", m.IOFree(), before)
	}
}

func TestIsActiveChannel(t *testing.T) {
	m := New(ChannelMask(1<<0 | 1<<3))
	if !m.IsActiveChannel(0) || !m.IsActiveChannel(3) {
		t.Fatal("expected channels 0 and 3 active")
	}
	if m.IsActiveChannel(1) {
		t.Fatal("expected channel 1 inactive")
	}
}

func TestRingWraps(t *testing.T) {
	m := New(0)
	for i := 0; i < RingDepth+1; i++ {
		m.AdvanceWrite()
	}
	if m.writeIdx != 1 {
		t.Fatalf("writeIdx after %d advances = %d, want 1", RingDepth+1, m.writeIdx)
	}
}
