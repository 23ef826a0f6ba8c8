// Package odt defines the module parameter block, entry-point table, and
// ordered module list (ODT) that the scheduler drives.
package odt

import "fmt"

// MaxModulesPerCore bounds a core's module table. An overflow is a
// reported error, never a silent truncation.
const MaxModulesPerCore = 128

// DecodeInfo classifies the payload a decoder handed off with a frame.
type DecodeInfo int

const (
	DecodeUnknown DecodeInfo = iota
	DecodePCM
	DecodeMP3
)

// FrameMetadata accompanies a brick transfer that starts a new frame.
type FrameMetadata struct {
	InputChannelMask  uint32
	OutputChannelMask uint32
	SampleRate        int32
	DecodeInfo        DecodeInfo
}

// MCV is a module's opaque parameter block: a word-addressable slice that
// host-comm replay mutates by offset.
type MCV []int32

// Hooks is a module's entry-point table: nine optional named callbacks.
// Absent hooks are nil and the scheduler skips them. All hooks but
// Background are foreground; Prekick, Postkick and Timer run once during
// pre-start, the rest inside the tick loop.
type Hooks struct {
	Prekick    func(mif *MIF)
	Postkick   func()
	Timer      func()
	Frame      func()
	Brick      func()
	AFAP       func()
	Background func()
	Postmalloc func()
	Premalloc  func()
}

// MIF pairs a module's parameter block with its entry-point table.
type MIF struct {
	MCV MCV
	MCT Hooks
}

// Entry is one slot in a core's module table: a MIF plus the 7-bit module
// ID host-comm routes replay commands to.
type Entry struct {
	MIF      *MIF
	ModuleID uint8
}

// Table is an ordered, bounded list of module entries for one core.
type Table struct {
	entries []Entry
}

// Add appends an entry, enforcing MaxModulesPerCore.
func (t *Table) Add(e Entry) error {
	if len(t.entries) >= MaxModulesPerCore {
		return fmt.Errorf("odt: module table full (max %d entries)", MaxModulesPerCore)
	}
	t.entries = append(t.entries, e)
	return nil
}

// Entries returns the table in ODT order.
func (t *Table) Entries() []Entry { return t.entries }

// Len reports the number of modules attached to the core.
func (t *Table) Len() int { return len(t.entries) }

// Tail returns the last entry in the table — the module whose output is
// drained to the external sink — and whether the table is non-empty.
func (t *Table) Tail() (Entry, bool) {
	if len(t.entries) == 0 {
		return Entry{}, false
	}
	return t.entries[len(t.entries)-1], true
}

// ByModuleID finds the entry host-comm should route a command to.
func (t *Table) ByModuleID(id uint8) (*MIF, bool) {
	for _, e := range t.entries {
		if e.ModuleID == id {
			return e.MIF, true
		}
	}
	return nil, false
}

// FromList builds a Table from a null-terminated ODT list: entries with a
// non-nil MIF are appended until the first nil-MIF entry, which
// terminates parsing.
func FromList(list []Entry) (*Table, error) {
	t := &Table{}
	for _, e := range list {
		if e.MIF == nil {
			break
		}
		if err := t.Add(e); err != nil {
			return nil, err
		}
	}
	return t, nil
}
