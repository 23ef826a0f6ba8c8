package core

import (
	"testing"

	"github.com/haos-sim/haos/internal/odt"
)

func bootSpec(ids ...uint8) *CoreSpec {
	var list []odt.Entry
	for _, id := range ids {
		list = append(list, odt.Entry{MIF: &odt.MIF{}, ModuleID: id})
	}
	list = append(list, odt.Entry{MIF: nil})
	return &CoreSpec{Modules: list, FIFOWords: 64}
}

func TestAddModulesCountsNonNilSpecs(t *testing.T) {
	sys, err := AddModules([]*CoreSpec{
		bootSpec(1, 2),
		bootSpec(3),
		nil,
		bootSpec(4), // past the nil terminator, must be ignored
	}, 16)
	if err != nil {
		t.Fatalf("AddModules: %v", err)
	}
	if got := len(sys.Cores()); got != 2 {
		t.Fatalf("core count = %d, want 2", got)
	}
	if got := sys.Cores()[0].Table.Len(); got != 2 {
		t.Fatalf("core 0 module count = %d, want 2", got)
	}
	if got := sys.Cores()[1].Table.Len(); got != 1 {
		t.Fatalf("core 1 module count = %d, want 1", got)
	}
}

func TestAddModulesRejectsTooManyCores(t *testing.T) {
	specs := []*CoreSpec{bootSpec(1), bootSpec(2), bootSpec(3), bootSpec(4)}
	if _, err := AddModules(specs, 16); err == nil {
		t.Fatal("expected error for more than MaxCores specs")
	}
}

func TestAddModulesRejectsEmpty(t *testing.T) {
	if _, err := AddModules(nil, 16); err == nil {
		t.Fatal("expected error for zero module lists")
	}
	if _, err := AddModules([]*CoreSpec{nil, bootSpec(1)}, 16); err == nil {
		t.Fatal("expected error when the first spec is already nil")
	}
}
