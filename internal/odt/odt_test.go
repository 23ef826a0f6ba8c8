package odt

import "testing"

func TestFromListStopsAtNullEntry(t *testing.T) {
	a := &MIF{MCV: MCV{1}}
	b := &MIF{MCV: MCV{2}}
	list := []Entry{
		{MIF: a, ModuleID: 1},
		{MIF: b, ModuleID: 2},
		{MIF: nil},
		{MIF: a, ModuleID: 3}, // must be ignored: parsing stops at the null entry
	}
	table, err := FromList(list)
	if err != nil {
		t.Fatalf("FromList: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", table.Len())
	}
	tail, ok := table.Tail()
	if !ok || tail.ModuleID != 2 {
		t.Fatalf("Tail() = %+v, ok=%v, want moduleID 2", tail, ok)
	}
}

func TestAddRejectsOverflow(t *testing.T) {
	table := &Table{}
	mif := &MIF{}
	for i := 0; i < MaxModulesPerCore; i++ {
		if err := table.Add(Entry{MIF: mif, ModuleID: uint8(i % 128)}); err != nil {
			t.Fatalf("Add() entry %d: %v", i, err)
		}
	}
	if err := table.Add(Entry{MIF: mif}); err == nil {
		t.Fatal("expected error on adding beyond MaxModulesPerCore")
	}
}

func TestByModuleID(t *testing.T) {
	decoder := &MIF{MCV: MCV{10, 20}}
	table := &Table{}
	_ = table.Add(Entry{MIF: decoder, ModuleID: 0x60})
	mif, ok := table.ByModuleID(0x60)
	if !ok || mif != decoder {
		t.Fatalf("ByModuleID(0x60) = %v, %v, want decoder, true", mif, ok)
	}
	if _, ok := table.ByModuleID(0x7F); ok {
		t.Fatal("expected no match for unregistered module ID")
	}
}
