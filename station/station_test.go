package station

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestInternAssignsDenseIDs(t *testing.T) {
	d, err := Load(filepath.Join(t.TempDir(), "stations.dat"))
	if err != nil {
		t.Fatalf("Failed to load dict: %v", err)
	}

	if id := d.Intern("Beijing"); id != 0 {
		t.Errorf("First station got id %d, want 0", id)
	}
	if id := d.Intern("Shanghai"); id != 1 {
		t.Errorf("Second station got id %d, want 1", id)
	}
	if id := d.Intern("Beijing"); id != 0 {
		t.Errorf("Re-interning returned %d, want the original 0", id)
	}
	if d.Count() != 2 {
		t.Errorf("Count = %d, want 2", d.Count())
	}

	id, ok := d.Lookup("Shanghai")
	if !ok || id != 1 {
		t.Errorf("Lookup(Shanghai) = (%d, %v)", id, ok)
	}
	if _, ok := d.Lookup("Guangzhou"); ok {
		t.Errorf("Lookup found a station that was never interned")
	}
	if name := d.Name(1); name != "Shanghai" {
		t.Errorf("Name(1) = %q", name)
	}
	if name := d.Name(99); name != "" {
		t.Errorf("Name of unknown id = %q, want empty", name)
	}
}

func TestDictPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.dat")

	d, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load dict: %v", err)
	}
	d.Intern("Beijing")
	d.Intern("Shanghai")
	d.Intern("Hangzhou")
	if err := d.Close(); err != nil {
		t.Fatalf("Failed to close dict: %v", err)
	}

	d, err = Load(path)
	if err != nil {
		t.Fatalf("Failed to reload dict: %v", err)
	}
	if d.Count() != 3 {
		t.Fatalf("Count = %d after reload, want 3", d.Count())
	}
	if id, ok := d.Lookup("Hangzhou"); !ok || id != 2 {
		t.Errorf("Lookup(Hangzhou) = (%d, %v) after reload", id, ok)
	}
	if id := d.Intern("Shenzhen"); id != 3 {
		t.Errorf("New station after reload got id %d, want 3", id)
	}
}

func TestDictFileLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.dat")

	d, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load dict: %v", err)
	}
	d.Intern("Beijing")
	d.Intern("Shanghai")
	if err := d.Close(); err != nil {
		t.Fatalf("Failed to close dict: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read dict file: %v", err)
	}
	// next id (4 bytes), count (8 bytes), then 8-byte length + bytes
	// per name.
	if got := binary.LittleEndian.Uint32(raw[0:4]); got != 2 {
		t.Errorf("Next id field = %d, want 2", got)
	}
	if got := binary.LittleEndian.Uint64(raw[4:12]); got != 2 {
		t.Errorf("Count field = %d, want 2", got)
	}
	if got := binary.LittleEndian.Uint64(raw[12:20]); got != uint64(len("Beijing")) {
		t.Errorf("First name length = %d, want %d", got, len("Beijing"))
	}
	if got := string(raw[20 : 20+len("Beijing")]); got != "Beijing" {
		t.Errorf("First name = %q", got)
	}
	next := 20 + len("Beijing")
	if got := binary.LittleEndian.Uint64(raw[next : next+8]); got != uint64(len("Shanghai")) {
		t.Errorf("Second name length = %d, want %d", got, len("Shanghai"))
	}
	if got := string(raw[next+8 : next+8+len("Shanghai")]); got != "Shanghai" {
		t.Errorf("Second name = %q", got)
	}
}

func TestDictClear(t *testing.T) {
	d, err := Load(filepath.Join(t.TempDir(), "stations.dat"))
	if err != nil {
		t.Fatalf("Failed to load dict: %v", err)
	}
	d.Intern("Beijing")
	d.Clear()
	if d.Count() != 0 {
		t.Errorf("Count = %d after clear", d.Count())
	}
	if id := d.Intern("Shanghai"); id != 0 {
		t.Errorf("First station after clear got id %d, want 0", id)
	}
}
