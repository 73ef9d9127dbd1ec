// Package station interns station names to dense int32 ids so train
// records can store ids instead of variable-length names. The dict is
// append-only and small enough to hold in memory; it is rewritten in
// full on Close.
package station

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"RailwayDB/bplustree"
)

type Dict struct {
	path   string
	names  []string
	byHash map[uint64]int32
}

// Load reads the dict from path, or starts empty if the file does not
// exist.
func Load(path string) (*Dict, error) {
	d := &Dict{path: path, byHash: make(map[uint64]int32)}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil
		}
		return nil, fmt.Errorf("open station dict %s: %w", path, err)
	}
	defer f.Close()

	// File layout: next id (4 bytes), entry count (8 bytes), then per
	// name an 8-byte length followed by the bytes. Ids are dense, so
	// the next id always equals the count.
	r := bufio.NewReader(f)
	var nextID uint32
	if err := binary.Read(r, binary.LittleEndian, &nextID); err != nil {
		return nil, fmt.Errorf("read station dict %s: %w", path, err)
	}
	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read station dict %s: %w", path, err)
	}
	d.names = make([]string, 0, count)
	for i := uint64(0); i < count; i++ {
		var nameLen uint64
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return nil, fmt.Errorf("read station dict %s: entry %d: %w", path, i, err)
		}
		buf := make([]byte, nameLen)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("read station dict %s: entry %d: %w", path, i, err)
		}
		name := string(buf)
		d.byHash[bplustree.Hash(name)] = int32(len(d.names))
		d.names = append(d.names, name)
	}
	return d, nil
}

// Intern returns the id for name, assigning the next free id on first
// sight.
func (d *Dict) Intern(name string) int32 {
	h := bplustree.Hash(name)
	if id, ok := d.byHash[h]; ok {
		return id
	}
	id := int32(len(d.names))
	d.names = append(d.names, name)
	d.byHash[h] = id
	return id
}

// Lookup returns the id for name without assigning one.
func (d *Dict) Lookup(name string) (int32, bool) {
	id, ok := d.byHash[bplustree.Hash(name)]
	return id, ok
}

// Name returns the name for a previously assigned id.
func (d *Dict) Name(id int32) string {
	if id < 0 || int(id) >= len(d.names) {
		return ""
	}
	return d.names[id]
}

func (d *Dict) Count() int { return len(d.names) }

// Clear drops all assignments.
func (d *Dict) Clear() {
	d.names = d.names[:0]
	d.byHash = make(map[uint64]int32)
}

// Close writes the dict back to disk.
func (d *Dict) Close() error {
	f, err := os.Create(d.path)
	if err != nil {
		return fmt.Errorf("write station dict %s: %w", d.path, err)
	}
	w := bufio.NewWriter(f)
	binary.Write(w, binary.LittleEndian, uint32(len(d.names)))
	binary.Write(w, binary.LittleEndian, uint64(len(d.names)))
	for _, name := range d.names {
		binary.Write(w, binary.LittleEndian, uint64(len(name)))
		w.WriteString(name)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write station dict %s: %w", d.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write station dict %s: %w", d.path, err)
	}
	return nil
}
