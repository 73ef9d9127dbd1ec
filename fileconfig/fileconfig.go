// Package fileconfig is a tiny file-backed slab for scalars that must
// survive restart: tree roots, the next station id, the first-user
// flag. Values bind in a fixed order at startup, which fixes their
// offsets; the whole slab is written back on Close.
package fileconfig

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

// SlabSize is the fixed on-disk size of a counter slab.
const SlabSize = 4096

type Slab struct {
	path   string
	buf    []byte
	off    int
	loaded bool
}

// Open reads an existing slab or starts a zeroed one.
func Open(path string) (*Slab, error) {
	s := &Slab{path: path, buf: make([]byte, SlabSize)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("open counter slab %s: %w", path, err)
	}
	copy(s.buf, data)
	s.loaded = true
	return s, nil
}

// Value is one tracked scalar. T must be a fixed-size type accepted by
// encoding/binary.
type Value[T any] struct {
	slab *Slab
	off  int
	size int
	val  T
}

// Bind allocates the next slot in the slab for a value of type T. If
// the slab was loaded from disk the stored value wins, otherwise def.
// Binding order must be identical on every startup.
func Bind[T any](s *Slab, def T) (*Value[T], error) {
	var probe T
	size := binary.Size(probe)
	if size <= 0 {
		return nil, fmt.Errorf("bind counter: type %T has no fixed size", probe)
	}
	if s.off+size > SlabSize {
		return nil, fmt.Errorf("bind counter: slab overflow at offset %d", s.off)
	}
	v := &Value[T]{slab: s, off: s.off, size: size, val: def}
	s.off += size

	if s.loaded {
		if err := binary.Read(bytes.NewReader(s.buf[v.off:v.off+size]), binary.LittleEndian, &v.val); err != nil {
			return nil, fmt.Errorf("bind counter: decode at offset %d: %w", v.off, err)
		}
	} else {
		v.store()
	}
	return v, nil
}

func (v *Value[T]) Get() T { return v.val }

func (v *Value[T]) Set(val T) {
	v.val = val
	v.store()
}

func (v *Value[T]) store() {
	var buf bytes.Buffer
	// encoding cannot fail for types that passed binary.Size in Bind
	binary.Write(&buf, binary.LittleEndian, v.val)
	copy(v.slab.buf[v.off:v.off+v.size], buf.Bytes())
}

// Close writes the slab back to disk.
func (s *Slab) Close() error {
	if err := os.WriteFile(s.path, s.buf, 0644); err != nil {
		return fmt.Errorf("write counter slab %s: %w", s.path, err)
	}
	return nil
}
