package bplustree

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Codec serializes a fixed-size value into a little-endian byte slice.
// Fixed sizes keep the per-node entry math trivial: a node holds
// exactly (PageSize-nodeHeaderSize)/entrySize entries.
type Codec[T any] interface {
	Size() int
	Encode(buf []byte, v T)
	Decode(buf []byte) T
}

// Hash is the string hash used by every hashed map in the system.
// Collisions are not resolved; usernames, train ids and station names
// are treated as unique by hash.
func Hash(s string) uint64 { return xxhash.Sum64String(s) }

// HashBytes hashes a composite key already rendered to bytes.
func HashBytes(b []byte) uint64 { return xxhash.Sum64(b) }

// Nothing is the unit value for multimaps that carry all their payload
// in the key.
type Nothing struct{}

// Pair is a composite, ordered lexicographically by its fields.
type Pair[A, B any] struct {
	First  A
	Second B
}

// PairCompare builds a lexicographic compare for Pair from the
// component compares.
func PairCompare[A, B any](ca func(A, A) int, cb func(B, B) int) func(Pair[A, B], Pair[A, B]) int {
	return func(x, y Pair[A, B]) int {
		if c := ca(x.First, y.First); c != 0 {
			return c
		}
		return cb(x.Second, y.Second)
	}
}

func CompareUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func CompareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func CompareInt32(a, b int32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func CompareUint16(a, b uint16) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

type Uint64Codec struct{}

func (Uint64Codec) Size() int                 { return 8 }
func (Uint64Codec) Encode(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }
func (Uint64Codec) Decode(b []byte) uint64    { return binary.LittleEndian.Uint64(b) }

type Int64Codec struct{}

func (Int64Codec) Size() int                { return 8 }
func (Int64Codec) Encode(b []byte, v int64) { binary.LittleEndian.PutUint64(b, uint64(v)) }
func (Int64Codec) Decode(b []byte) int64    { return int64(binary.LittleEndian.Uint64(b)) }

type Int32Codec struct{}

func (Int32Codec) Size() int                { return 4 }
func (Int32Codec) Encode(b []byte, v int32) { binary.LittleEndian.PutUint32(b, uint32(v)) }
func (Int32Codec) Decode(b []byte) int32    { return int32(binary.LittleEndian.Uint32(b)) }

type Uint16Codec struct{}

func (Uint16Codec) Size() int                 { return 2 }
func (Uint16Codec) Encode(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }
func (Uint16Codec) Decode(b []byte) uint16    { return binary.LittleEndian.Uint16(b) }

type NothingCodec struct{}

func (NothingCodec) Size() int { return 0 }
func (NothingCodec) Encode(_ []byte, _ Nothing) {}
func (NothingCodec) Decode(_ []byte) Nothing { return Nothing{} }

// PairCodec serializes a Pair as First followed by Second.
type PairCodec[A, B any] struct {
	A Codec[A]
	B Codec[B]
}

func (c PairCodec[A, B]) Size() int { return c.A.Size() + c.B.Size() }

func (c PairCodec[A, B]) Encode(buf []byte, v Pair[A, B]) {
	c.A.Encode(buf, v.First)
	c.B.Encode(buf[c.A.Size():], v.Second)
}

func (c PairCodec[A, B]) Decode(buf []byte) Pair[A, B] {
	return Pair[A, B]{
		First:  c.A.Decode(buf),
		Second: c.B.Decode(buf[c.A.Size():]),
	}
}
