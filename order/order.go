// Package order keeps the per-user purchase log and the per-train
// waitlist. Orders are append-only except for the status byte; the
// waitlist key compare starts at the command timestamp, so scans come
// back already in promotion order.
package order

import (
	"fmt"
	"math"

	"RailwayDB/bplustree"
	"RailwayDB/fileconfig"
	"RailwayDB/timeutil"
)

type Status byte

const (
	StatusSuccess  Status = 'S'
	StatusPending  Status = 'P'
	StatusRefunded Status = 'R'
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "[success]"
	case StatusPending:
		return "[pending]"
	case StatusRefunded:
		return "[refunded]"
	}
	return "[?]"
}

const trainIDLen = 20

// Record is one purchase, keyed by (user hash, command timestamp).
type Record struct {
	Status      Status
	TrainID     [trainIDLen]byte
	TrainHash   uint64
	FromStation int32
	ToStation   int32
	FromIdx     uint16
	ToIdx       uint16
	OriginDate  timeutil.DateTime
	Price       int32
	Count       int32
	Leave       timeutil.DateTime
	Arrive      timeutil.DateTime
}

func (r *Record) TrainIDString() string {
	for i, c := range r.TrainID {
		if c == 0 {
			return string(r.TrainID[:i])
		}
	}
	return string(r.TrainID[:])
}

type recordCodec struct{}

func (recordCodec) Size() int { return 1 + trainIDLen + 8 + 4 + 4 + 2 + 2 + 4 + 4 + 4 + 4 + 4 }

func (recordCodec) Encode(buf []byte, r Record) {
	buf[0] = byte(r.Status)
	off := 1 + copy(buf[1:], r.TrainID[:])
	bplustree.Uint64Codec{}.Encode(buf[off:], r.TrainHash)
	off += 8
	bplustree.Int32Codec{}.Encode(buf[off:], r.FromStation)
	off += 4
	bplustree.Int32Codec{}.Encode(buf[off:], r.ToStation)
	off += 4
	bplustree.Uint16Codec{}.Encode(buf[off:], r.FromIdx)
	off += 2
	bplustree.Uint16Codec{}.Encode(buf[off:], r.ToIdx)
	off += 2
	bplustree.Int32Codec{}.Encode(buf[off:], int32(r.OriginDate))
	off += 4
	bplustree.Int32Codec{}.Encode(buf[off:], r.Price)
	off += 4
	bplustree.Int32Codec{}.Encode(buf[off:], r.Count)
	off += 4
	bplustree.Int32Codec{}.Encode(buf[off:], int32(r.Leave))
	off += 4
	bplustree.Int32Codec{}.Encode(buf[off:], int32(r.Arrive))
}

func (recordCodec) Decode(buf []byte) Record {
	var r Record
	r.Status = Status(buf[0])
	off := 1 + copy(r.TrainID[:], buf[1:])
	r.TrainHash = bplustree.Uint64Codec{}.Decode(buf[off:])
	off += 8
	r.FromStation = bplustree.Int32Codec{}.Decode(buf[off:])
	off += 4
	r.ToStation = bplustree.Int32Codec{}.Decode(buf[off:])
	off += 4
	r.FromIdx = bplustree.Uint16Codec{}.Decode(buf[off:])
	off += 2
	r.ToIdx = bplustree.Uint16Codec{}.Decode(buf[off:])
	off += 2
	r.OriginDate = timeutil.DateTime(bplustree.Int32Codec{}.Decode(buf[off:]))
	off += 4
	r.Price = bplustree.Int32Codec{}.Decode(buf[off:])
	off += 4
	r.Count = bplustree.Int32Codec{}.Decode(buf[off:])
	off += 4
	r.Leave = timeutil.DateTime(bplustree.Int32Codec{}.Decode(buf[off:]))
	off += 4
	r.Arrive = timeutil.DateTime(bplustree.Int32Codec{}.Decode(buf[off:]))
	return r
}

// WaitEntry is one queued purchase under (train hash, origin date).
// CommandTS compares first so that multimap scans come back in
// promotion order.
type WaitEntry struct {
	CommandTS int64
	UserHash  uint64
	FromIdx   uint16
	ToIdx     uint16
	Tickets   int32
}

func CompareWaitEntry(a, b WaitEntry) int {
	if c := bplustree.CompareInt64(a.CommandTS, b.CommandTS); c != 0 {
		return c
	}
	if c := bplustree.CompareUint64(a.UserHash, b.UserHash); c != 0 {
		return c
	}
	if c := bplustree.CompareUint16(a.FromIdx, b.FromIdx); c != 0 {
		return c
	}
	if c := bplustree.CompareUint16(a.ToIdx, b.ToIdx); c != 0 {
		return c
	}
	return bplustree.CompareInt32(a.Tickets, b.Tickets)
}

type waitEntryCodec struct{}

func (waitEntryCodec) Size() int { return 8 + 8 + 2 + 2 + 4 }

func (waitEntryCodec) Encode(buf []byte, e WaitEntry) {
	bplustree.Int64Codec{}.Encode(buf, e.CommandTS)
	bplustree.Uint64Codec{}.Encode(buf[8:], e.UserHash)
	bplustree.Uint16Codec{}.Encode(buf[16:], e.FromIdx)
	bplustree.Uint16Codec{}.Encode(buf[18:], e.ToIdx)
	bplustree.Int32Codec{}.Encode(buf[20:], e.Tickets)
}

func (waitEntryCodec) Decode(buf []byte) WaitEntry {
	return WaitEntry{
		CommandTS: bplustree.Int64Codec{}.Decode(buf),
		UserHash:  bplustree.Uint64Codec{}.Decode(buf[8:]),
		FromIdx:   bplustree.Uint16Codec{}.Decode(buf[16:]),
		ToIdx:     bplustree.Uint16Codec{}.Decode(buf[18:]),
		Tickets:   bplustree.Int32Codec{}.Decode(buf[20:]),
	}
}

// WaitKey folds a waitlist group into the multimap's hash key.
func WaitKey(trainHash uint64, date timeutil.DateTime) uint64 {
	var buf [12]byte
	bplustree.Uint64Codec{}.Encode(buf[:], trainHash)
	bplustree.Int32Codec{}.Encode(buf[8:], int32(date))
	return bplustree.HashBytes(buf[:])
}

type orderKey = bplustree.Pair[uint64, int64]

// Store owns the order log and the waitlist.
type Store struct {
	orders   *bplustree.Tree[orderKey, Record]
	waitlist *bplustree.OrderedHashMultiMap[WaitEntry]
}

func NewStore(orderPath, waitPath string, slab *fileconfig.Slab, cacheBytes int64) (*Store, error) {
	orders, err := bplustree.Open(orderPath, slab, cacheBytes,
		bplustree.PairCompare(bplustree.CompareUint64, bplustree.CompareInt64),
		bplustree.PairCodec[uint64, int64]{A: bplustree.Uint64Codec{}, B: bplustree.Int64Codec{}},
		recordCodec{})
	if err != nil {
		return nil, fmt.Errorf("open order log: %w", err)
	}
	waitlist, err := bplustree.OpenOrderedHashMultiMap(waitPath, slab, cacheBytes, CompareWaitEntry, waitEntryCodec{})
	if err != nil {
		orders.Close()
		return nil, fmt.Errorf("open waitlist: %w", err)
	}
	return &Store{orders: orders, waitlist: waitlist}, nil
}

// Record appends an order; PENDING orders also join the waitlist.
func (s *Store) Record(userHash uint64, ts int64, r Record) error {
	if err := s.orders.Insert(orderKey{First: userHash, Second: ts}, r); err != nil {
		return err
	}
	if r.Status == StatusPending {
		return s.waitlist.Insert(WaitKey(r.TrainHash, r.OriginDate), WaitEntry{
			CommandTS: ts,
			UserHash:  userHash,
			FromIdx:   r.FromIdx,
			ToIdx:     r.ToIdx,
			Tickets:   r.Count,
		})
	}
	return nil
}

// ByUser returns the user's orders in ascending command timestamp.
func (s *Store) ByUser(userHash uint64) ([]bplustree.Pair[orderKey, Record], error) {
	return s.orders.RangeFind(
		orderKey{First: userHash, Second: math.MinInt64},
		orderKey{First: userHash, Second: math.MaxInt64})
}

// NthMostRecent selects the n-th most recent order (n >= 1).
func (s *Store) NthMostRecent(userHash uint64, n int) (orderKey, Record, bool, error) {
	all, err := s.ByUser(userHash)
	if err != nil {
		return orderKey{}, Record{}, false, err
	}
	if n <= 0 || n > len(all) {
		return orderKey{}, Record{}, false, nil
	}
	e := all[len(all)-n]
	return e.First, e.Second, true, nil
}

func (s *Store) UpdateStatus(key orderKey, status Status) (bool, error) {
	return s.orders.Modify(key, func(r *Record) { r.Status = status })
}

func (s *Store) WaitList(trainHash uint64, date timeutil.DateTime) ([]WaitEntry, error) {
	return s.waitlist.Find(WaitKey(trainHash, date))
}

func (s *Store) RemoveWait(trainHash uint64, date timeutil.DateTime, e WaitEntry) (bool, error) {
	return s.waitlist.Erase(WaitKey(trainHash, date), e)
}

func (s *Store) Clean() error {
	if err := s.orders.Clear(); err != nil {
		return err
	}
	return s.waitlist.Clear()
}

func (s *Store) Close() error {
	if err := s.orders.Close(); err != nil {
		s.waitlist.Close()
		return err
	}
	return s.waitlist.Close()
}
