// Package train is the catalog of train master records, the released
// segment index, and the per-date per-segment seat inventory.
package train

import (
	"fmt"
	"strings"

	"RailwayDB/bplustree"
	"RailwayDB/fileconfig"
	"RailwayDB/station"
	"RailwayDB/timeutil"
)

// seatKey orders seat cells by (origin date, (train hash, segment
// start index)), so one train-date's segments are contiguous.
type seatKey = bplustree.Pair[int32, bplustree.Pair[uint64, uint16]]

func makeSeatKey(date timeutil.DateTime, trainHash uint64, seg uint16) seatKey {
	return seatKey{First: int32(date), Second: bplustree.Pair[uint64, uint16]{First: trainHash, Second: seg}}
}

// SegRef is one segment-index entry: a released train covering the
// station pair between route indices FromIdx and ToIdx.
type SegRef struct {
	TrainHash uint64
	FromIdx   uint16
	ToIdx     uint16
}

func compareSegRef(a, b SegRef) int {
	if c := bplustree.CompareUint64(a.TrainHash, b.TrainHash); c != 0 {
		return c
	}
	if c := bplustree.CompareUint16(a.FromIdx, b.FromIdx); c != 0 {
		return c
	}
	return bplustree.CompareUint16(a.ToIdx, b.ToIdx)
}

type segRefCodec struct{}

func (segRefCodec) Size() int { return 12 }

func (segRefCodec) Encode(buf []byte, r SegRef) {
	bplustree.Uint64Codec{}.Encode(buf, r.TrainHash)
	bplustree.Uint16Codec{}.Encode(buf[8:], r.FromIdx)
	bplustree.Uint16Codec{}.Encode(buf[10:], r.ToIdx)
}

func (segRefCodec) Decode(buf []byte) SegRef {
	return SegRef{
		TrainHash: bplustree.Uint64Codec{}.Decode(buf),
		FromIdx:   bplustree.Uint16Codec{}.Decode(buf[8:]),
		ToIdx:     bplustree.Uint16Codec{}.Decode(buf[10:]),
	}
}

// segPairKey folds a dense station-id pair into the segment index's
// hash key.
func segPairKey(fromID, toID int32) uint64 {
	var buf [8]byte
	bplustree.Int32Codec{}.Encode(buf[:], fromID)
	bplustree.Int32Codec{}.Encode(buf[4:], toID)
	return bplustree.HashBytes(buf[:])
}

// Manager owns the catalog, the segment index and the seat cells.
type Manager struct {
	trains *bplustree.HashedSingleMap[Data]
	segIdx *bplustree.OrderedHashMultiMap[SegRef]
	seats  *bplustree.Tree[seatKey, int32]
	dict   *station.Dict
}

func NewManager(trainPath, segPath, seatPath string, slab *fileconfig.Slab, cacheBytes int64, dict *station.Dict) (*Manager, error) {
	trains, err := bplustree.OpenHashedSingleMap[Data](trainPath, slab, cacheBytes, dataCodec{})
	if err != nil {
		return nil, fmt.Errorf("open train catalog: %w", err)
	}
	segIdx, err := bplustree.OpenOrderedHashMultiMap(segPath, slab, cacheBytes, compareSegRef, segRefCodec{})
	if err != nil {
		trains.Close()
		return nil, fmt.Errorf("open segment index: %w", err)
	}
	seatCmp := bplustree.PairCompare(bplustree.CompareInt32,
		bplustree.PairCompare(bplustree.CompareUint64, bplustree.CompareUint16))
	seatKC := bplustree.PairCodec[int32, bplustree.Pair[uint64, uint16]]{
		A: bplustree.Int32Codec{},
		B: bplustree.PairCodec[uint64, uint16]{A: bplustree.Uint64Codec{}, B: bplustree.Uint16Codec{}},
	}
	seats, err := bplustree.Open(seatPath, slab, cacheBytes, seatCmp, seatKC, bplustree.Int32Codec{})
	if err != nil {
		trains.Close()
		segIdx.Close()
		return nil, fmt.Errorf("open seat map: %w", err)
	}
	return &Manager{trains: trains, segIdx: segIdx, seats: seats, dict: dict}, nil
}

// AddRequest carries the parsed add_train parameters.
type AddRequest struct {
	ID        string
	SeatNum   int32
	Stations  []string
	Prices    []int32
	StartTime timeutil.DateTime
	Travel    []int32
	Stopover  []int32
	SaleStart timeutil.DateTime
	SaleEnd   timeutil.DateTime
	Type      byte
}

// Add registers a new, unreleased train. Fails on a duplicate id.
func (m *Manager) Add(req AddRequest) (bool, error) {
	if _, exists, err := m.trains.Find(req.ID); err != nil {
		return false, err
	} else if exists {
		return false, nil
	}
	n := len(req.Stations)
	if n < 2 || n > MaxStations {
		return false, nil
	}

	var d Data
	copy(d.ID[:], req.ID)
	d.Hash = bplustree.Hash(req.ID)
	d.StationNum = int32(n)
	d.SeatNum = req.SeatNum
	for i, name := range req.Stations {
		d.Stations[i] = m.dict.Intern(name)
	}
	copy(d.Prices[:], req.Prices)
	d.StartTime = req.StartTime
	copy(d.Travel[:], req.Travel)
	copy(d.Stopover[:], req.Stopover)
	d.SaleStart = req.SaleStart
	d.SaleEnd = req.SaleEnd
	d.Type = req.Type
	d.Released = false
	if err := m.trains.Insert(req.ID, d); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes an unreleased train.
func (m *Manager) Delete(id string) (bool, error) {
	d, ok, err := m.trains.Find(id)
	if err != nil || !ok {
		return false, err
	}
	if d.Released {
		return false, nil
	}
	return m.trains.Erase(id)
}

// Release freezes a train and fills the segment index with every
// ordered pair of its stops.
func (m *Manager) Release(id string) (bool, error) {
	d, ok, err := m.trains.Find(id)
	if err != nil || !ok {
		return false, err
	}
	if d.Released {
		return false, nil
	}
	for i := int32(0); i < d.StationNum; i++ {
		for j := i + 1; j < d.StationNum; j++ {
			ref := SegRef{TrainHash: d.Hash, FromIdx: uint16(i), ToIdx: uint16(j)}
			if err := m.segIdx.Insert(segPairKey(d.Stations[i], d.Stations[j]), ref); err != nil {
				return false, err
			}
		}
	}
	_, err = m.trains.Modify(id, func(t *Data) { t.Released = true })
	return err == nil, err
}

// Find looks a train up by id.
func (m *Manager) Find(id string) (Data, bool, error) { return m.trains.Find(id) }

// Seats returns the availability over route edges [from, to) on the
// given origin date. Unmaterialized cells count as full capacity.
func (m *Manager) Seats(d *Data, date timeutil.DateTime, from, to int) (int32, error) {
	min := d.SeatNum
	cells, err := m.seats.RangeFind(
		makeSeatKey(date, d.Hash, uint16(from)),
		makeSeatKey(date, d.Hash, uint16(to-1)))
	if err != nil {
		return 0, err
	}
	for _, c := range cells {
		if c.Second < min {
			min = c.Second
		}
	}
	return min, nil
}

// Reserve takes n seats on every edge in [from, to), materializing
// missing cells at full capacity first.
func (m *Manager) Reserve(d *Data, date timeutil.DateTime, from, to int, n int32) error {
	lo := makeSeatKey(date, d.Hash, uint16(from))
	hi := makeSeatKey(date, d.Hash, uint16(to-1))
	existing, err := m.seats.RangeFind(lo, hi)
	if err != nil {
		return err
	}
	present := make(map[uint16]bool, len(existing))
	for _, c := range existing {
		present[c.First.Second.Second] = true
	}
	for s := from; s < to; s++ {
		if !present[uint16(s)] {
			if err := m.seats.Insert(makeSeatKey(date, d.Hash, uint16(s)), d.SeatNum); err != nil {
				return err
			}
		}
	}
	_, err = m.seats.RangeModify(lo, hi, func(v *int32) { *v -= n })
	return err
}

// Restore returns n seats to every edge in [from, to). All cells must
// already exist and must not exceed capacity afterwards; anything else
// is corruption.
func (m *Manager) Restore(d *Data, date timeutil.DateTime, from, to int, n int32) error {
	lo := makeSeatKey(date, d.Hash, uint16(from))
	hi := makeSeatKey(date, d.Hash, uint16(to-1))
	overflow := false
	count, err := m.seats.RangeModify(lo, hi, func(v *int32) {
		*v += n
		if *v > d.SeatNum {
			overflow = true
		}
	})
	if err != nil {
		return err
	}
	if overflow {
		return fmt.Errorf("restore seats: train %s date %s: cell exceeds capacity %d", d.IDString(), date.DateString(), d.SeatNum)
	}
	if count != to-from {
		return fmt.Errorf("restore seats: train %s date %s: %d cells modified, want %d", d.IDString(), date.DateString(), count, to-from)
	}
	return nil
}

// QueryTrain renders the per-stop timetable for one sale date, which
// works on unreleased trains too.
func (m *Manager) QueryTrain(id string, date timeutil.DateTime) (string, bool, error) {
	d, ok, err := m.trains.Find(id)
	if err != nil {
		return "", false, err
	}
	if !ok || !date.InScope() || !d.VerifyDate(date) {
		return "", false, nil
	}

	remaining := make([]int32, d.StationNum-1)
	for i := range remaining {
		remaining[i] = d.SeatNum
	}
	cells, err := m.seats.RangeFind(
		makeSeatKey(date, d.Hash, 0),
		makeSeatKey(date, d.Hash, uint16(d.StationNum-1)))
	if err != nil {
		return "", false, err
	}
	for _, c := range cells {
		seg := c.First.Second.Second
		if int32(seg) < d.StationNum-1 {
			remaining[seg] = c.Second
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %c\n", d.IDString(), d.Type)
	var cumPrice int64
	last := int(d.StationNum) - 1
	for i := 0; i <= last; i++ {
		name := m.dict.Name(d.Stations[i])
		arrive, leave := "xx-xx xx:xx", "xx-xx xx:xx"
		seatStr := "x"
		if i > 0 {
			arrive = (date + d.ArriveOffset(i)).String()
			cumPrice += int64(d.Prices[i-1])
		}
		if i < last {
			leave = (date + d.LeaveOffset(i)).String()
			seatStr = fmt.Sprintf("%d", remaining[i])
		}
		fmt.Fprintf(&b, "%s %s -> %s %d %s\n", name, arrive, leave, cumPrice, seatStr)
	}
	return b.String(), true, nil
}

func (m *Manager) Clean() error {
	if err := m.trains.Clear(); err != nil {
		return err
	}
	if err := m.segIdx.Clear(); err != nil {
		return err
	}
	return m.seats.Clear()
}

func (m *Manager) Close() error {
	var first error
	for _, c := range []func() error{m.trains.Close, m.segIdx.Close, m.seats.Close} {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
