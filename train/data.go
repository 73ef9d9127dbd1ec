package train

import (
	"RailwayDB/bplustree"
	"RailwayDB/timeutil"
)

const (
	TrainIDLen = 20

	// MaxStations bounds the route length so that the master record
	// stays within one tree entry.
	MaxStations = 25
)

// Data is the fixed-size master record of one train. Once Released is
// set the record is immutable.
type Data struct {
	ID         [TrainIDLen]byte
	Hash       uint64
	StationNum int32
	SeatNum    int32
	Stations   [MaxStations]int32 // dense station ids along the route
	Prices     [MaxStations - 1]int32
	StartTime  timeutil.DateTime // minutes into the origin day
	Travel     [MaxStations - 1]int32
	Stopover   [MaxStations - 2]int32
	SaleStart  timeutil.DateTime
	SaleEnd    timeutil.DateTime
	Type       byte
	Released   bool
}

func (d *Data) IDString() string {
	for i, c := range d.ID {
		if c == 0 {
			return string(d.ID[:i])
		}
	}
	return string(d.ID[:])
}

// StationIndex locates a dense station id on the route, -1 if absent.
func (d *Data) StationIndex(id int32) int {
	for i := int32(0); i < d.StationNum; i++ {
		if d.Stations[i] == id {
			return int(i)
		}
	}
	return -1
}

// LeaveOffset is minutes from origin-day midnight until departure from
// route index i. Defined for i < StationNum-1.
func (d *Data) LeaveOffset(i int) timeutil.DateTime {
	off := d.StartTime
	for s := 0; s < i; s++ {
		off += timeutil.DateTime(d.Travel[s])
	}
	for s := 1; s <= i; s++ {
		off += timeutil.DateTime(d.Stopover[s-1])
	}
	return off
}

// ArriveOffset is minutes from origin-day midnight until arrival at
// route index i. Defined for i >= 1.
func (d *Data) ArriveOffset(i int) timeutil.DateTime {
	return d.LeaveOffset(i-1) + timeutil.DateTime(d.Travel[i-1])
}

// PriceBetween sums the per-edge prices over [from, to).
func (d *Data) PriceBetween(from, to int) int32 {
	var sum int32
	for s := from; s < to; s++ {
		sum += d.Prices[s]
	}
	return sum
}

// Duration is the scheduled travel time from departure at from to
// arrival at to.
func (d *Data) Duration(from, to int) int32 {
	return int32(d.ArriveOffset(to) - d.LeaveOffset(from))
}

// OriginDate computes the earliest origin-departure date whose
// departure from route index fromIdx is at or after minDepart.
func (d *Data) OriginDate(fromIdx int, minDepart timeutil.DateTime) timeutil.DateTime {
	return (minDepart - d.LeaveOffset(fromIdx)).RoundUpToDate()
}

// VerifyDate reports whether an origin date lies in the sale window.
func (d *Data) VerifyDate(date timeutil.DateTime) bool {
	return d.SaleStart <= date && date <= d.SaleEnd
}

// EarliestValid snaps an origin date up to the sale window, false when
// the window is already over.
func (d *Data) EarliestValid(date timeutil.DateTime) (timeutil.DateTime, bool) {
	if date > d.SaleEnd {
		return 0, false
	}
	if date < d.SaleStart {
		return d.SaleStart, true
	}
	return date, true
}

type dataCodec struct{}

func (dataCodec) Size() int {
	return TrainIDLen + 8 + 4 + 4 + 4*MaxStations + 4*(MaxStations-1) + 4 +
		4*(MaxStations-1) + 4*(MaxStations-2) + 4 + 4 + 1 + 1
}

func (dataCodec) Encode(buf []byte, d Data) {
	i32 := bplustree.Int32Codec{}
	off := copy(buf, d.ID[:])
	bplustree.Uint64Codec{}.Encode(buf[off:], d.Hash)
	off += 8
	i32.Encode(buf[off:], d.StationNum)
	off += 4
	i32.Encode(buf[off:], d.SeatNum)
	off += 4
	for _, v := range d.Stations {
		i32.Encode(buf[off:], v)
		off += 4
	}
	for _, v := range d.Prices {
		i32.Encode(buf[off:], v)
		off += 4
	}
	i32.Encode(buf[off:], int32(d.StartTime))
	off += 4
	for _, v := range d.Travel {
		i32.Encode(buf[off:], v)
		off += 4
	}
	for _, v := range d.Stopover {
		i32.Encode(buf[off:], v)
		off += 4
	}
	i32.Encode(buf[off:], int32(d.SaleStart))
	off += 4
	i32.Encode(buf[off:], int32(d.SaleEnd))
	off += 4
	buf[off] = d.Type
	off++
	if d.Released {
		buf[off] = 1
	} else {
		buf[off] = 0
	}
}

func (dataCodec) Decode(buf []byte) Data {
	i32 := bplustree.Int32Codec{}
	var d Data
	off := copy(d.ID[:], buf)
	d.Hash = bplustree.Uint64Codec{}.Decode(buf[off:])
	off += 8
	d.StationNum = i32.Decode(buf[off:])
	off += 4
	d.SeatNum = i32.Decode(buf[off:])
	off += 4
	for i := range d.Stations {
		d.Stations[i] = i32.Decode(buf[off:])
		off += 4
	}
	for i := range d.Prices {
		d.Prices[i] = i32.Decode(buf[off:])
		off += 4
	}
	d.StartTime = timeutil.DateTime(i32.Decode(buf[off:]))
	off += 4
	for i := range d.Travel {
		d.Travel[i] = i32.Decode(buf[off:])
		off += 4
	}
	for i := range d.Stopover {
		d.Stopover[i] = i32.Decode(buf[off:])
		off += 4
	}
	d.SaleStart = timeutil.DateTime(i32.Decode(buf[off:]))
	off += 4
	d.SaleEnd = timeutil.DateTime(i32.Decode(buf[off:]))
	off += 4
	d.Type = buf[off]
	off++
	d.Released = buf[off] != 0
	return d
}
