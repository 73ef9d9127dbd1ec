package train

import (
	"path/filepath"
	"strings"
	"testing"

	"RailwayDB/bplustree"
	"RailwayDB/fileconfig"
	"RailwayDB/order"
	"RailwayDB/station"
	"RailwayDB/timeutil"
)

func newTestManager(t *testing.T, dir string) (*Manager, *order.Store, *station.Dict) {
	t.Helper()
	slab, err := fileconfig.Open(filepath.Join(dir, "counters.dat"))
	if err != nil {
		t.Fatalf("Failed to open slab: %v", err)
	}
	dict, err := station.Load(filepath.Join(dir, "stations.dat"))
	if err != nil {
		t.Fatalf("Failed to load dict: %v", err)
	}
	m, err := NewManager(
		filepath.Join(dir, "trains.dat"),
		filepath.Join(dir, "segments.dat"),
		filepath.Join(dir, "seats.dat"),
		slab, 1<<20, dict)
	if err != nil {
		t.Fatalf("Failed to open train manager: %v", err)
	}
	orders, err := order.NewStore(
		filepath.Join(dir, "orders.dat"),
		filepath.Join(dir, "waitlist.dat"),
		slab, 1<<20)
	if err != nil {
		t.Fatalf("Failed to open order store: %v", err)
	}
	return m, orders, dict
}

func mustDate(t *testing.T, s string) timeutil.DateTime {
	t.Helper()
	d, err := timeutil.ParseDate(s)
	if err != nil {
		t.Fatalf("Bad date %q: %v", s, err)
	}
	return d
}

// threeStationTrain is the add_train from the single-purchase
// scenario: A 10:00 -> B 11:00/11:30 -> C 12:30, 50+50, seats per
// the argument.
func threeStationTrain(t *testing.T, m *Manager, id string, seats int32) {
	t.Helper()
	ok, err := m.Add(AddRequest{
		ID:        id,
		SeatNum:   seats,
		Stations:  []string{"A", "B", "C"},
		Prices:    []int32{50, 50},
		StartTime: 600,
		Travel:    []int32{60, 60},
		Stopover:  []int32{30},
		SaleStart: mustDate(t, "06-01"),
		SaleEnd:   mustDate(t, "06-10"),
		Type:      'G',
	})
	if err != nil || !ok {
		t.Fatalf("add_train failed: ok=%v err=%v", ok, err)
	}
}

func TestScheduleMath(t *testing.T) {
	var d Data
	d.StationNum = 3
	d.SeatNum = 100
	d.StartTime = 600 // 10:00
	d.Prices = [MaxStations - 1]int32{50, 50}
	d.Travel = [MaxStations - 1]int32{60, 60}
	d.Stopover = [MaxStations - 2]int32{30}
	d.SaleStart = 0
	d.SaleEnd = 9 * timeutil.MinutesPerDay

	if off := d.LeaveOffset(0); off != 600 {
		t.Errorf("LeaveOffset(0) = %d, want 600", off)
	}
	if off := d.ArriveOffset(1); off != 660 {
		t.Errorf("ArriveOffset(1) = %d, want 660", off)
	}
	if off := d.LeaveOffset(1); off != 690 {
		t.Errorf("LeaveOffset(1) = %d, want 690", off)
	}
	if off := d.ArriveOffset(2); off != 750 {
		t.Errorf("ArriveOffset(2) = %d, want 750", off)
	}
	if p := d.PriceBetween(0, 2); p != 100 {
		t.Errorf("PriceBetween(0,2) = %d, want 100", p)
	}
	if dur := d.Duration(0, 2); dur != 150 {
		t.Errorf("Duration(0,2) = %d, want 150", dur)
	}

	// Departure requested on day 2 at midnight: origin date is day 2
	// because the 10:00 departure from index 0 falls on the same day.
	origin := d.OriginDate(0, 2*timeutil.MinutesPerDay)
	if origin != 2*timeutil.MinutesPerDay {
		t.Errorf("OriginDate = %d, want day 2", origin)
	}
	// From index 1 the departure is at 11:30, still same-day.
	origin = d.OriginDate(1, 2*timeutil.MinutesPerDay)
	if origin != 2*timeutil.MinutesPerDay {
		t.Errorf("OriginDate from mid stop = %d, want day 2", origin)
	}
	if !d.VerifyDate(origin) {
		t.Errorf("Origin date should be inside the sale window")
	}
	if d.VerifyDate(10 * timeutil.MinutesPerDay) {
		t.Errorf("Date past sale_end should fail verification")
	}

	if _, ok := d.EarliestValid(10 * timeutil.MinutesPerDay); ok {
		t.Errorf("EarliestValid past sale_end should fail")
	}
	if date, ok := d.EarliestValid(-timeutil.MinutesPerDay); !ok || date != d.SaleStart {
		t.Errorf("EarliestValid below the window = (%d, %v), want snap to sale_start", date, ok)
	}
}

func TestDataCodecRoundTrip(t *testing.T) {
	var d Data
	copy(d.ID[:], "HAPPY_TRAIN")
	d.Hash = bplustree.Hash("HAPPY_TRAIN")
	d.StationNum = 3
	d.SeatNum = 1000
	d.Stations = [MaxStations]int32{3, 1, 4}
	d.Prices[0], d.Prices[1] = 50, 70
	d.StartTime = 600
	d.Travel[0], d.Travel[1] = 60, 90
	d.Stopover[0] = 15
	d.SaleStart = 0
	d.SaleEnd = 100 * timeutil.MinutesPerDay
	d.Type = 'G'
	d.Released = true

	buf := make([]byte, dataCodec{}.Size())
	dataCodec{}.Encode(buf, d)
	got := dataCodec{}.Decode(buf)
	if got != d {
		t.Errorf("Round trip changed the record:\n got %+v\nwant %+v", got, d)
	}
}

func TestCatalogLifecycle(t *testing.T) {
	m, _, _ := newTestManager(t, t.TempDir())
	defer m.Close()

	threeStationTrain(t, m, "T1", 100)

	// Duplicate id
	ok, err := m.Add(AddRequest{ID: "T1", SeatNum: 1, Stations: []string{"X", "Y"},
		Prices: []int32{1}, Travel: []int32{1},
		SaleStart: mustDate(t, "06-01"), SaleEnd: mustDate(t, "06-02"), Type: 'D'})
	if err != nil {
		t.Fatalf("add_train errored: %v", err)
	}
	if ok {
		t.Errorf("Duplicate add_train should fail")
	}

	if ok, _ := m.Release("T1"); !ok {
		t.Fatalf("release_train failed")
	}
	if ok, _ := m.Release("T1"); ok {
		t.Errorf("Second release should fail")
	}
	if ok, _ := m.Delete("T1"); ok {
		t.Errorf("Deleting a released train should fail")
	}

	threeStationTrain(t, m, "T2", 100)
	if ok, _ := m.Delete("T2"); !ok {
		t.Errorf("Deleting an unreleased train should succeed")
	}
	if ok, _ := m.Delete("T2"); ok {
		t.Errorf("Deleting a missing train should fail")
	}
}

func TestSeatEngine(t *testing.T) {
	m, _, _ := newTestManager(t, t.TempDir())
	defer m.Close()

	threeStationTrain(t, m, "T1", 100)
	m.Release("T1")
	d, _, _ := m.Find("T1")
	date := mustDate(t, "06-03")

	// Nothing materialized yet: full capacity.
	seats, err := m.Seats(&d, date, 0, 2)
	if err != nil {
		t.Fatalf("Seats failed: %v", err)
	}
	if seats != 100 {
		t.Errorf("Fresh availability = %d, want 100", seats)
	}

	if err := m.Reserve(&d, date, 0, 2, 30); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if seats, _ = m.Seats(&d, date, 0, 2); seats != 70 {
		t.Errorf("Availability after reserve = %d, want 70", seats)
	}
	// Partial overlap: only edge 1->2 this time.
	if err := m.Reserve(&d, date, 1, 2, 50); err != nil {
		t.Fatalf("Partial reserve failed: %v", err)
	}
	if seats, _ = m.Seats(&d, date, 0, 1); seats != 70 {
		t.Errorf("Edge 0 availability = %d, want 70", seats)
	}
	if seats, _ = m.Seats(&d, date, 0, 2); seats != 20 {
		t.Errorf("Min over both edges = %d, want 20", seats)
	}
	// Another date is untouched.
	if seats, _ = m.Seats(&d, mustDate(t, "06-04"), 0, 2); seats != 100 {
		t.Errorf("Other date availability = %d, want 100", seats)
	}

	if err := m.Restore(&d, date, 1, 2, 50); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if seats, _ = m.Seats(&d, date, 0, 2); seats != 70 {
		t.Errorf("Availability after restore = %d, want 70", seats)
	}

	// Restoring beyond capacity is corruption.
	if err := m.Restore(&d, date, 0, 2, 31); err == nil {
		t.Errorf("Restore past capacity should fail")
	}
	// Restoring an unmaterialized range is corruption.
	if err := m.Restore(&d, mustDate(t, "06-05"), 0, 2, 1); err == nil {
		t.Errorf("Restore of missing cells should fail")
	}
}

func TestQueryTrain(t *testing.T) {
	m, _, _ := newTestManager(t, t.TempDir())
	defer m.Close()

	threeStationTrain(t, m, "T1", 100)

	// Works on unreleased trains.
	out, ok, err := m.QueryTrain("T1", mustDate(t, "06-03"))
	if err != nil || !ok {
		t.Fatalf("query_train failed: ok=%v err=%v", ok, err)
	}
	want := strings.Join([]string{
		"T1 G",
		"A xx-xx xx:xx -> 06-03 10:00 0 100",
		"B 06-03 11:00 -> 06-03 11:30 50 100",
		"C 06-03 12:30 -> xx-xx xx:xx 100 x",
		"",
	}, "\n")
	if out != want {
		t.Errorf("query_train output:\n%q\nwant:\n%q", out, want)
	}

	if _, ok, _ := m.QueryTrain("T1", mustDate(t, "06-11")); ok {
		t.Errorf("query_train outside the sale window should fail")
	}
	if _, ok, _ := m.QueryTrain("NOPE", mustDate(t, "06-03")); ok {
		t.Errorf("query_train of unknown train should fail")
	}

	// Seat column reflects reservations.
	m.Release("T1")
	d, _, _ := m.Find("T1")
	m.Reserve(&d, mustDate(t, "06-03"), 0, 1, 10)
	out, _, _ = m.QueryTrain("T1", mustDate(t, "06-03"))
	if !strings.Contains(out, "A xx-xx xx:xx -> 06-03 10:00 0 90") {
		t.Errorf("Seat column not updated:\n%s", out)
	}
}

func TestQueryTicketSorting(t *testing.T) {
	m, _, _ := newTestManager(t, t.TempDir())
	defer m.Close()

	// Two trains on A -> C: TA is slower but cheaper, TB faster but
	// pricier.
	add := func(id string, start timeutil.DateTime, travel, price int32) {
		ok, err := m.Add(AddRequest{
			ID: id, SeatNum: 50,
			Stations:  []string{"A", "C"},
			Prices:    []int32{price},
			StartTime: start,
			Travel:    []int32{travel},
			SaleStart: mustDate(t, "06-01"),
			SaleEnd:   mustDate(t, "06-10"),
			Type:      'G',
		})
		if err != nil || !ok {
			t.Fatalf("add_train %s failed: ok=%v err=%v", id, ok, err)
		}
		if ok, err := m.Release(id); err != nil || !ok {
			t.Fatalf("release_train %s failed: ok=%v err=%v", id, ok, err)
		}
	}
	add("TA", 600, 180, 100)
	add("TB", 660, 120, 300)

	out, err := m.QueryTicket("A", "C", mustDate(t, "06-03"), false)
	if err != nil {
		t.Fatalf("query_ticket failed: %v", err)
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 || lines[0] != "2" {
		t.Fatalf("query_ticket output:\n%s", out)
	}
	if !strings.HasPrefix(lines[1], "TB ") || !strings.HasPrefix(lines[2], "TA ") {
		t.Errorf("time preference order wrong:\n%s", out)
	}
	if lines[1] != "TB A 06-03 11:00 -> C 06-03 13:00 300 50" {
		t.Errorf("Row format = %q", lines[1])
	}

	out, _ = m.QueryTicket("A", "C", mustDate(t, "06-03"), true)
	lines = strings.Split(strings.TrimRight(out, "\n"), "\n")
	if !strings.HasPrefix(lines[1], "TA ") || !strings.HasPrefix(lines[2], "TB ") {
		t.Errorf("cost preference order wrong:\n%s", out)
	}

	// Unknown stations yield an empty result, not an error.
	if out, _ := m.QueryTicket("A", "NOWHERE", mustDate(t, "06-03"), false); out != "0\n" {
		t.Errorf("Unknown station output = %q", out)
	}
}

func TestQueryTransfer(t *testing.T) {
	m, _, _ := newTestManager(t, t.TempDir())
	defer m.Close()

	add := func(id string, stations []string, start timeutil.DateTime, travel, price []int32) {
		var stop []int32
		if len(stations) > 2 {
			stop = make([]int32, len(stations)-2)
		}
		ok, err := m.Add(AddRequest{
			ID: id, SeatNum: 50, Stations: stations, Prices: price,
			StartTime: start, Travel: travel, Stopover: stop,
			SaleStart: mustDate(t, "06-01"), SaleEnd: mustDate(t, "06-10"), Type: 'G',
		})
		if err != nil || !ok {
			t.Fatalf("add_train %s failed: ok=%v err=%v", id, ok, err)
		}
		if ok, err := m.Release(id); err != nil || !ok {
			t.Fatalf("release_train %s failed: ok=%v err=%v", id, ok, err)
		}
	}
	// Direct train: 10:00 -> 13:00, 200.
	add("TD", []string{"A", "C"}, 600, []int32{180}, []int32{200})
	// Transfer legs: A->B 09:00-10:00 (100), B->C 10:30-11:00 (200).
	add("TL1", []string{"A", "B"}, 540, []int32{60}, []int32{100})
	add("TL2", []string{"B", "C"}, 630, []int32{30}, []int32{200})

	out, err := m.QueryTransfer("A", "C", mustDate(t, "06-03"), false)
	if err != nil {
		t.Fatalf("query_transfer failed: %v", err)
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("query_transfer output:\n%s", out)
	}
	if lines[0] != "TL1 A 06-03 09:00 -> B 06-03 10:00 100 50" {
		t.Errorf("Leg 1 = %q", lines[0])
	}
	if lines[1] != "TL2 B 06-03 10:30 -> C 06-03 11:00 200 50" {
		t.Errorf("Leg 2 = %q", lines[1])
	}

	// No intermediate station at all: 0.
	if out, _ := m.QueryTransfer("B", "C", mustDate(t, "06-03"), false); out != "0\n" {
		t.Errorf("Transfer with no route = %q", out)
	}
}

func TestBuyRefundPromotion(t *testing.T) {
	m, orders, _ := newTestManager(t, t.TempDir())
	defer m.Close()
	defer orders.Close()

	threeStationTrain(t, m, "T1", 2)
	m.Release("T1")
	date := mustDate(t, "06-03")

	// Unreleased / unknown preconditions
	if res, _, _ := m.Buy(orders, 1, "alice", "NOPE", date, 1, "A", "C", false); res != BuyRefused {
		t.Errorf("Buying an unknown train should be refused")
	}

	res, price, err := m.Buy(orders, 1, "alice", "T1", date, 2, "A", "B", false)
	if err != nil {
		t.Fatalf("buy_ticket failed: %v", err)
	}
	if res != BuyBought || price != 100 {
		t.Errorf("buy = (%v, %d), want bought for 100", res, price)
	}

	// No seats left, no queue flag.
	if res, _, _ := m.Buy(orders, 2, "bob", "T1", date, 1, "A", "B", false); res != BuyRefused {
		t.Errorf("Overbooked buy without queue should be refused")
	}
	// Queue flag: pending.
	if res, _, _ := m.Buy(orders, 3, "bob", "T1", date, 1, "A", "B", true); res != BuyQueued {
		t.Errorf("Overbooked buy with queue should queue")
	}
	// Queue of more than capacity: refused outright.
	if res, _, _ := m.Buy(orders, 4, "bob", "T1", date, 3, "A", "B", true); res != BuyRefused {
		t.Errorf("Queueing beyond capacity should be refused")
	}

	// Refund alice: bob's pending order is promoted.
	ok, err := m.Refund(orders, "alice", 1)
	if err != nil || !ok {
		t.Fatalf("refund failed: ok=%v err=%v", ok, err)
	}
	bobOrders, err := orders.ByUser(bplustree.Hash("bob"))
	if err != nil {
		t.Fatalf("ByUser failed: %v", err)
	}
	if len(bobOrders) != 1 || bobOrders[0].Second.Status != order.StatusSuccess {
		t.Errorf("Pending order not promoted: %+v", bobOrders)
	}
	d, _, _ := m.Find("T1")
	if seats, _ := m.Seats(&d, date, 0, 1); seats != 1 {
		t.Errorf("Availability after promotion = %d, want 1", seats)
	}

	// Second refund of the same order fails without touching seats.
	if ok, _ := m.Refund(orders, "alice", 1); ok {
		t.Errorf("Double refund should fail")
	}
	if seats, _ := m.Seats(&d, date, 0, 1); seats != 1 {
		t.Errorf("Double refund moved seats")
	}
}

func TestPromotionSkipsNotBlocks(t *testing.T) {
	m, orders, _ := newTestManager(t, t.TempDir())
	defer m.Close()
	defer orders.Close()

	threeStationTrain(t, m, "T1", 3)
	m.Release("T1")
	date := mustDate(t, "06-03")

	// Fill the train, then queue needs [2, 3, 1, 2].
	if res, _, _ := m.Buy(orders, 1, "u0", "T1", date, 3, "A", "B", false); res != BuyBought {
		t.Fatalf("Initial buy failed")
	}
	needs := []int32{2, 3, 1, 2}
	users := []string{"u1", "u2", "u3", "u4"}
	for i, n := range needs {
		if res, _, _ := m.Buy(orders, int64(10+i), users[i], "T1", date, n, "A", "B", true); res != BuyQueued {
			t.Fatalf("Queueing order %d failed", i)
		}
	}

	// Refund releases 3 seats: u1 (2) fits, u2 (3) is skipped, u3 (1)
	// fits, u4 (2) does not.
	if ok, _ := m.Refund(orders, "u0", 1); !ok {
		t.Fatalf("refund failed")
	}
	wantStatus := []order.Status{order.StatusSuccess, order.StatusPending, order.StatusSuccess, order.StatusPending}
	for i, u := range users {
		got, err := orders.ByUser(bplustree.Hash(u))
		if err != nil || len(got) != 1 {
			t.Fatalf("ByUser(%s) = %d orders, err=%v", u, len(got), err)
		}
		if got[0].Second.Status != wantStatus[i] {
			t.Errorf("%s order status = %c, want %c", u, got[0].Second.Status, wantStatus[i])
		}
	}
	// Skipped entries stay on the waitlist in order.
	wl, err := orders.WaitList(bplustree.Hash("T1"), date)
	if err != nil {
		t.Fatalf("WaitList failed: %v", err)
	}
	if len(wl) != 2 || wl[0].Tickets != 3 || wl[1].Tickets != 2 {
		t.Errorf("Waitlist after promotion = %+v", wl)
	}
}
