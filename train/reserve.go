package train

import (
	"fmt"

	"RailwayDB/bplustree"
	"RailwayDB/order"
	"RailwayDB/timeutil"
)

// BuyResult is the outcome of a purchase attempt.
type BuyResult int

const (
	BuyRefused BuyResult = iota
	BuyBought
	BuyQueued
)

// Buy attempts a purchase on behalf of a logged-in user. On success it
// reserves seats and records a SUCCESS order; with queue set and too
// few seats it records a PENDING order instead, unless n exceeds the
// train's capacity outright.
func (m *Manager) Buy(orders *order.Store, ts int64, username, trainID string,
	date timeutil.DateTime, n int32, fromName, toName string, queue bool) (BuyResult, int64, error) {

	fromID, okF := m.dict.Lookup(fromName)
	toID, okT := m.dict.Lookup(toName)
	if !okF || !okT {
		return BuyRefused, 0, nil
	}
	d, ok, err := m.trains.Find(trainID)
	if err != nil {
		return BuyRefused, 0, err
	}
	if !ok || !d.Released {
		return BuyRefused, 0, nil
	}
	from := d.StationIndex(fromID)
	to := d.StationIndex(toID)
	if from < 0 || to < 0 || from >= to {
		return BuyRefused, 0, nil
	}
	origin := d.OriginDate(from, date)
	if !origin.InScope() || !d.VerifyDate(origin) {
		return BuyRefused, 0, nil
	}

	seats, err := m.Seats(&d, origin, from, to)
	if err != nil {
		return BuyRefused, 0, err
	}
	price := d.PriceBetween(from, to)
	rec := order.Record{
		TrainHash:   d.Hash,
		FromStation: fromID,
		ToStation:   toID,
		FromIdx:     uint16(from),
		ToIdx:       uint16(to),
		OriginDate:  origin,
		Price:       price,
		Count:       n,
		Leave:       origin + d.LeaveOffset(from),
		Arrive:      origin + d.ArriveOffset(to),
	}
	copy(rec.TrainID[:], trainID)
	userHash := bplustree.Hash(username)

	if seats >= n {
		if err := m.Reserve(&d, origin, from, to, n); err != nil {
			return BuyRefused, 0, err
		}
		rec.Status = order.StatusSuccess
		if err := orders.Record(userHash, ts, rec); err != nil {
			return BuyRefused, 0, err
		}
		return BuyBought, int64(price) * int64(n), nil
	}
	if !queue || n > d.SeatNum {
		return BuyRefused, 0, nil
	}
	rec.Status = order.StatusPending
	if err := orders.Record(userHash, ts, rec); err != nil {
		return BuyRefused, 0, err
	}
	return BuyQueued, 0, nil
}

// Refund refunds the user's n-th most recent order. A SUCCESS order
// returns its seats and triggers waitlist promotion; a PENDING order
// only leaves the waitlist. The status flips to REFUNDED before any
// seat movement, so a double refund cannot release seats twice.
func (m *Manager) Refund(orders *order.Store, username string, n int) (bool, error) {
	userHash := bplustree.Hash(username)
	key, rec, ok, err := orders.NthMostRecent(userHash, n)
	if err != nil || !ok {
		return false, err
	}
	if rec.Status == order.StatusRefunded {
		return false, nil
	}
	prior := rec.Status
	if changed, err := orders.UpdateStatus(key, order.StatusRefunded); err != nil || !changed {
		return false, err
	}

	switch prior {
	case order.StatusSuccess:
		d, ok, err := m.trains.FindHash(rec.TrainHash)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, fmt.Errorf("refund: order references unknown train %s", rec.TrainIDString())
		}
		if err := m.Restore(&d, rec.OriginDate, int(rec.FromIdx), int(rec.ToIdx), rec.Count); err != nil {
			return false, err
		}
		if err := m.promote(orders, &d, rec.OriginDate); err != nil {
			return false, err
		}
	case order.StatusPending:
		if _, err := orders.RemoveWait(rec.TrainHash, rec.OriginDate, order.WaitEntry{
			CommandTS: key.Second,
			UserHash:  userHash,
			FromIdx:   rec.FromIdx,
			ToIdx:     rec.ToIdx,
			Tickets:   rec.Count,
		}); err != nil {
			return false, err
		}
	}
	return true, nil
}

// promote walks the waitlist for (train, origin date) in command order
// and fulfills every entry whose segment now has enough seats. Entries
// that still do not fit are skipped, not blocked on.
func (m *Manager) promote(orders *order.Store, d *Data, date timeutil.DateTime) error {
	entries, err := orders.WaitList(d.Hash, date)
	if err != nil {
		return err
	}
	for _, e := range entries {
		seats, err := m.Seats(d, date, int(e.FromIdx), int(e.ToIdx))
		if err != nil {
			return err
		}
		if seats < e.Tickets {
			continue
		}
		if err := m.Reserve(d, date, int(e.FromIdx), int(e.ToIdx), e.Tickets); err != nil {
			return err
		}
		if _, err := orders.UpdateStatus(bplustree.Pair[uint64, int64]{First: e.UserHash, Second: e.CommandTS}, order.StatusSuccess); err != nil {
			return err
		}
		if _, err := orders.RemoveWait(d.Hash, date, e); err != nil {
			return err
		}
	}
	return nil
}
