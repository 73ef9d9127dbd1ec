package train

import (
	"fmt"
	"sort"
	"strings"

	"RailwayDB/timeutil"
)

// TicketInfo is one direct-journey candidate, ready to print.
type TicketInfo struct {
	TrainID  string
	From     string
	Leave    timeutil.DateTime
	To       string
	Arrive   timeutil.DateTime
	Price    int32
	Seats    int32
	Duration int32
}

func (t *TicketInfo) Format() string {
	return fmt.Sprintf("%s %s %s -> %s %s %d %d",
		t.TrainID, t.From, t.Leave.String(), t.To, t.Arrive.String(), t.Price, t.Seats)
}

func lessByTime(a, b *TicketInfo) bool {
	if a.Duration != b.Duration {
		return a.Duration < b.Duration
	}
	return a.TrainID < b.TrainID
}

func lessByCost(a, b *TicketInfo) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	return a.TrainID < b.TrainID
}

// candidate is a released train covering a station pair, before its
// origin date is fixed.
type candidate struct {
	train Data
	ref   SegRef
	date  timeutil.DateTime
}

// trainsInSegment returns the released trains covering the pair.
func (m *Manager) trainsInSegment(fromID, toID int32) ([]candidate, error) {
	refs, err := m.segIdx.Find(segPairKey(fromID, toID))
	if err != nil {
		return nil, err
	}
	var out []candidate
	for _, ref := range refs {
		d, ok, err := m.trains.FindHash(ref.TrainHash)
		if err != nil {
			return nil, err
		}
		if ok && d.Released {
			out = append(out, candidate{train: d, ref: ref})
		}
	}
	return out, nil
}

// fixDates assigns each candidate the earliest origin date whose
// departure is at or after minDepart, then keeps those inside the sale
// window. snap lets a date below the window move up to sale start, for
// the second leg of a transfer.
func fixDates(cands []candidate, minDepart timeutil.DateTime, snap bool) []candidate {
	out := cands[:0]
	for _, c := range cands {
		c.date = c.train.OriginDate(int(c.ref.FromIdx), minDepart)
		if snap {
			date, ok := c.train.EarliestValid(c.date)
			if !ok {
				continue
			}
			c.date = date
		} else if !c.train.VerifyDate(c.date) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// tickets resolves candidates into printable rows with live seat
// counts.
func (m *Manager) tickets(cands []candidate) ([]TicketInfo, error) {
	out := make([]TicketInfo, 0, len(cands))
	for _, c := range cands {
		from, to := int(c.ref.FromIdx), int(c.ref.ToIdx)
		seats, err := m.Seats(&c.train, c.date, from, to)
		if err != nil {
			return nil, err
		}
		out = append(out, TicketInfo{
			TrainID:  c.train.IDString(),
			From:     m.dict.Name(c.train.Stations[from]),
			Leave:    c.date + c.train.LeaveOffset(from),
			To:       m.dict.Name(c.train.Stations[to]),
			Arrive:   c.date + c.train.ArriveOffset(to),
			Price:    c.train.PriceBetween(from, to),
			Seats:    seats,
			Duration: c.train.Duration(from, to),
		})
	}
	return out, nil
}

func (m *Manager) findDirect(fromID, toID int32, minDepart timeutil.DateTime) ([]TicketInfo, error) {
	cands, err := m.trainsInSegment(fromID, toID)
	if err != nil {
		return nil, err
	}
	return m.tickets(fixDates(cands, minDepart, false))
}

// QueryTicket lists the direct trains serving the pair on the date,
// sorted by the preference.
func (m *Manager) QueryTicket(from, to string, date timeutil.DateTime, byCost bool) (string, error) {
	fromID, okF := m.dict.Lookup(from)
	toID, okT := m.dict.Lookup(to)
	if !okF || !okT {
		return "0\n", nil
	}
	found, err := m.findDirect(fromID, toID, date)
	if err != nil {
		return "", err
	}
	less := lessByTime
	if byCost {
		less = lessByCost
	}
	sort.Slice(found, func(i, j int) bool { return less(&found[i], &found[j]) })

	var b strings.Builder
	fmt.Fprintf(&b, "%d\n", len(found))
	for i := range found {
		b.WriteString(found[i].Format())
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// transferPick tracks the best two-leg journey seen so far.
type transferPick struct {
	leg1, leg2 TicketInfo
	duration   int32
	price      int32
	found      bool
}

func (p *transferPick) offer(t1, t2 *TicketInfo, byCost bool) {
	if t1.TrainID == t2.TrainID {
		return
	}
	duration := int32(t2.Arrive - t1.Leave)
	price := t1.Price + t2.Price

	better := false
	if !p.found {
		better = true
	} else if byCost {
		switch {
		case price != p.price:
			better = price < p.price
		case duration != p.duration:
			better = duration < p.duration
		case t1.TrainID != p.leg1.TrainID:
			better = t1.TrainID < p.leg1.TrainID
		default:
			better = t2.TrainID < p.leg2.TrainID
		}
	} else {
		switch {
		case duration != p.duration:
			better = duration < p.duration
		case price != p.price:
			better = price < p.price
		case t1.TrainID != p.leg1.TrainID:
			better = t1.TrainID < p.leg1.TrainID
		default:
			better = t2.TrainID < p.leg2.TrainID
		}
	}
	if better {
		p.leg1, p.leg2 = *t1, *t2
		p.duration, p.price = duration, price
		p.found = true
	}
}

// QueryTransfer searches every intermediate station for the optimal
// two-leg journey. The second leg departs no earlier than the first
// leg's arrival, snapped into its train's sale window.
func (m *Manager) QueryTransfer(from, to string, date timeutil.DateTime, byCost bool) (string, error) {
	fromID, okF := m.dict.Lookup(from)
	toID, okT := m.dict.Lookup(to)
	if !okF || !okT {
		return "0\n", nil
	}

	var best transferPick
	for mid := int32(0); mid < int32(m.dict.Count()); mid++ {
		if mid == fromID || mid == toID {
			continue
		}
		leg1, err := m.findDirect(fromID, mid, date)
		if err != nil {
			return "", err
		}
		if len(leg1) == 0 {
			continue
		}
		leg2Cands, err := m.trainsInSegment(mid, toID)
		if err != nil {
			return "", err
		}
		if len(leg2Cands) == 0 {
			continue
		}
		for i := range leg1 {
			t1 := &leg1[i]
			cands := make([]candidate, len(leg2Cands))
			copy(cands, leg2Cands)
			leg2, err := m.tickets(fixDates(cands, t1.Arrive, true))
			if err != nil {
				return "", err
			}
			for j := range leg2 {
				best.offer(t1, &leg2[j], byCost)
			}
		}
	}

	if !best.found {
		return "0\n", nil
	}
	return best.leg1.Format() + "\n" + best.leg2.Format() + "\n", nil
}
