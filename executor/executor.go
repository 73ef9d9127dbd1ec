// Package executor dispatches parsed commands to the user, train and
// order modules and renders their responses.
package executor

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"RailwayDB/bplustree"
	"RailwayDB/fileconfig"
	"RailwayDB/order"
	"RailwayDB/parser"
	"RailwayDB/station"
	"RailwayDB/timeutil"
	"RailwayDB/train"
	"RailwayDB/user"
)

// Engine owns every store and executes one command at a time.
type Engine struct {
	slab   *fileconfig.Slab
	dict   *station.Dict
	users  *user.Manager
	trains *train.Manager
	orders *order.Store
	log    *slog.Logger
}

// New opens or creates all stores under dataDir. The counter-slab
// binding order below is part of the on-disk format and must not
// change.
func New(dataDir string, cacheMB int64, log *slog.Logger) (*Engine, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	slab, err := fileconfig.Open(filepath.Join(dataDir, "counters.dat"))
	if err != nil {
		return nil, err
	}
	dict, err := station.Load(filepath.Join(dataDir, "stations.dat"))
	if err != nil {
		return nil, err
	}

	perTree := cacheMB << 20 / 6
	users, err := user.NewManager(filepath.Join(dataDir, "users.dat"), slab, perTree)
	if err != nil {
		return nil, err
	}
	trains, err := train.NewManager(
		filepath.Join(dataDir, "trains.dat"),
		filepath.Join(dataDir, "segments.dat"),
		filepath.Join(dataDir, "seats.dat"),
		slab, perTree, dict)
	if err != nil {
		users.Close()
		return nil, err
	}
	orders, err := order.NewStore(
		filepath.Join(dataDir, "orders.dat"),
		filepath.Join(dataDir, "waitlist.dat"),
		slab, perTree)
	if err != nil {
		users.Close()
		trains.Close()
		return nil, err
	}
	return &Engine{slab: slab, dict: dict, users: users, trains: trains, orders: orders, log: log}, nil
}

// Execute runs one command and returns its output block (with its own
// trailing newline). done is true after exit.
func (e *Engine) Execute(cmd *parser.Command) (out string, done bool, err error) {
	switch cmd.Name {
	case "add_user":
		return e.addUser(cmd)
	case "login":
		ok, err := e.users.Login(cmd.Arg('u'), cmd.Arg('p'))
		return status(ok), false, err
	case "logout":
		return status(e.users.Logout(cmd.Arg('u'))), false, nil
	case "query_profile":
		profile, ok, err := e.users.QueryProfile(cmd.Arg('c'), cmd.Arg('u'))
		if err != nil || !ok {
			return "-1\n", false, err
		}
		return profile + "\n", false, nil
	case "modify_profile":
		return e.modifyProfile(cmd)
	case "add_train":
		return e.addTrain(cmd)
	case "delete_train":
		ok, err := e.trains.Delete(cmd.Arg('i'))
		return status(ok), false, err
	case "release_train":
		ok, err := e.trains.Release(cmd.Arg('i'))
		return status(ok), false, err
	case "query_train":
		return e.queryTrain(cmd)
	case "query_ticket":
		return e.queryTickets(cmd, false)
	case "query_transfer":
		return e.queryTickets(cmd, true)
	case "buy_ticket":
		return e.buyTicket(cmd)
	case "query_order":
		return e.queryOrder(cmd)
	case "refund_ticket":
		return e.refundTicket(cmd)
	case "clean":
		if err := e.clean(); err != nil {
			return "", false, err
		}
		return "0\n", false, nil
	case "exit":
		return "bye\n", true, nil
	}
	return "", false, fmt.Errorf("unknown command %q", cmd.Name)
}

func status(ok bool) string {
	if ok {
		return "0\n"
	}
	return "-1\n"
}

func (e *Engine) addUser(cmd *parser.Command) (string, bool, error) {
	privilege, err := cmd.IntArg('g', -1)
	if err != nil {
		return "", false, err
	}
	ok, err := e.users.Add(cmd.Arg('c'), cmd.Arg('u'), cmd.Arg('p'), cmd.Arg('n'), cmd.Arg('m'), int32(privilege))
	return status(ok), false, err
}

func (e *Engine) modifyProfile(cmd *parser.Command) (string, bool, error) {
	var password, name, mail *string
	var privilege *int32
	if cmd.Has('p') {
		v := cmd.Arg('p')
		password = &v
	}
	if cmd.Has('n') {
		v := cmd.Arg('n')
		name = &v
	}
	if cmd.Has('m') {
		v := cmd.Arg('m')
		mail = &v
	}
	if cmd.Has('g') {
		n, err := cmd.IntArg('g', 0)
		if err != nil {
			return "", false, err
		}
		v := int32(n)
		privilege = &v
	}
	profile, ok, err := e.users.ModifyProfile(cmd.Arg('c'), cmd.Arg('u'), password, name, mail, privilege)
	if err != nil || !ok {
		return "-1\n", false, err
	}
	return profile + "\n", false, nil
}

func splitInts(s string) ([]int32, error) {
	if s == "" || s == "_" {
		return nil, nil
	}
	parts := strings.Split(s, "|")
	out := make([]int32, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", s, err)
		}
		out[i] = int32(n)
	}
	return out, nil
}

func (e *Engine) addTrain(cmd *parser.Command) (string, bool, error) {
	stationNum, err := cmd.IntArg('n', 0)
	if err != nil {
		return "", false, err
	}
	seatNum, err := cmd.IntArg('m', 0)
	if err != nil {
		return "", false, err
	}
	stations := strings.Split(cmd.Arg('s'), "|")
	prices, err := splitInts(cmd.Arg('p'))
	if err != nil {
		return "", false, err
	}
	startTime, err := timeutil.ParseTimeOfDay(cmd.Arg('x'))
	if err != nil {
		return "", false, err
	}
	travel, err := splitInts(cmd.Arg('t'))
	if err != nil {
		return "", false, err
	}
	stopover, err := splitInts(cmd.Arg('o'))
	if err != nil {
		return "", false, err
	}
	saleParts := strings.Split(cmd.Arg('d'), "|")
	if len(saleParts) != 2 {
		return "", false, fmt.Errorf("add_train: bad sale window %q", cmd.Arg('d'))
	}
	saleStart, err := timeutil.ParseDate(saleParts[0])
	if err != nil {
		return "", false, err
	}
	saleEnd, err := timeutil.ParseDate(saleParts[1])
	if err != nil {
		return "", false, err
	}
	typeStr := cmd.Arg('y')
	n := int(stationNum)
	if len(stations) != n || len(prices) != n-1 || len(travel) != n-1 || len(stopover) != n-2 || len(typeStr) != 1 {
		return "-1\n", false, nil
	}

	ok, err := e.trains.Add(train.AddRequest{
		ID:        cmd.Arg('i'),
		SeatNum:   int32(seatNum),
		Stations:  stations,
		Prices:    prices,
		StartTime: startTime,
		Travel:    travel,
		Stopover:  stopover,
		SaleStart: saleStart,
		SaleEnd:   saleEnd,
		Type:      typeStr[0],
	})
	return status(ok), false, err
}

func (e *Engine) queryTrain(cmd *parser.Command) (string, bool, error) {
	date, err := timeutil.ParseDate(cmd.Arg('d'))
	if err != nil {
		return "-1\n", false, nil
	}
	out, ok, err := e.trains.QueryTrain(cmd.Arg('i'), date)
	if err != nil || !ok {
		return "-1\n", false, err
	}
	return out, false, nil
}

func (e *Engine) queryTickets(cmd *parser.Command, transfer bool) (string, bool, error) {
	date, err := timeutil.ParseDate(cmd.Arg('d'))
	if err != nil {
		return "0\n", false, nil
	}
	byCost := cmd.ArgOr('p', "time") == "cost"
	if transfer {
		out, err := e.trains.QueryTransfer(cmd.Arg('s'), cmd.Arg('t'), date, byCost)
		return out, false, err
	}
	out, err := e.trains.QueryTicket(cmd.Arg('s'), cmd.Arg('t'), date, byCost)
	return out, false, err
}

func (e *Engine) buyTicket(cmd *parser.Command) (string, bool, error) {
	username := cmd.Arg('u')
	if !e.users.LoggedIn(username) {
		return "-1\n", false, nil
	}
	date, err := timeutil.ParseDate(cmd.Arg('d'))
	if err != nil {
		return "-1\n", false, nil
	}
	n, err := cmd.IntArg('n', 0)
	if err != nil {
		return "", false, err
	}
	queue := cmd.ArgOr('q', "false") == "true"
	result, price, err := e.trains.Buy(e.orders, cmd.Timestamp, username, cmd.Arg('i'),
		date, int32(n), cmd.Arg('f'), cmd.Arg('t'), queue)
	if err != nil {
		return "", false, err
	}
	switch result {
	case train.BuyBought:
		return fmt.Sprintf("%d\n", price), false, nil
	case train.BuyQueued:
		return "queue\n", false, nil
	}
	return "-1\n", false, nil
}

func (e *Engine) queryOrder(cmd *parser.Command) (string, bool, error) {
	username := cmd.Arg('u')
	if !e.users.LoggedIn(username) {
		return "-1\n", false, nil
	}
	entries, err := e.orders.ByUser(bplustree.Hash(username))
	if err != nil {
		return "", false, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d\n", len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		r := &entries[i].Second
		fmt.Fprintf(&b, "%s %s %s %s -> %s %s %d %d\n",
			r.Status.String(), r.TrainIDString(),
			e.dict.Name(r.FromStation), r.Leave.String(),
			e.dict.Name(r.ToStation), r.Arrive.String(),
			r.Price, r.Count)
	}
	return b.String(), false, nil
}

func (e *Engine) refundTicket(cmd *parser.Command) (string, bool, error) {
	username := cmd.Arg('u')
	if !e.users.LoggedIn(username) {
		return "-1\n", false, nil
	}
	n, err := cmd.IntArg('n', 1)
	if err != nil {
		return "", false, err
	}
	ok, err := e.trains.Refund(e.orders, username, int(n))
	return status(ok), false, err
}

// clean resets every store to its initial empty state.
func (e *Engine) clean() error {
	e.log.Info("clean: resetting all stores")
	if err := e.users.Clean(); err != nil {
		return err
	}
	if err := e.trains.Clean(); err != nil {
		return err
	}
	if err := e.orders.Clean(); err != nil {
		return err
	}
	e.dict.Clear()
	return nil
}

// Close flushes every store, the station dictionary and the counter
// slab.
func (e *Engine) Close() error {
	var first error
	for _, c := range []func() error{e.users.Close, e.trains.Close, e.orders.Close, e.dict.Close, e.slab.Close} {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
