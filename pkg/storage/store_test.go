package storage

import (
	"path/filepath"
	"testing"

	"github.com/voodoo-o/toy-exchange/pkg/exchange/instrument"
	"github.com/voodoo-o/toy-exchange/pkg/exchange/order"
	"github.com/voodoo-o/toy-exchange/pkg/exchange/txlog"
	"github.com/voodoo-o/toy-exchange/pkg/exchange/user"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "exchange.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUserRoundTrip(t *testing.T) {
	s := openStore(t)

	alice := user.User{ID: "u1", Name: "alice", Role: user.RoleUser, APIKey: "key-1"}
	admin := user.User{ID: "u2", Name: "root", Role: user.RoleAdmin, APIKey: "key-2"}
	if err := s.SaveUser(alice); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}
	if err := s.SaveUser(admin); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}

	users, err := s.LoadUsers()
	if err != nil {
		t.Fatalf("LoadUsers: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("got %d users, want 2", len(users))
	}

	if err := s.DeleteUser("u1"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	users, _ = s.LoadUsers()
	if len(users) != 1 || users[0].ID != "u2" {
		t.Errorf("after delete: %+v", users)
	}
}

func TestInstrumentRoundTrip(t *testing.T) {
	s := openStore(t)

	if err := s.SaveInstrument(instrument.Instrument{Ticker: "MEMCOIN", Name: "Meme Coin"}); err != nil {
		t.Fatalf("SaveInstrument: %v", err)
	}

	insts, err := s.LoadInstruments()
	if err != nil {
		t.Fatalf("LoadInstruments: %v", err)
	}
	if len(insts) != 1 || insts[0].Ticker != "MEMCOIN" {
		t.Fatalf("insts = %+v", insts)
	}

	if err := s.DeleteInstrument("MEMCOIN"); err != nil {
		t.Fatalf("DeleteInstrument: %v", err)
	}
	insts, _ = s.LoadInstruments()
	if len(insts) != 0 {
		t.Errorf("instrument survived delete: %+v", insts)
	}
}

func TestBalanceOverwrite(t *testing.T) {
	s := openStore(t)

	s.SaveBalance("alice", "RUB", 100)
	s.SaveBalance("alice", "RUB", 60) // later snapshot wins
	s.SaveBalance("alice", "MEMCOIN", 5)
	s.SaveBalance("bob", "RUB", 7)

	rows, err := s.LoadBalances()
	if err != nil {
		t.Fatalf("LoadBalances: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}

	byKey := make(map[string]int64)
	for _, row := range rows {
		byKey[row.UserID+"/"+row.Asset] = row.Amount
	}
	if byKey["alice/RUB"] != 60 {
		t.Errorf("alice/RUB = %d, want 60", byKey["alice/RUB"])
	}
	if byKey["alice/MEMCOIN"] != 5 || byKey["bob/RUB"] != 7 {
		t.Errorf("rows = %v", byKey)
	}
}

func TestOrdersLoadOldestFirst(t *testing.T) {
	s := openStore(t)

	mk := func(id string, ts int64, status order.Status) *order.Order {
		return &order.Order{
			ID: id, UserID: "alice", Ticker: "MEMCOIN",
			Direction: order.Buy, Kind: order.Limit,
			Qty: 5, Price: 100, Status: status, Timestamp: ts,
		}
	}
	s.SaveOrder(mk("o-late", 300, order.New))
	s.SaveOrder(mk("o-early", 100, order.Executed))
	s.SaveOrder(mk("o-mid", 200, order.Cancelled))

	orders, err := s.LoadOrders()
	if err != nil {
		t.Fatalf("LoadOrders: %v", err)
	}
	if len(orders) != 3 {
		t.Fatalf("got %d orders, want 3", len(orders))
	}
	for i, want := range []string{"o-early", "o-mid", "o-late"} {
		if orders[i].ID != want {
			t.Errorf("orders[%d] = %s, want %s (time priority depends on this)", i, orders[i].ID, want)
		}
	}
}

func TestTradesRoundTrip(t *testing.T) {
	s := openStore(t)

	for i, tx := range []txlog.Transaction{
		{ID: "t2", Ticker: "MEMCOIN", Amount: 2, Price: 101, BuyerID: "a", SellerID: "b", Timestamp: 200},
		{ID: "t1", Ticker: "MEMCOIN", Amount: 1, Price: 100, BuyerID: "a", SellerID: "b", Timestamp: 100},
	} {
		if err := s.SaveTrade(tx); err != nil {
			t.Fatalf("SaveTrade[%d]: %v", i, err)
		}
	}

	trades, err := s.LoadTrades()
	if err != nil {
		t.Fatalf("LoadTrades: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("got %d trades, want 2", len(trades))
	}
	if trades[0].ID != "t1" || trades[1].ID != "t2" {
		t.Errorf("trades not oldest first: %s, %s", trades[0].ID, trades[1].ID)
	}
}

func TestReopenKeepsState(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exchange.db")

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.SaveUser(user.User{ID: "u1", Name: "alice", Role: user.RoleUser, APIKey: "key-1"})
	s.SaveBalance("u1", "RUB", 42)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { s2.Close() })

	users, _ := s2.LoadUsers()
	if len(users) != 1 || users[0].Name != "alice" {
		t.Errorf("users after reopen: %+v", users)
	}
	rows, _ := s2.LoadBalances()
	if len(rows) != 1 || rows[0].Amount != 42 {
		t.Errorf("balances after reopen: %+v", rows)
	}
}
