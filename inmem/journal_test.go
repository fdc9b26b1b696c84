package inmem

import (
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/mgrabarczyk/perptrading/trading"
)

func TestTradeJournal_RecordOrder(t *testing.T) {
	journal := NewTradeJournal(10)

	for index := 0; index < 3; index++ {
		err := journal.RecordOrder(record(fmt.Sprintf("order-%v", index)))
		if err != nil {
			t.Fatalf("could not record order: [%v]", err)
		}
	}

	recent, err := journal.RecentOrders(10)
	if err != nil {
		t.Fatalf("could not fetch recent orders: [%v]", err)
	}

	if len(recent) != 3 {
		t.Fatalf(
			"unexpected records count\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			3,
			len(recent),
		)
	}

	// Newest first.
	if recent[0].ID != "order-2" {
		t.Errorf(
			"unexpected first record\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			"order-2",
			recent[0].ID,
		)
	}
}

func TestTradeJournal_WindowSizeIsEnforced(t *testing.T) {
	journal := NewTradeJournal(2)

	for index := 0; index < 5; index++ {
		err := journal.RecordOrder(record(fmt.Sprintf("order-%v", index)))
		if err != nil {
			t.Fatalf("could not record order: [%v]", err)
		}
	}

	recent, err := journal.RecentOrders(10)
	if err != nil {
		t.Fatalf("could not fetch recent orders: [%v]", err)
	}

	if len(recent) != 2 {
		t.Fatalf(
			"unexpected records count\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			2,
			len(recent),
		)
	}

	if recent[0].ID != "order-4" || recent[1].ID != "order-3" {
		t.Errorf(
			"oldest records should be dropped first; got [%v] and [%v]",
			recent[0].ID,
			recent[1].ID,
		)
	}
}

func TestTradeJournal_RecentOrdersLimit(t *testing.T) {
	journal := NewTradeJournal(10)

	for index := 0; index < 5; index++ {
		err := journal.RecordOrder(record(fmt.Sprintf("order-%v", index)))
		if err != nil {
			t.Fatalf("could not record order: [%v]", err)
		}
	}

	recent, err := journal.RecentOrders(2)
	if err != nil {
		t.Fatalf("could not fetch recent orders: [%v]", err)
	}

	if len(recent) != 2 {
		t.Fatalf(
			"unexpected records count\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			2,
			len(recent),
		)
	}
}

func record(id string) *trading.OrderRecord {
	return &trading.OrderRecord{
		ID:       id,
		Symbol:   "BTCUSDT",
		Side:     trading.BUY,
		Notional: big.NewFloat(50),
		Status:   trading.ACCEPTED,
		Time:     time.Now(),
	}
}
