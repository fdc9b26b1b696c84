package trading

import (
	"fmt"
	"math/big"
	"time"
)

type OrderSide int

const (
	BUY OrderSide = iota
	SELL
)

func ParseOrderSide(value string) (OrderSide, error) {
	switch value {
	case "BUY":
		return BUY, nil
	case "SELL":
		return SELL, nil
	}

	return -1, fmt.Errorf("unknown order side: [%v]", value)
}

func (os OrderSide) String() string {
	switch os {
	case BUY:
		return "BUY"
	case SELL:
		return "SELL"
	default:
		panic("unknown order side")
	}
}

// OrderRequest is a quote-denominated market order proposal. ID is the
// client-assigned idempotency key: the exchange must not execute two
// orders carrying the same ID. The request never outlives the cycle that
// created it.
type OrderRequest struct {
	ID       ID
	Symbol   Symbol
	Side     OrderSide
	Notional *big.Float
	Time     time.Time
}

func (or *OrderRequest) String() string {
	return fmt.Sprintf(
		"%v %v, notional: %v, id: %v",
		or.Side,
		or.Symbol,
		or.Notional.Text('f', 2),
		or.ID,
	)
}

type OrderStatus int

const (
	ACCEPTED OrderStatus = iota
	REJECTED
)

func ParseOrderStatus(value string) (OrderStatus, error) {
	switch value {
	case "ACCEPTED":
		return ACCEPTED, nil
	case "REJECTED":
		return REJECTED, nil
	}

	return -1, fmt.Errorf("unknown order status: [%v]", value)
}

func (os OrderStatus) String() string {
	switch os {
	case ACCEPTED:
		return "ACCEPTED"
	case REJECTED:
		return "REJECTED"
	default:
		panic("unknown order status")
	}
}

// OrderResult is the exchange's answer to an order request. A rejection
// for a business reason (e.g. insufficient margin) is a normal result,
// not an error.
type OrderResult struct {
	Status          OrderStatus
	ExchangeOrderID string
	Reason          string
	Time            time.Time
}

// OrderRecord is the journal entry written for every order decision the
// loop makes, whether the order was dispatched or rejected before leaving
// the process.
type OrderRecord struct {
	ID              string
	Symbol          Symbol
	Side            OrderSide
	Notional        *big.Float
	Status          OrderStatus
	Reason          string
	ExchangeOrderID string
	Time            time.Time
}

func NewOrderRecord(order *OrderRequest, result *OrderResult) *OrderRecord {
	return &OrderRecord{
		ID:              order.ID.String(),
		Symbol:          order.Symbol,
		Side:            order.Side,
		Notional:        order.Notional,
		Status:          result.Status,
		Reason:          result.Reason,
		ExchangeOrderID: result.ExchangeOrderID,
		Time:            result.Time,
	}
}

type TradeJournal interface {
	RecordOrder(record *OrderRecord) error
}

// TradeJournalReader is the journal's read side, used by the control
// surface. Records come back newest first.
type TradeJournalReader interface {
	RecentOrders(limit int) ([]*OrderRecord, error)
}
