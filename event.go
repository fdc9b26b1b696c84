package trading

import "fmt"

type Event struct {
	Payload string
}

func NewOrderPlacedEvent(record *OrderRecord) *Event {
	return &Event{
		Payload: fmt.Sprintf(
			"New order has been placed:\n"+
				"- ID: %v\n"+
				"- Symbol: %v\n"+
				"- Side: %v\n"+
				"- Notional: %v\n"+
				"- Exchange order ID: %v",
			record.ID,
			record.Symbol,
			record.Side,
			record.Notional.Text('f', 2),
			record.ExchangeOrderID,
		),
	}
}

func NewOrderRejectedEvent(record *OrderRecord) *Event {
	return &Event{
		Payload: fmt.Sprintf(
			"Order has been rejected:\n"+
				"- ID: %v\n"+
				"- Symbol: %v\n"+
				"- Side: %v\n"+
				"- Notional: %v\n"+
				"- Reason: %v",
			record.ID,
			record.Symbol,
			record.Side,
			record.Notional.Text('f', 2),
			record.Reason,
		),
	}
}

type EventService interface {
	Publish(event *Event)
}

// NoopEventService is used when no notification sink is configured.
type NoopEventService struct{}

func (nes *NoopEventService) Publish(event *Event) {}
