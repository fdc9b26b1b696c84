package trading

import "context"

// ExchangeClient is the exchange's REST surface as used by the trading
// loop. Implementations own connection reuse, request signing and retry
// policy, and serialize order submissions: at most one order is in flight
// at a time.
type ExchangeClient interface {
	// Tickers returns a market snapshot covering the given symbols.
	// Symbols unknown to the exchange are absent from the snapshot.
	Tickers(ctx context.Context, symbols []Symbol) (*MarketSnapshot, error)

	// AccountState returns the available balance and open positions.
	AccountState(ctx context.Context) (*AccountState, error)

	// PlaceOrder submits a market order. A business rejection is
	// reported through the result, not through the error. Transient
	// failures are retried internally with bounded backoff before
	// being returned; authentication failures are never retried.
	PlaceOrder(ctx context.Context, order *OrderRequest) (*OrderResult, error)
}
