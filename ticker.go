package trading

import (
	"fmt"
	"math/big"
	"time"
)

type Symbol string

// Ticker is a single symbol's 24-hour market summary. OpenPrice is the
// price from 24 hours before Time.
type Ticker struct {
	Symbol      Symbol
	LastPrice   *big.Float
	OpenPrice   *big.Float
	QuoteVolume *big.Float
	Time        time.Time
}

func (t *Ticker) String() string {
	return fmt.Sprintf(
		"symbol: %v, last: %v, open: %v",
		t.Symbol,
		t.LastPrice.Text('f', 2),
		t.OpenPrice.Text('f', 2),
	)
}

// MarketSnapshot is the market state used by a single loop cycle. It is
// fetched once per cycle and never mutated afterwards.
type MarketSnapshot struct {
	tickers map[Symbol]*Ticker
	time    time.Time
}

func NewMarketSnapshot(time time.Time, tickers ...*Ticker) *MarketSnapshot {
	tickersMap := make(map[Symbol]*Ticker, len(tickers))
	for _, ticker := range tickers {
		tickersMap[ticker.Symbol] = ticker
	}

	return &MarketSnapshot{
		tickers: tickersMap,
		time:    time,
	}
}

func (ms *MarketSnapshot) Ticker(symbol Symbol) (*Ticker, bool) {
	ticker, exists := ms.tickers[symbol]
	return ticker, exists
}

func (ms *MarketSnapshot) Symbols() []Symbol {
	symbols := make([]Symbol, 0, len(ms.tickers))
	for symbol := range ms.tickers {
		symbols = append(symbols, symbol)
	}

	return symbols
}

func (ms *MarketSnapshot) Time() time.Time {
	return ms.time
}

func (ms *MarketSnapshot) Size() int {
	return len(ms.tickers)
}
