package techan

import (
	"math/big"
	"testing"
	"time"

	"github.com/mgrabarczyk/perptrading/trading"
)

func TestTrendFilter_ConfirmsEverythingWithoutEnoughData(t *testing.T) {
	filter := NewTrendFilter(&noopLogger{}, 20)

	filter.Observe(snapshotAt("BTCUSDT", 100, time.Now()))

	if !filter.Confirm(signal("BTCUSDT", trading.LONG)) {
		t.Errorf("filter should be neutral before the window fills up")
	}

	if !filter.Confirm(signal("BTCUSDT", trading.SHORT)) {
		t.Errorf("filter should be neutral before the window fills up")
	}
}

func TestTrendFilter_ConfirmsSignalsAlongTheTrend(t *testing.T) {
	filter := NewTrendFilter(&noopLogger{}, 20)

	// A steadily rising price keeps the last price above its EMA.
	observationTime := time.Now()
	for price := 100; price < 125; price++ {
		filter.Observe(snapshotAt(
			"BTCUSDT",
			float64(price),
			observationTime,
		))
		observationTime = observationTime.Add(time.Minute)
	}

	if !filter.Confirm(signal("BTCUSDT", trading.LONG)) {
		t.Errorf("long signal along a rising trend should be confirmed")
	}

	if filter.Confirm(signal("BTCUSDT", trading.SHORT)) {
		t.Errorf("short signal against a rising trend should be vetoed")
	}
}

func TestTrendFilter_VetoesSignalsAgainstTheTrend(t *testing.T) {
	filter := NewTrendFilter(&noopLogger{}, 20)

	observationTime := time.Now()
	for price := 125; price > 100; price-- {
		filter.Observe(snapshotAt(
			"BTCUSDT",
			float64(price),
			observationTime,
		))
		observationTime = observationTime.Add(time.Minute)
	}

	if filter.Confirm(signal("BTCUSDT", trading.LONG)) {
		t.Errorf("long signal against a falling trend should be vetoed")
	}

	if !filter.Confirm(signal("BTCUSDT", trading.SHORT)) {
		t.Errorf("short signal along a falling trend should be confirmed")
	}
}

func TestTrendFilter_TracksSymbolsIndependently(t *testing.T) {
	filter := NewTrendFilter(&noopLogger{}, 20)

	observationTime := time.Now()
	for price := 100; price < 125; price++ {
		filter.Observe(snapshotAt(
			"BTCUSDT",
			float64(price),
			observationTime,
		))
		observationTime = observationTime.Add(time.Minute)
	}

	// ETHUSDT has no observations so the filter stays neutral there.
	if !filter.Confirm(signal("ETHUSDT", trading.SHORT)) {
		t.Errorf("filter should be neutral for an unobserved symbol")
	}
}

func snapshotAt(
	symbol trading.Symbol,
	price float64,
	time time.Time,
) *trading.MarketSnapshot {
	return trading.NewMarketSnapshot(time, &trading.Ticker{
		Symbol:      symbol,
		LastPrice:   big.NewFloat(price),
		OpenPrice:   big.NewFloat(price),
		QuoteVolume: big.NewFloat(1000),
		Time:        time,
	})
}

func signal(
	symbol trading.Symbol,
	direction trading.SignalDirection,
) *trading.Signal {
	return &trading.Signal{
		Symbol:     symbol,
		Direction:  direction,
		Confidence: 1,
		Time:       time.Now(),
	}
}

type noopLogger struct{}

func (nl *noopLogger) Debugf(format string, args ...interface{})   {}
func (nl *noopLogger) Infof(format string, args ...interface{})    {}
func (nl *noopLogger) Warningf(format string, args ...interface{}) {}
func (nl *noopLogger) Errorf(format string, args ...interface{})   {}
func (nl *noopLogger) Fatalf(format string, args ...interface{})   {}

func (nl *noopLogger) WithField(key string, value interface{}) trading.Logger {
	return nl
}

func (nl *noopLogger) WithFields(
	fields map[string]interface{},
) trading.Logger {
	return nl
}
