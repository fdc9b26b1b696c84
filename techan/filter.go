// Package techan adapts the techan technical analysis library as a
// trend filter for momentum signals.
package techan

import (
	"sync"

	"github.com/mgrabarczyk/perptrading/trading"
	techanbig "github.com/sdcoffey/big"
	"github.com/sdcoffey/techan"
)

const defaultEmaLength = 20

// TrendFilter vetoes signals that go against the prevailing trend. It
// accumulates one price observation per symbol per cycle and confirms a
// signal only when the last price sits on the signal's side of its EMA.
//
// Until a symbol has emaLength observations the filter stays neutral
// and confirms everything.
type TrendFilter struct {
	logger    trading.Logger
	emaLength int

	candlesMutex sync.RWMutex
	candles      map[trading.Symbol][]*techan.Candle
}

func NewTrendFilter(logger trading.Logger, emaLength int) *TrendFilter {
	if emaLength <= 0 {
		emaLength = defaultEmaLength
	}

	return &TrendFilter{
		logger:    logger,
		emaLength: emaLength,
		candles:   make(map[trading.Symbol][]*techan.Candle),
	}
}

func (tf *TrendFilter) Observe(snapshot *trading.MarketSnapshot) {
	tf.candlesMutex.Lock()
	defer tf.candlesMutex.Unlock()

	windowSize := 3 * tf.emaLength

	for _, symbol := range snapshot.Symbols() {
		ticker, ok := snapshot.Ticker(symbol)
		if !ok {
			continue
		}

		candles := append(tf.candles[symbol], toTechanCandle(ticker))

		if len(candles) > windowSize {
			index := 0
			copy(candles[index:], candles[index+1:])
			candles[len(candles)-1] = nil
			candles = candles[:len(candles)-1]
		}

		tf.candles[symbol] = candles
	}
}

func (tf *TrendFilter) Confirm(signal *trading.Signal) bool {
	tf.candlesMutex.RLock()
	defer tf.candlesMutex.RUnlock()

	candles := tf.candles[signal.Symbol]

	if len(candles) < tf.emaLength {
		return true
	}

	series := techan.NewTimeSeries()
	for _, candle := range candles {
		series.AddCandle(candle)
	}

	lastIndex := series.LastIndex()
	price := techan.NewClosePriceIndicator(series)
	priceEma := techan.NewEMAIndicator(price, tf.emaLength)

	comparison := price.Calculate(lastIndex).
		Cmp(priceEma.Calculate(lastIndex))

	tf.logger.Debugf(
		"trend check for [%v]: price=%v ema=%v",
		signal.Symbol,
		price.Calculate(lastIndex).FormattedString(2),
		priceEma.Calculate(lastIndex).FormattedString(2),
	)

	switch signal.Direction {
	case trading.LONG:
		return comparison >= 0
	case trading.SHORT:
		return comparison <= 0
	default:
		return false
	}
}

func toTechanCandle(ticker *trading.Ticker) *techan.Candle {
	period := techan.TimePeriod{
		Start: ticker.Time,
		End:   ticker.Time,
	}

	candle := techan.NewCandle(period)

	price := techanbig.NewFromString(ticker.LastPrice.Text('f', 8))

	candle.OpenPrice = price
	candle.ClosePrice = price
	candle.MaxPrice = price
	candle.MinPrice = price
	candle.Volume = techanbig.NewFromString(
		ticker.QuoteVolume.Text('f', 8),
	)

	return candle
}
