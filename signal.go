package trading

import (
	"fmt"
	"math/big"
	"time"
)

type SignalDirection int

const (
	NONE SignalDirection = iota
	LONG
	SHORT
)

func ParseSignalDirection(value string) (SignalDirection, error) {
	switch value {
	case "NONE":
		return NONE, nil
	case "LONG":
		return LONG, nil
	case "SHORT":
		return SHORT, nil
	}

	return -1, fmt.Errorf("unknown signal direction: [%v]", value)
}

func (sd SignalDirection) String() string {
	switch sd {
	case NONE:
		return "NONE"
	case LONG:
		return "LONG"
	case SHORT:
		return "SHORT"
	default:
		panic("unknown signal direction")
	}
}

func (sd SignalDirection) OrderSide() OrderSide {
	switch sd {
	case LONG:
		return BUY
	case SHORT:
		return SELL
	default:
		panic("directionless signal has no order side")
	}
}

// Signal is a directional trade suggestion produced for one symbol within
// one loop cycle. It is discarded when not acted on within its cycle.
type Signal struct {
	Symbol     Symbol
	Direction  SignalDirection
	Confidence float64
	Time       time.Time
}

func (s *Signal) String() string {
	return fmt.Sprintf(
		"%v %v (confidence: %.2f)",
		s.Symbol,
		s.Direction,
		s.Confidence,
	)
}

type SignalEvaluator interface {
	Evaluate(snapshot *MarketSnapshot, symbol Symbol) *Signal
}

// SignalFilter can veto a signal based on broader market context. Observe
// is called once per cycle, before any Confirm call of that cycle.
type SignalFilter interface {
	Observe(snapshot *MarketSnapshot)

	Confirm(signal *Signal) bool
}

// MomentumEvaluator emits a signal when a symbol's 24-hour percentage price
// change reaches the configured threshold. It is deterministic and does no
// I/O: the same snapshot and symbol always produce the same signal.
type MomentumEvaluator struct {
	threshold *big.Float
}

// NewMomentumEvaluator creates an evaluator with the given momentum
// threshold, expressed in percent.
func NewMomentumEvaluator(threshold *big.Float) *MomentumEvaluator {
	return &MomentumEvaluator{
		threshold: threshold,
	}
}

func (me *MomentumEvaluator) Evaluate(
	snapshot *MarketSnapshot,
	symbol Symbol,
) *Signal {
	signal := &Signal{
		Symbol:    symbol,
		Direction: NONE,
		Time:      snapshot.Time(),
	}

	ticker, exists := snapshot.Ticker(symbol)
	if !exists {
		return signal
	}

	// A missing or non-positive historical price makes the percentage
	// change undefined. Emit no signal instead of failing the cycle.
	if ticker.OpenPrice == nil || ticker.LastPrice == nil ||
		ticker.OpenPrice.Sign() <= 0 {
		return signal
	}

	change := new(big.Float).Quo(
		new(big.Float).Sub(ticker.LastPrice, ticker.OpenPrice),
		ticker.OpenPrice,
	)
	change.Mul(change, big.NewFloat(100))

	absChange := new(big.Float).Abs(change)

	// The threshold boundary is inclusive.
	if absChange.Cmp(me.threshold) < 0 {
		return signal
	}

	if change.Sign() > 0 {
		signal.Direction = LONG
	} else {
		signal.Direction = SHORT
	}

	signal.Confidence = me.confidence(absChange)

	return signal
}

// confidence grows with the absolute change relative to the threshold,
// reaching 0.5 exactly at the threshold, and is clamped to [0, 1].
func (me *MomentumEvaluator) confidence(absChange *big.Float) float64 {
	ratio := new(big.Float).Quo(
		absChange,
		new(big.Float).Mul(me.threshold, big.NewFloat(2)),
	)

	value, _ := ratio.Float64()
	if value > 1 {
		value = 1
	}

	return value
}
