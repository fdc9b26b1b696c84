package trading

import (
	"fmt"
	"math/big"
	"time"
)

// Position is a single open position as reported by the exchange.
// Notional is the quote-denominated value of the position.
type Position struct {
	Symbol     Symbol
	Side       SignalDirection
	Notional   *big.Float
	EntryPrice *big.Float
	OpenedAt   time.Time
}

func (p *Position) String() string {
	return fmt.Sprintf(
		"%v %v, notional: %v",
		p.Symbol,
		p.Side,
		p.Notional.Text('f', 2),
	)
}

// AccountState is the account view used by a single loop cycle. It is
// fetched from the exchange once per cycle and never trusted across
// cycles; sizing and risk decisions depend on current exposure.
type AccountState struct {
	Available *big.Float
	Positions []*Position
}

func (as *AccountState) TotalExposure() *big.Float {
	exposure := big.NewFloat(0)

	for _, position := range as.Positions {
		exposure.Add(exposure, position.Notional)
	}

	return exposure
}

func (as *AccountState) HasPosition(symbol Symbol) bool {
	for _, position := range as.Positions {
		if position.Symbol == symbol {
			return true
		}
	}

	return false
}

func (as *AccountState) OpenPositionsCount() int {
	return len(as.Positions)
}

// WithPosition returns a copy of the account state extended with the given
// position. The loop uses it to account for orders approved earlier in the
// same cycle, which the exchange's position list cannot reflect yet.
func (as *AccountState) WithPosition(position *Position) *AccountState {
	positions := make([]*Position, len(as.Positions), len(as.Positions)+1)
	copy(positions, as.Positions)

	return &AccountState{
		Available: as.Available,
		Positions: append(positions, position),
	}
}
