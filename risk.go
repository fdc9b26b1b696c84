package trading

import "math/big"

// RiskLimits is immutable configuration. Exposure limits are fractions of
// the available balance.
type RiskLimits struct {
	MaxTotalExposure *big.Float
	MaxPositionRisk  *big.Float
	MaxOpenPositions int
}

type RejectionReason string

const (
	MaxPositionsExceeded    RejectionReason = "max_positions_exceeded"
	PerPositionRiskExceeded RejectionReason = "per_position_risk_exceeded"
	TotalExposureExceeded   RejectionReason = "total_exposure_exceeded"
)

type RiskDecision struct {
	Approved bool
	Reason   RejectionReason
}

// RiskGate decides whether a proposed order may leave the process. It is
// free of side effects and never mutates the account state; the caller
// must refresh its account view after an approved order executes.
type RiskGate struct {
	limits *RiskLimits
}

func NewRiskGate(limits *RiskLimits) *RiskGate {
	return &RiskGate{
		limits: limits,
	}
}

// Authorize runs the limit checks in a fixed order; the first failing
// check determines the rejection reason.
func (rg *RiskGate) Authorize(
	order *OrderRequest,
	account *AccountState,
) RiskDecision {
	// An order for an already held symbol does not open a new position.
	if account.OpenPositionsCount() >= rg.limits.MaxOpenPositions &&
		!account.HasPosition(order.Symbol) {
		return rejection(MaxPositionsExceeded)
	}

	positionRiskLimit := new(big.Float).Mul(
		account.Available,
		rg.limits.MaxPositionRisk,
	)
	if order.Notional.Cmp(positionRiskLimit) > 0 {
		return rejection(PerPositionRiskExceeded)
	}

	exposureLimit := new(big.Float).Mul(
		account.Available,
		rg.limits.MaxTotalExposure,
	)
	proposedExposure := new(big.Float).Add(
		account.TotalExposure(),
		order.Notional,
	)
	if proposedExposure.Cmp(exposureLimit) > 0 {
		return rejection(TotalExposureExceeded)
	}

	return RiskDecision{Approved: true}
}

func rejection(reason RejectionReason) RiskDecision {
	return RiskDecision{
		Approved: false,
		Reason:   reason,
	}
}
