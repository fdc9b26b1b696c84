package binance

import (
	"context"
	"fmt"
	"math/big"

	"github.com/mgrabarczyk/perptrading/trading"
)

// AccountState combines the futures account balance with the currently
// open positions. Both calls are signed.
func (c *Client) AccountState(
	ctx context.Context,
) (*trading.AccountState, error) {
	requestCtx, cancelRequestCtx := context.WithTimeout(ctx, requestTimeout)
	defer cancelRequestCtx()

	available, err := c.availableBalance(requestCtx)
	if err != nil {
		return nil, err
	}

	positions, err := c.openPositions(requestCtx)
	if err != nil {
		return nil, err
	}

	return &trading.AccountState{
		Available: available,
		Positions: positions,
	}, nil
}

func (c *Client) availableBalance(ctx context.Context) (*big.Float, error) {
	var response struct {
		AvailableBalance string `json:"availableBalance"`
	}

	httpResponse, err := c.newSignedRequest(ctx).
		SetResult(&response).
		Get("/fapi/v2/account")
	if err != nil {
		return nil, &trading.TransientError{
			Err: fmt.Errorf("could not fetch account balance: [%v]", err),
		}
	}

	if !httpResponse.IsSuccess() {
		return nil, responseError(httpResponse)
	}

	available, ok := new(big.Float).SetString(response.AvailableBalance)
	if !ok {
		return nil, fmt.Errorf(
			"could not parse available balance [%v]",
			response.AvailableBalance,
		)
	}

	return available, nil
}

func (c *Client) openPositions(
	ctx context.Context,
) ([]*trading.Position, error) {
	var response []struct {
		Symbol      string `json:"symbol"`
		PositionAmt string `json:"positionAmt"`
		EntryPrice  string `json:"entryPrice"`
		Notional    string `json:"notional"`
		UpdateTime  int64  `json:"updateTime"`
	}

	httpResponse, err := c.newSignedRequest(ctx).
		SetResult(&response).
		Get("/fapi/v2/positionRisk")
	if err != nil {
		return nil, &trading.TransientError{
			Err: fmt.Errorf("could not fetch positions: [%v]", err),
		}
	}

	if !httpResponse.IsSuccess() {
		return nil, responseError(httpResponse)
	}

	positions := make([]*trading.Position, 0)

	for _, item := range response {
		amount, ok := new(big.Float).SetString(item.PositionAmt)
		if !ok {
			return nil, fmt.Errorf(
				"could not parse position amount for symbol [%v]",
				item.Symbol,
			)
		}

		if amount.Sign() == 0 {
			continue
		}

		entryPrice, ok := new(big.Float).SetString(item.EntryPrice)
		if !ok {
			return nil, fmt.Errorf(
				"could not parse entry price for symbol [%v]",
				item.Symbol,
			)
		}

		notional, ok := new(big.Float).SetString(item.Notional)
		if !ok {
			return nil, fmt.Errorf(
				"could not parse notional for symbol [%v]",
				item.Symbol,
			)
		}

		side := trading.LONG
		if amount.Sign() < 0 {
			side = trading.SHORT
		}

		positions = append(positions, &trading.Position{
			Symbol:     trading.Symbol(item.Symbol),
			Side:       side,
			Notional:   new(big.Float).Abs(notional),
			EntryPrice: entryPrice,
			OpenedAt:   parseMilliseconds(item.UpdateTime),
		})
	}

	return positions, nil
}
