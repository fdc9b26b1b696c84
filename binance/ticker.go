package binance

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/mgrabarczyk/perptrading/trading"
)

type tickerResponse struct {
	Symbol      string `json:"symbol"`
	LastPrice   string `json:"lastPrice"`
	OpenPrice   string `json:"openPrice"`
	QuoteVolume string `json:"quoteVolume"`
	CloseTime   int64  `json:"closeTime"`
}

// Tickers fetches the 24-hour rolling window statistics and returns a
// snapshot containing the requested symbols. Symbols unknown to the
// exchange are simply absent from the snapshot.
func (c *Client) Tickers(
	ctx context.Context,
	symbols []trading.Symbol,
) (*trading.MarketSnapshot, error) {
	requestCtx, cancelRequestCtx := context.WithTimeout(ctx, requestTimeout)
	defer cancelRequestCtx()

	var response []tickerResponse

	httpResponse, err := c.transport.R().
		SetContext(requestCtx).
		SetResult(&response).
		Get("/fapi/v1/ticker/24hr")
	if err != nil {
		return nil, &trading.TransientError{
			Err: fmt.Errorf("could not fetch tickers: [%v]", err),
		}
	}

	if !httpResponse.IsSuccess() {
		return nil, responseError(httpResponse)
	}

	requested := make(map[trading.Symbol]bool)
	for _, symbol := range symbols {
		requested[symbol] = true
	}

	tickers := make([]*trading.Ticker, 0, len(symbols))

	for _, item := range response {
		symbol := trading.Symbol(item.Symbol)

		if !requested[symbol] {
			continue
		}

		ticker, err := parseTicker(symbol, &item)
		if err != nil {
			return nil, err
		}

		tickers = append(tickers, ticker)
	}

	return trading.NewMarketSnapshot(time.Now(), tickers...), nil
}

func parseTicker(
	symbol trading.Symbol,
	response *tickerResponse,
) (*trading.Ticker, error) {
	lastPrice, ok := new(big.Float).SetString(response.LastPrice)
	if !ok {
		return nil, fmt.Errorf(
			"could not parse last price for symbol [%v]",
			symbol,
		)
	}

	openPrice, ok := new(big.Float).SetString(response.OpenPrice)
	if !ok {
		return nil, fmt.Errorf(
			"could not parse open price for symbol [%v]",
			symbol,
		)
	}

	quoteVolume, ok := new(big.Float).SetString(response.QuoteVolume)
	if !ok {
		return nil, fmt.Errorf(
			"could not parse quote volume for symbol [%v]",
			symbol,
		)
	}

	return &trading.Ticker{
		Symbol:      symbol,
		LastPrice:   lastPrice,
		OpenPrice:   openPrice,
		QuoteVolume: quoteVolume,
		Time:        parseMilliseconds(response.CloseTime),
	}, nil
}
