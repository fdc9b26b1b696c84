package binance

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/mgrabarczyk/perptrading/trading"
)

// PlaceOrder submits a quote-denominated market order. The client order
// ID is the request's own ID, so transparent retries of the same request
// cannot open the position twice.
//
// A business-level refusal by the exchange is not an error; it comes
// back as a rejected result.
func (c *Client) PlaceOrder(
	ctx context.Context,
	order *trading.OrderRequest,
) (*trading.OrderResult, error) {
	// At most one order in flight at a time.
	c.orderMutex.Lock()
	defer c.orderMutex.Unlock()

	requestCtx, cancelRequestCtx := context.WithTimeout(ctx, requestTimeout)
	defer cancelRequestCtx()

	var response struct {
		OrderId    int64  `json:"orderId"`
		Status     string `json:"status"`
		UpdateTime int64  `json:"updateTime"`
	}

	httpResponse, err := c.newSignedRequest(requestCtx).
		SetQueryParams(map[string]string{
			"symbol":           string(order.Symbol),
			"side":             order.Side.String(),
			"type":             "MARKET",
			"quoteOrderQty":    order.Notional.Text('f', 2),
			"newClientOrderId": order.ID.String(),
		}).
		SetResult(&response).
		Post("/fapi/v1/order")
	if err != nil {
		return nil, &trading.TransientError{
			Err: fmt.Errorf("could not place order: [%v]", err),
		}
	}

	if !httpResponse.IsSuccess() {
		classifiedErr := responseError(httpResponse)

		if trading.IsAuthFailure(classifiedErr) ||
			trading.IsTransient(classifiedErr) {
			return nil, classifiedErr
		}

		var rejection *apiError
		if errors.As(classifiedErr, &rejection) {
			c.logger.Warningf(
				"order [%v] has been rejected by the exchange: [%v]",
				order.ID,
				rejection.Message,
			)

			return &trading.OrderResult{
				Status: trading.REJECTED,
				Reason: rejection.Message,
				Time:   parseMilliseconds(c.serverTime()),
			}, nil
		}

		return nil, classifiedErr
	}

	return &trading.OrderResult{
		Status:          trading.ACCEPTED,
		ExchangeOrderID: strconv.FormatInt(response.OrderId, 10),
		Time:            parseMilliseconds(response.UpdateTime),
	}, nil
}
