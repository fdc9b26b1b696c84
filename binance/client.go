// Package binance implements the exchange client against the Binance
// USDT-margined futures REST API.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mgrabarczyk/perptrading/trading"
)

const (
	mainnetURL = "https://fapi.binance.com"
	testnetURL = "https://testnet.binancefuture.com"

	requestTimeout = 1 * time.Minute

	maxRetries        = 3
	retryWaitTime     = 1 * time.Second
	retryMaxWaitTime  = 10 * time.Second
	rateLimitWaitTime = 10 * time.Second

	recvWindow   = "5000"
	apiKeyHeader = "X-MBX-APIKEY"
)

// Config holds the client's connection parameters. ApiKey and SecretKey
// may be empty; the public market data surface works without them.
type Config struct {
	ApiKey    string
	SecretKey string
	Testnet   bool
}

// Client is a trading.ExchangeClient backed by the Binance futures REST
// API. Signed requests carry an HMAC-SHA256 signature over the encoded
// query string and a millisecond timestamp kept in sync with the
// exchange's server clock.
type Client struct {
	logger    trading.Logger
	apiKey    string
	secretKey string

	transport *resty.Client

	timeOffsetMutex sync.RWMutex
	timeOffset      int64

	orderMutex sync.Mutex
}

func NewClient(logger trading.Logger, config *Config) *Client {
	client := &Client{
		logger:    logger,
		apiKey:    config.ApiKey,
		secretKey: config.SecretKey,
	}

	baseURL := mainnetURL
	if config.Testnet {
		baseURL = testnetURL
	}

	client.transport = resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout).
		SetRetryCount(maxRetries).
		SetRetryWaitTime(retryWaitTime).
		SetRetryMaxWaitTime(retryMaxWaitTime).
		AddRetryCondition(func(response *resty.Response, err error) bool {
			if err != nil {
				return true
			}

			return response.StatusCode() == http.StatusTooManyRequests ||
				response.StatusCode() == http.StatusRequestTimeout ||
				response.StatusCode() >= http.StatusInternalServerError
		}).
		SetRetryAfter(func(
			transport *resty.Client,
			response *resty.Response,
		) (time.Duration, error) {
			if response.StatusCode() == http.StatusTooManyRequests {
				header := response.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(header); err == nil {
					return time.Duration(seconds) * time.Second, nil
				}

				return rateLimitWaitTime, nil
			}

			return 0, nil
		}).
		OnBeforeRequest(client.signRequest)

	return client
}

// SyncServerTime measures the offset between the local clock and the
// exchange's server clock. Signed request timestamps are adjusted by
// that offset to stay within the recvWindow.
func (c *Client) SyncServerTime(ctx context.Context) error {
	requestCtx, cancelRequestCtx := context.WithTimeout(ctx, requestTimeout)
	defer cancelRequestCtx()

	var result struct {
		ServerTime int64 `json:"serverTime"`
	}

	response, err := c.transport.R().
		SetContext(requestCtx).
		SetResult(&result).
		Get("/fapi/v1/time")
	if err != nil {
		return &trading.TransientError{
			Err: fmt.Errorf("could not fetch server time: [%v]", err),
		}
	}

	if !response.IsSuccess() {
		return responseError(response)
	}

	c.timeOffsetMutex.Lock()
	defer c.timeOffsetMutex.Unlock()

	c.timeOffset = result.ServerTime - time.Now().UnixMilli()

	c.logger.Debugf(
		"synchronized server time; offset is [%v] ms",
		c.timeOffset,
	)

	return nil
}

func (c *Client) serverTime() int64 {
	c.timeOffsetMutex.RLock()
	defer c.timeOffsetMutex.RUnlock()

	return time.Now().UnixMilli() + c.timeOffset
}

// signRequest runs before every attempt of a signed request, retries
// included, so each attempt carries a fresh timestamp and signature.
// Requests without the API key header pass through untouched.
func (c *Client) signRequest(
	transport *resty.Client,
	request *resty.Request,
) error {
	if request.Header.Get(apiKeyHeader) == "" {
		return nil
	}

	request.QueryParam.Del("signature")
	request.QueryParam.Set(
		"timestamp",
		strconv.FormatInt(c.serverTime(), 10),
	)
	request.QueryParam.Set("recvWindow", recvWindow)

	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(request.QueryParam.Encode()))

	request.QueryParam.Set("signature", hex.EncodeToString(mac.Sum(nil)))

	return nil
}

func (c *Client) newSignedRequest(ctx context.Context) *resty.Request {
	return c.transport.R().
		SetContext(ctx).
		SetHeader(apiKeyHeader, c.apiKey)
}

// apiError is a non-retryable rejection returned by the exchange with a
// 4xx status. It represents a business-level refusal, not a transport
// or authentication problem.
type apiError struct {
	Code    int64  `json:"code"`
	Message string `json:"msg"`
}

func (ae *apiError) Error() string {
	return fmt.Sprintf("exchange error [%v]: [%v]", ae.Code, ae.Message)
}

// Error codes the exchange uses for credential and signature problems.
// https://binance-docs.github.io/apidocs/futures/en/#error-codes
const (
	errCodeUnauthorized     = -1002
	errCodeTimestampOutside = -1021
	errCodeBadSignature     = -1022
	errCodeBadApiKeyFormat  = -2014
	errCodeRejectedApiKey   = -2015
)

func isAuthErrorCode(code int64) bool {
	switch code {
	case errCodeUnauthorized,
		errCodeTimestampOutside,
		errCodeBadSignature,
		errCodeBadApiKeyFormat,
		errCodeRejectedApiKey:
		return true
	default:
		return false
	}
}

// responseError classifies a non-2xx response. Authentication problems
// become trading.AuthError, retryable statuses become
// trading.TransientError and everything else surfaces as an apiError.
func responseError(response *resty.Response) error {
	var exchangeErr apiError
	if err := json.Unmarshal(response.Body(), &exchangeErr); err != nil {
		exchangeErr = apiError{
			Code:    int64(response.StatusCode()),
			Message: string(response.Body()),
		}
	}

	switch {
	case response.StatusCode() == http.StatusUnauthorized,
		response.StatusCode() == http.StatusForbidden,
		isAuthErrorCode(exchangeErr.Code):
		return &trading.AuthError{Err: &exchangeErr}
	case response.StatusCode() == http.StatusTooManyRequests,
		response.StatusCode() == http.StatusRequestTimeout,
		response.StatusCode() >= http.StatusInternalServerError:
		return &trading.TransientError{Err: &exchangeErr}
	default:
		return &exchangeErr
	}
}

func parseMilliseconds(milliseconds int64) time.Time {
	return time.Unix(0, milliseconds*int64(time.Millisecond))
}
