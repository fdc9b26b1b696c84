package trading

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"
)

func TestTradingLoop_DispatchesApprovedOrder(t *testing.T) {
	exchange := newFakeExchange()
	exchange.snapshot = snapshot(ticker("BTCUSDT", 108, 100))
	exchange.account = account(1000)

	journal := &fakeJournal{}

	loop := newTestLoop(
		loopConfig("BTCUSDT"),
		exchange,
		journal,
	)

	loop.runCycle()

	if len(exchange.placedOrders) != 1 {
		t.Fatalf(
			"unexpected placed orders count\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			1,
			len(exchange.placedOrders),
		)
	}

	placed := exchange.placedOrders[0]

	// Balance 1000 at a 0.05 allocation fraction sizes the order at 50.
	expectedNotional := big.NewFloat(50)
	if expectedNotional.Cmp(placed.Notional) != 0 {
		t.Errorf(
			"unexpected order notional\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			expectedNotional.Text('f', 2),
			placed.Notional.Text('f', 2),
		)
	}

	if len(journal.records) != 1 {
		t.Fatalf(
			"unexpected journal records count\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			1,
			len(journal.records),
		)
	}

	if journal.records[0].Status != ACCEPTED {
		t.Errorf(
			"unexpected journal record status\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			ACCEPTED,
			journal.records[0].Status,
		)
	}

	assertHealthState(t, HealthHealthy, loop)
}

func TestTradingLoop_MarketFetchFailureSkipsCycle(t *testing.T) {
	exchange := newFakeExchange()
	exchange.snapshotErr = &TransientError{
		Err: fmt.Errorf("gateway timeout"),
	}

	loop := newTestLoop(loopConfig("BTCUSDT"), exchange, &fakeJournal{})

	loop.runCycle()

	if exchange.accountCalls != 0 {
		t.Errorf(
			"account state should not be fetched when the market "+
				"snapshot fetch fails; got [%v] calls",
			exchange.accountCalls,
		)
	}

	if len(exchange.placedOrders) != 0 {
		t.Errorf(
			"no orders should be placed; got [%v]",
			len(exchange.placedOrders),
		)
	}

	assertHealthState(t, HealthDegraded, loop)
}

func TestTradingLoop_RiskRejectionDoesNotAbortCycle(t *testing.T) {
	exchange := newFakeExchange()
	exchange.snapshot = snapshot(
		ticker("ADAUSDT", 108, 100),
		ticker("BTCUSDT", 108, 100),
	)
	// Three positions held; ADAUSDT would be a fourth symbol while
	// BTCUSDT is already held.
	exchange.account = account(
		1000,
		position("BTCUSDT", 10),
		position("ETHUSDT", 10),
		position("SOLUSDT", 10),
	)

	journal := &fakeJournal{}

	loop := newTestLoop(
		loopConfig("ADAUSDT", "BTCUSDT"),
		exchange,
		journal,
	)

	loop.runCycle()

	if len(exchange.placedOrders) != 1 {
		t.Fatalf(
			"unexpected placed orders count\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			1,
			len(exchange.placedOrders),
		)
	}

	if exchange.placedOrders[0].Symbol != "BTCUSDT" {
		t.Errorf(
			"unexpected placed order symbol\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			"BTCUSDT",
			exchange.placedOrders[0].Symbol,
		)
	}

	rejected := journal.recordsWithStatus(REJECTED)
	if len(rejected) != 1 {
		t.Fatalf(
			"unexpected rejected records count\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			1,
			len(rejected),
		)
	}

	if rejected[0].Reason != string(MaxPositionsExceeded) {
		t.Errorf(
			"unexpected rejection reason\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			MaxPositionsExceeded,
			rejected[0].Reason,
		)
	}

	assertHealthState(t, HealthHealthy, loop)
}

func TestTradingLoop_CycleLocalExposureAccounting(t *testing.T) {
	exchange := newFakeExchange()
	exchange.snapshot = snapshot(
		ticker("BTCUSDT", 108, 100),
		ticker("ETHUSDT", 108, 100),
	)
	exchange.account = account(1000)

	journal := &fakeJournal{}

	config := loopConfig("BTCUSDT", "ETHUSDT")
	config.AllocationFraction = big.NewFloat(0.3)

	limits := &RiskLimits{
		MaxTotalExposure: big.NewFloat(0.5),
		MaxPositionRisk:  big.NewFloat(0.4),
		MaxOpenPositions: 3,
	}

	loop := NewTradingLoop(
		&discardLogger{},
		config,
		exchange,
		NewMomentumEvaluator(big.NewFloat(3)),
		nil,
		NewRiskGate(limits),
		journal,
		&NoopEventService{},
		&fakeIDService{},
	)
	loop.state = RUNNING

	loop.runCycle()

	// Both symbols signal but the exposure limit of 500 only fits one
	// 300 notional order. The first configured symbol wins; the second
	// must see the exposure the first one just added.
	if len(exchange.placedOrders) != 1 {
		t.Fatalf(
			"unexpected placed orders count\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			1,
			len(exchange.placedOrders),
		)
	}

	if exchange.placedOrders[0].Symbol != "BTCUSDT" {
		t.Errorf(
			"unexpected placed order symbol\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			"BTCUSDT",
			exchange.placedOrders[0].Symbol,
		)
	}

	rejected := journal.recordsWithStatus(REJECTED)
	if len(rejected) != 1 ||
		rejected[0].Reason != string(TotalExposureExceeded) {
		t.Errorf(
			"second order should be rejected with [%v]; got records [%v]",
			TotalExposureExceeded,
			len(rejected),
		)
	}
}

func TestTradingLoop_AuthFailureSuspendsDispatch(t *testing.T) {
	exchange := newFakeExchange()
	exchange.snapshot = snapshot(ticker("BTCUSDT", 108, 100))
	exchange.account = account(1000)
	exchange.orderErr = &AuthError{
		Err: fmt.Errorf("signature for this request is not valid"),
	}

	loop := newTestLoop(loopConfig("BTCUSDT"), exchange, &fakeJournal{})

	loop.runCycle()

	assertHealthState(t, HealthDegraded, loop)

	if exchange.placeCalls != 1 {
		t.Fatalf(
			"unexpected order placement attempts\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			1,
			exchange.placeCalls,
		)
	}

	// Subsequent cycles keep sampling market and account state but must
	// not attempt dispatch until credentials are resolved.
	loop.runCycle()

	if exchange.tickersCalls != 2 || exchange.accountCalls != 2 {
		t.Errorf(
			"market and account fetches should continue; got "+
				"[%v] ticker calls and [%v] account calls",
			exchange.tickersCalls,
			exchange.accountCalls,
		)
	}

	if exchange.placeCalls != 1 {
		t.Errorf(
			"no further order placement should be attempted; got [%v]",
			exchange.placeCalls,
		)
	}

	assertHealthState(t, HealthDegraded, loop)
}

func TestTradingLoop_TransientDispatchFailureDegradesCycle(t *testing.T) {
	exchange := newFakeExchange()
	exchange.snapshot = snapshot(ticker("BTCUSDT", 108, 100))
	exchange.account = account(1000)
	exchange.orderErr = &TransientError{
		Err: fmt.Errorf("service unavailable"),
	}

	loop := newTestLoop(loopConfig("BTCUSDT"), exchange, &fakeJournal{})

	loop.runCycle()

	assertHealthState(t, HealthDegraded, loop)

	// Dispatch stays enabled; the next cycle tries again.
	exchange.orderErr = nil

	loop.runCycle()

	if exchange.placeCalls != 2 {
		t.Errorf(
			"unexpected order placement attempts\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			2,
			exchange.placeCalls,
		)
	}

	assertHealthState(t, HealthHealthy, loop)
}

func TestTradingLoop_BusinessRejectionIsNormalOutcome(t *testing.T) {
	exchange := newFakeExchange()
	exchange.snapshot = snapshot(ticker("BTCUSDT", 108, 100))
	exchange.account = account(1000)
	exchange.orderResult = &OrderResult{
		Status: REJECTED,
		Reason: "insufficient margin",
		Time:   time.Now(),
	}

	journal := &fakeJournal{}

	loop := newTestLoop(loopConfig("BTCUSDT"), exchange, journal)

	loop.runCycle()

	rejected := journal.recordsWithStatus(REJECTED)
	if len(rejected) != 1 || rejected[0].Reason != "insufficient margin" {
		t.Errorf(
			"exchange rejection should be journaled as a normal outcome",
		)
	}

	assertHealthState(t, HealthHealthy, loop)
}

func TestTradingLoop_MinConfidenceDropsWeakSignals(t *testing.T) {
	exchange := newFakeExchange()
	// Exactly at the threshold: confidence 0.5, below the configured
	// minimum of 0.6.
	exchange.snapshot = snapshot(ticker("BTCUSDT", 103, 100))
	exchange.account = account(1000)

	config := loopConfig("BTCUSDT")
	config.MinConfidence = 0.6

	loop := newTestLoop(config, exchange, &fakeJournal{})

	loop.runCycle()

	if len(exchange.placedOrders) != 0 {
		t.Errorf(
			"weak signal should not produce an order; got [%v]",
			len(exchange.placedOrders),
		)
	}
}

func TestTradingLoop_FilterVetoDropsSignal(t *testing.T) {
	exchange := newFakeExchange()
	exchange.snapshot = snapshot(ticker("BTCUSDT", 108, 100))
	exchange.account = account(1000)

	filter := &fakeFilter{confirm: false}

	loop := newTestLoop(loopConfig("BTCUSDT"), exchange, &fakeJournal{})
	loop.filter = filter

	loop.runCycle()

	if filter.observeCalls != 1 {
		t.Errorf(
			"filter should observe the snapshot once; got [%v]",
			filter.observeCalls,
		)
	}

	if len(exchange.placedOrders) != 0 {
		t.Errorf(
			"vetoed signal should not produce an order; got [%v]",
			len(exchange.placedOrders),
		)
	}
}

func TestTradingLoop_DisabledDispatchObservesOnly(t *testing.T) {
	exchange := newFakeExchange()
	exchange.snapshot = snapshot(ticker("BTCUSDT", 108, 100))

	loop := newTestLoop(loopConfig("BTCUSDT"), exchange, &fakeJournal{})
	loop.DisableDispatch("exchange credentials are not configured")

	loop.runCycle()

	if exchange.accountCalls != 0 {
		t.Errorf(
			"account state should not be fetched without credentials; "+
				"got [%v] calls",
			exchange.accountCalls,
		)
	}

	if exchange.placeCalls != 0 {
		t.Errorf(
			"no dispatch should be attempted without credentials; "+
				"got [%v] calls",
			exchange.placeCalls,
		)
	}

	assertHealthState(t, HealthDegraded, loop)

	health := loop.Health()
	if health.LastError == "" {
		t.Errorf("health should carry the misconfiguration reason")
	}
}

func TestTradingLoop_Lifecycle(t *testing.T) {
	exchange := newFakeExchange()
	exchange.snapshot = snapshot(ticker("BTCUSDT", 101, 100))
	exchange.account = account(1000)

	config := loopConfig("BTCUSDT")
	config.Interval = 10 * time.Millisecond

	loop := newTestLoop(config, exchange, &fakeJournal{})
	loop.state = IDLE

	if err := loop.Start(); err != nil {
		t.Fatalf("could not start loop: [%v]", err)
	}

	if err := loop.Start(); err == nil {
		t.Errorf("starting a running loop should fail")
	}

	deadline := time.Now().Add(1 * time.Second)
	for exchange.tickerCallCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("loop did not run any cycle")
		}
		time.Sleep(5 * time.Millisecond)
	}

	loop.Stop()

	assertHealthState(t, HealthStopped, loop)

	// A stopped loop can be started again.
	if err := loop.Start(); err != nil {
		t.Fatalf("could not restart loop: [%v]", err)
	}

	loop.Stop()
}

func newTestLoop(
	config *LoopConfig,
	exchange *fakeExchange,
	journal *fakeJournal,
) *TradingLoop {
	loop := NewTradingLoop(
		&discardLogger{},
		config,
		exchange,
		NewMomentumEvaluator(big.NewFloat(3)),
		nil,
		NewRiskGate(defaultLimits()),
		journal,
		&NoopEventService{},
		&fakeIDService{},
	)

	loop.state = RUNNING

	return loop
}

func loopConfig(symbols ...Symbol) *LoopConfig {
	return &LoopConfig{
		Symbols:            symbols,
		Interval:           15 * time.Second,
		AllocationFraction: big.NewFloat(0.05),
		MinConfidence:      0.3,
	}
}

func assertHealthState(t *testing.T, expected string, loop *TradingLoop) {
	t.Helper()

	actual := loop.Health().State

	if expected != actual {
		t.Errorf(
			"unexpected health state\n"+
				"expected: [%v]\n"+
				"actual:   [%v]",
			expected,
			actual,
		)
	}
}

type fakeExchange struct {
	mutex sync.Mutex

	snapshot    *MarketSnapshot
	snapshotErr error
	account     *AccountState
	accountErr  error
	orderResult *OrderResult
	orderErr    error

	tickersCalls int
	accountCalls int
	placeCalls   int
	placedOrders []*OrderRequest
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{}
}

func (fe *fakeExchange) Tickers(
	ctx context.Context,
	symbols []Symbol,
) (*MarketSnapshot, error) {
	fe.mutex.Lock()
	defer fe.mutex.Unlock()

	fe.tickersCalls++

	if fe.snapshotErr != nil {
		return nil, fe.snapshotErr
	}

	return fe.snapshot, nil
}

func (fe *fakeExchange) AccountState(
	ctx context.Context,
) (*AccountState, error) {
	fe.mutex.Lock()
	defer fe.mutex.Unlock()

	fe.accountCalls++

	if fe.accountErr != nil {
		return nil, fe.accountErr
	}

	return fe.account, nil
}

func (fe *fakeExchange) PlaceOrder(
	ctx context.Context,
	order *OrderRequest,
) (*OrderResult, error) {
	fe.mutex.Lock()
	defer fe.mutex.Unlock()

	fe.placeCalls++

	if fe.orderErr != nil {
		return nil, fe.orderErr
	}

	fe.placedOrders = append(fe.placedOrders, order)

	if fe.orderResult != nil {
		return fe.orderResult, nil
	}

	return &OrderResult{
		Status:          ACCEPTED,
		ExchangeOrderID: fmt.Sprintf("%v", fe.placeCalls),
		Time:            time.Now(),
	}, nil
}

func (fe *fakeExchange) tickerCallCount() int {
	fe.mutex.Lock()
	defer fe.mutex.Unlock()

	return fe.tickersCalls
}

type fakeJournal struct {
	mutex   sync.Mutex
	records []*OrderRecord
}

func (fj *fakeJournal) RecordOrder(record *OrderRecord) error {
	fj.mutex.Lock()
	defer fj.mutex.Unlock()

	fj.records = append(fj.records, record)

	return nil
}

func (fj *fakeJournal) recordsWithStatus(status OrderStatus) []*OrderRecord {
	fj.mutex.Lock()
	defer fj.mutex.Unlock()

	matching := make([]*OrderRecord, 0)
	for _, record := range fj.records {
		if record.Status == status {
			matching = append(matching, record)
		}
	}

	return matching
}

type fakeIDService struct {
	mutex   sync.Mutex
	counter int
}

func (fis *fakeIDService) NewID() ID {
	fis.mutex.Lock()
	defer fis.mutex.Unlock()

	fis.counter++

	return testID(fmt.Sprintf("id-%v", fis.counter))
}

func (fis *fakeIDService) NewIDFromString(id string) (ID, error) {
	return testID(id), nil
}

type fakeFilter struct {
	confirm      bool
	observeCalls int
}

func (ff *fakeFilter) Observe(snapshot *MarketSnapshot) {
	ff.observeCalls++
}

func (ff *fakeFilter) Confirm(signal *Signal) bool {
	return ff.confirm
}

type discardLogger struct{}

func (dl *discardLogger) Debugf(format string, args ...interface{})   {}
func (dl *discardLogger) Infof(format string, args ...interface{})    {}
func (dl *discardLogger) Warningf(format string, args ...interface{}) {}
func (dl *discardLogger) Errorf(format string, args ...interface{})   {}
func (dl *discardLogger) Fatalf(format string, args ...interface{})   {}

func (dl *discardLogger) WithField(
	key string,
	value interface{},
) Logger {
	return dl
}

func (dl *discardLogger) WithFields(
	fields map[string]interface{},
) Logger {
	return dl
}
