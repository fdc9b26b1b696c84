package trading

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"
)

type LoopState int

const (
	IDLE LoopState = iota
	RUNNING
	STOPPED
)

func (ls LoopState) String() string {
	switch ls {
	case IDLE:
		return "IDLE"
	case RUNNING:
		return "RUNNING"
	case STOPPED:
		return "STOPPED"
	default:
		panic("unknown loop state")
	}
}

const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
	HealthStopped  = "stopped"
)

// HealthStatus is the loop's view exposed to the control surface.
type HealthStatus struct {
	State         string    `json:"state"`
	LastCycleTime time.Time `json:"lastCycleTime"`
	LastError     string    `json:"lastError,omitempty"`
}

// LoopConfig is an immutable snapshot of the trading parameters, loaded
// once at startup. Changing it requires a restart.
type LoopConfig struct {
	Symbols            []Symbol
	Interval           time.Duration
	AllocationFraction *big.Float
	MinConfidence      float64
}

// TradingLoop owns the periodic trading cycle: fetch market state,
// evaluate signals, size and risk-check candidate orders, dispatch them
// and record the results. Cycles never overlap; one cycle completes (or
// fails) before the next begins.
type TradingLoop struct {
	logger    Logger
	config    *LoopConfig
	exchange  ExchangeClient
	evaluator SignalEvaluator
	filter    SignalFilter
	gate      *RiskGate
	journal   TradeJournal
	events    EventService
	ids       IDService

	mutex             sync.Mutex
	state             LoopState
	cancelLoop        context.CancelFunc
	loopDone          chan struct{}
	dispatchSuspended bool
	suspensionReason  string
	misconfigured     bool
	degraded          bool
	lastCycleTime     time.Time
	lastError         error
}

// NewTradingLoop wires the loop's collaborators. The filter is optional
// and may be nil.
func NewTradingLoop(
	logger Logger,
	config *LoopConfig,
	exchange ExchangeClient,
	evaluator SignalEvaluator,
	filter SignalFilter,
	gate *RiskGate,
	journal TradeJournal,
	events EventService,
	ids IDService,
) *TradingLoop {
	return &TradingLoop{
		logger:    logger,
		config:    config,
		exchange:  exchange,
		evaluator: evaluator,
		filter:    filter,
		gate:      gate,
		journal:   journal,
		events:    events,
		ids:       ids,
		state:     IDLE,
	}
}

// DisableDispatch permanently suspends order dispatch, keeping the rest
// of the cycle running. Used when exchange credentials are absent: the
// loop still samples market data but reports a degraded health status
// instead of failing every cycle.
func (tl *TradingLoop) DisableDispatch(reason string) {
	tl.mutex.Lock()
	defer tl.mutex.Unlock()

	tl.dispatchSuspended = true
	tl.misconfigured = true
	tl.suspensionReason = reason
	tl.lastError = fmt.Errorf("dispatch disabled: %v", reason)
}

func (tl *TradingLoop) Start() error {
	tl.mutex.Lock()
	defer tl.mutex.Unlock()

	if tl.state == RUNNING {
		return fmt.Errorf("loop is already running")
	}

	loopCtx, cancelLoopCtx := context.WithCancel(context.Background())

	tl.cancelLoop = cancelLoopCtx
	tl.loopDone = make(chan struct{})
	tl.state = RUNNING

	tl.logger.Infof("starting trading loop")

	go tl.loop(loopCtx, tl.loopDone)

	return nil
}

// Stop is cooperative: it takes effect at the cycle boundary and waits
// for the in-flight cycle, including any order submission in progress,
// to complete.
func (tl *TradingLoop) Stop() {
	tl.mutex.Lock()

	if tl.state != RUNNING {
		tl.mutex.Unlock()
		return
	}

	cancelLoop := tl.cancelLoop
	loopDone := tl.loopDone

	tl.mutex.Unlock()

	tl.logger.Infof("stopping trading loop")

	cancelLoop()
	<-loopDone

	tl.mutex.Lock()
	defer tl.mutex.Unlock()

	tl.state = STOPPED

	tl.logger.Infof("trading loop has been stopped")
}

func (tl *TradingLoop) Health() *HealthStatus {
	tl.mutex.Lock()
	defer tl.mutex.Unlock()

	status := &HealthStatus{
		LastCycleTime: tl.lastCycleTime,
	}

	if tl.lastError != nil {
		status.LastError = tl.lastError.Error()
	}

	switch {
	case tl.state != RUNNING:
		status.State = HealthStopped
	case tl.degraded || tl.dispatchSuspended:
		status.State = HealthDegraded
	default:
		status.State = HealthHealthy
	}

	return status
}

func (tl *TradingLoop) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(tl.config.Interval)
	defer ticker.Stop()

	tl.runCycle()

	for {
		select {
		case <-ticker.C:
			tl.runCycle()
		case <-ctx.Done():
			return
		}
	}
}

// runCycle executes one full trading cycle. Cycle I/O deliberately uses a
// background context: a cancellation between cycles must never abort an
// order submission mid-flight.
func (tl *TradingLoop) runCycle() {
	snapshot, err := tl.exchange.Tickers(
		context.Background(),
		tl.config.Symbols,
	)
	if err != nil {
		tl.logger.Errorf("could not fetch market snapshot: [%v]", err)
		tl.noteCycleError(
			fmt.Errorf("could not fetch market snapshot: [%v]", err),
		)
		return
	}

	if tl.filter != nil {
		tl.filter.Observe(snapshot)
	}

	if tl.isMisconfigured() {
		tl.runObservationCycle(snapshot)
		return
	}

	account, err := tl.exchange.AccountState(context.Background())
	if err != nil {
		tl.logger.Errorf("could not fetch account state: [%v]", err)
		tl.noteCycleError(
			fmt.Errorf("could not fetch account state: [%v]", err),
		)
		return
	}

	// The account state fetched above is the single source of truth for
	// every sizing and risk decision of this cycle. Orders approved
	// earlier in the cycle are folded into a cycle-local copy, so later
	// symbols see the exposure they added.
	cycleAccount := account
	var cycleErr error

	for _, symbol := range tl.config.Symbols {
		signal := tl.evaluator.Evaluate(snapshot, symbol)

		if signal.Direction == NONE {
			continue
		}

		symbolLogger := tl.logger.WithField("symbol", string(symbol))

		symbolLogger.Infof("received signal [%v]", signal)

		if signal.Confidence < tl.config.MinConfidence {
			symbolLogger.Infof(
				"dropping signal [%v]: confidence below [%.2f]",
				signal,
				tl.config.MinConfidence,
			)
			continue
		}

		if tl.filter != nil && !tl.filter.Confirm(signal) {
			symbolLogger.Infof(
				"dropping signal [%v]: vetoed by trend filter",
				signal,
			)
			continue
		}

		order, ok := tl.newOrderRequest(signal, cycleAccount)
		if !ok {
			symbolLogger.Warningf(
				"dropping signal [%v]: insufficient funds",
				signal,
			)
			continue
		}

		decision := tl.gate.Authorize(order, cycleAccount)
		if !decision.Approved {
			symbolLogger.Warningf(
				"order [%v] rejected by risk gate: [%v]",
				order,
				decision.Reason,
			)
			tl.recordOrder(order, &OrderResult{
				Status: REJECTED,
				Reason: string(decision.Reason),
				Time:   time.Now(),
			})
			continue
		}

		if tl.isDispatchSuspended() {
			symbolLogger.Warningf(
				"dropping approved order [%v]: dispatch is suspended",
				order,
			)
			continue
		}

		result, err := tl.exchange.PlaceOrder(context.Background(), order)
		if err != nil {
			if IsAuthFailure(err) {
				symbolLogger.Errorf(
					"authentication failure during order dispatch: [%v]",
					err,
				)
				tl.suspendDispatch(err)
				cycleErr = err
				continue
			}

			symbolLogger.Errorf(
				"could not dispatch order [%v]: [%v]",
				order,
				err,
			)
			cycleErr = err
			continue
		}

		tl.recordOrder(order, result)

		if result.Status == ACCEPTED {
			symbolLogger.Infof(
				"order [%v] has been placed successfully",
				order,
			)

			cycleAccount = cycleAccount.WithPosition(&Position{
				Symbol:   order.Symbol,
				Side:     signal.Direction,
				Notional: order.Notional,
				OpenedAt: result.Time,
			})
		} else {
			symbolLogger.Warningf(
				"order [%v] has been rejected by the exchange: [%v]",
				order,
				result.Reason,
			)
		}
	}

	if cycleErr != nil {
		tl.noteCycleError(cycleErr)
		return
	}

	tl.noteCycleSuccess()
}

// runObservationCycle evaluates and logs signals without touching the
// signed part of the exchange surface.
func (tl *TradingLoop) runObservationCycle(snapshot *MarketSnapshot) {
	for _, symbol := range tl.config.Symbols {
		signal := tl.evaluator.Evaluate(snapshot, symbol)
		if signal.Direction == NONE {
			continue
		}

		tl.logger.Infof(
			"observed signal [%v]; dispatch is disabled",
			signal,
		)
	}

	tl.mutex.Lock()
	defer tl.mutex.Unlock()

	tl.lastCycleTime = time.Now()
}

func (tl *TradingLoop) newOrderRequest(
	signal *Signal,
	account *AccountState,
) (*OrderRequest, bool) {
	notional := new(big.Float).Mul(
		account.Available,
		tl.config.AllocationFraction,
	)

	if notional.Sign() <= 0 {
		return nil, false
	}

	return &OrderRequest{
		ID:       tl.ids.NewID(),
		Symbol:   signal.Symbol,
		Side:     signal.Direction.OrderSide(),
		Notional: notional,
		Time:     time.Now(),
	}, true
}

// recordOrder journals an order decision. A journal failure is logged but
// does not fail the cycle; trading must not stop because bookkeeping did.
func (tl *TradingLoop) recordOrder(
	order *OrderRequest,
	result *OrderResult,
) {
	record := NewOrderRecord(order, result)

	if err := tl.journal.RecordOrder(record); err != nil {
		tl.logger.Errorf(
			"could not journal order [%v]: [%v]",
			order.ID,
			err,
		)
	}

	if result.Status == ACCEPTED {
		tl.events.Publish(NewOrderPlacedEvent(record))
	} else {
		tl.events.Publish(NewOrderRejectedEvent(record))
	}
}

func (tl *TradingLoop) suspendDispatch(err error) {
	tl.mutex.Lock()
	defer tl.mutex.Unlock()

	tl.dispatchSuspended = true
	tl.suspensionReason = err.Error()
}

func (tl *TradingLoop) isDispatchSuspended() bool {
	tl.mutex.Lock()
	defer tl.mutex.Unlock()

	return tl.dispatchSuspended
}

func (tl *TradingLoop) isMisconfigured() bool {
	tl.mutex.Lock()
	defer tl.mutex.Unlock()

	return tl.misconfigured
}

func (tl *TradingLoop) noteCycleSuccess() {
	tl.mutex.Lock()
	defer tl.mutex.Unlock()

	tl.degraded = false
	tl.lastCycleTime = time.Now()

	if !tl.dispatchSuspended {
		tl.lastError = nil
	}
}

func (tl *TradingLoop) noteCycleError(err error) {
	tl.mutex.Lock()
	defer tl.mutex.Unlock()

	tl.degraded = true
	tl.lastError = err
}
