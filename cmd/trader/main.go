package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mgrabarczyk/perptrading/trading"
	"github.com/mgrabarczyk/perptrading/trading/binance"
	ginserver "github.com/mgrabarczyk/perptrading/trading/gin"
	"github.com/mgrabarczyk/perptrading/trading/inmem"
	"github.com/mgrabarczyk/perptrading/trading/logrus"
	"github.com/mgrabarczyk/perptrading/trading/postgres"
	"github.com/mgrabarczyk/perptrading/trading/pubsub"
	"github.com/mgrabarczyk/perptrading/trading/techan"
	"github.com/mgrabarczyk/perptrading/trading/uuid"
)

const (
	journalWindowSize   = 1000
	shutdownGracePeriod = 30 * time.Second
)

func main() {
	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	_ = godotenv.Load()

	config, err := readConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "could not read config: [%v]", err)
		os.Exit(1)
	}

	logger := logrus.ConfigureStandardLogger(
		config.Logging.Format,
		config.Logging.Level,
		config.Logging.File,
	)

	journal, journalReader := setupJournal(ctx, logger, &config.Database)

	exchangeClient := binance.NewClient(
		logger.WithField("component", "binance"),
		&binance.Config{
			ApiKey:    config.Binance.ApiKey,
			SecretKey: config.Binance.SecretKey,
			Testnet:   config.Binance.Testnet,
		},
	)

	if err := exchangeClient.SyncServerTime(ctx); err != nil {
		logger.Fatalf("could not sync exchange server time: [%v]", err)
	}

	symbols := make([]trading.Symbol, 0, len(config.Trading.Symbols))
	for _, symbol := range config.Trading.Symbols {
		symbols = append(symbols, trading.Symbol(symbol))
	}

	var filter trading.SignalFilter
	if config.Trading.TrendFilter {
		filter = techan.NewTrendFilter(
			logger.WithField("component", "trend-filter"),
			config.Trading.TrendEmaLength,
		)
	}

	loop := trading.NewTradingLoop(
		logger.WithField("component", "loop"),
		&trading.LoopConfig{
			Symbols:            symbols,
			Interval:           config.Trading.Interval,
			AllocationFraction: bigFloat(config.Trading.AllocationFraction),
			MinConfidence:      config.Trading.MinConfidence,
		},
		exchangeClient,
		trading.NewMomentumEvaluator(
			bigFloat(config.Trading.MomentumThreshold),
		),
		filter,
		trading.NewRiskGate(&trading.RiskLimits{
			MaxTotalExposure: bigFloat(config.Trading.MaxTotalExposure),
			MaxPositionRisk:  bigFloat(config.Trading.MaxPositionRisk),
			MaxOpenPositions: config.Trading.MaxOpenPositions,
		}),
		journal,
		setupEventService(ctx, logger, &config.Pubsub),
		&uuid.IDService{},
	)

	if config.Binance.ApiKey == "" {
		logger.Warningf(
			"exchange credentials are not configured; " +
				"running in observation mode",
		)

		loop.DisableDispatch("exchange credentials are not configured")
	}

	if err := loop.Start(); err != nil {
		logger.Fatalf("could not start trading loop: [%v]", err)
	}

	server := ginserver.NewServer(
		logger.WithField("component", "server"),
		loop,
		journalReader,
		config.Server.Address,
	)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatalf("could not run control server: [%v]", err)
		}
	}()

	waitForShutdown(logger, loop, server)
}

func setupJournal(
	ctx context.Context,
	logger trading.Logger,
	config *Database,
) (trading.TradeJournal, trading.TradeJournalReader) {
	if config.Address == "" {
		logger.Infof("no database configured; using in-memory journal")

		journal := inmem.NewTradeJournal(journalWindowSize)
		return journal, journal
	}

	postgresClient, err := connectPostgres(ctx, logger, config)
	if err != nil {
		logger.Fatalf("could not connect postgres: [%v]", err)
	}

	journal := postgres.NewTradeJournal(postgresClient)
	return journal, journal
}

func connectPostgres(
	ctx context.Context,
	logger trading.Logger,
	config *Database,
) (*postgres.Client, error) {
	if err := postgres.RunMigration(
		logger,
		(*postgres.Config)(config),
	); err != nil {
		return nil, fmt.Errorf(
			"could not run postgres migration: [%v]",
			err,
		)
	}

	client, err := postgres.NewClient(
		ctx,
		logger.WithField("component", "postgres"),
		(*postgres.Config)(config),
	)
	if err != nil {
		return nil, fmt.Errorf(
			"could not create postgres client: [%v]",
			err,
		)
	}

	return client, nil
}

func setupEventService(
	ctx context.Context,
	logger trading.Logger,
	config *Pubsub,
) trading.EventService {
	if config.Project == "" || config.Topic == "" {
		logger.Infof("no pubsub configured; event publishing disabled")
		return &trading.NoopEventService{}
	}

	pubsubClient, err := pubsub.NewClient(ctx, config.Project, config.Topic)
	if err != nil {
		logger.Fatalf("could not create pubsub client: [%v]", err)
	}

	return pubsub.NewEventService(
		pubsubClient,
		logger.WithField("component", "pubsub"),
	)
}

func waitForShutdown(
	logger trading.Logger,
	loop *trading.TradingLoop,
	server *ginserver.Server,
) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	receivedSignal := <-signals

	logger.Infof("received signal [%v]; shutting down", receivedSignal)

	loop.Stop()

	shutdownCtx, cancelShutdownCtx := context.WithTimeout(
		context.Background(),
		shutdownGracePeriod,
	)
	defer cancelShutdownCtx()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("could not shut down control server: [%v]", err)
	}
}
