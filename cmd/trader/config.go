package main

import (
	"fmt"
	"math/big"
	"time"

	"github.com/sherifabdlnaby/configuro"
)

// Config values can be set using either environment variables with `CONFIG_`
// prefix or config.yml file placed in working directory.
// See https://github.com/sherifabdlnaby/configuro.
type Config struct {
	Logging  Logging
	Database Database
	Binance  Binance
	Trading  Trading
	Server   Server
	Pubsub   Pubsub
}

type Logging struct {
	Level  string
	Format string
	File   string
}

type Database struct {
	Address      string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MigrationDir string
}

type Binance struct {
	ApiKey    string
	SecretKey string
	Testnet   bool
}

type Trading struct {
	Symbols            []string
	Interval           time.Duration
	MomentumThreshold  float64
	MinConfidence      float64
	AllocationFraction float64
	MaxTotalExposure   float64
	MaxPositionRisk    float64
	MaxOpenPositions   int
	TrendFilter        bool
	TrendEmaLength     int
}

type Server struct {
	Address string
}

type Pubsub struct {
	Project string
	Topic   string
}

func readConfig() (*Config, error) {
	loader, err := configuro.NewConfig()
	if err != nil {
		return nil, err
	}

	// Default config values.
	config := &Config{
		Logging: Logging{
			Level: "info",
		},
		Database: Database{
			Address:  "localhost:5432",
			User:     "postgres",
			Password: "postgres",
			Name:     "postgres",
			SSLMode:  "disable",
		},
		Trading: Trading{
			Interval:           15 * time.Second,
			MomentumThreshold:  3,
			MinConfidence:      0.3,
			AllocationFraction: 0.05,
			MaxTotalExposure:   0.5,
			MaxPositionRisk:    0.2,
			MaxOpenPositions:   3,
			TrendEmaLength:     20,
		},
		Server: Server{
			Address: ":8080",
		},
	}

	err = loader.Load(config)
	if err != nil {
		return nil, err
	}

	err = loader.Validate(config)
	if err != nil {
		return nil, err
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

func validateConfig(config *Config) error {
	if len(config.Trading.Symbols) == 0 {
		return fmt.Errorf("at least one trading symbol must be configured")
	}

	if config.Trading.Interval <= 0 {
		return fmt.Errorf("trading interval must be positive")
	}

	if config.Trading.MomentumThreshold <= 0 {
		return fmt.Errorf("momentum threshold must be positive")
	}

	if config.Trading.AllocationFraction <= 0 ||
		config.Trading.AllocationFraction > 1 {
		return fmt.Errorf("allocation fraction must be within (0, 1]")
	}

	if config.Trading.MinConfidence < 0 || config.Trading.MinConfidence > 1 {
		return fmt.Errorf("minimum confidence must be within [0, 1]")
	}

	if config.Trading.MaxTotalExposure <= 0 {
		return fmt.Errorf("maximum total exposure must be positive")
	}

	if config.Trading.MaxPositionRisk <= 0 {
		return fmt.Errorf("maximum position risk must be positive")
	}

	if config.Trading.MaxOpenPositions <= 0 {
		return fmt.Errorf("maximum open positions count must be positive")
	}

	if (config.Binance.ApiKey == "") != (config.Binance.SecretKey == "") {
		return fmt.Errorf(
			"binance API key and secret key must be set together",
		)
	}

	return nil
}

func bigFloat(value float64) *big.Float {
	return big.NewFloat(value)
}
