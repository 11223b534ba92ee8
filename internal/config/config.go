// Package config loads application configuration from environment variables
// (and an optional .env file), mirroring the teacher's load order: .env
// first, then real environment variables, with typed fields and defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/aristath/aegis/internal/errs"
)

// Config holds every setting the engine needs at startup. Credentials are
// required; everything else has a workable default.
type Config struct {
	AccountAddress string
	SecretKey      string
	BaseURL        string

	LLMProvider string
	LLMAPIKey   string

	LogLevel string

	TickIntervalSeconds int
	FastLoopInterval    time.Duration
	MediumLoopInterval  time.Duration
	SlowLoopInterval    time.Duration
	SlowLoopCron        string // robfig/cron spec for the slow loop's cadence

	DataDir      string
	SnapshotDir  string
	Governed     bool
	Async        bool
}

const (
	defaultBaseURL            = "https://api.hyperliquid.xyz"
	defaultLogLevel           = "info"
	defaultTickIntervalSec    = 10
	defaultFastLoopInterval   = 10 * time.Second
	defaultMediumLoopInterval = 30 * time.Minute
	defaultSlowLoopInterval   = 24 * time.Hour
	defaultSlowLoopCron       = "0 0 * * *" // midnight daily
	defaultDataDir            = "./data"
)

// Load reads .env (if present), then environment variables, validating that
// credentials are present. Missing/invalid settings are a Config-kind error,
// fatal at startup per spec.md §7.
func Load() (*Config, error) {
	_ = godotenv.Load() // optional; missing .env is not an error

	cfg := &Config{
		AccountAddress:      os.Getenv("ACCOUNT_ADDRESS"),
		SecretKey:           os.Getenv("SECRET_KEY"),
		BaseURL:             getEnv("BASE_URL", defaultBaseURL),
		LLMProvider:         getEnv("LLM_PROVIDER", "openai"),
		LLMAPIKey:           os.Getenv("LLM_API_KEY"),
		LogLevel:            getEnv("LOG_LEVEL", defaultLogLevel),
		TickIntervalSeconds: defaultTickIntervalSec,
		FastLoopInterval:    defaultFastLoopInterval,
		MediumLoopInterval:  defaultMediumLoopInterval,
		SlowLoopInterval:    defaultSlowLoopInterval,
		SlowLoopCron:        getEnv("SLOW_LOOP_CRON", defaultSlowLoopCron),
		DataDir:             getEnv("TRADER_DATA_DIR", defaultDataDir),
	}
	cfg.SnapshotDir = cfg.DataDir + "/snapshots"

	if v := os.Getenv("TICK_INTERVAL_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errs.New(errs.KindConfig, "config.Load", fmt.Errorf("invalid TICK_INTERVAL_SECONDS %q: %w", v, err))
		}
		cfg.TickIntervalSeconds = n
		cfg.FastLoopInterval = time.Duration(n) * time.Second
	}

	if cfg.AccountAddress == "" || cfg.SecretKey == "" {
		return nil, errs.New(errs.KindConfig, "config.Load", fmt.Errorf("ACCOUNT_ADDRESS and SECRET_KEY are required"))
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
