// Package di wires every collaborator described in SPEC_FULL.md §3-4 into
// a runnable Container, grounded on the teacher's internal/di.Wire: a
// step-by-step constructor function over a flat struct of dependencies,
// rather than a reflection-based framework.
package di

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/aristath/aegis/internal/advisor"
	"github.com/aristath/aegis/internal/cache"
	"github.com/aristath/aegis/internal/config"
	"github.com/aristath/aegis/internal/exchange"
	"github.com/aristath/aegis/internal/governor"
	"github.com/aristath/aegis/internal/orchestrator"
	"github.com/aristath/aegis/internal/persistence"
	"github.com/aristath/aegis/internal/providers/exchangeprov"
	"github.com/aristath/aegis/internal/providers/externalmarket"
	"github.com/aristath/aegis/internal/providers/onchain"
	"github.com/aristath/aegis/internal/providers/sentiment"
	"github.com/aristath/aegis/internal/regime"
	"github.com/aristath/aegis/internal/registry"
	"github.com/aristath/aegis/internal/scheduler"
	"github.com/aristath/aegis/internal/sqlitedriver"
	"github.com/aristath/aegis/internal/tripwire"
	pkglogger "github.com/aristath/aegis/pkg/logger"
)

// Container holds every collaborator the engine needs, assembled once at
// startup by Wire and threaded through internal/cli's subcommands.
type Container struct {
	Config *config.Config
	Log    zerolog.Logger

	CacheDB *sql.DB
	StateDB *sql.DB
	Cache   *cache.Cache

	ExchangeClient exchange.Client
	Registry       *registry.Registry

	ExchangeProvider *exchangeprov.Provider
	OnchainProvider  *onchain.Provider
	ExtMarketProvider *externalmarket.Provider
	SentimentProvider *sentiment.Provider
	Orchestrator      *orchestrator.Orchestrator

	Advisor  advisor.Advisor
	Regime   *regime.Detector
	Governor *governor.Governor

	TripwireConfig tripwire.Config

	SnapshotWriter *persistence.SnapshotWriter
	GovernorStore  *persistence.GovernorStore

	Scheduler *scheduler.Scheduler
	Engine    *Engine
}

// governorStoreAdapter satisfies governor.Persister by converting
// governor.State to persistence.GovernorState on every save, since the two
// packages deliberately don't import one another (see internal/governor's
// Persister doc comment).
type governorStoreAdapter struct {
	store *persistence.GovernorStore
}

func (a *governorStoreAdapter) SaveGovernorState(s governor.State) error {
	return a.store.SaveGovernorState(persistence.GovernorState{
		ActivePlan:        s.ActivePlan,
		LastChangeAt:      s.LastChangeAt,
		CooldownDeadline:  s.CooldownDeadline,
		RebalanceProgress: s.RebalanceProgress,
		ChangeLog:         s.ChangeLog,
		ShadowPortfolios:  s.ShadowPortfolios,
		PlanMetrics:       s.PlanMetrics,
	})
}

func toGovernorState(s persistence.GovernorState) governor.State {
	return governor.State{
		ActivePlan:        s.ActivePlan,
		LastChangeAt:      s.LastChangeAt,
		CooldownDeadline:  s.CooldownDeadline,
		RebalanceProgress: s.RebalanceProgress,
		ChangeLog:         s.ChangeLog,
		ShadowPortfolios:  s.ShadowPortfolios,
		PlanMetrics:       s.PlanMetrics,
	}
}

// Wire assembles the Container in dependency order: storage, then the
// venue client and registry, then providers and the orchestrator built on
// top of them, then the decision layer (advisor/regime/tripwire), then
// persistence (governor store, snapshot writer and the governor itself),
// finally the scheduler and its Engine runner. Mirrors the teacher's
// Wire()'s "databases -> repositories -> services -> jobs" ordering.
func Wire(cfg *config.Config) (*Container, error) {
	log := pkglogger.New(pkglogger.Config{Level: cfg.LogLevel})

	c := &Container{Config: cfg, Log: log}

	if err := wireStorage(c); err != nil {
		return nil, fmt.Errorf("di.Wire: storage: %w", err)
	}
	wireExchange(c)
	wireProviders(c)
	wireDecisionLayer(c)
	if err := wirePersistence(c); err != nil {
		return nil, fmt.Errorf("di.Wire: persistence: %w", err)
	}
	wireEngine(c)

	log.Info().Msg("dependency wiring complete")
	return c, nil
}

func wireStorage(c *Container) error {
	if err := os.MkdirAll(c.Config.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	cacheDB, err := sql.Open(sqlitedriver.DriverName, c.Config.DataDir+"/cache.db")
	if err != nil {
		return fmt.Errorf("open cache db: %w", err)
	}
	c.CacheDB = cacheDB
	c.Cache = cache.New(cacheDB)

	stateDB, err := sql.Open(sqlitedriver.DriverName, c.Config.DataDir+"/state.db")
	if err != nil {
		return fmt.Errorf("open state db: %w", err)
	}
	c.StateDB = stateDB
	return nil
}

func wireExchange(c *Container) {
	c.ExchangeClient = exchange.NewHTTPClient(c.Config.BaseURL, c.Config.AccountAddress, c.Config.SecretKey, c.Log)
	c.Registry = registry.New(c.ExchangeClient)
}

func wireProviders(c *Container) {
	c.ExchangeProvider = exchangeprov.New(c.ExchangeClient, c.Cache)
	c.OnchainProvider = onchain.New(newHTTPOnchainSource(onchainBaseURL(c.Config)), c.Cache)
	c.ExtMarketProvider = externalmarket.New(newHTTPExternalMarketSource(externalMarketBaseURL(c.Config)), c.Cache)
	c.SentimentProvider = sentiment.New(newHTTPSentimentSource(sentimentBaseURL(c.Config)), c.Cache)
	c.Orchestrator = orchestrator.New(c.ExchangeProvider, c.OnchainProvider, c.ExtMarketProvider, c.SentimentProvider)
}

func wireDecisionLayer(c *Container) {
	if c.Config.LLMAPIKey != "" {
		c.Advisor = advisor.NewOpenAIAdvisor(c.Config.LLMAPIKey, "gpt-4o-mini")
	} else {
		c.Advisor = advisor.NewRuleAdvisor()
	}
	c.Regime = regime.New(regime.Config{}, c.Advisor)
	c.TripwireConfig = tripwire.DefaultConfig()
}

func wirePersistence(c *Container) error {
	store, err := persistence.NewGovernorStore(c.StateDB)
	if err != nil {
		return fmt.Errorf("governor store: %w", err)
	}
	c.GovernorStore = store

	writer, err := persistence.NewSnapshotWriter(c.Config.SnapshotDir, persistence.DefaultRetainPerLoop, c.Log)
	if err != nil {
		return fmt.Errorf("snapshot writer: %w", err)
	}
	c.SnapshotWriter = writer

	g := governor.New(governor.DefaultConfig(), &governorStoreAdapter{store: store})
	if persisted, err := store.Load(); err == nil && persisted.ActivePlan != nil {
		g.Restore(toGovernorState(persisted))
	}
	c.Governor = g
	return nil
}

func wireEngine(c *Container) {
	c.Engine = NewEngine(c)
	c.Scheduler = scheduler.New(scheduler.Config{
		FastInterval:   c.Config.FastLoopInterval,
		MediumInterval: c.Config.MediumLoopInterval,
		SlowCronSpec:   c.Config.SlowLoopCron,
	}, c.Engine, c.Log, nowFunc())
}

// Close releases every owned resource (databases), called on shutdown.
func (c *Container) Close() {
	if c.CacheDB != nil {
		_ = c.CacheDB.Close()
	}
	if c.StateDB != nil {
		_ = c.StateDB.Close()
	}
}

func onchainBaseURL(cfg *config.Config) string {
	return getenvOrDefault("ONCHAIN_API_URL", "https://api.onchain.example")
}

func externalMarketBaseURL(cfg *config.Config) string {
	return getenvOrDefault("EXTERNAL_MARKET_API_URL", "https://api.externalmarket.example")
}

func sentimentBaseURL(cfg *config.Config) string {
	return getenvOrDefault("SENTIMENT_API_URL", "https://api.alternative.me")
}
