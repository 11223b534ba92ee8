// Package scheduler implements the Loop Scheduler (spec.md §4.9): three
// ticking loops (fast, medium, slow) with deterministic cadences, per-loop
// isolation, per-loop collection timeouts and graceful shutdown.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// LoopType names one of the three scheduler cadences.
type LoopType string

const (
	LoopFast   LoopType = "fast"
	LoopMedium LoopType = "medium"
	LoopSlow   LoopType = "slow"
)

// Config holds the three loops' intervals and per-loop collection timeouts.
// The defaults match spec.md §4.9's examples. The fast/medium loops use
// plain intervals (their cadences are sub-minute to half-hour, below cron's
// practical resolution); the slow loop's cadence is a cron spec so an
// operator can pin it to a specific time of day instead of "24h since last
// run" drifting across restarts.
type Config struct {
	FastInterval   time.Duration
	MediumInterval time.Duration
	SlowCronSpec   string

	FastTimeout   time.Duration
	MediumTimeout time.Duration
	SlowTimeout   time.Duration

	// TickResolution is how often the scheduler checks which loops are
	// due; it must divide evenly into the shortest interval for due-checks
	// to stay accurate.
	TickResolution time.Duration
}

// DefaultConfig returns spec.md §4.9's stated example cadences and §4.9's
// mandated per-loop timeouts.
func DefaultConfig() Config {
	return Config{
		FastInterval:   10 * time.Second,
		MediumInterval: 30 * time.Minute,
		SlowCronSpec:   "@every 24h",
		FastTimeout:    5 * time.Second,
		MediumTimeout:  15 * time.Second,
		SlowTimeout:    30 * time.Second,
		TickResolution: 1 * time.Second,
	}
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// LoopHealth is a point-in-time system-resource sample recorded after every
// tick, surfaced via the `gov_metrics` CLI command.
type LoopHealth struct {
	SampledAt  time.Time
	CPUPercent float64
	MemUsedPct float64
}

// Runner performs the signal-collection work for each loop. Implementations
// must not block past the per-loop timeout; trade execution triggered by a
// loop's result happens outside Runner, sequenced but not timed out (spec.md
// §4.9: "trade execution is not timed out but sequenced").
type Runner interface {
	RunFast(ctx context.Context) error
	RunMedium(ctx context.Context) error
	RunSlow(ctx context.Context) error
}

// Scheduler drives the three loops from a single ticking goroutine,
// grounded on the teacher's internal/queue.Scheduler ticker+WaitGroup
// shape. Within one tick, due loops run in slow -> medium -> fast order so
// each later loop observes what an earlier loop in the same tick wrote
// (spec.md §4.9's data-dependency ordering), rather than running the three
// as independent concurrent goroutines — see DESIGN.md for why "concurrent"
// here means "the scheduler doesn't block callers", not "unordered".
type Scheduler struct {
	cfg       Config
	runner    Runner
	log       zerolog.Logger
	slowCron  cron.Schedule
	nextSlow  time.Time

	mu      sync.Mutex
	lastRun map[LoopType]time.Time
	health  LoopHealth

	stop    chan struct{}
	stopped chan struct{}
	wg      sync.WaitGroup
	started bool
}

// New constructs a Scheduler. now is the reference time used to seed
// last-run timestamps so the first tick doesn't immediately fire every
// loop; pass the actual construction time in production. A malformed
// SlowCronSpec falls back to DefaultConfig's "@every 24h".
func New(cfg Config, runner Runner, log zerolog.Logger, now time.Time) *Scheduler {
	spec := cfg.SlowCronSpec
	schedule, err := cronParser.Parse(spec)
	if err != nil {
		schedule, _ = cronParser.Parse(DefaultConfig().SlowCronSpec)
	}
	return &Scheduler{
		cfg:      cfg,
		runner:   runner,
		log:      log.With().Str("component", "scheduler").Logger(),
		slowCron: schedule,
		nextSlow: schedule.Next(now),
		lastRun: map[LoopType]time.Time{
			LoopFast:   now,
			LoopMedium: now,
			LoopSlow:   now,
		},
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start runs the scheduler's driver goroutine. Idempotent: a second call on
// an already-started scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	ticker := time.NewTicker(s.cfg.TickResolution)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				close(s.stopped)
				return
			case now := <-ticker.C:
				s.tick(now)
			}
		}
	}()
}

// Stop requests graceful shutdown: the in-flight tick finishes, no new tick
// starts, and Stop blocks until the driver goroutine has exited (spec.md
// §4.9: "finish the current loop then exit. New cycles are not started.").
func (s *Scheduler) Stop() {
	close(s.stop)
	s.wg.Wait()
}

func (s *Scheduler) tick(now time.Time) {
	s.mu.Lock()
	dueSlow := !now.Before(s.nextSlow)
	dueMedium := now.Sub(s.lastRun[LoopMedium]) >= s.cfg.MediumInterval
	dueFast := now.Sub(s.lastRun[LoopFast]) >= s.cfg.FastInterval
	s.mu.Unlock()

	if dueSlow {
		s.runLoop(LoopSlow, s.cfg.SlowTimeout, s.runner.RunSlow, now)
		s.mu.Lock()
		s.nextSlow = s.slowCron.Next(now)
		s.mu.Unlock()
	}
	if dueMedium {
		s.runLoop(LoopMedium, s.cfg.MediumTimeout, s.runner.RunMedium, now)
	}
	if dueFast {
		s.runLoop(LoopFast, s.cfg.FastTimeout, s.runner.RunFast, now)
	}

	s.sampleHealth(now)
}

// sampleHealth records a point-in-time CPU/memory reading after each tick,
// grounded on the teacher's system_handlers.go gopsutil usage. Sampling
// failures are logged and never abort the tick (spec.md §4.10: non-blocking
// ambient telemetry, same posture as the snapshot writer).
func (s *Scheduler) sampleHealth(now time.Time) {
	cpuPct, err := cpu.Percent(0, false)
	if err != nil || len(cpuPct) == 0 {
		s.log.Warn().Err(err).Msg("cpu sample failed")
		return
	}
	vmem, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("memory sample failed")
		return
	}
	s.mu.Lock()
	s.health = LoopHealth{SampledAt: now, CPUPercent: cpuPct[0], MemUsedPct: vmem.UsedPercent}
	s.mu.Unlock()
}

// Health returns the most recent resource sample.
func (s *Scheduler) Health() LoopHealth {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.health
}

// runLoop executes one loop's signal collection under a timeout, recovering
// from a panic so one loop's failure never aborts the scheduler or a
// sibling loop (spec.md §4.9: "a panic/exception in one loop must not abort
// the others; it is logged and the next run is retried on schedule").
func (s *Scheduler) runLoop(loopType LoopType, timeout time.Duration, fn func(context.Context) error, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("loop", string(loopType)).Interface("panic", r).Msg("loop panicked, isolated")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		s.log.Error().Err(err).Str("loop", string(loopType)).Msg("loop run failed")
	}

	s.mu.Lock()
	s.lastRun[loopType] = now
	s.mu.Unlock()
}

// LastRun returns the last-completed timestamp for a loop, for status
// reporting (spec.md §6.3's `status` CLI operation).
func (s *Scheduler) LastRun(loopType LoopType) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun[loopType]
}
