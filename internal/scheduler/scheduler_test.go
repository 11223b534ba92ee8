package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	mu                     sync.Mutex
	fastCalls              int
	mediumCalls            int
	slowCalls              int
	order                  []LoopType
	fastErr                error
	fastPanics             bool
}

func (f *fakeRunner) RunFast(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fastCalls++
	f.order = append(f.order, LoopFast)
	if f.fastPanics {
		panic("boom")
	}
	return f.fastErr
}

func (f *fakeRunner) RunMedium(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mediumCalls++
	f.order = append(f.order, LoopMedium)
	return nil
}

func (f *fakeRunner) RunSlow(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slowCalls++
	f.order = append(f.order, LoopSlow)
	return nil
}

func TestTickRunsOnlyDueLoopsInSlowMediumFastOrder(t *testing.T) {
	runner := &fakeRunner{}
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{
		FastInterval: 10 * time.Second, MediumInterval: 30 * time.Minute, SlowCronSpec: "@every 24h",
		FastTimeout: time.Second, MediumTimeout: time.Second, SlowTimeout: time.Second,
		TickResolution: time.Second,
	}
	s := New(cfg, runner, zerolog.Nop(), t0)

	s.tick(t0.Add(24 * time.Hour))

	require.Equal(t, 1, runner.slowCalls)
	require.Equal(t, 1, runner.mediumCalls)
	require.Equal(t, 1, runner.fastCalls)
	require.Equal(t, []LoopType{LoopSlow, LoopMedium, LoopFast}, runner.order)
}

func TestTickSkipsLoopsNotYetDue(t *testing.T) {
	runner := &fakeRunner{}
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	s := New(cfg, runner, zerolog.Nop(), t0)

	s.tick(t0.Add(5 * time.Second))

	require.Equal(t, 0, runner.fastCalls)
	require.Equal(t, 0, runner.mediumCalls)
	require.Equal(t, 0, runner.slowCalls)
}

func TestRunLoopIsolatesPanicAndContinues(t *testing.T) {
	runner := &fakeRunner{fastPanics: true}
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	s := New(cfg, runner, zerolog.Nop(), t0)

	require.NotPanics(t, func() {
		s.tick(t0.Add(24 * time.Hour))
	})
	require.Equal(t, 1, runner.fastCalls)
}

func TestRunLoopLogsErrorWithoutPanicking(t *testing.T) {
	runner := &fakeRunner{fastErr: errors.New("provider down")}
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	s := New(cfg, runner, zerolog.Nop(), t0)

	s.tick(t0.Add(24 * time.Hour))

	require.Equal(t, 1, runner.fastCalls)
	require.Equal(t, t0.Add(24*time.Hour), s.LastRun(LoopFast))
}

func TestStartStopGracefulShutdown(t *testing.T) {
	runner := &fakeRunner{}
	cfg := Config{
		FastInterval: 10 * time.Millisecond, MediumInterval: time.Hour, SlowCronSpec: "@every 1h",
		FastTimeout: time.Second, MediumTimeout: time.Second, SlowTimeout: time.Second,
		TickResolution: 5 * time.Millisecond,
	}
	s := New(cfg, runner, zerolog.Nop(), time.Now().Add(-time.Hour))

	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	runner.mu.Lock()
	calls := runner.fastCalls
	runner.mu.Unlock()
	require.Greater(t, calls, 0)
}

func TestSlowCronAdvancesAfterFiring(t *testing.T) {
	runner := &fakeRunner{}
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{
		FastInterval: time.Hour, MediumInterval: time.Hour, SlowCronSpec: "@every 24h",
		FastTimeout: time.Second, MediumTimeout: time.Second, SlowTimeout: time.Second,
		TickResolution: time.Second,
	}
	s := New(cfg, runner, zerolog.Nop(), t0)

	s.tick(t0.Add(24 * time.Hour))
	require.Equal(t, 1, runner.slowCalls)

	// Not due again immediately after firing.
	s.tick(t0.Add(24*time.Hour + time.Minute))
	require.Equal(t, 1, runner.slowCalls)

	s.tick(t0.Add(48 * time.Hour))
	require.Equal(t, 2, runner.slowCalls)
}

func TestMalformedCronSpecFallsBackToDefault(t *testing.T) {
	runner := &fakeRunner{}
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{
		FastInterval: time.Hour, MediumInterval: time.Hour, SlowCronSpec: "not a cron spec",
		FastTimeout: time.Second, MediumTimeout: time.Second, SlowTimeout: time.Second,
		TickResolution: time.Second,
	}
	s := New(cfg, runner, zerolog.Nop(), t0)

	s.tick(t0.Add(24 * time.Hour))
	require.Equal(t, 1, runner.slowCalls, "malformed spec should fall back to the default @every 24h cadence")
}

func TestHealthSampledAfterTick(t *testing.T) {
	runner := &fakeRunner{}
	t0 := time.Now()
	s := New(DefaultConfig(), runner, zerolog.Nop(), t0)

	s.tick(t0)

	h := s.Health()
	require.False(t, h.SampledAt.IsZero())
}
