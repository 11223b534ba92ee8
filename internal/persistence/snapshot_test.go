package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/aristath/aegis/internal/domain"
)

func TestSnapshotWriteReadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	w, err := NewSnapshotWriter(dir, DefaultRetainPerLoop, zerolog.Nop())
	require.NoError(t, err)

	snap := Snapshot{
		LoopType:     "fast",
		CapturedAt:   time.Now().UTC(),
		AccountState: domain.AccountState{PortfolioValue: decimal.NewFromFloat(10000)},
		Regime:       domain.RegimeRangeBound,
		Tick:         7,
	}
	w.Write(snap)

	files, err := List(dir, "fast")
	require.NoError(t, err)
	require.Len(t, files, 1)

	loaded, err := Read(files[0])
	require.NoError(t, err)
	require.Equal(t, SchemaVersion, loaded.SchemaVersion)
	require.Equal(t, "fast", loaded.LoopType)
	require.Equal(t, int64(7), loaded.Tick)
	require.Equal(t, domain.RegimeRangeBound, loaded.Regime)
}

func TestSnapshotWritePrunesBeyondRetention(t *testing.T) {
	dir := t.TempDir()
	w, err := NewSnapshotWriter(dir, 3, zerolog.Nop())
	require.NoError(t, err)

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		w.Write(Snapshot{LoopType: "medium", CapturedAt: base.Add(time.Duration(i) * time.Second), Tick: int64(i)})
	}

	files, err := List(dir, "medium")
	require.NoError(t, err)
	require.Len(t, files, 3)

	last, err := Read(files[len(files)-1])
	require.NoError(t, err)
	require.Equal(t, int64(4), last.Tick, "pruning must keep the newest entries")
}

func TestSnapshotWriterKeepsLoopTypesIndependent(t *testing.T) {
	dir := t.TempDir()
	w, err := NewSnapshotWriter(dir, 1, zerolog.Nop())
	require.NoError(t, err)

	w.Write(Snapshot{LoopType: "fast", CapturedAt: time.Now().UTC(), Tick: 1})
	w.Write(Snapshot{LoopType: "slow", CapturedAt: time.Now().UTC(), Tick: 1})

	fastFiles, err := List(dir, "fast")
	require.NoError(t, err)
	slowFiles, err := List(dir, "slow")
	require.NoError(t, err)
	require.Len(t, fastFiles, 1)
	require.Len(t, slowFiles, 1)
}

func TestNewSnapshotWriterCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "snapshots")
	_, err := NewSnapshotWriter(dir, DefaultRetainPerLoop, zerolog.Nop())
	require.NoError(t, err)
}
