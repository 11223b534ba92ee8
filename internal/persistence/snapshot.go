// Package persistence implements spec.md §6.4's three persisted-state
// schemas: the cache store (internal/cache owns its own sqlite backend and
// is not duplicated here), the governor_state single-row table, and the
// append-only per-loop snapshot files.
package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/aegis/internal/domain"
)

// SchemaVersion is bumped whenever Snapshot's shape changes incompatibly.
const SchemaVersion = 1

// DefaultRetainPerLoop is spec.md §4.10's "retain the latest N (default 20)
// per loop type".
const DefaultRetainPerLoop = 20

// Snapshot is the append-only per-loop record spec.md §4.10 defines.
type Snapshot struct {
	SchemaVersion int                    `msgpack:"schema_version"`
	LoopType      string                 `msgpack:"loop_type"`
	CapturedAt    time.Time              `msgpack:"captured_at"`
	AccountState  domain.AccountState    `msgpack:"account_state"`
	PlanCard      *domain.PlanCard       `msgpack:"plan_card,omitempty"`
	GovernorMeta  map[string]interface{} `msgpack:"governor_meta,omitempty"`
	Regime        domain.Regime          `msgpack:"regime"`
	Tick          int64                  `msgpack:"tick"`
}

// SnapshotWriter appends msgpack-encoded snapshots under
// `<dir>/<loop>-<ts>-<id>.msgpack` and prunes each loop type back
// to RetainPerLoop files. Failures are logged, never propagated as fatal
// (spec.md §4.10: "Non-blocking: failures are logged and do not abort the
// loop.").
type SnapshotWriter struct {
	dir            string
	retainPerLoop  int
	log            zerolog.Logger
}

// NewSnapshotWriter constructs a SnapshotWriter rooted at dir (created if
// missing).
func NewSnapshotWriter(dir string, retainPerLoop int, log zerolog.Logger) (*SnapshotWriter, error) {
	if retainPerLoop <= 0 {
		retainPerLoop = DefaultRetainPerLoop
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &SnapshotWriter{dir: dir, retainPerLoop: retainPerLoop, log: log.With().Str("component", "snapshot_writer").Logger()}, nil
}

// Write serializes snap and prunes older files of the same loop type beyond
// retainPerLoop. Errors are logged and swallowed, matching the non-blocking
// contract; callers that need to know about a write failure should inspect
// the logs, not a returned error.
func (w *SnapshotWriter) Write(snap Snapshot) {
	snap.SchemaVersion = SchemaVersion
	encoded, err := msgpack.Marshal(snap)
	if err != nil {
		w.log.Error().Err(err).Msg("snapshot encode failed")
		return
	}

	name := filepath.Join(w.dir, snap.LoopType+"-"+snap.CapturedAt.UTC().Format("20060102T150405.000000000Z")+"-"+uuid.NewString()+".msgpack")
	if err := os.WriteFile(name, encoded, 0o644); err != nil {
		w.log.Error().Err(err).Str("file", name).Msg("snapshot write failed")
		return
	}

	w.prune(snap.LoopType)
}

// prune removes the oldest files for loopType beyond retainPerLoop,
// ordered lexically (the timestamp-prefixed filename sorts chronologically).
func (w *SnapshotWriter) prune(loopType string) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.log.Error().Err(err).Msg("snapshot prune: read dir failed")
		return
	}

	var matching []string
	prefix := loopType + "-"
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), prefix) {
			matching = append(matching, e.Name())
		}
	}
	sort.Strings(matching)

	if len(matching) <= w.retainPerLoop {
		return
	}
	for _, stale := range matching[:len(matching)-w.retainPerLoop] {
		if err := os.Remove(filepath.Join(w.dir, stale)); err != nil {
			w.log.Warn().Err(err).Str("file", stale).Msg("snapshot prune: remove failed")
		}
	}
}

// Read decodes a single snapshot file, used by replay/debug tooling and
// tests.
func Read(path string) (Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := msgpack.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// List returns the snapshot file paths for loopType, oldest first.
func List(dir, loopType string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	prefix := loopType + "-"
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// marshalGovernorMeta is a convenience for callers building GovernorMeta
// from a governor.State-shaped value without this package importing
// internal/governor (keeps the dependency graph one-directional, same
// posture as internal/regime's locally-declared Classifier).
func marshalGovernorMeta(v interface{}) map[string]interface{} {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	_ = json.Unmarshal(raw, &out)
	return out
}
