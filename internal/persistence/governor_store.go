package persistence

import (
	"database/sql"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/aegis/internal/domain"
)

// GovernorState mirrors governor.State's shape without importing
// internal/governor, so persistence stays a leaf dependency the way
// internal/cache and internal/regime's local interfaces do.
type GovernorState struct {
	ActivePlan        *domain.PlanCard               `msgpack:"active_plan,omitempty"`
	LastChangeAt      time.Time                       `msgpack:"last_change_at"`
	CooldownDeadline  time.Time                       `msgpack:"cooldown_deadline"`
	RebalanceProgress float64                         `msgpack:"rebalance_progress"`
	ChangeLog         []domain.ChangeLogEntry         `msgpack:"change_log"`
	ShadowPortfolios  []string                        `msgpack:"shadow_portfolios"`
	PlanMetrics       map[string]domain.PlanMetrics   `msgpack:"plan_metrics"`
}

// GovernorStore persists governor state to a single-row SQLite table,
// matching spec.md §6.4's `governor_state` record schema, msgpack-encoded
// into one BLOB column (the same encode-then-BLOB shape `internal/cache`
// uses for cache_entries.value).
type GovernorStore struct {
	db *sql.DB
}

// NewGovernorStore constructs a GovernorStore and ensures its table exists.
func NewGovernorStore(db *sql.DB) (*GovernorStore, error) {
	const schema = `CREATE TABLE IF NOT EXISTS governor_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		payload BLOB NOT NULL,
		updated_at REAL NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}
	return &GovernorStore{db: db}, nil
}

// SaveGovernorState upserts the single persisted row. The governor's own
// single-writer lock (internal/governor.Governor.mu) ensures calls here are
// already serialized; this method does no locking of its own.
func (s *GovernorStore) SaveGovernorState(state GovernorState) error {
	payload, err := msgpack.Marshal(state)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO governor_state (id, payload, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		payload, float64(time.Now().UnixNano())/1e9,
	)
	return err
}

// Load reads the persisted governor state. Returns the zero value and no
// error if nothing has been saved yet (fresh start).
func (s *GovernorStore) Load() (GovernorState, error) {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM governor_state WHERE id = 1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return GovernorState{}, nil
	}
	if err != nil {
		return GovernorState{}, err
	}
	var state GovernorState
	if err := msgpack.Unmarshal(payload, &state); err != nil {
		return GovernorState{}, err
	}
	return state, nil
}
