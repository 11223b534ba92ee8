package cache

import (
	"encoding/json"
	"time"
)

// ensureSchema creates the single cache_entries table used for durability
// across restarts, mirroring the teacher's repository.go table-per-concern
// style but collapsed to one generic table since cache keys are already
// namespaced strings ("orderbook:BTC", "funding:ETH", ...).
func (c *Cache) ensureSchema() error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS cache_entries (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			expires_at INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return err
	}
	_, err = c.db.Exec(`CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at ON cache_entries(expires_at)`)
	return err
}

// loadFromDisk repopulates the in-memory map on startup. Rows already past
// their expiry are skipped rather than loaded and immediately discarded.
func (c *Cache) loadFromDisk() {
	rows, err := c.db.Query(`SELECT key, value, expires_at, created_at FROM cache_entries`)
	if err != nil {
		return
	}
	defer rows.Close()

	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for rows.Next() {
		var key string
		var value []byte
		var expiresUnix, createdUnix int64
		if err := rows.Scan(&key, &value, &expiresUnix, &createdUnix); err != nil {
			continue
		}
		expiresAt := time.Unix(expiresUnix, 0)
		if now.After(expiresAt) {
			continue
		}
		c.entries[key] = &entry{
			value:     json.RawMessage(value),
			expiresAt: expiresAt,
			createdAt: time.Unix(createdUnix, 0),
		}
	}
}

func (c *Cache) persist(key string, value json.RawMessage, expiresAt, createdAt time.Time) error {
	_, err := c.db.Exec(`
		INSERT INTO cache_entries (key, value, expires_at, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at, created_at = excluded.created_at
	`, key, []byte(value), expiresAt.Unix(), createdAt.Unix())
	return err
}

func (c *Cache) deletePattern(prefix string, hasWildcard bool) error {
	var err error
	if hasWildcard {
		_, err = c.db.Exec(`DELETE FROM cache_entries WHERE key LIKE ?`, prefix+"%")
	} else {
		_, err = c.db.Exec(`DELETE FROM cache_entries WHERE key = ?`, prefix)
	}
	return err
}

func (c *Cache) deleteExpired(now time.Time) error {
	_, err := c.db.Exec(`DELETE FROM cache_entries WHERE expires_at < ?`, now.Unix())
	return err
}
