// Package feedcache persists one gtfsimport.Feed per content hash in a
// sqlite database, so a build invocation can skip re-parsing and
// re-grouping an unchanged GTFS static archive (SPEC_FULL.md's feedcache
// supplement). Grounded on storage/sqlite.go's schema-per-feed,
// database/sql + mattn/go-sqlite3 style.
package feedcache

import (
	"bytes"
	"database/sql"
	"encoding/gob"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nextstop-transit/transferpatterns/gtfsimport"
)

// Cache is a sqlite-backed store of parsed feeds, keyed by the sha256 hex
// digest of the source archive's bytes.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if needed) a sqlite database at path. Pass
// ":memory:" for an ephemeral, process-local cache.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS feed_cache (
    sha256 TEXT NOT NULL,
    cached_at TIMESTAMP NOT NULL,
    payload BLOB NOT NULL,
PRIMARY KEY (sha256)
);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating feed_cache table: %w", err)
	}

	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached Feed for sha256Hex, if present.
func (c *Cache) Get(sha256Hex string) (*gtfsimport.Feed, bool, error) {
	var payload []byte
	err := c.db.QueryRow(`SELECT payload FROM feed_cache WHERE sha256 = ?`, sha256Hex).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying feed_cache: %w", err)
	}

	var feed gtfsimport.Feed
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&feed); err != nil {
		return nil, false, fmt.Errorf("decoding cached feed: %w", err)
	}
	return &feed, true, nil
}

// Put stores feed under sha256Hex, replacing any prior entry.
func (c *Cache) Put(sha256Hex string, feed *gtfsimport.Feed) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(feed); err != nil {
		return fmt.Errorf("encoding feed: %w", err)
	}

	_, err := c.db.Exec(
		`INSERT INTO feed_cache (sha256, cached_at, payload) VALUES (?, ?, ?)
		 ON CONFLICT(sha256) DO UPDATE SET cached_at = excluded.cached_at, payload = excluded.payload`,
		sha256Hex, time.Now().UTC(), buf.Bytes(),
	)
	if err != nil {
		return fmt.Errorf("writing feed_cache: %w", err)
	}
	return nil
}
