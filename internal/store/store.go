// Package store keeps a local SQLite history of what the user saw: feed
// items, completed stays and server-confirmed relations. It is a record for
// inspection, never the source of truth for relation state.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/abelbrown/minifeed/internal/api"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// FileName is the database file name inside the data directory.
const FileName = "minifeed.db"

// Store handles SQLite persistence. Concrete type, safe for concurrent use.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// SeenItem is the last seen copy of a feed item.
type SeenItem struct {
	ID         int64
	Type       api.ItemType
	Title      string
	Meta       string
	EventToken string
	TraceID    string
	FirstSeen  time.Time
	LastSeen   time.Time
	SeenCount  int
}

// Stay is one completed exposure that met the threshold.
type Stay struct {
	ID       string
	ItemID   int64
	Duration time.Duration
	EndedAt  time.Time
}

// Relation is the last confirmed status of a user-entity relation.
type Relation struct {
	EntityType string
	EntityID   int64
	Type       api.RelationType
	Active     bool
	UpdatedAt  time.Time
}

// StayStats aggregates recorded stays.
type StayStats struct {
	Count int
	Total time.Duration
	Avg   time.Duration
	Max   time.Duration
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database. File databases use WAL.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps :memory: databases private to this Store and
	// serializes writers on files.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		meta TEXT,
		event_token TEXT,
		trace_id TEXT,
		first_seen INTEGER NOT NULL,
		last_seen INTEGER NOT NULL,
		seen_count INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_items_last_seen ON items(last_seen DESC);

	CREATE TABLE IF NOT EXISTS stays (
		id TEXT PRIMARY KEY,
		item_id INTEGER NOT NULL,
		staytime_ms INTEGER NOT NULL,
		ended_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_stays_item ON stays(item_id);

	CREATE TABLE IF NOT EXISTS relations (
		entity_type TEXT NOT NULL,
		entity_id INTEGER NOT NULL,
		relation_type TEXT NOT NULL,
		active INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (entity_type, entity_id, relation_type)
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// SaveItems records that items were shown at seenAt and returns how many
// were new. Known items get their tracking ids and last_seen refreshed.
func (s *Store) SaveItems(items []api.FeedItem, seenAt time.Time) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO items (id, type, title, meta, event_token, trace_id, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			title = excluded.title,
			meta = excluded.meta,
			event_token = excluded.event_token,
			trace_id = excluded.trace_id,
			last_seen = excluded.last_seen,
			seen_count = seen_count + 1
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	ms := seenAt.UnixMilli()
	newCount := 0
	for _, it := range items {
		var exists int
		err := tx.QueryRow("SELECT COUNT(1) FROM items WHERE id = ?", it.ID).Scan(&exists)
		if err != nil {
			return 0, fmt.Errorf("lookup item %d: %w", it.ID, err)
		}
		if _, err := stmt.Exec(it.ID, string(it.Type), it.Title(), it.Meta(),
			it.Tracking.EventToken, it.Tracking.TraceID, ms, ms); err != nil {
			return 0, fmt.Errorf("save item %d: %w", it.ID, err)
		}
		if exists == 0 {
			newCount++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return newCount, nil
}

// RecentItems returns up to limit items, most recently seen first.
func (s *Store) RecentItems(limit int) ([]SeenItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, type, title, meta, event_token, trace_id, first_seen, last_seen, seen_count
		FROM items
		ORDER BY last_seen DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SeenItem
	for rows.Next() {
		var it SeenItem
		var typ string
		var meta, token, trace sql.NullString
		var first, last int64
		if err := rows.Scan(&it.ID, &typ, &it.Title, &meta, &token, &trace, &first, &last, &it.SeenCount); err != nil {
			return nil, err
		}
		it.Type = api.ItemType(typ)
		it.Meta = meta.String
		it.EventToken = token.String
		it.TraceID = trace.String
		it.FirstSeen = time.UnixMilli(first)
		it.LastSeen = time.UnixMilli(last)
		out = append(out, it)
	}
	return out, rows.Err()
}

// RecordStay stores a completed stay and returns its id.
func (s *Store) RecordStay(itemID int64, d time.Duration, endedAt time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	_, err := s.db.Exec(`INSERT INTO stays (id, item_id, staytime_ms, ended_at) VALUES (?, ?, ?, ?)`,
		id, itemID, d.Milliseconds(), endedAt.UnixMilli())
	if err != nil {
		return "", fmt.Errorf("record stay: %w", err)
	}
	return id, nil
}

// Stays returns the stays recorded for itemID, oldest first.
func (s *Store) Stays(itemID int64) ([]Stay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, item_id, staytime_ms, ended_at FROM stays
		WHERE item_id = ? ORDER BY ended_at, id
	`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Stay
	for rows.Next() {
		var st Stay
		var ms, ended int64
		if err := rows.Scan(&st.ID, &st.ItemID, &ms, &ended); err != nil {
			return nil, err
		}
		st.Duration = time.Duration(ms) * time.Millisecond
		st.EndedAt = time.UnixMilli(ended)
		out = append(out, st)
	}
	return out, rows.Err()
}

// StayStats aggregates all recorded stays.
func (s *Store) StayStats() (StayStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st StayStats
	var total, max sql.NullInt64
	err := s.db.QueryRow(`SELECT COUNT(1), SUM(staytime_ms), MAX(staytime_ms) FROM stays`).
		Scan(&st.Count, &total, &max)
	if err != nil {
		return StayStats{}, fmt.Errorf("stay stats: %w", err)
	}
	st.Total = time.Duration(total.Int64) * time.Millisecond
	st.Max = time.Duration(max.Int64) * time.Millisecond
	if st.Count > 0 {
		st.Avg = st.Total / time.Duration(st.Count)
	}
	return st, nil
}

// SetRelation records a server-confirmed relation status.
func (s *Store) SetRelation(entityType string, entityID int64, rel api.RelationType, active bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO relations (entity_type, entity_id, relation_type, active, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(entity_type, entity_id, relation_type) DO UPDATE SET
			active = excluded.active,
			updated_at = excluded.updated_at
	`, entityType, entityID, string(rel), boolToInt(active), at.UnixMilli())
	if err != nil {
		return fmt.Errorf("set relation: %w", err)
	}
	return nil
}

// Relation returns the last confirmed status, or ErrNotFound.
func (s *Store) Relation(entityType string, entityID int64, rel api.RelationType) (Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := Relation{EntityType: entityType, EntityID: entityID, Type: rel}
	var active int
	var updated int64
	err := s.db.QueryRow(`
		SELECT active, updated_at FROM relations
		WHERE entity_type = ? AND entity_id = ? AND relation_type = ?
	`, entityType, entityID, string(rel)).Scan(&active, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Relation{}, ErrNotFound
	}
	if err != nil {
		return Relation{}, fmt.Errorf("get relation: %w", err)
	}
	r.Active = active != 0
	r.UpdatedAt = time.UnixMilli(updated)
	return r, nil
}

// Relations returns up to limit relations, most recently updated first.
func (s *Store) Relations(limit int) ([]Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT entity_type, entity_id, relation_type, active, updated_at
		FROM relations ORDER BY updated_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Relation
	for rows.Next() {
		var r Relation
		var typ string
		var active int
		var updated int64
		if err := rows.Scan(&r.EntityType, &r.EntityID, &typ, &active, &updated); err != nil {
			return nil, err
		}
		r.Type = api.RelationType(typ)
		r.Active = active != 0
		r.UpdatedAt = time.UnixMilli(updated)
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
