// Package store handles SQLite persistence for practice history, per-word
// mistakes and UI preferences. Persistence is best-effort: every Try method
// degrades to a no-op on a nil store or a storage failure, so the practice
// flow keeps working without a usable database.
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"parla/log"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Bounded capacities, oldest evicted first.
const (
	HistoryCap = 50
	MistakeCap = 500
)

// Table names carry the schema version so an incompatible future schema
// lands in fresh tables instead of corrupting old rows.
const (
	historyTable = "history_v2"
	mistakeTable = "mistakes_v2"
	prefsTable   = "prefs_v2"
)

type HistoryRecord struct {
	Sentence  string
	Score     int
	Language  string
	Timestamp time.Time
}

type MistakeRecord struct {
	Word      string
	RealIPA   string
	SpokenIPA string
	Category  int
	Language  string
	Timestamp time.Time
}

// Store wraps SQLite access. The zero value and the nil pointer are valid
// "persistence disabled" stores.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + historyTable + ` (
			id INTEGER PRIMARY KEY,
			sentence TEXT NOT NULL,
			score INTEGER NOT NULL,
			lang TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ` + mistakeTable + ` (
			id INTEGER PRIMARY KEY,
			word TEXT NOT NULL,
			real_ipa TEXT NOT NULL,
			spoken_ipa TEXT NOT NULL,
			category INTEGER NOT NULL,
			lang TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ` + prefsTable + ` (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_` + mistakeTable + `_lang ON ` + mistakeTable + `(lang);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) usable() bool {
	return s != nil && s.db != nil
}

// TryAppendHistory appends one record and evicts beyond HistoryCap.
// Returns false when the append was dropped.
func (s *Store) TryAppendHistory(ctx context.Context, rec HistoryRecord) bool {
	if !s.usable() {
		return false
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+historyTable+` (sentence, score, lang, recorded_at) VALUES (?, ?, ?, ?)`,
		rec.Sentence, rec.Score, rec.Language, rec.Timestamp.Format(time.RFC3339Nano))
	if err != nil {
		log.Warnf("history append dropped: %v", err)
		return false
	}
	s.prune(ctx, historyTable, HistoryCap)
	return true
}

// TryLoadHistory returns the bounded set, most recent first. Storage
// failures and malformed rows load as empty.
func (s *Store) TryLoadHistory(ctx context.Context) []HistoryRecord {
	if !s.usable() {
		return nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT sentence, score, lang, recorded_at FROM `+historyTable+` ORDER BY id DESC`)
	if err != nil {
		log.Warnf("history load failed: %v", err)
		return nil
	}
	defer rows.Close()

	var out []HistoryRecord
	for rows.Next() {
		var rec HistoryRecord
		var ts string
		if err := rows.Scan(&rec.Sentence, &rec.Score, &rec.Language, &ts); err != nil {
			log.Warnf("history row skipped: %v", err)
			continue
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			log.Warnf("history row skipped: bad timestamp %q", ts)
			continue
		}
		rec.Timestamp = parsed
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		log.Warnf("history load failed: %v", err)
	}
	return out
}

// TryAppendMistakes appends one attempt's word records in a single
// transaction and evicts beyond MistakeCap.
func (s *Store) TryAppendMistakes(ctx context.Context, recs []MistakeRecord) bool {
	if !s.usable() || len(recs) == 0 {
		return false
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Warnf("mistake append dropped: %v", err)
		return false
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO `+mistakeTable+` (word, real_ipa, spoken_ipa, category, lang, recorded_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		log.Warnf("mistake append dropped: %v", err)
		return false
	}
	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx,
			rec.Word, rec.RealIPA, rec.SpokenIPA, rec.Category, rec.Language,
			rec.Timestamp.Format(time.RFC3339Nano)); err != nil {
			stmt.Close()
			tx.Rollback()
			log.Warnf("mistake append dropped: %v", err)
			return false
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		log.Warnf("mistake append dropped: %v", err)
		return false
	}
	s.prune(ctx, mistakeTable, MistakeCap)
	return true
}

// TryLoadMistakes returns the bounded set, most recent first.
func (s *Store) TryLoadMistakes(ctx context.Context) []MistakeRecord {
	if !s.usable() {
		return nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT word, real_ipa, spoken_ipa, category, lang, recorded_at FROM `+mistakeTable+` ORDER BY id DESC`)
	if err != nil {
		log.Warnf("mistake load failed: %v", err)
		return nil
	}
	defer rows.Close()

	var out []MistakeRecord
	for rows.Next() {
		var rec MistakeRecord
		var ts string
		if err := rows.Scan(&rec.Word, &rec.RealIPA, &rec.SpokenIPA, &rec.Category, &rec.Language, &ts); err != nil {
			log.Warnf("mistake row skipped: %v", err)
			continue
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			log.Warnf("mistake row skipped: bad timestamp %q", ts)
			continue
		}
		rec.Timestamp = parsed
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		log.Warnf("mistake load failed: %v", err)
	}
	return out
}

// TrySetPref stores one scalar preference.
func (s *Store) TrySetPref(ctx context.Context, key, value string) bool {
	if !s.usable() {
		return false
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+prefsTable+` (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		log.Warnf("pref %q write dropped: %v", key, err)
		return false
	}
	return true
}

// TryGetPref reads one scalar preference; ok is false when unset or
// unreadable.
func (s *Store) TryGetPref(ctx context.Context, key string) (string, bool) {
	if !s.usable() {
		return "", false
	}
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM `+prefsTable+` WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false
	}
	if err != nil {
		log.Warnf("pref %q read failed: %v", key, err)
		return "", false
	}
	return value, true
}

// ClearAll removes every stored record and preference.
func (s *Store) ClearAll(ctx context.Context) error {
	if !s.usable() {
		return nil
	}
	for _, table := range []string{historyTable, mistakeTable, prefsTable} {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) prune(ctx context.Context, table string, limit int) {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM `+table+` WHERE id NOT IN (SELECT id FROM `+table+` ORDER BY id DESC LIMIT ?)`, limit)
	if err != nil {
		log.Warnf("%s prune failed: %v", table, err)
	}
}
