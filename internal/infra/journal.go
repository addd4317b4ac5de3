package infra

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/focusd/version_guard/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

const (
	journalDBName = "journal.db"

	// DefaultHistoryLimit is how many runs history shows by default.
	DefaultHistoryLimit = 20
)

// EncryptedJournal implements domain.RunJournal on a SQLCipher database.
// It also remembers the version last pinned per profile.
type EncryptedJournal struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedJournal opens (or creates) the journal in dataDir.
// The key is the SQLCipher raw key.
func NewEncryptedJournal(dataDir string, key []byte) (*EncryptedJournal, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, journalDBName)
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, hex.EncodeToString(key))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	// A wrong key only shows up on first read.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to journal: %w", err)
	}

	j := &EncryptedJournal{db: db, dbPath: dbPath}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare journal schema: %w", err)
	}
	return j, nil
}

// OpenJournal opens the journal with the key from provider, generating
// the key on first use.
func OpenJournal(dataDir string, provider domain.KeyProvider) (*EncryptedJournal, error) {
	key, err := EnsureKey(provider)
	if err != nil {
		return nil, err
	}
	return NewEncryptedJournal(dataDir, key)
}

func (j *EncryptedJournal) migrate() error {
	_, err := j.db.Exec(`
	CREATE TABLE IF NOT EXISTS protection_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		profile TEXT NOT NULL,
		version TEXT NOT NULL,
		status TEXT NOT NULL,
		clean_cache INTEGER NOT NULL DEFAULT 0,
		failed_steps TEXT NOT NULL DEFAULT '',
		detail TEXT NOT NULL DEFAULT '',
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_profile ON protection_runs (profile, id);

	CREATE TABLE IF NOT EXISTS pins (
		profile TEXT PRIMARY KEY,
		version TEXT NOT NULL,
		pinned_at INTEGER NOT NULL
	);
	`)
	return err
}

// Append stores a run and returns its ID. A complete or partial run also
// records its version as the profile's pin.
func (j *EncryptedJournal) Append(rec domain.RunRecord) (int64, error) {
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}
	clean := 0
	if rec.CleanCache {
		clean = 1
	}

	tx, err := j.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO protection_runs (profile, version, status, clean_cache, failed_steps, detail, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Profile, rec.Version, string(rec.Status), clean,
		strings.Join(rec.FailedSteps, ","), rec.Detail,
		rec.StartedAt.UnixMilli(), rec.DurationMs,
	)
	if err != nil {
		return 0, fmt.Errorf("append run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if rec.Status != domain.StatusFailed {
		_, err = tx.Exec(`INSERT OR REPLACE INTO pins (profile, version, pinned_at) VALUES (?, ?, ?)`,
			rec.Profile, rec.Version, rec.StartedAt.UnixMilli())
		if err != nil {
			return 0, fmt.Errorf("record pin: %w", err)
		}
	}

	return id, tx.Commit()
}

// Recent returns up to limit runs, newest first.
func (j *EncryptedJournal) Recent(limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := j.db.Query(`
		SELECT id, profile, version, status, clean_cache, failed_steps, detail, started_at, duration_ms
		FROM protection_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.RunRecord
	for rows.Next() {
		var (
			rec     domain.RunRecord
			status  string
			clean   int
			failed  string
			started int64
		)
		if err := rows.Scan(&rec.ID, &rec.Profile, &rec.Version, &status, &clean,
			&failed, &rec.Detail, &started, &rec.DurationMs); err != nil {
			return nil, err
		}
		rec.Status = domain.ProtectionStatus(status)
		rec.CleanCache = clean != 0
		if failed != "" {
			rec.FailedSteps = strings.Split(failed, ",")
		}
		rec.StartedAt = time.UnixMilli(started)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// PinnedVersion returns the version last pinned for profile, or "" if none.
func (j *EncryptedJournal) PinnedVersion(profile string) (string, error) {
	var version string
	err := j.db.QueryRow(`SELECT version FROM pins WHERE profile = ?`, profile).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return version, err
}

// Path returns the database file location.
func (j *EncryptedJournal) Path() string {
	return j.dbPath
}

func (j *EncryptedJournal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Ensure EncryptedJournal implements domain.RunJournal.
var _ domain.RunJournal = (*EncryptedJournal)(nil)
