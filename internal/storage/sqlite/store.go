// Package sqlite implements profile persistence over SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/homebase/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/homebase/internal/profile"
	"github.com/louisbranch/homebase/internal/storage"
	"github.com/louisbranch/homebase/internal/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store implements storage.ProfileStore over a single SQLite file.
//
// Profiles are stored as JSON documents alongside an integer version column;
// every save increments the version under a compare-and-swap predicate so
// concurrent writers cannot silently overwrite each other.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a profile SQLite store and applies bundled migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}

	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return store, nil
}

// Close releases the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// GetProfile loads a profile document and its current version token.
func (s *Store) GetProfile(ctx context.Context, accountID, profileID string) (*profile.Profile, storage.Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, 0, fmt.Errorf("storage is not configured")
	}

	var document string
	var version int64
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT document, version FROM profiles WHERE account_id = ? AND profile_id = ?",
		accountID, profileID,
	)
	if err := row.Scan(&document, &version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, storage.ErrNotFound
		}
		return nil, 0, fmt.Errorf("load profile: %w", err)
	}

	var doc profile.Profile
	if err := json.Unmarshal([]byte(document), &doc); err != nil {
		return nil, 0, fmt.Errorf("decode profile document: %w", err)
	}
	doc.AccountID = accountID
	doc.ProfileID = profileID
	return &doc, storage.Version(version), nil
}

// SaveProfile persists a document under a compare-and-swap version check.
func (s *Store) SaveProfile(ctx context.Context, doc *profile.Profile, expected storage.Version) (storage.Version, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if doc == nil {
		return 0, fmt.Errorf("profile document is required")
	}

	encoded, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("encode profile document: %w", err)
	}

	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE profiles
		 SET document = ?, version = version + 1, updated_at = ?
		 WHERE account_id = ? AND profile_id = ? AND version = ?`,
		string(encoded), toMillis(doc.Updated), doc.AccountID, doc.ProfileID, int64(expected),
	)
	if err != nil {
		return 0, fmt.Errorf("save profile: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("save profile rows: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing row from a lost race.
		var exists int
		row := s.sqlDB.QueryRowContext(ctx,
			"SELECT 1 FROM profiles WHERE account_id = ? AND profile_id = ?",
			doc.AccountID, doc.ProfileID,
		)
		if scanErr := row.Scan(&exists); scanErr != nil {
			if errors.Is(scanErr, sql.ErrNoRows) {
				return 0, storage.ErrNotFound
			}
			return 0, fmt.Errorf("check profile existence: %w", scanErr)
		}
		return 0, storage.ErrVersionConflict
	}
	return expected + 1, nil
}

// CreateProfile persists a new document at version 1.
func (s *Store) CreateProfile(ctx context.Context, doc *profile.Profile) (storage.Version, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if doc == nil {
		return 0, fmt.Errorf("profile document is required")
	}
	if strings.TrimSpace(doc.AccountID) == "" {
		return 0, fmt.Errorf("account id is required")
	}
	if strings.TrimSpace(doc.ProfileID) == "" {
		return 0, fmt.Errorf("profile id is required")
	}

	encoded, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("encode profile document: %w", err)
	}

	if _, err := s.sqlDB.ExecContext(ctx,
		"INSERT INTO profiles (account_id, profile_id, version, document, updated_at) VALUES (?, ?, 1, ?, ?)",
		doc.AccountID, doc.ProfileID, string(encoded), toMillis(doc.Updated),
	); err != nil {
		return 0, fmt.Errorf("create profile: %w", err)
	}
	return 1, nil
}
