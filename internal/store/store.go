package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/elonfeng/bountyscope/pkg/record"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// SearchField names a profile column that SearchProfiles may match against.
type SearchField string

const (
	SearchUsername SearchField = "username"
	SearchName     SearchField = "name"
	SearchLocation SearchField = "location"
	SearchGitHub   SearchField = "github_handle"
)

// Store is the persistence interface.
type Store interface {
	AppendPrimary(ctx context.Context, rec *record.PrimaryRecord) (int64, error)
	GetPrimary(ctx context.Context, id int64) (*record.PrimaryRecord, error)
	GetPrimaryByIdentity(ctx context.Context, username string) (*record.PrimaryRecord, error)
	ListPrimary(ctx context.Context, limit int) ([]record.PrimaryRecord, error)
	ListDistinctIdentities(ctx context.Context, limit int) ([]string, error)
	DeletePrimary(ctx context.Context, id int64) (bool, error)
	ClearPrimary(ctx context.Context) error

	UpsertProfile(ctx context.Context, p *record.Profile) (int64, error)
	GetProfile(ctx context.Context, username string) (*record.Profile, error)
	GetProfileByID(ctx context.Context, id int64) (*record.Profile, error)
	ListProfiles(ctx context.Context, limit int) ([]record.Profile, error)
	SearchProfiles(ctx context.Context, query string, field SearchField) ([]record.Profile, error)
	DeleteProfile(ctx context.Context, username string) (bool, error)
	DeleteProfileByID(ctx context.Context, id int64) (bool, error)
	ClearProfiles(ctx context.Context) error

	Stats(ctx context.Context) (*Stats, error)
	ProfileStats(ctx context.Context) (*ProfileStats, error)

	Clear(ctx context.Context) error
	Close() error
}

// SQLiteStore implements Store using SQLite.
//
// A single connection is shared by every operation. UpsertProfile reads and
// writes inside one BEGIN IMMEDIATE transaction, which serializes writers
// within this process and across processes sharing the file, but callers in
// different processes must not assume more than SQLite's own isolation.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate&_time_format=sqlite"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Clear removes every staging and profile row.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM profiles"); err != nil {
		return fmt.Errorf("clear profiles: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM primary_records"); err != nil {
		return fmt.Errorf("clear primary records: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}
	return nil
}

func (s *SQLiteStore) timestamp() time.Time {
	return s.now().UTC()
}

func noLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
