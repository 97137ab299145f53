package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/netlogger/internal/store"
	"github.com/HerbHall/netlogger/pkg/models"
)

const migrationOwner = "state"

var stateMigrations = []store.Migration{
	{
		Version:     1,
		Description: "create state tables",
		Up: func(tx *sql.Tx) error {
			stmts := []string{
				`CREATE TABLE state_interfaces (
					name        TEXT PRIMARY KEY,
					mac_address TEXT NOT NULL,
					ip_address  TEXT NOT NULL
				)`,
				`CREATE TABLE state_meta (
					key   TEXT PRIMARY KEY,
					value TEXT NOT NULL
				)`,
			}
			for _, stmt := range stmts {
				if _, err := tx.Exec(stmt); err != nil {
					return err
				}
			}
			return nil
		},
	},
}

const (
	metaSavedAt  = "saved_at"
	metaChecksum = "checksum"
)

// Compile-time interface guard.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore keeps state in SQLite. Save replaces every row inside a
// single transaction.
type SQLiteStore struct {
	db    *store.SQLiteStore
	owned bool
	now   clock
}

// OpenSQLite opens the database at path and applies the state migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := store.New(path)
	if err != nil {
		return nil, err
	}
	s, err := NewSQLiteStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewSQLiteStore wraps an already-open database. The caller keeps
// ownership of db.
func NewSQLiteStore(ctx context.Context, db *store.SQLiteStore) (*SQLiteStore, error) {
	if err := db.Migrate(ctx, migrationOwner, stateMigrations); err != nil {
		return nil, fmt.Errorf("state migrations: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// DB exposes the wrapped database, used by backup to checkpoint the WAL.
func (s *SQLiteStore) DB() *store.SQLiteStore { return s.db }

func (s *SQLiteStore) Load(ctx context.Context) (models.StoredState, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT name, mac_address, ip_address FROM state_interfaces ORDER BY name`)
	if err != nil {
		return models.StoredState{}, fmt.Errorf("query state: %w", err)
	}
	defer rows.Close()

	var obs []models.InterfaceObservation
	for rows.Next() {
		var o models.InterfaceObservation
		if err := rows.Scan(&o.Name, &o.MACAddress, &o.IPAddress); err != nil {
			return models.StoredState{}, fmt.Errorf("scan state row: %w", err)
		}
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		return models.StoredState{}, fmt.Errorf("iterate state rows: %w", err)
	}

	savedAt, err := s.meta(ctx, metaSavedAt)
	if errors.Is(err, sql.ErrNoRows) {
		if len(obs) > 0 {
			return models.StoredState{}, fmt.Errorf("%w: interfaces present without saved_at", ErrCorrupt)
		}
		return models.StoredState{}, nil
	}
	if err != nil {
		return models.StoredState{}, err
	}

	snap, err := models.NewSnapshot(obs...)
	if err != nil {
		return models.StoredState{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	want, err := s.meta(ctx, metaChecksum)
	if err != nil {
		return models.StoredState{}, fmt.Errorf("%w: missing checksum: %v", ErrCorrupt, err)
	}
	if got, _ := checksum(snap.Canonical()); got != want {
		return models.StoredState{}, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	ts, err := time.Parse(time.RFC3339Nano, savedAt)
	if err != nil {
		return models.StoredState{}, fmt.Errorf("%w: saved_at: %v", ErrCorrupt, err)
	}
	return models.StoredState{Snapshot: snap, SavedAt: ts}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, snap models.Snapshot) error {
	obs := snap.Canonical()
	sum, err := checksum(obs)
	if err != nil {
		return fmt.Errorf("checksum state: %w", err)
	}
	savedAt := s.now().UTC().Format(time.RFC3339Nano)

	return s.db.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM state_interfaces`); err != nil {
			return fmt.Errorf("clear state: %w", err)
		}
		for _, o := range obs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO state_interfaces (name, mac_address, ip_address) VALUES (?, ?, ?)`,
				o.Name, o.MACAddress, o.IPAddress,
			); err != nil {
				return fmt.Errorf("insert interface %q: %w", o.Name, err)
			}
		}
		for key, value := range map[string]string{metaSavedAt: savedAt, metaChecksum: sum} {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO state_meta (key, value) VALUES (?, ?)
				ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
				key, value,
			); err != nil {
				return fmt.Errorf("set %s: %w", key, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) meta(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.DB().QueryRowContext(ctx,
		`SELECT value FROM state_meta WHERE key = ?`, key,
	).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", err
		}
		return "", fmt.Errorf("get state meta %q: %w", key, err)
	}
	return v, nil
}
