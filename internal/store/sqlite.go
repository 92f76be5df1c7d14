package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrIOCNotFound is returned when an attribute targets an IOC the store does not know.
var ErrIOCNotFound = errors.New("ioc not found")

// Store is the SQLite-backed host stand-in: IOCs, their tabbed attributes and the analysis run history.
type Store struct {
	db *sql.DB
}

// IOC is a stored indicator.
type IOC struct {
	ID        string    `json:"id"`
	Value     string    `json:"value"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Attribute is one field of an IOC attribute tab.
type Attribute struct {
	IOCID     string    `json:"ioc_id"`
	Tab       string    `json:"tab"`
	Field     string    `json:"field"`
	FieldType string    `json:"field_type"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewStore opens (creating if needed) the database at dbPath and migrates it.
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dbPath != ":memory:" && dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open(sqliteDriver, sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS iocs (
			id TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			type TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ioc_attributes (
			ioc_id TEXT NOT NULL,
			tab TEXT NOT NULL,
			field TEXT NOT NULL,
			field_type TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (ioc_id, tab, field),
			FOREIGN KEY (ioc_id) REFERENCES iocs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_iocs_value ON iocs(value)`,
		`CREATE INDEX IF NOT EXISTS idx_ioc_attributes_ioc_id ON ioc_attributes(ioc_id)`,
	}
	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	return s.setupRunTables()
}

// UpsertIOC creates the IOC or refreshes its value and type. CreatedAt is kept on update.
func (s *Store) UpsertIOC(ctx context.Context, ioc IOC) error {
	if strings.TrimSpace(ioc.ID) == "" {
		return errors.New("ioc id is required")
	}
	now := time.Now().Unix()
	query := `INSERT INTO iocs (id, value, type, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET value = excluded.value, type = excluded.type, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, ioc.ID, ioc.Value, ioc.Type, now, now); err != nil {
		return fmt.Errorf("failed to save ioc %s: %w", ioc.ID, err)
	}
	return nil
}

// GetIOC returns the IOC with id, or ErrIOCNotFound.
func (s *Store) GetIOC(ctx context.Context, id string) (IOC, error) {
	var (
		ioc                  IOC
		createdAt, updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, value, type, created_at, updated_at FROM iocs WHERE id = ?`, id,
	).Scan(&ioc.ID, &ioc.Value, &ioc.Type, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return IOC{}, fmt.Errorf("%w: %s", ErrIOCNotFound, id)
	}
	if err != nil {
		return IOC{}, fmt.Errorf("failed to query ioc %s: %w", id, err)
	}
	ioc.CreatedAt = time.Unix(createdAt, 0)
	ioc.UpdatedAt = time.Unix(updatedAt, 0)
	return ioc, nil
}

// ListIOCs returns the most recently updated IOCs first. limit <= 0 returns all.
func (s *Store) ListIOCs(ctx context.Context, limit int) ([]IOC, error) {
	query := `SELECT id, value, type, created_at, updated_at FROM iocs ORDER BY updated_at DESC, id`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query iocs: %w", err)
	}
	defer rows.Close()

	var iocs []IOC
	for rows.Next() {
		var ioc IOC
		var createdAt, updatedAt int64
		if err := rows.Scan(&ioc.ID, &ioc.Value, &ioc.Type, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ioc: %w", err)
		}
		ioc.CreatedAt = time.Unix(createdAt, 0)
		ioc.UpdatedAt = time.Unix(updatedAt, 0)
		iocs = append(iocs, ioc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ioc rows: %w", err)
	}
	return iocs, nil
}

// AddTabAttributeField sets field on the tab of an IOC, replacing any previous value.
func (s *Store) AddTabAttributeField(ctx context.Context, iocID, tab, field, fieldType, value string) error {
	if _, err := s.GetIOC(ctx, iocID); err != nil {
		return err
	}
	query := `INSERT INTO ioc_attributes (ioc_id, tab, field, field_type, value, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(ioc_id, tab, field) DO UPDATE SET
			field_type = excluded.field_type, value = excluded.value, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, iocID, tab, field, fieldType, value, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to save attribute %s/%s on ioc %s: %w", tab, field, iocID, err)
	}
	return nil
}

// GetAttributes returns every attribute of an IOC ordered by tab and field.
func (s *Store) GetAttributes(ctx context.Context, iocID string) ([]Attribute, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ioc_id, tab, field, field_type, value, updated_at
		FROM ioc_attributes WHERE ioc_id = ? ORDER BY tab, field`, iocID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attributes for ioc %s: %w", iocID, err)
	}
	defer rows.Close()

	var attrs []Attribute
	for rows.Next() {
		var a Attribute
		var updatedAt int64
		if err := rows.Scan(&a.IOCID, &a.Tab, &a.Field, &a.FieldType, &a.Value, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attribute row: %w", err)
		}
		a.UpdatedAt = time.Unix(updatedAt, 0)
		attrs = append(attrs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attribute rows: %w", err)
	}
	return attrs, nil
}

// Reset removes all IOCs, attributes and runs.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reset: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"analysis_runs", "ioc_attributes", "iocs"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}
