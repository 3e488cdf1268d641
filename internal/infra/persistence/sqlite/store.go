// Package sqlite provides a SQLite-backed record cache that keeps one row
// per inventory record.
package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"inventorycore/internal/infra/persistence/memory"
	"inventorycore/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultPath  = "inventorycore.db"
	recordsTable = "inventory_records"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS inventory_records (
		global_id   TEXT PRIMARY KEY,
		record_type TEXT NOT NULL,
		parent_id   TEXT,
		payload     BLOB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS inventory_records_parent ON inventory_records(parent_id)`,
}

// Store serves reads from the in-memory cache and writes the rows touched by
// each successful transaction back to SQLite.
type Store struct {
	*memory.Store
	db   *sql.DB
	path string

	mu      sync.Mutex
	written map[domain.GlobalID][]byte
}

// NewStore opens (or creates) the database at path and loads every record row.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, errors.Wrap(err, "create dirs")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "create records table")
		}
	}
	s := &Store{Store: memory.NewStore(engine), db: db, path: path}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT global_id, payload FROM ` + recordsTable)
	if err != nil {
		return errors.Wrap(err, "select records")
	}
	defer func() { _ = rows.Close() }()
	snapshot := memory.Snapshot{Records: make(map[domain.GlobalID]memory.StoredRecord)}
	s.written = make(map[domain.GlobalID][]byte)
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return errors.Wrap(err, "scan record")
		}
		rec, err := memory.DecodeRow(domain.GlobalID(id), payload)
		if err != nil {
			return err
		}
		snapshot.Records[rec.GlobalID] = rec
		s.written[rec.GlobalID] = payload
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "iterate records")
	}
	s.ImportState(snapshot)
	return nil
}

func (s *Store) persist(ctx context.Context) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changes, err := memory.DiffRows(s.written, s.ExportState())
	if err != nil {
		return err
	}
	if changes.Empty() {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, id := range changes.Deletes {
		if _, err := tx.ExecContext(ctx, `DELETE FROM inventory_records WHERE global_id = ?`, string(id)); err != nil {
			return errors.Wrapf(err, "delete record %s", id)
		}
	}
	for _, row := range changes.Upserts {
		var parent sql.NullString
		if row.ParentID != nil {
			parent = sql.NullString{String: string(*row.ParentID), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO inventory_records(global_id, record_type, parent_id, payload) VALUES(?,?,?,?)
			ON CONFLICT(global_id) DO UPDATE SET record_type=excluded.record_type, parent_id=excluded.parent_id, payload=excluded.payload`,
			string(row.GlobalID), string(row.Type), parent, row.Payload); err != nil {
			return errors.Wrapf(err, "upsert record %s", row.GlobalID)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	s.written = changes.Written
	return nil
}

// RunInTransaction applies fn to the cache and writes the changed rows once
// the rules engine accepts the transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if pErr := s.persist(ctx); pErr != nil {
		return res, pErr
	}
	return res, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
