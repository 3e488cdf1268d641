// Package postgres provides a Postgres-backed record cache. Reads are served
// from memory; each committed transaction writes its changed rows to the
// inventory_records table.
package postgres

import (
	"context"
	"database/sql"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"github.com/pkg/errors"

	"inventorycore/internal/infra/persistence/memory"
	"inventorycore/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	recordsTable  = "inventory_records"
	defaultDSN    = "postgres://localhost/inventorycore?sslmode=disable"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS inventory_records (
		global_id   TEXT PRIMARY KEY,
		record_type TEXT NOT NULL,
		parent_id   TEXT,
		payload     JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS inventory_records_parent ON inventory_records(parent_id)`,
}

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists record rows to Postgres and reuses the in-memory store for
// transactions and rule evaluation.
type Store struct {
	*memory.Store
	db *sql.DB

	mu      sync.Mutex
	written map[domain.GlobalID][]byte
}

// NewStore connects to dsn (defaultDSN when empty), ensures the records
// table and loads every row into memory.
func NewStore(ctx context.Context, dsn string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "ensure records table")
		}
	}
	snapshot, written, err := loadRecords(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	mem := memory.NewStore(engine)
	mem.ImportState(snapshot)
	return &Store{Store: mem, db: db, written: written}, nil
}

// RunInTransaction applies fn in memory, then writes the rows it changed.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if err := s.persist(ctx); err != nil {
		return res, err
	}
	return res, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func loadRecords(ctx context.Context, db *sql.DB) (memory.Snapshot, map[domain.GlobalID][]byte, error) {
	rows, err := db.QueryContext(ctx, `SELECT global_id, payload FROM inventory_records`)
	if err != nil {
		return memory.Snapshot{}, nil, errors.Wrap(err, "select records")
	}
	defer func() { _ = rows.Close() }()

	snapshot := memory.Snapshot{Records: make(map[domain.GlobalID]memory.StoredRecord)}
	written := make(map[domain.GlobalID][]byte)
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return memory.Snapshot{}, nil, errors.Wrap(err, "scan record")
		}
		rec, err := memory.DecodeRow(domain.GlobalID(id), payload)
		if err != nil {
			return memory.Snapshot{}, nil, err
		}
		snapshot.Records[rec.GlobalID] = rec
		written[rec.GlobalID] = payload
	}
	if err := rows.Err(); err != nil {
		return memory.Snapshot{}, nil, errors.Wrap(err, "iterate records")
	}
	return snapshot, written, nil
}

func (s *Store) persist(ctx context.Context) error {
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
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, id := range changes.Deletes {
		if _, err := tx.ExecContext(ctx, `DELETE FROM inventory_records WHERE global_id = $1`, string(id)); err != nil {
			return errors.Wrapf(err, "delete record %s", id)
		}
	}
	for _, row := range changes.Upserts {
		var parent sql.NullString
		if row.ParentID != nil {
			parent = sql.NullString{String: string(*row.ParentID), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO inventory_records(global_id, record_type, parent_id, payload) VALUES($1,$2,$3,$4)
			ON CONFLICT(global_id) DO UPDATE SET record_type=EXCLUDED.record_type, parent_id=EXCLUDED.parent_id, payload=EXCLUDED.payload`,
			string(row.GlobalID), string(row.Type), parent, row.Payload); err != nil {
			return errors.Wrapf(err, "upsert record %s", row.GlobalID)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	committed = true
	s.written = changes.Written
	return nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
