package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"inventorycore/internal/infra/persistence/postgres/testutil"
	"inventorycore/pkg/domain"
)

func openStub(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)
	store, err := NewStore(context.Background(), "", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, conn
}

func TestNewStoreEnsuresRecordsTable(t *testing.T) {
	_, conn := openStub(t)
	var sawDDL bool
	for _, stmt := range conn.Execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE IF NOT EXISTS INVENTORY_RECORDS") {
			sawDDL = true
		}
	}
	if !sawDDL {
		t.Fatalf("expected records table DDL, got execs: %v", conn.Execs)
	}
}

func TestRunInTransactionWritesRecordRows(t *testing.T) {
	store, conn := openStub(t)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		bench, err := tx.CreateRecord(domain.StoredRecord{Type: domain.RecordContainer, ContainerType: domain.ContainerWorkbench, Base: domain.Base{Name: "Bench"}})
		if err != nil {
			return err
		}
		_, err = tx.CreateRecord(domain.StoredRecord{Type: domain.RecordContainer, ContainerType: domain.ContainerList, ParentID: &bench.GlobalID, Base: domain.Base{Name: "Tray"}})
		return err
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
	row, ok := conn.Row(recordsTable, "global_id", "BE1")
	if !ok {
		t.Fatalf("expected BE1 row, got %v", conn.Tables)
	}
	var bench domain.StoredRecord
	if err := json.Unmarshal(testutil.Bytes(row, "payload"), &bench); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if bench.Name != "Bench" || row["record_type"] != string(domain.RecordContainer) || row["parent_id"] != nil {
		t.Fatalf("unexpected workbench row %v", row)
	}
	tray, ok := conn.Row(recordsTable, "global_id", "IC2")
	if !ok || tray["parent_id"] != "BE1" {
		t.Fatalf("expected IC2 under BE1, got %v", tray)
	}

	execs := len(conn.Execs)
	if _, err := store.RunInTransaction(ctx, func(domain.Transaction) error { return nil }); err != nil {
		t.Fatalf("empty transaction: %v", err)
	}
	if len(conn.Execs) != execs {
		t.Fatalf("unchanged state must not write rows, got %v", conn.Execs[execs:])
	}

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error { return tx.DeleteRecord("IC2") }); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := conn.Row(recordsTable, "global_id", "IC2"); ok {
		t.Fatalf("expected IC2 row to be deleted")
	}
	if got := len(conn.Tables[recordsTable]); got != 1 {
		t.Fatalf("expected one remaining row, got %d", got)
	}
}

func TestNewStoreLoadsRecordRows(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.Tables[recordsTable] = []map[string]any{
		{"global_id": "SA3", "payload": []byte(`{"type":"SAMPLE","name":"Buffer"}`)},
		{"global_id": "SS4", "payload": []byte(`{"type":"SUBSAMPLE","name":"Aliquot","parentId":"IC9"}`)},
	}
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore(context.Background(), "ignored", nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	rec, ok := store.GetRecord("SA3")
	if !ok || rec.Name != "Buffer" || rec.ID != 3 {
		t.Fatalf("expected loaded record, got %+v", rec)
	}
	orphan, ok := store.GetRecord("SS4")
	if !ok || orphan.ParentID != nil {
		t.Fatalf("expected dangling parent to be cleared, got %+v", orphan)
	}
}

func TestNewStoreErrors(t *testing.T) {
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return nil, errors.New("dial") })
	if _, err := NewStore(context.Background(), "", nil); err == nil || !strings.Contains(err.Error(), "open postgres") {
		t.Fatalf("expected open error, got %v", err)
	}
	restore()

	cases := map[string]func(*testutil.StubConn){
		"ping postgres":        func(c *testutil.StubConn) { c.FailPing = true },
		"ensure records table": func(c *testutil.StubConn) { c.FailExec = true },
		"select records":       func(c *testutil.StubConn) { c.FailTables = map[string]bool{recordsTable: true} },
		"decode record SA1": func(c *testutil.StubConn) {
			c.Tables[recordsTable] = []map[string]any{{"global_id": "SA1", "payload": []byte("{")}}
		},
		"iterate records": func(c *testutil.StubConn) { c.RowsErr = errors.New("broken cursor") },
	}
	for want, breakConn := range cases {
		t.Run(want, func(t *testing.T) {
			db, conn := testutil.NewStubDB()
			breakConn(conn)
			restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
			defer restore()
			_, err := NewStore(context.Background(), "", nil)
			if err == nil || !strings.Contains(err.Error(), want) {
				t.Fatalf("expected %q error, got %v", want, err)
			}
		})
	}
}

func TestRunInTransactionPersistErrors(t *testing.T) {
	cases := map[string]func(*testutil.StubConn){
		"begin tx":          func(c *testutil.StubConn) { c.FailBegin = true },
		"upsert record SA1": func(c *testutil.StubConn) { c.FailTables = map[string]bool{recordsTable: true} },
		"commit":            func(c *testutil.StubConn) { c.FailCommit = true },
	}
	for want, breakConn := range cases {
		t.Run(want, func(t *testing.T) {
			store, conn := openStub(t)
			breakConn(conn)
			_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
				_, err := tx.CreateRecord(domain.StoredRecord{Type: domain.RecordSample})
				return err
			})
			if err == nil || !strings.Contains(err.Error(), want) {
				t.Fatalf("expected %q error, got %v", want, err)
			}
		})
	}
}

func TestFailedWriteIsRetriedByTheNextTransaction(t *testing.T) {
	store, conn := openStub(t)
	conn.FailCommit = true
	create := func(tx domain.Transaction) error {
		_, err := tx.CreateRecord(domain.StoredRecord{Type: domain.RecordSample})
		return err
	}
	if _, err := store.RunInTransaction(context.Background(), create); err == nil {
		t.Fatalf("expected commit failure")
	}
	conn.FailCommit = false
	execs := len(conn.Execs)
	if _, err := store.RunInTransaction(context.Background(), func(domain.Transaction) error { return nil }); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(conn.Execs) == execs {
		t.Fatalf("expected the unwritten row to be written again")
	}
	if _, ok := conn.Row(recordsTable, "global_id", "SA1"); !ok {
		t.Fatalf("expected SA1 row after retry")
	}
}

func TestRunInTransactionStopsOnUserError(t *testing.T) {
	store, conn := openStub(t)
	execs := len(conn.Execs)
	boom := errors.New("boom")
	_, err := store.RunInTransaction(context.Background(), func(domain.Transaction) error { return boom })
	if err != boom {
		t.Fatalf("expected user error, got %v", err)
	}
	if len(conn.Execs) != execs {
		t.Fatalf("failed transaction must not persist")
	}
}

func TestStoreAgainstLiveDatabase(t *testing.T) {
	dsn := os.Getenv("INVENTORYCORE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("INVENTORYCORE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	store, err := NewStore(ctx, dsn, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer func() { _ = store.Close() }()
	var created domain.StoredRecord
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateRecord(domain.StoredRecord{Type: domain.RecordSample, Base: domain.Base{Name: "live"}})
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	reopened, err := NewStore(ctx, dsn, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	if _, ok := reopened.GetRecord(created.GlobalID); !ok {
		t.Fatalf("expected %s after reopen", created.GlobalID)
	}
}
