// Package memory provides an in-memory implementation of the record cache
// used for tests, ephemeral environments and as the transactional core of
// the snapshotting SQL stores.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"inventorycore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// StoredRecord aliases domain.StoredRecord.
	StoredRecord = domain.StoredRecord
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

func mustApply(label string, err error) {
	if err != nil {
		panic(errors.Wrapf(err, "memory store %s", label))
	}
}

type memoryState struct {
	records map[domain.GlobalID]StoredRecord
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Records map[domain.GlobalID]StoredRecord `json:"records"`
}

func newMemoryState() memoryState {
	return memoryState{records: make(map[domain.GlobalID]StoredRecord)}
}

func (s memoryState) clone() memoryState {
	cloned := memoryState{records: make(map[domain.GlobalID]StoredRecord, len(s.records))}
	for k, v := range s.records {
		cloned.records[k] = cloneRecord(v)
	}
	return cloned
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	return Snapshot{Records: state.clone().records}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	return memoryState{records: s.Records}.clone()
}

// migrateSnapshot normalizes a snapshot loaded from durable storage: records
// are keyed by their global id, numeric ids are filled from the global id and
// references to records that no longer exist are cleared.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	out := Snapshot{Records: make(map[domain.GlobalID]StoredRecord, len(snapshot.Records))}
	for key, rec := range snapshot.Records {
		if rec.GlobalID == "" {
			rec.GlobalID = key
		}
		if rec.ID == 0 {
			rec.ID = rec.GlobalID.Number()
		}
		out.Records[rec.GlobalID] = rec
	}
	for id, rec := range out.Records {
		changed := false
		if rec.ParentID != nil {
			if parent, ok := out.Records[*rec.ParentID]; !ok || !parent.IsContainer() {
				rec.ParentID = nil
				rec.ParentLocation = nil
				changed = true
			}
		}
		if rec.LastNonWorkbenchParentID != nil {
			if _, ok := out.Records[*rec.LastNonWorkbenchParentID]; !ok {
				rec.LastNonWorkbenchParentID = nil
				changed = true
			}
		}
		if changed {
			out.Records[id] = rec
		}
	}
	return out
}

func cloneRecord(r StoredRecord) StoredRecord {
	cp := r
	cp.Tags = append([]string(nil), r.Tags...)
	if r.Owner != nil {
		owner := *r.Owner
		cp.Owner = &owner
	}
	if r.ParentID != nil {
		id := *r.ParentID
		cp.ParentID = &id
	}
	if r.ParentLocation != nil {
		loc := *r.ParentLocation
		cp.ParentLocation = &loc
	}
	if r.LastMoveDate != nil {
		at := *r.LastMoveDate
		cp.LastMoveDate = &at
	}
	if r.LastNonWorkbenchParentID != nil {
		id := *r.LastNonWorkbenchParentID
		cp.LastNonWorkbenchParentID = &id
	}
	if r.Quantity != nil {
		q := *r.Quantity
		cp.Quantity = &q
	}
	if r.Grid != nil {
		g := *r.Grid
		cp.Grid = &g
	}
	if r.TemplateID != nil {
		id := *r.TemplateID
		cp.TemplateID = &id
	}
	if r.GeoLocation != nil {
		geo := *r.GeoLocation
		if r.GeoLocation.Point != nil {
			p := *r.GeoLocation.Point
			geo.Point = &p
		}
		if r.GeoLocation.Box != nil {
			b := *r.GeoLocation.Box
			geo.Box = &b
		}
		cp.GeoLocation = &geo
	}
	return cp
}

func sortRecords(records []StoredRecord) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i].GlobalID, records[j].GlobalID
		if a.Prefix() != b.Prefix() {
			return a.Prefix() < b.Prefix()
		}
		return a.Number() < b.Number()
	})
}

// Store provides an in-memory transactional record cache.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc replaces the time provider stamped on created and updated records.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

type transaction struct {
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListRecords returns all records within the snapshot ordered by global id.
func (v transactionView) ListRecords() []StoredRecord {
	out := make([]StoredRecord, 0, len(v.state.records))
	for _, r := range v.state.records {
		out = append(out, cloneRecord(r))
	}
	sortRecords(out)
	return out
}

// FindRecord retrieves a record by global id from the snapshot.
func (v transactionView) FindRecord(id domain.GlobalID) (StoredRecord, bool) {
	r, ok := v.state.records[id]
	if !ok {
		return StoredRecord{}, false
	}
	return cloneRecord(r), true
}

// ListChildren returns the records whose parent is id.
func (v transactionView) ListChildren(id domain.GlobalID) []StoredRecord {
	var out []StoredRecord
	for _, r := range v.state.records {
		if r.ParentID != nil && *r.ParentID == id {
			out = append(out, cloneRecord(r))
		}
	}
	sortRecords(out)
	return out
}

// RunInTransaction executes fn within a transactional copy of the store state.
// Blocking rule violations discard the copy and return RuleViolationError.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindRecord exposes record lookup within the transaction scope.
func (tx *transaction) FindRecord(id domain.GlobalID) (StoredRecord, bool) {
	r, ok := tx.state.records[id]
	if !ok {
		return StoredRecord{}, false
	}
	return cloneRecord(r), true
}

func (tx *transaction) nextID(t domain.RecordType) int64 {
	var max int64
	for _, r := range tx.state.records {
		if r.Type == t && r.ID > max {
			max = r.ID
		}
	}
	return max + 1
}

func idType(r StoredRecord) domain.RecordType {
	if r.IsWorkbench() {
		return domain.RecordWorkbench
	}
	return r.Type
}

// CreateRecord stores a new record. Records without a global id get the next
// numeric id of their type.
func (tx *transaction) CreateRecord(r StoredRecord) (StoredRecord, error) {
	if r.Type == "" {
		return StoredRecord{}, errors.New("record type is required")
	}
	if r.GlobalID == "" {
		if r.ID == 0 {
			r.ID = tx.nextID(r.Type)
		}
		r.GlobalID = domain.NewGlobalID(idType(r), r.ID)
	} else {
		id, err := domain.ParseGlobalID(string(r.GlobalID))
		if err != nil {
			return StoredRecord{}, err
		}
		if want, _ := id.RecordType(); want != idType(r) {
			return StoredRecord{}, errors.Errorf("global id %s does not identify a %s", id, idType(r))
		}
		r.GlobalID = id
		r.ID = id.Number()
	}
	if _, exists := tx.state.records[r.GlobalID]; exists {
		return StoredRecord{}, errors.Errorf("record %q already exists", r.GlobalID)
	}
	if r.Created.IsZero() {
		r.Created = tx.now
	}
	r.LastModified = tx.now
	tx.state.records[r.GlobalID] = cloneRecord(r)
	after := cloneRecord(r)
	tx.recordChange(Change{Entity: r.Type, Action: domain.ActionCreate, After: &after})
	return cloneRecord(r), nil
}

// UpdateRecord mutates a record using the provided mutator function. The
// global id and type cannot change.
func (tx *transaction) UpdateRecord(id domain.GlobalID, mutator func(*StoredRecord) error) (StoredRecord, error) {
	current, ok := tx.state.records[id]
	if !ok {
		return StoredRecord{}, domain.NotFoundError{ID: id}
	}
	before := cloneRecord(current)
	if err := mutator(&current); err != nil {
		return StoredRecord{}, err
	}
	current.GlobalID = id
	current.ID = before.ID
	current.Type = before.Type
	current.LastModified = tx.now
	tx.state.records[id] = cloneRecord(current)
	after := cloneRecord(current)
	tx.recordChange(Change{Entity: current.Type, Action: domain.ActionUpdate, Before: &before, After: &after})
	return cloneRecord(current), nil
}

// DeleteRecord removes a record from the transaction state.
func (tx *transaction) DeleteRecord(id domain.GlobalID) error {
	current, ok := tx.state.records[id]
	if !ok {
		return domain.NotFoundError{ID: id}
	}
	delete(tx.state.records, id)
	before := cloneRecord(current)
	tx.recordChange(Change{Entity: current.Type, Action: domain.ActionDelete, Before: &before})
	return nil
}

// GetRecord retrieves a record by global id from committed state.
func (s *Store) GetRecord(id domain.GlobalID) (StoredRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.state.records[id]
	if !ok {
		return StoredRecord{}, false
	}
	return cloneRecord(r), true
}

// ListRecords returns all records from committed state ordered by global id.
func (s *Store) ListRecords() []StoredRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StoredRecord, 0, len(s.state.records))
	for _, r := range s.state.records {
		out = append(out, cloneRecord(r))
	}
	sortRecords(out)
	return out
}

// MustCreate seeds a record outside rule evaluation. It panics on failure
// and is meant for fixtures.
func (s *Store) MustCreate(r StoredRecord) StoredRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &transaction{state: s.state, now: s.nowFn()}
	created, err := tx.CreateRecord(r)
	mustApply("seed", err)
	return created
}
