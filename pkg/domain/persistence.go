package domain

import (
	"context"
	"time"
)

// StoredRecord is the flat cache row of an inventory record. Hierarchy is
// kept as a parent reference; nested payloads are rebuilt on read.
type StoredRecord struct {
	Base
	Type                     RecordType      `json:"type"`
	ParentID                 *GlobalID       `json:"parentId,omitempty"`
	ParentLocation           *ParentLocation `json:"parentLocation,omitempty"`
	LastMoveDate             *time.Time      `json:"lastMoveDate,omitempty"`
	LastNonWorkbenchParentID *GlobalID       `json:"lastNonWorkbenchParentId,omitempty"`
	Quantity                 *Quantity       `json:"quantity,omitempty"`
	ContainerType            ContainerType   `json:"cType,omitempty"`
	Grid                     *GridLayout     `json:"gridLayout,omitempty"`
	SampleID                 GlobalID        `json:"sampleGlobalId,omitempty"`
	TemplateID               *int64          `json:"templateId,omitempty"`
	DefaultUnitID            int             `json:"defaultUnitId,omitempty"`
	GeoLocation              *GeoLocation    `json:"geoLocation,omitempty"`
}

// IsContainer reports whether the row is a container.
func (r StoredRecord) IsContainer() bool { return r.Type == RecordContainer }

// IsWorkbench reports whether the row is a workbench container.
func (r StoredRecord) IsWorkbench() bool {
	return r.IsContainer() && r.ContainerType == ContainerWorkbench
}

// Transaction exposes the record operations a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateRecord(StoredRecord) (StoredRecord, error)
	UpdateRecord(id GlobalID, mutator func(*StoredRecord) error) (StoredRecord, error)
	DeleteRecord(id GlobalID) error
	FindRecord(id GlobalID) (StoredRecord, bool)
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	ListRecords() []StoredRecord
	FindRecord(id GlobalID) (StoredRecord, bool)
	// ListChildren returns the records whose parent is id, ordered by global id.
	ListChildren(id GlobalID) []StoredRecord
}

// PersistentStore is a minimal abstraction over durable backends.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetRecord(id GlobalID) (StoredRecord, bool)
	ListRecords() []StoredRecord
}
