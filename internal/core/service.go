package core

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"inventorycore/internal/blob"
	"inventorycore/internal/infra/persistence/memory"
	"inventorycore/pkg/domain"
)

// Operation names reported to loggers, metrics, tracers and auditors.
const (
	OpImportRecords   = "import_records"
	OpMoveRecord      = "move_record"
	OpDeleteRecord    = "delete_record"
	OpAttachFile      = "attach_file"
	OpListAttachments = "list_attachments"
	OpOpenAttachment  = "open_attachment"
)

// ErrNoBlobStore is returned by attachment operations on a service built
// without a blob store.
var ErrNoBlobStore = errors.New("no blob store configured")

// ServiceOption configures optional Service dependencies.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	clock    Clock
	logger   Logger
	audit    AuditRecorder
	metrics  MetricsRecorder
	tracer   Tracer
	blobs    blob.Store
	units    domain.UnitRegistry
	users    domain.UserAccessor
	notifier *domain.Notifier
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		clock:   ClockFunc(func() time.Time { return time.Now().UTC() }),
		logger:  noopLogger{},
		audit:   noopAuditRecorder{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
	}
}

// WithClock overrides the service clock.
func WithClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAuditRecorder sets the audit sink for mutating operations.
func WithAuditRecorder(recorder AuditRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.audit = recorder
		}
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer Tracer) ServiceOption {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithBlobStore enables attachments.
func WithBlobStore(store blob.Store) ServiceOption {
	return func(o *serviceOptions) { o.blobs = store }
}

// WithUnits sets the unit registry. The default is NewDefaultUnitStore.
func WithUnits(units domain.UnitRegistry) ServiceOption {
	return func(o *serviceOptions) { o.units = units }
}

// WithUsers sets the current-user accessor. The default is an empty
// UserDirectory.
func WithUsers(users domain.UserAccessor) ServiceOption {
	return func(o *serviceOptions) { o.users = users }
}

// WithNotifier sets the notifier shared by hydrated records.
func WithNotifier(n *domain.Notifier) ServiceOption {
	return func(o *serviceOptions) { o.notifier = n }
}

// Service exposes transactional inventory operations over a record cache.
type Service struct {
	store    domain.PersistentStore
	blobs    blob.Store
	units    domain.UnitRegistry
	users    domain.UserAccessor
	notifier *domain.Notifier
	factory  *RecordFactory
	clock    Clock
	logger   Logger
	audit    AuditRecorder
	metrics  MetricsRecorder
	tracer   Tracer
}

// clockedStore is implemented by stores that stamp created and modified times.
type clockedStore interface {
	SetNowFunc(func() time.Time)
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...ServiceOption) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.units == nil {
		o.units = NewDefaultUnitStore()
	}
	if o.users == nil {
		o.users = NewUserDirectory()
	}
	if o.notifier == nil {
		o.notifier = domain.NewNotifier(logrus.StandardLogger())
	}
	s := &Service{
		store:    store,
		blobs:    o.blobs,
		units:    o.units,
		users:    o.users,
		notifier: o.notifier,
		clock:    o.clock,
		logger:   o.logger,
		audit:    o.audit,
		metrics:  o.metrics,
		tracer:   o.tracer,
	}
	if stamped, ok := store.(clockedStore); ok {
		stamped.SetNowFunc(s.clock.Now)
	}
	s.factory = NewRecordFactory(s.units, s.users,
		WithFactoryClock(s.clock.Now),
		WithFactoryNotifier(s.notifier),
	)
	return s
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
func NewInMemoryService(engine *domain.RulesEngine, opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore { return s.store }

// Factory returns the record factory used for hydration.
func (s *Service) Factory() *RecordFactory { return s.factory }

// Notifier returns the notifier shared by hydrated records.
func (s *Service) Notifier() *domain.Notifier { return s.notifier }

// Units returns the unit registry.
func (s *Service) Units() domain.UnitRegistry { return s.units }

// Users returns the current-user accessor.
func (s *Service) Users() domain.UserAccessor { return s.users }

// Blobs returns the attachment store, or nil.
func (s *Service) Blobs() blob.Store { return s.blobs }

type auditTarget struct {
	entity domain.RecordType
	action domain.Action
	id     domain.GlobalID
}

// run wraps an operation with tracing, timing, metrics, logging and, for
// mutations, an audit entry.
func (s *Service) run(ctx context.Context, op string, target *auditTarget, fn func(context.Context) (domain.Result, error)) (domain.Result, error) {
	ctx, span := s.tracer.Start(ctx, op)
	start := s.clock.Now()
	res, err := fn(ctx)
	duration := s.clock.Now().Sub(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)

	for _, v := range res.Violations {
		s.logger.Warn("rule violation", "operation", op, "rule", v.Rule, "severity", v.Severity, "record", v.EntityID, "message", v.Message)
	}
	if err != nil {
		s.logger.Error("operation failed", "operation", op, "error", err.Error(), "duration", duration)
	} else {
		s.logger.Debug("operation completed", "operation", op, "duration", duration)
	}

	if target != nil {
		entry := AuditEntry{
			Operation: op,
			Entity:    target.entity,
			Action:    target.action,
			EntityID:  target.id,
			Status:    AuditStatusSuccess,
			Duration:  duration,
			Timestamp: start,
		}
		if err != nil {
			entry.Status = AuditStatusError
			entry.Error = err.Error()
		}
		s.audit.Record(ctx, entry)
	}
	return res, err
}

// ImportResult summarizes an import.
type ImportResult struct {
	Created    []domain.GlobalID
	Updated    []domain.GlobalID
	Referenced []domain.GlobalID
	Result     domain.Result
}

// ownerLearner is implemented by user directories that record payload owners.
type ownerLearner interface {
	Remember(domain.Person)
}

// Import validates payloads and writes every record they carry, nested
// contents and ancestor summaries included, in one transaction. Existing
// records are replaced; ancestor summaries only fill gaps.
func (s *Service) Import(ctx context.Context, payloads []domain.RecordPayload) (ImportResult, error) {
	var out ImportResult
	res, err := s.run(ctx, OpImportRecords, &auditTarget{action: domain.ActionCreate}, func(ctx context.Context) (domain.Result, error) {
		var entries []flatEntry
		for _, p := range payloads {
			if err := s.factory.Validate(p); err != nil {
				return domain.Result{}, err
			}
			flat, err := flattenPayload(p)
			if err != nil {
				return domain.Result{}, err
			}
			entries = append(entries, flat...)
		}
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			out = ImportResult{}
			for _, e := range entries {
				if err := ctx.Err(); err != nil {
					return err
				}
				id := e.record.GlobalID
				_, exists := tx.FindRecord(id)
				switch {
				case exists && e.reference:
					continue
				case exists:
					rec := e.record
					if _, err := tx.UpdateRecord(id, func(cur *domain.StoredRecord) error {
						if rec.Created.IsZero() {
							rec.Created = cur.Created
						}
						*cur = rec
						return nil
					}); err != nil {
						return err
					}
					out.Updated = appendUnique(out.Updated, id)
				default:
					if _, err := tx.CreateRecord(e.record); err != nil {
						return errors.Wrapf(err, "import %s", id)
					}
					if e.reference {
						out.Referenced = append(out.Referenced, id)
					} else {
						out.Created = append(out.Created, id)
					}
				}
			}
			return nil
		})
	})
	out.Result = res
	if err != nil {
		return out, err
	}
	if learner, ok := s.users.(ownerLearner); ok {
		for _, p := range payloads {
			rememberOwners(learner, p)
		}
	}
	s.logger.Info("records imported", "created", len(out.Created), "updated", len(out.Updated), "referenced", len(out.Referenced))
	return out, nil
}

func appendUnique(ids []domain.GlobalID, id domain.GlobalID) []domain.GlobalID {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func rememberOwners(learner ownerLearner, p domain.RecordPayload) {
	if p.Owner != nil {
		learner.Remember(PersonFromPayload(*p.Owner))
	}
	for _, c := range p.StoredContent {
		rememberOwners(learner, c)
	}
	for _, c := range p.Subsamples {
		rememberOwners(learner, c)
	}
	for _, cell := range p.Locations {
		if cell.Content != nil {
			rememberOwners(learner, *cell.Content)
		}
	}
}

// Payload rebuilds the nested payload of id from the cache.
func (s *Service) Payload(ctx context.Context, id domain.GlobalID) (domain.RecordPayload, error) {
	var p domain.RecordPayload
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		var err error
		p, err = payloadAssembler{view: view}.payload(id)
		return err
	})
	return p, err
}

// Record hydrates id into a domain record.
func (s *Service) Record(ctx context.Context, id domain.GlobalID) (domain.Record, error) {
	p, err := s.Payload(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.factory.NewRecord(p)
}

// RootRecords hydrates the top-level records ordered by global id.
// Subsamples are listed under their sample instead.
func (s *Service) RootRecords(ctx context.Context) ([]domain.Record, error) {
	var payloads []domain.RecordPayload
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		a := payloadAssembler{view: view}
		for _, rec := range view.ListRecords() {
			if rec.ParentID != nil {
				continue
			}
			if rec.Type == domain.RecordSubsample && rec.SampleID != "" {
				if _, ok := view.FindRecord(rec.SampleID); ok {
					continue
				}
			}
			p, err := a.payload(rec.GlobalID)
			if err != nil {
				return err
			}
			payloads = append(payloads, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Record, 0, len(payloads))
	for _, p := range payloads {
		r, err := s.factory.NewRecord(p)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Move places id in target at loc. Grid targets require a location. The
// previous parent becomes the last non-workbench parent unless it is a
// workbench, and the move date is set from the service clock.
func (s *Service) Move(ctx context.Context, id, target domain.GlobalID, loc *domain.ParentLocation) (domain.StoredRecord, domain.Result, error) {
	var moved domain.StoredRecord
	res, err := s.run(ctx, OpMoveRecord, &auditTarget{action: domain.ActionUpdate, id: id}, func(ctx context.Context) (domain.Result, error) {
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			rec, ok := tx.FindRecord(id)
			if !ok {
				return domain.NotFoundError{ID: id}
			}
			if rec.Type != domain.RecordContainer && rec.Type != domain.RecordSubsample {
				return errors.Wrapf(domain.ErrPrecondition, "%s %s has no location", rec.Type, id)
			}
			parent, ok := tx.FindRecord(target)
			if !ok {
				return domain.NotFoundError{Entity: domain.RecordContainer, ID: target}
			}
			if !parent.IsContainer() {
				return errors.Wrapf(domain.ErrPrecondition, "%s %s is not a container", parent.Type, target)
			}
			var cell *domain.ParentLocation
			if parent.Grid != nil {
				if loc == nil {
					return errors.Wrapf(domain.ErrPrecondition, "grid container %s needs a location", target)
				}
				cp := *loc
				cell = &cp
			}
			now := s.clock.Now()
			var previous *domain.StoredRecord
			if rec.ParentID != nil {
				if p, ok := tx.FindRecord(*rec.ParentID); ok {
					previous = &p
				}
			}
			var err error
			moved, err = tx.UpdateRecord(id, func(r *domain.StoredRecord) error {
				if previous != nil && !previous.IsWorkbench() {
					last := previous.GlobalID
					r.LastNonWorkbenchParentID = &last
				}
				dest := parent.GlobalID
				r.ParentID = &dest
				r.ParentLocation = cell
				r.LastMoveDate = &now
				return nil
			})
			return err
		})
	})
	if err != nil {
		return domain.StoredRecord{}, res, err
	}
	s.notifier.Publish(domain.Event{Source: id, Field: domain.FieldLocation})
	s.logger.Info("record moved", "record", id, "target", target)
	return moved, res, nil
}

// Delete removes id. Records that still hold contents or subsamples cannot
// be deleted. Attachments are removed afterwards on a best-effort basis.
func (s *Service) Delete(ctx context.Context, id domain.GlobalID) (domain.Result, error) {
	res, err := s.run(ctx, OpDeleteRecord, &auditTarget{action: domain.ActionDelete, id: id}, func(ctx context.Context) (domain.Result, error) {
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			rec, ok := tx.FindRecord(id)
			if !ok {
				return domain.NotFoundError{ID: id}
			}
			view := tx.Snapshot()
			if children := view.ListChildren(id); len(children) > 0 {
				return errors.Wrapf(domain.ErrPrecondition, "%s %s still holds %d records", rec.Type, id, len(children))
			}
			if rec.Type == domain.RecordSample {
				for _, r := range view.ListRecords() {
					if r.Type == domain.RecordSubsample && r.SampleID == id {
						return errors.Wrapf(domain.ErrPrecondition, "sample %s still has subsample %s", id, r.GlobalID)
					}
				}
			}
			return tx.DeleteRecord(id)
		})
	})
	if err != nil {
		return res, err
	}
	if s.blobs != nil {
		s.removeAttachments(ctx, id)
	}
	s.logger.Info("record deleted", "record", id)
	return res, nil
}
