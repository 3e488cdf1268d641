package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"inventorycore/pkg/domain"
)

// ErrInvalidPayload is matched by every PayloadError.
var ErrInvalidPayload = errors.New("invalid record payload")

// PayloadError reports a record payload rejected by validation. It unwraps
// to the validator's field errors.
type PayloadError struct {
	ID  domain.GlobalID
	Err error
}

func (e *PayloadError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("invalid record payload: %v", e.Err)
	}
	return fmt.Sprintf("record %s: invalid payload: %v", e.ID, e.Err)
}

func (e *PayloadError) Unwrap() error { return e.Err }

// Is reports whether target is ErrInvalidPayload.
func (e *PayloadError) Is(target error) bool { return target == ErrInvalidPayload }

// FactoryOption configures a RecordFactory.
type FactoryOption func(*RecordFactory)

// WithFactoryClock sets the clock used for time-in-location.
func WithFactoryClock(now func() time.Time) FactoryOption {
	return func(f *RecordFactory) {
		if now != nil {
			f.now = now
		}
	}
}

// WithFactoryNotifier sets the notifier handed to every hydrated record.
func WithFactoryNotifier(n *domain.Notifier) FactoryOption {
	return func(f *RecordFactory) { f.notifier = n }
}

// RecordFactory turns record payloads into domain records. The unit
// registry, the current-user accessor, the clock and the notifier are
// injected into every record it builds.
type RecordFactory struct {
	units    domain.UnitRegistry
	users    domain.UserAccessor
	now      func() time.Time
	notifier *domain.Notifier
	validate *validator.Validate
}

var _ domain.ContainerFactory = (*RecordFactory)(nil)

// NewRecordFactory returns a factory resolving units through units and the
// signed-in user through users.
func NewRecordFactory(units domain.UnitRegistry, users domain.UserAccessor, opts ...FactoryOption) *RecordFactory {
	f := &RecordFactory{
		units:    units,
		users:    users,
		now:      time.Now,
		validate: newPayloadValidator(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Notifier returns the notifier records are wired to.
func (f *RecordFactory) Notifier() *domain.Notifier { return f.notifier }

func newPayloadValidator() *validator.Validate {
	v := validator.New()
	mustApply("register globalid validation", v.RegisterValidation("globalid", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseGlobalID(fl.Field().String())
		return err == nil
	}))
	v.RegisterStructValidation(validateTypePrefix, domain.RecordPayload{})
	return v
}

// validateTypePrefix rejects a global id whose prefix names another type.
// Containers accept both the container and the workbench prefix.
func validateTypePrefix(sl validator.StructLevel) {
	p := sl.Current().Interface().(domain.RecordPayload)
	id, err := domain.ParseGlobalID(string(p.GlobalID))
	if err != nil || p.Type == "" {
		return
	}
	got, _ := id.RecordType()
	if got == p.Type || (p.Type == domain.RecordContainer && got == domain.RecordWorkbench) {
		return
	}
	sl.ReportError(p.GlobalID, "GlobalID", "globalId", "typeprefix", string(p.Type))
}

// Validate checks p and every nested payload.
func (f *RecordFactory) Validate(p domain.RecordPayload) error {
	if err := f.validate.Struct(p); err != nil {
		return &PayloadError{ID: p.GlobalID, Err: err}
	}
	return nil
}

// NewRecord validates p and hydrates it into the matching record variant.
func (f *RecordFactory) NewRecord(p domain.RecordPayload) (domain.Record, error) {
	if err := f.Validate(p); err != nil {
		return nil, err
	}
	return f.build(p, nil)
}

// NewContainer implements domain.ContainerFactory.
func (f *RecordFactory) NewContainer(p domain.RecordPayload) (*domain.Container, error) {
	if err := f.Validate(p); err != nil {
		return nil, err
	}
	if p.Type != domain.RecordContainer {
		return nil, &PayloadError{ID: p.GlobalID, Err: errors.Errorf("type %s is not a container", p.Type)}
	}
	return f.buildContainer(p, nil)
}

// scopedFactory hands out an already built parent so that children and their
// parent share one container value. Everything else is built unvalidated;
// the top-level payload was validated recursively.
type scopedFactory struct {
	f      *RecordFactory
	parent *domain.Container
}

func (s scopedFactory) NewContainer(p domain.RecordPayload) (*domain.Container, error) {
	if s.parent != nil && p.GlobalID == s.parent.GlobalID {
		return s.parent, nil
	}
	if p.Type != "" && p.Type != domain.RecordContainer {
		return nil, &PayloadError{ID: p.GlobalID, Err: errors.Errorf("type %s is not a container", p.Type)}
	}
	return s.f.buildContainer(p, nil)
}

func (f *RecordFactory) build(p domain.RecordPayload, parent *domain.Container) (domain.Record, error) {
	switch p.Type {
	case domain.RecordContainer:
		return f.buildContainer(p, parent)
	case domain.RecordSample:
		return f.buildSample(p, parent)
	case domain.RecordSubsample:
		return f.buildSubsample(p, parent)
	case domain.RecordTemplate:
		base, err := baseFromPayload(p)
		if err != nil {
			return nil, err
		}
		return domain.NewTemplate(base, p.DefaultUnitID), nil
	default:
		return nil, &PayloadError{ID: p.GlobalID, Err: errors.Errorf("unsupported record type %q", p.Type)}
	}
}

func baseFromPayload(p domain.RecordPayload) (domain.Base, error) {
	id, err := domain.ParseGlobalID(string(p.GlobalID))
	if err != nil {
		return domain.Base{}, &PayloadError{ID: p.GlobalID, Err: err}
	}
	b := domain.Base{
		ID:              p.ID,
		GlobalID:        id,
		Name:            p.Name,
		Description:     p.Description,
		ReadAccessLevel: p.ReadAccessLevel,
		Tags:            append([]string(nil), p.Tags...),
	}
	if b.ID == 0 {
		b.ID = id.Number()
	}
	if b.ReadAccessLevel == "" {
		b.ReadAccessLevel = domain.AccessFull
	}
	created, err := domain.ParseTimestamp(p.Created)
	if err != nil {
		return domain.Base{}, &PayloadError{ID: id, Err: errors.Wrap(err, "created")}
	}
	if created != nil {
		b.Created = *created
	}
	modified, err := domain.ParseTimestamp(p.LastModified)
	if err != nil {
		return domain.Base{}, &PayloadError{ID: id, Err: errors.Wrap(err, "last modified")}
	}
	if modified != nil {
		b.LastModified = *modified
	}
	if p.Owner != nil {
		owner := PersonFromPayload(*p.Owner)
		b.Owner = &owner
	}
	return b, nil
}

// PersonFromPayload converts a user payload.
func PersonFromPayload(p domain.PersonPayload) domain.Person {
	return domain.Person{
		ID:          p.ID,
		Username:    p.Username,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Email:       p.Email,
		WorkbenchID: p.WorkbenchID,
	}
}

func (f *RecordFactory) location(record *domain.Base, p domain.RecordPayload, parent *domain.Container) (*domain.Movable, error) {
	attrs := domain.LocationAttrsOf(p)
	if len(attrs.ParentContainers) == 0 && parent != nil {
		attrs.ParentContainers = []domain.RecordPayload{{GlobalID: parent.GlobalID, Type: domain.RecordContainer}}
	}
	info, err := domain.NewLocationInfo(record, attrs, scopedFactory{f: f, parent: parent}, f.users, f.notifier)
	if err != nil {
		return nil, err
	}
	return domain.NewMovable(info, f.now), nil
}

func containerType(p domain.RecordPayload) domain.ContainerType {
	if p.ContainerType != "" {
		return p.ContainerType
	}
	if strings.EqualFold(p.GlobalID.Prefix(), "BE") {
		return domain.ContainerWorkbench
	}
	if p.GridLayout != nil {
		return domain.ContainerGrid
	}
	return domain.ContainerList
}

func (f *RecordFactory) buildContainer(p domain.RecordPayload, parent *domain.Container) (*domain.Container, error) {
	base, err := baseFromPayload(p)
	if err != nil {
		return nil, err
	}
	var grid *domain.GridLayout
	if p.GridLayout != nil {
		grid = &domain.GridLayout{
			Rows:        p.GridLayout.RowsNumber,
			Columns:     p.GridLayout.ColumnsNumber,
			RowsLabel:   p.GridLayout.RowsLabelType,
			ColumnLabel: p.GridLayout.ColumnsLabelType,
		}
	}
	c := domain.NewContainer(base, containerType(p), grid)
	loc, err := f.location(&c.Base, p, parent)
	if err != nil {
		return nil, err
	}
	c.AttachLocation(loc)

	contents := make([]domain.Record, 0, len(p.StoredContent)+len(p.Locations))
	seen := make(map[domain.GlobalID]struct{})
	add := func(child domain.RecordPayload) error {
		if _, dup := seen[child.GlobalID]; dup {
			return nil
		}
		seen[child.GlobalID] = struct{}{}
		r, err := f.build(child, c)
		if err != nil {
			return errors.Wrapf(err, "content of %s", c.GlobalID)
		}
		contents = append(contents, r)
		return nil
	}
	for _, cell := range p.Locations {
		if cell.Content == nil {
			continue
		}
		child := *cell.Content
		if child.ParentLocation == nil {
			child.ParentLocation = &domain.LocationPayload{ID: cell.ID, CoordX: cell.CoordX, CoordY: cell.CoordY}
		}
		if err := add(child); err != nil {
			return nil, err
		}
	}
	for _, child := range p.StoredContent {
		if err := add(child); err != nil {
			return nil, err
		}
	}
	c.SetContents(contents)
	return c, nil
}

func (f *RecordFactory) buildSample(p domain.RecordPayload, _ *domain.Container) (*domain.Sample, error) {
	base, err := baseFromPayload(p)
	if err != nil {
		return nil, err
	}
	s := domain.NewSample(base)
	if p.TemplateID != nil {
		id := *p.TemplateID
		s.TemplateID = &id
	}
	if p.GeoLocation != nil {
		geo, err := geoLocationFromPayload(*p.GeoLocation)
		if err != nil {
			return nil, &PayloadError{ID: base.GlobalID, Err: err}
		}
		s.GeoLocation = geo
	}
	s.AttachQuantity(domain.NewQuantityInfo(base.GlobalID, quantityFromPayload(p.Quantity), f.units, f.notifier))

	subs := make([]*domain.Subsample, 0, len(p.Subsamples))
	for _, sp := range p.Subsamples {
		if sp.SampleGlobal == "" {
			sp.SampleGlobal = base.GlobalID
		}
		ss, err := f.buildSubsample(sp, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "subsample of %s", base.GlobalID)
		}
		subs = append(subs, ss)
	}
	s.SetSubsamples(subs)
	return s, nil
}

func (f *RecordFactory) buildSubsample(p domain.RecordPayload, parent *domain.Container) (*domain.Subsample, error) {
	base, err := baseFromPayload(p)
	if err != nil {
		return nil, err
	}
	sample := p.SampleGlobal
	if sample != "" {
		if sample, err = domain.ParseGlobalID(string(sample)); err != nil {
			return nil, &PayloadError{ID: base.GlobalID, Err: err}
		}
	}
	ss := domain.NewSubsample(base, sample)
	ss.AttachQuantity(domain.NewQuantityInfo(base.GlobalID, quantityFromPayload(p.Quantity), f.units, f.notifier))
	loc, err := f.location(&ss.Base, p, parent)
	if err != nil {
		return nil, err
	}
	ss.AttachLocation(loc)
	return ss, nil
}

func quantityFromPayload(q *domain.QuantityPayload) *domain.Quantity {
	if q == nil {
		return nil
	}
	return &domain.Quantity{NumericValue: q.NumericValue, UnitID: q.UnitID}
}

func geoLocationFromPayload(p domain.GeoLocationPayload) (*domain.GeoLocation, error) {
	geo := &domain.GeoLocation{PlaceName: p.PlaceName}
	switch {
	case p.PointLatitude != nil && p.PointLongitude != nil:
		geo.Point = &domain.GeoPoint{Latitude: *p.PointLatitude, Longitude: *p.PointLongitude}
	case p.PointLatitude != nil || p.PointLongitude != nil:
		return nil, errors.New("geo point needs both latitude and longitude")
	}
	if p.Box != nil {
		box := *p.Box
		geo.Box = &box
	}
	if err := geo.Validate(); err != nil {
		return nil, err
	}
	return geo, nil
}
