package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// staticUnits is a fixed registry used across domain tests.
type staticUnits struct {
	loaded bool
	units  map[int]Unit
}

func newStaticUnits() *staticUnits {
	return &staticUnits{loaded: true, units: map[int]Unit{
		1: {ID: 1, Label: "items", Category: CategoryDimensionless, Scale: decimal.NewFromInt(1)},
		2: {ID: 2, Label: "µl", Category: CategoryVolume, Scale: decimal.RequireFromString("0.000001")},
		3: {ID: 3, Label: "ml", Category: CategoryVolume, Scale: decimal.RequireFromString("0.001")},
		4: {ID: 4, Label: "l", Category: CategoryVolume, Scale: decimal.NewFromInt(1)},
		7: {ID: 7, Label: "g", Category: CategoryMass, Scale: decimal.NewFromInt(1)},
		8: {ID: 8, Label: "°C", Category: CategoryTemperature},
	}}
}

func (s *staticUnits) Unit(id int) (Unit, bool) {
	u, ok := s.units[id]
	return u, ok
}

func (s *staticUnits) Loaded() bool { return s.loaded }

type fixedUser struct {
	person Person
	ok     bool
}

func (f fixedUser) CurrentUser() (Person, bool) { return f.person, f.ok }

var errBrokenPayload = errors.New("broken container payload")

// testFactory hydrates container payloads the way the record factory does,
// without the validation layer.
type testFactory struct {
	users    UserAccessor
	notifier *Notifier
	now      func() time.Time
	calls    int
}

func (f *testFactory) NewContainer(p RecordPayload) (*Container, error) {
	f.calls++
	if p.Name == "broken" {
		return nil, errBrokenPayload
	}
	var grid *GridLayout
	if p.GridLayout != nil {
		grid = &GridLayout{Rows: p.GridLayout.RowsNumber, Columns: p.GridLayout.ColumnsNumber}
	}
	created := time.Time{}
	if ts, err := ParseTimestamp(p.Created); err == nil && ts != nil {
		created = *ts
	}
	c := NewContainer(Base{
		ID:              p.ID,
		GlobalID:        p.GlobalID,
		Name:            p.Name,
		Created:         created,
		ReadAccessLevel: p.ReadAccessLevel,
	}, p.ContainerType, grid)
	loc, err := NewLocationInfo(&c.Base, LocationAttrsOf(p), f, f.users, f.notifier)
	if err != nil {
		return nil, err
	}
	c.AttachLocation(NewMovable(loc, f.now))
	return c, nil
}

func workbenchPayload(id int64) RecordPayload {
	return RecordPayload{ID: id, GlobalID: NewGlobalID(RecordWorkbench, id), Type: RecordContainer, Name: "Bench", ContainerType: ContainerWorkbench}
}

func containerPayload(id int64, name string, parents ...RecordPayload) RecordPayload {
	return RecordPayload{ID: id, GlobalID: NewGlobalID(RecordContainer, id), Type: RecordContainer, Name: name, ContainerType: ContainerList, ParentContainers: parents}
}

func gridPayload(id int64, rows, cols int, parents ...RecordPayload) RecordPayload {
	p := containerPayload(id, "Rack", parents...)
	p.ContainerType = ContainerGrid
	p.GridLayout = &GridLayoutPayload{RowsNumber: rows, ColumnsNumber: cols}
	return p
}

func strPtr(s string) *string { return &s }

// newSubsampleLocation builds the Movable of a subsample SS1 with attrs.
func newSubsampleLocation(t interface{ Fatalf(string, ...any) }, base Base, attrs LocationAttrs, f *testFactory) *Movable {
	if base.GlobalID == "" {
		base.GlobalID = "SS1"
	}
	record := NewSubsample(base, "SA1")
	loc, err := NewLocationInfo(&record.Base, attrs, f, f.users, f.notifier)
	if err != nil {
		t.Fatalf("new location info: %v", err)
	}
	m := NewMovable(loc, f.now)
	record.AttachLocation(m)
	return m
}
