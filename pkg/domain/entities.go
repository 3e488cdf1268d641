// Package domain defines the inventory record model, its location, quantity
// and tree capabilities, and the persistence and rule contracts used by
// inventorycore.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// AccessLevel is the caller's read access to a record.
type AccessLevel string

// Read access levels reported by the API.
const (
	// AccessPublic exposes only the public view; location details are redacted.
	AccessPublic  AccessLevel = "public"
	AccessLimited AccessLevel = "limited"
	AccessFull    AccessLevel = "full"
)

// ContainerType enumerates container layouts.
type ContainerType string

// Container layouts.
const (
	ContainerList      ContainerType = "LIST"
	ContainerGrid      ContainerType = "GRID"
	ContainerImage     ContainerType = "IMAGE"
	ContainerWorkbench ContainerType = "WORKBENCH"
)

// AxisLabel is the labelling scheme of a grid axis.
type AxisLabel string

// Grid axis labelling schemes.
const (
	AxisNumeric    AxisLabel = "N"
	AxisAlphabetic AxisLabel = "ABC"
)

// Base contains the fields shared by every inventory record.
type Base struct {
	ID              int64       `json:"id"`
	GlobalID        GlobalID    `json:"globalId"`
	Name            string      `json:"name"`
	Description     string      `json:"description,omitempty"`
	Created         time.Time   `json:"created"`
	LastModified    time.Time   `json:"lastModified"`
	Owner           *Person     `json:"owner,omitempty"`
	ReadAccessLevel AccessLevel `json:"readAccessLevel"`
	Tags            []string    `json:"tags,omitempty"`
}

// Identifier returns the record's global id.
func (b *Base) Identifier() GlobalID { return b.GlobalID }

// BaseRecord returns the shared record fields.
func (b *Base) BaseRecord() *Base { return b }

// IsPublicView reports whether the caller only sees the public view of the record.
func (b *Base) IsPublicView() bool { return b.ReadAccessLevel == AccessPublic }

// TreeNode is a node of the navigation tree.
type TreeNode interface {
	Identifier() GlobalID
	Children() []TreeNode
}

// Record is the inventory record union: *Container, *Sample, *Subsample or *Template.
type Record interface {
	TreeNode
	RecordType() RecordType
	BaseRecord() *Base
}

// HasLocation is implemented by records that live inside a container.
type HasLocation interface {
	Record
	Location() *Movable
}

// HasQuantity is implemented by records that carry a quantity.
type HasQuantity interface {
	Record
	Quantity() *QuantityInfo
}

// Person is a user of the inventory.
type Person struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Email       string `json:"email,omitempty"`
	WorkbenchID int64  `json:"workbenchId,omitempty"`
}

// FullName joins first and last name, falling back to the username.
func (p Person) FullName() string {
	name := strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
	if name == "" {
		return p.Username
	}
	return name
}

// UserAccessor exposes the signed-in user.
type UserAccessor interface {
	CurrentUser() (Person, bool)
}

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
	Latitude  decimal.Decimal `json:"pointLatitude"`
	Longitude decimal.Decimal `json:"pointLongitude"`
}

// GeoBox is a bounding box given by its south-west and north-east corners.
type GeoBox struct {
	SouthWest GeoPoint `json:"southWest"`
	NorthEast GeoPoint `json:"northEast"`
}

// GeoLocation records where a sample was collected.
type GeoLocation struct {
	Point     *GeoPoint `json:"geoLocationPoint,omitempty"`
	PlaceName string    `json:"geoLocationPlace,omitempty"`
	Box       *GeoBox   `json:"geoLocationBox,omitempty"`
}

var (
	maxLatitude  = decimal.NewFromInt(90)
	maxLongitude = decimal.NewFromInt(180)
)

func (p GeoPoint) validate() error {
	if p.Latitude.Abs().GreaterThan(maxLatitude) {
		return errors.Errorf("latitude %s out of range", p.Latitude)
	}
	if p.Longitude.Abs().GreaterThan(maxLongitude) {
		return errors.Errorf("longitude %s out of range", p.Longitude)
	}
	return nil
}

// Validate checks coordinate ranges.
func (g GeoLocation) Validate() error {
	if g.Point != nil {
		if err := g.Point.validate(); err != nil {
			return errors.Wrap(err, "geo point")
		}
	}
	if g.Box != nil {
		if err := g.Box.SouthWest.validate(); err != nil {
			return errors.Wrap(err, "geo box south-west")
		}
		if err := g.Box.NorthEast.validate(); err != nil {
			return errors.Wrap(err, "geo box north-east")
		}
	}
	return nil
}

// IsEmpty reports whether neither a point nor a place name is set.
func (g GeoLocation) IsEmpty() bool {
	return g.Point == nil && strings.TrimSpace(g.PlaceName) == ""
}

// GridLayout describes a grid container's fixed dimensions.
type GridLayout struct {
	Rows        int       `json:"rowsNumber"`
	Columns     int       `json:"columnsNumber"`
	RowsLabel   AxisLabel `json:"rowsLabelType,omitempty"`
	ColumnLabel AxisLabel `json:"columnsLabelType,omitempty"`
}

// Contains reports whether loc lies within the grid.
func (g GridLayout) Contains(loc ParentLocation) bool {
	return loc.CoordX >= 1 && loc.CoordX <= g.Columns && loc.CoordY >= 1 && loc.CoordY <= g.Rows
}

// Capacity returns the number of cells.
func (g GridLayout) Capacity() int { return g.Rows * g.Columns }

// ParentLocation is a record's cell within its parent. Coordinates are
// 1-indexed; CoordX is the column and CoordY the row.
type ParentLocation struct {
	ID     int64 `json:"id,omitempty"`
	CoordX int   `json:"coordX"`
	CoordY int   `json:"coordY"`
}

// Container is a record that may hold other records.
type Container struct {
	Base
	ContainerType ContainerType
	Grid          *GridLayout
	contents      []Record
	location      *Movable
}

// NewContainer returns a container without contents or location.
func NewContainer(base Base, ctype ContainerType, grid *GridLayout) *Container {
	return &Container{Base: base, ContainerType: ctype, Grid: grid}
}

// RecordType implements Record.
func (c *Container) RecordType() RecordType { return RecordContainer }

// IsWorkbench reports whether the container is a user's workbench.
func (c *Container) IsWorkbench() bool { return c != nil && c.ContainerType == ContainerWorkbench }

// IsGrid reports whether the container has a fixed grid layout.
func (c *Container) IsGrid() bool { return c != nil && c.ContainerType == ContainerGrid && c.Grid != nil }

// Location returns the container's location capability.
func (c *Container) Location() *Movable { return c.location }

// AttachLocation sets the location capability.
func (c *Container) AttachLocation(m *Movable) { c.location = m }

// Contents returns the records stored in the container in display order.
func (c *Container) Contents() []Record { return c.contents }

// SetContents replaces the container's contents.
func (c *Container) SetContents(records []Record) { c.contents = records }

// Children implements TreeNode.
func (c *Container) Children() []TreeNode {
	out := make([]TreeNode, 0, len(c.contents))
	for _, r := range c.contents {
		out = append(out, r)
	}
	return out
}

func (c *Container) String() string { return fmt.Sprintf("%s (%s)", c.Name, c.GlobalID) }

// Sample is a logical sample; its physical portions are subsamples.
type Sample struct {
	Base
	TemplateID  *int64
	GeoLocation *GeoLocation
	quantity    *QuantityInfo
	subsamples  []*Subsample
}

// NewSample returns a sample without quantity or subsamples.
func NewSample(base Base) *Sample { return &Sample{Base: base} }

// RecordType implements Record.
func (s *Sample) RecordType() RecordType { return RecordSample }

// Quantity returns the sample's quantity capability.
func (s *Sample) Quantity() *QuantityInfo { return s.quantity }

// AttachQuantity sets the quantity capability.
func (s *Sample) AttachQuantity(q *QuantityInfo) { s.quantity = q }

// Subsamples returns the sample's subsamples.
func (s *Sample) Subsamples() []*Subsample { return s.subsamples }

// SetSubsamples replaces the sample's subsamples.
func (s *Sample) SetSubsamples(subs []*Subsample) { s.subsamples = subs }

// Children implements TreeNode.
func (s *Sample) Children() []TreeNode {
	out := make([]TreeNode, 0, len(s.subsamples))
	for _, ss := range s.subsamples {
		out = append(out, ss)
	}
	return out
}

// TotalQuantity sums the subsample quantities in the sample's unit. When a
// subsample unit cannot be converted the sample's own quantity is returned.
func (s *Sample) TotalQuantity() (Quantity, error) {
	if s.quantity == nil {
		return Quantity{}, preconditionf("sample %s has no quantity", s.GlobalID)
	}
	own := s.quantity.Current()
	if len(s.subsamples) == 0 {
		return own, nil
	}
	total := decimal.Zero
	for _, ss := range s.subsamples {
		q := ss.Quantity()
		if q == nil || !q.Present() {
			continue
		}
		converted, err := q.ConvertTo(own.UnitID)
		if errors.Is(err, ErrIncompatibleUnits) {
			return own, nil
		}
		if err != nil {
			return Quantity{}, errors.Wrapf(err, "subsample %s", ss.GlobalID)
		}
		total = total.Add(converted.NumericValue)
	}
	return Quantity{NumericValue: total, UnitID: own.UnitID}, nil
}

// Subsample is a physical portion of a sample stored in a container.
type Subsample struct {
	Base
	SampleID GlobalID
	quantity *QuantityInfo
	location *Movable
}

// NewSubsample returns a subsample of sample without capabilities.
func NewSubsample(base Base, sample GlobalID) *Subsample {
	return &Subsample{Base: base, SampleID: sample}
}

// RecordType implements Record.
func (s *Subsample) RecordType() RecordType { return RecordSubsample }

// Quantity returns the subsample's quantity capability.
func (s *Subsample) Quantity() *QuantityInfo { return s.quantity }

// AttachQuantity sets the quantity capability.
func (s *Subsample) AttachQuantity(q *QuantityInfo) { s.quantity = q }

// Location returns the subsample's location capability.
func (s *Subsample) Location() *Movable { return s.location }

// AttachLocation sets the location capability.
func (s *Subsample) AttachLocation(m *Movable) { s.location = m }

// Children implements TreeNode; subsamples are leaves.
func (s *Subsample) Children() []TreeNode { return nil }

// Template is a reusable sample definition.
type Template struct {
	Base
	DefaultUnitID int
}

// NewTemplate returns a template record.
func NewTemplate(base Base, defaultUnit int) *Template {
	return &Template{Base: base, DefaultUnitID: defaultUnit}
}

// RecordType implements Record.
func (t *Template) RecordType() RecordType { return RecordTemplate }

// Children implements TreeNode; templates are leaves.
func (t *Template) Children() []TreeNode { return nil }

var (
	_ HasLocation = (*Container)(nil)
	_ HasLocation = (*Subsample)(nil)
	_ HasQuantity = (*Sample)(nil)
	_ HasQuantity = (*Subsample)(nil)
	_ Record      = (*Template)(nil)
)
