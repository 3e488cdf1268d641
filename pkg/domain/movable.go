package domain

import (
	"fmt"
	"time"
)

// Table field labels of the location projection.
const (
	FieldLabelPreviousLocation = "Previous Location"
	FieldLabelLocation         = "Location"
	FieldLabelGridCoordinates  = "Grid Coordinates"
	FieldLabelLastMoved        = "Last Moved"
)

// DisplayTimeLayout formats timestamps in table entries.
const DisplayTimeLayout = "2006-01-02 15:04"

// Movable adds time-in-location and table formatting to LocationInfo.
type Movable struct {
	*LocationInfo
	now func() time.Time
}

// NewMovable wraps loc. A nil clock defaults to time.Now.
func NewMovable(loc *LocationInfo, now func() time.Time) *Movable {
	if now == nil {
		now = time.Now
	}
	return &Movable{LocationInfo: loc, now: now}
}

// TimeInCurrentLocation returns how long the record has been where it is,
// measured from the later of its last move and its creation, to the millisecond.
func (m *Movable) TimeInCurrentLocation() time.Duration {
	since := m.record.Created
	if moved, ok := m.LastMoveDate(); ok && moved.After(since) {
		since = moved
	}
	return m.now().Sub(since).Truncate(time.Millisecond)
}

// GridCoordinatesLabel renders the record's grid cell, e.g.
// "Row 2 of 8, Column 5 of 12".
func (m *Movable) GridCoordinatesLabel() (string, error) {
	parent := m.ImmediateParentContainer()
	if parent == nil {
		return "", preconditionf("record %s: no parent container", m.record.GlobalID)
	}
	if parent.Grid == nil {
		return "", preconditionf("record %s: parent %s has no grid layout", m.record.GlobalID, parent.GlobalID)
	}
	loc := m.ParentLocation()
	if loc == nil {
		return "", preconditionf("record %s: no parent location", m.record.GlobalID)
	}
	return fmt.Sprintf("Row %d of %d, Column %d of %d", loc.CoordY, parent.Grid.Rows, loc.CoordX, parent.Grid.Columns), nil
}

// Table returns the location fields for table display. Records seen through
// the public view keep the same labels with every entry redacted.
func (m *Movable) Table() *Table {
	t := NewTable()
	t.Add(FieldLabelPreviousLocation, func() (DisplayEntry, error) {
		name := ""
		if prev := m.LastNonWorkbenchParent(); prev != nil {
			name = prev.Name
		}
		return DisplayEntry{Kind: RenderName, Data: name}, nil
	})
	t.Add(FieldLabelLocation, func() (DisplayEntry, error) {
		parent := m.ImmediateParentContainer()
		if parent == nil {
			return DisplayEntry{}, preconditionf("record %s: no parent container", m.record.GlobalID)
		}
		return DisplayEntry{Kind: RenderLocation, Data: parent}, nil
	})
	if m.ImmediateParentContainer().IsGrid() {
		t.Add(FieldLabelGridCoordinates, func() (DisplayEntry, error) {
			label, err := m.GridCoordinatesLabel()
			if err != nil {
				return DisplayEntry{}, err
			}
			return DisplayEntry{Kind: RenderNode, Data: label}, nil
		})
	}
	t.Add(FieldLabelLastMoved, func() (DisplayEntry, error) {
		moved, ok := m.LastMoveDate()
		if !ok {
			return DisplayEntry{Kind: RenderNode, Data: ""}, nil
		}
		return DisplayEntry{Kind: RenderNode, Data: moved.Format(DisplayTimeLayout)}, nil
	})
	if m.record.IsPublicView() {
		return t.Redacted()
	}
	return t
}
