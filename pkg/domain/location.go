package domain

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// LocationAttrs is the location part of a record payload.
type LocationAttrs struct {
	// ParentContainers lists the ancestors, immediate parent first; empty
	// for records at the top level.
	ParentContainers       []RecordPayload
	ParentLocation         *LocationPayload
	LastMoveDate           *string
	LastNonWorkbenchParent *RecordPayload
}

// LocationAttrsOf extracts the location attributes of p.
func LocationAttrsOf(p RecordPayload) LocationAttrs {
	return LocationAttrs{
		ParentContainers:       p.ParentContainers,
		ParentLocation:         p.ParentLocation,
		LastMoveDate:           p.LastMoveDate,
		LastNonWorkbenchParent: p.LastNonWorkbenchParent,
	}
}

// LocationInfo resolves where a record lives: its parent container chain,
// workbench membership and movement history.
type LocationInfo struct {
	record         *Base
	immediate      *Container
	parentLocation *ParentLocation
	lastMove       *time.Time
	lastNonBench   *Container
	users          UserAccessor
	notifier       *Notifier
}

// NewLocationInfo builds the location capability of record from attrs.
// Container payloads are materialized by factory; its errors are returned
// unchanged.
func NewLocationInfo(record *Base, attrs LocationAttrs, factory ContainerFactory, users UserAccessor, notifier *Notifier) (*LocationInfo, error) {
	info := &LocationInfo{record: record, users: users, notifier: notifier}

	if len(attrs.ParentContainers) > 0 {
		parent := attrs.ParentContainers[0]
		// A flattened ancestor list: the rest of the list is the parent's own chain.
		if len(parent.ParentContainers) == 0 && len(attrs.ParentContainers) > 1 {
			parent.ParentContainers = attrs.ParentContainers[1:]
		}
		c, err := factory.NewContainer(parent)
		if err != nil {
			return nil, err
		}
		info.immediate = c
	}

	if attrs.LastNonWorkbenchParent != nil {
		c, err := factory.NewContainer(*attrs.LastNonWorkbenchParent)
		if err != nil {
			return nil, err
		}
		info.lastNonBench = c
	}

	if attrs.ParentLocation != nil {
		info.parentLocation = &ParentLocation{
			ID:     attrs.ParentLocation.ID,
			CoordX: attrs.ParentLocation.CoordX,
			CoordY: attrs.ParentLocation.CoordY,
		}
	}

	if attrs.LastMoveDate != nil {
		moved, err := ParseTimestamp(*attrs.LastMoveDate)
		if err != nil {
			return nil, errors.Wrapf(err, "record %s: last move date", record.GlobalID)
		}
		info.lastMove = moved
	}
	return info, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses an ISO 8601 date or date-time. An empty string
// yields nil.
func ParseTimestamp(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, errors.Errorf("unrecognised timestamp %q", s)
}

// ImmediateParentContainer returns the container directly holding the record.
func (l *LocationInfo) ImmediateParentContainer() *Container { return l.immediate }

// ParentLocation returns the record's cell within its parent, if known.
func (l *LocationInfo) ParentLocation() *ParentLocation { return l.parentLocation }

// LastNonWorkbenchParent returns the last parent that was not a workbench.
func (l *LocationInfo) LastNonWorkbenchParent() *Container { return l.lastNonBench }

// RootParentContainer follows parent links up to the top-level container.
// It returns nil for a record at the top level.
func (l *LocationInfo) RootParentContainer() *Container {
	c := l.immediate
	if c == nil {
		return nil
	}
	for {
		loc := c.Location()
		if loc == nil || loc.ImmediateParentContainer() == nil {
			return c
		}
		c = loc.ImmediateParentContainer()
	}
}

// AllParentContainers returns the chain from the immediate parent to the root.
func (l *LocationInfo) AllParentContainers() []*Container {
	var chain []*Container
	for c := l.immediate; c != nil; {
		chain = append(chain, c)
		loc := c.Location()
		if loc == nil {
			break
		}
		c = loc.ImmediateParentContainer()
	}
	return chain
}

// IsInWorkbench reports whether the record's root container is a workbench.
func (l *LocationInfo) IsInWorkbench() bool {
	return l.RootParentContainer().IsWorkbench()
}

// IsOnWorkbench reports whether the record sits directly in a workbench
// rather than inside another container on it.
func (l *LocationInfo) IsOnWorkbench() bool {
	if !l.IsInWorkbench() {
		return false
	}
	return l.immediate.GlobalID == l.RootParentContainer().GlobalID
}

// IsInWorkbenchOfUser is IsInWorkbench restricted to p's workbench.
func (l *LocationInfo) IsInWorkbenchOfUser(p Person) bool {
	return l.IsInWorkbench() && l.RootParentContainer().ID == p.WorkbenchID
}

// IsOnWorkbenchOfUser is IsOnWorkbench restricted to p's workbench.
func (l *LocationInfo) IsOnWorkbenchOfUser(p Person) bool {
	return l.IsOnWorkbench() && l.RootParentContainer().ID == p.WorkbenchID
}

// IsInCurrentUsersWorkbench checks membership against the signed-in user.
func (l *LocationInfo) IsInCurrentUsersWorkbench() bool {
	if l.users == nil {
		return false
	}
	user, ok := l.users.CurrentUser()
	return ok && l.IsInWorkbenchOfUser(user)
}

// LastMoveDate returns when the record was last moved; ok is false for a
// record that has never been moved.
func (l *LocationInfo) LastMoveDate() (time.Time, bool) {
	if l.lastMove == nil {
		return time.Time{}, false
	}
	return *l.lastMove, true
}

// MoveTo places the record in parent at loc. Leaving a parent that is not a
// workbench records it as the last non-workbench parent.
func (l *LocationInfo) MoveTo(parent *Container, loc *ParentLocation, at time.Time) {
	if prev := l.immediate; prev != nil && !prev.IsWorkbench() {
		l.lastNonBench = prev
	}
	l.immediate = parent
	l.parentLocation = nil
	if loc != nil {
		cp := *loc
		l.parentLocation = &cp
	}
	l.lastMove = &at
	l.notifier.Publish(Event{Source: l.record.GlobalID, Field: FieldLocation})
}
