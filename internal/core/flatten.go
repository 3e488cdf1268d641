package core

import (
	"time"

	"github.com/pkg/errors"

	"inventorycore/pkg/domain"
)

// flatEntry is one stored row produced from a nested payload. Reference rows
// come from ancestor or last-parent summaries; they are created when missing
// and never overwrite an existing row.
type flatEntry struct {
	record    domain.StoredRecord
	reference bool
}

// flattenPayload lists the rows carried by p, parents before children.
func flattenPayload(p domain.RecordPayload) ([]flatEntry, error) {
	var out []flatEntry
	if err := flattenInto(&out, p, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenInto(out *[]flatEntry, p domain.RecordPayload, parent *domain.GlobalID) error {
	rec, err := storedFromPayload(p)
	if err != nil {
		return err
	}

	if len(p.ParentContainers) > 0 {
		refs, err := ancestorRefs(p.ParentContainers)
		if err != nil {
			return errors.Wrapf(err, "ancestors of %s", rec.GlobalID)
		}
		*out = append(*out, refs...)
		immediate := refs[len(refs)-1].record.GlobalID
		rec.ParentID = &immediate
	} else if parent != nil {
		id := *parent
		rec.ParentID = &id
	}
	if p.LastNonWorkbenchParent != nil {
		ref, err := storedFromPayload(*p.LastNonWorkbenchParent)
		if err != nil {
			return errors.Wrapf(err, "last non-workbench parent of %s", rec.GlobalID)
		}
		*out = append(*out, flatEntry{record: ref, reference: true})
		id := ref.GlobalID
		rec.LastNonWorkbenchParentID = &id
	}
	*out = append(*out, flatEntry{record: rec})

	self := rec.GlobalID
	for _, cell := range p.Locations {
		if cell.Content == nil {
			continue
		}
		child := *cell.Content
		if child.ParentLocation == nil {
			child.ParentLocation = &domain.LocationPayload{ID: cell.ID, CoordX: cell.CoordX, CoordY: cell.CoordY}
		}
		if err := flattenInto(out, child, &self); err != nil {
			return err
		}
	}
	for _, child := range p.StoredContent {
		if err := flattenInto(out, child, &self); err != nil {
			return err
		}
	}
	for _, sub := range p.Subsamples {
		if sub.SampleGlobal == "" {
			sub.SampleGlobal = self
		}
		if err := flattenInto(out, sub, nil); err != nil {
			return err
		}
	}
	return nil
}

// ancestorRefs turns an immediate-first ancestor list into reference rows
// ordered root first, each pointing at the next ancestor up. The last
// element is the immediate parent.
func ancestorRefs(chain []domain.RecordPayload) ([]flatEntry, error) {
	chain = flattenChain(chain)
	out := make([]flatEntry, 0, len(chain))
	var above *domain.GlobalID
	for i := len(chain) - 1; i >= 0; i-- {
		ref, err := storedFromPayload(chain[i])
		if err != nil {
			return nil, err
		}
		if ref.Type != domain.RecordContainer {
			return nil, errors.Errorf("ancestor %s is a %s", ref.GlobalID, ref.Type)
		}
		ref.ParentID = above
		id := ref.GlobalID
		above = &id
		out = append(out, flatEntry{record: ref, reference: true})
	}
	return out, nil
}

// flattenChain accepts both the flat form, where the list holds every
// ancestor, and the nested form, where each ancestor carries its own parents.
func flattenChain(chain []domain.RecordPayload) []domain.RecordPayload {
	var out []domain.RecordPayload
	for len(chain) > 0 {
		head := chain[0]
		out = append(out, head)
		if len(chain) > 1 {
			chain = chain[1:]
			continue
		}
		chain = head.ParentContainers
	}
	return out
}

// storedFromPayload converts the fields of p itself, ignoring nesting.
func storedFromPayload(p domain.RecordPayload) (domain.StoredRecord, error) {
	base, err := baseFromPayload(p)
	if err != nil {
		return domain.StoredRecord{}, err
	}
	rec := domain.StoredRecord{Base: base, Type: p.Type, Quantity: quantityFromPayload(p.Quantity)}
	if p.ParentLocation != nil {
		rec.ParentLocation = &domain.ParentLocation{ID: p.ParentLocation.ID, CoordX: p.ParentLocation.CoordX, CoordY: p.ParentLocation.CoordY}
	}
	if p.LastMoveDate != nil {
		moved, err := domain.ParseTimestamp(*p.LastMoveDate)
		if err != nil {
			return domain.StoredRecord{}, &PayloadError{ID: base.GlobalID, Err: errors.Wrap(err, "last move date")}
		}
		rec.LastMoveDate = moved
	}
	switch p.Type {
	case domain.RecordContainer:
		rec.ContainerType = containerType(p)
		if p.GridLayout != nil {
			rec.Grid = &domain.GridLayout{
				Rows:        p.GridLayout.RowsNumber,
				Columns:     p.GridLayout.ColumnsNumber,
				RowsLabel:   p.GridLayout.RowsLabelType,
				ColumnLabel: p.GridLayout.ColumnsLabelType,
			}
		}
	case domain.RecordSample:
		if p.TemplateID != nil {
			id := *p.TemplateID
			rec.TemplateID = &id
		}
		if p.GeoLocation != nil {
			geo, err := geoLocationFromPayload(*p.GeoLocation)
			if err != nil {
				return domain.StoredRecord{}, &PayloadError{ID: base.GlobalID, Err: err}
			}
			rec.GeoLocation = geo
		}
	case domain.RecordSubsample:
		if p.SampleGlobal != "" {
			sample, err := domain.ParseGlobalID(string(p.SampleGlobal))
			if err != nil {
				return domain.StoredRecord{}, &PayloadError{ID: base.GlobalID, Err: err}
			}
			rec.SampleID = sample
		}
	case domain.RecordTemplate:
		rec.DefaultUnitID = p.DefaultUnitID
	}
	return rec, nil
}

// payloadAssembler rebuilds nested payloads from stored rows.
type payloadAssembler struct {
	view domain.TransactionView
}

// payload returns the payload of id with its ancestor chain, last
// non-workbench parent, contents and subsamples.
func (a payloadAssembler) payload(id domain.GlobalID) (domain.RecordPayload, error) {
	rec, ok := a.view.FindRecord(id)
	if !ok {
		return domain.RecordPayload{}, domain.NotFoundError{ID: id}
	}
	return a.full(rec, map[domain.GlobalID]struct{}{})
}

func (a payloadAssembler) full(rec domain.StoredRecord, visited map[domain.GlobalID]struct{}) (domain.RecordPayload, error) {
	p := summaryPayload(rec)
	chain, err := a.ancestors(rec)
	if err != nil {
		return domain.RecordPayload{}, err
	}
	p.ParentContainers = chain
	if rec.LastNonWorkbenchParentID != nil {
		if last, ok := a.view.FindRecord(*rec.LastNonWorkbenchParentID); ok {
			lp := summaryPayload(last)
			p.LastNonWorkbenchParent = &lp
		}
	}
	if err := a.nest(&p, rec, visited); err != nil {
		return domain.RecordPayload{}, err
	}
	return p, nil
}

// ancestors lists the parent chain immediate first. A cycle is an error.
func (a payloadAssembler) ancestors(rec domain.StoredRecord) ([]domain.RecordPayload, error) {
	var chain []domain.RecordPayload
	seen := map[domain.GlobalID]struct{}{rec.GlobalID: {}}
	for cur := rec.ParentID; cur != nil; {
		if _, loop := seen[*cur]; loop {
			return nil, errors.Errorf("record %s: parent chain loops at %s", rec.GlobalID, *cur)
		}
		seen[*cur] = struct{}{}
		parent, ok := a.view.FindRecord(*cur)
		if !ok {
			break
		}
		chain = append(chain, summaryPayload(parent))
		cur = parent.ParentID
	}
	return chain, nil
}

// nest fills contents and subsamples below rec. Children inherit their place
// from the enclosing payload and carry no ancestor list.
func (a payloadAssembler) nest(p *domain.RecordPayload, rec domain.StoredRecord, visited map[domain.GlobalID]struct{}) error {
	if _, loop := visited[rec.GlobalID]; loop {
		return errors.Errorf("record %s: contents loop", rec.GlobalID)
	}
	visited[rec.GlobalID] = struct{}{}
	defer delete(visited, rec.GlobalID)

	switch rec.Type {
	case domain.RecordContainer:
		for _, child := range a.view.ListChildren(rec.GlobalID) {
			cp := summaryPayload(child)
			if err := a.nest(&cp, child, visited); err != nil {
				return err
			}
			if rec.Grid != nil && child.ParentLocation != nil {
				loc := *cp.ParentLocation
				loc.Content = &cp
				p.Locations = append(p.Locations, loc)
				continue
			}
			p.StoredContent = append(p.StoredContent, cp)
		}
	case domain.RecordSample:
		for _, sub := range a.view.ListRecords() {
			if sub.Type != domain.RecordSubsample || sub.SampleID != rec.GlobalID {
				continue
			}
			sp, err := a.full(sub, visited)
			if err != nil {
				return err
			}
			p.Subsamples = append(p.Subsamples, sp)
		}
	}
	return nil
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

// summaryPayload converts the fields of rec itself.
func summaryPayload(rec domain.StoredRecord) domain.RecordPayload {
	p := domain.RecordPayload{
		ID:              rec.ID,
		GlobalID:        rec.GlobalID,
		Type:            rec.Type,
		Name:            rec.Name,
		Description:     rec.Description,
		Created:         formatTimestamp(rec.Created),
		LastModified:    formatTimestamp(rec.LastModified),
		ReadAccessLevel: rec.ReadAccessLevel,
		Tags:            append([]string(nil), rec.Tags...),
		ContainerType:   rec.ContainerType,
		SampleGlobal:    rec.SampleID,
		DefaultUnitID:   rec.DefaultUnitID,
	}
	if rec.Owner != nil {
		p.Owner = &domain.PersonPayload{
			ID:          rec.Owner.ID,
			Username:    rec.Owner.Username,
			FirstName:   rec.Owner.FirstName,
			LastName:    rec.Owner.LastName,
			Email:       rec.Owner.Email,
			WorkbenchID: rec.Owner.WorkbenchID,
		}
	}
	if rec.ParentLocation != nil {
		p.ParentLocation = &domain.LocationPayload{ID: rec.ParentLocation.ID, CoordX: rec.ParentLocation.CoordX, CoordY: rec.ParentLocation.CoordY}
	}
	if rec.LastMoveDate != nil {
		moved := formatTimestamp(*rec.LastMoveDate)
		p.LastMoveDate = &moved
	}
	if rec.Quantity != nil {
		p.Quantity = &domain.QuantityPayload{NumericValue: rec.Quantity.NumericValue, UnitID: rec.Quantity.UnitID}
	}
	if rec.Grid != nil {
		p.GridLayout = &domain.GridLayoutPayload{
			ColumnsNumber:    rec.Grid.Columns,
			RowsNumber:       rec.Grid.Rows,
			ColumnsLabelType: rec.Grid.ColumnLabel,
			RowsLabelType:    rec.Grid.RowsLabel,
		}
	}
	if rec.TemplateID != nil {
		id := *rec.TemplateID
		p.TemplateID = &id
	}
	if rec.GeoLocation != nil {
		geo := &domain.GeoLocationPayload{PlaceName: rec.GeoLocation.PlaceName}
		if rec.GeoLocation.Point != nil {
			lat, lng := rec.GeoLocation.Point.Latitude, rec.GeoLocation.Point.Longitude
			geo.PointLatitude, geo.PointLongitude = &lat, &lng
		}
		if rec.GeoLocation.Box != nil {
			box := *rec.GeoLocation.Box
			geo.Box = &box
		}
		p.GeoLocation = geo
	}
	return p
}
