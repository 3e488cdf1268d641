package testutil

import (
	"github.com/shopspring/decimal"

	"inventorycore/pkg/domain"
)

// Person returns a user payload with a workbench.
func Person(username string, workbenchID int64) domain.PersonPayload {
	return domain.PersonPayload{
		ID:          workbenchID,
		Username:    username,
		FirstName:   username,
		LastName:    "Tester",
		Email:       username + "@example.org",
		WorkbenchID: workbenchID,
	}
}

// Workbench returns the workbench payload BE<id> owned by owner.
func Workbench(id int64, owner domain.PersonPayload) domain.RecordPayload {
	return domain.RecordPayload{
		ID:              id,
		GlobalID:        domain.NewGlobalID(domain.RecordWorkbench, id),
		Type:            domain.RecordContainer,
		Name:            "WB " + owner.Username,
		Owner:           &owner,
		ContainerType:   domain.ContainerWorkbench,
		ReadAccessLevel: domain.AccessFull,
	}
}

// Container returns a list container payload IC<id>.
func Container(id int64, name string) domain.RecordPayload {
	return domain.RecordPayload{
		ID:              id,
		GlobalID:        domain.NewGlobalID(domain.RecordContainer, id),
		Type:            domain.RecordContainer,
		Name:            name,
		ContainerType:   domain.ContainerList,
		ReadAccessLevel: domain.AccessFull,
	}
}

// Grid returns a grid container payload IC<id> with rows x columns cells,
// rows labelled alphabetically and columns numerically.
func Grid(id int64, name string, rows, columns int) domain.RecordPayload {
	p := Container(id, name)
	p.ContainerType = domain.ContainerGrid
	p.GridLayout = &domain.GridLayoutPayload{
		ColumnsNumber:    columns,
		RowsNumber:       rows,
		ColumnsLabelType: domain.AxisNumeric,
		RowsLabelType:    domain.AxisAlphabetic,
	}
	return p
}

// Sample returns a sample payload SA<id> holding subs.
func Sample(id int64, name string, value string, unitID int, subs ...domain.RecordPayload) domain.RecordPayload {
	return domain.RecordPayload{
		ID:              id,
		GlobalID:        domain.NewGlobalID(domain.RecordSample, id),
		Type:            domain.RecordSample,
		Name:            name,
		ReadAccessLevel: domain.AccessFull,
		Quantity:        Quantity(value, unitID),
		Subsamples:      subs,
	}
}

// Subsample returns a subsample payload SS<id>.
func Subsample(id int64, name string, value string, unitID int) domain.RecordPayload {
	return domain.RecordPayload{
		ID:              id,
		GlobalID:        domain.NewGlobalID(domain.RecordSubsample, id),
		Type:            domain.RecordSubsample,
		Name:            name,
		ReadAccessLevel: domain.AccessFull,
		Quantity:        Quantity(value, unitID),
	}
}

// Quantity returns a quantity payload; value must be a decimal literal.
func Quantity(value string, unitID int) *domain.QuantityPayload {
	return &domain.QuantityPayload{NumericValue: decimal.RequireFromString(value), UnitID: unitID}
}

// Holding returns c with children stored as plain contents.
func Holding(c domain.RecordPayload, children ...domain.RecordPayload) domain.RecordPayload {
	c.StoredContent = append(append([]domain.RecordPayload(nil), c.StoredContent...), children...)
	return c
}

// Cell returns grid c with child placed at column col and row row.
func Cell(c domain.RecordPayload, col, row int, child domain.RecordPayload) domain.RecordPayload {
	c.Locations = append(append([]domain.LocationPayload(nil), c.Locations...), domain.LocationPayload{
		CoordX:  col,
		CoordY:  row,
		Content: &child,
	})
	return c
}

// In returns p with ancestors given immediate parent first.
func In(p domain.RecordPayload, ancestors ...domain.RecordPayload) domain.RecordPayload {
	chain := make([]domain.RecordPayload, 0, len(ancestors))
	for _, a := range ancestors {
		a.StoredContent, a.Locations, a.ParentContainers = nil, nil, nil
		chain = append(chain, a)
	}
	p.ParentContainers = chain
	return p
}

// At returns p with its parent location set.
func At(p domain.RecordPayload, col, row int) domain.RecordPayload {
	p.ParentLocation = &domain.LocationPayload{CoordX: col, CoordY: row}
	return p
}

// Public returns p with public read access.
func Public(p domain.RecordPayload) domain.RecordPayload {
	p.ReadAccessLevel = domain.AccessPublic
	return p
}

// LabInventoryJSON is a small inventory export: a workbench, a freezer
// holding a grid box with a subsample, and the sample it came from.
const LabInventoryJSON = `[
  {
    "id": 1, "globalId": "BE1", "type": "CONTAINER", "cType": "WORKBENCH",
    "name": "WB alice",
    "owner": {"id": 1, "username": "alice", "firstName": "Alice", "lastName": "Liddell", "workbenchId": 1}
  },
  {
    "id": 2, "globalId": "IC2", "type": "CONTAINER", "cType": "LIST", "name": "Freezer -80",
    "storedContent": [
      {
        "id": 3, "globalId": "IC3", "type": "CONTAINER", "cType": "GRID", "name": "Box A",
        "gridLayout": {"columnsNumber": 3, "rowsNumber": 2, "columnsLabelType": "N", "rowsLabelType": "ABC"},
        "locations": [
          {"coordX": 2, "coordY": 1, "content": {"id": 1, "globalId": "SS1", "type": "SUBSAMPLE", "name": "Aliquot 1",
            "quantity": {"numericValue": 5, "unitId": 3}, "sampleGlobalId": "SA1",
            "lastMoveDate": "2024-03-01T10:00:00Z"}}
        ]
      }
    ]
  },
  {
    "id": 1, "globalId": "SA1", "type": "SAMPLE", "name": "Plasma",
    "quantity": {"numericValue": 5, "unitId": 3}
  }
]`
