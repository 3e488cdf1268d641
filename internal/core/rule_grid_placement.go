package core

import (
	"context"
	"fmt"

	"inventorycore/pkg/domain"
)

// NewGridPlacementRule returns the rule requiring records in a grid to sit
// in distinct cells within the grid bounds.
func NewGridPlacementRule() domain.Rule {
	return gridPlacementRule{}
}

type gridPlacementRule struct{}

func (gridPlacementRule) Name() string { return RuleGridPlacement }

func (gridPlacementRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	grids := make(map[domain.GlobalID]domain.StoredRecord)
	for _, rec := range changedRecords(view, changes) {
		if rec.IsContainer() && rec.Grid != nil {
			grids[rec.GlobalID] = rec
		}
	}
	for _, rec := range relocatedRecords(view, changes) {
		if rec.ParentID == nil {
			continue
		}
		if parent, ok := view.FindRecord(*rec.ParentID); ok && parent.IsContainer() && parent.Grid != nil {
			grids[parent.GlobalID] = parent
		}
	}

	res := domain.Result{}
	for _, grid := range view.ListRecords() {
		if _, affected := grids[grid.GlobalID]; !affected {
			continue
		}
		occupied := make(map[[2]int]domain.GlobalID)
		for _, child := range view.ListChildren(grid.GlobalID) {
			loc := child.ParentLocation
			if loc == nil {
				res.Violations = append(res.Violations, violation(RuleGridPlacement, child,
					fmt.Sprintf("%s %s in grid %s has no coordinates", child.Type, child.GlobalID, grid.GlobalID)))
				continue
			}
			if !grid.Grid.Contains(*loc) {
				res.Violations = append(res.Violations, violation(RuleGridPlacement, child,
					fmt.Sprintf("%s %s at column %d row %d is outside grid %s (%dx%d)",
						child.Type, child.GlobalID, loc.CoordX, loc.CoordY, grid.GlobalID, grid.Grid.Columns, grid.Grid.Rows)))
				continue
			}
			cell := [2]int{loc.CoordX, loc.CoordY}
			if other, taken := occupied[cell]; taken {
				res.Violations = append(res.Violations, violation(RuleGridPlacement, child,
					fmt.Sprintf("%s %s shares column %d row %d of grid %s with %s",
						child.Type, child.GlobalID, loc.CoordX, loc.CoordY, grid.GlobalID, other)))
				continue
			}
			occupied[cell] = child.GlobalID
		}
	}
	return res, nil
}
