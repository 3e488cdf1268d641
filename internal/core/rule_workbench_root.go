package core

import (
	"context"
	"fmt"

	"inventorycore/pkg/domain"
)

// NewWorkbenchRootRule returns the rule keeping workbenches at the top level.
func NewWorkbenchRootRule() domain.Rule {
	return workbenchRootRule{}
}

type workbenchRootRule struct{}

func (workbenchRootRule) Name() string { return RuleWorkbenchRoot }

func (workbenchRootRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, rec := range changedRecords(view, changes) {
		if rec.IsWorkbench() && rec.ParentID != nil {
			res.Violations = append(res.Violations, violation(RuleWorkbenchRoot, rec,
				fmt.Sprintf("workbench %s cannot be placed in %s", rec.GlobalID, *rec.ParentID)))
		}
	}
	return res, nil
}
