package core

import (
	"context"
	"fmt"

	"inventorycore/pkg/domain"
)

// NewParentIsContainerRule returns the rule requiring every parent
// reference to name an existing container.
func NewParentIsContainerRule() domain.Rule {
	return parentIsContainerRule{}
}

type parentIsContainerRule struct{}

func (parentIsContainerRule) Name() string { return RuleParentIsContainer }

func (parentIsContainerRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, rec := range changedRecords(view, changes) {
		if rec.ParentID == nil {
			continue
		}
		parent, ok := view.FindRecord(*rec.ParentID)
		switch {
		case !ok:
			res.Violations = append(res.Violations, violation(RuleParentIsContainer, rec,
				fmt.Sprintf("%s %s references missing parent %s", rec.Type, rec.GlobalID, *rec.ParentID)))
		case !parent.IsContainer():
			res.Violations = append(res.Violations, violation(RuleParentIsContainer, rec,
				fmt.Sprintf("%s %s is placed in %s %s, which is not a container", rec.Type, rec.GlobalID, parent.Type, parent.GlobalID)))
		case rec.Type == domain.RecordSample || rec.Type == domain.RecordTemplate:
			res.Violations = append(res.Violations, violation(RuleParentIsContainer, rec,
				fmt.Sprintf("%s %s cannot be stored in a container", rec.Type, rec.GlobalID)))
		}
	}
	return res, nil
}
