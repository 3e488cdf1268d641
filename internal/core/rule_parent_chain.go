package core

import (
	"context"
	"fmt"

	"inventorycore/pkg/domain"
)

// NewParentChainAcyclicRule returns the rule ensuring that walking parent
// references from a record terminates.
func NewParentChainAcyclicRule() domain.Rule {
	return parentChainRule{}
}

type parentChainRule struct{}

func (parentChainRule) Name() string { return RuleParentChainAcyclic }

func (parentChainRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	reported := make(map[domain.GlobalID]struct{})
	for _, rec := range changedRecords(view, changes) {
		if _, done := reported[rec.GlobalID]; done {
			continue
		}
		seen := map[domain.GlobalID]struct{}{rec.GlobalID: {}}
		for cur := rec.ParentID; cur != nil; {
			if _, loop := seen[*cur]; loop {
				for id := range seen {
					reported[id] = struct{}{}
				}
				res.Violations = append(res.Violations, violation(RuleParentChainAcyclic, rec,
					fmt.Sprintf("%s %s is contained in itself via %s", rec.Type, rec.GlobalID, *cur)))
				break
			}
			seen[*cur] = struct{}{}
			parent, ok := view.FindRecord(*cur)
			if !ok {
				break
			}
			cur = parent.ParentID
		}
	}
	return res, nil
}
