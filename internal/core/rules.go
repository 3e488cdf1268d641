package core

import "inventorycore/pkg/domain"

// Rule names reported in violations.
const (
	RuleParentChainAcyclic = "parent_chain_acyclic"
	RuleWorkbenchRoot      = "workbench_root"
	RuleGridPlacement      = "grid_placement"
	RuleParentIsContainer  = "parent_is_container"
)

// NewDefaultRulesEngine builds a rules engine with the built-in placement policies.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewParentIsContainerRule())
	engine.Register(NewWorkbenchRootRule())
	engine.Register(NewParentChainAcyclicRule())
	engine.Register(NewGridPlacementRule())
	return engine
}

// changedRecords returns the rows written by changes, or every row when no
// changes are given so a rule can audit a whole view.
func changedRecords(view domain.TransactionView, changes []domain.Change) []domain.StoredRecord {
	if len(changes) == 0 {
		return view.ListRecords()
	}
	out := make([]domain.StoredRecord, 0, len(changes))
	for _, ch := range changes {
		if ch.After == nil {
			continue
		}
		if current, ok := view.FindRecord(ch.ID()); ok {
			out = append(out, current)
		}
	}
	return out
}

// relocatedRecords is changedRecords limited to records that were created
// or moved.
func relocatedRecords(view domain.TransactionView, changes []domain.Change) []domain.StoredRecord {
	if len(changes) == 0 {
		return view.ListRecords()
	}
	moved := make([]domain.Change, 0, len(changes))
	for _, ch := range changes {
		if ch.Relocated() {
			moved = append(moved, ch)
		}
	}
	if len(moved) == 0 {
		return nil
	}
	return changedRecords(view, moved)
}

func violation(rule string, rec domain.StoredRecord, msg string) domain.Violation {
	return domain.Violation{
		Rule:     rule,
		Severity: domain.SeverityBlock,
		Message:  msg,
		Entity:   rec.Type,
		EntityID: rec.GlobalID,
	}
}
