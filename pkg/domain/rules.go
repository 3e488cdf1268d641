package domain

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Action indicates the type of modification performed.
type Action string

// Change actions captured in a transaction.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Change describes a mutation applied to a record during a transaction.
type Change struct {
	Entity RecordType
	Action Action
	Before *StoredRecord
	After  *StoredRecord
}

// ID returns the global id of the changed record.
func (c Change) ID() GlobalID {
	if c.After != nil {
		return c.After.GlobalID
	}
	if c.Before != nil {
		return c.Before.GlobalID
	}
	return ""
}

// Relocated reports whether the change created, removed or re-parented a
// record, or moved it to another grid cell.
func (c Change) Relocated() bool {
	if c.Before == nil || c.After == nil {
		return true
	}
	return !sameID(c.Before.ParentID, c.After.ParentID) || !sameCell(c.Before.ParentLocation, c.After.ParentLocation)
}

func sameID(a, b *GlobalID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameCell(a, b *ParentLocation) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.CoordX == b.CoordX && a.CoordY == b.CoordY
}

// Violation reports a failed rule evaluation against one record.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   RecordType
	EntityID GlobalID
}

func (v Violation) String() string {
	if v.EntityID == "" {
		return v.Rule + ": " + v.Message
	}
	return v.Rule + " on " + string(v.EntityID) + ": " + v.Message
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	return len(r.Blocking()) > 0
}

// Blocking returns the violations that prevent a commit.
func (r Result) Blocking() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			out = append(out, v)
		}
	}
	return out
}

// ForRecord returns the violations reported against id.
func (r Result) ForRecord(id GlobalID) []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.EntityID == id {
			out = append(out, v)
		}
	}
	return out
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	blocking := e.Result.Blocking()
	switch len(blocking) {
	case 0:
		return "transaction blocked by rules"
	case 1:
		return "transaction blocked by rule " + blocking[0].String()
	default:
		return fmt.Sprintf("transaction blocked by %d violations, first %s", len(blocking), blocking[0])
	}
}

// Rule defines an evaluation executed within a transaction boundary.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view TransactionView, changes []Change) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine. Nil rules are ignored.
func (e *RulesEngine) Register(rule Rule) {
	if rule == nil {
		return
	}
	e.rules = append(e.rules, rule)
}

// Rules returns the registered rules in evaluation order.
func (e *RulesEngine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view TransactionView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, errors.Wrapf(err, "rule %s", rule.Name())
		}
		combined.Merge(res)
	}
	return combined, nil
}
