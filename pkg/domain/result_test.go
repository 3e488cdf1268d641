package domain

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestResultBlockingAndRecordFilter(t *testing.T) {
	var result Result
	result.Merge(Result{Violations: []Violation{{Rule: "capacity", Severity: SeverityWarn, EntityID: "IC2"}}})
	require.False(t, result.HasBlocking())
	result.Merge(Result{})
	require.Len(t, result.Violations, 1)

	result.Merge(Result{Violations: []Violation{
		{Rule: "grid_placement", Severity: SeverityBlock, EntityID: "SS2", Message: "cell taken"},
		{Rule: "workbench_root", Severity: SeverityBlock, EntityID: "BE1", Message: "has a parent"},
	}})
	require.True(t, result.HasBlocking())
	require.Len(t, result.Blocking(), 2)
	require.Equal(t, []Violation{result.Violations[1]}, result.ForRecord("SS2"))
	require.Empty(t, result.ForRecord("SA1"))
}

func TestRuleViolationErrorMessage(t *testing.T) {
	single := RuleViolationError{Result: Result{Violations: []Violation{
		{Rule: "capacity", Severity: SeverityWarn, Message: "nearly full"},
		{Rule: "grid_placement", Severity: SeverityBlock, EntityID: "SS2", Message: "cell taken"},
	}}}
	require.Equal(t, "transaction blocked by rule grid_placement on SS2: cell taken", single.Error())

	multi := RuleViolationError{Result: Result{Violations: []Violation{
		{Rule: "grid_placement", Severity: SeverityBlock, EntityID: "SS2", Message: "cell taken"},
		{Rule: "parent_chain_acyclic", Severity: SeverityBlock, Message: "loop"},
	}}}
	require.Equal(t, "transaction blocked by 2 violations, first grid_placement on SS2: cell taken", multi.Error())
	require.Equal(t, "transaction blocked by rules", RuleViolationError{}.Error())
}

func TestChangeIDAndRelocated(t *testing.T) {
	box, rack := GlobalID("IC3"), GlobalID("IC4")
	before := StoredRecord{Base: Base{GlobalID: "SS1"}, ParentID: &box, ParentLocation: &ParentLocation{CoordX: 1, CoordY: 1}}

	renamed := before
	renamed.Name = "Aliquot"
	require.False(t, Change{Before: &before, After: &renamed}.Relocated())

	shifted := before
	shifted.ParentLocation = &ParentLocation{CoordX: 2, CoordY: 1}
	require.True(t, Change{Before: &before, After: &shifted}.Relocated())

	moved := before
	moved.ParentID = &rack
	require.True(t, Change{Before: &before, After: &moved}.Relocated())

	require.Equal(t, GlobalID("SS1"), Change{Before: &before}.ID())
	require.True(t, Change{Action: ActionDelete, Before: &before}.Relocated())
	require.Equal(t, GlobalID(""), Change{}.ID())
}

func TestRulesEngineEvaluate(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(staticRule{"capacity"})
	engine.Register(nil)
	res, err := engine.Evaluate(context.Background(), emptyView{}, nil)
	require.NoError(t, err)
	require.Len(t, res.Violations, 1)
	require.Len(t, engine.Rules(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = engine.Evaluate(ctx, emptyView{}, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRulesEngineEvaluateError(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(errorRule{})
	_, err := engine.Evaluate(context.Background(), emptyView{}, nil)
	require.EqualError(t, err, "rule broken: boom")
}

type staticRule struct{ name string }

func (r staticRule) Name() string { return r.name }

func (r staticRule) Evaluate(context.Context, TransactionView, []Change) (Result, error) {
	return Result{Violations: []Violation{{Rule: r.name, Severity: SeverityWarn}}}, nil
}

type emptyView struct{}

func (emptyView) ListRecords() []StoredRecord              { return nil }
func (emptyView) FindRecord(GlobalID) (StoredRecord, bool) { return StoredRecord{}, false }
func (emptyView) ListChildren(GlobalID) []StoredRecord     { return nil }

type errorRule struct{}

func (errorRule) Name() string { return "broken" }

func (errorRule) Evaluate(context.Context, TransactionView, []Change) (Result, error) {
	return Result{}, errors.New("boom")
}
