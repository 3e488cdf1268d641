package domain

import (
	"context"

	"github.com/pkg/errors"
)

// SearchHolder is a searchable record collection with one active result.
type SearchHolder interface {
	ActiveResult() Record
	FilteredResults() []Record
	Results() []Record
	// SetActiveResult activates r. It may block on I/O and fails with
	// ErrUserCancelled when the user declines the switch.
	SetActiveResult(ctx context.Context, r Record) error
}

// Panel identifies a UI panel.
type Panel string

// Panels of the inventory layout.
const (
	PanelLeft  Panel = "left"
	PanelRight Panel = "right"
)

// UIState receives layout requests from view models.
type UIState interface {
	SetVisiblePanel(Panel)
}

// TreeModel is the navigation tree over a search holder's results.
type TreeModel struct {
	holder   SearchHolder
	ui       UIState
	expanded []string
	notifier *Notifier
}

// NewTreeModel returns a tree over holder. ui and notifier may be nil.
func NewTreeModel(holder SearchHolder, ui UIState, notifier *Notifier) *TreeModel {
	return &TreeModel{holder: holder, ui: ui, notifier: notifier}
}

// Identifier implements TreeNode. The tree root has no global id.
func (t *TreeModel) Identifier() GlobalID { return "" }

// Children implements TreeNode with the holder's unfiltered results.
func (t *TreeModel) Children() []TreeNode {
	return toNodes(t.holder.Results())
}

// FilteredChildren returns the holder's filtered results as tree nodes.
func (t *TreeModel) FilteredChildren() []TreeNode {
	return toNodes(t.holder.FilteredResults())
}

func toNodes(records []Record) []TreeNode {
	out := make([]TreeNode, 0, len(records))
	for _, r := range records {
		out = append(out, r)
	}
	return out
}

// SetExpanded replaces the set of expanded node ids.
func (t *TreeModel) SetExpanded(ids []string) {
	t.expanded = append([]string(nil), ids...)
	t.notifier.Publish(Event{Field: FieldExpanded})
}

// Expanded returns the expanded node ids.
func (t *TreeModel) Expanded() []string {
	return append([]string(nil), t.expanded...)
}

// IsExpanded reports whether id is expanded.
func (t *TreeModel) IsExpanded(id string) bool {
	for _, e := range t.expanded {
		if e == id {
			return true
		}
	}
	return false
}

// Selected returns the global id of the holder's active result.
func (t *TreeModel) Selected() GlobalID {
	active := t.holder.ActiveResult()
	if active == nil {
		return ""
	}
	return active.Identifier()
}

// SelectedNode finds the active result in the tree.
func (t *TreeModel) SelectedNode() TreeNode {
	id := t.Selected()
	if id == "" {
		return nil
	}
	return FindNode(id, t)
}

// SetSelected finds the record with id in the tree and activates it. A
// selection the user cancels leaves the previous selection in place and
// is not an error.
func (t *TreeModel) SetSelected(ctx context.Context, id GlobalID) error {
	if id == "" {
		return NotFoundError{ID: id}
	}
	node := FindNode(id, t)
	if node == nil {
		return NotFoundError{ID: id}
	}
	record, ok := node.(Record)
	if !ok {
		return preconditionf("tree node %s is not a record", id)
	}
	if err := t.holder.SetActiveResult(ctx, record); err != nil {
		if errors.Is(err, ErrUserCancelled) {
			return nil
		}
		return err
	}
	if t.ui != nil {
		t.ui.SetVisiblePanel(PanelRight)
	}
	t.notifier.Publish(Event{Source: id, Field: FieldSelected})
	return nil
}

// FindNode searches node and its descendants depth-first, pre-order and
// left to right, returning the first node whose identifier is id.
func FindNode(id GlobalID, node TreeNode) TreeNode {
	if node == nil {
		return nil
	}
	if node.Identifier() == id {
		return node
	}
	for _, child := range node.Children() {
		if found := FindNode(id, child); found != nil {
			return found
		}
	}
	return nil
}

// PathTo returns the nodes from start down to the node with id, or nil.
func PathTo(id GlobalID, start TreeNode) []TreeNode {
	if start == nil {
		return nil
	}
	if start.Identifier() == id {
		return []TreeNode{start}
	}
	for _, child := range start.Children() {
		if path := PathTo(id, child); path != nil {
			return append([]TreeNode{start}, path...)
		}
	}
	return nil
}
