package domain

import "github.com/pkg/errors"

// RenderKind tells the rendering layer how to draw a display entry.
type RenderKind string

// Render kinds.
const (
	RenderNode     RenderKind = "node"
	RenderName     RenderKind = "name"
	RenderLocation RenderKind = "location"
)

// DisplayEntry is one evaluated table cell.
type DisplayEntry struct {
	Kind RenderKind
	Data any
}

// RedactedEntry is what every field of a public-view record evaluates to.
var RedactedEntry = DisplayEntry{Kind: RenderNode}

// LabelledEntry pairs a field label with its evaluated entry.
type LabelledEntry struct {
	Label string
	Entry DisplayEntry
}

// Table is an ordered mapping of field labels to lazily evaluated entries.
type Table struct {
	labels  []string
	entries map[string]func() (DisplayEntry, error)
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[string]func() (DisplayEntry, error))}
}

// Add appends a field. Adding an existing label replaces its entry in place.
func (t *Table) Add(label string, eval func() (DisplayEntry, error)) {
	if _, ok := t.entries[label]; !ok {
		t.labels = append(t.labels, label)
	}
	t.entries[label] = eval
}

// Labels returns the field labels in insertion order.
func (t *Table) Labels() []string {
	out := make([]string, len(t.labels))
	copy(out, t.labels)
	return out
}

// Len returns the number of fields.
func (t *Table) Len() int { return len(t.labels) }

// Entry evaluates the field with the given label.
func (t *Table) Entry(label string) (DisplayEntry, error) {
	eval, ok := t.entries[label]
	if !ok {
		return DisplayEntry{}, errors.Wrapf(ErrNotFound, "table field %q", label)
	}
	return eval()
}

// Entries evaluates every field in order and stops at the first error.
func (t *Table) Entries() ([]LabelledEntry, error) {
	out := make([]LabelledEntry, 0, len(t.labels))
	for _, label := range t.labels {
		entry, err := t.entries[label]()
		if err != nil {
			return nil, errors.Wrapf(err, "table field %q", label)
		}
		out = append(out, LabelledEntry{Label: label, Entry: entry})
	}
	return out, nil
}

// Redacted returns a table with the same labels whose entries all evaluate
// to RedactedEntry.
func (t *Table) Redacted() *Table {
	out := NewTable()
	for _, label := range t.labels {
		out.Add(label, func() (DisplayEntry, error) { return RedactedEntry, nil })
	}
	return out
}
