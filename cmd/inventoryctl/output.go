package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"inventorycore/pkg/domain"
)

const redactedText = "(hidden)"

func nodeLabel(node domain.TreeNode) string {
	if r, ok := node.(domain.Record); ok {
		return fmt.Sprintf("%s (%s)", r.BaseRecord().Name, r.Identifier())
	}
	return string(node.Identifier())
}

func renderEntry(e domain.DisplayEntry) string {
	if e == domain.RedactedEntry {
		return redactedText
	}
	switch e.Kind {
	case domain.RenderLocation:
		if c, ok := e.Data.(*domain.Container); ok && c != nil {
			return nodeLabel(c)
		}
	case domain.RenderName, domain.RenderNode:
		if s, ok := e.Data.(string); ok && s != "" {
			return s
		}
	}
	return "-"
}

func renderRecord(out io.Writer, r domain.Record) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	b := r.BaseRecord()
	fmt.Fprintf(w, "%s\t%s\n", r.RecordType(), nodeLabel(r))
	if b.Owner != nil {
		fmt.Fprintf(w, "Owner\t%s\n", b.Owner.FullName())
	}
	if q, ok := r.(domain.HasQuantity); ok && q.Quantity() != nil && q.Quantity().Present() {
		fmt.Fprintf(w, "Quantity\t%s\n", q.Quantity().Label())
	}
	if s, ok := r.(*domain.Sample); ok && len(s.Subsamples()) > 0 {
		if total, err := s.TotalQuantity(); err == nil {
			fmt.Fprintf(w, "Total\t%s\n", total.NumericValue.String())
		}
	}
	if hl, ok := r.(domain.HasLocation); ok && hl.Location() != nil {
		loc := hl.Location()
		table := loc.Table()
		for _, label := range table.Labels() {
			value := "-"
			if e, err := table.Entry(label); err == nil {
				value = renderEntry(e)
			}
			fmt.Fprintf(w, "%s\t%s\n", label, value)
		}
		if !b.IsPublicView() {
			fmt.Fprintf(w, "In Workbench\t%t\n", loc.IsInWorkbench())
			fmt.Fprintf(w, "On Workbench\t%t\n", loc.IsOnWorkbench())
			fmt.Fprintf(w, "In My Workbench\t%t\n", loc.IsInCurrentUsersWorkbench())
			fmt.Fprintf(w, "Time In Location\t%s\n", loc.TimeInCurrentLocation().Round(time.Second))
		}
	}
	return w.Flush()
}

// renderTree prints the filtered top-level records, descending into
// expanded nodes only unless all is set.
func renderTree(out io.Writer, tree *domain.TreeModel, all bool) {
	var walk func(node domain.TreeNode, depth int)
	walk = func(node domain.TreeNode, depth int) {
		children := node.Children()
		marker := " "
		open := all || tree.IsExpanded(string(node.Identifier()))
		if len(children) > 0 {
			marker = "+"
			if open {
				marker = "-"
			}
		}
		fmt.Fprintf(out, "%s%s %s\n", strings.Repeat("  ", depth), marker, nodeLabel(node))
		if !open {
			return
		}
		for _, child := range children {
			walk(child, depth+1)
		}
	}
	for _, node := range tree.FilteredChildren() {
		walk(node, 0)
	}
}
