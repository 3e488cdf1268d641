package core

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"inventorycore/pkg/domain"
)

// ConfirmFunc is consulted before the active result switches from one record
// to another. Returning false declines the switch.
type ConfirmFunc func(ctx context.Context, from, to domain.Record) (bool, error)

// SearchOption configures a StoreSearch.
type SearchOption func(*StoreSearch)

// WithConfirm installs a confirmation hook for switching results.
func WithConfirm(fn ConfirmFunc) SearchOption {
	return func(s *StoreSearch) { s.confirm = fn }
}

// StoreSearch is a domain.SearchHolder over the service's top-level records.
type StoreSearch struct {
	svc      *Service
	query    string
	confirm  ConfirmFunc
	results  []domain.Record
	filtered []domain.Record
	active   domain.Record
}

var _ domain.SearchHolder = (*StoreSearch)(nil)

// NewSearch loads the top-level records and filters them by query.
func (s *Service) NewSearch(ctx context.Context, query string, opts ...SearchOption) (*StoreSearch, error) {
	search := &StoreSearch{svc: s, query: strings.TrimSpace(query)}
	for _, opt := range opts {
		opt(search)
	}
	if err := search.Refresh(ctx); err != nil {
		return nil, err
	}
	return search, nil
}

// Query returns the filter string.
func (s *StoreSearch) Query() string { return s.query }

// Refresh reloads results from the store and reapplies the filter. The
// active result is kept.
func (s *StoreSearch) Refresh(ctx context.Context) error {
	results, err := s.svc.RootRecords(ctx)
	if err != nil {
		return errors.Wrap(err, "load search results")
	}
	filtered := make([]domain.Record, 0, len(results))
	for _, r := range results {
		if matchesQuery(r, s.query) {
			filtered = append(filtered, r)
		}
	}
	s.results, s.filtered = results, filtered
	return nil
}

// matchesQuery is a case-insensitive substring match against the name or
// global id of node or any of its descendants.
func matchesQuery(node domain.TreeNode, query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	var walk func(domain.TreeNode) bool
	walk = func(n domain.TreeNode) bool {
		if r, ok := n.(domain.Record); ok {
			b := r.BaseRecord()
			if strings.Contains(strings.ToLower(b.Name), q) || strings.Contains(strings.ToLower(string(b.GlobalID)), q) {
				return true
			}
		}
		for _, c := range n.Children() {
			if walk(c) {
				return true
			}
		}
		return false
	}
	return walk(node)
}

// Results implements domain.SearchHolder.
func (s *StoreSearch) Results() []domain.Record { return s.results }

// FilteredResults implements domain.SearchHolder.
func (s *StoreSearch) FilteredResults() []domain.Record { return s.filtered }

// ActiveResult implements domain.SearchHolder.
func (s *StoreSearch) ActiveResult() domain.Record { return s.active }

// SetActiveResult implements domain.SearchHolder. The record is re-read from
// the store so the active result reflects committed state. A nil r clears
// the active result.
func (s *StoreSearch) SetActiveResult(ctx context.Context, r domain.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.confirm != nil && s.active != nil && (r == nil || s.active.Identifier() != r.Identifier()) {
		ok, err := s.confirm(ctx, s.active, r)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrUserCancelled
		}
	}
	if r == nil {
		s.active = nil
		return nil
	}
	fresh, err := s.svc.Record(ctx, r.Identifier())
	if err != nil {
		return err
	}
	s.active = fresh
	return nil
}
