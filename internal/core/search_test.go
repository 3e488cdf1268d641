package core

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"inventorycore/pkg/domain"
	"inventorycore/testutil"
)

type panelRecorder struct{ panels []domain.Panel }

func (p *panelRecorder) SetVisiblePanel(panel domain.Panel) { p.panels = append(p.panels, panel) }

func ids(records []domain.Record) []domain.GlobalID {
	out := make([]domain.GlobalID, 0, len(records))
	for _, r := range records {
		out = append(out, r.Identifier())
	}
	return out
}

func TestSearchFiltersThroughDescendants(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	seedLab(t, svc)

	cases := map[string][]domain.GlobalID{
		"":        {"BE1", "IC2", "SA1"},
		"box":     {"IC2"},
		"PLASMA":  {"SA1"},
		"aliquot": {"BE1", "IC2", "SA1"},
		"ss2":     {"BE1", "SA1"},
		"reagent": {},
	}
	for query, want := range cases {
		search, err := svc.NewSearch(ctx, query)
		require.NoError(t, err)
		require.Equal(t, query, search.Query())
		require.Len(t, search.Results(), 3)
		require.Equal(t, want, ids(search.FilteredResults()), "query %q", query)
	}
}

func TestSearchRefreshSeesNewRecords(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	search, err := svc.NewSearch(ctx, "freezer")
	require.NoError(t, err)
	require.Empty(t, search.Results())

	seedLab(t, svc)
	require.NoError(t, search.Refresh(ctx))
	require.Equal(t, []domain.GlobalID{"IC2"}, ids(search.FilteredResults()))
}

func TestTreeSelectionActivatesSearchResult(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	seedLab(t, svc)
	search, err := svc.NewSearch(ctx, "")
	require.NoError(t, err)

	ui := &panelRecorder{}
	var events []domain.Event
	svc.Notifier().Subscribe(domain.ObserverFunc(func(ev domain.Event) { events = append(events, ev) }))
	tree := domain.NewTreeModel(search, ui, svc.Notifier())

	require.Len(t, tree.Children(), 3)
	require.NoError(t, tree.SetSelected(ctx, "SS1"))
	require.Equal(t, gid("SS1"), tree.Selected())
	require.Equal(t, gid("SS1"), search.ActiveResult().Identifier())
	require.Equal(t, []domain.Panel{domain.PanelRight}, ui.panels)
	require.Contains(t, events, domain.Event{Source: "SS1", Field: domain.FieldSelected})

	node := tree.SelectedNode()
	require.NotNil(t, node)
	path := domain.PathTo("SS1", tree)
	require.Len(t, path, 4, "tree, freezer, box, subsample")

	err = tree.SetSelected(ctx, "SS404")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTreeSelectionHonoursConfirmation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	seedLab(t, svc)

	allow := false
	var asked []domain.GlobalID
	search, err := svc.NewSearch(ctx, "", WithConfirm(func(_ context.Context, from, to domain.Record) (bool, error) {
		asked = append(asked, from.Identifier())
		return allow, nil
	}))
	require.NoError(t, err)
	tree := domain.NewTreeModel(search, nil, nil)

	require.NoError(t, tree.SetSelected(ctx, "SA1"), "first selection needs no confirmation")
	require.Empty(t, asked)

	require.NoError(t, tree.SetSelected(ctx, "IC2"), "a declined switch is not an error")
	require.Equal(t, gid("SA1"), tree.Selected())
	require.Equal(t, []domain.GlobalID{"SA1"}, asked)

	require.NoError(t, tree.SetSelected(ctx, "SA1"), "reselecting the active record skips confirmation")
	require.Len(t, asked, 1)

	err = search.SetActiveResult(ctx, nil)
	require.ErrorIs(t, err, domain.ErrUserCancelled)

	allow = true
	require.NoError(t, tree.SetSelected(ctx, "IC2"))
	require.Equal(t, gid("IC2"), tree.Selected())
	require.NoError(t, search.SetActiveResult(ctx, nil))
	require.Nil(t, search.ActiveResult())
}

func TestSetActiveResultErrors(t *testing.T) {
	svc := newTestService()
	seedLab(t, svc)
	boom := errors.New("dialog closed")
	search, err := svc.NewSearch(context.Background(), "", WithConfirm(func(context.Context, domain.Record, domain.Record) (bool, error) {
		return false, boom
	}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tree := domain.NewTreeModel(search, nil, nil)
	require.ErrorIs(t, tree.SetSelected(ctx, "SA1"), context.Canceled)
	require.Nil(t, search.ActiveResult())

	require.NoError(t, tree.SetSelected(context.Background(), "SA1"))
	require.ErrorIs(t, tree.SetSelected(context.Background(), "BE1"), boom)

	svc2 := newTestService()
	search2, err := svc2.NewSearch(context.Background(), "")
	require.NoError(t, err)
	_, err = svc2.Import(context.Background(), []domain.RecordPayload{testutil.Container(5, "Shelf")})
	require.NoError(t, err)
	require.NoError(t, search2.Refresh(context.Background()))
	shelf := search2.Results()[0]
	_, err = svc2.Delete(context.Background(), "IC5")
	require.NoError(t, err)
	require.ErrorIs(t, search2.SetActiveResult(context.Background(), shelf), domain.ErrNotFound, "stale results fail to activate")
}
