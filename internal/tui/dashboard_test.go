package tui

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/0x6d61/version-master/internal/gitinfo"
	"github.com/0x6d61/version-master/internal/usage"
	"github.com/0x6d61/version-master/internal/vercel"
)

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func sampleRepos() []gitinfo.RepoInfo {
	return []gitinfo.RepoInfo{
		{Path: "/w/alpha", Name: "alpha", Branch: "main", Upstream: "origin/main"},
		{Path: "/w/bravo", Name: "bravo", Branch: "main", Upstream: "origin/main", Dirty: 3},
		{Path: "/w/charlie", Name: "charlie", Branch: "dev", Ahead: 2, Dirty: 1},
	}
}

func repoPaths(repos []gitinfo.RepoInfo) []string {
	out := make([]string, len(repos))
	for i, r := range repos {
		out[i] = r.Path
	}
	return out
}

// loaded returns a dashboard that has already received its first refresh.
func loaded(t *testing.T, svc Services) Model {
	t.Helper()
	repos := sampleRepos()
	m := NewDashboard(context.Background(), repoPaths(repos), svc)
	return step(t, m, reposMsg{repos: repos, at: time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local)})
}

func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return out
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		m = step(t, m, keyMsg(k))
	}
	return m
}

func pressCmd(t *testing.T, m Model, key string) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(keyMsg(key))
	return next.(Model), cmd
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

// ---------------------------------------------------------------------------
// refresh
// ---------------------------------------------------------------------------

func TestDashboard_LoadingUntilFirstRefresh(t *testing.T) {
	m := NewDashboard(context.Background(), []string{"/w/alpha"}, Services{})
	if !m.loading {
		t.Fatal("expected loading before the first refresh")
	}
	m = press(t, m, "j")
	if m.cursor != 0 {
		t.Errorf("navigation while loading: cursor = %d, want 0", m.cursor)
	}
	m = step(t, m, reposMsg{repos: sampleRepos()})
	if m.loading {
		t.Error("expected loading=false after refresh")
	}
}

func TestDashboard_RefreshClearsMarks(t *testing.T) {
	calls := 0
	svc := Services{Refresh: func(_ context.Context, paths []string) []gitinfo.RepoInfo {
		calls++
		return sampleRepos()
	}}
	m := loaded(t, svc)
	m = press(t, m, "j", " ")
	if len(m.marked) != 1 {
		t.Fatalf("marked = %v, want one entry", m.marked)
	}

	m, cmd := pressCmd(t, m, "r")
	if !m.loading {
		t.Error("expected loading after r")
	}
	m = step(t, m, cmd())
	if calls != 1 {
		t.Errorf("refresh calls = %d, want 1", calls)
	}
	if len(m.marked) != 0 {
		t.Errorf("marks after refresh = %v, want none", m.marked)
	}
}

func TestDashboard_CursorClampedWhenReposShrink(t *testing.T) {
	m := loaded(t, Services{})
	m = press(t, m, "j", "j")
	m = step(t, m, reposMsg{repos: sampleRepos()[:1]})
	if m.cursor != 0 {
		t.Errorf("cursor = %d, want 0", m.cursor)
	}
}

// ---------------------------------------------------------------------------
// marking
// ---------------------------------------------------------------------------

func TestDashboard_SpaceMarksDirtyOnly(t *testing.T) {
	m := loaded(t, Services{})

	m = press(t, m, " ") // alpha is clean
	if len(m.marked) != 0 {
		t.Errorf("clean repo got marked: %v", m.marked)
	}

	m = press(t, m, "j", " ")
	if !m.marked["/w/bravo"] {
		t.Error("expected bravo to be marked")
	}
	m = press(t, m, " ")
	if m.marked["/w/bravo"] {
		t.Error("expected second space to unmark bravo")
	}
}

func TestDashboard_MarkAllToggles(t *testing.T) {
	m := loaded(t, Services{})

	m = press(t, m, "a")
	want := map[string]bool{"/w/bravo": true, "/w/charlie": true}
	if !reflect.DeepEqual(m.marked, want) {
		t.Errorf("after a: marked = %v, want %v", m.marked, want)
	}
	m = press(t, m, "a")
	if len(m.marked) != 0 {
		t.Errorf("after second a: marked = %v, want none", m.marked)
	}
}

// ---------------------------------------------------------------------------
// actions
// ---------------------------------------------------------------------------

func TestDashboard_CommitMarkedInDisplayOrder(t *testing.T) {
	m := loaded(t, Services{})
	m = press(t, m, "j", "j", " ", "k", " ")

	m, cmd := pressCmd(t, m, "c")
	if !isQuit(cmd) {
		t.Fatal("expected c to quit the dashboard")
	}
	got := m.Action()
	want := Action{Kind: ActionCommit, Paths: []string{"/w/bravo", "/w/charlie"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Action = %+v, want %+v", got, want)
	}
}

func TestDashboard_CommitFallsBackToCursor(t *testing.T) {
	m := loaded(t, Services{})
	m = press(t, m, "j")

	m, cmd := pressCmd(t, m, "c")
	if !isQuit(cmd) {
		t.Fatal("expected quit")
	}
	if got := m.Action().Paths; !reflect.DeepEqual(got, []string{"/w/bravo"}) {
		t.Errorf("Paths = %v, want [/w/bravo]", got)
	}
}

func TestDashboard_CommitOnCleanRepoIsNoop(t *testing.T) {
	m := loaded(t, Services{})

	m, cmd := pressCmd(t, m, "c")
	if cmd != nil {
		t.Error("expected no command for a clean repo")
	}
	if m.status != "nothing to commit" {
		t.Errorf("status = %q", m.status)
	}
	if m.Action().Kind != ActionQuit || m.Action().Paths != nil {
		t.Errorf("unexpected action %+v", m.Action())
	}
}

func TestDashboard_TidyAction(t *testing.T) {
	m := loaded(t, Services{})
	m = press(t, m, "j", "j")

	m, cmd := pressCmd(t, m, "t")
	if !isQuit(cmd) {
		t.Fatal("expected quit")
	}
	want := Action{Kind: ActionTidy, Paths: []string{"/w/charlie"}}
	if !reflect.DeepEqual(m.Action(), want) {
		t.Errorf("Action = %+v, want %+v", m.Action(), want)
	}
}

func TestDashboard_PickAndQuit(t *testing.T) {
	m := loaded(t, Services{})
	m, cmd := pressCmd(t, m, "p")
	if !isQuit(cmd) || m.Action().Kind != ActionPick {
		t.Errorf("p: action = %+v", m.Action())
	}

	m = loaded(t, Services{})
	m, cmd = pressCmd(t, m, "q")
	if !isQuit(cmd) || m.Action().Kind != ActionQuit {
		t.Errorf("q: action = %+v", m.Action())
	}
}

// ---------------------------------------------------------------------------
// sort / detail / help
// ---------------------------------------------------------------------------

func TestDashboard_SortCycles(t *testing.T) {
	m := loaded(t, Services{})

	m = press(t, m, "s")
	if m.sortMode != SortDirty {
		t.Fatalf("sortMode = %v, want dirty", m.sortMode)
	}
	if got := repoPaths(m.rows()); !reflect.DeepEqual(got, []string{"/w/bravo", "/w/charlie", "/w/alpha"}) {
		t.Errorf("dirty order = %v", got)
	}

	m = press(t, m, "s")
	if got := repoPaths(m.rows()); got[0] != "/w/charlie" {
		t.Errorf("ahead order = %v, want charlie first", got)
	}

	m = press(t, m, "s")
	if m.sortMode != SortName {
		t.Errorf("sortMode = %v, want name after full cycle", m.sortMode)
	}
}

func TestDashboard_DetailToggle(t *testing.T) {
	m := loaded(t, Services{})
	m.stacks["/w/alpha"] = []string{"Go", "Shell"}

	m = press(t, m, "d")
	if !m.detail["/w/alpha"] {
		t.Fatal("expected detail for alpha")
	}
	if !strings.Contains(m.View(), "Go, Shell") {
		t.Error("expected tech stack in detail view")
	}
	m = press(t, m, "D")
	if !m.expandAll {
		t.Error("expected expandAll after D")
	}
}

func TestDashboard_HelpOverlayBlocksKeys(t *testing.T) {
	m := loaded(t, Services{})

	m = press(t, m, "?")
	if !m.showHelp {
		t.Fatal("expected help to open")
	}
	m = press(t, m, "j")
	if m.cursor != 0 {
		t.Errorf("cursor moved under help: %d", m.cursor)
	}
	if !strings.Contains(m.View(), "commit + push") {
		t.Error("help text missing from view")
	}
	m = press(t, m, "esc")
	if m.showHelp {
		t.Error("expected esc to close help")
	}
}

// ---------------------------------------------------------------------------
// vercel / open
// ---------------------------------------------------------------------------

func TestDashboard_OpenSite(t *testing.T) {
	var opened string
	svc := Services{Open: func(u string) error { opened = u; return nil }}
	m := loaded(t, svc)
	m = step(t, m, vercelMsg{
		paths: []string{"/w/alpha", "/w/bravo"},
		infos: []*vercel.Info{{ProjectName: "alpha", ProdURL: "alpha.vercel.app", DeployState: "READY"}, nil},
	})

	m, cmd := pressCmd(t, m, "o")
	if cmd == nil {
		t.Fatal("expected open command")
	}
	m = step(t, m, cmd())
	if opened != "https://alpha.vercel.app" {
		t.Errorf("opened %q", opened)
	}
	if m.status != "opened https://alpha.vercel.app" {
		t.Errorf("status = %q", m.status)
	}
}

func TestDashboard_OpenWithoutProject(t *testing.T) {
	svc := Services{Open: func(string) error { return errors.New("unexpected") }}
	m := loaded(t, svc)

	m, cmd := pressCmd(t, m, "v")
	m = step(t, m, cmd())
	if m.status != "no vercel project for alpha" {
		t.Errorf("status = %q", m.status)
	}
}

func TestDashboard_VercelMsgReplacesEntries(t *testing.T) {
	m := loaded(t, Services{})
	m = step(t, m, vercelMsg{paths: []string{"/w/alpha"}, infos: []*vercel.Info{{ProjectName: "alpha"}}})
	if m.vercel["/w/alpha"] == nil {
		t.Fatal("expected vercel info")
	}
	m = step(t, m, vercelMsg{paths: []string{"/w/alpha"}, infos: []*vercel.Info{nil}})
	if _, ok := m.vercel["/w/alpha"]; ok {
		t.Error("expected nil info to remove the entry")
	}
}

// ---------------------------------------------------------------------------
// usage
// ---------------------------------------------------------------------------

func TestDashboard_UsageTick(t *testing.T) {
	now := time.Now()
	svc := Services{Usage: func() (usage.Usage, bool) {
		return usage.Usage{FiveHourPct: 42, SevenDayPct: 10, Updated: now, FiveHourResetsAt: now.Add(time.Hour)}, true
	}}
	m := loaded(t, svc)
	if m.usage != nil {
		t.Fatal("usage set before the first tick")
	}

	next, cmd := m.Update(usageTickMsg{})
	m = next.(Model)
	if cmd == nil {
		t.Error("expected the tick to re-arm")
	}
	if m.usage == nil || m.usage.FiveHourPct != 42 {
		t.Fatalf("usage = %+v", m.usage)
	}
	view := m.View()
	for _, want := range []string{"42%", "10%", "resets"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestDashboard_StaleUsage(t *testing.T) {
	m := loaded(t, Services{})
	old := time.Now().Add(-time.Hour)
	m.usage = &usage.Usage{FiveHourPct: 5, SevenDayPct: 6, Updated: old}
	if !strings.Contains(m.View(), "(stale)") {
		t.Error("expected stale marker")
	}
}

// ---------------------------------------------------------------------------
// view
// ---------------------------------------------------------------------------

func TestDashboard_ViewBadges(t *testing.T) {
	m := loaded(t, Services{})
	m.width = 120
	view := m.View()

	for _, want := range []string{"version-master", "3 repos", "in sync", "●3", "↑2", "no remote", "→ origin/main", "refreshed 03:04:05", "sort: name"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestDashboard_ViewEmpty(t *testing.T) {
	m := NewDashboard(context.Background(), nil, Services{})
	m = step(t, m, reposMsg{})
	if !strings.Contains(m.View(), "No repositories tracked") {
		t.Error("expected empty-state hint")
	}
}

func TestRenderBadges_Error(t *testing.T) {
	got := renderBadges(gitinfo.RepoInfo{Branch: "error", Error: "not a git repository"})
	if !strings.Contains(got, "error") {
		t.Errorf("got %q", got)
	}
}

func TestSortMode_String(t *testing.T) {
	cases := map[SortMode]string{SortName: "name", SortDirty: "dirty", SortAhead: "ahead"}
	for mode, want := range cases {
		if got := mode.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", mode, got, want)
		}
	}
}
