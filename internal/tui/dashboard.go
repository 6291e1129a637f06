// Package tui implements the Bubble Tea screens for version-master:
// the dashboard, the repository picker, the parallel delegation view and
// the single-repository transcript.
package tui

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/0x6d61/version-master/internal/gitinfo"
	"github.com/0x6d61/version-master/internal/usage"
	"github.com/0x6d61/version-master/internal/vercel"
)

// ActionKind is what the dashboard asks the caller to do after it exits.
type ActionKind int

const (
	ActionQuit   ActionKind = iota // leave the program
	ActionCommit                   // delegate commit+push for Paths
	ActionTidy                     // delegate tidy for Paths
	ActionPick                     // open the repository picker
)

// Action is the dashboard's result.
type Action struct {
	Kind  ActionKind
	Paths []string
}

// SortMode orders the repository rows.
type SortMode int

const (
	SortName SortMode = iota
	SortDirty
	SortAhead
	sortModeCount
)

func (s SortMode) String() string {
	switch s {
	case SortDirty:
		return "dirty"
	case SortAhead:
		return "ahead"
	default:
		return "name"
	}
}

// Services are the collaborators the dashboard calls. Nil fields disable
// the corresponding feature.
type Services struct {
	Refresh func(ctx context.Context, paths []string) []gitinfo.RepoInfo
	Vercel  func(ctx context.Context, paths []string) []*vercel.Info
	Tech    func(ctx context.Context, path string) []string
	Open    func(url string) error
	// Usage returns the latest usage snapshot, polled while the dashboard is open.
	Usage func() (usage.Usage, bool)
}

// usagePollInterval is how often the dashboard re-reads the usage snapshot.
const usagePollInterval = time.Second

// Messages
type (
	reposMsg struct {
		repos []gitinfo.RepoInfo
		at    time.Time
	}
	vercelMsg struct {
		paths []string
		infos []*vercel.Info
	}
	techMsg struct {
		path  string
		langs []string
	}
	usageTickMsg struct{}
	statusMsg    string
)

// Model is the dashboard Bubble Tea model.
type Model struct {
	ctx   context.Context
	svc   Services
	paths []string

	repos  []gitinfo.RepoInfo
	vercel map[string]*vercel.Info
	stacks map[string][]string

	cursor    int // index into the sorted rows
	marked    map[string]bool
	detail    map[string]bool
	expandAll bool
	sortMode  SortMode
	showHelp  bool
	loading   bool

	lastRefresh time.Time
	usage       *usage.Usage
	status      string

	width   int
	height  int
	spinner spinner.Model
	gauge   progress.Model

	action Action
}

// NewDashboard builds the dashboard for the tracked repository paths.
func NewDashboard(ctx context.Context, paths []string, svc Services) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorPrimary)

	return Model{
		ctx:     ctx,
		svc:     svc,
		paths:   paths,
		vercel:  make(map[string]*vercel.Info),
		stacks:  make(map[string][]string),
		marked:  make(map[string]bool),
		detail:  make(map[string]bool),
		loading: len(paths) > 0,
		width:   100,
		height:  30,
		spinner: sp,
		gauge: progress.New(
			progress.WithGradient("#06B6D4", "#EC4899"),
			progress.WithoutPercentage(),
			progress.WithWidth(12),
		),
	}
}

// Action returns what the user chose when the program ended.
func (m Model) Action() Action { return m.action }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.refreshCmd()}
	if m.svc.Usage != nil {
		cmds = append(cmds, func() tea.Msg { return usageTickMsg{} })
	}
	return tea.Batch(cmds...)
}

func (m Model) refreshCmd() tea.Cmd {
	if len(m.paths) == 0 || m.svc.Refresh == nil {
		return func() tea.Msg { return reposMsg{at: time.Now()} }
	}
	ctx, paths, refresh := m.ctx, m.paths, m.svc.Refresh
	return func() tea.Msg {
		return reposMsg{repos: refresh(ctx, paths), at: time.Now()}
	}
}

func (m Model) vercelCmd() tea.Cmd {
	if m.svc.Vercel == nil || len(m.paths) == 0 {
		return nil
	}
	ctx, paths, fetch := m.ctx, m.paths, m.svc.Vercel
	return func() tea.Msg {
		return vercelMsg{paths: paths, infos: fetch(ctx, paths)}
	}
}

func (m Model) techCmds() tea.Cmd {
	if m.svc.Tech == nil {
		return nil
	}
	var cmds []tea.Cmd
	for _, r := range m.repos {
		if _, ok := m.stacks[r.Path]; ok || r.Error != "" {
			continue
		}
		ctx, path, detect := m.ctx, r.Path, m.svc.Tech
		cmds = append(cmds, func() tea.Msg {
			return techMsg{path: path, langs: detect(ctx, path)}
		})
	}
	return tea.Batch(cmds...)
}

func usageTick() tea.Cmd {
	return tea.Tick(usagePollInterval, func(time.Time) tea.Msg { return usageTickMsg{} })
}

// rows returns the repositories in display order.
func (m Model) rows() []gitinfo.RepoInfo {
	rows := make([]gitinfo.RepoInfo, len(m.repos))
	copy(rows, m.repos)
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch m.sortMode {
		case SortDirty:
			if a.Dirty != b.Dirty {
				return a.Dirty > b.Dirty
			}
		case SortAhead:
			if a.Ahead != b.Ahead {
				return a.Ahead > b.Ahead
			}
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
	return rows
}

func (m Model) current() (gitinfo.RepoInfo, bool) {
	rows := m.rows()
	if m.cursor < 0 || m.cursor >= len(rows) {
		return gitinfo.RepoInfo{}, false
	}
	return rows[m.cursor], true
}

// targets are the marked repositories in display order, or the repository
// under the cursor when nothing is marked and it has changes.
func (m Model) targets() []string {
	var out []string
	for _, r := range m.rows() {
		if m.marked[r.Path] {
			out = append(out, r.Path)
		}
	}
	if len(out) > 0 {
		return out
	}
	if r, ok := m.current(); ok && r.Dirty > 0 {
		return []string{r.Path}
	}
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case reposMsg:
		m.repos = msg.repos
		m.lastRefresh = msg.at
		m.loading = false
		m.marked = make(map[string]bool)
		if m.cursor >= len(m.repos) {
			m.cursor = max(0, len(m.repos)-1)
		}
		return m, tea.Batch(m.vercelCmd(), m.techCmds())

	case vercelMsg:
		for i, p := range msg.paths {
			if i < len(msg.infos) && msg.infos[i] != nil {
				m.vercel[p] = msg.infos[i]
			} else {
				delete(m.vercel, p)
			}
		}
		return m, nil

	case techMsg:
		m.stacks[msg.path] = msg.langs
		return m, nil

	case usageTickMsg:
		if m.svc.Usage == nil {
			return m, nil
		}
		if u, ok := m.svc.Usage(); ok {
			m.usage = &u
		}
		return m, usageTick()

	case statusMsg:
		m.status = string(msg)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) quit(kind ActionKind, paths []string) (tea.Model, tea.Cmd) {
	m.action = Action{Kind: kind, Paths: paths}
	return m, tea.Quit
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if m.showHelp {
		if key == "?" || key == "esc" {
			m.showHelp = false
		}
		if key == "ctrl+c" {
			return m.quit(ActionQuit, nil)
		}
		return m, nil
	}

	switch key {
	case "q", "ctrl+c":
		return m.quit(ActionQuit, nil)
	case "?":
		m.showHelp = true
		return m, nil
	case "p":
		return m.quit(ActionPick, nil)
	}

	if m.loading {
		return m, nil
	}

	rows := m.rows()
	m.status = ""
	switch key {
	case "j", "down":
		if m.cursor < len(rows)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case " ":
		if r, ok := m.current(); ok && r.Dirty > 0 {
			if m.marked[r.Path] {
				delete(m.marked, r.Path)
			} else {
				m.marked[r.Path] = true
			}
		}
	case "a":
		m.toggleMarkAll(rows)
	case "d":
		if r, ok := m.current(); ok {
			m.detail[r.Path] = !m.detail[r.Path]
		}
	case "D":
		m.expandAll = !m.expandAll
	case "s":
		m.sortMode = (m.sortMode + 1) % sortModeCount
		m.cursor = 0
	case "r":
		m.loading = true
		return m, m.refreshCmd()
	case "c", "enter":
		if paths := m.targets(); len(paths) > 0 {
			return m.quit(ActionCommit, paths)
		}
		m.status = "nothing to commit"
	case "t":
		if paths := m.targets(); len(paths) > 0 {
			return m.quit(ActionTidy, paths)
		}
		m.status = "nothing to tidy"
	case "o":
		return m, m.openCmd(func(info *vercel.Info) string { return info.SiteURL() })
	case "v":
		return m, m.openCmd(func(info *vercel.Info) string { return info.DashboardURL() })
	}
	return m, nil
}

// toggleMarkAll marks every dirty repository, or clears the marks when they
// are all marked already.
func (m *Model) toggleMarkAll(rows []gitinfo.RepoInfo) {
	allMarked := true
	found := false
	for _, r := range rows {
		if r.Dirty > 0 {
			found = true
			if !m.marked[r.Path] {
				allMarked = false
			}
		}
	}
	if !found {
		return
	}
	if allMarked {
		m.marked = make(map[string]bool)
		return
	}
	for _, r := range rows {
		if r.Dirty > 0 {
			m.marked[r.Path] = true
		}
	}
}

func (m Model) openCmd(urlOf func(*vercel.Info) string) tea.Cmd {
	r, ok := m.current()
	if !ok || m.svc.Open == nil {
		return nil
	}
	info := m.vercel[r.Path]
	if info == nil {
		return func() tea.Msg { return statusMsg("no vercel project for " + r.Name) }
	}
	target := urlOf(info)
	if target == "" {
		return func() tea.Msg { return statusMsg("no production url for " + r.Name) }
	}
	open := m.svc.Open
	return func() tea.Msg {
		if err := open(target); err != nil {
			return statusMsg("open failed: " + err.Error())
		}
		return statusMsg("opened " + target)
	}
}
