package tui

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/0x6d61/version-master/internal/scan"
)

const (
	pickerDefaultWidth  = 80
	pickerDefaultHeight = 24
	// タイトルとヘルプ行の分
	pickerChromeHeight = 4
)

// pickerItem は候補1件
type pickerItem struct {
	path    string
	missing bool
}

func (i pickerItem) FilterValue() string { return i.path }

// pickerDelegate は選択状態を Picker と共有して1行ずつ描画する。
type pickerDelegate struct {
	selected map[string]bool
	home     string
}

func (d pickerDelegate) Height() int                             { return 1 }
func (d pickerDelegate) Spacing() int                            { return 0 }
func (d pickerDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (d pickerDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	item, ok := listItem.(pickerItem)
	if !ok {
		return
	}

	box := "[ ]"
	if d.selected[item.path] {
		box = markStyle.Render("[x]")
	}
	label := displayPath(item.path, d.home)
	if item.missing {
		label += " " + errorStyle.Render("not found")
	}

	cursor := "  "
	if index == m.Index() {
		cursor = keyStyle.Render("▸ ")
		label = nameStyle.Render(label)
	}
	fmt.Fprintf(w, "%s%s %s", cursor, box, label)
}

// displayPath は home 配下のパスを ~ 付きで短く表示する。
func displayPath(path, home string) string {
	if home == "" {
		return path
	}
	if rel, err := filepath.Rel(home, path); err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Join("~", rel)
	}
	return path
}

// Picker は追跡するリポジトリを選ぶ画面。
type Picker struct {
	list      list.Model
	order     []string
	selected  map[string]bool
	confirmed bool
}

// NewPicker は候補一覧から Picker を作る。Selected の候補は最初からチェック済み。
func NewPicker(candidates []scan.Candidate, home string) Picker {
	items := make([]list.Item, 0, len(candidates))
	order := make([]string, 0, len(candidates))
	selected := make(map[string]bool)
	for _, c := range candidates {
		items = append(items, pickerItem{path: c.Path, missing: c.Missing})
		order = append(order, c.Path)
		if c.Selected {
			selected[c.Path] = true
		}
	}

	l := list.New(items, pickerDelegate{selected: selected, home: home}, pickerDefaultWidth, pickerDefaultHeight-pickerChromeHeight)
	l.Title = "Select repositories to track"
	l.Styles.Title = titleStyle
	l.DisableQuitKeybindings()
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)

	return Picker{list: l, order: order, selected: selected}
}

// Confirmed は enter で確定したか
func (p Picker) Confirmed() bool { return p.confirmed }

// Selection は選ばれたパスを候補の順で返す。
func (p Picker) Selection() []string {
	out := make([]string, 0, len(p.selected))
	for _, path := range p.order {
		if p.selected[path] {
			out = append(out, path)
		}
	}
	return out
}

func (p Picker) Init() tea.Cmd { return nil }

func (p Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.list.SetSize(msg.Width, max(5, msg.Height-pickerChromeHeight))
		return p, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return p, tea.Quit
		case "enter":
			p.confirmed = true
			return p, tea.Quit
		case " ":
			if item, ok := p.list.SelectedItem().(pickerItem); ok {
				if p.selected[item.path] {
					delete(p.selected, item.path)
				} else {
					p.selected[item.path] = true
				}
			}
			return p, nil
		case "a":
			p.toggleAll()
			return p, nil
		}
	}

	var cmd tea.Cmd
	p.list, cmd = p.list.Update(msg)
	return p, cmd
}

// toggleAll は全選択済みなら全解除、そうでなければ全選択する。
// 選択状態の map は delegate と共有しているので作り直さない。
func (p *Picker) toggleAll() {
	all := len(p.order) > 0 && len(p.selected) == len(p.order)
	for _, path := range p.order {
		if all {
			delete(p.selected, path)
		} else {
			p.selected[path] = true
		}
	}
}

func (p Picker) View() string {
	help := keyStyle.Render("space") + mutedStyle.Render(" toggle  ") +
		keyStyle.Render("a") + mutedStyle.Render(" all  ") +
		keyStyle.Render("enter") + mutedStyle.Render(" save  ") +
		keyStyle.Render("q") + mutedStyle.Render(" cancel")
	count := mutedStyle.Render(fmt.Sprintf("%d of %d selected", len(p.selected), len(p.order)))
	return p.list.View() + "\n" + count + "\n" + help + "\n"
}
