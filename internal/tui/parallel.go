package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/0x6d61/version-master/internal/delegate"
)

// RunEventMsg は Orchestrator から届く Bubble Tea メッセージ。
type RunEventMsg delegate.RunEvent

// runsClosedMsg は全 TaskRun のイベントが流れ終わったことを表す。
type runsClosedMsg struct{}

// RunEventCmd は次の RunEvent を待つ Bubble Tea コマンド。
func RunEventCmd(ch <-chan delegate.RunEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return runsClosedMsg{}
		}
		return RunEventMsg(ev)
	}
}

// ParallelView は複数リポジトリの委譲をカラムで並べて表示する。
// 全カラム完了後は任意のキーで終了する。
type ParallelView struct {
	title   string
	orch    *delegate.Orchestrator
	spinner spinner.Model
	width   int
	height  int
	// allDone は全 TaskRun の完了を観測したか（Update でのみ更新）
	allDone bool
	// aborted は完了前に ctrl+c で閉じたか
	aborted bool
}

// NewParallelView は起動済みの Orchestrator を表示するビューを返す。
func NewParallelView(title string, orch *delegate.Orchestrator) ParallelView {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorPrimary)
	return ParallelView{title: title, orch: orch, spinner: sp, width: 120, height: 40}
}

// Aborted は完了を待たずに閉じられたかを返す。
func (v ParallelView) Aborted() bool { return v.aborted }

func (v ParallelView) Init() tea.Cmd {
	return tea.Batch(v.spinner.Tick, RunEventCmd(v.orch.Events()))
}

func (v ParallelView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width, v.height = msg.Width, msg.Height
		return v, nil

	case spinner.TickMsg:
		if v.allDone {
			return v, nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd

	case RunEventMsg:
		// 行は TaskRun 側に記録済み。再描画と次のイベント待ちだけ行う。
		v.allDone = v.orch.AllDone()
		return v, RunEventCmd(v.orch.Events())

	case runsClosedMsg:
		v.allDone = true
		return v, nil

	case tea.KeyMsg:
		if v.allDone {
			return v, tea.Quit
		}
		if msg.String() == "ctrl+c" {
			v.aborted = true
			return v, tea.Quit
		}
	}
	return v, nil
}

// columnWidth は1カラムの内容幅（枠線・余白を除く）。
func (v ParallelView) columnWidth() int {
	n := max(1, len(v.orch.Runs()))
	// 枠線 2 + 左右余白 2 + カラム間 1
	return max(10, (v.width-(n-1))/n-4)
}

func (v ParallelView) renderColumn(run *delegate.TaskRun, width int) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fitLine(run.Label, width)))
	for _, line := range run.Recent(delegate.VisibleLines) {
		sb.WriteString("\n")
		text := fitLine(linePrefix(line.Kind)+line.Text, width)
		sb.WriteString(lineStyle(line.Kind).Render(text))
	}
	sb.WriteString("\n")

	style := columnStyle
	if run.IsDone() {
		style = columnDoneStyle
		if run.Succeeded() {
			sb.WriteString(successStyle.Render("✓ Done"))
		} else {
			sb.WriteString(errorStyle.Render("✗ Exit " + delegate.ExitCodeText(run.ExitCode())))
		}
	} else {
		sb.WriteString(v.spinner.View() + mutedStyle.Render(" "+formatDuration(run.Duration())))
	}
	return style.Width(width + 2).Render(sb.String())
}

func (v ParallelView) View() string {
	runs := v.orch.Runs()
	w := v.columnWidth()
	cols := make([]string, 0, len(runs)*2)
	for i, run := range runs {
		if i > 0 {
			cols = append(cols, " ")
		}
		cols = append(cols, v.renderColumn(run, w))
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(v.title))
	sb.WriteString("\n\n")
	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cols...))
	if v.allDone {
		sb.WriteString("\n\n")
		sb.WriteString(mutedStyle.Render("Press any key to return…"))
	}
	sb.WriteString("\n")
	return sb.String()
}
