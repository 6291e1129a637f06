package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/0x6d61/version-master/internal/gitinfo"
	"github.com/0x6d61/version-master/internal/usage"
	"github.com/0x6d61/version-master/internal/vercel"
)

// View implements tea.Model.
func (m Model) View() string {
	var sb strings.Builder
	sb.WriteString(m.renderHeader())
	sb.WriteString("\n")

	switch {
	case m.loading && len(m.repos) == 0:
		sb.WriteString("  " + m.spinner.View() + mutedStyle.Render(" reading repositories…"))
		sb.WriteString("\n")
	case len(m.repos) == 0:
		sb.WriteString(mutedStyle.Render("  No repositories tracked. Press p to pick some."))
		sb.WriteString("\n")
	default:
		sb.WriteString(m.renderRows())
	}

	sb.WriteString(m.renderStatusBar())
	out := sb.String()

	if m.showHelp {
		return overlayCenter(out, m.renderHelp(), m.width, m.height)
	}
	return out
}

func (m Model) renderHeader() string {
	left := titleStyle.Render("version-master") + mutedStyle.Render(fmt.Sprintf(" | %d repos", len(m.paths)))
	if n := len(m.marked); n > 0 {
		left += markStyle.Render(fmt.Sprintf(" | %d marked", n))
	}
	if m.loading && len(m.repos) > 0 {
		left += " " + m.spinner.View()
	}

	right := m.renderUsage(time.Now())
	inner := max(20, m.width-6)
	gap := max(1, inner-lipgloss.Width(left)-lipgloss.Width(right))
	return headerStyle.Width(inner + 4).Render(left + strings.Repeat(" ", gap) + right)
}

// renderUsage は利用率ゲージ。値がなければ空、古ければ淡色で出す。
func (m Model) renderUsage(now time.Time) string {
	if m.usage == nil {
		return ""
	}
	u := *m.usage
	if u.Stale(now) {
		return mutedStyle.Render(fmt.Sprintf("5h %3.0f%%  7d %3.0f%% (stale)", u.FiveHourPct, u.SevenDayPct))
	}
	text := fmt.Sprintf("5h %s %3.0f%%  7d %3.0f%%", m.gauge.ViewAs(clampPct(u.FiveHourPct)), u.FiveHourPct, u.SevenDayPct)
	return text + mutedStyle.Render(" resets "+resetIn(u, now))
}

func clampPct(pct float64) float64 {
	return min(1, max(0, pct/100))
}

func resetIn(u usage.Usage, now time.Time) string {
	d := u.FiveHourResetsAt.Sub(now)
	if d <= 0 {
		return "now"
	}
	return formatDuration(d.Truncate(time.Minute))
}

func (m Model) renderRows() string {
	var sb strings.Builder
	width := max(30, m.width-4)
	for i, r := range m.rows() {
		style := rowStyle
		if i == m.cursor {
			style = rowActiveStyle
		}
		body := m.renderRow(r, width)
		if m.expandAll || m.detail[r.Path] {
			body += "\n" + m.renderDetail(r, width)
		}
		sb.WriteString(style.Width(width + 2).Render(body))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderRow(r gitinfo.RepoInfo, width int) string {
	mark := "  "
	if m.marked[r.Path] {
		mark = markStyle.Render("◉ ")
	}

	parts := []string{mark + nameStyle.Render(r.Name), branchStyle.Render(r.Branch)}
	if r.Error == "" {
		if r.Upstream != "" {
			parts = append(parts, mutedStyle.Render("→ "+r.Upstream))
		} else {
			parts = append(parts, mutedStyle.Render("no remote"))
		}
	}
	left := strings.Join(parts, " ")
	right := renderBadges(r)
	if info := m.vercel[r.Path]; info != nil {
		right = renderDeploy(info) + "  " + right
	}

	gap := max(1, width-lipgloss.Width(left)-lipgloss.Width(right))
	return left + strings.Repeat(" ", gap) + right
}

// renderBadges は ahead/behind/dirty のバッジ。差分がなければ "in sync"。
func renderBadges(r gitinfo.RepoInfo) string {
	if r.Error != "" {
		return errorStyle.Render("error")
	}
	var badges []string
	if r.Ahead > 0 {
		badges = append(badges, aheadStyle.Render(fmt.Sprintf("↑%d", r.Ahead)))
	}
	if r.Behind > 0 {
		badges = append(badges, behindStyle.Render(fmt.Sprintf("↓%d", r.Behind)))
	}
	if r.Dirty > 0 {
		badges = append(badges, dirtyStyle.Render(fmt.Sprintf("●%d", r.Dirty)))
	}
	if len(badges) == 0 {
		return successStyle.Render("in sync")
	}
	return strings.Join(badges, " ")
}

func renderDeploy(info *vercel.Info) string {
	state := strings.ToLower(info.DeployState)
	switch {
	case info.Healthy != nil && !*info.Healthy:
		return errorStyle.Render("▲ down")
	case state == "ready":
		return aheadStyle.Render("▲ ready")
	case state == "error" || state == "canceled":
		return errorStyle.Render("▲ " + state)
	case state == "":
		return mutedStyle.Render("▲")
	default:
		return dirtyStyle.Render("▲ " + state)
	}
}

func (m Model) renderDetail(r gitinfo.RepoInfo, width int) string {
	lines := []string{mutedStyle.Render(fitLine(r.Path, width))}
	if r.Error != "" {
		lines = append(lines, errorStyle.Render(fitLine(r.Error, width)))
	}
	if langs := m.stacks[r.Path]; len(langs) > 0 {
		lines = append(lines, mutedStyle.Render("stack ")+strings.Join(langs, ", "))
	}
	if info := m.vercel[r.Path]; info != nil {
		line := mutedStyle.Render("vercel ") + info.ProjectName
		if info.ProdURL != "" {
			line += " " + branchStyle.Render(info.ProdURL)
		}
		if !info.LastDeployAt.IsZero() {
			line += mutedStyle.Render(" deployed " + info.LastDeployAt.Local().Format("2006-01-02 15:04"))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderStatusBar() string {
	parts := []string{
		keyStyle.Render("?") + mutedStyle.Render(" help"),
		mutedStyle.Render("sort: " + m.sortMode.String()),
	}
	if !m.lastRefresh.IsZero() {
		parts = append(parts, mutedStyle.Render("refreshed "+m.lastRefresh.Format("15:04:05")))
	}
	if m.status != "" {
		parts = append(parts, dirtyStyle.Render(m.status))
	}
	return statusBarStyle.Width(max(20, m.width-2)).Render(strings.Join(parts, mutedStyle.Render(" · ")))
}

var helpKeys = [][2]string{
	{"j / k", "move"},
	{"space", "mark repo (dirty only)"},
	{"a", "mark all dirty / clear"},
	{"c", "commit + push"},
	{"t", "tidy untracked files"},
	{"d / D", "detail / expand all"},
	{"s", "cycle sort"},
	{"r", "refresh"},
	{"o / v", "open site / vercel"},
	{"p", "pick repositories"},
	{"q", "quit"},
}

func (m Model) renderHelp() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Keys"))
	sb.WriteString("\n")
	for _, k := range helpKeys {
		sb.WriteString("\n")
		sb.WriteString(keyStyle.Render(fmt.Sprintf("%-7s", k[0])))
		sb.WriteString(" " + k[1])
	}
	sb.WriteString("\n\n")
	sb.WriteString(mutedStyle.Render("? or esc to close"))
	return helpBoxStyle.Render(sb.String())
}
