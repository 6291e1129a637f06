package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/0x6d61/version-master/internal/delegate"
)

// Color palette
var (
	colorPrimary      = lipgloss.Color("#00D7FF") // cyan: focus / headings
	colorSecondary    = lipgloss.Color("#AF87FF") // purple: branch / upstream
	colorSuccess      = lipgloss.Color("#87FF5F") // green: in sync / done
	colorWarning      = lipgloss.Color("#FFD700") // yellow: dirty / keys
	colorDanger       = lipgloss.Color("#FF5555") // red: behind / errors
	colorMuted        = lipgloss.Color("#555577") // dim gray: hints
	colorBorder       = lipgloss.Color("#333355") // default border
	colorBorderActive = lipgloss.Color("#00D7FF") // focused border
	colorTitle        = lipgloss.Color("#FFFFFF") // titles
	colorOutput       = lipgloss.Color("#AAAAAA") // tool output
)

// Header box
var headerStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorPrimary).
	Padding(0, 2)

// Repository rows
var (
	rowStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	rowActiveStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorderActive).
			Padding(0, 1)
)

// Status bar (bottom)
var statusBarStyle = lipgloss.NewStyle().
	Border(lipgloss.NormalBorder()).
	BorderForeground(colorBorder).
	Padding(0, 1)

// Help overlay (centered)
var helpBoxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorPrimary).
	Padding(1, 3)

// Parallel view columns
var (
	columnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(0, 1)

	columnDoneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorSuccess).
			Padding(0, 1)
)

// Text styles
var (
	titleStyle   = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	keyStyle     = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	branchStyle  = lipgloss.NewStyle().Foreground(colorSecondary)
	aheadStyle   = lipgloss.NewStyle().Foreground(colorSuccess)
	behindStyle  = lipgloss.NewStyle().Foreground(colorDanger)
	dirtyStyle   = lipgloss.NewStyle().Foreground(colorWarning)
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorDanger)
	markStyle    = lipgloss.NewStyle().Foreground(colorSuccess)
	nameStyle    = lipgloss.NewStyle().Foreground(colorTitle).Bold(true)
)

// Log line styles by kind
var (
	lineCommandStyle = lipgloss.NewStyle().Foreground(colorPrimary)
	lineTextStyle    = lipgloss.NewStyle()
	lineResultStyle  = lipgloss.NewStyle().Foreground(colorSuccess)
	lineErrorStyle   = lipgloss.NewStyle().Foreground(colorDanger)
	lineOutputStyle  = lipgloss.NewStyle().Foreground(colorOutput)
)

// lineStyle はログ行の種別に応じたスタイルを返す。
func lineStyle(kind delegate.LineKind) lipgloss.Style {
	switch kind {
	case delegate.KindCommand:
		return lineCommandStyle
	case delegate.KindResult:
		return lineResultStyle
	case delegate.KindError:
		return lineErrorStyle
	case delegate.KindOutput:
		return lineOutputStyle
	default:
		return lineTextStyle
	}
}

// linePrefix はログ行の先頭記号。コマンド行のみ "▸ "。
func linePrefix(kind delegate.LineKind) string {
	if kind == delegate.KindCommand {
		return "▸ "
	}
	return ""
}
