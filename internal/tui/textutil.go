package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// overlayCenter places the overlay string in the center of a width×height base.
func overlayCenter(base, overlay string, width, height int) string {
	baseLines := strings.Split(base, "\n")
	overlayLines := strings.Split(overlay, "\n")

	overlayH := len(overlayLines)
	overlayW := 0
	for _, line := range overlayLines {
		if w := lipgloss.Width(line); w > overlayW {
			overlayW = w
		}
	}

	startRow := max(0, (height-overlayH)/2)
	startCol := max(0, (width-overlayW)/2)

	for len(baseLines) < startRow+overlayH {
		baseLines = append(baseLines, strings.Repeat(" ", width))
	}

	for i, oLine := range overlayLines {
		row := startRow + i
		baseLine := baseLines[row]
		for lipgloss.Width(baseLine) < startCol {
			baseLine += " "
		}

		left := truncateVisual(baseLine, startCol)
		rightStart := startCol + lipgloss.Width(oLine)
		right := ""
		if lipgloss.Width(baseLine) > rightStart {
			right = skipVisual(baseLine, rightStart)
		}
		baseLines[row] = left + oLine + right
	}

	return strings.Join(baseLines, "\n")
}

// truncateVisual returns the first n visual columns of a string, space padded.
func truncateVisual(s string, n int) string {
	w := 0
	for i, r := range s {
		rw := runewidth.RuneWidth(r)
		if w+rw > n {
			return s[:i] + strings.Repeat(" ", n-w)
		}
		w += rw
	}
	return s + strings.Repeat(" ", n-w)
}

// skipVisual returns everything after the first n visual columns.
func skipVisual(s string, n int) string {
	w := 0
	for i, r := range s {
		if w >= n {
			return s[i:]
		}
		w += runewidth.RuneWidth(r)
	}
	return ""
}

// fitLine flattens s to a single line and cuts it to n columns with "…".
// Must be applied before styling; escape sequences are not width-aware here.
func fitLine(s string, n int) string {
	if n <= 0 {
		return ""
	}
	s = strings.ReplaceAll(s, "\t", "    ")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + " …"
	}
	return runewidth.Truncate(s, n, "…")
}
