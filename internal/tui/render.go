package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/0x6d61/version-master/internal/delegate"
)

// renderMarkdown は glamour を使って Markdown をターミナル用にレンダリングする。
// ダークスタイルを明示指定（WithAutoStyle は非 TTY で plain になるため使わない）。
// glamour の dark スタイルは左右マージンを追加するため、width を縮小して渡す。
func renderMarkdown(text string, width int) (string, error) {
	wrapWidth := max(20, width-4)
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(wrapWidth),
	)
	if err != nil {
		return "", err
	}
	return r.Render(text)
}

// renderLogLine はトランスクリプト用にログ行1つを描画する（末尾改行付き）。
// テキスト行は Markdown として描画し、失敗したらそのまま出す。
func renderLogLine(line delegate.LogLine, width int) string {
	switch line.Kind {
	case delegate.KindText, delegate.KindResult:
		if out, err := renderMarkdown(line.Text, width); err == nil {
			return out
		}
		return lineStyle(line.Kind).Render(line.Text) + "\n"
	case delegate.KindOutput:
		const outputPrefix = "  ⎿  "
		const contPrefix = "     "
		var sb strings.Builder
		for i, l := range strings.Split(line.Text, "\n") {
			prefix := contPrefix
			if i == 0 {
				prefix = outputPrefix
			}
			sb.WriteString(lineOutputStyle.Render(prefix + l))
			sb.WriteString("\n")
		}
		return sb.String()
	default:
		return lineStyle(line.Kind).Render(linePrefix(line.Kind)+line.Text) + "\n"
	}
}

// formatDuration は表示用の時間フォーマットを返す (例: "12s", "1m23s")。
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) - m*60
	return fmt.Sprintf("%dm%ds", m, s)
}

// StyledFormatter はバッファモードの出力を色付きで書く delegate.BlockFormatter。
type StyledFormatter struct{}

func (StyledFormatter) Header(run *delegate.TaskRun) string {
	header := "\n  " + titleStyle.Render(run.Label)
	if note := delegate.DroppedNote(run); note != "" {
		header += "\n  " + mutedStyle.Render(note)
	}
	return header
}

func (StyledFormatter) Line(line delegate.LogLine) string {
	text := linePrefix(line.Kind) + line.Text
	return "  " + lineStyle(line.Kind).Render(strings.ReplaceAll(text, "\n", "\n  "))
}

func (StyledFormatter) Footer(run *delegate.TaskRun) string {
	done := "  " + successStyle.Render("Done.")
	if run.Succeeded() {
		return done
	}
	return "  " + errorStyle.Render("Exited with code "+delegate.ExitCodeText(run.ExitCode())) + "\n" + done
}
