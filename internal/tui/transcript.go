package tui

import (
	"context"
	"fmt"
	"io"

	"github.com/0x6d61/version-master/internal/delegate"
)

// Transcript は単一リポジトリの委譲を、行が届くたびに w へ書き出す。
// ツール結果も表示し、エージェントの標準エラーはそのまま端末へ流す。
type Transcript struct {
	Out    io.Writer
	Stderr io.Writer
	Width  int
}

// Run は run を完了まで実行する（blocking）。返すエラーは書き込みエラーのみ。
func (t Transcript) Run(ctx context.Context, runner *delegate.Runner, run *delegate.TaskRun) error {
	width := t.Width
	if width <= 0 {
		width = 100
	}

	var writeErr error
	write := func(s string) {
		if writeErr != nil {
			return
		}
		_, writeErr = io.WriteString(t.Out, s)
	}

	write(fmt.Sprintf("\n%s %s\n\n", titleStyle.Render(run.Task.Name), nameStyle.Render(run.Label)))
	runner.Run(ctx, run, delegate.RunOptions{Verbose: true, Stderr: t.Stderr}, func(line delegate.LogLine) {
		write(renderLogLine(line, width))
	})

	if run.Succeeded() {
		write("\n" + successStyle.Render("✓ Done") + mutedStyle.Render(" "+formatDuration(run.Duration())) + "\n")
	}
	if writeErr != nil {
		return fmt.Errorf("tui: write transcript: %w", writeErr)
	}
	return nil
}
