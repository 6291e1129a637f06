package delegate

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// RunEvent は Orchestrator が集約して流すイベント。Index で TaskRun を識別する。
type RunEvent struct {
	Index int
	Line  LogLine
	// Done が true のイベントは Index の TaskRun の完了通知（Line は空）。
	Done bool
}

// Orchestrator は複数の TaskRun を並列実行し、イベントを1本のチャネルに集約する。
// 各 TaskRun の状態はそれぞれの Runner goroutine だけが更新する。
type Orchestrator struct {
	runner *Runner
	runs   []*TaskRun
	opts   RunOptions

	events    chan RunEvent
	done      chan struct{}
	watchOnce sync.Once
	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// SetOptions は各 TaskRun に渡す RunOptions を設定する。Start / RunBuffered より前に呼ぶ。
func (o *Orchestrator) SetOptions(opts RunOptions) {
	o.opts = opts
}

// NewOrchestrator は dirs の各ディレクトリに対する TaskRun を用意する（まだ起動しない）。
func NewOrchestrator(runner *Runner, dirs []string, task TaskDefinition) *Orchestrator {
	runs := make([]*TaskRun, len(dirs))
	for i, dir := range dirs {
		runs[i] = NewTaskRun(dir, task)
	}
	return &Orchestrator{
		runner: runner,
		runs:   runs,
		events: make(chan RunEvent, 512),
		done:   make(chan struct{}),
		cancel: func() {},
	}
}

// Runs は管理している TaskRun を入力順で返す。
func (o *Orchestrator) Runs() []*TaskRun {
	return o.runs
}

// Events は全 TaskRun のイベントを返す。全 TaskRun の完了後にクローズされる。
// 同じ Index のイベントは出力の到着順に並ぶ。Index 間の順序は保証しない。
func (o *Orchestrator) Events() <-chan RunEvent {
	return o.events
}

// Done は全 TaskRun が完了したときに一度だけクローズされる。
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

// AllDone は全 TaskRun が完了しているかを返す。
func (o *Orchestrator) AllDone() bool {
	for _, r := range o.runs {
		if !r.IsDone() {
			return false
		}
	}
	return true
}

// watchCompletion は全 TaskRun の完了を待って done を閉じる goroutine を起動する。
func (o *Orchestrator) watchCompletion() {
	o.watchOnce.Do(func() {
		go func() {
			for _, r := range o.runs {
				<-r.Done()
			}
			close(o.done)
		}()
	})
}

// Start は全 TaskRun をライブモードで並列起動する（non-blocking）。
// 2回目以降の呼び出しは無視する。
func (o *Orchestrator) Start(ctx context.Context) {
	o.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		o.cancel = cancel
		o.watchCompletion()

		for i, run := range o.runs {
			o.wg.Add(1)
			go func(idx int, r *TaskRun) {
				defer o.wg.Done()
				for line := range o.runner.Start(ctx, r, o.opts) {
					o.send(ctx, RunEvent{Index: idx, Line: line})
				}
				o.send(ctx, RunEvent{Index: idx, Done: true})
			}(i, run)
		}

		go func() {
			o.wg.Wait()
			close(o.events)
		}()
	})
}

func (o *Orchestrator) send(ctx context.Context, ev RunEvent) {
	select {
	case o.events <- ev:
	case <-ctx.Done():
	}
}

// Stop は実行中のプロセスを終了させ、全 TaskRun の後始末が終わるまで待つ。
// ビューを閉じるときは必ず呼ぶこと（何度呼んでもよい）。
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		if o.cancel != nil {
			o.cancel()
		}
		o.wg.Wait()
	})
}

// BlockFormatter はバッファモードの出力1ブロック分の書式。
type BlockFormatter interface {
	Header(run *TaskRun) string
	Line(line LogLine) string
	Footer(run *TaskRun) string
}

// PlainFormatter は装飾なしの BlockFormatter。
type PlainFormatter struct{}

func (PlainFormatter) Header(run *TaskRun) string {
	if note := DroppedNote(run); note != "" {
		return "\n  " + run.Label + "\n  " + note
	}
	return "\n  " + run.Label
}

// DroppedNote は保持上限で捨てた行があればその旨の一文を返す。なければ ""。
func DroppedNote(run *TaskRun) string {
	n := run.Dropped()
	switch {
	case n <= 0:
		return ""
	case n == 1:
		return "… 1 earlier line dropped"
	}
	return fmt.Sprintf("… %d earlier lines dropped", n)
}

func (PlainFormatter) Line(line LogLine) string {
	text := line.Text
	if line.Kind == KindCommand {
		text = "▸ " + text
	}
	return "  " + strings.ReplaceAll(text, "\n", "\n  ")
}

func (PlainFormatter) Footer(run *TaskRun) string {
	if run.Succeeded() {
		return "  Done."
	}
	return "  Exited with code " + ExitCodeText(run.ExitCode()) + "\n  Done."
}

// RunBuffered は全 TaskRun を逐次描画なしで完了まで実行し、その後リポジトリごとに
// まとめて w へ書き出す。出力が途中で混ざることはない。
// 返すエラーは w への書き込みエラーのみ。
func (o *Orchestrator) RunBuffered(ctx context.Context, w io.Writer, f BlockFormatter) error {
	if f == nil {
		f = PlainFormatter{}
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.watchCompletion()

	var wg sync.WaitGroup
	for _, run := range o.runs {
		wg.Add(1)
		go func(r *TaskRun) {
			defer wg.Done()
			opts := o.opts
			opts.QuietExit = true
			o.runner.Run(ctx, r, opts, nil)
		}(run)
	}
	wg.Wait()

	for _, run := range o.runs {
		var sb strings.Builder
		sb.WriteString(f.Header(run))
		sb.WriteByte('\n')
		for _, line := range run.Lines() {
			sb.WriteString(f.Line(line))
			sb.WriteByte('\n')
		}
		sb.WriteString(f.Footer(run))
		sb.WriteByte('\n')
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return fmt.Errorf("delegate: write %s: %w", run.Label, err)
		}
	}
	return nil
}
