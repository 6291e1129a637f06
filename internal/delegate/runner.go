package delegate

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
)

// DefaultBinary はエージェント CLI の既定コマンド名。
const DefaultBinary = "claude"

// maxLineBytes は stream-json 1行の上限。partial message を含むと長くなる。
const maxLineBytes = 4 * 1024 * 1024

// Args はタスク定義からエージェント CLI の引数列を組み立てる。
func Args(task TaskDefinition) []string {
	return []string{
		"-p", task.Prompt,
		"--allowedTools", task.AllowedToolsArg(),
		"--output-format", "stream-json",
		"--verbose",
		"--include-partial-messages",
	}
}

// RunOptions は1回の実行ごとの出力設定。
type RunOptions struct {
	// Verbose はツール結果（tool_result）もログ行にする。単一実行モード用。
	Verbose bool
	// Stderr はエージェントの標準エラーの転送先。nil なら捨てる。
	Stderr io.Writer
	// QuietExit は非ゼロ終了時の "Exit code N" 行を追加しない。
	// 終了コードを呼び出し側でまとめて表示するバッファモード用。
	QuietExit bool
}

// Runner はエージェントプロセスを起動し、その出力を TaskRun に畳み込む。
type Runner struct {
	spawner Spawner
	binary  string
	logger  *slog.Logger
}

// NewRunner は Runner を構築する。binary が空なら DefaultBinary、logger が nil なら出力しない。
func NewRunner(spawner Spawner, binary string, logger *slog.Logger) *Runner {
	if binary == "" {
		binary = DefaultBinary
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{spawner: spawner, binary: binary, logger: logger}
}

// Start は run をバックグラウンドで実行し、ログ行のストリームを返す。
// チャネルは run が完了（Done がクローズ）した後にクローズされる。
// ctx がキャンセルされるとプロセスは終了させられ、以降の行はチャネルに送られない
// （TaskRun には記録される）。
func (rn *Runner) Start(ctx context.Context, run *TaskRun, opts RunOptions) <-chan LogLine {
	out := make(chan LogLine, 64)
	go func() {
		defer close(out)
		rn.Run(ctx, run, opts, func(line LogLine) {
			select {
			case out <- line:
			case <-ctx.Done():
			}
		})
	}()
	return out
}

// Run は run を完了まで実行する（blocking）。新しいログ行ごとに emit を呼ぶ（nil 可）。
// 失敗はすべて run のログ行と終了コードとして表現され、呼び出し元にエラーは返らない。
func (rn *Runner) Run(ctx context.Context, run *TaskRun, opts RunOptions, emit func(LogLine)) {
	push := func(line LogLine) {
		run.append(line)
		if emit != nil {
			emit(line)
		}
	}

	log := rn.logger.With("run", run.ID, "repo", run.Label, "task", run.Task.Name)
	run.markStarted()

	proc, err := rn.spawner.Spawn(ctx, SpawnRequest{
		Dir:    run.Dir,
		Binary: rn.binary,
		Args:   Args(run.Task),
		Stderr: opts.Stderr,
	})
	if err != nil {
		log.Warn("spawn failed", "err", err)
		push(LogLine{Kind: KindError, Text: spawnErrorText(rn.binary, err)})
		run.finish(ExitUnknown, true)
		return
	}
	log.Info("agent started", "dir", run.Dir)

	reducer := NewReducer(opts.Verbose)
	stdout := proc.Stdout()
	skipped, err := readLines(stdout, maxLineBytes, func(b []byte) {
		for _, line := range reducer.Feed(b) {
			push(line)
		}
	})
	if skipped > 0 {
		log.Warn("skipped oversized output lines", "count", skipped, "limit", maxLineBytes)
	}
	if err != nil {
		log.Warn("read agent output", "err", err)
		push(LogLine{Kind: KindError, Text: "Read error: " + err.Error()})
		// プロセスがパイプ書き込みで詰まらないよう残りを捨てる
		_, _ = io.Copy(io.Discard, stdout)
	}

	code, err := proc.Wait()
	if err != nil {
		log.Warn("wait agent", "err", err)
		code = ExitUnknown
	}
	if code != 0 && !opts.QuietExit {
		push(LogLine{Kind: KindError, Text: "Exit code " + ExitCodeText(code)})
	}
	run.finish(code, false)
	log.Info("agent finished", "exit_code", code, "duration", run.Duration())
}

// readLines は r を改行ごとに区切って fn に渡す。
// limit を超える行は次の改行まで読み捨てて続行し、その行数を skipped として返す。
func readLines(r io.Reader, limit int, fn func([]byte)) (skipped int, err error) {
	br := bufio.NewReaderSize(r, 64*1024)
	var line []byte
	oversized := false
	for {
		chunk, rerr := br.ReadSlice('\n')
		if !oversized {
			if len(line)+len(chunk) > limit {
				oversized = true
				line = line[:0]
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(rerr, bufio.ErrBufferFull) {
			continue
		}
		if oversized {
			skipped++
		} else if b := bytes.TrimRight(line, "\r\n"); len(b) > 0 {
			fn(b)
		}
		line, oversized = line[:0], false
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return skipped, nil
			}
			return skipped, rerr
		}
	}
}
