package delegate

import (
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ExitUnknown は終了コードが得られなかった（シグナル終了など）ことを表す。
const ExitUnknown = -1

// TaskRun は1リポジトリに対するエージェント実行1回分の記録。
// ログ行の追加と完了処理は Runner の goroutine だけが行い、読み出しは任意の goroutine から可能。
type TaskRun struct {
	ID    string
	Dir   string
	Label string
	Task  TaskDefinition

	mu          sync.RWMutex
	lines       []LogLine
	dropped     int
	exitCode    int
	spawnFailed bool
	startedAt   time.Time
	finishedAt  time.Time
	done        chan struct{}
	once        sync.Once
}

// NewTaskRun は dir を作業ディレクトリとする未開始の TaskRun を返す。
func NewTaskRun(dir string, task TaskDefinition) *TaskRun {
	return &TaskRun{
		ID:       uuid.NewString(),
		Dir:      dir,
		Label:    Label(dir),
		Task:     task,
		exitCode: ExitUnknown,
		done:     make(chan struct{}),
	}
}

// Label はパスの最終要素をラベルとして返す。
func Label(dir string) string {
	trimmed := strings.TrimRight(dir, `/\`)
	if trimmed == "" {
		return dir
	}
	return filepath.Base(trimmed)
}

// append はログ行を1行追加する。完了後の追加は無視する。
func (r *TaskRun) append(line LogLine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isDoneLocked() {
		return
	}
	r.lines = append(r.lines, line)
	if over := len(r.lines) - MaxRetainedLines; over > 0 {
		r.lines = append(r.lines[:0:0], r.lines[over:]...)
		r.dropped += over
	}
}

func (r *TaskRun) markStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startedAt = time.Now()
}

// finish は終了コードを記録して完了にする。2回目以降は何もしない。
func (r *TaskRun) finish(exitCode int, spawnFailed bool) {
	r.once.Do(func() {
		r.mu.Lock()
		r.exitCode = exitCode
		r.spawnFailed = spawnFailed
		r.finishedAt = time.Now()
		close(r.done)
		r.mu.Unlock()
	})
}

func (r *TaskRun) isDoneLocked() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Lines は全ログ行のコピーを返す。
func (r *TaskRun) Lines() []LogLine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]LogLine, len(r.lines))
	copy(out, r.lines)
	return out
}

// Recent は末尾 n 行のコピーを返す。
func (r *TaskRun) Recent(n int) []LogLine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tail := Tail(r.lines, n)
	out := make([]LogLine, len(tail))
	copy(out, tail)
	return out
}

// Dropped は保持上限により捨てた行数を返す。
func (r *TaskRun) Dropped() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dropped
}

// Done は完了時にクローズされるチャネルを返す。
func (r *TaskRun) Done() <-chan struct{} {
	return r.done
}

// IsDone は完了済みかを返す。
func (r *TaskRun) IsDone() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isDoneLocked()
}

// ExitCode は終了コードを返す。未完了・不明なら ExitUnknown。
func (r *TaskRun) ExitCode() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.exitCode
}

// Succeeded は正常終了（exit 0）したかを返す。
func (r *TaskRun) Succeeded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isDoneLocked() && !r.spawnFailed && r.exitCode == 0
}

// SpawnFailed はプロセスを起動できなかったかを返す。
func (r *TaskRun) SpawnFailed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.spawnFailed
}

// Duration は実行時間を返す。未完了なら現在までの経過時間。
func (r *TaskRun) Duration() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.startedAt.IsZero() {
		return 0
	}
	if r.finishedAt.IsZero() {
		return time.Since(r.startedAt)
	}
	return r.finishedAt.Sub(r.startedAt)
}

// ExitCodeText は "1" や "unknown" のような表示用の終了コード。
func ExitCodeText(code int) string {
	if code == ExitUnknown {
		return "unknown"
	}
	return strconv.Itoa(code)
}
