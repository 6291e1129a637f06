// Package delegate はリポジトリ単位の作業（commit+push / tidy）を外部エージェント
// （claude CLI）に委譲し、その stream-json 出力をリポジトリごとのログに畳み込む。
package delegate

// LineKind はログ行の種別。
type LineKind string

const (
	// KindCommand はエージェントが実行したツール呼び出し（Bash ならコマンド文字列）。
	KindCommand LineKind = "cmd"
	// KindText はエージェントの地の文（テキストブロック1つ分）。
	KindText LineKind = "txt"
	// KindResult は最終結果（テキストが一度も出ていない場合のみ）。
	KindResult LineKind = "ok"
	// KindError はプロセス起動失敗・非ゼロ終了などのエラー。
	KindError LineKind = "err"
	// KindOutput はツール実行結果の本文。単一実行（verbose）モードでのみ出る。
	KindOutput LineKind = "out"
)

// LogLine は TaskRun のログ1行。
type LogLine struct {
	Kind LineKind
	Text string
}

// VisibleLines はビューが1カラムに表示する末尾行数。
const VisibleLines = 25

// MaxRetainedLines は TaskRun がメモリに保持する最大行数。超えた分は古い順に捨てる。
const MaxRetainedLines = 2000

// Tail は lines の末尾 n 行を返す。
func Tail(lines []LogLine, n int) []LogLine {
	if n <= 0 || len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}
