package delegate

import "strings"

// ParseState は1つの TaskRun に閉じたデコード途中の状態。
// ツールブロックとテキストブロックは同時に進行しない。
type ParseState struct {
	ToolName  string // 進行中のツール名（空 = なし）
	ToolInput string // ツール入力 JSON の断片の連結
	InText    bool   // テキストブロック進行中
	TextBuf   string // テキスト断片の連結
	HadText   bool   // テキスト行を一度でも出したか（result の重複抑止）
}

// Reducer は stream-json の行列を LogLine 列に畳み込む。TaskRun ごとに1つ作る。
type Reducer struct {
	state   ParseState
	verbose bool
}

// NewReducer は空の状態の Reducer を返す。
// verbose が true のとき tool_result を KindOutput 行として出す（単一実行モード用）。
func NewReducer(verbose bool) *Reducer {
	return &Reducer{verbose: verbose}
}

// State は現在のパース状態のコピーを返す。
func (r *Reducer) State() ParseState {
	return r.state
}

// Feed は1行を処理し、生じた LogLine を返す（0 行もありうる）。
// 不正な JSON 行は黙って捨てる。
func (r *Reducer) Feed(line []byte) []LogLine {
	ev, ok := Decode(line)
	if !ok {
		return nil
	}
	return r.Apply(ev)
}

// Apply はデコード済みイベントで状態を進める。
func (r *Reducer) Apply(ev Event) []LogLine {
	s := &r.state

	switch e := ev.(type) {
	case ToolStart:
		s.InText = false
		s.TextBuf = ""
		s.ToolName = e.Name
		s.ToolInput = ""

	case TextStart:
		s.ToolName = ""
		s.ToolInput = ""
		s.InText = true
		s.TextBuf = ""

	case ToolInputDelta:
		if s.ToolName != "" {
			s.ToolInput += e.PartialJSON
		}

	case TextDelta:
		if s.InText {
			s.TextBuf += e.Text
		}

	case BlockStop:
		var out []LogLine
		if s.ToolName != "" {
			out = append(out, LogLine{Kind: KindCommand, Text: commandText(s.ToolName, s.ToolInput)})
			s.ToolName = ""
			s.ToolInput = ""
		}
		if s.InText {
			if text := strings.TrimSpace(s.TextBuf); text != "" {
				out = append(out, LogLine{Kind: KindText, Text: text})
				s.HadText = true
			}
			s.InText = false
			s.TextBuf = ""
		}
		return out

	case ToolResult:
		if !r.verbose {
			return nil
		}
		if text := formatToolResult(e.Content); text != "" {
			return []LogLine{{Kind: KindOutput, Text: text}}
		}

	case Result:
		if s.HadText || e.Text == "" {
			return nil
		}
		return []LogLine{{Kind: KindResult, Text: e.Text}}
	}
	return nil
}
