package delegate

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Event は stream-json 1行をデコードした意味イベント。
// 実装は下記の型に閉じている（ToolStart / ToolInputDelta / TextStart / TextDelta /
// BlockStop / ToolResult / Result）。
type Event interface {
	isEvent()
}

// ToolStart は tool_use ブロックの開始。
type ToolStart struct{ Name string }

// ToolInputDelta はツール入力 JSON の断片。ブロック終了まで JSON として完結しない。
type ToolInputDelta struct{ PartialJSON string }

// TextStart は text ブロックの開始。
type TextStart struct{}

// TextDelta はテキストブロックの断片。
type TextDelta struct{ Text string }

// BlockStop は content_block_stop。
type BlockStop struct{}

// ToolResult はツール実行結果（verbose 出力）。Content は整形前の本文。
type ToolResult struct{ Content string }

// Result は最終結果イベント。
type Result struct{ Text string }

func (ToolStart) isEvent()      {}
func (ToolInputDelta) isEvent() {}
func (TextStart) isEvent()      {}
func (TextDelta) isEvent()      {}
func (BlockStop) isEvent()      {}
func (ToolResult) isEvent()     {}
func (Result) isEvent()         {}

// 外側の type 判別子
const (
	typeStreamEvent = "stream_event"
	typeToolResult  = "tool_result"
	typeResult      = "result"
)

// stream_event の内側の判別子
const (
	innerBlockStart = "content_block_start"
	innerBlockDelta = "content_block_delta"
	innerBlockStop  = "content_block_stop"
)

// content_block / delta の判別子
const (
	blockToolUse   = "tool_use"
	blockText      = "text"
	deltaInputJSON = "input_json_delta"
	deltaText      = "text_delta"
)

// ShellTool はコマンド文字列を表示対象にするシェル実行ツール名。
const ShellTool = "Bash"

// resultMaxLines を超えるツール結果は先頭 resultMaxLines-1 行に切り詰める。
const resultMaxLines = 20

type envelope struct {
	Type    string          `json:"type"`
	Subtype string          `json:"subtype"`
	Event   *streamEvent    `json:"event"`
	Content json.RawMessage `json:"content"`
	Output  json.RawMessage `json:"output"`
	Result  json.RawMessage `json:"result"`
}

type streamEvent struct {
	Type         string        `json:"type"`
	ContentBlock *contentBlock `json:"content_block"`
	Delta        *blockDelta   `json:"delta"`
}

type contentBlock struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type blockDelta struct {
	Type        string `json:"type"`
	PartialJSON string `json:"partial_json"`
	Text        string `json:"text"`
}

// Decode は1行をパースして意味イベントを返す。
// パース失敗・未知の type・必要なフィールド欠落はすべて (nil, false)。
func Decode(line []byte) (Event, bool) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, false
	}

	switch {
	case env.Type == typeStreamEvent:
		return decodeStreamEvent(env.Event)
	case env.Type == typeToolResult || env.Subtype == typeToolResult:
		raw := env.Content
		if isAbsent(raw) {
			raw = env.Output
		}
		return ToolResult{Content: contentText(raw)}, true
	case env.Type == typeResult:
		return Result{Text: rawText(env.Result)}, true
	}
	return nil, false
}

func decodeStreamEvent(e *streamEvent) (Event, bool) {
	if e == nil {
		return nil, false
	}
	switch e.Type {
	case innerBlockStart:
		if e.ContentBlock == nil {
			return nil, false
		}
		switch e.ContentBlock.Type {
		case blockToolUse:
			return ToolStart{Name: e.ContentBlock.Name}, true
		case blockText:
			return TextStart{}, true
		}
	case innerBlockDelta:
		if e.Delta == nil {
			return nil, false
		}
		switch e.Delta.Type {
		case deltaInputJSON:
			return ToolInputDelta{PartialJSON: e.Delta.PartialJSON}, true
		case deltaText:
			return TextDelta{Text: e.Delta.Text}, true
		}
	case innerBlockStop:
		return BlockStop{}, true
	}
	return nil, false
}

// contentText は文字列または {text} の配列を本文文字列にする。それ以外は空。
func contentText(raw json.RawMessage) string {
	if isAbsent(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err == nil {
		texts := make([]string, len(parts))
		for i, p := range parts {
			texts[i] = p.Text
		}
		return strings.Join(texts, "\n")
	}
	return ""
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// rawText は JSON 値を表示用の文字列にする。文字列はそのまま、
// 偽とみなす値（null・false・0・""）は空、それ以外は JSON 表記のまま返す。
func rawText(raw json.RawMessage) string {
	if isAbsent(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	text := strings.TrimSpace(string(raw))
	switch text {
	case "false", "null":
		return ""
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil && n == 0 {
		return ""
	}
	return text
}

// commandText はブロック終了時に表示するコマンド文字列を決める。
// Bash かつ入力 JSON に command があればそれ（文字列以外は JSON 表記）、
// それ以外（パース失敗を含む）はツール名。
func commandText(toolName, rawInput string) string {
	if toolName == ShellTool {
		var input struct {
			Command json.RawMessage `json:"command"`
		}
		if err := json.Unmarshal([]byte(rawInput), &input); err == nil {
			if cmd := rawText(input.Command); cmd != "" {
				return cmd
			}
		}
	}
	return toolName
}

// formatToolResult は結果本文を trim し、長すぎる場合は切り詰めて返す。空なら "".
func formatToolResult(content string) string {
	text := strings.TrimSpace(content)
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	if len(lines) <= resultMaxLines {
		return text
	}
	kept := lines[:resultMaxLines-1]
	omitted := len(lines) - len(kept)
	return strings.Join(kept, "\n") + "\n" + fmt.Sprintf("… %d more lines", omitted)
}
