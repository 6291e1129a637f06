package delegate

import (
	"fmt"
	"strings"
	"testing"
)

func TestDecode_StreamEvents(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Event
	}{
		{
			name: "tool_use start",
			line: `{"type":"stream_event","event":{"type":"content_block_start","content_block":{"type":"tool_use","name":"Bash"}}}`,
			want: ToolStart{Name: "Bash"},
		},
		{
			name: "text start",
			line: `{"type":"stream_event","event":{"type":"content_block_start","content_block":{"type":"text"}}}`,
			want: TextStart{},
		},
		{
			name: "input json delta",
			line: `{"type":"stream_event","event":{"type":"content_block_delta","delta":{"type":"input_json_delta","partial_json":"{\"comm"}}}`,
			want: ToolInputDelta{PartialJSON: `{"comm`},
		},
		{
			name: "text delta",
			line: `{"type":"stream_event","event":{"type":"content_block_delta","delta":{"type":"text_delta","text":"Hel"}}}`,
			want: TextDelta{Text: "Hel"},
		},
		{
			name: "block stop",
			line: `{"type":"stream_event","event":{"type":"content_block_stop","index":0}}`,
			want: BlockStop{},
		},
		{
			name: "result string",
			line: `{"type":"result","subtype":"success","result":"All pushed."}`,
			want: Result{Text: "All pushed."},
		},
		{
			name: "result object",
			line: `{"type":"result","result":{"text":"x"}}`,
			want: Result{Text: `{"text":"x"}`},
		},
		{
			name: "result number",
			line: `{"type":"result","result":42}`,
			want: Result{Text: "42"},
		},
		{
			name: "result false",
			line: `{"type":"result","result":false}`,
			want: Result{},
		},
		{
			name: "result zero",
			line: `{"type":"result","result":0}`,
			want: Result{},
		},
		{
			name: "result missing",
			line: `{"type":"result","subtype":"success"}`,
			want: Result{},
		},
		{
			name: "tool_result by subtype",
			line: `{"type":"user","subtype":"tool_result","content":"ok"}`,
			want: ToolResult{Content: "ok"},
		},
		{
			name: "tool_result output fallback",
			line: `{"type":"tool_result","output":"from output"}`,
			want: ToolResult{Content: "from output"},
		},
		{
			name: "tool_result text array",
			line: `{"type":"tool_result","content":[{"type":"text","text":"a"},{"type":"text","text":"b"}]}`,
			want: ToolResult{Content: "a\nb"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Decode([]byte(tt.line))
			if !ok {
				t.Fatalf("Decode(%s): ok = false", tt.line)
			}
			if got != tt.want {
				t.Errorf("Decode: got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecode_Ignored(t *testing.T) {
	lines := []string{
		``,
		`not json`,
		`{"type":"stream_event"`,
		`{"type":"system","subtype":"init"}`,
		`{"type":"assistant","message":{}}`,
		`{"type":"stream_event"}`,
		`{"type":"stream_event","event":{"type":"message_start"}}`,
		`{"type":"stream_event","event":{"type":"content_block_start","content_block":{"type":"thinking"}}}`,
		`{"type":"stream_event","event":{"type":"content_block_delta","delta":{"type":"signature_delta"}}}`,
		`{"type":"stream_event","event":{"type":"content_block_start"}}`,
		`[1,2,3]`,
	}
	for _, line := range lines {
		if ev, ok := Decode([]byte(line)); ok {
			t.Errorf("Decode(%q): got %#v, want no event", line, ev)
		}
	}
}

func TestCommandText(t *testing.T) {
	tests := []struct {
		tool, input, want string
	}{
		{"Bash", `{"command":"git status"}`, "git status"},
		{"Bash", `{"command":"git sta`, "Bash"},
		{"Bash", `{"command":""}`, "Bash"},
		{"Bash", ``, "Bash"},
		{"Bash", `{"command":123}`, "123"},
		{"Bash", `{"command":["git","push"]}`, `["git","push"]`},
		{"Bash", `{"command":false}`, "Bash"},
		{"Bash", `{"command":null}`, "Bash"},
		{"Read", `{"file_path":"/tmp/x"}`, "Read"},
		{"Edit", `{"command":"rm -rf"}`, "Edit"},
	}
	for _, tt := range tests {
		if got := commandText(tt.tool, tt.input); got != tt.want {
			t.Errorf("commandText(%q, %q) = %q, want %q", tt.tool, tt.input, got, tt.want)
		}
	}
}

func TestFormatToolResult(t *testing.T) {
	if got := formatToolResult("  \n\t "); got != "" {
		t.Errorf("blank content: got %q, want empty", got)
	}
	if got := formatToolResult("  one\ntwo \n"); got != "one\ntwo" {
		t.Errorf("trim: got %q", got)
	}

	exact := make([]string, resultMaxLines)
	for i := range exact {
		exact[i] = fmt.Sprintf("line%d", i+1)
	}
	if got := formatToolResult(strings.Join(exact, "\n")); got != strings.Join(exact, "\n") {
		t.Errorf("%d lines should not be truncated, got %q", resultMaxLines, got)
	}

	long := make([]string, 30)
	for i := range long {
		long[i] = fmt.Sprintf("line%d", i+1)
	}
	got := formatToolResult(strings.Join(long, "\n"))
	lines := strings.Split(got, "\n")
	if len(lines) != resultMaxLines {
		t.Fatalf("truncated: got %d lines, want %d", len(lines), resultMaxLines)
	}
	if lines[resultMaxLines-2] != "line19" {
		t.Errorf("last kept line = %q, want line19", lines[resultMaxLines-2])
	}
	if last := lines[len(lines)-1]; last != "… 11 more lines" {
		t.Errorf("marker = %q, want %q", last, "… 11 more lines")
	}
}
