package delegate

import (
	"reflect"
	"strings"
	"testing"
)

// stream-json の1行を組み立てるヘルパー
func toolStart(name string) string {
	return `{"type":"stream_event","event":{"type":"content_block_start","content_block":{"type":"tool_use","name":"` + name + `"}}}`
}

func inputDelta(partial string) string {
	escaped := strings.ReplaceAll(partial, `"`, `\"`)
	return `{"type":"stream_event","event":{"type":"content_block_delta","delta":{"type":"input_json_delta","partial_json":"` + escaped + `"}}}`
}

func textStart() string {
	return `{"type":"stream_event","event":{"type":"content_block_start","content_block":{"type":"text"}}}`
}

func textDelta(text string) string {
	return `{"type":"stream_event","event":{"type":"content_block_delta","delta":{"type":"text_delta","text":"` + text + `"}}}`
}

func blockStop() string {
	return `{"type":"stream_event","event":{"type":"content_block_stop"}}`
}

func result(text string) string {
	return `{"type":"result","subtype":"success","result":"` + text + `"}`
}

func feedAll(r *Reducer, lines ...string) []LogLine {
	var out []LogLine
	for _, l := range lines {
		out = append(out, r.Feed([]byte(l))...)
	}
	return out
}

func TestReducer_BashCommand(t *testing.T) {
	r := NewReducer(false)
	got := feedAll(r,
		toolStart("Bash"),
		inputDelta(`{"comm`),
		inputDelta(`and":"git push"}`),
		blockStop(),
	)
	want := []LogLine{{Kind: KindCommand, Text: "git push"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
	if st := r.State(); st.ToolName != "" || st.ToolInput != "" {
		t.Errorf("tool state not cleared: %#v", st)
	}
}

func TestReducer_InvalidToolInputFallsBackToName(t *testing.T) {
	r := NewReducer(false)
	got := feedAll(r, toolStart("Bash"), inputDelta(`{"command":`), blockStop())
	want := []LogLine{{Kind: KindCommand, Text: "Bash"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func TestReducer_NonShellToolShowsName(t *testing.T) {
	r := NewReducer(false)
	got := feedAll(r, toolStart("Edit"), inputDelta(`{"file_path":"a.go"}`), blockStop())
	want := []LogLine{{Kind: KindCommand, Text: "Edit"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func TestReducer_TextConcatenatedAndTrimmed(t *testing.T) {
	r := NewReducer(false)
	got := feedAll(r, textStart(), textDelta("  Hel"), textDelta("lo "), blockStop())
	want := []LogLine{{Kind: KindText, Text: "Hello"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
	if !r.State().HadText {
		t.Error("HadText should be set after emitting text")
	}
}

func TestReducer_WhitespaceTextEmitsNothing(t *testing.T) {
	r := NewReducer(false)
	got := feedAll(r, textStart(), textDelta(`\n  `), blockStop())
	if len(got) != 0 {
		t.Errorf("got %#v, want no lines", got)
	}
	if r.State().HadText {
		t.Error("HadText should stay false for blank text")
	}
}

func TestReducer_ResultSuppressedAfterText(t *testing.T) {
	r := NewReducer(false)
	got := feedAll(r, textStart(), textDelta("Pushed 2 commits"), blockStop(), result("Pushed 2 commits"))
	want := []LogLine{{Kind: KindText, Text: "Pushed 2 commits"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func TestReducer_ResultWithoutText(t *testing.T) {
	r := NewReducer(false)
	got := feedAll(r, toolStart("Bash"), inputDelta(`{"command":"git push"}`), blockStop(), result("Done"))
	want := []LogLine{
		{Kind: KindCommand, Text: "git push"},
		{Kind: KindResult, Text: "Done"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func TestReducer_EmptyResultIgnored(t *testing.T) {
	r := NewReducer(false)
	if got := feedAll(r, result("")); len(got) != 0 {
		t.Errorf("got %#v, want no lines", got)
	}
}

func TestReducer_NonStringValuesShown(t *testing.T) {
	r := NewReducer(false)
	got := feedAll(r,
		toolStart("Bash"), inputDelta(`{"command":7}`), blockStop(),
		`{"type":"result","result":{"pushed":true}}`,
	)
	want := []LogLine{
		{Kind: KindCommand, Text: "7"},
		{Kind: KindResult, Text: `{"pushed":true}`},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func TestReducer_StopWithoutBlockIsNoop(t *testing.T) {
	r := NewReducer(false)
	if got := feedAll(r, blockStop(), blockStop()); len(got) != 0 {
		t.Errorf("got %#v, want no lines", got)
	}
	if st := r.State(); st != (ParseState{}) {
		t.Errorf("state changed: %#v", st)
	}
}

func TestReducer_StrayDeltasIgnored(t *testing.T) {
	r := NewReducer(false)
	got := feedAll(r, inputDelta(`{"command":"x"}`), textDelta("stray"), blockStop())
	if len(got) != 0 {
		t.Errorf("got %#v, want no lines", got)
	}
}

func TestReducer_StartingBlockClearsOther(t *testing.T) {
	r := NewReducer(false)
	feedAll(r, toolStart("Bash"), inputDelta(`{"command":"git log"}`), textStart())
	st := r.State()
	if st.ToolName != "" || st.ToolInput != "" || !st.InText {
		t.Fatalf("text start should clear tool: %#v", st)
	}

	feedAll(r, textDelta("partial"), toolStart("Bash"))
	st = r.State()
	if st.InText || st.TextBuf != "" || st.ToolName != "Bash" {
		t.Fatalf("tool start should clear text: %#v", st)
	}
}

func TestReducer_MalformedLineInMiddle(t *testing.T) {
	r := NewReducer(false)
	got := feedAll(r,
		toolStart("Bash"),
		`{"type":"stream_event","event":`,
		inputDelta(`{"command":"git status"}`),
		`garbage`,
		blockStop(),
	)
	want := []LogLine{{Kind: KindCommand, Text: "git status"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func TestReducer_Deterministic(t *testing.T) {
	script := []string{
		textStart(), textDelta("Checking"), blockStop(),
		toolStart("Bash"), inputDelta(`{"command":"git status"}`), blockStop(),
		toolStart("Bash"), inputDelta(`{"command":"git push"}`), blockStop(),
		result("ok"),
	}
	a := feedAll(NewReducer(false), script...)
	b := feedAll(NewReducer(false), script...)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("same input produced different output:\n%#v\n%#v", a, b)
	}
	if len(a) != 3 {
		t.Errorf("got %d lines, want 3", len(a))
	}
}

func TestReducer_ToolResultOnlyWhenVerbose(t *testing.T) {
	line := `{"type":"tool_result","content":"  On branch main  "}`

	if got := NewReducer(false).Feed([]byte(line)); len(got) != 0 {
		t.Errorf("non-verbose: got %#v, want no lines", got)
	}

	got := NewReducer(true).Feed([]byte(line))
	want := []LogLine{{Kind: KindOutput, Text: "On branch main"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("verbose: got %#v, want %#v", got, want)
	}
}

func TestReducer_VerboseToolResultTruncated(t *testing.T) {
	var body []string
	for range 25 {
		body = append(body, "x")
	}
	line := `{"type":"tool_result","content":"` + strings.Join(body, `\n`) + `"}`
	got := NewReducer(true).Feed([]byte(line))
	if len(got) != 1 {
		t.Fatalf("got %d lines, want 1", len(got))
	}
	if !strings.HasSuffix(got[0].Text, "… 6 more lines") {
		t.Errorf("text = %q, want truncation marker", got[0].Text)
	}
}
