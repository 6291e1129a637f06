package tui

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
)

// keyWaitModel は何かキーが押されたら終了するだけのモデル。
type keyWaitModel struct {
	prompt string
}

func (m keyWaitModel) Init() tea.Cmd { return nil }

func (m keyWaitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if _, ok := msg.(tea.KeyMsg); ok {
		return m, tea.Quit
	}
	return m, nil
}

func (m keyWaitModel) View() string {
	return mutedStyle.Render(m.prompt) + "\n"
}

// WaitForKey は端末（/dev/tty）を raw モードにしてキー入力を1つ待つ。
// 標準入力がパイプでも端末から読む。/dev/tty が開けなければ標準入力を使う。
func WaitForKey(prompt string) error {
	var in io.Reader = os.Stdin
	if tty, err := os.Open("/dev/tty"); err == nil {
		defer tty.Close()
		in = tty
	}
	p := tea.NewProgram(keyWaitModel{prompt: prompt}, tea.WithInput(in), tea.WithOutput(os.Stdout))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: wait for key: %w", err)
	}
	return nil
}
