package delegate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// SpawnRequest はエージェントプロセス1つの起動パラメータ。
type SpawnRequest struct {
	Dir    string
	Binary string
	Args   []string
	// Stderr はプロセスの標準エラーの出力先。nil なら捨てる。
	Stderr io.Writer
}

// Process は起動済みのエージェントプロセス。
type Process interface {
	// Stdout は標準出力。EOF まで読んでから Wait を呼ぶこと。
	Stdout() io.Reader
	// Wait はプロセスの終了を待ち終了コードを返す。
	// シグナル終了などでコードが得られない場合は ExitUnknown。
	Wait() (int, error)
}

// Spawner はエージェントプロセスを起動する。
// ctx がキャンセルされたら起動済みプロセスを終了させる責任を持つ。
type Spawner interface {
	Spawn(ctx context.Context, req SpawnRequest) (Process, error)
}

// defaultKillGrace は SIGTERM から SIGKILL までの猶予。
const defaultKillGrace = 3 * time.Second

// ExecSpawner は os/exec で実プロセスを起動する Spawner。
type ExecSpawner struct {
	KillGrace time.Duration
}

// Spawn はプロセスグループを分けてプロセスを起動する。
// ctx キャンセル時はグループ全体に SIGTERM を送り、KillGrace 後に強制終了する。
func (s ExecSpawner) Spawn(ctx context.Context, req SpawnRequest) (Process, error) {
	absPath, err := resolveBinary(req.Binary)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, absPath, req.Args...) // nosemgrep: go.lang.security.audit.dangerous-exec-command.dangerous-exec-command -- absPath は resolveBinary で検証済み
	cmd.Dir = req.Dir
	if req.Stderr != nil {
		cmd.Stderr = req.Stderr
	}
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return terminateGroup(cmd) }
	grace := s.KillGrace
	if grace <= 0 {
		grace = defaultKillGrace
	}
	cmd.WaitDelay = grace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd, stdout: stdout}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdout io.Reader
}

func (p *execProcess) Stdout() io.Reader { return p.stdout }

func (p *execProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// シグナル終了なら ExitCode() は -1 (= ExitUnknown)
		return exitErr.ExitCode(), nil
	}
	return ExitUnknown, err
}

// resolveBinary は binary を実行可能ファイルの絶対パスに解決する。
//
//   - パス区切りを含む名前はそのファイルを直接使う（絶対パス化して存在確認）
//   - それ以外は exec.LookPath で PATH から探す
func resolveBinary(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("binary name must not be empty")
	}
	if strings.ContainsAny(name, `/\`) {
		abs, err := filepath.Abs(name)
		if err != nil {
			return "", err
		}
		info, err := os.Stat(abs)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", fmt.Errorf("binary %q: %w", name, exec.ErrNotFound)
			}
			return "", err
		}
		if info.IsDir() {
			return "", fmt.Errorf("binary %q is a directory", name)
		}
		return abs, nil
	}
	absPath, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("binary %q not found in PATH: %w", name, err)
	}
	if !filepath.IsAbs(absPath) {
		return "", fmt.Errorf("resolved path is not absolute: %q", absPath)
	}
	return absPath, nil
}

// spawnErrorText は起動失敗をログ1行の文言にする。
func spawnErrorText(binary string, err error) string {
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Sprintf("%q not found on PATH.", binary)
	}
	return "Spawn error: " + err.Error()
}
