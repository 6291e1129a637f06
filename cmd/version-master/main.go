package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/0x6d61/version-master/internal/config"
	"github.com/0x6d61/version-master/internal/delegate"
	"github.com/0x6d61/version-master/internal/gitinfo"
	"github.com/0x6d61/version-master/internal/logging"
	"github.com/0x6d61/version-master/internal/scan"
	"github.com/0x6d61/version-master/internal/techstack"
	"github.com/0x6d61/version-master/internal/tui"
	"github.com/0x6d61/version-master/internal/usage"
	"github.com/0x6d61/version-master/internal/vercel"
)

const returnPrompt = "Press any key to return…"

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run は CLI 本体。defer による後始末を済ませてから終了コードを返す。
func run(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("version-master", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		pick       = fs.Bool("pick", false, "起動時にリポジトリ選択画面を開く")
		configPath = fs.String("config", config.DefaultPath(), "設定ファイルのパス")
		batch      = fs.Bool("batch", false, "複数リポジトリの委譲をバッファモードで実行する")
		noVercel   = fs.Bool("no-vercel", false, "Vercel 連携を無効にする")
	)
	fs.Usage = func() {
		fmt.Fprintf(stderr, `version-master: git repository dashboard

Usage:
  version-master [flags]

Flags:
`)
		fs.PrintDefaults()
		fmt.Fprintf(stderr, `
Environment:
  VERCEL_TOKEN   Vercel API トークン（未設定なら Vercel CLI の auth.json を読む）
  VM_LOG_LEVEL   ログレベル（debug, info, warn, error）

Keys:
  c  選択中のリポジトリを commit + push     t  未追跡ファイルを整理
  p  リポジトリ選択                          ?  ヘルプ
`)
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	// .env はあれば読む（既存の環境変数は上書きしない）
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "設定エラー:", err)
		return 1
	}
	if lv := os.Getenv("VM_LOG_LEVEL"); lv != "" {
		cfg.Log.Level = lv
	}
	if *batch {
		cfg.Delegate.Mode = config.ModeBuffered
	}

	// --- Logging ---
	logger := logging.Discard()
	if f, err := logging.OpenFile(cfg.Log.File); err != nil {
		fmt.Fprintln(stderr, "ログファイルを開けません:", err)
	} else {
		defer f.Close()
		logger = logging.NewLogger(logging.Options{Level: cfg.Log.Level, Writer: f, Component: "version-master"})
	}

	// グレースフルシャットダウン
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	home, _ := os.UserHomeDir()
	a := newApp(cfg, logger, home, !*noVercel && cfg.VercelEnabled())

	// --- Usage watcher ---
	go a.watcher.Run(ctx)

	if err := a.run(ctx, *pick); err != nil {
		logger.Error("fatal", "err", err)
		fmt.Fprintln(stderr, "エラー:", err)
		return 1
	}
	return 0
}

// app はダッシュボードと委譲を行き来するメインループの状態
type app struct {
	cfg       *config.AppConfig
	logger    *slog.Logger
	home      string
	reposPath string

	runner  *delegate.Runner
	commit  delegate.TaskDefinition
	tidy    delegate.TaskDefinition
	vercel  *vercel.Client
	watcher *usage.Watcher
}

func newApp(cfg *config.AppConfig, logger *slog.Logger, home string, useVercel bool) *app {
	a := &app{
		cfg:       cfg,
		logger:    logger,
		home:      home,
		reposPath: config.ReposPath(),
		runner:    delegate.NewRunner(delegate.ExecSpawner{}, cfg.Agent.Binary, logger.With("component", "delegate")),
		commit:    delegate.CommitTask.WithPrompt(cfg.Tasks.Commit.Prompt),
		tidy:      delegate.TidyTask.WithPrompt(cfg.Tasks.Tidy.Prompt),
		watcher:   usage.NewWatcher(usage.DefaultPath(home), logger.With("component", "usage")),
	}
	if useVercel {
		if token := vercel.LoadToken(home); token != "" {
			a.vercel = vercel.NewClient(token, logger.With("component", "vercel"))
		} else {
			logger.Info("vercel token not found, deployment status disabled")
		}
	}
	return a
}

func (a *app) run(ctx context.Context, forcePick bool) error {
	repos, err := config.LoadRepos(a.reposPath)
	if err != nil {
		return err
	}
	if len(repos) == 0 || forcePick {
		picked, ok, err := a.pick(ctx, repos)
		if err != nil {
			return err
		}
		if ok {
			repos = picked
		} else if len(repos) == 0 {
			return nil
		}
	}

	for ctx.Err() == nil {
		action, err := a.dashboard(ctx, repos)
		if err != nil {
			return err
		}
		switch action.Kind {
		case tui.ActionQuit:
			return nil
		case tui.ActionPick:
			picked, ok, err := a.pick(ctx, repos)
			if err != nil {
				return err
			}
			if ok {
				repos = picked
			}
		case tui.ActionCommit:
			if err := a.delegate(ctx, a.commit, action.Paths); err != nil {
				return err
			}
		case tui.ActionTidy:
			if err := a.delegate(ctx, a.tidy, action.Paths); err != nil {
				return err
			}
		}
	}
	return nil
}

// runProgram は Bubble Tea プログラムを実行する。シグナルによる中断はエラーにしない。
func runProgram(ctx context.Context, m tea.Model, opts ...tea.ProgramOption) (tea.Model, error) {
	opts = append(opts, tea.WithContext(ctx))
	final, err := tea.NewProgram(m, opts...).Run()
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, tea.ErrProgramKilled) {
			return final, nil
		}
		return final, fmt.Errorf("tui: %w", err)
	}
	return final, nil
}

func (a *app) dashboard(ctx context.Context, repos []string) (tui.Action, error) {
	svc := tui.Services{
		Refresh: gitinfo.RefreshAll,
		Tech:    techstack.Detect,
		Open:    vercel.Open,
		Usage:   a.watcher.Current,
	}
	if a.vercel != nil {
		svc.Vercel = a.vercel.FetchAll
	}

	final, err := runProgram(ctx, tui.NewDashboard(ctx, repos, svc), tea.WithAltScreen())
	if err != nil {
		return tui.Action{}, err
	}
	m, ok := final.(tui.Model)
	if !ok {
		return tui.Action{}, nil
	}
	return m.Action(), nil
}

// pick はリポジトリ選択画面を開き、確定したら repos.json に保存する。
func (a *app) pick(ctx context.Context, saved []string) ([]string, bool, error) {
	scanned := scan.Repos(scan.Options{
		Roots:       a.cfg.Scan.Roots,
		Depth:       a.cfg.Scan.Depth,
		Home:        a.home,
		HomeDotdirs: a.cfg.Scan.HomeDotdirs,
	})
	candidates := scan.Candidates(scanned, saved)
	if len(candidates) == 0 {
		fmt.Printf("No git repositories found under %s\n", strings.Join(a.cfg.Scan.Roots, ", "))
		return nil, false, nil
	}

	final, err := runProgram(ctx, tui.NewPicker(candidates, a.home), tea.WithAltScreen())
	if err != nil {
		return nil, false, err
	}
	p, ok := final.(tui.Picker)
	if !ok || !p.Confirmed() {
		return nil, false, nil
	}

	selection := p.Selection()
	if err := config.SaveRepos(a.reposPath, selection); err != nil {
		return nil, false, err
	}
	a.logger.Info("repositories saved", "count", len(selection), "path", a.reposPath)
	return selection, true, nil
}

// delegate はタスクをエージェントに委譲する。
// 1件ならトランスクリプト、複数ならライブのカラム表示かバッファモードで実行する。
func (a *app) delegate(ctx context.Context, task delegate.TaskDefinition, paths []string) error {
	a.logger.Info("delegate", "task", task.Name, "repos", len(paths), "mode", a.cfg.Delegate.Mode)

	if len(paths) == 1 {
		run := delegate.NewTaskRun(paths[0], task)
		t := tui.Transcript{Out: os.Stdout, Stderr: os.Stderr, Width: terminalWidth()}
		if err := t.Run(ctx, a.runner, run); err != nil {
			return err
		}
		return a.waitForKey(ctx)
	}

	orch := delegate.NewOrchestrator(a.runner, paths, task)
	if a.cfg.Buffered() {
		fmt.Printf("\n%s: running in %d repositories…\n", task.Name, len(paths))
		if err := orch.RunBuffered(ctx, os.Stdout, tui.StyledFormatter{}); err != nil {
			return err
		}
		return a.waitForKey(ctx)
	}

	orch.Start(ctx)
	defer orch.Stop()
	title := fmt.Sprintf("%s · %d repos", task.Name, len(paths))
	final, err := runProgram(ctx, tui.NewParallelView(title, orch), tea.WithAltScreen())
	if err != nil {
		return err
	}
	if v, ok := final.(tui.ParallelView); ok && v.Aborted() {
		a.logger.Warn("parallel view closed before completion", "task", task.Name)
	}
	return nil
}

func (a *app) waitForKey(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	return tui.WaitForKey(returnPrompt)
}

func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 100
	}
	return w
}
