// Package gitinfo はローカルの git 作業コピーのブランチ・上流との差分・未コミット数を調べる。
package gitinfo

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Timeout は git 呼び出し1回あたりの上限
const Timeout = 5 * time.Second

// maxParallel は RefreshAll で同時に調べるリポジトリ数
const maxParallel = 8

// RepoInfo は1リポジトリの同期状態
type RepoInfo struct {
	Path     string
	Name     string
	Branch   string
	Upstream string
	Ahead    int
	Behind   int
	Dirty    int
	// Error はリポジトリとして読めなかったときの理由（空なら正常）
	Error string
}

// NeedsPush はコミット/プッシュ対象になる状態か
func (r RepoInfo) NeedsPush() bool {
	return r.Dirty > 0 || r.Ahead > 0
}

// git は `git -C dir args...` を実行し、trim した stdout を返す
func git(ctx context.Context, dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	full := append([]string{"-C", dir}, args...)
	out, err := exec.CommandContext(ctx, "git", full...).Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Branch は現在のブランチ名。取得できなければ "unknown"。
func Branch(ctx context.Context, dir string) string {
	b, err := git(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "unknown"
	}
	return b
}

// Upstream は比較対象の上流ブランチ。
// 追跡ブランチ → origin/main → origin/master の順に探し、なければ ""。
func Upstream(ctx context.Context, dir string) string {
	if u, err := git(ctx, dir, "rev-parse", "--abbrev-ref", "@{upstream}"); err == nil && u != "" {
		return u
	}
	for _, candidate := range []string{"origin/main", "origin/master"} {
		if _, err := git(ctx, dir, "rev-parse", "--verify", candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// DirtyCount は `git status --porcelain` の行数（変更・未追跡ファイル数）
func DirtyCount(ctx context.Context, dir string) int {
	out, err := git(ctx, dir, "status", "--porcelain")
	if err != nil || out == "" {
		return 0
	}
	return len(strings.Split(out, "\n"))
}

// AheadBehind は upstream に対して HEAD が進んでいる/遅れているコミット数
func AheadBehind(ctx context.Context, dir, upstream string) (ahead, behind int) {
	if upstream == "" {
		return 0, 0
	}
	out, err := git(ctx, dir, "rev-list", "--left-right", "--count", upstream+"...HEAD")
	if err != nil {
		return 0, 0
	}
	return parseLeftRight(out)
}

// parseLeftRight は "behind\tahead" をパースする
func parseLeftRight(out string) (ahead, behind int) {
	fields := strings.Fields(out)
	if len(fields) != 2 {
		return 0, 0
	}
	behind, _ = strconv.Atoi(fields[0])
	ahead, _ = strconv.Atoi(fields[1])
	return ahead, behind
}

// Fetch は1リポジトリの状態を調べる
func Fetch(ctx context.Context, dir string) RepoInfo {
	info := RepoInfo{Path: dir, Name: filepath.Base(dir)}
	if _, err := git(ctx, dir, "rev-parse", "--git-dir"); err != nil {
		info.Branch = "error"
		info.Error = err.Error()
		return info
	}
	info.Branch = Branch(ctx, dir)
	info.Upstream = Upstream(ctx, dir)
	info.Ahead, info.Behind = AheadBehind(ctx, dir, info.Upstream)
	info.Dirty = DirtyCount(ctx, dir)
	return info
}

// RefreshAll は全リポジトリを並列に調べる。結果は入力と同じ順序。
func RefreshAll(ctx context.Context, dirs []string) []RepoInfo {
	out := make([]RepoInfo, len(dirs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for i, dir := range dirs {
		g.Go(func() error {
			out[i] = Fetch(gctx, dir)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
