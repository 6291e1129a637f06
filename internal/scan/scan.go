// Package scan はディスク上の git リポジトリを探し、ピッカーの候補一覧を作る。
package scan

import (
	"os"
	"path/filepath"
	"sort"
)

// Options は探索の設定
type Options struct {
	// Roots は探索の起点。それぞれ Depth 階層までの子ディレクトリを調べる。
	Roots []string
	Depth int
	// Home と HomeDotdirs は「それ自体がリポジトリか」だけを調べる追加候補
	Home        string
	HomeDotdirs []string
}

// Candidate はピッカーに並べる1件
type Candidate struct {
	Path     string
	Selected bool
	// Missing は以前選択されていたがディスク上に見つからないもの
	Missing bool
}

// isRepo は dir/.git が存在するか（worktree の .git ファイルも含む）
func isRepo(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// scanDir は root 以下を depth 階層まで探す。リポジトリの中には潜らない。
func scanDir(root string, depth int, found *[]string) {
	if depth <= 0 {
		return
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	for _, e := range entries {
		p := filepath.Join(root, e.Name())
		if !isDir(p) {
			continue
		}
		if isRepo(p) {
			*found = append(*found, p)
			continue
		}
		scanDir(p, depth-1, found)
	}
}

// Repos は Options に従って見つかったリポジトリを重複なしで昇順に返す。
func Repos(opts Options) []string {
	var found []string
	for _, root := range opts.Roots {
		scanDir(root, opts.Depth, &found)
	}
	if opts.Home != "" {
		for _, name := range opts.HomeDotdirs {
			p := filepath.Join(opts.Home, name)
			if isRepo(p) {
				found = append(found, p)
			}
		}
	}

	seen := make(map[string]bool, len(found))
	out := found[:0]
	for _, p := range found {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Candidates は探索結果と保存済みの選択を合わせたピッカー用の一覧を返す。
// 保存済みでディスクにないパスは Missing として末尾に並べる。
func Candidates(scanned, saved []string) []Candidate {
	selected := make(map[string]bool, len(saved))
	for _, p := range saved {
		selected[p] = true
	}
	inScan := make(map[string]bool, len(scanned))

	out := make([]Candidate, 0, len(scanned)+len(saved))
	for _, p := range scanned {
		inScan[p] = true
		out = append(out, Candidate{Path: p, Selected: selected[p]})
	}
	for _, p := range saved {
		if inScan[p] {
			continue
		}
		inScan[p] = true
		out = append(out, Candidate{Path: p, Selected: true, Missing: !isDir(p)})
	}
	return out
}
