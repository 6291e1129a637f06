// Package techstack は git 管理下のファイル拡張子からリポジトリの主要言語を推定する。
package techstack

import (
	"context"
	"os/exec"
	"path"
	"sort"
	"strings"
	"time"
)

const timeout = 5 * time.Second

var extToLang = map[string]string{
	".ts":     "TypeScript",
	".tsx":    "TypeScript",
	".js":     "JavaScript",
	".jsx":    "JavaScript",
	".mjs":    "JavaScript",
	".swift":  "Swift",
	".cs":     "C#",
	".fs":     "F#",
	".rs":     "Rust",
	".go":     "Go",
	".py":     "Python",
	".rb":     "Ruby",
	".java":   "Java",
	".kt":     "Kotlin",
	".dart":   "Dart",
	".php":    "PHP",
	".lua":    "Lua",
	".zig":    "Zig",
	".c":      "C",
	".h":      "C",
	".cpp":    "C++",
	".cc":     "C++",
	".hpp":    "C++",
	".css":    "CSS",
	".scss":   "SCSS",
	".html":   "HTML",
	".svelte": "Svelte",
	".vue":    "Vue",
	".ex":     "Elixir",
	".exs":    "Elixir",
	".sh":     "Shell",
	".bash":   "Shell",
	".zsh":    "Shell",
	".xaml":   "XAML",
}

// Count は言語ごとのファイル数
type Count struct {
	Lang  string
	Files int
}

// Tally はファイルパス一覧から言語を数え、意味のある存在感のものだけを返す。
// しきい値は max(2, floor(total×1%))。件数の降順、同数なら言語名順。
func Tally(files []string) []Count {
	counts := make(map[string]int)
	for _, f := range files {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		lang, ok := extToLang[strings.ToLower(path.Ext(f))]
		if !ok {
			continue
		}
		counts[lang]++
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	threshold := max(2, total/100)

	var out []Count
	for lang, n := range counts {
		if n >= threshold {
			out = append(out, Count{Lang: lang, Files: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Files != out[j].Files {
			return out[i].Files > out[j].Files
		}
		return out[i].Lang < out[j].Lang
	})
	return out
}

// Languages は Tally の言語名だけを返す
func Languages(files []string) []string {
	counts := Tally(files)
	langs := make([]string, len(counts))
	for i, c := range counts {
		langs[i] = c.Lang
	}
	return langs
}

// Detect は `git ls-files` の結果から主要言語を返す。失敗時は nil。
func Detect(ctx context.Context, dir string) []string {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "git", "-C", dir, "ls-files").Output()
	if err != nil {
		return nil
	}
	return Languages(strings.Split(string(out), "\n"))
}
