package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// RepoList は repos.json の中身（追跡するリポジトリの絶対パス）
type RepoList struct {
	Repos []string `json:"repos"`
}

// ReposPath は repos.json の既定パス
func ReposPath() string {
	return filepath.Join(Dir(), "repos.json")
}

// LoadRepos は repos.json を読み込む。
// ファイルが存在しない場合は (nil, nil) を返す（初回起動）。
func LoadRepos(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	var list RepoList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	if list.Repos == nil {
		list.Repos = []string{}
	}
	return list.Repos, nil
}

// SaveRepos は repos.json を書き出す。親ディレクトリがなければ作る。
func SaveRepos(path string, repos []string) error {
	if repos == nil {
		repos = []string{}
	}
	data, err := json.MarshalIndent(RepoList{Repos: repos}, "", "  ")
	if err != nil {
		return fmt.Errorf("config: encode repos: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create %s: %w", filepath.Dir(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("config: failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("config: failed to write %s: %w", path, err)
	}
	return nil
}
