package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// 委譲の表示モード
const (
	ModeLive     = "live"
	ModeBuffered = "buffered"
)

// ScanConfig はリポジトリ探索の設定
type ScanConfig struct {
	Roots       []string `yaml:"roots"`
	Depth       int      `yaml:"depth"`
	HomeDotdirs []string `yaml:"home_dotdirs"`
}

// AgentConfig はエージェント CLI の設定
type AgentConfig struct {
	Binary string `yaml:"binary"`
}

// DelegateConfig は複数リポジトリ委譲時の設定
type DelegateConfig struct {
	Mode string `yaml:"mode"`
}

// TaskOverride はタスクのプロンプト差し替え
type TaskOverride struct {
	Prompt string `yaml:"prompt"`
}

// TasksConfig はタスクごとの差し替え
type TasksConfig struct {
	Commit TaskOverride `yaml:"commit"`
	Tidy   TaskOverride `yaml:"tidy"`
}

// VercelConfig は Vercel 連携の設定
type VercelConfig struct {
	Enabled *bool `yaml:"enabled"`
}

// LogConfig はログ出力の設定
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// AppConfig は config.yaml の統合設定構造
type AppConfig struct {
	Scan     ScanConfig     `yaml:"scan"`
	Agent    AgentConfig    `yaml:"agent"`
	Delegate DelegateConfig `yaml:"delegate"`
	Tasks    TasksConfig    `yaml:"tasks"`
	Vercel   VercelConfig   `yaml:"vercel"`
	Log      LogConfig      `yaml:"log"`
}

// VercelEnabled は Vercel 連携が有効か（未指定なら有効）
func (c *AppConfig) VercelEnabled() bool {
	return c.Vercel.Enabled == nil || *c.Vercel.Enabled
}

// Buffered は複数リポジトリ委譲をバッファモードで行うか
func (c *AppConfig) Buffered() bool {
	return c.Delegate.Mode == ModeBuffered
}

// applyDefaults はゼロ値のフィールドにデフォルト値を適用する
func (c *AppConfig) applyDefaults() {
	home, _ := os.UserHomeDir()
	if len(c.Scan.Roots) == 0 {
		c.Scan.Roots = []string{filepath.Join(home, "CursorProjects")}
	}
	if c.Scan.Depth <= 0 {
		c.Scan.Depth = 2
	}
	if c.Scan.HomeDotdirs == nil {
		c.Scan.HomeDotdirs = []string{".dotfiles", ".claude", ".claude_phoenix"}
	}
	if c.Agent.Binary == "" {
		c.Agent.Binary = "claude"
	}
	if c.Delegate.Mode != ModeBuffered {
		c.Delegate.Mode = ModeLive
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.File == "" {
		c.Log.File = filepath.Join(StateDir(), "version-master.log")
	}
}

// Load は config.yaml を読み込む。
// ${VAR} 環境変数を展開し、先頭の ~ をホームディレクトリにする。
// ファイルが存在しない場合はデフォルトの AppConfig を返す。
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := &AppConfig{}
			cfg.applyDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	// パス系の値だけ展開する（プロンプト本文はそのまま）
	for i := range cfg.Scan.Roots {
		cfg.Scan.Roots[i] = expandPath(cfg.Scan.Roots[i])
	}
	cfg.Agent.Binary = expandPath(cfg.Agent.Binary)
	cfg.Log.File = expandPath(cfg.Log.File)
	cfg.Log.Level = expandEnvString(cfg.Log.Level)

	cfg.applyDefaults()

	return &cfg, nil
}

// expandEnvString は文字列内の ${VAR} をホスト環境変数で展開する
func expandEnvString(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// expandPath は ${VAR} と先頭の ~/ を展開する
func expandPath(s string) string {
	s = expandEnvString(s)
	if s == "~" || strings.HasPrefix(s, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(s, "~"))
		}
	}
	return s
}

// Dir は設定ディレクトリ（$XDG_CONFIG_HOME/version-master）を返す
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "version-master")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "version-master")
}

// StateDir はログなどの状態ディレクトリ（$XDG_STATE_HOME/version-master）を返す
func StateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "version-master")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "version-master")
}

// DefaultPath は config.yaml の既定パス
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}
