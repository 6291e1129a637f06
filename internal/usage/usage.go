// Package usage は claude CLI がキャッシュする利用率（5時間枠・7日枠）を読む。
package usage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/tidwall/gjson"
)

const (
	// PollInterval はファイル監視が使えないときの再読込間隔
	PollInterval = 5 * time.Second
	// StaleAfter を過ぎた値は古いとみなす
	StaleAfter = 300 * time.Second
)

// Usage は利用率のスナップショット
type Usage struct {
	FiveHourPct      float64
	SevenDayPct      float64
	FiveHourResetsAt time.Time
	SevenDayResetsAt time.Time
	Updated          time.Time
}

// Stale は now 時点で値が古いか
func (u Usage) Stale(now time.Time) bool {
	return now.Sub(u.Updated) > StaleAfter
}

// DefaultPath は ~/.claude/cache/oauth-usage.json
func DefaultPath(home string) string {
	return filepath.Join(home, ".claude", "cache", "oauth-usage.json")
}

// Parse は oauth-usage.json の中身を読む。必須項目が欠けていれば false。
func Parse(data []byte) (Usage, bool) {
	if !gjson.ValidBytes(data) {
		return Usage{}, false
	}
	root := gjson.ParseBytes(data)
	five, ok := number(root.Get("five_hour_pct"))
	if !ok {
		return Usage{}, false
	}
	seven, ok := number(root.Get("seven_day_pct"))
	if !ok {
		return Usage{}, false
	}
	updatedField := root.Get("updated")
	if updatedField.Type != gjson.Number {
		return Usage{}, false
	}
	updated := time.Unix(updatedField.Int(), 0)

	u := Usage{
		FiveHourPct:      five,
		SevenDayPct:      seven,
		Updated:          updated,
		FiveHourResetsAt: resetTime(root.Get("five_hour_reset"), updated.Add(5*time.Hour)),
		SevenDayResetsAt: resetTime(root.Get("seven_day_reset"), updated.Add(7*24*time.Hour)),
	}
	return u, true
}

// number は数値または数値文字列を受け付ける
func number(r gjson.Result) (float64, bool) {
	switch r.Type {
	case gjson.Number:
		return r.Float(), true
	case gjson.String:
		f, err := strconv.ParseFloat(r.String(), 64)
		return f, err == nil
	}
	return 0, false
}

// resetTime は RFC3339 文字列をパースし、なければ fallback
func resetTime(r gjson.Result, fallback time.Time) time.Time {
	if r.Type != gjson.String || r.String() == "" {
		return fallback
	}
	t, err := time.Parse(time.RFC3339, r.String())
	if err != nil {
		return fallback
	}
	return t
}

// Read はファイルを読んで Parse する
func Read(path string) (Usage, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Usage{}, false
	}
	return Parse(data)
}

// Watcher はファイルの変更（fsnotify）と定期ポーリングで利用率を読み直す。
// 最新値は Current で取得する。
type Watcher struct {
	path   string
	logger *slog.Logger

	mu   sync.Mutex
	last Usage
	have bool
}

// NewWatcher は path を監視する Watcher を返す。logger が nil なら出力しない。
func NewWatcher(path string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{path: path, logger: logger}
}

// Current は直近の値を返す
func (w *Watcher) Current() (Usage, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last, w.have
}

// reload は再読込し、読めたら最新値を差し替える
func (w *Watcher) reload() {
	u, ok := Read(w.path)
	if !ok {
		return
	}
	w.mu.Lock()
	changed := !w.have || u != w.last
	w.last, w.have = u, true
	w.mu.Unlock()
	if changed {
		w.logger.Debug("usage updated", "five_hour_pct", u.FiveHourPct, "seven_day_pct", u.SevenDayPct)
	}
}

// Run は ctx が終わるまで監視する（blocking）。
// ディレクトリを監視できない場合はポーリングだけで動く。
func (w *Watcher) Run(ctx context.Context) {
	w.reload()

	var events <-chan fsnotify.Event
	var errs <-chan error
	fw, err := fsnotify.NewWatcher()
	if err == nil {
		if addErr := fw.Add(filepath.Dir(w.path)); addErr != nil {
			w.logger.Debug("usage watch unavailable, polling", "err", addErr)
		} else {
			events, errs = fw.Events, fw.Errors
		}
		defer fw.Close()
	}

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(ev.Name) == filepath.Clean(w.path) && ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				w.reload()
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.logger.Debug("usage watch error", "err", err)
		case <-ticker.C:
			w.reload()
		}
	}
}
