// Package vercel はリポジトリに紐づく Vercel プロジェクトの本番デプロイ状況を取得する。
// どの段階で失敗しても nil を返し、ダッシュボードの表示を止めない。
package vercel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/cli/browser"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultBaseURL は Vercel REST API のエンドポイント
	DefaultBaseURL = "https://api.vercel.com"
	apiTimeout     = 8 * time.Second
	pingTimeout    = 5 * time.Second
	slugCacheSize  = 64
	maxBodyBytes   = 1 << 20
	fetchParallel  = 4
)

// ProjectLink は .vercel/project.json の内容
type ProjectLink struct {
	ProjectID string
	OrgID     string
}

// Info は1プロジェクトの本番デプロイ状況
type Info struct {
	ProjectName string
	ProjectID   string
	TeamSlug    string
	// ProdURL はスキームなしのホスト名（最初のドメイン、なければ最新デプロイの URL）
	ProdURL     string
	DeployState string
	// Healthy は ProdURL への HEAD の結果。ProdURL がなければ nil。
	Healthy      *bool
	LastDeployAt time.Time
}

// DashboardURL は Vercel ダッシュボード上のプロジェクトページ
func (i *Info) DashboardURL() string {
	if i.TeamSlug == "" {
		return "https://vercel.com/dashboard"
	}
	return "https://vercel.com/" + i.TeamSlug + "/" + i.ProjectName
}

// SiteURL は本番サイトの URL。なければ ""。
func (i *Info) SiteURL() string {
	if i.ProdURL == "" {
		return ""
	}
	return "https://" + i.ProdURL
}

// ReadProject は repo/.vercel/project.json を読む。リンクされていなければ false。
func ReadProject(repo string) (ProjectLink, bool) {
	data, err := os.ReadFile(filepath.Join(repo, ".vercel", "project.json"))
	if err != nil || !gjson.ValidBytes(data) {
		return ProjectLink{}, false
	}
	link := ProjectLink{
		ProjectID: gjson.GetBytes(data, "projectId").String(),
		OrgID:     gjson.GetBytes(data, "orgId").String(),
	}
	if link.ProjectID == "" || link.OrgID == "" {
		return ProjectLink{}, false
	}
	return link, true
}

// authPaths は Vercel CLI が保存する auth.json の候補
func authPaths(home string) []string {
	return []string{
		filepath.Join(home, "Library", "Application Support", "com.vercel.cli", "auth.json"),
		filepath.Join(home, ".local", "share", "com.vercel.cli", "auth.json"),
		filepath.Join(home, ".config", "vercel", "auth.json"),
	}
}

// LoadToken は VERCEL_TOKEN、なければ Vercel CLI の auth.json からトークンを得る。
func LoadToken(home string) string {
	if tok := os.Getenv("VERCEL_TOKEN"); tok != "" {
		return tok
	}
	for _, p := range authPaths(home) {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		if tok := gjson.GetBytes(data, "token").String(); tok != "" {
			return tok
		}
	}
	return ""
}

// Client は Vercel API クライアント
type Client struct {
	BaseURL string
	// PingScheme はヘルスチェックのスキーム（既定 https）
	PingScheme string
	HTTP       *http.Client

	token  string
	slugs  *lru.Cache[string, string]
	logger *slog.Logger
}

// NewClient は token で認証するクライアントを返す。logger が nil なら出力しない。
func NewClient(token string, logger *slog.Logger) *Client {
	// サイズが正なら lru.New は失敗しない
	slugs, _ := lru.New[string, string](slugCacheSize)
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		BaseURL:    DefaultBaseURL,
		PingScheme: "https",
		HTTP:       &http.Client{},
		token:      token,
		slugs:      slugs,
		logger:     logger,
	}
}

// get は API を呼び、2xx ならボディを返す。それ以外は nil。
func (c *Client) get(ctx context.Context, path string, query url.Values) []byte {
	ctx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()

	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.logger.Debug("vercel request failed", "path", path, "err", err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("vercel request rejected", "path", path, "status", resp.StatusCode)
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil || !gjson.ValidBytes(body) {
		return nil
	}
	return body
}

// TeamSlug は orgId のチーム slug。結果はキャッシュする。
func (c *Client) TeamSlug(ctx context.Context, orgID string) string {
	if slug, ok := c.slugs.Get(orgID); ok {
		return slug
	}
	body := c.get(ctx, "/v2/teams/"+url.PathEscape(orgID), nil)
	slug := gjson.GetBytes(body, "slug").String()
	if slug != "" {
		c.slugs.Add(orgID, slug)
	}
	return slug
}

// Ping は host に HEAD を送り 2xx なら true
func (c *Client) Ping(ctx context.Context, host string) bool {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.PingScheme+"://"+host, nil)
	if err != nil {
		return false
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Fetch は repo の Vercel 情報を返す。リンクなし・トークンなしは nil。
func (c *Client) Fetch(ctx context.Context, repo string) *Info {
	link, ok := ReadProject(repo)
	if !ok || c.token == "" {
		return nil
	}

	var (
		slug        string
		domains     []byte
		deployments []byte
	)
	team := url.Values{"teamId": {link.OrgID}}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slug = c.TeamSlug(gctx, link.OrgID)
		return nil
	})
	g.Go(func() error {
		domains = c.get(gctx, "/v9/projects/"+url.PathEscape(link.ProjectID)+"/domains", team)
		return nil
	})
	g.Go(func() error {
		q := url.Values{
			"projectId": {link.ProjectID},
			"target":    {"production"},
			"limit":     {"1"},
			"teamId":    {link.OrgID},
		}
		deployments = c.get(gctx, "/v6/deployments", q)
		return nil
	})
	_ = g.Wait()

	info := &Info{ProjectID: link.ProjectID, TeamSlug: slug, ProjectName: link.ProjectID}

	deploy := gjson.GetBytes(deployments, "deployments.0")
	if deploy.Exists() {
		if name := deploy.Get("name").String(); name != "" {
			info.ProjectName = name
		}
		info.DeployState = deploy.Get("readyState").String()
		if ms := deploy.Get("created").Int(); ms > 0 {
			info.LastDeployAt = time.UnixMilli(ms)
		}
	}

	info.ProdURL = gjson.GetBytes(domains, "domains.0.name").String()
	if info.ProdURL == "" {
		info.ProdURL = deploy.Get("url").String()
	}
	if info.ProdURL != "" {
		healthy := c.Ping(ctx, info.ProdURL)
		info.Healthy = &healthy
	}
	return info
}

// FetchAll は repos の情報を並列に取得する。結果は入力と同じ順序（リンクなしは nil）。
func (c *Client) FetchAll(ctx context.Context, repos []string) []*Info {
	out := make([]*Info, len(repos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchParallel)
	for i, repo := range repos {
		g.Go(func() error {
			out[i] = c.Fetch(gctx, repo)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Open は既定のブラウザで url を開く。
// TUI の画面を崩さないよう、ブラウザ起動コマンドの出力は捨てる。
func Open(target string) error {
	if target == "" {
		return fmt.Errorf("vercel: no url to open")
	}
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
	if err := browser.OpenURL(target); err != nil {
		return fmt.Errorf("vercel: open %s: %w", target, err)
	}
	return nil
}
