package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const githubAPIBase = "https://api.github.com"

// GithubUser GitHub 账户信息，Email 只会是已验证的邮箱
type GithubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
	Name      string `json:"name"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

type GithubOAuth struct {
	config     *oauth2.Config
	apiBase    string
	httpClient *http.Client
}

func NewGithubOAuth(clientID, clientSecret, redirectURI string) *GithubOAuth {
	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = 10 * time.Second

	return &GithubOAuth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       []string{"user:email"},
			Endpoint:     github.Endpoint,
		},
		apiBase:    githubAPIBase,
		httpClient: httpClient,
	}
}

// GetAuthURL 获取 GitHub 授权 URL
func (g *GithubOAuth) GetAuthURL(state string) string {
	return g.config.AuthCodeURL(state)
}

// Exchange 用授权码换取 access token
func (g *GithubOAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return g.config.Exchange(g.withClient(ctx), code)
}

// GetUser 获取 GitHub 用户信息
//
// 公开邮箱为空时回退到邮箱列表，只接受已验证的邮箱：
// 该邮箱会成为分享积分时的收件地址。
func (g *GithubOAuth) GetUser(ctx context.Context, token *oauth2.Token) (*GithubUser, error) {
	client := g.config.Client(g.withClient(ctx), token)

	var user GithubUser
	if err := g.getJSON(ctx, client, "/user", &user); err != nil {
		return nil, fmt.Errorf("get github user: %w", err)
	}

	var emails []githubEmail
	if err := g.getJSON(ctx, client, "/user/emails", &emails); err != nil {
		// 缺少 user:email 授权时无法确认邮箱，按无邮箱处理
		user.Email = ""
		return &user, nil
	}
	user.Email = pickVerifiedEmail(user.Email, emails)

	return &user, nil
}

func (g *GithubOAuth) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
}

func (g *GithubOAuth) getJSON(ctx context.Context, client *http.Client, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiBase+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("github api %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// pickVerifiedEmail 公开邮箱已验证则用它，否则取已验证的主邮箱，再否则取任一已验证邮箱
func pickVerifiedEmail(public string, emails []githubEmail) string {
	var primary, fallback string
	for _, e := range emails {
		if !e.Verified {
			continue
		}
		if public != "" && strings.EqualFold(e.Email, public) {
			return e.Email
		}
		if e.Primary && primary == "" {
			primary = e.Email
		}
		if fallback == "" {
			fallback = e.Email
		}
	}
	if primary != "" {
		return primary
	}
	return fallback
}
