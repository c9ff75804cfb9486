// Package github reads public repository activity for proof-of-work grading.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/yungbote/forfeit-backend/internal/platform/ctxutil"
	"github.com/yungbote/forfeit-backend/internal/platform/envutil"
	"github.com/yungbote/forfeit-backend/internal/platform/httpx"
	"github.com/yungbote/forfeit-backend/internal/platform/logger"
	"github.com/yungbote/forfeit-backend/internal/platform/retry"
)

type Client interface {
	// CommitCount counts commits on the default branch since the given time.
	CommitCount(ctx context.Context, repo Repo, since time.Time) (int, error)
}

type Repo struct {
	Owner string
	Name  string
}

func (r Repo) String() string { return r.Owner + "/" + r.Name }

var repoURLRe = regexp.MustCompile(`(?i)^https?://(?:www\.)?github\.com/([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+)`)

// ParseRepoURL extracts owner/name from a github.com URL. Deep links into a repo are accepted.
func ParseRepoURL(raw string) (Repo, bool) {
	m := repoURLRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return Repo{}, false
	}
	name := strings.TrimSuffix(m[2], ".git")
	if name == "" {
		return Repo{}, false
	}
	return Repo{Owner: m[1], Name: name}, true
}

type Config struct {
	Token   string
	BaseURL string
	Timeout time.Duration
	Retry   retry.Policy
	// MaxPages bounds pagination; counts saturate at MaxPages*100.
	MaxPages          int
	RequestsPerSecond float64
}

func ConfigFromEnv() Config {
	return Config{
		Token:             envutil.String("GITHUB_TOKEN", ""),
		BaseURL:           envutil.String("GITHUB_API_BASE_URL", "https://api.github.com"),
		Timeout:           envutil.Duration("GITHUB_TIMEOUT_SECONDS", 10*time.Second),
		Retry:             retry.Exponential(envutil.Int("GITHUB_MAX_ATTEMPTS", 2), 500*time.Millisecond),
		MaxPages:          envutil.Int("GITHUB_MAX_PAGES", 3),
		RequestsPerSecond: envutil.Float("GITHUB_RPS", 5),
	}
}

func NewFromEnv(log *logger.Logger) (Client, error) {
	return New(log, ConfigFromEnv())
}

// New works without a token; unauthenticated calls get GitHub's lower rate limit.
func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.github.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.Exponential(2, 500*time.Millisecond)
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 3
	}
	c := &client{
		log:        log.With("client", "GitHubClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c, nil
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

const perPage = 100

func (c *client) CommitCount(ctx context.Context, repo Repo, since time.Time) (int, error) {
	if repo.Owner == "" || repo.Name == "" {
		return 0, fmt.Errorf("github: owner and name required")
	}
	total := 0
	for page := 1; page <= c.cfg.MaxPages; page++ {
		n, err := retry.Do(ctx, c.cfg.Retry, retry.Transient, func(ctx context.Context) (int, error) {
			return c.commitPage(ctx, repo, since, page)
		}, func(attempt int, err error, wait time.Duration) {
			c.log.Warn("GitHub request retrying", "repo", repo.String(), "attempt", attempt, "sleep", wait.String(), "error", err.Error())
		})
		if err != nil {
			return 0, err
		}
		total += n
		if n < perPage {
			break
		}
	}
	return total, nil
}

func (c *client) commitPage(ctx context.Context, repo Repo, since time.Time, page int) (int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, err
		}
	}
	q := url.Values{}
	q.Set("since", since.UTC().Format(time.RFC3339))
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", strconv.Itoa(page))
	endpoint := fmt.Sprintf("%s/repos/%s/%s/commits?%s", c.cfg.BaseURL, url.PathEscape(repo.Owner), url.PathEscape(repo.Name), q.Encode())

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	// An empty repository answers 409.
	if resp.StatusCode == http.StatusConflict {
		return 0, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, httpx.NewStatusError("github", resp)
	}
	var commits []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&commits); err != nil {
		return 0, fmt.Errorf("github decode: %w", err)
	}
	return len(commits), nil
}
