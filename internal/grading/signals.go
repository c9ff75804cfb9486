package grading

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	types "github.com/yungbote/forfeit-backend/internal/domain"
	"github.com/yungbote/forfeit-backend/internal/platform/gcp"
	"github.com/yungbote/forfeit-backend/internal/platform/github"
	"github.com/yungbote/forfeit-backend/internal/platform/logger"
)

// Signals are the measurable facts about a submission.
type Signals struct {
	Text      string
	WordCount int
	Numbers   []float64

	URL           string
	URLAccessible *bool

	Repo        *github.Repo
	CommitCount *int
	// CommitErr is kept rather than returned: an unanswered lookup leaves the
	// GitHub rule undecided instead of failing the submission.
	CommitErr error
}

type CollectorConfig struct {
	URLTimeout     time.Duration
	CommitLookback time.Duration
	// AllowPrivateHosts permits liveness checks against loopback and private
	// addresses. Only tests should set it.
	AllowPrivateHosts bool
}

func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{URLTimeout: 10 * time.Second, CommitLookback: 30 * 24 * time.Hour}
}

type Collector struct {
	log     *logger.Logger
	cfg     CollectorConfig
	http    *http.Client
	github  github.Client
	objects gcp.BucketService
	now     func() time.Time
}

func NewCollector(log *logger.Logger, cfg CollectorConfig, gh github.Client, objects gcp.BucketService) *Collector {
	def := DefaultCollectorConfig()
	if cfg.URLTimeout <= 0 {
		cfg.URLTimeout = def.URLTimeout
	}
	if cfg.CommitLookback <= 0 {
		cfg.CommitLookback = def.CommitLookback
	}
	dialer := &net.Dialer{Timeout: cfg.URLTimeout}
	if !cfg.AllowPrivateHosts {
		dialer.Control = rejectPrivate
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: cfg.URLTimeout,
	}
	return &Collector{
		log: log.With("component", "SignalCollector"),
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.URLTimeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		github:  gh,
		objects: objects,
		now:     time.Now,
	}
}

// Collect gathers only the signals the rubric can use. The URL check and the
// commit lookup run concurrently.
func (c *Collector) Collect(ctx context.Context, sub *types.Submission, req Requirements) (*Signals, error) {
	s := &Signals{}
	switch sub.Type {
	case types.SubmissionTextDescription:
		s.Text = sub.Content
	case types.SubmissionFileUpload:
		text, err := c.uploadedText(ctx, sub)
		if err != nil {
			return nil, err
		}
		s.Text = text
		if s.Text == "" {
			s.Text = sub.Content
		}
	case types.SubmissionExternalURL:
		s.URL = strings.TrimSpace(sub.Content)
	default:
		return nil, fmt.Errorf("unknown submission type %q", sub.Type)
	}
	s.WordCount = len(strings.Fields(s.Text))
	s.Numbers = extractNumbers(s.Text)

	if s.URL == "" {
		return s, nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ok := c.reachable(gctx, s.URL)
		s.URLAccessible = &ok
		return nil
	})
	if repo, ok := github.ParseRepoURL(s.URL); ok {
		s.Repo = &repo
		if req.RequiresGitHub && c.github != nil {
			g.Go(func() error {
				n, err := c.github.CommitCount(gctx, repo, c.now().Add(-c.cfg.CommitLookback))
				if err != nil {
					s.CommitErr = err
					return nil
				}
				s.CommitCount = &n
				return nil
			})
		}
	}
	_ = g.Wait()
	return s, nil
}

func (c *Collector) uploadedText(ctx context.Context, sub *types.Submission) (string, error) {
	if sub.StorageKey == "" || c.objects == nil {
		return "", nil
	}
	obj, err := c.objects.Download(ctx, gcp.BucketCategoryProof, sub.StorageKey)
	if err != nil {
		if errors.Is(err, gcp.ErrObjectNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("fetch proof upload: %w", err)
	}
	if !isTextual(obj.ContentType, sub.Filename) || !utf8.Valid(obj.Data) {
		return "", nil
	}
	return string(obj.Data), nil
}

func isTextual(contentType, filename string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if strings.HasPrefix(ct, "text/") || ct == "application/json" || ct == "application/markdown" {
		return true
	}
	switch strings.ToLower(path.Ext(filename)) {
	case ".txt", ".md", ".markdown", ".csv", ".json":
		return true
	}
	return false
}

// reachable issues a HEAD and falls back to GET for servers that refuse HEAD.
func (c *Collector) reachable(ctx context.Context, raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	code, err := c.probe(ctx, http.MethodHead, u.String())
	if err == nil && (code == http.StatusMethodNotAllowed || code == http.StatusNotImplemented) {
		code, err = c.probe(ctx, http.MethodGet, u.String())
	}
	if err != nil {
		c.log.Debug("URL liveness check failed", "host", u.Host, "error", err)
		return false
	}
	return code < 400
}

func (c *Collector) probe(ctx context.Context, method, target string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.URLTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "forfeit-grader/1.0")
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

var errPrivateAddress = errors.New("refusing to dial a private address")

func rejectPrivate(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return errPrivateAddress
	}
	return nil
}

var numberRe = regexp.MustCompile(`-?\d[\d,]*(?:\.\d+)?`)

func extractNumbers(text string) []float64 {
	var out []float64
	for _, m := range numberRe.FindAllString(text, -1) {
		m = strings.TrimRight(strings.ReplaceAll(m, ",", ""), ".")
		if f, err := strconv.ParseFloat(m, 64); err == nil {
			out = append(out, f)
		}
	}
	return out
}
