// Package xsocial talks to the X (Twitter) API on behalf of a connected user account.
package xsocial

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/yungbote/forfeit-backend/internal/platform/ctxutil"
	"github.com/yungbote/forfeit-backend/internal/platform/envutil"
	"github.com/yungbote/forfeit-backend/internal/platform/httpx"
	"github.com/yungbote/forfeit-backend/internal/platform/logger"
	"github.com/yungbote/forfeit-backend/internal/platform/retry"
)

// Client is the social rail. Every call acts with the user's own access token.
type Client interface {
	Post(ctx context.Context, accessToken, text string, mediaIDs ...string) (*Post, error)
	UploadMedia(ctx context.Context, accessToken string, data []byte, mimeType string) (string, error)
	RefreshToken(ctx context.Context, refreshToken string) (*Token, error)
}

type Config struct {
	ClientID     string
	ClientSecret string
	APIBaseURL   string
	UploadURL    string
	Timeout      time.Duration
	Retry        retry.Policy
	// RequestsPerSecond is shared by every account; 0 disables limiting.
	RequestsPerSecond float64
}

func ConfigFromEnv() Config {
	return Config{
		ClientID:          envutil.String("X_CLIENT_ID", ""),
		ClientSecret:      envutil.String("X_CLIENT_SECRET", ""),
		APIBaseURL:        envutil.String("X_API_BASE_URL", "https://api.x.com"),
		UploadURL:         envutil.String("X_UPLOAD_URL", "https://upload.twitter.com/1.1/media/upload.json"),
		Timeout:           envutil.Duration("X_TIMEOUT_SECONDS", 30*time.Second),
		Retry:             retry.Exponential(envutil.Int("X_MAX_ATTEMPTS", 3), time.Second),
		RequestsPerSecond: envutil.Float("X_RPS", 5),
	}
}

func NewFromEnv(log *logger.Logger) (Client, error) {
	return New(log, ConfigFromEnv())
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("missing X_CLIENT_ID")
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.x.com"
	}
	if strings.TrimSpace(cfg.UploadURL) == "" {
		cfg.UploadURL = "https://upload.twitter.com/1.1/media/upload.json"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.Exponential(3, time.Second)
	}
	c := &client{
		log:        log.With("client", "XClient"),
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

type Post struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	TokenType    string `json:"token_type"`
}

// ExpiresAt is relative to now.
func (t *Token) ExpiresAt(now time.Time) *time.Time {
	if t == nil || t.ExpiresIn <= 0 {
		return nil
	}
	at := now.Add(time.Duration(t.ExpiresIn) * time.Second)
	return &at
}

type createPostRequest struct {
	Text  string     `json:"text"`
	Media *postMedia `json:"media,omitempty"`
}

type postMedia struct {
	MediaIDs []string `json:"media_ids"`
}

func (c *client) Post(ctx context.Context, accessToken, text string, mediaIDs ...string) (*Post, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("x: post text required")
	}
	if strings.TrimSpace(accessToken) == "" {
		return nil, fmt.Errorf("x: access token required")
	}
	body := createPostRequest{Text: text}
	if len(mediaIDs) > 0 {
		body.Media = &postMedia{MediaIDs: mediaIDs}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	return retry.Do(ctx, c.cfg.Retry, retry.Transient, func(ctx context.Context) (*Post, error) {
		var out struct {
			Data Post `json:"data"`
		}
		if err := c.do(ctx, http.MethodPost, c.cfg.APIBaseURL+"/2/tweets", "application/json", bytes.NewReader(raw), "Bearer "+accessToken, &out); err != nil {
			return nil, err
		}
		if out.Data.ID == "" {
			return nil, fmt.Errorf("x: post response missing id")
		}
		return &out.Data, nil
	}, c.notify("post"))
}

func (c *client) UploadMedia(ctx context.Context, accessToken string, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("x: media bytes required")
	}
	if strings.TrimSpace(accessToken) == "" {
		return "", fmt.Errorf("x: access token required")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("media_category", "tweet_image"); err != nil {
		return "", err
	}
	part, err := mw.CreateFormFile("media", "image")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}
	payload := buf.Bytes()
	contentType := mw.FormDataContentType()

	return retry.Do(ctx, c.cfg.Retry, retry.Transient, func(ctx context.Context) (string, error) {
		var out struct {
			MediaIDString string `json:"media_id_string"`
		}
		if err := c.do(ctx, http.MethodPost, c.cfg.UploadURL, contentType, bytes.NewReader(payload), "Bearer "+accessToken, &out); err != nil {
			return "", err
		}
		if out.MediaIDString == "" {
			return "", fmt.Errorf("x: media upload response missing media_id_string")
		}
		return out.MediaIDString, nil
	}, c.notify("upload_media"))
}

// RefreshToken is never retried: refresh tokens are single use.
func (c *client) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, fmt.Errorf("x: refresh token required")
	}
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", c.cfg.ClientID)

	// Confidential clients authenticate with basic auth; public clients rely on client_id alone.
	auth := ""
	if c.cfg.ClientSecret != "" {
		auth = "Basic " + base64.StdEncoding.EncodeToString([]byte(c.cfg.ClientID+":"+c.cfg.ClientSecret))
	}

	var tok Token
	if err := c.do(ctx, http.MethodPost, c.cfg.APIBaseURL+"/2/oauth2/token", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), auth, &tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("x: refresh response missing access_token")
	}
	return &tok, nil
}

func (c *client) do(ctx context.Context, method, endpoint, contentType string, body io.Reader, authorization string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpx.NewStatusError("x", resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("x decode: %w", err)
	}
	return nil
}

func (c *client) notify(op string) retry.Notify {
	return func(attempt int, err error, wait time.Duration) {
		c.log.Warn("X request retrying", "op", op, "attempt", attempt, "sleep", wait.String(), "error", err.Error())
	}
}
