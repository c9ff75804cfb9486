package sendgrid

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/yungbote/forfeit-backend/internal/platform/ctxutil"
	"github.com/yungbote/forfeit-backend/internal/platform/envutil"
	"github.com/yungbote/forfeit-backend/internal/platform/httpx"
	"github.com/yungbote/forfeit-backend/internal/platform/logger"
	"github.com/yungbote/forfeit-backend/internal/platform/retry"
)

// Client is the email rail.
type Client interface {
	Send(ctx context.Context, req SendEmailRequest) (*SendEmailResult, error)
}

type Config struct {
	APIKey           string
	BaseURL          string
	DefaultFromEmail string
	DefaultFromName  string
	Timeout          time.Duration
	Retry            retry.Policy
	// RequestsPerSecond bounds outbound sends; 0 disables limiting.
	RequestsPerSecond float64
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:            envutil.String("SENDGRID_API_KEY", ""),
		BaseURL:           envutil.String("SENDGRID_BASE_URL", "https://api.sendgrid.com"),
		DefaultFromEmail:  envutil.String("SENDGRID_FROM_EMAIL", ""),
		DefaultFromName:   envutil.String("SENDGRID_FROM_NAME", "Forfeit"),
		Timeout:           envutil.Duration("SENDGRID_TIMEOUT_SECONDS", 20*time.Second),
		Retry:             retry.Exponential(envutil.Int("SENDGRID_MAX_ATTEMPTS", 4), time.Second),
		RequestsPerSecond: envutil.Float("SENDGRID_RPS", 10),
	}
}

func NewFromEnv(log *logger.Logger) (Client, error) {
	return New(log, ConfigFromEnv())
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing SENDGRID_API_KEY")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.sendgrid.com"
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.Exponential(4, time.Second)
	}
	c := &client{
		log:        log.With("client", "SendGridClient"),
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

type EmailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type Attachment struct {
	Filename string
	MIMEType string
	Content  []byte
}

type SendEmailRequest struct {
	From        EmailAddress
	To          []EmailAddress
	Subject     string
	Text        string
	HTML        string
	Categories  []string
	CustomArgs  map[string]string
	Attachments []Attachment
}

type SendEmailResult struct {
	StatusCode int
	MessageID  string
}

type mailSendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             EmailAddress      `json:"from"`
	Subject          string            `json:"subject"`
	Content          []mailContent     `json:"content"`
	Categories       []string          `json:"categories,omitempty"`
	Attachments      []sgAttachment    `json:"attachments,omitempty"`
}

type personalization struct {
	To         []EmailAddress    `json:"to"`
	CustomArgs map[string]string `json:"custom_args,omitempty"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgAttachment struct {
	Content     string `json:"content"`
	Type        string `json:"type,omitempty"`
	Filename    string `json:"filename"`
	Disposition string `json:"disposition"`
}

func (c *client) Send(ctx context.Context, req SendEmailRequest) (*SendEmailResult, error) {
	if strings.TrimSpace(req.From.Email) == "" {
		req.From = EmailAddress{Email: c.cfg.DefaultFromEmail, Name: c.cfg.DefaultFromName}
	}
	req.Subject = strings.TrimSpace(req.Subject)
	if req.From.Email == "" {
		return nil, fmt.Errorf("sendgrid: From.Email required (or set SENDGRID_FROM_EMAIL)")
	}
	if len(req.To) == 0 {
		return nil, fmt.Errorf("sendgrid: To required")
	}
	if req.Subject == "" {
		return nil, fmt.Errorf("sendgrid: Subject required")
	}

	var contents []mailContent
	if t := strings.TrimSpace(req.Text); t != "" {
		contents = append(contents, mailContent{Type: "text/plain", Value: t})
	}
	if h := strings.TrimSpace(req.HTML); h != "" {
		contents = append(contents, mailContent{Type: "text/html", Value: h})
	}
	if len(contents) == 0 {
		return nil, fmt.Errorf("sendgrid: Text or HTML content required")
	}

	atts, err := buildAttachments(req.Attachments)
	if err != nil {
		return nil, err
	}

	wire := mailSendRequest{
		Personalizations: []personalization{{To: req.To, CustomArgs: req.CustomArgs}},
		From:             req.From,
		Subject:          req.Subject,
		Content:          contents,
		Categories:       req.Categories,
		Attachments:      atts,
	}
	body, err := json.Marshal(wire)
	if err != nil {
		return nil, err
	}

	return retry.Do(ctx, c.cfg.Retry, retry.Transient, func(ctx context.Context) (*SendEmailResult, error) {
		return c.sendOnce(ctx, body)
	}, func(attempt int, err error, wait time.Duration) {
		c.log.Warn("SendGrid request retrying", "attempt", attempt, "sleep", wait.String(), "error", err.Error())
	})
}

func (c *client) sendOnce(ctx context.Context, body []byte) (*SendEmailResult, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodPost, c.cfg.BaseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, httpx.NewStatusError("sendgrid", resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return &SendEmailResult{
		StatusCode: resp.StatusCode,
		MessageID:  strings.TrimSpace(resp.Header.Get("X-Message-Id")),
	}, nil
}

func buildAttachments(in []Attachment) ([]sgAttachment, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]sgAttachment, 0, len(in))
	for _, a := range in {
		fn := strings.TrimSpace(a.Filename)
		if fn == "" {
			return nil, fmt.Errorf("sendgrid: attachment filename required")
		}
		if len(a.Content) == 0 {
			return nil, fmt.Errorf("sendgrid: attachment %q missing content", fn)
		}
		out = append(out, sgAttachment{
			Content:     base64.StdEncoding.EncodeToString(a.Content),
			Type:        strings.TrimSpace(a.MIMEType),
			Filename:    fn,
			Disposition: "attachment",
		})
	}
	return out, nil
}
