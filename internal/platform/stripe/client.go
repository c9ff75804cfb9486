package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
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

// Client is the payment rail. Amounts are minor currency units.
type Client interface {
	Transfer(ctx context.Context, req TransferRequest) (*Transfer, error)
}

type Config struct {
	SecretKey         string
	BaseURL           string
	Currency          string
	Timeout           time.Duration
	Retry             retry.Policy
	RequestsPerSecond float64
}

func ConfigFromEnv() Config {
	return Config{
		SecretKey:         envutil.String("STRIPE_SECRET_KEY", ""),
		BaseURL:           envutil.String("STRIPE_BASE_URL", "https://api.stripe.com"),
		Currency:          envutil.String("STRIPE_CURRENCY", "usd"),
		Timeout:           envutil.Duration("STRIPE_TIMEOUT_SECONDS", 30*time.Second),
		Retry:             retry.Exponential(envutil.Int("STRIPE_MAX_ATTEMPTS", 3), time.Second),
		RequestsPerSecond: envutil.Float("STRIPE_RPS", 20),
	}
}

func NewFromEnv(log *logger.Logger) (Client, error) {
	return New(log, ConfigFromEnv())
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, fmt.Errorf("missing STRIPE_SECRET_KEY")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.stripe.com"
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.Exponential(3, time.Second)
	}
	c := &client{
		log:        log.With("client", "StripeClient"),
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

type TransferRequest struct {
	AmountCents int64
	// Destination is the connected account receiving the funds.
	Destination string
	Memo        string
	// IdempotencyKey makes retries of the same transfer safe on the provider side.
	IdempotencyKey string
	Metadata       map[string]string
}

type Transfer struct {
	ID          string `json:"id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Destination string `json:"destination"`
}

func (c *client) Transfer(ctx context.Context, req TransferRequest) (*Transfer, error) {
	if req.AmountCents <= 0 {
		return nil, fmt.Errorf("stripe: amount must be positive")
	}
	if strings.TrimSpace(req.Destination) == "" {
		return nil, fmt.Errorf("stripe: destination required")
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.AmountCents, 10))
	form.Set("currency", c.cfg.Currency)
	form.Set("destination", req.Destination)
	if req.Memo != "" {
		form.Set("description", req.Memo)
	}
	for k, v := range req.Metadata {
		form.Set("metadata["+k+"]", v)
	}
	encoded := form.Encode()

	return retry.Do(ctx, c.cfg.Retry, retry.Transient, func(ctx context.Context) (*Transfer, error) {
		return c.transferOnce(ctx, encoded, req.IdempotencyKey)
	}, func(attempt int, err error, wait time.Duration) {
		c.log.Warn("Stripe transfer retrying", "attempt", attempt, "sleep", wait.String(), "error", err.Error())
	})
}

func (c *client) transferOnce(ctx context.Context, form string, idempotencyKey string) (*Transfer, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	httpReq, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodPost, c.cfg.BaseURL+"/v1/transfers", strings.NewReader(form))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, httpx.NewStatusError("stripe", resp)
	}
	var out Transfer
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("stripe decode: %w", err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("stripe: transfer response missing id")
	}
	return &out, nil
}
