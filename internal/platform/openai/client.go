package openai

import (
	"bytes"
	"context"
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

// Client is the LLM rail.
type Client interface {
	// GenerateText returns the assistant's output_text for one system+user turn.
	GenerateText(ctx context.Context, system string, user string) (string, error)
}

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float64
	Timeout     time.Duration
	Retry       retry.Policy
	// RequestsPerSecond bounds outbound calls; 0 disables limiting.
	RequestsPerSecond float64
}

func ConfigFromEnv() Config {
	cfg := Config{
		APIKey:            envutil.String("OPENAI_API_KEY", ""),
		BaseURL:           envutil.String("OPENAI_BASE_URL", "https://api.openai.com"),
		Model:             envutil.String("OPENAI_MODEL", "gpt-4o-mini"),
		Timeout:           envutil.Duration("OPENAI_TIMEOUT_SECONDS", 60*time.Second),
		Retry:             retry.Linear(envutil.Int("OPENAI_MAX_ATTEMPTS", 3), envutil.Duration("OPENAI_RETRY_BASE", 2*time.Second)),
		RequestsPerSecond: envutil.Float("OPENAI_RPS", 2),
	}
	if !envutil.Bool("OPENAI_DISABLE_TEMPERATURE", false) {
		t := envutil.Float("OPENAI_TEMPERATURE", 0)
		cfg.Temperature = &t
	}
	return cfg
}

func NewFromEnv(log *logger.Logger) (Client, error) {
	return New(log, ConfigFromEnv())
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.Linear(3, 2*time.Second)
	}
	c := &client{
		log:        log.With("service", "OpenAIClient"),
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

type inputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responsesRequest struct {
	Model       string         `json:"model"`
	Input       []inputMessage `json:"input"`
	Temperature *float64       `json:"temperature,omitempty"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	Refusal string `json:"refusal,omitempty"`
}

func extractOutputText(resp responsesResponse) string {
	var out strings.Builder
	for _, item := range resp.Output {
		if item.Type != "message" || item.Role != "assistant" {
			continue
		}
		for _, c := range item.Content {
			if c.Type == "output_text" && c.Text != "" {
				out.WriteString(c.Text)
			}
		}
	}
	return out.String()
}

func (c *client) GenerateText(ctx context.Context, system string, user string) (string, error) {
	req := responsesRequest{
		Model: c.cfg.Model,
		Input: []inputMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.cfg.Temperature,
	}

	resp, err := c.generate(ctx, &req)
	if err != nil && req.Temperature != nil && isUnsupportedTemperature(err) {
		// Some reasoning models reject temperature outright; retry once without it.
		req.Temperature = nil
		resp, err = c.generate(ctx, &req)
	}
	if err != nil {
		return "", err
	}
	if resp.Refusal != "" {
		return "", fmt.Errorf("model refused: %s", resp.Refusal)
	}
	text := extractOutputText(*resp)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no output_text found in response")
	}
	return text, nil
}

func (c *client) generate(ctx context.Context, req *responsesRequest) (*responsesResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return retry.Do(ctx, c.cfg.Retry, retry.Transient, func(ctx context.Context) (*responsesResponse, error) {
		return c.doOnce(ctx, body)
	}, func(attempt int, err error, wait time.Duration) {
		c.log.Warn("OpenAI request retrying", "model", req.Model, "attempt", attempt, "sleep", wait.String(), "error", err.Error())
	})
}

func (c *client) doOnce(ctx context.Context, body []byte) (*responsesResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	httpReq, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodPost, c.cfg.BaseURL+"/v1/responses", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, httpx.NewStatusError("openai", resp)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var out responsesResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("openai decode error: %w", err)
	}
	return &out, nil
}

func isUnsupportedTemperature(err error) bool {
	if httpx.StatusCode(err) != http.StatusBadRequest {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "temperature") &&
		(strings.Contains(msg, "unsupported") || strings.Contains(msg, "not supported") || strings.Contains(msg, "does not support"))
}
