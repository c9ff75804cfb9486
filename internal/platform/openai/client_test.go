package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/forfeit-backend/internal/platform/logger"
	"github.com/yungbote/forfeit-backend/internal/platform/retry"
)

const okBody = `{"output":[{"type":"message","role":"assistant","content":[{"type":"output_text","text":"{\"verdict\":\"pass\"}"}]}]}`

func newTestClient(t *testing.T, url string) Client {
	t.Helper()
	log, _ := logger.New("test")
	temp := 0.0
	c, err := New(log, Config{APIKey: "k", BaseURL: url, Model: "m", Temperature: &temp, Retry: retry.Linear(3, time.Millisecond)})
	require.NoError(t, err)
	return c
}

func TestGenerateTextRetriesRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(okBody))
	}))
	defer srv.Close()

	text, err := newTestClient(t, srv.URL).GenerateText(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"verdict":"pass"}`, text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGenerateTextDropsUnsupportedTemperature(t *testing.T) {
	var sawWithout bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if _, ok := req["temperature"]; ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"Unsupported parameter: 'temperature' is not supported with this model."}}`))
			return
		}
		sawWithout = true
		_, _ = w.Write([]byte(okBody))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).GenerateText(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.True(t, sawWithout)
}

func TestGenerateTextFailsOnEmptyOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"output":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).GenerateText(context.Background(), "sys", "user")
	assert.Error(t, err)
}
