package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentops/internal/adapter/cache"
	"contentops/internal/domain"
	"contentops/internal/infra/config"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type webhook struct {
	srv      *httptest.Server
	posts    atomic.Int32
	mu       sync.Mutex
	payloads []map[string]any
	status   int
}

func newWebhook(t *testing.T) *webhook {
	w := &webhook{status: http.StatusOK}
	w.srv = httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		w.posts.Add(1)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.mu.Lock()
		w.payloads = append(w.payloads, body)
		status := w.status
		w.mu.Unlock()
		rw.WriteHeader(status)
	}))
	t.Cleanup(w.srv.Close)
	return w
}

func (w *webhook) setStatus(code int) {
	w.mu.Lock()
	w.status = code
	w.mu.Unlock()
}

func (w *webhook) captured() []map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]map[string]any(nil), w.payloads...)
}

func newSink(url string, clk *clock) *Slack {
	cfg := config.NotifyConfig{WebhookURL: url, Timeout: time.Second, Username: "contentops"}
	return NewSlack(cfg, cache.NewMemory(), newTestLogger(), nil, WithClock(clk.Now))
}

func TestSendAlertWithoutWebhook(t *testing.T) {
	s := NewSlack(config.NotifyConfig{}, cache.NewMemory(), newTestLogger(), nil)
	assert.False(t, s.Available())
	assert.False(t, s.SendAlert(context.Background(), domain.Alert{Level: domain.LevelInfo, Title: "x"}))
}

func TestSendAlertPayload(t *testing.T) {
	wh := newWebhook(t)
	clk := &clock{t: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	s := newSink(wh.srv.URL, clk)

	fields := make([]domain.AlertField, 15)
	for i := range fields {
		fields[i] = domain.AlertField{Name: "f", Value: "v"}
	}
	ok := s.SendAlert(context.Background(), domain.Alert{
		Level: domain.LevelCritical, Title: "CPU critical", Message: "cpu at 97%", Fields: fields, Type: "system_alert",
	})
	require.True(t, ok)
	payloads := wh.captured()
	require.Len(t, payloads, 1)

	att := payloads[0]["attachments"].([]any)[0].(map[string]any)
	assert.Equal(t, "🚨 CPU critical", att["title"])
	assert.Equal(t, "cpu at 97%", att["text"])
	assert.Len(t, att["fields"], domain.MaxAlertFields)
	assert.Equal(t, "contentops | system_alert", att["footer"])
	assert.EqualValues(t, clk.Now().Unix(), att["ts"])
	assert.Equal(t, "contentops", payloads[0]["username"])
}

func TestSendAlertTransportFailure(t *testing.T) {
	wh := newWebhook(t)
	wh.setStatus(http.StatusInternalServerError)
	clk := &clock{t: time.Now()}
	s := newSink(wh.srv.URL, clk)

	alert := domain.Alert{Level: domain.LevelWarning, Title: "disk", Rule: "disk", Cooldown: 30 * time.Minute}
	assert.False(t, s.SendAlert(context.Background(), alert))

	// A failed send does not start the cooldown.
	wh.setStatus(http.StatusOK)
	assert.True(t, s.SendAlert(context.Background(), alert))
	assert.Equal(t, int32(2), wh.posts.Load())
}

func TestRuleCooldown(t *testing.T) {
	wh := newWebhook(t)
	clk := &clock{t: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)}
	s := newSink(wh.srv.URL, clk)
	ctx := context.Background()
	alert := domain.Alert{Level: domain.LevelWarning, Title: "CPU high", Rule: "cpu", Cooldown: 30 * time.Minute}

	assert.True(t, s.SendAlert(ctx, alert))
	clk.Advance(5 * time.Minute)
	assert.False(t, s.SendAlert(ctx, alert))
	assert.Equal(t, int32(1), wh.posts.Load())

	// Other rules are independent.
	assert.True(t, s.SendAlert(ctx, domain.Alert{Level: domain.LevelWarning, Title: "mem", Rule: "memory"}))

	clk.Advance(30 * time.Minute)
	assert.True(t, s.SendAlert(ctx, alert))
	assert.Equal(t, int32(3), wh.posts.Load())
}

func TestAlertsWithoutRuleAreNotDebounced(t *testing.T) {
	wh := newWebhook(t)
	s := newSink(wh.srv.URL, &clock{t: time.Now()})
	for i := 0; i < 3; i++ {
		assert.True(t, s.SendAlert(context.Background(), domain.Alert{Level: domain.LevelError, Title: "Task failed", Message: "boom"}))
	}
	assert.Equal(t, int32(3), wh.posts.Load())
}
