package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.DispatchStarted()
	m.DispatchFinished("QA_CHECKER", "completed", time.Second, true)
	m.VendorCall("serpapi", "searchTrends", OutcomeOK, time.Millisecond)
	m.Notification("info", "sent")
	m.AlertFired("cpu", "warning")
	m.QueueDepth(3)
	m.QueueDropped()
}

func TestDispatchCounters(t *testing.T) {
	m := New(time.Minute)
	m.DispatchStarted()
	m.DispatchFinished("TREND_MONITOR", "completed", 2*time.Second, true)
	m.DispatchFinished("TREND_MONITOR", "rejected", 0, false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatchTotal.WithLabelValues("TREND_MONITOR", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatchTotal.WithLabelValues("TREND_MONITOR", "rejected")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.agentsRunning))
}

func TestVendorCallFeedsWindowAndQuota(t *testing.T) {
	m := New(time.Minute)
	m.VendorCall("youtube", "searchChannels", OutcomeOK, 100*time.Millisecond)
	m.VendorCall("youtube", "searchChannels", OutcomeError, 300*time.Millisecond)
	m.VendorCall("youtube", "searchChannels", OutcomeMock, 0)
	m.VendorCall("serpapi", "searchTrends", OutcomeCacheHit, 0)

	stats := m.Requests.Stats()
	assert.Equal(t, 2, stats.Count)
	assert.InDelta(t, 50.0, stats.ErrorRate, 0.001)
	assert.InDelta(t, 200.0, stats.AvgLatencyMS, 0.001)
	assert.Equal(t, int64(2), m.Quota.Used("youtube"))
	assert.Equal(t, int64(0), m.Quota.Used("serpapi"), "cache hits do not consume quota")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.vendorCalls.WithLabelValues("serpapi", "searchTrends", OutcomeCacheHit)))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(time.Minute)
	m.Notification("info", "sent")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `contentops_notifications_total{level="info",outcome="sent"} 1`), string(body))
}

func TestWindowExpiresSamples(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := NewWindow(time.Minute, 10)
	w.now = func() time.Time { return now }

	w.Record(false, time.Second)
	now = now.Add(30 * time.Second)
	w.Record(true, time.Second)
	assert.Equal(t, 2, w.Stats().Count)

	now = now.Add(45 * time.Second)
	s := w.Stats()
	assert.Equal(t, 1, s.Count)
	assert.Equal(t, 0, s.Errors)
}

func TestWindowCapacity(t *testing.T) {
	w := NewWindow(time.Hour, 3)
	for i := 0; i < 5; i++ {
		w.Record(i%2 == 0, time.Millisecond)
	}
	assert.Equal(t, 3, w.Stats().Count)
}

func TestWindowEmpty(t *testing.T) {
	s := NewWindow(time.Minute, 0).Stats()
	assert.Equal(t, Stats{}, s)
}

func TestQuotaDailyReset(t *testing.T) {
	now := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	q := NewQuotaTracker()
	q.now = func() time.Time { return now }
	q.day = q.today()

	q.Add("serpapi", 200)
	assert.InDelta(t, 80.0, q.UsagePercent("serpapi", 250), 0.001)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, int64(0), q.Used("serpapi"))
	assert.Equal(t, 0.0, q.UsagePercent("serpapi", 0))
}

func TestQuotaConcurrentAdds(t *testing.T) {
	q := NewQuotaTracker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Add("youtube", 2)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(100), q.Used("youtube"))

	snap := q.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, APIUsage{API: "youtube", Used: 100}, snap[0])
}
