package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alwaysPass(_ context.Context) error { return nil }

func alwaysFail(msg string) CheckFunc {
	return func(_ context.Context) error {
		return errors.New(msg)
	}
}

func serveLive(h *Health) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
	return w
}

func serveReady(h *Health) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	return w
}

func decodeStatus(t *testing.T, w *httptest.ResponseRecorder) statusResponse {
	t.Helper()
	var body statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestLiveEndpoint(t *testing.T) {
	t.Run("all passing", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("goroutines", time.Second, alwaysPass)
		h.AddLivenessCheck("gc", time.Second, alwaysPass)

		w := serveLive(h)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.Equal(t, "ok", decodeStatus(t, w).Status)
	})

	t.Run("no checks registered", func(t *testing.T) {
		w := serveLive(New())

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", decodeStatus(t, w).Status)
	})

	t.Run("failing past threshold", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("db", time.Second, alwaysFail("connection refused"))

		// Probes start healthy; three consecutive failures flip them.
		ctx := context.Background()
		for range 3 {
			h.liveness[0].run(ctx)
		}

		w := serveLive(h)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		body := decodeStatus(t, w)
		assert.Equal(t, "unhealthy", body.Status)
		assert.Equal(t, "connection refused", body.Checks["db"])
	})

	t.Run("failing below threshold", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("flaky", time.Second, alwaysFail("temporary"))

		ctx := context.Background()
		h.liveness[0].run(ctx)
		h.liveness[0].run(ctx)

		assert.Equal(t, http.StatusOK, serveLive(h).Code)
	})
}

func TestReadyEndpoint(t *testing.T) {
	t.Run("ready and passing", func(t *testing.T) {
		h := New()
		h.AddReadinessCheck("postgres", time.Second, alwaysPass)
		h.SetReady(true)

		w := serveReady(h)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", decodeStatus(t, w).Status)
	})

	t.Run("not marked ready", func(t *testing.T) {
		h := New()
		h.AddReadinessCheck("postgres", time.Second, alwaysPass)

		w := serveReady(h)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		body := decodeStatus(t, w)
		assert.Equal(t, "unhealthy", body.Status)
		assert.Contains(t, body.Checks, "_readiness")
	})

	t.Run("drained via SetReady(false)", func(t *testing.T) {
		h := New()
		h.SetReady(true)
		assert.Equal(t, http.StatusOK, serveReady(h).Code)

		h.SetReady(false)
		assert.Equal(t, http.StatusServiceUnavailable, serveReady(h).Code)
	})

	t.Run("one of two probes failing", func(t *testing.T) {
		h := New()
		h.AddReadinessCheck("postgres", time.Second, alwaysPass)
		h.AddReadinessCheck("gateway", time.Second, alwaysFail("502 from upstream"))
		h.SetReady(true)

		ctx := context.Background()
		for range 3 {
			h.readiness[1].run(ctx)
		}

		w := serveReady(h)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		body := decodeStatus(t, w)
		assert.Contains(t, body.Checks, "gateway")
		assert.NotContains(t, body.Checks, "postgres")
	})
}

func TestIsReady(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, alwaysPass)

	assert.False(t, h.IsReady(), "not ready before SetReady")

	h.SetReady(true)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestProbeRecovery(t *testing.T) {
	var mu sync.Mutex
	failing := true
	h := New()
	h.AddLivenessCheck("flaky", time.Second, func(_ context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		if failing {
			return errors.New("down")
		}
		return nil
	})
	p := h.liveness[0]
	ctx := context.Background()

	for range 3 {
		p.run(ctx)
	}
	_, failed := p.failure()
	assert.True(t, failed)

	mu.Lock()
	failing = false
	mu.Unlock()

	// successThreshold is 1, so a single pass recovers.
	p.run(ctx)
	_, failed = p.failure()
	assert.False(t, failed)
}

func TestProbeReportsLastError(t *testing.T) {
	h := New()
	h.AddLivenessCheck("db", time.Second, alwaysFail("timeout"))
	p := h.liveness[0]

	ctx := context.Background()
	for range 3 {
		p.run(ctx)
	}

	msg, failed := p.failure()
	assert.True(t, failed)
	assert.Equal(t, "timeout", msg)
}

func TestStartAndStop(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, alwaysPass)

	h.Start(context.Background(), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	// Stop is idempotent.
	h.Stop()
	h.Stop()
}

func TestConcurrentEndpointAccess(t *testing.T) {
	h := New()
	h.AddLivenessCheck("live", time.Second, alwaysFail("err"))
	h.AddReadinessCheck("ready", time.Second, alwaysPass)
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, 5*time.Millisecond)
	defer h.Stop()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.IsReady()
				serveLive(h)
				serveReady(h)
			}
		}()
	}
	wg.Wait()
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}

func TestGCMaxPauseCheck(t *testing.T) {
	assert.NoError(t, GCMaxPauseCheck(time.Hour)(context.Background()))
}
