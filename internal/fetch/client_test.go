package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vkuzmenko/dexleads/internal/model"
	"github.com/vkuzmenko/dexleads/internal/ratelimit"
)

func testConfig(retries int) model.HTTPConfig {
	return model.HTTPConfig{
		Timeout:    5 * time.Second,
		UserAgent:  "dexleads-test",
		MaxRetries: retries,
	}
}

// Disable real sleeping for the duration of a test.
func stubSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var waits []time.Duration
	orig := sleepFunc
	sleepFunc = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	t.Cleanup(func() { sleepFunc = orig })
	return &waits
}

func TestClient_SuccessFirstAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(3), ratelimit.NewGroup())

	var out struct {
		OK bool `json:"ok"`
	}
	if err := c.GetJSON(context.Background(), "test", srv.URL, &out); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if !out.OK {
		t.Error("response not decoded")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("expected 1 call, got %d", n)
	}
}

func TestClient_RetryCeilingOn429(t *testing.T) {
	stubSleep(t)

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(testConfig(3), ratelimit.NewGroup())

	_, err := c.Get(context.Background(), "test", srv.URL)
	if err == nil {
		t.Fatal("expected error")
	}

	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if fe.Kind != KindRateLimited {
		t.Errorf("expected rate_limited, got %s", fe.Kind)
	}
	if !fe.Transient() {
		t.Error("429 should be transient")
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", n)
	}
}

func TestClient_RetryAfterHintHonored(t *testing.T) {
	waits := stubSleep(t)

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(3), ratelimit.NewGroup())
	if _, err := c.Get(context.Background(), "test", srv.URL); err != nil {
		t.Fatalf("expected recovery after retry: %v", err)
	}

	if len(*waits) != 1 {
		t.Fatalf("expected 1 backoff sleep, got %d", len(*waits))
	}
	if (*waits)[0] != 7*time.Second {
		t.Errorf("expected Retry-After hint of 7s to be honored, slept %v", (*waits)[0])
	}
}

func TestClient_ClientErrorNotRetried(t *testing.T) {
	stubSleep(t)

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(testConfig(3), ratelimit.NewGroup())

	_, err := c.Get(context.Background(), "test", srv.URL)
	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if fe.Kind != KindClientError {
		t.Errorf("expected client_error, got %s", fe.Kind)
	}
	if fe.Transient() {
		t.Error("404 must not be transient")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("404 must not be retried, got %d attempts", n)
	}
}

func TestClient_ServerErrorRetriedThenRecovers(t *testing.T) {
	stubSleep(t)

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(3), ratelimit.NewGroup())
	if _, err := c.Get(context.Background(), "test", srv.URL); err != nil {
		t.Fatalf("expected success on third attempt: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("expected 3 attempts, got %d", n)
	}
}

func TestClient_CancellationNotTimeout(t *testing.T) {
	stubSleep(t)

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(3), ratelimit.NewGroup())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Get(ctx, "test", srv.URL)
	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if fe.Kind != KindCanceled {
		t.Errorf("expected canceled, got %s", fe.Kind)
	}
	if fe.Transient() {
		t.Error("cancellation must not be transient")
	}
	if !errors.Is(err, context.Canceled) {
		t.Error("context.Canceled should stay reachable through the wrap")
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Errorf("canceled request must not be retried, server saw %d calls", n)
	}
}

func TestClient_HealthTallies(t *testing.T) {
	stubSleep(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/flaky" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(3), ratelimit.NewGroup())

	if _, err := c.Get(context.Background(), "good", srv.URL+"/ok"); err != nil {
		t.Fatalf("good fetch failed: %v", err)
	}
	if _, err := c.Get(context.Background(), "flaky", srv.URL+"/flaky"); err == nil {
		t.Fatal("expected flaky fetch to exhaust retries")
	}

	health := c.Health()
	if h := health["good"]; h.Attempts != 1 || h.Errors != 0 {
		t.Errorf("good service: got %+v", h)
	}
	if h := health["flaky"]; h.Attempts != 3 || h.Errors != 3 {
		t.Errorf("flaky service: got %+v", h)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d := parseRetryAfter("12"); d != 12*time.Second {
		t.Errorf("seconds form: got %v", d)
	}
	if d := parseRetryAfter(""); d != 0 {
		t.Errorf("empty form: got %v", d)
	}
	if d := parseRetryAfter("garbage"); d != 0 {
		t.Errorf("garbage form: got %v", d)
	}
	future := time.Now().Add(30 * time.Second).UTC().Format(http.TimeFormat)
	if d := parseRetryAfter(future); d < 25*time.Second || d > 30*time.Second {
		t.Errorf("http-date form: got %v", d)
	}
}
