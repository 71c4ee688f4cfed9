package throttle

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewRoundTripper_Validation(t *testing.T) {
	testCases := []struct {
		name   string
		rps    int
		burst  int
		expErr error
	}{
		{
			name:   "Invalid RPS (zero)",
			rps:    0,
			burst:  10,
			expErr: ErrMustNotBeZero,
		},
		{
			name:   "Invalid RPS (negative)",
			rps:    -5,
			burst:  10,
			expErr: ErrMustNotBeZero,
		},
		{
			name:   "Invalid Burst (zero)",
			rps:    10,
			burst:  0,
			expErr: ErrMustNotBeZero,
		},
		{
			name:  "Valid input",
			rps:   10,
			burst: 20,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rt, err := NewRoundTripper(tc.rps, tc.burst, func() *slog.Logger { return nil }, http.DefaultTransport)

			if tc.expErr != nil {
				if !errors.Is(err, tc.expErr) {
					t.Errorf("exp err %v; got: %v", tc.expErr, err)
				}
				return
			}

			if err != nil {
				t.Errorf("exp nil err, got: %v", err)
			}
			if rt == nil {
				t.Error("exp non-nil RoundTripper")
			}
		})
	}
}

func TestThrottle_WithinBurst(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusPartialContent)
	}))
	defer ts.Close()

	rt, err := NewRoundTripper(5, 5, nil, http.DefaultTransport)
	if err != nil {
		t.Fatal(err)
	}
	c := &http.Client{Transport: rt}

	start := time.Now()
	for range 5 {
		req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, ts.URL, nil)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Range", "bytes=0-9")

		resp, err := c.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
	}

	if d := time.Since(start); d > 200*time.Millisecond {
		t.Errorf("requests within burst should be fast; took %v", d)
	}
	if stats := rt.Stats(); stats.Delayed != 0 {
		t.Errorf("delayed = %d, want 0 within burst", stats.Delayed)
	}
	if got := calls.Load(); got != 5 {
		t.Errorf("expected 5 server calls, got %d", got)
	}
}

func TestThrottle_ExceedBurstSlowsDown(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPartialContent)
	}))
	defer ts.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	rt, err := NewRoundTripper(10, 2, func() *slog.Logger { return logger }, http.DefaultTransport)
	if err != nil {
		t.Fatal(err)
	}
	c := &http.Client{Transport: rt}

	start := time.Now()
	for i := range 4 {
		req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, ts.URL+"/blob", nil)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Range", "bytes=100-199")

		resp, err := c.Do(req)
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		resp.Body.Close()
	}

	// 2 requests use the burst, the other 2 wait ~100ms each.
	if d := time.Since(start); d < 150*time.Millisecond {
		t.Errorf("expected throttling to slow requests down, took %v", d)
	}

	stats := rt.Stats()
	if stats.Delayed < 2 {
		t.Errorf("delayed = %d, want at least 2", stats.Delayed)
	}
	if stats.Waited < 150*time.Millisecond {
		t.Errorf("waited = %v, want at least 150ms", stats.Waited)
	}

	logs := buf.String()
	if !strings.Contains(logs, "throttle tokens exhausted") {
		t.Errorf("expected exhaustion log, got: %s", logs)
	}
	if !strings.Contains(logs, "range=bytes=100-199") {
		t.Errorf("expected range attr in log, got: %s", logs)
	}
}

func TestThrottle_WaitTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	rt, err := NewRoundTripper(1, 1, nil, http.DefaultTransport)
	if err != nil {
		t.Fatal(err)
	}
	c := &http.Client{Transport: rt}

	// Drain the single token.
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, ts.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := c.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, ts.URL, nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.Do(req)
	if !errors.Is(err, ErrWaitingFailed) {
		t.Errorf("expected ErrWaitingFailed, got: %v", err)
	}
}

func TestThrottle_PreCancelledContext(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	rt, err := NewRoundTripper(20, 10, nil, http.DefaultTransport)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL, nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = rt.RoundTrip(req)
	if !errors.Is(err, ErrContextEnded) {
		t.Errorf("expected ErrContextEnded, got: %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
	if got := calls.Load(); got != 0 {
		t.Errorf("expected no server calls, got %d", got)
	}
}
