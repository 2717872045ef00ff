package fcclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// helper to create a transport with fast retries
func newTestTransport(client *http.Client) *Transport {
	return NewTransport("test", Options{
		Timeout:     2 * time.Second,
		MaxAttempts: 3,
		BaseBackoff: 10 * time.Millisecond,
		RPS:         1000,
		Burst:       100,
		HTTPClient:  client,
	})
}

func TestCallRetriesOn429(t *testing.T) {
	var attempts int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	tr := newTestTransport(ts.Client())
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/test", nil)
	res, err := tr.Call(context.Background(), req)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if res.Status != http.StatusOK || string(res.Body) != "ok" {
		t.Fatalf("unexpected result %d %q", res.Status, res.Body)
	}
	if atomic.LoadInt32(&attempts) < 2 {
		t.Fatalf("expected at least 2 attempts, got %d", attempts)
	}
}

func TestCallReplaysPostBody(t *testing.T) {
	var attempts int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		if string(b) != `{"q":1}` {
			t.Errorf("body %q", b)
		}
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	tr := newTestTransport(ts.Client())
	req, _ := http.NewRequest(http.MethodPost, ts.URL, strings.NewReader(`{"q":1}`))
	if _, err := tr.Call(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestCallReturnsLastStatusAfterRetries(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	tr := newTestTransport(ts.Client())
	req, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
	res, err := tr.Call(context.Background(), req)
	if err != nil {
		t.Fatalf("expected status result, got %v", err)
	}
	if res.OK() || res.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Status)
	}
}

func TestCallTimesOut(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()

	tr := NewTransport("slow", Options{Timeout: 50 * time.Millisecond, MaxAttempts: 1, HTTPClient: ts.Client()})
	req, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
	_, err := tr.Call(context.Background(), req)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) && !strings.Contains(err.Error(), "deadline") {
		t.Fatalf("expected deadline error, got %v", err)
	}
}
