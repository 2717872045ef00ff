package fcclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"earnframe/internal/metrics"
)

// maxBody caps how much of an upstream response is read.
const maxBody = 4 << 20

// Options tune a Transport. Zero values fall back to defaults.
type Options struct {
	Timeout     time.Duration
	MaxAttempts int
	BaseBackoff time.Duration
	RPS         float64
	Burst       int
	HTTPClient  *http.Client
}

// Transport is the shared HTTP core of the upstream clients: per-call timeout,
// token bucket, and retry on 429/5xx with Retry-After support.
type Transport struct {
	name        string
	httpClient  *http.Client
	limiter     *rate.Limiter
	timeout     time.Duration
	maxAttempts int
	baseBackoff time.Duration
}

func NewTransport(name string, opts Options) *Transport {
	t := &Transport{
		name:        name,
		httpClient:  opts.HTTPClient,
		limiter:     newLimiter(opts.RPS, opts.Burst),
		timeout:     opts.Timeout,
		maxAttempts: opts.MaxAttempts,
		baseBackoff: opts.BaseBackoff,
	}
	if t.httpClient == nil {
		t.httpClient = &http.Client{}
	}
	if t.timeout <= 0 {
		t.timeout = 3 * time.Second
	}
	if t.maxAttempts <= 0 {
		t.maxAttempts = 1
	}
	if t.baseBackoff <= 0 {
		t.baseBackoff = 200 * time.Millisecond
	}
	return t
}

// Name is the provider label used in logs and metrics.
func (t *Transport) Name() string { return t.name }

// Result is a fully read upstream response.
type Result struct {
	Status int
	Body   []byte
}

func (r Result) OK() bool { return r.Status >= 200 && r.Status <= 299 }

// Call sends req and reads the whole body, all within the transport timeout.
// A returned error is always a transport failure; HTTP statuses are reported
// through Result.
func (t *Transport) Call(ctx context.Context, req *http.Request) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	if err := t.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("%s: rate limit wait: %w", t.name, err)
	}
	resp, err := t.doWithRetry(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", t.name, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return Result{}, fmt.Errorf("%s: read body: %w", t.name, err)
	}
	return Result{Status: resp.StatusCode, Body: body}, nil
}

func (t *Transport) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	backoff := t.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		if attempt > 1 {
			metrics.IncAPIRetry(t.name + req.URL.Path)
		}
		r := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			r.Body = body
		}
		resp, err := t.httpClient.Do(r)
		if err == nil {
			retryable := resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599)
			if !retryable || attempt == t.maxAttempts {
				return resp, nil
			}
			wait := retryAfter(resp.Header.Get("Retry-After"), backoff)
			_ = resp.Body.Close()
			if err := sleep(ctx, jitter(wait)); err != nil {
				return nil, err
			}
			backoff *= 2
			continue
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, err
		}
		if attempt < t.maxAttempts {
			if err := sleep(ctx, backoff); err != nil {
				return nil, err
			}
			backoff *= 2
		}
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", t.maxAttempts, lastErr)
}

func retryAfter(v string, def time.Duration) time.Duration {
	if v == "" {
		return def
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return def
}

// jitter spreads wait by +/-20%.
func jitter(wait time.Duration) time.Duration {
	j := time.Duration(float64(wait) * 0.2)
	if j <= 0 {
		return wait
	}
	return wait - j + time.Duration(time.Now().UnixNano()%int64(2*j))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
