// Package httpc provides the rate limited HTTP client shared by the provider adapters
package httpc

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"

	perr "dupehound/internal/platform/errors"
	"dupehound/internal/platform/logger"
	"dupehound/internal/platform/metrics"
)

const (
	defaultMaxConcurrent = 4
	defaultMaxRetries    = 5
	defaultBackoffBase   = 500 * time.Millisecond
	defaultBackoffMax    = 30 * time.Second
	defaultTimeout       = 30 * time.Second
)

// Doer is the fetch primitive the client wraps, satisfied by *http.Client
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// WaitFunc extracts a provider specific wait from a throttled response,
// e.g. x-ratelimit-reset for GitHub. Zero falls through to Retry-After
// and then the jittered exponential backoff
type WaitFunc func(*http.Response) time.Duration

// Options configures a Client
type Options struct {
	// Name tags log lines and metrics so shared consumers can be told apart
	Name string

	// MaxConcurrent caps in flight requests; waiters are woken in FIFO order
	MaxConcurrent int

	// MaxRetries bounds retries of 429 and 403 responses. Once exhausted the
	// last response is handed back so callers can inspect the status
	MaxRetries int

	// BackoffBase and BackoffMax bound the jittered exponential backoff
	BackoffBase time.Duration
	BackoffMax  time.Duration

	// Wait is consulted first when a response is throttled
	Wait WaitFunc

	// Metrics, when set, counts request dispositions per provider
	Metrics *metrics.Metrics
}

// Client wraps a Doer with concurrency limiting and throttle aware retries
type Client struct {
	doer  Doer
	sem   *semaphore.Weighted
	opts  Options
	log   logger.Logger
	now   func() time.Time
	sleep func(time.Duration)
	randf func() float64
}

// New builds a Client with sane defaults; a nil Doer gets a timeout-capped http.Client
func New(d Doer, o Options) *Client {
	if d == nil {
		d = &http.Client{Timeout: defaultTimeout}
	}
	if o.Name == "" {
		o.Name = "httpc"
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = defaultMaxConcurrent
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = defaultBackoffBase
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = defaultBackoffMax
	}
	return &Client{
		doer:  d,
		sem:   semaphore.NewWeighted(int64(o.MaxConcurrent)),
		opts:  o,
		log:   *logger.Named(o.Name),
		now:   time.Now,
		sleep: time.Sleep,
		randf: rand.Float64,
	}
}

// Do issues req through the semaphore and retries throttled responses.
// Requests with a body need GetBody to be retried; without it the first
// throttled response is returned as-is
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	retries := c.opts.MaxRetries
	if req.Body != nil && req.GetBody == nil {
		retries = 0
	}

	for attempt := 0; ; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		r := req
		if attempt > 0 {
			var err error
			if r, err = rewind(ctx, req); err != nil {
				return nil, err
			}
		}

		resp, err := c.roundTrip(ctx, r)
		if err != nil {
			return nil, err
		}

		if !throttled(resp.StatusCode) {
			return resp, nil
		}
		if attempt >= retries {
			c.count("exhausted")
			return resp, nil
		}

		wait := c.throttleWait(resp, attempt)
		c.log.Warn().
			Int("status", resp.StatusCode).
			Int("attempt", attempt).
			Dur("wait", wait).
			Str("url", req.URL.Path).
			Msg("throttled backing off")
		_ = drainAndClose(resp.Body)
		c.count("retry")
		c.sleep(wait)
	}
}

func (c *Client) roundTrip(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	c.count("request")
	resp, err := c.doer.Do(req)
	if err != nil {
		c.count("error")
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "%s request failed", c.opts.Name)
	}
	return resp, nil
}

// throttleWait picks the backoff for one throttled response: the caller's
// extractor first, then Retry-After, then jittered exponential
func (c *Client) throttleWait(resp *http.Response, attempt int) time.Duration {
	if c.opts.Wait != nil {
		if d := c.opts.Wait(resp); d > 0 {
			return d
		}
	}
	if d := retryAfter(resp.Header, c.now()); d > 0 {
		return d
	}
	return c.jitterBackoff(attempt)
}

// jitterBackoff is base*2^attempt scaled by a uniform factor in [0.5,1.0)
// then clamped to BackoffMax
func (c *Client) jitterBackoff(attempt int) time.Duration {
	if attempt > 62 {
		attempt = 62
	}
	d := float64(c.opts.BackoffBase) * float64(uint64(1)<<uint(attempt))
	d *= 0.5 + 0.5*c.randf()
	if d > float64(c.opts.BackoffMax) {
		d = float64(c.opts.BackoffMax)
	}
	return time.Duration(d)
}

func (c *Client) count(kind string) {
	if c.opts.Metrics != nil {
		c.opts.Metrics.Provider(c.opts.Name, kind)
	}
}

func throttled(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusForbidden
}

// rewind clones req for a retry, reopening the body via GetBody
func rewind(ctx context.Context, req *http.Request) (*http.Request, error) {
	r := req.Clone(ctx)
	if req.Body == nil || req.GetBody == nil {
		return r, nil
	}
	b, err := req.GetBody()
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "rewind request body failed")
	}
	r.Body = b
	return r, nil
}

func drainAndClose(rc io.ReadCloser) error {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 512))
	return rc.Close()
}
