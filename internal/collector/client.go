package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// Client is a cookie-keeping HTTP client for one site session. Retryable
// statuses are retried with exponential backoff.
type Client struct {
	httpClient *http.Client
	limiter    *RateLimiter
	attempts   int
}

type response struct {
	Status int
	Header http.Header
	Body   []byte
	URL    *url.URL
}

func NewClient(timeout time.Duration, limiter *RateLimiter, retries int) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if retries < 0 {
		retries = 0
	}
	if limiter == nil {
		limiter = NewRateLimiter(2)
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout, Jar: jar},
		limiter:    limiter,
		attempts:   retries + 1,
	}, nil
}

func (c *Client) Get(ctx context.Context, rawURL string, params url.Values) (response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return response{}, err
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return c.do(ctx, http.MethodGet, u.String(), nil)
}

func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values) (response, error) {
	return c.do(ctx, http.MethodPost, rawURL, form)
}

func (c *Client) do(ctx context.Context, method, target string, form url.Values) (response, error) {
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return response{}, err
		}

		var body io.Reader
		if form != nil {
			body = strings.NewReader(form.Encode())
		}
		req, err := http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			return response{}, err
		}
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
		req.Header.Set("User-Agent", "billops-collector/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return response{}, ctx.Err()
			}
			lastErr = err
			continue
		}

		blob, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < c.attempts {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				select {
				case <-ctx.Done():
					return response{}, ctx.Err()
				case <-time.After(backoff):
				}
				lastErr = fmt.Errorf("%s %s: status %d", method, req.URL.Path, resp.StatusCode)
				continue
			}
			return response{}, fmt.Errorf("%s %s: status=%d body=%s", method, req.URL.Path, resp.StatusCode, truncate(blob, 200))
		}

		return response{Status: resp.StatusCode, Header: resp.Header, Body: blob, URL: resp.Request.URL}, nil
	}

	if lastErr == nil {
		lastErr = errors.New("request failed")
	}
	return response{}, lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
