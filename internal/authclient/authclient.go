// Package authclient verifies bearer tokens against the platform's auth
// service. The realtime server never mints or inspects tokens itself.
package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/MehulChauhan-07/TakTix-Gaming-Platform/pkg/matchdto"
)

var ErrUnauthorized = errors.New("token rejected")

type Client struct {
	verifyURL string
	http      *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func NewClient(verifyURL string, opts ...Option) *Client {
	c := &Client{
		verifyURL:      strings.TrimRight(verifyURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		defaultTimeout: 5 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type verifyResponse struct {
	User matchdto.Identity `json:"user"`
}

// Verify resolves a bearer token to an identity. A definitive rejection from
// the auth service is ErrUnauthorized; transient upstream failures are
// retried with backoff.
func (c *Client) Verify(ctx context.Context, token string) (matchdto.Identity, error) {
	if strings.TrimSpace(token) == "" {
		return matchdto.Identity{}, ErrUnauthorized
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(c.verifyURL)
	req.Header.Set("Authorization", "Bearer "+token)

	attempts := c.retryMax
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("auth request failed: %w", err)
			if attempt == attempts {
				return matchdto.Identity{}, lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return matchdto.Identity{}, lastErr
			}
			continue
		}

		status := resp.StatusCode()
		switch {
		case status == fasthttp.StatusUnauthorized || status == fasthttp.StatusForbidden:
			return matchdto.Identity{}, ErrUnauthorized
		case status < 200 || status >= 300:
			lastErr = fmt.Errorf("auth api error: status=%d body=%s", status, truncate(string(resp.Body()), 512))
			if attempt == attempts || !shouldRetryStatus(status) {
				return matchdto.Identity{}, lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return matchdto.Identity{}, lastErr
			}
			continue
		}

		var out verifyResponse
		if err := json.Unmarshal(resp.Body(), &out); err != nil {
			return matchdto.Identity{}, fmt.Errorf("decode auth response: %w", err)
		}
		if strings.TrimSpace(out.User.ID) == "" {
			return matchdto.Identity{}, fmt.Errorf("auth response missing user id")
		}
		return out.User, nil
	}
	return matchdto.Identity{}, lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		clientDL := time.Now().Add(c.defaultTimeout)
		if dl.Before(clientDL) {
			return dl
		}
		return clientDL
	}
	return time.Now().Add(c.defaultTimeout)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
