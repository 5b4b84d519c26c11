package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/matzehuels/text2block/pkg/buildinfo"
	"github.com/matzehuels/text2block/pkg/errors"
	"github.com/matzehuels/text2block/pkg/httputil"
)

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

// client provides shared HTTP functionality for the provider clients.
// It handles retry logic and common request headers.
type client struct {
	provider   string
	http       *http.Client
	headers    map[string]string
	retries    int
	retryDelay time.Duration
}

func newClient(provider string, timeout time.Duration, retries int, headers map[string]string) *client {
	return &client{
		provider:   provider,
		http:       &http.Client{Timeout: timeout},
		headers:    headers,
		retries:    retries,
		retryDelay: time.Second,
	}
}

// postJSON encodes in, POSTs it to url and decodes a 200 response into out.
// Request-specific headers override client defaults for the same key.
func (c *client) postJSON(ctx context.Context, url string, headers map[string]string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", c.provider, err)
	}
	return httputil.Retry(ctx, c.retries, c.retryDelay, func() error {
		return c.do(ctx, url, headers, payload, out)
	})
}

func (c *client) do(ctx context.Context, url string, headers map[string]string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &httputil.RetryableError{Err: fmt.Errorf("%w: %s: %v", ErrNetwork, c.provider, err)}
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", c.provider, err)
	}
	return nil
}

func (c *client) checkStatus(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusTooManyRequests:
		secs, _ := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After")))
		return &httputil.RetryableError{
			Err:   &errors.RateLimitedError{RetryAfter: secs, Message: c.errorMessage(resp)},
			After: time.Duration(secs) * time.Second,
		}
	case code >= 500:
		return &httputil.RetryableError{Err: fmt.Errorf("%w: %s: status %d", ErrNetwork, c.provider, code)}
	default:
		return &APIError{Provider: c.provider, Status: code, Message: c.errorMessage(resp)}
	}
}

// errorMessage extracts error.message from a failed response, falling back to
// the raw body text.
func (c *client) errorMessage(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return ""
	}
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return strings.TrimSpace(string(body))
}
