// Package clients holds the HTTP clients for the upstream proxy-platform
// APIs the storefront consumes: the plan catalog, the price quote endpoint,
// and coupon validation.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultRequestTimeout = 15 * time.Second

// ErrUpstreamStatus indicates the upstream answered with a non-success code.
var ErrUpstreamStatus = errors.New("upstream returned an error status")

// UpstreamError carries the status code of a non-success upstream response.
// It matches ErrUpstreamStatus under errors.Is.
type UpstreamError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: %d", e.Method, e.Path, e.Status)
}

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstreamStatus }

// HTTPDoer is the transport contract; *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures one upstream API client.
type Config struct {
	BaseURL    string
	APIToken   string
	HTTPClient HTTPDoer
	Timeout    time.Duration
}

type apiClient struct {
	baseURL string
	token   string
	http    HTTPDoer
}

func newAPIClient(cfg Config) (*apiClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("clients: base url is required")
	}
	doer := cfg.HTTPClient
	if doer == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultRequestTimeout
		}
		doer = &http.Client{Timeout: timeout}
	}
	return &apiClient{
		baseURL: baseURL,
		token:   strings.TrimSpace(cfg.APIToken),
		http:    doer,
	}, nil
}

type upstreamError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (c *apiClient) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var upstream upstreamError
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		_ = json.Unmarshal(data, &upstream)
		return &UpstreamError{
			Method:  method,
			Path:    path,
			Status:  resp.StatusCode,
			Message: upstream.Message,
		}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
