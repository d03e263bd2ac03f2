// Package transport performs the outbound HTTP calls made by the webhook
// dispatcher.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-community/core"
	goerrors "github.com/goliatone/go-errors"
)

const KindWebhook = "webhook"

const (
	defaultClientTimeout     = 30 * time.Second
	defaultResponseBodyLimit = 64 << 10
	// bytes read past the limit so the connection can be reused
	maxDrainBytes = 256 << 10
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookClient posts signed payloads to subscriber endpoints. Receiver
// response bodies are kept only up to a limit; anything longer is truncated,
// never treated as a failed delivery.
type WebhookClient struct {
	client    HTTPDoer
	headers   map[string]string
	bodyLimit int64
}

type ClientOption func(*WebhookClient)

// WithDefaultHeader is sent on every request unless the request overrides it.
func WithDefaultHeader(key, value string) ClientOption {
	return func(c *WebhookClient) {
		if key = strings.TrimSpace(key); key != "" {
			c.headers[http.CanonicalHeaderKey(key)] = strings.TrimSpace(value)
		}
	}
}

// WithResponseBodyLimit caps the response bytes kept when a request sets none.
func WithResponseBodyLimit(limit int64) ClientOption {
	return func(c *WebhookClient) {
		if limit > 0 {
			c.bodyLimit = limit
		}
	}
}

func NewWebhookClient(client HTTPDoer, opts ...ClientOption) *WebhookClient {
	if client == nil {
		client = &http.Client{Timeout: defaultClientTimeout}
	}
	c := &WebhookClient{
		client:    client,
		headers:   map[string]string{},
		bodyLimit: defaultResponseBodyLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (*WebhookClient) Kind() string {
	return KindWebhook
}

func (c *WebhookClient) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if c == nil || c.client == nil {
		return core.TransportResponse{}, transportError(
			"transport: webhook client requires an http client",
			goerrors.CategoryInternal,
			map[string]any{"adapter": KindWebhook},
		)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	method := strings.TrimSpace(strings.ToUpper(req.Method))
	if method == "" {
		method = http.MethodPost
	}
	target, err := ValidateURL(req.URL)
	if err != nil {
		return core.TransportResponse{}, err
	}

	requestCtx := ctx
	cancel := func() {}
	if req.Timeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, req.Timeout)
	}
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, method, target.String(), bytes.NewReader(req.Body))
	if err != nil {
		return core.TransportResponse{}, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: create http request",
			map[string]any{"adapter": KindWebhook, "method": method},
		)
	}
	for key, value := range c.headers {
		httpReq.Header.Set(key, value)
	}
	for key, value := range req.Headers {
		if strings.TrimSpace(key) == "" {
			continue
		}
		httpReq.Header.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}

	httpRes, err := c.client.Do(httpReq)
	if err != nil {
		return core.TransportResponse{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: execute http request",
			map[string]any{
				"adapter": KindWebhook,
				"method":  method,
				"host":    target.Host,
				"timeout": errors.Is(err, context.DeadlineExceeded),
			},
		)
	}
	defer httpRes.Body.Close()

	limit := req.MaxBodyLen
	if limit <= 0 {
		limit = c.bodyLimit
	}
	body, err := io.ReadAll(io.LimitReader(httpRes.Body, limit+1))
	if err != nil {
		return core.TransportResponse{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: read response body",
			map[string]any{"adapter": KindWebhook, "status_code": httpRes.StatusCode},
		)
	}
	truncated := int64(len(body)) > limit
	if truncated {
		body = body[:limit]
		_, _ = io.CopyN(io.Discard, httpRes.Body, maxDrainBytes)
	}

	return core.TransportResponse{
		StatusCode: httpRes.StatusCode,
		Headers:    flattenHeaders(httpRes.Header),
		Body:       body,
		Truncated:  truncated,
	}, nil
}

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, transportError("transport: request url is required", goerrors.CategoryBadInput, map[string]any{"adapter": KindWebhook})
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, transportWrapError(err, goerrors.CategoryBadInput, "transport: invalid request url", map[string]any{"adapter": KindWebhook})
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, transportError(
			fmt.Sprintf("transport: url scheme must be http or https, got %q", parsed.Scheme),
			goerrors.CategoryBadInput,
			map[string]any{"adapter": KindWebhook, "scheme": parsed.Scheme},
		)
	}
	if parsed.Host == "" {
		return nil, transportError("transport: url host is required", goerrors.CategoryBadInput, map[string]any{"adapter": KindWebhook})
	}
	return parsed, nil
}

func flattenHeaders(headers http.Header) map[string]string {
	if len(headers) == 0 {
		return map[string]string{}
	}
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		flat[key] = strings.Join(values, ",")
	}
	return flat
}

var _ core.TransportAdapter = (*WebhookClient)(nil)
