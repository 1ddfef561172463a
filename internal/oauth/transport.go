package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/linkd/internal/shared"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 1 << 20

// FailureKind tags why a request failed.
type FailureKind int

const (
	FailureNetwork FailureKind = iota // transport or connection error
	FailureStatus                     // non-2xx response
	FailureDecode                     // body was not valid JSON
)

func (k FailureKind) String() string {
	switch k {
	case FailureNetwork:
		return "network"
	case FailureStatus:
		return "status"
	case FailureDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// RequestError is the failure half of a [Transport] result.
type RequestError struct {
	Kind   FailureKind
	Method string
	URL    string
	Status int
	Body   string
	Err    error
}

func (e *RequestError) Error() string {
	switch e.Kind {
	case FailureStatus:
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.Status)
	default:
		return fmt.Sprintf("%s %s: %s error: %v", e.Method, e.URL, e.Kind, e.Err)
	}
}

func (e *RequestError) Unwrap() error { return e.Err }

// Is makes every RequestError match [shared.ErrRequestFailed].
func (e *RequestError) Is(target error) bool {
	return target == shared.ErrRequestFailed
}

// Request describes a single outbound call.
//
// Form is sent as application/x-www-form-urlencoded and takes precedence over JSON.
type Request struct {
	Method  string
	URL     string
	Bearer  string
	Form    url.Values
	JSON    any
	Headers map[string]string
}

// Payload is a decoded JSON object.
type Payload map[string]any

// String returns the value at key when it is a non-empty string.
func (p Payload) String(key string) (string, bool) {
	s, ok := p[key].(string)
	return s, ok && s != ""
}

// TransportOptions configures [NewTransport].
type TransportOptions struct {
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables
	Burst     int
	Client    *http.Client
	Logger    *log.Logger
}

// Transport performs provider API calls.
type Transport struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewTransport builds a [Transport]. A zero Timeout falls back to ten seconds.
func NewTransport(opts TransportOptions) *Transport {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Transport{client: client, limiter: limiter, logger: logger}
}

// Send performs req and decodes the response body as a JSON object.
func (t *Transport) Send(ctx context.Context, req Request) (Payload, error) {
	var payload Payload
	if err := t.Do(ctx, req, &payload); err != nil {
		return nil, err
	}
	if payload == nil {
		payload = Payload{}
	}
	return payload, nil
}

// Do performs req and decodes the response body into out.
func (t *Transport) Do(ctx context.Context, req Request, out any) error {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	fail := func(kind FailureKind, status int, body string, err error) error {
		rerr := &RequestError{Kind: kind, Method: method, URL: req.URL, Status: status, Body: body, Err: err}
		t.logger.Warn("provider request failed", "method", method, "url", req.URL, "kind", kind, "status", status, "err", err)
		requestsTotal.WithLabelValues(kind.String()).Inc()
		return rerr
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return fail(FailureNetwork, 0, "", err)
		}
	}

	httpReq, err := t.build(ctx, method, req)
	if err != nil {
		return fail(FailureNetwork, 0, "", err)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return fail(FailureNetwork, 0, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fail(FailureNetwork, resp.StatusCode, "", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(FailureStatus, resp.StatusCode, string(body), nil)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fail(FailureDecode, resp.StatusCode, string(body), err)
	}

	t.logger.Debug("provider request", "method", method, "url", req.URL, "status", resp.StatusCode)
	requestsTotal.WithLabelValues("ok").Inc()
	return nil
}

func (t *Transport) build(ctx context.Context, method string, req Request) (*http.Request, error) {
	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.Form != nil:
		body = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.JSON != nil:
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.Bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Bearer)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	return httpReq, nil
}
