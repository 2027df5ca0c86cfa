package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"blog-client/internal/observability"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 10 << 20

var ErrInvalidRequest = errors.New("request does not match API contract")

// Authenticator supplies bearer tokens and recovers from authorization
// failures. The session manager implements it.
type Authenticator interface {
	AccessToken() string
	// Reauthenticate returns a usable access token after a request sent with
	// staleToken was rejected, or false when the session cannot be recovered.
	Reauthenticate(ctx context.Context, staleToken string) (string, bool)
}

// Request describes one API call. Path is relative to the client base URL.
type Request struct {
	Method string
	Path   string
	JSON   any
	Form   *Form
	// Token overrides the authenticator's current access token
	Token string
	// Public requests carry no bearer token and are never retried on 401
	Public bool
}

func (r *Request) encode() ([]byte, string, error) {
	switch {
	case r.Form != nil:
		return r.Form.Encode()
	case r.JSON != nil:
		body, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal request body: %w", err)
		}
		return body, "application/json", nil
	default:
		return nil, "", nil
	}
}

// Client talks to the blog REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	validator  *Validator
	auth       Authenticator
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-attempt timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{
			Transport: c.httpClient.Transport,
			Timeout:   d,
		}
	}
}

// WithRateLimit caps outgoing requests; rps <= 0 disables the limiter
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// WithValidator checks every outgoing request against an OpenAPI document
func WithValidator(v *Validator) Option {
	return func(c *Client) {
		c.validator = v
	}
}

// NewClient creates a new blog API client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetAuthenticator installs the token source and 401 handler. It must be
// called before the client is shared between goroutines.
func (c *Client) SetAuthenticator(a Authenticator) {
	c.auth = a
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Send performs req and decodes a JSON response into out when out is non-nil.
// It returns the final HTTP status. Non-2xx responses yield an *Error.
//
// A 401 on a non-public request is replayed exactly once with the token
// returned by the authenticator. If reauthentication fails the original 401
// is returned.
func (c *Client) Send(ctx context.Context, req *Request, out any) (int, error) {
	body, contentType, err := req.encode()
	if err != nil {
		return 0, err
	}

	auth := c.auth
	if req.Public {
		auth = nil
	}

	token := req.Token
	if token == "" && auth != nil {
		token = auth.AccessToken()
	}

	status, data, err := c.roundTrip(ctx, req.Method, req.Path, body, contentType, token)
	if err != nil {
		return 0, err
	}

	if status == http.StatusUnauthorized && auth != nil {
		if fresh, ok := auth.Reauthenticate(ctx, token); ok {
			observability.AuthRetriesTotal.Inc()
			observability.FromContext(ctx).Debug("retrying request after reauthentication",
				slog.String("method", req.Method),
				slog.String("path", req.Path))

			status, data, err = c.roundTrip(ctx, req.Method, req.Path, body, contentType, fresh)
			if err != nil {
				return 0, err
			}
		}
	}

	if status < 200 || status > 299 {
		return status, &Error{
			StatusCode: status,
			Method:     req.Method,
			Path:       req.Path,
			Body:       data,
		}
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return status, fmt.Errorf("failed to decode %s response: %w", req.Path, err)
		}
	}

	return status, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte, contentType, token string) (int, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	requestID := observability.RequestIDFrom(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	httpReq.Header.Set("X-Request-ID", requestID)

	if c.validator != nil {
		if err := c.validator.ValidateRequest(ctx, httpReq, body); err != nil {
			return 0, nil, err
		}
	}

	endpoint := endpointLabel(path)
	start := time.Now()

	resp, err := c.httpClient.Do(httpReq)
	elapsed := time.Since(start)
	observability.ClientRequestDuration.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())

	if err != nil {
		observability.ClientRequestsTotal.WithLabelValues(method, endpoint, "error").Inc()
		observability.FromContext(ctx).Warn("api request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	observability.ClientRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	observability.FromContext(ctx).Debug("api request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Int64("latency_ms", elapsed.Milliseconds()),
		slog.String("request_id", requestID))

	return resp.StatusCode, data, nil
}

// endpointLabel collapses slugs out of post paths to keep metric
// cardinality bounded
func endpointLabel(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) > 1 && strings.HasPrefix(segments[0], "post-") {
		return segments[0]
	}
	return strings.Join(segments, "/")
}
