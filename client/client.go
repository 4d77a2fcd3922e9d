// Package client sends signed requests to the bunq API.
//
// It is a thin layer over bunqsig.Engine: it routes endpoints under the API
// version prefix, picks a default method, generates request ids, serializes
// the payload once and transmits exactly the signed bytes.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vitalvas/bunq/bunqsig"
)

// Defaults for Config.
const (
	DefaultBaseURL    = "https://api.bunq.com"
	DefaultAPIVersion = "v1"
	DefaultTimeout    = 30 * time.Second
)

// Config configures a Client.
type Config struct {
	// BaseURL is the scheme and host of the API. Defaults to DefaultBaseURL.
	BaseURL string

	// APIVersion is the path prefix segment. Defaults to DefaultAPIVersion.
	APIVersion string

	// HTTPClient sends requests. Defaults to a client with DefaultTimeout.
	HTTPClient *http.Client

	// Logger receives request and verification events. Defaults to a no-op
	// logger.
	Logger *zap.Logger

	// Verify enables response signature verification.
	Verify bool

	// Defaults holds the fixed request header values.
	Defaults bunqsig.HeaderDefaults

	// RequestID generates X-Bunq-Client-Request-Id values. Defaults to
	// bunqsig.NewRequestID.
	RequestID func() string
}

// Client sends signed API requests. It is safe for concurrent use.
type Client struct {
	engine     *bunqsig.Engine
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     *zap.Logger
	verify     bool
	defaults   bunqsig.HeaderDefaults
	requestID  func() string
}

// New creates a Client that signs with engine.
func New(engine *bunqsig.Engine, cfg Config) (*Client, error) {
	if engine == nil {
		return nil, bunqsig.ErrNoEngine
	}

	c := &Client{
		engine:     engine,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiVersion: strings.Trim(cfg.APIVersion, "/"),
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
		verify:     cfg.Verify,
		defaults:   cfg.Defaults,
		requestID:  cfg.RequestID,
	}

	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}

	if c.apiVersion == "" {
		c.apiVersion = DefaultAPIVersion
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	if c.logger == nil {
		c.logger = zap.NewNop()
	}

	if c.requestID == nil {
		c.requestID = bunqsig.NewRequestID
	}

	if c.verify && !engine.CanVerify() {
		c.logger.Warn("response verification enabled without a server public key, responses will be reported as skipped")
	}

	return c, nil
}

// Response is a fully read API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// RequestID is the X-Bunq-Client-Request-Id sent with the request.
	RequestID string

	// Verification is the response signature outcome. It is OutcomeUnknown
	// when verification was not requested.
	Verification bunqsig.VerifyOutcome
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// ResolvePath places endpoint under the API version prefix. Endpoints
// without a leading slash become "/<version>/<endpoint>"; endpoints with a
// leading slash that are not already under "/<version>" are prefixed with
// it.
func ResolvePath(version, endpoint string) string {
	prefix := "/" + strings.Trim(version, "/")

	if !strings.HasPrefix(endpoint, "/") {
		return prefix + "/" + endpoint
	}

	if endpoint == prefix || strings.HasPrefix(endpoint, prefix+"/") || strings.HasPrefix(endpoint, prefix+"?") {
		return endpoint
	}

	return prefix + endpoint
}

// Do sends a signed request. When method is empty it is GET without a
// payload and POST with one; empty payloads such as {} or a nil map count as
// no payload. endpoint may include a query string.
func (c *Client) Do(ctx context.Context, method, endpoint string, payload any) (*Response, error) {
	body, err := bunqsig.EncodeBody(payload)
	if err != nil {
		return nil, err
	}

	if method == "" {
		if body == nil {
			method = http.MethodGet
		} else {
			method = http.MethodPost
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+ResolvePath(c.apiVersion, endpoint), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	// Sign the request target as net/http writes it, with the path escaped.
	path := req.URL.RequestURI()
	requestID := c.requestID()

	signed, err := c.engine.SignRequest(bunqsig.Request{
		Method: method,
		Path:   path,
		Header: c.defaults.Header(requestID),
		Body:   body,
	})
	if err != nil {
		return nil, err
	}

	req.Header = signed.Header.HTTP()
	if signed.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger := c.logger.With(
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	out := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       raw,
		RequestID:  requestID,
	}

	if c.verify {
		outcome, reason := c.engine.VerifyResponseReason(bunqsig.ResponseFromHTTP(resp, raw))
		bunqsig.LogVerification(logger, outcome, reason, zap.Int("status", resp.StatusCode))

		out.Verification = outcome
	}

	logger.Debug("request completed", zap.Int("status", resp.StatusCode))

	return out, nil
}

// Get sends a GET request.
func (c *Client) Get(ctx context.Context, endpoint string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, endpoint, nil)
}

// Post sends a POST request with payload.
func (c *Client) Post(ctx context.Context, endpoint string, payload any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, endpoint, payload)
}

// Put sends a PUT request with payload.
func (c *Client) Put(ctx context.Context, endpoint string, payload any) (*Response, error) {
	return c.Do(ctx, http.MethodPut, endpoint, payload)
}

// Delete sends a DELETE request.
func (c *Client) Delete(ctx context.Context, endpoint string) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, endpoint, nil)
}
