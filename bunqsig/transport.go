package bunqsig

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// VerifyPolicy selects what a Transport does with response signatures.
type VerifyPolicy uint8

const (
	// VerifyOff leaves responses untouched.
	VerifyOff VerifyPolicy = iota

	// VerifyLog verifies every response and logs skipped or failed outcomes
	// without rejecting the response.
	VerifyLog

	// VerifyRequire rejects every response whose outcome is not
	// OutcomeVerified, including skipped verification.
	VerifyRequire
)

// TransportConfig configures a signing Transport.
type TransportConfig struct {
	// Engine signs requests and verifies responses. Required.
	Engine *Engine

	// Verify selects the response verification policy.
	Verify VerifyPolicy

	// Logger receives verification events. Defaults to a no-op logger.
	Logger *zap.Logger

	// OnVerify, when set, is called with every verification outcome. reason
	// is nil unless the outcome is OutcomeFailed.
	OnVerify func(resp *http.Response, outcome VerifyOutcome, reason error)
}

// Transport is an http.RoundTripper that signs outgoing requests with the
// client key and optionally verifies response signatures.
//
// Only Cache-Control, User-Agent and X-Bunq-* headers are covered by the
// signature; headers added by net/http or set after signing, such as
// Content-Type, are not.
type Transport struct {
	base   http.RoundTripper
	config TransportConfig
	logger *zap.Logger
}

// NewTransport creates a signing Transport that delegates to base after
// signing each request. When base is nil, a clone of http.DefaultTransport
// is used.
func NewTransport(base *http.Transport, cfg TransportConfig) (*Transport, error) {
	if cfg.Engine == nil {
		return nil, ErrNoEngine
	}

	var rt http.RoundTripper
	if base != nil {
		rt = base
	} else {
		rt = http.DefaultTransport.(*http.Transport).Clone()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Transport{
		base:   rt,
		config: cfg,
		logger: logger,
	}, nil
}

// RoundTrip signs a clone of the request and delegates to the base
// transport. The body is read once; the signed bytes are the bytes sent.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	body, err := readRequestBody(req)
	if err != nil {
		return nil, err
	}

	if body != nil {
		clone.Body = io.NopCloser(bytes.NewReader(body))
		clone.ContentLength = int64(len(body))
		clone.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	} else if clone.Body != nil {
		clone.Body = http.NoBody
		clone.ContentLength = 0
	}

	method := clone.Method
	if method == "" {
		method = http.MethodGet
	}

	clone.Header.Del(HeaderClientSignature)

	// net/http adds its own User-Agent after signing when none is set.
	if clone.Header.Get(HeaderUserAgent) == "" {
		clone.Header.Set(HeaderUserAgent, DefaultHeaderDefaults().UserAgent)
	}

	signed, err := t.config.Engine.SignRequest(Request{
		Method: method,
		Path:   clone.URL.RequestURI(),
		Header: HeaderFromHTTP(clone.Header, IsSignedRequestHeader),
		Body:   body,
	})
	if err != nil {
		return nil, err
	}

	for name, value := range signed.Header {
		clone.Header[name] = []string{value}
	}

	resp, err := t.base.RoundTrip(clone)
	if err != nil || t.config.Verify == VerifyOff {
		return resp, err
	}

	return t.verifyResponse(resp)
}

func (t *Transport) verifyResponse(resp *http.Response) (*http.Response, error) {
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()

	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	resp.Body = io.NopCloser(bytes.NewReader(body))

	outcome, reason := t.config.Engine.VerifyResponseReason(ResponseFromHTTP(resp, body))

	LogVerification(t.logger, outcome, reason,
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", resp.Header.Get(HeaderClientRequestID)),
	)

	if t.config.OnVerify != nil {
		t.config.OnVerify(resp, outcome, reason)
	}

	if t.config.Verify == VerifyRequire && !outcome.Verified() {
		return nil, fmt.Errorf("%w: verification %s", ErrResponseRejected, outcome)
	}

	return resp, nil
}

// readRequestBody returns the request body without consuming the caller's
// copy when GetBody is available. It returns nil for bodiless requests.
func readRequestBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}

	rc := req.Body
	if req.GetBody != nil {
		fresh, err := req.GetBody()
		if err != nil {
			return nil, err
		}

		rc = fresh
	}
	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}

	if len(body) == 0 {
		return nil, nil
	}

	return body, nil
}

// LogVerification logs skipped and failed outcomes. Verified responses are
// logged at debug level.
func LogVerification(logger *zap.Logger, outcome VerifyOutcome, reason error, fields ...zap.Field) {
	switch outcome {
	case OutcomeVerified:
		logger.Debug("response signature verified", fields...)
	case OutcomeSkipped:
		logger.Info("no server public key configured, skipping verification", fields...)
	default:
		fields = append(fields, zap.Stringer("outcome", outcome))
		if reason != nil {
			fields = append(fields, zap.String("reason", reason.Error()))
		}

		logger.Warn("response failed verification, data might be tampered with", fields...)
	}
}
