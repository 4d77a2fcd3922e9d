package bunqsig

import (
	"bytes"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// KeyResolver returns the public key of the client that sent r, typically
// looked up by the X-Bunq-Client-Authentication token.
type KeyResolver func(r *http.Request) (*rsa.PublicKey, error)

// StaticKey returns a KeyResolver that accepts a single client key.
func StaticKey(key *rsa.PublicKey) KeyResolver {
	return func(*http.Request) (*rsa.PublicKey, error) {
		return key, nil
	}
}

// MiddlewareConfig configures the server side of the protocol.
type MiddlewareConfig struct {
	// Resolver looks up the client public key. Required.
	Resolver KeyResolver

	// Signer, when set, signs every response with the server key and adds
	// X-Bunq-Client-Response-Id and X-Bunq-Server-Signature.
	Signer Signer

	// Logger receives rejected requests. Defaults to a no-op logger.
	Logger *zap.Logger

	// OnError is called when request verification fails. When nil, a plain
	// 401 Unauthorized response is sent.
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

// VerifyRequest checks X-Bunq-Client-Signature on an inbound request against
// key. The body is read and restored so handlers can still consume it.
func VerifyRequest(r *http.Request, key *rsa.PublicKey) error {
	verifier, err := NewRSAVerifier(key)
	if err != nil {
		return err
	}

	signature := r.Header.Get(HeaderClientSignature)
	if signature == "" {
		return ErrSignatureNotFound
	}

	var body []byte
	if r.Body != nil {
		body, err = io.ReadAll(r.Body)
		r.Body.Close()

		if err != nil {
			return fmt.Errorf("read request body: %w", err)
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
	}

	path := r.RequestURI
	if path == "" {
		path = r.URL.RequestURI()
	}

	canonical, err := CanonicalRequest(r.Method, path, HeaderFromHTTP(r.Header, IsSignedRequestHeader), body)
	if err != nil {
		return err
	}

	if _, err := verifyBase64(verifier, canonical, signature); err != nil {
		return err
	}

	return nil
}

// Middleware returns a mux.MiddlewareFunc that verifies client signatures on
// incoming requests and, when a Signer is configured, signs responses.
//
// It returns ErrNoResolver if Resolver is nil.
func Middleware(cfg MiddlewareConfig) (mux.MiddlewareFunc, error) {
	if cfg.Resolver == nil {
		return nil, ErrNoResolver
	}

	onError := cfg.OnError
	if onError == nil {
		onError = defaultOnError
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := cfg.Resolver(r)
			if err == nil {
				err = VerifyRequest(r, key)
			}

			if err != nil {
				logger.Warn("rejected unsigned or tampered request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("request_id", r.Header.Get(HeaderClientRequestID)),
					zap.Error(err),
				)
				onError(w, r, err)

				return
			}

			if cfg.Signer == nil {
				next.ServeHTTP(w, r)
				return
			}

			rec := &bufferedResponse{header: w.Header(), status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if err := signResponse(cfg.Signer, r, rec); err != nil {
				logger.Error("failed to sign response", zap.Error(err))
				w.WriteHeader(http.StatusInternalServerError)

				return
			}

			w.WriteHeader(rec.status)
			_, _ = w.Write(rec.body.Bytes())
		})
	}, nil
}

// signResponse sets the response id headers and X-Bunq-Server-Signature.
func signResponse(signer Signer, r *http.Request, rec *bufferedResponse) error {
	if rec.header.Get(HeaderClientRequestID) == "" {
		if id := r.Header.Get(HeaderClientRequestID); id != "" {
			rec.header.Set(HeaderClientRequestID, id)
		}
	}

	if rec.header.Get(HeaderClientResponseID) == "" {
		rec.header.Set(HeaderClientResponseID, uuid.NewString())
	}

	rec.header.Del(HeaderServerSignature)

	canonical := CanonicalResponse(rec.status, HeaderFromHTTP(rec.header, IsSignedResponseHeader), rec.body.Bytes())

	sig, err := signer.Sign(canonical)
	if err != nil {
		return err
	}

	rec.header.Set(HeaderServerSignature, base64.StdEncoding.EncodeToString(sig))

	return nil
}

// bufferedResponse holds the handler output until the signature is known.
type bufferedResponse struct {
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) {
	if b.wroteHeader {
		return
	}

	b.status = status
	b.wroteHeader = true
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	b.wroteHeader = true
	return b.body.Write(p)
}

// defaultOnError writes a 401 Unauthorized response with no body.
func defaultOnError(w http.ResponseWriter, _ *http.Request, _ error) {
	w.WriteHeader(http.StatusUnauthorized)
}
