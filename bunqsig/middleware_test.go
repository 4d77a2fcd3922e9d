package bunqsig

import (
	"bytes"
	"crypto/rsa"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// newTestRouter returns a router protected by Middleware. The handler echoes
// the request body.
func newTestRouter(t *testing.T, cfg MiddlewareConfig) *mux.Router {
	t.Helper()

	r := mux.NewRouter()
	r.HandleFunc("/v1/payment", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(body)
	}).Methods(http.MethodPost)

	r.HandleFunc("/v1/user", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"Response":[]}`))
	}).Methods(http.MethodGet)

	mw, err := Middleware(cfg)
	require.NoError(t, err)
	r.Use(mw)

	return r
}

// clientKeyResolver resolves every request to the test client key.
func clientKeyResolver(t *testing.T) KeyResolver {
	client, _ := testKeys(t)

	return StaticKey(&client.PublicKey)
}

// newSignedHTTPRequest signs a request with engine and returns it as an
// inbound server request.
func newSignedHTTPRequest(t *testing.T, engine *Engine, method, path string, body []byte) *http.Request {
	t.Helper()

	signed, err := engine.SignRequest(Request{
		Method: method,
		Path:   path,
		Header: DefaultHeaderDefaults().Header("req-42"),
		Body:   body,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for name, value := range signed.Header {
		req.Header.Set(name, value)
	}

	return req
}

func TestMiddleware(t *testing.T) {
	_, server := testKeys(t)

	serverSigner, err := NewRSASigner(server)
	require.NoError(t, err)

	engine := newTestEngine(t, true)

	t.Run("nil resolver returns error", func(t *testing.T) {
		_, err := Middleware(MiddlewareConfig{})
		assert.ErrorIs(t, err, ErrNoResolver)
	})

	t.Run("valid signed request passes through", func(t *testing.T) {
		r := newTestRouter(t, MiddlewareConfig{Resolver: clientKeyResolver(t)})

		body := []byte(`{"amount":"10.00"}`)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, newSignedHTTPRequest(t, engine, http.MethodPost, "/v1/payment", body))

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, body, w.Body.Bytes())
		assert.Empty(t, w.Header().Get(HeaderServerSignature))
	})

	t.Run("query string is covered", func(t *testing.T) {
		r := newTestRouter(t, MiddlewareConfig{Resolver: clientKeyResolver(t)})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, newSignedHTTPRequest(t, engine, http.MethodGet, "/v1/user?count=5", nil))
		assert.Equal(t, http.StatusOK, w.Code)

		req := newSignedHTTPRequest(t, engine, http.MethodGet, "/v1/user?count=5", nil)
		req.RequestURI = "/v1/user?count=50"

		w = httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("response is signed", func(t *testing.T) {
		r := newTestRouter(t, MiddlewareConfig{Resolver: clientKeyResolver(t), Signer: serverSigner})

		body := []byte(`{"amount":"10.00"}`)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, newSignedHTTPRequest(t, engine, http.MethodPost, "/v1/payment", body))

		resp := w.Result()
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, "req-42", resp.Header.Get(HeaderClientRequestID))
		assert.NotEmpty(t, resp.Header.Get(HeaderClientResponseID))
		assert.NotEmpty(t, resp.Header.Get(HeaderServerSignature))
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

		respBody, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, body, respBody)

		assert.Equal(t, OutcomeVerified, engine.VerifyResponse(ResponseFromHTTP(resp, respBody)))
	})

	t.Run("implicit 200 response is signed", func(t *testing.T) {
		r := newTestRouter(t, MiddlewareConfig{Resolver: clientKeyResolver(t), Signer: serverSigner})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, newSignedHTTPRequest(t, engine, http.MethodGet, "/v1/user", nil))

		resp := w.Result()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, OutcomeVerified, engine.VerifyResponse(ResponseFromHTTP(resp, w.Body.Bytes())))
	})

	t.Run("unsigned request returns 401", func(t *testing.T) {
		r := newTestRouter(t, MiddlewareConfig{Resolver: clientKeyResolver(t)})

		req := httptest.NewRequest(http.MethodGet, "/v1/user", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("tampered body returns 401", func(t *testing.T) {
		r := newTestRouter(t, MiddlewareConfig{Resolver: clientKeyResolver(t)})

		req := newSignedHTTPRequest(t, engine, http.MethodPost, "/v1/payment", []byte(`{"amount":"10.00"}`))
		req.Body = io.NopCloser(bytes.NewReader([]byte(`{"amount":"99.00"}`)))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("tampered header returns 401", func(t *testing.T) {
		r := newTestRouter(t, MiddlewareConfig{Resolver: clientKeyResolver(t)})

		req := newSignedHTTPRequest(t, engine, http.MethodGet, "/v1/user", nil)
		req.Header.Set(HeaderGeolocation, "1 1 1 1 DE")

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unsigned extra header is ignored", func(t *testing.T) {
		r := newTestRouter(t, MiddlewareConfig{Resolver: clientKeyResolver(t)})

		req := newSignedHTTPRequest(t, engine, http.MethodGet, "/v1/user", nil)
		req.Header.Set("Accept", "application/json")

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("resolver error returns 401 and is logged", func(t *testing.T) {
		core, observed := observer.New(zap.WarnLevel)

		var gotErr error
		r := newTestRouter(t, MiddlewareConfig{
			Resolver: func(*http.Request) (*rsa.PublicKey, error) {
				return nil, errors.New("unknown token")
			},
			Logger: zap.New(core),
			OnError: func(w http.ResponseWriter, _ *http.Request, err error) {
				gotErr = err
				w.WriteHeader(http.StatusForbidden)
			},
		})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, newSignedHTTPRequest(t, engine, http.MethodGet, "/v1/user", nil))

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.EqualError(t, gotErr, "unknown token")

		entries := observed.All()
		require.Len(t, entries, 1)
		assert.Equal(t, "rejected unsigned or tampered request", entries[0].Message)
		assert.Equal(t, "req-42", entries[0].ContextMap()["request_id"])
	})
}

func TestVerifyRequest(t *testing.T) {
	client, server := testKeys(t)
	engine := newTestEngine(t, false)

	t.Run("valid", func(t *testing.T) {
		req := newSignedHTTPRequest(t, engine, http.MethodPost, "/v1/payment", []byte(`{"a":1}`))
		require.NoError(t, VerifyRequest(req, &client.PublicKey))

		body, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, string(body))
	})

	t.Run("missing signature", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/user", nil)
		assert.ErrorIs(t, VerifyRequest(req, &client.PublicKey), ErrSignatureNotFound)
	})

	t.Run("malformed signature", func(t *testing.T) {
		req := newSignedHTTPRequest(t, engine, http.MethodGet, "/v1/user", nil)
		req.Header.Set(HeaderClientSignature, "***")

		assert.ErrorIs(t, VerifyRequest(req, &client.PublicKey), ErrMalformedSignature)
	})

	t.Run("wrong key", func(t *testing.T) {
		req := newSignedHTTPRequest(t, engine, http.MethodGet, "/v1/user", nil)
		assert.ErrorIs(t, VerifyRequest(req, &server.PublicKey), ErrSignatureInvalid)
	})

	t.Run("nil key", func(t *testing.T) {
		req := newSignedHTTPRequest(t, engine, http.MethodGet, "/v1/user", nil)
		assert.ErrorIs(t, VerifyRequest(req, nil), ErrConfiguration)
	})
}
