package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vitalvas/bunq/bunqsig"
)

func TestNewEchoHandlerConfig(t *testing.T) {
	files := generateKeys(t)

	tests := []struct {
		name string
		cfg  echoConfig
	}{
		{
			name: "zero max body",
			cfg:  echoConfig{ClientKeyFile: files.clientPub, ServerKeyFile: files.serverKey},
		},
		{
			name: "missing client key",
			cfg:  echoConfig{ClientKeyFile: files.clientPub + ".missing", ServerKeyFile: files.serverKey, MaxBodyBytes: 1},
		},
		{
			name: "server key is not a private key",
			cfg:  echoConfig{ClientKeyFile: files.clientPub, ServerKeyFile: files.serverPub, MaxBodyBytes: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, err := newEchoHandler(tt.cfg)
			assert.Error(t, err)
			assert.Nil(t, handler)
		})
	}
}

func TestEchoHandlerBodyLimit(t *testing.T) {
	files := generateKeys(t)

	handler, err := newEchoHandler(echoConfig{
		ClientKeyFile: files.clientPub,
		ServerKeyFile: files.serverKey,
		MaxBodyBytes:  16,
	})
	require.NoError(t, err)

	clientKey, err := readPrivateKey(files.clientKey)
	require.NoError(t, err)

	engine, err := bunqsig.NewEngine(bunqsig.EngineConfig{PrivateKey: clientKey})
	require.NoError(t, err)

	send := func(body []byte) int {
		signed, err := engine.SignRequest(bunqsig.Request{
			Method: http.MethodPost,
			Path:   "/v1/payment",
			Header: bunqsig.DefaultHeaderDefaults().Header("req-1"),
			Body:   body,
		})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/v1/payment", bytes.NewReader(body))
		for name, value := range signed.Header {
			req.Header.Set(name, value)
		}

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		return w.Code
	}

	assert.Equal(t, http.StatusOK, send([]byte(`{"a":"b"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, send([]byte(`{"amount":"1000000.00"}`)))
}

func TestRecoveryMiddleware(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)

	r := mux.NewRouter()
	r.Use(recoveryMiddleware(zap.New(core)))
	r.HandleFunc("/panic", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "handler panic", logs.All()[0].Message)
	assert.Equal(t, "/panic", logs.All()[0].ContextMap()["path"])
}

func TestRejectRequest(t *testing.T) {
	w := httptest.NewRecorder()
	rejectRequest(w, nil, bunqsig.ErrSignatureNotFound)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	rejectRequest(w, nil, &http.MaxBytesError{Limit: 1})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestMain(m *testing.M) {
	os.Unsetenv("BUNQ_CONFIG")
	os.Exit(m.Run())
}
