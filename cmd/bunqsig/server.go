package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vitalvas/bunq/bunqsig"
)

var errInvalidMaxBody = errors.New("max body size must be greater than zero")

type echoConfig struct {
	ClientKeyFile string
	ServerKeyFile string
	MaxBodyBytes  int64
	Logger        *zap.Logger
}

// newEchoHandler returns a router that accepts requests signed with the
// client key and answers with a signed JSON echo of the request.
func newEchoHandler(cfg echoConfig) (http.Handler, error) {
	if cfg.MaxBodyBytes <= 0 {
		return nil, errInvalidMaxBody
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	data, err := os.ReadFile(cfg.ClientKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read client public key: %w", err)
	}

	clientKey, err := bunqsig.ParsePublicKeyPEM(data)
	if err != nil {
		return nil, err
	}

	serverKey, err := readPrivateKey(cfg.ServerKeyFile)
	if err != nil {
		return nil, err
	}

	signer, err := bunqsig.NewRSASigner(serverKey)
	if err != nil {
		return nil, err
	}

	signatures, err := bunqsig.Middleware(bunqsig.MiddlewareConfig{
		Resolver: bunqsig.StaticKey(clientKey),
		Signer:   signer,
		Logger:   logger,
		OnError:  rejectRequest,
	})
	if err != nil {
		return nil, err
	}

	r := mux.NewRouter()
	r.Use(recoveryMiddleware(logger), sizeLimitMiddleware(cfg.MaxBodyBytes), signatures)
	r.PathPrefix("/").HandlerFunc(echoHandler)

	return r, nil
}

// rejectRequest answers 413 for oversized bodies and 401 for everything else.
func rejectRequest(w http.ResponseWriter, _ *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
		return
	}

	http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
}

// recoveryMiddleware turns handler panics into 500 responses.
func recoveryMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("handler panic",
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.Any("panic", err),
					)

					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// sizeLimitMiddleware caps request bodies before the signature check reads
// them into memory.
func sizeLimitMiddleware(maxBytes int64) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

type echoResponse struct {
	Method string          `json:"method"`
	Path   string          `json:"path"`
	Body   json.RawMessage `json:"body,omitempty"`
}

func echoHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	out := echoResponse{
		Method: r.Method,
		Path:   r.URL.RequestURI(),
	}

	if json.Valid(body) {
		out.Body = body
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out) //nolint:errcheck
}
