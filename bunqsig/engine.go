package bunqsig

import (
	"crypto/rsa"
	"encoding/base64"
)

// EngineConfig is the only configuration the signature engine needs.
type EngineConfig struct {
	// PrivateKey signs outgoing requests. Required.
	PrivateKey *rsa.PrivateKey

	// ServerPublicKey verifies response signatures. When nil, verification
	// reports OutcomeSkipped.
	ServerPublicKey *rsa.PublicKey

	// Token is the session token attached to every request as
	// X-Bunq-Client-Authentication unless the request carries its own.
	Token string
}

// Engine signs requests and verifies responses. It holds only read-only key
// handles after construction and is safe for concurrent use.
type Engine struct {
	signer   Signer
	verifier Verifier
	token    string
}

// NewEngine validates the key material in cfg and returns an Engine.
// Invalid keys are reported as ErrConfiguration.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	signer, err := NewRSASigner(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		signer: signer,
		token:  cfg.Token,
	}

	if cfg.ServerPublicKey != nil {
		verifier, err := NewRSAVerifier(cfg.ServerPublicKey)
		if err != nil {
			return nil, err
		}

		e.verifier = verifier
	}

	return e, nil
}

// CanonicalRequest is the package level CanonicalRequest, provided on the
// engine for symmetry with Sign.
func (e *Engine) CanonicalRequest(method, path string, header Header, body []byte) ([]byte, error) {
	return CanonicalRequest(method, path, header, body)
}

// Sign returns the base64 encoded RSASSA-PKCS1-v1_5 SHA-256 signature of
// message.
func (e *Engine) Sign(message []byte) (string, error) {
	sig, err := e.signer.Sign(message)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(sig), nil
}

// Request is a logical request before signing.
type Request struct {
	Method string

	// Path includes the API version prefix and query string.
	Path string

	// Header is the base header set. It is not modified.
	Header Header

	// Body is the serialized payload, or nil.
	Body []byte

	// Token overrides the engine token for this request.
	Token string
}

// SignedRequest is a request ready for transport. Body holds the exact bytes
// that were signed and must be sent unchanged.
type SignedRequest struct {
	Method string
	Path   string
	Header Header
	Body   []byte

	// Canonical is the message that was signed.
	Canonical []byte
}

// SignRequest attaches the authentication token, canonicalizes the request,
// signs it and returns the final header set including
// X-Bunq-Client-Signature.
func (e *Engine) SignRequest(req Request) (*SignedRequest, error) {
	header := req.Header.Clone()

	token := req.Token
	if token == "" {
		token = e.token
	}

	if token != "" {
		header[HeaderClientAuthentication] = token
	}

	canonical, err := CanonicalRequest(req.Method, req.Path, header, req.Body)
	if err != nil {
		return nil, err
	}

	sig, err := e.Sign(canonical)
	if err != nil {
		return nil, err
	}

	header[HeaderClientSignature] = sig

	return &SignedRequest{
		Method:    req.Method,
		Path:      req.Path,
		Header:    header,
		Body:      req.Body,
		Canonical: canonical,
	}, nil
}

// PublicKey returns the client public key.
func (e *Engine) PublicKey() *rsa.PublicKey {
	return e.signer.Public()
}

// PublicKeyPEM returns the client public key as a PKIX PEM block for
// registering the client with the server.
func (e *Engine) PublicKeyPEM() ([]byte, error) {
	return MarshalPublicKeyPEM(e.signer.Public())
}

// CanVerify reports whether a server public key is configured.
func (e *Engine) CanVerify() bool {
	return e.verifier != nil
}
