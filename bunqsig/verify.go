package bunqsig

import (
	"encoding/base64"
	"net/http"
)

// VerifyOutcome is the result of checking a response signature. Callers
// must branch on it explicitly; only OutcomeVerified means the response was
// authenticated.
type VerifyOutcome uint8

const (
	// OutcomeUnknown is the zero value. It is never a successful result.
	OutcomeUnknown VerifyOutcome = iota

	// OutcomeVerified means the signature matched the canonical response.
	OutcomeVerified

	// OutcomeFailed means the signature was missing, malformed or invalid.
	OutcomeFailed

	// OutcomeSkipped means no server public key is configured.
	OutcomeSkipped
)

// Verified reports whether o is OutcomeVerified.
func (o VerifyOutcome) Verified() bool {
	return o == OutcomeVerified
}

func (o VerifyOutcome) String() string {
	switch o {
	case OutcomeVerified:
		return "verified"
	case OutcomeFailed:
		return "failed"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Response is an inbound response as received. Body is the raw text.
type Response struct {
	StatusCode int
	Header     Header
	Body       []byte
}

// ResponseFromHTTP builds a Response from resp and its already read body.
func ResponseFromHTTP(resp *http.Response, body []byte) Response {
	return Response{
		StatusCode: resp.StatusCode,
		Header:     HeaderFromHTTP(resp.Header, nil),
		Body:       body,
	}
}

// Verify checks a base64 signature over message against the server public
// key. It never returns an error for a bad signature.
func (e *Engine) Verify(message []byte, signature string) VerifyOutcome {
	outcome, _ := e.verify(message, signature)
	return outcome
}

// VerifyResponse canonicalizes resp and checks its X-Bunq-Server-Signature.
func (e *Engine) VerifyResponse(resp Response) VerifyOutcome {
	outcome, _ := e.VerifyResponseReason(resp)
	return outcome
}

// VerifyResponseReason is VerifyResponse that also returns why an outcome
// was not OutcomeVerified: nil for verified and skipped, one of
// ErrSignatureNotFound, ErrMalformedSignature or ErrSignatureInvalid for
// failed.
func (e *Engine) VerifyResponseReason(resp Response) (VerifyOutcome, error) {
	if e.verifier == nil {
		return OutcomeSkipped, nil
	}

	return VerifyResponseWith(e.verifier, resp)
}

// VerifyResponseWith checks the X-Bunq-Server-Signature of resp with v. It
// serves callers that hold only the server public key.
func VerifyResponseWith(v Verifier, resp Response) (VerifyOutcome, error) {
	if v == nil {
		return OutcomeSkipped, nil
	}

	signature, ok := resp.Header.Lookup(HeaderServerSignature)
	if !ok || signature == "" {
		return OutcomeFailed, ErrSignatureNotFound
	}

	return verifyBase64(v, CanonicalResponse(resp.StatusCode, resp.Header, resp.Body), signature)
}

func (e *Engine) verify(message []byte, signature string) (VerifyOutcome, error) {
	if e.verifier == nil {
		return OutcomeSkipped, nil
	}

	if signature == "" {
		return OutcomeFailed, ErrSignatureNotFound
	}

	return verifyBase64(e.verifier, message, signature)
}

// verifyBase64 decodes signature and checks it with v.
func verifyBase64(v Verifier, message []byte, signature string) (VerifyOutcome, error) {
	raw, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return OutcomeFailed, ErrMalformedSignature
	}

	if err := v.Verify(message, raw); err != nil {
		return OutcomeFailed, ErrSignatureInvalid
	}

	return OutcomeVerified, nil
}
