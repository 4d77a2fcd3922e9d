package bunqsig

import "errors"

// Configuration errors.
var (
	// ErrConfiguration is returned when key material is missing, malformed,
	// or of an unsupported type or size. It is fatal and never retried.
	ErrConfiguration = errors.New("bunqsig: invalid configuration")

	// ErrNoEngine is returned when a Transport or Client is built without
	// an Engine.
	ErrNoEngine = errors.New("bunqsig: engine must not be nil")

	// ErrNoResolver is returned when MiddlewareConfig has no KeyResolver.
	ErrNoResolver = errors.New("bunqsig: key resolver must not be nil")
)

// Signing errors.
var (
	// ErrSigning is returned when the signature operation itself fails.
	ErrSigning = errors.New("bunqsig: signing failed")

	// ErrMalformedInput is returned when canonicalization is given
	// inconsistent input, such as an invalid method token or a header set
	// that already carries the client signature.
	ErrMalformedInput = errors.New("bunqsig: malformed input")
)

// Verification reasons. Verify never returns these directly; they describe
// why an outcome was OutcomeFailed and are passed to logging and OnVerify
// callbacks.
var (
	// ErrSignatureNotFound is reported when the signature header is absent.
	ErrSignatureNotFound = errors.New("bunqsig: signature not found")

	// ErrMalformedSignature is reported when the signature is not valid
	// base64.
	ErrMalformedSignature = errors.New("bunqsig: malformed signature")

	// ErrSignatureInvalid is reported when the signature does not match the
	// canonical message.
	ErrSignatureInvalid = errors.New("bunqsig: signature verification failed")
)

// Transport errors.
var (
	// ErrResponseRejected is returned by a Transport with VerifyRequire when
	// a response is not verified.
	ErrResponseRejected = errors.New("bunqsig: response rejected")
)
