package bunqsig

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// Minimum RSA key size in bits.
const minRSAKeyBits = 2048

// Signer produces RSASSA-PKCS1-v1_5 SHA-256 signatures over canonical
// messages.
type Signer interface {
	// Sign produces a signature over the given message bytes.
	Sign(message []byte) ([]byte, error)

	// Public returns the public half of the signing key.
	Public() *rsa.PublicKey
}

// Verifier checks RSASSA-PKCS1-v1_5 SHA-256 signatures.
type Verifier interface {
	// Verify checks that signature is valid for the given message bytes.
	// Returns nil on success, ErrSignatureInvalid on mismatch.
	Verify(message, signature []byte) error
}

type rsaSigner struct {
	key *rsa.PrivateKey
}

// NewRSASigner creates a Signer using RSASSA-PKCS1-v1_5 with SHA-256.
func NewRSASigner(key *rsa.PrivateKey) (Signer, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: rsa private key must not be nil", ErrConfiguration)
	}

	if key.N == nil || key.N.BitLen() < minRSAKeyBits {
		return nil, fmt.Errorf("%w: rsa key must be at least %d bits", ErrConfiguration, minRSAKeyBits)
	}

	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	return &rsaSigner{key: key}, nil
}

func (s *rsaSigner) Sign(message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)

	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}

	return sig, nil
}

func (s *rsaSigner) Public() *rsa.PublicKey { return &s.key.PublicKey }

type rsaVerifier struct {
	key *rsa.PublicKey
}

// NewRSAVerifier creates a Verifier using RSASSA-PKCS1-v1_5 with SHA-256.
func NewRSAVerifier(key *rsa.PublicKey) (Verifier, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: rsa public key must not be nil", ErrConfiguration)
	}

	if key.N == nil || key.N.BitLen() < minRSAKeyBits {
		return nil, fmt.Errorf("%w: rsa key must be at least %d bits", ErrConfiguration, minRSAKeyBits)
	}

	return &rsaVerifier{key: key}, nil
}

func (v *rsaVerifier) Verify(message, signature []byte) error {
	digest := sha256.Sum256(message)

	if err := rsa.VerifyPKCS1v15(v.key, crypto.SHA256, digest[:], signature); err != nil {
		return ErrSignatureInvalid
	}

	return nil
}

// GenerateKey creates a new RSA private key of the given size.
func GenerateKey(bits int) (*rsa.PrivateKey, error) {
	if bits < minRSAKeyBits {
		return nil, fmt.Errorf("%w: rsa key must be at least %d bits", ErrConfiguration, minRSAKeyBits)
	}

	return rsa.GenerateKey(rand.Reader, bits)
}

// ParsePrivateKeyPEM parses a PEM encoded RSA private key in PKCS#1
// ("RSA PRIVATE KEY") or PKCS#8 ("PRIVATE KEY") form.
func ParsePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrConfiguration)
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parse private key: %v", ErrConfiguration, err)
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported private key type %T", ErrConfiguration, parsed)
	}

	return key, nil
}

// ParsePublicKeyPEM parses a PEM encoded RSA public key in PKIX
// ("PUBLIC KEY") or PKCS#1 ("RSA PUBLIC KEY") form.
func ParsePublicKeyPEM(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrConfiguration)
	}

	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parse public key: %v", ErrConfiguration, err)
	}

	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported public key type %T", ErrConfiguration, parsed)
	}

	return key, nil
}

// MarshalPublicKeyPEM encodes key as a PKIX (SubjectPublicKeyInfo) PEM
// block, the form used to register a client key with the server.
func MarshalPublicKeyPEM(key *rsa.PublicKey) ([]byte, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: rsa public key must not be nil", ErrConfiguration)
	}

	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal public key: %v", ErrConfiguration, err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// MarshalPrivateKeyPEM encodes key as a PKCS#8 PEM block.
func MarshalPrivateKeyPEM(key *rsa.PrivateKey) ([]byte, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: rsa private key must not be nil", ErrConfiguration)
	}

	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal private key: %v", ErrConfiguration, err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}
