package bunqsig

import (
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	testKeysOnce  sync.Once
	testClientKey *rsa.PrivateKey
	testServerKey *rsa.PrivateKey
	testKeysErr   error
)

// testKeys returns a client and a server key shared by all tests in the
// package. RSA generation is slow, so it happens once.
func testKeys(t *testing.T) (client, server *rsa.PrivateKey) {
	t.Helper()

	testKeysOnce.Do(func() {
		testClientKey, testKeysErr = rsa.GenerateKey(rand.Reader, 2048)
		if testKeysErr != nil {
			return
		}

		testServerKey, testKeysErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	require.NoError(t, testKeysErr)

	return testClientKey, testServerKey
}

// newTestEngine builds an engine with the client key and, when verify is
// true, the server public key.
func newTestEngine(t *testing.T, verify bool) *Engine {
	t.Helper()

	client, server := testKeys(t)

	cfg := EngineConfig{PrivateKey: client}
	if verify {
		cfg.ServerPublicKey = &server.PublicKey
	}

	engine, err := NewEngine(cfg)
	require.NoError(t, err)

	return engine
}
