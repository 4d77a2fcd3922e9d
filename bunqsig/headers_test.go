package bunqsig

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderDefaults(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		h := DefaultHeaderDefaults().Header("req-1")

		assert.Equal(t, Header{
			"Cache-Control":            "no-cache",
			"User-Agent":               "bunqsig/" + Version,
			"X-Bunq-Client-Request-Id": "req-1",
			"X-Bunq-Geolocation":       "0 0 0 0 NL",
			"X-Bunq-Language":          "en_US",
			"X-Bunq-Region":            "nl_NL",
		}, h)
	})

	t.Run("overrides", func(t *testing.T) {
		h := HeaderDefaults{
			UserAgent:   "my-app/2.0",
			Geolocation: "52.3 4.9 12 100 NL",
		}.Header("req-2")

		assert.Equal(t, "my-app/2.0", h[HeaderUserAgent])
		assert.Equal(t, "52.3 4.9 12 100 NL", h[HeaderGeolocation])
		assert.Equal(t, "no-cache", h[HeaderCacheControl])
		assert.Equal(t, "en_US", h[HeaderLanguage])
		assert.Equal(t, "nl_NL", h[HeaderRegion])
	})
}

func TestNewRequestID(t *testing.T) {
	id := NewRequestID()

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(1), parsed.Version())
	assert.NotEqual(t, id, NewRequestID())
}

func TestHeader(t *testing.T) {
	t.Run("lookup is case insensitive", func(t *testing.T) {
		h := Header{"X-Bunq-Server-Signature": "sig"}

		v, ok := h.Lookup("x-bunq-server-signature")
		assert.True(t, ok)
		assert.Equal(t, "sig", v)

		_, ok = h.Lookup("missing")
		assert.False(t, ok)
	})

	t.Run("clone of nil", func(t *testing.T) {
		var h Header

		c := h.Clone()
		require.NotNil(t, c)
		assert.Empty(t, c)
	})

	t.Run("http conversion keeps names", func(t *testing.T) {
		h := Header{"x-lower": "1"}.HTTP()
		assert.Equal(t, []string{"1"}, h["x-lower"])
	})

	t.Run("from http joins values and filters", func(t *testing.T) {
		src := http.Header{}
		src.Add("Cache-Control", "no-cache")
		src.Add("Cache-Control", "no-store")
		src.Set("Content-Type", "application/json")
		src.Set("X-Bunq-Region", "nl_NL")

		all := HeaderFromHTTP(src, nil)
		assert.Equal(t, "no-cache, no-store", all["Cache-Control"])
		assert.Len(t, all, 3)

		signed := HeaderFromHTTP(src, IsSignedRequestHeader)
		assert.Equal(t, Header{"Cache-Control": "no-cache, no-store", "X-Bunq-Region": "nl_NL"}, signed)
	})
}

func TestIsSignedRequestHeader(t *testing.T) {
	tests := []struct {
		name   string
		signed bool
	}{
		{"Cache-Control", true},
		{"User-Agent", true},
		{"X-Bunq-Client-Request-Id", true},
		{"X-Bunq-Client-Authentication", true},
		{"x-bunq-geolocation", true},
		{"X-Bunq-Client-Signature", false},
		{"Content-Type", false},
		{"Accept-Encoding", false},
		{"X-Bun", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.signed, IsSignedRequestHeader(tt.name))
		})
	}
}

func TestIsSignedResponseHeader(t *testing.T) {
	assert.True(t, IsSignedResponseHeader(HeaderClientRequestID))
	assert.True(t, IsSignedResponseHeader(HeaderClientResponseID))
	assert.False(t, IsSignedResponseHeader(HeaderServerSignature))
	assert.False(t, IsSignedResponseHeader("Content-Type"))
}
