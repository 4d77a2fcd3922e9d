package bunqsig

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Request headers sent by the client.
const (
	HeaderCacheControl         = "Cache-Control"
	HeaderUserAgent            = "User-Agent"
	HeaderClientRequestID      = "X-Bunq-Client-Request-Id"
	HeaderGeolocation          = "X-Bunq-Geolocation"
	HeaderLanguage             = "X-Bunq-Language"
	HeaderRegion               = "X-Bunq-Region"
	HeaderClientAuthentication = "X-Bunq-Client-Authentication"
	HeaderClientSignature      = "X-Bunq-Client-Signature"
)

// Response headers read during verification.
const (
	HeaderClientResponseID = "X-Bunq-Client-Response-Id"
	HeaderServerSignature  = "X-Bunq-Server-Signature"
)

// bunqHeaderPrefix marks the protocol headers covered by the client
// signature when signing an arbitrary *http.Request.
const bunqHeaderPrefix = "X-Bunq-"

// responseHeaders is the allow-list of response headers that participate in
// the canonical response.
var responseHeaders = []string{HeaderClientRequestID, HeaderClientResponseID}

// Header maps a header name to a single value. Names are kept exactly as
// given; canonicalization sorts them at signing time.
type Header map[string]string

// Clone returns a copy of h. A nil Header clones to an empty one.
func (h Header) Clone() Header {
	out := make(Header, len(h))
	for k, v := range h {
		out[k] = v
	}

	return out
}

// Lookup returns the value for name, compared case-insensitively.
func (h Header) Lookup(name string) (string, bool) {
	if v, ok := h[name]; ok {
		return v, true
	}

	for k, v := range h {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}

	return "", false
}

// HTTP converts h into an http.Header without altering the case of names.
func (h Header) HTTP() http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		out[k] = []string{v}
	}

	return out
}

// HeaderFromHTTP flattens an http.Header. Multiple values are joined with
// ", ". When keep is non-nil only names for which it returns true are
// copied.
func HeaderFromHTTP(h http.Header, keep func(name string) bool) Header {
	out := make(Header, len(h))
	for k, values := range h {
		if keep != nil && !keep(k) {
			continue
		}

		out[k] = strings.Join(values, ", ")
	}

	return out
}

// IsSignedRequestHeader reports whether name is covered by the client
// signature: Cache-Control, User-Agent and every X-Bunq- header except the
// signature itself.
func IsSignedRequestHeader(name string) bool {
	switch {
	case strings.EqualFold(name, HeaderClientSignature):
		return false
	case strings.EqualFold(name, HeaderCacheControl), strings.EqualFold(name, HeaderUserAgent):
		return true
	default:
		return len(name) >= len(bunqHeaderPrefix) && strings.EqualFold(name[:len(bunqHeaderPrefix)], bunqHeaderPrefix)
	}
}

// IsSignedResponseHeader reports whether name is on the response allow-list.
func IsSignedResponseHeader(name string) bool {
	for _, h := range responseHeaders {
		if strings.EqualFold(name, h) {
			return true
		}
	}

	return false
}

// HeaderDefaults holds the values of the fixed request headers. Tests and
// callers with finer location data override individual fields.
type HeaderDefaults struct {
	CacheControl string
	UserAgent    string
	Geolocation  string
	Language     string
	Region       string
}

// DefaultHeaderDefaults returns the values sent when nothing more specific
// is known about the caller.
func DefaultHeaderDefaults() HeaderDefaults {
	return HeaderDefaults{
		CacheControl: "no-cache",
		UserAgent:    Product + "/" + Version,
		Geolocation:  "0 0 0 0 NL",
		Language:     "en_US",
		Region:       "nl_NL",
	}
}

// withFallback fills empty fields from DefaultHeaderDefaults.
func (d HeaderDefaults) withFallback() HeaderDefaults {
	def := DefaultHeaderDefaults()

	if d.CacheControl == "" {
		d.CacheControl = def.CacheControl
	}

	if d.UserAgent == "" {
		d.UserAgent = def.UserAgent
	}

	if d.Geolocation == "" {
		d.Geolocation = def.Geolocation
	}

	if d.Language == "" {
		d.Language = def.Language
	}

	if d.Region == "" {
		d.Region = def.Region
	}

	return d
}

// Header builds the base request header set for one request. Empty fields
// fall back to DefaultHeaderDefaults.
func (d HeaderDefaults) Header(requestID string) Header {
	d = d.withFallback()

	return Header{
		HeaderCacheControl:    d.CacheControl,
		HeaderUserAgent:       d.UserAgent,
		HeaderClientRequestID: requestID,
		HeaderGeolocation:     d.Geolocation,
		HeaderLanguage:        d.Language,
		HeaderRegion:          d.Region,
	}
}

// NewRequestID returns a time-based UUID (version 1) for the
// X-Bunq-Client-Request-Id header. It falls back to a random UUID when the
// node clock sequence cannot be initialised.
func NewRequestID() string {
	id, err := uuid.NewUUID()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}
