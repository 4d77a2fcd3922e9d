package bunqsig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// CanonicalRequest serializes a request into the exact bytes covered by the
// client signature:
//
//	<METHOD> <PATH>\n
//	<Name>: <Value>\n      (one line per header, sorted by name)
//	\n
//	<body>                 (omitted when empty)
//
// Header names are sorted by byte order, not locale. The body must be the
// exact bytes that will be transmitted; see EncodeBody.
func CanonicalRequest(method, path string, header Header, body []byte) ([]byte, error) {
	if !httpguts.ValidHeaderFieldName(method) {
		return nil, fmt.Errorf("%w: invalid method %q", ErrMalformedInput, method)
	}

	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("%w: path must start with /", ErrMalformedInput)
	}

	if strings.ContainsAny(path, " \r\n") {
		return nil, fmt.Errorf("%w: path contains whitespace", ErrMalformedInput)
	}

	if _, ok := header.Lookup(HeaderClientSignature); ok {
		return nil, fmt.Errorf("%w: header set already contains %s", ErrMalformedInput, HeaderClientSignature)
	}

	for name, value := range header {
		if !httpguts.ValidHeaderFieldName(name) {
			return nil, fmt.Errorf("%w: invalid header name %q", ErrMalformedInput, name)
		}

		if !httpguts.ValidHeaderFieldValue(value) {
			return nil, fmt.Errorf("%w: invalid value for header %s", ErrMalformedInput, name)
		}
	}

	var buf bytes.Buffer
	buf.Grow(len(method) + len(path) + len(body) + 64*len(header))

	buf.WriteString(method)
	buf.WriteByte(' ')
	buf.WriteString(path)
	buf.WriteByte('\n')
	writeHeaderBlock(&buf, header)
	buf.Write(body)

	return buf.Bytes(), nil
}

// CanonicalResponse serializes a response into the bytes covered by the
// server signature:
//
//	<status>\n
//	<Name>: <Value>\n      (allow-listed headers only, sorted by name)
//	\n
//	<raw body>
//
// Only X-Bunq-Client-Request-Id and X-Bunq-Client-Response-Id participate.
// The body is used as received and never re-encoded.
func CanonicalResponse(status int, header Header, body []byte) []byte {
	selected := make(Header, len(responseHeaders))
	for name, value := range header {
		if IsSignedResponseHeader(name) {
			selected[name] = value
		}
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + 128)

	buf.WriteString(strconv.Itoa(status))
	buf.WriteByte('\n')
	writeHeaderBlock(&buf, selected)
	buf.Write(body)

	return buf.Bytes()
}

// writeHeaderBlock writes sorted "Name: Value\n" lines followed by the
// blank separator line.
func writeHeaderBlock(buf *bytes.Buffer, header Header) {
	names := make([]string, 0, len(header))
	for name := range header {
		names = append(names, name)
	}

	slices.Sort(names)

	for _, name := range names {
		buf.WriteString(name)
		buf.WriteString(": ")
		buf.WriteString(header[name])
		buf.WriteByte('\n')
	}

	buf.WriteByte('\n')
}

// EncodeBody serializes a payload once so the same bytes feed both the
// canonical request and the transmitted body. A nil payload, a typed nil,
// and payloads that encode to null or an empty object or array yield a nil
// body.
func EncodeBody(payload any) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}

	body, ok := payload.(json.RawMessage)
	if !ok {
		var err error

		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: encode body: %v", ErrMalformedInput, err)
		}
	}

	if isEmptyJSON(body) {
		return nil, nil
	}

	return body, nil
}

// isEmptyJSON reports whether body carries no payload.
func isEmptyJSON(body []byte) bool {
	switch string(bytes.TrimSpace(body)) {
	case "", "null", "{}", "[]":
		return true
	default:
		return false
	}
}
