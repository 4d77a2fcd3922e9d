// Package bunqsig implements the request and response signature protocol of
// the bunq REST API.
//
// The client signs every request with its RSA private key over a canonical
// form of the request. The server signs every response with its own key and
// the client may verify that signature with the server public key. Both
// signatures use RSASSA-PKCS1-v1_5 with SHA-256 and are sent base64 encoded.
//
// # Canonical Request
//
//	POST /v1/payment
//	Cache-Control: no-cache
//	User-Agent: bunqsig/0.1.0
//	X-Bunq-Client-Request-Id: 7c0b3b9e-...
//
//	{"amount":"10.00"}
//
// Header lines are sorted by name in byte order. The body is omitted when
// the request has none. The signature covers the exact bytes transmitted, so
// serialize a payload once with EncodeBody and send those bytes.
//
// # Signing Requests
//
//	engine, err := bunqsig.NewEngine(bunqsig.EngineConfig{
//	    PrivateKey:      clientKey,
//	    ServerPublicKey: serverKey,
//	    Token:           sessionToken,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	body, err := bunqsig.EncodeBody(payload)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	signed, err := engine.SignRequest(bunqsig.Request{
//	    Method: http.MethodPost,
//	    Path:   "/v1/user/1/monetary-account/2/payment",
//	    Header: bunqsig.DefaultHeaderDefaults().Header(bunqsig.NewRequestID()),
//	    Body:   body,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Verifying Responses
//
// Verification is tri-state. Only OutcomeVerified means the response was
// authenticated; OutcomeSkipped is returned when no server key is
// configured and must not be treated as success:
//
//	switch engine.VerifyResponse(bunqsig.ResponseFromHTTP(resp, body)) {
//	case bunqsig.OutcomeVerified:
//	case bunqsig.OutcomeSkipped:
//	    // no server key configured
//	default:
//	    return errTampered
//	}
//
// # Client Transport
//
// NewTransport wraps an *http.Transport so any http.Client signs its
// requests and, depending on VerifyPolicy, verifies responses:
//
//	rt, err := bunqsig.NewTransport(nil, bunqsig.TransportConfig{
//	    Engine: engine,
//	    Verify: bunqsig.VerifyRequire,
//	})
//	client := &http.Client{Transport: rt}
//
// # Server Middleware
//
// Middleware implements the server side for tests and mock servers. It
// verifies client signatures and signs responses:
//
//	mw, err := bunqsig.Middleware(bunqsig.MiddlewareConfig{
//	    Resolver: bunqsig.StaticKey(clientPublicKey),
//	    Signer:   serverSigner,
//	})
//	router.Use(mw)
package bunqsig
