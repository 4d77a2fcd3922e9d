package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/vitalvas/bunq/bunqsig"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "bunqsig",
		Usage: "Sign bunq API requests and verify response signatures",
		Description: `A tool for the bunq request signature protocol.

It can:
- Generate the RSA key pair used to register an installation
- Print the canonical request and signed headers for a request
- Verify a server response signature
- Send signed requests to the API
- Run a local server that speaks the protocol for integration tests`,
		Version: bunqsig.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Configuration file (.yaml, .yml or .ini)",
				EnvVars: []string{"BUNQ_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "profile",
				Usage: "Profile section to read from an INI configuration file",
				Value: "default",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable development logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "keygen",
				Usage: "Generate an RSA key pair",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "bits",
						Usage: "RSA key size",
						Value: 2048,
					},
					&cli.StringFlag{
						Name:     "out",
						Usage:    "Output file for the private key",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "pub",
						Usage: "Output file for the public key (default: <out>.pub)",
					},
				},
				Action: keygenCommand,
			},
			{
				Name:  "pubkey",
				Usage: "Print the public key of a private key in PEM form",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "key",
						Usage: "Private key file (default: private key from config)",
					},
				},
				Action: pubkeyCommand,
			},
			{
				Name:  "sign",
				Usage: "Print the canonical request and signed headers",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "key",
						Usage: "Private key file (default: private key from config)",
					},
					&cli.StringFlag{
						Name:  "method",
						Usage: "HTTP method (default: GET without data, POST with data)",
					},
					&cli.StringFlag{
						Name:     "path",
						Usage:    "Request path including version prefix and query string",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "data",
						Usage: "Request body, sent verbatim",
					},
					&cli.StringFlag{
						Name:  "data-file",
						Usage: "File with the request body, sent verbatim",
					},
					&cli.StringFlag{
						Name:  "token",
						Usage: "Session token (default: token from config)",
					},
					&cli.StringFlag{
						Name:  "request-id",
						Usage: "Client request id (default: new UUID)",
					},
					&cli.BoolFlag{
						Name:  "canonical",
						Usage: "Also print the canonical request",
					},
				},
				Action: signCommand,
			},
			{
				Name:  "verify",
				Usage: "Verify a server response signature",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "server-key",
						Usage: "Server public key file (default: server key from config)",
					},
					&cli.IntFlag{
						Name:  "status",
						Usage: "Response status code",
						Value: 200,
					},
					&cli.StringSliceFlag{
						Name:  "header",
						Usage: "Response header as 'Name: Value' (repeatable)",
					},
					&cli.StringFlag{
						Name:  "body-file",
						Usage: "File with the raw response body",
					},
					&cli.StringFlag{
						Name:  "signature",
						Usage: "Server signature (default: X-Bunq-Server-Signature header)",
					},
				},
				Action: verifyCommand,
			},
			{
				Name:      "query",
				Usage:     "Send a signed request to the API",
				ArgsUsage: "<endpoint>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "method",
						Usage: "HTTP method (default: GET without data, POST with data)",
					},
					&cli.StringFlag{
						Name:  "data",
						Usage: "JSON request body",
					},
					&cli.BoolFlag{
						Name:  "verify",
						Usage: "Verify the response signature (overrides config)",
					},
				},
				Action: queryCommand,
			},
			{
				Name:  "serve",
				Usage: "Run a local echo server that verifies requests and signs responses",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address",
						Value: "127.0.0.1:8080",
					},
					&cli.StringFlag{
						Name:     "client-key",
						Usage:    "Client public key file",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "server-key",
						Usage:    "Server private key file",
						Required: true,
					},
					&cli.Int64Flag{
						Name:  "max-body",
						Usage: "Maximum request body size in bytes",
						Value: 1 << 20,
					},
				},
				Action: serveCommand,
			},
		},
	}
}
