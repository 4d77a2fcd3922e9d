package main

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/vitalvas/bunq/bunqsig"
	"github.com/vitalvas/bunq/client"
	"github.com/vitalvas/bunq/config"
)

func newLogger(c *cli.Context) (*zap.Logger, error) {
	if c.Bool("debug") {
		return zap.NewDevelopment()
	}

	return zap.NewProduction()
}

// loadConfig reads the file named by --config, or starts from defaults, and
// applies BUNQ_* environment overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)

	path := c.String("config")

	switch {
	case path == "":
		cfg = config.New()
	case isINI(path):
		cfg, err = loadProfile(path, c.String("profile"))
	default:
		cfg, err = config.Load(path)
	}

	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadProfile reads one INI profile and names the available profiles when
// the requested one is missing.
func loadProfile(path, profile string) (*config.Config, error) {
	profiles, err := config.Profiles(path)
	if err != nil {
		return nil, err
	}

	if profile == "" {
		profile = config.DefaultProfile
	}

	if !slices.Contains(profiles, profile) {
		return nil, fmt.Errorf("profile %q not found in %s, available: %s", profile, path, strings.Join(profiles, ", "))
	}

	return config.LoadINI(path, profile)
}

func isINI(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini", ".conf", ".cfg":
		return true
	default:
		return false
	}
}

func readPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	return bunqsig.ParsePrivateKeyPEM(data)
}

// engineFor builds an engine from --key when given, otherwise from the
// configured key files.
func engineFor(c *cli.Context, token string) (*bunqsig.Engine, error) {
	if path := c.String("key"); path != "" {
		key, err := readPrivateKey(path)
		if err != nil {
			return nil, err
		}

		return bunqsig.NewEngine(bunqsig.EngineConfig{PrivateKey: key, Token: token})
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	if cfg.PrivateKeyFile == "" {
		return nil, errors.New("no private key: use --key or set private_key_file in the config")
	}

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return nil, err
	}

	if token != "" {
		engineCfg.Token = token
	}

	return bunqsig.NewEngine(engineCfg)
}

func keygenCommand(c *cli.Context) error {
	key, err := bunqsig.GenerateKey(c.Int("bits"))
	if err != nil {
		return err
	}

	privPEM, err := bunqsig.MarshalPrivateKeyPEM(key)
	if err != nil {
		return err
	}

	pubPEM, err := bunqsig.MarshalPublicKeyPEM(&key.PublicKey)
	if err != nil {
		return err
	}

	out := c.String("out")

	pub := c.String("pub")
	if pub == "" {
		pub = out + ".pub"
	}

	if err := os.WriteFile(out, privPEM, 0o600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}

	if err := os.WriteFile(pub, pubPEM, 0o644); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "private key: %s\npublic key: %s\n", out, pub)

	return nil
}

func pubkeyCommand(c *cli.Context) error {
	engine, err := engineFor(c, "")
	if err != nil {
		return err
	}

	data, err := engine.PublicKeyPEM()
	if err != nil {
		return err
	}

	_, err = c.App.Writer.Write(data)

	return err
}

func requestBody(c *cli.Context) ([]byte, error) {
	if path := c.String("data-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}

		return data, nil
	}

	if data := c.String("data"); data != "" {
		return []byte(data), nil
	}

	return nil, nil
}

func signCommand(c *cli.Context) error {
	token := c.String("token")

	engine, err := engineFor(c, token)
	if err != nil {
		return err
	}

	body, err := requestBody(c)
	if err != nil {
		return err
	}

	method := strings.ToUpper(c.String("method"))
	if method == "" {
		method = http.MethodGet
		if body != nil {
			method = http.MethodPost
		}
	}

	requestID := c.String("request-id")
	if requestID == "" {
		requestID = bunqsig.NewRequestID()
	}

	signed, err := engine.SignRequest(bunqsig.Request{
		Method: method,
		Path:   c.String("path"),
		Header: bunqsig.DefaultHeaderDefaults().Header(requestID),
		Body:   body,
	})
	if err != nil {
		return err
	}

	w := c.App.Writer

	if c.Bool("canonical") {
		fmt.Fprintf(w, "%s\n---\n", signed.Canonical)
	}

	names := make([]string, 0, len(signed.Header))
	for name := range signed.Header {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		fmt.Fprintf(w, "%s: %s\n", name, signed.Header[name])
	}

	return nil
}

func parseHeaderFlags(values []string) (bunqsig.Header, error) {
	header := bunqsig.Header{}

	for _, v := range values {
		name, value, ok := strings.Cut(v, ":")
		if !ok {
			return nil, fmt.Errorf("invalid header %q: expected 'Name: Value'", v)
		}

		header[http.CanonicalHeaderKey(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}

	return header, nil
}

func verifyCommand(c *cli.Context) error {
	path := c.String("server-key")
	if path == "" {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}

		path = cfg.ServerPublicKeyFile
	}

	var verifier bunqsig.Verifier

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read server public key: %w", err)
		}

		key, err := bunqsig.ParsePublicKeyPEM(data)
		if err != nil {
			return err
		}

		verifier, err = bunqsig.NewRSAVerifier(key)
		if err != nil {
			return err
		}
	}

	header, err := parseHeaderFlags(c.StringSlice("header"))
	if err != nil {
		return err
	}

	if sig := c.String("signature"); sig != "" {
		header[bunqsig.HeaderServerSignature] = sig
	}

	var body []byte
	if bodyFile := c.String("body-file"); bodyFile != "" {
		body, err = os.ReadFile(bodyFile)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
	}

	outcome, reason := bunqsig.VerifyResponseWith(verifier, bunqsig.Response{
		StatusCode: c.Int("status"),
		Header:     header,
		Body:       body,
	})

	fmt.Fprintln(c.App.Writer, outcome)

	if !outcome.Verified() {
		if reason != nil {
			return cli.Exit(fmt.Sprintf("verification %s: %v", outcome, reason), 1)
		}

		return cli.Exit(fmt.Sprintf("verification %s", outcome), 1)
	}

	return nil
}

func queryCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("query requires exactly one endpoint argument", 2)
	}

	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	if c.IsSet("verify") {
		cfg.Verify = c.Bool("verify")
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	engine, err := cfg.Engine()
	if err != nil {
		return err
	}

	cl, err := client.New(engine, client.Config{
		BaseURL:    cfg.BaseURL,
		APIVersion: cfg.APIVersion,
		Logger:     logger,
		Verify:     cfg.Verify,
		Defaults:   cfg.HeaderDefaults(),
	})
	if err != nil {
		return err
	}

	var payload any
	if data := c.String("data"); data != "" {
		if !json.Valid([]byte(data)) {
			return cli.Exit("--data is not valid JSON", 2)
		}

		payload = json.RawMessage(data)
	}

	resp, err := cl.Do(c.Context, strings.ToUpper(c.String("method")), c.Args().First(), payload)
	if err != nil {
		return err
	}

	logger.Info("response received",
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", resp.RequestID),
		zap.Stringer("verification", resp.Verification),
	)

	if _, err := c.App.Writer.Write(resp.Body); err != nil {
		return err
	}

	if cfg.Verify && !resp.Verification.Verified() {
		return cli.Exit(fmt.Sprintf("verification %s", resp.Verification), 1)
	}

	return nil
}

func serveCommand(c *cli.Context) error {
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	handler, err := newEchoHandler(echoConfig{
		ClientKeyFile: c.String("client-key"),
		ServerKeyFile: c.String("server-key"),
		MaxBodyBytes:  c.Int64("max-body"),
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              c.String("addr"),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)

	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
