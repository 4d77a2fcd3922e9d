// Package config loads client configuration for the bunq signature engine
// from YAML or INI files and environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-ini/ini"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/vitalvas/bunq/bunqsig"
)

// Environment variable names that override file values.
const (
	EnvPrivateKeyFile      = "BUNQ_PRIVATE_KEY_FILE"
	EnvServerPublicKeyFile = "BUNQ_SERVER_PUBLIC_KEY_FILE"
	EnvToken               = "BUNQ_TOKEN"
	EnvBaseURL             = "BUNQ_BASE_URL"
	EnvAPIVersion          = "BUNQ_API_VERSION"
	EnvVerify              = "BUNQ_VERIFY"
)

// Defaults applied by Load and New.
const (
	DefaultBaseURL    = "https://api.bunq.com"
	DefaultAPIVersion = "v1"
	DefaultProfile    = "default"
)

// HeaderConfig overrides the fixed request header values. Empty fields keep
// the package defaults.
type HeaderConfig struct {
	CacheControl string `yaml:"cache_control"`
	UserAgent    string `yaml:"user_agent"`
	Geolocation  string `yaml:"geolocation"`
	Language     string `yaml:"language"`
	Region       string `yaml:"region"`
}

// Config is the client configuration.
type Config struct {
	// PrivateKeyFile is the PEM file with the client RSA private key.
	PrivateKeyFile string `yaml:"private_key_file"`

	// ServerPublicKeyFile is the PEM file with the server public key. When
	// empty, response verification is skipped.
	ServerPublicKeyFile string `yaml:"server_public_key_file"`

	// Token is the session token.
	Token string `yaml:"token"`

	BaseURL    string `yaml:"base_url"`
	APIVersion string `yaml:"api_version"`

	// Verify enables response verification.
	Verify bool `yaml:"verify"`

	Headers HeaderConfig `yaml:"headers"`
}

// New returns a Config with defaults applied.
func New() *Config {
	return &Config{
		BaseURL:    DefaultBaseURL,
		APIVersion: DefaultAPIVersion,
	}
}

// Load reads a configuration file. Files ending in .yaml or .yml are parsed
// as YAML; .ini, .conf and .cfg are parsed as INI using the default profile.
func Load(path string) (*Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(path)
	case ".ini", ".conf", ".cfg":
		return LoadINI(path, DefaultProfile)
	default:
		return nil, fmt.Errorf("unsupported config file type: %s", path)
	}
}

// LoadYAML reads a YAML configuration file.
func LoadYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := New()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyDefaults()

	return cfg, nil
}

// LoadINI reads one profile section from an INI file. An empty profile
// selects DefaultProfile.
func LoadINI(path, profile string) (*Config, error) {
	if profile == "" {
		profile = DefaultProfile
	}

	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load INI file %s: %w", path, err)
	}

	if !file.HasSection(profile) {
		return nil, fmt.Errorf("profile %q not found in %s", profile, path)
	}

	sec := file.Section(profile)

	cfg := New()
	cfg.PrivateKeyFile = sec.Key("private_key_file").String()
	cfg.ServerPublicKeyFile = sec.Key("server_public_key_file").String()
	cfg.Token = sec.Key("token").String()
	cfg.BaseURL = sec.Key("base_url").MustString(DefaultBaseURL)
	cfg.APIVersion = sec.Key("api_version").MustString(DefaultAPIVersion)
	cfg.Verify = sec.Key("verify").MustBool(false)
	cfg.Headers = HeaderConfig{
		CacheControl: sec.Key("cache_control").String(),
		UserAgent:    sec.Key("user_agent").String(),
		Geolocation:  sec.Key("geolocation").String(),
		Language:     sec.Key("language").String(),
		Region:       sec.Key("region").String(),
	}

	cfg.applyDefaults()

	return cfg, nil
}

// Profiles lists the section names of an INI file, skipping the implicit
// root section.
func Profiles(path string) ([]string, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load INI file %s: %w", path, err)
	}

	var names []string
	for _, sec := range file.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}

		names = append(names, sec.Name())
	}

	return names, nil
}

// ApplyEnv overrides fields from BUNQ_* environment variables.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvPrivateKeyFile); ok {
		c.PrivateKeyFile = v
	}

	if v, ok := os.LookupEnv(EnvServerPublicKeyFile); ok {
		c.ServerPublicKeyFile = v
	}

	if v, ok := os.LookupEnv(EnvToken); ok {
		c.Token = v
	}

	if v, ok := os.LookupEnv(EnvBaseURL); ok {
		c.BaseURL = v
	}

	if v, ok := os.LookupEnv(EnvAPIVersion); ok {
		c.APIVersion = v
	}

	if v, ok := os.LookupEnv(EnvVerify); ok {
		verify, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", EnvVerify, v, err)
		}

		c.Verify = verify
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}

	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
}

// Validate checks that the configuration can build an engine and client.
func (c *Config) Validate() error {
	var allErrors field.ErrorList

	if c.PrivateKeyFile == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("private_key_file"), "private key file is required"))
	}

	if c.Verify && c.ServerPublicKeyFile == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("server_public_key_file"), "server public key is required when verify is enabled"))
	}

	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		allErrors = append(allErrors, field.Invalid(field.NewPath("base_url"), c.BaseURL, "must be an absolute URL"))
	}

	if c.APIVersion == "" || strings.Contains(c.APIVersion, "/") {
		allErrors = append(allErrors, field.Invalid(field.NewPath("api_version"), c.APIVersion, "must be a single path segment"))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}

	return nil
}

// EngineConfig reads and parses the key files.
func (c *Config) EngineConfig() (bunqsig.EngineConfig, error) {
	data, err := os.ReadFile(c.PrivateKeyFile)
	if err != nil {
		return bunqsig.EngineConfig{}, fmt.Errorf("failed to read private key: %w", err)
	}

	privateKey, err := bunqsig.ParsePrivateKeyPEM(data)
	if err != nil {
		return bunqsig.EngineConfig{}, err
	}

	out := bunqsig.EngineConfig{
		PrivateKey: privateKey,
		Token:      c.Token,
	}

	if c.ServerPublicKeyFile != "" {
		data, err := os.ReadFile(c.ServerPublicKeyFile)
		if err != nil {
			return bunqsig.EngineConfig{}, fmt.Errorf("failed to read server public key: %w", err)
		}

		out.ServerPublicKey, err = bunqsig.ParsePublicKeyPEM(data)
		if err != nil {
			return bunqsig.EngineConfig{}, err
		}
	}

	return out, nil
}

// Engine builds a signature engine from the configured key files.
func (c *Config) Engine() (*bunqsig.Engine, error) {
	engineCfg, err := c.EngineConfig()
	if err != nil {
		return nil, err
	}

	return bunqsig.NewEngine(engineCfg)
}

// HeaderDefaults maps the header overrides onto bunqsig.HeaderDefaults.
func (c *Config) HeaderDefaults() bunqsig.HeaderDefaults {
	return bunqsig.HeaderDefaults{
		CacheControl: c.Headers.CacheControl,
		UserAgent:    c.Headers.UserAgent,
		Geolocation:  c.Headers.Geolocation,
		Language:     c.Headers.Language,
		Region:       c.Headers.Region,
	}
}
