package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable, e.g. CREDLEDGER_LEDGER_MODE.
const EnvPrefix = "CREDLEDGER"

// DevSigningKey is accepted outside production only.
const DevSigningKey = "dev-secret-key-change-in-production"

const (
	ModeMemory  = "memory"
	ModeRPC     = "rpc"
	ModePinning = "pinning"
)

// Config is the full service configuration.
type Config struct {
	Server  Server  `yaml:"server"  envconfig:"SERVER"`
	Auth    Auth    `yaml:"auth"    envconfig:"AUTH"`
	Ledger  Ledger  `yaml:"ledger"  envconfig:"LEDGER"`
	Content Content `yaml:"content" envconfig:"CONTENT"`
	Cache   Cache   `yaml:"cache"   envconfig:"CACHE"`
	Tracing Tracing `yaml:"tracing" envconfig:"TRACING"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr           string        `yaml:"addr"           envconfig:"ADDR"`
	Environment    string        `yaml:"environment"    envconfig:"ENVIRONMENT"`
	LogLevel       string        `yaml:"logLevel"       envconfig:"LOG_LEVEL"`
	RequestTimeout time.Duration `yaml:"requestTimeout" envconfig:"REQUEST_TIMEOUT"`
	MaxBodyBytes   int64         `yaml:"maxBodyBytes"   envconfig:"MAX_BODY_BYTES"`
	TrustedProxies []string      `yaml:"trustedProxies" envconfig:"TRUSTED_PROXIES"`
}

// Auth configures bearer token issuance.
type Auth struct {
	SigningKey string        `yaml:"signingKey" envconfig:"SIGNING_KEY"`
	Issuer     string        `yaml:"issuer"     envconfig:"ISSUER"`
	TokenTTL   time.Duration `yaml:"tokenTTL"   envconfig:"TOKEN_TTL"`
}

// Ledger selects and tunes the ledger client.
type Ledger struct {
	Mode           string        `yaml:"mode"           envconfig:"MODE"`
	RPCURL         string        `yaml:"rpcURL"         envconfig:"RPC_URL"`
	IssuerAddress  string        `yaml:"issuerAddress"  envconfig:"ISSUER_ADDRESS"`
	BlockInterval  time.Duration `yaml:"blockInterval"  envconfig:"BLOCK_INTERVAL"`
	ConfirmTimeout time.Duration `yaml:"confirmTimeout" envconfig:"CONFIRM_TIMEOUT"`
	PollInterval   time.Duration `yaml:"pollInterval"   envconfig:"POLL_INTERVAL"`
}

// Content selects the content store and its circuit breaker.
type Content struct {
	Mode             string        `yaml:"mode"             envconfig:"MODE"`
	PinningAPIURL    string        `yaml:"pinningAPIURL"    envconfig:"PINNING_API_URL"`
	GatewayURL       string        `yaml:"gatewayURL"       envconfig:"GATEWAY_URL"`
	APIKey           string        `yaml:"apiKey"           envconfig:"API_KEY"`
	APISecret        string        `yaml:"apiSecret"        envconfig:"API_SECRET"`
	RequestTimeout   time.Duration `yaml:"requestTimeout"   envconfig:"REQUEST_TIMEOUT"`
	BreakerFailures  int           `yaml:"breakerFailures"  envconfig:"BREAKER_FAILURES"`
	BreakerSuccesses int           `yaml:"breakerSuccesses" envconfig:"BREAKER_SUCCESSES"`
	BreakerCooldown  time.Duration `yaml:"breakerCooldown"  envconfig:"BREAKER_COOLDOWN"`
}

// Cache enables the Redis read-through cache for content when RedisURL is set.
type Cache struct {
	RedisURL string        `yaml:"redisURL" envconfig:"REDIS_URL"`
	TTL      time.Duration `yaml:"ttl"      envconfig:"TTL"`
}

// Tracing enables OpenTelemetry span export ("otlp" or "stdout").
type Tracing struct {
	Enabled  bool   `yaml:"enabled"  envconfig:"ENABLED"`
	Exporter string `yaml:"exporter" envconfig:"EXPORTER"`
}

// Default returns the development configuration: in-memory ledger and store.
func Default() Config {
	return Config{
		Server: Server{
			Addr:           ":8080",
			Environment:    "development",
			LogLevel:       "info",
			RequestTimeout: 60 * time.Second,
			MaxBodyBytes:   1 << 20,
		},
		Auth: Auth{
			SigningKey: DevSigningKey,
			Issuer:     "credledger",
			TokenTTL:   7 * 24 * time.Hour,
		},
		Ledger: Ledger{
			Mode:           ModeMemory,
			IssuerAddress:  "0x00000000000000000000000000000000000000a1",
			BlockInterval:  2 * time.Second,
			ConfirmTimeout: 30 * time.Second,
			PollInterval:   time.Second,
		},
		Content: Content{
			Mode:             ModeMemory,
			RequestTimeout:   15 * time.Second,
			BreakerFailures:  5,
			BreakerSuccesses: 2,
			BreakerCooldown:  10 * time.Second,
		},
		Cache: Cache{
			TTL: time.Hour,
		},
		Tracing: Tracing{
			Exporter: "otlp",
		},
	}
}

// Load builds a Config from defaults, then the optional YAML file at path,
// then CREDLEDGER_* environment variables, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsProduction reports whether the service runs in a production environment.
func (c Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Validate rejects inconsistent combinations.
func (c Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Auth.SigningKey == "" {
		errs = append(errs, errors.New("auth.signingKey is required"))
	}
	if c.IsProduction() && c.Auth.SigningKey == DevSigningKey {
		errs = append(errs, errors.New("auth.signingKey must be overridden in production"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.tokenTTL must be positive"))
	}

	switch c.Ledger.Mode {
	case ModeMemory:
	case ModeRPC:
		if c.Ledger.RPCURL == "" {
			errs = append(errs, errors.New("ledger.rpcURL is required in rpc mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("ledger.mode %q must be %q or %q", c.Ledger.Mode, ModeMemory, ModeRPC))
	}
	if c.Ledger.IssuerAddress == "" {
		errs = append(errs, errors.New("ledger.issuerAddress is required"))
	}
	if c.Ledger.BlockInterval <= 0 {
		errs = append(errs, errors.New("ledger.blockInterval must be positive"))
	}
	if c.Ledger.ConfirmTimeout < c.Ledger.BlockInterval {
		errs = append(errs, errors.New("ledger.confirmTimeout must be at least one block interval"))
	}
	if c.Server.RequestTimeout > 0 && c.Server.RequestTimeout <= c.Content.RequestTimeout+c.Ledger.ConfirmTimeout {
		errs = append(errs, errors.New("server.requestTimeout must exceed content.requestTimeout plus ledger.confirmTimeout"))
	}
	if c.Ledger.PollInterval <= 0 {
		errs = append(errs, errors.New("ledger.pollInterval must be positive"))
	}

	switch c.Content.Mode {
	case ModeMemory:
	case ModePinning:
		if c.Content.PinningAPIURL == "" || c.Content.GatewayURL == "" {
			errs = append(errs, errors.New("content.pinningAPIURL and content.gatewayURL are required in pinning mode"))
		}
		if c.Content.APIKey == "" || c.Content.APISecret == "" {
			errs = append(errs, errors.New("content.apiKey and content.apiSecret are required in pinning mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("content.mode %q must be %q or %q", c.Content.Mode, ModeMemory, ModePinning))
	}

	if c.Cache.RedisURL != "" && c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be positive when redis is enabled"))
	}

	if c.Tracing.Enabled && c.Tracing.Exporter != "otlp" && c.Tracing.Exporter != "stdout" {
		errs = append(errs, fmt.Errorf("tracing.exporter %q must be otlp or stdout", c.Tracing.Exporter))
	}

	return errors.Join(errs...)
}
