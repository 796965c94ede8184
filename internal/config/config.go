// Package config builds the service configuration from the environment.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is constructed once at startup and passed to every component.
type Config struct {
	APIKey     string `env:"SHOPIFY_API_KEY,required"`
	APISecret  string `env:"SHOPIFY_API_SECRET,required"`
	Scopes     string `env:"SCOPES,default=write_orders"`
	AppURL     string `env:"SHOPIFY_APP_URL"`
	APIVersion string `env:"SHOPIFY_API_VERSION,default=2025-10"`

	// Static custom-app credentials, used when no stored session exists.
	ShopDomain  string `env:"SHOPIFY_SHOP_DOMAIN"`
	AccessToken string `env:"SHOPIFY_ACCESS_TOKEN"`
	// BaseURL replaces https://{shop} for upstream calls (proxies, tests).
	BaseURL string `env:"SHOPIFY_BASE_URL"`

	ListenAddr    string `env:"LISTEN_ADDR,default=:8080"`
	DataDir       string `env:"DATA_DIR,default=data"`
	MasterKeyHex  string `env:"SESSION_MASTER_KEY"`
	MasterKeyFile string `env:"MASTER_KEY_FILE,default=master.key"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=text"`
	LogFile   string `env:"LOG_FILE"`

	RateLimitRPS   int `env:"RATE_LIMIT_RPS,default=10"`
	RateLimitBurst int `env:"RATE_LIMIT_BURST,default=20"`

	UpstreamRPS        float64       `env:"UPSTREAM_RPS,default=2"`
	UpstreamTimeout    time.Duration `env:"UPSTREAM_TIMEOUT,default=30s"`
	UpstreamMaxRetries int           `env:"UPSTREAM_MAX_RETRIES,default=3"`
	// RequestTimeout bounds all upstream work done for one API request.
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT,default=60s"`

	CORSOrigins string `env:"CORS_ORIGINS,default=*"`

	DebugUser         string `env:"DEBUG_USER,default=admin"`
	DebugPasswordHash string `env:"DEBUG_PASSWORD_HASH"`
	DebugOpen         bool   `env:"DEBUG_OPEN,default=false"`

	TLSCertFile string `env:"TLS_CERT_FILE"`
	TLSKeyFile  string `env:"TLS_KEY_FILE"`
}

// Load reads envFile (if present) into the process environment and decodes
// the result. Variables already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env (%s): %w", envFile, err)
		}
	}

	var cfg Config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	cfg.ShopDomain = NormalizeShop(cfg.ShopDomain)
	cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that envdecode cannot.
func (c *Config) Validate() error {
	if c.ShopDomain != "" && !ValidShop(c.ShopDomain) {
		return fmt.Errorf("SHOPIFY_SHOP_DOMAIN %q is not a myshopify.com domain", c.ShopDomain)
	}
	if c.AccessToken != "" && c.ShopDomain == "" {
		return errors.New("SHOPIFY_ACCESS_TOKEN requires SHOPIFY_SHOP_DOMAIN")
	}
	if c.MasterKeyHex != "" {
		b, err := hex.DecodeString(strings.TrimSpace(c.MasterKeyHex))
		if err != nil || len(b) != 32 {
			return errors.New("SESSION_MASTER_KEY must be 64 hex characters")
		}
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.UpstreamRPS <= 0 {
		return errors.New("UPSTREAM_RPS must be positive")
	}
	if c.RequestTimeout < 0 {
		return errors.New("REQUEST_TIMEOUT must not be negative")
	}
	if c.UpstreamMaxRetries < 0 {
		return errors.New("UPSTREAM_MAX_RETRIES must not be negative")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return errors.New("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}
	return nil
}

// AllowedOrigins splits CORS_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// DebugEnabled reports whether the debug routes are reachable at all.
func (c *Config) DebugEnabled() bool {
	return c.DebugOpen || c.DebugPasswordHash != ""
}

// NormalizeShop lowercases a shop domain and strips scheme and path.
func NormalizeShop(shop string) string {
	s := strings.ToLower(strings.TrimSpace(shop))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return s
}

// ValidShop reports whether shop looks like "<handle>.myshopify.com".
func ValidShop(shop string) bool {
	const suffix = ".myshopify.com"
	if !strings.HasSuffix(shop, suffix) {
		return false
	}
	handle := strings.TrimSuffix(shop, suffix)
	if handle == "" {
		return false
	}
	for i, r := range handle {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '-' && i > 0:
		default:
			return false
		}
	}
	return true
}
