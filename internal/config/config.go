package config

import (
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lunaticom/campaign-builder/internal/brief"
	"github.com/lunaticom/campaign-builder/internal/dnscheck"
	"github.com/lunaticom/campaign-builder/internal/filename"
	"github.com/lunaticom/campaign-builder/internal/ratelimit"
)

// Environment variables that fill empty credentials
const (
	EnvImgBBAPIKey = "IMGBB_API_KEY"
	EnvHookURL     = "ZAPIER_HOOK_URL"
	EnvAPIKey      = "CAMPAIGN_API_KEY"
)

// Template sources
const (
	TemplateSourceBolt = "bolt"
	TemplateSourceDir  = "dir"
)

// Config is the main configuration structure
type Config struct {
	API       APIConfig       `yaml:"api"`
	Templates TemplatesConfig `yaml:"templates"`
	Output    OutputConfig    `yaml:"output"`
	Preview   PreviewConfig   `yaml:"preview"`
	ImgBB     ImgBBConfig     `yaml:"imgbb"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Proof     ProofConfig     `yaml:"proof"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`

	// EnvFile is loaded by the CLI before the config file is read
	EnvFile string `yaml:"env_file"`
}

// APIConfig contains HTTP API settings
type APIConfig struct {
	ListenAddr     string        `yaml:"listen_addr"`
	APIKey         string        `yaml:"api_key"`
	APIKeyHash     string        `yaml:"api_key_hash"`     // bcrypt hash, checked when api_key is empty
	MaxHeaderBytes int           `yaml:"max_header_bytes"` // Default: 1MB
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`   // Default: 16MB, images arrive base64-encoded
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	AllowedIPs     []string      `yaml:"allowed_ips"`     // empty = allow all
	TrustedProxies []string      `yaml:"trusted_proxies"` // peers whose X-Forwarded-For is honored
	TLS            TLSConfig     `yaml:"tls"`
}

// TLSConfig enables HTTPS for the API with manual certificates or ACME
type TLSConfig struct {
	CertFile string     `yaml:"cert_file"`
	KeyFile  string     `yaml:"key_file"`
	ACME     ACMEConfig `yaml:"acme"`
}

// Enabled reports whether the API is served over HTTPS
func (t TLSConfig) Enabled() bool {
	return t.ACME.Enabled || t.CertFile != ""
}

// ACMEConfig contains Let's Encrypt settings
type ACMEConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Email        string   `yaml:"email"`
	Domains      []string `yaml:"domains"`
	CacheDir     string   `yaml:"cache_dir"`     // Default: /var/lib/campaign-builder/certs
	HTTPAddr     string   `yaml:"http_addr"`     // HTTP-01 challenge listener, Default: :80
	DirectoryURL string   `yaml:"directory_url"` // empty = Let's Encrypt production
}

// TemplatesConfig selects where email templates are loaded from
type TemplatesConfig struct {
	Source string `yaml:"source"` // bolt, dir
	Path   string `yaml:"path"`   // BoltDB file
	Dir    string `yaml:"dir"`    // directory of <type>.html files
}

// OutputConfig controls generated document names and layout
type OutputConfig struct {
	FilenamePolicy filename.Policy `yaml:"filename_policy"` // underscore, slug
	BriefLayout    brief.Layout    `yaml:"brief_layout"`    // standard, compact
}

// PreviewConfig controls the live preview formatter
type PreviewConfig struct {
	CollapseBlankLines *bool `yaml:"collapse_blank_lines"` // Default: true
}

// ImgBBConfig contains image host settings
type ImgBBConfig struct {
	APIKey     string        `yaml:"api_key"`
	UploadURL  string        `yaml:"upload_url"`
	Timeout    time.Duration `yaml:"timeout"`
	Expiration time.Duration `yaml:"expiration"` // 0 = keep forever
}

// WebhookConfig contains automation hook settings
type WebhookConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
	Source  string        `yaml:"source"`
}

// ProofConfig contains proof email relay settings
type ProofConfig struct {
	Enabled     bool       `yaml:"enabled"`
	Addr        string     `yaml:"addr"`
	ImplicitTLS bool       `yaml:"implicit_tls"`
	Username    string     `yaml:"username"`
	Password    string     `yaml:"password"`
	From        string     `yaml:"from"`
	DKIM        DKIMConfig `yaml:"dkim"`
}

// DKIMConfig contains DKIM signing settings for proof mail
type DKIMConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Domain   string `yaml:"domain"`
	Selector string `yaml:"selector"`
	KeyFile  string `yaml:"key_file"`
}

// RateLimitConfig caps calls that reach the image host, hook and relay
type RateLimitConfig struct {
	Enabled       bool                        `yaml:"enabled"`
	Global        *ratelimit.Limit            `yaml:"global"`
	PerIP         *ratelimit.Limit            `yaml:"per_ip"`
	PerAction     map[string]*ratelimit.Limit `yaml:"per_action"` // upload, submit, proof
	FlushInterval time.Duration               `yaml:"flush_interval"`
}

// MetricsConfig contains Prometheus metrics settings
type MetricsConfig struct {
	Enabled    bool     `yaml:"enabled"`
	ListenAddr string   `yaml:"listen_addr"` // Default: :9090
	Path       string   `yaml:"path"`        // Default: /metrics
	AllowedIPs []string `yaml:"allowed_ips"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return finish(cfg)
}

// Default returns the configuration used when no file is given
func Default() (*Config, error) {
	return finish(&Config{})
}

func finish(cfg *Config) (*Config, error) {
	cfg.setDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":8080"
	}
	if c.API.MaxHeaderBytes == 0 {
		c.API.MaxHeaderBytes = 1 << 20
	}
	if c.API.MaxBodyBytes == 0 {
		c.API.MaxBodyBytes = 16 << 20
	}
	if c.API.ReadTimeout == 0 {
		c.API.ReadTimeout = 30 * time.Second
	}
	if c.API.WriteTimeout == 0 {
		c.API.WriteTimeout = 60 * time.Second
	}
	if c.API.IdleTimeout == 0 {
		c.API.IdleTimeout = 60 * time.Second
	}

	if c.API.TLS.ACME.CacheDir == "" {
		c.API.TLS.ACME.CacheDir = "/var/lib/campaign-builder/certs"
	}
	if c.API.TLS.ACME.HTTPAddr == "" {
		c.API.TLS.ACME.HTTPAddr = ":80"
	}

	if c.Templates.Source == "" {
		c.Templates.Source = TemplateSourceBolt
	}
	if c.Templates.Path == "" {
		c.Templates.Path = "/var/lib/campaign-builder/templates.db"
	}
	if c.Templates.Dir == "" {
		c.Templates.Dir = "templates"
	}

	if c.Output.FilenamePolicy == "" {
		c.Output.FilenamePolicy = filename.PolicyUnderscore
	}
	if c.Output.BriefLayout == "" {
		c.Output.BriefLayout = brief.LayoutStandard
	}

	if c.Preview.CollapseBlankLines == nil {
		collapse := true
		c.Preview.CollapseBlankLines = &collapse
	}

	if c.ImgBB.Timeout == 0 {
		c.ImgBB.Timeout = 30 * time.Second
	}
	if c.Webhook.Timeout == 0 {
		c.Webhook.Timeout = 30 * time.Second
	}
	if c.Webhook.Source == "" {
		c.Webhook.Source = "react-form"
	}

	if c.Proof.Addr == "" {
		c.Proof.Addr = "localhost:587"
	}
	if c.Proof.DKIM.Selector == "" {
		c.Proof.DKIM.Selector = "campaign"
	}

	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = ":9090"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// applyEnv fills empty credentials from the environment
func (c *Config) applyEnv() {
	if c.ImgBB.APIKey == "" {
		c.ImgBB.APIKey = os.Getenv(EnvImgBBAPIKey)
	}
	if c.Webhook.URL == "" {
		c.Webhook.URL = os.Getenv(EnvHookURL)
	}
	if c.API.APIKey == "" && c.API.APIKeyHash == "" {
		c.API.APIKey = os.Getenv(EnvAPIKey)
	}
}

// CollapseBlankLines reports whether the preview collapses blank lines
func (c *Config) CollapseBlankLines() bool {
	return c.Preview.CollapseBlankLines == nil || *c.Preview.CollapseBlankLines
}

// Validate validates the configuration. Missing third-party credentials are
// not errors here: they are reported per request.
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid logging.format: %s (must be json or text)", c.Logging.Format)
	}

	switch c.Templates.Source {
	case TemplateSourceBolt, TemplateSourceDir:
	default:
		return fmt.Errorf("invalid templates.source: %s (must be bolt or dir)", c.Templates.Source)
	}

	if !c.Output.FilenamePolicy.Valid() {
		return fmt.Errorf("invalid output.filename_policy: %s (must be underscore or slug)", c.Output.FilenamePolicy)
	}
	if !c.Output.BriefLayout.Valid() {
		return fmt.Errorf("invalid output.brief_layout: %s (must be standard or compact)", c.Output.BriefLayout)
	}

	if c.API.APIKey != "" && c.API.APIKeyHash != "" {
		return fmt.Errorf("api.api_key and api.api_key_hash are mutually exclusive")
	}
	if c.API.MaxBodyBytes < 0 {
		return fmt.Errorf("api.max_body_bytes must not be negative")
	}

	for _, proxy := range c.API.TrustedProxies {
		if !validNetwork(proxy) {
			return fmt.Errorf("invalid api.trusted_proxies entry: %q (must be an IP or CIDR)", proxy)
		}
	}

	if err := c.validateTLS(); err != nil {
		return err
	}

	if err := c.validateRateLimit(); err != nil {
		return err
	}

	return c.validateProof()
}

func validNetwork(s string) bool {
	if strings.Contains(s, "/") {
		_, err := netip.ParsePrefix(s)
		return err == nil
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}

func (c *Config) validateTLS() error {
	t := c.API.TLS

	if t.ACME.Enabled {
		if t.CertFile != "" || t.KeyFile != "" {
			return fmt.Errorf("api.tls.acme and api.tls.cert_file are mutually exclusive")
		}
		if len(t.ACME.Domains) == 0 {
			return fmt.Errorf("api.tls.acme.domains is required when ACME is enabled")
		}
		if t.ACME.Email == "" {
			return fmt.Errorf("api.tls.acme.email is required when ACME is enabled")
		}
		return nil
	}

	if (t.CertFile == "") != (t.KeyFile == "") {
		return fmt.Errorf("api.tls.cert_file and api.tls.key_file must be set together")
	}
	return nil
}

// RateLimitActions are the actions accepted in rate_limit.per_action
var RateLimitActions = []string{"upload", "submit", "proof"}

func (c *Config) validateRateLimit() error {
	if !c.RateLimit.Enabled {
		return nil
	}

	for action, limit := range c.RateLimit.PerAction {
		known := false
		for _, a := range RateLimitActions {
			if a == action {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("invalid rate_limit.per_action key: %s (must be upload, submit or proof)", action)
		}
		if limit == nil || limit.PerHour < 0 || limit.PerDay < 0 {
			return fmt.Errorf("invalid rate_limit.per_action.%s: limits must not be negative", action)
		}
	}

	for name, limit := range map[string]*ratelimit.Limit{"global": c.RateLimit.Global, "per_ip": c.RateLimit.PerIP} {
		if limit != nil && (limit.PerHour < 0 || limit.PerDay < 0) {
			return fmt.Errorf("invalid rate_limit.%s: limits must not be negative", name)
		}
	}

	return nil
}

// validateProof validates proof relay and DKIM configuration
func (c *Config) validateProof() error {
	if !c.Proof.Enabled {
		return nil
	}

	if c.Proof.From == "" {
		return fmt.Errorf("proof.from is required when proof is enabled")
	}
	if c.Proof.Password != "" && c.Proof.Username == "" {
		return fmt.Errorf("proof.username is required when proof.password is set")
	}

	dkim := c.Proof.DKIM
	if !dkim.Enabled {
		return nil
	}
	if dkim.Domain == "" {
		return fmt.Errorf("proof.dkim.domain is required when DKIM is enabled")
	}
	if err := dnscheck.ValidateDomain(dkim.Domain); err != nil {
		return fmt.Errorf("proof.dkim.domain: %w", err)
	}
	if err := dnscheck.ValidateSelector(dkim.Selector); err != nil {
		return fmt.Errorf("proof.dkim.selector: %w", err)
	}
	if dkim.KeyFile == "" {
		return fmt.Errorf("proof.dkim.key_file is required when DKIM is enabled")
	}
	if _, err := os.Stat(dkim.KeyFile); err != nil {
		return fmt.Errorf("proof.dkim.key_file not accessible: %w", err)
	}

	return nil
}
