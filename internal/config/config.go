// Package config loads subcog's TOML configuration file (spec.md §6.4) and
// layers environment variable overrides (spec.md §6.3) on top of it.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Config holds the complete subcog configuration, assembled from the TOML
// document's `[storage.*]`, `[llm]`, `[consolidation]`, `[features]`, and
// `[[webhooks]]` sections (spec.md §6.4), then overridden by the environment
// variables in spec.md §6.3.
type Config struct {
	Storage       StorageConfig       `toml:"storage"`
	LLM           LLMConfig           `toml:"llm"`
	Consolidation ConsolidationConfig `toml:"consolidation"`
	Features      FeaturesConfig      `toml:"features"`
	Webhooks      []WebhookConfig     `toml:"webhooks"`
	Dedup         DedupConfig         `toml:"dedup"`
	Retention     RetentionConfig     `toml:"retention"`
	Expiration    ExpirationConfig    `toml:"expiration"`
	Observability ObservabilityConfig `toml:"observability"`
	Logging       LoggingConfig       `toml:"logging"`
}

// StorageBackendConfig is one domain scope's backend selection (spec.md
// §4.11).
type StorageBackendConfig struct {
	// Kind is "sqlite" or "filetree"; empty defaults to "sqlite".
	Kind string `toml:"kind"`
	// Path roots this scope's database/file tree.
	Path string `toml:"path"`
}

// StorageConfig holds `[storage.project]`, `[storage.user]`, and
// `[storage.org]`.
type StorageConfig struct {
	Project StorageBackendConfig `toml:"project"`
	User    StorageBackendConfig `toml:"user"`
	Org     StorageBackendConfig `toml:"org"`
}

// LLMConfig configures the optional langchaingo-backed LlmProvider used by
// consolidation summarization and PreCompact fallback classification.
type LLMConfig struct {
	Enabled bool   `toml:"enabled"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
	APIKey  Secret `toml:"api_key"`
}

// ConsolidationConfig mirrors internal/consolidation.Config (spec.md §4.10).
type ConsolidationConfig struct {
	Enabled                  bool    `toml:"enabled"`
	SimilarityThreshold      float64 `toml:"similarity_threshold"`
	MinMemoriesToConsolidate int     `toml:"min_memories_to_consolidate"`
	GroupScanLimit           int     `toml:"group_scan_limit"`
}

// FeaturesConfig holds boolean feature flags (spec.md §4.11's org-scope gate
// among them).
type FeaturesConfig struct {
	OrgScope          bool `toml:"org_scope"`
	Webhooks          bool `toml:"webhooks"`
	AutoCaptureUseLLM bool `toml:"auto_capture_use_llm"`
}

// WebhookRetryConfig mirrors internal/webhooks.RetryConfig.
type WebhookRetryConfig struct {
	MaxRetries  int `toml:"max_retries"`
	BaseDelayMs int `toml:"base_delay_ms"`
	TimeoutSecs int `toml:"timeout_secs"`
}

// WebhookConfig is one `[[webhooks]]` array entry (spec.md §4.14).
type WebhookConfig struct {
	Name    string             `toml:"name"`
	URL     string             `toml:"url"`
	Auth    string             `toml:"auth"` // none|bearer|hmac|both
	Secret  Secret             `toml:"secret"`
	Events  []string           `toml:"events"`
	Scopes  []string           `toml:"scopes"`
	Enabled bool               `toml:"enabled"`
	Retry   WebhookRetryConfig `toml:"retry"`
	Format  string             `toml:"format"` // json|slack|discord
}

// DedupConfig mirrors internal/dedup.Config (spec.md §4.5, supplemented
// per-namespace thresholds).
type DedupConfig struct {
	Enabled           bool               `toml:"enabled"`
	Thresholds        map[string]float64 `toml:"thresholds"`
	DefaultThreshold  float64            `toml:"default_threshold"`
	TimeWindowSecs    int                `toml:"time_window_secs"`
	CacheCapacity     int                `toml:"cache_capacity"`
	MinSemanticLength int                `toml:"min_semantic_length"`
}

// RetentionConfig mirrors internal/gc.RetentionConfig.
type RetentionConfig struct {
	DefaultDays int            `toml:"default_days"`
	MinimumDays int            `toml:"minimum_days"`
	BatchLimit  int            `toml:"batch_limit"`
	Overrides   map[string]int `toml:"overrides"`
}

// ExpirationConfig mirrors internal/gc.ExpirationConfig.
type ExpirationConfig struct {
	BatchLimit         int     `toml:"batch_limit"`
	CleanupProbability float64 `toml:"cleanup_probability"`
}

// ObservabilityConfig configures internal/telemetry.
type ObservabilityConfig struct {
	EnableTelemetry bool   `toml:"enable_telemetry"`
	ServiceName     string `toml:"service_name"`
	OTLPEndpoint    string `toml:"otlp_endpoint"`
	OTLPInsecure    bool   `toml:"otlp_insecure"`
}

// LoggingConfig configures internal/logging's level and format only; the
// richer sampling/redaction knobs keep their own package defaults
// (logging.NewDefaultConfig), consistent with the teacher's split between
// process-wide config and logger-internal tuning.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns a Config populated with subcog's built-in defaults,
// matching every default value named in spec.md (dedup thresholds §4.5,
// retention/expiration §4.8-4.9, consolidation §4.10, webhook retry §4.14).
func Default() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".config", "subcog")

	return &Config{
		Storage: StorageConfig{
			Project: StorageBackendConfig{Kind: "sqlite", Path: filepath.Join(base, "project")},
			User:    StorageBackendConfig{Kind: "sqlite", Path: filepath.Join(base, "user")},
			Org:     StorageBackendConfig{Kind: "sqlite", Path: filepath.Join(base, "org")},
		},
		LLM: LLMConfig{
			Enabled: false,
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		Consolidation: ConsolidationConfig{
			Enabled:                  false,
			SimilarityThreshold:      0.85,
			MinMemoriesToConsolidate: 3,
			GroupScanLimit:           500,
		},
		Features: FeaturesConfig{
			OrgScope:          false,
			Webhooks:          false,
			AutoCaptureUseLLM: false,
		},
		Dedup: DedupConfig{
			Enabled: true,
			Thresholds: map[string]float64{
				"decisions": 0.92,
				"patterns":  0.90,
				"learnings": 0.88,
			},
			DefaultThreshold:  0.90,
			TimeWindowSecs:    300,
			CacheCapacity:     1000,
			MinSemanticLength: 20,
		},
		Retention: RetentionConfig{
			DefaultDays: 365,
			MinimumDays: 7,
			BatchLimit:  500,
		},
		Expiration: ExpirationConfig{
			BatchLimit:         500,
			CleanupProbability: 0.05,
		},
		Observability: ObservabilityConfig{
			EnableTelemetry: false,
			ServiceName:     "subcog",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for internally inconsistent or unsafe
// values.
func (c *Config) Validate() error {
	if err := validateBackend(c.Storage.Project, "storage.project"); err != nil {
		return err
	}
	if err := validateBackend(c.Storage.User, "storage.user"); err != nil {
		return err
	}
	if c.Features.OrgScope {
		if err := validateBackend(c.Storage.Org, "storage.org"); err != nil {
			return err
		}
	}

	if c.LLM.Enabled {
		if c.LLM.BaseURL == "" {
			return errors.New("llm.base_url required when llm.enabled is true")
		}
		if err := validateURL(c.LLM.BaseURL); err != nil {
			return fmt.Errorf("llm.base_url: %w", err)
		}
	}

	if c.Consolidation.SimilarityThreshold < 0 || c.Consolidation.SimilarityThreshold > 1 {
		return fmt.Errorf("consolidation.similarity_threshold must be in [0,1], got %v", c.Consolidation.SimilarityThreshold)
	}
	if c.Consolidation.MinMemoriesToConsolidate < 2 {
		return fmt.Errorf("consolidation.min_memories_to_consolidate must be >= 2, got %d", c.Consolidation.MinMemoriesToConsolidate)
	}

	for i, wh := range c.Webhooks {
		if err := wh.validate(); err != nil {
			return fmt.Errorf("webhooks[%d] %q: %w", i, wh.Name, err)
		}
	}

	if c.Dedup.DefaultThreshold < 0 || c.Dedup.DefaultThreshold > 1 {
		return fmt.Errorf("dedup.default_threshold must be in [0,1], got %v", c.Dedup.DefaultThreshold)
	}
	for ns, th := range c.Dedup.Thresholds {
		if th < 0 || th > 1 {
			return fmt.Errorf("dedup.thresholds[%s] must be in [0,1], got %v", ns, th)
		}
	}

	if c.Retention.MinimumDays < 0 {
		return fmt.Errorf("retention.minimum_days must be >= 0, got %d", c.Retention.MinimumDays)
	}
	if c.Retention.DefaultDays < c.Retention.MinimumDays {
		return fmt.Errorf("retention.default_days (%d) must be >= retention.minimum_days (%d)", c.Retention.DefaultDays, c.Retention.MinimumDays)
	}

	if c.Expiration.CleanupProbability < 0 || c.Expiration.CleanupProbability > 1 {
		return fmt.Errorf("expiration.cleanup_probability must be in [0,1], got %v", c.Expiration.CleanupProbability)
	}

	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("observability.service_name required when enable_telemetry is true")
	}

	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	return nil
}

func (w WebhookConfig) validate() error {
	if w.Name == "" {
		return errors.New("name required")
	}
	if w.URL == "" {
		return errors.New("url required")
	}
	isLocalhost := strings.Contains(w.URL, "localhost") || strings.Contains(w.URL, "127.0.0.1")
	if !isLocalhost && !strings.HasPrefix(w.URL, "https://") {
		return fmt.Errorf("url must use https:// unless targeting localhost, got %q", w.URL)
	}
	switch w.Auth {
	case "", "none", "bearer", "hmac", "both":
	default:
		return fmt.Errorf("auth must be one of none|bearer|hmac|both, got %q", w.Auth)
	}
	switch w.Format {
	case "", "json", "slack", "discord":
	default:
		return fmt.Errorf("format must be one of json|slack|discord, got %q", w.Format)
	}
	return nil
}

func validateBackend(b StorageBackendConfig, field string) error {
	switch b.Kind {
	case "", "sqlite", "filetree":
	default:
		return fmt.Errorf("%s.kind must be 'sqlite' or 'filetree', got %q", field, b.Kind)
	}
	if b.Path == "" {
		return fmt.Errorf("%s.path is required", field)
	}
	if err := validatePath(b.Path); err != nil {
		return fmt.Errorf("%s.path: %w", field, err)
	}
	return nil
}

// validateHostname checks if a hostname is safe (no command injection attempts).
func validateHostname(host string) error {
	if host == "" {
		return nil
	}
	if net.ParseIP(host) != nil {
		return nil
	}
	hostnameRegex := regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)
	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("invalid hostname format: %s", host)
	}
	invalidChars := []string{";", "\n", "\r", "$", "`", "|", "&", "<", ">", "(", ")"}
	for _, char := range invalidChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("invalid hostname: contains forbidden character %q", char)
		}
	}
	return nil
}

// validatePath checks if a path is safe (no path traversal).
func validatePath(path string) error {
	if strings.Contains(path, "..") {
		return fmt.Errorf("path contains traversal sequence: %s", path)
	}
	if filepath.IsAbs(path) {
		clean := filepath.Clean(path)
		origDepth := strings.Count(path, string(filepath.Separator))
		cleanDepth := strings.Count(clean, string(filepath.Separator))
		if cleanDepth < origDepth-1 {
			return fmt.Errorf("path traversal detected: %s (resolves to %s)", path, clean)
		}
	}
	return nil
}

// validateURL checks if a URL uses allowed schemes (http/https only).
func validateURL(urlStr string) error {
	if !strings.HasPrefix(urlStr, "http://") && !strings.HasPrefix(urlStr, "https://") {
		return fmt.Errorf("URL must use http:// or https:// scheme, got: %s", urlStr)
	}
	return nil
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
