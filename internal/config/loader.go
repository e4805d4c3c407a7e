package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// envVarPattern matches `${VAR}` placeholders resolved from the environment
// before TOML decoding (spec.md §6.4: "Secrets (${VAR}) are resolved from
// environment").
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load loads configuration from the TOML file at configPath (or the default
// `~/.config/subcog/config.toml` if empty), then layers the environment
// variable overrides from spec.md §6.3 on top, and validates the result.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (SUBCOG_ORG, SUBCOG_RETENTION_DAYS, ...)
//  2. TOML config file
//  3. Default() values
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("config: resolving home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "subcog", "config.toml")
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config: path validation: %w", err)
	}

	if info, err := os.Stat(configPath); err == nil {
		if err := validateConfigFileProperties(info); err != nil {
			return nil, fmt.Errorf("config: file validation: %w", err)
		}
		raw, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
		}
		resolved := expandEnvPlaceholders(string(raw))
		if _, err := toml.Decode(resolved, cfg); err != nil {
			return nil, fmt.Errorf("config: decoding %s: %w", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: stat %s: %w", configPath, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// expandEnvPlaceholders replaces every `${VAR}` occurrence with the value of
// the VAR environment variable, leaving the placeholder untouched if VAR is
// unset.
func expandEnvPlaceholders(doc string) string {
	return envVarPattern.ReplaceAllStringFunc(doc, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return match
	})
}

// applyEnvOverrides layers the environment variables named in spec.md §6.3
// on top of a loaded Config.
func applyEnvOverrides(cfg *Config) {
	if org := os.Getenv("SUBCOG_ORG"); org != "" {
		cfg.Features.OrgScope = true
	}

	cfg.Retention.DefaultDays = getEnvInt("SUBCOG_RETENTION_DAYS", cfg.Retention.DefaultDays)
	cfg.Retention.MinimumDays = getEnvInt("SUBCOG_RETENTION_MIN_DAYS", cfg.Retention.MinimumDays)
	cfg.Retention.BatchLimit = getEnvInt("SUBCOG_RETENTION_BATCH_LIMIT", cfg.Retention.BatchLimit)
	applyNamespaceOverrides(cfg, "SUBCOG_RETENTION_", "_DAYS")

	cfg.Expiration.BatchLimit = getEnvInt("SUBCOG_EXPIRATION_BATCH_LIMIT", cfg.Expiration.BatchLimit)
	cfg.Expiration.CleanupProbability = getEnvFloat("SUBCOG_EXPIRATION_CLEANUP_PROBABILITY", cfg.Expiration.CleanupProbability)

	cfg.Dedup.Enabled = getEnvBool("SUBCOG_DEDUP_ENABLED", cfg.Dedup.Enabled)
	cfg.Dedup.DefaultThreshold = getEnvFloat("SUBCOG_DEDUP_THRESHOLD_DEFAULT", cfg.Dedup.DefaultThreshold)
	cfg.Dedup.TimeWindowSecs = getEnvInt("SUBCOG_DEDUP_TIME_WINDOW_SECS", cfg.Dedup.TimeWindowSecs)
	cfg.Dedup.CacheCapacity = getEnvInt("SUBCOG_DEDUP_CACHE_CAPACITY", cfg.Dedup.CacheCapacity)
	cfg.Dedup.MinSemanticLength = getEnvInt("SUBCOG_DEDUP_MIN_SEMANTIC_LENGTH", cfg.Dedup.MinSemanticLength)
	applyDedupThresholdOverrides(cfg)

	cfg.Features.AutoCaptureUseLLM = getEnvBool("SUBCOG_AUTO_CAPTURE_USE_LLM", cfg.Features.AutoCaptureUseLLM)
}

// applyNamespaceOverrides scans the environment for SUBCOG_RETENTION_<NAMESPACE>_DAYS
// variables and records them in cfg.Retention.Overrides, keyed by lowercase
// namespace with underscores converted to hyphens (matching model.Namespace
// string values like "tech-debt").
func applyNamespaceOverrides(cfg *Config, prefix, suffix string) {
	for _, entry := range os.Environ() {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key, value := parts[0], parts[1]
		if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, suffix) {
			continue
		}
		middle := strings.TrimSuffix(strings.TrimPrefix(key, prefix), suffix)
		if middle == "" || middle == "DAYS" || middle == "MIN" || middle == "BATCH_LIMIT" {
			continue
		}
		namespace := strings.ToLower(strings.ReplaceAll(middle, "_", "-"))
		var days int
		if _, err := fmt.Sscanf(value, "%d", &days); err != nil {
			continue
		}
		if cfg.Retention.Overrides == nil {
			cfg.Retention.Overrides = make(map[string]int)
		}
		cfg.Retention.Overrides[namespace] = days
	}
}

// applyDedupThresholdOverrides scans the environment for
// SUBCOG_DEDUP_THRESHOLD_<NAMESPACE> variables (spec.md §6.3, excluding the
// already-handled DEFAULT suffix).
func applyDedupThresholdOverrides(cfg *Config) {
	const prefix = "SUBCOG_DEDUP_THRESHOLD_"
	for _, entry := range os.Environ() {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key, value := parts[0], parts[1]
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		suffix := strings.TrimPrefix(key, prefix)
		if suffix == "" || suffix == "DEFAULT" {
			continue
		}
		namespace := strings.ToLower(strings.ReplaceAll(suffix, "_", "-"))
		var threshold float64
		if _, err := fmt.Sscanf(value, "%f", &threshold); err != nil {
			continue
		}
		if cfg.Dedup.Thresholds == nil {
			cfg.Dedup.Thresholds = make(map[string]float64)
		}
		cfg.Dedup.Thresholds[namespace] = threshold
	}
}

// EnsureConfigDir creates subcog's config directory if it doesn't exist, with
// 0700 permissions (owner read/write/execute only).
func EnsureConfigDir() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("config: resolving home directory: %w", err)
	}
	configDir := filepath.Join(home, ".config", "subcog")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("config: creating %s: %w", configDir, err)
	}
	return nil
}

// validateConfigPath checks that path resolves into one of the allowed
// configuration directories, even if the file doesn't exist yet.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		resolvedPath = absPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolving home directory: %w", err)
	}

	allowedDirs := []string{
		filepath.Join(home, ".config", "subcog"),
		"/etc/subcog",
	}

	for _, dir := range allowedDirs {
		if strings.HasPrefix(resolvedPath, dir) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/subcog/ or /etc/subcog/, got %s", resolvedPath)
}

// validateConfigFileProperties checks the config file's permissions and
// size (spec.md §6.4 ambient security contract, carried from the teacher's
// config-loading convention).
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}
