package config

import (
	"fmt"
	"time"

	"github.com/justapithecus/forge/fix"
)

// Config represents a forge.yaml configuration file.
// All values are optional and act as defaults for forge run flags.
// CLI flags always override config values.
type Config struct {
	Workspace string        `yaml:"workspace"`
	RunID     string        `yaml:"run_id"`
	SessionID string        `yaml:"session_id"`
	Journal   JournalConfig `yaml:"journal"`
	Archive   ArchiveConfig `yaml:"archive"`
	Adapter   AdapterConfig `yaml:"adapter"`
	Rules     RulesConfig   `yaml:"rules"`
}

// JournalConfig holds journal flush defaults from the config file.
type JournalConfig struct {
	Path          string   `yaml:"path"`
	FlushCount    int      `yaml:"flush_count"`
	FlushInterval Duration `yaml:"flush_interval"`
}

// ArchiveConfig holds archive defaults from the config file.
type ArchiveConfig struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// AdapterConfig holds adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// RulesConfig overrides entries in the standard fixer correction tables.
// Map entries merge over the defaults; list entries append. Removing a
// default rule is not supported from config.
type RulesConfig struct {
	PackageCorrections   map[string]string `yaml:"package_corrections,omitempty"`
	RemovedPackages      []string          `yaml:"removed_packages,omitempty"`
	DisallowedFrameworks []string          `yaml:"disallowed_frameworks,omitempty"`
	ImportCorrections    map[string]string `yaml:"import_corrections,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// FixRules merges the config-file overrides into the standard correction
// tables and returns the resulting rule set. With no overrides this is
// exactly fix.DefaultRules().
func (c *Config) FixRules() fix.Rules {
	rules := fix.DefaultRules()

	for from, to := range c.Rules.PackageCorrections {
		rules.PackageCorrections[from] = to
	}
	for from, to := range c.Rules.ImportCorrections {
		rules.ImportCorrections[from] = to
	}
	rules.RemovedPackages = appendMissing(rules.RemovedPackages, c.Rules.RemovedPackages)
	rules.DisallowedFrameworks = appendMissing(rules.DisallowedFrameworks, c.Rules.DisallowedFrameworks)

	return rules
}

// appendMissing appends entries from extra not already present in base,
// preserving order so rule evaluation stays deterministic.
func appendMissing(base, extra []string) []string {
	seen := make(map[string]bool, len(base))
	for _, s := range base {
		seen[s] = true
	}
	for _, s := range extra {
		if !seen[s] {
			base = append(base, s)
			seen[s] = true
		}
	}
	return base
}
