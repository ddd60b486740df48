package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/spachava753/assetpipe/internal/models"
)

// DefaultConfigFile is looked up in the working directory when no path is given.
const DefaultConfigFile = "assetpipe.yaml"

// DefaultProjectConfig returns a ProjectConfig with default values.
func DefaultProjectConfig() models.ProjectConfig {
	return models.ProjectConfig{
		Root:     ".",
		LogLevel: "info",
		Clean:    []string{"assets", "languages", "build"},
		Dist: models.DistConfig{
			Files: models.Patterns{"**"},
			Exclude: models.Patterns{
				"node_modules/**", "build/**", "src/**", ".git/**",
				".gitignore", ".gitlab-ci.yml", "assetpipe.yaml", "assetpipe.local.yaml",
				"package.json", "package-lock.json", "composer.json", "composer.lock",
				".browserslistrc", "auth.json",
			},
			Dir: "build",
		},
		LiveReload: models.LiveReloadConfig{
			Host: "127.0.0.1",
			Port: 35729,
		},
		Watch: models.WatchConfig{
			DebounceMs: 100,
		},
		SourceMaps: models.SourceMapsInline,
	}
}

// LocalOverridePath returns the path of the optional override file that is
// merged over path, e.g. assetpipe.local.yaml for assetpipe.yaml.
func LocalOverridePath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

// LoadProjectConfig loads, merges and validates a project config file.
func LoadProjectConfig(path string) (models.ProjectConfig, error) {
	cfg := DefaultProjectConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading project config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing project config: %w", err)
	}

	overridePath := LocalOverridePath(path)
	if data, err := os.ReadFile(overridePath); err == nil {
		var override models.ProjectConfig
		if err := yaml.Unmarshal(data, &override); err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", overridePath, err)
		}
		if err := mergo.Merge(&cfg, override, mergo.WithOverride); err != nil {
			return cfg, fmt.Errorf("merging %s: %w", overridePath, err)
		}
		slog.Debug("merged local config override", "path", overridePath)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("reading %s: %w", overridePath, err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return cfg, fmt.Errorf("getting absolute path: %w", err)
	}
	cfg.Root = filepath.Dir(absPath)

	if cfg.MetadataFile != "" {
		meta, err := LoadPluginMeta(os.DirFS(cfg.Root), cfg.MetadataFile)
		if err != nil {
			return cfg, err
		}
		// The metadata file wins over inline plugin fields.
		if err := mergo.Merge(&cfg.Plugin, meta, mergo.WithOverride); err != nil {
			return cfg, fmt.Errorf("merging plugin metadata: %w", err)
		}
	}

	if err := ApplyDefaults(&cfg); err != nil {
		return cfg, err
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// ApplyDefaults fills each group's destination from its class defaultDest
// and restores defaults for zero-valued options.
func ApplyDefaults(cfg *models.ProjectConfig) error {
	for _, set := range []*models.GroupSet{&cfg.Styles, &cfg.Scripts, &cfg.Assets} {
		for i := range set.Groups {
			fallback := models.GroupSpec{Dest: set.DefaultDest}
			if err := mergo.Merge(&set.Groups[i], fallback); err != nil {
				return fmt.Errorf("applying defaultDest to %s: %w", set.Groups[i].Name, err)
			}
		}
	}

	defaults := DefaultProjectConfig()
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
	if cfg.Dist.Dir == "" {
		cfg.Dist.Dir = defaults.Dist.Dir
	}
	if cfg.LiveReload.Port == 0 {
		cfg.LiveReload.Port = defaults.LiveReload.Port
	}
	if cfg.LiveReload.Host == "" {
		cfg.LiveReload.Host = defaults.LiveReload.Host
	}
	if cfg.Watch.DebounceMs == 0 {
		cfg.Watch.DebounceMs = defaults.Watch.DebounceMs
	}
	if cfg.SourceMaps == "" {
		cfg.SourceMaps = defaults.SourceMaps
	}
	return nil
}

// Validate checks invariants that do not depend on the run mode.
func Validate(cfg models.ProjectConfig) error {
	for _, class := range models.AssetClasses {
		set := cfg.Groups(class)
		seen := make(map[string]bool, len(set.Groups))
		for _, g := range set.Groups {
			field := class.Namespace() + "." + g.Name
			switch {
			case g.Name == "":
				return models.Configf(class.Namespace(), "group name is required")
			case g.Name == models.DefaultDestKey:
				return models.Configf(field, "%q is reserved", models.DefaultDestKey)
			case strings.Contains(g.Name, ":"):
				return models.Configf(field, "group name must not contain ':'")
			case seen[g.Name]:
				return models.Configf(field, "duplicate group name")
			case len(g.Files) == 0:
				return models.Configf(field, "no source files configured")
			case g.Dest == "":
				return models.Configf(field, "no dest and no %s configured", models.DefaultDestKey)
			}
			seen[g.Name] = true
		}
	}

	switch cfg.SourceMaps {
	case models.SourceMapsInline, models.SourceMapsExternal:
	default:
		return models.Configf("sourcemaps", "must be %q or %q, got %q", models.SourceMapsInline, models.SourceMapsExternal, cfg.SourceMaps)
	}

	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		return models.Configf("log_level", "%v", err)
	}

	return nil
}

// ValidateForMode rejects groups that would produce no output in mode.
// A style or script group that skips the minified variant has nothing to
// emit in production, where the primary variant is never written.
func ValidateForMode(cfg models.ProjectConfig, mode models.RunMode) error {
	if mode != models.Production {
		return nil
	}
	for _, class := range []models.AssetClass{models.Style, models.Script} {
		for _, g := range cfg.Groups(class).Groups {
			if g.NoMinify {
				return models.Configf(class.Namespace()+"."+g.Name, "noMinify leaves no output variant in %s mode", mode)
			}
		}
	}
	return nil
}

// ParseLogLevel maps a config log level onto slog.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
}
