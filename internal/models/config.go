package models

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// DefaultDestKey is the reserved group name that configures a class's
// fallback destination rather than a task.
const DefaultDestKey = "defaultDest"

// AssetClass determines the default stage sequence of a group.
type AssetClass int

const (
	Style AssetClass = iota
	Script
	Copy
)

// AssetClasses lists every class in registration order.
var AssetClasses = []AssetClass{Style, Script, Copy}

// Namespace returns the task id prefix for leaves of this class.
func (c AssetClass) Namespace() string {
	switch c {
	case Style:
		return "style"
	case Script:
		return "script"
	case Copy:
		return "copy"
	default:
		return fmt.Sprintf("class%d", int(c))
	}
}

func (c AssetClass) String() string { return c.Namespace() }

// Extension is the bundle extension for classes that concatenate their
// sources into one output. Copy groups keep source names.
func (c AssetClass) Extension() string {
	switch c {
	case Style:
		return ".css"
	case Script:
		return ".js"
	default:
		return ""
	}
}

// Patterns is an ordered glob list. A single YAML scalar is accepted.
type Patterns []string

func (p *Patterns) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*p = Patterns{value.Value}
		return nil
	}
	var list []string
	if err := value.Decode(&list); err != nil {
		return err
	}
	*p = list
	return nil
}

// GroupSpec is one named configuration entry.
type GroupSpec struct {
	Name     string   `yaml:"-" json:"name"`
	Files    Patterns `yaml:"files" json:"files"`
	Watch    Patterns `yaml:"watch,omitempty" json:"watch,omitempty"`
	Dest     string   `yaml:"dest,omitempty" json:"dest,omitempty"`
	NoMinify bool     `yaml:"noMinify,omitempty" json:"no_minify,omitempty"`
	Header   string   `yaml:"header,omitempty" json:"header,omitempty"`
	// Compiler is an external command each source file is piped through,
	// e.g. ["sass", "--stdin"]. Empty means pass-through.
	Compiler []string `yaml:"compiler,omitempty" json:"compiler,omitempty"`
}

// WatchPatterns returns the patterns that re-trigger this group.
func (g GroupSpec) WatchPatterns() []string {
	if len(g.Watch) > 0 {
		return g.Watch
	}
	return g.Files
}

// GroupSet holds every group of one asset class in configuration order.
type GroupSet struct {
	DefaultDest string      `json:"default_dest,omitempty"`
	Groups      []GroupSpec `json:"groups,omitempty"`
}

func (s *GroupSet) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected mapping of group name to group", value.Line)
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i], value.Content[i+1]
		if key.Value == DefaultDestKey {
			if err := val.Decode(&s.DefaultDest); err != nil {
				return fmt.Errorf("%s: %w", DefaultDestKey, err)
			}
			continue
		}
		var g GroupSpec
		if err := val.Decode(&g); err != nil {
			return fmt.Errorf("group %s: %w", key.Value, err)
		}
		g.Name = key.Value
		s.Groups = append(s.Groups, g)
	}
	return nil
}

// PluginMeta is the package metadata used by header templates and the
// packaging tasks.
type PluginMeta struct {
	Name        string `yaml:"name" toml:"name" json:"name"`
	Title       string `yaml:"title" toml:"title" json:"title"`
	Version     string `yaml:"version" toml:"version" json:"version"`
	Description string `yaml:"description" toml:"description" json:"description"`
	Author      string `yaml:"author" toml:"author" json:"author"`
	Email       string `yaml:"email" toml:"email" json:"email"`
	PluginURL   string `yaml:"pluginUrl" toml:"plugin_url" json:"plugin_url"`
	AuthorURL   string `yaml:"authorUrl" toml:"author_url" json:"author_url"`
	License     string `yaml:"license" toml:"license" json:"license"`
	LicenseURI  string `yaml:"licenseURI" toml:"license_uri" json:"license_uri"`
	TextDomain  string `yaml:"textdomain" toml:"text_domain" json:"text_domain"`
	// LegacyTextDomain is the pre-1.0 metadata key, read only when
	// text_domain is absent.
	LegacyTextDomain string `yaml:"-" toml:"textdomain" json:"-"`
	Namespace        string `yaml:"namespace" toml:"namespace" json:"namespace"`
	Requires         string `yaml:"requires" toml:"requires" json:"requires"`
	Tested           string `yaml:"tested" toml:"tested" json:"tested"`
	PHP              string `yaml:"php" toml:"php" json:"php"`
	File             string `yaml:"file" toml:"file" json:"file"`
}

// Field returns a metadata value by its YAML key; the constants rewrite
// refers to metadata this way.
func (m PluginMeta) Field(key string) (string, bool) {
	switch key {
	case "name":
		return m.Name, true
	case "title":
		return m.Title, true
	case "version":
		return m.Version, true
	case "description":
		return m.Description, true
	case "author":
		return m.Author, true
	case "email":
		return m.Email, true
	case "pluginUrl":
		return m.PluginURL, true
	case "authorUrl":
		return m.AuthorURL, true
	case "license":
		return m.License, true
	case "licenseURI":
		return m.LicenseURI, true
	case "textdomain":
		return m.TextDomain, true
	case "namespace":
		return m.Namespace, true
	case "requires":
		return m.Requires, true
	case "tested":
		return m.Tested, true
	case "php":
		return m.PHP, true
	case "file":
		return m.File, true
	}
	return "", false
}

// metaKeys lists the metadata keys Field understands, in declaration order.
var metaKeys = []string{
	"name", "title", "version", "description", "author", "email",
	"pluginUrl", "authorUrl", "license", "licenseURI", "textdomain",
	"namespace", "requires", "tested", "php", "file",
}

// Values returns the metadata as a map keyed like the YAML document, the
// shape header templates see as .pkg.
func (m PluginMeta) Values() map[string]string {
	values := make(map[string]string, len(metaKeys))
	for _, k := range metaKeys {
		values[k], _ = m.Field(k)
	}
	return values
}

// DistConfig controls the dist/deploy/bundle copy of the finished project.
type DistConfig struct {
	Files   Patterns `yaml:"files" json:"files"`
	Exclude Patterns `yaml:"exclude" json:"exclude"`
	Dir     string   `yaml:"dir" json:"dir"`
}

type LiveReloadConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

type WatchConfig struct {
	DebounceMs int `yaml:"debounce_ms" json:"debounce_ms"`
}

// SourceMapMode selects how development source maps are written.
type SourceMapMode string

const (
	SourceMapsInline   SourceMapMode = "inline"
	SourceMapsExternal SourceMapMode = "external"
)

// ProjectConfig represents the parsed assetpipe.yaml.
type ProjectConfig struct {
	// Root is the directory all patterns and destinations are relative to.
	Root         string            `yaml:"-" json:"root"`
	Header       string            `yaml:"header,omitempty" json:"header,omitempty"`
	LogLevel     string            `yaml:"log_level,omitempty" json:"log_level,omitempty"`
	MetadataFile string            `yaml:"metadata_file,omitempty" json:"metadata_file,omitempty"`
	Plugin       PluginMeta        `yaml:"plugin" json:"plugin"`
	Theme        map[string]any    `yaml:"theme,omitempty" json:"theme,omitempty"`
	Styles       GroupSet          `yaml:"styles" json:"styles"`
	Scripts      GroupSet          `yaml:"scripts" json:"scripts"`
	Assets       GroupSet          `yaml:"assets" json:"assets"`
	Constants    map[string]string `yaml:"constants,omitempty" json:"constants,omitempty"`
	Clean        []string          `yaml:"clean" json:"clean"`
	Dist         DistConfig        `yaml:"dist" json:"dist"`
	LiveReload   LiveReloadConfig  `yaml:"livereload" json:"livereload"`
	Watch        WatchConfig       `yaml:"watch" json:"watch"`
	SourceMaps   SourceMapMode     `yaml:"sourcemaps" json:"sourcemaps"`
}

// Groups returns the group set configured for class.
func (c *ProjectConfig) Groups(class AssetClass) GroupSet {
	switch class {
	case Style:
		return c.Styles
	case Script:
		return c.Scripts
	default:
		return c.Assets
	}
}
