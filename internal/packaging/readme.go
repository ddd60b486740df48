package packaging

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spachava753/assetpipe/internal/models"
)

// Readme writes README.md from the plugin metadata.
func Readme(root string, meta models.PluginMeta) error {
	contents := []string{
		"# " + meta.Title,
		"Plugin Version: " + meta.Version,
		"Plugin URL: " + meta.PluginURL,
		"Author URL: " + meta.AuthorURL,
		"Author Email: " + meta.Email,
		"# WordPress Requirement ",
		"Requires at least: " + meta.Requires,
		"Tested upto: " + meta.Tested,
		"# License ",
		"License: " + meta.License,
		"License URI: " + meta.LicenseURI,
	}
	path := filepath.Join(root, "README.md")
	if err := os.WriteFile(path, []byte(strings.Join(contents, "\n\n")), 0644); err != nil {
		return fmt.Errorf("writing README.md: %w", err)
	}
	return nil
}

type headerField struct {
	re    *regexp.Regexp
	value func(models.PluginMeta) string
}

// Order matters: "License URI" is rewritten before "License".
var mainFileFields = []headerField{
	{regexp.MustCompile(`(Plugin Name:\s?)(.*)`), func(m models.PluginMeta) string { return m.Title }},
	{regexp.MustCompile(`(Plugin URI:\s?)(.*)`), func(m models.PluginMeta) string { return m.PluginURL }},
	{regexp.MustCompile(`(Author:\s?)(.*)`), func(m models.PluginMeta) string { return m.Author }},
	{regexp.MustCompile(`(Author URI:\s?)(.*)`), func(m models.PluginMeta) string { return m.AuthorURL }},
	{regexp.MustCompile(`(Description:\s?)(.*)`), func(m models.PluginMeta) string { return m.Description }},
	{regexp.MustCompile(`(Version:\s?)(.*)`), func(m models.PluginMeta) string { return m.Version }},
	{regexp.MustCompile(`(Text Domain:\s?)(.*)`), func(m models.PluginMeta) string { return m.TextDomain }},
	{regexp.MustCompile(`(Requires PHP:\s?)(.*)`), func(m models.PluginMeta) string { return m.PHP }},
	{regexp.MustCompile(`(License URI:\s?)(.*)`), func(m models.PluginMeta) string { return m.LicenseURI }},
	{regexp.MustCompile(`(License:\s?)(.*)`), func(m models.PluginMeta) string { return m.License }},
}

// MainFile rewrites the header fields of the main plugin file.
func MainFile(root string, meta models.PluginMeta) error {
	return rewriteFiles(root, []string{meta.File}, func(s string) string {
		for _, f := range mainFileFields {
			s = f.re.ReplaceAllString(s, "${1}"+literal(f.value(meta)))
		}
		return s
	})
}
