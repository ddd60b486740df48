package config

import (
	"fmt"
	"io/fs"

	"github.com/BurntSushi/toml"

	"github.com/spachava753/assetpipe/internal/models"
)

// LoadPluginMeta loads and parses a plugin metadata TOML file from fsys.
func LoadPluginMeta(fsys fs.FS, name string) (models.PluginMeta, error) {
	var meta models.PluginMeta

	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return meta, fmt.Errorf("reading %s: %w", name, err)
	}

	md, err := toml.Decode(string(data), &meta)
	if err != nil {
		return meta, fmt.Errorf("parsing %s: %w", name, err)
	}

	// Handle legacy 'textdomain' key if 'text_domain' is not explicitly set
	if !md.IsDefined("text_domain") && md.IsDefined("textdomain") {
		meta.TextDomain = meta.LegacyTextDomain
	}
	meta.LegacyTextDomain = ""

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return meta, models.Configf(name, "unknown metadata keys: %v", undecoded)
	}

	return meta, nil
}
