package packaging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// ComposerAutoloadDir is the directory the root namespace autoloads from.
const ComposerAutoloadDir = "includes"

// Composer points composer.json's PSR-4 autoload at namespace, replacing
// any previous PSR-4 entries. Other keys are left as they are.
func Composer(root, namespace string) error {
	path := filepath.Join(root, "composer.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading composer.json: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("composer.json is not valid JSON")
	}

	autoload, err := json.Marshal(map[string]string{
		strings.TrimSuffix(namespace, `\`) + `\`: ComposerAutoloadDir,
	})
	if err != nil {
		return fmt.Errorf("encoding psr-4 autoload: %w", err)
	}
	data, err = sjson.SetRawBytes(data, "autoload.psr-4", autoload)
	if err != nil {
		return fmt.Errorf("setting psr-4 autoload: %w", err)
	}

	data = pretty.PrettyOptions(data, &pretty.Options{Width: 80, Indent: "\t"})
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing composer.json: %w", err)
	}
	return nil
}
