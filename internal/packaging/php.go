package packaging

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/spachava753/assetpipe/internal/models"
)

// constantFiles hold the class constants mirrored from metadata.
var constantFiles = []string{"includes/Plugin.php", "includes/Constants.php"}

// Constants rewrites `const KEY = '...';` declarations. constants maps a
// constant name to the metadata key whose value it receives.
func Constants(root string, meta models.PluginMeta, constants map[string]string) error {
	keys := make([]string, 0, len(constants))
	for k := range constants {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	type rewrite struct {
		re    *regexp.Regexp
		value string
	}
	var rewrites []rewrite
	for _, key := range keys {
		value, ok := meta.Field(constants[key])
		if !ok {
			return models.Configf("constants."+key, "unknown metadata key %q", constants[key])
		}
		re, err := regexp.Compile(`(const ` + regexp.QuoteMeta(key) + `\s?=\s?'?"?)([^'";]+)('?"?\s?;)`)
		if err != nil {
			return fmt.Errorf("compiling constant pattern for %s: %w", key, err)
		}
		rewrites = append(rewrites, rewrite{re: re, value: value})
	}

	return rewriteFiles(root, constantFiles, func(s string) string {
		for _, r := range rewrites {
			s = r.re.ReplaceAllString(s, "${1}"+literal(r.value)+"${3}")
		}
		return s
	})
}

var namespacePattern = regexp.MustCompile(`(?m)^(namespace\s)([^\\;]+)((\\[^;]+)?;)`)

// Namespace replaces the root namespace of every PHP file, keeping
// sub-namespaces.
func Namespace(root, namespace string) error {
	return rewriteFiles(root, phpSources, func(s string) string {
		return namespacePattern.ReplaceAllString(s, "${1}"+literal(namespace)+"${3}")
	})
}

// translationCall matches WordPress translation calls with a literal text
// and text domain: __('Text', 'domain') and its esc_* / _e variants.
var translationCall = regexp.MustCompile(`(?i)((esc_attr__|esc_attr_e|esc_html_e|esc_html__|__|_e)\((["']))([^"']*)((["'])\s?,\s?(["']))([\w-]+)((["'])\))`)

// TextDomain sets the text domain of every translation call.
func TextDomain(root, domain string) error {
	return rewriteFiles(root, phpSources, func(s string) string {
		return translationCall.ReplaceAllString(s, "${1}${4}${5}"+literal(domain)+"${9}")
	})
}
