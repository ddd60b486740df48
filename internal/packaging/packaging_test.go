package packaging

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/spachava753/assetpipe/internal/models"
)

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("creating dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func readFile(t *testing.T, root, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(name)))
	if err != nil {
		t.Fatalf("reading %s: %v", name, err)
	}
	return string(data)
}

func testMeta() models.PluginMeta {
	return models.PluginMeta{
		Name:       "demo",
		Title:      "Demo Plugin",
		Version:    "2.0.0",
		Author:     "Jane Doe",
		Email:      "jane@example.com",
		PluginURL:  "https://example.com/demo",
		License:    "GPL-2.0+",
		LicenseURI: "http://www.gnu.org/licenses/gpl-2.0.txt",
		TextDomain: "demo",
		Namespace:  `Acme\Demo`,
		File:       "demo.php",
	}
}

func TestTasks(t *testing.T) {
	tests := []struct {
		name string
		cfg  models.ProjectConfig
		want []string
	}{
		{
			name: "bare metadata",
			cfg:  models.ProjectConfig{},
			want: []string{"readme"},
		},
		{
			name: "full metadata",
			cfg: models.ProjectConfig{
				Plugin:    testMeta(),
				Constants: map[string]string{"VERSION": "version"},
			},
			want: []string{"readme", "mainfile", "constants", "composer", "namespace", "textdomain", "pot"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, task := range Tasks(&tt.cfg) {
				got = append(got, task.Name)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Tasks() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReadme(t *testing.T) {
	root := t.TempDir()
	if err := Readme(root, testMeta()); err != nil {
		t.Fatalf("Readme: %v", err)
	}
	got := readFile(t, root, "README.md")
	if !strings.HasPrefix(got, "# Demo Plugin\n\nPlugin Version: 2.0.0\n\n") {
		t.Errorf("unexpected README start: %q", got)
	}
	if !strings.HasSuffix(got, "License URI: http://www.gnu.org/licenses/gpl-2.0.txt") {
		t.Errorf("unexpected README end: %q", got)
	}
}

func TestMainFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "demo.php", `<?php
/**
 * Plugin Name: Old Name
 * Version: 0.1.0
 * Author: Someone
 * License: MIT
 * License URI: https://opensource.org/licenses/MIT
 */
`)
	if err := MainFile(root, testMeta()); err != nil {
		t.Fatalf("MainFile: %v", err)
	}
	got := readFile(t, root, "demo.php")
	for _, want := range []string{
		"Plugin Name: Demo Plugin\n",
		"Version: 2.0.0\n",
		"Author: Jane Doe\n",
		"License: GPL-2.0+\n",
		"License URI: http://www.gnu.org/licenses/gpl-2.0.txt\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in:\n%s", want, got)
		}
	}
}

func TestConstants(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "includes/Plugin.php", `<?php
class Plugin {
	const VERSION = '1.0.0';
	const NAME = "old";
}
`)
	err := Constants(root, testMeta(), map[string]string{"VERSION": "version", "NAME": "name"})
	if err != nil {
		t.Fatalf("Constants: %v", err)
	}
	got := readFile(t, root, "includes/Plugin.php")
	if !strings.Contains(got, "const VERSION = '2.0.0';") || !strings.Contains(got, `const NAME = "demo";`) {
		t.Errorf("constants not rewritten:\n%s", got)
	}

	err = Constants(root, testMeta(), map[string]string{"VERSION": "flavour"})
	if !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("expected configuration error for unknown key, got %v", err)
	}
}

func TestNamespace(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "includes/Plugin.php", "<?php\nnamespace Old;\n")
	writeFile(t, root, "includes/Admin/Page.php", "<?php\nnamespace Old\\Admin;\n")
	writeFile(t, root, "vendor/lib/Lib.php", "<?php\nnamespace Old;\n")

	if err := Namespace(root, `Acme\Demo`); err != nil {
		t.Fatalf("Namespace: %v", err)
	}
	if got := readFile(t, root, "includes/Plugin.php"); got != "<?php\nnamespace Acme\\Demo;\n" {
		t.Errorf("root namespace = %q", got)
	}
	if got := readFile(t, root, "includes/Admin/Page.php"); got != "<?php\nnamespace Acme\\Demo\\Admin;\n" {
		t.Errorf("sub namespace = %q", got)
	}
	if got := readFile(t, root, "vendor/lib/Lib.php"); got != "<?php\nnamespace Old;\n" {
		t.Errorf("vendor files must not change, got %q", got)
	}
}

func TestTextDomain(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "includes/View.php", `<?php
echo __('Hello', 'old-domain');
_e("Bye", "old-domain");
echo esc_html__( 'Escaped', 'old' );
`)
	if err := TextDomain(root, "demo"); err != nil {
		t.Fatalf("TextDomain: %v", err)
	}
	got := readFile(t, root, "includes/View.php")
	for _, want := range []string{
		`__('Hello', 'demo')`,
		`_e("Bye", "demo")`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %s in:\n%s", want, got)
		}
	}
}

// composerNamespace returns the namespace composer.json autoloads from dir.
func composerNamespace(data []byte, dir string) string {
	var ns string
	gjson.GetBytes(data, "autoload.psr-4").ForEach(func(k, v gjson.Result) bool {
		if v.String() == dir {
			ns = k.String()
			return false
		}
		return true
	})
	return ns
}

func TestComposer(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "composer.json", `{"name":"acme/demo","autoload":{"psr-4":{"Old\\":"src/"}},"require":{"php":">=7.4"}}`)

	if err := Composer(root, `Acme\Demo`); err != nil {
		t.Fatalf("Composer: %v", err)
	}
	data := []byte(readFile(t, root, "composer.json"))
	if !gjson.ValidBytes(data) {
		t.Fatalf("invalid JSON written: %s", data)
	}
	if got := composerNamespace(data, ComposerAutoloadDir); got != `Acme\Demo\` {
		t.Errorf("namespace = %q, want %q", got, `Acme\Demo\`)
	}
	if n := len(gjson.GetBytes(data, "autoload.psr-4").Map()); n != 1 {
		t.Errorf("expected previous psr-4 entries to be replaced, got %d entries", n)
	}
	if gjson.GetBytes(data, "require.php").String() != ">=7.4" {
		t.Errorf("unrelated keys must be kept: %s", data)
	}
	if !strings.Contains(string(data), "\n\t\"name\"") {
		t.Errorf("expected tab indentation: %s", data)
	}
}

func TestComposer_InvalidJSON(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "composer.json", `{"name":`)
	if err := Composer(root, `Acme`); err == nil {
		t.Error("expected error for invalid composer.json")
	}
}

func TestPot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "demo.php", `<?php
// header
echo __('Hello', 'demo');
_e("Bye", "demo");
echo __('Other', 'elsewhere');
`)
	writeFile(t, root, "includes/View.php", "<?php\necho __('Hello', 'demo');\n")
	writeFile(t, root, "vendor/x.php", "<?php\necho __('Vendor', 'demo');\n")

	if err := Pot(root, testMeta()); err != nil {
		t.Fatalf("Pot: %v", err)
	}
	got := readFile(t, root, "languages/demo.pot")

	if !strings.Contains(got, `"Project-Id-Version: demo 2.0.0\n"`) {
		t.Errorf("missing project header:\n%s", got)
	}
	if !strings.Contains(got, "#: demo.php:3 includes/View.php:2\nmsgid \"Hello\"\n") {
		t.Errorf("expected merged refs for Hello:\n%s", got)
	}
	if !strings.Contains(got, "#: demo.php:4\nmsgid \"Bye\"\n") {
		t.Errorf("expected Bye entry:\n%s", got)
	}
	if strings.Contains(got, "Other") || strings.Contains(got, "Vendor") {
		t.Errorf("foreign domains and vendor files must be skipped:\n%s", got)
	}
	if strings.Index(got, `msgid "Hello"`) > strings.Index(got, `msgid "Bye"`) {
		t.Errorf("entries must keep first-occurrence order:\n%s", got)
	}
}

func TestTasks_Run(t *testing.T) {
	root := t.TempDir()
	cfg := models.ProjectConfig{Root: root, Plugin: models.PluginMeta{Title: "Only Readme"}}
	for _, task := range Tasks(&cfg) {
		if err := task.Run(context.Background()); err != nil {
			t.Fatalf("%s: %v", task.Name, err)
		}
	}
	if !strings.HasPrefix(readFile(t, root, "README.md"), "# Only Readme") {
		t.Error("readme task did not run")
	}
}
