package packaging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spachava753/assetpipe/internal/models"
	"github.com/spachava753/assetpipe/internal/util"
)

type potEntry struct {
	msgid string
	refs  []string
}

// Pot extracts every translation call using the plugin's text domain into
// languages/<name>.pot. Entries keep first-occurrence order across the
// sorted file list, so the output is stable between runs.
func Pot(root string, meta models.PluginMeta) error {
	matches, err := util.ExpandGlobs(os.DirFS(root), phpSources)
	if err != nil {
		return err
	}

	var entries []*potEntry
	index := make(map[string]*potEntry)
	for _, m := range matches {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(m.Path)))
		if err != nil {
			return fmt.Errorf("reading %s: %w", m.Path, err)
		}
		src := string(data)
		for _, loc := range translationCall.FindAllStringSubmatchIndex(src, -1) {
			domain := src[loc[16]:loc[17]]
			if domain != meta.TextDomain {
				continue
			}
			msgid := src[loc[8]:loc[9]]
			line := strings.Count(src[:loc[0]], "\n") + 1
			ref := fmt.Sprintf("%s:%d", m.Path, line)

			e, ok := index[msgid]
			if !ok {
				e = &potEntry{msgid: msgid}
				index[msgid] = e
				entries = append(entries, e)
			}
			e.refs = append(e.refs, ref)
		}
	}

	var sb strings.Builder
	team := fmt.Sprintf("%s <%s>", meta.Author, meta.Email)
	sb.WriteString("msgid \"\"\nmsgstr \"\"\n")
	for _, h := range []string{
		"Project-Id-Version: " + strings.TrimSpace(meta.Name+" "+meta.Version),
		"Report-Msgid-Bugs-To: " + meta.PluginURL,
		"Last-Translator: " + team,
		"Language-Team: " + team,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"Content-Transfer-Encoding: 8bit",
		"X-Domain: " + meta.TextDomain,
	} {
		fmt.Fprintf(&sb, "%q\n", h+"\n")
	}
	for _, e := range entries {
		fmt.Fprintf(&sb, "\n#: %s\nmsgid %q\nmsgstr \"\"\n", strings.Join(e.refs, " "), e.msgid)
	}

	dir := filepath.Join(root, "languages")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating languages directory: %w", err)
	}
	path := filepath.Join(dir, meta.Name+".pot")
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
