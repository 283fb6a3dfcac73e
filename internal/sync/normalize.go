package sync

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/quillbox/quillbox/internal/utils"
)

const frontMatterDelim = "---"

// markdownPatterns selects the files the normalizer touches.
var markdownPatterns = []string{"**/*.md", "**/*.markdown"}

// Normalizer repairs note metadata after a commit: every markdown file gets
// a front-matter block with a title, a stable created timestamp and a
// current modified timestamp. Non-markdown files pass through untouched.
type Normalizer struct {
	defaults map[string]string
}

// NewNormalizer creates a Normalizer. defaults supplies front-matter keys
// applied when a note carries none of its own (e.g. author).
func NewNormalizer(defaults map[string]string) *Normalizer {
	return &Normalizer{defaults: defaults}
}

// Normalize runs the metadata pass over paths (relative to root). The old
// manifest supplies prior observed state so a stripped `created` field can
// be restored. Failures are reported as warnings, never as errors; a note
// that cannot be normalized still syncs.
func (n *Normalizer) Normalize(paths []string, old Manifest, root string) []string {
	var warnings []string

	for _, relPath := range paths {
		if !n.matches(relPath) {
			continue
		}

		absPath, err := utils.RootJoin(root, relPath)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("normalize %s: %v", relPath, err))
			continue
		}

		if err := n.normalizeFile(absPath, relPath, old); err != nil {
			warnings = append(warnings, fmt.Sprintf("normalize %s: %v", relPath, err))
		}
	}

	return warnings
}

func (n *Normalizer) matches(relPath string) bool {
	for _, pattern := range markdownPatterns {
		if ok, err := doublestar.Match(pattern, relPath); err == nil && ok {
			return true
		}
	}
	return false
}

func (n *Normalizer) normalizeFile(absPath, relPath string, old Manifest) error {
	raw, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	meta, body, err := splitFrontMatter(string(raw))
	if err != nil {
		return err
	}
	if meta == nil {
		meta = map[string]any{}
	}

	var mtime string
	if info, err := os.Stat(absPath); err == nil {
		mtime = info.ModTime().UTC().Format(MTimeFormat)
	}

	changed := false

	for key, value := range n.defaults {
		if _, ok := meta[key]; !ok {
			meta[key] = value
			changed = true
		}
	}

	if _, ok := meta["title"]; !ok {
		meta["title"] = titleFromPath(relPath)
		changed = true
	}

	if _, ok := meta["created"]; !ok {
		// prefer the previously synced mtime; a brand-new note was created
		// at its current mtime
		if prev, ok := old[relPath]; ok {
			meta["created"] = prev.MTime
		} else if mtime != "" {
			meta["created"] = mtime
		}
		changed = true
	}

	if _, ok := meta["modified"]; !ok {
		changed = true
	}

	// a file with complete metadata is left byte-for-byte untouched, so a
	// repeated pass over unchanged inputs converges instead of bumping the
	// mtime on every run
	if !changed {
		return nil
	}

	if mtime != "" {
		meta["modified"] = mtime
	}

	out, err := renderFrontMatter(meta, body)
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(absPath, []byte(out), 0o644)
}

// splitFrontMatter separates a leading YAML front-matter block from the
// body. Returns a nil map when the document has no block.
func splitFrontMatter(content string) (map[string]any, string, error) {
	if !strings.HasPrefix(content, frontMatterDelim+"\n") {
		return nil, content, nil
	}

	rest := content[len(frontMatterDelim)+1:]
	end := strings.Index(rest, "\n"+frontMatterDelim+"\n")
	if end < 0 {
		// unterminated block, treat the whole document as body
		return nil, content, nil
	}

	block := rest[:end+1]
	body := rest[end+len(frontMatterDelim)+2:]

	meta := map[string]any{}
	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		return nil, "", fmt.Errorf("parse front matter: %w", err)
	}
	return meta, body, nil
}

func renderFrontMatter(meta map[string]any, body string) (string, error) {
	block, err := yaml.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("render front matter: %w", err)
	}

	var b strings.Builder
	b.WriteString(frontMatterDelim)
	b.WriteString("\n")
	b.Write(block)
	b.WriteString(frontMatterDelim)
	b.WriteString("\n")
	b.WriteString(body)
	return b.String(), nil
}

func titleFromPath(relPath string) string {
	name := path.Base(relPath)
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	name = strings.ReplaceAll(name, "-", " ")
	name = strings.ReplaceAll(name, "_", " ")
	return name
}
