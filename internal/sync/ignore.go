package sync

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/quillbox/quillbox/internal/utils"
)

// IgnoreFileName is an optional per-root pattern file, gitignore syntax.
const IgnoreFileName = "quillignore"

var defaultIgnoreLines = []string{
	// quillbox
	"quillignore",
	"*.tmp-*",
	// editors
	"*.swp",
	"*~",
	// OS droppings
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
	// general excludes
	"*.tmp",
	"*.log",
}

// IgnoreList decides which entries the scanner skips, on top of the
// hidden-name rule that is applied unconditionally.
type IgnoreList struct {
	baseDir string
	ignore  *gitignore.GitIgnore
}

func NewIgnoreList(baseDir string) *IgnoreList {
	il := &IgnoreList{baseDir: baseDir}
	il.Load()
	return il
}

func (il *IgnoreList) Load() {
	ignorePath := filepath.Join(il.baseDir, IgnoreFileName)
	ignoreLines := defaultIgnoreLines

	if utils.FileExists(ignorePath) {
		file, err := os.Open(ignorePath)
		if err != nil {
			slog.Warn("failed to open ignore file", "path", ignorePath, "error", err)
		} else {
			defer file.Close()

			rules := 0
			scanner := bufio.NewScanner(file)
			for scanner.Scan() {
				line := scanner.Text()
				if line != "" {
					ignoreLines = append(ignoreLines, line)
					rules++
				}
			}
			if err := scanner.Err(); err != nil {
				slog.Warn("error reading ignore file", "path", ignorePath, "error", err)
			} else {
				slog.Debug("loaded ignore file", "path", ignorePath, "rules", rules)
			}
		}
	}

	il.ignore = gitignore.CompileIgnoreLines(ignoreLines...)
}

func (il *IgnoreList) ShouldIgnore(relPath string) bool {
	return il.ignore.MatchesPath(relPath)
}
