package finder

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Glob enumerates files below Cwd matching Pattern and none of Ignore.
// Patterns use doublestar syntax and are relative to Cwd.
type Glob struct {
	Cwd     string
	Pattern string
	Ignore  []string
}

func NewGlob(cwd, pattern string, ignore []string) *Glob {
	return &Glob{Cwd: cwd, Pattern: pattern, Ignore: ignore}
}

// Find returns absolute, sorted paths of regular files. Directories never
// match. Any I/O error while walking fails the whole enumeration.
func (g *Glob) Find() ([]string, error) {
	if !doublestar.ValidatePattern(g.Pattern) {
		return nil, fmt.Errorf("invalid glob pattern %q", g.Pattern)
	}
	for _, ignore := range g.Ignore {
		if !doublestar.ValidatePattern(ignore) {
			return nil, fmt.Errorf("invalid ignore pattern %q", ignore)
		}
	}

	root, err := filepath.Abs(g.Cwd)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", g.Cwd, err)
	}

	matches, err := doublestar.Glob(os.DirFS(root), g.Pattern,
		doublestar.WithFilesOnly(),
		doublestar.WithFailOnIOErrors(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to glob %s in %s: %w", g.Pattern, root, err)
	}

	files := make([]string, 0, len(matches))
	for _, match := range matches {
		if g.ignored(match) {
			continue
		}
		files = append(files, filepath.Join(root, filepath.FromSlash(match)))
	}
	sort.Strings(files)

	return files, nil
}

func (g *Glob) ignored(match string) bool {
	for _, ignore := range g.Ignore {
		if ok, _ := doublestar.Match(ignore, match); ok {
			return true
		}
	}
	return false
}
