// Package filesystem implements file tools rooted at a working directory.
package filesystem

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// DefaultIgnorePatterns are common directories skipped by list and search.
var DefaultIgnorePatterns = []string{
	".git",
	"node_modules",
	"dist",
	"build",
	"vendor",
	"__pycache__",
	".cache",
	"target",
	".idea",
	".vscode",
	".DS_Store",
}

// Root jails tool paths under a working directory and filters listings
// through the directory's .gitignore.
type Root struct {
	dir     string
	matcher gitignore.IgnoreParser
}

func NewRoot(dir string) *Root {
	patterns := append([]string{}, DefaultIgnorePatterns...)
	patterns = append(patterns, readGitignoreLines(filepath.Join(dir, ".gitignore"))...)
	return &Root{
		dir:     filepath.Clean(dir),
		matcher: gitignore.CompileIgnoreLines(patterns...),
	}
}

// Resolve joins path onto the root and rejects escapes.
func (r *Root) Resolve(path string) (string, error) {
	full := filepath.Clean(filepath.Join(r.dir, path))
	if full != r.dir && !strings.HasPrefix(full, r.dir+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside the working directory", path)
	}
	return full, nil
}

// Ignored reports whether the path, relative to the root, is filtered out.
func (r *Root) Ignored(full string) bool {
	rel, err := filepath.Rel(r.dir, full)
	if err != nil {
		return false
	}
	return r.matcher.MatchesPath(rel)
}

func readGitignoreLines(path string) []string {
	file, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
