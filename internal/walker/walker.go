// Package walker discovers candidate files for indexing under a project
// root. It applies an extension allow-list, a directory deny-list and a
// hidden-file exclusion, and skips unreadable directories without failing
// the walk.
package walker

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/semdex/semdex-mcp/pkg/types"
)

// DefaultExcludedDirs are dependency, build and VCS directories that are
// never descended into.
var DefaultExcludedDirs = []string{
	".git", ".hg", ".svn",
	"node_modules", "vendor", "__pycache__",
	"dist", "build", "target", ".venv", "venv",
}

// codeExtensions maps code file extensions to their language.
var codeExtensions = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".rb":    "ruby",
	".rs":    "rust",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".php":   "php",
	".swift": "swift",
	".kt":    "kotlin",
	".scala": "scala",
	".sh":    "shell",
	".sql":   "sql",
}

// docExtensions maps documentation extensions to their document type.
var docExtensions = map[string]string{
	".md":   "markdown",
	".mdx":  "markdown",
	".rst":  "restructuredtext",
	".adoc": "asciidoc",
	".txt":  "plaintext",
}

// Config controls which files the walker yields.
type Config struct {
	// AllowedExtensions restricts discovery to these extensions. Empty means
	// every extension the engine knows how to chunk.
	AllowedExtensions []string
	// ExcludedDirs are directory names that are not descended into.
	// Empty means DefaultExcludedDirs.
	ExcludedDirs []string
	// IncludeHidden includes dot-files and dot-directories when true.
	IncludeHidden bool
}

// Detect classifies a path by extension. ok is false for extensions the
// engine does not index.
func Detect(path string) (category types.Category, language string, ok bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, found := codeExtensions[ext]; found {
		return types.CategoryCode, lang, true
	}
	if doc, found := docExtensions[ext]; found {
		return types.CategoryDocumentation, doc, true
	}
	return "", "", false
}

// Supported reports whether the extension of path is indexable under cfg.
func (c Config) Supported(path string) bool {
	if _, _, ok := Detect(path); !ok {
		return false
	}
	if len(c.AllowedExtensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range c.AllowedExtensions {
		if strings.EqualFold(allowed, ext) {
			return true
		}
	}
	return false
}

func (c Config) excluded(name string) bool {
	dirs := c.ExcludedDirs
	if len(dirs) == 0 {
		dirs = DefaultExcludedDirs
	}
	for _, d := range dirs {
		if name == d {
			return true
		}
	}
	return false
}

// Walk invokes visit for every candidate file under root, in lexical order.
// Directories matching the deny-list are not descended into. A directory
// that cannot be read is skipped silently rather than aborting the walk.
// The walk is restartable by calling Walk again.
func Walk(root string, cfg Config, visit func(path string) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Permission errors and the like: skip the subtree, keep walking.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		if d.IsDir() {
			if path != root {
				if !cfg.IncludeHidden && strings.HasPrefix(name, ".") {
					return filepath.SkipDir
				}
				if cfg.excluded(name) {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if !cfg.IncludeHidden && strings.HasPrefix(name, ".") {
			return nil
		}
		if !cfg.Supported(path) {
			return nil
		}
		return visit(path)
	})
}

// Discover collects all candidate file paths under root.
func Discover(root string, cfg Config) ([]string, error) {
	var files []string
	err := Walk(root, cfg, func(path string) error {
		files = append(files, path)
		return nil
	})
	return files, err
}
