// Package project writes resolved file specifications to a project-scoped
// directory tree under the storage root.
package project

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fabrik-io/fabrik/internal/extract"
)

// ErrPathTraversal marks a file specification whose resolved path would
// escape the project root.
var ErrPathTraversal = errors.New("path escapes project root")

// FileResult describes one written file.
type FileResult struct {
	RelativePath string `json:"relativePath"`
	AbsolutePath string `json:"absolutePath"`
	ByteSize     int    `json:"byteSize"`
}

// Result describes a completed materialization.
type Result struct {
	Path  string       `json:"path"`
	Files []FileResult `json:"files"`
}

// Materializer writes file specification sets to disk. Writes are not
// transactional: a failure partway leaves previously written files in place.
type Materializer struct {
	root   string
	logger *slog.Logger
}

// NewMaterializer creates a materializer rooted at the given storage
// directory. Projects are created under <root>/projects/.
func NewMaterializer(root string, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Materializer{root: root, logger: logger}
}

// SanitizeName transforms a project name into a filesystem-safe directory
// name: runs of non-alphanumeric characters become single dashes, the result
// is lowercased and capped at 50 characters.
func SanitizeName(name string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash && b.Len() > 0 {
			b.WriteByte('-')
			lastDash = true
		}
	}
	s := strings.Trim(b.String(), "-")
	if len(s) > 50 {
		s = strings.Trim(s[:50], "-")
	}
	if s == "" {
		s = "project"
	}
	return s
}

// Materialize writes specs under a project directory named after name,
// creating intermediate directories as needed. Duplicate relative paths are
// overwritten in order (last writer wins). Every path is validated before
// anything is written: one traversal attempt poisons the whole batch.
//
// instructions, when non-empty, is recorded verbatim in a generated
// README.md alongside the project files (not counted in the result).
func (m *Materializer) Materialize(name, instructions string, specs []extract.FileSpec) (*Result, error) {
	dir := filepath.Join(m.root, "projects", SanitizeName(name))

	abs := make([]string, len(specs))
	for i, spec := range specs {
		p, err := securePath(dir, spec.RelativePath)
		if err != nil {
			return nil, err
		}
		abs[i] = p
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("project: create %s: %w", dir, err)
	}

	results := make([]FileResult, 0, len(specs))
	for i, spec := range specs {
		if err := os.MkdirAll(filepath.Dir(abs[i]), 0o755); err != nil {
			return nil, fmt.Errorf("project: create dirs for %s: %w", spec.RelativePath, err)
		}
		if err := os.WriteFile(abs[i], []byte(spec.Content), 0o644); err != nil {
			return nil, fmt.Errorf("project: write %s: %w", spec.RelativePath, err)
		}
		m.logger.Debug("file written", "path", spec.RelativePath, "bytes", len(spec.Content))
		results = append(results, FileResult{
			RelativePath: spec.RelativePath,
			AbsolutePath: abs[i],
			ByteSize:     len(spec.Content),
		})
	}

	if instructions != "" {
		readme := fmt.Sprintf("# %s\n\n## Instructions\n\n%s\n", name, instructions)
		if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte(readme), 0o644); err != nil {
			return nil, fmt.Errorf("project: write README.md: %w", err)
		}
	}

	return &Result{Path: dir, Files: results}, nil
}

// securePath resolves rel inside dir and rejects empty paths, absolute
// paths and anything that climbs out of dir.
func securePath(dir, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("project: empty relative path: %w", ErrPathTraversal)
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("project: path %q: %w", rel, ErrPathTraversal)
	}
	return filepath.Join(dir, cleaned), nil
}
