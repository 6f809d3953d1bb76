package loader

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pdfqa/internal/apperr"
	"pdfqa/internal/contextutil"
	"pdfqa/internal/document"
)

// Extracted is the text and metadata an extractor produced for one file.
type Extracted struct {
	Text     string
	Metadata map[string]any
}

// Extractor turns one file into text.
type Extractor interface {
	Extract(ctx context.Context, path string) (Extracted, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, path string) (Extracted, error)

func (f ExtractorFunc) Extract(ctx context.Context, path string) (Extracted, error) {
	return f(ctx, path)
}

// Registry maps lowercase file extensions to extractors.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry enables exts using the given extractors.
// An extension with no extractor is a configuration error.
func NewRegistry(exts []string, available map[string]Extractor) (*Registry, error) {
	r := &Registry{extractors: make(map[string]Extractor, len(exts))}
	for _, ext := range exts {
		ext = strings.ToLower(ext)
		ex, ok := available[ext]
		if !ok {
			return nil, apperr.Newf(apperr.ErrConfiguration, "no loader for extension %q (supported: %s)",
				ext, strings.Join(sortedKeys(available), ", "))
		}
		r.extractors[ext] = ex
	}
	return r, nil
}

// Lookup returns the extractor for ext.
func (r *Registry) Lookup(ext string) (Extractor, bool) {
	ex, ok := r.extractors[strings.ToLower(ext)]
	return ex, ok
}

// Extensions returns the enabled extensions in sorted order.
func (r *Registry) Extensions() []string {
	return sortedKeys(r.extractors)
}

// Result is the outcome of loading a directory.
type Result struct {
	Documents []document.Document
	Skipped   []string
}

// DirectoryLoader loads every file under a directory whose extension is registered.
type DirectoryLoader struct {
	registry *Registry
	logger   *slog.Logger
}

// NewDirectoryLoader creates a loader for the registry.
func NewDirectoryLoader(registry *Registry, logger *slog.Logger) *DirectoryLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectoryLoader{
		registry: registry,
		logger:   logger.With("component", "loader"),
	}
}

// Load walks dir recursively in lexical order. Files with unregistered extensions are
// skipped and reported in Result.Skipped. Any access or extraction failure aborts the load.
func (l *DirectoryLoader) Load(ctx context.Context, dir string) (*Result, error) {
	logger := contextutil.LoggerOr(ctx, l.logger)

	info, err := os.Stat(dir)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrLoad, err, "failed to open directory "+dir)
	}
	if !info.IsDir() {
		return nil, apperr.Newf(apperr.ErrLoad, "%s is not a directory", dir)
	}

	result := &Result{}
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return apperr.Wrap(apperr.ErrLoad, err, "failed to access path "+path)
		}
		if err := ctx.Err(); err != nil {
			return apperr.Wrap(apperr.ErrLoad, err, "load cancelled")
		}

		if d.IsDir() {
			// Skip hidden directories such as .git
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		ex, ok := l.registry.Lookup(ext)
		if !ok {
			logger.DebugContext(ctx, "skipping file with unsupported extension", "path", path, "ext", ext)
			result.Skipped = append(result.Skipped, path)
			return nil
		}

		extracted, err := ex.Extract(ctx, path)
		if err != nil {
			return apperr.Wrap(apperr.ErrLoad, err, "failed to extract text from "+path)
		}

		meta := make(map[string]any, len(extracted.Metadata)+1)
		maps.Copy(meta, extracted.Metadata)
		meta[document.MetaSource] = path

		doc := document.Document{
			ID:       path,
			Content:  strings.TrimSpace(extracted.Text),
			Metadata: meta,
		}
		if doc.Content == "" {
			logger.WarnContext(ctx, "document has no extractable text", "path", path)
		}
		result.Documents = append(result.Documents, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "loaded documents",
		"dir", dir,
		"documents", len(result.Documents),
		"skipped", len(result.Skipped),
	)
	return result, nil
}

func sortedKeys(m map[string]Extractor) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultExtractors returns the built-in extractors keyed by extension.
func DefaultExtractors(pdf Extractor) map[string]Extractor {
	return map[string]Extractor{
		".pdf": pdf,
		".md":  NewMarkdownExtractor(),
		".txt": ExtractorFunc(extractPlainText),
	}
}

func extractPlainText(_ context.Context, path string) (Extracted, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Extracted{}, fmt.Errorf("failed to read file: %w", err)
	}
	return Extracted{Text: string(content)}, nil
}
