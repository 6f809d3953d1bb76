// Package organize sorts loose PDF files into per-case folders.
package organize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"pdfqa/internal/contextutil"
)

// Case is a target folder and the filename patterns that belong to it.
type Case struct {
	Name     string
	Patterns []string
}

// CaseMap lists cases in the order they appear in the map file. The first matching case wins.
type CaseMap []Case

// Move is one relocated file, relative to the organized directory.
type Move struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Result reports what Organize did.
type Result struct {
	Moved     []Move   `json:"moved"`
	Unmatched []string `json:"unmatched"`
	// Conflicts are matched files whose target name already exists. They are left in place.
	Conflicts []string `json:"conflicts,omitempty"`
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases name, collapses every run of other characters to "_"
// and trims leading and trailing underscores.
func Slugify(name string) string {
	s := nonAlnum.ReplaceAllString(strings.ToLower(name), "_")
	return strings.Trim(s, "_")
}

// fileName slugifies the stem and keeps a ".pdf" extension so the loader still picks the file up.
func fileName(entry string) string {
	stem := strings.TrimSuffix(entry, filepath.Ext(entry))
	slug := Slugify(stem)
	if slug == "" {
		slug = "document"
	}
	return slug + ".pdf"
}

// LoadCaseMap reads a JSON object mapping case names to arrays of patterns.
// Key order is preserved.
func LoadCaseMap(path string) (CaseMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open case map: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, fmt.Errorf("case map %s: expected a JSON object", path)
	}

	var cases CaseMap
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("case map %s: %w", path, err)
		}
		name, _ := tok.(string)
		if err := validateCaseName(name); err != nil {
			return nil, fmt.Errorf("case map %s: %w", path, err)
		}

		var patterns []string
		if err := dec.Decode(&patterns); err != nil {
			return nil, fmt.Errorf("case map %s: case %q: %w", path, name, err)
		}
		cases = append(cases, Case{Name: name, Patterns: patterns})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("case map %s: %w", path, err)
	}
	return cases, nil
}

func validateCaseName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid case name %q", name)
	}
	return nil
}

// match returns the first case with a pattern contained in entry. Empty patterns never match.
func (m CaseMap) match(entry string) (Case, bool) {
	for _, c := range m {
		for _, p := range c.Patterns {
			if p != "" && strings.Contains(entry, p) {
				return c, true
			}
		}
	}
	return Case{}, false
}

// Organize moves the top-level PDF files of dir into dir/<case>/<slug>.pdf.
// Subdirectories and non-PDF files are left alone, so running it twice is harmless.
func Organize(ctx context.Context, dir string, cases CaseMap) (*Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	res := &Result{}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		name := entry.Name()
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(name), ".pdf") {
			continue
		}

		c, ok := cases.match(name)
		if !ok {
			logger.InfoContext(ctx, "no case match", "file", name)
			res.Unmatched = append(res.Unmatched, name)
			continue
		}

		target := filepath.Join(c.Name, fileName(name))
		moved, err := move(filepath.Join(dir, name), filepath.Join(dir, target))
		if err != nil {
			return res, err
		}
		if !moved {
			logger.WarnContext(ctx, "target exists, leaving file in place", "file", name, "target", target)
			res.Conflicts = append(res.Conflicts, name)
			continue
		}
		logger.InfoContext(ctx, "moved", slog.String("file", name), slog.String("target", target))
		res.Moved = append(res.Moved, Move{From: name, To: filepath.ToSlash(target)})
	}
	return res, nil
}

func move(from, to string) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(to), 0755); err != nil {
		return false, fmt.Errorf("failed to create case folder: %w", err)
	}
	if _, err := os.Stat(to); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to stat %s: %w", to, err)
	}
	if err := os.Rename(from, to); err != nil {
		return false, fmt.Errorf("failed to move %s: %w", from, err)
	}
	return true, nil
}
