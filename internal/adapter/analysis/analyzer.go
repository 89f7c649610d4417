package analysis

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/repodock/repodock/internal/port"
)

// vcsDir is the VCS metadata directory excluded from every walk.
const vcsDir = ".git"

// Analyzer implements port.Analyzer with plain filesystem walks.
type Analyzer struct{}

// NewAnalyzer creates a new analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// README filenames checked in preference order; first existing file wins.
var readmeNames = []string{"README.md", "README.txt", "readme.md"}

// Analyze walks root counting regular files and sizes, then extracts a
// description from the README when one is present.
func (a *Analyzer) Analyze(root string) (port.AnalysisResult, error) {
	count, size, err := a.AnalyzeStructure(root)
	if err != nil {
		return port.AnalysisResult{}, err
	}
	return port.AnalysisResult{
		FileCount:      count,
		TotalSizeBytes: size,
		Description:    extractDescription(root),
	}, nil
}

// AnalyzeStructure counts regular files and accumulates their sizes.
// Files that cannot be stat'ed are skipped, never fatal.
func (a *Analyzer) AnalyzeStructure(root string) (int, int64, error) {
	var count int
	var size int64

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if d.Name() == vcsDir && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, ierr := d.Info()
		if ierr != nil {
			return nil
		}
		count++
		size += info.Size()
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("walk %s: %w", root, err)
	}
	return count, size, nil
}

// ListFiles returns the slash-separated relative paths of all regular files
// under root, sorted, with the VCS metadata directory excluded.
func (a *Analyzer) ListFiles(root string) ([]string, error) {
	files := []string{}
	err := walkFiltered(root, func(rel string, d fs.DirEntry) error {
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// walkFiltered walks root skipping the VCS directory and invokes fn with
// each entry's slash-separated path relative to root. Per-entry walk errors
// are skipped; only a failure to walk root itself is returned.
func walkFiltered(root string, fn func(rel string, d fs.DirEntry) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if d.IsDir() && d.Name() == vcsDir && path != root {
			return fs.SkipDir
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil || rel == "." {
			return nil
		}
		return fn(filepath.ToSlash(rel), d)
	})
}

// extractDescription finds a README and returns its first content line,
// truncated to 200 characters. Missing or undecodable READMEs yield "".
func extractDescription(root string) string {
	for _, name := range readmeCandidates(root) {
		data, err := os.ReadFile(filepath.Join(root, name))
		if err != nil || !utf8.Valid(data) {
			continue
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			return truncateRunes(line, 200)
		}
	}
	return ""
}

// readmeCandidates returns README filenames to try at root: the exact
// preferred spellings first, then case-insensitive matches, .md before .txt.
func readmeCandidates(root string) []string {
	candidates := append([]string{}, readmeNames...)
	entries, err := os.ReadDir(root)
	if err != nil {
		return candidates
	}
	var md, txt []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(e.Name()) {
		case "readme.md":
			md = append(md, e.Name())
		case "readme.txt":
			txt = append(txt, e.Name())
		}
	}
	candidates = append(candidates, md...)
	return append(candidates, txt...)
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
