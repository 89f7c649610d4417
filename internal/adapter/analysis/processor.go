package analysis

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/repodock/repodock/internal/port"
)

// File extensions eligible for processing.
var supportedExtensions = map[string]bool{
	".md": true, ".txt": true, ".py": true, ".js": true, ".ts": true,
	".jsx": true, ".tsx": true, ".java": true, ".cpp": true, ".h": true,
	".c": true, ".go": true, ".rs": true, ".php": true, ".rb": true,
	".swift": true, ".kt": true, ".scala": true, ".json": true,
	".yaml": true, ".yml": true, ".xml": true, ".html": true, ".css": true,
	".scss": true, ".sql": true,
}

// Filename tokens that mark a documentation file.
var docTokens = []string{
	"readme", "license", "contributing", "changelog", "history",
	"authors", "credits", "todo", "bug", "issue", "roadmap",
}

var docExtensions = map[string]bool{".md": true, ".txt": true, ".rst": true}

// Project type markers, checked in walk order; the first hit decides the
// project type, every hit is recorded as a build file.
var projectMarkers = map[string]string{
	"package.json":     "javascript",
	"requirements.txt": "python",
	"pyproject.toml":   "python",
	"setup.py":         "python",
	"Cargo.toml":       "rust",
	"pom.xml":          "java",
	"build.gradle":     "java",
	"go.mod":           "go",
	"composer.json":    "php",
	"Gemfile":          "ruby",
}

var configExtensions = map[string]bool{
	".json": true, ".yaml": true, ".yml": true, ".toml": true,
	".ini": true, ".cfg": true,
}

var languageByExt = map[string]string{
	".py":    "Python",
	".js":    "JavaScript",
	".ts":    "TypeScript",
	".jsx":   "React",
	".tsx":   "React/TypeScript",
	".java":  "Java",
	".cpp":   "C++",
	".c":     "C",
	".h":     "C/C++",
	".go":    "Go",
	".rs":    "Rust",
	".php":   "PHP",
	".rb":    "Ruby",
	".swift": "Swift",
	".kt":    "Kotlin",
	".scala": "Scala",
	".html":  "HTML",
	".css":   "CSS",
	".scss":  "SCSS",
	".sql":   "SQL",
	".json":  "JSON",
	".yaml":  "YAML",
	".yml":   "YAML",
	".xml":   "XML",
}

// Processor implements port.Processor: four independent classification
// passes over the same filtered walk, run concurrently.
type Processor struct{}

// NewProcessor creates a new processor.
func NewProcessor() *Processor {
	return &Processor{}
}

// Process runs the structure, documentation, source, and metadata passes
// over the working tree at root.
func (p *Processor) Process(ctx context.Context, root string) (*port.ProcessingResult, error) {
	var (
		structure port.StructureResult
		docs      port.DocumentationResult
		source    port.SourceResult
		meta      port.MetadataResult
	)

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(4)

	g.Go(func() error {
		r, err := structurePass(root)
		structure = r
		return err
	})
	g.Go(func() error {
		r, err := documentationPass(root)
		docs = r
		return err
	})
	g.Go(func() error {
		r, err := sourcePass(root)
		source = r
		return err
	})
	g.Go(func() error {
		r, err := metadataPass(root)
		meta = r
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &port.ProcessingResult{
		ProcessedAt:   time.Now().UTC(),
		Structure:     structure,
		Documentation: docs,
		Source:        source,
		Metadata:      meta,
		Stats: port.ProcessingStats{
			TotalFilesProcessed: structure.TotalFiles + len(docs.DocFiles) + len(source.SourceFiles),
			DocumentationFiles:  len(docs.DocFiles),
			SourceFiles:         len(source.SourceFiles),
			SupportedFiles:      structure.SupportedFiles,
		},
	}, nil
}

func structurePass(root string) (port.StructureResult, error) {
	result := port.StructureResult{
		Directories: []string{},
		FilesByType: map[string]int{},
	}
	err := walkFiltered(root, func(rel string, d fs.DirEntry) error {
		if d.IsDir() {
			result.Directories = append(result.Directories, rel)
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		result.FilesByType[ext]++
		result.TotalFiles++
		if supportedExtensions[ext] {
			result.SupportedFiles++
		}
		return nil
	})
	return result, err
}

func documentationPass(root string) (port.DocumentationResult, error) {
	result := port.DocumentationResult{DocFiles: []port.DocFile{}}
	err := walkFiltered(root, func(rel string, d fs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		lower := strings.ToLower(d.Name())
		isDoc := containsAny(lower, docTokens)
		if !isDoc && !docExtensions[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}

		content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return nil
		}

		entry := port.DocFile{
			Path:  rel,
			Name:  d.Name(),
			Size:  int64(len(content)),
			Lines: strings.Count(string(content), "\n") + 1,
			Type:  "documentation",
		}
		switch {
		case strings.Contains(lower, "readme"):
			entry.Type = "readme"
			if result.ReadmeExcerpt == "" {
				result.ReadmeExcerpt = truncateRunes(string(content), 1000)
			}
		case strings.Contains(lower, "license"):
			entry.Type = "license"
			if result.LicenseExcerpt == "" {
				result.LicenseExcerpt = truncateRunes(string(content), 500)
			}
		}
		result.DocFiles = append(result.DocFiles, entry)
		return nil
	})
	return result, err
}

func sourcePass(root string) (port.SourceResult, error) {
	result := port.SourceResult{
		SourceFiles: []port.SourceFile{},
		Languages:   map[string]int{},
	}
	err := walkFiltered(root, func(rel string, d fs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if !supportedExtensions[ext] || ext == ".md" || ext == ".txt" {
			return nil
		}

		content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return nil
		}
		lines := strings.Count(string(content), "\n") + 1

		language, ok := languageByExt[ext]
		if !ok {
			language = "Unknown"
		}
		result.Languages[language]++
		result.SourceFiles = append(result.SourceFiles, port.SourceFile{
			Path:      rel,
			Name:      d.Name(),
			Extension: ext,
			Language:  language,
			Lines:     lines,
			Size:      int64(len(content)),
		})
		result.TotalLines += lines
		return nil
	})
	result.Complexity = complexityFor(result.TotalLines)
	return result, err
}

func metadataPass(root string) (port.MetadataResult, error) {
	result := port.MetadataResult{
		ProjectType: "unknown",
		BuildFiles:  []string{},
		ConfigFiles: []string{},
	}
	err := walkFiltered(root, func(rel string, d fs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		if ptype, ok := projectMarkers[d.Name()]; ok {
			if result.ProjectType == "unknown" {
				result.ProjectType = ptype
			}
			result.BuildFiles = append(result.BuildFiles, rel)
		}
		if configExtensions[strings.ToLower(filepath.Ext(d.Name()))] {
			result.ConfigFiles = append(result.ConfigFiles, rel)
		}
		return nil
	})
	return result, err
}

// complexityFor buckets a total source-line count into a coarse tier.
func complexityFor(totalLines int) string {
	switch {
	case totalLines < 1000:
		return "low"
	case totalLines < 10000:
		return "medium"
	default:
		return "high"
	}
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
