package port

import (
	"context"
	"time"
)

// AnalysisResult summarizes a repository's working tree for the import
// pipeline: total counts plus an optional README-derived description.
type AnalysisResult struct {
	FileCount      int    `json:"file_count"`
	TotalSizeBytes int64  `json:"total_size_bytes"`
	Description    string `json:"description,omitempty"`
}

// Analyzer inspects a cloned repository's working tree. Implementations are
// pure functions of the directory contents and never descend into the VCS
// metadata directory.
type Analyzer interface {
	// Analyze walks root and returns file count, total size, and a
	// description extracted from the README when one exists.
	Analyze(root string) (AnalysisResult, error)

	// AnalyzeStructure is the counting-only walk. It reports figures
	// identical to Analyze for the same directory contents.
	AnalyzeStructure(root string) (fileCount int, totalSizeBytes int64, err error)

	// ListFiles returns the slash-separated relative paths of all regular
	// files under root, sorted, excluding the VCS metadata directory.
	ListFiles(root string) ([]string, error)
}

// StructureResult describes the directory layout and file-type distribution.
type StructureResult struct {
	Directories    []string       `json:"directories"`
	FilesByType    map[string]int `json:"files_by_type"`
	TotalFiles     int            `json:"total_files"`
	SupportedFiles int            `json:"supported_files"`
}

// DocFile is one documentation file found during processing.
type DocFile struct {
	Path  string `json:"path"`
	Name  string `json:"name"`
	Size  int64  `json:"size"`
	Lines int    `json:"lines"`
	Type  string `json:"type"` // readme, license, documentation
}

// DocumentationResult collects documentation files and excerpts.
type DocumentationResult struct {
	DocFiles       []DocFile `json:"doc_files"`
	ReadmeExcerpt  string    `json:"readme_excerpt,omitempty"`
	LicenseExcerpt string    `json:"license_excerpt,omitempty"`
}

// SourceFile is one source file found during processing.
type SourceFile struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	Extension string `json:"extension"`
	Language  string `json:"language"`
	Lines     int    `json:"lines"`
	Size      int64  `json:"size"`
}

// SourceResult summarizes the source files and their aggregate complexity.
type SourceResult struct {
	SourceFiles []SourceFile   `json:"source_files"`
	Languages   map[string]int `json:"languages"`
	TotalLines  int            `json:"total_lines"`
	Complexity  string         `json:"complexity"` // low, medium, high
}

// MetadataResult captures project-level markers (build and config files).
type MetadataResult struct {
	ProjectType string   `json:"project_type"`
	BuildFiles  []string `json:"build_files"`
	ConfigFiles []string `json:"config_files"`
}

// ProcessingStats aggregates counts across the four passes.
type ProcessingStats struct {
	TotalFilesProcessed int `json:"total_files_processed"`
	DocumentationFiles  int `json:"documentation_files"`
	SourceFiles         int `json:"source_files"`
	SupportedFiles      int `json:"supported_files"`
}

// ProcessingResult is the combined output of the processing passes.
type ProcessingResult struct {
	RepositoryID  string              `json:"repository_id"`
	ProcessedAt   time.Time           `json:"processed_at"`
	Structure     StructureResult     `json:"structure"`
	Documentation DocumentationResult `json:"documentation"`
	Source        SourceResult        `json:"source_code"`
	Metadata      MetadataResult      `json:"metadata"`
	Stats         ProcessingStats     `json:"processing_stats"`
}

// Processor runs the richer structural classification over a working tree.
type Processor interface {
	Process(ctx context.Context, root string) (*ProcessingResult, error)
}
