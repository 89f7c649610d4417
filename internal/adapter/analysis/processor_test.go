package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess_ClassifiesTree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n\nfunc main() {}\n")
	writeFile(t, root, "app.js", "console.log('hi');\n")
	writeFile(t, root, "style.css", "body {}\n")
	writeFile(t, root, "README.md", "# Widgets\n\nA widget toolkit.\n")
	writeFile(t, root, "LICENSE", "MIT License\n")
	writeFile(t, root, "docs/CHANGELOG", "v1.0.0 initial\n")
	writeFile(t, root, "go.mod", "module example.com/widgets\n")
	writeFile(t, root, "config.yaml", "key: value\n")
	writeFile(t, root, ".git/HEAD", "ref: refs/heads/main\n")

	result, err := NewProcessor().Process(t.Context(), root)
	require.NoError(t, err)

	// Structure: everything except .git counts.
	assert.Equal(t, 8, result.Structure.TotalFiles)
	assert.Equal(t, 1, result.Structure.FilesByType[".go"])
	assert.Equal(t, 1, result.Structure.FilesByType[".md"])
	assert.Equal(t, 2, result.Structure.FilesByType[""], "extensionless files bucket under empty string")
	assert.Contains(t, result.Structure.Directories, "docs")
	// Supported: main.go, app.js, style.css, README.md, config.yaml.
	assert.Equal(t, 5, result.Structure.SupportedFiles)

	// Documentation: README.md, LICENSE, CHANGELOG.
	require.Len(t, result.Documentation.DocFiles, 3)
	types := map[string]string{}
	for _, f := range result.Documentation.DocFiles {
		types[f.Path] = f.Type
	}
	assert.Equal(t, "readme", types["README.md"])
	assert.Equal(t, "license", types["LICENSE"])
	assert.Equal(t, "documentation", types["docs/CHANGELOG"])
	assert.Contains(t, result.Documentation.ReadmeExcerpt, "A widget toolkit.")
	assert.Contains(t, result.Documentation.LicenseExcerpt, "MIT License")

	// Source: main.go, app.js, style.css, config.yaml (.md is documentation).
	assert.Len(t, result.Source.SourceFiles, 4)
	assert.Equal(t, 1, result.Source.Languages["Go"])
	assert.Equal(t, 1, result.Source.Languages["JavaScript"])
	assert.Equal(t, 1, result.Source.Languages["CSS"])
	assert.Equal(t, 1, result.Source.Languages["YAML"])
	assert.Equal(t, "low", result.Source.Complexity)

	// Metadata: go.mod marks a Go project; config.yaml is a config file.
	assert.Equal(t, "go", result.Metadata.ProjectType)
	assert.Equal(t, []string{"go.mod"}, result.Metadata.BuildFiles)
	assert.Contains(t, result.Metadata.ConfigFiles, "config.yaml")

	// Stats aggregate the passes.
	assert.Equal(t, 3, result.Stats.DocumentationFiles)
	assert.Equal(t, 4, result.Stats.SourceFiles)
	assert.Equal(t, 5, result.Stats.SupportedFiles)
	assert.Equal(t, 8+3+4, result.Stats.TotalFilesProcessed)
}

func TestProcess_ProjectTypeMarkers(t *testing.T) {
	tests := []struct {
		name   string
		marker string
		want   string
	}{
		{"javascript", "package.json", "javascript"},
		{"python", "requirements.txt", "python"},
		{"rust", "Cargo.toml", "rust"},
		{"java", "pom.xml", "java"},
		{"ruby", "Gemfile", "ruby"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeFile(t, root, tt.marker, "marker\n")
			result, err := NewProcessor().Process(t.Context(), root)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Metadata.ProjectType)
		})
	}
}

func TestProcess_UnknownProjectType(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.c", "int main() { return 0; }\n")

	result, err := NewProcessor().Process(t.Context(), root)
	require.NoError(t, err)
	assert.Equal(t, "unknown", result.Metadata.ProjectType)
	assert.Empty(t, result.Metadata.BuildFiles)
}

func TestComplexityBuckets(t *testing.T) {
	assert.Equal(t, "low", complexityFor(0))
	assert.Equal(t, "low", complexityFor(999))
	assert.Equal(t, "medium", complexityFor(1000))
	assert.Equal(t, "medium", complexityFor(9999))
	assert.Equal(t, "high", complexityFor(10000))
}

func TestProcess_HighComplexity(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "big.go", strings.Repeat("// line\n", 12000))

	result, err := NewProcessor().Process(t.Context(), root)
	require.NoError(t, err)
	assert.Equal(t, "high", result.Source.Complexity)
}
