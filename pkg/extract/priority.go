package extract

import (
	"path"
	"strings"
)

// Priority tiers for repository files. Higher is more interesting to the
// judges; zero means the file is discarded.
const (
	PriorityEntryPoint = 100
	PriorityManifest   = 90
	PriorityContainer  = 85
	PriorityWorkflow   = 80
	PriorityTest       = 70
	PrioritySource     = 50
	PriorityConfig     = 40
	PriorityNone       = 0
)

var manifestNames = map[string]bool{
	"requirements.txt": true,
	"pyproject.toml":   true,
	"setup.py":         true,
	"package.json":     true,
	"go.mod":           true,
	"cargo.toml":       true,
	"pom.xml":          true,
	"build.gradle":     true,
	"gemfile":          true,
	"composer.json":    true,
}

var containerNames = map[string]bool{
	"dockerfile":          true,
	"containerfile":       true,
	"docker-compose.yml":  true,
	"docker-compose.yaml": true,
	"compose.yml":         true,
	"compose.yaml":        true,
}

var sourceExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".jsx": true, ".ts": true,
	".tsx": true, ".rs": true, ".java": true, ".kt": true, ".rb": true,
	".php": true, ".cs": true, ".c": true, ".h": true, ".cc": true,
	".cpp": true, ".hpp": true, ".swift": true, ".scala": true, ".ex": true,
	".exs": true, ".erl": true, ".hs": true, ".lua": true, ".r": true,
	".sh": true, ".sql": true, ".vue": true, ".svelte": true, ".zig": true,
	".dart": true, ".m": true,
}

var configExtensions = map[string]bool{
	".yaml": true, ".yml": true, ".toml": true, ".json": true,
	".ini": true, ".cfg": true, ".conf": true, ".env": true,
	".proto": true, ".graphql": true, ".tf": true, ".html": true,
	".css": true, ".scss": true, ".md": true,
}

var entryStems = map[string]bool{
	"main": true, "app": true, "index": true, "server": true,
}

// FilePriority ranks a repository file by its relative path. The result
// depends only on the path, never on content.
func FilePriority(relPath string) int {
	base := strings.ToLower(path.Base(relPath))
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	switch {
	case entryStems[stem] && sourceExtensions[ext], base == "program.cs":
		return PriorityEntryPoint
	case manifestNames[base]:
		return PriorityManifest
	case containerNames[base]:
		return PriorityContainer
	case isWorkflowPath(relPath):
		return PriorityWorkflow
	case isTestPath(relPath):
		return PriorityTest
	case sourceExtensions[ext]:
		return PrioritySource
	case configExtensions[ext]:
		return PriorityConfig
	default:
		return PriorityNone
	}
}

func isWorkflowPath(relPath string) bool {
	lower := strings.ToLower(relPath)
	switch {
	case strings.HasPrefix(lower, ".github/workflows/"),
		strings.HasPrefix(lower, ".gitlab-ci"),
		strings.HasPrefix(lower, ".circleci/"),
		strings.HasSuffix(lower, "jenkinsfile"):
		return true
	}
	ext := path.Ext(lower)
	if ext == ".tf" || ext == ".tfvars" {
		return true
	}
	base := path.Base(lower)
	return base == "makefile" || base == "justfile"
}

func isTestPath(relPath string) bool {
	lower := strings.ToLower(relPath)
	base := path.Base(lower)
	if !sourceExtensions[path.Ext(base)] {
		return false
	}
	switch {
	case strings.HasSuffix(strings.TrimSuffix(base, path.Ext(base)), "_test"),
		strings.HasPrefix(base, "test_"),
		strings.Contains(base, ".test."),
		strings.Contains(base, ".spec."):
		return true
	}
	for _, dir := range strings.Split(path.Dir(lower), "/") {
		if dir == "test" || dir == "tests" || dir == "__tests__" || dir == "spec" {
			return true
		}
	}
	return false
}
