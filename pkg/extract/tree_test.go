package extract

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildFileTree(t *testing.T) {
	paths := []string{
		"README.md",
		"cmd/app/main.go",
		"pkg/store/pg.go",
		"pkg/store/memory.go",
		"pkg/deep/a/b/c/d/e.go",
	}

	tree := buildFileTree(paths, 4, 200)

	assert.Contains(t, tree, "README.md")
	assert.Contains(t, tree, "cmd/")
	assert.Contains(t, tree, "pg.go")
	// Depth 4 collapses anything deeper.
	assert.Contains(t, tree, "...")
	assert.NotContains(t, tree, "e.go")
}

func TestBuildFileTreeLineCap(t *testing.T) {
	paths := make([]string, 0, 500)
	for i := 0; i < 500; i++ {
		paths = append(paths, "file"+strconv.Itoa(i)+".go")
	}

	tree := buildFileTree(paths, 4, 50)
	lines := strings.Split(tree, "\n")
	assert.Len(t, lines, 51) // cap plus the continuation marker
	assert.Contains(t, lines[50], "more entries")
}

func TestBuildFileTreeDirectoriesFirst(t *testing.T) {
	tree := buildFileTree([]string{"zz.go", "aa/inner.go"}, 4, 200)
	lines := strings.Split(tree, "\n")
	assert.Equal(t, "aa/", lines[0])
	assert.Equal(t, "  inner.go", lines[1])
	assert.Equal(t, "zz.go", lines[2])
}
