package extract

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/src-d/enry/v2"

	"github.com/vibejudge/vibejudge/pkg/config"
	"github.com/vibejudge/vibejudge/pkg/models"
)

// Directories never descended into during the worktree walk.
var ignoredDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"out":          true,
	"bin":          true,
	"obj":          true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
	".idea":        true,
	".vscode":      true,
	".terraform":   true,
	".next":        true,
	".cache":       true,
	"coverage":     true,
}

const maxCandidateFileBytes = 4 << 20

type candidate struct {
	path     string
	priority int
	lines    int
	size     int64
	content  []byte
	language string
	binary   bool
}

type walkResult struct {
	candidates []candidate
	treePaths  []string
	totalFiles int
	totalLines int
	languages  map[string]int
}

// walkWorktree scans the checked-out repository once, classifying every file.
// Content is loaded only for files with a non-zero priority and a sane size.
func walkWorktree(root string) (*walkResult, error) {
	res := &walkResult{languages: make(map[string]int)}

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && ignoredDirs[strings.ToLower(d.Name())] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		res.treePaths = append(res.treePaths, rel)
		res.totalFiles++

		prio := FilePriority(rel)
		if prio == PriorityNone {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > maxCandidateFileBytes {
			return nil
		}
		content, err := os.ReadFile(p)
		if err != nil {
			return nil
		}

		binary := enry.IsBinary(content)
		if binary {
			return nil
		}
		lines := countLines(content)
		res.totalLines += lines

		lang := enry.GetLanguage(rel, content)
		if lang != "" && enry.GetLanguageType(lang) == enry.Programming {
			res.languages[lang] += lines
		}

		res.candidates = append(res.candidates, candidate{
			path:     rel,
			priority: prio,
			lines:    lines,
			size:     info.Size(),
			content:  content,
			language: lang,
			binary:   binary,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk worktree: %w", err)
	}

	sort.Strings(res.treePaths)
	return res, nil
}

// selectSourceFiles picks the top files by priority and formats them for the
// judging prompt, truncating long content.
func selectSourceFiles(res *walkResult, cfg *config.ExtractorConfig) []models.SourceFile {
	cands := append([]candidate(nil), res.candidates...)

	// A huge blob of non-code (generated JSON, data dumps) is almost never
	// worth a prompt slot.
	for i := range cands {
		if cands[i].lines > cfg.HugeFileLines && enry.GetLanguageType(cands[i].language) != enry.Programming {
			cands[i].priority = PriorityConfig / 2
		}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].priority != cands[j].priority {
			return cands[i].priority > cands[j].priority
		}
		if cands[i].lines != cands[j].lines {
			return cands[i].lines > cands[j].lines
		}
		return cands[i].path < cands[j].path
	})

	limit := cfg.TopFiles
	if limit > len(cands) {
		limit = len(cands)
	}

	files := make([]models.SourceFile, 0, limit)
	for _, c := range cands[:limit] {
		content, truncated := truncateLines(c.content, cfg.MaxFileLines, c.lines)
		files = append(files, models.SourceFile{
			Path:      c.path,
			Language:  c.language,
			Priority:  c.priority,
			Lines:     c.lines,
			SizeBytes: c.size,
			Content:   content,
			Truncated: truncated,
		})
	}
	return files
}

func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := bytes.Count(content, []byte{'\n'})
	if content[len(content)-1] != '\n' {
		n++
	}
	return n
}

// truncateLines keeps the first max lines and appends a marker stating how
// much was dropped.
func truncateLines(content []byte, max, total int) (string, bool) {
	if total <= max {
		return string(content), false
	}
	idx := 0
	for i := 0; i < max; i++ {
		next := bytes.IndexByte(content[idx:], '\n')
		if next < 0 {
			idx = len(content)
			break
		}
		idx += next + 1
	}
	return fmt.Sprintf("%s\n... [truncated: showing first %d of %d lines]\n", string(content[:idx]), max, total), true
}
