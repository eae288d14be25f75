package agent

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vibejudge/vibejudge/pkg/models"
)

func wideDiffs(n int) []models.CommitDiff {
	diffs := make([]models.CommitDiff, n)
	for i := range diffs {
		diffs[i] = models.CommitDiff{
			Hash:  fmt.Sprintf("%040d", i),
			Churn: 100 + i,
			Changes: []models.FileChange{
				{Path: fmt.Sprintf("internal/service/handler_%03d.go", i), Type: models.ChangeModified},
			},
		}
	}
	return diffs
}

func TestBuildUserMessageTrimsCommitsFirst(t *testing.T) {
	commits := make([]models.CommitInfo, 400)
	for i := range commits {
		commits[i] = models.CommitInfo{
			ShortHash:   fmt.Sprintf("abc%04d", i),
			Author:      "dev",
			CommittedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			Subject:     "Refactor the submission intake validation path",
		}
	}
	rc := &models.RepoContext{
		Owner: "acme", Repo: "demo", DefaultBranch: "main",
		Commits:      commits,
		WorkflowDefs: []models.WorkflowDef{{Path: ".github/workflows/ci.yml", Content: "name: ci"}},
	}

	msg := buildUserMessage(rc, "judge prompt", 6000, 1000)

	// History shrank to fit the reserve; the small CI section survived.
	assert.Contains(t, msg, "## Commit history")
	assert.Contains(t, msg, "## CI workflows")
	assert.Less(t, strings.Count(msg, "abc"), 400)
}

func TestBuildUserMessageDropsDiffsThenWorkflows(t *testing.T) {
	rc := &models.RepoContext{
		Owner: "acme", Repo: "demo", DefaultBranch: "main",
		DiffSummary:  wideDiffs(300),
		WorkflowDefs: []models.WorkflowDef{{Path: ".github/workflows/ci.yml", Content: "name: ci"}},
	}

	// No commits to trim: the oversized diff summary is dropped whole and
	// the small workflow section keeps its slot.
	msg := buildUserMessage(rc, "judge prompt", 6000, 1000)
	assert.NotContains(t, msg, "## High-churn commits")
	assert.Contains(t, msg, "## CI workflows")

	// With the workflow data oversized too, both sections go.
	rc.WorkflowDefs = []models.WorkflowDef{{
		Path:    ".github/workflows/ci.yml",
		Content: strings.Repeat("jobs:\n  build:\n    runs-on: ubuntu-latest\n", 400),
	}}
	msg = buildUserMessage(rc, "judge prompt", 6000, 1000)
	assert.NotContains(t, msg, "## High-churn commits")
	assert.NotContains(t, msg, "## CI workflows")
	assert.Contains(t, msg, "## Repository")
}
