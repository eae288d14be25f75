package extract

import (
	"strings"

	"github.com/vibejudge/vibejudge/pkg/extract/gitrepo"
	"github.com/vibejudge/vibejudge/pkg/models"
)

// buildMeta assembles the persisted repository metadata from the walk, the
// commit graph stats and the CI data.
func buildMeta(res *walkResult, stats gitrepo.RepoStats, branchCount int, readme string, runs []models.WorkflowRun) models.RepoMeta {
	meta := models.RepoMeta{
		CommitCount:      stats.CommitCount,
		BranchCount:      branchCount,
		ContributorCount: stats.ContributorCount,
		Languages:        res.languages,
		FileCount:        res.totalFiles,
		TotalLines:       res.totalLines,
		HasReadme:        readme != "",
	}

	for _, p := range res.treePaths {
		if isTestPath(p) {
			meta.HasTests = true
		}
		if isWorkflowPath(p) && strings.HasPrefix(strings.ToLower(p), ".github/workflows/") {
			meta.HasCI = true
		}
		base := strings.ToLower(p[strings.LastIndex(p, "/")+1:])
		if containerNames[base] {
			meta.HasDockerfile = true
		}
	}

	if !stats.FirstCommitAt.IsZero() {
		first, last := stats.FirstCommitAt, stats.LastCommitAt
		meta.FirstCommitAt = &first
		meta.LastCommitAt = &last
		meta.DevelopmentHours = last.Sub(first).Hours()
	}

	meta.WorkflowRunCount = len(runs)
	if len(runs) > 0 {
		success := 0
		for _, r := range runs {
			if r.Conclusion == "success" {
				success++
			}
		}
		meta.WorkflowSuccessRate = float64(success) / float64(len(runs))
	}

	return meta
}
