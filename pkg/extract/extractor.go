// Package extract turns a submission's repository URL into a bounded
// RepoContext: prioritised source files, commit history, diff summaries and
// repository metadata, sized to fit a judging prompt.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/vibejudge/vibejudge/pkg/config"
	"github.com/vibejudge/vibejudge/pkg/extract/gitrepo"
	"github.com/vibejudge/vibejudge/pkg/metrics"
	"github.com/vibejudge/vibejudge/pkg/models"
)

var defaultBranchCandidates = []string{"main", "master", "develop"}

// Extractor produces RepoContexts from remote repositories.
type Extractor struct {
	cfg       *config.ExtractorConfig
	workflows WorkflowClient
	logger    *slog.Logger
}

// NewExtractor creates an extractor. workflows may be nil, in which case CI
// run data is skipped.
func NewExtractor(cfg *config.ExtractorConfig, workflows WorkflowClient, logger *slog.Logger) *Extractor {
	return &Extractor{
		cfg:       cfg,
		workflows: workflows,
		logger:    logger.With("component", "extractor"),
	}
}

// Extract clones the repository and builds its RepoContext. The ephemeral
// clone directory is removed on every exit path.
func (e *Extractor) Extract(ctx context.Context, repoURL, subID string) (*models.RepoContext, error) {
	start := time.Now()
	defer func() {
		metrics.ExtractDuration.Observe(time.Since(start).Seconds())
	}()

	ref, err := ParseRepoURL(repoURL, e.cfg.AllowedHosts)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(e.cfg.WorkDir, subID)
	if err := os.MkdirAll(e.cfg.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			e.logger.Warn("Failed to remove clone directory", "dir", dir, "error", rmErr)
		}
	}()

	shallow, err := e.clone(ctx, ref, dir)
	if err != nil {
		return nil, err
	}

	repo, err := gitrepo.Open(dir)
	if err != nil {
		return nil, newError(KindNotAccessible, err)
	}
	defer repo.Free()

	branch, err := repo.ResolveDefaultBranch(defaultBranchCandidates)
	if err != nil {
		if errors.Is(err, gitrepo.ErrNoBranches) {
			return nil, newError(KindEmpty, err)
		}
		return nil, newError(KindNotAccessible, err)
	}

	walkRes, err := walkWorktree(dir)
	if err != nil {
		return nil, newError(KindNotAccessible, err)
	}

	stats, err := repo.Stats(branch)
	if err != nil {
		return nil, newError(KindNotAccessible, err)
	}
	branchCount, err := repo.BranchCount()
	if err != nil {
		return nil, newError(KindNotAccessible, err)
	}
	history, err := repo.History(branch, e.cfg.TopCommits)
	if err != nil {
		return nil, newError(KindNotAccessible, err)
	}

	readme := readReadme(dir, e.cfg.ReadmeMaxChars)
	runs := fetchWorkflowRuns(ctx, e.logger, e.workflows, ref, e.cfg.WorkflowRunLimit, e.cfg.WorkflowTimeout)

	rc := &models.RepoContext{
		Owner:         ref.Owner,
		Repo:          ref.Repo,
		DefaultBranch: branch,
		FileTree:      buildFileTree(walkRes.treePaths, e.cfg.TreeMaxDepth, e.cfg.TreeMaxLines),
		TreePaths:     walkRes.treePaths,
		Readme:        readme,
		SourceFiles:   selectSourceFiles(walkRes, e.cfg),
		Commits:       commitInfos(history),
		DiffSummary:   diffSummaries(history, e.cfg.TopDiffs),
		WorkflowDefs:  readWorkflowDefs(dir, e.cfg.WorkflowDefLimit, e.cfg.ReadmeMaxChars),
		WorkflowRuns:  runs,
	}
	rc.Meta = buildMeta(walkRes, stats, branchCount, readme, runs)

	e.logger.Info("Repository extracted",
		"sub_id", subID,
		"owner", ref.Owner,
		"repo", ref.Repo,
		"branch", branch,
		"shallow", shallow,
		"files", len(rc.SourceFiles),
		"commits", len(rc.Commits),
		"duration", time.Since(start).Round(time.Millisecond))

	return rc, nil
}

// clone performs the full-history clone with a shallow single-branch
// fallback when the full clone times out or blows the disk budget.
func (e *Extractor) clone(ctx context.Context, ref RepoRef, dir string) (shallow bool, err error) {
	full := gitrepo.CloneOptions{
		URL:                      ref.CloneURL(),
		Dir:                      dir,
		Timeout:                  e.cfg.CloneTimeout,
		DiskBudgetBytes:          e.cfg.CloneBudgetBytes,
		MinThroughputBytesPerSec: e.cfg.MinThroughputBytesPerSec,
		ThroughputWindow:         e.cfg.LowThroughputWindow,
	}

	err = gitrepo.Clone(ctx, full)
	if err == nil {
		return false, nil
	}

	switch {
	case errors.Is(err, gitrepo.ErrCloneTimeout), errors.Is(err, gitrepo.ErrCloneOversize):
		e.logger.Warn("Full clone failed, falling back to shallow clone",
			"owner", ref.Owner, "repo", ref.Repo, "error", err)
	case errors.Is(err, gitrepo.ErrCloneStalled):
		return false, newError(KindCloneTimeout, err)
	default:
		return false, newError(KindNotAccessible, err)
	}

	if rmErr := os.RemoveAll(dir); rmErr != nil {
		return false, fmt.Errorf("reset clone directory: %w", rmErr)
	}

	fallback := full
	fallback.Depth = e.cfg.ShallowDepth
	if err := gitrepo.Clone(ctx, fallback); err != nil {
		return false, newError(KindCloneTimeout, err)
	}
	return true, nil
}

func commitInfos(history []gitrepo.HistoryEntry) []models.CommitInfo {
	commits := make([]models.CommitInfo, 0, len(history))
	for _, h := range history {
		commits = append(commits, models.CommitInfo{
			Hash:         h.Hash,
			ShortHash:    h.ShortHash,
			Author:       h.Author,
			CommittedAt:  h.CommittedAt,
			Subject:      h.Subject,
			FilesChanged: h.FilesChanged,
			Insertions:   h.Insertions,
			Deletions:    h.Deletions,
		})
	}
	return commits
}

// diffSummaries keeps the highest-churn commits, preserving newest-first
// order within the selection.
func diffSummaries(history []gitrepo.HistoryEntry, limit int) []models.CommitDiff {
	idx := make([]int, len(history))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return history[idx[a]].Churn() > history[idx[b]].Churn()
	})
	if limit < len(idx) {
		idx = idx[:limit]
	}
	sort.Ints(idx)

	diffs := make([]models.CommitDiff, 0, len(idx))
	for _, i := range idx {
		h := history[i]
		changes := make([]models.FileChange, 0, len(h.Changes))
		for _, c := range h.Changes {
			changes = append(changes, models.FileChange{Path: c.Path, Type: models.ChangeType(c.Kind)})
		}
		diffs = append(diffs, models.CommitDiff{
			Hash:    h.Hash,
			Churn:   h.Churn(),
			Changes: changes,
		})
	}
	return diffs
}
