package gitrepo

import (
	"fmt"
	"strings"
	"time"

	git2go "github.com/libgit2/git2go/v34"
)

// ChangeKind classifies one file change within a commit.
type ChangeKind string

// Change kinds.
const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeRenamed  ChangeKind = "renamed"
)

// Change is a single file change.
type Change struct {
	Path string
	Kind ChangeKind
}

// HistoryEntry is one commit with first-parent diff stats.
type HistoryEntry struct {
	Hash         string
	ShortHash    string
	Author       string
	AuthorEmail  string
	CommittedAt  time.Time
	Subject      string
	FilesChanged int
	Insertions   int
	Deletions    int
	Changes      []Change
}

// Churn is the total line churn of the commit.
func (e *HistoryEntry) Churn() int { return e.Insertions + e.Deletions }

// RepoStats aggregates the full commit graph of one branch.
type RepoStats struct {
	CommitCount      int
	ContributorCount int
	FirstCommitAt    time.Time
	LastCommitAt     time.Time
}

// Stats walks the entire branch history without computing diffs.
func (r *Repository) Stats(branch string) (RepoStats, error) {
	walk, err := r.walkFrom(branch)
	if err != nil {
		return RepoStats{}, err
	}
	defer walk.Free()

	stats := RepoStats{}
	authors := map[string]bool{}

	err = walk.Iterate(func(c *git2go.Commit) bool {
		defer c.Free()
		stats.CommitCount++
		sig := c.Author()
		authors[strings.ToLower(sig.Email)] = true
		when := c.Committer().When
		if stats.FirstCommitAt.IsZero() || when.Before(stats.FirstCommitAt) {
			stats.FirstCommitAt = when
		}
		if when.After(stats.LastCommitAt) {
			stats.LastCommitAt = when
		}
		return true
	})
	if err != nil {
		return RepoStats{}, fmt.Errorf("walk history: %w", err)
	}
	stats.ContributorCount = len(authors)
	return stats, nil
}

// History returns up to limit commits from the branch tip, newest first,
// each with stats and per-file changes against the first parent (the empty
// tree for root commits).
func (r *Repository) History(branch string, limit int) ([]HistoryEntry, error) {
	walk, err := r.walkFrom(branch)
	if err != nil {
		return nil, err
	}
	defer walk.Free()

	var entries []HistoryEntry
	var walkErr error

	err = walk.Iterate(func(c *git2go.Commit) bool {
		defer c.Free()
		if len(entries) >= limit {
			return false
		}
		entry, diffErr := r.describeCommit(c)
		if diffErr != nil {
			walkErr = diffErr
			return false
		}
		entries = append(entries, entry)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("walk history: %w", err)
	}
	if walkErr != nil {
		return nil, walkErr
	}
	return entries, nil
}

func (r *Repository) walkFrom(branch string) (*git2go.RevWalk, error) {
	ref, err := r.repo.LookupBranch(branch, git2go.BranchLocal)
	if err != nil {
		return nil, fmt.Errorf("lookup branch %s: %w", branch, err)
	}
	target := ref.Target()
	ref.Free()

	walk, err := r.repo.Walk()
	if err != nil {
		return nil, fmt.Errorf("create revwalk: %w", err)
	}
	if err := walk.Push(target); err != nil {
		walk.Free()
		return nil, fmt.Errorf("push branch tip: %w", err)
	}
	walk.Sorting(git2go.SortTime | git2go.SortTopological)
	return walk, nil
}

func (r *Repository) describeCommit(c *git2go.Commit) (HistoryEntry, error) {
	hash := c.Id().String()
	entry := HistoryEntry{
		Hash:        hash,
		ShortHash:   hash[:7],
		Author:      c.Author().Name,
		AuthorEmail: c.Author().Email,
		CommittedAt: c.Committer().When,
		Subject:     firstLine(c.Message(), 200),
	}

	newTree, err := c.Tree()
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("commit %s tree: %w", entry.ShortHash, err)
	}
	defer newTree.Free()

	var oldTree *git2go.Tree
	if c.ParentCount() > 0 {
		parent := c.Parent(0)
		defer parent.Free()
		oldTree, err = parent.Tree()
		if err != nil {
			return HistoryEntry{}, fmt.Errorf("parent of %s tree: %w", entry.ShortHash, err)
		}
		defer oldTree.Free()
	}

	opts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("diff options: %w", err)
	}
	diff, err := r.repo.DiffTreeToTree(oldTree, newTree, &opts)
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("diff %s: %w", entry.ShortHash, err)
	}
	defer func() { _ = diff.Free() }()

	// Rename detection keeps renames from showing up as delete+add pairs.
	findOpts, err := git2go.DefaultDiffFindOptions()
	if err == nil {
		_ = diff.FindSimilar(&findOpts)
	}

	stats, err := diff.Stats()
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("diff stats %s: %w", entry.ShortHash, err)
	}
	entry.FilesChanged = stats.FilesChanged()
	entry.Insertions = stats.Insertions()
	entry.Deletions = stats.Deletions()
	_ = stats.Free()

	n, err := diff.NumDeltas()
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("diff deltas %s: %w", entry.ShortHash, err)
	}
	for i := 0; i < n; i++ {
		delta, deltaErr := diff.Delta(i)
		if deltaErr != nil {
			continue
		}
		var kind ChangeKind
		path := delta.NewFile.Path
		switch delta.Status {
		case git2go.DeltaAdded:
			kind = ChangeAdded
		case git2go.DeltaDeleted:
			kind = ChangeDeleted
			path = delta.OldFile.Path
		case git2go.DeltaRenamed:
			kind = ChangeRenamed
		case git2go.DeltaModified, git2go.DeltaCopied:
			kind = ChangeModified
		default:
			continue
		}
		entry.Changes = append(entry.Changes, Change{Path: path, Kind: kind})
	}

	return entry, nil
}

func firstLine(message string, max int) string {
	line := message
	if idx := strings.IndexByte(message, '\n'); idx >= 0 {
		line = message[:idx]
	}
	line = strings.TrimSpace(line)
	if len(line) > max {
		line = line[:max]
	}
	return line
}
