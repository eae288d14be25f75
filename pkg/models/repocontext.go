package models

import "time"

// RepoContext is the bounded, prioritised artifact of a cloned repository.
// It is built once by the extractor and read concurrently by the agents;
// nothing mutates it after construction. Only RepoMeta is ever persisted.
type RepoContext struct {
	Owner         string
	Repo          string
	DefaultBranch string
	Meta          RepoMeta
	FileTree      string   // depth-limited textual listing
	TreePaths     []string // every walked (non-ignored) file path; grounding set
	Readme        string
	SourceFiles   []SourceFile
	Commits       []CommitInfo
	DiffSummary   []CommitDiff
	WorkflowDefs  []WorkflowDef
	WorkflowRuns  []WorkflowRun
}

// SourceFile is one prioritised, possibly truncated file.
type SourceFile struct {
	Path      string
	Language  string
	Content   string
	Lines     int // line count of the original file
	SizeBytes int64
	Priority  int
	Truncated bool
}

// CommitInfo is one entry of the bounded commit history, newest first.
type CommitInfo struct {
	Hash         string
	ShortHash    string
	Author       string
	CommittedAt  time.Time
	Subject      string // first line of the message, ≤200 chars
	FilesChanged int
	Insertions   int
	Deletions    int
}

// ChangeType classifies a file change within a commit diff.
type ChangeType string

// Change types.
const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
	ChangeRenamed  ChangeType = "renamed"
)

// FileChange is one file's change within a commit.
type FileChange struct {
	Path string     `json:"path"`
	Type ChangeType `json:"type"`
}

// CommitDiff summarises the per-file changes of one high-churn commit.
// Diff text is never retained.
type CommitDiff struct {
	Hash    string       `json:"hash"`
	Churn   int          `json:"churn"` // insertions + deletions
	Changes []FileChange `json:"changes"`
}

// WorkflowDef is one CI workflow definition file.
type WorkflowDef struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// WorkflowRun is one CI run fetched from the git host.
type WorkflowRun struct {
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Conclusion string    `json:"conclusion"`
	Branch     string    `json:"branch"`
	CreatedAt  time.Time `json:"created_at"`
}

// HasFile reports whether path exists in the walked file tree. Used for
// evidence grounding together with the commit set.
func (rc *RepoContext) HasFile(path string) bool {
	for _, p := range rc.TreePaths {
		if p == path {
			return true
		}
	}
	return false
}

// HasCommit reports whether hash names a commit in the bounded history.
// Abbreviated hashes (≥7 chars) match by prefix.
func (rc *RepoContext) HasCommit(hash string) bool {
	if len(hash) < 7 {
		return false
	}
	for i := range rc.Commits {
		c := &rc.Commits[i]
		if c.Hash == hash || c.ShortHash == hash {
			return true
		}
		if len(hash) >= 7 && len(hash) < len(c.Hash) && c.Hash[:len(hash)] == hash {
			return true
		}
	}
	return false
}
