package agent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vibejudge/vibejudge/pkg/models"
)

// estimateTokens approximates token count from byte length. Four bytes per
// token is close enough for budget math on code and English prose.
func estimateTokens(s string) int {
	return len(s)/4 + 1
}

// historyShare is the slice of the repo budget reserved for commit history
// and workflow data.
const historyShare = 0.2

// buildUserMessage renders RepoContext into the judging prompt, budgeted
// against the model's context window. README and manifest/entry files are
// always included; remaining budget fills with source files in priority
// order, with a fifth held back for commit history and CI data.
func buildUserMessage(rc *models.RepoContext, systemPrompt string, contextWindow, maxOutputTokens int) string {
	repoBudget := contextWindow - estimateTokens(systemPrompt) - maxOutputTokens
	if repoBudget < 1000 {
		repoBudget = 1000
	}
	historyBudget := int(float64(repoBudget) * historyShare)
	fileBudget := repoBudget - historyBudget

	var b strings.Builder
	writeSection := func(header, content string) {
		if content == "" {
			return
		}
		b.WriteString("## ")
		b.WriteString(header)
		b.WriteString("\n\n")
		b.WriteString(content)
		b.WriteString("\n\n")
	}

	writeSection("Repository", overviewSection(rc))
	writeSection("File tree", rc.FileTree)

	if rc.Readme != "" {
		writeSection("README", rc.Readme)
		fileBudget -= estimateTokens(rc.Readme)
	}

	writeSection("Source files", sourceSection(rc, fileBudget))

	history := historySection(rc)
	diffs := diffSection(rc)
	workflows := workflowSection(rc)
	for estimateTokens(history)+estimateTokens(diffs)+estimateTokens(workflows) > historyBudget {
		// Trim commit history from the oldest end first; once exhausted,
		// drop the diff summary, then the workflow data.
		switch {
		case len(rc.Commits) > 0:
			trimmed := *rc
			trimmed.Commits = rc.Commits[:len(rc.Commits)*3/4]
			rc = &trimmed
			history = historySection(rc)
		case diffs != "":
			diffs = ""
		case workflows != "":
			workflows = ""
		}
		if len(rc.Commits) == 0 && diffs == "" && workflows == "" {
			break
		}
	}
	writeSection("Commit history", history)
	writeSection("High-churn commits", diffs)
	writeSection("CI workflows", workflows)

	return strings.TrimRight(b.String(), "\n")
}

func overviewSection(rc *models.RepoContext) string {
	meta := rc.Meta
	langs := make([]string, 0, len(meta.Languages))
	for lang := range meta.Languages {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool { return meta.Languages[langs[i]] > meta.Languages[langs[j]] })

	parts := []string{
		fmt.Sprintf("%s/%s, default branch %s", rc.Owner, rc.Repo, rc.DefaultBranch),
		fmt.Sprintf("%d commits by %d contributors over %.1f hours", meta.CommitCount, meta.ContributorCount, meta.DevelopmentHours),
		fmt.Sprintf("%d files, %d lines", meta.FileCount, meta.TotalLines),
	}
	if len(langs) > 0 {
		top := langs
		if len(top) > 5 {
			top = top[:5]
		}
		parts = append(parts, "languages: "+strings.Join(top, ", "))
	}
	if meta.WorkflowRunCount > 0 {
		parts = append(parts, fmt.Sprintf("%d CI runs, %.0f%% successful", meta.WorkflowRunCount, meta.WorkflowSuccessRate*100))
	}
	return joinNonEmpty(parts, "\n")
}

// sourceSection emits files in priority order until the budget runs out.
// Manifest and entry-point files are never dropped.
func sourceSection(rc *models.RepoContext, budget int) string {
	var b strings.Builder
	remaining := budget
	for _, f := range rc.SourceFiles {
		block := fmt.Sprintf("### %s\n```\n%s\n```\n", f.Path, f.Content)
		cost := estimateTokens(block)
		if cost > remaining && f.Priority < 90 {
			continue
		}
		b.WriteString(block)
		remaining -= cost
	}
	return strings.TrimRight(b.String(), "\n")
}

func historySection(rc *models.RepoContext) string {
	if len(rc.Commits) == 0 {
		return ""
	}
	var b strings.Builder
	for _, c := range rc.Commits {
		fmt.Fprintf(&b, "%s %s | %s | %s | +%d -%d (%d files)\n",
			c.ShortHash, c.CommittedAt.Format("2006-01-02 15:04"),
			c.Author, c.Subject, c.Insertions, c.Deletions, c.FilesChanged)
	}
	return strings.TrimRight(b.String(), "\n")
}

func diffSection(rc *models.RepoContext) string {
	if len(rc.DiffSummary) == 0 {
		return ""
	}
	var b strings.Builder
	for _, d := range rc.DiffSummary {
		hash := d.Hash
		if len(hash) > 7 {
			hash = hash[:7]
		}
		fmt.Fprintf(&b, "%s (churn %d):", hash, d.Churn)
		for _, ch := range d.Changes {
			fmt.Fprintf(&b, " %s:%s", ch.Type, ch.Path)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func workflowSection(rc *models.RepoContext) string {
	if len(rc.WorkflowDefs) == 0 && len(rc.WorkflowRuns) == 0 {
		return ""
	}
	var b strings.Builder
	for _, def := range rc.WorkflowDefs {
		fmt.Fprintf(&b, "### %s\n```yaml\n%s\n```\n", def.Path, def.Content)
	}
	for _, run := range rc.WorkflowRuns {
		fmt.Fprintf(&b, "run %s on %s: %s/%s at %s\n",
			run.Name, run.Branch, run.Status, run.Conclusion, run.CreatedAt.Format("2006-01-02 15:04"))
	}
	return strings.TrimRight(b.String(), "\n")
}
