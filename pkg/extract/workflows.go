package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vibejudge/vibejudge/pkg/models"
)

// WorkflowClient fetches CI run history from the git host. Implementations
// must treat the data as best-effort; extraction proceeds without it.
type WorkflowClient interface {
	ListRuns(ctx context.Context, ref RepoRef, limit int) ([]models.WorkflowRun, error)
}

// GitHubWorkflowClient reads workflow runs from the GitHub Actions API.
// Unauthenticated access is fine for public hackathon repositories; a token
// raises the rate limit.
type GitHubWorkflowClient struct {
	apiBase    string
	token      string
	httpClient *http.Client
}

// NewGitHubWorkflowClient creates a client against api.github.com. The token
// may be empty.
func NewGitHubWorkflowClient(token string, timeout time.Duration) *GitHubWorkflowClient {
	return &GitHubWorkflowClient{
		apiBase:    "https://api.github.com",
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type workflowRunsResponse struct {
	WorkflowRuns []struct {
		Name       string    `json:"name"`
		Status     string    `json:"status"`
		Conclusion string    `json:"conclusion"`
		HeadBranch string    `json:"head_branch"`
		CreatedAt  time.Time `json:"created_at"`
	} `json:"workflow_runs"`
}

// ListRuns implements WorkflowClient.
func (c *GitHubWorkflowClient) ListRuns(ctx context.Context, ref RepoRef, limit int) ([]models.WorkflowRun, error) {
	if ref.Host != "github.com" {
		return nil, nil
	}

	u := fmt.Sprintf("%s/repos/%s/%s/actions/runs?per_page=%d", c.apiBase, ref.Owner, ref.Repo, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create workflow runs request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch workflow runs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil, fmt.Errorf("fetch workflow runs: HTTP %d", resp.StatusCode)
	}

	var wire workflowRunsResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode workflow runs: %w", err)
	}

	runs := make([]models.WorkflowRun, 0, len(wire.WorkflowRuns))
	for _, r := range wire.WorkflowRuns {
		runs = append(runs, models.WorkflowRun{
			Name:       r.Name,
			Status:     r.Status,
			Conclusion: r.Conclusion,
			Branch:     r.HeadBranch,
			CreatedAt:  r.CreatedAt,
		})
	}
	return runs, nil
}

// readWorkflowDefs loads up to maxFiles GitHub Actions workflow files from
// the worktree, in path order.
func readWorkflowDefs(root string, maxFiles, maxChars int) []models.WorkflowDef {
	dir := filepath.Join(root, ".github", "workflows")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || (!strings.HasSuffix(name, ".yml") && !strings.HasSuffix(name, ".yaml")) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > maxFiles {
		names = names[:maxFiles]
	}

	var defs []models.WorkflowDef
	for _, name := range names {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		text := string(content)
		if len(text) > maxChars {
			text = text[:maxChars] + "\n... [truncated]\n"
		}
		defs = append(defs, models.WorkflowDef{
			Path:    ".github/workflows/" + name,
			Content: text,
		})
	}
	return defs
}

// fetchWorkflowRuns wraps the client with a non-fatal contract: on any
// error the runs are simply absent.
func fetchWorkflowRuns(ctx context.Context, logger *slog.Logger, client WorkflowClient, ref RepoRef, limit int, timeout time.Duration) []models.WorkflowRun {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	runs, err := client.ListRuns(ctx, ref, limit)
	if err != nil {
		logger.Warn("Workflow run fetch failed, continuing without CI data",
			"owner", ref.Owner, "repo", ref.Repo, "error", err)
		return nil
	}
	return runs
}
