package models

import "time"

// Submission is one team's repository inside a hackathon. Unique within the
// hackathon on team_name and on repo_url.
type Submission struct {
	SubID              string           `json:"sub_id"`
	HackID             string           `json:"hack_id"`
	TeamName           string           `json:"team_name"`
	RepoURL            string           `json:"repo_url"`
	Status             SubmissionStatus `json:"status"`
	OverallScore       *float64         `json:"overall_score,omitempty"`
	Rank               *int             `json:"rank,omitempty"`
	RepoMeta           *RepoMeta        `json:"repo_meta,omitempty"`
	TotalCostUSD       *float64         `json:"total_cost_usd,omitempty"`
	AnalysisDurationMS *int64           `json:"analysis_duration_ms,omitempty"`
	ErrorMessage       string           `json:"error_message,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// RepoMeta is the persisted summary of an extracted repository. The full
// RepoContext never outlives the analysis.
type RepoMeta struct {
	CommitCount          int                `json:"commit_count"`
	BranchCount          int                `json:"branch_count"`
	ContributorCount     int                `json:"contributor_count"`
	Languages            map[string]int     `json:"languages"` // language → source lines
	FileCount            int                `json:"file_count"`
	TotalLines           int                `json:"total_lines"`
	HasReadme            bool               `json:"has_readme"`
	HasTests             bool               `json:"has_tests"`
	HasCI                bool               `json:"has_ci"`
	HasDockerfile        bool               `json:"has_dockerfile"`
	FirstCommitAt        *time.Time         `json:"first_commit_at,omitempty"`
	LastCommitAt         *time.Time         `json:"last_commit_at,omitempty"`
	DevelopmentHours     float64            `json:"development_hours"`
	WorkflowRunCount     int                `json:"workflow_run_count"`
	WorkflowSuccessRate  float64            `json:"workflow_success_rate"`
}
