package models

import "time"

// Integrity flags attached to agent results. Not errors: they record
// anomalies and drive confidence penalties.
const (
	FlagFabricatedEvidence = "FABRICATED_EVIDENCE"
	FlagUniformScores      = "UNIFORM_SCORES"
	FlagUnusuallyHigh      = "UNUSUALLY_HIGH"
)

// Evidence is one grounded finding cited by an agent.
type Evidence struct {
	Finding        string   `json:"finding"`
	File           string   `json:"file,omitempty"`
	Line           int      `json:"line,omitempty"`
	Commit         string   `json:"commit,omitempty"`
	Severity       Severity `json:"severity,omitempty"`
	Category       string   `json:"category,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
	Verified       bool     `json:"verified"`
	Note           string   `json:"note,omitempty"`
}

// AgentResult is the validated output of one judge agent for one submission.
type AgentResult struct {
	SubID         string             `json:"sub_id"`
	HackID        string             `json:"hack_id"`
	Agent         AgentName          `json:"agent"`
	PromptVersion string             `json:"prompt_version"`
	ModelID       string             `json:"model_id"`
	Scores        map[string]float64 `json:"scores"`
	OverallScore  float64            `json:"overall_score"`
	Confidence    float64            `json:"confidence"`
	Evidence      []Evidence         `json:"evidence"`
	Summary       string             `json:"summary"`
	Strengths     []string           `json:"strengths"`
	Improvements  []string           `json:"improvements"`
	Flags         []string           `json:"flags,omitempty"`

	// ai_detection only.
	AIUsageEstimate    string `json:"ai_usage_estimate,omitempty"`
	DevelopmentPattern string `json:"development_pattern,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// HasFlag reports whether the result carries the named integrity flag.
func (r *AgentResult) HasFlag(flag string) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// CostRecord is the per-agent, per-submission token and dollar accounting.
// Immutable after write.
type CostRecord struct {
	SubID         string    `json:"sub_id"`
	HackID        string    `json:"hack_id"`
	Agent         AgentName `json:"agent"`
	ModelID       string    `json:"model_id"`
	InputTokens   int64     `json:"input_tokens"`
	OutputTokens  int64     `json:"output_tokens"`
	InputCostUSD  float64   `json:"input_cost_usd"`
	OutputCostUSD float64   `json:"output_cost_usd"`
	TotalCostUSD  float64   `json:"total_cost_usd"`
	LatencyMS     int64     `json:"latency_ms"`
	ServiceTier   string    `json:"service_tier,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// WeightedScore is one rubric dimension's contribution to the final score.
type WeightedScore struct {
	Raw      float64 `json:"raw"`
	Weight   float64 `json:"weight"`
	Weighted float64 `json:"weighted"`
	Note     string  `json:"note,omitempty"`
}

// SubmissionSummary is the aggregated scorecard of one submission.
type SubmissionSummary struct {
	SubID              string                   `json:"sub_id"`
	HackID             string                   `json:"hack_id"`
	TeamName           string                   `json:"team_name"`
	WeightedScores     map[string]WeightedScore `json:"weighted_scores"`
	OverallScore       float64                  `json:"overall_score"` // [0,100]
	AgentScores        map[AgentName]float64    `json:"agent_scores"`
	Confidence         float64                  `json:"confidence"` // min over agents
	Recommendation     Recommendation           `json:"recommendation"`
	Strengths          []string                 `json:"strengths"`
	Weaknesses         []string                 `json:"weaknesses"`
	TotalCostUSD       float64                  `json:"total_cost_usd"`
	AnalysisDurationMS int64                    `json:"analysis_duration_ms"`
	CreatedAt          time.Time                `json:"created_at"`
}

// HackathonCostSummary carries running cost aggregates over a hackathon.
// Workers merge into it additively; it may lag the per-submission records.
type HackathonCostSummary struct {
	HackID               string                `json:"hack_id"`
	TotalCostUSD         float64               `json:"total_cost_usd"`
	TotalInputTokens     int64                 `json:"total_input_tokens"`
	TotalOutputTokens    int64                 `json:"total_output_tokens"`
	CostByAgent          map[AgentName]float64 `json:"cost_by_agent"`
	CostByModel          map[string]float64    `json:"cost_by_model"`
	SubmissionsAnalyzed  int                   `json:"submissions_analyzed"`
	AvgCostPerSubmission float64               `json:"avg_cost_per_submission"`
	BudgetUtilization    float64               `json:"budget_utilization"` // 0 when no budget set
	UpdatedAt            time.Time             `json:"updated_at"`
}

// AnalysisJob is one orchestrator invocation over a submission set.
// Terminal jobs expire after 30 days via the store TTL attribute.
type AnalysisJob struct {
	JobID          string     `json:"job_id"`
	HackID         string     `json:"hack_id"`
	Status         JobStatus  `json:"status"`
	Total          int        `json:"total"`
	Completed      int        `json:"completed"`
	Failed         int        `json:"failed"`
	EstimatedCost  float64    `json:"estimated_cost_usd"`
	CurrentCostUSD float64    `json:"current_cost_usd"`
	IdempotencyKey string     `json:"idempotency_key,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ErrorLog       []string   `json:"error_log,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
