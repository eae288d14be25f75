// Package models defines the persisted and in-memory entities of the judging
// platform. Entities are plain structs with JSON tags; all validation that
// spans fields lives on the owning type.
package models

import "fmt"

// OrganizerTier is the billing tier of an organizer.
type OrganizerTier string

// Organizer tiers.
const (
	TierFree       OrganizerTier = "free"
	TierPremium    OrganizerTier = "premium"
	TierEnterprise OrganizerTier = "enterprise"
)

// Valid reports whether the tier is a known value.
func (t OrganizerTier) Valid() bool {
	switch t {
	case TierFree, TierPremium, TierEnterprise:
		return true
	}
	return false
}

// HackathonStatus is the lifecycle state of a hackathon.
type HackathonStatus string

// Hackathon status machine: draft → configured → analyzing → completed → archived.
const (
	HackathonDraft      HackathonStatus = "draft"
	HackathonConfigured HackathonStatus = "configured"
	HackathonAnalyzing  HackathonStatus = "analyzing"
	HackathonCompleted  HackathonStatus = "completed"
	HackathonArchived   HackathonStatus = "archived"
)

// CanTransitionTo reports whether the status machine permits the move.
func (s HackathonStatus) CanTransitionTo(next HackathonStatus) bool {
	switch s {
	case HackathonDraft:
		return next == HackathonConfigured
	case HackathonConfigured:
		return next == HackathonAnalyzing
	case HackathonAnalyzing:
		return next == HackathonCompleted
	case HackathonCompleted:
		return next == HackathonArchived
	}
	return false
}

// Mutable reports whether rubric, enabled agents, and policy mode may still be
// changed. Once analysis has started the configuration is frozen.
func (s HackathonStatus) Mutable() bool {
	return s == HackathonDraft || s == HackathonConfigured
}

// AnalysisStatus is the batch-analysis gate on a hackathon record. The
// conditional transition to in_progress is the sole serialization point for
// concurrent triggers.
type AnalysisStatus string

// Analysis statuses.
const (
	AnalysisNotStarted AnalysisStatus = "not_started"
	AnalysisInProgress AnalysisStatus = "in_progress"
	AnalysisComplete   AnalysisStatus = "complete"
	AnalysisFailed     AnalysisStatus = "failed"
)

// Triggerable reports whether a new analysis job may claim the hackathon.
func (s AnalysisStatus) Triggerable() bool {
	return s == AnalysisNotStarted || s == AnalysisComplete || s == AnalysisFailed
}

// AIPolicyMode controls how the ai_detection agent's findings are interpreted.
type AIPolicyMode string

// Policy modes.
const (
	PolicyFullVibe    AIPolicyMode = "full_vibe"
	PolicyAIAssisted  AIPolicyMode = "ai_assisted"
	PolicyTraditional AIPolicyMode = "traditional"
	PolicyCustom      AIPolicyMode = "custom"
)

// Valid reports whether the mode is a known value.
func (m AIPolicyMode) Valid() bool {
	switch m {
	case PolicyFullVibe, PolicyAIAssisted, PolicyTraditional, PolicyCustom:
		return true
	}
	return false
}

// AgentName identifies one of the judge agents.
type AgentName string

// The four judge agents.
const (
	AgentBugHunter   AgentName = "bug_hunter"
	AgentPerformance AgentName = "performance"
	AgentInnovation  AgentName = "innovation"
	AgentAIDetection AgentName = "ai_detection"
)

// AllAgents lists every known agent in aggregation priority order
// (innovation > performance > bug_hunter > ai_detection).
func AllAgents() []AgentName {
	return []AgentName{AgentInnovation, AgentPerformance, AgentBugHunter, AgentAIDetection}
}

// Valid reports whether the agent name is known.
func (a AgentName) Valid() bool {
	switch a {
	case AgentBugHunter, AgentPerformance, AgentInnovation, AgentAIDetection:
		return true
	}
	return false
}

// Priority returns the aggregation priority of the agent; lower is stronger.
func (a AgentName) Priority() int {
	switch a {
	case AgentInnovation:
		return 0
	case AgentPerformance:
		return 1
	case AgentBugHunter:
		return 2
	case AgentAIDetection:
		return 3
	}
	return 4
}

// SubmissionStatus is the lifecycle state of a submission.
type SubmissionStatus string

// Submission statuses.
const (
	SubmissionPending   SubmissionStatus = "pending"
	SubmissionCloning   SubmissionStatus = "cloning"
	SubmissionAnalyzing SubmissionStatus = "analyzing"
	SubmissionCompleted SubmissionStatus = "completed"
	SubmissionFailed    SubmissionStatus = "failed"
	SubmissionTimeout   SubmissionStatus = "timeout"
)

// Terminal reports whether the status is final for the current job.
func (s SubmissionStatus) Terminal() bool {
	return s == SubmissionCompleted || s == SubmissionFailed || s == SubmissionTimeout
}

// JobStatus is the lifecycle state of an analysis job.
type JobStatus string

// Job statuses.
const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether the job has finished.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// Recommendation is the discrete classification of an aggregated score.
type Recommendation string

// Recommendation classes.
const (
	RecStrongContender  Recommendation = "strong_contender"
	RecSolidSubmission  Recommendation = "solid_submission"
	RecNeedsImprovement Recommendation = "needs_improvement"
	RecConcernsFlagged  Recommendation = "concerns_flagged"
)

// Severity grades an evidence finding.
type Severity string

// Severities, strongest first.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Rank returns a sortable weight for the severity; lower is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	case SeverityInfo:
		return 4
	}
	return 5
}

// ParseAgentName converts a string to an AgentName or errors.
func ParseAgentName(s string) (AgentName, error) {
	a := AgentName(s)
	if !a.Valid() {
		return "", fmt.Errorf("unknown agent %q", s)
	}
	return a, nil
}
