package models

import (
	"fmt"
	"math"
	"time"
)

// Organizer owns hackathons. The credential digest is a SHA-256 of the API
// key; the raw key is never stored.
type Organizer struct {
	OrgID            string        `json:"org_id"`
	Email            string        `json:"email"`
	Tier             OrganizerTier `json:"tier"`
	CredentialDigest string        `json:"credential_digest"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// RubricDimension maps one scored dimension to the agent that produces it.
type RubricDimension struct {
	Name        string    `json:"name"`
	Weight      float64   `json:"weight"`
	Agent       AgentName `json:"agent"`
	Description string    `json:"description,omitempty"`
}

// Rubric is the ordered, weighted dimension list of a hackathon.
type Rubric struct {
	MaxScore   float64           `json:"max_score"`
	Dimensions []RubricDimension `json:"dimensions"`
}

// WeightTolerance is the permitted deviation of the rubric weight sum from 1.0.
const WeightTolerance = 1e-3

// Validate checks the rubric invariants against the hackathon's enabled agents.
func (r *Rubric) Validate(enabled []AgentName) error {
	if len(r.Dimensions) == 0 {
		return fmt.Errorf("rubric has no dimensions")
	}

	enabledSet := make(map[AgentName]bool, len(enabled))
	for _, a := range enabled {
		enabledSet[a] = true
	}

	seen := make(map[string]bool, len(r.Dimensions))
	var sum float64
	for i, d := range r.Dimensions {
		if d.Name == "" {
			return fmt.Errorf("dimension %d has no name", i)
		}
		if seen[d.Name] {
			return fmt.Errorf("duplicate dimension %q", d.Name)
		}
		seen[d.Name] = true
		if d.Weight < 0 || d.Weight > 1 {
			return fmt.Errorf("dimension %q weight %v outside [0,1]", d.Name, d.Weight)
		}
		if !d.Agent.Valid() {
			return fmt.Errorf("dimension %q references unknown agent %q", d.Name, d.Agent)
		}
		if !enabledSet[d.Agent] {
			return fmt.Errorf("dimension %q references disabled agent %q", d.Name, d.Agent)
		}
		sum += d.Weight
	}

	if math.Abs(sum-1.0) > WeightTolerance {
		return fmt.Errorf("rubric weights sum to %v, want 1.0 ± %v", sum, WeightTolerance)
	}
	return nil
}

// Hackathon is an event owned by an organizer. Rubric, enabled agents and
// policy mode are frozen once the status leaves {draft, configured}.
type Hackathon struct {
	HackID          string          `json:"hack_id"`
	OrgID           string          `json:"org_id"`
	Name            string          `json:"name"`
	Status          HackathonStatus `json:"status"`
	Rubric          Rubric          `json:"rubric"`
	AgentsEnabled   []AgentName     `json:"agents_enabled"`
	AIPolicyMode    AIPolicyMode    `json:"ai_policy_mode"`
	BudgetLimitUSD  *float64        `json:"budget_limit_usd,omitempty"`
	SubmissionCount int             `json:"submission_count"`
	AnalysisStatus  AnalysisStatus  `json:"analysis_status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// AgentEnabled reports whether the agent participates in this hackathon.
func (h *Hackathon) AgentEnabled(a AgentName) bool {
	for _, e := range h.AgentsEnabled {
		if e == a {
			return true
		}
	}
	return false
}

// Validate checks the hackathon's cross-field invariants.
func (h *Hackathon) Validate() error {
	if h.Name == "" {
		return fmt.Errorf("hackathon has no name")
	}
	if len(h.AgentsEnabled) == 0 {
		return fmt.Errorf("no agents enabled")
	}
	for _, a := range h.AgentsEnabled {
		if !a.Valid() {
			return fmt.Errorf("unknown agent %q in agents_enabled", a)
		}
	}
	if !h.AIPolicyMode.Valid() {
		return fmt.Errorf("unknown ai_policy_mode %q", h.AIPolicyMode)
	}
	if h.BudgetLimitUSD != nil && *h.BudgetLimitUSD <= 0 {
		return fmt.Errorf("budget_limit_usd must be positive")
	}
	return h.Rubric.Validate(h.AgentsEnabled)
}
