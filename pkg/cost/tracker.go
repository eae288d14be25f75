// Package cost tracks and predicts model spend: a mutex-serialised per-job
// tracker fed by agent workers, and an estimator for the pre-flight budget
// gate.
package cost

import (
	"sync"

	"github.com/vibejudge/vibejudge/pkg/models"
)

// Tracker accumulates cost records for one analysis job. Agent workers write
// concurrently; all mutation is serialised here.
type Tracker struct {
	mu      sync.Mutex
	records []models.CostRecord
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Add records one agent invocation's cost.
func (t *Tracker) Add(rec models.CostRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, rec)
}

// TotalUSD returns the running spend.
func (t *Tracker) TotalUSD() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var total float64
	for _, r := range t.records {
		total += r.TotalCostUSD
	}
	return total
}

// SubmissionTotalUSD returns the spend attributed to one submission.
func (t *Tracker) SubmissionTotalUSD(subID string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var total float64
	for _, r := range t.records {
		if r.SubID == subID {
			total += r.TotalCostUSD
		}
	}
	return total
}

// Records returns a copy of everything recorded so far.
func (t *Tracker) Records() []models.CostRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]models.CostRecord(nil), t.records...)
}

// MergeInto folds the tracker's records into a hackathon cost summary
// additively. The caller persists the merged summary with a conditional
// write and retries on conflict.
func (t *Tracker) MergeInto(summary *models.HackathonCostSummary, submissionsAnalyzed int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if summary.CostByAgent == nil {
		summary.CostByAgent = make(map[models.AgentName]float64)
	}
	if summary.CostByModel == nil {
		summary.CostByModel = make(map[string]float64)
	}

	for _, r := range t.records {
		summary.TotalCostUSD += r.TotalCostUSD
		summary.TotalInputTokens += r.InputTokens
		summary.TotalOutputTokens += r.OutputTokens
		summary.CostByAgent[r.Agent] += r.TotalCostUSD
		summary.CostByModel[r.ModelID] += r.TotalCostUSD
	}
	summary.SubmissionsAnalyzed += submissionsAnalyzed
	if summary.SubmissionsAnalyzed > 0 {
		summary.AvgCostPerSubmission = summary.TotalCostUSD / float64(summary.SubmissionsAnalyzed)
	}
}
