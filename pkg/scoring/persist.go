package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vibejudge/vibejudge/pkg/models"
	"github.com/vibejudge/vibejudge/pkg/retry"
	"github.com/vibejudge/vibejudge/pkg/store"
)

// Persister writes analysis artifacts in the required order: agent results,
// cost records, summary, submission update, then the (lagging) hackathon
// cost summary. Steps retry independently on conflict.
type Persister struct {
	st     store.Store
	policy retry.Policy
	logger *slog.Logger
}

// NewPersister creates a persister over the store.
func NewPersister(st store.Store, logger *slog.Logger) *Persister {
	return &Persister{
		st:     st,
		policy: retry.Default(),
		logger: logger.With("component", "persister"),
	}
}

// PersistSubmission runs fan-out steps 1-4 for one completed submission.
// Either the summary and the submission update both land, or the submission
// is left untouched and the caller marks it failed.
func (p *Persister) PersistSubmission(ctx context.Context, sub *models.Submission, summary *models.SubmissionSummary, results map[models.AgentName]*models.AgentResult, costs []models.CostRecord) error {
	for _, result := range results {
		if err := p.putSubItem(ctx, result.SubID, store.ScoreSK(string(result.Agent)), result); err != nil {
			return fmt.Errorf("persist agent result %s: %w", result.Agent, err)
		}
	}

	if err := p.PersistCosts(ctx, costs); err != nil {
		return err
	}

	if err := p.putSubItem(ctx, summary.SubID, store.SKSummary, summary); err != nil {
		return fmt.Errorf("persist summary: %w", err)
	}

	err := p.policy.Do(ctx, func(ctx context.Context) error {
		return p.completeSubmission(ctx, sub, summary)
	})
	if err != nil {
		return fmt.Errorf("persist submission update: %w", err)
	}
	return nil
}

// PersistCosts writes cost records. Costs are also written for failed
// submissions; tokens were spent either way.
func (p *Persister) PersistCosts(ctx context.Context, costs []models.CostRecord) error {
	for _, cost := range costs {
		if err := p.putSubItem(ctx, cost.SubID, store.CostSK(string(cost.Agent)), &cost); err != nil {
			return fmt.Errorf("persist cost record %s: %w", cost.Agent, err)
		}
	}
	return nil
}

// MergeCostSummary applies an additive merge to the hackathon cost summary,
// creating it on first use. Conflicts with concurrent workers retry.
func (p *Persister) MergeCostSummary(ctx context.Context, hackID string, apply func(*models.HackathonCostSummary)) error {
	return p.policy.Do(ctx, func(ctx context.Context) error {
		item, err := p.st.Get(ctx, store.HackPK(hackID), store.SKCostSummary)
		if errors.Is(err, store.ErrNotFound) {
			summary := models.HackathonCostSummary{HackID: hackID, UpdatedAt: time.Now().UTC()}
			apply(&summary)
			fresh, mErr := store.NewItem(store.HackPK(hackID), store.SKCostSummary, &summary)
			if mErr != nil {
				return retry.MarkPermanent(mErr)
			}
			return p.st.PutIfAbsent(ctx, fresh)
		}
		if err != nil {
			return err
		}

		var summary models.HackathonCostSummary
		if err := item.Unmarshal(&summary); err != nil {
			return retry.MarkPermanent(err)
		}
		apply(&summary)
		summary.UpdatedAt = time.Now().UTC()

		updated, err := store.NewItem(item.PK, item.SK, &summary)
		if err != nil {
			return retry.MarkPermanent(err)
		}
		return p.st.UpdateVersioned(ctx, updated, item.Version)
	})
}

// UpdateSubmissionStatus moves a submission to a non-completed terminal or
// transient state, recording the error message when there is one.
func (p *Persister) UpdateSubmissionStatus(ctx context.Context, hackID, subID string, status models.SubmissionStatus, errMsg string) error {
	return p.policy.Do(ctx, func(ctx context.Context) error {
		return p.mutateSubmission(ctx, hackID, subID, func(sub *models.Submission) {
			sub.Status = status
			sub.ErrorMessage = errMsg
		})
	})
}

// completeSubmission applies fan-out step 4: score, cost, duration, status.
func (p *Persister) completeSubmission(ctx context.Context, sub *models.Submission, summary *models.SubmissionSummary) error {
	return p.mutateSubmission(ctx, sub.HackID, sub.SubID, func(s *models.Submission) {
		score := summary.OverallScore
		costUSD := summary.TotalCostUSD
		duration := summary.AnalysisDurationMS
		s.OverallScore = &score
		s.TotalCostUSD = &costUSD
		s.AnalysisDurationMS = &duration
		s.Status = models.SubmissionCompleted
		s.ErrorMessage = ""
	})
}

// mutateSubmission is a read-modify-write with optimistic concurrency; the
// caller's retry policy absorbs version conflicts.
func (p *Persister) mutateSubmission(ctx context.Context, hackID, subID string, mutate func(*models.Submission)) error {
	item, err := p.st.Get(ctx, store.HackPK(hackID), store.SubSK(subID))
	if err != nil {
		return err
	}

	var sub models.Submission
	if err := item.Unmarshal(&sub); err != nil {
		return retry.MarkPermanent(err)
	}
	mutate(&sub)
	sub.UpdatedAt = time.Now().UTC()

	updated, err := store.NewItem(item.PK, item.SK, &sub)
	if err != nil {
		return retry.MarkPermanent(err)
	}
	updated.GSI1PK = item.GSI1PK
	updated.GSI1SK = item.GSI1SK
	return p.st.UpdateVersioned(ctx, updated, item.Version)
}

// putSubItem upserts one artifact in the submission partition with retries.
func (p *Persister) putSubItem(ctx context.Context, subID, sk string, v any) error {
	item, err := store.NewItem(store.SubPK(subID), sk, v)
	if err != nil {
		return err
	}
	item.GSI1PK = store.GSI1Sub(subID)
	item.GSI1SK = sk
	return p.policy.Do(ctx, func(ctx context.Context) error {
		return p.st.Put(ctx, item)
	})
}
