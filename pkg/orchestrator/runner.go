package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vibejudge/vibejudge/pkg/cost"
	"github.com/vibejudge/vibejudge/pkg/extract"
	"github.com/vibejudge/vibejudge/pkg/metrics"
	"github.com/vibejudge/vibejudge/pkg/models"
	"github.com/vibejudge/vibejudge/pkg/scoring"
)

// outcome is one submission worker's report back to the runner, which is the
// single writer of job progress.
type outcome struct {
	subID   string
	ok      bool
	costUSD float64
	errMsg  string
}

// startRunner launches the job goroutine. The runner owns the job row; a
// cancel func is registered for cooperative cancellation.
func (o *Orchestrator) startRunner(job *models.AnalysisJob, hack *models.Hackathon, subs []*models.Submission) {
	jobCtx, cancel := context.WithCancel(o.baseCtx)
	o.mu.Lock()
	o.cancels[job.JobID] = cancel
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			o.mu.Lock()
			delete(o.cancels, job.JobID)
			o.mu.Unlock()
			cancel()
		}()
		o.runJob(jobCtx, job, hack, subs)
	}()
}

func (o *Orchestrator) runJob(ctx context.Context, job *models.AnalysisJob, hack *models.Hackathon, subs []*models.Submission) {
	logger := o.logger.With("job_id", job.JobID, "hack_id", hack.HackID)
	logger.Info("Analysis job starting", "submissions", len(subs))

	now := time.Now().UTC()
	job.Status = models.JobRunning
	job.StartedAt = &now
	if err := o.writeJob(context.WithoutCancel(ctx), job, false); err != nil {
		logger.Error("Failed to mark job running", "error", err)
	}

	results := make(chan outcome)
	sem := make(chan struct{}, o.cfg.Orchestrator.MaxConcurrentSubmissions)

	go func() {
		for _, sub := range subs {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				// Report unstarted submissions as cancelled so the runner's
				// accounting still sees every submission exactly once.
				results <- outcome{subID: sub.SubID, errMsg: "job cancelled"}
				continue
			}
			go func(sub *models.Submission) {
				defer func() { <-sem }()
				results <- o.analyzeSubmission(ctx, hack, sub)
			}(sub)
		}
	}()

	for i := 0; i < len(subs); i++ {
		out := <-results
		if out.ok {
			job.Completed++
		} else {
			job.Failed++
			if out.errMsg != "" {
				job.ErrorLog = append(job.ErrorLog, fmt.Sprintf("%s: %s", out.subID, out.errMsg))
			}
		}
		job.CurrentCostUSD += out.costUSD
		if err := o.writeJob(context.WithoutCancel(ctx), job, false); err != nil {
			logger.Error("Failed to persist job progress", "error", err)
		}
	}

	o.finishJob(context.WithoutCancel(ctx), job, hack, logger, ctx.Err() != nil)
}

// finishJob writes the terminal job state, releases the hackathon gate and
// records metrics. bg must survive cancellation.
func (o *Orchestrator) finishJob(bg context.Context, job *models.AnalysisJob, hack *models.Hackathon, logger *slog.Logger, cancelled bool) {
	switch {
	case cancelled:
		job.Status = models.JobCancelled
	case job.Completed == 0:
		job.Status = models.JobFailed
	default:
		job.Status = models.JobCompleted
	}
	now := time.Now().UTC()
	job.CompletedAt = &now
	if err := o.writeJob(bg, job, false); err != nil {
		logger.Error("Failed to persist terminal job", "error", err)
	}

	gate := models.AnalysisComplete
	if job.Completed == 0 {
		gate = models.AnalysisFailed
	}
	o.releaseAnalysisStatus(bg, hack.HackID, gate)

	metrics.JobsFinished.WithLabelValues(string(job.Status)).Inc()
	logger.Info("Analysis job finished",
		"status", job.Status,
		"completed", job.Completed,
		"failed", job.Failed,
		"cost_usd", job.CurrentCostUSD)
}

// analyzeSubmission runs one submission end to end under the per-submission
// deadline: extract, evaluate agents in parallel, aggregate, persist.
func (o *Orchestrator) analyzeSubmission(ctx context.Context, hack *models.Hackathon, sub *models.Submission) outcome {
	start := time.Now()
	logger := o.logger.With("hack_id", hack.HackID, "sub_id", sub.SubID)

	ctx, cancel := context.WithTimeout(ctx, o.cfg.Orchestrator.SubmissionDeadline)
	defer cancel()
	bg := context.WithoutCancel(ctx)

	tracker := cost.NewTracker()
	fail := func(status models.SubmissionStatus, msg string) outcome {
		if err := o.persister.UpdateSubmissionStatus(bg, hack.HackID, sub.SubID, status, msg); err != nil {
			logger.Error("Failed to mark submission "+string(status), "error", err)
		}
		metrics.SubmissionsAnalyzed.WithLabelValues(string(status)).Inc()
		return outcome{subID: sub.SubID, costUSD: tracker.TotalUSD(), errMsg: msg}
	}

	if err := o.persister.UpdateSubmissionStatus(ctx, hack.HackID, sub.SubID, models.SubmissionCloning, ""); err != nil {
		return fail(models.SubmissionFailed, fmt.Sprintf("mark cloning: %v", err))
	}

	rc, err := o.extractor.Extract(ctx, sub.RepoURL, sub.SubID)
	if err != nil {
		status := models.SubmissionFailed
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || extract.KindOf(err) == extract.KindCloneTimeout {
			status = models.SubmissionTimeout
		}
		return fail(status, fmt.Sprintf("extract: %v", err))
	}

	if err := o.persister.UpdateSubmissionStatus(ctx, hack.HackID, sub.SubID, models.SubmissionAnalyzing, ""); err != nil {
		return fail(models.SubmissionFailed, fmt.Sprintf("mark analyzing: %v", err))
	}

	results, costs := o.evaluateAgents(ctx, hack, sub, rc, tracker)

	// Costs are persisted even when the submission fails: tokens were spent.
	if err := o.persister.PersistCosts(bg, costs); err != nil {
		logger.Error("Failed to persist cost records", "error", err)
	}
	analyzed := false
	defer func() { o.mergeCosts(bg, hack, tracker, logger, analyzed) }()

	minSuccesses := 2
	if len(hack.AgentsEnabled) < 2 {
		minSuccesses = len(hack.AgentsEnabled)
	}
	if len(results) < minSuccesses {
		status := models.SubmissionFailed
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			status = models.SubmissionTimeout
		}
		return fail(status, fmt.Sprintf("only %d of %d agents succeeded", len(results), len(hack.AgentsEnabled)))
	}

	deadline := errors.Is(ctx.Err(), context.DeadlineExceeded)

	summary := scoring.Aggregate(hack, sub, results, tracker.SubmissionTotalUSD(sub.SubID), time.Since(start).Milliseconds())
	if err := o.persister.PersistSubmission(bg, sub, summary, results, nil); err != nil {
		return fail(models.SubmissionFailed, fmt.Sprintf("persist: %v", err))
	}
	analyzed = true

	// A partial summary under the deadline still persists, but the
	// submission reads timeout.
	if deadline {
		if err := o.persister.UpdateSubmissionStatus(bg, hack.HackID, sub.SubID, models.SubmissionTimeout, "submission deadline exceeded"); err != nil {
			logger.Error("Failed to mark submission timeout", "error", err)
		}
		metrics.SubmissionsAnalyzed.WithLabelValues(string(models.SubmissionTimeout)).Inc()
		return outcome{subID: sub.SubID, ok: true, costUSD: tracker.TotalUSD()}
	}

	metrics.SubmissionsAnalyzed.WithLabelValues(string(models.SubmissionCompleted)).Inc()
	logger.Info("Submission analyzed",
		"overall_score", summary.OverallScore,
		"recommendation", summary.Recommendation,
		"cost_usd", summary.TotalCostUSD,
		"duration", time.Since(start).Round(time.Millisecond))
	return outcome{subID: sub.SubID, ok: true, costUSD: tracker.TotalUSD()}
}

// evaluateAgents fans out over the enabled agents with full parallelism.
// Failed agents contribute cost but no result.
func (o *Orchestrator) evaluateAgents(ctx context.Context, hack *models.Hackathon, sub *models.Submission, rc *models.RepoContext, tracker *cost.Tracker) (map[models.AgentName]*models.AgentResult, []models.CostRecord) {
	type agentOutcome struct {
		name   models.AgentName
		result *models.AgentResult
		rec    *models.CostRecord
	}

	ch := make(chan agentOutcome, len(hack.AgentsEnabled))
	for _, name := range hack.AgentsEnabled {
		go func(name models.AgentName) {
			eval, err := o.runtime.Evaluate(ctx, name, rc, hack.AIPolicyMode, sub.SubID, hack.HackID)
			out := agentOutcome{name: name}
			if eval != nil {
				out.result = eval.Result
				out.rec = eval.Cost
			}
			if err != nil {
				o.logger.Warn("Agent evaluation failed",
					"agent", name, "sub_id", sub.SubID, "error", err)
				out.result = nil
			}
			ch <- out
		}(name)
	}

	results := make(map[models.AgentName]*models.AgentResult)
	var costs []models.CostRecord
	for range hack.AgentsEnabled {
		out := <-ch
		if out.rec != nil {
			tracker.Add(*out.rec)
			costs = append(costs, *out.rec)
		}
		if out.result != nil {
			results[out.name] = out.result
		}
	}
	return results, costs
}

// mergeCosts folds this submission's spend into the hackathon cost summary.
// Each worker merges independently; the store-level conditional write
// serialises them. Only submissions that produced a summary count towards
// SubmissionsAnalyzed; failed ones contribute spend alone.
func (o *Orchestrator) mergeCosts(ctx context.Context, hack *models.Hackathon, tracker *cost.Tracker, logger *slog.Logger, analyzed bool) {
	if len(tracker.Records()) == 0 {
		return
	}
	n := 0
	if analyzed {
		n = 1
	}
	err := o.persister.MergeCostSummary(ctx, hack.HackID, func(summary *models.HackathonCostSummary) {
		tracker.MergeInto(summary, n)
		if hack.BudgetLimitUSD != nil && *hack.BudgetLimitUSD > 0 {
			summary.BudgetUtilization = summary.TotalCostUSD / *hack.BudgetLimitUSD
		}
	})
	if err != nil {
		logger.Error("Failed to merge hackathon cost summary", "error", err)
	}
}
