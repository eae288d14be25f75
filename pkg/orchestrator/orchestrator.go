// Package orchestrator drives analysis jobs: the guarded trigger pre-flight,
// the bounded-parallelism job runner, per-submission pipelines and job
// bookkeeping.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vibejudge/vibejudge/pkg/agent"
	"github.com/vibejudge/vibejudge/pkg/config"
	"github.com/vibejudge/vibejudge/pkg/cost"
	"github.com/vibejudge/vibejudge/pkg/ids"
	"github.com/vibejudge/vibejudge/pkg/metrics"
	"github.com/vibejudge/vibejudge/pkg/models"
	"github.com/vibejudge/vibejudge/pkg/retry"
	"github.com/vibejudge/vibejudge/pkg/scoring"
	"github.com/vibejudge/vibejudge/pkg/store"
)

// Extractor is the repository extraction capability the orchestrator needs.
type Extractor interface {
	Extract(ctx context.Context, repoURL, subID string) (*models.RepoContext, error)
}

// Runtime is the agent evaluation capability.
type Runtime interface {
	Evaluate(ctx context.Context, name models.AgentName, rc *models.RepoContext, mode models.AIPolicyMode, subID, hackID string) (*agent.Evaluation, error)
}

// Orchestrator owns job scheduling for one process. Cross-process mutual
// exclusion rests on the conditional analysis_status transition in the store.
type Orchestrator struct {
	cfg       *config.Config
	st        store.Store
	extractor Extractor
	runtime   Runtime
	estimator *cost.Estimator
	persister *scoring.Persister
	logger    *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc // job_id → cancel

	wg       sync.WaitGroup
	baseCtx  context.Context
	baseStop context.CancelFunc
}

// New creates an orchestrator. Call Shutdown to drain in-flight jobs.
func New(cfg *config.Config, st store.Store, ex Extractor, rt Runtime, logger *slog.Logger) *Orchestrator {
	baseCtx, baseStop := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:       cfg,
		st:        st,
		extractor: ex,
		runtime:   rt,
		estimator: cost.NewEstimator(cfg, st),
		persister: scoring.NewPersister(st, logger),
		logger:    logger.With("component", "orchestrator"),
		cancels:   make(map[string]context.CancelFunc),
		baseCtx:   baseCtx,
		baseStop:  baseStop,
	}
}

// TriggerRequest is one analyze call.
type TriggerRequest struct {
	SubmissionIDs   []string
	ForceReanalysis bool
	IdempotencyKey  string
}

// TriggerResult is the accepted-job response.
type TriggerResult struct {
	JobID                    string  `json:"job_id"`
	TotalSubmissions         int     `json:"total_submissions"`
	EstimatedCostUSD         float64 `json:"estimated_cost_usd"`
	EstimatedDurationMinutes int     `json:"estimated_duration_minutes"`
}

// TriggerAnalysis runs the pre-flight and, when every gate passes, creates
// the job and starts the runner. The gates, in order: ownership, submission
// selection, cost estimate, budget, the conditional analysis_status
// transition, job creation.
func (o *Orchestrator) TriggerAnalysis(ctx context.Context, orgID, hackID string, req TriggerRequest) (*TriggerResult, error) {
	hackItem, hack, err := o.loadOwnedHackathon(ctx, orgID, hackID)
	if err != nil {
		return nil, err
	}

	// A retried call that already created a job resolves through its key
	// before any other gate; its submissions may no longer be pending.
	if req.IdempotencyKey != "" {
		if existing, err := o.findJobByKey(ctx, hackID, req.IdempotencyKey); err != nil {
			return nil, err
		} else if existing != nil {
			estimate, err := o.estimator.EstimateJob(ctx, hack, existing.Total)
			if err != nil {
				return nil, err
			}
			return &TriggerResult{
				JobID:                    existing.JobID,
				TotalSubmissions:         existing.Total,
				EstimatedCostUSD:         existing.EstimatedCost,
				EstimatedDurationMinutes: estimate.DurationMinutes,
			}, nil
		}
	}

	subs, err := o.selectSubmissions(ctx, hackID, req)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, ErrNoPendingSubmissions
	}

	estimate, err := o.estimator.EstimateJob(ctx, hack, len(subs))
	if err != nil {
		return nil, err
	}

	if err := o.checkBudget(ctx, hack, estimate.HighUSD); err != nil {
		return nil, err
	}

	if err := o.gateAnalysisStatus(ctx, hackItem, hack); err != nil {
		return nil, err
	}

	job, err := o.createJob(ctx, hack, subs, estimate, req.IdempotencyKey)
	if err != nil {
		// Roll the gate back so the hackathon is not stuck in_progress.
		o.releaseAnalysisStatus(context.WithoutCancel(ctx), hackID, models.AnalysisFailed)
		return nil, err
	}

	o.startRunner(job, hack, subs)
	metrics.JobsStarted.Inc()

	return &TriggerResult{
		JobID:                    job.JobID,
		TotalSubmissions:         len(subs),
		EstimatedCostUSD:         estimate.ExpectedUSD,
		EstimatedDurationMinutes: estimate.DurationMinutes,
	}, nil
}

// EstimateCost runs the same math as TriggerAnalysis without changing state.
func (o *Orchestrator) EstimateCost(ctx context.Context, orgID, hackID string, req TriggerRequest) (*cost.Estimate, int, error) {
	_, hack, err := o.loadOwnedHackathon(ctx, orgID, hackID)
	if err != nil {
		return nil, 0, err
	}
	subs, err := o.selectSubmissions(ctx, hackID, req)
	if err != nil {
		return nil, 0, err
	}
	estimate, err := o.estimator.EstimateJob(ctx, hack, len(subs))
	if err != nil {
		return nil, 0, err
	}
	return &estimate, len(subs), nil
}

// GetJob returns one job after an ownership check.
func (o *Orchestrator) GetJob(ctx context.Context, orgID, hackID, jobID string) (*models.AnalysisJob, error) {
	if _, _, err := o.loadOwnedHackathon(ctx, orgID, hackID); err != nil {
		return nil, err
	}
	return o.loadJob(ctx, hackID, jobID)
}

// ListJobs returns the hackathon's jobs, newest first.
func (o *Orchestrator) ListJobs(ctx context.Context, orgID, hackID string) ([]*models.AnalysisJob, error) {
	if _, _, err := o.loadOwnedHackathon(ctx, orgID, hackID); err != nil {
		return nil, err
	}
	items, err := o.st.Query(ctx, store.HackPK(hackID), store.PrefixJob)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	jobs := make([]*models.AnalysisJob, 0, len(items))
	for _, item := range items {
		var job models.AnalysisJob
		if err := item.Unmarshal(&job); err != nil {
			return nil, fmt.Errorf("decode job: %w", err)
		}
		jobs = append(jobs, &job)
	}
	// UUIDv7 job ids sort by creation time; newest first.
	for i, j := 0, len(jobs)-1; i < j; i, j = i+1, j-1 {
		jobs[i], jobs[j] = jobs[j], jobs[i]
	}
	return jobs, nil
}

// RecoverOrphans fails jobs left queued or running by a previous process.
// Their runners died with that process and nobody will finish them; each is
// marked failed and its hackathon's analysis gate released. Called once at
// startup, before the HTTP server accepts traffic.
func (o *Orchestrator) RecoverOrphans(ctx context.Context) error {
	for _, status := range []models.JobStatus{models.JobQueued, models.JobRunning} {
		items, err := o.st.QueryGSI2(ctx, store.GSI2JobStatus(string(status)), "")
		if err != nil {
			return fmt.Errorf("query %s jobs: %w", status, err)
		}
		for _, item := range items {
			var job models.AnalysisJob
			if err := item.Unmarshal(&job); err != nil {
				o.logger.Error("Skipping undecodable job row", "pk", item.PK, "sk", item.SK, "error", err)
				continue
			}
			now := time.Now().UTC()
			job.Status = models.JobFailed
			job.CompletedAt = &now
			job.ErrorLog = append(job.ErrorLog, "orphaned by process restart")
			if err := o.writeJob(ctx, &job, false); err != nil {
				return fmt.Errorf("fail orphaned job %s: %w", job.JobID, err)
			}
			o.releaseAnalysisStatus(ctx, job.HackID, models.AnalysisFailed)
			metrics.JobsFinished.WithLabelValues(string(models.JobFailed)).Inc()
			o.logger.Warn("Recovered orphaned job", "job_id", job.JobID, "hack_id", job.HackID, "was", status)
		}
	}
	return nil
}

// Cancel requests cooperative cancellation of a running job.
func (o *Orchestrator) Cancel(ctx context.Context, orgID, hackID, jobID string) error {
	if _, _, err := o.loadOwnedHackathon(ctx, orgID, hackID); err != nil {
		return err
	}
	job, err := o.loadJob(ctx, hackID, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return ErrJobNotCancellable
	}

	o.mu.Lock()
	cancel, ok := o.cancels[jobID]
	o.mu.Unlock()
	if !ok {
		return ErrJobNotCancellable
	}
	cancel()
	return nil
}

// Shutdown stops accepting work and drains in-flight jobs, bounded by the
// configured graceful shutdown timeout.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	timeout := o.cfg.Orchestrator.GracefulShutdownTimeout
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		o.baseStop()
		return fmt.Errorf("shutdown timed out after %s, jobs aborted", timeout)
	case <-ctx.Done():
		o.baseStop()
		return ctx.Err()
	}
}

func (o *Orchestrator) loadOwnedHackathon(ctx context.Context, orgID, hackID string) (*store.Item, *models.Hackathon, error) {
	ctx, cancel := o.storeCtx(ctx)
	defer cancel()

	item, err := o.st.Get(ctx, store.HackPK(hackID), store.SKMeta)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrHackathonNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load hackathon: %w", err)
	}

	var hack models.Hackathon
	if err := item.Unmarshal(&hack); err != nil {
		return nil, nil, fmt.Errorf("decode hackathon: %w", err)
	}
	if hack.OrgID != orgID {
		return nil, nil, ErrNotOwner
	}
	return item, &hack, nil
}

// selectSubmissions picks the analysis targets: pending submissions, plus
// terminal ones under force_reanalysis, optionally filtered to an explicit
// id set.
func (o *Orchestrator) selectSubmissions(ctx context.Context, hackID string, req TriggerRequest) ([]*models.Submission, error) {
	items, err := o.st.Query(ctx, store.HackPK(hackID), store.PrefixSub)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}

	var wanted map[string]bool
	if len(req.SubmissionIDs) > 0 {
		wanted = make(map[string]bool, len(req.SubmissionIDs))
		for _, id := range req.SubmissionIDs {
			wanted[id] = true
		}
	}

	var subs []*models.Submission
	for _, item := range items {
		var sub models.Submission
		if err := item.Unmarshal(&sub); err != nil {
			return nil, fmt.Errorf("decode submission: %w", err)
		}
		if wanted != nil && !wanted[sub.SubID] {
			continue
		}
		eligible := sub.Status == models.SubmissionPending ||
			(req.ForceReanalysis && sub.Status.Terminal())
		if eligible {
			s := sub
			subs = append(subs, &s)
		}
	}
	return subs, nil
}

// checkBudget enforces: current spend + estimate_high <= budget limit.
func (o *Orchestrator) checkBudget(ctx context.Context, hack *models.Hackathon, estimateHigh float64) error {
	if hack.BudgetLimitUSD == nil {
		return nil
	}

	var spend float64
	item, err := o.st.Get(ctx, store.HackPK(hack.HackID), store.SKCostSummary)
	if err == nil {
		var summary models.HackathonCostSummary
		if err := item.Unmarshal(&summary); err != nil {
			return fmt.Errorf("decode cost summary: %w", err)
		}
		spend = summary.TotalCostUSD
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("load cost summary: %w", err)
	}

	if spend+estimateHigh > *hack.BudgetLimitUSD {
		return fmt.Errorf("%w: spend %.4f + estimate %.4f > limit %.4f",
			ErrBudgetExceeded, spend, estimateHigh, *hack.BudgetLimitUSD)
	}
	return nil
}

// gateAnalysisStatus performs the conditional in_progress transition. A
// version conflict means another trigger won the race.
func (o *Orchestrator) gateAnalysisStatus(ctx context.Context, hackItem *store.Item, hack *models.Hackathon) error {
	if !hack.AnalysisStatus.Triggerable() {
		return ErrAnalysisInProgress
	}

	updated := *hack
	updated.AnalysisStatus = models.AnalysisInProgress
	updated.UpdatedAt = time.Now().UTC()

	item, err := store.NewItem(hackItem.PK, hackItem.SK, &updated)
	if err != nil {
		return fmt.Errorf("encode hackathon: %w", err)
	}
	item.GSI1PK = hackItem.GSI1PK
	item.GSI1SK = hackItem.GSI1SK

	err = o.st.UpdateVersioned(ctx, item, hackItem.Version)
	if errors.Is(err, store.ErrConditionFailed) {
		return ErrAnalysisInProgress
	}
	if err != nil {
		return fmt.Errorf("gate analysis status: %w", err)
	}
	return nil
}

// releaseAnalysisStatus moves the hackathon's analysis status to a terminal
// value, retrying on version conflicts.
func (o *Orchestrator) releaseAnalysisStatus(ctx context.Context, hackID string, status models.AnalysisStatus) {
	err := retry.Default().Do(ctx, func(ctx context.Context) error {
		item, err := o.st.Get(ctx, store.HackPK(hackID), store.SKMeta)
		if err != nil {
			return err
		}
		var hack models.Hackathon
		if err := item.Unmarshal(&hack); err != nil {
			return retry.MarkPermanent(err)
		}
		hack.AnalysisStatus = status
		hack.UpdatedAt = time.Now().UTC()

		updated, err := store.NewItem(item.PK, item.SK, &hack)
		if err != nil {
			return retry.MarkPermanent(err)
		}
		updated.GSI1PK = item.GSI1PK
		updated.GSI1SK = item.GSI1SK
		return o.st.UpdateVersioned(ctx, updated, item.Version)
	})
	if err != nil {
		o.logger.Error("Failed to release analysis status", "hack_id", hackID, "status", status, "error", err)
	}
}

func (o *Orchestrator) findJobByKey(ctx context.Context, hackID, key string) (*models.AnalysisJob, error) {
	items, err := o.st.Query(ctx, store.HackPK(hackID), store.PrefixJob)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	for _, item := range items {
		var job models.AnalysisJob
		if err := item.Unmarshal(&job); err != nil {
			continue
		}
		if job.IdempotencyKey == key && !job.Status.Terminal() {
			return &job, nil
		}
	}
	return nil, nil
}

func (o *Orchestrator) createJob(ctx context.Context, hack *models.Hackathon, subs []*models.Submission, estimate cost.Estimate, key string) (*models.AnalysisJob, error) {
	now := time.Now().UTC()
	job := &models.AnalysisJob{
		JobID:          ids.NewJobID(),
		HackID:         hack.HackID,
		Status:         models.JobQueued,
		Total:          len(subs),
		EstimatedCost:  estimate.ExpectedUSD,
		IdempotencyKey: key,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := o.writeJob(ctx, job, true); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

// writeJob persists the job row with its GSI2 status index keys. Terminal
// jobs carry the retention TTL.
func (o *Orchestrator) writeJob(ctx context.Context, job *models.AnalysisJob, fresh bool) error {
	job.UpdatedAt = time.Now().UTC()

	item, err := store.NewItem(store.HackPK(job.HackID), store.JobSK(job.JobID), job)
	if err != nil {
		return err
	}
	item.GSI2PK = store.GSI2JobStatus(string(job.Status))
	item.GSI2SK = store.GSI2JobSK(job.CreatedAt.Format(time.RFC3339Nano), job.JobID)
	if job.Status.Terminal() {
		expires := time.Now().UTC().Add(o.cfg.Orchestrator.JobRetention)
		item.ExpiresAt = &expires
	}

	ctx, cancel := o.storeCtx(ctx)
	defer cancel()
	if fresh {
		return o.st.PutIfAbsent(ctx, item)
	}
	return o.st.Put(ctx, item)
}

func (o *Orchestrator) loadJob(ctx context.Context, hackID, jobID string) (*models.AnalysisJob, error) {
	item, err := o.st.Get(ctx, store.HackPK(hackID), store.JobSK(jobID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	var job models.AnalysisJob
	if err := item.Unmarshal(&job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

func (o *Orchestrator) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.cfg.Orchestrator.StoreCallTimeout)
}
