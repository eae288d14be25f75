package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibejudge/vibejudge/pkg/agent"
	"github.com/vibejudge/vibejudge/pkg/config"
	"github.com/vibejudge/vibejudge/pkg/models"
	"github.com/vibejudge/vibejudge/pkg/store"
)

type stubExtractor struct {
	err error
}

func (s *stubExtractor) Extract(ctx context.Context, repoURL, subID string) (*models.RepoContext, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.RepoContext{Owner: "acme", Repo: subID}, nil
}

// stubRuntime returns a fixed score per agent. Agents in fail error out after
// producing a cost record, matching the real runtime's behaviour on invalid
// model output. A non-nil block gate holds every evaluation until released.
type stubRuntime struct {
	fail  map[models.AgentName]bool
	block chan struct{}
	score float64
}

func (s *stubRuntime) Evaluate(ctx context.Context, name models.AgentName, rc *models.RepoContext, mode models.AIPolicyMode, subID, hackID string) (*agent.Evaluation, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	rec := &models.CostRecord{
		SubID: subID, HackID: hackID, Agent: name,
		ModelID: config.DefaultModelID, TotalCostUSD: 0.01,
	}
	if s.fail[name] {
		return &agent.Evaluation{Cost: rec}, fmt.Errorf("agent returned invalid output: %w", agent.ErrInvalidOutput)
	}
	return &agent.Evaluation{
		Result: &models.AgentResult{
			SubID: subID, HackID: hackID, Agent: name,
			OverallScore: s.score, Confidence: 0.9,
		},
		Cost: rec,
	}, nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Orchestrator.SubmissionDeadline = 5 * time.Second
	cfg.Orchestrator.GracefulShutdownTimeout = 5 * time.Second
	return cfg
}

func seedHackathon(t *testing.T, mem *store.Memory, hack *models.Hackathon) {
	t.Helper()
	item, err := store.NewItem(store.HackPK(hack.HackID), store.SKMeta, hack)
	require.NoError(t, err)
	item.GSI1PK = store.GSI1Hack(hack.HackID)
	item.GSI1SK = store.SKMeta
	require.NoError(t, mem.Put(context.Background(), item))
}

func seedSub(t *testing.T, mem *store.Memory, hackID, subID string, status models.SubmissionStatus) {
	t.Helper()
	sub := &models.Submission{
		SubID: subID, HackID: hackID,
		TeamName: "team " + subID,
		RepoURL:  "https://github.com/acme/" + subID,
		Status:   status,
	}
	item, err := store.NewItem(store.HackPK(hackID), store.SubSK(subID), sub)
	require.NoError(t, err)
	item.GSI1PK = store.GSI1Sub(subID)
	item.GSI1SK = store.HackSK(hackID)
	require.NoError(t, mem.Put(context.Background(), item))
}

func twoAgentHack(hackID, orgID string) *models.Hackathon {
	return &models.Hackathon{
		HackID: hackID, OrgID: orgID,
		Name:   "test event",
		Status: models.HackathonAnalyzing,
		Rubric: models.Rubric{Dimensions: []models.RubricDimension{
			{Name: "code_quality", Weight: 0.6, Agent: models.AgentBugHunter},
			{Name: "innovation", Weight: 0.4, Agent: models.AgentInnovation},
		}},
		AgentsEnabled:  []models.AgentName{models.AgentBugHunter, models.AgentInnovation},
		AIPolicyMode:   models.PolicyAIAssisted,
		AnalysisStatus: models.AnalysisNotStarted,
	}
}

func waitJobTerminal(t *testing.T, o *Orchestrator, hackID, jobID string) *models.AnalysisJob {
	t.Helper()
	var job *models.AnalysisJob
	require.Eventually(t, func() bool {
		got, err := o.loadJob(context.Background(), hackID, jobID)
		if err != nil {
			return false
		}
		job = got
		return job.Status.Terminal()
	}, 10*time.Second, 20*time.Millisecond, "job never reached a terminal state")
	return job
}

func getHackathon(t *testing.T, mem *store.Memory, hackID string) *models.Hackathon {
	t.Helper()
	item, err := mem.Get(context.Background(), store.HackPK(hackID), store.SKMeta)
	require.NoError(t, err)
	var hack models.Hackathon
	require.NoError(t, item.Unmarshal(&hack))
	return &hack
}

func getSub(t *testing.T, mem *store.Memory, hackID, subID string) *models.Submission {
	t.Helper()
	item, err := mem.Get(context.Background(), store.HackPK(hackID), store.SubSK(subID))
	require.NoError(t, err)
	var sub models.Submission
	require.NoError(t, item.Unmarshal(&sub))
	return &sub
}

func TestTriggerAnalysisHappyPath(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	rt := &stubRuntime{score: 7.5}
	o := New(testConfig(), mem, &stubExtractor{}, rt, slog.Default())

	seedHackathon(t, mem, twoAgentHack("hack_1", "org_1"))
	seedSub(t, mem, "hack_1", "sub_1", models.SubmissionPending)
	seedSub(t, mem, "hack_1", "sub_2", models.SubmissionPending)

	res, err := o.TriggerAnalysis(ctx, "org_1", "hack_1", TriggerRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalSubmissions)
	assert.Greater(t, res.EstimatedCostUSD, 0.0)

	job := waitJobTerminal(t, o, "hack_1", res.JobID)
	assert.Equal(t, models.JobCompleted, job.Status)
	assert.Equal(t, 2, job.Completed)
	assert.Zero(t, job.Failed)
	// 2 submissions * 2 agents * $0.01.
	assert.InDelta(t, 0.04, job.CurrentCostUSD, 1e-9)
	require.NotNil(t, job.StartedAt)
	require.NotNil(t, job.CompletedAt)

	sub := getSub(t, mem, "hack_1", "sub_1")
	assert.Equal(t, models.SubmissionCompleted, sub.Status)
	require.NotNil(t, sub.OverallScore)
	assert.InDelta(t, 75.00, *sub.OverallScore, 1e-9)

	// Summary and per-agent artifacts landed in the submission partition.
	_, err = mem.Get(ctx, store.SubPK("sub_1"), store.SKSummary)
	require.NoError(t, err)
	_, err = mem.Get(ctx, store.SubPK("sub_1"), store.ScoreSK("bug_hunter"))
	require.NoError(t, err)
	_, err = mem.Get(ctx, store.SubPK("sub_1"), store.CostSK("innovation"))
	require.NoError(t, err)

	hack := getHackathon(t, mem, "hack_1")
	assert.Equal(t, models.AnalysisComplete, hack.AnalysisStatus)

	item, err := mem.Get(ctx, store.HackPK("hack_1"), store.SKCostSummary)
	require.NoError(t, err)
	var costSummary models.HackathonCostSummary
	require.NoError(t, item.Unmarshal(&costSummary))
	assert.InDelta(t, 0.04, costSummary.TotalCostUSD, 1e-9)
	assert.Equal(t, 2, costSummary.SubmissionsAnalyzed)
}

func TestTriggerAnalysisSingleAgent(t *testing.T) {
	mem := store.NewMemory()
	o := New(testConfig(), mem, &stubExtractor{}, &stubRuntime{score: 8.0}, slog.Default())

	hack := twoAgentHack("hack_1", "org_1")
	hack.Rubric = models.Rubric{Dimensions: []models.RubricDimension{
		{Name: "innovation", Weight: 1.0, Agent: models.AgentInnovation},
	}}
	hack.AgentsEnabled = []models.AgentName{models.AgentInnovation}
	seedHackathon(t, mem, hack)
	seedSub(t, mem, "hack_1", "sub_1", models.SubmissionPending)

	res, err := o.TriggerAnalysis(context.Background(), "org_1", "hack_1", TriggerRequest{})
	require.NoError(t, err)

	job := waitJobTerminal(t, o, "hack_1", res.JobID)
	assert.Equal(t, models.JobCompleted, job.Status)

	sub := getSub(t, mem, "hack_1", "sub_1")
	assert.Equal(t, models.SubmissionCompleted, sub.Status)
	require.NotNil(t, sub.OverallScore)
	assert.InDelta(t, 80.00, *sub.OverallScore, 1e-9)
}

func TestTriggerAnalysisAgentFailureBelowFloor(t *testing.T) {
	mem := store.NewMemory()
	rt := &stubRuntime{
		score: 7.0,
		fail:  map[models.AgentName]bool{models.AgentInnovation: true},
	}
	o := New(testConfig(), mem, &stubExtractor{}, rt, slog.Default())

	seedHackathon(t, mem, twoAgentHack("hack_1", "org_1"))
	seedSub(t, mem, "hack_1", "sub_1", models.SubmissionPending)

	res, err := o.TriggerAnalysis(context.Background(), "org_1", "hack_1", TriggerRequest{})
	require.NoError(t, err)

	// Two enabled agents with one failure: below the success floor, the
	// submission fails, but the failed agent's spend is still recorded.
	job := waitJobTerminal(t, o, "hack_1", res.JobID)
	assert.Equal(t, models.JobFailed, job.Status)
	assert.Equal(t, 1, job.Failed)
	assert.InDelta(t, 0.02, job.CurrentCostUSD, 1e-9)

	sub := getSub(t, mem, "hack_1", "sub_1")
	assert.Equal(t, models.SubmissionFailed, sub.Status)
	assert.Contains(t, sub.ErrorMessage, "1 of 2 agents succeeded")

	_, err = mem.Get(context.Background(), store.SubPK("sub_1"), store.CostSK("innovation"))
	require.NoError(t, err, "failed agent's cost record persists")

	// The hackathon summary absorbs the spend but the failed submission
	// does not count as analyzed.
	item, err := mem.Get(context.Background(), store.HackPK("hack_1"), store.SKCostSummary)
	require.NoError(t, err)
	var costSummary models.HackathonCostSummary
	require.NoError(t, item.Unmarshal(&costSummary))
	assert.InDelta(t, 0.02, costSummary.TotalCostUSD, 1e-9)
	assert.Zero(t, costSummary.SubmissionsAnalyzed)
	assert.Zero(t, costSummary.AvgCostPerSubmission)
}

func TestTriggerAnalysisThreeAgentsOneFails(t *testing.T) {
	mem := store.NewMemory()
	rt := &stubRuntime{
		score: 7.0,
		fail:  map[models.AgentName]bool{models.AgentPerformance: true},
	}
	o := New(testConfig(), mem, &stubExtractor{}, rt, slog.Default())

	hack := twoAgentHack("hack_1", "org_1")
	hack.Rubric = models.Rubric{Dimensions: []models.RubricDimension{
		{Name: "code_quality", Weight: 0.4, Agent: models.AgentBugHunter},
		{Name: "performance", Weight: 0.3, Agent: models.AgentPerformance},
		{Name: "innovation", Weight: 0.3, Agent: models.AgentInnovation},
	}}
	hack.AgentsEnabled = []models.AgentName{
		models.AgentBugHunter, models.AgentPerformance, models.AgentInnovation,
	}
	seedHackathon(t, mem, hack)
	seedSub(t, mem, "hack_1", "sub_1", models.SubmissionPending)

	res, err := o.TriggerAnalysis(context.Background(), "org_1", "hack_1", TriggerRequest{})
	require.NoError(t, err)

	job := waitJobTerminal(t, o, "hack_1", res.JobID)
	assert.Equal(t, models.JobCompleted, job.Status)

	// Two of three agents succeeded: the submission completes with the
	// missing dimension contributing zero. 7.0*0.4 + 0 + 7.0*0.3 = 4.9.
	sub := getSub(t, mem, "hack_1", "sub_1")
	assert.Equal(t, models.SubmissionCompleted, sub.Status)
	require.NotNil(t, sub.OverallScore)
	assert.InDelta(t, 49.00, *sub.OverallScore, 1e-9)
}

func TestTriggerAnalysisExtractFailure(t *testing.T) {
	mem := store.NewMemory()
	o := New(testConfig(), mem, &stubExtractor{err: errors.New("repository not accessible")}, &stubRuntime{score: 7.0}, slog.Default())

	seedHackathon(t, mem, twoAgentHack("hack_1", "org_1"))
	seedSub(t, mem, "hack_1", "sub_1", models.SubmissionPending)

	res, err := o.TriggerAnalysis(context.Background(), "org_1", "hack_1", TriggerRequest{})
	require.NoError(t, err)

	job := waitJobTerminal(t, o, "hack_1", res.JobID)
	assert.Equal(t, models.JobFailed, job.Status)
	require.Len(t, job.ErrorLog, 1)
	assert.Contains(t, job.ErrorLog[0], "sub_1")

	sub := getSub(t, mem, "hack_1", "sub_1")
	assert.Equal(t, models.SubmissionFailed, sub.Status)
	assert.Contains(t, sub.ErrorMessage, "not accessible")

	hack := getHackathon(t, mem, "hack_1")
	assert.Equal(t, models.AnalysisFailed, hack.AnalysisStatus)
}

func TestTriggerAnalysisBudgetExceeded(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	o := New(testConfig(), mem, &stubExtractor{}, &stubRuntime{score: 7.0}, slog.Default())

	limit := 0.10
	hack := twoAgentHack("hack_1", "org_1")
	hack.BudgetLimitUSD = &limit
	seedHackathon(t, mem, hack)
	seedSub(t, mem, "hack_1", "sub_1", models.SubmissionPending)

	spent := models.HackathonCostSummary{HackID: "hack_1", TotalCostUSD: 0.09}
	item, err := store.NewItem(store.HackPK("hack_1"), store.SKCostSummary, &spent)
	require.NoError(t, err)
	require.NoError(t, mem.Put(ctx, item))

	_, err = o.TriggerAnalysis(ctx, "org_1", "hack_1", TriggerRequest{})
	require.ErrorIs(t, err, ErrBudgetExceeded)

	// Rejection leaves no trace: no job, gate untouched, submission pending.
	jobs, err := mem.Query(ctx, store.HackPK("hack_1"), store.PrefixJob)
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.Equal(t, models.AnalysisNotStarted, getHackathon(t, mem, "hack_1").AnalysisStatus)
	assert.Equal(t, models.SubmissionPending, getSub(t, mem, "hack_1", "sub_1").Status)
}

func TestTriggerAnalysisConcurrentExactlyOneWins(t *testing.T) {
	mem := store.NewMemory()
	rt := &stubRuntime{score: 7.0, block: make(chan struct{})}
	o := New(testConfig(), mem, &stubExtractor{}, rt, slog.Default())

	seedHackathon(t, mem, twoAgentHack("hack_1", "org_1"))
	seedSub(t, mem, "hack_1", "sub_1", models.SubmissionPending)

	const callers = 4
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			_, err := o.TriggerAnalysis(context.Background(), "org_1", "hack_1", TriggerRequest{})
			errs <- err
		}()
	}

	var wins, conflicts int
	for i := 0; i < callers; i++ {
		switch err := <-errs; {
		case err == nil:
			wins++
		// A loser that reads the submission list after the winner's runner
		// already picked it up sees no pending work instead of the gate.
		case errors.Is(err, ErrAnalysisInProgress), errors.Is(err, ErrNoPendingSubmissions):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, callers-1, conflicts)

	close(rt.block)
	require.NoError(t, o.Shutdown(context.Background()))
}

func TestTriggerAnalysisIdempotencyKey(t *testing.T) {
	mem := store.NewMemory()
	rt := &stubRuntime{score: 7.0, block: make(chan struct{})}
	o := New(testConfig(), mem, &stubExtractor{}, rt, slog.Default())

	seedHackathon(t, mem, twoAgentHack("hack_1", "org_1"))
	seedSub(t, mem, "hack_1", "sub_1", models.SubmissionPending)

	req := TriggerRequest{IdempotencyKey: "retry-key-1"}
	first, err := o.TriggerAnalysis(context.Background(), "org_1", "hack_1", req)
	require.NoError(t, err)

	// A retried call with the same key returns the running job instead of
	// tripping the in-progress gate.
	second, err := o.TriggerAnalysis(context.Background(), "org_1", "hack_1", req)
	require.NoError(t, err)
	assert.Equal(t, first.JobID, second.JobID)

	close(rt.block)
	require.NoError(t, o.Shutdown(context.Background()))
}

func TestCancelRunningJob(t *testing.T) {
	mem := store.NewMemory()
	rt := &stubRuntime{score: 7.0, block: make(chan struct{})}
	o := New(testConfig(), mem, &stubExtractor{}, rt, slog.Default())
	defer close(rt.block)

	seedHackathon(t, mem, twoAgentHack("hack_1", "org_1"))
	seedSub(t, mem, "hack_1", "sub_1", models.SubmissionPending)
	seedSub(t, mem, "hack_1", "sub_2", models.SubmissionPending)

	res, err := o.TriggerAnalysis(context.Background(), "org_1", "hack_1", TriggerRequest{})
	require.NoError(t, err)

	require.NoError(t, o.Cancel(context.Background(), "org_1", "hack_1", res.JobID))

	job := waitJobTerminal(t, o, "hack_1", res.JobID)
	assert.Equal(t, models.JobCancelled, job.Status)
	assert.Zero(t, job.Completed)

	assert.Equal(t, models.AnalysisFailed, getHackathon(t, mem, "hack_1").AnalysisStatus)

	err = o.Cancel(context.Background(), "org_1", "hack_1", res.JobID)
	assert.ErrorIs(t, err, ErrJobNotCancellable)
}

func TestTriggerAnalysisForceReanalysis(t *testing.T) {
	mem := store.NewMemory()
	o := New(testConfig(), mem, &stubExtractor{}, &stubRuntime{score: 6.0}, slog.Default())

	hack := twoAgentHack("hack_1", "org_1")
	hack.AnalysisStatus = models.AnalysisComplete
	seedHackathon(t, mem, hack)
	seedSub(t, mem, "hack_1", "sub_1", models.SubmissionCompleted)

	_, err := o.TriggerAnalysis(context.Background(), "org_1", "hack_1", TriggerRequest{})
	require.ErrorIs(t, err, ErrNoPendingSubmissions)

	res, err := o.TriggerAnalysis(context.Background(), "org_1", "hack_1", TriggerRequest{ForceReanalysis: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalSubmissions)

	job := waitJobTerminal(t, o, "hack_1", res.JobID)
	assert.Equal(t, models.JobCompleted, job.Status)
}

func TestTriggerAnalysisSubmissionFilter(t *testing.T) {
	mem := store.NewMemory()
	o := New(testConfig(), mem, &stubExtractor{}, &stubRuntime{score: 6.0}, slog.Default())

	seedHackathon(t, mem, twoAgentHack("hack_1", "org_1"))
	seedSub(t, mem, "hack_1", "sub_1", models.SubmissionPending)
	seedSub(t, mem, "hack_1", "sub_2", models.SubmissionPending)

	res, err := o.TriggerAnalysis(context.Background(), "org_1", "hack_1",
		TriggerRequest{SubmissionIDs: []string{"sub_2"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalSubmissions)

	waitJobTerminal(t, o, "hack_1", res.JobID)
	assert.Equal(t, models.SubmissionPending, getSub(t, mem, "hack_1", "sub_1").Status)
	assert.Equal(t, models.SubmissionCompleted, getSub(t, mem, "hack_1", "sub_2").Status)
}

func TestTriggerAnalysisOwnership(t *testing.T) {
	mem := store.NewMemory()
	o := New(testConfig(), mem, &stubExtractor{}, &stubRuntime{}, slog.Default())

	seedHackathon(t, mem, twoAgentHack("hack_1", "org_1"))

	_, err := o.TriggerAnalysis(context.Background(), "org_other", "hack_1", TriggerRequest{})
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = o.TriggerAnalysis(context.Background(), "org_1", "hack_missing", TriggerRequest{})
	assert.ErrorIs(t, err, ErrHackathonNotFound)
}

func TestEstimateCostIsReadOnly(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	o := New(testConfig(), mem, &stubExtractor{}, &stubRuntime{}, slog.Default())

	seedHackathon(t, mem, twoAgentHack("hack_1", "org_1"))
	seedSub(t, mem, "hack_1", "sub_1", models.SubmissionPending)

	estimate, n, err := o.EstimateCost(ctx, "org_1", "hack_1", TriggerRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Greater(t, estimate.ExpectedUSD, 0.0)
	assert.Less(t, estimate.LowUSD, estimate.HighUSD)

	jobs, err := mem.Query(ctx, store.HackPK("hack_1"), store.PrefixJob)
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.Equal(t, models.AnalysisNotStarted, getHackathon(t, mem, "hack_1").AnalysisStatus)
}

func TestListJobsNewestFirst(t *testing.T) {
	mem := store.NewMemory()
	o := New(testConfig(), mem, &stubExtractor{}, &stubRuntime{score: 6.0}, slog.Default())

	seedHackathon(t, mem, twoAgentHack("hack_1", "org_1"))
	seedSub(t, mem, "hack_1", "sub_1", models.SubmissionPending)

	first, err := o.TriggerAnalysis(context.Background(), "org_1", "hack_1", TriggerRequest{})
	require.NoError(t, err)
	waitJobTerminal(t, o, "hack_1", first.JobID)

	second, err := o.TriggerAnalysis(context.Background(), "org_1", "hack_1", TriggerRequest{ForceReanalysis: true})
	require.NoError(t, err)
	waitJobTerminal(t, o, "hack_1", second.JobID)

	jobs, err := o.ListJobs(context.Background(), "org_1", "hack_1")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, second.JobID, jobs[0].JobID)
	assert.Equal(t, first.JobID, jobs[1].JobID)
}

func TestGetJobNotFound(t *testing.T) {
	mem := store.NewMemory()
	o := New(testConfig(), mem, &stubExtractor{}, &stubRuntime{}, slog.Default())
	seedHackathon(t, mem, twoAgentHack("hack_1", "org_1"))

	_, err := o.GetJob(context.Background(), "org_1", "hack_1", "job_missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestRecoverOrphans(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	o := New(testConfig(), mem, &stubExtractor{}, &stubRuntime{}, slog.Default())

	hack := twoAgentHack("hack_1", "org_1")
	hack.AnalysisStatus = models.AnalysisInProgress
	seedHackathon(t, mem, hack)

	// A running job written by a process that no longer exists.
	now := time.Now().UTC()
	orphan := &models.AnalysisJob{
		JobID: "job_dead", HackID: "hack_1",
		Status: models.JobRunning, Total: 3, Completed: 1,
		StartedAt: &now, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, o.writeJob(ctx, orphan, true))

	require.NoError(t, o.RecoverOrphans(ctx))

	job, err := o.loadJob(ctx, "hack_1", "job_dead")
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, job.Status)
	require.NotNil(t, job.CompletedAt)
	require.Len(t, job.ErrorLog, 1)
	assert.Contains(t, job.ErrorLog[0], "orphaned")

	assert.Equal(t, models.AnalysisFailed, getHackathon(t, mem, "hack_1").AnalysisStatus)

	// A second pass finds nothing: the job is terminal and off the status index.
	require.NoError(t, o.RecoverOrphans(ctx))
	job, err = o.loadJob(ctx, "hack_1", "job_dead")
	require.NoError(t, err)
	require.Len(t, job.ErrorLog, 1)
}
