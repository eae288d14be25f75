package scoring

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibejudge/vibejudge/pkg/models"
	"github.com/vibejudge/vibejudge/pkg/store"
)

func seedSubmission(t *testing.T, mem *store.Memory, sub *models.Submission) {
	t.Helper()
	item, err := store.NewItem(store.HackPK(sub.HackID), store.SubSK(sub.SubID), sub)
	require.NoError(t, err)
	item.GSI1PK = store.GSI1Sub(sub.SubID)
	item.GSI1SK = store.HackSK(sub.HackID)
	require.NoError(t, mem.Put(context.Background(), item))
}

func TestPersistSubmissionFanOut(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	p := NewPersister(mem, slog.Default())

	sub := &models.Submission{
		SubID:    "sub_1",
		HackID:   "hack_1",
		TeamName: "team rocket",
		Status:   models.SubmissionAnalyzing,
	}
	seedSubmission(t, mem, sub)

	results := map[models.AgentName]*models.AgentResult{
		models.AgentBugHunter: {SubID: "sub_1", HackID: "hack_1", Agent: models.AgentBugHunter, OverallScore: 7.5, Confidence: 0.9},
	}
	costs := []models.CostRecord{
		{SubID: "sub_1", HackID: "hack_1", Agent: models.AgentBugHunter, ModelID: "model-x", TotalCostUSD: 0.04},
	}
	summary := &models.SubmissionSummary{
		SubID:              "sub_1",
		HackID:             "hack_1",
		OverallScore:       75.0,
		TotalCostUSD:       0.04,
		AnalysisDurationMS: 30000,
	}

	require.NoError(t, p.PersistSubmission(ctx, sub, summary, results, costs))

	// Step 1: agent result.
	item, err := mem.Get(ctx, store.SubPK("sub_1"), store.ScoreSK("bug_hunter"))
	require.NoError(t, err)
	var gotResult models.AgentResult
	require.NoError(t, item.Unmarshal(&gotResult))
	assert.Equal(t, 7.5, gotResult.OverallScore)

	// Step 2: cost record.
	_, err = mem.Get(ctx, store.SubPK("sub_1"), store.CostSK("bug_hunter"))
	require.NoError(t, err)

	// Step 3: summary.
	item, err = mem.Get(ctx, store.SubPK("sub_1"), store.SKSummary)
	require.NoError(t, err)
	var gotSummary models.SubmissionSummary
	require.NoError(t, item.Unmarshal(&gotSummary))
	assert.Equal(t, 75.0, gotSummary.OverallScore)

	// Step 4: submission row updated.
	item, err = mem.Get(ctx, store.HackPK("hack_1"), store.SubSK("sub_1"))
	require.NoError(t, err)
	var gotSub models.Submission
	require.NoError(t, item.Unmarshal(&gotSub))
	assert.Equal(t, models.SubmissionCompleted, gotSub.Status)
	require.NotNil(t, gotSub.OverallScore)
	assert.Equal(t, 75.0, *gotSub.OverallScore)
	require.NotNil(t, gotSub.AnalysisDurationMS)
	assert.Equal(t, int64(30000), *gotSub.AnalysisDurationMS)
	assert.Equal(t, store.GSI1Sub("sub_1"), item.GSI1PK, "submission GSI keys survive the update")
}

func TestPersistAgentResultOverwrites(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	p := NewPersister(mem, slog.Default())

	result := &models.AgentResult{SubID: "sub_1", Agent: models.AgentBugHunter, OverallScore: 6.0}
	require.NoError(t, p.putSubItem(ctx, "sub_1", store.ScoreSK("bug_hunter"), result))

	result.OverallScore = 8.0
	require.NoError(t, p.putSubItem(ctx, "sub_1", store.ScoreSK("bug_hunter"), result))

	items, err := mem.Query(ctx, store.SubPK("sub_1"), store.PrefixScore)
	require.NoError(t, err)
	require.Len(t, items, 1, "re-writes overwrite, no duplicate rows")
	var got models.AgentResult
	require.NoError(t, items[0].Unmarshal(&got))
	assert.Equal(t, 8.0, got.OverallScore)
}

func TestMergeCostSummary(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	p := NewPersister(mem, slog.Default())

	add := func(usd float64) func(*models.HackathonCostSummary) {
		return func(s *models.HackathonCostSummary) {
			s.TotalCostUSD += usd
			s.SubmissionsAnalyzed++
			if s.SubmissionsAnalyzed > 0 {
				s.AvgCostPerSubmission = s.TotalCostUSD / float64(s.SubmissionsAnalyzed)
			}
		}
	}

	require.NoError(t, p.MergeCostSummary(ctx, "hack_1", add(0.10)))
	require.NoError(t, p.MergeCostSummary(ctx, "hack_1", add(0.30)))

	item, err := mem.Get(ctx, store.HackPK("hack_1"), store.SKCostSummary)
	require.NoError(t, err)
	var summary models.HackathonCostSummary
	require.NoError(t, item.Unmarshal(&summary))
	assert.InDelta(t, 0.40, summary.TotalCostUSD, 1e-9)
	assert.Equal(t, 2, summary.SubmissionsAnalyzed)
	assert.InDelta(t, 0.20, summary.AvgCostPerSubmission, 1e-9)
}

func TestUpdateSubmissionStatus(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	p := NewPersister(mem, slog.Default())

	sub := &models.Submission{SubID: "sub_1", HackID: "hack_1", Status: models.SubmissionAnalyzing}
	seedSubmission(t, mem, sub)

	require.NoError(t, p.UpdateSubmissionStatus(ctx, "hack_1", "sub_1", models.SubmissionTimeout, "deadline exceeded"))

	item, err := mem.Get(ctx, store.HackPK("hack_1"), store.SubSK("sub_1"))
	require.NoError(t, err)
	var got models.Submission
	require.NoError(t, item.Unmarshal(&got))
	assert.Equal(t, models.SubmissionTimeout, got.Status)
	assert.Equal(t, "deadline exceeded", got.ErrorMessage)
}
