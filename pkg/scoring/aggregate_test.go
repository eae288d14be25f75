package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibejudge/vibejudge/pkg/models"
)

func twoAgentHackathon() *models.Hackathon {
	return &models.Hackathon{
		HackID: "hack_1",
		Rubric: models.Rubric{Dimensions: []models.RubricDimension{
			{Name: "code_quality", Weight: 0.6, Agent: models.AgentBugHunter},
			{Name: "innovation", Weight: 0.4, Agent: models.AgentInnovation},
		}},
		AgentsEnabled: []models.AgentName{models.AgentBugHunter, models.AgentInnovation},
	}
}

func agentResult(name models.AgentName, overall, confidence float64) *models.AgentResult {
	return &models.AgentResult{Agent: name, OverallScore: overall, Confidence: confidence}
}

func TestAggregate(t *testing.T) {
	hack := twoAgentHackathon()
	sub := &models.Submission{SubID: "sub_1", HackID: "hack_1", TeamName: "team rocket"}
	results := map[models.AgentName]*models.AgentResult{
		models.AgentBugHunter:  agentResult(models.AgentBugHunter, 7.0, 0.9),
		models.AgentInnovation: agentResult(models.AgentInnovation, 8.5, 0.7),
	}

	summary := Aggregate(hack, sub, results, 0.12, 45000)

	// 7.0*0.6 + 8.5*0.4 = 7.6 → 76.00
	assert.InDelta(t, 76.00, summary.OverallScore, 1e-9)
	assert.InDelta(t, summary.OverallScore/10,
		summary.WeightedScores["code_quality"].Weighted+summary.WeightedScores["innovation"].Weighted, 0.01)
	assert.Equal(t, models.RecSolidSubmission, summary.Recommendation)
	assert.Equal(t, 0.7, summary.Confidence, "confidence is the minimum over agents")
	assert.Equal(t, 7.0, summary.AgentScores[models.AgentBugHunter])
	assert.InDelta(t, 0.12, summary.TotalCostUSD, 1e-9)
	assert.Equal(t, int64(45000), summary.AnalysisDurationMS)
	assert.Equal(t, "team rocket", summary.TeamName)
}

func TestAggregateMissingAgentContributesZero(t *testing.T) {
	hack := twoAgentHackathon()
	sub := &models.Submission{SubID: "sub_1", HackID: "hack_1"}
	results := map[models.AgentName]*models.AgentResult{
		models.AgentBugHunter: agentResult(models.AgentBugHunter, 7.0, 0.9),
	}

	summary := Aggregate(hack, sub, results, 0.05, 30000)

	// Only 7.0*0.6 = 4.2 → 42.00
	assert.InDelta(t, 42.00, summary.OverallScore, 1e-9)
	ws := summary.WeightedScores["innovation"]
	assert.Zero(t, ws.Raw)
	assert.Equal(t, "agent unavailable", ws.Note)
	assert.Equal(t, models.RecConcernsFlagged, summary.Recommendation)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		score float64
		want  models.Recommendation
	}{
		{9.2, models.RecStrongContender},
		{8.0, models.RecStrongContender},
		{7.9, models.RecSolidSubmission},
		{6.5, models.RecSolidSubmission},
		{6.4, models.RecNeedsImprovement},
		{4.5, models.RecNeedsImprovement},
		{4.4, models.RecConcernsFlagged},
		{0, models.RecConcernsFlagged},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.score), "score %v", tt.score)
	}
}

func TestTopItemsRanking(t *testing.T) {
	results := map[models.AgentName]*models.AgentResult{
		models.AgentBugHunter: {
			Agent:        models.AgentBugHunter,
			Improvements: []string{"Add input validation", "Pin dependency versions"},
			Evidence: []models.Evidence{
				{Finding: "SQL built by string concatenation", Severity: models.SeverityCritical,
					Recommendation: "Add input validation"},
			},
		},
		models.AgentInnovation: {
			Agent:        models.AgentInnovation,
			Improvements: []string{"Expand the README", "add input validation."},
		},
		models.AgentPerformance: {
			Agent:        models.AgentPerformance,
			Improvements: []string{"Batch database writes"},
		},
	}

	weaknesses := topItems(results, func(r *models.AgentResult) []string { return r.Improvements })
	require.Len(t, weaknesses, 3)

	// Critical-evidence item first, then agent priority order
	// (innovation > performance > bug_hunter).
	assert.Equal(t, "Add input validation", weaknesses[0])
	assert.Equal(t, "Expand the README", weaknesses[1])
	assert.Equal(t, "Batch database writes", weaknesses[2])
}

func TestTopItemsMixedSeverityEvidence(t *testing.T) {
	results := map[models.AgentName]*models.AgentResult{
		models.AgentBugHunter: {
			Agent: models.AgentBugHunter,
			Improvements: []string{
				"Consider renaming a variable",
				"Fix the SQL injection in login",
				"Document the retry behaviour",
			},
			Evidence: []models.Evidence{
				{Finding: "Consider renaming a variable", Severity: models.SeverityInfo},
				{Finding: "Fix the SQL injection in login", Severity: models.SeverityCritical},
				{Finding: "Document the retry behaviour", Severity: "blocker"}, // unrecognised grade
			},
		},
		models.AgentInnovation: {
			Agent:        models.AgentInnovation,
			Improvements: []string{"Add a demo video"}, // no backing evidence
		},
	}

	weaknesses := topItems(results, func(r *models.AgentResult) []string { return r.Improvements })
	require.Len(t, weaknesses, 3)

	// Critical beats info beats an unrecognised grade; the unbacked item
	// falls off the top three entirely.
	assert.Equal(t, "Fix the SQL injection in login", weaknesses[0])
	assert.Equal(t, "Consider renaming a variable", weaknesses[1])
	assert.Equal(t, "Document the retry behaviour", weaknesses[2])
	assert.NotContains(t, weaknesses, "Add a demo video")
}

func TestTopItemsDeduplicatesNormalisedText(t *testing.T) {
	results := map[models.AgentName]*models.AgentResult{
		models.AgentBugHunter:  {Agent: models.AgentBugHunter, Strengths: []string{"Good test coverage."}},
		models.AgentInnovation: {Agent: models.AgentInnovation, Strengths: []string{"  good TEST coverage"}},
	}

	strengths := topItems(results, func(r *models.AgentResult) []string { return r.Strengths })
	require.Len(t, strengths, 1)
}

func TestAggregateNoResults(t *testing.T) {
	summary := Aggregate(twoAgentHackathon(), &models.Submission{SubID: "sub_1"}, nil, 0, 0)
	assert.Zero(t, summary.OverallScore)
	assert.Zero(t, summary.Confidence)
	assert.Empty(t, summary.Strengths)
}
