package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibejudge/vibejudge/pkg/agent"
	"github.com/vibejudge/vibejudge/pkg/config"
	"github.com/vibejudge/vibejudge/pkg/models"
	"github.com/vibejudge/vibejudge/pkg/orchestrator"
	"github.com/vibejudge/vibejudge/pkg/services"
	"github.com/vibejudge/vibejudge/pkg/store"
)

type fakeExtractor struct{}

func (fakeExtractor) Extract(ctx context.Context, repoURL, subID string) (*models.RepoContext, error) {
	return &models.RepoContext{Owner: "acme", Repo: subID}, nil
}

type fakeRuntime struct{ score float64 }

func (f fakeRuntime) Evaluate(ctx context.Context, name models.AgentName, rc *models.RepoContext, mode models.AIPolicyMode, subID, hackID string) (*agent.Evaluation, error) {
	return &agent.Evaluation{
		Result: &models.AgentResult{
			SubID: subID, HackID: hackID, Agent: name,
			OverallScore: f.score, Confidence: 0.9,
		},
		Cost: &models.CostRecord{
			SubID: subID, HackID: hackID, Agent: name,
			ModelID: config.DefaultModelID, TotalCostUSD: 0.01,
		},
	}, nil
}

type testAPI struct {
	t      *testing.T
	router *gin.Engine
	apiKey string
	orgID  string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := store.NewMemory()
	logger := slog.Default()
	cfg := config.Default()
	cfg.Orchestrator.SubmissionDeadline = 5 * time.Second

	organizers := services.NewOrganizerService(mem, logger)
	hackathons := services.NewHackathonService(mem, logger)
	submissions := services.NewSubmissionService(mem, cfg.Extractor.AllowedHosts, logger)
	orch := orchestrator.New(cfg, mem, fakeExtractor{}, fakeRuntime{score: 7.5}, logger)

	srv := NewServer(organizers, hackathons, submissions, orch, mem, logger)
	api := &testAPI{t: t, router: srv.Router()}

	resp := api.do(http.MethodPost, "/api/v1/organizers", map[string]any{
		"email": "judge@example.com",
		"tier":  "premium",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.Code)
	var created struct {
		OrgID  string `json:"org_id"`
		APIKey string `json:"api_key"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	api.apiKey = created.APIKey
	api.orgID = created.OrgID
	return api
}

func (a *testAPI) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) createHackathon() string {
	a.t.Helper()
	resp := a.do(http.MethodPost, "/api/v1/hackathons", map[string]any{
		"name": "spring hack",
		"rubric": map[string]any{
			"dimensions": []map[string]any{
				{"name": "code_quality", "weight": 0.5, "agent": "bug_hunter"},
				{"name": "innovation", "weight": 0.5, "agent": "innovation"},
			},
		},
		"agents_enabled": []string{"bug_hunter", "innovation"},
		"ai_policy_mode": "full_vibe",
	}, nil)
	require.Equal(a.t, http.StatusCreated, resp.Code, resp.Body.String())
	var hack models.Hackathon
	require.NoError(a.t, json.Unmarshal(resp.Body.Bytes(), &hack))
	return hack.HackID
}

func (a *testAPI) createSubmission(hackID, team, repo string) string {
	a.t.Helper()
	resp := a.do(http.MethodPost, "/api/v1/hackathons/"+hackID+"/submissions", map[string]any{
		"team_name": team,
		"repo_url":  repo,
	}, nil)
	require.Equal(a.t, http.StatusCreated, resp.Code, resp.Body.String())
	var sub models.Submission
	require.NoError(a.t, json.Unmarshal(resp.Body.Bytes(), &sub))
	return sub.SubID
}

func TestAuthRequired(t *testing.T) {
	api := newTestAPI(t)

	key := api.apiKey
	api.apiKey = ""
	resp := api.do(http.MethodGet, "/api/v1/hackathons", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	api.apiKey = "vjk_org_bogus_deadbeef"
	resp = api.do(http.MethodGet, "/api/v1/hackathons", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	api.apiKey = key
	resp = api.do(http.MethodGet, "/api/v1/hackathons", nil, nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestHackathonEndpoints(t *testing.T) {
	api := newTestAPI(t)
	hackID := api.createHackathon()

	resp := api.do(http.MethodGet, "/api/v1/hackathons/"+hackID, nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var hack models.Hackathon
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &hack))
	assert.Equal(t, models.HackathonDraft, hack.Status)

	resp = api.do(http.MethodPost, "/api/v1/hackathons/"+hackID+"/activate", nil, nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = api.do(http.MethodGet, "/api/v1/hackathons/hack_missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	// Invalid rubric weights.
	resp = api.do(http.MethodPost, "/api/v1/hackathons", map[string]any{
		"name": "bad",
		"rubric": map[string]any{
			"dimensions": []map[string]any{
				{"name": "code_quality", "weight": 0.9, "agent": "bug_hunter"},
			},
		},
		"agents_enabled": []string{"bug_hunter"},
		"ai_policy_mode": "full_vibe",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSubmissionEndpoints(t *testing.T) {
	api := newTestAPI(t)
	hackID := api.createHackathon()
	api.createSubmission(hackID, "team rocket", "https://github.com/acme/widget")

	resp := api.do(http.MethodPost, "/api/v1/hackathons/"+hackID+"/submissions", map[string]any{
		"team_name": "team rocket",
		"repo_url":  "https://github.com/acme/other",
	}, nil)
	assert.Equal(t, http.StatusConflict, resp.Code)

	resp = api.do(http.MethodPost, "/api/v1/hackathons/"+hackID+"/submissions", map[string]any{
		"team_name": "other team",
		"repo_url":  "git@github.com:acme/widget.git",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = api.do(http.MethodGet, "/api/v1/hackathons/"+hackID+"/submissions", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var list struct {
		Submissions []models.Submission `json:"submissions"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	assert.Len(t, list.Submissions, 1)
}

func TestAnalyzeFlow(t *testing.T) {
	api := newTestAPI(t)
	hackID := api.createHackathon()
	subID := api.createSubmission(hackID, "team rocket", "https://github.com/acme/widget")

	// Estimate is read-only.
	resp := api.do(http.MethodPost, "/api/v1/hackathons/"+hackID+"/estimate", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = api.do(http.MethodPost, "/api/v1/hackathons/"+hackID+"/analyze", nil,
		map[string]string{"Idempotency-Key": "key-1"})
	require.Equal(t, http.StatusAccepted, resp.Code, resp.Body.String())
	var trigger orchestrator.TriggerResult
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &trigger))
	require.NotEmpty(t, trigger.JobID)
	assert.Equal(t, 1, trigger.TotalSubmissions)

	jobPath := fmt.Sprintf("/api/v1/hackathons/%s/jobs/%s", hackID, trigger.JobID)
	var job models.AnalysisJob
	require.Eventually(t, func() bool {
		resp := api.do(http.MethodGet, jobPath, nil, nil)
		if resp.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(resp.Body.Bytes(), &job); err != nil {
			return false
		}
		return job.Status.Terminal()
	}, 10*time.Second, 25*time.Millisecond)
	assert.Equal(t, models.JobCompleted, job.Status)
	assert.Equal(t, 1, job.Completed)

	resp = api.do(http.MethodGet, "/api/v1/hackathons/"+hackID+"/leaderboard", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var board struct {
		Leaderboard []services.LeaderboardEntry `json:"leaderboard"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &board))
	require.Len(t, board.Leaderboard, 1)
	assert.Equal(t, 1, board.Leaderboard[0].Rank)
	require.NotNil(t, board.Leaderboard[0].OverallScore)
	assert.InDelta(t, 75.00, *board.Leaderboard[0].OverallScore, 1e-9)

	resp = api.do(http.MethodGet, "/api/v1/submissions/"+subID+"/scorecard", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var card services.Scorecard
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &card))
	require.NotNil(t, card.Summary)
	assert.Len(t, card.Results, 2)

	resp = api.do(http.MethodGet, "/api/v1/hackathons/"+hackID+"/costs", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var costs models.HackathonCostSummary
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &costs))
	assert.InDelta(t, 0.02, costs.TotalCostUSD, 1e-9)

	// Nothing pending anymore.
	resp = api.do(http.MethodPost, "/api/v1/hackathons/"+hackID+"/analyze", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAnalyzeBudgetExceeded(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(http.MethodPost, "/api/v1/hackathons", map[string]any{
		"name": "tight budget",
		"rubric": map[string]any{
			"dimensions": []map[string]any{
				{"name": "code_quality", "weight": 1.0, "agent": "bug_hunter"},
			},
		},
		"agents_enabled":   []string{"bug_hunter"},
		"ai_policy_mode":   "full_vibe",
		"budget_limit_usd": 0.001,
	}, nil)
	require.Equal(t, http.StatusCreated, resp.Code)
	var hack models.Hackathon
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &hack))
	api.createSubmission(hack.HackID, "team", "https://github.com/acme/widget")

	resp = api.do(http.MethodPost, "/api/v1/hackathons/"+hack.HackID+"/analyze", nil, nil)
	assert.Equal(t, http.StatusPaymentRequired, resp.Code)
}

func TestJobEndpointsNotFound(t *testing.T) {
	api := newTestAPI(t)
	hackID := api.createHackathon()

	resp := api.do(http.MethodGet, "/api/v1/hackathons/"+hackID+"/jobs/job_missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = api.do(http.MethodPost, "/api/v1/hackathons/"+hackID+"/jobs/job_missing/cancel", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestOwnershipForbidden(t *testing.T) {
	api := newTestAPI(t)
	hackID := api.createHackathon()

	// A second organizer cannot read the first one's hackathon.
	resp := api.do(http.MethodPost, "/api/v1/organizers", map[string]any{
		"email": "other@example.com",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.Code)
	var other struct {
		APIKey string `json:"api_key"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &other))

	api.apiKey = other.APIKey
	resp = api.do(http.MethodGet, "/api/v1/hackathons/"+hackID, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	api.apiKey = ""
	resp := api.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}
