package cost

import (
	"context"
	"fmt"
	"math"

	"github.com/vibejudge/vibejudge/pkg/config"
	"github.com/vibejudge/vibejudge/pkg/models"
	"github.com/vibejudge/vibejudge/pkg/store"
)

// Assumed token volumes for one agent invocation when no history exists.
// Repo prompts dominate input; judges write compact JSON.
const (
	assumedInputTokens  = 30_000
	assumedOutputTokens = 1_500
)

// Band multipliers around the expected cost. HighUSD feeds the budget gate.
const (
	bandLow  = 0.7
	bandHigh = 1.5
)

// perSubmissionMinutes is the planning figure for one submission end to end
// (clone, four agents, persistence).
const perSubmissionMinutes = 3

// Estimate is the cost projection for one analysis run.
type Estimate struct {
	PerSubmissionUSD float64 `json:"per_submission_usd"`
	ExpectedUSD      float64 `json:"expected_usd"`
	LowUSD           float64 `json:"low_usd"`
	HighUSD          float64 `json:"high_usd"`
	DurationMinutes  int     `json:"duration_minutes"`
}

// Estimator predicts job cost. It prefers per-(agent, model) token means
// from the hackathon's prior cost records and falls back to rate-table
// arithmetic at assumed volumes.
type Estimator struct {
	cfg *config.Config
	st  store.Store
}

// NewEstimator creates an estimator over the given store.
func NewEstimator(cfg *config.Config, st store.Store) *Estimator {
	return &Estimator{cfg: cfg, st: st}
}

// EstimateJob projects the cost of analysing n submissions of the hackathon.
func (e *Estimator) EstimateJob(ctx context.Context, hack *models.Hackathon, n int) (Estimate, error) {
	perSub, err := e.historicalPerSubmission(ctx, hack)
	if err != nil {
		return Estimate{}, err
	}
	if perSub == 0 {
		perSub = e.defaultPerSubmission(hack)
	}

	expected := perSub * float64(n)
	workers := e.cfg.Orchestrator.MaxConcurrentSubmissions
	waves := int(math.Ceil(float64(n) / float64(workers)))
	minutes := waves * perSubmissionMinutes
	if n > 0 && minutes == 0 {
		minutes = perSubmissionMinutes
	}

	return Estimate{
		PerSubmissionUSD: perSub,
		ExpectedUSD:      expected,
		LowUSD:           expected * bandLow,
		HighUSD:          expected * bandHigh,
		DurationMinutes:  minutes,
	}, nil
}

// historicalPerSubmission prices one submission from per-(agent, model)
// token means over the hackathon's prior cost records. Enabled agents with
// no history for their configured model use the assumed volumes. Zero means
// no usable history at all.
func (e *Estimator) historicalPerSubmission(ctx context.Context, hack *models.Hackathon) (float64, error) {
	subs, err := e.st.Query(ctx, store.HackPK(hack.HackID), store.PrefixSub)
	if err != nil {
		return 0, fmt.Errorf("query submissions for estimate: %w", err)
	}

	type tokenKey struct {
		agent models.AgentName
		model string
	}
	type tokenSum struct {
		in, out, calls int64
	}
	sums := make(map[tokenKey]*tokenSum)
	for _, item := range subs {
		var sub models.Submission
		if err := item.Unmarshal(&sub); err != nil {
			continue
		}
		recs, err := e.st.Query(ctx, store.SubPK(sub.SubID), store.PrefixCost)
		if err != nil {
			return 0, fmt.Errorf("query cost records for estimate: %w", err)
		}
		for _, ri := range recs {
			var rec models.CostRecord
			if err := ri.Unmarshal(&rec); err != nil {
				continue
			}
			k := tokenKey{rec.Agent, rec.ModelID}
			s := sums[k]
			if s == nil {
				s = &tokenSum{}
				sums[k] = s
			}
			s.in += rec.InputTokens
			s.out += rec.OutputTokens
			s.calls++
		}
	}
	if len(sums) == 0 {
		return 0, nil
	}

	var total float64
	for _, agent := range hack.AgentsEnabled {
		agentCfg := e.cfg.Agent(string(agent))
		modelCfg, ok := e.cfg.Model(agentCfg.ModelID)
		if !ok {
			continue
		}
		in, out := float64(assumedInputTokens), float64(assumedOutputTokens)
		if s := sums[tokenKey{agent, agentCfg.ModelID}]; s != nil && s.calls > 0 {
			in = float64(s.in) / float64(s.calls)
			out = float64(s.out) / float64(s.calls)
		}
		total += in*modelCfg.InputRate + out*modelCfg.OutputRate
	}
	return total, nil
}

// defaultPerSubmission prices one submission from the rate table: one call
// per enabled agent at the assumed token volumes.
func (e *Estimator) defaultPerSubmission(hack *models.Hackathon) float64 {
	var total float64
	for _, agent := range hack.AgentsEnabled {
		agentCfg := e.cfg.Agent(string(agent))
		modelCfg, ok := e.cfg.Model(agentCfg.ModelID)
		if !ok {
			continue
		}
		total += assumedInputTokens*modelCfg.InputRate + assumedOutputTokens*modelCfg.OutputRate
	}
	return total
}
