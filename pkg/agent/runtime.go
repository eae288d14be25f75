package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vibejudge/vibejudge/pkg/config"
	"github.com/vibejudge/vibejudge/pkg/llm"
	"github.com/vibejudge/vibejudge/pkg/metrics"
	"github.com/vibejudge/vibejudge/pkg/models"
	"github.com/vibejudge/vibejudge/pkg/retry"
)

// ErrInvalidOutput marks an agent whose model output could not be parsed or
// validated after the corrective retry. The agent contributes no score.
var ErrInvalidOutput = errors.New("agent produced invalid output")

// Runtime executes judge agents against a RepoContext. One runtime is shared
// by all agents; per-agent behaviour comes from descriptors and config.
type Runtime struct {
	cfg    *config.Config
	client llm.ConverseClient
	logger *slog.Logger
}

// NewRuntime creates the shared agent runtime.
func NewRuntime(cfg *config.Config, client llm.ConverseClient, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		client: client,
		logger: logger.With("component", "agent_runtime"),
	}
}

// Evaluation bundles one agent's validated result with its cost accounting.
type Evaluation struct {
	Result *models.AgentResult
	Cost   *models.CostRecord
}

// Evaluate runs one agent over the repository and returns its validated
// result plus the cost record for every token spent, including failed and
// corrective attempts.
func (r *Runtime) Evaluate(ctx context.Context, name models.AgentName, rc *models.RepoContext, mode models.AIPolicyMode, subID, hackID string) (*Evaluation, error) {
	d, err := DescriptorFor(name)
	if err != nil {
		return nil, err
	}
	agentCfg := r.cfg.Agent(string(name))
	modelCfg, ok := r.cfg.Model(agentCfg.ModelID)
	if !ok {
		return nil, fmt.Errorf("agent %s: no rate table entry for model %s", name, agentCfg.ModelID)
	}

	system, err := SystemPrompt(name, mode)
	if err != nil {
		return nil, err
	}
	user := buildUserMessage(rc, system, modelCfg.ContextWindow, agentCfg.MaxOutputTokens)

	ctx, cancel := context.WithTimeout(ctx, agentCfg.Timeout)
	defer cancel()

	inference := llm.InferenceConfig{
		Temperature: agentCfg.Temperature,
		MaxTokens:   agentCfg.MaxOutputTokens,
		TopP:        agentCfg.TopP,
	}
	messages := []llm.Message{{Role: llm.RoleUser, Content: user}}

	var totalUsage llm.Usage
	var latency int64
	var serviceTier string

	converse := func(msgs []llm.Message) (*llm.ConverseResponse, error) {
		var resp *llm.ConverseResponse
		err := retry.Default().Do(ctx, func(ctx context.Context) error {
			var callErr error
			resp, callErr = r.client.Converse(ctx, &llm.ConverseRequest{
				ModelID:  agentCfg.ModelID,
				System:   system,
				Messages: msgs,
				Config:   inference,
			})
			return callErr
		})
		if err != nil {
			return nil, err
		}
		totalUsage.InputTokens += resp.Usage.InputTokens
		totalUsage.OutputTokens += resp.Usage.OutputTokens
		latency += resp.LatencyMS
		if resp.ServiceTier != "" {
			serviceTier = resp.ServiceTier
		}
		metrics.TokensConsumed.WithLabelValues(agentCfg.ModelID, "input").Add(float64(resp.Usage.InputTokens))
		metrics.TokensConsumed.WithLabelValues(agentCfg.ModelID, "output").Add(float64(resp.Usage.OutputTokens))
		return resp, nil
	}

	resp, err := converse(messages)
	if err != nil {
		metrics.AgentInvocations.WithLabelValues(string(name), "transport_error").Inc()
		return nil, fmt.Errorf("agent %s converse: %w", name, err)
	}

	out, parseErr := r.parseAndValidate(name, resp.Content)
	if parseErr != nil {
		r.logger.Warn("Agent output invalid, sending corrective turn",
			"agent", name, "sub_id", subID, "error", parseErr)

		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: resp.Content},
			llm.Message{Role: llm.RoleUser, Content: correctiveTurn},
		)
		resp, err = converse(messages)
		if err != nil {
			metrics.AgentInvocations.WithLabelValues(string(name), "transport_error").Inc()
			return nil, fmt.Errorf("agent %s corrective converse: %w", name, err)
		}
		out, parseErr = r.parseAndValidate(name, resp.Content)
		if parseErr != nil {
			metrics.AgentInvocations.WithLabelValues(string(name), "invalid_output").Inc()
			return &Evaluation{Cost: r.costRecord(d, agentCfg.ModelID, modelCfg, totalUsage, latency, serviceTier, subID, hackID)},
				fmt.Errorf("agent %s: %w: %v", name, ErrInvalidOutput, parseErr)
		}
	}

	result := normalize(d, out, rc, subID, hackID, agentCfg.ModelID)
	cost := r.costRecord(d, agentCfg.ModelID, modelCfg, totalUsage, latency, serviceTier, subID, hackID)

	metrics.AgentInvocations.WithLabelValues(string(name), "ok").Inc()
	metrics.CostUSD.WithLabelValues(string(name)).Add(cost.TotalCostUSD)

	r.logger.Info("Agent evaluation complete",
		"agent", name,
		"sub_id", subID,
		"overall_score", result.OverallScore,
		"confidence", result.Confidence,
		"flags", result.Flags,
		"cost_usd", cost.TotalCostUSD)

	return &Evaluation{Result: result, Cost: cost}, nil
}

func (r *Runtime) parseAndValidate(name models.AgentName, content string) (*agentOutput, error) {
	raw, err := ExtractJSONObject(content)
	if err != nil {
		return nil, err
	}
	return validateAndBind(name, raw)
}

func (r *Runtime) costRecord(d Descriptor, modelID string, modelCfg config.ModelConfig, usage llm.Usage, latency int64, tier, subID, hackID string) *models.CostRecord {
	inputCost := float64(usage.InputTokens) * modelCfg.InputRate
	outputCost := float64(usage.OutputTokens) * modelCfg.OutputRate
	return &models.CostRecord{
		SubID:         subID,
		HackID:        hackID,
		Agent:         d.Name,
		ModelID:       modelID,
		InputTokens:   usage.InputTokens,
		OutputTokens:  usage.OutputTokens,
		InputCostUSD:  inputCost,
		OutputCostUSD: outputCost,
		TotalCostUSD:  inputCost + outputCost,
		LatencyMS:     latency,
		ServiceTier:   tier,
		CreatedAt:     time.Now().UTC(),
	}
}
