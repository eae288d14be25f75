package agent

import (
	"math"
	"time"

	"github.com/vibejudge/vibejudge/pkg/models"
)

// overallTolerance is the allowed drift between the model's self-reported
// overall score and the mean of its sub-scores before the recomputed value
// wins.
const overallTolerance = 2.0

// fabricationThreshold is the unverified-evidence share that marks a result
// as fabricated.
const fabricationThreshold = 0.4

// fabricationConfidenceCap caps confidence once fabrication is flagged.
const fabricationConfidenceCap = 0.3

// normalize converts a schema-valid output into an AgentResult: scores are
// clamped, the overall score reconciled, evidence grounded against the
// repository, and integrity flags attached.
func normalize(d Descriptor, out *agentOutput, rc *models.RepoContext, subID, hackID, modelID string) *models.AgentResult {
	result := &models.AgentResult{
		SubID:              subID,
		HackID:             hackID,
		Agent:              d.Name,
		PromptVersion:      d.PromptVersion,
		ModelID:            modelID,
		Scores:             make(map[string]float64, len(d.Dimensions)),
		Confidence:         clamp(out.Confidence, 0, 1),
		Summary:            out.Summary,
		Strengths:          out.Strengths,
		Improvements:       out.Improvements,
		AIUsageEstimate:    out.AIUsageEstimate,
		DevelopmentPattern: out.DevelopmentPattern,
		CreatedAt:          time.Now().UTC(),
	}

	// Only declared sub-dimensions survive; extras are dropped.
	var sum float64
	for _, dim := range d.Dimensions {
		score := clamp(out.Scores[dim], 0, 10)
		result.Scores[dim] = score
		sum += score
	}
	recomputed := sum / float64(len(d.Dimensions))

	if out.OverallScore == nil || math.Abs(clamp(*out.OverallScore, 0, 10)-recomputed) > overallTolerance {
		result.OverallScore = round2(recomputed)
	} else {
		result.OverallScore = clamp(*out.OverallScore, 0, 10)
	}

	result.Evidence = groundEvidence(out.Evidence, rc)
	applyIntegrityChecks(result)
	return result
}

// groundEvidence verifies every cited file and commit against the repository
// data. Unverifiable items are kept, marked and annotated.
func groundEvidence(items []evidenceOutput, rc *models.RepoContext) []models.Evidence {
	evidence := make([]models.Evidence, 0, len(items))
	for _, item := range items {
		ev := models.Evidence{
			Finding:        item.Finding,
			File:           item.File,
			Line:           item.Line,
			Commit:         item.Commit,
			Severity:       models.Severity(item.Severity),
			Category:       item.Category,
			Recommendation: item.Recommendation,
			Verified:       true,
		}
		if item.File != "" && !rc.HasFile(item.File) {
			ev.Verified = false
			ev.Note = "file not in repo"
		}
		if ev.Verified && item.Commit != "" && !rc.HasCommit(item.Commit) {
			ev.Verified = false
			ev.Note = "commit not in history"
		}
		evidence = append(evidence, ev)
	}
	return evidence
}

// applyIntegrityChecks attaches anomaly flags and their confidence
// penalties: fabricated evidence, uniform scoring, implausibly high scoring.
func applyIntegrityChecks(result *models.AgentResult) {
	if n := len(result.Evidence); n > 0 {
		unverified := 0
		for _, ev := range result.Evidence {
			if !ev.Verified {
				unverified++
			}
		}
		if float64(unverified)/float64(n) >= fabricationThreshold {
			result.Flags = append(result.Flags, models.FlagFabricatedEvidence)
			result.Confidence = math.Min(result.Confidence, fabricationConfidenceCap)
		}
	}

	uniform := true
	high := true
	for _, score := range result.Scores {
		if score != 5.0 {
			uniform = false
		}
		if score < 9.0 {
			high = false
		}
	}
	if uniform && len(result.Scores) > 0 {
		result.Flags = append(result.Flags, models.FlagUniformScores)
		result.Confidence /= 2
	}
	if high && len(result.Scores) > 0 {
		result.Flags = append(result.Flags, models.FlagUnusuallyHigh)
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
