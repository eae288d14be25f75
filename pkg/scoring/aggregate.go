// Package scoring turns successful agent results into a submission summary
// and persists the analysis artifacts in the required order.
package scoring

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/vibejudge/vibejudge/pkg/models"
)

// Recommendation thresholds on the 10-point scale.
const (
	strongContenderMin  = 8.0
	solidSubmissionMin  = 6.5
	needsImprovementMin = 4.5
)

// unavailableNote marks rubric dimensions whose agent produced no result.
const unavailableNote = "agent unavailable"

// Aggregate computes the submission summary from the rubric and whichever
// agents succeeded. Dimensions of missing agents contribute 0.
func Aggregate(hack *models.Hackathon, sub *models.Submission, results map[models.AgentName]*models.AgentResult, totalCostUSD float64, durationMS int64) *models.SubmissionSummary {
	summary := &models.SubmissionSummary{
		SubID:              sub.SubID,
		HackID:             hack.HackID,
		TeamName:           sub.TeamName,
		WeightedScores:     make(map[string]models.WeightedScore, len(hack.Rubric.Dimensions)),
		AgentScores:        make(map[models.AgentName]float64, len(results)),
		Confidence:         1.0,
		TotalCostUSD:       totalCostUSD,
		AnalysisDurationMS: durationMS,
		CreatedAt:          time.Now().UTC(),
	}

	var final10 float64
	for _, dim := range hack.Rubric.Dimensions {
		ws := models.WeightedScore{Weight: dim.Weight}
		if result, ok := results[dim.Agent]; ok {
			ws.Raw = result.OverallScore
		} else {
			ws.Note = unavailableNote
		}
		ws.Weighted = ws.Raw * ws.Weight
		summary.WeightedScores[dim.Name] = ws
		final10 += ws.Weighted
	}

	summary.OverallScore = round2(clamp(final10*10, 0, 100))
	summary.Recommendation = Classify(final10)

	for name, result := range results {
		summary.AgentScores[name] = result.OverallScore
		if result.Confidence < summary.Confidence {
			summary.Confidence = result.Confidence
		}
	}
	if len(results) == 0 {
		summary.Confidence = 0
	}

	summary.Strengths = topItems(results, func(r *models.AgentResult) []string { return r.Strengths })
	summary.Weaknesses = topItems(results, func(r *models.AgentResult) []string { return r.Improvements })

	return summary
}

// Classify maps a 10-point score to its recommendation class.
func Classify(final10 float64) models.Recommendation {
	switch {
	case final10 >= strongContenderMin:
		return models.RecStrongContender
	case final10 >= solidSubmissionMin:
		return models.RecSolidSubmission
	case final10 >= needsImprovementMin:
		return models.RecNeedsImprovement
	default:
		return models.RecConcernsFlagged
	}
}

// unmatchedSeverity ranks items with no backing evidence below every graded
// severity, including unrecognised grades.
const unmatchedSeverity = 6

type rankedItem struct {
	text     string
	severity int // evidence severity rank, lower is more severe
	priority int // agent priority, lower first
	order    int
}

// topItems selects the top-3 distinct items across agents, ranked by the
// severity of matching evidence, then agent priority, then original order.
// Duplicates collapse on normalised text.
func topItems(results map[models.AgentName]*models.AgentResult, pick func(*models.AgentResult) []string) []string {
	var items []rankedItem
	order := 0

	agents := make([]models.AgentName, 0, len(results))
	for name := range results {
		agents = append(agents, name)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].Priority() < agents[j].Priority() })

	for _, name := range agents {
		result := results[name]
		for _, text := range pick(result) {
			if strings.TrimSpace(text) == "" {
				continue
			}
			items = append(items, rankedItem{
				text:     text,
				severity: evidenceSeverity(result, text),
				priority: name.Priority(),
				order:    order,
			})
			order++
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].severity != items[j].severity {
			return items[i].severity < items[j].severity
		}
		if items[i].priority != items[j].priority {
			return items[i].priority < items[j].priority
		}
		return items[i].order < items[j].order
	})

	seen := map[string]bool{}
	out := make([]string, 0, 3)
	for _, item := range items {
		norm := normalizeText(item.text)
		if seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, item.text)
		if len(out) == 3 {
			break
		}
	}
	return out
}

// evidenceSeverity returns the rank of the most severe evidence item backing
// the text, matching on finding or recommendation. Lower is more severe;
// unmatched items rank below any graded evidence.
func evidenceSeverity(result *models.AgentResult, text string) int {
	norm := normalizeText(text)
	best := unmatchedSeverity
	for _, ev := range result.Evidence {
		if normalizeText(ev.Finding) == norm || normalizeText(ev.Recommendation) == norm {
			if r := ev.Severity.Rank(); r < best {
				best = r
			}
		}
	}
	return best
}

func normalizeText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, ".")
	return strings.Join(strings.Fields(s), " ")
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
