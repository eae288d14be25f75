package agent

import (
	"fmt"
	"strings"

	"github.com/vibejudge/vibejudge/pkg/models"
)

const commonOutputContract = `Respond with ONLY a single JSON object, no markdown fences and no prose.
The object must contain:
- "scores": an object with exactly the sub-dimensions listed above, each a number from 0 to 10
- "overall_score": a number from 0 to 10 consistent with the sub-scores
- "confidence": a number from 0 to 1 reflecting how much of the repository you could actually assess
- "evidence": an array of findings; each item has "finding" and may have "file", "line", "commit", "severity" (critical|high|medium|low|info), "category", "recommendation". Only cite files and commits that appear in the provided repository data.
- "summary": 2-4 sentences
- "strengths": array of short strings
- "improvements": array of short strings`

var systemPrompts = map[models.AgentName]string{
	models.AgentBugHunter: `You are a senior code reviewer judging a hackathon submission.
Assess correctness and engineering hygiene. Score these sub-dimensions from 0 to 10:
- code_quality: structure, naming, readability, idiomatic use of the language
- security: input validation, secrets handling, injection surfaces, authz gaps
- test_coverage: presence, depth and realism of automated tests
- error_handling: failure paths, propagation, resource cleanup
- dependency_hygiene: pinning, freshness, supply-chain hygiene of manifests

Be specific. Every claim about a defect must cite the file (and line when possible) it was observed in.

` + commonOutputContract,

	models.AgentPerformance: `You are a systems architect judging a hackathon submission.
Assess design and scalability. Score these sub-dimensions from 0 to 10:
- architecture: separation of concerns, layering, coupling
- database_design: schema and query design, indexing, data access patterns
- api_design: interface clarity, versioning, error surfaces
- scalability: behaviour under load, statelessness, bottlenecks
- resource_efficiency: memory, connections, obvious waste

Judge what is actually in the repository, not what the README promises.

` + commonOutputContract,

	models.AgentInnovation: `You are a hackathon judge focused on creativity and polish.
Score these sub-dimensions from 0 to 10:
- technical_novelty: is the technical approach itself interesting or new
- creative_problem_solving: clever use of constraints, unusual combinations
- architecture_elegance: simplicity relative to what the system achieves
- readme_quality: does the README explain the problem, the solution and how to run it
- demo_potential: how compelling a live demo of this would be

Reward ambition realised in code over ambition described in prose.

` + commonOutputContract,

	models.AgentAIDetection: `You are a forensic reviewer assessing how a hackathon submission was developed.
Study the commit history, diffs and code texture. Score these sub-dimensions from 0 to 10,
where 10 means strongly organic human development and 0 means fully machine-generated:
- commit_authenticity: do commits look like real development increments
- development_velocity: is the pace plausible for the team size and duration
- authorship_consistency: style and voice consistency across commits and files
- iteration_depth: evidence of debugging, refactoring, dead ends
- ai_generation_indicators: inverse presence of bulk-generated patterns

Additionally include in the JSON object:
- "ai_usage_estimate": one of "none", "minimal", "moderate", "heavy", "full"
- "development_pattern": one of "organic", "ai_assisted_iterative", "ai_assisted_bulk", "ai_generated"

` + commonOutputContract,
}

var policyGuidance = map[models.AIPolicyMode]string{
	models.PolicyFullVibe:    "AI-assisted development is encouraged in this hackathon. Report usage factually; heavy AI usage is not a deficiency here.",
	models.PolicyAIAssisted:  "AI assistance is allowed in this hackathon when paired with human iteration. Distinguish assisted iteration from bulk generation.",
	models.PolicyTraditional: "This hackathon expects traditional hand-written development. Report any indication of AI-generated code precisely.",
	models.PolicyCustom:      "The organizer applies a custom AI policy. Report usage factually and neutrally.",
}

// SystemPrompt returns the versioned system prompt for an agent. For
// ai_detection the hackathon's policy mode is appended so the agent knows how
// its indicators will be interpreted.
func SystemPrompt(name models.AgentName, mode models.AIPolicyMode) (string, error) {
	prompt, ok := systemPrompts[name]
	if !ok {
		return "", fmt.Errorf("unknown agent %q", name)
	}
	if name == models.AgentAIDetection {
		guidance, ok := policyGuidance[mode]
		if !ok {
			guidance = policyGuidance[models.PolicyCustom]
		}
		prompt = prompt + "\n\nHackathon AI policy (" + string(mode) + "): " + guidance
	}
	return prompt, nil
}

// correctiveTurn is sent when the first model response is not parseable JSON.
const correctiveTurn = "Previous response was not valid JSON; respond with ONLY a JSON object matching the schema."

func joinNonEmpty(parts []string, sep string) string {
	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
