// Package agent implements the four judge agents: prompt assembly, model
// invocation, output validation and evidence grounding. The agents share one
// runtime; only their descriptors and configuration differ.
package agent

import (
	"fmt"

	"github.com/vibejudge/vibejudge/pkg/models"
)

// Descriptor identifies a judge agent: its name, the version of its system
// prompt, and the fixed sub-dimensions its scores object must carry.
type Descriptor struct {
	Name          models.AgentName
	PromptVersion string
	Dimensions    []string
}

var descriptors = map[models.AgentName]Descriptor{
	models.AgentBugHunter: {
		Name:          models.AgentBugHunter,
		PromptVersion: "v3",
		Dimensions: []string{
			"code_quality", "security", "test_coverage",
			"error_handling", "dependency_hygiene",
		},
	},
	models.AgentPerformance: {
		Name:          models.AgentPerformance,
		PromptVersion: "v2",
		Dimensions: []string{
			"architecture", "database_design", "api_design",
			"scalability", "resource_efficiency",
		},
	},
	models.AgentInnovation: {
		Name:          models.AgentInnovation,
		PromptVersion: "v2",
		Dimensions: []string{
			"technical_novelty", "creative_problem_solving",
			"architecture_elegance", "readme_quality", "demo_potential",
		},
	},
	models.AgentAIDetection: {
		Name:          models.AgentAIDetection,
		PromptVersion: "v4",
		Dimensions: []string{
			"commit_authenticity", "development_velocity",
			"authorship_consistency", "iteration_depth",
			"ai_generation_indicators",
		},
	},
}

// DescriptorFor returns the descriptor of a known agent.
func DescriptorFor(name models.AgentName) (Descriptor, error) {
	d, ok := descriptors[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("unknown agent %q", name)
	}
	return d, nil
}
