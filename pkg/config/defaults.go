package config

import "time"

// Default model identifiers.
const (
	DefaultModelID = "anthropic.claude-sonnet-4-20250514-v1:0"
)

// DefaultOrchestratorConfig returns the built-in orchestrator defaults.
func DefaultOrchestratorConfig() *OrchestratorConfig {
	return &OrchestratorConfig{
		MaxConcurrentSubmissions: 8,
		SubmissionDeadline:       900 * time.Second,
		StoreCallTimeout:         5 * time.Second,
		GracefulShutdownTimeout:  15 * time.Minute,
		JobRetention:             30 * 24 * time.Hour,
	}
}

// DefaultExtractorConfig returns the built-in extractor defaults.
func DefaultExtractorConfig() *ExtractorConfig {
	return &ExtractorConfig{
		AllowedHosts:             []string{"github.com"},
		CloneTimeout:             120 * time.Second,
		CloneBudgetBytes:         2 << 30, // 2 GiB
		ShallowDepth:             100,
		MinThroughputBytesPerSec: 1024,
		LowThroughputWindow:      30 * time.Second,
		TopFiles:                 25,
		TopCommits:               100,
		TopDiffs:                 30,
		MaxFileLines:             200,
		HugeFileLines:            5000,
		TreeMaxDepth:             4,
		TreeMaxLines:             200,
		ReadmeMaxChars:           12000,
		WorkflowRunLimit:         50,
		WorkflowDefLimit:         10,
		WorkflowTimeout:          15 * time.Second,
		WorkDir:                  "",
	}
}

// DefaultModels returns the built-in model rate table.
func DefaultModels() map[string]ModelConfig {
	return map[string]ModelConfig{
		DefaultModelID: {
			InputRate:     3.0 / 1_000_000,
			OutputRate:    15.0 / 1_000_000,
			ContextWindow: 200_000,
		},
		"anthropic.claude-haiku-3-5-20241022-v1:0": {
			InputRate:     0.8 / 1_000_000,
			OutputRate:    4.0 / 1_000_000,
			ContextWindow: 200_000,
		},
	}
}

// DefaultAgents returns the built-in per-agent inference configuration.
func DefaultAgents() map[string]AgentConfig {
	base := AgentConfig{
		ModelID:         DefaultModelID,
		Temperature:     0.2,
		MaxOutputTokens: 4096,
		TopP:            0.9,
		Timeout:         120 * time.Second,
	}
	return map[string]AgentConfig{
		"bug_hunter":   base,
		"performance":  base,
		"innovation":   base,
		"ai_detection": base,
	}
}

// DefaultLLMConfig returns the built-in Converse transport defaults.
func DefaultLLMConfig() *LLMConfig {
	return &LLMConfig{
		Endpoint: "http://localhost:8090",
		Timeout:  150 * time.Second,
	}
}

// Default returns a fully populated default configuration.
func Default() *Config {
	return &Config{
		Orchestrator: DefaultOrchestratorConfig(),
		Extractor:    DefaultExtractorConfig(),
		Models:       DefaultModels(),
		Agents:       DefaultAgents(),
		LLM:          DefaultLLMConfig(),
	}
}
