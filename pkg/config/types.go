// Package config loads and validates the vibejudge.yaml configuration file.
// Defaults are applied first, then the YAML file, then environment overrides.
package config

import "time"

// Config is the complete runtime configuration.
type Config struct {
	Orchestrator *OrchestratorConfig    `yaml:"orchestrator"`
	Extractor    *ExtractorConfig       `yaml:"extractor"`
	Models       map[string]ModelConfig `yaml:"models"` // model_id → config
	Agents       map[string]AgentConfig `yaml:"agents"` // agent name → config
	LLM          *LLMConfig             `yaml:"llm"`
}

// OrchestratorConfig controls job scheduling and budget math.
type OrchestratorConfig struct {
	// MaxConcurrentSubmissions (W_subs) bounds per-job submission parallelism.
	MaxConcurrentSubmissions int `yaml:"max_concurrent_submissions"`

	// SubmissionDeadline (D_sub) is the hard per-submission wall-clock ceiling.
	SubmissionDeadline time.Duration `yaml:"submission_deadline"`

	// StoreCallTimeout bounds each key-value store call.
	StoreCallTimeout time.Duration `yaml:"store_call_timeout"`

	// GracefulShutdownTimeout is the max drain time for in-flight jobs.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`

	// JobRetention is the TTL for terminal analysis jobs.
	JobRetention time.Duration `yaml:"job_retention"`
}

// ExtractorConfig controls repository extraction.
type ExtractorConfig struct {
	// AllowedHosts are the git hosts submissions may point at.
	AllowedHosts []string `yaml:"allowed_hosts"`

	// CloneTimeout bounds the full-history clone.
	CloneTimeout time.Duration `yaml:"clone_timeout"`

	// CloneBudgetBytes is the on-disk ceiling before shallow fallback.
	CloneBudgetBytes int64 `yaml:"clone_budget_bytes"`

	// ShallowDepth is the fallback clone depth.
	ShallowDepth int `yaml:"shallow_depth"`

	// MinThroughputBytesPerSec aborts a clone that stays below this rate
	// for longer than LowThroughputWindow.
	MinThroughputBytesPerSec int64         `yaml:"min_throughput_bytes_per_sec"`
	LowThroughputWindow      time.Duration `yaml:"low_throughput_window"`

	// Extractor caps.
	TopFiles      int `yaml:"default_top_files"`
	TopCommits    int `yaml:"default_top_commits"`
	TopDiffs      int `yaml:"default_top_diffs"`
	MaxFileLines  int `yaml:"max_file_lines"`  // L_max truncation limit
	HugeFileLines int `yaml:"huge_file_lines"` // files above this are suspect
	TreeMaxDepth  int `yaml:"tree_max_depth"`
	TreeMaxLines  int `yaml:"tree_max_lines"`
	ReadmeMaxChars int `yaml:"readme_max_chars"`

	// Workflow fetch (non-fatal on timeout).
	WorkflowRunLimit int           `yaml:"workflow_run_limit"`
	WorkflowDefLimit int           `yaml:"workflow_def_limit"`
	WorkflowTimeout  time.Duration `yaml:"workflow_timeout"`

	// WorkDir is the parent of per-submission ephemeral clone directories.
	WorkDir string `yaml:"work_dir"`
}

// ModelConfig is one row of the model rate table plus its context window.
// Rates are USD per token.
type ModelConfig struct {
	InputRate     float64 `yaml:"input_rate"`
	OutputRate    float64 `yaml:"output_rate"`
	ContextWindow int     `yaml:"context_window"` // tokens
}

// AgentConfig is the inference configuration of one judge agent. Agents share
// behaviour by calling into a single runtime; only the parameters differ.
type AgentConfig struct {
	ModelID         string        `yaml:"model_id"`
	Temperature     float64       `yaml:"temperature"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	TopP            float64       `yaml:"top_p"`
	Timeout         time.Duration `yaml:"timeout"`
}

// LLMConfig configures the Converse transport.
type LLMConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"api_key"` // ${ENV} expanded
	Timeout  time.Duration `yaml:"timeout"`
}
