package config

import "fmt"

// Validate checks every configuration section for usable values.
func (c *Config) Validate() error {
	if err := c.Orchestrator.validate(); err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	if err := c.Extractor.validate(); err != nil {
		return fmt.Errorf("extractor: %w", err)
	}
	if len(c.Models) == 0 {
		return fmt.Errorf("models: rate table is empty")
	}
	for id, mc := range c.Models {
		if mc.InputRate < 0 || mc.OutputRate < 0 {
			return fmt.Errorf("models: %s has negative rates", id)
		}
		if mc.ContextWindow <= 0 {
			return fmt.Errorf("models: %s has no context window", id)
		}
	}
	for name, ac := range c.Agents {
		if ac.ModelID == "" {
			return fmt.Errorf("agents: %s has no model_id", name)
		}
		if _, ok := c.Models[ac.ModelID]; !ok {
			return fmt.Errorf("agents: %s references unknown model %q", name, ac.ModelID)
		}
		if ac.MaxOutputTokens <= 0 {
			return fmt.Errorf("agents: %s max_output_tokens must be positive", name)
		}
		if ac.Temperature < 0 || ac.Temperature > 2 {
			return fmt.Errorf("agents: %s temperature must be in [0,2]", name)
		}
		if ac.Timeout <= 0 {
			return fmt.Errorf("agents: %s timeout must be positive", name)
		}
	}
	if c.LLM == nil || c.LLM.Endpoint == "" {
		return fmt.Errorf("llm: endpoint is required")
	}
	return nil
}

func (o *OrchestratorConfig) validate() error {
	if o == nil {
		return fmt.Errorf("configuration is nil")
	}
	if o.MaxConcurrentSubmissions < 1 || o.MaxConcurrentSubmissions > 64 {
		return fmt.Errorf("max_concurrent_submissions must be between 1 and 64")
	}
	if o.SubmissionDeadline <= 0 {
		return fmt.Errorf("submission_deadline must be positive")
	}
	if o.StoreCallTimeout <= 0 {
		return fmt.Errorf("store_call_timeout must be positive")
	}
	if o.GracefulShutdownTimeout <= 0 {
		return fmt.Errorf("graceful_shutdown_timeout must be positive")
	}
	if o.JobRetention <= 0 {
		return fmt.Errorf("job_retention must be positive")
	}
	return nil
}

func (e *ExtractorConfig) validate() error {
	if e == nil {
		return fmt.Errorf("configuration is nil")
	}
	if len(e.AllowedHosts) == 0 {
		return fmt.Errorf("allowed_hosts must not be empty")
	}
	if e.CloneTimeout <= 0 {
		return fmt.Errorf("clone_timeout must be positive")
	}
	if e.CloneBudgetBytes <= 0 {
		return fmt.Errorf("clone_budget_bytes must be positive")
	}
	if e.ShallowDepth < 1 {
		return fmt.Errorf("shallow_depth must be at least 1")
	}
	if e.TopFiles < 1 {
		return fmt.Errorf("default_top_files must be at least 1")
	}
	if e.TopCommits < 1 {
		return fmt.Errorf("default_top_commits must be at least 1")
	}
	if e.TopDiffs < 0 {
		return fmt.Errorf("default_top_diffs must be non-negative")
	}
	if e.MaxFileLines < 1 {
		return fmt.Errorf("max_file_lines must be at least 1")
	}
	if e.HugeFileLines < e.MaxFileLines {
		return fmt.Errorf("huge_file_lines must be at least max_file_lines")
	}
	if e.TreeMaxDepth < 1 || e.TreeMaxLines < 1 {
		return fmt.Errorf("tree limits must be positive")
	}
	if e.ReadmeMaxChars < 1 {
		return fmt.Errorf("readme_max_chars must be positive")
	}
	if e.WorkflowDefLimit < 1 {
		return fmt.Errorf("workflow_def_limit must be at least 1")
	}
	return nil
}
