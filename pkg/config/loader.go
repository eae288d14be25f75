package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} references with environment values. Unset
// variables expand to the empty string.
func expandEnv(raw []byte) []byte {
	return envRefPattern.ReplaceAllFunc(raw, func(m []byte) []byte {
		name := envRefPattern.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// Load reads the configuration file at path, applies it over the defaults,
// and validates the result. A missing file is not an error: the defaults are
// used as-is.
func Load(path string) (*Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		slog.Info("No config file found, using defaults", "path", path)
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(expandEnv(raw), cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		slog.Info("Loaded configuration", "path", path)
	}

	applyFileOverDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyFileOverDefaults backfills any section or map entry the YAML file left
// out. yaml.Unmarshal replaces whole maps, so partial files would otherwise
// lose the built-in models and agents.
func applyFileOverDefaults(cfg *Config) {
	if cfg.Orchestrator == nil {
		cfg.Orchestrator = DefaultOrchestratorConfig()
	}
	if cfg.Extractor == nil {
		cfg.Extractor = DefaultExtractorConfig()
	}
	if cfg.LLM == nil {
		cfg.LLM = DefaultLLMConfig()
	}
	if len(cfg.Models) == 0 {
		cfg.Models = DefaultModels()
	}
	if len(cfg.Agents) == 0 {
		cfg.Agents = DefaultAgents()
	}
	for name, ac := range cfg.Agents {
		def := DefaultAgents()["bug_hunter"]
		if ac.ModelID == "" {
			ac.ModelID = def.ModelID
		}
		if ac.MaxOutputTokens == 0 {
			ac.MaxOutputTokens = def.MaxOutputTokens
		}
		if ac.Timeout == 0 {
			ac.Timeout = def.Timeout
		}
		if ac.TopP == 0 {
			ac.TopP = def.TopP
		}
		cfg.Agents[name] = ac
	}
}

// Model returns the rate-table entry for a model id.
func (c *Config) Model(modelID string) (ModelConfig, bool) {
	mc, ok := c.Models[modelID]
	return mc, ok
}

// Agent returns the inference configuration for an agent name, falling back
// to the bug_hunter defaults for unknown names.
func (c *Config) Agent(name string) AgentConfig {
	if ac, ok := c.Agents[name]; ok {
		return ac
	}
	return DefaultAgents()["bug_hunter"]
}
