package config

// Config is the umbrella configuration object returned by Initialize and
// threaded through the planner and its bridges — constructed once at
// startup, never re-read at leaf call sites (spec.md §9: singletons become
// a typed runtime context passed explicitly).
type Config struct {
	configDir string

	LLM           LLMConfig
	Knowledge     *KnowledgeConfig
	Preprocessing *PreprocessingConfig
	Formatting    *FormattingConfig
	Agent         *AgentConfig
	Store         *StoreConfig
	Workspace     WorkspaceConfig
	BuildTool     BuildToolConfig
	Analyzer      AnalyzerConfig
}

// ConfigDir returns the directory Config was loaded from.
func (c *Config) ConfigDir() string { return c.configDir }

// Stats summarizes the loaded configuration for startup logging.
type Stats struct {
	KnowledgeEnabled  bool
	PreprocessWorkers int
	ParallelTargets   int
}

// Stats returns a small summary used for the startup log line, mirroring
// the teacher's Config.Stats() convenience method.
func (c *Config) Stats() Stats {
	return Stats{
		KnowledgeEnabled:  c.Knowledge.Enabled,
		PreprocessWorkers: c.Preprocessing.MaxWorkers,
		ParallelTargets:   c.Agent.ParallelTargets,
	}
}
