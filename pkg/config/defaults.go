package config

import "time"

// DefaultSizeThresholdTokens mirrors the teacher's MCP-response threshold
// pattern, repurposed here as the default chunk budget for prose chunking.
const DefaultSizeThresholdTokens = 800

// DefaultKnowledgeConfig returns the built-in Knowledge Base tuning,
// overridden by user YAML in Initialize.
func DefaultKnowledgeConfig() *KnowledgeConfig {
	return &KnowledgeConfig{
		Enabled:        true,
		EmbeddingModel: "text-embedding-3-small",
		TopKContracts:  5,
		TopKBugs:       3,
		Alpha:          0.7,
		ChunkTokens:    DefaultSizeThresholdTokens,
	}
}

// DefaultPreprocessingConfig returns the built-in preprocessing tuning.
func DefaultPreprocessingConfig() *PreprocessingConfig {
	return &PreprocessingConfig{
		Enabled:    true,
		MaxWorkers: 4,
	}
}

// DefaultFormattingConfig returns the built-in formatter selection.
func DefaultFormattingConfig() *FormattingConfig {
	return &FormattingConfig{Style: FormattingGoogle}
}

// DefaultAgentConfig returns the built-in planner budgets and weights,
// matching the default weights (0.5, 0.2, 0.2, 0.3) from spec.md §4.5.
func DefaultAgentConfig() *AgentConfig {
	return &AgentConfig{
		MaxIterations:           200,
		BudgetLLMCalls:          2000,
		StopOnNoImprovementRnds: 3,
		ParallelTargets:         4,
		ExcellenceThresholds: ExcellenceThresholds{
			MutationScore:  0.95,
			LineCoverage:   0.90,
			BranchCoverage: 0.85,
		},
		HighMutationThreshold: 0.80,
		SelectionWeights: SelectionWeights{
			Mutation:     0.5,
			LineCoverage: 0.2,
			BranchCov:    0.2,
			NoopPenalty:  0.3,
		},
	}
}

// DefaultStoreConfig returns built-in Postgres pool sizing.
func DefaultStoreConfig() *StoreConfig {
	return &StoreConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	}
}
