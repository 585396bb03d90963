// Package config loads, merges, validates and serves mutaforge's
// configuration, following the teacher repo's layered-YAML approach:
// built-in defaults merged under a user-supplied YAML file, environment
// variables expanded before parsing, a single validation pass before use.
package config

import "time"

// LLMConfig configures the LLM endpoint shared by the Prompt Layer and the
// Knowledge Base's embedding engine (spec.md §6).
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url" validate:"required"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model" validate:"required"`
	Temperature float64 `yaml:"temperature"`
}

// KnowledgeConfig tunes the Knowledge Base (spec.md §6).
type KnowledgeConfig struct {
	Enabled        bool    `yaml:"enabled"`
	EmbeddingModel string  `yaml:"embedding_model"`
	TopKContracts  int     `yaml:"top_k_contracts" validate:"omitempty,min=1"`
	TopKBugs       int     `yaml:"top_k_bugs" validate:"omitempty,min=1"`
	Alpha          float64 `yaml:"alpha"`
	ChunkTokens    int     `yaml:"chunk_tokens"`
}

// PreprocessingConfig tunes the per-target preprocessing fan-out (spec.md §5).
type PreprocessingConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxWorkers int  `yaml:"max_workers" validate:"omitempty,min=1"`
}

// FormattingStyle selects the code formatter's output convention.
type FormattingStyle string

const (
	FormattingGoogle FormattingStyle = "GOOGLE"
	FormattingAOSP   FormattingStyle = "AOSP"
)

// FormattingConfig selects the external formatter's style (spec.md §6) and
// locates its executable (ambient, same precedence as BuildToolConfig).
type FormattingConfig struct {
	Style   FormattingStyle `yaml:"style"`
	PathEnv string          `yaml:"path_env"`
	Path    string          `yaml:"path"`
}

// AnalyzerConfig locates the external structural analyzer's executable
// (ambient, added by this repo's expansion — spec.md §4.1 specifies the
// analyzer's JSON contract but not how its binary is found).
type AnalyzerConfig struct {
	PathEnv string `yaml:"path_env"`
	Path    string `yaml:"path"`
}

// ExcellenceThresholds are the global-stop excellence targets (spec.md §4.5).
type ExcellenceThresholds struct {
	MutationScore  float64 `yaml:"mutation_score"`
	LineCoverage   float64 `yaml:"line_coverage"`
	BranchCoverage float64 `yaml:"branch_coverage"`
}

// SelectionWeights are the w1..w4 weights of the target-selection score
// (spec.md §4.5): w1*(1-mutation_score) + w2*(1-line_cov) + w3*(1-branch_cov) - w4*noop_penalty.
type SelectionWeights struct {
	Mutation     float64 `yaml:"mutation"`
	LineCoverage float64 `yaml:"line_coverage"`
	BranchCov    float64 `yaml:"branch_coverage"`
	NoopPenalty  float64 `yaml:"noop_penalty"`
}

// AgentConfig tunes the Planner Agent's budgets and scheduling (spec.md §6).
type AgentConfig struct {
	MaxIterations           int                  `yaml:"max_iterations" validate:"omitempty,min=1"`
	BudgetLLMCalls          int                  `yaml:"budget_llm_calls" validate:"omitempty,min=1"`
	StopOnNoImprovementRnds int                  `yaml:"stop_on_no_improvement_rounds"`
	ParallelTargets         int                  `yaml:"parallel_targets" validate:"omitempty,min=1"`
	ExcellenceThresholds    ExcellenceThresholds `yaml:"excellence_thresholds"`
	HighMutationThreshold   float64              `yaml:"high_mutation_threshold"`
	SelectionWeights        SelectionWeights     `yaml:"selection_weights"`
}

// StoreConfig configures the Data Store's Postgres connection (ambient,
// added by this repo's expansion — not present verbatim in spec.md §6).
type StoreConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// WorkspaceConfig points at the target project and the planner's working
// area (ambient).
type WorkspaceConfig struct {
	ProjectPath string `yaml:"project_path" validate:"required"`
	Root        string `yaml:"root"`
}

// BuildToolConfig locates the external build driver (spec.md §4.3).
type BuildToolConfig struct {
	PathEnv string `yaml:"path_env"`
	Path    string `yaml:"path"`
}
