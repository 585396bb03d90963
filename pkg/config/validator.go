package config

import "fmt"

// Validator runs a single validation pass over a loaded Config, mirroring
// the teacher's validate-after-merge pattern in pkg/config/loader.go.
type Validator struct {
	cfg *Config
}

// ValidateAll checks every section and returns the first failure found.
func (v *Validator) ValidateAll() error {
	if err := v.validateLLM(); err != nil {
		return err
	}
	if err := v.validateWorkspace(); err != nil {
		return err
	}
	if err := v.validateKnowledge(); err != nil {
		return err
	}
	if err := v.validatePreprocessing(); err != nil {
		return err
	}
	if err := v.validateAgent(); err != nil {
		return err
	}
	if err := v.validateStore(); err != nil {
		return err
	}
	return nil
}

func (v *Validator) validateLLM() error {
	llm := v.cfg.LLM
	if llm.BaseURL == "" {
		return NewValidationError("llm", "base_url", ErrMissingRequiredField)
	}
	if llm.Model == "" {
		return NewValidationError("llm", "model", ErrMissingRequiredField)
	}
	if llm.Temperature < 0 || llm.Temperature > 2 {
		return NewValidationError("llm", "temperature", fmt.Errorf("%w: must be in [0,2]", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateWorkspace() error {
	ws := v.cfg.Workspace
	if ws.ProjectPath == "" {
		return NewValidationError("workspace", "project_path", ErrMissingRequiredField)
	}
	return nil
}

func (v *Validator) validateKnowledge() error {
	k := v.cfg.Knowledge
	if !k.Enabled {
		return nil
	}
	if k.TopKContracts < 1 {
		return NewValidationError("knowledge", "top_k_contracts", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	if k.TopKBugs < 1 {
		return NewValidationError("knowledge", "top_k_bugs", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	if k.Alpha < 0 || k.Alpha > 1 {
		return NewValidationError("knowledge", "alpha", fmt.Errorf("%w: must be in [0,1]", ErrInvalidValue))
	}
	if k.ChunkTokens < 1 {
		return NewValidationError("knowledge", "chunk_tokens", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validatePreprocessing() error {
	p := v.cfg.Preprocessing
	if p.Enabled && p.MaxWorkers < 1 {
		return NewValidationError("preprocessing", "max_workers", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateAgent() error {
	a := v.cfg.Agent
	if a.MaxIterations < 1 {
		return NewValidationError("agent", "max_iterations", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	if a.BudgetLLMCalls < 1 {
		return NewValidationError("agent", "budget_llm_calls", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	if a.ParallelTargets < 1 {
		return NewValidationError("agent", "parallel_targets", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	w := a.SelectionWeights
	if w.Mutation < 0 || w.LineCoverage < 0 || w.BranchCov < 0 || w.NoopPenalty < 0 {
		return NewValidationError("agent", "selection_weights", fmt.Errorf("%w: weights must be non-negative", ErrInvalidValue))
	}
	e := a.ExcellenceThresholds
	for name, t := range map[string]float64{
		"excellence_thresholds.mutation_score":  e.MutationScore,
		"excellence_thresholds.line_coverage":   e.LineCoverage,
		"excellence_thresholds.branch_coverage": e.BranchCoverage,
	} {
		if t < 0 || t > 1 {
			return NewValidationError("agent", name, fmt.Errorf("%w: must be in [0,1]", ErrInvalidValue))
		}
	}
	return nil
}

func (v *Validator) validateStore() error {
	s := v.cfg.Store
	if s.DSN == "" {
		return NewValidationError("store", "dsn", ErrMissingRequiredField)
	}
	if s.MaxOpenConns < 1 {
		return NewValidationError("store", "max_open_conns", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	return nil
}
