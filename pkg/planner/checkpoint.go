package planner

import (
	"mutaforge/pkg/model"
	"mutaforge/pkg/store"
)

// buildCheckpoint flattens the live targetState slices into the single
// resumable document (spec.md §4.5 resumption). Per-target ephemeral
// planner state (noop streaks, rounds spent) is intentionally excluded:
// it is reset on resume, a documented simplification since the Data
// Store's Target/Test/Mutant/Coverage rows remain the source of truth.
func buildCheckpoint(round int, states []targetState, budget model.BudgetCounter) store.Checkpoint {
	cp := store.Checkpoint{
		MutantStatuses: make(map[int64]model.MutantStatus),
		Budget:         budget,
		Round:          round,
	}
	for _, s := range states {
		cp.Targets = append(cp.Targets, s.Target)
		cp.ActiveTests = append(cp.ActiveTests, s.Tests...)
		cp.CoverageSnaps = append(cp.CoverageSnaps, s.Coverage)
		for _, m := range s.Mutants {
			cp.MutantStatuses[m.ID] = m.Status
		}
	}
	return cp
}
