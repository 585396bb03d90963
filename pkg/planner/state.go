// Package planner drives the Planner Agent's round loop: target selection,
// the fixed action decision tree, retrieval-augmented prompt construction,
// the write-back discipline and the global stop conditions (spec.md §4.5).
package planner

import "mutaforge/pkg/model"

// targetState is the planner's working view of one Target, reloaded from
// the Data Store at the start of every round so action decisions never act
// on stale data (spec.md §5 ordering guarantee: round N decisions use only
// round N-1's fully-settled results).
type targetState struct {
	Target      model.Target
	Tests       []model.TestCase
	Mutants     []model.Mutant
	Coverage    model.CoverageSnapshot
	RoundsSpent int
}

func (s targetState) survivingMutants() []model.Mutant {
	var out []model.Mutant
	for _, m := range s.Mutants {
		if m.Status == model.MutantSurvived {
			out = append(out, m)
		}
	}
	return out
}

// pendingMutants returns mutants generated but not yet evaluated: this is
// the set both halves of the decision tree's mutant-generation branch key
// off ("not recently generated" / "added since the last eval").
func (s targetState) pendingMutants() []model.Mutant {
	var out []model.Mutant
	for _, m := range s.Mutants {
		if m.Status == model.MutantPending || m.Status == model.MutantValid {
			out = append(out, m)
		}
	}
	return out
}
