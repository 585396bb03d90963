package planner

import (
	"math"
	"sort"

	"mutaforge/pkg/config"
	"mutaforge/pkg/model"
)

// action is one of the five decision-tree outcomes for a selected Target
// (spec.md §4.5).
type action string

const (
	actionGenerateTests   action = "generate_tests"
	actionRefineTests     action = "refine_tests"
	actionGenerateMutants action = "generate_mutants"
	actionRunEvaluation   action = "run_evaluation"
	actionAdvance         action = "advance"
)

// expectedImprovementScore computes w1*(1-mutation_score) + w2*(1-line_cov)
// + w3*(1-branch_cov) - w4*recent_noop_penalty (spec.md §4.5).
func expectedImprovementScore(ts targetState, noopStreak int, w config.SelectionWeights) float64 {
	cov := ts.Coverage
	return w.Mutation*(1-cov.MutationScore()) +
		w.LineCoverage*(1-cov.LineCoverage) +
		w.BranchCov*(1-cov.BranchCoverage) -
		w.NoopPenalty*noopPenalty(noopStreak)
}

// noopPenalty normalizes a streak of consecutive no-op rounds into [0,1],
// saturating at 5 consecutive no-ops so a perpetually-stuck Target still
// eventually yields the queue to others without ever going negative.
func noopPenalty(streak int) float64 {
	return math.Min(float64(streak)/5.0, 1.0)
}

// selectTarget picks the highest-scoring eligible Target, breaking ties by
// fewer rounds spent then by Target identifier ordering (spec.md §4.5).
func selectTarget(states []targetState, noopStreaks map[string]int, w config.SelectionWeights) (targetState, bool) {
	if len(states) == 0 {
		return targetState{}, false
	}

	sorted := make([]targetState, len(states))
	copy(sorted, states)
	sort.SliceStable(sorted, func(i, j int) bool {
		si := expectedImprovementScore(sorted[i], noopStreaks[sorted[i].Target.ID.String()], w)
		sj := expectedImprovementScore(sorted[j], noopStreaks[sorted[j].Target.ID.String()], w)
		if si != sj {
			return si > sj
		}
		if sorted[i].RoundsSpent != sorted[j].RoundsSpent {
			return sorted[i].RoundsSpent < sorted[j].RoundsSpent
		}
		return sorted[i].Target.ID.String() < sorted[j].Target.ID.String()
	})
	return sorted[0], true
}

// decideAction implements the fixed decision tree over a selected Target
// (spec.md §4.5). "new mutants not recently generated" and "new mutants
// added since the last eval" both reduce to whether any mutant is still
// awaiting its first evaluation: once evaluated every mutant carries a
// terminal status, so generate_mutants only fires again once nothing is
// left outstanding, and run_evaluation fires whenever something is.
func decideAction(ts targetState, highMutationThreshold float64) action {
	if len(ts.Tests) == 0 {
		return actionGenerateTests
	}
	if len(ts.survivingMutants()) > 0 {
		return actionRefineTests
	}
	pending := ts.pendingMutants()
	if ts.Coverage.MutationScore() >= highMutationThreshold && len(pending) == 0 {
		return actionGenerateMutants
	}
	if len(pending) > 0 {
		return actionRunEvaluation
	}
	return actionAdvance
}

// queueExhausted reports whether every Target has settled into advance,
// the "no more eligible Targets" global stop condition (spec.md §4.5).
func queueExhausted(states []targetState, highMutationThreshold float64) bool {
	if len(states) == 0 {
		return true
	}
	for _, s := range states {
		if decideAction(s, highMutationThreshold) != actionAdvance {
			return false
		}
	}
	return true
}

// oldestSurvivingMutants returns surviving mutants ordered oldest-first by
// ID (insertion order), the refine_tests target set (spec.md §4.5).
func oldestSurvivingMutants(ts targetState) []model.Mutant {
	out := ts.survivingMutants()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
