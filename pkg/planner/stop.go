package planner

import (
	"mutaforge/pkg/config"
	"mutaforge/pkg/model"
)

// stopReason identifies why Run returned, mapped to a CLI exit code by
// cmd/mutaforge (spec.md §6).
type stopReason string

const (
	stopNone                 stopReason = ""
	stopMaxIterations        stopReason = "max_iterations"
	stopBudgetExhausted      stopReason = "budget_exhausted"
	stopNoImprovement        stopReason = "no_improvement"
	stopExcellence           stopReason = "excellence"
	stopQueueExhausted       stopReason = "queue_exhausted"
	stopCancelled            stopReason = "cancelled"
	stopEvaluationUnreliable stopReason = "evaluation_unreliable"
)

// improvementEpsilon is the flatness band below which a change in
// mutation score, line coverage or branch coverage does not count as
// improvement, resolving the "what counts as improvement" Open Question
// (spec.md §4.5, recorded in DESIGN.md).
const improvementEpsilon = 0.01

// improved reports whether any target's mutation score, line coverage or
// branch coverage rose by more than improvementEpsilon between two rounds'
// snapshots of the same target, keyed by Target ID.
func improved(before, after map[string]model.CoverageSnapshot) bool {
	for id, a := range after {
		b, ok := before[id]
		if !ok {
			return true // a brand new target's first measurement always counts
		}
		if a.MutationScore()-b.MutationScore() > improvementEpsilon {
			return true
		}
		if a.LineCoverage-b.LineCoverage > improvementEpsilon {
			return true
		}
		if a.BranchCoverage-b.BranchCoverage > improvementEpsilon {
			return true
		}
	}
	return false
}

// allExcellent reports whether every target meets the excellence
// thresholds simultaneously (spec.md §4.5 global stop condition).
func allExcellent(states []targetState, t config.ExcellenceThresholds) bool {
	if len(states) == 0 {
		return false
	}
	for _, s := range states {
		cov := s.Coverage
		if cov.MutationScore() < t.MutationScore ||
			cov.LineCoverage < t.LineCoverage ||
			cov.BranchCoverage < t.BranchCoverage {
			return false
		}
	}
	return true
}

// stopOnNoImprovementRoundsOrDefault applies the documented default of 3
// rounds when unset, since a zero value would stop the run immediately.
func stopOnNoImprovementRoundsOrDefault(cfg config.AgentConfig) int {
	if cfg.StopOnNoImprovementRnds <= 0 {
		return 3
	}
	return cfg.StopOnNoImprovementRnds
}

// checkGlobalStop evaluates every global stop condition after a round
// completes, in the precedence order spec.md §4.5 lists them.
func checkGlobalStop(
	cfg config.AgentConfig,
	budget model.BudgetCounter,
	states []targetState,
	highMutationThreshold float64,
) stopReason {
	if budget.RoundsUsed >= cfg.MaxIterations {
		return stopMaxIterations
	}
	if budget.LLMCallsUsed >= cfg.BudgetLLMCalls {
		return stopBudgetExhausted
	}
	if budget.RoundsUsed-budget.LastImprovementRnd >= stopOnNoImprovementRoundsOrDefault(cfg) {
		return stopNoImprovement
	}
	if allExcellent(states, cfg.ExcellenceThresholds) {
		return stopExcellence
	}
	if queueExhausted(states, highMutationThreshold) {
		return stopQueueExhausted
	}
	return stopNone
}
