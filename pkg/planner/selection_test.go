package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mutaforge/pkg/config"
	"mutaforge/pkg/model"
)

func testTarget(id string) model.Target {
	return model.Target{ID: model.TargetID{ClassFQN: "com.example." + id, MethodName: "run"}, LineStart: 1, LineEnd: 10}
}

func defaultWeights() config.SelectionWeights {
	return config.SelectionWeights{Mutation: 0.5, LineCoverage: 0.2, BranchCov: 0.2, NoopPenalty: 0.3}
}

func TestSelectTargetPrefersHigherExpectedImprovement(t *testing.T) {
	low := targetState{Target: testTarget("Low"), Coverage: model.CoverageSnapshot{Killed: 9, Survived: 1, LineCoverage: 0.95, BranchCoverage: 0.9}}
	high := targetState{Target: testTarget("High"), Coverage: model.CoverageSnapshot{Killed: 1, Survived: 9, LineCoverage: 0.2, BranchCoverage: 0.1}}

	picked, ok := selectTarget([]targetState{low, high}, map[string]int{}, defaultWeights())
	assert.True(t, ok)
	assert.Equal(t, high.Target.ID, picked.Target.ID)
}

func TestSelectTargetBreaksTiesByRoundsSpentThenID(t *testing.T) {
	a := targetState{Target: testTarget("A"), RoundsSpent: 2}
	b := targetState{Target: testTarget("B"), RoundsSpent: 1}

	picked, ok := selectTarget([]targetState{a, b}, map[string]int{}, defaultWeights())
	assert.True(t, ok)
	assert.Equal(t, b.Target.ID, picked.Target.ID, "fewer rounds spent wins the tie")
}

func TestSelectTargetReturnsFalseOnEmptyInput(t *testing.T) {
	_, ok := selectTarget(nil, map[string]int{}, defaultWeights())
	assert.False(t, ok)
}

func TestDecideActionGeneratesTestsWhenNoneExist(t *testing.T) {
	ts := targetState{Target: testTarget("X")}
	assert.Equal(t, actionGenerateTests, decideAction(ts, 0.8))
}

func TestDecideActionRefinesTestsWhenMutantsSurvive(t *testing.T) {
	ts := targetState{
		Target:  testTarget("X"),
		Tests:   []model.TestCase{{ID: model.TestCaseID{TestMethodName: "m1"}}},
		Mutants: []model.Mutant{{ID: 1, Status: model.MutantSurvived}},
	}
	assert.Equal(t, actionRefineTests, decideAction(ts, 0.8))
}

func TestDecideActionGeneratesMutantsWhenScoreHighAndNonePending(t *testing.T) {
	ts := targetState{
		Target:   testTarget("X"),
		Tests:    []model.TestCase{{ID: model.TestCaseID{TestMethodName: "m1"}}},
		Mutants:  []model.Mutant{{ID: 1, Status: model.MutantKilled}},
		Coverage: model.CoverageSnapshot{Killed: 9, Survived: 1},
	}
	assert.Equal(t, actionGenerateMutants, decideAction(ts, 0.8))
}

func TestDecideActionRunsEvaluationWhenMutantsPending(t *testing.T) {
	ts := targetState{
		Target:  testTarget("X"),
		Tests:   []model.TestCase{{ID: model.TestCaseID{TestMethodName: "m1"}}},
		Mutants: []model.Mutant{{ID: 1, Status: model.MutantPending}},
	}
	assert.Equal(t, actionRunEvaluation, decideAction(ts, 0.8))
}

func TestDecideActionAdvancesWhenNothingLeftToDo(t *testing.T) {
	ts := targetState{
		Target:   testTarget("X"),
		Tests:    []model.TestCase{{ID: model.TestCaseID{TestMethodName: "m1"}}},
		Mutants:  []model.Mutant{{ID: 1, Status: model.MutantKilled}},
		Coverage: model.CoverageSnapshot{Killed: 9, Survived: 1},
	}
	assert.Equal(t, actionAdvance, decideAction(ts, 0.99))
}

func TestQueueExhaustedTrueOnlyWhenEveryTargetAdvances(t *testing.T) {
	settled := targetState{
		Target:   testTarget("A"),
		Tests:    []model.TestCase{{ID: model.TestCaseID{TestMethodName: "m1"}}},
		Mutants:  []model.Mutant{{ID: 1, Status: model.MutantKilled}},
		Coverage: model.CoverageSnapshot{Killed: 9, Survived: 1},
	}
	unsettled := targetState{Target: testTarget("B")}

	assert.True(t, queueExhausted([]targetState{settled}, 0.99))
	assert.False(t, queueExhausted([]targetState{settled, unsettled}, 0.99))
}

func TestOldestSurvivingMutantsOrderedByID(t *testing.T) {
	ts := targetState{Mutants: []model.Mutant{
		{ID: 5, Status: model.MutantSurvived},
		{ID: 2, Status: model.MutantSurvived},
		{ID: 9, Status: model.MutantKilled},
	}}
	out := oldestSurvivingMutants(ts)
	assert.Equal(t, []int64{2, 5}, []int64{out[0].ID, out[1].ID})
}
