package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mutaforge/pkg/model"
)

func TestBuildCheckpointFlattensTargetStates(t *testing.T) {
	states := []targetState{
		{
			Target:  testTarget("A"),
			Tests:   []model.TestCase{{ID: model.TestCaseID{TestMethodName: "m1"}}},
			Mutants: []model.Mutant{{ID: 1, Status: model.MutantKilled}, {ID: 2, Status: model.MutantSurvived}},
		},
	}
	budget := model.BudgetCounter{RoundsUsed: 3, LLMCallsUsed: 7}

	cp := buildCheckpoint(3, states, budget)

	assert.Equal(t, 3, cp.Round)
	assert.Equal(t, budget, cp.Budget)
	assert.Len(t, cp.Targets, 1)
	assert.Len(t, cp.ActiveTests, 1)
	assert.Equal(t, model.MutantKilled, cp.MutantStatuses[1])
	assert.Equal(t, model.MutantSurvived, cp.MutantStatuses[2])
}
