package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mutaforge/pkg/model"
)

func sampleTargetID() model.TargetID {
	return model.TargetID{ClassFQN: "com.example.Widget", MethodName: "resize", ParamTypes: []string{"int", "int"}}
}

func TestTargetRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	want := model.Target{
		ID:         sampleTargetID(),
		SourceFile: "com/example/Widget.java",
		LineStart:  10,
		LineEnd:    20,
		Signature:  "void resize(int, int)",
		Facts:      model.AnalyzerFacts{HasNullChecks: true, CyclomaticComplex: 3},
	}
	require.NoError(t, st.Targets.Upsert(ctx, want))

	got, err := st.Targets.Get(ctx, want.ID)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	list, err := st.Targets.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMutantLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.Targets.Upsert(ctx, model.Target{ID: sampleTargetID(), SourceFile: "x.java"}))

	id, err := st.Mutants.Insert(ctx, model.Mutant{
		Target: sampleTargetID(),
		Patch:  model.Patch{FilePath: "x.java", LineStart: 1, LineEnd: 1, Original: "a", Mutated: "b"},
		Tag:    model.TagBoundaryFlipped,
		Status: model.MutantPending,
	})
	require.NoError(t, err)
	assert.Positive(t, id)

	require.NoError(t, st.Mutants.UpdateStatus(ctx, id, model.MutantSurvived))

	counts, err := st.Mutants.CountByStatus(ctx, sampleTargetID())
	require.NoError(t, err)
	assert.Equal(t, 1, counts[model.MutantSurvived])
}

func TestBudgetCounterPersistsAcrossSaves(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	b, err := st.Budget.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.BudgetCounter{}, b)

	b.LLMCallsUsed = 42
	b.RoundsUsed = 3
	require.NoError(t, st.Budget.Save(ctx, b))

	got, err := st.Budget.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, b, got)
}

func TestCheckpointRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	cp := Checkpoint{
		Targets:        []model.Target{{ID: sampleTargetID(), SourceFile: "x.java"}},
		MutantStatuses: map[int64]model.MutantStatus{1: model.MutantSurvived},
		Budget:         model.BudgetCounter{LLMCallsUsed: 42},
		Round:          3,
	}
	require.NoError(t, st.Checkpoint.Save(ctx, 1000, cp))

	got, ok, err := st.Checkpoint.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, cp, got)
}

func TestCheckpointLoadWithoutSaveReportsNotOK(t *testing.T) {
	st := newTestStore(t)
	_, ok, err := st.Checkpoint.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}
