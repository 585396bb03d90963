package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mutaforge/pkg/model"
)

// fakeEmbedder returns a one-hot-ish vector keyed by a seed word's presence,
// good enough to make cosine similarity discriminate between topics in tests
// without a real embedding model.
type fakeEmbedder struct {
	vocab []string
	fail  bool
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.fail {
		return nil, assertError{}
	}
	vec := make([]float32, len(f.vocab))
	for i, w := range f.vocab {
		if containsWord(text, w) {
			vec[i] = 1
		}
	}
	return vec, nil
}

type assertError struct{}

func (assertError) Error() string { return "embedding failed" }

func containsWord(text, word string) bool {
	for i := 0; i+len(word) <= len(text); i++ {
		if text[i:i+len(word)] == word {
			return true
		}
	}
	return false
}

func newTestKB(t *testing.T, embedder Embedder) *KnowledgeBase {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kb.db")
	kb, err := Open(path, embedder, "run-1", 0.7, 400)
	require.NoError(t, err)
	t.Cleanup(func() { kb.Close() })
	return kb
}

func TestIndexSourceInsertsOneChunkPerMethodPlusClassChunk(t *testing.T) {
	kb := newTestKB(t, &fakeEmbedder{vocab: []string{"resize", "helper"}})
	target := model.Target{ID: model.TargetID{ClassFQN: "com.example.Widget"}}
	err := kb.IndexSource(context.Background(), target, model.AnalyzerFacts{HasBoundaryChecks: true}, sampleClass)
	require.NoError(t, err)

	got, err := kb.st.candidates(context.Background(), "run-1", Filters{Kind: KindContract})
	require.NoError(t, err)
	assert.Len(t, got, 4) // class chunk + constructor + resize + helper
	for _, c := range got {
		assert.Equal(t, "com.example.Widget", c.TargetClass)
	}
}

func TestIndexBugReportsAppliesTagsFromFrontMatterAndSection(t *testing.T) {
	kb := newTestKB(t, nil)
	path := filepath.Join(t.TempDir(), "bug.md")
	require.NoError(t, os.WriteFile(path, []byte(sampleBugReport), 0o644))

	require.NoError(t, kb.IndexBugReports(context.Background(), []string{path}))

	got, err := kb.st.candidates(context.Background(), "run-1", Filters{Kind: KindBugReport})
	require.NoError(t, err)
	require.NotEmpty(t, got)
	for _, c := range got {
		assert.True(t, c.EmbeddingMissing, "nil embedder must mark chunks embedding_missing")
		assert.Contains(t, c.Tags, "race-condition")
	}
}

func TestRetrieveRanksSemanticMatchesAboveUnrelatedChunks(t *testing.T) {
	kb := newTestKB(t, &fakeEmbedder{vocab: []string{"resize", "unrelated"}})
	ctx := context.Background()
	target := model.Target{ID: model.TargetID{ClassFQN: "com.example.Widget"}}
	require.NoError(t, kb.IndexSource(ctx, target, model.AnalyzerFacts{}, sampleClass))

	results, err := kb.Retrieve(ctx, "resize", Filters{Kind: KindContract}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Content, "resize")
}

func TestRetrieveFallsBackToKeywordOnlyWithoutEmbedder(t *testing.T) {
	kb := newTestKB(t, nil)
	ctx := context.Background()
	target := model.Target{ID: model.TargetID{ClassFQN: "com.example.Widget"}}
	require.NoError(t, kb.IndexSource(ctx, target, model.AnalyzerFacts{}, sampleClass))

	results, err := kb.Retrieve(ctx, "IllegalArgumentException", Filters{Kind: KindContract}, 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Content, "IllegalArgumentException")
}

func TestClearNamespaceRemovesOnlyThatNamespace(t *testing.T) {
	kb := newTestKB(t, nil)
	ctx := context.Background()
	target := model.Target{ID: model.TargetID{ClassFQN: "com.example.Widget"}}
	require.NoError(t, kb.IndexSource(ctx, target, model.AnalyzerFacts{}, sampleClass))

	require.NoError(t, kb.ClearNamespace(ctx, "run-1"))
	results, err := kb.Retrieve(ctx, "resize", Filters{}, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}
