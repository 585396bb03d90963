package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mutaforge/pkg/errkind"
	"mutaforge/pkg/llm"
	"mutaforge/pkg/model"
)

func textChunks(s string) []llm.Chunk {
	return []llm.Chunk{&llm.TextChunk{Content: s}}
}

func TestParseTestGenResponseExtractsMethodNames(t *testing.T) {
	out, err := ParseTestGenResponse(textChunks(`
@Test
void resize_shrinksWidget() {
    assertTrue(true);
}

@Test
void resize_rejectsNegative() {
    assertThrows(IllegalArgumentException.class, () -> {});
}
`))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"resize_shrinksWidget", "resize_rejectsNegative"}, out.MethodNames)
}

func TestParseTestGenResponseStripsCodeFence(t *testing.T) {
	out, err := ParseTestGenResponse(textChunks("```java\n@Test\nvoid foo_bar() {}\n```"))
	require.NoError(t, err)
	assert.Equal(t, []string{"foo_bar"}, out.MethodNames)
}

func TestParseTestGenResponseRejectsEmptyResponse(t *testing.T) {
	_, err := ParseTestGenResponse(textChunks(""))
	require.Error(t, err)
	kind, _ := errkind.As(err)
	assert.Equal(t, errkind.LLMMalformedResponse, kind)
}

func TestParseTestGenResponseRejectsNoTestMethod(t *testing.T) {
	_, err := ParseTestGenResponse(textChunks("just some prose, no tests here"))
	require.Error(t, err)
}

func targetForPatchTests() model.Target {
	return model.Target{
		SourceFile: "com/example/Widget.java",
		LineStart:  10,
		LineEnd:    20,
	}
}

func TestParseMutantGenResponseAcceptsValidPatches(t *testing.T) {
	out, err := ParseMutantGenResponse(textChunks(`[
		{"line_start": 12, "line_end": 12, "original": "w > 0", "mutated": "w >= 0", "tag": "boundary_flipped"}
	]`), targetForPatchTests())
	require.NoError(t, err)
	require.Len(t, out.Patches, 1)
	assert.Equal(t, model.TagBoundaryFlipped, out.Patches[0].Tag)
	assert.Equal(t, "com/example/Widget.java", out.Patches[0].Patch.FilePath)
}

func TestParseMutantGenResponseRejectsOutOfRangeLines(t *testing.T) {
	_, err := ParseMutantGenResponse(textChunks(`[
		{"line_start": 5, "line_end": 5, "original": "a", "mutated": "b", "tag": "other"}
	]`), targetForPatchTests())
	require.Error(t, err)
	kind, _ := errkind.As(err)
	assert.Equal(t, errkind.PatchOutOfBounds, kind)
}

func TestParseMutantGenResponseRejectsIdenticalMutation(t *testing.T) {
	_, err := ParseMutantGenResponse(textChunks(`[
		{"line_start": 12, "line_end": 12, "original": "same", "mutated": "same", "tag": "other"}
	]`), targetForPatchTests())
	require.Error(t, err)
	kind, _ := errkind.As(err)
	assert.Equal(t, errkind.LLMMalformedResponse, kind)
}

func TestParseMutantGenResponseFallsBackToOtherForUnknownTag(t *testing.T) {
	out, err := ParseMutantGenResponse(textChunks(`[
		{"line_start": 12, "line_end": 12, "original": "a", "mutated": "b", "tag": "something_weird"}
	]`), targetForPatchTests())
	require.NoError(t, err)
	assert.Equal(t, model.TagOther, out.Patches[0].Tag)
}

func TestParseMutantGenResponseRejectsInvalidJSON(t *testing.T) {
	_, err := ParseMutantGenResponse(textChunks("not json at all"), targetForPatchTests())
	require.Error(t, err)
	kind, _ := errkind.As(err)
	assert.Equal(t, errkind.LLMMalformedResponse, kind)
}

func TestParseMutantGenResponseRejectsEmptyBatch(t *testing.T) {
	_, err := ParseMutantGenResponse(textChunks("[]"), targetForPatchTests())
	require.Error(t, err)
}
