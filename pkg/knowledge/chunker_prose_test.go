package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBugReport = `---
tags:
  - race-condition
---
## Problem Statement

The widget resize method drops updates when called concurrently from two threads.

## Reproduction

Call resize(1,1) and resize(2,2) from separate goroutines without synchronization.

## Tags

- mock
- validation
`

func TestChunkBugReportSplitsByHeadingAndTags(t *testing.T) {
	chunks := chunkBugReport(sampleBugReport, true, 400)
	require.NotEmpty(t, chunks)

	headings := map[string]bool{}
	for _, c := range chunks {
		headings[c.Heading] = true
		assert.ElementsMatch(t, []string{"race-condition", "mock", "validation"}, c.Tags)
	}
	assert.True(t, headings["Problem Statement"])
	assert.True(t, headings["Reproduction"])
	assert.False(t, headings["Tags"], "the Tags section itself must not be emitted as a retrievable chunk")
}

func TestChunkBugReportWindowizesLongSections(t *testing.T) {
	var long string
	for i := 0; i < 50; i++ {
		long += "This is paragraph content repeated many times to exceed the token budget.\n\n"
	}
	chunks := chunkBugReport("## Details\n\n"+long, true, 20)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.Equal(t, "Details", c.Heading)
	}
}

func TestChunkBugReportPlainTextHasNoHeadings(t *testing.T) {
	chunks := chunkBugReport("a plain-text bug report with no markdown headings at all", false, 400)
	require.Len(t, chunks, 1)
	assert.Equal(t, "", chunks[0].Heading)
}
