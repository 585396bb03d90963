package prompt

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"mutaforge/pkg/errkind"
	"mutaforge/pkg/llm"
	"mutaforge/pkg/model"
)

// textOf extracts the concatenated TextChunk content from an LLM response,
// the only chunk type the typed output parsers read.
func textOf(chunks []llm.Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		if t, ok := c.(*llm.TextChunk); ok {
			b.WriteString(t.Content)
		}
	}
	return b.String()
}

var testMethodNamePattern = regexp.MustCompile(`(?m)void\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

// ParseTestGenResponse validates and extracts a TestGenOutput from the raw
// LLM response for gen_tests_initial/gen_tests_refine. Validation here is
// the schema check described in spec.md §9; structural Java validation
// against the target project happens afterward via the Analyzer Bridge.
func ParseTestGenResponse(chunks []llm.Chunk) (TestGenOutput, error) {
	text := strings.TrimSpace(stripCodeFence(textOf(chunks)))
	if text == "" {
		return TestGenOutput{}, errkind.New(errkind.LLMMalformedResponse, "test generation response was empty")
	}
	if !strings.Contains(text, "@Test") {
		return TestGenOutput{}, errkind.New(errkind.LLMMalformedResponse, "test generation response contained no @Test method")
	}

	matches := testMethodNamePattern.FindAllStringSubmatch(text, -1)
	var names []string
	for _, m := range matches {
		names = append(names, m[1])
	}
	if len(names) == 0 {
		return TestGenOutput{}, errkind.New(errkind.LLMMalformedResponse, "test generation response had no parseable method names")
	}

	return TestGenOutput{SourceText: text, MethodNames: names}, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}
	lines = lines[1:]
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

type wirePatch struct {
	LineStart int    `json:"line_start"`
	LineEnd   int    `json:"line_end"`
	Original  string `json:"original"`
	Mutated   string `json:"mutated"`
	Tag       string `json:"tag"`
}

var validTags = map[string]model.SemanticTag{
	string(model.TagNullCheckRemoved):   model.TagNullCheckRemoved,
	string(model.TagBoundaryFlipped):    model.TagBoundaryFlipped,
	string(model.TagReturnValueChanged): model.TagReturnValueChanged,
	string(model.TagOperatorSwapped):    model.TagOperatorSwapped,
	string(model.TagExceptionSwallowed): model.TagExceptionSwallowed,
	string(model.TagOffByOne):           model.TagOffByOne,
	string(model.TagOther):              model.TagOther,
}

// ParseMutantGenResponse validates and extracts a MutantGenOutput from the
// raw LLM response for gen_mutants_initial/gen_mutants_refine, checking
// every patch against spec.md §3's invariants before it is trusted further.
func ParseMutantGenResponse(chunks []llm.Chunk, target model.Target) (MutantGenOutput, error) {
	text := strings.TrimSpace(stripCodeFence(textOf(chunks)))
	if text == "" {
		return MutantGenOutput{}, errkind.New(errkind.LLMMalformedResponse, "mutant generation response was empty")
	}

	var wire []wirePatch
	if err := json.Unmarshal([]byte(text), &wire); err != nil {
		return MutantGenOutput{}, errkind.Wrap(errkind.LLMMalformedResponse, "mutant generation response was not valid JSON", err)
	}

	out := MutantGenOutput{}
	for i, w := range wire {
		if w.LineStart > w.LineEnd {
			return MutantGenOutput{}, errkind.New(errkind.PatchOutOfBounds,
				fmt.Sprintf("proposed mutant %d: line_start > line_end", i))
		}
		if !target.InLineRange(w.LineStart, w.LineEnd) {
			return MutantGenOutput{}, errkind.New(errkind.PatchOutOfBounds,
				fmt.Sprintf("proposed mutant %d: lines [%d,%d] outside target range [%d,%d]", i, w.LineStart, w.LineEnd, target.LineStart, target.LineEnd))
		}
		if w.Original == w.Mutated {
			return MutantGenOutput{}, errkind.New(errkind.LLMMalformedResponse,
				fmt.Sprintf("proposed mutant %d: mutated code identical to original", i))
		}
		tag, ok := validTags[w.Tag]
		if !ok {
			tag = model.TagOther
		}
		out.Patches = append(out.Patches, ProposedMutant{
			Patch: model.Patch{FilePath: target.SourceFile, LineStart: w.LineStart, LineEnd: w.LineEnd, Original: w.Original, Mutated: w.Mutated},
			Tag:   tag,
		})
	}

	if len(out.Patches) == 0 {
		return MutantGenOutput{}, errkind.New(errkind.LLMMalformedResponse, "mutant generation response proposed zero mutants")
	}
	return out, nil
}
