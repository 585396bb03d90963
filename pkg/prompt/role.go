// Package prompt renders the finite set of typed prompt roles the Planner
// Agent invokes and validates their structured responses (spec.md §9
// REDESIGN FLAGS: enumerated roles replace reflective template dispatch).
package prompt

import "mutaforge/pkg/model"

// Role is one of the four prompt roles enumerated in spec.md: each has a
// fixed input shape and a fixed, validated output schema — never looked up
// by a dynamic template name.
type Role string

const (
	RoleGenTestsInitial   Role = "gen_tests_initial"
	RoleGenTestsRefine    Role = "gen_tests_refine"
	RoleGenMutantsInitial Role = "gen_mutants_initial"
	RoleGenMutantsRefine  Role = "gen_mutants_refine"
)

// RetrievedChunk is one piece of retrieval context injected into a prompt,
// mirroring the Knowledge Base's retrieve() return shape (spec.md §4.1).
type RetrievedChunk struct {
	Kind    string
	Content string
	Tags    []string
}

// TestGenInput is the typed input to gen_tests_initial and gen_tests_refine.
type TestGenInput struct {
	Target            model.Target
	ContractChunks    []RetrievedChunk
	BugReportChunks   []RetrievedChunk
	ExistingTestNames []string       // already-present @Test method names, to avoid collisions
	SurvivingMutants  []model.Mutant // non-empty only for gen_tests_refine
}

// TestGenOutput is the validated, typed output of a test-generation call:
// one rendered test-class source fragment containing the new @Test methods.
type TestGenOutput struct {
	SourceText  string
	MethodNames []string
}

// MutantGenInput is the typed input to gen_mutants_initial and
// gen_mutants_refine.
type MutantGenInput struct {
	Target          model.Target
	ContractChunks  []RetrievedChunk
	BugReportChunks []RetrievedChunk
	ExistingPatches []model.Patch // patches already proposed, to avoid duplicates
}

// MutantGenOutput is the validated, typed output of a mutant-generation
// call: a batch of proposed patches, each tagged with its semantic kind.
type MutantGenOutput struct {
	Patches []ProposedMutant
}

// ProposedMutant pairs a raw patch with its semantic tag, before a Mutant
// row (with an assigned ID) is created from it.
type ProposedMutant struct {
	Patch model.Patch
	Tag   model.SemanticTag
}
