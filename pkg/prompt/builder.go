package prompt

import (
	"fmt"
	"strings"

	"mutaforge/pkg/llm"
	"mutaforge/pkg/model"
)

// Builder renders all prompt text for the four prompt roles. Stateless —
// every input comes from parameters, mirroring the teacher's PromptBuilder.
type Builder struct{}

// NewBuilder constructs a Builder.
func NewBuilder() *Builder { return &Builder{} }

func renderTargetSection(t model.Target) string {
	collab := "none"
	if len(t.Collaborators) > 0 {
		collab = strings.Join(t.Collaborators, ", ")
	}
	return fmt.Sprintf(targetSectionTemplate, t.Signature, t.Javadoc, t.LineStart, t.LineEnd, collab, t.SourceText)
}

func renderChunks(header string, chunks []RetrievedChunk) string {
	if len(chunks) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(header)
	for _, c := range chunks {
		b.WriteString("\n- ")
		if len(c.Tags) > 0 {
			b.WriteString("[" + strings.Join(c.Tags, ",") + "] ")
		}
		b.WriteString(c.Content)
	}
	return b.String()
}

// BuildTestGenMessages renders the conversation for gen_tests_initial (no
// surviving mutants) or gen_tests_refine (surviving mutants present).
func (b *Builder) BuildTestGenMessages(role Role, in TestGenInput) []llm.ConversationMessage {
	system := testGenSystemPrompt
	if role == RoleGenTestsRefine {
		system = testRefineSystemPrompt
	}

	var sections []string
	sections = append(sections, renderTargetSection(in.Target))
	if s := renderChunks(contractSectionHeader, in.ContractChunks); s != "" {
		sections = append(sections, s)
	}
	if s := renderChunks(bugReportSectionHeader, in.BugReportChunks); s != "" {
		sections = append(sections, s)
	}
	if len(in.ExistingTestNames) > 0 {
		sections = append(sections, "## Existing Test Methods (do not duplicate)\n"+strings.Join(in.ExistingTestNames, ", "))
	}
	if role == RoleGenTestsRefine {
		sections = append(sections, renderSurvivingMutants(in.SurvivingMutants))
	}

	return []llm.ConversationMessage{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: strings.Join(sections, "\n\n"+separator+"\n\n")},
	}
}

// BuildMutantGenMessages renders the conversation for gen_mutants_initial or
// gen_mutants_refine.
func (b *Builder) BuildMutantGenMessages(role Role, in MutantGenInput) []llm.ConversationMessage {
	system := mutantGenSystemPrompt
	if role == RoleGenMutantsRefine {
		system = mutantRefineSystemPrompt
	}

	var sections []string
	sections = append(sections, renderTargetSection(in.Target))
	if s := renderChunks(contractSectionHeader, in.ContractChunks); s != "" {
		sections = append(sections, s)
	}
	if s := renderChunks(bugReportSectionHeader, in.BugReportChunks); s != "" {
		sections = append(sections, s)
	}
	if len(in.ExistingPatches) > 0 {
		var b2 strings.Builder
		b2.WriteString("## Already-Proposed Mutants (propose distinct ones)\n")
		for _, p := range in.ExistingPatches {
			fmt.Fprintf(&b2, "- lines %d-%d: %q -> %q\n", p.LineStart, p.LineEnd, p.Original, p.Mutated)
		}
		sections = append(sections, b2.String())
	}

	return []llm.ConversationMessage{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: strings.Join(sections, "\n\n"+separator+"\n\n")},
	}
}

func renderSurvivingMutants(mutants []model.Mutant) string {
	var b strings.Builder
	b.WriteString("## Surviving Mutants To Kill\n")
	for _, m := range mutants {
		fmt.Fprintf(&b, "- [%s] lines %d-%d: %q -> %q\n", m.Tag, m.Patch.LineStart, m.Patch.LineEnd, m.Patch.Original, m.Patch.Mutated)
	}
	return b.String()
}
