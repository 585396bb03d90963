package planner

import (
	"context"

	"mutaforge/pkg/evaluator"
	"mutaforge/pkg/knowledge"
	"mutaforge/pkg/llm"
	"mutaforge/pkg/model"
	"mutaforge/pkg/prompt"
	"mutaforge/pkg/store"
)

// targetRepo is the subset of *store.TargetRepo the planner needs.
type targetRepo interface {
	Upsert(ctx context.Context, t model.Target) error
	List(ctx context.Context) ([]model.Target, error)
}

// testRepo is the subset of *store.TestCaseRepo the planner needs.
type testRepo interface {
	Upsert(ctx context.Context, tc model.TestCase) error
	ListForTarget(ctx context.Context, id model.TargetID) ([]model.TestCase, error)
}

// mutantRepo is the subset of *store.MutantRepo the planner needs.
type mutantRepo interface {
	Insert(ctx context.Context, m model.Mutant) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status model.MutantStatus) error
	ListForTarget(ctx context.Context, id model.TargetID) ([]model.Mutant, error)
}

// runRepo is the subset of *store.RunRepo the planner needs.
type runRepo interface {
	InsertRun(ctx context.Context, run model.EvaluationRun) (int64, error)
	UpsertCoverage(ctx context.Context, snap model.CoverageSnapshot) error
	LatestCoverage(ctx context.Context, id model.TargetID) (model.CoverageSnapshot, bool, error)
}

// budgetRepo is the subset of *store.BudgetRepo the planner needs.
type budgetRepo interface {
	Get(ctx context.Context) (model.BudgetCounter, error)
	Save(ctx context.Context, b model.BudgetCounter) error
}

// checkpointRepo is the subset of *store.CheckpointRepo the planner needs.
type checkpointRepo interface {
	Save(ctx context.Context, savedAt int64, cp store.Checkpoint) error
	Load(ctx context.Context) (store.Checkpoint, bool, error)
}

// knowledgeRetriever is the subset of *knowledge.KnowledgeBase the planner
// needs, matched structurally so a nil interface value (knowledge disabled)
// is the only special case retrieval helpers must handle.
type knowledgeRetriever interface {
	Retrieve(ctx context.Context, queryText string, filters knowledge.Filters, k int) ([]knowledge.Chunk, error)
}

// llmGenerator is the subset of llm.Client the planner needs.
type llmGenerator interface {
	Generate(ctx context.Context, input llm.GenerateInput) ([]llm.Chunk, error)
}

// mutantEvaluator is the subset of *evaluator.Evaluator the planner needs.
type mutantEvaluator interface {
	BaselineCheck(ctx context.Context) (bool, error)
	EvaluateTarget(ctx context.Context, mutants []model.Mutant) ([]evaluator.Result, error)
	MeasureCoverage(ctx context.Context) (lineCoverage, branchCoverage float64, err error)
}

// promptBuilder is the subset of *prompt.Builder the planner needs.
type promptBuilder interface {
	BuildTestGenMessages(role prompt.Role, in prompt.TestGenInput) []llm.ConversationMessage
	BuildMutantGenMessages(role prompt.Role, in prompt.MutantGenInput) []llm.ConversationMessage
}

// toRetrievedChunks adapts knowledge.Chunk rows into the prompt package's
// RetrievedChunk shape.
func toRetrievedChunks(chunks []knowledge.Chunk) []prompt.RetrievedChunk {
	out := make([]prompt.RetrievedChunk, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, prompt.RetrievedChunk{Kind: string(c.Kind), Content: c.Content, Tags: c.Tags})
	}
	return out
}

// retrieveContracts fetches contract-kind context for a target, returning
// nil silently when the knowledge base is disabled or retrieval fails:
// retrieval is best-effort context enrichment, never a hard dependency
// (spec.md §4.1).
func (p *Planner) retrieveContracts(ctx context.Context, target model.Target, k int) []prompt.RetrievedChunk {
	if p.kb == nil {
		return nil
	}
	chunks, err := p.kb.Retrieve(ctx, target.Signature, knowledge.Filters{Kind: knowledge.KindContract, TargetClass: target.ID.ClassFQN}, k)
	if err != nil {
		return nil
	}
	return toRetrievedChunks(chunks)
}

// retrieveBugReports fetches bug-report-kind context for a target, with the
// same best-effort semantics as retrieveContracts.
func (p *Planner) retrieveBugReports(ctx context.Context, target model.Target, k int) []prompt.RetrievedChunk {
	if p.kb == nil {
		return nil
	}
	chunks, err := p.kb.Retrieve(ctx, target.Signature, knowledge.Filters{Kind: knowledge.KindBugReport, TargetClass: target.ID.ClassFQN}, k)
	if err != nil {
		return nil
	}
	return toRetrievedChunks(chunks)
}

func existingTestNames(tests []model.TestCase) []string {
	out := make([]string, 0, len(tests))
	for _, t := range tests {
		out = append(out, t.ID.TestMethodName)
	}
	return out
}

func existingPatches(mutants []model.Mutant) []model.Patch {
	out := make([]model.Patch, 0, len(mutants))
	for _, m := range mutants {
		out = append(out, m.Patch)
	}
	return out
}

// generateTests drives gen_tests_initial or gen_tests_refine depending on
// whether surviving mutants are present, writes the resulting methods back
// through the write-back discipline, and persists the new TestCase rows on
// success (spec.md §4.5 generate_tests/refine_tests).
func (p *Planner) generateTests(ctx context.Context, ts targetState, surviving []model.Mutant) error {
	role := prompt.RoleGenTestsInitial
	if len(surviving) > 0 {
		role = prompt.RoleGenTestsRefine
	}

	in := prompt.TestGenInput{
		Target:            ts.Target,
		ContractChunks:    p.retrieveContracts(ctx, ts.Target, p.kbCfg.TopKContracts),
		BugReportChunks:   p.retrieveBugReports(ctx, ts.Target, p.kbCfg.TopKBugs),
		ExistingTestNames: existingTestNames(ts.Tests),
		SurvivingMutants:  surviving,
	}
	messages := p.prompts.BuildTestGenMessages(role, in)

	chunks, err := p.llm.Generate(ctx, llm.GenerateInput{Model: p.llmCfg.Model, Messages: messages, Temperature: p.llmCfg.Temperature})
	if err != nil {
		return err
	}
	p.budget.LLMCallsUsed++

	out, err := prompt.ParseTestGenResponse(chunks)
	if err != nil {
		return err
	}

	if err := p.writeback.apply(ctx, ts.Target, []string{out.SourceText}); err != nil {
		return err
	}

	origin := model.OriginInitial
	if len(surviving) > 0 {
		origin = model.RefineOrigin(surviving[0].ID)
	}
	for _, name := range out.MethodNames {
		tc := model.TestCase{
			ID:         model.TestCaseID{Target: ts.Target.ID, TestClassName: model.DerivedTestClassName(ts.Target.ID), TestMethodName: name},
			SourceText: out.SourceText,
			Origin:     origin,
			Status:     model.TestActive,
		}
		if err := p.tests.Upsert(ctx, tc); err != nil {
			return err
		}
	}
	return nil
}

// generateMutants drives gen_mutants_initial, persists each proposed patch
// as a new pending Mutant row (spec.md §4.5 generate_mutants).
func (p *Planner) generateMutants(ctx context.Context, ts targetState) error {
	in := prompt.MutantGenInput{
		Target:          ts.Target,
		ContractChunks:  p.retrieveContracts(ctx, ts.Target, p.kbCfg.TopKContracts),
		BugReportChunks: p.retrieveBugReports(ctx, ts.Target, p.kbCfg.TopKBugs),
		ExistingPatches: existingPatches(ts.Mutants),
	}
	messages := p.prompts.BuildMutantGenMessages(prompt.RoleGenMutantsInitial, in)

	chunks, err := p.llm.Generate(ctx, llm.GenerateInput{Model: p.llmCfg.Model, Messages: messages, Temperature: p.llmCfg.Temperature})
	if err != nil {
		return err
	}
	p.budget.LLMCallsUsed++

	out, err := prompt.ParseMutantGenResponse(chunks, ts.Target)
	if err != nil {
		return err
	}

	for _, pm := range out.Patches {
		m := model.Mutant{Target: ts.Target.ID, Patch: pm.Patch, Tag: pm.Tag, Status: model.MutantPending, CreatedAt: p.clock()}
		if _, err := p.mutants.Insert(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// runEvaluation evaluates every pending/valid mutant for the target,
// persists each run and resulting status, then remeasures and persists
// coverage (spec.md §4.5 run_evaluation, spec.md §4.4).
func (p *Planner) runEvaluation(ctx context.Context, ts targetState, round int) error {
	pending := ts.pendingMutants()
	results, err := p.evaluator.EvaluateTarget(ctx, pending)
	if err != nil {
		return err
	}

	for _, r := range results {
		if _, err := p.runs.InsertRun(ctx, r.Run); err != nil {
			return err
		}
		if err := p.mutants.UpdateStatus(ctx, r.Mutant.ID, r.Mutant.Status); err != nil {
			return err
		}
	}

	lineCov, branchCov, err := p.evaluator.MeasureCoverage(ctx)
	if err != nil {
		return err
	}

	all, err := p.mutantsForTarget(ctx, ts.Target.ID)
	if err != nil {
		return err
	}
	snap := evaluator.UpdateCoverage(ts.Target.ID, round, all, lineCov, branchCov, len(ts.Tests))
	return p.runs.UpsertCoverage(ctx, snap)
}

func (p *Planner) mutantsForTarget(ctx context.Context, id model.TargetID) ([]model.Mutant, error) {
	return p.mutants.ListForTarget(ctx, id)
}
