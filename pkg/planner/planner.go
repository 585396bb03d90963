package planner

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"mutaforge/pkg/config"
	"mutaforge/pkg/errkind"
	"mutaforge/pkg/model"
)

// Deps bundles every collaborator the Planner needs into a single struct
// passed to New, mirroring the teacher's SubAgentDeps bundling pattern
// (pkg/agent/orchestrator/runner.go).
type Deps struct {
	Cfg        config.AgentConfig
	LLMCfg     config.LLMConfig
	Knowledge  config.KnowledgeConfig
	Targets    targetRepo
	Tests      testRepo
	Mutants    mutantRepo
	Runs       runRepo
	Budget     budgetRepo
	Checkpoint checkpointRepo
	Evaluator  mutantEvaluator
	Writeback  *WriteBack
	Prompts    promptBuilder
	LLM        llmGenerator
	KB         knowledgeRetriever // nil when the knowledge base is disabled
}

// Planner drives the round loop described in spec.md §4.5: select a
// Target, decide its action, execute it, then check the global stop
// conditions — until one of them fires or the context is cancelled.
type Planner struct {
	cfg       config.AgentConfig
	llmCfg    config.LLMConfig
	kbCfg     config.KnowledgeConfig
	targets   targetRepo
	tests     testRepo
	mutants   mutantRepo
	runs      runRepo
	budgetR   budgetRepo
	ckpt      checkpointRepo
	evaluator mutantEvaluator
	writeback *WriteBack
	prompts   promptBuilder
	llm       llmGenerator
	kb        knowledgeRetriever

	budget      model.BudgetCounter
	noopStreaks map[string]int
	roundsSpent map[string]int
	clock       func() int64 // unix seconds; overridable in tests
}

// New constructs a Planner from its bundled dependencies.
func New(d Deps) *Planner {
	return &Planner{
		cfg:         d.Cfg,
		llmCfg:      d.LLMCfg,
		kbCfg:       d.Knowledge,
		targets:     d.Targets,
		tests:       d.Tests,
		mutants:     d.Mutants,
		runs:        d.Runs,
		budgetR:     d.Budget,
		ckpt:        d.Checkpoint,
		evaluator:   d.Evaluator,
		writeback:   d.Writeback,
		prompts:     d.Prompts,
		llm:         d.LLM,
		kb:          d.KB,
		noopStreaks: make(map[string]int),
		roundsSpent: make(map[string]int),
		clock:       func() int64 { return time.Now().Unix() },
	}
}

// Run executes rounds until a global stop condition fires, the context is
// cancelled, or a fatal error occurs. If resume is true, the budget counter
// (and only the budget counter — see buildCheckpoint) is seeded from the
// last saved checkpoint instead of starting fresh.
func (p *Planner) Run(ctx context.Context, resume bool) (stopReason, error) {
	if resume {
		if cp, ok, err := p.ckpt.Load(ctx); err != nil {
			return stopNone, err
		} else if ok {
			p.budget = cp.Budget
		}
	} else if b, err := p.budgetR.Get(ctx); err == nil {
		p.budget = b
	}

	for {
		if err := ctx.Err(); err != nil {
			return stopCancelled, nil
		}

		states, err := p.loadStates(ctx)
		if err != nil {
			return stopNone, err
		}

		before := coverageByTarget(states)

		reason := checkGlobalStop(p.cfg, p.budget, states, p.cfg.HighMutationThreshold)
		if reason != stopNone {
			return reason, nil
		}

		ts, ok := selectTarget(states, p.noopStreaks, p.cfg.SelectionWeights)
		if !ok {
			return stopQueueExhausted, nil
		}

		act := decideAction(ts, p.cfg.HighMutationThreshold)
		key := ts.Target.ID.String()

		err = p.executeAction(ctx, ts, act, p.budget.RoundsUsed+1)
		if err != nil {
			if isEvaluationUnreliable(err) {
				return stopEvaluationUnreliable, err
			}
			if k, ok := errkind.As(err); ok && k.Fatal() {
				return stopNone, err
			}
			slog.Error("planner: action failed, treating as no-op", "target", key, "action", act, "error", err)
			act = actionAdvance
		}

		if act == actionAdvance {
			p.noopStreaks[key]++
		} else {
			p.noopStreaks[key] = 0
		}
		p.roundsSpent[key]++

		p.budget.RoundsUsed++

		after, err := p.loadStates(ctx)
		if err != nil {
			return stopNone, err
		}
		if improved(before, coverageByTarget(after)) {
			p.budget.LastImprovementRnd = p.budget.RoundsUsed
		}

		if err := p.saveCheckpoint(ctx, after); err != nil {
			return stopNone, err
		}
	}
}

// executeAction dispatches a decided action to its implementation.
func (p *Planner) executeAction(ctx context.Context, ts targetState, act action, round int) error {
	switch act {
	case actionGenerateTests:
		return p.generateTests(ctx, ts, nil)
	case actionRefineTests:
		return p.generateTests(ctx, ts, oldestSurvivingMutants(ts))
	case actionGenerateMutants:
		return p.generateMutants(ctx, ts)
	case actionRunEvaluation:
		return p.runEvaluation(ctx, ts, round)
	default:
		return nil
	}
}

// loadStates reconstructs every Target's targetState from the Data Store,
// the start-of-round reload spec.md §5 requires so decisions never act on
// stale in-memory data.
func (p *Planner) loadStates(ctx context.Context) ([]targetState, error) {
	targets, err := p.targets.List(ctx)
	if err != nil {
		return nil, err
	}

	states := make([]targetState, 0, len(targets))
	for _, t := range targets {
		tests, err := p.tests.ListForTarget(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		mutants, err := p.mutants.ListForTarget(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		cov, _, err := p.runs.LatestCoverage(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		states = append(states, targetState{
			Target: t, Tests: tests, Mutants: mutants, Coverage: cov,
			RoundsSpent: p.roundsSpent[t.ID.String()],
		})
	}
	return states, nil
}

func coverageByTarget(states []targetState) map[string]model.CoverageSnapshot {
	out := make(map[string]model.CoverageSnapshot, len(states))
	for _, s := range states {
		out[s.Target.ID.String()] = s.Coverage
	}
	return out
}

func (p *Planner) saveCheckpoint(ctx context.Context, states []targetState) error {
	if err := p.budgetR.Save(ctx, p.budget); err != nil {
		return err
	}
	cp := buildCheckpoint(p.budget.RoundsUsed, states, p.budget)
	return p.ckpt.Save(ctx, time.Now().Unix(), cp)
}

// isEvaluationUnreliable reports whether err is the baseline-check failure
// BaselineCheck/EvaluateTarget signal, which must abort the entire run
// (exit code 3) rather than be swallowed as an ordinary per-target no-op.
func isEvaluationUnreliable(err error) bool {
	var e *errkind.Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == errkind.TestFailed && strings.HasPrefix(e.Detail, "evaluation_unreliable")
}
