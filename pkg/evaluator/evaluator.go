// Package evaluator runs the baseline check and per-mutant compile/test
// cycle described in spec.md §4.4, turning build tool exit codes into
// Mutant status transitions and per-round coverage snapshots.
package evaluator

import (
	"context"
	"strings"

	"mutaforge/pkg/builddriver"
	"mutaforge/pkg/errkind"
	"mutaforge/pkg/model"
	"mutaforge/pkg/sandbox"
)

// buildRunner is the subset of *builddriver.Driver the evaluator needs,
// narrowed so tests can substitute a fake without an exec seam.
type buildRunner interface {
	Compile(ctx context.Context, path string) builddriver.Result
	CompileTests(ctx context.Context, path string) builddriver.Result
	RunTests(ctx context.Context, path string) builddriver.Result
	RunTestsWithCoverage(ctx context.Context, path string) builddriver.CoverageResult
}

// sandboxProvisioner is the subset of *sandbox.Manager the evaluator needs.
type sandboxProvisioner interface {
	WorkspacePath() string
	AcquireTargetSandbox(ctx context.Context, mutantID int64, patch model.Patch) (*sandbox.TargetSandbox, error)
	Release(ctx context.Context, ts *sandbox.TargetSandbox) error
}

// Evaluator drives the Mutation Evaluator component.
type Evaluator struct {
	sandboxes sandboxProvisioner
	driver    buildRunner
}

// New constructs an Evaluator over a sandbox manager and build driver.
func New(sandboxes sandboxProvisioner, driver buildRunner) *Evaluator {
	return &Evaluator{sandboxes: sandboxes, driver: driver}
}

// Result pairs the status a single compile/test cycle assigned to a mutant
// with the append-only run record describing that cycle.
type Result struct {
	Mutant model.Mutant
	Run    model.EvaluationRun
}

// BaselineCheck runs the workspace sandbox's current test suite before any
// mutant is evaluated (spec.md §4.4 step 1). ok is false when the existing
// test suite does not pass on unmutated code, in which case the caller must
// abort the evaluation cycle for this target as evaluation_unreliable
// rather than attribute failures to any mutant.
func (e *Evaluator) BaselineCheck(ctx context.Context) (ok bool, err error) {
	r := e.driver.RunTests(ctx, e.sandboxes.WorkspacePath())
	return r.Success, nil
}

// EvaluateTarget evaluates mutants in FIFO order against a single target,
// retrying an evaluation_error result once before giving up and recording
// unknown (spec.md §4.4 step 2e). Evaluation stops early, returning the
// results gathered so far, if ctx is cancelled between mutants.
func (e *Evaluator) EvaluateTarget(ctx context.Context, mutants []model.Mutant) ([]Result, error) {
	ok, err := e.BaselineCheck(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errkind.New(errkind.TestFailed, "evaluation_unreliable: baseline test suite failed on unmutated code")
	}

	results := make([]Result, 0, len(mutants))
	for _, m := range mutants {
		if err := ctx.Err(); err != nil {
			return results, nil
		}

		status, run := e.evaluateOnce(ctx, m)
		if status == model.MutantEvaluationError {
			status, run = e.evaluateOnce(ctx, m)
			if status == model.MutantEvaluationError {
				status = model.MutantUnknown
				run.Result = model.MutantUnknown
			}
		}

		m.Status = status
		m.Rounds++
		results = append(results, Result{Mutant: m, Run: run})
	}
	return results, nil
}

// evaluateOnce acquires a target sandbox with the mutant's patch applied,
// compiles, compiles tests, runs tests, and classifies the outcome
// (spec.md §4.4 step 2a-2d). The target sandbox is always released before
// returning, including on every failure path.
func (e *Evaluator) evaluateOnce(ctx context.Context, m model.Mutant) (model.MutantStatus, model.EvaluationRun) {
	ts, err := e.sandboxes.AcquireTargetSandbox(ctx, m.ID, m.Patch)
	if err != nil {
		return model.MutantInvalid, model.EvaluationRun{MutantID: m.ID, Result: model.MutantInvalid}
	}
	defer e.sandboxes.Release(ctx, ts)

	if r := e.driver.Compile(ctx, ts.Path); !r.Success {
		return model.MutantInvalid, runFrom(m.ID, ts.Path, r, model.MutantInvalid)
	}
	if r := e.driver.CompileTests(ctx, ts.Path); !r.Success {
		return model.MutantInvalid, runFrom(m.ID, ts.Path, r, model.MutantInvalid)
	}

	r := e.driver.RunTests(ctx, ts.Path)
	status := classify(r)
	return status, runFrom(m.ID, ts.Path, r, status)
}

// classify turns a RunTests result into killed, survived or
// evaluation_error. Surefire always prints a "Tests run:" summary line once
// it actually executes the suite; its absence means the failure happened
// before or outside test execution (timeout, OOM, broken harness) rather
// than a mutant being caught by a failing assertion.
func classify(r builddriver.Result) model.MutantStatus {
	if r.Success {
		return model.MutantSurvived
	}
	if strings.Contains(r.Stdout, "Tests run:") {
		return model.MutantKilled
	}
	return model.MutantEvaluationError
}

// runFrom builds the append-only Evaluation Run record for one compile/test
// cycle (spec.md §3: outcomes, wall time, exit code). path is the sandbox
// RunTests executed in, read back for the per-test Surefire reports it left
// behind; a failure to read them (e.g. the cycle never reached the test
// phase, as on a compile failure) yields an empty Outcomes map rather than
// failing the run record.
func runFrom(mutantID int64, path string, r builddriver.Result, status model.MutantStatus) model.EvaluationRun {
	outcomes, err := ParseTestOutcomes(surefireReportsDir(path))
	if err != nil {
		outcomes = map[string]model.TestOutcome{}
	}
	return model.EvaluationRun{
		MutantID: mutantID,
		Outcomes: outcomes,
		WallTime: r.WallTime,
		ExitCode: r.ExitCode,
		Result:   status,
	}
}

// MeasureCoverage runs the workspace sandbox's test suite with coverage
// instrumentation and parses the resulting report, the line/branch inputs
// to UpdateCoverage (spec.md §4.4 step 3).
func (e *Evaluator) MeasureCoverage(ctx context.Context) (lineCoverage, branchCoverage float64, err error) {
	cr := e.driver.RunTestsWithCoverage(ctx, e.sandboxes.WorkspacePath())
	if !cr.Success {
		if cr.Err != nil {
			return 0, 0, cr.Err
		}
		return 0, 0, errkind.New(errkind.TestFailed, "coverage run failed")
	}
	return ParseCoverage(cr.CoverageReportPath)
}

// UpdateCoverage recomputes a CoverageSnapshot for round from the full set
// of a target's mutants, excluding invalid/evaluation_error/unknown from
// the mutation-score denominator (spec.md §4.4 step 3, model.CoverageSnapshot.MutationScore).
func UpdateCoverage(target model.TargetID, round int, mutants []model.Mutant, lineCoverage, branchCoverage float64, testsCount int) model.CoverageSnapshot {
	snap := model.CoverageSnapshot{
		Target:         target,
		Round:          round,
		LineCoverage:   lineCoverage,
		BranchCoverage: branchCoverage,
		TestsCount:     testsCount,
	}
	for _, m := range mutants {
		switch m.Status {
		case model.MutantKilled:
			snap.Killed++
		case model.MutantSurvived:
			snap.Survived++
		}
	}
	return snap
}
