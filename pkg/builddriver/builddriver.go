// Package builddriver abstracts the external build system behind four
// operations (spec.md §4.3): compile, compile_tests, run_tests and
// run_tests_with_coverage against the target project's build tool.
//
// The exec seam mirrors go-gremlins/gremlins's Mutator.execContext: tests
// substitute a fake executor instead of invoking a real toolchain.
package builddriver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"mutaforge/pkg/errkind"
)

type execContext = func(ctx context.Context, name string, args ...string) *exec.Cmd

// Result is the structured record every bridge operation returns
// (spec.md §4.3: {success, exit_code, stdout, error?}), plus the wall time
// the invocation took, the other half of the Evaluation Run entity's
// {outcomes, wall_time, exit_code} triad (spec.md §3).
type Result struct {
	Success  bool
	ExitCode int
	Stdout   string
	WallTime float64 // seconds
	Err      error
}

// CoverageResult additionally carries the path to the coverage report the
// build tool produced.
type CoverageResult struct {
	Result
	CoverageReportPath string
}

// Driver locates and drives the external build tool.
type Driver struct {
	toolPath    string
	execContext execContext
	timeout     time.Duration
}

// Option customizes a Driver, following the teacher/gremlins functional
// option convention.
type Option func(*Driver)

// WithExecContext overrides the default exec.CommandContext, the seam unit
// tests use to avoid invoking a real build tool.
func WithExecContext(c execContext) Option {
	return func(d *Driver) { d.execContext = c }
}

// WithTimeout overrides the per-invocation timeout (default 5 minutes).
func WithTimeout(t time.Duration) Option {
	return func(d *Driver) { d.timeout = t }
}

// Locate resolves the build tool path from, in order, explicitPath, the
// pathEnvVar environment variable and a PATH lookup of defaultToolName,
// accepting the first candidate that answers a "--version" query, and fails
// fatally (external_tool_missing) per spec.md §4.3 if none does.
func Locate(ctx context.Context, pathEnvVar, explicitPath string, opts ...Option) (*Driver, error) {
	d := &Driver{execContext: exec.CommandContext, timeout: 5 * time.Minute}
	for _, opt := range opts {
		opt(d)
	}

	candidates := []string{explicitPath}
	if v, ok := lookupEnv(pathEnvVar); ok {
		candidates = append(candidates, v)
	}
	if p, err := exec.LookPath(defaultToolName); err == nil {
		candidates = append(candidates, p)
	}

	for _, c := range candidates {
		if c == "" {
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		cmd := d.execContext(cctx, c, "--version")
		err := cmd.Run()
		cancel()
		if err == nil {
			d.toolPath = c
			return d, nil
		}
	}

	return nil, errkind.New(errkind.ExternalToolMissing,
		fmt.Sprintf("build tool not found via %s, PATH, or explicit path", pathEnvVar))
}

// defaultToolName is the build tool's executable name looked up on PATH
// when no explicit path or env var resolves one.
const defaultToolName = "mvn"

func lookupEnv(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	v, ok := lookupEnvFunc(name)
	return v, ok
}

// lookupEnvFunc is a package variable (not os.LookupEnv directly) so tests
// can stub environment resolution without mutating process-global env.
var lookupEnvFunc = defaultLookupEnv

func (d *Driver) run(ctx context.Context, args ...string) Result {
	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	cmd := d.execContext(cctx, d.toolPath, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	wall := time.Since(start).Seconds()

	if errors.Is(cctx.Err(), context.DeadlineExceeded) {
		return Result{Success: false, ExitCode: -1, Stdout: out.String(), WallTime: wall,
			Err: errkind.New(errkind.Timeout, "build tool invocation timed out")}
	}
	if err == nil {
		return Result{Success: true, ExitCode: 0, Stdout: out.String(), WallTime: wall}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Result{Success: false, ExitCode: exitErr.ExitCode(), Stdout: out.String(), WallTime: wall}
	}
	return Result{Success: false, ExitCode: -1, Stdout: out.String(), WallTime: wall,
		Err: errkind.Wrap(errkind.BuildFailed, "failed to invoke build tool", err)}
}

// Compile compiles the production sources at path.
func (d *Driver) Compile(ctx context.Context, path string) Result {
	r := d.run(ctx, "-f", path, "compile")
	if !r.Success && r.Err == nil {
		r.Err = errkind.New(errkind.BuildFailed, "compile failed: "+firstLine(r.Stdout))
	}
	return r
}

// CompileTests compiles test sources at path.
func (d *Driver) CompileTests(ctx context.Context, path string) Result {
	r := d.run(ctx, "-f", path, "test-compile")
	if !r.Success && r.Err == nil {
		r.Err = errkind.New(errkind.BuildFailed, "test compile failed: "+firstLine(r.Stdout))
	}
	return r
}

// RunTests runs the test phase at path.
func (d *Driver) RunTests(ctx context.Context, path string) Result {
	r := d.run(ctx, "-f", path, "test")
	if !r.Success && r.Err == nil {
		r.Err = errkind.New(errkind.TestFailed, "tests failed: "+firstLine(r.Stdout))
	}
	return r
}

// RunTestsWithCoverage runs the test phase with coverage instrumentation,
// returning the path to the generated coverage report.
func (d *Driver) RunTestsWithCoverage(ctx context.Context, path string) CoverageResult {
	r := d.run(ctx, "-f", path, "verify", "-Pjacoco")
	cr := CoverageResult{Result: r, CoverageReportPath: path + "/target/site/jacoco/jacoco.xml"}
	if !r.Success && r.Err == nil {
		cr.Err = errkind.New(errkind.TestFailed, "coverage run failed: "+firstLine(r.Stdout))
	}
	return cr
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
