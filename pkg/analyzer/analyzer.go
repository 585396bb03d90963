// Package analyzer bridges to the external structural analyzer: it invokes
// the analyzer as a subprocess against a source file and method selector,
// and parses its JSON report into mutaforge's Target/AnalyzerFacts model
// (spec.md §4.1/§2 item 2).
//
// The analyzer itself is assumed to operate on the target project's own
// language (Java); mutaforge never parses Java source directly — it trusts
// the analyzer's JSON contract, mirroring how the build driver bridge
// trusts the build tool's exit codes.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"mutaforge/pkg/errkind"
	"mutaforge/pkg/model"
)

type execContext = func(ctx context.Context, name string, args ...string) *exec.Cmd

// report is the wire shape the external analyzer emits on stdout as JSON.
type report struct {
	Signature         string   `json:"signature"`
	Javadoc           string   `json:"javadoc"`
	SourceText        string   `json:"source_text"`
	LineStart         int      `json:"line_start"`
	LineEnd           int      `json:"line_end"`
	Collaborators     []string `json:"collaborators"`
	HasNullChecks     bool     `json:"has_null_checks"`
	HasBoundaryChecks bool     `json:"has_boundary_checks"`
	HasExceptionThrow bool     `json:"has_exception_throws"`
	CalledMethods     []string `json:"called_methods"`
	CyclomaticComplex int      `json:"cyclomatic_complexity"`
	CollaboratorTypes []string `json:"collaborator_types"`
}

// Bridge invokes the external analyzer binary.
type Bridge struct {
	toolPath    string
	execContext execContext
}

// New constructs a Bridge pointed at an already-located analyzer executable.
func New(toolPath string, opts ...Option) *Bridge {
	b := &Bridge{toolPath: toolPath, execContext: exec.CommandContext}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Option customizes a Bridge.
type Option func(*Bridge)

// WithExecContext overrides the default exec.CommandContext for tests.
func WithExecContext(c execContext) Option {
	return func(b *Bridge) { b.execContext = c }
}

// Analyze invokes the analyzer against sourceFile/method, returning a fully
// populated model.Target except for ID.ParamTypes, which is left empty; the
// scanner does not extract parameter types either, so overloads of one
// method name share a Target ID.
func (b *Bridge) Analyze(ctx context.Context, sourceFile, classFQN, methodName string) (model.Target, error) {
	cmd := b.execContext(ctx, b.toolPath, "analyze", "--file", sourceFile, "--method", methodName)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return model.Target{}, errkind.Wrap(errkind.AnalyzerParseFailed,
			fmt.Sprintf("analyzer invocation failed for %s#%s", classFQN, methodName), err)
	}

	var r report
	if err := json.Unmarshal(out.Bytes(), &r); err != nil {
		return model.Target{}, errkind.Wrap(errkind.AnalyzerParseFailed,
			fmt.Sprintf("analyzer produced unparsable output for %s#%s", classFQN, methodName), err)
	}

	return model.Target{
		ID:            model.TargetID{ClassFQN: classFQN, MethodName: methodName},
		SourceFile:    sourceFile,
		LineStart:     r.LineStart,
		LineEnd:       r.LineEnd,
		Signature:     r.Signature,
		Javadoc:       r.Javadoc,
		SourceText:    r.SourceText,
		Collaborators: r.Collaborators,
		Facts: model.AnalyzerFacts{
			HasNullChecks:      r.HasNullChecks,
			HasBoundaryChecks:  r.HasBoundaryChecks,
			HasExceptionThrows: r.HasExceptionThrow,
			CalledMethods:      r.CalledMethods,
			CyclomaticComplex:  r.CyclomaticComplex,
			CollaboratorTypes:  r.CollaboratorTypes,
		},
	}, nil
}

// ValidateTestSource asks the analyzer to structurally validate generated
// test source before it is formatted and merged (spec.md §4.5 write-back
// discipline step (a)).
func (b *Bridge) ValidateTestSource(ctx context.Context, source string) error {
	cmd := b.execContext(ctx, b.toolPath, "validate-test", "--stdin")
	cmd.Stdin = bytes.NewBufferString(source)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return errkind.Wrap(errkind.AnalyzerParseFailed, "generated test source failed structural validation",
			fmt.Errorf("%w: %s", err, out.String()))
	}
	return nil
}
