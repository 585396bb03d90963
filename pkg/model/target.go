// Package model holds the plain-Go domain entities of the planner/evaluator
// control plane: Target, Test Case, Mutant, Evaluation Run, Coverage
// Snapshot and Budget Counter, as defined in the data model specification.
// These are persistence-agnostic; pkg/store maps them to Postgres rows.
package model

import "fmt"

// TargetID is the stable identity of a single production method under
// management: {class_fqn, method_name, param_types[]}.
type TargetID struct {
	ClassFQN   string   `json:"class_fqn"`
	MethodName string   `json:"method_name"`
	ParamTypes []string `json:"param_types"`
}

// String renders a canonical, comparable form of the identifier, used as a
// map key and as the durable-store primary key.
func (t TargetID) String() string {
	s := fmt.Sprintf("%s#%s(", t.ClassFQN, t.MethodName)
	for i, p := range t.ParamTypes {
		if i > 0 {
			s += ","
		}
		s += p
	}
	return s + ")"
}

// AnalyzerFacts holds the structural facts the Analyzer Bridge extracts for
// a Target: control-flow shape and the collaborator types that must be
// mocked when generating tests.
type AnalyzerFacts struct {
	HasNullChecks      bool     `json:"has_null_checks"`
	HasBoundaryChecks  bool     `json:"has_boundary_checks"`
	HasExceptionThrows bool     `json:"has_exception_throws"`
	CalledMethods      []string `json:"called_methods"`
	CyclomaticComplex  int      `json:"cyclomatic_complexity"`
	CollaboratorTypes  []string `json:"collaborator_types"`
}

// Target is a single public method managed by the planner. Created at scan
// time, immutable once analyzed, never deleted.
type Target struct {
	ID           TargetID
	SourceFile   string
	LineStart    int
	LineEnd      int
	Signature    string
	Javadoc      string
	SourceText   string // full method source, with line numbers implied by LineStart
	Collaborators []string
	Facts        AnalyzerFacts
}

// InLineRange reports whether [start, end] falls within the Target's
// declared line range, inclusive, as required of every Mutant patch.
func (t Target) InLineRange(start, end int) bool {
	return start <= end && start >= t.LineStart && end <= t.LineEnd
}
