package model

// SemanticTag classifies the kind of fault a Mutant's patch encodes.
type SemanticTag string

const (
	TagNullCheckRemoved   SemanticTag = "null_check_removed"
	TagBoundaryFlipped    SemanticTag = "boundary_flipped"
	TagReturnValueChanged SemanticTag = "return_value_changed"
	TagOperatorSwapped    SemanticTag = "operator_swapped"
	TagExceptionSwallowed SemanticTag = "exception_swallowed"
	TagOffByOne           SemanticTag = "off_by_one"
	TagOther              SemanticTag = "other"
)

// MutantStatus is the mutant lifecycle: pending -> valid|invalid ->
// (evaluated) survived|killed, with evaluation_error/unknown as side states.
type MutantStatus string

const (
	MutantPending          MutantStatus = "pending"
	MutantValid            MutantStatus = "valid"
	MutantInvalid          MutantStatus = "invalid"
	MutantSurvived         MutantStatus = "survived"
	MutantKilled           MutantStatus = "killed"
	MutantEvaluationError  MutantStatus = "evaluation_error"
	MutantUnknown          MutantStatus = "unknown"
)

// Excluded reports whether a mutant in this status is excluded from the
// mutation-score denominator per spec.md §4.4 step 3.
func (s MutantStatus) Excluded() bool {
	switch s {
	case MutantInvalid, MutantEvaluationError, MutantUnknown:
		return true
	default:
		return false
	}
}

// Patch is the object exchanged between the planner and the sandbox
// applier: exactly {file_path, line_start, line_end, original, mutated}.
// Line numbers are 1-based and inclusive.
type Patch struct {
	FilePath  string `json:"file_path"`
	LineStart int    `json:"line_start"`
	LineEnd   int    `json:"line_end"`
	Original  string `json:"original"`
	Mutated   string `json:"mutated"`
}

// Mutant is a single proposed semantic fault against a Target's source.
type Mutant struct {
	ID        int64
	Target    TargetID
	Patch     Patch
	Tag       SemanticTag
	Status    MutantStatus
	CreatedAt int64 // unix seconds; stamped by the caller, never time.Now() in library code
	Rounds    int   // number of evaluation attempts so far
}
