// Package knowledge implements the Knowledge Base: source and bug-report
// indexing, hybrid semantic+keyword retrieval, and namespace lifecycle,
// backed by an embedded SQLite database per run.
package knowledge

// Kind distinguishes a contract chunk (indexed source) from a bug report
// chunk, the two kinds the retrieval filter can select between.
type Kind string

const (
	KindContract  Kind = "contract"
	KindBugReport Kind = "bug_report"
)

// Chunk is one retrievable unit of context: either a method-granular source
// excerpt or a heading-bounded bug report section.
type Chunk struct {
	ID               int64
	Namespace        string
	Kind             Kind
	TargetClass      string
	Content          string
	Tags             []string
	Embedding        []float32
	EmbeddingMissing bool
	CreatedAt        int64 // unix nanos, used to break retrieval ties by recency
}

// Filters narrows retrieve() to a kind, a target class, and/or a required
// tag, matching spec.md §4.1's filter set.
type Filters struct {
	Kind        Kind
	TargetClass string
	Tag         string
}
