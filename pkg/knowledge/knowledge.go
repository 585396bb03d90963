package knowledge

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mutaforge/pkg/errkind"
	"mutaforge/pkg/model"
)

// KnowledgeBase answers "what context should the LLM see when generating
// tests or mutants for this target?" (spec.md §4.1): it indexes production
// source and bug reports into an embedded chunk store and serves hybrid
// semantic+keyword retrieval over them.
type KnowledgeBase struct {
	st          *store
	embedder    Embedder // nil collapses retrieval to keyword-only
	namespace   string
	alpha       float64
	chunkTokens int
}

// Open creates or reuses the SQLite chunk database at dbPath for the given
// run namespace. embedder may be nil, which disables semantic scoring
// entirely and falls back to keyword-only retrieval. With
// knowledge.enabled=false no KnowledgeBase is opened at all.
func Open(dbPath string, embedder Embedder, namespace string, alpha float64, chunkTokens int) (*KnowledgeBase, error) {
	st, err := openStore(dbPath)
	if err != nil {
		return nil, err
	}
	if alpha <= 0 {
		alpha = 0.7
	}
	if chunkTokens <= 0 {
		chunkTokens = 400
	}
	return &KnowledgeBase{st: st, embedder: embedder, namespace: namespace, alpha: alpha, chunkTokens: chunkTokens}, nil
}

// Close releases the underlying database handle.
func (kb *KnowledgeBase) Close() error { return kb.st.close() }

// IndexSource chunks a class's source method-granularly (one chunk per
// method, plus a class-level chunk for fields and class javadoc) and
// inserts each with contract metadata — tags derived from the Analyzer
// Bridge's facts for target, per spec.md §4.1.
func (kb *KnowledgeBase) IndexSource(ctx context.Context, target model.Target, facts model.AnalyzerFacts, sourceText string) error {
	classChunk, methodChunks := chunkSource(sourceText)
	tags := factTags(facts)

	all := make([]string, 0, len(methodChunks)+1)
	if strings.TrimSpace(classChunk) != "" {
		all = append(all, classChunk)
	}
	all = append(all, methodChunks...)

	for _, content := range all {
		if err := kb.insertContractChunk(ctx, target.ID.ClassFQN, content, tags); err != nil {
			return err
		}
	}
	return nil
}

func (kb *KnowledgeBase) insertContractChunk(ctx context.Context, targetClass, content string, tags []string) error {
	c := Chunk{
		Namespace:   kb.namespace,
		Kind:        KindContract,
		TargetClass: targetClass,
		Content:     content,
		Tags:        tags,
		CreatedAt:   now(),
	}
	kb.embed(ctx, &c)
	_, err := kb.st.insert(ctx, c)
	return err
}

func factTags(f model.AnalyzerFacts) []string {
	var tags []string
	if f.HasNullChecks {
		tags = append(tags, "null-check")
	}
	if f.HasBoundaryChecks {
		tags = append(tags, "boundary")
	}
	if f.HasExceptionThrows {
		tags = append(tags, "exception")
	}
	return tags
}

// IndexBugReports parses Markdown/plain-text/diff/patch bug reports and
// inserts heading-bounded chunks tagged from their front-matter or "## Tags"
// section, per spec.md §4.1.
func (kb *KnowledgeBase) IndexBugReports(ctx context.Context, paths []string) error {
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return errkind.Wrap(errkind.SandboxIO, "read bug report "+p, err)
		}
		isMarkdown := strings.EqualFold(filepath.Ext(p), ".md")
		for _, pc := range chunkBugReport(string(data), isMarkdown, kb.chunkTokens) {
			c := Chunk{
				Namespace: kb.namespace,
				Kind:      KindBugReport,
				Content:   pc.Content,
				Tags:      pc.Tags,
				CreatedAt: now(),
			}
			kb.embed(ctx, &c)
			if _, err := kb.st.insert(ctx, c); err != nil {
				return err
			}
		}
	}
	return nil
}

// embed fills in c.Embedding, or marks the chunk embedding_missing on
// persistent embedding failure (spec.md §4.1: excluded from semantic score,
// included in keyword score).
func (kb *KnowledgeBase) embed(ctx context.Context, c *Chunk) {
	if kb.embedder == nil {
		c.EmbeddingMissing = true
		return
	}
	vec, err := kb.embedder.Embed(ctx, c.Content)
	if err != nil {
		c.EmbeddingMissing = true
		return
	}
	c.Embedding = vec
}

// scored pairs a candidate chunk with its retrieval score for sorting.
type scored struct {
	chunk Chunk
	score float64
}

// Retrieve returns the top-k chunks matching filters, ranked by
// α·semantic + (1-α)·keyword_match, ties broken by recency of insertion
// (spec.md §4.1).
func (kb *KnowledgeBase) Retrieve(ctx context.Context, queryText string, filters Filters, k int) ([]Chunk, error) {
	candidates, err := kb.st.candidates(ctx, kb.namespace, filters)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 || k <= 0 {
		return nil, nil
	}

	var queryVec []float32
	if kb.embedder != nil {
		queryVec, _ = kb.embedder.Embed(ctx, queryText)
	}

	ranked := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		semantic := 0.0
		if !c.EmbeddingMissing && len(queryVec) > 0 && len(c.Embedding) > 0 {
			semantic = cosineSimilarity(queryVec, c.Embedding)
		}
		keyword := keywordOverlap(queryText, c.Content)
		score := kb.alpha*semantic + (1-kb.alpha)*keyword
		ranked = append(ranked, scored{chunk: c, score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].chunk.CreatedAt > ranked[j].chunk.CreatedAt
	})

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	out := make([]Chunk, len(ranked))
	for i, r := range ranked {
		out[i] = r.chunk
	}
	return out, nil
}

// ClearNamespace idempotently deletes every chunk inserted under ns
// (spec.md §4.1).
func (kb *KnowledgeBase) ClearNamespace(ctx context.Context, ns string) error {
	return kb.st.clearNamespace(ctx, ns)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// keywordOverlap is a bm25-ish stand-in: the fraction of distinct query
// terms that appear in content, case-insensitively.
func keywordOverlap(query, content string) float64 {
	terms := dedupeStrings(strings.Fields(strings.ToLower(query)))
	if len(terms) == 0 {
		return 0
	}
	lowerContent := strings.ToLower(content)
	hits := 0
	for _, t := range terms {
		if strings.Contains(lowerContent, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}
