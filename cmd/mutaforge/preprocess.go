package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"mutaforge/pkg/analyzer"
	"mutaforge/pkg/config"
	"mutaforge/pkg/knowledge"
	"mutaforge/pkg/scanner"
	"mutaforge/pkg/store"
)

// preprocess drives scan -> parallel analyze -> persist -> index, the
// control flow spec.md §2 names before the Planner Agent's main loop ever
// starts. Analysis fans out across preprocessing.max_workers via an
// errgroup, mirroring the bounded-concurrency shape the reference corpus
// uses for independent per-item work.
func preprocess(ctx context.Context, cfg *config.Config, sc *scanner.Scanner, az *analyzer.Bridge, st *store.Store, kb *knowledge.KnowledgeBase) error {
	refs, err := sc.Scan(ctx)
	if err != nil {
		return err
	}
	slog.Info("preprocessing: scan complete", "candidate_methods", len(refs))

	if !cfg.Preprocessing.Enabled {
		slog.Warn("preprocessing disabled; targets must already exist in the store")
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Preprocessing.MaxWorkers)

	var mu sync.Mutex
	var indexed int

	for _, ref := range refs {
		ref := ref
		g.Go(func() error {
			target, err := az.Analyze(gctx, ref.SourceFile, ref.ClassFQN, ref.MethodName)
			if err != nil {
				slog.Warn("preprocessing: analyze failed, skipping method", "method", ref.String(), "error", err)
				return nil
			}

			if err := st.Targets.Upsert(gctx, target); err != nil {
				return err
			}

			if kb != nil {
				if err := kb.IndexSource(gctx, target, target.Facts, target.SourceText); err != nil {
					slog.Warn("preprocessing: indexing failed", "target", target.ID.String(), "error", err)
				}
			}

			mu.Lock()
			indexed++
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("preprocessing: complete", "targets_persisted", indexed)
	return nil
}

// indexBugReports loads the given bug report files into the Knowledge Base,
// best-effort: an indexing failure is logged and nil is returned, since bug
// reports are optional context (spec.md §4.1). It does nothing when kb is
// nil or paths is empty.
func indexBugReports(ctx context.Context, kb *knowledge.KnowledgeBase, paths []string) error {
	if kb == nil || len(paths) == 0 {
		return nil
	}
	if err := kb.IndexBugReports(ctx, paths); err != nil {
		slog.Warn("preprocessing: bug report indexing failed", "error", err)
	}
	return nil
}

// listBugReports enumerates regular files directly under dir, the flat
// layout spec.md §4.1 describes for the optional bug reports corpus.
func listBugReports(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}
