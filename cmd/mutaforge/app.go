package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"mutaforge/pkg/analyzer"
	"mutaforge/pkg/builddriver"
	"mutaforge/pkg/config"
	"mutaforge/pkg/evaluator"
	"mutaforge/pkg/format"
	"mutaforge/pkg/knowledge"
	"mutaforge/pkg/llm"
	"mutaforge/pkg/planner"
	"mutaforge/pkg/prompt"
	"mutaforge/pkg/sandbox"
	"mutaforge/pkg/scanner"
	"mutaforge/pkg/store"
)

// defaultSourceRoot is the Maven convention the write-back discipline
// already assumes for generated test paths (spec.md §4.5).
const defaultSourceRoot = "src/main/java"

const (
	sandboxMaxAge = 24 * time.Hour
	sandboxSweep  = time.Hour
)

// app bundles every long-lived collaborator the run command wires together,
// mirroring the teacher's cmd/tarsy/main.go construct-then-defer-Close
// shape, generalized across more components.
type app struct {
	cfg     *config.Config
	store   *store.Store
	sandbox *sandbox.Manager
	janitor *sandbox.Janitor
	kb      *knowledge.KnowledgeBase
	watcher *config.Watcher
	router  *gin.Engine
	planner *planner.Planner
}

func (a *app) Close() {
	if a.janitor != nil {
		a.janitor.Stop()
	}
	if a.kb != nil {
		if err := a.kb.Close(); err != nil {
			slog.Warn("error closing knowledge base", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Warn("error closing store", "error", err)
		}
	}
}

// buildApp loads configuration, applies CLI overrides, and constructs every
// bridge/repository/component the Planner Agent needs.
func buildApp(ctx context.Context, o runOpts) (*app, error) {
	cfg, err := config.Initialize(ctx, o.configDir, func(c *config.Config) { applyOverrides(c, o) })
	if err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}

	st, err := store.Open(ctx, store.Config{
		DSN:             cfg.Store.DSN,
		MaxOpenConns:    cfg.Store.MaxOpenConns,
		MaxIdleConns:    cfg.Store.MaxIdleConns,
		ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("data store: %w", err)
	}

	mgr := sandbox.New(cfg.Workspace.ProjectPath, cfg.Workspace.Root)
	if err := mgr.EnsureWorkspace(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("workspace sandbox: %w", err)
	}

	janitor := sandbox.NewJanitor(mgr, sandboxMaxAge, sandboxSweep)
	janitor.Start(ctx)

	driver, err := builddriver.Locate(ctx, cfg.BuildTool.PathEnv, cfg.BuildTool.Path)
	if err != nil {
		janitor.Stop()
		st.Close()
		return nil, fmt.Errorf("build driver: %w", err)
	}

	analyzerPath, err := locateTool(cfg.Analyzer.Path, cfg.Analyzer.PathEnv, "mutaforge-analyzer")
	if err != nil {
		janitor.Stop()
		st.Close()
		return nil, fmt.Errorf("analyzer: %w", err)
	}
	analyzerBridge := analyzer.New(analyzerPath)

	formatterPath, err := locateTool(cfg.Formatting.Path, cfg.Formatting.PathEnv, "google-java-format")
	if err != nil {
		janitor.Stop()
		st.Close()
		return nil, fmt.Errorf("formatter: %w", err)
	}
	formatBridge := format.New(formatterPath, cfg.Formatting.Style)

	llmClient := llm.New(cfg.LLM.BaseURL, cfg.LLM.APIKey)

	var kb *knowledge.KnowledgeBase
	if cfg.Knowledge.Enabled {
		kbDir := filepath.Join(mgr.WorkspacePath(), ".mutaforge")
		if err := os.MkdirAll(kbDir, 0o755); err != nil {
			janitor.Stop()
			st.Close()
			return nil, fmt.Errorf("knowledge base directory: %w", err)
		}
		embedder := knowledge.NewHTTPEmbedder(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.Knowledge.EmbeddingModel)
		namespace := filepath.Base(cfg.Workspace.ProjectPath)
		kb, err = knowledge.Open(filepath.Join(kbDir, "knowledge.db"), embedder, namespace, cfg.Knowledge.Alpha, cfg.Knowledge.ChunkTokens)
		if err != nil {
			janitor.Stop()
			st.Close()
			return nil, fmt.Errorf("knowledge base: %w", err)
		}
	}

	eval := evaluator.New(mgr, driver)
	wb := planner.NewWriteBack(mgr.WorkspacePath(), analyzerBridge, formatBridge, eval)
	builder := prompt.NewBuilder()

	deps := planner.Deps{
		Cfg:        *cfg.Agent,
		LLMCfg:     cfg.LLM,
		Knowledge:  *cfg.Knowledge,
		Targets:    st.Targets,
		Tests:      st.Tests,
		Mutants:    st.Mutants,
		Runs:       st.Runs,
		Budget:     st.Budget,
		Checkpoint: st.Checkpoint,
		Evaluator:  eval,
		Writeback:  wb,
		Prompts:    builder,
		LLM:        llmClient,
	}
	if kb != nil {
		deps.KB = kb
	}

	a := &app{
		cfg:     cfg,
		store:   st,
		sandbox: mgr,
		janitor: janitor,
		kb:      kb,
		watcher: config.NewWatcher(cfg.ConfigDir()),
		planner: planner.New(deps),
	}
	return a, nil
}

// applyOverrides layers CLI flag values on top of the loaded configuration,
// the thin binding spec.md §6/SPEC_FULL.md §6 describe for cmd/mutaforge.
func applyOverrides(cfg *config.Config, o runOpts) {
	if o.projectPath != "" {
		cfg.Workspace.ProjectPath = o.projectPath
	}
	if o.maxIterations > 0 {
		cfg.Agent.MaxIterations = o.maxIterations
	}
	if o.budget > 0 {
		cfg.Agent.BudgetLLMCalls = o.budget
	}
	if o.parallel {
		cfg.Preprocessing.Enabled = true
	}
	if o.parallelTargets > 0 {
		cfg.Agent.ParallelTargets = o.parallelTargets
	}
}

// preprocess scans the target project and analyzes every candidate method,
// then indexes any configured bug reports, before the planner's main loop
// begins (spec.md §2 control flow: scan -> parallel preprocess -> main loop).
func (a *app) runPreprocess(ctx context.Context, o runOpts) error {
	sc := scanner.New(a.cfg.Workspace.ProjectPath, defaultSourceRoot)
	analyzerPath, err := locateTool(a.cfg.Analyzer.Path, a.cfg.Analyzer.PathEnv, "mutaforge-analyzer")
	if err != nil {
		return err
	}
	az := analyzer.New(analyzerPath)

	if err := preprocess(ctx, a.cfg, sc, az, a.store, a.kb); err != nil {
		return err
	}

	if o.bugReportsDir != "" {
		paths, err := listBugReports(o.bugReportsDir)
		if err != nil {
			slog.Warn("could not list bug reports directory", "path", o.bugReportsDir, "error", err)
			return nil
		}
		return indexBugReports(ctx, a.kb, paths)
	}
	return nil
}

// serveStatus starts a best-effort /health and /checkpoint endpoint in the
// background; its failure never aborts a run (spec.md §9's optional status
// surface, out of scope for the planner's own correctness).
func (a *app) serveStatus(addr string) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "knowledge_enabled": a.cfg.Knowledge.Enabled})
	})
	router.GET("/checkpoint", func(c *gin.Context) {
		cp, ok, err := a.store.Checkpoint.Load(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no checkpoint saved yet"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"round": cp.Round, "budget": cp.Budget, "targets": len(cp.Targets)})
	})
	a.router = router

	go func() {
		if err := router.Run(addr); err != nil {
			slog.Warn("status endpoint stopped", "error", err)
		}
	}()
}
