// Command mutaforge drives the adversarial mutant/test co-evolution loop
// against an external target project (spec.md §1/§6).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"mutaforge/pkg/errkind"
)

// Exit codes, spec.md §6: 0 success, 1 fatal initialization error,
// 2 user cancellation, 3 unreliable evaluation.
const (
	exitFatalInitialization  = 1
	exitCancelled            = 2
	exitEvaluationUnreliable = 3
)

func main() {
	root := newRootCmd()
	err := root.Execute()

	var ee exitError
	if errors.As(err, &ee) {
		os.Exit(ee.code)
	}
	if err != nil {
		os.Exit(exitFatalInitialization)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mutaforge",
		Short: "Adversarial mutant/test co-evolution planner for a target project",
		Long: `mutaforge drives a retrieval-augmented LLM planner against an external
project, alternately generating tests and mutants until a stop condition is
reached: max iterations, budget exhaustion, no improvement, excellence
thresholds met, or the work queue running dry.`,
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd())
	return root
}

// runOpts collects every run flag, bound directly to config overrides the
// way the teacher's CLI entrypoint binds flags before calling config.Initialize.
type runOpts struct {
	configDir       string
	projectPath     string
	maxIterations   int
	budget          int
	parallel        bool
	parallelTargets int
	bugReportsDir   string
	resume          string
	debug           bool
	statusAddr      string
}

func newRunCmd() *cobra.Command {
	var o runOpts

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the planner loop to completion or until a stop condition fires",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMain(cmd.Context(), o)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&o.configDir, "config", "./deploy/config", "path to the configuration directory")
	flags.StringVar(&o.projectPath, "project-path", "", "path to the target project (overrides workspace.project_path)")
	flags.IntVar(&o.maxIterations, "max-iterations", 0, "override agent.max_iterations (0 = use config)")
	flags.IntVar(&o.budget, "budget", 0, "override agent.budget_llm_calls (0 = use config)")
	flags.BoolVar(&o.parallel, "parallel", false, "enable preprocessing fan-out (overrides preprocessing.enabled)")
	flags.IntVar(&o.parallelTargets, "parallel-targets", 0, "override agent.parallel_targets (0 = use config)")
	flags.StringVar(&o.bugReportsDir, "bug-reports-dir", "", "directory of bug report files to index into the knowledge base")
	flags.StringVar(&o.resume, "resume", "", "resume from the store's last checkpoint (value is logged but the checkpoint itself is store-resident, not file-addressed)")
	flags.BoolVar(&o.debug, "debug", false, "enable debug-level logging")
	flags.StringVar(&o.statusAddr, "status-addr", "", "if set, serve a /health status endpoint on this address while running")

	return cmd
}

func runMain(ctx context.Context, o runOpts) error {
	level := slog.LevelInfo
	if o.debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	envPath := filepath.Join(o.configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("could not load .env file, continuing with existing environment", "path", envPath, "error", err)
	} else {
		slog.Info("loaded environment file", "path", envPath)
	}

	if o.resume != "" {
		slog.Info("resume requested; restoring from the store's last checkpoint", "flag_value", o.resume)
	}

	app, err := buildApp(ctx, o)
	if err != nil {
		slog.Error("initialization failed", "error", err)
		return exitError{code: exitFatalInitialization, err: err}
	}
	defer app.Close()

	if o.statusAddr != "" {
		app.serveStatus(o.statusAddr)
	}

	if app.watcher != nil {
		if err := app.watcher.Start(ctx); err != nil {
			slog.Warn("config watcher failed to start", "error", err)
		}
	}

	if err := app.runPreprocess(ctx, o); err != nil {
		slog.Error("preprocessing failed", "error", err)
		return exitError{code: exitFatalInitialization, err: err}
	}

	reason, runErr := app.planner.Run(ctx, o.resume != "")
	summarize(fmt.Sprint(reason), runErr)

	switch {
	case runErr != nil && evaluationUnreliable(runErr):
		return exitError{code: exitEvaluationUnreliable, err: runErr}
	case runErr != nil:
		return exitError{code: exitFatalInitialization, err: runErr}
	case ctx.Err() != nil:
		return exitError{code: exitCancelled, err: ctx.Err()}
	default:
		return nil
	}
}

// evaluationUnreliable mirrors the Planner's own private check (spec.md §9's
// exit code 3): the write-back baseline check reported that the existing
// test suite no longer agrees with itself, so the whole run must abort
// rather than have the offending target silently skipped.
func evaluationUnreliable(err error) bool {
	var e *errkind.Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == errkind.TestFailed && strings.HasPrefix(e.Detail, "evaluation_unreliable")
}

// summarize prints a short, colored close-out line, the way the teacher
// corpus's CLI tools (e.g. daydemir/ralph's status command) report outcome
// state to an interactive operator.
func summarize(reason string, err error) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s run stopped with an error: %v\n", red("✗"), err)
		return
	}
	if reason == "cancelled" {
		fmt.Fprintf(os.Stderr, "%s run cancelled\n", yellow("!"))
		return
	}
	fmt.Fprintf(os.Stderr, "%s run finished: %s\n", green("✓"), reason)
}

// exitError carries a process exit code through cobra's error return; main
// unwraps it with errors.As to set the real process exit status.
type exitError struct {
	code int
	err  error
}

func (e exitError) Error() string { return e.err.Error() }
func (e exitError) Unwrap() error { return e.err }
