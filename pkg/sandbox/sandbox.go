// Package sandbox manages the workspace sandbox (one persistent working
// copy of the target project per run) and ephemeral target sandboxes (one
// per mutant evaluation), per spec.md §4.2.
package sandbox

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"mutaforge/pkg/errkind"
	"mutaforge/pkg/model"
)

// Manager owns the workspace sandbox directory and mints target sandboxes
// against it. Mutations never touch the workspace sandbox directly; every
// mutated file lives only inside a target sandbox, destroyed after use.
type Manager struct {
	projectRoot string
	workDir     string // e.g. <workspace.root>/<run-id>
}

// New constructs a Manager rooted under workDir, the run-scoped directory
// configured via config.WorkspaceConfig.Root.
func New(projectRoot, workDir string) *Manager {
	return &Manager{projectRoot: projectRoot, workDir: workDir}
}

// WorkspacePath returns the persistent workspace sandbox path.
func (m *Manager) WorkspacePath() string {
	return filepath.Join(m.workDir, "workspace")
}

// EnsureWorkspace creates the workspace sandbox by copying the target
// project tree if it does not already exist, idempotent across resumed
// runs.
func (m *Manager) EnsureWorkspace(_ context.Context) error {
	ws := m.WorkspacePath()
	if _, err := os.Stat(ws); err == nil {
		return nil
	}

	if err := copyTree(m.projectRoot, ws); err != nil {
		return errkind.Wrap(errkind.SandboxIO, "failed to create workspace sandbox", err)
	}
	slog.Info("Workspace sandbox created", "path", ws)
	return nil
}

// TargetSandbox is an ephemeral, mutant-scoped overlay of the workspace
// sandbox. Callers must call Release once evaluation of the mutant
// completes, including on failure.
type TargetSandbox struct {
	Path string
	id   string
}

// AcquireTargetSandbox creates a fresh target sandbox for a single mutant
// evaluation: a shallow copy of the workspace sandbox with the mutated file
// overlaid (spec.md §4.2). Names are unique per mutant ID.
func (m *Manager) AcquireTargetSandbox(_ context.Context, mutantID int64, patch model.Patch) (*TargetSandbox, error) {
	name := fmt.Sprintf("mutant-%d-%s", mutantID, uuid.NewString())
	path := filepath.Join(m.workDir, "sandboxes", name)

	if err := copyTree(m.WorkspacePath(), path); err != nil {
		return nil, errkind.Wrap(errkind.SandboxIO, fmt.Sprintf("failed to create target sandbox for mutant %d", mutantID), err)
	}

	if err := applyPatch(filepath.Join(path, patch.FilePath), patch); err != nil {
		_ = os.RemoveAll(path)
		return nil, err
	}

	return &TargetSandbox{Path: path, id: name}, nil
}

// Release destroys the target sandbox, safe to call more than once.
func (m *Manager) Release(_ context.Context, ts *TargetSandbox) error {
	if ts == nil {
		return nil
	}
	if err := os.RemoveAll(ts.Path); err != nil {
		return errkind.Wrap(errkind.SandboxIO, "failed to release target sandbox", err)
	}
	return nil
}

// applyPatch replaces lines [line_start, line_end] (1-based, inclusive) of
// file with patch.Mutated, preserving surrounding content bit-exactly
// (spec.md §4.4 step 2b invariant). file is hard-linked to the workspace
// sandbox's copy (copyFile links when possible), so the write must go to a
// fresh inode — writing in place would rewrite the shared inode through
// O_TRUNC and mutate the workspace sandbox (and the project root) out from
// under every other target sandbox (spec.md §4.2 invariant). Write to a
// temp file in the same directory and os.Rename over the path, exactly as
// writeback.writeFileAtomic does, so the target sandbox's directory entry
// is repointed at a new inode instead of the shared one being rewritten.
func applyPatch(file string, patch model.Patch) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return errkind.Wrap(errkind.SandboxIO, "failed to read file for patch application", err)
	}

	lines := splitKeepingTerminators(string(data))
	if patch.LineStart < 1 || patch.LineEnd > len(lines) || patch.LineStart > patch.LineEnd {
		return errkind.New(errkind.PatchOutOfBounds,
			fmt.Sprintf("patch lines [%d,%d] out of bounds for %s (%d lines)", patch.LineStart, patch.LineEnd, file, len(lines)))
	}

	var out []byte
	for _, l := range lines[:patch.LineStart-1] {
		out = append(out, l...)
	}
	out = append(out, []byte(patch.Mutated)...)
	if !endsInNewline(patch.Mutated) && patch.LineEnd < len(lines) {
		out = append(out, '\n')
	}
	for _, l := range lines[patch.LineEnd:] {
		out = append(out, l...)
	}

	tmp := file + ".mutated.tmp"
	if err := os.WriteFile(tmp, out, 0644); err != nil {
		return errkind.Wrap(errkind.SandboxIO, "failed to write patched file", err)
	}
	if err := os.Rename(tmp, file); err != nil {
		_ = os.Remove(tmp)
		return errkind.Wrap(errkind.SandboxIO, "failed to rename patched file into place", err)
	}
	return nil
}

func endsInNewline(s string) bool {
	return len(s) > 0 && s[len(s)-1] == '\n'
}

// splitKeepingTerminators splits text into lines, each retaining its
// trailing '\n' (absent only on a final unterminated line), so
// concatenation reproduces the input exactly.
func splitKeepingTerminators(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

// copyTree copies src into dst recursively via filepath.Walk, hard-linking
// when possible (same filesystem) and falling back to a byte copy
// otherwise — the copy-on-write intent spec.md §4.2 describes without
// requiring a filesystem that supports real COW.
func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	if err := os.Link(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
