package planner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mutaforge/pkg/errkind"
	"mutaforge/pkg/model"
)

// testSourceValidator is the subset of *analyzer.Bridge the write-back
// discipline needs.
type testSourceValidator interface {
	ValidateTestSource(ctx context.Context, source string) error
}

// sourceFormatter is the subset of *format.Bridge the write-back discipline
// needs.
type sourceFormatter interface {
	Format(ctx context.Context, source string) (string, error)
}

// baselineChecker is the subset of *evaluator.Evaluator the write-back
// discipline needs.
type baselineChecker interface {
	BaselineCheck(ctx context.Context) (bool, error)
}

// WriteBack applies the four-step write-back discipline (spec.md §4.5):
// structural validation, formatting, additive merge into the Target's
// single test file, then a baseline check that rolls back the file on
// failure so a bad generation never leaves the workspace worse off.
type WriteBack struct {
	analyzer  testSourceValidator
	formatter sourceFormatter
	evaluator baselineChecker
	root      string // project source root new test files are written under
}

// NewWriteBack constructs the write-back discipline over a project's source
// root and the analyzer/formatter/evaluator bridges it validates through.
func NewWriteBack(root string, analyzer testSourceValidator, formatter sourceFormatter, evaluator baselineChecker) *WriteBack {
	return &WriteBack{analyzer: analyzer, formatter: formatter, evaluator: evaluator, root: root}
}

// apply merges newMethods (raw Java method bodies, one per generated test)
// into the Target's test file, validating, formatting and baseline-checking
// before committing. On any failure the file is restored to its pre-merge
// content (or removed, if it did not exist before).
func (w *WriteBack) apply(ctx context.Context, target model.Target, newMethods []string) error {
	if len(newMethods) == 0 {
		return nil
	}

	path := testFilePath(w.root, target.ID)
	before, existed, err := readIfExists(path)
	if err != nil {
		return errkind.Wrap(errkind.SandboxIO, "read existing test file", err)
	}

	var merged string
	if existed {
		merged = mergeTestSource(before, newMethods)
	} else {
		merged = renderNewTestFile(target.ID, newMethods)
	}

	if err := w.analyzer.ValidateTestSource(ctx, merged); err != nil {
		return err
	}

	formatted, err := w.formatter.Format(ctx, merged)
	if err != nil {
		return err
	}

	if err := writeFileAtomic(path, formatted); err != nil {
		return errkind.Wrap(errkind.SandboxIO, "write merged test file", err)
	}

	ok, err := w.evaluator.BaselineCheck(ctx)
	if err != nil || !ok {
		if rbErr := rollback(path, before, existed); rbErr != nil {
			return errkind.Wrap(errkind.SandboxIO, "rollback after failed baseline check", rbErr)
		}
		if err != nil {
			return err
		}
		return errkind.New(errkind.BaselineRegressed, "generated test broke the baseline suite, rolled back")
	}
	return nil
}

// testFilePath maps a Target to its Maven-convention test file path:
// src/test/java/<package-path>/<ClassName>_<method>Test.java.
func testFilePath(root string, id model.TargetID) string {
	pkg := packageOf(id.ClassFQN)
	className := model.DerivedTestClassName(id)
	dir := filepath.Join(append([]string{root, "src", "test", "java"}, strings.Split(pkg, ".")...)...)
	return filepath.Join(dir, className+".java")
}

// packageOf returns the package portion of a fully-qualified class name,
// i.e. everything before the last '.'.
func packageOf(classFQN string) string {
	i := strings.LastIndexByte(classFQN, '.')
	if i < 0 {
		return ""
	}
	return classFQN[:i]
}

// mergeTestSource inserts newMethods before the final closing brace of an
// existing test class, never touching its existing @Test methods.
func mergeTestSource(existing string, newMethods []string) string {
	i := strings.LastIndexByte(existing, '}')
	if i < 0 {
		return existing + "\n" + strings.Join(newMethods, "\n\n") + "\n"
	}
	var b strings.Builder
	b.WriteString(existing[:i])
	for _, m := range newMethods {
		b.WriteString("\n")
		b.WriteString(m)
		b.WriteString("\n")
	}
	b.WriteString(existing[i:])
	return b.String()
}

// renderNewTestFile synthesizes a full test file skeleton when the Target
// has no test file yet: package declaration, JUnit imports, class
// declaration wrapping the generated methods.
func renderNewTestFile(id model.TargetID, newMethods []string) string {
	pkg := packageOf(id.ClassFQN)
	className := model.DerivedTestClassName(id)

	var b strings.Builder
	if pkg != "" {
		fmt.Fprintf(&b, "package %s;\n\n", pkg)
	}
	b.WriteString("import org.junit.jupiter.api.Test;\n")
	b.WriteString("import static org.junit.jupiter.api.Assertions.*;\n\n")
	fmt.Fprintf(&b, "class %s {\n", className)
	for _, m := range newMethods {
		b.WriteString("\n")
		b.WriteString(m)
		b.WriteString("\n")
	}
	b.WriteString("}\n")
	return b.String()
}

func readIfExists(path string) (content string, existed bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(data), true, nil
}

func writeFileAtomic(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func rollback(path, before string, existed bool) error {
	if !existed {
		return os.Remove(path)
	}
	return os.WriteFile(path, []byte(before), 0o644)
}
