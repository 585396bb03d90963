// Package scanner enumerates production classes and their public methods
// in the target project, producing stable Target identifiers for the
// Analyzer Bridge and Planner Agent to consume (spec.md §2 item 1).
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mutaforge/pkg/errkind"
)

// MethodRef is a scan hit: a candidate public method before analysis.
type MethodRef struct {
	SourceFile string
	ClassFQN   string
	MethodName string
}

// Scanner walks a project's production source tree looking for candidate
// methods, deferring all structural parsing to the Analyzer Bridge — the
// scanner itself only locates files and extracts enough surface syntax
// (package declaration, class name, public method names) to build a
// stable identifier; it never reasons about control flow.
type Scanner struct {
	projectRoot string
	sourceRoot  string // relative to projectRoot, e.g. "src/main/java"
}

// New constructs a Scanner rooted at projectRoot, scanning under sourceRoot.
func New(projectRoot, sourceRoot string) *Scanner {
	return &Scanner{projectRoot: projectRoot, sourceRoot: sourceRoot}
}

// Scan walks the source tree and returns every candidate public method,
// ordered deterministically by source file then method name, so the
// Planner Agent's queue ordering is reproducible across runs (spec.md §8
// property: ties broken by Target identifier ordering).
func (s *Scanner) Scan(_ context.Context) ([]MethodRef, error) {
	root := filepath.Join(s.projectRoot, s.sourceRoot)
	var refs []MethodRef

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".java") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		fileRefs, err := scanFile(path, data)
		if err != nil {
			return err
		}
		refs = append(refs, fileRefs...)
		return nil
	})
	if err != nil {
		return nil, errkind.Wrap(errkind.InternalInvariant, "project scan failed", err)
	}

	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].SourceFile != refs[j].SourceFile {
			return refs[i].SourceFile < refs[j].SourceFile
		}
		return refs[i].MethodName < refs[j].MethodName
	})
	return refs, nil
}

// scanFile extracts the package, class name and public method names from a
// single .java file using lightweight line scanning — good enough to build
// candidate identifiers; the Analyzer Bridge performs real structural
// analysis afterward.
func scanFile(path string, data []byte) ([]MethodRef, error) {
	lines := strings.Split(string(data), "\n")

	var pkg, class string
	var refs []MethodRef

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if pkg == "" && strings.HasPrefix(trimmed, "package ") {
			pkg = strings.TrimSuffix(strings.TrimPrefix(trimmed, "package "), ";")
			pkg = strings.TrimSpace(pkg)
			continue
		}

		if class == "" {
			if name, ok := classNameFrom(trimmed); ok {
				class = name
				continue
			}
		}

		if class == "" {
			continue
		}

		if name, ok := publicMethodNameFrom(trimmed); ok {
			fqn := class
			if pkg != "" {
				fqn = pkg + "." + class
			}
			refs = append(refs, MethodRef{SourceFile: path, ClassFQN: fqn, MethodName: name})
		}
	}
	return refs, nil
}

func classNameFrom(line string) (string, bool) {
	for _, kw := range []string{"public class ", "public final class ", "public abstract class "} {
		if strings.HasPrefix(line, kw) {
			rest := strings.TrimPrefix(line, kw)
			name := strings.FieldsFunc(rest, func(r rune) bool { return r == ' ' || r == '{' })[0]
			return name, true
		}
	}
	return "", false
}

func publicMethodNameFrom(line string) (string, bool) {
	if !strings.HasPrefix(line, "public ") || strings.Contains(line, "class ") {
		return "", false
	}
	paren := strings.IndexByte(line, '(')
	if paren < 0 {
		return "", false
	}
	before := strings.Fields(line[:paren])
	if len(before) == 0 {
		return "", false
	}
	name := before[len(before)-1]
	if name == "" || !isIdentifier(name) {
		return "", false
	}
	return name, true
}

func isIdentifier(s string) bool {
	for i, r := range s {
		if i == 0 && !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return false
		}
		if !(r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return false
		}
	}
	return len(s) > 0
}

// String renders a MethodRef for logging.
func (m MethodRef) String() string {
	return fmt.Sprintf("%s#%s", m.ClassFQN, m.MethodName)
}
