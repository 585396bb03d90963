package knowledge

import "strings"

// chunkSource splits a Java source file into method-granular chunks plus
// one leading class-level chunk (fields and class javadoc), per spec.md
// §4.1: the chunker must never split within a method body, so boundaries
// are tracked by brace depth rather than by line or token count — an
// overlong method becomes one oversized chunk rather than being split.
// Method detection reuses the scanner's signature heuristic (pkg/scanner),
// loosened from "public only" to any access modifier since the whole class
// body, not just its public surface, is indexed here.
func chunkSource(sourceText string) (classChunk string, methodChunks []string) {
	lines := strings.Split(sourceText, "\n")

	var depth int
	var classLines, methodLines []string
	inMethod := false
	methodStartDepth := 0

	flushMethod := func() {
		if len(methodLines) > 0 {
			methodChunks = append(methodChunks, strings.Join(methodLines, "\n"))
		}
		methodLines = nil
		inMethod = false
	}

	for _, line := range lines {
		opens := strings.Count(line, "{")
		closes := strings.Count(line, "}")

		if !inMethod && depth == 1 && isMethodSignatureLine(strings.TrimSpace(line)) {
			inMethod = true
			methodStartDepth = depth
			methodLines = []string{line}
			depth += opens - closes
			if depth <= methodStartDepth {
				flushMethod()
			}
			continue
		}

		if inMethod {
			methodLines = append(methodLines, line)
			depth += opens - closes
			if depth <= methodStartDepth {
				flushMethod()
			}
			continue
		}

		classLines = append(classLines, line)
		depth += opens - closes
	}
	flushMethod()

	return strings.Join(classLines, "\n"), methodChunks
}

func isMethodSignatureLine(line string) bool {
	if strings.Contains(line, "class ") || strings.Contains(line, "interface ") || strings.Contains(line, "enum ") {
		return false
	}
	hasModifier := false
	for _, m := range []string{"public ", "private ", "protected "} {
		if strings.HasPrefix(line, m) {
			hasModifier = true
			break
		}
	}
	if !hasModifier {
		return false
	}
	paren := strings.IndexByte(line, '(')
	return paren > 0 && strings.Contains(line, ")")
}
