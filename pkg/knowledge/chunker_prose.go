package knowledge

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// proseChunk is one heading-bounded window of a bug report, before it is
// wrapped into a durable Chunk with namespace/timestamp metadata.
type proseChunk struct {
	Heading string
	Content string
	Tags    []string
}

// chunkBugReport parses a Markdown, plain-text, diff or patch bug report
// (format selected by the caller from the file extension, spec.md §4.1) and
// splits it into heading-bounded windows of at most maxTokens words, with a
// one-paragraph overlap between consecutive windows in the same section.
// Tags are read from an optional YAML front-matter block and from a
// "## Tags" / "## 标签" section, and are attached to every chunk produced
// from the document.
func chunkBugReport(raw string, isMarkdown bool, maxTokens int) []proseChunk {
	body, frontMatterTags := splitFrontMatter(raw)

	var sections []struct {
		heading string
		body    string
	}
	var docTags []string

	if isMarkdown {
		sections, docTags = splitMarkdownSections(body)
	} else {
		sections = []struct {
			heading string
			body    string
		}{{heading: "", body: body}}
	}

	tags := append(append([]string{}, frontMatterTags...), docTags...)
	tags = dedupeStrings(tags)

	var out []proseChunk
	for _, s := range sections {
		for _, window := range windowize(splitParagraphs(s.body), maxTokens) {
			if strings.TrimSpace(window) == "" {
				continue
			}
			out = append(out, proseChunk{Heading: s.heading, Content: window, Tags: tags})
		}
	}
	return out
}

// splitFrontMatter strips a leading "---\n...\n---\n" YAML block and returns
// any string-valued "tags" field it declares.
func splitFrontMatter(raw string) (body string, tags []string) {
	const delim = "---"
	if !strings.HasPrefix(strings.TrimLeft(raw, "\n"), delim) {
		return raw, nil
	}
	trimmed := strings.TrimLeft(raw, "\n")
	rest := strings.TrimPrefix(trimmed, delim)
	end := strings.Index(rest, "\n"+delim)
	if end < 0 {
		return raw, nil
	}
	fmBlock := rest[:end]
	body = rest[end+len("\n"+delim):]
	body = strings.TrimPrefix(body, "\n")

	var fm struct {
		Tags []string `yaml:"tags"`
	}
	if err := yaml.Unmarshal([]byte(fmBlock), &fm); err != nil {
		return raw, nil
	}
	return body, fm.Tags
}

var tagsHeadingNames = map[string]bool{
	"tags": true,
	"标签":  true,
}

// splitMarkdownSections splits body on "#"-prefixed headings. A heading
// named "Tags"/"标签" (case-insensitive) is consumed for its listed tags
// rather than emitted as a retrievable section.
func splitMarkdownSections(body string) (sections []struct {
	heading string
	body    string
}, tags []string) {
	lines := strings.Split(body, "\n")

	var curHeading string
	var curLines []string
	flush := func() {
		content := strings.TrimSpace(strings.Join(curLines, "\n"))
		if content == "" {
			return
		}
		if tagsHeadingNames[strings.ToLower(curHeading)] {
			tags = append(tags, parseTagList(content)...)
			return
		}
		sections = append(sections, struct {
			heading string
			body    string
		}{heading: curHeading, body: content})
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			flush()
			curHeading = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			curLines = nil
			continue
		}
		curLines = append(curLines, line)
	}
	flush()
	return sections, tags
}

// parseTagList reads tags from lines of a "## Tags" section, one per line
// (optionally "- " prefixed) or comma-separated on a single line.
func parseTagList(content string) []string {
	var tags []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "-")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, t := range strings.Split(line, ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				tags = append(tags, t)
			}
		}
	}
	return tags
}

// splitParagraphs splits text on blank lines.
func splitParagraphs(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")
	var out []string
	for _, p := range raw {
		if strings.TrimSpace(p) != "" {
			out = append(out, strings.TrimSpace(p))
		}
	}
	return out
}

// windowize packs paragraphs into windows of at most maxTokens words
// (approximated by whitespace-separated fields), overlapping consecutive
// windows by the last paragraph of the previous one whenever that paragraph
// fits alongside the next. A single paragraph longer than maxTokens forms a
// window of its own.
func windowize(paragraphs []string, maxTokens int) []string {
	if maxTokens <= 0 {
		maxTokens = 400
	}
	if len(paragraphs) == 0 {
		return nil
	}

	var windows []string
	var cur []string
	curTokens := 0

	flush := func() {
		if len(cur) > 0 {
			windows = append(windows, strings.Join(cur, "\n\n"))
		}
	}

	for _, p := range paragraphs {
		pTokens := len(strings.Fields(p))
		if curTokens > 0 && curTokens+pTokens > maxTokens {
			flush()
			// one-paragraph overlap: carry the last paragraph into the next window
			last := cur[len(cur)-1]
			if lastTokens := len(strings.Fields(last)); lastTokens+pTokens <= maxTokens {
				cur = []string{last}
				curTokens = lastTokens
			} else {
				cur = nil
				curTokens = 0
			}
		}
		cur = append(cur, p)
		curTokens += pTokens
	}
	flush()
	return windows
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
