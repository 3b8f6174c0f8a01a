// Package extract turns loosely structured, model-produced markdown into a
// typed set of file specifications. It deliberately does not use a full
// markdown parser: the input is unreliable text, and the only structure we
// trust is line-level — heading lines, fence lines, everything else.
package extract

import "strings"

// CodeBlock is a fenced code region with its declared language.
type CodeBlock struct {
	Language string
	Content  string
}

// lineKind classifies a single input line.
type lineKind int

const (
	lineText lineKind = iota
	lineHeading
	lineFence
)

// line is one scanned input line. raw keeps the original text including its
// trailing newline so callers can reassemble the input byte-for-byte.
type line struct {
	kind  lineKind
	raw   string
	level int    // heading level, 1-3
	lang  string // fence language tag, may be empty
}

// scanLines tokenizes text into heading, fence and text lines. Heading and
// fence markers are only recognized at line start.
func scanLines(text string) []line {
	parts := strings.SplitAfter(text, "\n")
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}

	lines := make([]line, 0, len(parts))
	for _, raw := range parts {
		switch {
		case strings.HasPrefix(raw, "```"):
			tag := strings.TrimSpace(strings.TrimPrefix(raw, "```"))
			if i := strings.IndexAny(tag, " \t"); i >= 0 {
				tag = tag[:i]
			}
			lines = append(lines, line{kind: lineFence, raw: raw, lang: tag})
		case headingLevel(raw) > 0:
			lines = append(lines, line{kind: lineHeading, raw: raw, level: headingLevel(raw)})
		default:
			lines = append(lines, line{kind: lineText, raw: raw})
		}
	}
	return lines
}

// headingLevel returns 1-3 for a level-1..3 heading line, 0 otherwise.
// Deeper headings are treated as plain text: they never open a new section.
func headingLevel(raw string) int {
	n := 0
	for n < len(raw) && raw[n] == '#' {
		n++
	}
	if n < 1 || n > 3 {
		return 0
	}
	if n >= len(raw) || (raw[n] != ' ' && raw[n] != '\t') {
		return 0
	}
	return n
}

// ScanCodeBlocks returns every balanced fenced code block in document order.
// An opening fence without a matching close contributes nothing: a truncated
// response must not produce a truncated file. Block content is trimmed of
// leading and trailing whitespace; a missing language tag defaults to "text".
func ScanCodeBlocks(text string) []CodeBlock {
	var blocks []CodeBlock

	var inFence bool
	var lang string
	var body []string

	for _, ln := range scanLines(text) {
		if ln.kind == lineFence {
			if !inFence {
				inFence = true
				lang = ln.lang
				body = body[:0]
				continue
			}
			content := strings.TrimSpace(strings.Join(body, ""))
			if lang == "" {
				lang = "text"
			}
			blocks = append(blocks, CodeBlock{Language: lang, Content: content})
			inFence = false
			continue
		}
		if inFence {
			body = append(body, ln.raw)
		}
	}
	return blocks
}
