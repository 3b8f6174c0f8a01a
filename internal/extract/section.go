package extract

import "strings"

// Section is a heading-delimited span of text, the candidate unit for one
// file. Raw holds the section's full text including the heading line, so
// concatenating Raw across all sections reconstructs the input exactly.
type Section struct {
	Heading string // heading text without the leading markers, "" for the leading section
	Raw     string
}

// Partition splits text at level-1..3 heading lines. Text before the first
// heading becomes its own leading section. Heading lines inside an open code
// fence do not start a new section — a fence owns its content until it
// closes or the input ends.
func Partition(text string) []Section {
	if text == "" {
		return nil
	}

	var sections []Section
	var raw strings.Builder
	var heading string
	started := false

	flush := func() {
		if !started {
			return
		}
		sections = append(sections, Section{Heading: heading, Raw: raw.String()})
		raw.Reset()
	}

	inFence := false
	for _, ln := range scanLines(text) {
		if ln.kind == lineFence {
			inFence = !inFence
		}
		if ln.kind == lineHeading && !inFence {
			flush()
			started = true
			heading = strings.TrimSpace(strings.TrimLeft(ln.raw, "#"))
			raw.WriteString(ln.raw)
			continue
		}
		if !started {
			// Leading pre-heading text is its own section.
			started = true
			heading = ""
		}
		raw.WriteString(ln.raw)
	}
	flush()
	return sections
}
