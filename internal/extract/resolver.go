package extract

import (
	"regexp"
	"strings"
)

// FileSpec is a resolved mapping from a project-relative path to file
// content. One FileSpec corresponds to exactly one resolved section;
// duplicate paths are not deduplicated here — the materializer applies
// last-writer-wins.
type FileSpec struct {
	RelativePath string
	Content      string
	Language     string
}

// BlockStrategy selects which code block becomes a section's file content
// when the section contains more than one.
type BlockStrategy string

const (
	// BlockFirst uses the first block in the section. This matches the
	// convention that extra blocks are illustrative ("before/after")
	// snippets, and is the default.
	BlockFirst BlockStrategy = "first"
	// BlockLast uses the last block in the section.
	BlockLast BlockStrategy = "last"
	// BlockConcat joins all blocks in order, separated by a blank line.
	BlockConcat BlockStrategy = "concat"
)

// pathMarker matches an inline backtick-quoted token that looks like a file
// path with a recognized source, config or documentation extension, e.g.
// `src/App.tsx`. Path separators are preserved verbatim.
var pathMarker = regexp.MustCompile("`([^`\\s]+\\.(?:tsx?|jsx?|mjs|cjs|css|scss|html|json|ya?ml|toml|md|txt|svg|sh|sql|py|go|rs))`")

// Resolve maps sections to file specifications. A section yields a FileSpec
// only when it carries both a path marker and at least one code block; the
// first marker in a section wins, since headings conventionally name the
// file once, near the top.
func Resolve(sections []Section, strategy BlockStrategy) []FileSpec {
	var specs []FileSpec
	for _, sec := range sections {
		m := pathMarker.FindStringSubmatch(sec.Raw)
		if m == nil {
			continue
		}
		blocks := ScanCodeBlocks(sec.Raw)
		if len(blocks) == 0 {
			continue
		}
		content, lang := pickBlock(blocks, strategy)
		specs = append(specs, FileSpec{
			RelativePath: m[1],
			Content:      content,
			Language:     lang,
		})
	}
	return specs
}

// Extract runs the full pipeline: partition text into sections, then
// resolve each section into a file specification.
func Extract(text string, strategy BlockStrategy) []FileSpec {
	return Resolve(Partition(text), strategy)
}

// pickBlock returns the content and language of the block(s) the strategy
// selects. Concat spans blocks, so it reports the first block's language.
func pickBlock(blocks []CodeBlock, strategy BlockStrategy) (string, string) {
	switch strategy {
	case BlockLast:
		last := blocks[len(blocks)-1]
		return last.Content, last.Language
	case BlockConcat:
		parts := make([]string, len(blocks))
		for i, b := range blocks {
			parts[i] = b.Content
		}
		return strings.Join(parts, "\n\n"), blocks[0].Language
	default:
		return blocks[0].Content, blocks[0].Language
	}
}
