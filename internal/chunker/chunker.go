// Package chunker splits file content into bounded, overlapping chunks
// suitable for embedding. Splitting is line-based and prefers construct
// boundaries (function/class starts in code, headings in prose) within a
// tolerance window around the target size, falling back to a hard cut. Lines
// longer than the target are sliced so chunk sizes stay bounded even for
// content with no newlines at all.
package chunker

import (
	"github.com/semdex/semdex-mcp/internal/config"
	"github.com/semdex/semdex-mcp/pkg/types"
)

// Chunker produces chunks according to per-category size options.
type Chunker struct {
	code config.ChunkOptions
	docs config.ChunkOptions
}

// New creates a Chunker from chunking configuration.
func New(cfg config.ChunkingConfig) *Chunker {
	return &Chunker{code: cfg.Code, docs: cfg.Documentation}
}

// NewDefault creates a Chunker with the default size options.
func NewDefault() *Chunker {
	return New(config.Default().Chunking)
}

func (c *Chunker) options(category types.Category) config.ChunkOptions {
	if category == types.CategoryDocumentation {
		return c.docs
	}
	return c.code
}

// segment is one splittable unit: a whole line, or a slice of a line that
// exceeds the target size. Slices of the same line share its line number;
// only the piece that starts the line can be a construct boundary.
type segment struct {
	text  string
	line  int // 1-based
	first bool
}

// Chunk splits content into ordered chunks. Empty content yields no chunks.
// The same content always yields the same chunks.
func (c *Chunker) Chunk(content string, category types.Category, language string) []*types.Chunk {
	if len(content) == 0 {
		return nil
	}
	opts := c.options(category)

	segs := splitSegments(content, maxInt(1, opts.TargetSize))
	segLens := make([]int, len(segs))
	for i, seg := range segs {
		segLens[i] = len(seg.text)
	}

	chunks := make([]*types.Chunk, 0, len(content)/maxInt(1, opts.TargetSize-opts.Overlap)+1)
	headings := &headingStack{}
	lastSymbol := ""
	scanned := 0 // segments consumed by context tracking so far

	start := 0
	for start < len(segs) {
		// Advance context trackers up to the chunk start.
		for ; scanned < start; scanned++ {
			if segs[scanned].first {
				observeContext(segs[scanned].text, category, headings, &lastSymbol)
			}
		}

		cut := c.findCut(segs, segLens, start, opts, category)

		chunk := &types.Chunk{
			Ordinal:   len(chunks),
			Content:   joinSegments(segs[start:cut]),
			StartLine: segs[start].line,
			EndLine:   segs[cut-1].line,
			Category:  category,
			Language:  language,
			Context:   contextAt(segs, start, cut, category, headings, lastSymbol),
		}
		chunk.EstimateTokenCount()
		chunks = append(chunks, chunk)

		if cut >= len(segs) {
			break
		}
		start = c.nextStart(segLens, start, cut, opts)
	}
	return chunks
}

// findCut returns the exclusive end segment index of the chunk starting at
// start. The chunk is grown segment by segment toward the target size; if a
// boundary falls inside the tolerance window the cut lands just before it,
// otherwise the cut happens at the first segment that reaches the target.
func (c *Chunker) findCut(segs []segment, segLens []int, start int, opts config.ChunkOptions, category types.Category) int {
	size := 0
	hardCut := -1
	boundaryCut := -1
	low := opts.TargetSize - opts.Tolerance
	high := opts.TargetSize + opts.Tolerance

	for i := start; i < len(segs); i++ {
		// A boundary at segment i means cutting before it; the chunk would be
		// segs[start:i] with the size accumulated so far.
		if i > start && size >= low && size <= high && segs[i].first && isBoundary(segs[i].text, category) {
			boundaryCut = i
		}
		size += segLens[i]
		if size >= opts.TargetSize && hardCut < 0 {
			hardCut = i + 1
		}
		if size > high {
			break
		}
	}

	if boundaryCut > start {
		return boundaryCut
	}
	if hardCut > start {
		return hardCut
	}
	return len(segs)
}

// nextStart computes where the following chunk begins, backing up whole
// segments until at least Overlap characters are shared. Progress past the
// previous start is always guaranteed.
func (c *Chunker) nextStart(segLens []int, start, cut int, opts config.ChunkOptions) int {
	next := cut
	shared := 0
	for next > start+1 && shared < opts.Overlap {
		next--
		shared += segLens[next]
	}
	if next <= start {
		next = start + 1
	}
	return next
}

// observeContext feeds a line into the appropriate context tracker.
func observeContext(line string, category types.Category, headings *headingStack, lastSymbol *string) {
	if category == types.CategoryDocumentation {
		headings.observe(line)
		return
	}
	if codeBoundary.MatchString(line) {
		if name := symbolName(line); name != "" {
			*lastSymbol = name
		}
	}
}

// contextAt derives the context string for a chunk spanning segments
// [start, cut). For prose it is the heading path in effect at the chunk
// start; for code it is the first symbol defined inside the chunk, or the
// enclosing one seen before it.
func contextAt(segs []segment, start, cut int, category types.Category, headings *headingStack, lastSymbol string) string {
	if category == types.CategoryDocumentation {
		return headings.path()
	}
	for i := start; i < cut; i++ {
		if segs[i].first && codeBoundary.MatchString(segs[i].text) {
			if name := symbolName(segs[i].text); name != "" {
				return name
			}
		}
	}
	return lastSymbol
}

// splitSegments splits content into line segments, each retaining its
// trailing newline so character accounting stays exact. A line longer than
// maxLen is sliced into maxLen-sized pieces so no single segment can exceed
// the chunk size bound on its own.
func splitSegments(content string, maxLen int) []segment {
	segs := make([]segment, 0, 64)
	line := 1
	emit := func(text string) {
		first := true
		for len(text) > maxLen {
			segs = append(segs, segment{text: text[:maxLen], line: line, first: first})
			text = text[maxLen:]
			first = false
		}
		if len(text) > 0 {
			segs = append(segs, segment{text: text, line: line, first: first})
		}
	}

	begin := 0
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			emit(content[begin : i+1])
			begin = i + 1
			line++
		}
	}
	if begin < len(content) {
		emit(content[begin:])
	}
	return segs
}

func joinSegments(segs []segment) string {
	total := 0
	for _, seg := range segs {
		total += len(seg.text)
	}
	buf := make([]byte, 0, total)
	for _, seg := range segs {
		buf = append(buf, seg.text...)
	}
	return string(buf)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
