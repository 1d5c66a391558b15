package chunker

import (
	"regexp"
	"strings"

	"github.com/semdex/semdex-mcp/pkg/types"
)

// codeBoundary matches lines that start a new top-level construct in the
// languages the walker recognizes. A chunk cut just before one of these lines
// keeps whole definitions together more often than a byte-offset cut.
var codeBoundary = regexp.MustCompile(`^\s*(func|def|class|fn|function|type|struct|interface|impl|trait|enum|module|package|public|private|protected|static|export|const|var|let)\b`)

// headingBoundary matches markdown ATX headings.
var headingBoundary = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)

// isBoundary reports whether a line is a good place to start a new chunk for
// the given category.
func isBoundary(line string, category types.Category) bool {
	line = strings.TrimRight(line, "\r\n")
	if category == types.CategoryDocumentation {
		return headingBoundary.MatchString(line)
	}
	return codeBoundary.MatchString(line)
}

// symbolName extracts a short identifier from a code boundary line, e.g.
// "ProcessFile" from "func (s *Server) ProcessFile(ctx ...)". Returns ""
// when no identifier is found.
func symbolName(line string) string {
	trimmed := strings.TrimSpace(line)
	// Drop receiver lists so the method name is picked up.
	if idx := strings.Index(trimmed, ")"); strings.HasPrefix(trimmed, "func (") && idx > 0 {
		trimmed = "func " + strings.TrimSpace(trimmed[idx+1:])
	}
	fields := strings.FieldsFunc(trimmed, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '(' || r == ':' || r == '{' || r == '<'
	})
	for i := 1; i < len(fields); i++ {
		word := fields[i]
		if word == "" || codeBoundary.MatchString(word) {
			continue
		}
		return word
	}
	return ""
}

// headingStack tracks the current markdown heading path while scanning lines
// top to bottom.
type headingStack struct {
	titles []string
	levels []int
}

// observe updates the stack if the line is a heading.
func (h *headingStack) observe(line string) {
	match := headingBoundary.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if match == nil {
		return
	}
	level := len(match[1])
	title := strings.TrimSpace(match[2])
	for len(h.levels) > 0 && h.levels[len(h.levels)-1] >= level {
		h.levels = h.levels[:len(h.levels)-1]
		h.titles = h.titles[:len(h.titles)-1]
	}
	h.levels = append(h.levels, level)
	h.titles = append(h.titles, title)
}

// path returns the heading trail from document root to the current section.
func (h *headingStack) path() string {
	return strings.Join(h.titles, " > ")
}
