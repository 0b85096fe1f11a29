package merge

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

type separatorKind int

const (
	pageBreak separatorKind = iota
	blankLines
)

// Separator is the content inserted between two merged documents. The
// zero value is a page break.
type Separator struct {
	kind  separatorKind
	lines int
}

// PageBreak separates documents with a page break.
func PageBreak() Separator {
	return Separator{kind: pageBreak}
}

// BlankLines separates documents with n empty paragraphs.
func BlankLines(n int) Separator {
	if n < 0 {
		n = 0
	}
	return Separator{kind: blankLines, lines: n}
}

// ParseSeparator parses "page" or "lines:N".
func ParseSeparator(s string) (Separator, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch {
	case s == "page" || s == "page-break":
		return PageBreak(), nil
	case strings.HasPrefix(s, "lines:"):
		n, err := strconv.Atoi(strings.TrimPrefix(s, "lines:"))
		if err != nil || n < 0 {
			return Separator{}, fmt.Errorf("invalid separator %q: line count must be a non-negative integer", s)
		}
		return BlankLines(n), nil
	}
	return Separator{}, fmt.Errorf("invalid separator %q: want page or lines:N", s)
}

func (s Separator) String() string {
	if s.kind == blankLines {
		return "lines:" + strconv.Itoa(s.lines)
	}
	return "page"
}

func (s Separator) paragraphs() []*etree.Element {
	if s.kind == blankLines {
		ps := make([]*etree.Element, 0, s.lines)
		for i := 0; i < s.lines; i++ {
			p := etree.NewElement("w:p")
			p.CreateElement("w:r").CreateElement("w:t")
			ps = append(ps, p)
		}
		return ps
	}

	p := etree.NewElement("w:p")
	br := p.CreateElement("w:r").CreateElement("w:br")
	br.CreateAttr("w:type", "page")
	return []*etree.Element{p}
}
