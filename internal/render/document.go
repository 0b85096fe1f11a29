package render

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/yuanying/docxtpl/internal/ooxml"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// rewriter re-emits a document part token by token, resolving
// placeholders on the way.
//
// While idle, text is resolved and written immediately. Text that leaves a
// "{{" open switches to accumulating: every following token is held until
// the collected text closes the placeholder. If the tokens held in between
// are balanced they are dropped and the resolved text takes their place,
// otherwise they are written back unchanged. Image placeholders are queued
// on the enclosing paragraph and become drawing runs before its end tag.
type rewriter struct {
	enc     *xml.Encoder
	reg     *Registry
	matcher *matcher
	ids     *drawingIDs
	logger  *zap.Logger

	wPrefix string
	// qualified names of the elements written and not yet closed
	open []string
	// image placeholders queued per open paragraph
	paragraphs [][]string

	accumulating bool
	held         []xml.Token
	buf          strings.Builder
}

func rewriteDocument(data []byte, reg *Registry, legacy bool, logger *zap.Logger) ([]byte, error) {
	var out bytes.Buffer
	rw := &rewriter{
		enc:     xml.NewEncoder(&out),
		reg:     reg,
		matcher: newMatcher(reg, legacy),
		ids:     newDrawingIDs(data),
		logger:  logger,
		wPrefix: "w",
	}

	dec := ooxml.NewDecoder(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ooxml.XMLError(err)
		}
		if err := rw.token(xml.CopyToken(tok)); err != nil {
			return nil, err
		}
	}

	if rw.accumulating {
		if err := rw.flush(); err != nil {
			return nil, err
		}
	}
	if len(rw.open) > 0 {
		return nil, fmt.Errorf("%w: unexpected end of document, <%s> not closed", ooxml.ErrXML, rw.open[len(rw.open)-1])
	}
	if err := rw.enc.Flush(); err != nil {
		return nil, fmt.Errorf("failed to write document: %w", err)
	}
	return out.Bytes(), nil
}

func (rw *rewriter) token(tok xml.Token) error {
	switch t := tok.(type) {
	case xml.StartElement:
		rw.noteNamespaces(t)
		if rw.isParagraph(t.Name) {
			if err := rw.flushIfAccumulating(); err != nil {
				return err
			}
			return rw.emit(t)
		}
	case xml.EndElement:
		if rw.isParagraph(t.Name) {
			return rw.closeParagraph(t)
		}
	case xml.CharData:
		return rw.text(t)
	case xml.ProcInst:
		if t.Target == "xml" {
			t.Inst = []byte(ooxml.UTF8Declaration(string(t.Inst)))
			tok = t
		}
	}

	if rw.accumulating {
		rw.held = append(rw.held, tok)
		return nil
	}
	return rw.emit(tok)
}

func (rw *rewriter) text(cd xml.CharData) error {
	s := string(cd)
	if rw.accumulating {
		rw.held = append(rw.held, cd)
		rw.buf.WriteString(s)
		if hasOpenToken(rw.buf.String()) {
			return nil
		}
		return rw.resolveHeld()
	}

	if hasOpenToken(s) {
		rw.accumulating = true
		rw.held = []xml.Token{cd}
		rw.buf.WriteString(s)
		return nil
	}
	return rw.emitText(s)
}

// emitText writes a text node, resolving the placeholders it contains.
func (rw *rewriter) emitText(s string) error {
	if strings.Contains(s, OpenMarker) {
		if res := rw.matcher.resolve(s); res.changed {
			rw.queue(res.images)
			s = res.text
		}
	}
	return rw.emit(xml.CharData(s))
}

func (rw *rewriter) resolveHeld() error {
	held, text := rw.take()

	res := rw.matcher.resolve(text)
	if !res.changed {
		return rw.emitHeld(held, false)
	}
	if !rw.balanced(held) {
		rw.logger.Debug("placeholder spans incompatible markup, leaving it split",
			zap.String("text", text))
		return rw.emitHeld(held, true)
	}

	rw.queue(res.images)
	return rw.emit(xml.CharData(res.text))
}

func (rw *rewriter) flushIfAccumulating() error {
	if !rw.accumulating {
		return nil
	}
	return rw.flush()
}

// flush writes the held tokens back, resolving complete placeholders
// inside single text nodes only.
func (rw *rewriter) flush() error {
	held, _ := rw.take()
	return rw.emitHeld(held, true)
}

func (rw *rewriter) take() ([]xml.Token, string) {
	held, text := rw.held, rw.buf.String()
	rw.accumulating = false
	rw.held = nil
	rw.buf.Reset()
	return held, text
}

func (rw *rewriter) emitHeld(held []xml.Token, resolve bool) error {
	for _, tok := range held {
		if cd, ok := tok.(xml.CharData); ok && resolve {
			if err := rw.emitText(string(cd)); err != nil {
				return err
			}
			continue
		}
		if err := rw.emit(tok); err != nil {
			return err
		}
	}
	return nil
}

// balanced reports whether dropping held leaves the open element path as
// it is, e.g. "</w:t></w:r><w:r><w:t>".
func (rw *rewriter) balanced(held []xml.Token) bool {
	stack := slices.Clone(rw.open)
	for _, tok := range held {
		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, qualifiedName(t.Name))
		case xml.EndElement:
			if len(stack) == 0 || stack[len(stack)-1] != qualifiedName(t.Name) {
				return false
			}
			stack = stack[:len(stack)-1]
		}
	}
	return slices.Equal(stack, rw.open)
}

func (rw *rewriter) queue(images []string) {
	if len(images) == 0 {
		return
	}
	if len(rw.paragraphs) == 0 {
		rw.logger.Warn("image placeholder outside a paragraph dropped", zap.Strings("placeholders", images))
		return
	}
	top := len(rw.paragraphs) - 1
	rw.paragraphs[top] = append(rw.paragraphs[top], images...)
}

func (rw *rewriter) closeParagraph(end xml.EndElement) error {
	if err := rw.flushIfAccumulating(); err != nil {
		return err
	}

	if n := len(rw.paragraphs); n > 0 {
		for _, placeholder := range rw.paragraphs[n-1] {
			asset, _ := rw.reg.Image(placeholder)
			if asset == nil {
				continue
			}
			tokens, err := drawingTokens(asset, rw.ids.take(), rw.wPrefix)
			if err != nil {
				return err
			}
			for _, tok := range tokens {
				if err := rw.emit(tok); err != nil {
					return err
				}
			}
		}
	}
	return rw.emit(end)
}

// emit writes a raw token. Prefixed names are written as they appear in
// the source instead of letting the encoder invent namespace prefixes.
func (rw *rewriter) emit(tok xml.Token) error {
	switch t := tok.(type) {
	case xml.StartElement:
		name := qualifiedName(t.Name)
		attrs := make([]xml.Attr, len(t.Attr))
		for i, a := range t.Attr {
			attrs[i] = xml.Attr{Name: xml.Name{Local: qualifiedName(a.Name)}, Value: a.Value}
		}
		if err := rw.encode(xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs}); err != nil {
			return err
		}
		rw.open = append(rw.open, name)
		if rw.isParagraph(t.Name) {
			rw.paragraphs = append(rw.paragraphs, nil)
		}
		return nil

	case xml.EndElement:
		name := qualifiedName(t.Name)
		if len(rw.open) == 0 || rw.open[len(rw.open)-1] != name {
			return fmt.Errorf("%w: unexpected end element </%s>", ooxml.ErrXML, name)
		}
		if err := rw.encode(xml.EndElement{Name: xml.Name{Local: name}}); err != nil {
			return err
		}
		rw.open = rw.open[:len(rw.open)-1]
		if rw.isParagraph(t.Name) && len(rw.paragraphs) > 0 {
			rw.paragraphs = rw.paragraphs[:len(rw.paragraphs)-1]
		}
		return nil
	}
	return rw.encode(tok)
}

func (rw *rewriter) encode(tok xml.Token) error {
	if err := rw.enc.EncodeToken(tok); err != nil {
		return fmt.Errorf("%w: %w", ooxml.ErrXML, err)
	}
	return nil
}

func (rw *rewriter) noteNamespaces(t xml.StartElement) {
	for _, a := range t.Attr {
		if a.Name.Space == "xmlns" && a.Value == ooxml.WordprocessingNS {
			rw.wPrefix = a.Name.Local
		}
	}
}

func (rw *rewriter) isParagraph(name xml.Name) bool {
	return name.Space == rw.wPrefix && name.Local == "p"
}

func qualifiedName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}
