package ooxml

import (
	"encoding/xml"
	"fmt"
	"io"
	"regexp"

	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"
)

var encodingDecl = regexp.MustCompile(`encoding\s*=\s*["'][^"']*["']`)

// NewDecoder returns an XML decoder that transcodes any encoding a word
// processor may declare into UTF-8.
func NewDecoder(r io.Reader) *xml.Decoder {
	d := xml.NewDecoder(r)
	d.CharsetReader = charsetReader
	return d
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	r, err := charset.NewReaderLabel(label, input)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrEncoding, label, err)
	}
	return r, nil
}

// UTF8Declaration rewrites the encoding pseudo-attribute of an XML
// declaration to UTF-8. Decoded parts are always re-emitted as UTF-8.
func UTF8Declaration(inst string) string {
	if !encodingDecl.MatchString(inst) {
		return inst
	}
	return encodingDecl.ReplaceAllString(inst, `encoding="UTF-8"`)
}

// ParseXML parses a package part into an etree document.
func ParseXML(data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charsetReader
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, XMLError(err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("%w: no root element", ErrXML)
	}

	for _, tok := range doc.Child {
		if pi, ok := tok.(*etree.ProcInst); ok && pi.Target == "xml" {
			pi.Inst = UTF8Declaration(pi.Inst)
		}
	}
	return doc, nil
}

// WriteXML serializes an etree document, adding an XML declaration when
// the document has none.
func WriteXML(doc *etree.Document) ([]byte, error) {
	hasDecl := false
	for _, tok := range doc.Child {
		if pi, ok := tok.(*etree.ProcInst); ok && pi.Target == "xml" {
			hasDecl = true
			break
		}
	}
	if !hasDecl {
		doc.InsertChildAt(0, etree.NewProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`))
	}

	data, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize XML: %w", err)
	}
	return data, nil
}
