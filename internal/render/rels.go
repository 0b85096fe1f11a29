package render

import (
	"fmt"

	"github.com/beevik/etree"

	"github.com/yuanying/docxtpl/internal/media"
	"github.com/yuanying/docxtpl/internal/ooxml"
)

// rewriteRelationships keeps the declaration, the root element and every
// Relationship element of a relationships part, drops any other content
// and appends one image relationship per asset.
func rewriteRelationships(data []byte, assets []*media.Asset) ([]byte, error) {
	doc, err := ooxml.ParseXML(data)
	if err != nil {
		return nil, err
	}

	root := doc.Root()
	if root.Tag != "Relationships" {
		return nil, fmt.Errorf("%w: unexpected root element %q", ooxml.ErrXML, root.Tag)
	}

	for _, tok := range append([]etree.Token(nil), root.Child...) {
		if el, ok := tok.(*etree.Element); ok && el.Tag == "Relationship" {
			continue
		}
		root.RemoveChild(tok)
	}

	for _, asset := range assets {
		asset.Relationship().AppendTo(root)
	}
	return ooxml.WriteXML(doc)
}

// newRelationships builds a relationships part for a template that has none.
func newRelationships(assets []*media.Asset) ([]byte, error) {
	doc := ooxml.NewRelationshipsDocument()
	for _, asset := range assets {
		asset.Relationship().AppendTo(doc.Root())
	}
	return ooxml.WriteXML(doc)
}
