package ooxml

import (
	"fmt"

	"github.com/beevik/etree"
)

// TargetModeExternal marks relationships that point outside the package.
const TargetModeExternal = "External"

// Relationship represents a relationship in the package
type Relationship struct {
	ID         string
	Type       string
	Target     string
	TargetMode string
}

// IsExternal reports whether the target lies outside the package
func (r Relationship) IsExternal() bool {
	return r.TargetMode == TargetModeExternal
}

// ParseRelationships parses a relationships part.
func ParseRelationships(data []byte) ([]Relationship, error) {
	doc, err := ParseXML(data)
	if err != nil {
		return nil, err
	}

	root := doc.Root()
	if root.Tag != "Relationships" {
		return nil, fmt.Errorf("%w: unexpected root element %q", ErrXML, root.Tag)
	}

	var rels []Relationship
	for _, el := range root.SelectElements("Relationship") {
		rel := RelationshipFromElement(el)
		if rel.ID == "" {
			continue
		}
		rels = append(rels, rel)
	}
	return rels, nil
}

// RelationshipFromElement reads a Relationship element.
func RelationshipFromElement(el *etree.Element) Relationship {
	return Relationship{
		ID:         el.SelectAttrValue("Id", ""),
		Type:       el.SelectAttrValue("Type", ""),
		Target:     el.SelectAttrValue("Target", ""),
		TargetMode: el.SelectAttrValue("TargetMode", ""),
	}
}

// AppendTo adds the relationship as a child element of a Relationships root.
func (r Relationship) AppendTo(root *etree.Element) *etree.Element {
	el := root.CreateElement("Relationship")
	el.CreateAttr("Id", r.ID)
	el.CreateAttr("Type", r.Type)
	el.CreateAttr("Target", r.Target)
	if r.TargetMode != "" {
		el.CreateAttr("TargetMode", r.TargetMode)
	}
	return el
}

// NewRelationshipsDocument returns an empty relationships part.
func NewRelationshipsDocument() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	root := doc.CreateElement("Relationships")
	root.CreateAttr("xmlns", RelationshipsNS)
	return doc
}
