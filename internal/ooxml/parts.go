package ooxml

import (
	"path"
	"strings"
)

// Well-known part names of a WordprocessingML package.
const (
	DocumentPart      = "word/document.xml"
	DocumentRelsPart  = "word/_rels/document.xml.rels"
	ContentTypesPart  = "[Content_Types].xml"
	MediaDir          = "word/media/"
	documentPartDir   = "word/"
	relsDirName       = "_rels"
	relsPartExtension = ".rels"
)

// Namespace and relationship type URIs.
const (
	RelationshipsNS       = "http://schemas.openxmlformats.org/package/2006/relationships"
	ContentTypesNS        = "http://schemas.openxmlformats.org/package/2006/content-types"
	OfficeRelationshipsNS = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	WordprocessingNS      = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	ImageRelationshipType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
)

// MediaEntryName returns the archive path of an embedded image
// (word/media/image_<id>.<ext>).
func MediaEntryName(relID, ext string) string {
	return documentPartDir + MediaTarget(relID, ext)
}

// MediaTarget returns the relationship target of an embedded image,
// relative to the main document part.
func MediaTarget(relID, ext string) string {
	return "media/image_" + relID + "." + ext
}

// IsMediaEntry reports whether name lives in the document media directory.
func IsMediaEntry(name string) bool {
	return strings.HasPrefix(normalizePath(name), MediaDir)
}

// RelationshipsPartFor returns the relationships part of a source part,
// e.g. "word/document.xml" -> "word/_rels/document.xml.rels".
func RelationshipsPartFor(part string) string {
	dir, base := path.Split(normalizePath(part))
	return dir + relsDirName + "/" + base + relsPartExtension
}

// ResolveTarget resolves an internal relationship target against the
// directory of the part that owns the relationship.
func ResolveTarget(sourcePart, target string) string {
	if strings.HasPrefix(target, "/") {
		return normalizePath(path.Clean(target))
	}
	return path.Clean(path.Join(path.Dir(normalizePath(sourcePart)), target))
}

// RelativeTarget is the inverse of ResolveTarget for parts below the
// main document directory.
func RelativeTarget(entryName string) string {
	return strings.TrimPrefix(normalizePath(entryName), documentPartDir)
}
