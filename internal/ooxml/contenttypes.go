package ooxml

import (
	"strings"

	"github.com/beevik/etree"
)

var imageContentTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"webp": "image/webp",
	"svg":  "image/svg+xml",
	"emf":  "image/x-emf",
	"wmf":  "image/x-wmf",
}

// ContentTypeForExt returns the content type registered for a media extension.
func ContentTypeForExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ct, ok := imageContentTypes[ext]; ok {
		return ct
	}
	return "image/" + ext
}

// EnsureDefaults adds a Default element to [Content_Types].xml for every
// extension that has none. The input is returned unchanged when nothing
// is missing.
func EnsureDefaults(data []byte, exts []string) ([]byte, error) {
	doc, err := ParseXML(data)
	if err != nil {
		return nil, err
	}

	root := doc.Root()
	known := make(map[string]bool)
	for _, d := range root.SelectElements("Default") {
		known[strings.ToLower(d.SelectAttrValue("Extension", ""))] = true
	}

	added := false
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimPrefix(ext, "."))
		if ext == "" || known[ext] {
			continue
		}
		known[ext] = true

		// Default elements must precede Override elements
		def := newDefault(ext)
		if first := root.SelectElement("Override"); first != nil {
			root.InsertChildAt(first.Index(), def)
		} else {
			root.AddChild(def)
		}
		added = true
	}
	if !added {
		return data, nil
	}

	return WriteXML(doc)
}

func newDefault(ext string) *etree.Element {
	def := etree.NewElement("Default")
	def.CreateAttr("Extension", ext)
	def.CreateAttr("ContentType", ContentTypeForExt(ext))
	return def
}
