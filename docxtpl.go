// Package docxtpl fills {{placeholder}} markers in Word (.docx) templates
// with text and images, and merges several documents into one.
//
// A typical render:
//
//	reg := docxtpl.NewRegistry(docxtpl.NewResolver(docxtpl.ResolverOptions{}), docxtpl.RegistryOptions{})
//	reg.SetText("{{name}}", "Acme")
//	if err := reg.AddImageFileSize("{{logo}}", "logo.png", 4, 2); err != nil {
//		return err
//	}
//	err := docxtpl.NewPipeline(reg, docxtpl.Options{}).Render("template.docx", "out.docx")
package docxtpl

import (
	"github.com/yuanying/docxtpl/internal/media"
	"github.com/yuanying/docxtpl/internal/merge"
	"github.com/yuanying/docxtpl/internal/ooxml"
	"github.com/yuanying/docxtpl/internal/render"
)

type (
	Registry        = render.Registry
	RegistryOptions = render.RegistryOptions
	Pipeline        = render.Pipeline
	Options         = render.Options

	Resolver        = media.Resolver
	ResolverOptions = media.Options
	Asset           = media.Asset
	Size            = media.Size

	MergeOptions = merge.Options
	Separator    = merge.Separator

	PartError  = ooxml.PartError
	ImageError = media.ImageError
)

var (
	ErrArchive     = ooxml.ErrArchive
	ErrMissingPart = ooxml.ErrMissingPart
	ErrXML         = ooxml.ErrXML
	ErrEncoding    = ooxml.ErrEncoding

	ErrImageNotFound = media.ErrImageNotFound
	ErrImageDecode   = media.ErrImageDecode
	ErrFetch         = media.ErrFetch
	ErrNotAnImage    = media.ErrNotAnImage

	ErrNoInputs = merge.ErrNoInputs
)

// StandardSize is the size used for images registered without one when
// a caller opts out of native sizing.
var StandardSize = media.StandardSize

// NewResolver creates an image resolver with the defaults of opts applied.
func NewResolver(opts ResolverOptions) *Resolver {
	return media.NewResolver(opts)
}

// NewRegistry creates an empty placeholder registry. A nil resolver is
// replaced by one with default options.
func NewRegistry(resolver *Resolver, opts RegistryOptions) *Registry {
	return render.NewRegistry(resolver, opts)
}

// NewPipeline creates a render pipeline over the replacements of reg.
func NewPipeline(reg *Registry, opts Options) *Pipeline {
	return render.NewPipeline(reg, opts)
}

// Merge concatenates the documents at inputs into output. The first input
// provides every part other than the body content.
func Merge(inputs []string, output string, opts MergeOptions) error {
	return merge.Merge(inputs, output, opts)
}

// PageBreak separates merged documents with a page break.
func PageBreak() Separator { return merge.PageBreak() }

// BlankLines separates merged documents with n empty paragraphs.
func BlankLines(n int) Separator { return merge.BlankLines(n) }

// Placeholders lists the distinct placeholders found in a word/document.xml part.
func Placeholders(document []byte) ([]string, error) {
	return render.Placeholders(document)
}
