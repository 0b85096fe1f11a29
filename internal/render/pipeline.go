package render

import (
	"archive/zip"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/yuanying/docxtpl/internal/ooxml"
)

// Options holds options for the render pipeline.
type Options struct {
	Logger *zap.Logger
	// LegacySubstitution applies text replacements one key at a time over
	// the whole text, rescanning replacement values.
	LegacySubstitution bool
	// EnsureContentTypes adds [Content_Types].xml defaults for the
	// extensions of embedded images.
	EnsureContentTypes bool
}

// Pipeline renders a template package with the replacements of a Registry.
type Pipeline struct {
	reg    *Registry
	opts   Options
	logger *zap.Logger
}

// NewPipeline creates a new render pipeline.
func NewPipeline(reg *Registry, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{reg: reg, opts: opts, logger: logger}
}

// Render renders templatePath into outputPath. outputPath only appears
// once the whole package has been written.
func (p *Pipeline) Render(templatePath, outputPath string) error {
	pkg, err := ooxml.Open(templatePath)
	if err != nil {
		return fmt.Errorf("failed to open template: %w", err)
	}
	defer pkg.Close()

	return ooxml.WriteFileAtomic(outputPath, func(w io.Writer) error {
		return p.RenderPackage(w, pkg)
	})
}

// RenderTo renders the template read from r into w.
func (p *Pipeline) RenderTo(w io.Writer, r io.ReaderAt, size int64) error {
	pkg, err := ooxml.NewPackage(r, size)
	if err != nil {
		return fmt.Errorf("failed to open template: %w", err)
	}
	return p.RenderPackage(w, pkg)
}

// RenderPackage writes the rendered form of pkg to w.
func (p *Pipeline) RenderPackage(w io.Writer, pkg *ooxml.Package) error {
	assets := p.reg.Assets()
	zw := ooxml.NewWriter(w)

	for _, f := range pkg.Entries() {
		if err := p.writeEntry(zw, f); err != nil {
			return err
		}
	}

	if !pkg.Has(ooxml.DocumentRelsPart) && len(assets) > 0 {
		data, err := newRelationships(assets)
		if err != nil {
			return &ooxml.PartError{Part: ooxml.DocumentRelsPart, Err: err}
		}
		if err := zw.Create(ooxml.DocumentRelsPart, data); err != nil {
			return err
		}
	}

	for _, asset := range assets {
		if err := zw.Create(asset.MediaName(), asset.Data); err != nil {
			return fmt.Errorf("failed to add image %s: %w", asset.Source, err)
		}
		p.logger.Debug("embedded image",
			zap.String("source", asset.Source),
			zap.String("entry", asset.MediaName()),
			zap.Int64("width", asset.Width),
			zap.Int64("height", asset.Height))
	}

	return zw.Close()
}

func (p *Pipeline) writeEntry(zw *ooxml.Writer, f *zip.File) error {
	var rewrite func([]byte) ([]byte, error)
	switch f.Name {
	case ooxml.DocumentPart:
		rewrite = p.RewriteDocument
	case ooxml.DocumentRelsPart:
		rewrite = func(data []byte) ([]byte, error) {
			return rewriteRelationships(data, p.reg.Assets())
		}
	case ooxml.ContentTypesPart:
		if p.opts.EnsureContentTypes {
			rewrite = p.rewriteContentTypes
		}
	}

	if rewrite == nil {
		return zw.Copy(f)
	}

	data, err := ooxml.ReadEntry(f)
	if err != nil {
		return err
	}
	out, err := rewrite(data)
	if err != nil {
		return &ooxml.PartError{Part: f.Name, Err: err}
	}
	return zw.Replace(f, out)
}

// RewriteDocument resolves the placeholders of a main document part.
func (p *Pipeline) RewriteDocument(data []byte) ([]byte, error) {
	return rewriteDocument(data, p.reg, p.opts.LegacySubstitution, p.logger)
}

func (p *Pipeline) rewriteContentTypes(data []byte) ([]byte, error) {
	var exts []string
	for _, asset := range p.reg.Assets() {
		exts = append(exts, asset.Ext)
	}
	return ooxml.EnsureDefaults(data, exts)
}
