// Package ooxml provides low-level access to OOXML packages: the ZIP
// container, its relationship parts, its content types and the XML
// decoding rules shared by every part rewriter.
package ooxml

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
)

// Package provides access to the entries of an OOXML package
type Package struct {
	closer  io.Closer
	entries []*zip.File
	files   map[string]*zip.File
}

// Open opens a package file and validates that it carries a main document part
func Open(path string) (*Package, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open package %s: %w", path, archiveError(err))
	}

	pkg := newPackage(&zr.Reader, zr)
	if err := pkg.validate(); err != nil {
		zr.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pkg, nil
}

// NewPackage reads a package from r. The caller keeps ownership of r.
func NewPackage(r io.ReaderAt, size int64) (*Package, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to read package: %w", archiveError(err))
	}

	pkg := newPackage(zr, nil)
	if err := pkg.validate(); err != nil {
		return nil, err
	}
	return pkg, nil
}

// ReadPackageFile loads a whole package file into memory.
func ReadPackageFile(path string) (*Package, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read package: %w", err)
	}
	return NewPackage(bytes.NewReader(content), int64(len(content)))
}

func newPackage(zr *zip.Reader, closer io.Closer) *Package {
	pkg := &Package{
		closer:  closer,
		entries: zr.File,
		files:   make(map[string]*zip.File, len(zr.File)),
	}

	// Build file map with normalized paths
	for _, f := range zr.File {
		pkg.files[normalizePath(f.Name)] = f
	}
	return pkg
}

// Close closes the underlying archive when the package owns it
func (p *Package) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

// Entries returns the archive entries in their original order
func (p *Package) Entries() []*zip.File {
	return p.entries
}

// Has reports whether the package contains the named part
func (p *Package) Has(name string) bool {
	_, ok := p.files[normalizePath(name)]
	return ok
}

// Entry returns the archive entry for the named part
func (p *Package) Entry(name string) (*zip.File, bool) {
	f, ok := p.files[normalizePath(name)]
	return f, ok
}

// ReadFile reads the contents of a part
func (p *Package) ReadFile(name string) ([]byte, error) {
	f, ok := p.Entry(name)
	if !ok {
		return nil, &PartError{Part: normalizePath(name), Err: ErrMissingPart}
	}
	return ReadEntry(f)
}

// ReadEntry reads and decompresses a single archive entry
func ReadEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, &PartError{Part: f.Name, Err: archiveError(err)}
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &PartError{Part: f.Name, Err: archiveError(err)}
	}
	return data, nil
}

// validate checks that the main document part exists
func (p *Package) validate() error {
	if !p.Has(DocumentPart) {
		return &PartError{Part: DocumentPart, Err: ErrMissingPart}
	}
	return nil
}

// normalizePath normalizes part names (removes ./ and / prefixes)
func normalizePath(name string) string {
	name = strings.TrimPrefix(name, "./")
	return strings.TrimPrefix(name, "/")
}
