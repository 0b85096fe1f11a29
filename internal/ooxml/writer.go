package ooxml

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"time"
)

const (
	defaultEntryMode fs.FileMode = 0o644
	creatorUnix                  = 3
)

// Writer writes package entries and refuses duplicate names.
type Writer struct {
	zw      *zip.Writer
	written map[string]bool
}

// NewWriter creates a package writer on top of w
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		zw:      zip.NewWriter(w),
		written: make(map[string]bool),
	}
}

// Copy copies an entry byte-for-byte, compressed data and header included.
func (w *Writer) Copy(f *zip.File) error {
	if err := w.claim(f.Name); err != nil {
		return err
	}
	if err := w.zw.Copy(f); err != nil {
		return fmt.Errorf("failed to copy entry %s: %w", f.Name, archiveError(err))
	}
	return nil
}

// Replace writes new content under the name of src, keeping its
// compression method, modification time and Unix permissions.
func (w *Writer) Replace(src *zip.File, data []byte) error {
	method := src.Method
	if method != zip.Store && method != zip.Deflate {
		method = zip.Deflate
	}

	header := &zip.FileHeader{
		Name:     src.Name,
		Method:   method,
		Modified: src.Modified,
		Comment:  src.Comment,
	}
	header.SetMode(EntryMode(src))
	return w.write(header, data)
}

// Create writes a new deflated entry with default permissions.
func (w *Writer) Create(name string, data []byte) error {
	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: time.Now(),
	}
	header.SetMode(defaultEntryMode)
	return w.write(header, data)
}

// Written reports whether an entry with the given name was already written
func (w *Writer) Written(name string) bool {
	return w.written[name]
}

// Close flushes the central directory.
func (w *Writer) Close() error {
	if err := w.zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize package: %w", err)
	}
	return nil
}

func (w *Writer) write(header *zip.FileHeader, data []byte) error {
	if err := w.claim(header.Name); err != nil {
		return err
	}
	fw, err := w.zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create entry %s: %w", header.Name, archiveError(err))
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("failed to write entry %s: %w", header.Name, err)
	}
	return nil
}

func (w *Writer) claim(name string) error {
	if w.written[name] {
		return fmt.Errorf("%w: duplicate entry %s", ErrArchive, name)
	}
	w.written[name] = true
	return nil
}

// EntryMode returns the Unix permission bits recorded for an entry, or
// 0644 when the archive was not written on a Unix host.
func EntryMode(f *zip.File) fs.FileMode {
	if f.CreatorVersion>>8 == creatorUnix {
		if perm := fs.FileMode(f.ExternalAttrs>>16) & fs.ModePerm; perm != 0 {
			return perm
		}
	}
	return defaultEntryMode
}
