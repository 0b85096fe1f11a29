package render

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

const (
	testDocHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
		`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" ` +
		`xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"><w:body>`
	testDocFooter = `</w:body></w:document>`

	testRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
		`</Relationships>`

	testContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
		`<Default Extension="xml" ContentType="application/xml"/>` +
		`<Default Extension="png" ContentType="image/png"/>` +
		`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
		`</Types>`
)

func testDocument(body string) []byte {
	return []byte(testDocHeader + body + testDocFooter)
}

type testEntry struct {
	name   string
	data   []byte
	method uint16
}

// buildTemplate assembles a template package in memory
func buildTemplate(t *testing.T, body string, extra ...testEntry) []byte {
	t.Helper()
	entries := []testEntry{
		{name: "[Content_Types].xml", data: []byte(testContentTypes), method: zip.Deflate},
		{name: "word/document.xml", data: testDocument(body), method: zip.Deflate},
		{name: "word/_rels/document.xml.rels", data: []byte(testRels), method: zip.Deflate},
		{name: "word/styles.xml", data: []byte(`<w:styles/>`), method: zip.Store},
	}
	entries = append(entries, extra...)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		header := &zip.FileHeader{Name: e.name, Method: e.method}
		header.SetMode(0o644)
		fw, err := zw.CreateHeader(header)
		if err != nil {
			t.Fatalf("failed to create %s: %v", e.name, err)
		}
		fw.Write(e.data)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close template: %v", err)
	}
	return buf.Bytes()
}

func writeTemplate(t *testing.T, body string, extra ...testEntry) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "template.docx")
	if err := os.WriteFile(path, buildTemplate(t, body, extra...), 0o644); err != nil {
		t.Fatalf("failed to write template: %v", err)
	}
	return path
}

func openOutput(t *testing.T, path string) *zip.ReadCloser {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	t.Cleanup(func() { zr.Close() })
	return zr
}

func readZipEntry(t *testing.T, zr *zip.Reader, name string) []byte {
	t.Helper()
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("failed to open %s: %v", name, err)
		}
		defer rc.Close()
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			t.Fatalf("failed to read %s: %v", name, err)
		}
		return buf.Bytes()
	}
	t.Fatalf("entry %s not found", name)
	return nil
}

func mustPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 240, G: 120, B: 10, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode failed: %v", err)
	}
	return buf.Bytes()
}

func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image.png")
	if err := os.WriteFile(path, mustPNG(t, w, h), 0o644); err != nil {
		t.Fatalf("failed to write png: %v", err)
	}
	return path
}
