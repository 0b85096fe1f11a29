package merge

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/yuanying/docxtpl/internal/ooxml"
)

const (
	imageRelType    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	stylesRelType   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles"
	headerRelType   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/header"
	settingsRelType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/settings"
)

type testRel struct {
	id, typ, target string
}

type testDoc struct {
	body   string
	rootNS string
	rels   []testRel
	files  map[string][]byte
}

func writeDocx(t *testing.T, name string, doc testDoc) string {
	t.Helper()

	var rels strings.Builder
	rels.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	rels.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for _, r := range doc.rels {
		rels.WriteString(`<Relationship Id="` + r.id + `" Type="` + r.typ + `" Target="` + r.target + `"/>`)
	}
	rels.WriteString(`</Relationships>`)

	document := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
		`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"` + doc.rootNS + `>` +
		`<w:body>` + doc.body + `</w:body></w:document>`

	entries := map[string][]byte{
		"[Content_Types].xml": []byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Default Extension="xml" ContentType="application/xml"/>` +
			`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
			`</Types>`),
		"word/document.xml":            []byte(document),
		"word/_rels/document.xml.rels": []byte(rels.String()),
		"word/styles.xml":              []byte(`<w:styles/>`),
	}
	for k, v := range doc.files {
		entries[k] = v
	}

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for n, data := range entries {
		fw, err := zw.Create(n)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(data)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func readEntries(t *testing.T, path string) map[string][]byte {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer zr.Close()

	out := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		out[f.Name] = data
	}
	return out
}

func relsByID(t *testing.T, data []byte) map[string]ooxml.Relationship {
	t.Helper()
	rels, err := ooxml.ParseRelationships(data)
	if err != nil {
		t.Fatalf("ParseRelationships() error = %v", err)
	}
	out := make(map[string]ooxml.Relationship)
	for _, r := range rels {
		out[r.ID] = r
	}
	return out
}

func blip(id string) string {
	return `<w:p><w:r><w:drawing><a:blip xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" r:embed="` + id + `"/></w:drawing></w:r></w:p>`
}

func TestMerge_PageBreak(t *testing.T) {
	a := writeDocx(t, "a.docx", testDoc{
		body:  `<w:p><w:r><w:t>Alpha</w:t></w:r></w:p>` + blip("rId2") + `<w:sectPr><w:pgSz w:w="2"/></w:sectPr>`,
		rels:  []testRel{{"rId1", stylesRelType, "styles.xml"}, {"rId2", imageRelType, "media/a.png"}},
		files: map[string][]byte{"word/media/a.png": []byte("png-a")},
	})
	b := writeDocx(t, "b.docx", testDoc{
		body:   `<w:p><w:r><w:t>Beta</w:t></w:r></w:p>` + blip("rId3") + `<w:sectPr><w:pgSz w:w="1"/></w:sectPr>`,
		rootNS: ` xmlns:w16se="http://schemas.microsoft.com/office/word/2015/wordml/symex"`,
		rels:   []testRel{{"rId1", stylesRelType, "styles.xml"}, {"rId3", imageRelType, "media/b.png"}},
		files:  map[string][]byte{"word/media/b.png": []byte("png-b")},
	})

	scratch := afero.NewMemMapFs()
	output := filepath.Join(t.TempDir(), "merged.docx")
	if err := Merge([]string{a, b}, output, Options{Separator: PageBreak(), Scratch: scratch}); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	entries := readEntries(t, output)
	doc := string(entries[ooxml.DocumentPart])

	alpha := strings.Index(doc, "Alpha")
	pageBreak := strings.Index(doc, `<w:br w:type="page"/>`)
	beta := strings.Index(doc, "Beta")
	if alpha < 0 || pageBreak < alpha || beta < pageBreak {
		t.Fatalf("unexpected body order:\n%s", doc)
	}
	if strings.Count(doc, "<w:sectPr>") != 1 || !strings.Contains(doc, `<w:pgSz w:w="2"/></w:sectPr></w:body>`) {
		t.Fatalf("first document's section properties should close the body:\n%s", doc)
	}
	if !strings.Contains(doc, `xmlns:w16se="http://schemas.microsoft.com/office/word/2015/wordml/symex"`) ||
		!strings.Contains(doc, `mc:Ignorable="w14 w15 wp14"`) {
		t.Fatalf("root namespaces missing:\n%s", doc)
	}

	rels := relsByID(t, entries[ooxml.DocumentRelsPart])
	if len(rels) != 3 {
		t.Fatalf("relationships = %v, want rId1 rId2 rId3", rels)
	}
	if rels["rId2"].Target != "media/a.png" || rels["rId3"].Target != "media/b.png" {
		t.Fatalf("relationships = %v", rels)
	}
	if string(entries["word/media/a.png"]) != "png-a" || string(entries["word/media/b.png"]) != "png-b" {
		t.Fatal("media not merged")
	}
	if string(entries["word/styles.xml"]) != `<w:styles/>` {
		t.Fatal("template parts should be copied through")
	}

	// scratch files are gone
	left, _ := afero.Glob(scratch, filepath.Join(os.TempDir(), "docxtpl-merge-*"))
	if len(left) != 0 {
		t.Fatalf("scratch directories left behind: %v", left)
	}
}

func TestMerge_CollidingIDsAreRemapped(t *testing.T) {
	a := writeDocx(t, "a.docx", testDoc{
		body:  blip("rId2"),
		rels:  []testRel{{"rId1", stylesRelType, "styles.xml"}, {"rId2", imageRelType, "media/image1.png"}},
		files: map[string][]byte{"word/media/image1.png": []byte("first")},
	})
	b := writeDocx(t, "b.docx", testDoc{
		body:  blip("rId2"),
		rels:  []testRel{{"rId1", stylesRelType, "styles.xml"}, {"rId2", imageRelType, "media/image1.png"}},
		files: map[string][]byte{"word/media/image1.png": []byte("second")},
	})

	output := filepath.Join(t.TempDir(), "merged.docx")
	if err := Merge([]string{a, b}, output, Options{Scratch: afero.NewMemMapFs()}); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	entries := readEntries(t, output)
	if string(entries["word/media/image1.png"]) != "first" || string(entries["word/media/image1_1.png"]) != "second" {
		t.Fatalf("colliding media not renamed: %v", keys(entries))
	}

	rels := relsByID(t, entries[ooxml.DocumentRelsPart])
	if rels["rId2"].Target != "media/image1.png" {
		t.Fatalf("rId2 = %+v", rels["rId2"])
	}
	if rels["rId3"].Target != "media/image1_1.png" {
		t.Fatalf("remapped relationship = %+v, all = %v", rels["rId3"], rels)
	}

	doc := string(entries[ooxml.DocumentPart])
	if !strings.Contains(doc, `r:embed="rId2"`) || !strings.Contains(doc, `r:embed="rId3"`) {
		t.Fatalf("body references not remapped:\n%s", doc)
	}
}

func TestMerge_IdenticalMediaShared(t *testing.T) {
	doc := testDoc{
		body:  blip("rId2"),
		rels:  []testRel{{"rId2", imageRelType, "media/image1.png"}},
		files: map[string][]byte{"word/media/image1.png": []byte("same")},
	}
	a := writeDocx(t, "a.docx", doc)
	b := writeDocx(t, "b.docx", doc)

	output := filepath.Join(t.TempDir(), "merged.docx")
	if err := Merge([]string{a, b}, output, Options{Scratch: afero.NewMemMapFs()}); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	entries := readEntries(t, output)
	if _, ok := entries["word/media/image1_1.png"]; ok {
		t.Fatal("identical media should not be duplicated")
	}
	if rels := relsByID(t, entries[ooxml.DocumentRelsPart]); len(rels) != 1 {
		t.Fatalf("relationships = %v, want a single shared one", rels)
	}
}

func TestMerge_SamePartsUnderDifferentIDs(t *testing.T) {
	a := writeDocx(t, "a.docx", testDoc{
		body:  `<w:p><w:hyperlink r:id="rId1"/><w:hyperlink r:id="rId2"/></w:p>`,
		rels:  []testRel{{"rId1", stylesRelType, "styles.xml"}, {"rId2", settingsRelType, "settings.xml"}},
		files: map[string][]byte{"word/settings.xml": []byte(`<w:settings/>`)},
	})
	b := writeDocx(t, "b.docx", testDoc{
		body: `<w:p><w:hyperlink r:id="rId2"/><w:hyperlink r:id="rId1"/></w:p>`,
		rels: []testRel{{"rId1", settingsRelType, "settings.xml"}, {"rId2", stylesRelType, "styles.xml"}},
	})

	output := filepath.Join(t.TempDir(), "merged.docx")
	if err := Merge([]string{a, b}, output, Options{Scratch: afero.NewMemMapFs()}); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	entries := readEntries(t, output)
	rels := relsByID(t, entries[ooxml.DocumentRelsPart])
	if len(rels) != 2 {
		t.Fatalf("relationships = %v, want one per part", rels)
	}
	if rels["rId1"].Type != stylesRelType || rels["rId2"].Type != settingsRelType {
		t.Fatalf("relationships = %v", rels)
	}

	// references of the second document point at the shared relationships
	doc := string(entries[ooxml.DocumentPart])
	want := `<w:p><w:hyperlink r:id="rId1"/><w:hyperlink r:id="rId2"/></w:p>`
	if strings.Count(doc, want) != 2 {
		t.Fatalf("body references not remapped:\n%s", doc)
	}
}

func TestMerge_DropsRelationshipsToMissingParts(t *testing.T) {
	a := writeDocx(t, "a.docx", testDoc{body: `<w:p/>`})
	b := writeDocx(t, "b.docx", testDoc{
		body:  `<w:p/>`,
		rels:  []testRel{{"rId9", headerRelType, "header1.xml"}},
		files: map[string][]byte{"word/header1.xml": []byte(`<w:hdr/>`)},
	})

	output := filepath.Join(t.TempDir(), "merged.docx")
	if err := Merge([]string{a, b}, output, Options{Scratch: afero.NewMemMapFs()}); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	entries := readEntries(t, output)
	if _, ok := relsByID(t, entries[ooxml.DocumentRelsPart])["rId9"]; ok {
		t.Fatal("relationship to a part of a later document should be dropped")
	}
	if _, ok := entries["word/header1.xml"]; ok {
		t.Fatal("non-body parts of later documents are not merged")
	}
}

func TestMerge_BlankLines(t *testing.T) {
	a := writeDocx(t, "a.docx", testDoc{body: `<w:p><w:r><w:t>A</w:t></w:r></w:p>`})
	b := writeDocx(t, "b.docx", testDoc{body: `<w:p><w:r><w:t>B</w:t></w:r></w:p>`})
	c := writeDocx(t, "c.docx", testDoc{body: `<w:p><w:r><w:t>C</w:t></w:r></w:p>`})

	output := filepath.Join(t.TempDir(), "merged.docx")
	if err := Merge([]string{a, b, c}, output, Options{Separator: BlankLines(2), Scratch: afero.NewMemMapFs()}); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	doc := string(readEntries(t, output)[ooxml.DocumentPart])
	blank := `<w:p><w:r><w:t/></w:r></w:p>`
	want := `<w:t>A</w:t></w:r></w:p>` + blank + blank + `<w:p><w:r><w:t>B</w:t></w:r></w:p>` + blank + blank + `<w:p><w:r><w:t>C</w:t>`
	if !strings.Contains(doc, want) {
		t.Fatalf("unexpected body:\n%s", doc)
	}
	if strings.Contains(doc, "w:br") {
		t.Fatal("blank line separator should not insert page breaks")
	}
}

func TestMerge_Errors(t *testing.T) {
	output := filepath.Join(t.TempDir(), "merged.docx")

	if err := Merge(nil, output, Options{}); !errors.Is(err, ErrNoInputs) {
		t.Fatalf("Merge(nil) error = %v, want ErrNoInputs", err)
	}

	good := writeDocx(t, "a.docx", testDoc{body: `<w:p/>`})
	broken := filepath.Join(t.TempDir(), "broken.docx")
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fw, _ := zw.Create(ooxml.DocumentPart)
	fw.Write([]byte(`<w:document xmlns:w="x"><w:body><w:p a=1/></w:body></w:document>`))
	zw.Close()
	os.WriteFile(broken, buf.Bytes(), 0o644)

	err := Merge([]string{good, broken}, output, Options{Scratch: afero.NewMemMapFs()})
	if !errors.Is(err, ooxml.ErrXML) {
		t.Fatalf("Merge() error = %v, want ErrXML", err)
	}
	if _, statErr := os.Stat(output); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("no output expected after failure, stat error = %v", statErr)
	}
}

func TestParseSeparator(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"page", "page", false},
		{"PAGE-BREAK", "page", false},
		{"lines:3", "lines:3", false},
		{"lines:0", "lines:0", false},
		{"lines:-1", "", true},
		{"lines:x", "", true},
		{"section", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSeparator(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSeparator(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got.String() != tt.want {
			t.Errorf("ParseSeparator(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
	if (Separator{}).String() != "page" {
		t.Fatal("zero Separator should be a page break")
	}
}

func keys(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
