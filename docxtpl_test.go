package docxtpl_test

import (
	"archive/zip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yuanying/docxtpl"
)

func writeTemplate(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "template.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	fw, _ := zw.Create("word/document.xml")
	fw.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRender(t *testing.T) {
	template := writeTemplate(t, `<w:p><w:r><w:t>Hello {{name}}</w:t></w:r></w:p>`)
	output := filepath.Join(t.TempDir(), "out.docx")

	reg := docxtpl.NewRegistry(docxtpl.NewResolver(docxtpl.ResolverOptions{}), docxtpl.RegistryOptions{})
	reg.SetText("{{name}}", "world")
	if err := docxtpl.NewPipeline(reg, docxtpl.Options{}).Render(template, output); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	zr, err := zip.OpenReader(output)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()

	if !strings.Contains(string(data), "Hello world") {
		t.Fatalf("document = %s", data)
	}
	found, err := docxtpl.Placeholders(data)
	if err != nil || len(found) != 0 {
		t.Fatalf("Placeholders() = %v, %v", found, err)
	}
}

func TestErrorsAreMatchable(t *testing.T) {
	reg := docxtpl.NewRegistry(nil, docxtpl.RegistryOptions{})
	err := reg.AddImageFile("{{logo}}", filepath.Join(t.TempDir(), "missing.png"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("AddImageFile() error = %v, want os.ErrNotExist", err)
	}

	if err := docxtpl.Merge(nil, "out.docx", docxtpl.MergeOptions{}); !errors.Is(err, docxtpl.ErrNoInputs) {
		t.Fatalf("Merge() error = %v, want ErrNoInputs", err)
	}
}

func TestSeparators(t *testing.T) {
	if got := docxtpl.PageBreak().String(); got != "page" {
		t.Fatalf("PageBreak() = %s, want page", got)
	}
	if got := docxtpl.BlankLines(3).String(); got != "lines:3" {
		t.Fatalf("BlankLines(3) = %s, want lines:3", got)
	}
}
