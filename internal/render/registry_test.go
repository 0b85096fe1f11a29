package render

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/yuanying/docxtpl/internal/media"
)

func TestRegistry_SameSourceLoadedOnce(t *testing.T) {
	path := writePNG(t, 10, 10)
	reg := NewRegistry(nil, RegistryOptions{})

	if err := reg.AddImageFile("{{a}}", path); err != nil {
		t.Fatalf("AddImageFile() error = %v", err)
	}
	// the cached bytes must be reused
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := reg.AddImageFile("{{b}}", path); err != nil {
		t.Fatalf("AddImageFile() cached error = %v", err)
	}

	a, _ := reg.Image("{{a}}")
	b, _ := reg.Image("{{b}}")
	if a.RelID == b.RelID {
		t.Fatal("each registration needs its own relationship id")
	}
	if !bytes.Equal(a.Data, b.Data) || a.Width != b.Width || a.Height != b.Height {
		t.Fatal("cached registration should share bytes and size")
	}
}

func TestRegistry_CachedSourceWithNewSize(t *testing.T) {
	path := writePNG(t, 10, 10)
	reg := NewRegistry(nil, RegistryOptions{})

	reg.AddImageFile("{{a}}", path)
	if err := reg.AddImageFileSize("{{b}}", path, 3, 4); err != nil {
		t.Fatalf("AddImageFileSize() error = %v", err)
	}

	a, _ := reg.Image("{{a}}")
	b, _ := reg.Image("{{b}}")
	if a.Width != media.PixelsToEMU(10) {
		t.Fatalf("first registration changed size: %d", a.Width)
	}
	if b.Width != 3*media.EMUPerCM || b.Height != 4*media.EMUPerCM {
		t.Fatalf("resized = %dx%d", b.Width, b.Height)
	}
}

func TestRegistry_URLFetchedOnce(t *testing.T) {
	data := mustPNG(t, 8, 8)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer srv.Close()

	resolver := media.NewResolver(media.Options{Client: srv.Client()})
	reg := NewRegistry(resolver, RegistryOptions{})
	ctx := context.Background()

	if err := reg.AddImageURL(ctx, "{{a}}", srv.URL+"/p"); err != nil {
		t.Fatalf("AddImageURL() error = %v", err)
	}
	if err := reg.AddImageURLSize(ctx, "{{b}}", srv.URL+"/p", 1, 1); err != nil {
		t.Fatalf("AddImageURLSize() error = %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("server hit %d times, want 1", got)
	}
	if len(reg.Assets()) != 2 {
		t.Fatalf("Assets() = %d, want 2", len(reg.Assets()))
	}
}

func TestRegistry_EmptySourceIsBlank(t *testing.T) {
	reg := NewRegistry(nil, RegistryOptions{})
	if err := reg.AddImageFile("{{a}}", ""); err != nil {
		t.Fatalf("AddImageFile() error = %v", err)
	}
	if err := reg.AddImageURL(context.Background(), "{{b}}", ""); err != nil {
		t.Fatalf("AddImageURL() error = %v", err)
	}

	for _, p := range []string{"{{a}}", "{{b}}"} {
		asset, ok := reg.Image(p)
		if !ok || asset != nil {
			t.Fatalf("Image(%s) = %v, %v; want nil, true", p, asset, ok)
		}
	}
	if len(reg.Assets()) != 0 {
		t.Fatal("blank images have no assets")
	}
}

func TestRegistry_ReplacingPlaceholderDropsOldAsset(t *testing.T) {
	reg := NewRegistry(nil, RegistryOptions{})
	reg.AddImageBytes("{{a}}", "one", mustPNG(t, 2, 2), "png", nil)
	reg.AddImageBytes("{{b}}", "two", mustPNG(t, 2, 2), "png", nil)
	reg.AddImageBytes("{{a}}", "three", mustPNG(t, 3, 3), "png", nil)

	assets := reg.Assets()
	if len(assets) != 2 || assets[0].Source != "three" || assets[1].Source != "two" {
		t.Fatalf("Assets() = %v", assets)
	}
}

func TestRegistry_LoadErrors(t *testing.T) {
	reg := NewRegistry(nil, RegistryOptions{})

	err := reg.AddImageFile("{{a}}", filepath.Join(t.TempDir(), "missing.png"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("AddImageFile() error = %v, want fs.ErrNotExist", err)
	}
	if _, ok := reg.Image("{{a}}"); ok {
		t.Fatal("failed registration must not leave an entry")
	}

	err = reg.AddImageBytes("{{b}}", "junk", []byte("junk"), "png", nil)
	if !errors.Is(err, media.ErrImageDecode) {
		t.Fatalf("AddImageBytes() error = %v, want ErrImageDecode", err)
	}
}

func TestRegistry_SetHTMLText(t *testing.T) {
	reg := NewRegistry(nil, RegistryOptions{})
	if err := reg.SetHTMLText("{{notes}}", `<p>First &amp; <b>bold</b></p><p>Second<br>line</p><script>x()</script>`); err != nil {
		t.Fatalf("SetHTMLText() error = %v", err)
	}

	got, _ := reg.Text("{{notes}}")
	if want := "First & bold Second line"; got != want {
		t.Fatalf("Text() = %q, want %q", got, want)
	}
}

func TestRegistry_Placeholders(t *testing.T) {
	reg := NewRegistry(nil, RegistryOptions{})
	reg.SetTexts(map[string]string{"{{b}}": "1", "{{a}}": "2"})
	reg.AddBlankImage("{{c}}")
	reg.AddBlankImage("{{a}}")

	got := reg.Placeholders()
	want := []string{"{{a}}", "{{b}}", "{{c}}"}
	if len(got) != len(want) {
		t.Fatalf("Placeholders() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Placeholders() = %v, want %v", got, want)
		}
	}
}
