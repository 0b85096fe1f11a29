package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yuanying/docxtpl/internal/render"
)

// dataFile is the YAML (or JSON) document passed with --data.
type dataFile struct {
	Text   map[string]string    `yaml:"text"`
	HTML   map[string]string    `yaml:"html"`
	Images map[string]imageEntry `yaml:"images"`

	dir string
}

// imageEntry describes one image placeholder. An empty entry registers a
// blank image.
type imageEntry struct {
	Path   string  `yaml:"path"`
	URL    string  `yaml:"url"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

func loadDataFile(path string) (*dataFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}

	var data dataFile
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse data file %s: %w", path, err)
	}
	data.dir = filepath.Dir(path)

	for key, img := range data.Images {
		if err := img.validate(); err != nil {
			return nil, fmt.Errorf("images[%q]: %w", key, err)
		}
	}
	return &data, nil
}

func (s imageEntry) validate() error {
	if s.Path != "" && s.URL != "" {
		return fmt.Errorf("path and url are mutually exclusive")
	}
	if (s.Width > 0) != (s.Height > 0) {
		return fmt.Errorf("width and height must be given together")
	}
	if s.Width < 0 || s.Height < 0 {
		return fmt.Errorf("width and height must be positive")
	}
	return nil
}

func (s imageEntry) sized() bool {
	return s.Width > 0 && s.Height > 0
}

// apply registers every value of the data file. Relative image paths are
// resolved against the directory of the data file.
func (d *dataFile) apply(ctx context.Context, reg *render.Registry) error {
	for key, value := range d.Text {
		reg.SetText(placeholderKey(key), value)
	}
	for key, fragment := range d.HTML {
		if err := reg.SetHTMLText(placeholderKey(key), fragment); err != nil {
			return fmt.Errorf("html[%q]: %w", key, err)
		}
	}

	keys := make([]string, 0, len(d.Images))
	for key := range d.Images {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		img := d.Images[key]
		placeholder := placeholderKey(key)

		var err error
		switch {
		case img.URL != "" && img.sized():
			err = reg.AddImageURLSize(ctx, placeholder, img.URL, img.Width, img.Height)
		case img.URL != "":
			err = reg.AddImageURL(ctx, placeholder, img.URL)
		case img.Path != "":
			path := img.Path
			if !filepath.IsAbs(path) {
				path = filepath.Join(d.dir, path)
			}
			if img.sized() {
				err = reg.AddImageFileSize(placeholder, path, img.Width, img.Height)
			} else {
				err = reg.AddImageFile(placeholder, path)
			}
		default:
			reg.AddBlankImage(placeholder)
		}
		if err != nil {
			return fmt.Errorf("images[%q]: %w", key, err)
		}
	}
	return nil
}

// placeholderKey wraps a bare key such as "name" into "{{name}}".
func placeholderKey(key string) string {
	if strings.HasPrefix(key, render.OpenMarker) {
		return key
	}
	return render.OpenMarker + key + render.CloseMarker
}
