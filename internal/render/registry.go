// Package render fills {{placeholder}} tokens in a WordprocessingML
// template with text and images and writes the resulting package.
package render

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/yuanying/docxtpl/internal/media"
)

// Placeholder markers.
const (
	OpenMarker  = "{{"
	CloseMarker = "}}"
)

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	Logger *zap.Logger
}

// Registry holds the text and image replacements of one template
// operation. It is not safe for concurrent mutation.
type Registry struct {
	resolver *media.Resolver
	logger   *zap.Logger

	texts  map[string]string
	images map[string]*media.Asset
	// image placeholders in registration order
	imageOrder []string
	// source -> first placeholder registered for it
	sources map[string]string
}

// NewRegistry creates an empty registry. A nil resolver is replaced by one
// with default options.
func NewRegistry(resolver *media.Resolver, opts RegistryOptions) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if resolver == nil {
		resolver = media.NewResolver(media.Options{Logger: logger})
	}

	return &Registry{
		resolver: resolver,
		logger:   logger,
		texts:    make(map[string]string),
		images:   make(map[string]*media.Asset),
		sources:  make(map[string]string),
	}
}

// SetText registers a text replacement.
func (r *Registry) SetText(placeholder, value string) {
	r.texts[placeholder] = value
}

// SetTexts registers several text replacements.
func (r *Registry) SetTexts(values map[string]string) {
	for placeholder, value := range values {
		r.SetText(placeholder, value)
	}
}

// SetHTMLText registers the plain text content of an HTML fragment.
// Block elements and line breaks become single spaces.
func (r *Registry) SetHTMLText(placeholder, fragment string) error {
	text, err := htmlText(fragment)
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", placeholder, err)
	}
	r.SetText(placeholder, text)
	return nil
}

// AddImageFile registers an image loaded from a local file at its native
// size. An empty path registers a blank image.
func (r *Registry) AddImageFile(placeholder, path string) error {
	return r.addImage(placeholder, path, nil, func() (*media.Asset, error) {
		return r.resolver.FromFile(path, nil)
	})
}

// AddImageFileSize registers a local image with an explicit size in centimetres.
func (r *Registry) AddImageFileSize(placeholder, path string, widthCM, heightCM float64) error {
	size := &media.Size{WidthCM: widthCM, HeightCM: heightCM}
	return r.addImage(placeholder, path, size, func() (*media.Asset, error) {
		return r.resolver.FromFile(path, size)
	})
}

// AddImageURL registers a remote image at its native size. The image is
// fetched before AddImageURL returns.
func (r *Registry) AddImageURL(ctx context.Context, placeholder, url string) error {
	return r.addImage(placeholder, url, nil, func() (*media.Asset, error) {
		return r.resolver.FromURL(ctx, url, nil)
	})
}

// AddImageURLSize registers a remote image with an explicit size in centimetres.
func (r *Registry) AddImageURLSize(ctx context.Context, placeholder, url string, widthCM, heightCM float64) error {
	size := &media.Size{WidthCM: widthCM, HeightCM: heightCM}
	return r.addImage(placeholder, url, size, func() (*media.Asset, error) {
		return r.resolver.FromURL(ctx, url, size)
	})
}

// AddImageBytes registers in-memory image data. source identifies the
// data for deduplication and diagnostics.
func (r *Registry) AddImageBytes(placeholder, source string, data []byte, ext string, size *media.Size) error {
	return r.addImage(placeholder, source, size, func() (*media.Asset, error) {
		return r.resolver.FromBytes(source, data, ext, size)
	})
}

// AddBlankImage marks placeholder as an image slot that is intentionally
// left empty. The token is removed from the output.
func (r *Registry) AddBlankImage(placeholder string) {
	r.setImage(placeholder, nil)
}

func (r *Registry) addImage(placeholder, source string, size *media.Size, load func() (*media.Asset, error)) error {
	if source == "" {
		r.AddBlankImage(placeholder)
		return nil
	}

	if first, ok := r.sources[source]; ok {
		if cached := r.images[first]; cached != nil && cached.Source == source {
			r.logger.Debug("reusing loaded image",
				zap.String("placeholder", placeholder),
				zap.String("source", source),
				zap.String("first", first))
			r.setImage(placeholder, r.resolver.Resize(cached, size))
			return nil
		}
	}

	asset, err := load()
	if err != nil {
		return fmt.Errorf("failed to register image %s: %w", placeholder, err)
	}
	r.sources[source] = placeholder
	r.setImage(placeholder, asset)
	return nil
}

func (r *Registry) setImage(placeholder string, asset *media.Asset) {
	if _, ok := r.images[placeholder]; !ok {
		r.imageOrder = append(r.imageOrder, placeholder)
	}
	r.images[placeholder] = asset
}

// Text returns the text replacement for placeholder.
func (r *Registry) Text(placeholder string) (string, bool) {
	v, ok := r.texts[placeholder]
	return v, ok
}

// Image returns the image registered for placeholder. A registered blank
// image returns (nil, true).
func (r *Registry) Image(placeholder string) (*media.Asset, bool) {
	a, ok := r.images[placeholder]
	return a, ok
}

// Assets returns the resolved images in registration order.
func (r *Registry) Assets() []*media.Asset {
	var assets []*media.Asset
	for _, placeholder := range r.imageOrder {
		if a := r.images[placeholder]; a != nil {
			assets = append(assets, a)
		}
	}
	return assets
}

// Placeholders returns every registered placeholder, sorted.
func (r *Registry) Placeholders() []string {
	keys := make([]string, 0, len(r.texts)+len(r.images))
	for k := range r.texts {
		keys = append(keys, k)
	}
	for k := range r.images {
		if _, dup := r.texts[k]; !dup {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

const htmlBlockSelector = "p, div, li, tr, td, th, h1, h2, h3, h4, h5, h6, blockquote, pre"

func htmlText(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML fragment: %w", err)
	}

	doc.Find("script, style").Remove()
	doc.Find("br").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithNodes(spaceNode())
	})
	doc.Find(htmlBlockSelector).Each(func(_ int, s *goquery.Selection) {
		s.AppendNodes(spaceNode())
	})
	return strings.Join(strings.Fields(doc.Text()), " "), nil
}

func spaceNode() *html.Node {
	return &html.Node{Type: html.TextNode, Data: " "}
}
