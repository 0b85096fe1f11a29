package media

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	// Extra raster formats beyond the ones imaging registers.
	_ "golang.org/x/image/webp"

	"github.com/yuanying/docxtpl/internal/ooxml"
)

const defaultTimeout = 100 * time.Second

// Options configures a Resolver.
type Options struct {
	// Client is used for remote images. When nil a client with Timeout is created.
	Client  *http.Client
	Timeout time.Duration
	// MaxWidth caps the on-page width (EMU) of natively sized images.
	MaxWidth int64
	// DefaultSize replaces the native pixel size when no explicit size is given.
	DefaultSize *Size
	// MaxPixelWidth resamples wider images before embedding. Zero disables it.
	MaxPixelWidth int
	Logger        *zap.Logger
}

// Resolver loads image sources and turns them into assets.
type Resolver struct {
	client      *http.Client
	maxWidth    int64
	defaultSize *Size
	optimizer   *Optimizer
	logger      *zap.Logger
}

// NewResolver creates a resolver with defaults.
func NewResolver(opts Options) *Resolver {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	maxWidth := opts.MaxWidth
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Resolver{
		client:      client,
		maxWidth:    maxWidth,
		defaultSize: opts.DefaultSize,
		optimizer:   NewOptimizer(opts.MaxPixelWidth, logger),
		logger:      logger,
	}
}

// MaxWidth returns the width cap in EMU.
func (r *Resolver) MaxWidth() int64 {
	return r.maxWidth
}

// FromFile loads a local image. The extension of path determines the
// media type.
func (r *Resolver) FromFile(path string, size *Size) (*Asset, error) {
	ext := normalizeExt(filepath.Ext(path))
	if ext == "" {
		return nil, &ImageError{Source: path, Err: fmt.Errorf("%w: no file extension", ErrImageNotFound)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ImageError{Source: path, Err: fmt.Errorf("failed to read image: %w", err)}
	}

	r.logger.Debug("loaded image file", zap.String("path", path), zap.Int("bytes", len(data)))
	return r.FromBytes(path, data, ext, size)
}

// FromURL fetches a remote image.
func (r *Resolver) FromURL(ctx context.Context, url string, size *Size) (*Asset, error) {
	data, ext, err := r.fetch(ctx, url)
	if err != nil {
		return nil, &ImageError{Source: url, Err: err}
	}

	r.logger.Debug("fetched image", zap.String("url", url), zap.String("ext", ext), zap.Int("bytes", len(data)))
	return r.FromBytes(url, data, ext, size)
}

// FromBytes builds an asset from in-memory image data.
func (r *Resolver) FromBytes(source string, data []byte, ext string, size *Size) (*Asset, error) {
	ext = normalizeExt(ext)
	if ext == "" {
		return nil, &ImageError{Source: source, Err: fmt.Errorf("%w: unknown image type", ErrImageNotFound)}
	}

	// EXIF orientation is ignored: extents follow the stored pixel grid of
	// the bytes that get embedded.
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &ImageError{Source: source, Err: fmt.Errorf("%w: %w", ErrImageDecode, err)}
	}

	asset := &Asset{
		Source:      source,
		Data:        data,
		Ext:         ext,
		ContentType: ooxml.ContentTypeForExt(ext),
		RelID:       NewRelID(),
		pixelWidth:  img.Bounds().Dx(),
		pixelHeight: img.Bounds().Dy(),
	}
	asset.Width, asset.Height = r.dimensions(asset, size)
	asset.Data = r.optimizer.Optimize(source, ext, data, img)
	return asset, nil
}

// Resize returns a new asset that shares the bytes of a but carries its
// own relationship id and the dimensions for size.
func (r *Resolver) Resize(a *Asset, size *Size) *Asset {
	resized := *a
	resized.RelID = NewRelID()
	resized.Width, resized.Height = r.dimensions(a, size)
	return &resized
}

func (r *Resolver) dimensions(a *Asset, size *Size) (int64, int64) {
	if size == nil {
		size = r.defaultSize
	}
	if size != nil {
		return size.EMU()
	}
	return capWidth(PixelsToEMU(a.pixelWidth), PixelsToEMU(a.pixelHeight), r.maxWidth)
}
