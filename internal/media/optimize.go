package media

import (
	"bytes"
	"image"
	"image/gif"
	"image/png"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

const defaultJPEGQuality = 85

// Optimizer resamples images that are wider than needed for print.
// Images it cannot re-encode are passed through unchanged.
type Optimizer struct {
	MaxWidth    int
	JPEGQuality int
	logger      *zap.Logger
}

// NewOptimizer creates an optimizer. A maxWidth of zero disables resampling.
func NewOptimizer(maxWidth int, logger *zap.Logger) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{
		MaxWidth:    maxWidth,
		JPEGQuality: defaultJPEGQuality,
		logger:      logger,
	}
}

// Optimize returns the bytes to embed for a decoded image.
func (o *Optimizer) Optimize(source, ext string, data []byte, img image.Image) []byte {
	if o.MaxWidth <= 0 || img.Bounds().Dx() <= o.MaxWidth {
		return data
	}

	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		o.logger.Warn("cannot re-encode image, embedding original",
			zap.String("source", source), zap.String("ext", ext))
		return data
	}
	if format == imaging.GIF && isAnimatedGIF(data) {
		return data
	}

	resized := imaging.Resize(img, o.MaxWidth, 0, imaging.Lanczos)

	var buf bytes.Buffer
	err = imaging.Encode(&buf, resized, format,
		imaging.JPEGQuality(o.JPEGQuality),
		imaging.PNGCompressionLevel(png.BestCompression))
	if err != nil {
		o.logger.Warn("image re-encode failed, embedding original",
			zap.String("source", source), zap.Error(err))
		return data
	}

	o.logger.Debug("resampled image",
		zap.String("source", source),
		zap.Int("from", img.Bounds().Dx()),
		zap.Int("to", o.MaxWidth),
		zap.Int("bytes", buf.Len()))
	return buf.Bytes()
}

func isAnimatedGIF(data []byte) bool {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return false
	}
	return len(g.Image) > 1
}
