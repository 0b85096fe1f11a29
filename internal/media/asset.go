// Package media resolves image sources into assets that can be embedded
// in a WordprocessingML package.
package media

import (
	"strings"

	"github.com/google/uuid"

	"github.com/yuanying/docxtpl/internal/ooxml"
)

// Asset is one resolved image. Width and Height are in EMU.
type Asset struct {
	Source      string
	Data        []byte
	Ext         string
	ContentType string
	RelID       string
	Width       int64
	Height      int64

	pixelWidth  int
	pixelHeight int
}

// MediaName returns the archive entry the asset is stored under.
func (a *Asset) MediaName() string {
	return ooxml.MediaEntryName(a.RelID, a.Ext)
}

// Target returns the relationship target of the asset, relative to the
// main document part.
func (a *Asset) Target() string {
	return ooxml.MediaTarget(a.RelID, a.Ext)
}

// Relationship returns the image relationship referencing the asset.
func (a *Asset) Relationship() ooxml.Relationship {
	return ooxml.Relationship{
		ID:     a.RelID,
		Type:   ooxml.ImageRelationshipType,
		Target: a.Target(),
	}
}

// PixelSize returns the decoded pixel dimensions of the source image.
func (a *Asset) PixelSize() (int, int) {
	return a.pixelWidth, a.pixelHeight
}

// NewRelID returns a fresh relationship id ("rId" followed by 32 hex digits).
func NewRelID() string {
	return "rId" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
