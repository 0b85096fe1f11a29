package render

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuanying/docxtpl/internal/media"
)

const drawingTemplate = `<%[5]s:r><%[5]s:drawing>
<wp:inline distT="0" distB="0" distL="0" distR="0" xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing">
<wp:extent cx="%[1]d" cy="%[2]d"/>
<wp:docPr id="%[4]d" name="Picture %[4]d" descr="Generated image"/>
<wp:cNvGraphicFramePr>
<a:graphicFrameLocks xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" noChangeAspect="1"/>
</wp:cNvGraphicFramePr>
<a:graphic xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">
<a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">
<pic:pic xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">
<pic:nvPicPr>
<pic:cNvPr id="0" name="Picture %[4]d" descr="Generated image"/>
<pic:cNvPicPr><a:picLocks noChangeAspect="1"/></pic:cNvPicPr>
</pic:nvPicPr>
<pic:blipFill>
<a:blip r:embed="%[3]s" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"/>
<a:stretch><a:fillRect/></a:stretch>
</pic:blipFill>
<pic:spPr>
<a:xfrm><a:off x="0" y="0"/><a:ext cx="%[1]d" cy="%[2]d"/></a:xfrm>
<a:prstGeom prst="rect"><a:avLst/></a:prstGeom>
</pic:spPr>
</pic:pic>
</a:graphicData>
</a:graphic>
</wp:inline>
</%[5]s:drawing></%[5]s:r>`

var docPrID = regexp.MustCompile(`<wp:docPr\b[^>]*?\bid="(\d+)"`)

// drawingIDs hands out docPr ids that do not collide with the ids already
// used by the document.
type drawingIDs struct {
	next int
}

func newDrawingIDs(document []byte) *drawingIDs {
	maxID := 0
	for _, m := range docPrID.FindAllSubmatch(document, -1) {
		if id, err := strconv.Atoi(string(m[1])); err == nil && id > maxID {
			maxID = id
		}
	}
	return &drawingIDs{next: maxID + 1}
}

func (d *drawingIDs) take() int {
	id := d.next
	d.next++
	return id
}

// drawingTokens renders the inline drawing run for an asset as raw tokens.
// wPrefix is the prefix the document binds to the WordprocessingML namespace.
func drawingTokens(asset *media.Asset, id int, wPrefix string) ([]xml.Token, error) {
	fragment := fmt.Sprintf(drawingTemplate, asset.Width, asset.Height, asset.RelID, id, wPrefix)

	var tokens []xml.Token
	d := xml.NewDecoder(bytes.NewReader([]byte(fragment)))
	for {
		tok, err := d.RawToken()
		if err == io.EOF {
			return tokens, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to build drawing for %s: %w", asset.RelID, err)
		}
		if cd, ok := tok.(xml.CharData); ok && strings.TrimSpace(string(cd)) == "" {
			continue
		}
		tokens = append(tokens, xml.CopyToken(tok))
	}
}
