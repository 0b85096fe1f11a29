package render

import (
	"bytes"
	"encoding/xml"
	"io"
	"regexp"
	"strings"

	"github.com/yuanying/docxtpl/internal/ooxml"
)

var placeholderPattern = regexp.MustCompile(`\{\{.*?\}\}`)

// Placeholders lists the distinct {{...}} tokens of a main document part in
// order of first appearance. Text is joined per paragraph so tokens split
// across runs are found.
func Placeholders(document []byte) ([]string, error) {
	dec := ooxml.NewDecoder(bytes.NewReader(bytes.TrimPrefix(document, utf8BOM)))

	var found []string
	var text strings.Builder
	seen := make(map[string]bool)
	inText := 0

	collect := func() {
		for _, token := range placeholderPattern.FindAllString(text.String(), -1) {
			if !seen[token] {
				seen[token] = true
				found = append(found, token)
			}
		}
		text.Reset()
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ooxml.XMLError(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space == ooxml.WordprocessingNS && t.Name.Local == "t" {
				inText++
			}
		case xml.EndElement:
			if t.Name.Space != ooxml.WordprocessingNS {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText--
			case "p":
				collect()
			}
		case xml.CharData:
			if inText > 0 {
				text.Write(t)
			}
		}
	}
	collect()
	return found, nil
}
