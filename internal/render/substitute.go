package render

import (
	"sort"
	"strings"
)

// substitution is the outcome of resolving one text span.
type substitution struct {
	text    string
	images  []string
	changed bool
}

// matcher resolves registered placeholders inside a text span.
type matcher struct {
	reg    *Registry
	legacy bool
	// registered keys grouped by first byte, longest first
	byFirst map[byte][]string
	// text keys in a fixed order for legacy mode
	textKeys []string
}

func newMatcher(reg *Registry, legacy bool) *matcher {
	m := &matcher{
		reg:     reg,
		legacy:  legacy,
		byFirst: make(map[byte][]string),
	}

	for _, key := range reg.Placeholders() {
		if key == "" {
			continue
		}
		m.byFirst[key[0]] = append(m.byFirst[key[0]], key)
	}
	for _, keys := range m.byFirst {
		sort.SliceStable(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
	}

	for key := range reg.texts {
		if key != "" {
			m.textKeys = append(m.textKeys, key)
		}
	}
	sort.Strings(m.textKeys)
	return m
}

func (m *matcher) resolve(s string) substitution {
	if m.legacy {
		return m.resolveLegacy(s)
	}
	return m.resolveScan(s)
}

// resolveScan walks s once from left to right, replacing the longest
// registered placeholder at each position. Replacement values are not
// scanned again. Image placeholders are removed and reported in order.
// When a key is registered both as text and image, the text wins.
func (m *matcher) resolveScan(s string) substitution {
	var out strings.Builder
	var res substitution

	for i := 0; i < len(s); {
		key := m.match(s[i:])
		if key == "" {
			out.WriteByte(s[i])
			i++
			continue
		}

		if value, ok := m.reg.texts[key]; ok {
			out.WriteString(value)
		} else {
			res.images = append(res.images, key)
		}
		res.changed = true
		i += len(key)
	}

	res.text = out.String()
	return res
}

func (m *matcher) match(s string) string {
	for _, key := range m.byFirst[s[0]] {
		if strings.HasPrefix(s, key) {
			return key
		}
	}
	return ""
}

// resolveLegacy applies every text replacement to the whole span in turn,
// so a value containing another placeholder is substituted again. The
// result is an image placeholder only when it equals a registered image key.
func (m *matcher) resolveLegacy(s string) substitution {
	out := s
	for _, key := range m.textKeys {
		out = strings.ReplaceAll(out, key, m.reg.texts[key])
	}

	if _, ok := m.reg.images[out]; ok {
		return substitution{images: []string{out}, changed: true}
	}
	return substitution{text: out, changed: out != s}
}

// hasOpenToken reports whether s ends inside an unclosed placeholder or
// with the first half of an open marker.
func hasOpenToken(s string) bool {
	if strings.HasSuffix(s, OpenMarker[:1]) {
		return true
	}
	i := strings.LastIndex(s, OpenMarker)
	return i >= 0 && !strings.Contains(s[i+len(OpenMarker):], CloseMarker)
}
