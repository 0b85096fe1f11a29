package merge

import (
	"crypto/sha256"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

type stagedMedia struct {
	name    string
	scratch string
}

// mediaTable assigns output names to media parts and stages the bytes of
// imported media on a scratch file system until they are written.
type mediaTable struct {
	fs     afero.Fs
	dir    string
	claims map[string][sha256.Size]byte
	staged []stagedMedia
}

func newMediaTable(fs afero.Fs, dir string) *mediaTable {
	return &mediaTable{
		fs:     fs,
		dir:    dir,
		claims: make(map[string][sha256.Size]byte),
	}
}

// claim reserves a name for media that is copied straight from the template.
func (t *mediaTable) claim(name string, data []byte) {
	t.claims[name] = sha256.Sum256(data)
}

// add stages media of a source document and returns its output name.
// Identical content under the same name is shared; different content is
// renamed to <stem>_<source>.<ext>.
func (t *mediaTable) add(source int, name string, data []byte) (string, error) {
	sum := sha256.Sum256(data)

	out := name
	for n := 0; ; n++ {
		existing, ok := t.claims[out]
		if !ok {
			break
		}
		if existing == sum {
			return out, nil
		}
		out = renamedMedia(name, source, n)
	}

	scratch := filepath.Join(t.dir, strconv.Itoa(source), filepath.FromSlash(name))
	if err := t.fs.MkdirAll(filepath.Dir(scratch), 0o755); err != nil {
		return "", fmt.Errorf("failed to stage %s: %w", name, err)
	}
	if err := afero.WriteFile(t.fs, scratch, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to stage %s: %w", name, err)
	}

	t.claims[out] = sum
	t.staged = append(t.staged, stagedMedia{name: out, scratch: scratch})
	return out, nil
}

func (t *mediaTable) read(m stagedMedia) ([]byte, error) {
	data, err := afero.ReadFile(t.fs, m.scratch)
	if err != nil {
		return nil, fmt.Errorf("failed to read staged %s: %w", m.name, err)
	}
	return data, nil
}

// extensions returns the extensions of every claimed media name.
func (t *mediaTable) extensions() []string {
	var exts []string
	for name := range t.claims {
		if ext := strings.TrimPrefix(path.Ext(name), "."); ext != "" {
			exts = append(exts, ext)
		}
	}
	sort.Strings(exts)
	return exts
}

func renamedMedia(name string, source, attempt int) string {
	dir, base := path.Split(name)
	ext := path.Ext(base)
	suffix := strconv.Itoa(source)
	if attempt > 0 {
		suffix += "_" + strconv.Itoa(attempt)
	}
	return dir + strings.TrimSuffix(base, ext) + "_" + suffix + ext
}
