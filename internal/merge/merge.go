// Package merge concatenates the bodies of several WordprocessingML
// packages into one package, reconciling their relationships and media.
package merge

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/beevik/etree"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/yuanying/docxtpl/internal/ooxml"
)

var ErrNoInputs = errors.New("no input documents")

type namespace struct {
	prefix string
	uri    string
}

// documentNamespaces are declared on every merged document root.
var documentNamespaces = []namespace{
	{"wpc", "http://schemas.microsoft.com/office/word/2010/wordprocessingCanvas"},
	{"mc", "http://schemas.openxmlformats.org/markup-compatibility/2006"},
	{"o", "urn:schemas-microsoft-com:office:office"},
	{"r", ooxml.OfficeRelationshipsNS},
	{"m", "http://schemas.openxmlformats.org/officeDocument/2006/math"},
	{"v", "urn:schemas-microsoft-com:vml"},
	{"wp14", "http://schemas.microsoft.com/office/word/2010/wordprocessingDrawing"},
	{"wp", "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"},
	{"w", ooxml.WordprocessingNS},
	{"w14", "http://schemas.microsoft.com/office/word/2010/wordml"},
	{"w10", "urn:schemas-microsoft-com:office:word"},
	{"w15", "http://schemas.microsoft.com/office/word/2012/wordml"},
	{"wpg", "http://schemas.microsoft.com/office/word/2010/wordprocessingGroup"},
	{"wpi", "http://schemas.microsoft.com/office/word/2010/wordprocessingInk"},
	{"wne", "http://schemas.microsoft.com/office/word/2006/wordml"},
	{"wps", "http://schemas.microsoft.com/office/word/2010/wordprocessingShape"},
	{"wpsCustomData", "http://www.wps.cn/officeDocument/2013/wpsCustomData"},
}

const ignorablePrefixes = "w14 w15 wp14"

// Options holds options for a merge.
type Options struct {
	Separator Separator
	Logger    *zap.Logger
	// Scratch is where imported media is staged. Defaults to the OS file system.
	Scratch afero.Fs
}

// Merge merges the documents at inputs, in order, into output. The first
// input provides styles, settings, headers and every other part that is
// not body content.
func Merge(inputs []string, output string, opts Options) error {
	if len(inputs) == 0 {
		return ErrNoInputs
	}

	pkgs := make([]*ooxml.Package, 0, len(inputs))
	defer func() {
		for _, pkg := range pkgs {
			pkg.Close()
		}
	}()
	for _, path := range inputs {
		pkg, err := ooxml.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		pkgs = append(pkgs, pkg)
	}

	return ooxml.WriteFileAtomic(output, func(w io.Writer) error {
		return MergePackages(w, pkgs, opts)
	})
}

// MergePackages writes the merge of pkgs to w.
func MergePackages(w io.Writer, pkgs []*ooxml.Package, opts Options) error {
	if len(pkgs) == 0 {
		return ErrNoInputs
	}

	m, err := newMerger(pkgs, opts)
	if err != nil {
		return err
	}
	defer m.cleanup()

	var contents [][]*etree.Element
	var sectPr *etree.Element
	for i := range pkgs {
		content, sect, err := m.addSource(i)
		if err != nil {
			return fmt.Errorf("document %d: %w", i+1, err)
		}
		if i == 0 {
			sectPr = sect
		}
		contents = append(contents, content)
	}

	document, err := m.buildDocument(contents, sectPr)
	if err != nil {
		return &ooxml.PartError{Part: ooxml.DocumentPart, Err: err}
	}
	if err := m.write(w, document); err != nil {
		return err
	}

	m.logger.Info("merged documents",
		zap.Int("documents", len(pkgs)),
		zap.Int("relationships", len(m.rels)),
		zap.String("separator", m.opts.Separator.String()))
	return nil
}

type merger struct {
	opts   Options
	logger *zap.Logger
	fs     afero.Fs
	dir    string
	pkgs   []*ooxml.Package

	sourceRels [][]ooxml.Relationship
	usedIDs    map[string]bool
	nextID     int

	rels    []ooxml.Relationship
	relByID map[string]ooxml.Relationship
	media   *mediaTable

	namespaces map[string]string
	extraNS    []namespace
}

func newMerger(pkgs []*ooxml.Package, opts Options) (*merger, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fs := opts.Scratch
	if fs == nil {
		fs = afero.NewOsFs()
	}

	m := &merger{
		opts:       opts,
		logger:     logger,
		fs:         fs,
		pkgs:       pkgs,
		usedIDs:    make(map[string]bool),
		relByID:    make(map[string]ooxml.Relationship),
		namespaces: make(map[string]string),
	}
	for _, ns := range documentNamespaces {
		m.namespaces[ns.prefix] = ns.uri
	}

	// every id used by any source is reserved so fresh ids never collide
	for _, pkg := range pkgs {
		rels, err := readRelationships(pkg)
		if err != nil {
			return nil, err
		}
		for _, rel := range rels {
			m.usedIDs[rel.ID] = true
		}
		m.sourceRels = append(m.sourceRels, rels)
	}

	dir, err := afero.TempDir(fs, "", "docxtpl-merge-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	m.dir = dir
	m.media = newMediaTable(fs, dir)

	for _, f := range pkgs[0].Entries() {
		if !ooxml.IsMediaEntry(f.Name) {
			continue
		}
		data, err := ooxml.ReadEntry(f)
		if err != nil {
			m.cleanup()
			return nil, err
		}
		m.media.claim(f.Name, data)
	}
	return m, nil
}

func (m *merger) cleanup() {
	if err := m.fs.RemoveAll(m.dir); err != nil {
		m.logger.Warn("failed to remove scratch directory", zap.String("dir", m.dir), zap.Error(err))
	}
}

func readRelationships(pkg *ooxml.Package) ([]ooxml.Relationship, error) {
	if !pkg.Has(ooxml.DocumentRelsPart) {
		return nil, nil
	}
	data, err := pkg.ReadFile(ooxml.DocumentRelsPart)
	if err != nil {
		return nil, err
	}
	rels, err := ooxml.ParseRelationships(data)
	if err != nil {
		return nil, &ooxml.PartError{Part: ooxml.DocumentRelsPart, Err: err}
	}
	return rels, nil
}

// addSource imports the relationships and media of source i and returns
// its body content and body-level section properties.
func (m *merger) addSource(i int) ([]*etree.Element, *etree.Element, error) {
	pkg := m.pkgs[i]
	data, err := pkg.ReadFile(ooxml.DocumentPart)
	if err != nil {
		return nil, nil, err
	}
	doc, err := ooxml.ParseXML(data)
	if err != nil {
		return nil, nil, &ooxml.PartError{Part: ooxml.DocumentPart, Err: err}
	}

	root := doc.Root()
	body := root.SelectElement("body")
	if body == nil {
		return nil, nil, &ooxml.PartError{Part: ooxml.DocumentPart, Err: fmt.Errorf("%w: no body element", ooxml.ErrXML)}
	}
	m.collectNamespaces(i, root)

	mapping, err := m.importRelationships(i)
	if err != nil {
		return nil, nil, err
	}
	relPrefixes := relationshipPrefixes(root)

	var content []*etree.Element
	var sectPr *etree.Element
	for _, el := range body.ChildElements() {
		remapIDs(el, relPrefixes, mapping)
		if el.Tag == "sectPr" {
			sectPr = el
			continue
		}
		content = append(content, el)
	}
	return content, sectPr, nil
}

// importRelationships adds the relationships of source i to the combined
// table and returns the ids that had to change.
func (m *merger) importRelationships(i int) (map[string]string, error) {
	mapping := make(map[string]string)
	for _, rel := range m.sourceRels[i] {
		if !rel.IsExternal() {
			target, ok, err := m.importTarget(i, rel)
			if err != nil {
				return nil, err
			}
			if !ok {
				m.logger.Warn("dropping relationship to a part missing from the merged package",
					zap.Int("document", i+1),
					zap.String("id", rel.ID),
					zap.String("target", rel.Target))
				continue
			}
			rel.Target = target

			// one relationship per part: styles, settings, headers
			if !ooxml.IsMediaEntry(ooxml.ResolveTarget(ooxml.DocumentPart, target)) {
				if existing, ok := m.relationshipTo(rel); ok {
					if existing.ID != rel.ID {
						mapping[rel.ID] = existing.ID
					}
					continue
				}
			}
		}

		original := rel.ID
		if existing, ok := m.relByID[rel.ID]; ok {
			if existing == rel {
				continue
			}
			rel.ID = m.freshID()
			mapping[original] = rel.ID
			m.logger.Debug("remapped relationship id",
				zap.Int("document", i+1),
				zap.String("from", original),
				zap.String("to", rel.ID))
		}
		m.rels = append(m.rels, rel)
		m.relByID[rel.ID] = rel
	}
	return mapping, nil
}

// importTarget returns the target a relationship of source i has in the
// merged package, and false when that part will not exist there.
func (m *merger) importTarget(i int, rel ooxml.Relationship) (string, bool, error) {
	name := ooxml.ResolveTarget(ooxml.DocumentPart, rel.Target)
	template := m.pkgs[0]

	if !ooxml.IsMediaEntry(name) || i == 0 {
		return rel.Target, i == 0 || template.Has(name), nil
	}

	pkg := m.pkgs[i]
	if !pkg.Has(name) {
		return "", false, nil
	}
	data, err := pkg.ReadFile(name)
	if err != nil {
		return "", false, err
	}
	out, err := m.media.add(i, name, data)
	if err != nil {
		return "", false, err
	}
	return ooxml.RelativeTarget(out), true, nil
}

// relationshipTo returns the imported relationship with the same type
// and target as rel.
func (m *merger) relationshipTo(rel ooxml.Relationship) (ooxml.Relationship, bool) {
	for _, existing := range m.rels {
		if existing.Type == rel.Type && existing.Target == rel.Target && existing.TargetMode == rel.TargetMode {
			return existing, true
		}
	}
	return ooxml.Relationship{}, false
}

func (m *merger) freshID() string {
	for {
		m.nextID++
		id := "rId" + strconv.Itoa(m.nextID)
		if !m.usedIDs[id] {
			m.usedIDs[id] = true
			return id
		}
	}
}

func (m *merger) collectNamespaces(i int, root *etree.Element) {
	for _, a := range root.Attr {
		if a.Space != "xmlns" {
			continue
		}
		uri, ok := m.namespaces[a.Key]
		if !ok {
			m.namespaces[a.Key] = a.Value
			m.extraNS = append(m.extraNS, namespace{prefix: a.Key, uri: a.Value})
			continue
		}
		if uri != a.Value {
			m.logger.Warn("namespace prefix bound to a different URI",
				zap.Int("document", i+1),
				zap.String("prefix", a.Key),
				zap.String("uri", a.Value))
		}
	}
}

func relationshipPrefixes(root *etree.Element) map[string]bool {
	prefixes := map[string]bool{"r": true}
	for _, a := range root.Attr {
		if a.Space == "xmlns" && a.Value == ooxml.OfficeRelationshipsNS {
			prefixes[a.Key] = true
		}
	}
	return prefixes
}

// remapIDs rewrites relationship references (r:id, r:embed, ...) below el.
func remapIDs(el *etree.Element, prefixes map[string]bool, mapping map[string]string) {
	if len(mapping) == 0 {
		return
	}
	for i, a := range el.Attr {
		if !prefixes[a.Space] {
			continue
		}
		if id, ok := mapping[a.Value]; ok {
			el.Attr[i].Value = id
		}
	}
	for _, child := range el.ChildElements() {
		remapIDs(child, prefixes, mapping)
	}
}

func (m *merger) buildDocument(contents [][]*etree.Element, sectPr *etree.Element) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)

	root := doc.CreateElement("w:document")
	for _, ns := range documentNamespaces {
		root.CreateAttr("xmlns:"+ns.prefix, ns.uri)
	}
	for _, ns := range m.extraNS {
		root.CreateAttr("xmlns:"+ns.prefix, ns.uri)
	}
	root.CreateAttr("mc:Ignorable", ignorablePrefixes)

	body := root.CreateElement("w:body")
	for i, content := range contents {
		if i > 0 {
			for _, p := range m.opts.Separator.paragraphs() {
				body.AddChild(p)
			}
		}
		for _, el := range content {
			body.AddChild(el)
		}
	}
	if sectPr != nil {
		body.AddChild(sectPr)
	}
	return ooxml.WriteXML(doc)
}

// write assembles the output package: template parts copied through,
// then the merged parts and the imported media.
func (m *merger) write(w io.Writer, document []byte) error {
	template := m.pkgs[0]
	zw := ooxml.NewWriter(w)

	rels, err := m.relationshipsPart()
	if err != nil {
		return err
	}

	for _, f := range template.Entries() {
		var data []byte
		switch f.Name {
		case ooxml.DocumentPart:
			data = document
		case ooxml.DocumentRelsPart:
			data = rels
		case ooxml.ContentTypesPart:
			data, err = m.contentTypesPart(f)
			if err != nil {
				return err
			}
		default:
			if err := zw.Copy(f); err != nil {
				return err
			}
			continue
		}
		if err := zw.Replace(f, data); err != nil {
			return err
		}
	}

	if !zw.Written(ooxml.DocumentRelsPart) && len(m.rels) > 0 {
		if err := zw.Create(ooxml.DocumentRelsPart, rels); err != nil {
			return err
		}
	}

	for _, staged := range m.media.staged {
		data, err := m.media.read(staged)
		if err != nil {
			return err
		}
		if err := zw.Create(staged.name, data); err != nil {
			return err
		}
	}
	return zw.Close()
}

func (m *merger) relationshipsPart() ([]byte, error) {
	doc := ooxml.NewRelationshipsDocument()
	for _, rel := range m.rels {
		rel.AppendTo(doc.Root())
	}
	data, err := ooxml.WriteXML(doc)
	if err != nil {
		return nil, &ooxml.PartError{Part: ooxml.DocumentRelsPart, Err: err}
	}
	return data, nil
}

func (m *merger) contentTypesPart(f *zip.File) ([]byte, error) {
	data, err := ooxml.ReadEntry(f)
	if err != nil {
		return nil, err
	}
	out, err := ooxml.EnsureDefaults(data, m.media.extensions())
	if err != nil {
		return nil, &ooxml.PartError{Part: ooxml.ContentTypesPart, Err: err}
	}
	return out, nil
}
