package report

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/dataheck/maintenanace-issue-report/internal/domain"
)

// Part names inside a WordprocessingML package.
const (
	partContentTypes = "[Content_Types].xml"
	partPackageRels  = "_rels/.rels"
	partDocument     = "word/document.xml"
	partDocumentRels = "word/_rels/document.xml.rels"
	partStyles       = "word/styles.xml"
	partCustomProps  = "docProps/custom.xml"
)

const (
	nsRelationships   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsCustomProps     = "http://schemas.openxmlformats.org/officeDocument/2006/custom-properties"
	nsVariantTypes    = "http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes"
	relTypeHyperlink  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink"
	relTypeCustom     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/custom-properties"
	contentTypeCustom = "application/vnd.openxmlformats-officedocument.custom-properties+xml"
	// fmtidUserDefined is the property set every user-defined custom property belongs to.
	fmtidUserDefined = "{D5CDD505-2E9C-101B-9397-08002B2CF9AE}"
	hyperlinkColor   = "0000FF"
)

var relIDPattern = regexp.MustCompile(`^rId(\d+)$`)

// Document is a .docx opened for editing. Paragraphs are appended to the end
// of the body, ahead of its section properties.
type Document struct {
	pkg          *ooxmlPackage
	document     *etree.Document
	documentRels *etree.Document
	styles       *etree.Document
	custom       *etree.Document
	contentTypes *etree.Document
	packageRels  *etree.Document
	body         *etree.Element
	styleIDs     map[string]string
	customNew    bool
}

// OpenDocument loads the template at path.
func OpenDocument(path string) (*Document, error) {
	pkg, err := openPackage(path)
	if err != nil {
		return nil, err
	}

	d := &Document{pkg: pkg, styleIDs: make(map[string]string)}
	for _, p := range []struct {
		name string
		dst  **etree.Document
	}{
		{partContentTypes, &d.contentTypes},
		{partPackageRels, &d.packageRels},
		{partDocument, &d.document},
		{partDocumentRels, &d.documentRels},
		{partStyles, &d.styles},
	} {
		doc, err := d.parse(p.name)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			return nil, fmt.Errorf("%w: %s has no %s part", domain.ErrTemplate, path, p.name)
		}
		*p.dst = doc
	}

	d.custom, err = d.parse(partCustomProps)
	if err != nil {
		return nil, err
	}
	if d.custom == nil {
		d.custom = newCustomProperties()
		d.customNew = true
	}

	root := d.document.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: %s is empty", domain.ErrTemplate, partDocument)
	}
	d.body = root.SelectElement("w:body")
	if d.body == nil {
		return nil, fmt.Errorf("%w: %s has no body", domain.ErrTemplate, partDocument)
	}
	if root.SelectAttr("xmlns:r") == nil {
		root.CreateAttr("xmlns:r", nsRelationships)
	}
	return d, nil
}

// parse returns nil without error when the part does not exist.
func (d *Document) parse(name string) (*etree.Document, error) {
	data, ok := d.pkg.get(name)
	if !ok {
		return nil, nil
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %s is not valid XML: %v", domain.ErrTemplate, name, err)
	}
	return doc, nil
}

func newCustomProperties() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	root := doc.CreateElement("Properties")
	root.CreateAttr("xmlns", nsCustomProps)
	root.CreateAttr("xmlns:vt", nsVariantTypes)
	return doc
}

// StyleID resolves a paragraph style by its display name.
func (d *Document) StyleID(name string) (string, error) {
	if id, ok := d.styleIDs[name]; ok {
		return id, nil
	}
	var folded string
	for _, style := range d.styles.Root().SelectElements("w:style") {
		if style.SelectAttrValue("w:type", "paragraph") != "paragraph" {
			continue
		}
		nameElem := style.SelectElement("w:name")
		if nameElem == nil {
			continue
		}
		styleName := nameElem.SelectAttrValue("w:val", "")
		id := style.SelectAttrValue("w:styleId", "")
		if styleName == name {
			d.styleIDs[name] = id
			return id, nil
		}
		if folded == "" && strings.EqualFold(styleName, name) {
			folded = id
		}
	}
	if folded != "" {
		d.styleIDs[name] = folded
		return folded, nil
	}
	return "", fmt.Errorf("%w: no paragraph style named %q", domain.ErrTemplate, name)
}

// SetCustomProperty sets a text custom property, replacing any value the
// template already carries under that name.
func (d *Document) SetCustomProperty(name, value string) {
	root := d.custom.Root()
	if root.SelectAttr("xmlns:vt") == nil {
		root.CreateAttr("xmlns:vt", nsVariantTypes)
	}

	var prop *etree.Element
	maxPID := 1
	for _, p := range root.SelectElements("property") {
		if pid, err := strconv.Atoi(p.SelectAttrValue("pid", "")); err == nil && pid > maxPID {
			maxPID = pid
		}
		if p.SelectAttrValue("name", "") == name {
			prop = p
		}
	}
	if prop == nil {
		prop = root.CreateElement("property")
		prop.CreateAttr("fmtid", fmtidUserDefined)
		prop.CreateAttr("pid", strconv.Itoa(maxPID+1))
		prop.CreateAttr("name", name)
	}
	for _, child := range prop.ChildElements() {
		prop.RemoveChild(child)
	}
	prop.CreateElement("vt:lpwstr").SetText(value)
}

// AppendParagraph adds a paragraph holding plain text.
func (d *Document) AppendParagraph(style, text string) error {
	p, err := d.newParagraph(style)
	if err != nil {
		return err
	}
	addText(p.CreateElement("w:r"), text)
	d.appendToBody(p)
	return nil
}

// AppendHyperlinkedItem adds a paragraph whose first run, linkText, links to
// url and whose second run is plain text.
func (d *Document) AppendHyperlinkedItem(style, linkText, url, text string) error {
	p, err := d.newParagraph(style)
	if err != nil {
		return err
	}

	link := p.CreateElement("w:hyperlink")
	link.CreateAttr("r:id", d.relateExternal(relTypeHyperlink, url))
	run := link.CreateElement("w:r")
	run.CreateElement("w:rPr").CreateElement("w:color").CreateAttr("w:val", hyperlinkColor)
	addText(run, linkText)

	addText(p.CreateElement("w:r"), text)
	d.appendToBody(p)
	return nil
}

func (d *Document) newParagraph(style string) (*etree.Element, error) {
	styleID, err := d.StyleID(style)
	if err != nil {
		return nil, err
	}
	p := etree.NewElement("w:p")
	p.CreateElement("w:pPr").CreateElement("w:pStyle").CreateAttr("w:val", styleID)
	return p, nil
}

func (d *Document) appendToBody(p *etree.Element) {
	if sectPr := d.body.SelectElement("w:sectPr"); sectPr != nil {
		d.body.InsertChildAt(sectPr.Index(), p)
		return
	}
	d.body.AddChild(p)
}

func addText(run *etree.Element, text string) {
	t := run.CreateElement("w:t")
	if strings.TrimSpace(text) != text {
		t.CreateAttr("xml:space", "preserve")
	}
	t.SetText(text)
}

// relateExternal returns the id of the document relationship pointing at
// target, adding one when none exists.
func (d *Document) relateExternal(relType, target string) string {
	root := d.documentRels.Root()
	for _, rel := range root.SelectElements("Relationship") {
		if rel.SelectAttrValue("Type", "") == relType &&
			rel.SelectAttrValue("Target", "") == target &&
			rel.SelectAttrValue("TargetMode", "") == "External" {
			return rel.SelectAttrValue("Id", "")
		}
	}
	id := nextRelID(root)
	rel := root.CreateElement("Relationship")
	rel.CreateAttr("Id", id)
	rel.CreateAttr("Type", relType)
	rel.CreateAttr("Target", target)
	rel.CreateAttr("TargetMode", "External")
	return id
}

func nextRelID(rels *etree.Element) string {
	highest := 0
	for _, rel := range rels.SelectElements("Relationship") {
		m := relIDPattern.FindStringSubmatch(rel.SelectAttrValue("Id", ""))
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > highest {
			highest = n
		}
	}
	return "rId" + strconv.Itoa(highest+1)
}

// registerCustomProperties wires a newly created custom.xml into the package.
func (d *Document) registerCustomProperties() {
	types := d.contentTypes.Root()
	found := false
	for _, o := range types.SelectElements("Override") {
		if o.SelectAttrValue("PartName", "") == "/"+partCustomProps {
			found = true
			break
		}
	}
	if !found {
		o := types.CreateElement("Override")
		o.CreateAttr("PartName", "/"+partCustomProps)
		o.CreateAttr("ContentType", contentTypeCustom)
	}

	rels := d.packageRels.Root()
	for _, rel := range rels.SelectElements("Relationship") {
		if rel.SelectAttrValue("Type", "") == relTypeCustom {
			return
		}
	}
	rel := rels.CreateElement("Relationship")
	rel.CreateAttr("Id", nextRelID(rels))
	rel.CreateAttr("Type", relTypeCustom)
	rel.CreateAttr("Target", partCustomProps)
}

// Save writes the edited package to path, replacing any existing file, and
// returns the number of bytes written.
func (d *Document) Save(path string) (int, error) {
	if d.customNew {
		d.registerCustomProperties()
	}

	for _, p := range []struct {
		name string
		doc  *etree.Document
	}{
		{partContentTypes, d.contentTypes},
		{partPackageRels, d.packageRels},
		{partDocument, d.document},
		{partDocumentRels, d.documentRels},
		{partCustomProps, d.custom},
	} {
		data, err := p.doc.WriteToBytes()
		if err != nil {
			return 0, fmt.Errorf("failed to serialize %s: %w", p.name, err)
		}
		d.pkg.put(p.name, data)
	}

	data, err := d.pkg.bytes()
	if err != nil {
		return 0, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return len(data), nil
}
