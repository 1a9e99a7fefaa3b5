package report

import (
	"archive/zip"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/require"
)

const (
	fixtureContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/><Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/></Types>`

	fixtureContentTypesWithCustom = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/><Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/><Override PartName="/docProps/custom.xml" ContentType="application/vnd.openxmlformats-officedocument.custom-properties+xml"/></Types>`

	fixturePackageRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/></Relationships>`

	fixturePackageRelsWithCustom = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/><Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/custom-properties" Target="docProps/custom.xml"/></Relationships>`

	fixtureDocument = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>Maintenance report</w:t></w:r></w:p><w:sectPr><w:pgSz w:w="12240" w:h="15840"/></w:sectPr></w:body></w:document>`

	fixtureDocumentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/><Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/logo.png"/></Relationships>`

	fixtureStyles = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style><w:style w:type="paragraph" w:styleId="ListParagraph"><w:name w:val="List Paragraph"/></w:style><w:style w:type="paragraph" w:styleId="ClosingParagraph"><w:name w:val="Closing Paragraph"/></w:style><w:style w:type="character" w:styleId="Hyperlink"><w:name w:val="Hyperlink"/></w:style></w:styles>`

	fixtureCustom = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/custom-properties" xmlns:vt="http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes"><property fmtid="{D5CDD505-2E9C-101B-9397-08002B2CF9AE}" pid="2" name="ClientName"><vt:lpwstr>Old Client</vt:lpwstr></property><property fmtid="{D5CDD505-2E9C-101B-9397-08002B2CF9AE}" pid="3" name="Reviewer"><vt:lpwstr>Jo</vt:lpwstr></property></Properties>`
)

// templateOption adjusts the parts of a fixture template.
type templateOption func(parts map[string]string)

func withCustomProperties() templateOption {
	return func(parts map[string]string) {
		parts[partContentTypes] = fixtureContentTypesWithCustom
		parts[partPackageRels] = fixturePackageRelsWithCustom
		parts[partCustomProps] = fixtureCustom
	}
}

func withoutPart(name string) templateOption {
	return func(parts map[string]string) {
		delete(parts, name)
	}
}

// writeTemplate builds a minimal .docx in a temp directory.
func writeTemplate(t *testing.T, opts ...templateOption) string {
	t.Helper()

	parts := map[string]string{
		partContentTypes: fixtureContentTypes,
		partPackageRels:  fixturePackageRels,
		partDocument:     fixtureDocument,
		partDocumentRels: fixtureDocumentRels,
		partStyles:       fixtureStyles,
	}
	for _, opt := range opts {
		opt(parts)
	}

	path := filepath.Join(t.TempDir(), "template.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, name := range []string{partContentTypes, partPackageRels, partDocument, partDocumentRels, partStyles, partCustomProps} {
		content, ok := parts[name]
		if !ok {
			continue
		}
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

// readParts returns every entry of the package at path.
func readParts(t *testing.T, path string) map[string][]byte {
	t.Helper()

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	parts := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		parts[f.Name] = data
	}
	return parts
}

func readPart(t *testing.T, path, name string) *etree.Document {
	t.Helper()

	data, ok := readParts(t, path)[name]
	require.True(t, ok, "package has no %s", name)
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(data))
	return doc
}

func bodyParagraphs(doc *etree.Document) []*etree.Element {
	return doc.Root().SelectElement("w:body").SelectElements("w:p")
}

// paragraphText concatenates the w:t elements under e in document order.
func paragraphText(e *etree.Element) string {
	var b strings.Builder
	var walk func(*etree.Element)
	walk = func(el *etree.Element) {
		for _, child := range el.ChildElements() {
			if child.Space == "w" && child.Tag == "t" {
				b.WriteString(child.Text())
				continue
			}
			walk(child)
		}
	}
	walk(e)
	return b.String()
}

func paragraphStyle(p *etree.Element) string {
	style := p.FindElement("./w:pPr/w:pStyle")
	if style == nil {
		return ""
	}
	return style.SelectAttrValue("w:val", "")
}

func relationships(doc *etree.Document) map[string]*etree.Element {
	rels := make(map[string]*etree.Element)
	for _, rel := range doc.Root().SelectElements("Relationship") {
		rels[rel.SelectAttrValue("Id", "")] = rel
	}
	return rels
}

func customProperties(doc *etree.Document) map[string]string {
	props := make(map[string]string)
	for _, p := range doc.Root().SelectElements("property") {
		value := ""
		if v := p.SelectElement("vt:lpwstr"); v != nil {
			value = v.Text()
		}
		props[p.SelectAttrValue("name", "")] = value
	}
	return props
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
