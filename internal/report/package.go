package report

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"time"
)

// part is one entry of an OOXML zip package.
type part struct {
	name     string
	method   uint16
	modified time.Time
	data     []byte
}

// ooxmlPackage keeps the entries of a .docx in their original order so a
// rewritten package differs from its template only in the edited parts.
type ooxmlPackage struct {
	parts []*part
	index map[string]*part
}

func openPackage(path string) (*ooxmlPackage, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open template %s: %w", path, err)
	}
	defer zr.Close()

	pkg := &ooxmlPackage{index: make(map[string]*part, len(zr.File))}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s from %s: %w", f.Name, path, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s from %s: %w", f.Name, path, err)
		}
		p := &part{name: f.Name, method: f.Method, modified: f.Modified, data: data}
		pkg.parts = append(pkg.parts, p)
		pkg.index[f.Name] = p
	}
	return pkg, nil
}

func (pkg *ooxmlPackage) get(name string) ([]byte, bool) {
	p, ok := pkg.index[name]
	if !ok {
		return nil, false
	}
	return p.data, true
}

// put replaces a part's content, appending the part when it is new.
func (pkg *ooxmlPackage) put(name string, data []byte) {
	if p, ok := pkg.index[name]; ok {
		p.data = data
		return
	}
	p := &part{name: name, method: zip.Deflate, data: data}
	pkg.parts = append(pkg.parts, p)
	pkg.index[name] = p
}

func (pkg *ooxmlPackage) bytes() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range pkg.parts {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     p.name,
			Method:   p.method,
			Modified: p.modified,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", p.name, err)
		}
		if _, err := w.Write(p.data); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
