// Package docx reads and writes Word-processor document packages: a
// zip container of XML parts. It exposes an ordered structural
// traversal (paragraphs, tables, nested tables, text runs) with
// get/set text on each run, leaving all other markup untouched.
package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
)

const documentPath = "word/document.xml"

// FormatError indicates the input byte stream is not a well-formed
// document package, or a structural part cannot be parsed.
type FormatError struct {
	Path string
	Err  error
}

func (e *FormatError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid document package: %v", e.Err)
	}
	return fmt.Sprintf("invalid document package (%s): %v", e.Path, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

type zipEntry struct {
	name string
	data []byte
}

// Document is an opened document package
type Document struct {
	entries []zipEntry
	parsed  map[string]*Part
	body    *Part
	extras  []*Part
}

// Open parses a document package from raw bytes
func Open(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &FormatError{Err: err}
	}

	doc := &Document{parsed: make(map[string]*Part)}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, &FormatError{Path: f.Name, Err: err}
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, &FormatError{Path: f.Name, Err: err}
		}
		doc.entries = append(doc.entries, zipEntry{name: f.Name, data: raw})
	}

	body, err := doc.parse(documentPath, true)
	if err != nil {
		return nil, err
	}
	doc.body = body

	// Headers and footers carry text too; parse them in path order so
	// traversal stays deterministic.
	var extraPaths []string
	for _, e := range doc.entries {
		if isHeaderFooter(e.name) {
			extraPaths = append(extraPaths, e.name)
		}
	}
	sort.Strings(extraPaths)
	for _, p := range extraPaths {
		part, err := doc.parse(p, false)
		if err != nil {
			return nil, err
		}
		doc.extras = append(doc.extras, part)
	}

	return doc, nil
}

// Body returns the document body's blocks in document order
func (d *Document) Body() []Block {
	return d.body.Blocks
}

// Extras returns the header and footer parts in path order
func (d *Document) Extras() []*Part {
	return d.extras
}

// Save writes the package back out, splicing edited run text into the
// affected XML parts and copying everything else through unchanged.
func (d *Document) Save(w io.Writer) error {
	zw := zip.NewWriter(w)
	for _, e := range d.entries {
		data := e.data
		if part, ok := d.parsed[e.name]; ok {
			data = part.render()
		}
		fw, err := zw.Create(e.name)
		if err != nil {
			return fmt.Errorf("write package entry %s: %w", e.name, err)
		}
		if _, err := fw.Write(data); err != nil {
			return fmt.Errorf("write package entry %s: %w", e.name, err)
		}
	}
	return zw.Close()
}

// Bytes serializes the package into a fresh buffer
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Save(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *Document) parse(entryPath string, required bool) (*Part, error) {
	for _, e := range d.entries {
		if e.name != entryPath {
			continue
		}
		part, err := parsePart(entryPath, e.data)
		if err != nil {
			return nil, &FormatError{Path: entryPath, Err: err}
		}
		d.parsed[entryPath] = part
		return part, nil
	}
	if required {
		return nil, &FormatError{Path: entryPath, Err: fmt.Errorf("missing part")}
	}
	return nil, nil
}

func isHeaderFooter(name string) bool {
	if path.Dir(name) != "word" {
		return false
	}
	base := path.Base(name)
	return (strings.HasPrefix(base, "header") || strings.HasPrefix(base, "footer")) &&
		strings.HasSuffix(base, ".xml")
}
