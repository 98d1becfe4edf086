package docx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

// Part is one parsed XML part of the package: the document body or a
// header/footer. Blocks preserve document order; nested tables recurse
// through cells.
type Part struct {
	Path   string
	Blocks []Block

	raw  []byte
	runs []*Run
}

// parsePart indexes the structural tree of a WordprocessingML part and
// records the byte span of every w:t so edited text can be spliced
// back without re-serializing the markup.
func parsePart(path string, raw []byte) (*Part, error) {
	part := &Part{Path: path, raw: raw}

	dec := xml.NewDecoder(bytes.NewReader(raw))

	var (
		containers = []*[]Block{&part.Blocks}
		tables     []*Table
		paragraphs []*Paragraph

		run     *Run
		textBuf bytes.Buffer
	)

	appendBlock := func(b Block) {
		top := containers[len(containers)-1]
		*top = append(*top, b)
	}

	for {
		posBefore := dec.InputOffset()
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed XML in %s: %w", path, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != "w" {
				continue
			}
			switch t.Name.Local {
			case "p":
				para := &Paragraph{}
				appendBlock(para)
				paragraphs = append(paragraphs, para)
			case "tbl":
				tbl := &Table{}
				appendBlock(tbl)
				tables = append(tables, tbl)
			case "tr":
				if len(tables) > 0 {
					tbl := tables[len(tables)-1]
					tbl.Rows = append(tbl.Rows, &Row{})
				}
			case "tc":
				if len(tables) > 0 {
					tbl := tables[len(tables)-1]
					if len(tbl.Rows) > 0 {
						row := tbl.Rows[len(tbl.Rows)-1]
						cell := &Cell{}
						row.Cells = append(row.Cells, cell)
						containers = append(containers, &cell.Blocks)
					}
				}
			case "t":
				if len(paragraphs) > 0 && run == nil {
					run = &Run{
						tagStart:     posBefore,
						contentStart: dec.InputOffset(),
					}
					textBuf.Reset()
				}
			}

		case xml.CharData:
			if run != nil {
				textBuf.Write(t)
			}

		case xml.EndElement:
			if t.Name.Space != "w" {
				continue
			}
			switch t.Name.Local {
			case "t":
				if run != nil {
					run.contentEnd = posBefore
					run.text = textBuf.String()
					run.selfClosing = run.contentEnd == run.contentStart &&
						run.contentStart >= 2 && raw[run.contentStart-2] == '/'
					if len(paragraphs) > 0 {
						para := paragraphs[len(paragraphs)-1]
						para.Runs = append(para.Runs, run)
					}
					part.runs = append(part.runs, run)
					run = nil
				}
			case "p":
				if len(paragraphs) > 0 {
					paragraphs = paragraphs[:len(paragraphs)-1]
				}
			case "tbl":
				if len(tables) > 0 {
					tables = tables[:len(tables)-1]
				}
			case "tc":
				if len(containers) > 1 {
					containers = containers[:len(containers)-1]
				}
			}
		}
	}

	return part, nil
}

// render returns the part's XML with any edited run text spliced in.
// Untouched parts round-trip byte-identically.
func (p *Part) render() []byte {
	edited := false
	for _, r := range p.runs {
		if r.dirty {
			edited = true
			break
		}
	}
	if !edited {
		return p.raw
	}

	var buf bytes.Buffer
	var prev int64
	for _, r := range p.runs {
		if !r.dirty {
			continue
		}
		if r.selfClosing {
			// The original element had no content; replace the whole tag.
			buf.Write(p.raw[prev:r.tagStart])
			buf.WriteString(`<w:t xml:space="preserve">`)
			escapeText(&buf, r.text)
			buf.WriteString(`</w:t>`)
			prev = r.contentStart
		} else {
			buf.Write(p.raw[prev:r.contentStart])
			escapeText(&buf, r.text)
			prev = r.contentEnd
		}
	}
	buf.Write(p.raw[prev:])
	return buf.Bytes()
}

func escapeText(buf *bytes.Buffer, text string) {
	// xml.EscapeText only fails on writer errors; bytes.Buffer has none.
	_ = xml.EscapeText(buf, []byte(text))
}
