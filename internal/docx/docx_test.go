package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="xml" ContentType="application/xml"/></Types>`

// buildPackage assembles a minimal document package from part contents
func buildPackage(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range parts {
		fw, err := zw.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func wrapBody(inner string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:body>` + inner + `</w:body></w:document>`
}

func para(text string) string {
	return `<w:p><w:r><w:t>` + text + `</w:t></w:r></w:p>`
}

func readEntry(t *testing.T, pkg []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(pkg), int64(len(pkg)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(data)
	}
	t.Fatalf("entry %s not found", name)
	return ""
}

func TestOpenParsesStructure(t *testing.T) {
	body := para("Intro") +
		`<w:tbl>` +
		`<w:tr><w:tc>` + para("A1") + `</w:tc><w:tc>` + para("B1") + `</w:tc></w:tr>` +
		`<w:tr><w:tc>` +
		`<w:tbl><w:tr><w:tc>` + para("Nested") + `</w:tc></w:tr></w:tbl>` + para("After nested") +
		`</w:tc><w:tc>` + para("B2") + `</w:tc></w:tr>` +
		`</w:tbl>` +
		para("Outro")

	doc, err := Open(buildPackage(t, map[string]string{
		"[Content_Types].xml": contentTypesXML,
		documentPath:          wrapBody(body),
	}))
	require.NoError(t, err)

	blocks := doc.Body()
	require.Len(t, blocks, 3)

	intro, ok := blocks[0].(*Paragraph)
	require.True(t, ok)
	require.Len(t, intro.Runs, 1)
	assert.Equal(t, "Intro", intro.Runs[0].Text())

	tbl, ok := blocks[1].(*Table)
	require.True(t, ok)
	require.Len(t, tbl.Rows, 2)
	require.Len(t, tbl.Rows[0].Cells, 2)

	// Second row, first cell: a nested table followed by a paragraph.
	cell := tbl.Rows[1].Cells[0]
	require.Len(t, cell.Blocks, 2)
	nested, ok := cell.Blocks[0].(*Table)
	require.True(t, ok)
	inner, ok := nested.Rows[0].Cells[0].Blocks[0].(*Paragraph)
	require.True(t, ok)
	assert.Equal(t, "Nested", inner.Runs[0].Text())

	outro, ok := blocks[2].(*Paragraph)
	require.True(t, ok)
	assert.Equal(t, "Outro", outro.Runs[0].Text())
}

func TestRunTextDecodesEntities(t *testing.T) {
	doc, err := Open(buildPackage(t, map[string]string{
		documentPath: wrapBody(para("Fish &amp; Chips &lt;fried&gt;")),
	}))
	require.NoError(t, err)

	p := doc.Body()[0].(*Paragraph)
	assert.Equal(t, "Fish & Chips <fried>", p.Runs[0].Text())
}

func TestUntouchedPartsRoundTripByteIdentical(t *testing.T) {
	original := wrapBody(para("Nothing changes") + `<w:sectPr><w:pgSz w:w="12240"/></w:sectPr>`)
	doc, err := Open(buildPackage(t, map[string]string{
		"[Content_Types].xml": contentTypesXML,
		documentPath:          original,
	}))
	require.NoError(t, err)

	out, err := doc.Bytes()
	require.NoError(t, err)
	assert.Equal(t, original, readEntry(t, out, documentPath))
	assert.Equal(t, contentTypesXML, readEntry(t, out, "[Content_Types].xml"))
}

func TestSpliceKeepsFormattingMarkup(t *testing.T) {
	body := `<w:p>` +
		`<w:r><w:rPr><w:b/><w:color w:val="FF0000"/></w:rPr><w:t>Secret</w:t></w:r>` +
		`<w:r><w:t>Keep</w:t></w:r>` +
		`</w:p>`
	doc, err := Open(buildPackage(t, map[string]string{documentPath: wrapBody(body)}))
	require.NoError(t, err)

	p := doc.Body()[0].(*Paragraph)
	require.Len(t, p.Runs, 2)
	p.Runs[0].SetText("[REDACTED_1]")

	out, err := doc.Bytes()
	require.NoError(t, err)
	rendered := readEntry(t, out, documentPath)

	assert.Contains(t, rendered, `<w:rPr><w:b/><w:color w:val="FF0000"/></w:rPr>`)
	assert.Contains(t, rendered, `<w:t>[REDACTED_1]</w:t>`)
	assert.Contains(t, rendered, `<w:t>Keep</w:t>`)

	reopened, err := Open(out)
	require.NoError(t, err)
	rp := reopened.Body()[0].(*Paragraph)
	assert.Equal(t, "[REDACTED_1]", rp.Runs[0].Text())
	assert.Equal(t, "Keep", rp.Runs[1].Text())
}

func TestSpliceEscapesReservedCharacters(t *testing.T) {
	doc, err := Open(buildPackage(t, map[string]string{documentPath: wrapBody(para("plain"))}))
	require.NoError(t, err)

	p := doc.Body()[0].(*Paragraph)
	p.Runs[0].SetText(`a <b> & "c"`)

	out, err := doc.Bytes()
	require.NoError(t, err)
	assert.Contains(t, readEntry(t, out, documentPath), "a &lt;b&gt; &amp;")

	reopened, err := Open(out)
	require.NoError(t, err)
	assert.Equal(t, `a <b> & "c"`, reopened.Body()[0].(*Paragraph).Runs[0].Text())
}

func TestSelfClosingRunRewrite(t *testing.T) {
	doc, err := Open(buildPackage(t, map[string]string{
		documentPath: wrapBody(`<w:p><w:r><w:t/></w:r></w:p>`),
	}))
	require.NoError(t, err)

	p := doc.Body()[0].(*Paragraph)
	require.Len(t, p.Runs, 1)
	assert.Equal(t, "", p.Runs[0].Text())

	p.Runs[0].SetText("filled")
	out, err := doc.Bytes()
	require.NoError(t, err)
	assert.Contains(t, readEntry(t, out, documentPath), `<w:t xml:space="preserve">filled</w:t>`)

	reopened, err := Open(out)
	require.NoError(t, err)
	assert.Equal(t, "filled", reopened.Body()[0].(*Paragraph).Runs[0].Text())
}

func TestHeaderAndFooterParts(t *testing.T) {
	hdr := `<?xml version="1.0"?><w:hdr xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		para("Header text") + `</w:hdr>`
	ftr := `<?xml version="1.0"?><w:ftr xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		para("Footer text") + `</w:ftr>`

	doc, err := Open(buildPackage(t, map[string]string{
		documentPath:       wrapBody(para("Body")),
		"word/header1.xml": hdr,
		"word/footer1.xml": ftr,
	}))
	require.NoError(t, err)

	extras := doc.Extras()
	require.Len(t, extras, 2)
	// Extras come back in part path order.
	assert.Equal(t, "word/footer1.xml", extras[0].Path)
	assert.Equal(t, "word/header1.xml", extras[1].Path)

	footerPara := extras[0].Blocks[0].(*Paragraph)
	assert.Equal(t, "Footer text", footerPara.Runs[0].Text())
}

func TestOpenRejectsGarbage(t *testing.T) {
	_, err := Open([]byte("this is not a zip archive"))
	var formatErr *FormatError
	require.True(t, errors.As(err, &formatErr))
}

func TestOpenRequiresDocumentPart(t *testing.T) {
	_, err := Open(buildPackage(t, map[string]string{
		"[Content_Types].xml": contentTypesXML,
	}))
	var formatErr *FormatError
	require.True(t, errors.As(err, &formatErr))
	assert.Equal(t, documentPath, formatErr.Path)
}

func TestOpenRejectsMalformedXML(t *testing.T) {
	// A bare ampersand is not a legal entity reference.
	malformed := wrapBody(para("salt & pepper"))
	_, err := Open(buildPackage(t, map[string]string{documentPath: malformed}))
	var formatErr *FormatError
	require.True(t, errors.As(err, &formatErr))
}
