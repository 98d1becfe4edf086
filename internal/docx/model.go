package docx

// Block is one body-level structural element: a paragraph or a table.
type Block interface {
	block()
}

// Paragraph holds the text runs of one paragraph
type Paragraph struct {
	Runs []*Run
}

func (*Paragraph) block() {}

// Table holds rows top-to-bottom
type Table struct {
	Rows []*Row
}

func (*Table) block() {}

// Row holds cells left-to-right
type Row struct {
	Cells []*Cell
}

// Cell holds nested blocks; tables nest through cells.
type Cell struct {
	Blocks []Block
}

// Run is the smallest text-bearing node: one w:t element. Reading and
// rewriting a run never touches the surrounding formatting markup.
type Run struct {
	text string

	// byte span of the text content within the owning part's raw XML
	tagStart     int64
	contentStart int64
	contentEnd   int64
	selfClosing  bool
	dirty        bool
}

// Text returns the run's current text
func (r *Run) Text() string {
	return r.text
}

// SetText replaces the run's text. The new text is spliced into the
// part's XML when the document is saved.
func (r *Run) SetText(text string) {
	if text == r.text {
		return
	}
	r.text = text
	r.dirty = true
}
