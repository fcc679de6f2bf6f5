package extract

import (
	"context"
)

// Engine converts a PDF into a structured document. Implementations must be
// safe for concurrent use; the pool bounds how many run at once.
type Engine interface {
	Name() string
	Convert(ctx context.Context, data []byte) (*Document, error)
}

// Document is an engine's raw output: the page count and the elements found,
// in reading order.
type Document struct {
	Pages    int
	Elements []Element
}

type Kind int

const (
	KindText Kind = iota + 1
	KindTable
	KindPicture
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindTable:
		return "table"
	case KindPicture:
		return "picture"
	default:
		return "unknown"
	}
}

// Element is one item on a page. PageNo returns 0 when the engine could not
// attribute the element to a page.
type Element interface {
	Kind() Kind
	PageNo() int
}

// TextSpan is an element carrying plain text.
type TextSpan interface {
	Element
	Text() string
}

// TableExporter is a table element that can render itself.
type TableExporter interface {
	Element
	ExportMarkdown() (string, error)
	ExportCSV() (string, error)
}

// Captioned is implemented by pictures that carry captions.
type Captioned interface {
	Captions() ([]string, error)
}

// Annotated is implemented by pictures that carry annotations, such as OCR output.
type Annotated interface {
	Annotations() ([]string, error)
}

type Text struct {
	Page    int
	Content string
}

func (t Text) Kind() Kind   { return KindText }
func (t Text) PageNo() int  { return t.Page }
func (t Text) Text() string { return t.Content }

type Table struct {
	Page int
	Rows [][]string
}

func (t Table) Kind() Kind  { return KindTable }
func (t Table) PageNo() int { return t.Page }

func (t Table) ExportMarkdown() (string, error) { return rowsToMarkdown(t.Rows) }
func (t Table) ExportCSV() (string, error)      { return rowsToCSV(t.Rows) }

type Picture struct {
	Page        int
	CaptionText []string
	OCRText     []string
}

func (p Picture) Kind() Kind                     { return KindPicture }
func (p Picture) PageNo() int                    { return p.Page }
func (p Picture) Captions() ([]string, error)    { return p.CaptionText, nil }
func (p Picture) Annotations() ([]string, error) { return p.OCRText, nil }
