package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// Field is a labelled value printed above the document body.
type Field struct {
	Label string
	Value string
}

// Document describes a generated academy document.
type Document struct {
	Title     string
	Subtitle  string
	Fields    []Field
	Body      []string
	Table     *Dataset
	Footer    string
	Landscape bool
}

// PDFExporter renders transcripts, certificates and statements.
type PDFExporter struct {
	institution string
}

// NewPDFExporter constructs a PDF exporter stamped with the institution name.
func NewPDFExporter(institution string) *PDFExporter {
	return &PDFExporter{institution: institution}
}

// Render lays out the document header, fields, paragraphs and optional table.
func (e *PDFExporter) Render(doc Document) ([]byte, error) {
	if doc.Title == "" {
		return nil, fmt.Errorf("pdf requires a title")
	}
	orientation := "P"
	width := 190.0
	if doc.Landscape {
		orientation = "L"
		width = 277.0
	}
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator(e.institution, true)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if e.institution != "" {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, tr(e.institution), "", 1, "C", false, 0, "")
	}

	titleSize := 16.0
	if doc.Landscape {
		titleSize = 28
	}
	pdf.SetFont("Arial", "B", titleSize)
	pdf.CellFormat(0, titleSize*0.7, tr(doc.Title), "", 1, "C", false, 0, "")
	if doc.Subtitle != "" {
		pdf.SetFont("Arial", "I", 12)
		pdf.CellFormat(0, 8, tr(doc.Subtitle), "", 1, "C", false, 0, "")
	}
	pdf.Ln(6)

	for _, field := range doc.Fields {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(50, 7, tr(field.Label), "", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 7, tr(field.Value), "", 1, "", false, 0, "")
	}
	if len(doc.Fields) > 0 {
		pdf.Ln(4)
	}

	align := "L"
	if doc.Landscape {
		align = "C"
	}
	pdf.SetFont("Arial", "", 12)
	for _, para := range doc.Body {
		pdf.MultiCell(0, 7, tr(para), "", align, false)
		pdf.Ln(2)
	}

	if doc.Table != nil && len(doc.Table.Headers) > 0 {
		colWidth := width / float64(len(doc.Table.Headers))
		pdf.SetFont("Arial", "B", 9)
		for _, header := range doc.Table.Headers {
			pdf.CellFormat(colWidth, 8, tr(header), "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
		for _, row := range doc.Table.Rows {
			for i := range doc.Table.Headers {
				value := ""
				if i < len(row) {
					value = row[i]
				}
				pdf.CellFormat(colWidth, 7, tr(value), "1", 0, "", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	if doc.Footer != "" {
		pdf.Ln(8)
		pdf.SetFont("Arial", "I", 8)
		pdf.MultiCell(0, 5, tr(doc.Footer), "", "C", false)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
