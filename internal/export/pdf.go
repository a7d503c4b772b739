package export

import (
	"bytes"
	"fmt"

	docpkg "github.com/fyerfyer/quiz-gen-system/internal/document"
	"github.com/jung-kurt/gofpdf"
)

const (
	pdfFont       = "Helvetica"
	pdfLineHeight = 6.0
)

// renderPDF 使用内置字体生成PDF，返回数据和页数
// 内置字体只覆盖cp1252字符集
func (e *Exporter) renderPDF(d *document) ([]byte, int, error) {
	pdf := gofpdf.New("P", "mm", e.config.PageSize, "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetTitle(d.title(), true)
	pdf.SetAuthor(e.config.Author, true)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(pdfFont, "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("%d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont(pdfFont, "B", 16)
	pdf.MultiCell(0, 10, tr(d.title()), "", "L", false)
	pdf.SetFont(pdfFont, "", 10)
	pdf.MultiCell(0, pdfLineHeight, tr("Difficulty: "+d.Difficulty), "", "L", false)
	pdf.Ln(4)

	for i, q := range d.Questions {
		pdf.SetFont(pdfFont, "B", 12)
		pdf.MultiCell(0, 8, tr(fmt.Sprintf("Question %d: %s", i+1, headingLabel(q))), "", "L", false)

		pdf.SetFont(pdfFont, "", 11)
		pdf.MultiCell(0, pdfLineHeight, tr(q.Text), "", "L", false)
		for _, opt := range q.Options {
			pdf.SetX(26)
			pdf.MultiCell(0, pdfLineHeight, tr(opt), "", "L", false)
		}

		if q.Answer != "" {
			pdf.SetFont(pdfFont, "B", 11)
			pdf.MultiCell(0, pdfLineHeight, tr("Answer: "+q.Answer), "", "L", false)
		}
		if q.Explanation != "" {
			pdf.SetFont(pdfFont, "I", 10)
			pdf.MultiCell(0, pdfLineHeight, tr("Explanation: "+q.Explanation), "", "L", false)
		}
		pdf.Ln(4)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, 0, err
	}

	pages, err := docpkg.PageCount(buf.Bytes())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return buf.Bytes(), pages, nil
}
