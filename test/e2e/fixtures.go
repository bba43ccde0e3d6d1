// Package e2e provides end-to-end tests; this file builds minimal files for supported types.
package e2e

import (
	"archive/zip"
	"bytes"

	"github.com/xuri/excelize/v2"
)

// SupportedFileExtensions is the list of file extensions used in E2E
// file-based tests. Covers plain text (.txt, .md, .csv), OOXML spreadsheets
// (.xlsx), and OOXML documents (.docx). PDF extraction is covered by
// internal/extract tests; a minimal PDF with extractable text is not
// generated here.
var SupportedFileExtensions = []string{
	".txt", ".md", ".csv", ".xlsx", ".docx",
}

// WriteMinimalFile returns the bytes of a minimal file of the given extension
// containing the given text. For plain types (.txt, .md, .csv) the content is
// the raw text; for binary types it is the container file bytes.
func WriteMinimalFile(ext, text string) ([]byte, error) {
	switch ext {
	case ".txt", ".md", ".csv":
		return []byte(text), nil
	case ".docx":
		return minimalDocx(text), nil
	case ".xlsx":
		return minimalXlsx(text), nil
	default:
		return []byte(text), nil
	}
}

func minimalDocx(text string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("word/document.xml")
	_, _ = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:body></w:document>`))
	_ = w.Close()
	return buf.Bytes()
}

func minimalXlsx(text string) []byte {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", text)
	var buf bytes.Buffer
	_, _ = f.WriteTo(&buf)
	return buf.Bytes()
}
