// Package loader turns business files into text documents for the agent.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
	"github.com/extrame/xls"
	"github.com/ledongthuc/pdf"
	"github.com/lu4p/cat"
	"github.com/xuri/excelize/v2"
)

// AllowedExtensions are the file types shown in directory trees and offered to the agent.
var AllowedExtensions = map[string]bool{
	".csv":  true,
	".xls":  true,
	".xlsx": true,
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".txt":  true,
	".md":   true,
}

// ErrUnsupported is returned for file types with no text extractor.
var ErrUnsupported = errors.New("unsupported file format")

// Allowed reports whether path has an allow-listed extension.
func Allowed(path string) bool {
	return AllowedExtensions[Ext(path)]
}

// Ext returns the lower-cased extension of path.
func Ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// IsSpreadsheet reports whether path is an Excel workbook.
func IsSpreadsheet(path string) bool {
	ext := Ext(path)
	return ext == ".xlsx" || ext == ".xls"
}

// FileLoader loads local files by extension. It satisfies eino's document.Loader.
type FileLoader struct{}

// New creates a file loader.
func New() *FileLoader {
	return &FileLoader{}
}

// Load reads src.URI as a local path and returns one document per page or sheet.
func (l *FileLoader) Load(ctx context.Context, src document.Source, opts ...document.LoaderOption) ([]*schema.Document, error) {
	path := src.URI
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		docs []*schema.Document
		err  error
	)
	switch Ext(path) {
	case ".txt", ".md", ".csv":
		docs, err = loadText(path)
	case ".xlsx":
		docs, err = loadWorkbook(path)
	case ".xls":
		docs, err = loadLegacyWorkbook(path)
	case ".pdf":
		docs, err = loadPDF(path)
	case ".docx":
		docs, err = loadDocx(path)
	case ".doc":
		docs, err = loadDoc(path)
	default:
		err = ErrUnsupported
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	for i, d := range docs {
		if d.MetaData == nil {
			d.MetaData = map[string]any{}
		}
		d.ID = fmt.Sprintf("%s#%d", path, i)
		d.MetaData["source"] = path
	}
	return docs, nil
}

// LoadText loads path and joins its pages with a blank line.
func LoadText(ctx context.Context, l document.Loader, path string) (string, error) {
	docs, err := l.Load(ctx, document.Source{URI: path})
	if err != nil {
		return "", err
	}
	return JoinPages(docs), nil
}

// JoinPages concatenates document contents separated by a blank line.
func JoinPages(docs []*schema.Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, d.Content)
	}
	return strings.Join(parts, "\n\n")
}

func loadText(path string) ([]*schema.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []*schema.Document{{Content: string(data)}}, nil
}

func loadWorkbook(path string) ([]*schema.Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var docs []*schema.Document
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sheet, err)
		}
		lines := make([]string, 0, len(rows))
		for _, row := range rows {
			lines = append(lines, strings.Join(row, "\t"))
		}
		docs = append(docs, &schema.Document{
			Content:  strings.Join(lines, "\n"),
			MetaData: map[string]any{"sheet": sheet},
		})
	}
	return docs, nil
}

func loadPDF(path string) ([]*schema.Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var docs []*schema.Document
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		docs = append(docs, &schema.Document{
			Content:  text,
			MetaData: map[string]any{"page": i},
		})
	}
	return docs, nil
}

// loadLegacyWorkbook reads a BIFF (Excel 97-2003) workbook, one document per sheet.
// The xls reader panics on some corrupt workbooks; that surfaces as an error.
func loadLegacyWorkbook(path string) (docs []*schema.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			docs, err = nil, fmt.Errorf("open xls: corrupt workbook: %v", r)
		}
	}()

	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}

	for i := 0; i < wb.NumSheets(); i++ {
		sheet := wb.GetSheet(i)
		if sheet == nil {
			continue
		}
		var lines []string
		for r := 0; r <= int(sheet.MaxRow); r++ {
			row := sheet.Row(r)
			if row == nil {
				continue
			}
			cells := make([]string, 0, row.LastCol()-row.FirstCol())
			for c := row.FirstCol(); c < row.LastCol(); c++ {
				cells = append(cells, row.Col(c))
			}
			lines = append(lines, strings.TrimRight(strings.Join(cells, "\t"), "\t"))
		}
		docs = append(docs, &schema.Document{
			Content:  strings.Join(lines, "\n"),
			MetaData: map[string]any{"sheet": sheet.Name},
		})
	}
	return docs, nil
}

func loadDocx(path string) ([]*schema.Document, error) {
	text, err := cat.File(path)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	return []*schema.Document{{Content: strings.TrimRight(text, "\n")}}, nil
}

var _ document.Loader = (*FileLoader)(nil)
