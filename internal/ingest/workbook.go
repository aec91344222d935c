package ingest

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

var (
	ErrSheetNotFound = errors.New("sheet not found")
	ErrHeaderMissing = errors.New("expected header missing")
	ErrExhausted     = errors.New("extraction already consumed")
)

// RowSource streams the physical rows of one sheet, blank rows included.
type RowSource interface {
	Next() bool
	Columns() ([]string, error)
	Error() error
	Close() error
}

// SheetReader opens sheets by name.
type SheetReader interface {
	Rows(sheet string) (RowSource, error)
}

// Workbook is an XLSX file opened for streaming reads.
type Workbook struct {
	f *excelize.File
}

var rawCells = excelize.Options{RawCellValue: true}

// OpenWorkbook opens an XLSX file from disk.
func OpenWorkbook(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path, rawCells)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	return &Workbook{f: f}, nil
}

// ReadWorkbook reads an XLSX archive from r.
func ReadWorkbook(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r, rawCells)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	return &Workbook{f: f}, nil
}

func (w *Workbook) Sheets() []string {
	return w.f.GetSheetList()
}

// Rows opens a streaming reader over sheet.
func (w *Workbook) Rows(sheet string) (RowSource, error) {
	rows, err := w.f.Rows(sheet)
	var missing excelize.ErrSheetNotExist
	if errors.As(err, &missing) {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
	}
	if err != nil {
		return nil, fmt.Errorf("open sheet %q: %w", sheet, err)
	}
	return sheetRows{rows: rows}, nil
}

func (w *Workbook) Close() error {
	return w.f.Close()
}

type sheetRows struct {
	rows *excelize.Rows
}

func (s sheetRows) Next() bool                 { return s.rows.Next() }
func (s sheetRows) Columns() ([]string, error) { return s.rows.Columns(rawCells) }
func (s sheetRows) Error() error               { return s.rows.Error() }
func (s sheetRows) Close() error               { return s.rows.Close() }
