// Package report exports a day of the till ledger as an Excel workbook.
package report

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// Writer appends rows to the sheets of one workbook.
type Writer struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
	boldStyle    int
	moneyStyle   int
}

func NewWriter() (*Writer, error) {
	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	fmtMoney := "#,##0.00"
	money, err := f.NewStyle(&excelize.Style{CustomNumFmt: &fmtMoney})
	if err != nil {
		return nil, err
	}
	return &Writer{file: f, boldStyle: bold, moneyStyle: money}, nil
}

// AddSheet starts a new sheet; the first call renames the default one.
func (w *Writer) AddSheet(name string) error {
	// Excel limits sheet names to 31 characters.
	for utf8.RuneCountInString(name) > 31 {
		_, size := utf8.DecodeLastRuneInString(name)
		name = name[:len(name)-size]
	}

	if w.currentSheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.currentSheet = name
	w.currentRow = 1
	return nil
}

// WriteHeader writes a bold row.
func (w *Writer) WriteHeader(columns ...string) error {
	row := make([]interface{}, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	start := w.currentRow
	if err := w.WriteRow(row...); err != nil {
		return err
	}
	return w.styleRow(start, len(columns), w.boldStyle)
}

// WriteRow writes values to the next row of the current sheet.
func (w *Writer) WriteRow(values ...interface{}) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}
	cell, err := excelize.CoordinatesToCellName(1, w.currentRow)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.currentSheet, cell, &values); err != nil {
		return err
	}
	w.currentRow++
	return nil
}

// MoneyColumns applies the currency format to columns [from, to] of every written row.
func (w *Writer) MoneyColumns(from, to int) error {
	if w.currentRow <= 1 {
		return nil
	}
	start, err := excelize.CoordinatesToCellName(from, 1)
	if err != nil {
		return err
	}
	end, err := excelize.CoordinatesToCellName(to, w.currentRow-1)
	if err != nil {
		return err
	}
	return w.file.SetCellStyle(w.currentSheet, start, end, w.moneyStyle)
}

func (w *Writer) styleRow(row, cols, style int) error {
	start, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	end, err := excelize.CoordinatesToCellName(cols, row)
	if err != nil {
		return err
	}
	return w.file.SetCellStyle(w.currentSheet, start, end, style)
}

// Save writes the workbook.
func (w *Writer) Save(wr io.Writer) error {
	return w.file.Write(wr)
}

// SaveToFile writes the workbook to disk.
func (w *Writer) SaveToFile(path string) error {
	return w.file.SaveAs(path)
}

// Close releases resources.
func (w *Writer) Close() error {
	return w.file.Close()
}
