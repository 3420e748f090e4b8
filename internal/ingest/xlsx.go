package ingest

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/gl-mapper/internal/table"
)

const exportSheet = "Sheet1"

// ReadXLSX parses the first worksheet of a workbook. Its first row is the header.
func ReadXLSX(r io.Reader) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("ReadXLSX: open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("ReadXLSX: workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("ReadXLSX: read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("ReadXLSX: empty sheet %q: no header row found", sheets[0])
	}

	// GetRows drops trailing empty cells, so short rows are expected here and
	// are padded without a warning.
	header, body := rows[0], rows[1:]
	for i, row := range body {
		if len(row) < len(header) {
			padded := make([]string, len(header))
			copy(padded, row)
			body[i] = padded
		}
	}

	t, warnings, err := buildTable(header, body)
	if err != nil {
		return nil, fmt.Errorf("ReadXLSX: %w", err)
	}
	return &Result{Table: t, Warnings: warnings, Encoding: "xlsx"}, nil
}

// WriteXLSX writes t to a single-sheet workbook. Decimal cells are written as
// numbers; datetimes use the same text layout as CSV exports.
func WriteXLSX(w io.Writer, t *table.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	header := make([]interface{}, t.NumColumns())
	for i, name := range t.ColumnNames() {
		header[i] = name
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return fmt.Errorf("WriteXLSX: write header: %w", err)
	}

	for r := 0; r < t.NumRows(); r++ {
		cells := t.Row(r)
		row := make([]interface{}, len(cells))
		for c, v := range cells {
			row[c] = xlsxCell(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return fmt.Errorf("WriteXLSX: row %d: %w", r+1, err)
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("WriteXLSX: write row %d: %w", r+1, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("WriteXLSX: write workbook: %w", err)
	}
	return nil
}

func xlsxCell(v table.Value) interface{} {
	switch v.Kind() {
	case table.KindNull:
		return nil
	case table.KindDecimal:
		f, _ := v.Rat().Float64()
		return f
	default:
		return v.String()
	}
}
