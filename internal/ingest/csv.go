package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/dvloznov/gl-mapper/internal/table"
)

// Warning is a non-fatal issue found while reading a file.
type Warning struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Result is a parsed input table plus what was repaired on the way.
type Result struct {
	Table    *table.Table
	Warnings []Warning
	Encoding string
}

// ReadCSV parses a delimited table with a header row. Short rows are padded
// with a Warning. A row wider than the header or one that fails to parse is an
// error, so no partial table is returned. Empty cells become null.
func ReadCSV(r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ReadCSV: read input: %w", err)
	}

	decoded, encoding, err := DetectAndDecode(data)
	if err != nil {
		return nil, fmt.Errorf("ReadCSV: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("ReadCSV: empty file: no header row found")
		}
		return nil, fmt.Errorf("ReadCSV: read header row: %w", err)
	}

	var rows [][]string
	for rowNum := 2; ; rowNum++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ReadCSV: row %d: %w", rowNum, err)
		}
		rows = append(rows, row)
	}

	t, warnings, err := buildTable(header, rows)
	if err != nil {
		return nil, fmt.Errorf("ReadCSV: %w", err)
	}

	return &Result{Table: t, Warnings: warnings, Encoding: encoding}, nil
}

// WriteCSV writes t with a header row of its column names. Null cells are empty.
func WriteCSV(w io.Writer, t *table.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.ColumnNames()); err != nil {
		return fmt.Errorf("WriteCSV: write header: %w", err)
	}
	if err := cw.WriteAll(t.Records()); err != nil {
		return fmt.Errorf("WriteCSV: write rows: %w", err)
	}
	return nil
}

// buildTable normalizes header names and pads short rows to the header width.
// Rows wider than the header are rejected. Row numbers are 1-based with the
// header as row 1.
func buildTable(header []string, rows [][]string) (*table.Table, []Warning, error) {
	names := normalizeHeader(header)
	width := len(names)

	var warnings []Warning
	for i, row := range rows {
		rowNum := i + 2
		switch {
		case len(row) < width:
			warnings = append(warnings, Warning{
				Row:     rowNum,
				Message: fmt.Sprintf("row has %d columns, expected %d; padding with empty values", len(row), width),
			})
			padded := make([]string, width)
			copy(padded, row)
			rows[i] = padded
		case len(row) > width:
			return nil, nil, fmt.Errorf("row %d has %d columns, expected %d", rowNum, len(row), width)
		}
	}

	t, err := table.FromRecords(names, rows)
	if err != nil {
		return nil, nil, err
	}
	return t, warnings, nil
}

// normalizeHeader trims and NFC-normalizes header names, names blank headers
// "Unnamed: <index>" and suffixes repeated names with ".1", ".2", ...
func normalizeHeader(header []string) []string {
	names := make([]string, len(header))
	used := make(map[string]bool, len(header))
	for i, h := range header {
		name := norm.NFC.String(strings.TrimSpace(h))
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if used[name] {
			for k := 1; ; k++ {
				candidate := fmt.Sprintf("%s.%d", name, k)
				if !used[candidate] {
					name = candidate
					break
				}
			}
		}
		used[name] = true
		names[i] = name
	}
	return names
}
