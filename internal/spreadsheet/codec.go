// Package spreadsheet converts between spreadsheet files and header-keyed rows.
package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"bulk-inventory-service/internal/models"
)

const (
	// ContentTypeXLSX is the MIME type of encoded workbooks
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	defaultSheet = "Sheet1"
)

// ErrNoSheets is returned when a workbook has no worksheets
var ErrNoSheets = errors.New("no sheets found in Excel file")

// Sheet is one named worksheet of an encoded workbook
type Sheet struct {
	Name string
	Rows []models.Row
}

// DecodeFile decodes a CSV or XLSX upload, chosen by file extension
func DecodeFile(filename string, r io.Reader) ([]models.Row, error) {
	if strings.HasSuffix(strings.ToLower(filename), ".csv") {
		return DecodeCSV(r)
	}
	return Decode(r)
}

// Decode reads the first worksheet of an XLSX workbook. Row 1 supplies the
// keys by column position; cells under a blank header are skipped.
func Decode(r io.Reader) ([]models.Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}
	sheetName := sheets[0]

	excelRows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}
	if len(excelRows) == 0 {
		return []models.Row{}, nil
	}

	headers := excelRows[0]
	rows := make([]models.Row, 0, len(excelRows)-1)
	for rowIdx, excelRow := range excelRows[1:] {
		row := models.NewRow()
		for colIdx, header := range headers {
			if header == "" {
				continue
			}
			if colIdx >= len(excelRow) || excelRow[colIdx] == "" {
				row.Set(header, models.EmptyValue())
				continue
			}
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return nil, err
			}
			cellType, err := f.GetCellType(sheetName, cell)
			if err != nil {
				return nil, fmt.Errorf("failed to read cell %s: %w", cell, err)
			}
			row.Set(header, cellValue(cellType, excelRow[colIdx]))
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// cellValue maps a raw cell to a Value. Cells without an explicit type are
// numeric in SpreadsheetML.
func cellValue(cellType excelize.CellType, raw string) models.Value {
	switch cellType {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return models.NumberValue(n)
		}
	}
	return models.StringValue(raw)
}

// DecodeCSV reads a CSV upload with the same header rules as Decode. Every
// non-blank cell is a string.
func DecodeCSV(r io.Reader) ([]models.Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err == io.EOF {
		return []models.Row{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}

	prevEnd := recordEndLine(reader, headers)

	var rows []models.Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}

		// The reader drops blank lines; put them back so row positions
		// match the file
		line, _ := reader.FieldPos(0)
		for ; prevEnd+1 < line; prevEnd++ {
			rows = append(rows, blankRow(headers))
		}
		prevEnd = recordEndLine(reader, record)

		row := models.NewRow()
		for i, header := range headers {
			if header == "" {
				continue
			}
			if i >= len(record) || record[i] == "" {
				row.Set(header, models.EmptyValue())
				continue
			}
			row.Set(header, models.StringValue(record[i]))
		}
		rows = append(rows, row)
	}
	if rows == nil {
		rows = []models.Row{}
	}

	return rows, nil
}

// recordEndLine is the last line of the record just read; quoted fields may span lines
func recordEndLine(reader *csv.Reader, record []string) int {
	last := len(record) - 1
	line, _ := reader.FieldPos(last)
	return line + strings.Count(record[last], "\n")
}

func blankRow(headers []string) models.Row {
	row := models.NewRow()
	for _, header := range headers {
		if header != "" {
			row.Set(header, models.EmptyValue())
		}
	}
	return row
}

// Encode writes rows to a single-sheet XLSX workbook. The header row follows
// the key order of the first row.
func Encode(rows []models.Row, sheetName string) ([]byte, error) {
	return EncodeSheets(Sheet{Name: sheetName, Rows: rows})
}

// EncodeSheets writes each sheet in order; the first becomes the active sheet
func EncodeSheets(sheets ...Sheet) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, sheet := range sheets {
		name := sheet.Name
		if name == "" {
			name = defaultSheet
			if i > 0 {
				name = fmt.Sprintf("Sheet%d", i+1)
			}
		}
		if i == 0 {
			if name != defaultSheet {
				if err := f.SetSheetName(defaultSheet, name); err != nil {
					return nil, fmt.Errorf("failed to name sheet: %w", err)
				}
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to add sheet %q: %w", name, err)
		}
		if err := writeSheet(f, name, sheet.Rows, headerStyle); err != nil {
			return nil, err
		}
		if i == 0 {
			sheetIdx, _ := f.GetSheetIndex(name)
			f.SetActiveSheet(sheetIdx)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheetName string, rows []models.Row, headerStyle int) error {
	if len(rows) == 0 {
		return nil
	}

	headers := rows[0].Keys()
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStr(sheetName, cell, header); err != nil {
			return fmt.Errorf("failed to write header %q: %w", header, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return err
		}
		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, colName, colName, 18)
	}

	for rowIdx, row := range rows {
		for colIdx, header := range headers {
			v, ok := row.Get(header)
			if !ok || v.IsEmpty() {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return err
			}
			switch v.Kind {
			case models.KindNumber:
				err = f.SetCellFloat(sheetName, cell, v.Num, -1, 64)
			default:
				err = f.SetCellStr(sheetName, cell, v.Str)
			}
			if err != nil {
				return fmt.Errorf("failed to write cell %s: %w", cell, err)
			}
		}
	}
	return nil
}

// EncodeCSV writes rows as CSV with the same header rule as Encode
func EncodeCSV(rows []models.Row) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if len(rows) > 0 {
		headers := rows[0].Keys()
		if err := writer.Write(headers); err != nil {
			return nil, err
		}
		for _, row := range rows {
			record := make([]string, len(headers))
			for i, header := range headers {
				record[i] = row.Text(header)
			}
			if err := writer.Write(record); err != nil {
				return nil, err
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to write CSV: %w", err)
	}
	return buf.Bytes(), nil
}
