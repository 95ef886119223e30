package sheetform

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// SheetRow is one (label, value) pair read from the first two columns of a sheet row.
// Value is a string, an int64 or a float64.
type SheetRow struct {
	Label string
	Value any
}

// Sheet is one named tab of a workbook with its cell text, row-major.
type Sheet struct {
	Name string
	Rows [][]string
}

// Workbook holds the sheets of an uploaded spreadsheet in workbook order.
type Workbook struct {
	Sheets []Sheet
}

// SheetNames returns sheet names in workbook order.
func (wb *Workbook) SheetNames() []string {
	names := make([]string, len(wb.Sheets))
	for i, s := range wb.Sheets {
		names[i] = s.Name
	}
	return names
}

// ReadWorkbook parses xlsx bytes from r. Cell values are read raw: number
// formats are not applied, so a cell shown as "$1,234.50" reads as "1234.5".
func ReadWorkbook(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}
	defer f.Close()

	wb := &Workbook{}
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("%w: read rows from sheet %q: %v", ErrInvalidWorkbook, name, err)
		}
		wb.Sheets = append(wb.Sheets, Sheet{Name: name, Rows: rows})
	}
	return wb, nil
}

// ReadWorkbookBytes parses an in-memory xlsx file.
func ReadWorkbookBytes(data []byte) (*Workbook, error) {
	return ReadWorkbook(bytes.NewReader(data))
}

// ExtractRows converts raw sheet rows into SheetRows. Column 0 is the label,
// column 1 the value, later columns are ignored. The first row with an empty
// label ends the sheet: neither it nor any row after it is returned. A row with
// a label and an empty value is kept.
func ExtractRows(rows [][]string) []SheetRow {
	var out []SheetRow
	for _, row := range rows {
		label := ""
		if len(row) > 0 {
			label = row[0]
		}
		if label == "" {
			break
		}
		value := ""
		if len(row) > 1 {
			value = row[1]
		}
		out = append(out, SheetRow{Label: label, Value: parseValue(value)})
	}
	return out
}

// parseValue returns an int64 or float64 when s is the canonical text of that
// number, so that formatting it again reproduces s exactly. Anything else,
// including "007" or "1e3", stays a string.
func parseValue(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(i, 10) == s {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && strconv.FormatFloat(f, 'f', -1, 64) == s {
		return f
	}
	return s
}
