// Package xlsxform implements the form field model for spreadsheet templates.
//
// A template field is any cell whose entire content is a single placeholder
// such as "${fieldName}". Cells sharing a placeholder are one field: writing it
// writes all of them. Fields are ordered by sheet, then row, then column of
// their first cell.
package xlsxform

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/javajack/sheetform/form"
	"github.com/xuri/excelize/v2"
)

// ContentType is the media type of xlsx documents.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	notationBegin = "${"
	notationEnd   = "}"
)

// Model parses xlsx templates.
type Model struct{}

// New returns an xlsx form model.
func New() *Model { return &Model{} }

// Extension returns "xlsx".
func (*Model) Extension() string { return "xlsx" }

// ContentType returns the xlsx media type.
func (*Model) ContentType() string { return ContentType }

// Parse opens an xlsx template and collects its placeholder fields.
func (*Model) Parse(data []byte) (form.Document, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx template: %w", err)
	}
	doc := &Document{file: f, byName: make(map[string]*Field)}
	if err := doc.scan(); err != nil {
		f.Close()
		return nil, err
	}
	return doc, nil
}

// Document is a parsed xlsx template.
type Document struct {
	file   *excelize.File
	fields []*Field
	byName map[string]*Field
}

// scan reads every sheet and registers placeholder cells in sheet, row, column order.
func (d *Document) scan() error {
	for _, sheet := range d.file.GetSheetList() {
		rows, err := d.file.GetRows(sheet)
		if err != nil {
			return fmt.Errorf("read rows from sheet %q: %w", sheet, err)
		}
		for rowIdx, row := range rows {
			for colIdx, value := range row {
				name, ok := placeholder(value)
				if !ok {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
				if err != nil {
					return fmt.Errorf("cell name for row %d col %d: %w", rowIdx+1, colIdx+1, err)
				}
				formula, err := d.file.GetCellFormula(sheet, cell)
				if err != nil {
					return fmt.Errorf("read formula of %s!%s: %w", sheet, cell, err)
				}
				fld, exists := d.byName[name]
				if !exists {
					fld = &Field{doc: d, name: name}
					d.byName[name] = fld
					d.fields = append(d.fields, fld)
				}
				fld.cells = append(fld.cells, cellPos{sheet: sheet, cell: cell, formula: formula != ""})
			}
		}
	}
	return nil
}

// Fields returns the template's fields.
func (d *Document) Fields() []form.Field {
	out := make([]form.Field, len(d.fields))
	for i, f := range d.fields {
		out[i] = f
	}
	return out
}

// Save writes the workbook.
func (d *Document) Save(w io.Writer) error {
	if err := d.file.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// Close releases the workbook.
func (d *Document) Close() error {
	return d.file.Close()
}

type cellPos struct {
	sheet   string
	cell    string
	formula bool
}

// Field is one placeholder and the cells that hold it.
type Field struct {
	doc   *Document
	name  string
	cells []cellPos
}

// Name returns the placeholder name.
func (f *Field) Name() string { return f.name }

// Kind is always text.
func (f *Field) Kind() form.Kind { return form.KindText }

// Cells returns the "Sheet!A1" references of the field's cells.
func (f *Field) Cells() []string {
	refs := make([]string, len(f.cells))
	for i, c := range f.cells {
		refs[i] = c.sheet + "!" + c.cell
	}
	return refs
}

// SetText writes text into every cell of the field. A placeholder computed by a
// formula is read-only; nothing is written when any cell is.
func (f *Field) SetText(text string) error {
	for _, c := range f.cells {
		if c.formula {
			return fmt.Errorf("%w: %s!%s holds a formula", form.ErrReadOnly, c.sheet, c.cell)
		}
	}
	for _, c := range f.cells {
		if err := f.doc.file.SetCellStr(c.sheet, c.cell, text); err != nil {
			return fmt.Errorf("set %s!%s: %w", c.sheet, c.cell, err)
		}
	}
	return nil
}

// placeholder extracts the field name from a cell value like "${name}".
// Mixed content such as "Name: ${name}" is not a field.
func placeholder(value string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, notationBegin) || !strings.HasSuffix(trimmed, notationEnd) {
		return "", false
	}
	inner := strings.TrimSpace(trimmed[len(notationBegin) : len(trimmed)-len(notationEnd)])
	if inner == "" || strings.Contains(inner, notationBegin) || strings.Contains(inner, notationEnd) {
		return "", false
	}
	return inner, true
}
