package sheetform

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/javajack/sheetform/form"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// fakeModel parses the JSON documents written by fakeTemplate:
//
//	{"fields": [{"name": "fieldX", "kind": "text", "value": "", "locked": false}]}
//
// Save writes the same layout back with the current values.
type fakeModel struct {
	failSave bool
}

type fakeFieldDef struct {
	Name   string    `json:"name"`
	Kind   form.Kind `json:"kind"`
	Value  string    `json:"value"`
	Locked bool      `json:"locked"`
}

type fakeTemplateDef struct {
	Fields []fakeFieldDef `json:"fields"`
}

func (m *fakeModel) Extension() string   { return "pdf" }
func (m *fakeModel) ContentType() string { return "application/pdf" }

func (m *fakeModel) Parse(data []byte) (form.Document, error) {
	var def fakeTemplateDef
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("fake parse: %w", err)
	}
	doc := &fakeDocument{failSave: m.failSave}
	for _, fs := range def.Fields {
		doc.fields = append(doc.fields, &fakeField{def: fs})
	}
	return doc, nil
}

type fakeDocument struct {
	fields   []*fakeField
	failSave bool
	closed   bool
}

func (d *fakeDocument) Fields() []form.Field {
	out := make([]form.Field, len(d.fields))
	for i, f := range d.fields {
		out[i] = f
	}
	return out
}

func (d *fakeDocument) Save(w io.Writer) error {
	if d.failSave {
		return errors.New("disk full")
	}
	def := fakeTemplateDef{}
	for _, f := range d.fields {
		def.Fields = append(def.Fields, f.def)
	}
	return json.NewEncoder(w).Encode(def)
}

func (d *fakeDocument) Close() error {
	d.closed = true
	return nil
}

type fakeField struct {
	def fakeFieldDef
}

func (f *fakeField) Name() string    { return f.def.Name }
func (f *fakeField) Kind() form.Kind { return f.def.Kind }

func (f *fakeField) SetText(text string) error {
	if f.def.Locked {
		return form.ErrReadOnly
	}
	if f.def.Kind == form.KindCheckBox {
		return form.ErrUnsupportedKind
	}
	f.def.Value = text
	return nil
}

// fakeTemplate encodes a fake template whose fields default to "default".
func fakeTemplate(t *testing.T, fields ...fakeFieldDef) []byte {
	t.Helper()
	for i := range fields {
		if fields[i].Kind == "" {
			fields[i].Kind = form.KindText
		}
		if fields[i].Value == "" {
			fields[i].Value = "default"
		}
	}
	data, err := json.Marshal(fakeTemplateDef{Fields: fields})
	require.NoError(t, err)
	return data
}

// fieldValues decodes a document produced by fakeModel into name → value.
func fieldValues(t *testing.T, data []byte) map[string]string {
	t.Helper()
	var def fakeTemplateDef
	require.NoError(t, json.Unmarshal(data, &def))
	out := make(map[string]string, len(def.Fields))
	for _, f := range def.Fields {
		out[f.Name] = f.Value
	}
	return out
}

// memStore serves templates from memory and counts fetches.
type memStore struct {
	templates map[string][]byte
	fetches   []string
}

func newMemStore() *memStore {
	return &memStore{templates: make(map[string][]byte)}
}

func (s *memStore) put(name string, data []byte) *memStore {
	s.templates[name] = data
	return s
}

func (s *memStore) Fetch(ctx context.Context, template string) ([]byte, error) {
	s.fetches = append(s.fetches, template)
	data, ok := s.templates[template]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, template)
	}
	return data, nil
}

// recordingListener captures listener callbacks.
type recordingListener struct {
	veto   map[string]bool
	before []string
	after  []FieldOutcome
}

func (l *recordingListener) BeforeField(template string, field form.Field, text string) bool {
	l.before = append(l.before, field.Name())
	return !l.veto[field.Name()]
}

func (l *recordingListener) AfterField(template string, outcome FieldOutcome) {
	l.after = append(l.after, outcome)
}

// buildWorkbook creates xlsx bytes with one sheet per entry, in order.
// The default "Sheet1" is renamed to the first sheet.
func buildWorkbook(t *testing.T, sheets []string, rows map[string][][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, name := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range rows[name] {
			for c, v := range row {
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				require.NoError(t, err)
				require.NoError(t, f.SetCellValue(name, cell, v))
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

// readArchive returns entry name → content for a zip artifact, plus entry names in order.
func readArchive(t *testing.T, data []byte) (map[string][]byte, []string) {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	entries := make(map[string][]byte, len(zr.File))
	var names []string
	for _, zf := range zr.File {
		rc, err := zf.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		entries[zf.Name] = content
		names = append(names, zf.Name)
	}
	return entries, names
}
