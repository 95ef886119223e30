// Package pdfform implements the form field model for fillable PDF (AcroForm) templates using pdfcpu.
//
// Field data is exchanged with pdfcpu in its form JSON layout: a "forms" list
// whose entries group fields by type ("textfield", "datefield", "checkbox",
// "radiobuttongroup", "combobox", "listbox"). Only text and date fields accept
// text. Fields are ordered by group in that order, then by page and object
// number, which for generated forms is the order they were defined in.
package pdfform

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/javajack/sheetform/form"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ContentType is the media type of PDF documents.
const ContentType = "application/pdf"

// groups maps pdfcpu form JSON keys to field kinds, in field order.
var groups = []struct {
	key  string
	kind form.Kind
}{
	{"textfield", form.KindText},
	{"datefield", form.KindDate},
	{"checkbox", form.KindCheckBox},
	{"radiobuttongroup", form.KindRadio},
	{"combobox", form.KindChoice},
	{"listbox", form.KindList},
}

// Model parses PDF form templates. It is safe for concurrent use.
type Model struct{}

// New returns a PDF form model.
func New() *Model {
	return &Model{}
}

// confMu serializes pdfcpu's first load of its config file.
var confMu sync.Mutex

// newConfig returns a configuration owned by a single document. pdfcpu
// records the running command on it, so it is never shared.
func newConfig() *model.Configuration {
	confMu.Lock()
	defer confMu.Unlock()
	return model.NewDefaultConfiguration()
}

// Extension returns "pdf".
func (*Model) Extension() string { return "pdf" }

// ContentType returns the PDF media type.
func (*Model) ContentType() string { return ContentType }

// Parse reads the AcroForm of a PDF. A PDF without a form is a parse error.
func (m *Model) Parse(data []byte) (form.Document, error) {
	conf := newConfig()
	var buf bytes.Buffer
	if err := api.ExportFormJSON(bytes.NewReader(data), &buf, "template", conf); err != nil {
		return nil, fmt.Errorf("read pdf form: %w", err)
	}
	doc, err := newDocument(data, buf.Bytes())
	if err != nil {
		return nil, err
	}
	doc.fill = func(pdf []byte, formJSON []byte, w io.Writer) error {
		return api.FillForm(bytes.NewReader(pdf), bytes.NewReader(formJSON), w, conf)
	}
	return doc, nil
}

// Document is a parsed PDF form.
type Document struct {
	pdf    []byte
	tree   map[string]any
	fields []*Field
	dirty  bool
	fill   func(pdf []byte, formJSON []byte, w io.Writer) error
}

// newDocument indexes the fields of a pdfcpu form JSON export.
func newDocument(pdf []byte, formJSON []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(formJSON))
	dec.UseNumber()
	var tree map[string]any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("decode pdf form data: %w", err)
	}
	doc := &Document{pdf: pdf, tree: tree}

	forms, _ := tree["forms"].([]any)
	for _, g := range groups {
		var fields []*Field
		for _, f := range forms {
			group, ok := f.(map[string]any)
			if !ok {
				continue
			}
			entries, _ := group[g.key].([]any)
			for _, e := range entries {
				node, ok := e.(map[string]any)
				if !ok {
					continue
				}
				fields = append(fields, &Field{doc: doc, node: node, kind: g.kind})
			}
		}
		// pdfcpu lists the fields of a page in map order.
		slices.SortStableFunc(fields, func(a, b *Field) int {
			if c := cmp.Compare(a.page(), b.page()); c != 0 {
				return c
			}
			return slices.Compare(a.objectPath(), b.objectPath())
		})
		doc.fields = append(doc.fields, fields...)
	}
	return doc, nil
}

// Fields returns the form's fields.
func (d *Document) Fields() []form.Field {
	out := make([]form.Field, len(d.fields))
	for i, f := range d.fields {
		out[i] = f
	}
	return out
}

// Save writes the filled PDF. A document nothing was written into is saved byte for byte.
func (d *Document) Save(w io.Writer) error {
	if !d.dirty {
		_, err := w.Write(d.pdf)
		return err
	}
	formJSON, err := json.Marshal(d.tree)
	if err != nil {
		return fmt.Errorf("encode pdf form data: %w", err)
	}
	if d.fill == nil {
		return fmt.Errorf("pdf document has no form writer")
	}
	if err := d.fill(d.pdf, formJSON, w); err != nil {
		return fmt.Errorf("fill pdf form: %w", err)
	}
	return nil
}

// Close is a no-op; the document holds only memory.
func (d *Document) Close() error { return nil }

// Field is one AcroForm field.
type Field struct {
	doc  *Document
	node map[string]any
	kind form.Kind
}

// Name returns the fully qualified field name, falling back to the field id.
func (f *Field) Name() string {
	if name, _ := f.node["name"].(string); name != "" {
		return name
	}
	id, _ := f.node["id"].(string)
	return id
}

// Kind returns the field type.
func (f *Field) Kind() form.Kind { return f.kind }

// page returns the first page the field appears on.
func (f *Field) page() int {
	pages, _ := f.node["pages"].([]any)
	if len(pages) == 0 {
		return math.MaxInt32
	}
	return atoi(fmt.Sprint(pages[0]))
}

// objectPath returns the object numbers in pdfcpu's "id", parent first ("12.15").
func (f *Field) objectPath() []int {
	id, _ := f.node["id"].(string)
	parts := strings.Split(id, ".")
	path := make([]int, len(parts))
	for i, p := range parts {
		path[i] = atoi(p)
	}
	return path
}

// atoi orders unparsable numbers last.
func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return math.MaxInt32
	}
	return n
}

// Locked reports whether the field is read-only.
func (f *Field) Locked() bool {
	locked, _ := f.node["locked"].(bool)
	return locked
}

// Value returns the field's current text value.
func (f *Field) Value() string {
	v, _ := f.node["value"].(string)
	return v
}

// SetText sets the value of a text or date field.
func (f *Field) SetText(text string) error {
	if f.kind != form.KindText && f.kind != form.KindDate {
		return fmt.Errorf("%w: %s field", form.ErrUnsupportedKind, f.kind)
	}
	if f.Locked() {
		return form.ErrReadOnly
	}
	f.node["value"] = text
	f.doc.dirty = true
	return nil
}
