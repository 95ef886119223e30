package sheetform

import (
	"context"
	"fmt"
	"strings"

	"github.com/javajack/sheetform/form"
)

// FieldInfo describes one field of a template.
type FieldInfo struct {
	Index int       `json:"index"` // 1-based position in template order
	Name  string    `json:"name"`
	Kind  form.Kind `json:"kind"`
}

// Fields fetches and parses template and lists its fields in template order.
func (f *Filler) Fields(ctx context.Context, template string) ([]FieldInfo, error) {
	if f.opts.store == nil {
		return nil, newTemplateError(template, TemplateNotFound,
			fmt.Errorf("no template store configured: use WithTemplateStore or WithTemplateDir"))
	}
	data, err := f.opts.store.Fetch(ctx, template)
	if err != nil {
		return nil, newTemplateError(template, TemplateNotFound, err)
	}
	doc, err := f.opts.model.Parse(data)
	if err != nil {
		return nil, newTemplateError(template, TemplateParseError, err)
	}
	defer doc.Close()

	fields := doc.Fields()
	infos := make([]FieldInfo, len(fields))
	for i, field := range fields {
		infos[i] = FieldInfo{Index: i + 1, Name: field.Name(), Kind: field.Kind()}
	}
	return infos, nil
}

// Describe returns a human-readable listing of template's fields and the
// labels mapped onto each. Useful when writing a mapping table.
func (f *Filler) Describe(ctx context.Context, template string) (string, error) {
	fields, err := f.Fields(ctx, template)
	if err != nil {
		return "", err
	}
	table, hasTable := f.opts.registry.Lookup(template)

	var b strings.Builder
	fmt.Fprintf(&b, "Template: %s\n", template)
	fmt.Fprintf(&b, "Total fields: %d\n", len(fields))
	if !hasTable {
		b.WriteString("Mapping table: none\n")
	}
	for _, fi := range fields {
		fmt.Fprintf(&b, "%4d. %s (%s)", fi.Index, fi.Name, fi.Kind)
		if hasTable {
			if labels := table.LabelsFor(fi.Name); len(labels) > 0 {
				fmt.Fprintf(&b, " <- %s", quoteAll(labels))
			}
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func quoteAll(ss []string) string {
	quoted := make([]string, len(ss))
	for i, s := range ss {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(quoted, ", ")
}
