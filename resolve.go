package sheetform

import "sort"

// FieldValueMap maps a template's field identifiers to the values to write into them.
type FieldValueMap map[string]any

// Fields returns the map's keys, sorted.
func (m FieldValueMap) Fields() []string {
	fields := make([]string, 0, len(m))
	for f := range m {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Resolution is the outcome of mapping one sheet's rows onto its template's fields.
type Resolution struct {
	Template string
	Values   FieldValueMap

	// TableFound is false when the registry has no table for Template.
	// Values is then empty and every row is in Dropped.
	TableFound bool

	// Dropped lists, in sheet order, the labels that produced no value.
	Dropped []string

	// TransformErrors holds, per label, transforms that failed at evaluation.
	// Those rows are also in Dropped.
	TransformErrors map[string]error
}

// Resolve maps rows onto template's fields through the registry. Labels the
// table does not know are dropped, as is everything when there is no table.
// When two labels target the same field the later row wins.
func Resolve(template string, rows []SheetRow, reg *Registry) Resolution {
	res := Resolution{Template: template, Values: FieldValueMap{}}
	table, ok := reg.Lookup(template)
	res.TableFound = ok
	for _, row := range rows {
		if !ok {
			res.Dropped = append(res.Dropped, row.Label)
			continue
		}
		m, found := table.Lookup(row.Label)
		if !found {
			res.Dropped = append(res.Dropped, row.Label)
			continue
		}
		value, err := m.apply(row.Label, row.Value)
		if err != nil {
			if res.TransformErrors == nil {
				res.TransformErrors = make(map[string]error)
			}
			res.TransformErrors[row.Label] = err
			res.Dropped = append(res.Dropped, row.Label)
			continue
		}
		res.Values[m.Field] = value
	}
	return res
}

// Batch is the ordered set of resolutions produced by one upload, in sheet order.
// A Batch is built fresh for every upload and never merged with another.
type Batch struct {
	resolutions []Resolution
	index       map[string]int
}

// NewBatch builds a batch. A later resolution for a template already present replaces it in place.
func NewBatch(resolutions ...Resolution) *Batch {
	b := &Batch{index: make(map[string]int, len(resolutions))}
	for _, r := range resolutions {
		if i, ok := b.index[r.Template]; ok {
			b.resolutions[i] = r
			continue
		}
		b.index[r.Template] = len(b.resolutions)
		b.resolutions = append(b.resolutions, r)
	}
	return b
}

// ResolveWorkbook extracts and resolves every sheet of wb. Each sheet name is taken as a template name.
func ResolveWorkbook(wb *Workbook, reg *Registry) *Batch {
	resolutions := make([]Resolution, 0, len(wb.Sheets))
	for _, sheet := range wb.Sheets {
		resolutions = append(resolutions, Resolve(sheet.Name, ExtractRows(sheet.Rows), reg))
	}
	return NewBatch(resolutions...)
}

// Len returns the number of templates in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.resolutions)
}

// Resolutions returns the batch's resolutions in sheet order.
func (b *Batch) Resolutions() []Resolution {
	if b == nil {
		return nil
	}
	out := make([]Resolution, len(b.resolutions))
	copy(out, b.resolutions)
	return out
}

// Templates returns template names in sheet order.
func (b *Batch) Templates() []string {
	if b == nil {
		return nil
	}
	names := make([]string, len(b.resolutions))
	for i, r := range b.resolutions {
		names[i] = r.Template
	}
	return names
}

// Get returns the resolution for template.
func (b *Batch) Get(template string) (Resolution, bool) {
	if b == nil {
		return Resolution{}, false
	}
	i, ok := b.index[template]
	if !ok {
		return Resolution{}, false
	}
	return b.resolutions[i], true
}
