// Package sheetform fills document templates from spreadsheet data.
//
// Each sheet of an uploaded workbook names a template. The sheet's (label, value)
// rows are translated into field identifiers by the template's mapping table,
// written into the template's fields, and the filled documents are returned as a
// single file or a zip archive.
package sheetform

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/javajack/sheetform/form"
	"go.uber.org/zap"
)

// FieldStatus is the outcome of one field during a fill.
type FieldStatus int

const (
	FieldSkipped FieldStatus = iota // no value for the field, left at its default
	FieldFilled                     // value written
	FieldWarning                    // value present but the write failed
)

func (s FieldStatus) String() string {
	switch s {
	case FieldSkipped:
		return "skipped"
	case FieldFilled:
		return "filled"
	case FieldWarning:
		return "warning"
	}
	return "unknown"
}

// FieldOutcome records what happened to one template field.
type FieldOutcome struct {
	Field  string
	Kind   form.Kind
	Status FieldStatus
	Text   string           // text written or attempted, empty when skipped
	Err    *FieldWriteError // set when Status is FieldWarning
}

// TemplateResult is one filled document.
type TemplateResult struct {
	Template string
	FileName string // <template>_filled.<ext>
	Data     []byte
	Fields   []FieldOutcome

	// Unmatched lists, sorted, value keys the template has no field for. They were not written.
	Unmatched []string
}

// Warnings returns the outcomes of fields whose write failed.
func (r *TemplateResult) Warnings() []FieldOutcome {
	var out []FieldOutcome
	for _, fo := range r.Fields {
		if fo.Status == FieldWarning {
			out = append(out, fo)
		}
	}
	return out
}

// Filler orchestrates template filling: fetching, field writes, serialization and packaging.
type Filler struct {
	opts *Options
}

// NewFiller creates a Filler with the given options.
func NewFiller(opts ...Option) *Filler {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.store == nil && o.templateDir != "" {
		o.store = NewDirStore(o.templateDir, o.model.Extension())
	}
	if o.registry == nil {
		o.registry = DefaultRegistry()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return &Filler{opts: o}
}

// Registry returns the mapping tables the filler resolves against.
func (f *Filler) Registry() *Registry {
	return f.opts.registry
}

// Model returns the document field model.
func (f *Filler) Model() form.Model {
	return f.opts.model
}

// Resolve extracts and resolves every sheet of wb against the filler's registry.
func (f *Filler) Resolve(wb *Workbook) *Batch {
	batch := ResolveWorkbook(wb, f.opts.registry)
	for _, res := range batch.Resolutions() {
		fields := []zap.Field{
			zap.String("template", res.Template),
			zap.Int("fields", len(res.Values)),
			zap.Int("dropped", len(res.Dropped)),
		}
		if !res.TableFound {
			f.opts.logger.Warn("no mapping table for sheet, template will be filled with no values", fields...)
			continue
		}
		for label, err := range res.TransformErrors {
			f.opts.logger.Warn("transform failed, row dropped",
				zap.String("template", res.Template), zap.String("label", label), zap.Error(err))
		}
		f.opts.logger.Debug("resolved sheet", fields...)
	}
	return batch
}

// FillTemplate fetches template, writes values into its fields and serializes it.
// Fields without a value keep their default. A field write that fails is
// recorded as a warning and the fill goes on. Fetch, parse and serialization
// failures return a *TemplateError.
func (f *Filler) FillTemplate(ctx context.Context, template string, values FieldValueMap) (*TemplateResult, error) {
	if f.opts.store == nil {
		return nil, newTemplateError(template, TemplateNotFound,
			fmt.Errorf("no template store configured: use WithTemplateStore or WithTemplateDir"))
	}
	log := f.opts.logger.With(zap.String("template", template))

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
	result := &TemplateResult{
		Template: template,
		FileName: template + "_filled." + f.opts.model.Extension(),
		Fields:   make([]FieldOutcome, 0, len(fields)),
	}
	present := make(map[string]struct{}, len(fields))

	for _, field := range fields {
		name := field.Name()
		present[name] = struct{}{}
		outcome := f.fillField(template, field, values, log)
		result.Fields = append(result.Fields, outcome)
		for _, l := range f.opts.listeners {
			l.AfterField(template, outcome)
		}
	}

	for key := range values {
		if _, ok := present[key]; !ok {
			result.Unmatched = append(result.Unmatched, key)
		}
	}
	sort.Strings(result.Unmatched)
	if len(result.Unmatched) > 0 {
		log.Debug("values without a template field", zap.Strings("fields", result.Unmatched))
	}

	var buf bytes.Buffer
	if err := doc.Save(&buf); err != nil {
		return nil, newTemplateError(template, SerializationError, err)
	}
	result.Data = buf.Bytes()

	log.Info("template filled",
		zap.Int("fields", len(fields)),
		zap.Int("filled", countStatus(result.Fields, FieldFilled)),
		zap.Int("warnings", countStatus(result.Fields, FieldWarning)),
		zap.Int("bytes", len(result.Data)))
	return result, nil
}

// fillField writes the value for one field, if there is one.
func (f *Filler) fillField(template string, field form.Field, values FieldValueMap, log *zap.Logger) FieldOutcome {
	name := field.Name()
	outcome := FieldOutcome{Field: name, Kind: field.Kind(), Status: FieldSkipped}

	value, ok := values[name]
	if !ok {
		log.Debug("field skipped", zap.String("field", name))
		return outcome
	}
	text := FormatValue(value)
	for _, l := range f.opts.listeners {
		if !l.BeforeField(template, field, text) {
			log.Debug("field skipped by listener", zap.String("field", name))
			return outcome
		}
	}

	outcome.Text = text
	if err := field.SetText(text); err != nil {
		outcome.Status = FieldWarning
		outcome.Err = &FieldWriteError{Field: name, Err: err}
		log.Warn("could not fill field", zap.String("field", name), zap.String("kind", string(field.Kind())), zap.Error(err))
		return outcome
	}
	outcome.Status = FieldFilled
	log.Debug("field filled", zap.String("field", name), zap.String("value", text))
	return outcome
}

func countStatus(outcomes []FieldOutcome, status FieldStatus) int {
	n := 0
	for _, o := range outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// FormatValue renders a sheet value as field text. Integers print in base 10,
// floats in their shortest exact form and nil as the empty string.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprintf("%v", v)
}
