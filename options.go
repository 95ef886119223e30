package sheetform

import (
	"github.com/javajack/sheetform/form"
	"github.com/javajack/sheetform/pdfform"
	"go.uber.org/zap"
)

// DefaultArchiveName is the file name of a multi-template artifact.
const DefaultArchiveName = "filled-forms.zip"

// Options holds configuration for the Filler.
type Options struct {
	store              TemplateStore
	templateDir        string
	model              form.Model
	registry           *Registry
	logger             *zap.Logger
	listeners          []FieldListener
	archiveName        string
	singleDocument     bool
	onlyKnownTemplates bool
}

func defaultOptions() *Options {
	return &Options{
		model:          pdfform.New(),
		archiveName:    DefaultArchiveName,
		singleDocument: true,
	}
}

// Option configures the Filler.
type Option func(*Options)

// WithTemplateStore sets where templates are fetched from.
func WithTemplateStore(store TemplateStore) Option {
	return func(o *Options) { o.store = store }
}

// WithTemplateDir reads templates from dir/<template>.<ext>, where ext comes
// from the document model. Ignored when WithTemplateStore is also given.
func WithTemplateDir(dir string) Option {
	return func(o *Options) { o.templateDir = dir }
}

// WithModel sets the document field model (default: PDF forms).
func WithModel(model form.Model) Option {
	return func(o *Options) { o.model = model }
}

// WithRegistry sets the mapping tables (default: the embedded registry).
func WithRegistry(reg *Registry) Option {
	return func(o *Options) { o.registry = reg }
}

// WithLogger sets the logger for per-template and per-field diagnostics (default: no-op).
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) { o.logger = logger }
}

// WithFieldListener adds a listener notified around every field write.
func WithFieldListener(listener FieldListener) Option {
	return func(o *Options) { o.listeners = append(o.listeners, listener) }
}

// WithArchiveName sets the file name of a multi-template artifact.
func WithArchiveName(name string) Option {
	return func(o *Options) { o.archiveName = name }
}

// WithSingleDocument controls whether a batch with exactly one template yields
// the bare document instead of a one-entry archive (default: true).
func WithSingleDocument(single bool) Option {
	return func(o *Options) { o.singleDocument = single }
}

// WithOnlyKnownTemplates skips sheets without a mapping table instead of
// filling their templates with no values (default: false).
func WithOnlyKnownTemplates(only bool) Option {
	return func(o *Options) { o.onlyKnownTemplates = only }
}
