package sheetform

import (
	"errors"
	"fmt"
)

// ErrNoDataUploaded indicates a batch was requested before any sheet was extracted.
var ErrNoDataUploaded = errors.New("no data uploaded: upload a workbook first")

// ErrTemplateNotFound indicates the template store has no template under the requested name.
var ErrTemplateNotFound = errors.New("template not found")

// ErrInvalidTemplateName indicates a template name that cannot be mapped onto a store path.
var ErrInvalidTemplateName = errors.New("invalid template name")

// ErrInvalidWorkbook indicates the uploaded bytes are not a readable xlsx workbook.
var ErrInvalidWorkbook = errors.New("invalid xlsx workbook")

// TemplateErrorKind classifies a failure that aborts one template.
type TemplateErrorKind int

const (
	TemplateNotFound   TemplateErrorKind = iota // fetch failed or reported non-success
	TemplateParseError                          // template bytes are not a fillable document
	SerializationError                          // filled document could not be written
)

// String returns the stable code of the kind, e.g. "TEMPLATE_NOT_FOUND".
func (k TemplateErrorKind) String() string {
	switch k {
	case TemplateNotFound:
		return "TEMPLATE_NOT_FOUND"
	case TemplateParseError:
		return "TEMPLATE_PARSE_ERROR"
	case SerializationError:
		return "SERIALIZATION_ERROR"
	}
	return "UNKNOWN"
}

// TemplateError is a fatal failure for one template. A batch that hits it produces no artifact.
type TemplateError struct {
	Template string
	Kind     TemplateErrorKind
	Err      error
}

func (e *TemplateError) Error() string {
	switch e.Kind {
	case TemplateNotFound:
		return fmt.Sprintf("template %q: fetch: %v", e.Template, e.Err)
	case TemplateParseError:
		return fmt.Sprintf("template %q: parse: %v", e.Template, e.Err)
	case SerializationError:
		return fmt.Sprintf("template %q: serialize: %v", e.Template, e.Err)
	}
	return fmt.Sprintf("template %q: %v", e.Template, e.Err)
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrTemplateNotFound) hold for every not-found TemplateError,
// including fetch failures that did not originate from a store sentinel.
func (e *TemplateError) Is(target error) bool {
	return target == ErrTemplateNotFound && e.Kind == TemplateNotFound
}

func newTemplateError(template string, kind TemplateErrorKind, err error) *TemplateError {
	return &TemplateError{Template: template, Kind: kind, Err: err}
}

// FieldWriteError records a value that could not be written into one field.
// It is reported in the fill result and never aborts the document.
type FieldWriteError struct {
	Field string
	Err   error
}

func (e *FieldWriteError) Error() string {
	return fmt.Sprintf("field %q: %v", e.Field, e.Err)
}

func (e *FieldWriteError) Unwrap() error {
	return e.Err
}
