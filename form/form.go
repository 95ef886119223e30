// Package form defines the document field model that template backends implement.
//
// A Model turns raw template bytes into a Document. A Document exposes its
// fillable fields in template-defined order and serializes itself once filled.
package form

import (
	"errors"
	"io"
)

// Kind is the type of a fillable field.
type Kind string

const (
	KindText     Kind = "text"
	KindDate     Kind = "date"
	KindCheckBox Kind = "checkbox"
	KindRadio    Kind = "radio"
	KindChoice   Kind = "combobox"
	KindList     Kind = "listbox"
)

// ErrReadOnly is returned by SetText when the field cannot be modified.
var ErrReadOnly = errors.New("field is read-only")

// ErrUnsupportedKind is returned by SetText when the field does not accept text.
var ErrUnsupportedKind = errors.New("field does not accept text")

// Model parses template bytes into a fillable Document.
type Model interface {
	// Parse decodes a template. The returned Document owns no reference to data
	// beyond what it needs to serialize later; callers must not mutate data.
	Parse(data []byte) (Document, error)

	// Extension is the file extension of documents this model reads and writes, without the dot.
	Extension() string

	// ContentType is the media type of serialized documents.
	ContentType() string
}

// Document is a parsed template with its field set.
type Document interface {
	// Fields returns every field in template-defined order.
	Fields() []Field

	// Save serializes the document, including every value written so far.
	Save(w io.Writer) error

	// Close releases resources held by the document.
	Close() error
}

// Field is a single fillable field.
type Field interface {
	Name() string
	Kind() Kind

	// SetText writes text into the field. Failures leave the field unchanged.
	SetText(text string) error
}
